package aqua

import "fmt"

type (
	// Change describes a committed write to a database.
	Change struct {
		database   string
		op         Op
		id         string
		rev        string
		attachment string
	}

	Op int
)

const (
	OpNone   Op = 0
	OpPut    Op = 1
	OpDelete Op = 2
	OpAttach Op = 3
)

func (chg *Change) Database() string {
	return chg.database
}
func (chg *Change) Op() Op {
	return chg.op
}
func (chg *Change) ID() string {
	return chg.id
}
func (chg *Change) Rev() string {
	return chg.rev
}
func (chg *Change) Attachment() string {
	return chg.attachment
}

func (chg *Change) String() string {
	s := fmt.Sprintf("%v %s/%s", chg.op, chg.database, chg.id)
	if chg.attachment != "" {
		s += "/" + chg.attachment
	}
	if chg.rev != "" {
		s += " " + chg.rev
	}
	return s
}

func (v Op) String() string {
	switch v {
	case OpNone:
		return "none"
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpAttach:
		return "attach"
	default:
		return fmt.Sprintf("invalid op %d", int(v))
	}
}

// OnChange registers f to be called after every successful write. Handlers
// run synchronously on the writing goroutine, outside of any transaction.
func (db *DB) OnChange(f func(chg *Change)) {
	db.changeMu.Lock()
	defer db.changeMu.Unlock()
	db.changeHandlers = append(db.changeHandlers, f)
}

func (db *DB) notify(chg *Change) {
	db.changeMu.RLock()
	handlers := db.changeHandlers
	db.changeMu.RUnlock()
	for _, f := range handlers {
		f(chg)
	}
}
