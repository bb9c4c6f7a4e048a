package aqua

import (
	"fmt"
	"reflect"
	"sync"
)

var (
	_ Loader = (*DB)(nil)
	_ Loader = (*loadSession)(nil)
)

// Load fetches a document of the given class and unpacks it. Externals come
// back as stubs that load through db on first use. Documents reached more
// than once from the loaded graph, including the root itself, unpack to a
// single object.
func (db *DB) Load(class, id string) (any, error) {
	s := &loadSession{db: db, objs: make(map[string]Object)}
	return s.load(class, id)
}

// Load fetches the document of type T stored under id.
func Load[T any](db *DB, id string) (*T, error) {
	rt := reflect.TypeFor[*T]()
	typ := db.reg.typeFor(rt)
	if typ == nil {
		panic(fmt.Errorf("aqua: %v is not registered", rt))
	}
	v, err := db.Load(typ.Name(), id)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case *T:
		return v, nil
	case T:
		return &v, nil
	default:
		return nil, fmt.Errorf("aqua: %s/%s holds %T, wanted %v", typ.Name(), id, v, rt)
	}
}

// Attachment fetches an attachment of owner.
func (db *DB) Attachment(owner Object, name string) (*File, error) {
	typ := db.reg.TypeOf(owner)
	if typ == nil {
		return nil, classificationErrf(owner, nil, "type is not registered")
	}
	id := owner.AquaDoc().ID()
	if id == "" {
		return nil, fmt.Errorf("aqua: attachment %q of unsaved %s: %w", name, typ.Name(), ErrNotFound)
	}
	store := db.storeFor(typ)
	if d, ok := store.(*Database); ok {
		return d.Attachment(id, name)
	}
	data, err := store.GetAttachment(id, name)
	if err != nil {
		return nil, err
	}
	return NewFile(name, data), nil
}

// loadSession is the Loader of the stubs created by one DB.Load.
type loadSession struct {
	db   *DB
	mu   sync.Mutex
	objs map[string]Object
}

func (s *loadSession) Load(class, id string) (any, error) {
	s.mu.Lock()
	obj := s.objs[sessionKey(class, id)]
	s.mu.Unlock()
	if obj != nil {
		return obj, nil
	}
	return s.load(class, id)
}

func (s *loadSession) Attachment(owner Object, name string) (*File, error) {
	return s.db.Attachment(owner, name)
}

func (s *loadSession) remember(class, id string, obj Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs[sessionKey(class, id)] = obj
}

func (s *loadSession) load(class, id string) (any, error) {
	db := s.db
	typ, err := db.reg.Resolve(class)
	if err != nil {
		return nil, err
	}
	doc, err := db.storeFor(typ).Get(id)
	if err != nil {
		return nil, err
	}
	v, err := db.reg.Unpack(doc.Body, UnpackContext{ID: doc.ID, Loader: s})
	if err != nil {
		return nil, err
	}
	if obj, ok := v.(Object); ok {
		d := obj.AquaDoc()
		d.id = doc.ID
		d.rev = doc.Rev
	}
	db.logVerbose("aqua: LOAD", "class", typ.Name(), "id", id, "rev", doc.Rev)
	return v, nil
}

func sessionKey(class, id string) string {
	return class + "\x00" + id
}
