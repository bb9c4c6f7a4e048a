package aqua

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
)

// InMemory as the path to Open selects the transient in-memory backend.
const InMemory = ":memory:"

type DB struct {
	bdb         *bbolt.DB
	storage     storage
	reg         *Registry
	logger      *slog.Logger
	verbose     bool
	enc         Encoding
	compression CompressionTag
	ids         IDScheme

	databases   map[string]*Database
	databasesMu sync.Mutex

	// storeFor picks the store documents of a type are committed to.
	storeFor func(typ *Type) Store

	changeHandlers []func(chg *Change)
	changeMu       sync.RWMutex

	ReadCount  atomic.Uint64
	WriteCount atomic.Uint64
}

type Options struct {
	Logger      *slog.Logger
	Verbose     bool
	IsTesting   bool
	MmapSize    int
	Encoding    Encoding
	Compression CompressionTag
	IDs         IDScheme
}

func Open(path string, reg *Registry, opt Options) (*DB, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	db := &DB{
		reg:         reg,
		logger:      opt.Logger,
		verbose:     opt.Verbose,
		enc:         opt.Encoding,
		compression: opt.Compression,
		ids:         opt.IDs,
		databases:   make(map[string]*Database),
	}
	if db.logger == nil {
		db.logger = slog.Default()
	}
	db.storeFor = func(typ *Type) Store {
		return db.Database(typ.database)
	}

	if path == InMemory {
		db.storage = newMemStorage()
		return db, nil
	}

	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 256
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("aqua: %w", err)
	}
	db.bdb = bdb
	db.storage = newBoltStorage(bdb)
	return db, nil
}

// Bolt returns the underlying bbolt database, or nil for in-memory databases.
func (db *DB) Bolt() *bbolt.DB {
	return db.bdb
}

func (db *DB) Registry() *Registry {
	return db.reg
}

func (db *DB) Close() {
	err := db.storage.Close()
	if err != nil {
		panic(fmt.Errorf("aqua: closing: %w", err))
	}
}

// Database returns the named database. Databases are created on first write.
func (db *DB) Database(name string) *Database {
	db.databasesMu.Lock()
	defer db.databasesMu.Unlock()
	d := db.databases[name]
	if d == nil {
		d = &Database{db: db, name: name}
		db.databases[name] = d
	}
	return d
}

// DatabaseNames lists the databases that hold data.
func (db *DB) DatabaseNames() ([]string, error) {
	var names []string
	err := db.view(func(tx storageTx) error {
		names = tx.Roots()
		return nil
	})
	return names, err
}

func (db *DB) view(f func(tx storageTx) error) error {
	tx, err := db.storage.BeginTx(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	db.ReadCount.Add(1)
	return f(tx)
}

func (db *DB) update(f func(tx storageTx) error) error {
	tx, err := db.storage.BeginTx(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	db.WriteCount.Add(1)
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) logVerbose(msg string, args ...any) {
	if db.verbose {
		db.logger.Info(msg, args...)
	}
}
