package aqua

// storage is the key-value backend databases are kept in: bbolt on disk, or
// the in-memory backend for tests and ":memory:".
//
// Each database is a root bucket with two nested buckets, docsBucket and
// attachmentsBucket.
type storage interface {
	BeginTx(writable bool) (storageTx, error)
	Close() error
}

const (
	docsBucket        = "docs"
	attachmentsBucket = "attachments"
)

type storageTx interface {
	Writable() bool

	// Roots lists the root bucket names in sorted order.
	Roots() []string

	// Bucket returns a nested bucket, or nil if it doesn't exist.
	Bucket(root, sub string) storageBucket

	// CreateBucket returns a nested bucket, creating it and its root if needed.
	CreateBucket(root, sub string) (storageBucket, error)

	Commit() error

	// Rollback aborts the transaction. Safe to call after Commit.
	Rollback() error

	// Size returns the database size in bytes, 0 if unknown.
	Size() int64
}

type storageBucket interface {
	// Get returns nil if key does not exist. The result is only valid until
	// the end of the transaction.
	Get(key []byte) []byte
	Put(key, value []byte) error
	Delete(key []byte) error
	Cursor() storageCursor
	Stats() bucketStats
}

type bucketStats struct {
	KeyN      int
	LeafInuse int64
	LeafAlloc int64
}

// storageCursor iterates a bucket in key order.
type storageCursor interface {
	First() (key, value []byte)
	Seek(seek []byte) (key, value []byte)
	Next() (key, value []byte)
}
