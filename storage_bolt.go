package aqua

import (
	"unsafe"

	"go.etcd.io/bbolt"
)

type boltStorage struct {
	bdb *bbolt.DB
}

func newBoltStorage(bdb *bbolt.DB) storage {
	return &boltStorage{bdb: bdb}
}

func (s *boltStorage) BeginTx(writable bool) (storageTx, error) {
	btx, err := s.bdb.Begin(writable)
	if err != nil {
		return nil, err
	}
	return &boltTx{btx: btx}, nil
}

func (s *boltStorage) Close() error {
	return s.bdb.Close()
}

type boltTx struct {
	btx *bbolt.Tx
}

func (tx *boltTx) Writable() bool { return tx.btx.Writable() }
func (tx *boltTx) Commit() error  { return tx.btx.Commit() }
func (tx *boltTx) Size() int64    { return tx.btx.Size() }

func (tx *boltTx) Roots() []string {
	var names []string
	_ = tx.btx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
		names = append(names, string(name))
		return nil
	})
	return names
}

func (tx *boltTx) Bucket(root, sub string) storageBucket {
	rb := tx.btx.Bucket(unsafeBytesFromString(root))
	if rb == nil {
		return nil
	}
	b := rb.Bucket(unsafeBytesFromString(sub))
	if b == nil {
		return nil
	}
	return boltBucket{b}
}

func (tx *boltTx) CreateBucket(root, sub string) (storageBucket, error) {
	rb, err := tx.btx.CreateBucketIfNotExists([]byte(root))
	if err != nil {
		return nil, err
	}
	b, err := rb.CreateBucketIfNotExists([]byte(sub))
	if err != nil {
		return nil, err
	}
	return boltBucket{b}, nil
}

func (tx *boltTx) Rollback() error {
	err := tx.btx.Rollback()
	if err == bbolt.ErrTxClosed {
		return nil
	}
	return err
}

type boltBucket struct {
	b *bbolt.Bucket
}

func (b boltBucket) Get(key []byte) []byte       { return b.b.Get(key) }
func (b boltBucket) Put(key, value []byte) error { return b.b.Put(key, value) }
func (b boltBucket) Delete(key []byte) error     { return b.b.Delete(key) }
func (b boltBucket) Cursor() storageCursor       { return b.b.Cursor() }

func (b boltBucket) Stats() bucketStats {
	s := b.b.Stats()
	return bucketStats{
		KeyN:      s.KeyN,
		LeafInuse: int64(s.LeafInuse),
		LeafAlloc: int64(s.LeafAlloc),
	}
}

func unsafeBytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
