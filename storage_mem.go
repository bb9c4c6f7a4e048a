package aqua

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

const memBucketSep = "\x00"

// memStorage keeps all buckets in memory. Transactions work on a snapshot
// that replaces the live buckets on commit; writers are serialized.
type memStorage struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buckets map[string]*memBucket
	closed  bool
	writer  bool
}

func newMemStorage() storage {
	s := &memStorage{buckets: make(map[string]*memBucket)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if writable {
		for s.writer && !s.closed {
			s.cond.Wait()
		}
	}
	if s.closed {
		return nil, fmt.Errorf("storage closed")
	}
	if writable {
		s.writer = true
	}

	snap := make(map[string]*memBucket, len(s.buckets))
	for k, b := range s.buckets {
		if writable {
			b = b.clone()
		}
		snap[k] = b
	}
	return &memTx{base: s, writable: writable, buckets: snap}, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	s.cond.Broadcast()
	return nil
}

type memTx struct {
	base     *memStorage
	writable bool
	buckets  map[string]*memBucket
	closed   bool
}

func (tx *memTx) Writable() bool { return tx.writable }
func (tx *memTx) Size() int64    { return 0 }

func (tx *memTx) Roots() []string {
	var names []string
	for k := range tx.buckets {
		root, _, _ := strings.Cut(k, memBucketSep)
		if !slices.Contains(names, root) {
			names = append(names, root)
		}
	}
	slices.Sort(names)
	return names
}

func (tx *memTx) Bucket(root, sub string) storageBucket {
	if tx.closed {
		panic("tx is closed")
	}
	b := tx.buckets[root+memBucketSep+sub]
	if b == nil {
		return nil
	}
	return memBucketHandle{tx, b}
}

func (tx *memTx) CreateBucket(root, sub string) (storageBucket, error) {
	if tx.closed {
		panic("tx is closed")
	}
	if !tx.writable {
		return nil, fmt.Errorf("tx not writable")
	}
	key := root + memBucketSep + sub
	b := tx.buckets[key]
	if b == nil {
		b = &memBucket{}
		tx.buckets[key] = b
	}
	return memBucketHandle{tx, b}, nil
}

func (tx *memTx) Commit() error {
	if tx.closed {
		return fmt.Errorf("tx is closed")
	}
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	defer tx.closeLocked()
	if tx.base.closed {
		return fmt.Errorf("storage closed")
	}
	tx.base.buckets = tx.buckets
	return nil
}

func (tx *memTx) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.closeLocked()
	return nil
}

func (tx *memTx) closeLocked() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.writable {
		tx.base.writer = false
		tx.base.cond.Broadcast()
	}
}

type memBucket struct {
	items []memKV // sorted by key
}

type memKV struct {
	key   []byte
	value []byte
}

func (b *memBucket) clone() *memBucket {
	return &memBucket{items: slices.Clone(b.items)}
}

type memBucketHandle struct {
	tx *memTx
	b  *memBucket
}

func (h memBucketHandle) Get(key []byte) []byte {
	if i, ok := h.find(key); ok {
		return h.b.items[i].value
	}
	return nil
}

func (h memBucketHandle) Put(key, value []byte) error {
	if !h.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	kv := memKV{slices.Clone(key), slices.Clone(value)}
	if i, ok := h.find(key); ok {
		h.b.items[i] = kv
	} else {
		h.b.items = slices.Insert(h.b.items, i, kv)
	}
	return nil
}

func (h memBucketHandle) Delete(key []byte) error {
	if !h.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	if i, ok := h.find(key); ok {
		h.b.items = slices.Delete(h.b.items, i, i+1)
	}
	return nil
}

func (h memBucketHandle) Cursor() storageCursor {
	return &memCursor{items: h.b.items, pos: -1}
}

func (h memBucketHandle) Stats() bucketStats {
	var inuse int64
	for _, kv := range h.b.items {
		inuse += int64(len(kv.key) + len(kv.value))
	}
	return bucketStats{KeyN: len(h.b.items), LeafInuse: inuse, LeafAlloc: inuse}
}

func (h memBucketHandle) find(key []byte) (int, bool) {
	items := h.b.items
	i := sort.Search(len(items), func(i int) bool {
		return bytes.Compare(items[i].key, key) >= 0
	})
	return i, i < len(items) && bytes.Equal(items[i].key, key)
}

// memCursor iterates the bucket contents as of its creation.
type memCursor struct {
	items []memKV
	pos   int
}

func (c *memCursor) at(i int) ([]byte, []byte) {
	c.pos = i
	if i < 0 || i >= len(c.items) {
		return nil, nil
	}
	return c.items[i].key, c.items[i].value
}

func (c *memCursor) First() ([]byte, []byte) { return c.at(0) }
func (c *memCursor) Next() ([]byte, []byte)  { return c.at(c.pos + 1) }

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	return c.at(sort.Search(len(c.items), func(i int) bool {
		return bytes.Compare(c.items[i].key, seek) >= 0
	}))
}
