package aqua

import "bytes"

// DocumentStore keeps packed documents by id. Writes are checked against
// the current revision like CouchDB does: updating or deleting a document
// requires its latest rev, creating one requires an empty rev.
type DocumentStore interface {
	Put(id string, body *Node, rev string) (PutResult, error)
	Get(id string) (*Document, error)
	Delete(id, rev string) error
	NextID() string
}

// AttachmentStore keeps binary attachments of documents.
type AttachmentStore interface {
	PutAttachment(owner, name string, data []byte, contentType string) (string, error)
	GetAttachment(owner, name string) ([]byte, error)
}

type Store interface {
	DocumentStore
	AttachmentStore
}

type PutResult struct {
	ID  string
	Rev string
}

type Document struct {
	ID   string
	Rev  string
	Body *Node
}

// Database is a named collection of documents and their attachments inside
// a DB.
type Database struct {
	db   *DB
	name string
}

var _ Store = (*Database)(nil)

func (d *Database) Name() string {
	return d.name
}

func (d *Database) NextID() string {
	return d.db.ids.next()
}

func (d *Database) Put(id string, body *Node, rev string) (PutResult, error) {
	if id == "" {
		return PutResult{}, storeErrf(d.name, id, "put", errEmptyID)
	}
	data := d.db.enc.EncodeNode(bodyBytesPool.Get().([]byte), body)
	defer releaseBodyBytes(data)

	var newRev string
	err := d.db.update(func(tx storageTx) error {
		docs, err := tx.CreateBucket(d.name, docsBucket)
		if err != nil {
			return err
		}
		key := []byte(id)
		var seq uint64
		if old := docs.Get(key); old != nil {
			var dv docValue
			if err := dv.decode(old); err != nil {
				return err
			}
			if rev != dv.rev() {
				return ErrConflict
			}
			seq = dv.Seq
		} else if rev != "" {
			return ErrConflict
		}
		seq++
		newRev = formatRev(seq, data)
		return docs.Put(key, appendDocValue(nil, flagsFor(d.db.enc), seq, data))
	})
	if err != nil {
		return PutResult{}, storeErrf(d.name, id, "put", err)
	}
	d.db.logVerbose("aqua: PUT", "database", d.name, "id", id, "rev", newRev)
	d.db.notify(&Change{database: d.name, op: OpPut, id: id, rev: newRev})
	return PutResult{ID: id, Rev: newRev}, nil
}

func (d *Database) Get(id string) (*Document, error) {
	var doc *Document
	err := d.db.view(func(tx storageTx) error {
		docs := tx.Bucket(d.name, docsBucket)
		if docs == nil {
			return ErrNotFound
		}
		raw := docs.Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		var dv docValue
		if err := dv.decode(raw); err != nil {
			return err
		}
		body, err := dv.Flags.encoding().DecodeNode(dv.Data)
		if err != nil {
			return err
		}
		doc = &Document{ID: id, Rev: dv.rev(), Body: body}
		return nil
	})
	if err != nil {
		return nil, storeErrf(d.name, id, "get", err)
	}
	return doc, nil
}

// Delete removes the document and all of its attachments.
func (d *Database) Delete(id, rev string) error {
	err := d.db.update(func(tx storageTx) error {
		docs := tx.Bucket(d.name, docsBucket)
		if docs == nil {
			return ErrNotFound
		}
		key := []byte(id)
		raw := docs.Get(key)
		if raw == nil {
			return ErrNotFound
		}
		var dv docValue
		if err := dv.decode(raw); err != nil {
			return err
		}
		if rev != dv.rev() {
			return ErrConflict
		}
		if err := docs.Delete(key); err != nil {
			return err
		}
		if atts := tx.Bucket(d.name, attachmentsBucket); atts != nil {
			prefix := attachmentKey(id, "")
			var keys [][]byte
			c := atts.Cursor()
			for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
				keys = append(keys, bytes.Clone(k))
			}
			for _, k := range keys {
				if err := atts.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return storeErrf(d.name, id, "delete", err)
	}
	d.db.logVerbose("aqua: DELETE", "database", d.name, "id", id)
	d.db.notify(&Change{database: d.name, op: OpDelete, id: id})
	return nil
}

func (d *Database) PutAttachment(owner, name string, data []byte, contentType string) (string, error) {
	if owner == "" {
		return "", storeErrf(d.name, owner, "attach "+name, errEmptyID)
	}
	record, meta, err := encodeAttachment(data, contentType, d.db.compression)
	if err != nil {
		return "", storeErrf(d.name, owner, "attach "+name, err)
	}
	err = d.db.update(func(tx storageTx) error {
		atts, err := tx.CreateBucket(d.name, attachmentsBucket)
		if err != nil {
			return err
		}
		return atts.Put(attachmentKey(owner, name), record)
	})
	if err != nil {
		return "", storeErrf(d.name, owner, "attach "+name, err)
	}
	rev := meta.rev()
	d.db.logVerbose("aqua: ATTACH", "database", d.name, "id", owner, "name", name, "bytes", len(data), "compression", meta.Compression)
	d.db.notify(&Change{database: d.name, op: OpAttach, id: owner, rev: rev, attachment: name})
	return rev, nil
}

func (d *Database) GetAttachment(owner, name string) ([]byte, error) {
	f, err := d.Attachment(owner, name)
	if err != nil {
		return nil, err
	}
	return f.Bytes(), nil
}

// Attachment returns the attachment together with its stored content type.
func (d *Database) Attachment(owner, name string) (*File, error) {
	var f *File
	err := d.db.view(func(tx storageTx) error {
		atts := tx.Bucket(d.name, attachmentsBucket)
		if atts == nil {
			return ErrNotFound
		}
		record := atts.Get(attachmentKey(owner, name))
		if record == nil {
			return ErrNotFound
		}
		data, meta, err := decodeAttachment(record)
		if err != nil {
			return err
		}
		if meta.Compression == CompressionNone {
			data = bytes.Clone(data)
		}
		f = newFileWithType(name, meta.ContentType, data)
		return nil
	})
	if err != nil {
		return nil, storeErrf(d.name, owner, "get attachment "+name, err)
	}
	return f, nil
}

// IDs lists document ids in key order.
func (d *Database) IDs() ([]string, error) {
	var ids []string
	err := d.db.view(func(tx storageTx) error {
		docs := tx.Bucket(d.name, docsBucket)
		if docs == nil {
			return nil
		}
		c := docs.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			ids = append(ids, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, storeErrf(d.name, "", "list", err)
	}
	return ids, nil
}

// AttachmentNames lists the attachments stored for owner.
func (d *Database) AttachmentNames(owner string) ([]string, error) {
	var names []string
	err := d.db.view(func(tx storageTx) error {
		atts := tx.Bucket(d.name, attachmentsBucket)
		if atts == nil {
			return nil
		}
		prefix := attachmentKey(owner, "")
		c := atts.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			names = append(names, string(k[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, storeErrf(d.name, owner, "list attachments", err)
	}
	return names, nil
}

func attachmentKey(owner, name string) []byte {
	key := make([]byte, 0, len(owner)+1+len(name))
	key = append(key, owner...)
	key = append(key, 0)
	return append(key, name...)
}
