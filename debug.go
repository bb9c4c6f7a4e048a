package aqua

import (
	"fmt"
	"io"
	"strings"
)

type DumpFlags uint64

const (
	DumpDatabaseHeaders = DumpFlags(1 << iota)
	DumpDocs
	DumpStats
	DumpAttachments

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump writes a human-readable listing of the named databases, or of all
// databases when names is empty. Documents are printed as JSON whatever their
// stored encoding.
func (db *DB) Dump(w io.Writer, f DumpFlags, names ...string) error {
	return db.view(func(tx storageTx) error {
		if len(names) == 0 {
			names = tx.Roots()
		}
		for _, name := range names {
			if err := dumpDatabase(w, tx, f, name); err != nil {
				return err
			}
		}
		return nil
	})
}

func dumpDatabase(w io.Writer, tx storageTx, f DumpFlags, name string) error {
	s := databaseStats(tx, name)
	if f.Contains(DumpDatabaseHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d docs, %d attachments)\n", name, s.Docs, s.Attachments)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: data_size = %d, data_alloc = %d, attachment_size = %d, attachment_alloc = %d, total_alloc = %d\n", name, s.DataSize, s.DataAlloc, s.AttachmentSize, s.AttachmentAlloc, s.TotalAlloc())
	}

	if f.Contains(DumpDocs) {
		if b := tx.Bucket(name, docsBucket); b != nil {
			if f.Contains(DumpStats) {
				fmt.Fprintln(w, dumpSep2)
			}
			c := b.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				dumpDoc(w, name, k, v)
			}
		}
	}

	if f.Contains(DumpAttachments) {
		if b := tx.Bucket(name, attachmentsBucket); b != nil {
			fmt.Fprintln(w, dumpSep2)
			c := b.Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				dumpAttachment(w, name, k, v)
			}
		}
	}
	return nil
}

func dumpDoc(w io.Writer, prefix string, k, v []byte) {
	var dv docValue
	if err := dv.decode(v); err != nil {
		fmt.Fprintf(w, "%s/%s = ** ERROR: %v\n", prefix, k, err)
		return
	}
	n, err := dv.Flags.encoding().DecodeNode(dv.Data)
	if err != nil {
		fmt.Fprintf(w, "%s/%s = (%s) ** ERROR: %v\n", prefix, k, dv.rev(), err)
		return
	}
	fmt.Fprintf(w, "%s/%s = (%s %v) %s\n", prefix, k, dv.rev(), dv.Flags.encoding(), JSON.EncodeNode(nil, n))
}

func dumpAttachment(w io.Writer, prefix string, k, v []byte) {
	owner, name, _ := splitByte(string(k), 0)
	_, meta, err := decodeAttachment(v)
	if err != nil {
		fmt.Fprintf(w, "%s/%s/%s ** ERROR: %v\n", prefix, owner, name, err)
		return
	}
	fmt.Fprintf(w, "%s/%s/%s: %s, %d bytes, %v, %s\n", prefix, owner, name, meta.ContentType, meta.Length, meta.Compression, meta.rev())
}
