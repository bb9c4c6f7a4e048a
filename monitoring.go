package aqua

import "sort"

type DatabaseStats struct {
	Name        string
	Docs        int
	Attachments int

	DataSize        int64
	DataAlloc       int64
	AttachmentSize  int64
	AttachmentAlloc int64
}

func (ds *DatabaseStats) TotalSize() int64 {
	return ds.DataSize + ds.AttachmentSize
}

func (ds *DatabaseStats) TotalAlloc() int64 {
	return ds.DataAlloc + ds.AttachmentAlloc
}

// Stats reports per-database sizes, ordered by database name.
func (db *DB) Stats() ([]DatabaseStats, error) {
	var result []DatabaseStats
	err := db.view(func(tx storageTx) error {
		roots := tx.Roots()
		sort.Strings(roots)
		for _, name := range roots {
			result = append(result, databaseStats(tx, name))
		}
		return nil
	})
	return result, err
}

func databaseStats(tx storageTx, name string) DatabaseStats {
	ds := DatabaseStats{Name: name}
	if b := tx.Bucket(name, docsBucket); b != nil {
		bs := b.Stats()
		ds.Docs = bs.KeyN
		ds.DataSize = bs.LeafInuse
		ds.DataAlloc = bs.LeafAlloc
	}
	if b := tx.Bucket(name, attachmentsBucket); b != nil {
		bs := b.Stats()
		ds.Attachments = bs.KeyN
		ds.AttachmentSize = bs.LeafInuse
		ds.AttachmentAlloc = bs.LeafAlloc
	}
	return ds
}
