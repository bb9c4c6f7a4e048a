package aqua

import (
	"errors"
	"fmt"
)

// Commit saves obj and the externals it references, and reports whether the
// root document was stored. Store failures are kept on obj.AquaDoc().Err().
// Values that cannot be packed are programmer errors and panic.
func (db *DB) Commit(obj Object) bool {
	err := db.CommitErr(obj)
	if err != nil && isFatal(err) {
		panic(err)
	}
	return err == nil
}

// CommitErr is like Commit, but returns the error. Externals that fail to
// save do not fail the commit; they are reported by obj.AquaDoc().Warnings().
func (db *DB) CommitErr(obj Object) error {
	return db.commit(obj, make(map[Object]bool))
}

// commit saves obj. Objects in saved were already stored by the enclosing
// commit and are only patched in.
func (db *DB) commit(obj Object, saved map[Object]bool) error {
	doc := obj.AquaDoc()
	doc.resetCommitState()

	typ := db.reg.TypeOf(obj)
	if typ == nil || !typ.isObject {
		return classificationErrf(obj, nil, "type is not registered as an object")
	}
	store := db.storeFor(typ)

	created := doc.id == ""
	if created {
		doc.id = store.NextID()
	}
	doc.committing = true
	defer func() {
		doc.committing = false
	}()

	fail := func(err error) error {
		if created {
			doc.id = ""
		}
		doc.err = err
		return err
	}

	rat, err := db.reg.Pack(obj)
	if err != nil {
		return fail(err)
	}

	for i, ext := range rat.Externals {
		ed := ext.Object.AquaDoc()
		if ext.Object != obj && !ed.committing && !saved[ext.Object] {
			if err := db.commit(ext.Object, saved); err != nil {
				if isFatal(err) {
					return fail(err)
				}
				w := &ExternalSaveWarning{
					Index: i,
					Class: db.reg.TypeOf(ext.Object).Name(),
					ID:    ed.id,
					Paths: ext.Paths,
					Err:   err,
				}
				doc.warnings = append(doc.warnings, w)
				db.logger.Warn("aqua: external not saved", "class", w.Class, "id", w.ID, "owner", doc.id, "err", err)
			}
		}
		for _, path := range ext.Paths {
			if err := rat.Pack.PatchID(path, ed.id); err != nil {
				return fail(fmt.Errorf("aqua: patching %v: %w", path, err))
			}
		}
	}

	for _, a := range rat.Attachments {
		if _, err := store.PutAttachment(doc.id, a.Name, a.Data, a.ContentType); err != nil {
			return fail(err)
		}
	}

	res, err := store.Put(doc.id, rat.Pack, doc.rev)
	if err != nil {
		return fail(err)
	}
	doc.id = res.ID
	doc.rev = res.Rev
	saved[obj] = true
	db.logVerbose("aqua: COMMIT", "class", typ.Name(), "id", doc.id, "rev", doc.rev, "externals", len(rat.Externals), "attachments", len(rat.Attachments), "warnings", len(doc.warnings))
	return nil
}

// Delete removes the stored document of obj together with its attachments.
// Externals it references are left alone.
func (db *DB) Delete(obj Object) error {
	typ := db.reg.TypeOf(obj)
	if typ == nil || !typ.isObject {
		return classificationErrf(obj, nil, "type is not registered as an object")
	}
	doc := obj.AquaDoc()
	if doc.id == "" {
		return storeErrf(typ.database, "", "delete", errEmptyID)
	}
	if err := db.storeFor(typ).Delete(doc.id, doc.rev); err != nil {
		return err
	}
	doc.rev = ""
	return nil
}

// IsConflict reports whether err was caused by a stale revision.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound reports whether err was caused by a missing document or
// attachment.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
