package aqua

import "testing"

func TestOp_String(t *testing.T) {
	deepEqual(t, OpNone.String(), "none")
	deepEqual(t, OpPut.String(), "put")
	deepEqual(t, OpDelete.String(), "delete")
	deepEqual(t, OpAttach.String(), "attach")
	deepEqual(t, Op(999).String(), "invalid op 999")
}

func TestChange_String(t *testing.T) {
	chg := &Change{database: "post", op: OpAttach, id: "p1", rev: "blake3-00", attachment: "a.png"}
	deepEqual(t, chg.String(), "attach post/p1/a.png blake3-00")
	chg = &Change{database: "post", op: OpDelete, id: "p1"}
	deepEqual(t, chg.String(), "delete post/p1")
}

func TestDB_OnChangeFromDatabase(t *testing.T) {
	db := setup(t, Options{})
	var got []*Change
	db.OnChange(func(chg *Change) { got = append(got, chg) })
	db.OnChange(func(chg *Change) {
		if len(got) == 0 {
			t.Errorf("** handlers ran out of order")
		}
	})

	d := db.Database("notes")
	res := must(d.Put("n1", PlainNode("Note"), ""))
	deepEqual(t, len(got), 1)
	deepEqual(t, got[0].Database(), "notes")
	deepEqual(t, got[0].Op(), OpPut)
	deepEqual(t, got[0].ID(), "n1")
	deepEqual(t, got[0].Rev(), res.Rev)
	deepEqual(t, got[0].Attachment(), "")

	_, err := d.Put("n1", PlainNode("Note"), "")
	if !IsConflict(err) {
		t.Fatalf("Put err = %v, wanted conflict", err)
	}
	deepEqual(t, len(got), 1)
}
