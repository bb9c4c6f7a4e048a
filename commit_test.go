package aqua

import (
	"errors"
	"testing"
)

func failUser(username string) func(body *Node) bool {
	return func(body *Node) bool {
		if body.Class != "User" {
			return false
		}
		n := body.Ivar("username")
		return n != nil && n.Str == username
	}
}

func setupFlaky(t testing.TB, fail func(body *Node) bool) *DB {
	db := setup(t, Options{})
	db.storeFor = func(typ *Type) Store {
		return &flakyStore{Store: db.Database(typ.database), fail: fail}
	}
	return db
}

func TestCommit_PartialFailure(t *testing.T) {
	db := setupFlaky(t, failUser("broken"))
	author := &testUser{Username: "kane"}
	editor := &testUser{Username: "broken"}
	post := &testPost{Title: "partial", Author: author, Editor: RefTo(editor)}

	if !db.Commit(post) {
		t.Fatalf("Commit failed: %v", post.Err())
	}
	if author.ID() == "" || author.IsNew() {
		t.Errorf("** author not saved")
	}
	deepEqual(t, editor.ID(), "")
	if !errors.Is(editor.Err(), errDiskFull) {
		t.Errorf("** editor.Err() = %v, wanted errDiskFull", editor.Err())
	}

	ws := post.Warnings()
	deepEqual(t, len(ws), 1)
	w := ws[0]
	deepEqual(t, w.Index, 1)
	deepEqual(t, w.Class, "User")
	deepEqual(t, w.ID, "")
	deepEqual(t, len(w.Paths), 1)
	deepEqual(t, w.Paths[0].String(), ".ivars.editor")
	if !errors.Is(w, errDiskFull) {
		t.Errorf("** warning %v does not wrap errDiskFull", w)
	}

	doc := must(db.Database("post").Get(post.ID()))
	deepEqual(t, doc.Body.Ivar("author").ID, author.ID())
	deepEqual(t, doc.Body.Ivar("editor").ID, "")
	deepEqual(t, doc.Body.Ivar("editor").Method("username").Str, "broken")

	loaded := must(Load[testPost](db, post.ID()))
	deepEqual(t, loaded.Author.ID(), author.ID())
	v, _ := loaded.Editor.Cached("username")
	deepEqual(t, v, any("broken"))
}

func TestCommit_FailedUpdateKeepsStaleID(t *testing.T) {
	db := setupFlaky(t, failUser("broken"))
	editor := &testUser{Username: "fine"}
	ensure(db.CommitErr(editor))
	id := editor.ID()

	editor.Username = "broken"
	post := &testPost{Title: "stale", Editor: RefTo(editor)}
	ensure(db.CommitErr(post))

	ws := post.Warnings()
	deepEqual(t, len(ws), 1)
	deepEqual(t, ws[0].ID, id)
	deepEqual(t, ws[0].Index, 0)
	deepEqual(t, editor.ID(), id)

	doc := must(db.Database("post").Get(post.ID()))
	deepEqual(t, doc.Body.Ivar("editor").ID, id)

	stored := must(Load[testUser](db, id))
	deepEqual(t, stored.Username, "fine")
}

func TestCommit_RootFailure(t *testing.T) {
	db := setupFlaky(t, func(body *Node) bool { return body.Class == "Post" })
	author := &testUser{Username: "kane"}
	post := &testPost{Title: "doomed", Author: author}

	if db.Commit(post) {
		t.Fatalf("Commit succeeded, wanted failure")
	}
	if !errors.Is(post.Err(), errDiskFull) {
		t.Fatalf("post.Err() = %v, wanted errDiskFull", post.Err())
	}
	deepEqual(t, post.ID(), "")
	deepEqual(t, post.IsNew(), true)
	if author.ID() == "" {
		t.Errorf("** author was not saved before the root")
	}
	isempty(t, must(db.Database("post").IDs()))
}

func TestCommit_SelfReference(t *testing.T) {
	db := setup(t, Options{})
	post := &testPost{Title: "me"}
	post.Self = post
	ensure(db.CommitErr(post))
	isempty(t, post.Warnings())

	doc := must(db.Database("post").Get(post.ID()))
	deepEqual(t, doc.Body.Ivar("self").ID, post.ID())

	loaded := must(Load[testPost](db, post.ID()))
	if loaded.Self != loaded {
		t.Fatalf("loaded.Self = %p, wanted %p", loaded.Self, loaded)
	}
}

func TestCommit_BackReference(t *testing.T) {
	db := setup(t, Options{})
	post := &testPost{Title: "thread"}
	post.Comments = []*testComment{{Body: "hi", Post: post}, {Body: "there", Post: post}}
	ensure(db.CommitErr(post))

	loaded := must(Load[testPost](db, post.ID()))
	deepEqual(t, len(loaded.Comments), 2)
	for i, c := range loaded.Comments {
		if c.Post != loaded {
			t.Errorf("** comment %d points at %p, wanted %p", i, c.Post, loaded)
		}
	}
}

func TestCommit_SharedExternalSavedOnce(t *testing.T) {
	db := setup(t, Options{})
	var puts int
	db.OnChange(func(chg *Change) {
		if chg.Database() == "user" && chg.Op() == OpPut {
			puts++
		}
	})
	author := &testUser{Username: "kane"}
	post := &testPost{
		Title:    "shared",
		Author:   author,
		Editor:   RefTo(author),
		Comments: []*testComment{{Body: "a", Author: author}},
	}
	ensure(db.CommitErr(post))
	deepEqual(t, puts, 1)

	doc := must(db.Database("post").Get(post.ID()))
	deepEqual(t, doc.Body.Ivar("editor").ID, author.ID())
}

func TestCommit_Changes(t *testing.T) {
	db := setup(t, Options{})
	var got []string
	db.OnChange(func(chg *Change) {
		got = append(got, chg.Op().String()+" "+chg.Database()+" "+chg.Attachment())
	})

	post := &testPost{Title: "news", Author: &testUser{Username: "kane"}, Cover: NewFile("cover.txt", []byte("x"))}
	ensure(db.CommitErr(post))
	ensure(db.Delete(post))
	deepEqual(t, got, []string{
		"put user ",
		"attach post cover.txt",
		"put post ",
		"delete post ",
	})
}

func TestCommit_NotAnObject(t *testing.T) {
	db := setup(t, Options{})
	type stray struct{ Doc }
	err := db.CommitErr(&stray{})
	var ce *ClassificationError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, wanted *ClassificationError", err)
	}
}
