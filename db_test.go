package aqua

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

type testUser struct {
	Doc
	Username string
	Email    string
}

type testComment struct {
	Doc
	Body   string
	Author *testUser
	Post   *testPost
}

type testPost struct {
	Doc
	Title    string
	Author   *testUser
	Editor   *Ref[testUser]
	Tags     []string
	Meta     map[string]int
	Comments []*testComment
	Cover    *File
	Self     *testPost
	Extra    any
}

type testPoint struct {
	X, Y int
}

type testShape struct {
	Name   string
	Points []*testPoint
	Groups map[string][]int
}

type testMoney struct {
	Cents    int64
	Currency string
}

func newTestRegistry() *Registry {
	reg := NewRegistry()
	DefineType(reg, "User", func(b *TypeBuilder[testUser]) {
		Field(b, "username", func(u *testUser) *string { return &u.Username })
		Field(b, "email", func(u *testUser) *string { return &u.Email })
		b.Method("handle", func(u *testUser) any { return "@" + u.Username })
		b.Stub("username")
	})
	DefineType(reg, "Comment", func(b *TypeBuilder[testComment]) {
		Field(b, "body", func(c *testComment) *string { return &c.Body })
		Field(b, "author", func(c *testComment) **testUser { return &c.Author })
		Field(b, "post", func(c *testComment) **testPost { return &c.Post })
	})
	DefineType(reg, "Post", func(b *TypeBuilder[testPost]) {
		Field(b, "title", func(p *testPost) *string { return &p.Title })
		Field(b, "author", func(p *testPost) **testUser { return &p.Author })
		Field(b, "editor", func(p *testPost) **Ref[testUser] { return &p.Editor })
		Field(b, "tags", func(p *testPost) *[]string { return &p.Tags })
		Field(b, "meta", func(p *testPost) *map[string]int { return &p.Meta })
		Field(b, "comments", func(p *testPost) *[]*testComment { return &p.Comments })
		Field(b, "cover", func(p *testPost) **File { return &p.Cover })
		Field(b, "self", func(p *testPost) **testPost { return &p.Self })
		Field(b, "extra", func(p *testPost) *any { return &p.Extra })
	})
	DefineType(reg, "Point", func(b *TypeBuilder[testPoint]) {
		Field(b, "x", func(p *testPoint) *int { return &p.X })
		Field(b, "y", func(p *testPoint) *int { return &p.Y })
	})
	DefineType(reg, "Shape", func(b *TypeBuilder[testShape]) {
		Field(b, "name", func(s *testShape) *string { return &s.Name })
		Field(b, "points", func(s *testShape) *[]*testPoint { return &s.Points })
		Field(b, "groups", func(s *testShape) *map[string][]int { return &s.Groups })
	})
	DefineType(reg, "Money", func(b *TypeBuilder[testMoney]) {
		b.Init(func(m *testMoney) (any, error) {
			return fmt.Sprintf("%d %s", m.Cents, m.Currency), nil
		}, func(init any) (*testMoney, error) {
			s, ok := init.(string)
			if !ok {
				return nil, fmt.Errorf("Money: init is %T", init)
			}
			m := new(testMoney)
			_, err := fmt.Sscanf(s, "%d %s", &m.Cents, &m.Currency)
			return m, err
		})
	})
	return reg
}

// flakyStore fails to save documents matching fail.
type flakyStore struct {
	Store
	fail func(body *Node) bool
}

var errDiskFull = errors.New("disk full")

func (s *flakyStore) Put(id string, body *Node, rev string) (PutResult, error) {
	if s.fail(body) {
		return PutResult{}, storeErrf("flaky", id, "put", errDiskFull)
	}
	return s.Store.Put(id, body, rev)
}

func TestDB_CommitAndLoad(t *testing.T) {
	db := setup(t, Options{})
	author := &testUser{Username: "kane", Email: "kane@example.com"}
	post := &testPost{
		Title:  "Hello",
		Author: author,
		Tags:   []string{"go", "db"},
		Meta:   map[string]int{"views": 10, "likes": -2},
		Comments: []*testComment{
			{Body: "first", Author: author},
		},
	}
	if !db.Commit(post) {
		t.Fatalf("Commit failed: %v", post.Err())
	}
	if post.ID() == "" || post.Rev() == "" || post.IsNew() {
		t.Fatalf("post id/rev = %q/%q, wanted both set", post.ID(), post.Rev())
	}
	if author.ID() == "" || author.Rev() == "" {
		t.Fatalf("author id/rev = %q/%q, wanted both set", author.ID(), author.Rev())
	}
	isempty(t, post.Warnings())

	loaded := must(Load[testPost](db, post.ID()))
	deepEqual(t, loaded.Title, "Hello")
	deepEqual(t, loaded.Tags, []string{"go", "db"})
	deepEqual(t, loaded.Meta, map[string]int{"views": 10, "likes": -2})
	deepEqual(t, loaded.ID(), post.ID())
	deepEqual(t, loaded.Rev(), post.Rev())
	deepEqual(t, loaded.Author.Username, "kane")
	deepEqual(t, loaded.Author.Email, "kane@example.com")
	deepEqual(t, loaded.Author.ID(), author.ID())
	deepEqual(t, len(loaded.Comments), 1)
	deepEqual(t, loaded.Comments[0].Body, "first")
	if loaded.Comments[0].Author != loaded.Author {
		t.Errorf("** comment author is a separate object, wanted the same user as the post author")
	}
}

func TestDB_LoadUnknown(t *testing.T) {
	db := setup(t, Options{})
	_, err := db.Load("Post", "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load err = %v, wanted ErrNotFound", err)
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Database != "post" || se.ID != "nope" {
		t.Fatalf("Load err = %#v, wanted *StoreError for post/nope", err)
	}

	_, err = db.Load("Nonexistent", "x")
	var ue *UnknownTypeError
	if !errors.As(err, &ue) {
		t.Fatalf("Load err = %v, wanted *UnknownTypeError", err)
	}
}

func TestDB_ConflictingCommits(t *testing.T) {
	db := setup(t, Options{})
	post := &testPost{Title: "v1"}
	ensure(db.CommitErr(post))

	p1 := must(Load[testPost](db, post.ID()))
	p2 := must(Load[testPost](db, post.ID()))
	p1.Title = "v2"
	if !db.Commit(p1) {
		t.Fatalf("Commit(p1) failed: %v", p1.Err())
	}
	p2.Title = "v3"
	if db.Commit(p2) {
		t.Fatalf("Commit(p2) succeeded, wanted a conflict")
	}
	if !IsConflict(p2.Err()) {
		t.Fatalf("p2.Err() = %v, wanted ErrConflict", p2.Err())
	}
	deepEqual(t, p2.ID(), post.ID())

	err := db.CommitErr(p2)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("CommitErr = %v, wanted ErrConflict", err)
	}
	deepEqual(t, must(Load[testPost](db, post.ID())).Title, "v2")
}

func TestDB_Delete(t *testing.T) {
	db := setup(t, Options{})
	post := &testPost{Title: "bye", Cover: NewFile("cover.txt", []byte("cover"))}
	ensure(db.CommitErr(post))
	id := post.ID()

	ensure(db.Delete(post))
	if !post.IsNew() {
		t.Errorf("** IsNew() = false after Delete, wanted true")
	}
	_, err := db.Load("Post", id)
	if !IsNotFound(err) {
		t.Fatalf("Load after Delete err = %v, wanted ErrNotFound", err)
	}
	isempty(t, must(db.Database("post").AttachmentNames(id)))

	err = db.Delete(&testPost{})
	if !errors.Is(err, errEmptyID) {
		t.Fatalf("Delete(new) err = %v, wanted errEmptyID", err)
	}
}

func TestDB_Bolt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aqua.db")
	reg := newTestRegistry()

	db := must(Open(path, reg, Options{IsTesting: true, Encoding: MsgPack, Compression: CompressionZstd, IDs: KSIDs}))
	post := &testPost{
		Title:  "on disk",
		Author: &testUser{Username: "kane"},
		Cover:  NewFile("notes.txt", []byte(strings.Repeat("all work and no play ", 50))),
	}
	ensure(db.CommitErr(post))
	if db.Bolt() == nil {
		t.Fatalf("Bolt() = nil for an on-disk database")
	}
	db.Close()

	db = must(Open(path, reg, Options{IsTesting: true}))
	defer db.Close()
	loaded := must(Load[testPost](db, post.ID()))
	deepEqual(t, loaded.Title, "on disk")
	deepEqual(t, loaded.Author.Username, "kane")
	deepEqual(t, string(loaded.Cover.Bytes()), strings.Repeat("all work and no play ", 50))
	deepEqual(t, loaded.Cover.ContentType(), "text/plain; charset=utf-8")
	deepEqual(t, must(db.DatabaseNames()), []string{"post", "user"})
}

func TestDB_Encodings(t *testing.T) {
	for _, enc := range []Encoding{JSON, MsgPack} {
		t.Run(enc.String(), func(t *testing.T) {
			db := setup(t, Options{Encoding: enc})
			post := &testPost{Title: "x", Tags: []string{"a"}, Extra: map[any]any{1: "one", "two": 2.5}}
			ensure(db.CommitErr(post))
			loaded := must(Load[testPost](db, post.ID()))
			deepEqual(t, loaded.Extra, any(map[any]any{1: "one", "two": 2.5}))
		})
	}
}

func TestDB_Stats(t *testing.T) {
	db := setup(t, Options{})
	ensure(db.CommitErr(&testPost{Title: "a", Author: &testUser{Username: "u"}, Cover: NewFile("c.bin", []byte{1, 2, 3})}))
	ensure(db.CommitErr(&testPost{Title: "b"}))

	stats := must(db.Stats())
	deepEqual(t, len(stats), 2)
	deepEqual(t, stats[0].Name, "post")
	deepEqual(t, stats[0].Docs, 2)
	deepEqual(t, stats[0].Attachments, 1)
	deepEqual(t, stats[1].Name, "user")
	deepEqual(t, stats[1].Docs, 1)
	if stats[0].TotalSize() <= 0 {
		t.Errorf("** TotalSize() = %d, wanted > 0", stats[0].TotalSize())
	}
	if db.WriteCount.Load() == 0 || db.ReadCount.Load() == 0 {
		t.Errorf("** read/write counts = %d/%d, wanted both non-zero", db.ReadCount.Load(), db.WriteCount.Load())
	}
}

func TestDB_Dump(t *testing.T) {
	db := setup(t, Options{Encoding: MsgPack})
	post := &testPost{Title: "dumped", Cover: NewFile("c.txt", []byte("hi"))}
	post.SetID("p1")
	ensure(db.CommitErr(post))

	var buf strings.Builder
	ensure(db.Dump(&buf, DumpAll, "post"))
	out := buf.String()
	for _, want := range []string{
		"post (1 docs, 1 attachments)",
		`post/p1 = (` + post.Rev() + ` msgpack) {"class":"Post","ivars":{"title":"dumped","cover":{"class":"FileStub"`,
		"post/p1/c.txt: text/plain; charset=utf-8, 2 bytes, none, blake3-",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("** dump lacks %q:\n%s", want, out)
		}
	}
}

func setup(t testing.TB, opt Options) *DB {
	t.Helper()
	opt.IsTesting = true
	db := must(Open(InMemory, newTestRegistry(), opt))
	t.Cleanup(db.Close)
	return db
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isempty[T any, S ~[]T](t testing.TB, a S) {
	if len(a) > 0 {
		t.Helper()
		t.Errorf("** got %v, wanted empty slice", a)
	}
}

func isnil[T any, P ~*T](t testing.TB, a P) {
	if a != nil {
		t.Helper()
		t.Errorf("** got &%v, wanted nil", *a)
	}
}

func isnonnil[T any](t testing.TB, a *T) {
	if a == nil {
		t.Helper()
		t.Errorf("** got nil %T, wanted non-nil", a)
	}
}
