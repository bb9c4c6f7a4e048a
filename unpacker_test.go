package aqua

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestUnpack_FromJSON(t *testing.T) {
	reg := newTestRegistry()
	n := must(ParseNode([]byte(`{"class":"Shape","ivars":{
		"name":"square",
		"points":{"class":"Array","init":[{"class":"Point","ivars":{"x":{"class":"Int","init":"7"}}}]},
		"groups":{"class":"Hash","init":{"a":{"class":"Array","init":[{"class":"Int","init":"1"}]}}}
	}}`)))
	a := must(reg.Unpack(n, UnpackContext{})).(*testShape)
	deepEqual(t, a, &testShape{
		Name:   "square",
		Points: []*testPoint{{X: 7}},
		Groups: map[string][]int{"a": {1}},
	})
}

func TestUnpack_UnknownClass(t *testing.T) {
	reg := newTestRegistry()
	n := PlainNode("Post")
	n.setIvar("title", StringNode("x"))
	n.setIvar("extra", PlainNode("Ghost"))

	_, err := reg.Unpack(n, UnpackContext{})
	var ue *UnknownTypeError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, wanted *UnknownTypeError", err)
	}
	deepEqual(t, ue.Class, "Ghost")
	deepEqual(t, ue.Path.String(), ".ivars.extra")
	if !isFatal(err) {
		t.Errorf("** isFatal = false, wanted true")
	}
}

func TestUnpack_MissingInit(t *testing.T) {
	reg := newTestRegistry()
	_, err := reg.Unpack(TypedNode("Int", nil), UnpackContext{})
	if !errors.Is(err, ErrMissingInit) {
		t.Fatalf("err = %v, wanted ErrMissingInit", err)
	}
	var ue *UnknownTypeError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %T, wanted *UnknownTypeError", err)
	}

	_, err = reg.Unpack(TypedNode("Point", StringNode("1,2")), UnpackContext{})
	if !errors.Is(err, ErrMissingInit) {
		t.Fatalf("err = %v, wanted ErrMissingInit for a type without an init codec", err)
	}
}

func TestUnpack_FromStored(t *testing.T) {
	reg := newTestRegistry()
	deepEqual(t, must(reg.Unpack(PlainNode("Nil"), UnpackContext{})), nil)
	deepEqual(t, must(reg.Unpack(TypedNode("Bool", StringNode("false")), UnpackContext{})), any(false))

	_, err := reg.Unpack(TypedNode("Bool", StringNode("maybe")), UnpackContext{})
	if err == nil {
		t.Fatalf("Unpack(Bool maybe) err = nil, wanted error")
	}
}

func TestUnpack_Fields(t *testing.T) {
	reg := newTestRegistry()

	t.Run("unknown fields are skipped", func(t *testing.T) {
		n := PlainNode("Point")
		n.setIvar("x", TypedNode("Int", StringNode("1")))
		n.setIvar("z", TypedNode("Int", StringNode("9")))
		deepEqual(t, must(reg.Unpack(n, UnpackContext{})), any(&testPoint{X: 1}))
	})

	t.Run("numbers convert to the field type", func(t *testing.T) {
		n := PlainNode("Point")
		n.setIvar("x", TypedNode("Int64", StringNode("3")))
		deepEqual(t, must(reg.Unpack(n, UnpackContext{})), any(&testPoint{X: 3}))
	})

	t.Run("mismatched value", func(t *testing.T) {
		n := PlainNode("Point")
		n.setIvar("y", StringNode("abc"))
		_, err := reg.Unpack(n, UnpackContext{})
		if err == nil || !strings.Contains(err.Error(), "Point.ivars.y") {
			t.Fatalf("err = %v, wanted an error naming Point.ivars.y", err)
		}
	})
}

func TestUnpack_ObjectKeysErrors(t *testing.T) {
	reg := newTestRegistry()

	init := MapNode()
	init.Entries.Set("/OBJECT_5", StringNode("x"))
	init.Entries.Set("/OBJECT_KEYS", ListNode(TypedNode("Int", StringNode("1"))))
	_, err := reg.Unpack(TypedNode("Hash", init), UnpackContext{})
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, wanted *DataError", err)
	}

	init = MapNode()
	init.Entries.Set("/OBJECT_0", StringNode("x"))
	init.Entries.Set("/OBJECT_KEYS", ListNode(TypedNode("Array", ListNode())))
	_, err = reg.Unpack(TypedNode("Hash", init), UnpackContext{})
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, wanted *DataError for an uncomparable key", err)
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg := newTestRegistry()
	typ := must(reg.Resolve("Point"))
	deepEqual(t, typ.Name(), "Point")
	deepEqual(t, typ.FieldNames(), []string{"x", "y"})
	deepEqual(t, typ.IsObject(), false)
	deepEqual(t, typ.Database(), "point")

	misses := reg.ResolveMisses()
	for range 3 {
		must(reg.Resolve("Point"))
	}
	deepEqual(t, reg.ResolveMisses(), misses)

	var ue *UnknownTypeError
	for _, name := range []string{"Ghost", "user", "USER"} {
		_, err := reg.Resolve(name)
		if !errors.As(err, &ue) || ue.Class != name {
			t.Fatalf("Resolve(%s) err = %v, wanted *UnknownTypeError", name, err)
		}
	}
	if reg.TypeNamed("Ghost") != nil {
		t.Errorf("** TypeNamed(Ghost) != nil")
	}

	user := reg.TypeNamed("User")
	deepEqual(t, user.IsObject(), true)
	deepEqual(t, user.Policy().IsStub(), true)
	deepEqual(t, user.Policy().Methods(), []string{"username"})
	if reg.TypeOf(&testUser{}) != user || reg.TypeOf(testUser{}) != user {
		t.Errorf("** TypeOf(user) did not find User")
	}
	deepEqual(t, reg.TypeOf(nil).Name(), "Nil")
	deepEqual(t, reg.TypeOf(int16(1)).Name(), "Int16")
	deepEqual(t, reg.TypeOf([]int{}).Name(), "Array")
}

func TestRegistry_DefinePanics(t *testing.T) {
	tests := []struct {
		name string
		f    func(reg *Registry)
	}{
		{"duplicate name", func(reg *Registry) {
			DefineType[testPoint](reg, "Shape", nil)
		}},
		{"reserved name", func(reg *Registry) {
			DefineType[testMoney](reg, "Stub", nil)
		}},
		{"unknown cached method", func(reg *Registry) {
			type other struct{ Doc }
			DefineType(reg, "Other", func(b *TypeBuilder[other]) { b.Stub("nope") })
		}},
		{"stub policy on a non-object", func(reg *Registry) {
			type vanilla struct{ N int }
			DefineType(reg, "Vanilla", func(b *TypeBuilder[vanilla]) { b.Stub() })
		}},
		{"duplicate field", func(reg *Registry) {
			type twice struct{ N int }
			DefineType(reg, "Twice", func(b *TypeBuilder[twice]) {
				Field(b, "n", func(v *twice) *int { return &v.N })
				Field(b, "n", func(v *twice) *int { return &v.N })
			})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("did not panic")
				}
			}()
			tt.f(newTestRegistry())
		})
	}
}

type testBundle struct {
	Doc
	Parts []any
}

func TestUnpack_TypedObjectOwnsItsInit(t *testing.T) {
	reg := newTestRegistry()
	DefineType(reg, "Bundle", func(b *TypeBuilder[testBundle]) {
		b.Init(func(x *testBundle) (any, error) {
			return x.Parts, nil
		}, func(init any) (*testBundle, error) {
			parts, ok := init.([]any)
			if !ok {
				return nil, fmt.Errorf("Bundle: init is %T", init)
			}
			return &testBundle{Parts: parts}, nil
		})
	})
	comment := PlainNode("Comment")
	comment.setIvar("body", StringNode("inner"))
	n := TypedNode("Bundle", ListNode(comment, FileStubNode("a.txt")))

	l := &countingLoader{files: map[string]*File{"b1/a.txt": NewFile("a.txt", []byte("alpha"))}}
	b := must(reg.Unpack(n, UnpackContext{ID: "b1", Loader: l})).(*testBundle)
	deepEqual(t, b.ID(), "b1")
	inner := b.Parts[0].(*testComment)
	deepEqual(t, inner.Body, "inner")
	deepEqual(t, inner.ID(), "")

	f := must(b.Parts[1].(*Stub).Resolve()).(*File)
	deepEqual(t, string(f.Bytes()), "alpha")
	deepEqual(t, l.attachmentLoads, 1)
}

func TestRegistry_ConcurrentResolve(t *testing.T) {
	reg := newTestRegistry()
	names := []string{"User", "Post", "Point", "Money", "Int", "Hash"}
	values := []any{&testUser{}, &testPoint{}, 7, 2.5, map[string]any{}, []any{}}
	before := reg.ResolveMisses()

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				name := names[i%len(names)]
				typ, err := reg.Resolve(name)
				if err != nil {
					errs <- err
					return
				}
				if typ.Name() != name {
					errs <- fmt.Errorf("Resolve(%s) = %s", name, typ.Name())
					return
				}
				if v := values[i%len(values)]; reg.TypeOf(v) == nil {
					errs <- fmt.Errorf("TypeOf(%T) = nil", v)
					return
				}
				rat, err := reg.Pack(&testPoint{X: i})
				if err != nil {
					errs <- err
					return
				}
				v, err := reg.Unpack(rat.Pack, UnpackContext{})
				if err != nil {
					errs <- err
					return
				}
				if p := v.(*testPoint); p.X != i {
					errs <- fmt.Errorf("round trip X = %d, wanted %d", p.X, i)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	// each name misses at most once per worker before the cache holds it
	if misses := reg.ResolveMisses() - before; misses > workers*int64(len(names)+1) {
		t.Errorf("** %d resolve misses, wanted at most %d", misses, workers*(len(names)+1))
	}
}
