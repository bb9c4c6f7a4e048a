package aqua

import (
	"fmt"
	"reflect"
)

type TypeBuilder[T any] struct {
	typ *Type
}

// DefineType registers *T under name. Fields, methods, the embedding policy
// and an optional init codec are declared inside f.
//
//	aqua.DefineType(reg, "User", func(b *aqua.TypeBuilder[User]) {
//		aqua.Field(b, "username", func(u *User) *string { return &u.Username })
//		b.Stub("username")
//	})
func DefineType[T any](reg *Registry, name string, f func(b *TypeBuilder[T])) *Type {
	ptrType := reflect.TypeFor[*T]()
	if ptrType.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("DefineType(%s): T must be a struct", name))
	}
	typ := newType(name, ptrType)
	typ.valueType = ptrType.Elem()
	typ.isObject = ptrType.Implements(objectType)
	typ.newFn = func() any {
		return new(T)
	}

	b := TypeBuilder[T]{
		typ: typ,
	}
	if f != nil {
		f(&b)
	}
	typ.validate()
	reg.addType(typ)
	return typ
}

// Field declares a stored field. Fields are packed in declaration order.
func Field[T, F any](b *TypeBuilder[T], name string, ptr func(obj *T) *F) {
	b.typ.addField(&field{
		name:   name,
		goType: reflect.TypeFor[F](),
		get: func(obj any) any {
			return *ptr(obj.(*T))
		},
		set: func(obj any, v any) error {
			fv, err := assign[F](v)
			if err != nil {
				return err
			}
			*ptr(obj.(*T)) = fv
			return nil
		},
	})
}

// Method declares a computed, zero-argument capability. Methods can be
// cached in stubs, see Stub.
func (b *TypeBuilder[T]) Method(name string, f func(obj *T) any) {
	b.typ.addMethod(&method{
		name: name,
		call: func(obj any) any {
			return f(obj.(*T))
		},
	})
}

// Embed packs references to this type inline. This is the default.
func (b *TypeBuilder[T]) Embed() {
	b.typ.policy = Policy{}
}

// Stub stores referenced instances as separate documents, leaving a stub
// that caches the results of the named methods or fields.
func (b *TypeBuilder[T]) Stub(methods ...string) {
	b.typ.policy = Policy{stub: true, methods: methods}
}

// Database overrides the database documents of this type are stored in.
func (b *TypeBuilder[T]) Database(name string) {
	b.typ.database = name
}

// Init declares a constructor codec: to produces the init payload (a string,
// slice or map) and from rebuilds the value from its unpacked form.
func (b *TypeBuilder[T]) Init(to func(obj *T) (any, error), from func(init any) (*T, error)) {
	b.typ.initFn = func(v any) (any, error) {
		return to(v.(*T))
	}
	b.typ.fromInitFn = func(init any) (any, error) {
		return from(init)
	}
}
