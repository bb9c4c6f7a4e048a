package aqua

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

var objectType = reflect.TypeFor[Object]()

// Registry maps class names and Go types to their Type descriptions.
//
// Class name resolutions are memoized in a read-through cache that lives as
// long as the registry and is never invalidated. A Registry is safe for
// concurrent use once types are registered.
type Registry struct {
	mu               sync.RWMutex
	types            []*Type
	typesByName      map[string]*Type
	typesByGoType    map[reflect.Type]*Type
	typesByKind      map[reflect.Kind]*Type
	resolved         sync.Map // string => *Type
	resolvedByGoType sync.Map // reflect.Type => *Type
	resolveMisses    atomic.Int64
}

func NewRegistry() *Registry {
	reg := &Registry{
		typesByName:   make(map[string]*Type),
		typesByGoType: make(map[reflect.Type]*Type),
		typesByKind:   make(map[reflect.Kind]*Type),
	}
	registerBuiltins(reg)
	return reg
}

func (reg *Registry) Types() []*Type {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return append([]*Type(nil), reg.types...)
}

func (reg *Registry) addType(typ *Type) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if typ.name == stubClass || typ.name == fileStubClass {
		panic(fmt.Errorf("type name %q is reserved", typ.name))
	}
	if reg.typesByName[typ.name] != nil {
		panic(fmt.Errorf("type %q already registered", typ.name))
	}
	if typ.goType != nil && reg.typesByGoType[typ.goType] != nil {
		panic(fmt.Errorf("Go type %v already registered as %s", typ.goType, reg.typesByGoType[typ.goType].name))
	}
	typ.reg = reg
	reg.types = append(reg.types, typ)
	reg.typesByName[typ.name] = typ
	if typ.goType != nil {
		reg.typesByGoType[typ.goType] = typ
	}
	if typ.valueType != nil {
		reg.typesByGoType[typ.valueType] = typ
	}
}

func (reg *Registry) aliasGoType(rt reflect.Type, typ *Type) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.typesByGoType[rt] = typ
}

func (reg *Registry) setKindFallback(k reflect.Kind, typ *Type) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.typesByKind[k] = typ
}

// TypeNamed returns the type registered under name, or nil.
func (reg *Registry) TypeNamed(name string) *Type {
	typ, _ := reg.Resolve(name)
	return typ
}

// Resolve returns the type for a stored class name. Names match exactly.
func (reg *Registry) Resolve(name string) (*Type, error) {
	if v, ok := reg.resolved.Load(name); ok {
		return v.(*Type), nil
	}
	reg.mu.RLock()
	typ := reg.typesByName[name]
	reg.mu.RUnlock()
	reg.resolveMisses.Add(1)
	if typ == nil {
		return nil, &UnknownTypeError{Class: name}
	}
	actual, _ := reg.resolved.LoadOrStore(name, typ)
	return actual.(*Type), nil
}

// ResolveMisses returns how many class name lookups missed the resolution
// cache.
func (reg *Registry) ResolveMisses() int64 {
	return reg.resolveMisses.Load()
}

// TypeOf returns the type that packs v, or nil if v has none.
func (reg *Registry) TypeOf(v any) *Type {
	if v == nil {
		return reg.TypeNamed("Nil")
	}
	return reg.typeFor(reflect.TypeOf(v))
}

func (reg *Registry) typeFor(rt reflect.Type) *Type {
	if v, ok := reg.resolvedByGoType.Load(rt); ok {
		return v.(*Type)
	}
	typ := reg.typeForWithoutCache(rt)
	if typ == nil {
		return nil
	}
	actual, _ := reg.resolvedByGoType.LoadOrStore(rt, typ)
	return actual.(*Type)
}

func (reg *Registry) typeForWithoutCache(rt reflect.Type) *Type {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if typ := reg.typesByGoType[rt]; typ != nil {
		return typ
	}
	k := rt.Kind()
	if k == reflect.Slice && rt.Elem().Kind() == reflect.Uint8 {
		return reg.typesByName["Bytes"]
	}
	return reg.typesByKind[k]
}

// Bind returns a Responder answering the registered methods and fields of
// obj.
func (reg *Registry) Bind(obj any) (Responder, error) {
	switch obj := obj.(type) {
	case Responder:
		return obj, nil
	case *File:
		return responderFunc(obj.respond), nil
	}
	typ := reg.TypeOf(obj)
	if typ == nil {
		return nil, classificationErrf(obj, nil, "type is not registered")
	}
	return responderFunc(func(name string) (any, error) {
		return typ.Respond(obj, name)
	}), nil
}

// Responder answers named capabilities. Stubs and bound objects implement
// it, so callers need not care whether an external has been loaded.
type Responder interface {
	Respond(name string) (any, error)
}

type responderFunc func(name string) (any, error)

func (f responderFunc) Respond(name string) (any, error) {
	return f(name)
}
