package aqua

import (
	"fmt"
	"reflect"
	"strings"
)

// Policy decides how references to an Object type are packed: inline, or as
// a stub pointing at a separately stored document.
type Policy struct {
	stub    bool
	methods []string
}

func (p Policy) IsStub() bool      { return p.stub }
func (p Policy) Methods() []string { return p.methods }

type field struct {
	name   string
	goType reflect.Type
	get    func(obj any) any
	set    func(obj any, v any) error
}

type method struct {
	name string
	call func(obj any) any
}

// Type describes how values of one Go type are packed and unpacked.
type Type struct {
	reg       *Registry
	name      string
	goType    reflect.Type
	valueType reflect.Type // T for types registered as *T
	database  string
	isObject  bool
	policy    Policy

	fields       []*field
	fieldsByName map[string]*field
	methods      map[string]*method

	newFn      func() any
	initFn     func(v any) (any, error)
	fromInitFn func(init any) (any, error)
	fromStored func(init any) (any, error)
}

func newType(name string, goType reflect.Type) *Type {
	return &Type{
		name:         name,
		goType:       goType,
		database:     strings.ToLower(name),
		fieldsByName: make(map[string]*field),
		methods:      make(map[string]*method),
	}
}

func (typ *Type) Name() string         { return typ.name }
func (typ *Type) GoType() reflect.Type { return typ.goType }
func (typ *Type) Database() string     { return typ.database }
func (typ *Type) IsObject() bool       { return typ.isObject }
func (typ *Type) Policy() Policy       { return typ.policy }
func (typ *Type) HasInit() bool        { return typ.initFn != nil }
func (typ *Type) String() string       { return typ.name }
func (typ *Type) Registry() *Registry  { return typ.reg }

func (typ *Type) FieldNames() []string {
	names := make([]string, len(typ.fields))
	for i, f := range typ.fields {
		names[i] = f.name
	}
	return names
}

// New returns a zero instance of the type.
func (typ *Type) New() (any, error) {
	if typ.newFn == nil {
		return nil, &UnknownTypeError{Class: typ.name, Err: fmt.Errorf("no default constructor")}
	}
	return typ.newFn(), nil
}

// FromInit builds a value from an unpacked init payload.
func (typ *Type) FromInit(init any) (any, error) {
	if typ.fromStored != nil {
		return typ.fromStored(init)
	}
	if typ.fromInitFn == nil {
		return nil, &UnknownTypeError{Class: typ.name, Err: ErrMissingInit}
	}
	return typ.fromInitFn(init)
}

// Respond returns the value of the named method or field of obj.
func (typ *Type) Respond(obj any, name string) (any, error) {
	obj = typ.addressable(obj)
	if m := typ.methods[name]; m != nil {
		return m.call(obj), nil
	}
	if f := typ.fieldsByName[name]; f != nil {
		return f.get(obj), nil
	}
	return nil, unknownCapabilityErrf(typ.name, name)
}

func (typ *Type) addField(f *field) {
	if typ.fieldsByName[f.name] != nil {
		panic(fmt.Errorf("type %s already has field %q", typ.name, f.name))
	}
	typ.fields = append(typ.fields, f)
	typ.fieldsByName[f.name] = f
}

func (typ *Type) addMethod(m *method) {
	if typ.methods[m.name] != nil {
		panic(fmt.Errorf("type %s already has method %q", typ.name, m.name))
	}
	typ.methods[m.name] = m
}

func (typ *Type) validate() {
	for _, name := range typ.policy.methods {
		if typ.methods[name] == nil && typ.fieldsByName[name] == nil {
			panic(fmt.Errorf("type %s: cached method %q is neither a method nor a field", typ.name, name))
		}
	}
	if typ.policy.stub && !typ.isObject {
		panic(fmt.Errorf("type %s: only objects embedding aqua.Doc can be stored as stubs", typ.name))
	}
	if (typ.initFn == nil) != (typ.fromInitFn == nil) {
		panic(fmt.Errorf("type %s: init needs both directions", typ.name))
	}
}

// addressable turns a struct value of a type registered by pointer into a
// pointer to a copy, so field accessors can be applied.
func (typ *Type) addressable(v any) any {
	if typ.valueType == nil || v == nil {
		return v
	}
	rv := reflect.ValueOf(v)
	if rv.Type() != typ.valueType {
		return v
	}
	ptr := reflect.New(typ.valueType)
	ptr.Elem().Set(rv)
	return ptr.Interface()
}
