package aqua

import "reflect"

// strategy is the closed set of ways a value can be packed.
type strategy uint8

const (
	strategyPrimitive strategy = iota
	strategyTypedInit
	strategyEmbedded
	strategyExternal
	strategyStubbed
	strategyAttachment
	strategyPlain
)

var strategyNames = [...]string{"primitive", "typed-init", "embedded", "external", "stubbed", "attachment", "plain"}

func (s strategy) String() string {
	return strategyNames[s]
}

type classification struct {
	strategy strategy
	typ      *Type
	value    any
	stub     *Stub // for strategyStubbed
}

// classify decides how v is packed. The first matching rule wins:
//
//  1. strings (and string kinds) are primitives;
//  2. loaded refs and resolved stubs classify as their target, unresolved
//     ones are re-packed as stubs;
//  3. objects other than the pack root become externals when they are
//     already being packed higher up or when their policy says so;
//  4. types with an init codec pack as typed nodes;
//  5. attachables become attachments;
//  6. embedded objects and registered vanilla types pack as plain nodes.
func (p *packer) classify(v any) (classification, error) {
	if isNil(v) {
		return classification{strategy: strategyTypedInit, typ: p.nilType, value: nil}, nil
	}
	if _, ok := v.(string); ok {
		return classification{strategy: strategyPrimitive, value: v}, nil
	}

	switch r := v.(type) {
	case *Stub:
		if d, ok := r.delegateIfResolved(); ok {
			return p.classify(d)
		}
		return classification{strategy: strategyStubbed, stub: r}, nil
	case reference:
		target, stub := r.target()
		if stub != nil {
			return classification{strategy: strategyStubbed, stub: stub}, nil
		}
		return p.classify(target)
	}

	rt := reflect.TypeOf(v)
	if rt.Kind() == reflect.String {
		return classification{strategy: strategyPrimitive, value: reflect.ValueOf(v).String()}, nil
	}

	typ := p.reg.typeFor(rt)

	if obj, ok := v.(Object); ok && typ != nil && typ.isObject {
		switch {
		case p.packing[obj]:
			return classification{strategy: strategyExternal, typ: typ, value: obj}, nil
		case obj == p.root:
		case typ.policy.stub:
			return classification{strategy: strategyExternal, typ: typ, value: obj}, nil
		case typ.initFn == nil:
			return classification{strategy: strategyEmbedded, typ: typ, value: v}, nil
		}
	}

	if typ != nil && typ.initFn != nil {
		return classification{strategy: strategyTypedInit, typ: typ, value: v}, nil
	}
	if _, ok := v.(Attachable); ok {
		return classification{strategy: strategyAttachment, value: v}, nil
	}
	if typ != nil && typ.newFn != nil {
		return classification{strategy: strategyPlain, typ: typ, value: v}, nil
	}
	return classification{}, classificationErrf(v, nil, "no packing strategy; register it with DefineType")
}
