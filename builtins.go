package aqua

import (
	"encoding/base64"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"time"
)

func registerBuiltins(reg *Registry) {
	nilType := newType("Nil", nil)
	nilType.initFn = func(any) (any, error) { return "", nil }
	nilType.fromStored = func(any) (any, error) { return nil, nil }
	reg.addType(nilType)

	boolType := newType("Bool", reflect.TypeFor[bool]())
	boolType.initFn = func(v any) (any, error) {
		return strconv.FormatBool(reflect.ValueOf(v).Bool()), nil
	}
	boolType.fromStored = func(init any) (any, error) {
		s, err := initString("Bool", init)
		if err != nil {
			return nil, err
		}
		return strconv.ParseBool(s)
	}
	reg.addType(boolType)
	reg.setKindFallback(reflect.Bool, boolType)

	addInt[int](reg, "Int")
	addInt[int8](reg, "Int8")
	addInt[int16](reg, "Int16")
	addInt[int32](reg, "Int32")
	addInt[int64](reg, "Int64")
	addUint[uint](reg, "Uint")
	addUint[uint8](reg, "Uint8")
	addUint[uint16](reg, "Uint16")
	addUint[uint32](reg, "Uint32")
	addUint[uint64](reg, "Uint64")
	addUint[uintptr](reg, "Uintptr")
	addFloat[float32](reg, "Float32")
	addFloat[float64](reg, "Float")

	addTextType(reg, "BigInt", func(v *big.Int) string { return v.String() }, func(s string) (*big.Int, error) {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		return n, nil
	})
	addTextType(reg, "Rational", func(v *big.Rat) string { return v.String() }, func(s string) (*big.Rat, error) {
		r, ok := new(big.Rat).SetString(s)
		if !ok {
			return nil, fmt.Errorf("invalid rational %q", s)
		}
		return r, nil
	})
	addTextType(reg, "Time", func(v time.Time) string { return v.Format(time.RFC3339Nano) }, func(s string) (time.Time, error) {
		return time.Parse(time.RFC3339Nano, s)
	})
	addTextType(reg, "Duration", func(v time.Duration) string { return v.String() }, time.ParseDuration)
	addTextType(reg, "Bytes", base64.StdEncoding.EncodeToString, base64.StdEncoding.DecodeString)

	arrayType := newType("Array", reflect.TypeFor[[]any]())
	arrayType.initFn = func(v any) (any, error) { return v, nil }
	arrayType.fromInitFn = func(init any) (any, error) {
		items, ok := init.([]any)
		if !ok {
			return nil, fmt.Errorf("Array: init is %T, wanted a list", init)
		}
		return items, nil
	}
	reg.addType(arrayType)
	reg.setKindFallback(reflect.Slice, arrayType)
	reg.setKindFallback(reflect.Array, arrayType)

	hashType := newType("Hash", reflect.TypeFor[map[string]any]())
	hashType.initFn = func(v any) (any, error) { return v, nil }
	hashType.fromInitFn = func(init any) (any, error) {
		switch init.(type) {
		case map[string]any, map[any]any:
			return init, nil
		default:
			return nil, fmt.Errorf("Hash: init is %T, wanted a map", init)
		}
	}
	reg.addType(hashType)
	reg.aliasGoType(reflect.TypeFor[map[any]any](), hashType)
	reg.setKindFallback(reflect.Map, hashType)
}

func addInt[T ~int | ~int8 | ~int16 | ~int32 | ~int64](reg *Registry, name string) {
	rt := reflect.TypeFor[T]()
	typ := newType(name, rt)
	typ.initFn = func(v any) (any, error) {
		return strconv.FormatInt(reflect.ValueOf(v).Int(), 10), nil
	}
	typ.fromInitFn = func(init any) (any, error) {
		s, err := initString(name, init)
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(s, 10, rt.Bits())
		if err != nil {
			return nil, err
		}
		return T(n), nil
	}
	reg.addType(typ)
	reg.setKindFallback(rt.Kind(), typ)
}

func addUint[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr](reg *Registry, name string) {
	rt := reflect.TypeFor[T]()
	typ := newType(name, rt)
	typ.initFn = func(v any) (any, error) {
		return strconv.FormatUint(reflect.ValueOf(v).Uint(), 10), nil
	}
	typ.fromInitFn = func(init any) (any, error) {
		s, err := initString(name, init)
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseUint(s, 10, rt.Bits())
		if err != nil {
			return nil, err
		}
		return T(n), nil
	}
	reg.addType(typ)
	reg.setKindFallback(rt.Kind(), typ)
}

func addFloat[T ~float32 | ~float64](reg *Registry, name string) {
	rt := reflect.TypeFor[T]()
	typ := newType(name, rt)
	typ.initFn = func(v any) (any, error) {
		return strconv.FormatFloat(reflect.ValueOf(v).Float(), 'g', -1, rt.Bits()), nil
	}
	typ.fromInitFn = func(init any) (any, error) {
		s, err := initString(name, init)
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(s, rt.Bits())
		if err != nil {
			return nil, err
		}
		return T(f), nil
	}
	reg.addType(typ)
	reg.setKindFallback(rt.Kind(), typ)
}

// addTextType registers a type whose init payload is a single string.
func addTextType[T any](reg *Registry, name string, format func(v T) string, parse func(s string) (T, error)) {
	rt := reflect.TypeFor[T]()
	typ := newType(name, rt)
	typ.initFn = func(v any) (any, error) {
		tv, ok := v.(T)
		if !ok {
			rv := reflect.ValueOf(v)
			if !rv.IsValid() || !rv.Type().ConvertibleTo(rt) {
				return nil, fmt.Errorf("%s: cannot format %T", name, v)
			}
			tv = rv.Convert(rt).Interface().(T)
		}
		return format(tv), nil
	}
	typ.fromInitFn = func(init any) (any, error) {
		s, err := initString(name, init)
		if err != nil {
			return nil, err
		}
		return parse(s)
	}
	reg.addType(typ)
}

func initString(class string, init any) (string, error) {
	s, ok := init.(string)
	if !ok {
		return "", fmt.Errorf("%s: init is %T, wanted a string", class, init)
	}
	return s, nil
}
