package aqua

import (
	"fmt"
	"reflect"
)

// refBuilder is implemented by *Ref[T]; a nil receiver builds a new ref from
// an unpacked value.
type refBuilder interface {
	refFrom(v any) (any, error)
}

var refBuilderType = reflect.TypeFor[refBuilder]()

// assign converts an unpacked value into the declared field type F.
func assign[F any](v any) (F, error) {
	var zero F
	if v == nil {
		return zero, nil
	}
	if fv, ok := v.(F); ok {
		return fv, nil
	}
	rv, err := convertValue(v, reflect.TypeFor[F]())
	if err != nil {
		return zero, err
	}
	return rv.Interface().(F), nil
}

func convertValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	if t.Implements(refBuilderType) {
		r, err := reflect.Zero(t).Interface().(refBuilder).refFrom(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(r), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if s, ok := v.(*Stub); ok {
		d, err := s.Resolve()
		if err != nil {
			return reflect.Value{}, err
		}
		return convertValue(d, t)
	}

	switch {
	case rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Type().Elem().AssignableTo(t):
		return rv.Elem(), nil
	case t.Kind() == reflect.Pointer && rv.Type().AssignableTo(t.Elem()):
		p := reflect.New(t.Elem())
		p.Elem().Set(rv)
		return p, nil
	}

	switch t.Kind() {
	case reflect.Slice:
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			n := rv.Len()
			out := reflect.MakeSlice(t, n, n)
			for i := range n {
				ev, err := convertValue(rv.Index(i).Interface(), t.Elem())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("[%d]: %w", i, err)
				}
				out.Index(i).Set(ev)
			}
			return out, nil
		}
	case reflect.Array:
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			if rv.Len() != t.Len() {
				return reflect.Value{}, fmt.Errorf("cannot assign %d items to %v", rv.Len(), t)
			}
			out := reflect.New(t).Elem()
			for i := range rv.Len() {
				ev, err := convertValue(rv.Index(i).Interface(), t.Elem())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("[%d]: %w", i, err)
				}
				out.Index(i).Set(ev)
			}
			return out, nil
		}
	case reflect.Map:
		if rv.Kind() == reflect.Map {
			out := reflect.MakeMapWithSize(t, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				kv, err := convertValue(iter.Key().Interface(), t.Key())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("key %v: %w", iter.Key(), err)
				}
				ev, err := convertValue(iter.Value().Interface(), t.Elem())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("%v: %w", iter.Key(), err)
				}
				out.SetMapIndex(kv, ev)
			}
			return out, nil
		}
	}

	if isNumberKind(rv.Kind()) && isNumberKind(t.Kind()) {
		return rv.Convert(t), nil
	}
	if rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot assign %T to %v", v, t)
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	if r, ok := v.(reference); ok && !isNilPointer(v) {
		obj, stub := r.target()
		return obj == nil && stub == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func isComparable(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}
