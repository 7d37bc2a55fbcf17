package codec

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var equalOpts = []cmp.Option{
	cmpopts.EquateEmpty(),
	cmpopts.EquateNaNs(),
	cmp.Exporter(func(reflect.Type) bool { return true }),
}

// Equal reports structural equality of two stored values. Nil and empty
// slices or maps compare equal, as do two NaNs.
func Equal(a, b any) bool {
	return cmp.Equal(a, b, equalOpts...)
}

// Clone returns a deep copy of a stored value. Maps, slices and pointers are
// copied; other values are returned as is.
func Clone(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return cloneMap(t)
	case []any:
		return cloneSlice(t)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer:
		return cloneValue(rv).Interface()
	default:
		return v
	}
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = Clone(v)
	}
	return dst
}

func cloneSlice(src []any) []any {
	if src == nil {
		return nil
	}
	dst := make([]any, len(src))
	for i, v := range src {
		dst[i] = Clone(v)
	}
	return dst
}

func cloneValue(rv reflect.Value) reflect.Value {
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return rv
		}
		dst := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			dst.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return dst
	case reflect.Slice:
		if rv.IsNil() {
			return rv
		}
		dst := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			dst.Index(i).Set(cloneValue(rv.Index(i)))
		}
		return dst
	case reflect.Pointer:
		if rv.IsNil() {
			return rv
		}
		dst := reflect.New(rv.Elem().Type())
		dst.Elem().Set(cloneValue(rv.Elem()))
		return dst
	case reflect.Interface:
		if rv.IsNil() {
			return rv
		}
		c := cloneValue(rv.Elem())
		out := reflect.New(rv.Type()).Elem()
		out.Set(c)
		return out
	default:
		return rv
	}
}

// EqualLoose reports whether a and b have the same JSON encoding, so values
// read back from different stores compare equal regardless of numeric
// width or slice element type. Unencodable values fall back to Equal.
func EqualLoose(a, b any) bool {
	if Equal(a, b) {
		return true
	}
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
