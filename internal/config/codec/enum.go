package codec

import (
	"fmt"
	"strings"
)

// Enum stores one of a closed set of values by name. Names match
// case-insensitively on decode so hand-edited files keep working.
type Enum[T comparable] struct {
	names  []string
	values []T
}

// NewEnum creates an enum codec naming each value with name.
func NewEnum[T comparable](name func(T) string, values ...T) Enum[T] {
	e := Enum[T]{
		names:  make([]string, len(values)),
		values: append([]T(nil), values...),
	}
	for i, v := range values {
		e.names[i] = name(v)
	}
	return e
}

// StringerEnum creates an enum codec named by each value's String method.
func StringerEnum[T interface {
	comparable
	fmt.Stringer
}](values ...T) Enum[T] {
	return NewEnum(func(v T) string { return v.String() }, values...)
}

// Decode finds the value whose name matches stored.
func (e Enum[T]) Decode(stored string) (T, error) {
	for i, name := range e.names {
		if strings.EqualFold(name, stored) {
			return e.values[i], nil
		}
	}
	var zero T
	return zero, invalid(CodeInvalidEnum, stored, "must be one of %s", strings.Join(e.names, ", "))
}

// Encode returns the name of edited.
func (e Enum[T]) Encode(edited T) (string, error) {
	for i, v := range e.values {
		if v == edited {
			return e.names[i], nil
		}
	}
	return "", invalid(CodeInvalidEnum, edited, "must be one of %s", strings.Join(e.names, ", "))
}

// Values returns the allowed values in declaration order.
func (e Enum[T]) Values() []T {
	return append([]T(nil), e.values...)
}

// Names returns the stored names in declaration order.
func (e Enum[T]) Names() []string {
	return append([]string(nil), e.names...)
}
