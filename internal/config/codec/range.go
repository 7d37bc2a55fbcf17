package codec

import (
	"cmp"
	"fmt"
	"reflect"
)

// Policy selects how ordered values outside their bounds are handled.
type Policy uint8

const (
	// PolicyReject refuses out-of-range values.
	PolicyReject Policy = iota
	// PolicyClamp moves out-of-range values to the nearest bound.
	PolicyClamp
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicyClamp:
		return "clamp"
	default:
		return "unknown"
	}
}

// Bounded returns a Check that keeps values within [min, max].
// NaN is always rejected.
func Bounded[T cmp.Ordered](min, max T, policy Policy) Check[T] {
	return func(v T) (T, error) {
		if v != v {
			return v, invalid(CodeMalformed, v, "not a number")
		}
		switch {
		case v < min:
			if policy == PolicyClamp {
				return min, nil
			}
			return v, invalid(CodeOutOfRange, v, "less than minimum %v", min)
		case v > max:
			if policy == PolicyClamp {
				return max, nil
			}
			return v, invalid(CodeOutOfRange, v, "greater than maximum %v", max)
		}
		return v, nil
	}
}

// Range returns an identity codec bounded to [min, max].
func Range[T cmp.Ordered](min, max T, policy Policy) Codec[T, T] {
	return Chain[T, T](Identity[T]{}, Bounded(min, max, policy))
}

// OrderedBounds is Bounded for types only known at run time. It fails with
// ErrNotOrderable when E is not an integer, float or string kind, and when
// min is greater than max.
func OrderedBounds[E any](min, max E, policy Policy) (Check[E], error) {
	c, err := compare(min, max)
	if err != nil {
		return nil, err
	}
	if c > 0 {
		return nil, fmt.Errorf("range minimum %v is greater than maximum %v", min, max)
	}
	return func(v E) (E, error) {
		if rv := reflect.ValueOf(v); rv.CanFloat() && rv.Float() != rv.Float() {
			return v, invalid(CodeMalformed, v, "not a number")
		}
		if lo, _ := compare(v, min); lo < 0 {
			if policy == PolicyClamp {
				return min, nil
			}
			return v, invalid(CodeOutOfRange, v, "less than minimum %v", min)
		}
		if hi, _ := compare(v, max); hi > 0 {
			if policy == PolicyClamp {
				return max, nil
			}
			return v, invalid(CodeOutOfRange, v, "greater than maximum %v", max)
		}
		return v, nil
	}, nil
}

// Orderable reports whether values of type E can be range-checked.
func Orderable[E any]() bool {
	var zero E
	_, err := compare(zero, zero)
	return err == nil
}

// compare orders two values of the same basic kind.
func compare(a, b any) (int, error) {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !ra.IsValid() || !rb.IsValid() || ra.Kind() != rb.Kind() {
		return 0, fmt.Errorf("%w: %T", ErrNotOrderable, a)
	}
	switch ra.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(ra.Int(), rb.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(ra.Uint(), rb.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(ra.Float(), rb.Float()), nil
	case reflect.String:
		return cmp.Compare(ra.String(), rb.String()), nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotOrderable, a)
	}
}
