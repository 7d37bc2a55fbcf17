package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/spf13/cast"
)

// Coerce converts a raw value read from a backing store into the stored type
// S. File formats disagree about numeric widths (TOML yields int64, JSON
// yields float64), so scalars go through cast and everything else through a
// JSON round trip. Maps are always normalized the JSON way so two maps with
// the same content compare equal regardless of where they came from.
//
// Conversions never lose information: fractional or out-of-range numbers
// are not accepted for integer types, and numbers are not accepted for bool.
func Coerce[S any](raw any) (S, error) {
	var out S
	if raw == nil {
		return out, invalid(CodeTypeMismatch, raw, "missing value")
	}

	var err error
	switch p := any(&out).(type) {
	case *string:
		*p, err = cast.ToStringE(raw)
	case *bool:
		if err = notNumeric(raw); err == nil {
			*p, err = cast.ToBoolE(raw)
		}
	case *int:
		if err = exactInt(raw, math.MinInt, math.MaxInt); err == nil {
			*p, err = cast.ToIntE(raw)
		}
	case *int32:
		if err = exactInt(raw, math.MinInt32, math.MaxInt32); err == nil {
			*p, err = cast.ToInt32E(raw)
		}
	case *int64:
		if err = exactInt(raw, math.MinInt64, math.MaxInt64); err == nil {
			*p, err = cast.ToInt64E(raw)
		}
	case *uint:
		if err = exactInt(raw, 0, math.MaxUint); err == nil {
			*p, err = cast.ToUintE(raw)
		}
	case *uint32:
		if err = exactInt(raw, 0, math.MaxUint32); err == nil {
			*p, err = cast.ToUint32E(raw)
		}
	case *uint64:
		if err = exactInt(raw, 0, math.MaxUint64); err == nil {
			*p, err = cast.ToUint64E(raw)
		}
	case *float32:
		*p, err = cast.ToFloat32E(raw)
	case *float64:
		*p, err = cast.ToFloat64E(raw)
	case *time.Duration:
		*p, err = cast.ToDurationE(raw)
	case *[]string:
		*p, err = cast.ToStringSliceE(raw)
	case *map[string]any:
		var m map[string]any
		if m, err = cast.ToStringMapE(raw); err == nil {
			err = jsonRoundTrip(m, p)
		}
	default:
		if v, ok := raw.(S); ok {
			return v, nil
		}
		err = jsonRoundTrip(raw, &out)
	}
	if err != nil {
		return out, &ValidationError{
			Code:    CodeTypeMismatch,
			Message: fmt.Sprintf("cannot convert %T to %s", raw, reflect.TypeFor[S]()),
			Value:   raw,
			Err:     err,
		}
	}
	return out, nil
}

var errInexact = errors.New("value does not fit")

// exactInt checks that raw names an integer within [lo, hi].
func exactInt(raw any, lo int64, hi uint64) error {
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Bool:
		return fmt.Errorf("%w: bool is not a number", errInexact)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %v is not a whole number", errInexact, f)
		}
		if f < float64(lo) || f > float64(hi) {
			return fmt.Errorf("%w: %v out of range", errInexact, f)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < lo || (n > 0 && uint64(n) > hi) {
			return fmt.Errorf("%w: %d out of range", errInexact, n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u > hi {
			return fmt.Errorf("%w: %d out of range", errInexact, u)
		}
	case reflect.String:
		if lo < 0 {
			n, err := cast.ToInt64E(raw)
			if err != nil {
				return err
			}
			return exactInt(n, lo, hi)
		}
		u, err := cast.ToUint64E(raw)
		if err != nil {
			return err
		}
		return exactInt(u, lo, hi)
	}
	return nil
}

// notNumeric rejects numbers for bool entries; only bools and strings such
// as "true" convert.
func notNumeric(raw any) error {
	switch reflect.ValueOf(raw).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return fmt.Errorf("%w: %v is not a bool", errInexact, raw)
	}
	return nil
}

func jsonRoundTrip(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
