package codec

// Codec converts between a stored value S and an edited value E.
//
// Decode must succeed for every S that Encode produced. It may also accept
// legacy stored values that Encode would never emit.
type Codec[S, E any] interface {
	// Decode converts a stored value into its edited form.
	Decode(stored S) (E, error)
	// Encode validates an edited value and converts it for storage.
	Encode(edited E) (S, error)
}

// Identity stores values as they are edited.
type Identity[T any] struct{}

// Decode returns stored unchanged.
func (Identity[T]) Decode(stored T) (T, error) { return stored, nil }

// Encode returns edited unchanged.
func (Identity[T]) Encode(edited T) (T, error) { return edited, nil }

// Check validates, and may normalize, an edited value.
type Check[E any] func(E) (E, error)

// Predicate turns a validator function into a Check. A non-nil error from
// fn becomes a ValidationError with CodeRejected unless fn already returned
// a ValidationError.
func Predicate[E any](fn func(E) error) Check[E] {
	return func(v E) (E, error) {
		if err := fn(v); err != nil {
			if ve, ok := err.(*ValidationError); ok {
				return v, ve
			}
			return v, &ValidationError{
				Code:    CodeRejected,
				Message: err.Error(),
				Value:   v,
				Err:     err,
			}
		}
		return v, nil
	}
}

type chained[S, E any] struct {
	base   Codec[S, E]
	checks []Check[E]
}

// Chain layers checks on top of c. Encode runs the checks before c.Encode;
// Decode runs them after c.Decode so stored values that no longer satisfy
// the checks are reported (or normalized, for clamping checks).
func Chain[S, E any](c Codec[S, E], checks ...Check[E]) Codec[S, E] {
	if len(checks) == 0 {
		return c
	}
	return chained[S, E]{base: c, checks: append([]Check[E](nil), checks...)}
}

func (c chained[S, E]) Decode(stored S) (E, error) {
	v, err := c.base.Decode(stored)
	if err != nil {
		return v, err
	}
	return c.run(v)
}

func (c chained[S, E]) Encode(edited E) (S, error) {
	v, err := c.run(edited)
	if err != nil {
		var zero S
		return zero, err
	}
	return c.base.Encode(v)
}

func (c chained[S, E]) run(v E) (E, error) {
	for _, check := range c.checks {
		var err error
		if v, err = check(v); err != nil {
			return v, err
		}
	}
	return v, nil
}
