package codec

import "fmt"

// List applies an element codec to every element of a slice.
type List[S, E any] struct {
	Elem Codec[S, E]
	// MinLen and MaxLen bound the element count. Zero MaxLen means unbounded.
	MinLen int
	MaxLen int
}

// ListOf creates an unbounded list codec.
func ListOf[S, E any](elem Codec[S, E]) List[S, E] {
	return List[S, E]{Elem: elem}
}

// Decode decodes every element.
func (l List[S, E]) Decode(stored []S) ([]E, error) {
	if err := l.checkLen(stored, len(stored)); err != nil {
		return nil, err
	}
	out := make([]E, len(stored))
	for i, s := range stored {
		v, err := l.Elem.Decode(s)
		if err != nil {
			return nil, elementError(i, s, err)
		}
		out[i] = v
	}
	return out, nil
}

// Encode encodes every element. The first failing element is reported.
func (l List[S, E]) Encode(edited []E) ([]S, error) {
	if err := l.checkLen(edited, len(edited)); err != nil {
		return nil, err
	}
	out := make([]S, len(edited))
	for i, e := range edited {
		s, err := l.Elem.Encode(e)
		if err != nil {
			return nil, elementError(i, e, err)
		}
		out[i] = s
	}
	return out, nil
}

func (l List[S, E]) checkLen(v any, n int) error {
	if n < l.MinLen {
		return invalid(CodeLength, v, "needs at least %d elements, has %d", l.MinLen, n)
	}
	if l.MaxLen > 0 && n > l.MaxLen {
		return invalid(CodeLength, v, "allows at most %d elements, has %d", l.MaxLen, n)
	}
	return nil
}

func elementError(i int, value any, err error) error {
	if ve, ok := err.(*ValidationError); ok {
		cp := *ve
		cp.Message = fmt.Sprintf("element %d: %s", i, ve.Message)
		return &cp
	}
	return &ValidationError{
		Code:    CodeMalformed,
		Message: fmt.Sprintf("element %d: %v", i, err),
		Value:   value,
		Err:     err,
	}
}
