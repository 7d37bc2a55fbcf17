package tree

import (
	"fmt"

	"github.com/dshills/cfgtree/internal/config/codec"
)

// slot is the untyped view the tree keeps of each entry's state.
type slot interface {
	stored() any
	defaultStored() any
	// adopt replaces the stored value with an already normalized one.
	adopt(v any)
	// normalize converts a raw persisted value into a decodable stored value.
	normalize(raw any) (any, error)
	editedAny() (any, error)
	encodeAny(v any) (any, error)
	valueAny() (any, error)
	isEdited() bool
	meta() *entryMeta
	typeString() string
}

// entryMeta holds display and lifecycle hints for an entry.
type entryMeta struct {
	description string
	caption     bool
	restart     bool
	icon        func(any) string
}

// cell is the typed state behind an entry.
type cell[S, E, V any] struct {
	codec   codec.Codec[S, E]
	project func(E) V
	value   S
	def     S
	info    entryMeta
}

func (c *cell[S, E, V]) stored() any        { return c.value }
func (c *cell[S, E, V]) defaultStored() any { return c.def }
func (c *cell[S, E, V]) meta() *entryMeta   { return &c.info }

func (c *cell[S, E, V]) typeString() string {
	var s S
	var e E
	var v V
	return fmt.Sprintf("%T/%T/%T", s, e, v)
}

func (c *cell[S, E, V]) adopt(v any) {
	c.value = cloneAs(v.(S))
}

func (c *cell[S, E, V]) normalize(raw any) (any, error) {
	s, err := codec.Coerce[S](raw)
	if err != nil {
		return nil, err
	}
	if _, err := c.codec.Decode(s); err != nil {
		return nil, err
	}
	return s, nil
}

// decode returns the edited value, falling back to the default when the
// stored value no longer decodes.
func (c *cell[S, E, V]) decode() (E, error) {
	e, err := c.codec.Decode(c.value)
	if err == nil {
		return e, nil
	}
	fallback, derr := c.codec.Decode(c.def)
	if derr != nil {
		return fallback, derr
	}
	return fallback, &codec.DecodeError{Value: c.value, Err: err}
}

// encode validates an edited value and returns what would be stored.
func (c *cell[S, E, V]) encode(e E) (S, error) {
	s, err := c.codec.Encode(e)
	if err != nil {
		return s, err
	}
	if _, err := c.codec.Decode(s); err != nil {
		return s, &codec.ValidationError{
			Code:    codec.CodeMalformed,
			Message: "encoded value does not decode",
			Value:   e,
			Err:     err,
		}
	}
	return s, nil
}

func (c *cell[S, E, V]) editedAny() (any, error) {
	return c.decode()
}

func (c *cell[S, E, V]) encodeAny(v any) (any, error) {
	e, ok := v.(E)
	if !ok {
		var err error
		if e, err = codec.Coerce[E](v); err != nil {
			// Input in the stored form, such as an enum name or a duration
			// string, is decoded instead.
			s, serr := codec.Coerce[S](v)
			if serr != nil {
				return nil, err
			}
			if e, serr = c.codec.Decode(s); serr != nil {
				return nil, serr
			}
		}
	}
	return c.encode(e)
}

func (c *cell[S, E, V]) valueAny() (any, error) {
	e, err := c.decode()
	return c.project(e), err
}

func (c *cell[S, E, V]) isEdited() bool {
	return !codec.Equal(c.value, c.def)
}
