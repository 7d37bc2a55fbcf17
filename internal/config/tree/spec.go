package tree

import (
	"fmt"
	"slices"

	"github.com/dshills/cfgtree/internal/config/codec"
)

// Declaration is an entry description consumed by Builder.Entry.
// Spec is the only implementation.
type Declaration interface {
	declName() string
	declare(path string) (slot, error)
}

// Spec declares one entry. Every option returns a new Spec; the receiver is
// never modified, so partially configured specs can be shared.
type Spec[S, E, V any] struct {
	name        string
	codec       codec.Codec[S, E]
	project     func(E) V
	def         E
	hasRange    bool
	min, max    E
	policy      codec.Policy
	clampSet    bool
	validators  []func(E) error
	caption     bool
	restart     bool
	description string
	icon        func(E) string
}

// Custom declares an entry backed by any codec.
func Custom[S, E any](name string, c codec.Codec[S, E]) Spec[S, E, E] {
	return Spec[S, E, E]{
		name:    name,
		codec:   c,
		project: func(e E) E { return e },
	}
}

// Value declares an entry stored as it is edited.
func Value[T any](name string) Spec[T, T, T] {
	return Custom[T, T](name, codec.Identity[T]{})
}

// Enum declares an entry holding one of a closed set of values.
func Enum[T comparable](name string, c codec.Enum[T]) Spec[string, T, T] {
	return Custom[string, T](name, c)
}

// List declares an entry holding a list of elements.
func List[S, E any](name string, elem codec.Codec[S, E]) Spec[[]S, []E, []E] {
	return Custom[[]S, []E](name, codec.ListOf(elem))
}

// Bean declares an entry holding a struct stored as a map. validate may be nil.
func Bean[T any](name string, validate func(T) error) Spec[map[string]any, T, T] {
	return Custom[map[string]any, T](name, codec.NewBean(validate))
}

// Project returns a copy of s whose Value accessor applies fn to the
// edited value. Bakers read entries through Value.
func Project[S, E, W, V any](s Spec[S, E, W], fn func(E) V) Spec[S, E, V] {
	return Spec[S, E, V]{
		name:        s.name,
		codec:       s.codec,
		project:     fn,
		def:         s.def,
		hasRange:    s.hasRange,
		min:         s.min,
		max:         s.max,
		policy:      s.policy,
		clampSet:    s.clampSet,
		validators:  s.validators,
		caption:     s.caption,
		restart:     s.restart,
		description: s.description,
		icon:        s.icon,
	}
}

// WithDefault sets the default edited value. It is validated at build time.
func (s Spec[S, E, V]) WithDefault(v E) Spec[S, E, V] {
	s.def = v
	return s
}

// WithRange bounds the edited value to [min, max]. E must be an integer,
// float or string type; anything else fails the build.
func (s Spec[S, E, V]) WithRange(min, max E) Spec[S, E, V] {
	s.hasRange = true
	s.min, s.max = min, max
	return s
}

// WithClamp makes the range normalize out-of-range input instead of
// rejecting it. Requires WithRange.
func (s Spec[S, E, V]) WithClamp() Spec[S, E, V] {
	s.policy = codec.PolicyClamp
	s.clampSet = true
	return s
}

// WithValidator adds a check run on every edit and on load.
func (s Spec[S, E, V]) WithValidator(fn func(E) error) Spec[S, E, V] {
	s.validators = append(slices.Clip(s.validators), fn)
	return s
}

// AsCaption marks the entry as the summary of its parent group. When
// several siblings are marked, the one declared last replaces the others.
func (s Spec[S, E, V]) AsCaption() Spec[S, E, V] {
	s.caption = true
	return s
}

// WithDisplayIcon sets a function naming an icon for the current value.
func (s Spec[S, E, V]) WithDisplayIcon(fn func(E) string) Spec[S, E, V] {
	s.icon = fn
	return s
}

// WithDescription sets help text for the entry.
func (s Spec[S, E, V]) WithDescription(text string) Spec[S, E, V] {
	s.description = text
	return s
}

// RequiresRestart marks the entry as only taking effect after a restart.
func (s Spec[S, E, V]) RequiresRestart() Spec[S, E, V] {
	s.restart = true
	return s
}

func (s Spec[S, E, V]) declName() string { return s.name }

// declare validates s and produces the entry's initial state.
func (s Spec[S, E, V]) declare(path string) (slot, error) {
	contract := func(option, format string, args ...any) error {
		return &BuilderContractError{Node: path, Option: option, Reason: fmt.Sprintf(format, args...)}
	}

	if s.codec == nil {
		return nil, contract("codec", "no codec")
	}
	if s.project == nil {
		return nil, contract("project", "no value projection")
	}

	var checks []codec.Check[E]
	for _, fn := range s.validators {
		if fn == nil {
			return nil, contract("WithValidator", "nil validator")
		}
		checks = append(checks, codec.Predicate(fn))
	}
	if s.clampSet && !s.hasRange {
		return nil, contract("WithClamp", "clamping requires WithRange")
	}
	if s.hasRange {
		bounds, err := codec.OrderedBounds(s.min, s.max, s.policy)
		if err != nil {
			return nil, &BuilderContractError{Node: path, Option: "WithRange", Reason: err.Error(), Err: err}
		}
		checks = append(checks, bounds)
	}

	c := &cell[S, E, V]{
		codec:   codec.Chain(s.codec, checks...),
		project: s.project,
		info: entryMeta{
			description: s.description,
			caption:     s.caption,
			restart:     s.restart,
		},
	}
	if s.icon != nil {
		icon := s.icon
		c.info.icon = func(v any) string {
			e, ok := v.(E)
			if !ok {
				return ""
			}
			return icon(e)
		}
	}

	def, err := c.encode(s.def)
	if err != nil {
		return nil, &BuilderContractError{Node: path, Option: "WithDefault", Reason: "default fails validation", Err: err}
	}
	c.def = def
	c.value = cloneAs(def)
	return c, nil
}

// cloneAs deep copies a stored value, keeping its static type.
func cloneAs[S any](v S) S {
	if c, ok := codec.Clone(v).(S); ok {
		return c
	}
	return v
}
