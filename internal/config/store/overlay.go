package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/cfgtree/internal/config/tree"
)

// Overlay is a source that returns the value of the first source that has
// a path.
type Overlay []tree.Source

// Lookup implements tree.Source.
func (o Overlay) Lookup(path tree.Path) (any, bool) {
	for _, src := range o {
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(path); ok {
			return v, true
		}
	}
	return nil, false
}

// Layered is a store whose loads see override sources before the stored
// values. Writes go to the underlying store only.
type Layered struct {
	base      tree.Store
	overrides []tree.Source
}

// WithOverrides layers sources over s, highest priority first.
func WithOverrides(s tree.Store, overrides ...tree.Source) *Layered {
	return &Layered{base: s, overrides: overrides}
}

// Unwrap returns the underlying store.
func (l *Layered) Unwrap() tree.Store { return l.base }

// Overrides implements tree.Overrider.
func (l *Layered) Overrides() tree.Source { return Overlay(l.overrides) }

// Load implements tree.Store.
func (l *Layered) Load(ctx context.Context) (tree.Source, error) {
	src, err := l.base.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(Overlay, 0, len(l.overrides)+1)
	out = append(out, l.overrides...)
	return append(out, src), nil
}

// Save implements tree.Store.
func (l *Layered) Save(ctx context.Context, values tree.Values) error {
	return l.base.Save(ctx, values)
}

// Patch implements tree.Patcher when the underlying store does.
func (l *Layered) Patch(ctx context.Context, values tree.Values) error {
	p, ok := l.base.(tree.Patcher)
	if !ok {
		return fmt.Errorf("%T: partial writes: %w", l.base, errors.ErrUnsupported)
	}
	return p.Patch(ctx, values)
}
