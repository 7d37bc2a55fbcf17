package tree

import (
	"fmt"
	"iter"
)

// Baker derives host state from a committed tree. It reads through the View
// and must not modify the tree; any attempt panics.
type Baker interface {
	Bake(v View) error
}

// BakerFunc adapts a function to the Baker interface.
type BakerFunc func(v View) error

// Bake calls f.
func (f BakerFunc) Bake(v View) error { return f(v) }

// View is the read-only access a Baker gets.
type View struct {
	t *Tree
}

// Key returns the tree identity key.
func (v View) Key() string { return v.t.key }

// Value returns the projected value at a dotted path.
func (v View) Value(path string) (any, error) {
	id, err := v.t.entryID(path)
	if err != nil {
		return nil, err
	}
	return Item{t: v.t, id: id}.Value()
}

// Walk yields every entry path with its projected value.
func (v View) Walk() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for path, item := range v.t.Walk() {
			val, _ := item.Value()
			if !yield(path.String(), val) {
				return
			}
		}
	}
}

// Read returns the typed projected value at a dotted path.
func Read[V any](v View, path string) (V, error) {
	raw, err := v.Value(path)
	out, ok := raw.(V)
	if !ok {
		var zero V
		if err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w: %s holds %T", ErrTypeMismatch, path, raw)
	}
	return out, err
}

// Bake runs the registered baker. Errors and panics are returned as
// *BakeError and logged; they never affect stored values.
func (t *Tree) Bake() (err error) {
	if t.baker == nil {
		return nil
	}
	t.guard("Bake")
	t.baking = true
	defer func() {
		t.baking = false
		if r := recover(); r != nil {
			if m, ok := r.(mutationDuringBake); ok {
				panic(m)
			}
			err = &BakeError{Tree: t.key, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			t.logger.Warn("bake failed", "err", err)
		}
	}()

	if berr := t.baker.Bake(View{t: t}); berr != nil {
		return &BakeError{Tree: t.key, Err: berr}
	}
	return nil
}
