package tree

import (
	"fmt"

	"github.com/dshills/cfgtree/internal/config/codec"
)

// Node is either a Group or an Item.
type Node interface {
	Name() string
	Path() Path
	IsGroup() bool
}

// Entry is a typed handle to a leaf: S is stored, E is edited, V is what
// bakers read. Obtain one with Lookup.
type Entry[S, E, V any] struct {
	t    *Tree
	id   nodeID
	cell *cell[S, E, V]
}

// Lookup returns the typed entry at a dotted path. The type parameters must
// match the entry's declaration.
func Lookup[S, E, V any](t *Tree, path string) (Entry[S, E, V], error) {
	id, err := t.entryID(path)
	if err != nil {
		return Entry[S, E, V]{}, err
	}
	c, ok := t.nodes[id].leaf.(*cell[S, E, V])
	if !ok {
		var want *cell[S, E, V]
		return Entry[S, E, V]{}, fmt.Errorf("%w: %s is %s, not %s",
			ErrTypeMismatch, path, t.nodes[id].leaf.typeString(), want.typeString())
	}
	return Entry[S, E, V]{t: t, id: id, cell: c}, nil
}

// Name returns the entry name.
func (e Entry[S, E, V]) Name() string { return e.t.nodes[e.id].name }

// Path returns the entry path.
func (e Entry[S, E, V]) Path() Path { return e.t.pathOf(e.id) }

// IsGroup returns false.
func (e Entry[S, E, V]) IsGroup() bool { return false }

// Get decodes the stored value. If the stored value was corrupted out of
// band, Get returns the decoded default and a *codec.DecodeError.
func (e Entry[S, E, V]) Get() (E, error) {
	v, err := e.cell.decode()
	return v, e.t.withPath(e.id, err)
}

// Set validates candidate and stores it. On failure the stored value is
// unchanged and a *codec.ValidationError is returned.
func (e Entry[S, E, V]) Set(candidate E) error {
	e.t.guard("Set")
	s, err := e.cell.encode(candidate)
	if err != nil {
		return e.t.withPath(e.id, err)
	}
	e.cell.value = cloneAs(s)
	e.t.markDirty(e.id)
	return nil
}

// Reset restores the default.
func (e Entry[S, E, V]) Reset() {
	e.t.guard("Reset")
	e.cell.value = cloneAs(e.cell.def)
	e.t.markDirty(e.id)
}

// IsEdited reports whether the stored value differs from the default.
func (e Entry[S, E, V]) IsEdited() bool { return e.cell.isEdited() }

// Dirty reports whether the entry changed since the last load or commit.
func (e Entry[S, E, V]) Dirty() bool { return e.t.nodes[e.id].dirty }

// Stored returns a copy of the stored value.
func (e Entry[S, E, V]) Stored() S { return cloneAs(e.cell.value) }

// Default returns a copy of the default stored value.
func (e Entry[S, E, V]) Default() S { return cloneAs(e.cell.def) }

// Value returns the projection read by bakers.
func (e Entry[S, E, V]) Value() (V, error) {
	v, err := e.cell.decode()
	return e.cell.project(v), e.t.withPath(e.id, err)
}

// Item returns the untyped handle of the same entry.
func (e Entry[S, E, V]) Item() Item { return Item{t: e.t, id: e.id} }

// Item is an untyped handle to a leaf, used by edit surfaces that work by
// path and by Walk.
type Item struct {
	t  *Tree
	id nodeID
}

func (i Item) leaf() slot { return i.t.nodes[i.id].leaf }

// Name returns the entry name.
func (i Item) Name() string { return i.t.nodes[i.id].name }

// Path returns the entry path.
func (i Item) Path() Path { return i.t.pathOf(i.id) }

// IsGroup returns false.
func (i Item) IsGroup() bool { return false }

// Get returns the edited value. See Entry.Get.
func (i Item) Get() (any, error) {
	v, err := i.leaf().editedAny()
	return v, i.t.withPath(i.id, err)
}

// Set validates v and stores it. v may be the edited type or anything that
// converts to it, such as a string typed on a command line.
func (i Item) Set(v any) error {
	i.t.guard("Set")
	s, err := i.leaf().encodeAny(v)
	if err != nil {
		return i.t.withPath(i.id, err)
	}
	i.leaf().adopt(s)
	i.t.markDirty(i.id)
	return nil
}

// Reset restores the default.
func (i Item) Reset() {
	i.t.guard("Reset")
	i.leaf().adopt(i.leaf().defaultStored())
	i.t.markDirty(i.id)
}

// Value returns the projection read by bakers.
func (i Item) Value() (any, error) {
	v, err := i.leaf().valueAny()
	return v, i.t.withPath(i.id, err)
}

// Stored returns a copy of the stored value.
func (i Item) Stored() any { return codec.Clone(i.leaf().stored()) }

// Default returns a copy of the default stored value.
func (i Item) Default() any { return codec.Clone(i.leaf().defaultStored()) }

// IsEdited reports whether the stored value differs from the default.
func (i Item) IsEdited() bool { return i.leaf().isEdited() }

// Dirty reports whether the entry changed since the last load or commit.
func (i Item) Dirty() bool { return i.t.nodes[i.id].dirty }

// Caption reports whether the entry is its group's caption.
func (i Item) Caption() bool { return i.leaf().meta().caption }

// RequiresRestart reports whether changes only apply after a restart.
func (i Item) RequiresRestart() bool { return i.leaf().meta().restart }

// Description returns the entry's help text.
func (i Item) Description() string { return i.leaf().meta().description }

// Icon returns the display icon for the current value, or "".
func (i Item) Icon() string {
	icon := i.leaf().meta().icon
	if icon == nil {
		return ""
	}
	v, _ := i.leaf().editedAny()
	return icon(v)
}

// withPath fills in the entry path on codec errors.
func (t *Tree) withPath(id nodeID, err error) error {
	if err == nil {
		return nil
	}
	path := t.pathOf(id).String()
	switch e := err.(type) {
	case *codec.ValidationError:
		return e.WithPath(path)
	case *codec.DecodeError:
		cp := *e
		cp.Path = path
		return &cp
	default:
		return fmt.Errorf("%s: %w", path, err)
	}
}
