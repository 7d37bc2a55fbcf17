package tree

import (
	"context"
	"maps"
	"slices"
)

// Source resolves persisted raw values by path. A missing path is a normal
// outcome and is reported with ok == false.
type Source interface {
	Lookup(path Path) (raw any, ok bool)
}

// Store is the backing store of a local tree. The file format is the
// store's business; the tree only needs path-keyed lookup and a save of
// path-keyed stored values.
type Store interface {
	Load(ctx context.Context) (Source, error)
	Save(ctx context.Context, values Values) error
}

// Patcher is implemented by stores that can write a subset of paths.
// Commit uses it to write only dirty entries.
type Patcher interface {
	Patch(ctx context.Context, values Values) error
}

// Overrider is implemented by stores whose loads see sources layered over
// the stored values, such as store.Layered. Those values are never written,
// so after a commit the base takes them from here.
type Overrider interface {
	Overrides() Source
}

// Channel carries edits of a remote tree to its authority.
type Channel interface {
	// Fetch returns the authority's current values.
	Fetch(ctx context.Context) (Source, error)
	// Push sends committed changes. A nil error means the authority accepted them.
	Push(ctx context.Context, changes ChangeSet) error
}

// Values maps dotted entry paths to stored values.
type Values map[string]any

// Lookup implements Source.
func (v Values) Lookup(path Path) (any, bool) {
	raw, ok := v[path.String()]
	return raw, ok
}

// Paths returns the keys in sorted order.
func (v Values) Paths() []string {
	return slices.Sorted(maps.Keys(v))
}
