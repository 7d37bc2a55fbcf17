package tree

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/dshills/cfgtree/internal/config/codec"
)

// Snapshot is an immutable deep copy of every stored value in a tree.
type Snapshot struct {
	id     uuid.UUID
	tree   string
	taken  time.Time
	paths  []string
	values map[string]any
}

// TakeSnapshot copies every stored value. It does not modify the tree.
func (t *Tree) TakeSnapshot() *Snapshot {
	ids := t.leaves(rootID)
	s := &Snapshot{
		id:     uuid.New(),
		tree:   t.key,
		taken:  time.Now(),
		paths:  make([]string, 0, len(ids)),
		values: make(map[string]any, len(ids)),
	}
	for _, id := range ids {
		path := t.pathOf(id).String()
		s.paths = append(s.paths, path)
		s.values[path] = codec.Clone(t.nodes[id].leaf.stored())
	}
	return s
}

// NewSnapshot builds a snapshot from values, e.g. a normalized external
// state. Paths are ordered lexically.
func NewSnapshot(tree string, values Values) *Snapshot {
	s := &Snapshot{
		id:     uuid.New(),
		tree:   tree,
		taken:  time.Now(),
		paths:  values.Paths(),
		values: make(map[string]any, len(values)),
	}
	for k, v := range values {
		s.values[k] = codec.Clone(v)
	}
	return s
}

// ID uniquely identifies the snapshot.
func (s *Snapshot) ID() uuid.UUID { return s.id }

// Tree returns the identity key of the tree the snapshot was taken from.
func (s *Snapshot) Tree() string { return s.tree }

// Taken returns when the snapshot was taken.
func (s *Snapshot) Taken() time.Time { return s.taken }

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.paths) }

// Paths returns the entry paths in tree order.
func (s *Snapshot) Paths() []string { return slices.Clone(s.paths) }

// Get returns a copy of the stored value at path.
func (s *Snapshot) Get(path string) (any, bool) {
	v, ok := s.values[path]
	return codec.Clone(v), ok
}

// Lookup implements Source.
func (s *Snapshot) Lookup(path Path) (any, bool) {
	return s.Get(path.String())
}

// Values returns a deep copy of the snapshot contents.
func (s *Snapshot) Values() Values {
	out := make(Values, len(s.values))
	for k, v := range s.values {
		out[k] = codec.Clone(v)
	}
	return out
}

// Fingerprint hashes the snapshot contents. Equal contents hash equally.
func (s *Snapshot) Fingerprint() (uint64, error) {
	return hashstructure.Hash(s.values, hashstructure.FormatV2, nil)
}

// Change is one entry's transition from a base value to a new value.
type Change struct {
	Path string
	Base any
	New  any
}

// ChangeSet maps entry paths to changes.
type ChangeSet map[string]Change

// Paths returns the changed paths in sorted order.
func (c ChangeSet) Paths() []string {
	return slices.Sorted(maps.Keys(c))
}

// NewValues returns the new value of every change.
func (c ChangeSet) NewValues() Values {
	out := make(Values, len(c))
	for path, ch := range c {
		out[path] = codec.Clone(ch.New)
	}
	return out
}

// Diff returns the paths whose value in later differs from base. Paths
// only present in later are included with a nil base.
func Diff(base, later Values) ChangeSet {
	out := make(ChangeSet)
	for path, nv := range later {
		bv, ok := base[path]
		if ok && codec.Equal(bv, nv) {
			continue
		}
		out[path] = Change{Path: path, Base: codec.Clone(bv), New: codec.Clone(nv)}
	}
	return out
}
