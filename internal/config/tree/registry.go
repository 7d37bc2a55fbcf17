package tree

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry keeps at most one live tree per identity key.
type Registry struct {
	mu    sync.RWMutex
	trees map[string]*Tree
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{trees: make(map[string]*Tree)}
}

// Build builds b and registers the tree under its key. It fails with
// ErrTreeExists while another tree with the same key is open.
func (r *Registry) Build(b Builder, opts ...Option) (*Tree, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.trees[b.key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrTreeExists, b.key)
	}
	t, err := b.Build(opts...)
	if err != nil {
		return nil, err
	}
	t.registry = r
	r.trees[t.key] = t
	return t, nil
}

// Get returns the live tree with the given key.
func (r *Registry) Get(key string) (*Tree, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trees[key]
	return t, ok
}

// Keys returns the keys of all live trees in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.trees))
}

func (r *Registry) release(key string, t *Tree) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trees[key] == t {
		delete(r.trees, key)
	}
}
