package store

import (
	"context"
	"sync"

	"github.com/dshills/cfgtree/internal/config/codec"
	"github.com/dshills/cfgtree/internal/config/tree"
)

// Memory is an in-process store. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values tree.Values
	writes int
}

// NewMemory creates a memory store holding a copy of initial.
func NewMemory(initial tree.Values) *Memory {
	m := &Memory{values: make(tree.Values)}
	for k, v := range initial {
		m.values[k] = codec.Clone(v)
	}
	return m
}

// Load returns a copy of the current values.
func (m *Memory) Load(ctx context.Context) (tree.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.Values(), nil
}

// Save replaces every value.
func (m *Memory) Save(ctx context.Context, values tree.Values) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(tree.Values, len(values))
	for k, v := range values {
		m.values[k] = codec.Clone(v)
	}
	m.writes++
	return nil
}

// Patch replaces the given paths.
func (m *Memory) Patch(ctx context.Context, values tree.Values) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.values[k] = codec.Clone(v)
	}
	m.writes++
	return nil
}

// Set changes one value, as an external editor would.
func (m *Memory) Set(path string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[path] = codec.Clone(v)
}

// Values returns a copy of the current values.
func (m *Memory) Values() tree.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(tree.Values, len(m.values))
	for k, v := range m.values {
		out[k] = codec.Clone(v)
	}
	return out
}

// Writes returns the number of Save and Patch calls.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
