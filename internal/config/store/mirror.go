package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/cfgtree/internal/config/codec"
	"github.com/dshills/cfgtree/internal/config/tree"
)

// Mirror is an in-process sync channel for remote trees. It stands in for
// an authority such as a server: pushes are checked against the values the
// pusher based them on and applied to the authority's store, and every
// change is announced to subscribers.
type Mirror struct {
	mu        sync.Mutex
	authority tree.Store
	subs      map[int]func(paths []string)
	nextID    int
}

// NewMirror creates a channel over the authority's store. The store must
// implement tree.Patcher.
func NewMirror(authority tree.Store) *Mirror {
	return &Mirror{authority: authority, subs: make(map[int]func([]string))}
}

// Fetch implements tree.Channel.
func (m *Mirror) Fetch(ctx context.Context) (tree.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authority.Load(ctx)
}

// Push implements tree.Channel. It fails with a *StaleError, changing
// nothing, if the authority holds a value at a pushed path that differs
// from the change's base.
func (m *Mirror) Push(ctx context.Context, changes tree.ChangeSet) error {
	m.mu.Lock()
	current, err := m.authority.Load(ctx)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	var stale []string
	for _, path := range changes.Paths() {
		cur, ok := current.Lookup(tree.ParsePath(path))
		if ok && !codec.EqualLoose(cur, changes[path].Base) {
			stale = append(stale, path)
		}
	}
	if len(stale) > 0 {
		m.mu.Unlock()
		return &StaleError{Paths: stale}
	}
	err = m.patch(ctx, changes.NewValues())
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.announce(changes.Paths())
	return nil
}

// Update changes values on the authority side, as another client or an
// administrator would, and announces the change.
func (m *Mirror) Update(ctx context.Context, values tree.Values) error {
	m.mu.Lock()
	err := m.patch(ctx, values)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.announce(values.Paths())
	return nil
}

func (m *Mirror) patch(ctx context.Context, values tree.Values) error {
	p, ok := m.authority.(tree.Patcher)
	if !ok {
		return fmt.Errorf("%T: partial writes: %w", m.authority, errors.ErrUnsupported)
	}
	return p.Patch(ctx, values)
}

// Subscribe registers fn to be called with the changed paths after every
// accepted push or update. fn runs on the caller's goroutine and must hand
// the event to the tree's owner rather than touch the tree itself.
func (m *Mirror) Subscribe(fn func(paths []string)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Mirror) announce(paths []string) {
	m.mu.Lock()
	subs := make([]func([]string), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(paths)
	}
}
