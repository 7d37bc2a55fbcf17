// Package notify delivers configuration tree events to observers.
//
// Commits, loads, detected external changes and resolutions are published
// as Events. Observers subscribe to every event or to a path prefix within
// a tree; events without a path (a whole-tree load) reach every observer of
// that tree.
package notify

import (
	"sync"
)

// Kind is the kind of tree event.
type Kind int

const (
	// KindCommit indicates an entry was committed.
	KindCommit Kind = iota

	// KindLoad indicates the whole tree was loaded from its store.
	KindLoad

	// KindExternal indicates the persisted value of an entry changed outside the tree.
	KindExternal

	// KindResolve indicates an external change to an entry was resolved.
	KindResolve
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCommit:
		return "commit"
	case KindLoad:
		return "load"
	case KindExternal:
		return "external"
	case KindResolve:
		return "resolve"
	default:
		return "unknown"
	}
}

// Event is a configuration tree event.
type Event struct {
	// Tree is the identity key of the tree.
	Tree string

	// Path is the dotted entry path. Empty for load events.
	Path string

	// Kind is the kind of event.
	Kind Kind

	// Old is the previous stored value (may be nil).
	Old any

	// New is the new stored value (may be nil).
	New any

	// Source identifies what caused the event, such as a file path or a
	// resolution policy.
	Source string
}

// Observer is called for every matching event.
type Observer func(ev Event)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	tree     string
	path     string
	notifier *Notifier
}

// Unsubscribe removes this subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

type pathKey struct {
	tree string
	path string
}

// Notifier manages event subscriptions.
type Notifier struct {
	mu sync.RWMutex

	// Observers that receive every event
	globalObservers map[uint64]Observer

	// Observers keyed by tree and path prefix
	pathObservers map[pathKey]map[uint64]Observer

	nextID uint64

	async  bool
	buffer chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithAsync delivers events on a background goroutine through a buffer of
// the given size.
func WithAsync(bufferSize int) Option {
	return func(n *Notifier) {
		if bufferSize > 0 {
			n.async = true
			n.buffer = make(chan Event, bufferSize)
		}
	}
}

// New creates a new Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		globalObservers: make(map[uint64]Observer),
		pathObservers:   make(map[pathKey]map[uint64]Observer),
		done:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(n)
	}

	if n.async {
		n.wg.Add(1)
		go n.processAsync()
	}

	return n
}

// Subscribe registers an observer for every event.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.globalObservers[id] = observer

	return &Subscription{id: id, notifier: n}
}

// SubscribePath registers an observer for events of one tree at path or
// below it. Subscribing to "audio" receives events for "audio.volume". An
// empty path receives every event of the tree.
func (n *Notifier) SubscribePath(tree, path string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	key := pathKey{tree: tree, path: path}
	if n.pathObservers[key] == nil {
		n.pathObservers[key] = make(map[uint64]Observer)
	}
	n.pathObservers[key][id] = observer

	return &Subscription{id: id, tree: tree, path: path, notifier: n}
}

// Notify sends an event to all matching observers.
func (n *Notifier) Notify(ev Event) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	n.mu.RUnlock()

	if n.async {
		select {
		case n.buffer <- ev:
		case <-n.done:
		}
		return
	}

	n.deliver(ev)
}

// NotifyLoad publishes a whole-tree load.
func (n *Notifier) NotifyLoad(tree, source string) {
	n.Notify(Event{Tree: tree, Kind: KindLoad, Source: source})
}

// CommitEvent describes a committed entry.
func CommitEvent(tree, path string, old, value any) Event {
	return Event{Tree: tree, Path: path, Kind: KindCommit, Old: old, New: value}
}

// ExternalEvent describes a detected external change of one entry.
func ExternalEvent(tree, path string, old, value any, source string) Event {
	return Event{Tree: tree, Path: path, Kind: KindExternal, Old: old, New: value, Source: source}
}

// ResolveEvent describes an entry changed by resolving an external change
// under policy.
func ResolveEvent(tree, path string, old, value any, policy string) Event {
	return Event{Tree: tree, Path: path, Kind: KindResolve, Old: old, New: value, Source: policy}
}

// Close shuts down the notifier, delivering any buffered events first. It
// is safe to call Close multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.globalObservers, id)

	for key, observers := range n.pathObservers {
		delete(observers, id)
		if len(observers) == 0 {
			delete(n.pathObservers, key)
		}
	}
}

// deliver sends an event to all matching observers. Observers are called
// outside the lock so they may subscribe or unsubscribe.
func (n *Notifier) deliver(ev Event) {
	n.mu.RLock()

	var observers []Observer
	for _, obs := range n.globalObservers {
		observers = append(observers, obs)
	}
	for key, pathObs := range n.pathObservers {
		if key.tree != ev.Tree {
			continue
		}
		if ev.Path != "" && key.path != ev.Path && !isParentPath(key.path, ev.Path) {
			continue
		}
		for _, obs := range pathObs {
			observers = append(observers, obs)
		}
	}

	n.mu.RUnlock()

	for _, obs := range observers {
		obs(ev)
	}
}

func (n *Notifier) processAsync() {
	defer n.wg.Done()

	for {
		select {
		case ev := <-n.buffer:
			n.deliver(ev)
		case <-n.done:
			for {
				select {
				case ev := <-n.buffer:
					n.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// isParentPath reports whether parent is a proper prefix of child at a
// segment boundary: "audio" is a parent of "audio.volume".
func isParentPath(parent, child string) bool {
	if len(parent) >= len(child) {
		return false
	}
	if parent == "" {
		return true
	}
	return child[:len(parent)] == parent && child[len(parent)] == '.'
}

// Batch collects events and delivers them on Commit.
type Batch struct {
	notifier *Notifier
	events   []Event
	mu       sync.Mutex
}

// NewBatch creates a new batch for collecting events.
func (n *Notifier) NewBatch() *Batch {
	return &Batch{notifier: n}
}

// Add adds an event to the batch.
func (b *Batch) Add(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

// Commit sends all batched events to observers and empties the batch.
func (b *Batch) Commit() {
	b.mu.Lock()
	events := b.events
	b.events = nil
	b.mu.Unlock()

	for _, ev := range events {
		b.notifier.Notify(ev)
	}
}

// Discard clears the batch without sending anything.
func (b *Batch) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// Len returns the number of pending events.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
