package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dshills/cfgtree/internal/config/codec"
	"github.com/dshills/cfgtree/internal/config/metrics"
	"github.com/dshills/cfgtree/internal/config/notify"
	"github.com/dshills/cfgtree/internal/config/reconcile"
	"github.com/dshills/cfgtree/internal/config/store"
	"github.com/dshills/cfgtree/internal/config/tree"
	"github.com/dshills/cfgtree/internal/logging"
)

// announcer is implemented by sync channels that report changes made by
// other parties, such as store.Mirror.
type announcer interface {
	Subscribe(fn func(paths []string)) (cancel func())
}

// Manager owns one configuration tree and everything around it. All
// methods are safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	tree   *tree.Tree
	engine *reconcile.Engine

	store     tree.Store
	channel   tree.Channel
	overrides []tree.Source
	registry  *tree.Registry

	notifier     *notify.Notifier
	ownsNotifier bool
	metrics      *metrics.Collector
	logger       *slog.Logger

	watchPath string
	debounce  time.Duration
	watching  bool

	// trigger holds a pending reload request from the watcher or the channel.
	trigger      chan struct{}
	cancelMirror func()

	closed bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the backing store of a local tree.
func WithStore(s tree.Store) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithChannel sets the sync channel of a remote tree. If the channel can
// announce changes, Watch reacts to them.
func WithChannel(c tree.Channel) Option {
	return func(m *Manager) {
		m.channel = c
	}
}

// WithOverrides layers sources over the store on load, such as a
// store.Env. Values from overrides are loaded but never written back
// unless they are committed.
func WithOverrides(sources ...tree.Source) Option {
	return func(m *Manager) {
		m.overrides = append(m.overrides, sources...)
	}
}

// WithRegistry builds the tree through r so that its identity key is
// unique among live trees.
func WithRegistry(r *tree.Registry) Option {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithNotifier publishes events to n. The Manager does not close it.
func WithNotifier(n *notify.Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithMetrics records tree metrics to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) {
		m.metrics = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithWatchPath sets the file Watch observes. Stores that expose a Path
// are watched by default.
func WithWatchPath(path string) Option {
	return func(m *Manager) {
		m.watchPath = path
	}
}

// WithDebounce sets how long Watch waits for file events to settle.
func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		m.debounce = d
	}
}

// Open builds the tree declared by b, loads it from its store or channel
// and attaches a reconciliation engine. Values that fail to decode fall
// back to their defaults and are logged; they do not fail Open.
func Open(ctx context.Context, b tree.Builder, opts ...Option) (*Manager, error) {
	m := &Manager{
		logger:   logging.Discard(),
		debounce: 100 * time.Millisecond,
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.WithComponent(m.logger, "config").With("tree", b.Key())

	if m.notifier == nil {
		m.notifier = notify.New()
		m.ownsNotifier = true
	}
	if m.store != nil && len(m.overrides) > 0 {
		m.store = store.WithOverrides(m.store, m.overrides...)
	}
	if m.watchPath == "" {
		if p, ok := unwrapStore(m.store).(interface{ Path() string }); ok {
			m.watchPath = p.Path()
		}
	}

	topts := []tree.Option{tree.WithLogger(m.logger)}
	if m.store != nil {
		topts = append(topts, tree.WithStore(m.store))
	}
	if m.channel != nil {
		topts = append(topts, tree.WithChannel(m.channel))
	}

	var (
		t   *tree.Tree
		err error
	)
	if m.registry != nil {
		t, err = m.registry.Build(b, topts...)
	} else {
		t, err = b.Build(topts...)
	}
	if err != nil {
		m.shutdown()
		return nil, err
	}
	m.tree = t
	m.engine = reconcile.New(t, reconcile.WithLogger(m.logger))

	if _, err := m.load(ctx); err != nil {
		t.Close()
		m.shutdown()
		return nil, err
	}

	if a, ok := m.channel.(announcer); ok {
		// Runs on the pusher's goroutine, possibly inside our own Commit,
		// so it must not take m.mu.
		m.cancelMirror = a.Subscribe(func([]string) { m.poke() })
	}
	return m, nil
}

func unwrapStore(s tree.Store) tree.Store {
	if l, ok := s.(*store.Layered); ok {
		return l.Unwrap()
	}
	return s
}

// Key returns the tree's identity key.
func (m *Manager) Key() string { return m.tree.Key() }

// Do runs fn with exclusive access to the tree. fn must not retain the
// tree or call other Manager methods.
func (m *Manager) Do(fn func(t *tree.Tree) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return fn(m.tree)
}

// Get returns the edited value of the entry at path.
func (m *Manager) Get(path string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	item, err := m.tree.Item(path)
	if err != nil {
		return nil, err
	}
	return item.Get()
}

// Value returns the projected value of the entry at path.
func (m *Manager) Value(path string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	item, err := m.tree.Item(path)
	if err != nil {
		return nil, err
	}
	return item.Value()
}

// Set validates v and stores it at path. Strings are converted to the
// entry's type, so command-line input can be passed as is. A rejected value
// leaves the entry unchanged.
func (m *Manager) Set(path string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	item, err := m.tree.Item(path)
	if err != nil {
		return err
	}
	if err := item.Set(v); err != nil {
		var verr *codec.ValidationError
		if errors.As(err, &verr) {
			m.metrics.ObserveValidation(m.tree.Key(), verr.Code.String())
		}
		m.logger.Debug("value rejected", "path", path, "err", err)
		return err
	}
	return nil
}

// Reset restores the default of the entry at path.
func (m *Manager) Reset(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	item, err := m.tree.Item(path)
	if err != nil {
		return err
	}
	item.Reset()
	return nil
}

// Dirty returns the entries edited since the last load or commit.
func (m *Manager) Dirty() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	return m.tree.DirtyPaths()
}

// Snapshot returns an immutable copy of the current values.
func (m *Manager) Snapshot() *tree.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree.TakeSnapshot()
}

// Commit persists every edited entry, bakes, and publishes one commit
// event per entry. See tree.Tree.Commit for the failure modes.
func (m *Manager) Commit(ctx context.Context) (tree.CommitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return tree.CommitResult{}, ErrClosed
	}

	pending := len(m.engine.Unreconciled()) > 0
	start := time.Now()
	res, err := m.tree.Commit(ctx)
	m.metrics.ObserveCommit(m.tree.Key(), len(res.Changes), time.Since(start), err)
	if err != nil {
		return res, err
	}
	m.metrics.ObserveBake(m.tree.Key(), res.BakeErr)
	if pending {
		m.metrics.ClearPending(m.tree.Key())
	}

	batch := m.notifier.NewBatch()
	for _, path := range res.Changes.Paths() {
		ch := res.Changes[path]
		batch.Add(notify.CommitEvent(m.tree.Key(), path, ch.Base, ch.New))
	}
	batch.Commit()

	m.logger.Info("committed", "entries", len(res.Changes), "restart", res.Restart)
	return res, nil
}

// Bake runs the baker against the current values. Commits bake on their
// own; hosts call Bake once after Open to derive their initial state.
func (m *Manager) Bake() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	err := m.tree.Bake()
	m.metrics.ObserveBake(m.tree.Key(), err)
	return err
}

// Load replaces every value with the persisted one, discarding edits and
// any pending external change.
func (m *Manager) Load(ctx context.Context) (tree.LoadReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return tree.LoadReport{}, ErrClosed
	}
	return m.load(ctx)
}

func (m *Manager) load(ctx context.Context) (tree.LoadReport, error) {
	report, err := m.tree.LoadFrom(ctx)
	if err != nil {
		return report, err
	}
	m.metrics.ObserveLoad(m.tree.Key(), len(report.Invalid))
	m.metrics.ClearPending(m.tree.Key())
	m.notifier.NotifyLoad(m.tree.Key(), m.source())
	m.logger.Debug("loaded", "missing", len(report.Missing), "invalid", len(report.Invalid))
	return report, nil
}

// Reload reads the persisted state and hands it to the reconciliation
// engine without modifying the tree. Every entry whose persisted value
// diverged is published as an external event, once per distinct pending
// state.
func (m *Manager) Reload(ctx context.Context) (reconcile.Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return reconcile.Observation{}, ErrClosed
	}

	src, err := m.tree.Fetch(ctx)
	if err != nil {
		return reconcile.Observation{}, err
	}
	obs := m.engine.OnExternalChange(src)
	m.metrics.ObserveExternal(m.tree.Key(), len(obs.Changed), len(obs.Invalid))
	if obs.State != reconcile.ExternalChangeDetected || obs.Repeated {
		return obs, nil
	}

	decisions, err := m.engine.Preview(reconcile.RejectExternal)
	if err != nil {
		return obs, err
	}
	batch := m.notifier.NewBatch()
	for _, d := range decisions {
		if !slices.Contains(obs.Changed, d.Path) {
			continue
		}
		batch.Add(notify.ExternalEvent(m.tree.Key(), d.Path, d.Base, d.External, m.source()))
	}
	batch.Commit()
	return obs, nil
}

// State returns the reconciliation state.
func (m *Manager) State() reconcile.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.State()
}

// Pending returns the externally changed paths awaiting resolution.
func (m *Manager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.Unreconciled()
}

// Preview classifies the pending external change under policy without
// applying it.
func (m *Manager) Preview(policy reconcile.Policy) ([]reconcile.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.engine.Preview(policy)
}

// Resolve applies policy to the pending external change and publishes a
// resolve event for every entry whose value and persisted value differed.
func (m *Manager) Resolve(policy reconcile.Policy) (reconcile.Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return reconcile.Resolution{}, ErrClosed
	}

	res, err := m.engine.Resolve(policy)
	if err != nil {
		return res, err
	}

	conflicts := 0
	batch := m.notifier.NewBatch()
	for _, d := range res.Decisions {
		if d.Class == reconcile.Conflicting {
			conflicts++
		}
		if codec.Equal(d.Local, d.External) {
			continue
		}
		batch.Add(notify.ResolveEvent(m.tree.Key(), d.Path, d.Local, d.Final(), policy.String()))
	}
	m.metrics.ObserveResolution(m.tree.Key(), policy.String(), conflicts)
	batch.Commit()
	return res, nil
}

// Abandon drops the pending external change. The same persisted state is
// detected again by the next Reload.
func (m *Manager) Abandon() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.engine.Abandon()
	m.metrics.ClearPending(m.tree.Key())
}

// Flagged returns the conflicts kept for attention by AcceptNonConflicting.
func (m *Manager) Flagged() []reconcile.Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.Flagged()
}

// Settle clears a flagged conflict, taking the external value if asked.
func (m *Manager) Settle(path string, takeExternal bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.engine.Settle(path, takeExternal)
}

// Close releases the tree's identity key, the store and the notifier if the
// Manager created it. A running Watch returns once its context is done.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.tree.Close()
	return m.shutdown()
}

func (m *Manager) shutdown() error {
	if m.cancelMirror != nil {
		m.cancelMirror()
	}
	if m.ownsNotifier {
		m.notifier.Close()
	}
	if c, ok := unwrapStore(m.store).(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// source names where persisted values come from, for events and logs.
func (m *Manager) source() string {
	switch {
	case m.watchPath != "":
		return m.watchPath
	case m.channel != nil:
		return "channel"
	default:
		return "store"
	}
}
