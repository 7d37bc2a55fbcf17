package tree

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/dshills/cfgtree/internal/config/codec"
)

// Tree is a declared configuration tree with its current values.
type Tree struct {
	key     string
	scope   Scope
	restart bool
	nodes   []node
	baker   Baker

	store   Store
	channel Channel
	gate    Reconciler
	logger  *slog.Logger

	base     *Snapshot
	baking   bool
	registry *Registry
	closed   bool
}

// Reconciler is consulted by Commit. The reconcile engine implements it.
type Reconciler interface {
	// Unreconciled returns the externally changed paths awaiting resolution.
	Unreconciled() []string
	// Rebase is called after a successful commit with the new baseline.
	Rebase(s *Snapshot)
}

// LoadReport lists what Load could not take from the source.
type LoadReport struct {
	// Missing lists paths absent from the source; they hold their defaults.
	Missing []string
	// Invalid holds a DecodeError for every value that fell back to its default.
	Invalid []error
}

// Err joins the invalid-value errors, or returns nil.
func (r LoadReport) Err() error {
	return errors.Join(r.Invalid...)
}

// CommitResult describes a successful commit.
type CommitResult struct {
	// Changes holds every committed entry with its previous and new value.
	Changes ChangeSet
	// Restart is true when the tree or any committed entry requires a restart.
	Restart bool
	// BakeErr is the baker's error, if any. It never undoes the commit.
	BakeErr error
}

// Key returns the identity key.
func (t *Tree) Key() string { return t.key }

// Scope returns the authority scope.
func (t *Tree) Scope() Scope { return t.scope }

// RequiresRestart reports whether the tree as a whole needs a restart to apply changes.
func (t *Tree) RequiresRestart() bool { return t.restart }

// Base returns the snapshot taken at the last load or commit.
func (t *Tree) Base() *Snapshot { return t.base }

// SetBase records s as the persisted state the next commit's changes are
// relative to. The reconcile engine calls it after resolving an external
// change.
func (t *Tree) SetBase(s *Snapshot) { t.base = s }

// Root returns the root group.
func (t *Tree) Root() Group { return Group{t: t, id: rootID} }

// Dirty reports whether any entry changed since the last load or commit.
func (t *Tree) Dirty() bool { return t.nodes[rootID].dirty }

// Attach registers the reconciler consulted by Commit.
func (t *Tree) Attach(r Reconciler) { t.gate = r }

// Logger returns the tree's logger.
func (t *Tree) Logger() *slog.Logger { return t.logger }

// Resolve walks path from the root. It returns false if any segment is absent.
func (t *Tree) Resolve(path ...string) (Node, bool) {
	return t.Root().Resolve(path...)
}

// Item returns the entry at a dotted path.
func (t *Tree) Item(path string) (Item, error) {
	id, err := t.entryID(path)
	if err != nil {
		return Item{}, err
	}
	return Item{t: t, id: id}, nil
}

// Walk yields every entry in declaration order.
func (t *Tree) Walk() iter.Seq2[Path, Item] {
	return t.Root().Walk()
}

// Values returns a deep copy of every stored value keyed by path.
func (t *Tree) Values() Values {
	out := make(Values)
	for _, id := range t.leaves(rootID) {
		out[t.pathOf(id).String()] = codec.Clone(t.nodes[id].leaf.stored())
	}
	return out
}

// Load replaces every stored value with the one found in src. Missing paths
// take their defaults; values that fail to convert or decode take their
// defaults and are reported. Neither is fatal.
func (t *Tree) Load(src Source) LoadReport {
	t.guard("Load")
	var report LoadReport
	for _, id := range t.leaves(rootID) {
		leaf := t.nodes[id].leaf
		path := t.pathOf(id)
		raw, ok := src.Lookup(path)
		if !ok {
			leaf.adopt(leaf.defaultStored())
			report.Missing = append(report.Missing, path.String())
			continue
		}
		v, err := leaf.normalize(raw)
		if err != nil {
			leaf.adopt(leaf.defaultStored())
			derr := &codec.DecodeError{Path: path.String(), Value: raw, Err: err}
			report.Invalid = append(report.Invalid, derr)
			t.logger.Warn("invalid stored value, using default", "path", path.String(), "err", err)
			continue
		}
		leaf.adopt(v)
	}
	t.clearAllDirty()
	t.base = t.TakeSnapshot()
	if t.gate != nil {
		t.gate.Rebase(t.base)
	}
	return report
}

// LoadFrom reads the store (local trees) or the channel (remote trees) and
// loads the result.
func (t *Tree) LoadFrom(ctx context.Context) (LoadReport, error) {
	src, err := t.fetch(ctx)
	if err != nil {
		return LoadReport{}, err
	}
	return t.Load(src), nil
}

// Fetch reads the current persisted state without touching the tree.
func (t *Tree) Fetch(ctx context.Context) (Source, error) {
	return t.fetch(ctx)
}

func (t *Tree) fetch(ctx context.Context) (Source, error) {
	switch {
	case t.scope == ScopeRemote:
		if t.channel == nil {
			return nil, &PersistenceError{Tree: t.key, Op: "fetch", Err: ErrNoChannel}
		}
		src, err := t.channel.Fetch(ctx)
		if err != nil {
			return nil, &PersistenceError{Tree: t.key, Op: "fetch", Err: err}
		}
		return src, nil
	case t.store == nil:
		return Values{}, nil
	default:
		src, err := t.store.Load(ctx)
		if err != nil {
			return nil, &PersistenceError{Tree: t.key, Op: "load", Err: err}
		}
		return src, nil
	}
}

// Normalize converts src into stored values the way Load would, without
// modifying the tree. Missing and invalid paths take their defaults; the
// invalid ones are returned as DecodeErrors.
func (t *Tree) Normalize(src Source) (Values, []error) {
	out := make(Values)
	var errs []error
	for _, id := range t.leaves(rootID) {
		leaf := t.nodes[id].leaf
		path := t.pathOf(id)
		raw, ok := src.Lookup(path)
		if !ok {
			out[path.String()] = codec.Clone(leaf.defaultStored())
			continue
		}
		v, err := leaf.normalize(raw)
		if err != nil {
			out[path.String()] = codec.Clone(leaf.defaultStored())
			errs = append(errs, &codec.DecodeError{Path: path.String(), Value: raw, Err: err})
			continue
		}
		out[path.String()] = v
	}
	return out, errs
}

// Adopt replaces the stored value at path with a value produced by
// Normalize and clears the entry's dirty flag. It is used when an external
// value wins reconciliation.
func (t *Tree) Adopt(path string, stored any) error {
	t.guard("Adopt")
	id, err := t.entryID(path)
	if err != nil {
		return err
	}
	t.nodes[id].leaf.adopt(stored)
	t.clearDirty(id)
	return nil
}

// Touch marks the entry at path dirty so the next commit writes it.
func (t *Tree) Touch(path string) error {
	t.guard("Touch")
	id, err := t.entryID(path)
	if err != nil {
		return err
	}
	t.markDirty(id)
	return nil
}

// DirtyPaths returns the entries changed since the last load or commit.
func (t *Tree) DirtyPaths() []string {
	var out []string
	for _, id := range t.leaves(rootID) {
		if t.nodes[id].dirty {
			out = append(out, t.pathOf(id).String())
		}
	}
	return out
}

// Commit persists every dirty entry and then bakes.
//
// Local trees write through the Store; remote trees push a ChangeSet through
// the Channel and fail with UnreconciledStateError while external changes
// are pending. A persistence failure leaves the tree as edited and skips
// baking. A bake failure is reported in the result and does not undo the
// write.
func (t *Tree) Commit(ctx context.Context) (CommitResult, error) {
	t.guard("Commit")

	if t.gate != nil {
		if pending := t.gate.Unreconciled(); len(pending) > 0 {
			if t.scope == ScopeRemote {
				return CommitResult{}, &UnreconciledStateError{Tree: t.key, Paths: pending}
			}
			// Local trees overwrite the external values.
			t.logger.Warn("committing over unreconciled external changes", "paths", pending)
			for _, p := range pending {
				if err := t.Touch(p); err != nil {
					return CommitResult{}, err
				}
			}
		}
	}

	changes := make(ChangeSet)
	restart := t.restart
	for _, id := range t.leaves(rootID) {
		if !t.nodes[id].dirty {
			continue
		}
		path := t.pathOf(id).String()
		leaf := t.nodes[id].leaf
		base, _ := t.base.Get(path)
		changes[path] = Change{Path: path, Base: base, New: codec.Clone(leaf.stored())}
		if leaf.meta().restart {
			restart = true
		}
	}

	if len(changes) > 0 {
		if err := t.persist(ctx, changes); err != nil {
			t.logger.Error("commit failed", "err", err)
			return CommitResult{}, err
		}
	}

	t.clearAllDirty()
	t.base = t.persistedSnapshot()
	if t.gate != nil {
		t.gate.Rebase(t.base)
	}
	t.logger.Debug("committed", "changes", len(changes))

	res := CommitResult{Changes: changes, Restart: restart && len(changes) > 0}
	res.BakeErr = t.Bake()
	return res, nil
}

// persistedSnapshot is what a load would return right after a commit: the
// current values with any store overrides applied on top.
func (t *Tree) persistedSnapshot() *Snapshot {
	s := t.TakeSnapshot()
	o, ok := t.store.(Overrider)
	if !ok || t.scope == ScopeRemote {
		return s
	}
	src := o.Overrides()
	for _, id := range t.leaves(rootID) {
		leaf := t.nodes[id].leaf
		path := t.pathOf(id)
		raw, ok := src.Lookup(path)
		if !ok {
			continue
		}
		v, err := leaf.normalize(raw)
		if err != nil {
			v = codec.Clone(leaf.defaultStored())
		}
		s.values[path.String()] = v
	}
	return s
}

func (t *Tree) persist(ctx context.Context, changes ChangeSet) error {
	if t.scope == ScopeRemote {
		if t.channel == nil {
			return &PersistenceError{Tree: t.key, Op: "push", Err: ErrNoChannel}
		}
		if err := t.channel.Push(ctx, changes); err != nil {
			return &PersistenceError{Tree: t.key, Op: "push", Err: err}
		}
		return nil
	}
	if t.store == nil {
		return nil
	}
	if p, ok := t.store.(Patcher); ok {
		if err := p.Patch(ctx, changes.NewValues()); err != nil {
			return &PersistenceError{Tree: t.key, Op: "patch", Err: err}
		}
		return nil
	}
	if err := t.store.Save(ctx, t.Values()); err != nil {
		return &PersistenceError{Tree: t.key, Op: "save", Err: err}
	}
	return nil
}

// Close releases the identity key. The tree must not be used afterwards.
func (t *Tree) Close() {
	if t.closed {
		return
	}
	t.closed = true
	if t.registry != nil {
		t.registry.release(t.key, t)
	}
}

// guard panics on mutation during baking or after Close. Both are
// programming errors.
func (t *Tree) guard(op string) {
	if t.baking {
		panic(mutationDuringBake(fmt.Sprintf("tree %s: %s called during bake", t.key, op)))
	}
	if t.closed {
		panic(fmt.Sprintf("tree %s: %s called after Close", t.key, op))
	}
}

// mutationDuringBake is the panic value for a baker that modifies the tree.
// Bake re-raises it instead of reporting a BakeError.
type mutationDuringBake string

func (t *Tree) entryID(path string) (nodeID, error) {
	id, ok := t.find(rootID, ParsePath(path))
	if !ok || id == rootID {
		return noNode, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if t.isGroup(id) {
		return noNode, fmt.Errorf("%w: %s", ErrNotEntry, path)
	}
	return id, nil
}
