package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/dshills/cfgtree/internal/config/codec"
	"github.com/dshills/cfgtree/internal/config/tree"
	"github.com/dshills/cfgtree/internal/logging"
)

// Errors returned by the engine.
var (
	// ErrNothingPending indicates Resolve or Preview was called in the Clean state.
	ErrNothingPending = errors.New("no external change pending")

	// ErrUnknownPolicy indicates an unrecognized policy name.
	ErrUnknownPolicy = errors.New("unknown reconciliation policy")

	// ErrNotFlagged indicates Settle was called for a path that is not flagged.
	ErrNotFlagged = errors.New("path is not flagged")
)

// State is the engine's position in the reconciliation cycle.
type State uint8

const (
	// Clean means no unresolved external change was observed.
	Clean State = iota
	// ExternalChangeDetected means the persisted state diverged from the base.
	ExternalChangeDetected
	// Resolved is reported by Resolve. The engine returns to Clean immediately.
	Resolved
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case ExternalChangeDetected:
		return "external-change-detected"
	case Resolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// Decision is the classification and outcome of one path.
type Decision struct {
	Path     string
	Class    Class
	Base     any
	Local    any
	External any
	Outcome  Outcome
}

// Final returns the value the path holds after resolution.
func (d Decision) Final() any {
	if d.Outcome == TakeExternal {
		return d.External
	}
	return d.Local
}

// Observation describes the result of OnExternalChange.
type Observation struct {
	// State is the engine state after the observation.
	State State
	// Changed lists the paths whose persisted value differs from the base.
	Changed []string
	// Invalid holds a DecodeError for every persisted value that could not
	// be decoded. Those paths are treated as holding their defaults.
	Invalid []error
	// Fingerprint hashes the normalized persisted state. It is zero if the
	// state could not be hashed.
	Fingerprint uint64
	// Repeated is true when the same external change was already pending.
	Repeated bool
}

// Resolution reports what Resolve did.
type Resolution struct {
	// ID identifies the resolution in logs and notifications.
	ID uuid.UUID
	// Policy is the policy applied.
	Policy Policy
	// State is always Resolved.
	State State
	// Decisions holds one entry per tree path in tree order.
	Decisions []Decision
	// Adopted lists paths that took a different external value.
	Adopted []string
	// Kept lists paths that kept a local value differing from the external one.
	Kept []string
	// Discarded lists paths whose local edit was overwritten.
	Discarded []string
	// Flagged lists conflicts kept for user attention.
	Flagged []string
	// Base is the snapshot the engine now compares against.
	Base *tree.Snapshot
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine tracks external changes to one tree.
type Engine struct {
	t      *tree.Tree
	logger *slog.Logger

	state    State
	base     *tree.Snapshot
	incoming tree.Values
	pending  uint64
	changed  []string
	flagged  map[string]Decision
}

// New creates an engine for t, using the tree's current base snapshot, and
// attaches it so that commits consult it.
func New(t *tree.Tree, opts ...Option) *Engine {
	e := &Engine{
		t:       t,
		logger:  logging.Discard(),
		base:    t.Base(),
		flagged: make(map[string]Decision),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("tree", t.Key())
	t.Attach(e)
	return e
}

// State returns the current state.
func (e *Engine) State() State { return e.state }

// Base returns the snapshot external changes are compared against.
func (e *Engine) Base() *tree.Snapshot { return e.base }

// OnExternalChange records the current persisted state. If it differs from
// the base the engine enters ExternalChangeDetected; if an earlier pending
// change has been reverted it returns to Clean.
func (e *Engine) OnExternalChange(src tree.Source) Observation {
	incoming, invalid := e.t.Normalize(src)
	for _, err := range invalid {
		e.logger.Warn("invalid external value, treating as default", "err", err)
	}
	sum, err := tree.NewSnapshot(e.t.Key(), incoming).Fingerprint()
	if err != nil {
		e.logger.Debug("cannot fingerprint external state", "err", err)
		sum = 0
	}

	delta := tree.Diff(e.base.Values(), incoming)
	if len(delta) == 0 {
		if e.state == ExternalChangeDetected {
			e.logger.Info("external change reverted")
		}
		e.reset()
		return Observation{State: e.state, Invalid: invalid, Fingerprint: sum}
	}

	repeated := e.state == ExternalChangeDetected && sum != 0 && sum == e.pending
	e.state = ExternalChangeDetected
	e.incoming = incoming
	e.pending = sum
	e.changed = delta.Paths()
	if repeated {
		e.logger.Debug("external change unchanged", "paths", len(e.changed))
	} else {
		e.logger.Info("external change detected", "paths", len(e.changed))
	}
	return Observation{
		State:       e.state,
		Changed:     slices.Clone(e.changed),
		Invalid:     invalid,
		Fingerprint: sum,
		Repeated:    repeated,
	}
}

// reset returns the engine to Clean without a pending change.
func (e *Engine) reset() {
	e.state = Clean
	e.incoming = nil
	e.pending = 0
	e.changed = nil
}

// Unreconciled returns the externally changed paths awaiting resolution.
func (e *Engine) Unreconciled() []string {
	if e.state != ExternalChangeDetected {
		return nil
	}
	return slices.Clone(e.changed)
}

// Preview classifies every path under policy without applying anything.
func (e *Engine) Preview(policy Policy) ([]Decision, error) {
	if e.state != ExternalChangeDetected {
		return nil, ErrNothingPending
	}
	return e.classify(policy), nil
}

func (e *Engine) classify(policy Policy) []Decision {
	local := e.t.Values()
	out := make([]Decision, 0, len(local))
	for p := range e.t.Walk() {
		path := p.String()
		base, _ := e.base.Get(path)
		d := Decision{
			Path:     path,
			Base:     base,
			Local:    local[path],
			External: codec.Clone(e.incoming[path]),
		}
		d.Class = Classify(d.Base, d.Local, d.External)
		d.Outcome = decide(policy, d.Class)
		out = append(out, d)
	}
	return out
}

// Resolve applies policy to the pending external change. Afterwards the
// external state is the new base and the engine is Clean. Every path that
// still differs from the persisted value is marked dirty so the next commit
// writes it.
func (e *Engine) Resolve(policy Policy) (Resolution, error) {
	if e.state != ExternalChangeDetected {
		return Resolution{}, ErrNothingPending
	}

	res := Resolution{
		ID:        uuid.New(),
		Policy:    policy,
		State:     Resolved,
		Decisions: e.classify(policy),
	}
	for _, d := range res.Decisions {
		differs := !codec.Equal(d.Local, d.External)
		switch d.Outcome {
		case TakeExternal:
			if err := e.t.Adopt(d.Path, d.External); err != nil {
				return Resolution{}, err
			}
			if differs {
				res.Adopted = append(res.Adopted, d.Path)
				if d.Class == LocalOnly || d.Class == Conflicting {
					res.Discarded = append(res.Discarded, d.Path)
				}
			}
		case KeepLocal:
			if !differs {
				continue
			}
			if err := e.t.Touch(d.Path); err != nil {
				return Resolution{}, err
			}
			res.Kept = append(res.Kept, d.Path)
			if policy == AcceptNonConflicting && d.Class == Conflicting {
				e.flagged[d.Path] = d
				res.Flagged = append(res.Flagged, d.Path)
			}
		}
	}

	e.base = tree.NewSnapshot(e.t.Key(), e.incoming)
	e.t.SetBase(e.base)
	res.Base = e.base
	e.reset()

	e.logger.Info("external change resolved",
		"policy", policy.String(),
		"adopted", len(res.Adopted),
		"kept", len(res.Kept),
		"flagged", len(res.Flagged))
	return res, nil
}

// Abandon discards the pending external change without touching the tree.
// The base is kept, so observing the same persisted state again detects
// the change again.
func (e *Engine) Abandon() {
	if e.state == ExternalChangeDetected {
		e.logger.Info("external change abandoned", "paths", len(e.changed))
	}
	e.reset()
}

// Rebase is called by the tree after a load or commit. The persisted state
// now equals s, so pending changes and flags are dropped.
func (e *Engine) Rebase(s *tree.Snapshot) {
	e.base = s
	e.reset()
	clear(e.flagged)
}

// Flagged returns the conflicts kept by AcceptNonConflicting that the user
// has not settled, ordered by path.
func (e *Engine) Flagged() []Decision {
	out := make([]Decision, 0, len(e.flagged))
	for _, path := range slices.Sorted(maps.Keys(e.flagged)) {
		out = append(out, e.flagged[path])
	}
	return out
}

// Settle clears the flag on a conflict. With takeExternal the external value
// replaces the local one; otherwise the local value stays and the next
// commit writes it.
func (e *Engine) Settle(path string, takeExternal bool) error {
	d, ok := e.flagged[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFlagged, path)
	}
	if takeExternal {
		if err := e.t.Adopt(path, d.External); err != nil {
			return err
		}
	}
	delete(e.flagged, path)
	return nil
}
