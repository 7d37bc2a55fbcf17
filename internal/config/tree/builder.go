package tree

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dshills/cfgtree/internal/logging"
)

// Scope tells whether a tree owns its values or mirrors an authority elsewhere.
type Scope uint8

const (
	// ScopeLocal trees own their values and write them to a Store.
	ScopeLocal Scope = iota
	// ScopeRemote trees mirror an authoritative copy and push edits through a Channel.
	ScopeRemote
)

// String returns the scope name.
func (s Scope) String() string {
	switch s {
	case ScopeLocal:
		return "local"
	case ScopeRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// GroupOption configures a group declaration.
type GroupOption func(*groupMeta)

// Expanded marks a group as expanded by default when displayed.
func Expanded() GroupOption {
	return func(g *groupMeta) { g.expanded = true }
}

// Describe sets help text for a group.
func Describe(text string) GroupOption {
	return func(g *groupMeta) { g.description = text }
}

type opKind uint8

const (
	opGroup opKind = iota
	opEntry
)

type buildOp struct {
	kind   opKind
	parent string
	name   string
	decl   Declaration
	group  []GroupOption
}

// Builder describes a tree. It is an immutable value: every method returns
// a new Builder and leaves the receiver untouched. Nothing is validated
// until Build.
type Builder struct {
	key     string
	scope   Scope
	restart bool
	baker   Baker
	ops     []buildOp
}

// NewBuilder starts a tree description with the given identity key.
func NewBuilder(key string) Builder {
	return Builder{key: key}
}

// Key returns the identity key.
func (b Builder) Key() string { return b.key }

// Scope sets the authority scope.
func (b Builder) Scope(s Scope) Builder {
	b.scope = s
	return b
}

// RequiresRestart marks every change to the tree as needing a restart.
func (b Builder) RequiresRestart() Builder {
	b.restart = true
	return b
}

// Baker registers the function run after every successful commit.
func (b Builder) Baker(bk Baker) Builder {
	b.baker = bk
	return b
}

// Group declares a group. path is dotted; its parent must already be declared.
func (b Builder) Group(path string, opts ...GroupOption) Builder {
	p := ParsePath(path)
	b.ops = append(slices.Clip(b.ops), buildOp{
		kind:   opGroup,
		parent: p.Parent().String(),
		name:   p.Name(),
		group:  slices.Clone(opts),
	})
	return b
}

// Entry declares an entry inside group. An empty group means the root.
func (b Builder) Entry(group string, d Declaration) Builder {
	name := ""
	if d != nil {
		name = d.declName()
	}
	b.ops = append(slices.Clip(b.ops), buildOp{
		kind:   opEntry,
		parent: group,
		name:   name,
		decl:   d,
	})
	return b
}

// Option configures a tree at build time.
type Option func(*Tree)

// WithStore sets the backing store of a local tree.
func WithStore(s Store) Option {
	return func(t *Tree) { t.store = s }
}

// WithChannel sets the sync channel of a remote tree.
func WithChannel(c Channel) Option {
	return func(t *Tree) { t.channel = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tree) {
		if l != nil {
			t.logger = l
		}
	}
}

// Build validates every declaration and returns the tree. All contract
// violations are reported together; on error no tree is returned.
func (b Builder) Build(opts ...Option) (*Tree, error) {
	t := &Tree{
		key:     b.key,
		scope:   b.scope,
		restart: b.restart,
		baker:   b.baker,
		logger:  logging.Discard(),
		nodes: []node{{
			parent: noNode,
			index:  make(map[string]nodeID),
			group:  &groupMeta{expanded: true, caption: noNode},
		}},
	}
	for _, opt := range opts {
		opt(t)
	}

	var errs []error
	if b.key == "" {
		errs = append(errs, &BuilderContractError{Node: "", Option: "key", Reason: "empty identity key"})
	}
	for _, op := range b.ops {
		if err := t.apply(op); err != nil {
			errs = append(errs, err)
		}
	}
	if b.scope == ScopeRemote && t.store != nil {
		errs = append(errs, &BuilderContractError{Node: "", Option: "WithStore", Reason: "remote trees never write the backing store; use WithChannel"})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	t.logger = t.logger.With("tree", t.key)
	t.base = t.TakeSnapshot()
	return t, nil
}

func (t *Tree) apply(op buildOp) error {
	parentPath := ParsePath(op.parent)
	nodePath := parentPath.Child(op.name).String()

	parent, ok := t.find(rootID, parentPath)
	if !ok || !t.isGroup(parent) {
		return &BuilderContractError{Node: nodePath, Option: "parent", Reason: fmt.Sprintf("group %q is not declared", op.parent)}
	}
	if !validName(op.name) {
		return &BuilderContractError{Node: nodePath, Option: "name", Reason: fmt.Sprintf("invalid name %q", op.name)}
	}

	switch op.kind {
	case opGroup:
		meta := &groupMeta{}
		for _, opt := range op.group {
			opt(meta)
		}
		_, err := t.addChild(parent, node{name: op.name, group: meta})
		return err
	case opEntry:
		if op.decl == nil {
			return &BuilderContractError{Node: nodePath, Option: "Entry", Reason: "nil declaration"}
		}
		leaf, err := op.decl.declare(nodePath)
		if err != nil {
			return err
		}
		id, err := t.addChild(parent, node{name: op.name, leaf: leaf})
		if err != nil {
			return err
		}
		if leaf.meta().caption {
			g := t.nodes[parent].group
			if g.caption != noNode {
				t.logger.Debug("caption replaced",
					"group", parentPath.String(),
					"old", t.nodes[g.caption].name,
					"new", op.name)
				t.nodes[g.caption].leaf.meta().caption = false
			}
			g.caption = id
		}
		return nil
	}
	return nil
}
