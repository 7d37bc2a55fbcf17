package tree

import (
	"fmt"
	"iter"
)

// Group is a handle to an ordered container of entries and groups.
type Group struct {
	t  *Tree
	id nodeID
}

// Name returns the group name; the root's name is empty.
func (g Group) Name() string { return g.t.nodes[g.id].name }

// Path returns the group path; the root's path is empty.
func (g Group) Path() Path { return g.t.pathOf(g.id) }

// IsGroup returns true.
func (g Group) IsGroup() bool { return true }

// Expanded reports whether the group should be displayed expanded.
func (g Group) Expanded() bool { return g.t.nodes[g.id].group.expanded }

// Description returns the group's help text.
func (g Group) Description() string { return g.t.nodes[g.id].group.description }

// Dirty reports whether any descendant changed since the last load or commit.
func (g Group) Dirty() bool { return g.t.nodes[g.id].dirty }

// Len returns the number of direct children.
func (g Group) Len() int { return len(g.t.nodes[g.id].children) }

// Children returns the direct children in declaration order.
func (g Group) Children() []Node {
	ids := g.t.nodes[g.id].children
	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = g.t.handle(id)
	}
	return out
}

// Resolve walks path below the group. It returns false if any segment is
// absent or passes through an entry.
func (g Group) Resolve(path ...string) (Node, bool) {
	id, ok := g.t.find(g.id, path)
	if !ok {
		return nil, false
	}
	return g.t.handle(id), true
}

// Walk yields every descendant entry in pre-order. The sequence can be
// ranged over any number of times.
func (g Group) Walk() iter.Seq2[Path, Item] {
	return func(yield func(Path, Item) bool) {
		for _, id := range g.t.leaves(g.id) {
			if !yield(g.t.pathOf(id), Item{t: g.t, id: id}) {
				return
			}
		}
	}
}

// Caption returns the entry summarizing this group, if one was marked.
func (g Group) Caption() (Item, bool) {
	c := g.t.nodes[g.id].group.caption
	if c == noNode {
		return Item{}, false
	}
	return Item{t: g.t, id: c}, true
}

// Summary renders the caption entry's current value, or "" without a caption.
func (g Group) Summary() string {
	item, ok := g.Caption()
	if !ok {
		return ""
	}
	v, _ := item.Get()
	return fmt.Sprint(v)
}

func (t *Tree) handle(id nodeID) Node {
	if t.isGroup(id) {
		return Group{t: t, id: id}
	}
	return Item{t: t, id: id}
}
