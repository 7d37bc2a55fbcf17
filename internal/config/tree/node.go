package tree

// nodeID indexes the tree's node arena.
type nodeID int

const (
	rootID nodeID = 0
	noNode nodeID = -1
)

// node is one arena slot: a group when leaf is nil, an entry otherwise.
type node struct {
	name     string
	parent   nodeID
	children []nodeID
	index    map[string]nodeID
	leaf     slot
	group    *groupMeta
	dirty    bool
}

// groupMeta holds display hints for a group.
type groupMeta struct {
	expanded    bool
	description string
	caption     nodeID
}

func (t *Tree) isGroup(id nodeID) bool {
	return t.nodes[id].leaf == nil
}

// addChild appends n under parent. On a name clash nothing is modified.
func (t *Tree) addChild(parent nodeID, n node) (nodeID, error) {
	p := &t.nodes[parent]
	if _, exists := p.index[n.name]; exists {
		return noNode, &DuplicateNameError{Group: t.pathOf(parent).String(), Name: n.name}
	}
	id := nodeID(len(t.nodes))
	n.parent = parent
	if n.leaf == nil {
		n.index = make(map[string]nodeID)
		if n.group == nil {
			n.group = &groupMeta{}
		}
		n.group.caption = noNode
	}
	t.nodes = append(t.nodes, n)
	// t.nodes may have been reallocated; index again.
	p = &t.nodes[parent]
	p.children = append(p.children, id)
	p.index[n.name] = id
	return id, nil
}

// pathOf rebuilds the path of id from parent indices.
func (t *Tree) pathOf(id nodeID) Path {
	var rev []string
	for n := id; n != rootID && n != noNode; n = t.nodes[n].parent {
		rev = append(rev, t.nodes[n].name)
	}
	p := make(Path, len(rev))
	for i, name := range rev {
		p[len(rev)-1-i] = name
	}
	return p
}

// find walks segments starting at from.
func (t *Tree) find(from nodeID, segments []string) (nodeID, bool) {
	id := from
	for _, seg := range segments {
		if !t.isGroup(id) {
			return noNode, false
		}
		next, ok := t.nodes[id].index[seg]
		if !ok {
			return noNode, false
		}
		id = next
	}
	return id, true
}

// markDirty flags id and every ancestor up to the root.
func (t *Tree) markDirty(id nodeID) {
	for n := id; n != noNode; n = t.nodes[n].parent {
		t.nodes[n].dirty = true
	}
}

// clearDirty unflags one entry and recomputes group flags bottom-up.
func (t *Tree) clearDirty(id nodeID) {
	t.nodes[id].dirty = false
	for n := t.nodes[id].parent; n != noNode; n = t.nodes[n].parent {
		dirty := false
		for _, c := range t.nodes[n].children {
			if t.nodes[c].dirty {
				dirty = true
				break
			}
		}
		t.nodes[n].dirty = dirty
	}
}

// clearAllDirty unflags every node.
func (t *Tree) clearAllDirty() {
	for i := range t.nodes {
		t.nodes[i].dirty = false
	}
}

// leaves returns entry ids in pre-order.
func (t *Tree) leaves(from nodeID) []nodeID {
	var out []nodeID
	var visit func(id nodeID)
	visit = func(id nodeID) {
		if !t.isGroup(id) {
			out = append(out, id)
			return
		}
		for _, c := range t.nodes[id].children {
			visit(c)
		}
	}
	visit(from)
	return out
}
