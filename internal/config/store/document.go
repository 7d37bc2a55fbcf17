package store

import (
	"github.com/dshills/cfgtree/internal/config/codec"
	"github.com/dshills/cfgtree/internal/config/tree"
)

// Document is a parsed nested configuration file. Groups are tables and
// entries are keys.
type Document map[string]any

// Lookup implements tree.Source by walking nested tables.
func (d Document) Lookup(path tree.Path) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	var cur any = map[string]any(d)
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores v at path, creating intermediate tables and replacing any
// non-table value in the way.
func (d Document) Set(path tree.Path, v any) {
	if len(path) == 0 {
		return
	}
	current := map[string]any(d)
	for _, seg := range path[:len(path)-1] {
		next, ok := current[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[seg] = next
		}
		current = next
	}
	current[path.Name()] = codec.Clone(v)
}

// Apply writes every value into the document.
func (d Document) Apply(values tree.Values) {
	for _, p := range values.Paths() {
		d.Set(tree.ParsePath(p), values[p])
	}
}
