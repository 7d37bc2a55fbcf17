package tree

import (
	"strings"
)

// Separator joins path segments in their string form.
const Separator = "."

// Path addresses a node by the names of its ancestors.
type Path []string

// ParsePath splits a dotted path. The empty string is the root.
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	return Path(strings.Split(s, Separator))
}

// String returns the dotted form of the path.
func (p Path) String() string {
	return strings.Join(p, Separator)
}

// Child returns p extended by name. p is not modified.
func (p Path) Child(name string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, name)
}

// Parent returns p without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Name returns the last segment.
func (p Path) Name() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// validName reports whether name can be used as a node name.
func validName(name string) bool {
	return name != "" && !strings.Contains(name, Separator) && strings.TrimSpace(name) == name
}
