package store

import (
	"os"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"

	"github.com/dshills/cfgtree/internal/config/tree"
)

// Env is a source reading PREFIX_GROUP_ENTRY environment variables.
// Values stay strings and are converted by the entry; JSON arrays and
// objects are parsed so lists and beans can be set too.
type Env struct {
	prefix  string
	mapping map[string]string
	lookup  func(string) (string, bool)
}

// NewEnv creates an environment source. The prefix may omit the trailing
// underscore.
func NewEnv(prefix string) *Env {
	return &Env{
		prefix:  strings.TrimSuffix(strings.ToUpper(prefix), "_"),
		mapping: make(map[string]string),
		lookup:  os.LookupEnv,
	}
}

// Map reads path from variable instead of the derived name.
func (e *Env) Map(path, variable string) *Env {
	e.mapping[path] = variable
	return e
}

// Name returns the variable consulted for path.
func (e *Env) Name(path tree.Path) string {
	if v, ok := e.mapping[path.String()]; ok {
		return v
	}
	return EnvName(e.prefix, path)
}

// Lookup implements tree.Source. Empty variables count as set.
func (e *Env) Lookup(path tree.Path) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	val, ok := e.lookup(e.Name(path))
	if !ok {
		return nil, false
	}
	return parseValue(val), true
}

// EnvName derives a variable name from a path: prefix "APP" and path
// net.maxPlayers give APP_NET_MAX_PLAYERS.
func EnvName(prefix string, path tree.Path) string {
	parts := make([]string, 0, len(path)+1)
	if prefix != "" {
		parts = append(parts, strings.TrimSuffix(strings.ToUpper(prefix), "_"))
	}
	for _, seg := range path {
		parts = append(parts, snake(seg))
	}
	return strings.Join(parts, "_")
}

// snake converts camelCase and dashed names to upper snake case.
func snake(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		switch {
		case r == '-' || r == ' ':
			b.WriteByte('_')
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return b.String()
}

func parseValue(s string) any {
	trimmed := strings.TrimSpace(s)
	if (strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{")) && gjson.Valid(trimmed) {
		return gjson.Parse(trimmed).Value()
	}
	return s
}
