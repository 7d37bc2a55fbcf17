package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/cfgtree/internal/config/tree"
)

// Open returns the store for path chosen by its extension: .toml, .yaml,
// .yml, .json, .db, .sqlite or .sqlite3. treeKey is only used by SQLite.
// Stores that hold resources implement io.Closer.
func Open(path, treeKey string, opts ...Option) (tree.Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return NewTOML(path, opts...), nil
	case ".yaml", ".yml":
		return NewYAML(path, opts...), nil
	case ".json":
		return NewJSON(path, opts...), nil
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(path, treeKey)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}
