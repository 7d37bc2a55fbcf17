package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/dshills/cfgtree/internal/config/tree"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS settings (
		tree TEXT NOT NULL,
		path TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (tree, path)
	);
`

// SQLite keeps the entries of one tree as rows keyed by tree and path.
// Several trees can share a database file.
type SQLite struct {
	mu     sync.Mutex
	db     *sql.DB
	tree   string
	closed bool
}

// OpenSQLite opens or creates the database at path for the tree with the
// given identity key. Use ":memory:" for a private in-memory database.
func OpenSQLite(path, treeKey string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLite{db: db, tree: treeKey}, nil
}

// Load reads every row of the tree. Values are JSON-encoded.
func (s *SQLite) Load(ctx context.Context) (tree.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, "SELECT path, value FROM settings WHERE tree = ?", s.tree)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(tree.Values)
	for rows.Next() {
		var path, raw string
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			// Leave it to the entry to report; a string is never a valid list or bean.
			v = raw
		}
		out[path] = v
	}
	return out, rows.Err()
}

// Save replaces every row of the tree with values, dropping rows of paths
// no longer present.
func (s *SQLite) Save(ctx context.Context, values tree.Values) error {
	return s.write(ctx, values, true)
}

// Patch upserts the given values in one transaction.
func (s *SQLite) Patch(ctx context.Context, values tree.Values) error {
	return s.write(ctx, values, false)
}

func (s *SQLite) write(ctx context.Context, values tree.Values, replace bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE tree = ?", s.tree); err != nil {
			return fmt.Errorf("clearing %s: %w", s.tree, err)
		}
	}

	now := time.Now().UTC()
	for _, path := range values.Paths() {
		raw, err := json.Marshal(values[path])
		if err != nil {
			return fmt.Errorf("encoding %s: %w", path, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO settings (tree, path, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(tree, path) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at
		`, s.tree, path, string(raw), now)
		if err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
