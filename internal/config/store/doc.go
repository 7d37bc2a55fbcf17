// Package store implements the persistence boundary of configuration trees.
//
// File stores keep a tree as a nested document in TOML, YAML or JSON. Keys
// the tree does not declare are preserved on save, and only the entries
// being written are replaced. SQLite keeps one row per entry path. Memory is
// used in tests and as the authority behind a Mirror.
//
// Env and Overlay are read-only sources layered over a store on load.
package store
