// Package reconcile resolves divergence between a tree's uncommitted local
// edits and changes made to its persisted values by someone else.
//
// An Engine is attached to one tree. The host calls OnExternalChange with
// the persisted state whenever it notices the store or the remote authority
// changed. If the normalized state differs from the engine's base, the
// engine enters ExternalChangeDetected and every path is classified by
// comparing its base, local and external value:
//
//	local == base, external == base     Unchanged
//	local != base, external == base     LocalOnly
//	local == base, external != base     ExternalOnly
//	both changed, local != external     Conflicting
//	both changed, local == external     Convergent
//
// Resolve applies one of three policies and returns the engine to Clean
// with the external state as the new base:
//
//   - RejectExternal keeps every in-memory value; the next commit rewrites the store.
//   - AcceptAll adopts every external value, discarding local edits.
//   - AcceptNonConflicting adopts external-only changes and keeps and flags conflicts.
//
// Engines are not safe for concurrent use. External changes are delivered
// to the goroutine that owns the tree.
package reconcile
