// Package tree holds the typed configuration tree: entries, the groups that
// own them, and the tree that loads, commits and bakes them.
//
// Hosts declare a tree with an immutable Builder. Each entry is declared with
// a Spec that names its codec, default, range and validators:
//
//	b := tree.NewBuilder("player").
//	    Group("audio", tree.Expanded()).
//	    Entry("audio", tree.Value[float64]("volume").WithDefault(0.5).WithRange(0, 1))
//	t, err := b.Build(tree.WithStore(store))
//
// Build checks every contract at once and either returns a complete tree or
// an error; a half-built tree is never returned.
//
// Nodes live in an arena owned by the tree. Parents are referenced by index,
// so marking an entry dirty walks indices up to the root rather than
// following pointers.
//
// A tree is owned by a single goroutine. Callers serialize access; external
// changes are delivered to the owner, which hands them to the reconcile
// package.
package tree
