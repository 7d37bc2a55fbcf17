// Package config ties a declared configuration tree to its persistence,
// reconciliation, notification and metrics for a host application.
//
// # Architecture
//
//	┌───────────────┐   Set/Get/Reset    ┌──────────────┐
//	│     host      │ ─────────────────▶ │  tree.Tree   │ ── Bake ──▶ Baker
//	└───────────────┘                    └──────────────┘
//	        │ Commit / Load                     ▲ Adopt/Touch
//	        ▼                                   │
//	┌───────────────┐  Reload / Watch    ┌──────────────┐
//	│ store / sync  │ ─────────────────▶ │  reconcile   │
//	│    channel    │                    │    Engine    │
//	└───────────────┘                    └──────────────┘
//
// Sub-packages:
//
//   - codec: value codecs, validation and decode errors
//   - tree: entries, groups, the builder, snapshots and baking
//   - reconcile: external change classification and policies
//   - store: TOML, YAML, JSON, SQLite, memory and environment stores
//   - watcher: fsnotify-based file watching with debounce
//   - notify: change events and observers
//   - metrics: Prometheus collectors
//
// # Basic Usage
//
//	b := tree.NewBuilder("player").
//	    Group("audio").
//	    Entry("audio", tree.Value[float64]("volume").WithRange(0, 1).WithDefault(0.5))
//
//	st, _ := store.Open("player.toml", "player")
//	m, err := config.Open(ctx, b, config.WithStore(st))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	_ = m.Set("audio.volume", 0.3)
//	res, err := m.Commit(ctx)
//
// # Typed Access
//
// The Manager serializes access to its tree. Typed entry handles are used
// inside Do:
//
//	err := m.Do(func(t *tree.Tree) error {
//	    vol, err := tree.Lookup[float64, float64, float64](t, "audio.volume")
//	    if err != nil {
//	        return err
//	    }
//	    return vol.Set(0.8)
//	})
//
// # External Changes
//
// Reload reads the persisted state and reports whether it diverged from
// what the tree last loaded or committed. Watch does the same whenever the
// backing file or the sync channel announces a change, and hands the
// observation to a host callback, which typically calls Resolve.
package config
