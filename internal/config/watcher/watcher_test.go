package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newWatcher(t *testing.T, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

// recorder collects events delivered to a handler.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// waitFor polls until at least n events arrived or the deadline passes.
func (r *recorder) waitFor(n int, timeout time.Duration) []Event {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ev := r.snapshot(); len(ev) >= n {
			return ev
		}
		time.Sleep(10 * time.Millisecond)
	}
	return r.snapshot()
}

func TestNew(t *testing.T) {
	w := newWatcher(t)
	if w.debounce != 100*time.Millisecond {
		t.Errorf("default debounce = %v, want 100ms", w.debounce)
	}

	w = newWatcher(t, WithDebounce(50*time.Millisecond))
	if w.debounce != 50*time.Millisecond {
		t.Errorf("debounce = %v, want 50ms", w.debounce)
	}
}

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpWrite, "write"},
		{OpCreate, "create"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestWatcher_WatchUnwatch(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.toml")
	b := filepath.Join(tmpDir, "missing.toml")
	w := newWatcher(t)

	if err := w.Watch(a); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if err := w.Watch(b); err != nil {
		t.Fatalf("Watch() of missing file error = %v", err)
	}
	if err := w.Watch(a); err != nil {
		t.Fatalf("second Watch() error = %v", err)
	}
	if got := w.WatchedFiles(); len(got) != 2 || w.dirs[tmpDir] != 2 {
		t.Errorf("WatchedFiles() = %v, dir refs = %d", got, w.dirs[tmpDir])
	}

	if err := w.Unwatch(a); err != nil {
		t.Fatal(err)
	}
	if err := w.Unwatch(b); err != nil {
		t.Fatal(err)
	}
	if len(w.WatchedFiles()) != 0 || len(w.dirs) != 0 {
		t.Errorf("watch state not cleared: %v %v", w.files, w.dirs)
	}

	if err := w.Watch(filepath.Join(tmpDir, "nodir", "x.toml")); err == nil {
		t.Error("Watch() in a missing directory should fail")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w := newWatcher(t)
	if w.IsRunning() {
		t.Error("watcher running before Start")
	}
	w.Start()
	w.Start()
	if !w.IsRunning() {
		t.Error("watcher not running after Start")
	}
	w.Stop()
	w.Stop()
	if w.IsRunning() {
		t.Error("watcher running after Stop")
	}
}

func TestWatcher_DetectsFileModification(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "test.toml")
	if err := os.WriteFile(tmpFile, []byte("initial"), 0644); err != nil {
		t.Fatal(err)
	}

	w := newWatcher(t, WithDebounce(0))
	var rec recorder
	w.OnChange(rec.handle)
	if err := w.Watch(tmpFile); err != nil {
		t.Fatal(err)
	}
	w.Start()

	if err := os.WriteFile(tmpFile, []byte("modified"), 0644); err != nil {
		t.Fatal(err)
	}

	events := rec.waitFor(1, time.Second)
	if len(events) == 0 {
		t.Fatal("did not receive file change event")
	}
	if events[0].Op != OpWrite {
		t.Errorf("event.Op = %v, want OpWrite", events[0].Op)
	}
	if events[0].Path != tmpFile {
		t.Errorf("event.Path = %q, want %q", events[0].Path, tmpFile)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "watched.toml")

	w := newWatcher(t, WithDebounce(0))
	var rec recorder
	w.OnChange(rec.handle)
	_ = w.Watch(tmpFile)
	w.Start()

	if err := os.WriteFile(filepath.Join(tmpDir, "other.toml"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if events := rec.snapshot(); len(events) != 0 {
		t.Errorf("received events for unwatched file: %v", events)
	}
}

func TestWatcher_DetectsFileCreation(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "new.toml")

	w := newWatcher(t, WithDebounce(20*time.Millisecond))
	var rec recorder
	w.OnChange(rec.handle)
	_ = w.Watch(tmpFile)
	w.Start()

	if err := os.WriteFile(tmpFile, []byte("created"), 0644); err != nil {
		t.Fatal(err)
	}

	events := rec.waitFor(1, time.Second)
	if len(events) != 1 {
		t.Fatalf("received %d events, want 1", len(events))
	}
	if events[0].Op != OpCreate {
		t.Errorf("event.Op = %v, want OpCreate", events[0].Op)
	}
}

func TestWatcher_DetectsFileDeletion(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "delete.toml")
	if err := os.WriteFile(tmpFile, []byte("initial"), 0644); err != nil {
		t.Fatal(err)
	}

	w := newWatcher(t, WithDebounce(0))
	var rec recorder
	w.OnChange(rec.handle)
	_ = w.Watch(tmpFile)
	w.Start()

	if err := os.Remove(tmpFile); err != nil {
		t.Fatal(err)
	}

	events := rec.waitFor(1, time.Second)
	if len(events) == 0 {
		t.Fatal("did not receive file deletion event")
	}
	if events[0].Op != OpRemove {
		t.Errorf("event.Op = %v, want OpRemove", events[0].Op)
	}
}

func TestWatcher_AtomicReplace(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "atomic.toml")
	if err := os.WriteFile(tmpFile, []byte("initial"), 0644); err != nil {
		t.Fatal(err)
	}

	w := newWatcher(t, WithDebounce(30*time.Millisecond))
	var rec recorder
	w.OnChange(rec.handle)
	_ = w.Watch(tmpFile)
	w.Start()

	for i := 0; i < 2; i++ {
		tmp := tmpFile + ".tmp"
		if err := os.WriteFile(tmp, []byte("replaced"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.Rename(tmp, tmpFile); err != nil {
			t.Fatal(err)
		}
		// Each replacement is seen, so the file is still watched after the first.
		events := rec.waitFor(i+1, time.Second)
		if len(events) != i+1 {
			t.Fatalf("after replace %d: %d events", i+1, len(events))
		}
		if events[i].Op != OpCreate && events[i].Op != OpWrite {
			t.Errorf("replace %d: Op = %v", i+1, events[i].Op)
		}
	}
}

func TestWatcher_Debounce(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "debounce.toml")
	if err := os.WriteFile(tmpFile, []byte("initial"), 0644); err != nil {
		t.Fatal(err)
	}

	w := newWatcher(t, WithDebounce(100*time.Millisecond))
	var eventCount atomic.Int32
	w.OnChange(func(event Event) {
		eventCount.Add(1)
	})
	_ = w.Watch(tmpFile)
	w.Start()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(tmpFile, []byte("modified"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)

	if count := eventCount.Load(); count != 1 {
		t.Errorf("received %d events, expected 1 (debounced)", count)
	}
}

func TestQueueEvent_Coalesces(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want Operation
	}{
		{"create then write", []Operation{OpCreate, OpWrite}, OpCreate},
		{"writes", []Operation{OpWrite, OpWrite}, OpWrite},
		{"replace by rename", []Operation{OpRename, OpCreate}, OpWrite},
		{"write then create", []Operation{OpWrite, OpCreate}, OpWrite},
		{"remove wins", []Operation{OpCreate, OpWrite, OpRemove}, OpRemove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWatcher(t)
			for _, op := range tt.ops {
				w.queueEvent(Event{Path: "/x", Op: op, Time: time.Now()})
			}
			if got := w.pendingFiles["/x"].Op; got != tt.want {
				t.Errorf("coalesced op = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWatcher_HandlerPanicRecovered(t *testing.T) {
	w := newWatcher(t, WithDebounce(0))
	var called atomic.Int32
	w.OnChange(func(Event) { panic("boom") })
	w.OnChange(func(Event) { called.Add(1) })

	w.emitEvent(Event{Path: "/x", Op: OpWrite})
	if called.Load() != 1 {
		t.Error("handler after a panicking handler was not called")
	}
}
