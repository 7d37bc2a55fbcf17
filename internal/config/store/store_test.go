package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/dshills/cfgtree/internal/config/codec"
	"github.com/dshills/cfgtree/internal/config/tree"
)

func playerTree(t *testing.T, opts ...tree.Option) *tree.Tree {
	t.Helper()
	tr, err := tree.NewBuilder("player").
		Group("audio").
		Entry("audio", tree.Value[float64]("volume").WithDefault(0.5).WithRange(0, 1)).
		Entry("audio", tree.Value[bool]("muted")).
		Group("net").
		Entry("net", tree.Value[int]("maxPlayers").WithDefault(8)).
		Entry("net", tree.List[string, string]("recent", codec.Identity[string]{})).
		Build(opts...)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return tr
}

func lookup(t *testing.T, src tree.Source, path string) any {
	t.Helper()
	v, ok := src.Lookup(tree.ParsePath(path))
	if !ok {
		t.Fatalf("Lookup(%s) missing", path)
	}
	return v
}

func TestFileStores_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		store func(afero.Fs, string) tree.Store
	}{
		{"toml", "/cfg/player.toml", func(fs afero.Fs, p string) tree.Store { return NewTOML(p, WithFs(fs)) }},
		{"yaml", "/cfg/player.yaml", func(fs afero.Fs, p string) tree.Store { return NewYAML(p, WithFs(fs)) }},
		{"json", "/cfg/player.json", func(fs afero.Fs, p string) tree.Store { return NewJSON(p, WithFs(fs)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			st := tt.store(fs, tt.path)
			ctx := context.Background()

			// Missing file loads as empty.
			src, err := st.Load(ctx)
			if err != nil {
				t.Fatalf("Load of missing file failed: %v", err)
			}
			if _, ok := src.Lookup(tree.ParsePath("audio.volume")); ok {
				t.Error("missing file should have no values")
			}

			tr := playerTree(t, tree.WithStore(st))
			if _, err := tr.LoadFrom(ctx); err != nil {
				t.Fatal(err)
			}
			vol, _ := tr.Item("audio.volume")
			recent, _ := tr.Item("net.recent")
			if err := vol.Set(0.25); err != nil {
				t.Fatal(err)
			}
			if err := recent.Set([]string{"eu-1", "us-2"}); err != nil {
				t.Fatal(err)
			}
			if _, err := tr.Commit(ctx); err != nil {
				t.Fatalf("Commit failed: %v", err)
			}

			fresh := playerTree(t, tree.WithStore(st))
			report, err := fresh.LoadFrom(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(report.Invalid) != 0 {
				t.Errorf("Invalid = %v", report.Invalid)
			}
			if diff := cmp.Diff(tr.Values(), fresh.Values()); diff != "" {
				t.Errorf("reloaded values mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFileStores_PreserveForeignKeys(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		store   func(afero.Fs, string) tree.Store
	}{
		{
			name:    "toml",
			path:    "/p.toml",
			content: "theme = \"dark\"\n\n[audio]\nvolume = 0.7\nequalizer = \"rock\"\n",
			store:   func(fs afero.Fs, p string) tree.Store { return NewTOML(p, WithFs(fs)) },
		},
		{
			name:    "yaml",
			path:    "/p.yaml",
			content: "theme: dark\naudio:\n  volume: 0.7\n  equalizer: rock\n",
			store:   func(fs afero.Fs, p string) tree.Store { return NewYAML(p, WithFs(fs)) },
		},
		{
			name:    "json",
			path:    "/p.json",
			content: `{"theme": "dark", "audio": {"volume": 0.7, "equalizer": "rock"}}`,
			store:   func(fs afero.Fs, p string) tree.Store { return NewJSON(p, WithFs(fs)) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if err := afero.WriteFile(fs, tt.path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			st := tt.store(fs, tt.path)
			ctx := context.Background()

			src, err := st.Load(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if v := lookup(t, src, "audio.volume"); !codec.EqualLoose(v, 0.7) {
				t.Errorf("volume = %v", v)
			}

			if err := st.(tree.Patcher).Patch(ctx, tree.Values{"audio.volume": 0.2}); err != nil {
				t.Fatalf("Patch failed: %v", err)
			}
			src, err = st.Load(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if v := lookup(t, src, "audio.volume"); !codec.EqualLoose(v, 0.2) {
				t.Errorf("volume after patch = %v", v)
			}
			if v := lookup(t, src, "theme"); v != "dark" {
				t.Errorf("theme = %v, want dark", v)
			}
			if v := lookup(t, src, "audio.equalizer"); v != "rock" {
				t.Errorf("equalizer = %v, want rock", v)
			}
			if ok, _ := afero.Exists(fs, tt.path+".tmp"); ok {
				t.Error("temporary file left behind")
			}
		})
	}
}

func TestFileStores_ParseError(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/bad.toml", []byte("volume = = 1"), 0o644)
	_ = afero.WriteFile(fs, "/bad.json", []byte(`{"volume": `), 0o644)
	_ = afero.WriteFile(fs, "/list.json", []byte(`[1, 2]`), 0o644)

	for _, st := range []tree.Store{
		NewTOML("/bad.toml", WithFs(fs)),
		NewJSON("/bad.json", WithFs(fs)),
		NewJSON("/list.json", WithFs(fs)),
	} {
		_, err := st.Load(context.Background())
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%T Load error = %v, want ParseError", st, err)
		}
		if err := st.Save(context.Background(), tree.Values{"a": 1}); !errors.As(err, &pe) {
			t.Errorf("%T Save over unparseable file error = %v", st, err)
		}
	}
}

func TestSQLite(t *testing.T) {
	st, err := OpenSQLite(":memory:", "player")
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	tr := playerTree(t, tree.WithStore(st))
	if _, err := tr.LoadFrom(ctx); err != nil {
		t.Fatal(err)
	}
	players := mustEntry(t, tr, "net.maxPlayers")
	if err := players.Set(32); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	src, err := st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Only the dirty entry was written.
	if got := src.(tree.Values).Paths(); !cmp.Equal(got, []string{"net.maxPlayers"}) {
		t.Errorf("rows = %v", got)
	}

	fresh := playerTree(t, tree.WithStore(st))
	if _, err := fresh.LoadFrom(ctx); err != nil {
		t.Fatal(err)
	}
	if v, _ := mustEntry(t, fresh, "net.maxPlayers").Get(); v != 32 {
		t.Errorf("maxPlayers = %v, want 32", v)
	}

	// Save replaces the tree's rows.
	if err := st.Save(ctx, tree.Values{"audio.volume": 0.3}); err != nil {
		t.Fatal(err)
	}
	src, _ = st.Load(ctx)
	if got := src.(tree.Values); !cmp.Equal(got, tree.Values{"audio.volume": 0.3}) {
		t.Errorf("rows after save = %v", got)
	}

	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Load after Close error = %v", err)
	}
}

func TestSQLite_TreesShareDatabase(t *testing.T) {
	path := t.TempDir() + "/settings.db"
	a, err := OpenSQLite(path, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := OpenSQLite(path, "b")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx := context.Background()
	if err := b.Save(ctx, tree.Values{"y": 2}); err != nil {
		t.Fatal(err)
	}
	if err := a.Save(ctx, tree.Values{"x": 1}); err != nil {
		t.Fatal(err)
	}
	src, err := b.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.Lookup(tree.ParsePath("x")); ok {
		t.Error("tree b sees tree a's rows")
	}
	if _, ok := src.Lookup(tree.ParsePath("y")); !ok {
		t.Error("saving tree a removed tree b's rows")
	}
}

func mustEntry(t *testing.T, tr *tree.Tree, path string) tree.Item {
	t.Helper()
	item, err := tr.Item(path)
	if err != nil {
		t.Fatal(err)
	}
	return item
}

func TestEnv(t *testing.T) {
	t.Setenv("PLAYER_AUDIO_VOLUME", "0.9")
	t.Setenv("PLAYER_NET_MAX_PLAYERS", "12")
	t.Setenv("PLAYER_NET_RECENT", `["eu-1"]`)

	env := NewEnv("player_").Map("audio.muted", "PLAYER_MUTE")
	t.Setenv("PLAYER_MUTE", "maybe")

	tr := playerTree(t)
	report := tr.Load(env)
	if len(report.Invalid) != 1 {
		// "maybe" does not convert to bool.
		t.Errorf("Invalid = %v, want one error", report.Invalid)
	}
	if v, _ := mustEntry(t, tr, "audio.volume").Get(); v != 0.9 {
		t.Errorf("volume = %v", v)
	}
	if v, _ := mustEntry(t, tr, "net.maxPlayers").Get(); v != 12 {
		t.Errorf("maxPlayers = %v", v)
	}
	if v, _ := mustEntry(t, tr, "net.recent").Get(); !cmp.Equal(v, []string{"eu-1"}) {
		t.Errorf("recent = %v", v)
	}
}

func TestEnvName(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"app", "net.maxPlayers", "APP_NET_MAX_PLAYERS"},
		{"APP_", "audio.volume", "APP_AUDIO_VOLUME"},
		{"", "ui.font-size", "UI_FONT_SIZE"},
		{"x", "http2Port", "X_HTTP2_PORT"},
	}
	for _, tt := range tests {
		if got := EnvName(tt.prefix, tree.ParsePath(tt.path)); got != tt.want {
			t.Errorf("EnvName(%q, %q) = %q, want %q", tt.prefix, tt.path, got, tt.want)
		}
	}
}

func TestLayered(t *testing.T) {
	base := NewMemory(tree.Values{"audio.volume": 0.4, "net.maxPlayers": 4})
	over := tree.Values{"audio.volume": 0.9}
	st := WithOverrides(base, over)

	tr := playerTree(t, tree.WithStore(st))
	if _, err := tr.LoadFrom(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v, _ := mustEntry(t, tr, "audio.volume").Get(); v != 0.9 {
		t.Errorf("volume = %v, want override", v)
	}
	if v, _ := mustEntry(t, tr, "net.maxPlayers").Get(); v != 4 {
		t.Errorf("maxPlayers = %v, want stored", v)
	}

	if err := mustEntry(t, tr, "audio.muted").Set(true); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := base.Values()
	if got["audio.volume"] != 0.4 {
		t.Errorf("override leaked into store: %v", got["audio.volume"])
	}
	if got["audio.muted"] != true {
		t.Errorf("muted = %v", got["audio.muted"])
	}

	if err := mustEntry(t, tr, "audio.volume").Set(0.6); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v := base.Values()["audio.volume"]; v != 0.6 {
		t.Errorf("stored volume = %v, want committed 0.6", v)
	}
	// The base matches what the next load sees, override included.
	if v, _ := tr.Base().Get("audio.volume"); v != 0.9 {
		t.Errorf("base volume = %v, want override", v)
	}
}

func TestLayered_PatchUnsupported(t *testing.T) {
	st := WithOverrides(saveOnly{})
	if err := st.Patch(context.Background(), nil); !errors.Is(err, errors.ErrUnsupported) {
		t.Errorf("Patch error = %v", err)
	}
}

type saveOnly struct{}

func (saveOnly) Load(context.Context) (tree.Source, error) { return tree.Values{}, nil }
func (saveOnly) Save(context.Context, tree.Values) error { return nil }

func TestMirror(t *testing.T) {
	authority := NewMemory(tree.Values{"net.maxPlayers": int64(8)})
	m := NewMirror(authority)
	ctx := context.Background()

	var announced [][]string
	cancel := m.Subscribe(func(paths []string) { announced = append(announced, paths) })

	// A push based on the current value is accepted.
	err := m.Push(ctx, tree.ChangeSet{"net.maxPlayers": {Path: "net.maxPlayers", Base: 8, New: 16}})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if authority.Values()["net.maxPlayers"] != 16 {
		t.Errorf("authority = %v", authority.Values())
	}

	// Another client changes the value; a push based on 16 is now stale.
	if err := m.Update(ctx, tree.Values{"net.maxPlayers": 20}); err != nil {
		t.Fatal(err)
	}
	err = m.Push(ctx, tree.ChangeSet{"net.maxPlayers": {Path: "net.maxPlayers", Base: 16, New: 24}})
	var se *StaleError
	if !errors.As(err, &se) || !errors.Is(err, ErrStale) {
		t.Fatalf("Push error = %v, want StaleError", err)
	}
	if authority.Values()["net.maxPlayers"] != 20 {
		t.Error("stale push was applied")
	}

	want := [][]string{{"net.maxPlayers"}, {"net.maxPlayers"}}
	if diff := cmp.Diff(want, announced); diff != "" {
		t.Errorf("announcements mismatch (-want +got):\n%s", diff)
	}
	cancel()
	_ = m.Update(ctx, tree.Values{"net.maxPlayers": 1})
	if len(announced) != 2 {
		t.Error("cancelled subscriber was called")
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.toml", "*store.File"},
		{"a.YML", "*store.File"},
		{"a.json", "*store.JSON"},
	}
	for _, tt := range tests {
		st, err := Open(tt.path, "k")
		if err != nil {
			t.Fatalf("Open(%s) failed: %v", tt.path, err)
		}
		if got := typeName(st); got != tt.want {
			t.Errorf("Open(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}
	if _, err := Open("a.ini", "k"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Open(a.ini) error = %v", err)
	}

	st, err := Open(t.TempDir()+"/s.db", "k")
	if err != nil {
		t.Fatal(err)
	}
	sq, ok := st.(*SQLite)
	if !ok {
		t.Fatalf("Open(.db) = %T", st)
	}
	sq.Close()
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

func TestDocument(t *testing.T) {
	d := Document{"audio": "flat"}
	d.Set(tree.ParsePath("audio.volume"), 0.5)
	if v, ok := d.Lookup(tree.ParsePath("audio.volume")); !ok || v != 0.5 {
		t.Errorf("Lookup = %v, %v", v, ok)
	}
	if _, ok := d.Lookup(tree.ParsePath("audio.volume.deeper")); ok {
		t.Error("lookup through a scalar should fail")
	}
	if _, ok := d.Lookup(nil); ok {
		t.Error("empty path should fail")
	}
}
