package cli

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dshills/cfgtree/internal/config/tree"
)

// run executes a command against path with environment overrides off.
func run(t *testing.T, path string, args ...string) string {
	t.Helper()
	full := append([]string{"--config", path, "--env-prefix", ""}, args...)
	out, err := execute(t, full...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestSetGet(t *testing.T) {
	path := configFile(t, "player.toml")

	out := run(t, path, "set", "audio.volume=0.3", "video.quality=high", "net.recent=[lobby, arena]")
	if !strings.Contains(out, "audio.volume: 0.5 -> 0.3") {
		t.Errorf("set output = %q", out)
	}

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"get", "audio.volume"}, "0.3\n"},
		{[]string{"get", "-p", "audio.volume"}, "30\n"},
		{[]string{"get", "video.quality"}, "high\n"},
		{[]string{"get", "net.recent"}, "[lobby arena]\n"},
		{[]string{"get", "net.timeout"}, "30s\n"},
	}
	for _, tt := range tests {
		if got := run(t, path, tt.args...); got != tt.want {
			t.Errorf("%v = %q, want %q", tt.args, got, tt.want)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "quality = 'high'") && !strings.Contains(string(data), `quality = "high"`) {
		t.Errorf("file does not hold the enum name:\n%s", data)
	}
}

func TestSet_Structured(t *testing.T) {
	path := configFile(t, "player.yaml")

	run(t, path, "set", "window.geometry={display: side, width: 800, height: 600}", "net.timeout=45s")

	out := run(t, path, "--format", "json", "get", "window.geometry", "net.timeout")
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	want := map[string]any{
		"window.geometry": map[string]any{"display": "side", "width": 800.0, "height": 600.0},
		"net.timeout":     "45s",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("get mismatch (-want +got):\n%s", diff)
	}
}

func TestSet_Rejected(t *testing.T) {
	path := configFile(t, "player.toml")

	_, err := execute(t, "--config", path, "--env-prefix", "", "set", "audio.muted=true", "audio.volume=2")
	if GetExitCode(err) != ExitFailure {
		t.Fatalf("exit code = %d (%v), want %d", GetExitCode(err), err, ExitFailure)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file written despite rejected value: %v", err)
	}
	if got := run(t, path, "get", "audio.muted"); got != "false\n" {
		t.Errorf("muted = %q, want false", got)
	}
}

func TestSet_BadArgument(t *testing.T) {
	_, err := execute(t, "--config", configFile(t, "p.toml"), "set", "audio.volume")
	if GetExitCode(err) != ExitCommandError {
		t.Errorf("exit code = %d (%v), want %d", GetExitCode(err), err, ExitCommandError)
	}
}

func TestSet_Clamp(t *testing.T) {
	path := configFile(t, "player.json")

	out := run(t, path, "set", "video.fps=500")
	if !strings.Contains(out, "restart the player") {
		t.Errorf("missing restart notice:\n%s", out)
	}
	if got := run(t, path, "get", "video.fps"); got != "240\n" {
		t.Errorf("fps = %q, want clamped 240", got)
	}
}

func TestGet_UnknownPath(t *testing.T) {
	_, err := execute(t, "--config", configFile(t, "p.toml"), "get", "audio.bass")
	if GetExitCode(err) != ExitCommandError {
		t.Errorf("exit code = %d (%v), want %d", GetExitCode(err), err, ExitCommandError)
	}
}

func TestUnknownFormat(t *testing.T) {
	_, err := execute(t, "--config", configFile(t, "player.ini"), "diff")
	if GetExitCode(err) != ExitCommandError {
		t.Errorf("exit code = %d (%v), want %d", GetExitCode(err), err, ExitCommandError)
	}
}

func TestResetAndDiff(t *testing.T) {
	path := configFile(t, "player.toml")

	if got := run(t, path, "diff"); !strings.Contains(got, "all entries hold their defaults") {
		t.Errorf("fresh diff = %q", got)
	}

	run(t, path, "set", "audio.muted=true", "window.title=Arcade")
	out := run(t, path, "diff")
	for _, want := range []string{"audio.muted: false -> true", "window.title: Player -> Arcade"} {
		if !strings.Contains(out, want) {
			t.Errorf("diff missing %q:\n%s", want, out)
		}
	}

	run(t, path, "reset", "audio.muted")
	if got := run(t, path, "get", "audio.muted"); got != "false\n" {
		t.Errorf("muted after reset = %q", got)
	}

	run(t, path, "reset", "--all")
	if got := run(t, path, "diff"); !strings.Contains(got, "all entries hold their defaults") {
		t.Errorf("diff after reset --all = %q", got)
	}
}

func TestReset_NoArgs(t *testing.T) {
	_, err := execute(t, "--config", configFile(t, "p.toml"), "reset")
	if GetExitCode(err) != ExitCommandError {
		t.Errorf("exit code = %d (%v), want %d", GetExitCode(err), err, ExitCommandError)
	}
}

func TestEnvOverride(t *testing.T) {
	path := configFile(t, "player.toml")
	t.Setenv("CFGTEST_AUDIO_MUTED", "true")
	t.Setenv("CFGTEST_NET_RECENT", `["home"]`)

	out, err := execute(t, "--config", path, "--env-prefix", "CFGTEST", "get", "audio.muted", "net.recent")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "audio.muted = true") || !strings.Contains(out, "net.recent = [home]") {
		t.Errorf("overrides not applied:\n%s", out)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("reading overrides wrote the file: %v", err)
	}
}

func TestShow(t *testing.T) {
	path := configFile(t, "player.toml")
	run(t, path, "set", "window.title=Arcade", "video.fps=30")

	out := run(t, path, "show")
	for _, want := range []string{
		"player\n",
		"audio/  # Sound output",
		"volume = 0.5 🔊",
		"window/ [Arcade]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("show missing %q:\n%s", want, out)
		}
	}
	// video is collapsed, so its entries are hidden.
	if strings.Contains(out, "fps =") {
		t.Errorf("collapsed group expanded:\n%s", out)
	}

	out = run(t, path, "show", "--all")
	if !strings.Contains(out, "fps = 30 * !") {
		t.Errorf("show --all missing edited fps:\n%s", out)
	}

	out = run(t, path, "show", "video")
	if !strings.Contains(out, "quality = medium") {
		t.Errorf("show video:\n%s", out)
	}
}

func TestShow_JSON(t *testing.T) {
	path := configFile(t, "player.toml")

	out := run(t, path, "--format", "json", "show")
	var view groupView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if view.Name != "player" {
		t.Errorf("Name = %q", view.Name)
	}
	var names []string
	for _, g := range view.Groups {
		names = append(names, g.Name)
	}
	if diff := cmp.Diff([]string{"audio", "video", "window", "net"}, names); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
	if !view.Groups[0].Expanded || view.Groups[1].Expanded {
		t.Errorf("expanded flags = %v %v", view.Groups[0].Expanded, view.Groups[1].Expanded)
	}
}

func TestShow_UnknownGroup(t *testing.T) {
	_, err := execute(t, "--config", configFile(t, "p.toml"), "show", "audio.volume")
	if GetExitCode(err) != ExitCommandError {
		t.Errorf("exit code = %d (%v), want %d", GetExitCode(err), err, ExitCommandError)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"0.3", 0.3},
		{"42", 42},
		{"true", true},
		{"high", "high"},
		{"45s", "45s"},
		{"", ""},
		{"[a, b]", []any{"a", "b"}},
		{"{width: 800}", map[string]any{"width": 800}},
		{"[unclosed", "[unclosed"},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, parseValue(tt.in)); diff != "" {
			t.Errorf("parseValue(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestBakeInto(t *testing.T) {
	var s Settings
	tr, err := PlayerSchema(BakeInto(&s)).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer tr.Close()
	if err := tr.Bake(); err != nil {
		t.Fatalf("Bake() error = %v", err)
	}

	want := Settings{
		VolumePercent: 50,
		Quality:       QualityMedium,
		FPS:           60,
		Title:         "Player",
		Geometry:      Window{Display: "main", Width: 1280, Height: 720},
		ServerName:    "player",
		Timeout:       30 * time.Second,
	}
	if diff := cmp.Diff(want, s, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("baked settings mismatch (-want +got):\n%s", diff)
	}

	item, err := tr.Item("window.geometry")
	if err != nil {
		t.Fatal(err)
	}
	if err := item.Set(map[string]any{"width": 100, "height": 100}); err == nil {
		t.Error("undersized window accepted")
	}
	if _, ok := tr.Resolve(tree.ParsePath("net.name")...); !ok {
		t.Error("net.name not declared")
	}
}
