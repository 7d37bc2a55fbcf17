package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/cfgtree/internal/config/codec"
	"github.com/dshills/cfgtree/internal/config/tree"
)

// Quality is the video quality preset.
type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
)

// String returns the preset name.
func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

// Window is the player window geometry.
type Window struct {
	Display string `json:"display"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

func validateWindow(w Window) error {
	if w.Width < 320 || w.Height < 200 {
		return errors.New("window must be at least 320x200")
	}
	return nil
}

// Settings is what the player reads after every commit.
type Settings struct {
	VolumePercent int
	Muted         bool
	Quality       Quality
	FPS           int
	Title         string
	Geometry      Window
	ServerName    string
	Timeout       time.Duration
	Recent        []string
}

// PlayerSchema declares the demo player configuration. bk receives the
// baked settings after every commit; it may be nil.
func PlayerSchema(bk tree.Baker) tree.Builder {
	volume := tree.Value[float64]("volume").
		WithDefault(0.5).
		WithRange(0, 1).
		WithDescription("Master volume from 0 to 1")

	return tree.NewBuilder("player").
		Baker(bk).
		Group("audio", tree.Expanded(), tree.Describe("Sound output")).
		Entry("audio", tree.Project(volume, percent).WithDisplayIcon(volumeIcon)).
		Entry("audio", tree.Value[bool]("muted").WithDescription("Silence all output")).
		Group("video", tree.Describe("Rendering")).
		Entry("video", tree.Enum("quality", codec.StringerEnum(QualityLow, QualityMedium, QualityHigh)).
			WithDefault(QualityMedium)).
		Entry("video", tree.Value[int]("fps").
			WithDefault(60).
			WithRange(24, 240).
			WithClamp().
			RequiresRestart().
			WithDescription("Frame rate cap; out-of-range values are clamped")).
		Group("window").
		Entry("window", tree.Value[string]("title").WithDefault("Player").AsCaption()).
		Entry("window", tree.Bean[Window]("geometry", validateWindow).
			WithDefault(Window{Display: "main", Width: 1280, Height: 720})).
		Group("net", tree.Describe("Multiplayer")).
		Entry("net", tree.Custom[string, string]("name", codec.MustPattern(`^[A-Za-z0-9_-]{1,32}$`)).
			WithDefault("player")).
		Entry("net", tree.Custom[string, time.Duration]("timeout", codec.Duration{}).
			WithDefault(30*time.Second)).
		Entry("net", tree.List[string, string]("recent", codec.Identity[string]{}).
			WithDescription("Recently joined servers"))
}

func percent(v float64) int { return int(v*100 + 0.5) }

func volumeIcon(v float64) string {
	switch {
	case v == 0:
		return "🔇"
	case v < 0.5:
		return "🔉"
	default:
		return "🔊"
	}
}

// BakeInto returns a baker that fills dst from the committed values.
func BakeInto(dst *Settings) tree.Baker {
	return tree.BakerFunc(func(v tree.View) error {
		var s Settings
		var errs []error
		read := func(path string, into func() error) {
			if err := into(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
			}
		}
		read("audio.volume", func() (err error) { s.VolumePercent, err = tree.Read[int](v, "audio.volume"); return })
		read("audio.muted", func() (err error) { s.Muted, err = tree.Read[bool](v, "audio.muted"); return })
		read("video.quality", func() (err error) { s.Quality, err = tree.Read[Quality](v, "video.quality"); return })
		read("video.fps", func() (err error) { s.FPS, err = tree.Read[int](v, "video.fps"); return })
		read("window.title", func() (err error) { s.Title, err = tree.Read[string](v, "window.title"); return })
		read("window.geometry", func() (err error) { s.Geometry, err = tree.Read[Window](v, "window.geometry"); return })
		read("net.name", func() (err error) { s.ServerName, err = tree.Read[string](v, "net.name"); return })
		read("net.timeout", func() (err error) { s.Timeout, err = tree.Read[time.Duration](v, "net.timeout"); return })
		read("net.recent", func() (err error) { s.Recent, err = tree.Read[[]string](v, "net.recent"); return })
		if len(errs) > 0 {
			return errors.Join(errs...)
		}
		*dst = s
		return nil
	})
}

// describe renders settings on one line for logs.
func (s Settings) describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "volume=%d%% muted=%t quality=%s fps=%d", s.VolumePercent, s.Muted, s.Quality, s.FPS)
	fmt.Fprintf(&b, " window=%q %dx%d@%s", s.Title, s.Geometry.Width, s.Geometry.Height, s.Geometry.Display)
	fmt.Fprintf(&b, " server=%s timeout=%s recent=%d", s.ServerName, s.Timeout, len(s.Recent))
	return b.String()
}
