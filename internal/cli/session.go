package cli

import (
	"context"
	"errors"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/cfgtree/internal/config"
	"github.com/dshills/cfgtree/internal/config/store"
	"github.com/dshills/cfgtree/internal/logging"
)

// session is an open player configuration plus what it bakes into.
type session struct {
	m        *config.Manager
	settings *Settings
}

// openSession opens the configuration named by opts. Logs go to errw.
func openSession(ctx context.Context, opts *RootOptions, errw io.Writer, extra ...config.Option) (*session, error) {
	logger := logging.New(logging.Config{
		Level:     logging.ParseLevel(opts.LogLevel),
		Output:    errw,
		Format:    logging.ParseFormat(opts.Format),
		Component: "cli",
	})

	st, err := store.Open(opts.ConfigPath, "player")
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot open configuration", err)
	}

	s := &session{settings: &Settings{}}
	options := []config.Option{
		config.WithStore(st),
		config.WithLogger(logger),
	}
	if opts.EnvPrefix != "" {
		options = append(options, config.WithOverrides(store.NewEnv(opts.EnvPrefix)))
	}
	options = append(options, extra...)

	m, err := config.Open(ctx, PlayerSchema(BakeInto(s.settings)), options...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot load configuration", err)
	}
	s.m = m
	return s, nil
}

func (s *session) Close() error {
	return s.m.Close()
}

// parseValue reads a command line value as YAML so that numbers, lists
// and maps arrive typed. Anything YAML rejects is passed on as text.
func parseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil || v == nil {
		return s
	}
	return v
}

// splitAssignment splits "path=value".
func splitAssignment(arg string) (string, string, error) {
	path, value, ok := strings.Cut(arg, "=")
	if !ok || path == "" {
		return "", "", errors.New("expected path=value, got " + arg)
	}
	return path, value, nil
}
