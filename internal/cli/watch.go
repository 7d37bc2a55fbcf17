package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/cfgtree/internal/config"
	"github.com/dshills/cfgtree/internal/config/metrics"
	"github.com/dshills/cfgtree/internal/config/notify"
	"github.com/dshills/cfgtree/internal/config/reconcile"
	"github.com/dshills/cfgtree/internal/logging"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	MetricsAddr string
	Debounce    time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the configuration file and apply outside edits",
		Long: `Keep the configuration open and reconcile every change made to the
file by other programs, using --policy. The derived player settings are
printed after each change. Stops on interrupt.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, rootOpts, opts)
		},
	}
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 100*time.Millisecond, "quiet period before a file change is read")
	return cmd
}

func runWatch(cmd *cobra.Command, rootOpts *RootOptions, opts *WatchOptions) error {
	policy, err := reconcile.ParsePolicy(rootOpts.Policy)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid policy", err)
	}
	out := cmd.OutOrStdout()

	reg := prometheus.NewRegistry()
	col := metrics.New(reg)

	n := notify.New()
	defer n.Close()
	n.Subscribe(func(ev notify.Event) {
		switch ev.Kind {
		case notify.KindExternal:
			fmt.Fprintf(out, "changed outside: %s %v -> %v\n", ev.Path, ev.Old, ev.New)
		case notify.KindResolve:
			fmt.Fprintf(out, "%s: %v -> %v (%s)\n", ev.Path, ev.Old, ev.New, ev.Source)
		}
	})

	s, err := openSession(cmd.Context(), rootOpts, cmd.ErrOrStderr(),
		config.WithMetrics(col),
		config.WithNotifier(n),
		config.WithDebounce(opts.Debounce),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	logger := logging.New(logging.Config{
		Level:     logging.ParseLevel(rootOpts.LogLevel),
		Output:    cmd.ErrOrStderr(),
		Format:    logging.ParseFormat(rootOpts.Format),
		Component: "watch",
	})

	if err := s.m.Bake(); err != nil {
		logger.Warn("initial bake failed", "err", err)
	}
	fmt.Fprintln(out, s.settings.describe())

	g, ctx := errgroup.WithContext(cmd.Context())

	if opts.MetricsAddr != "" {
		serveMetrics(ctx, g, opts.MetricsAddr, reg, logger)
	}

	g.Go(func() error {
		err := s.m.Watch(ctx, func(obs reconcile.Observation, err error) {
			if err != nil || obs.State != reconcile.ExternalChangeDetected {
				return
			}
			apply(ctx, s, policy, out, logger)
		})
		if errors.Is(err, config.ErrNothingToWatch) {
			return WrapExitError(ExitCommandError, "cannot watch "+rootOpts.ConfigPath, err)
		}
		return err
	})

	return g.Wait()
}

// apply resolves a detected change and writes back any local values the
// policy kept.
func apply(ctx context.Context, s *session, policy reconcile.Policy, out io.Writer, logger *slog.Logger) {
	res, err := s.m.Resolve(policy)
	if err != nil {
		logger.Warn("resolve failed", "err", err)
		return
	}
	for _, path := range res.Flagged {
		fmt.Fprintf(out, "conflict on %s: keeping local value\n", path)
	}

	if len(res.Kept) > 0 {
		cres, err := s.m.Commit(ctx)
		if err != nil {
			logger.Warn("commit failed", "err", err)
			return
		}
		if cres.Restart {
			fmt.Fprintln(out, "restart the player to apply these changes")
		}
	} else if err := s.m.Bake(); err != nil {
		logger.Warn("bake failed", "err", err)
		return
	}
	fmt.Fprintln(out, s.settings.describe())
}

// serveMetrics runs a metrics endpoint until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
