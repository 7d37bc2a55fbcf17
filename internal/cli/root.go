// Package cli implements the cfgtree command line: a demo player
// configuration that can be inspected, edited and watched.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dshills/cfgtree/internal/config/reconcile"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Format     string // "json" | "text"
	EnvPrefix  string
	Policy     string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cfgtree CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cfgtree",
		Short: "Typed configuration trees",
		Long: `Inspect and edit the demo player configuration.

The file format follows the extension of --config: .toml, .yaml, .json,
or .db for SQLite. Environment variables with the --env-prefix override
persisted values without being written back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if _, err := reconcile.ParsePolicy(opts.Policy); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "player.toml", "configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvPrefix, "env-prefix", "PLAYER", "environment override prefix, empty to disable")
	cmd.PersistentFlags().StringVar(&opts.Policy, "policy", "accept-non-conflicting", "reconcile policy for watch (reject|accept-all|accept-non-conflicting)")

	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}
