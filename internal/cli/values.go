package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/cfgtree/internal/config/tree"
)

// commitResult is what set and reset report.
type commitResult struct {
	Committed []string `json:"committed"`
	Restart   bool     `json:"restart,omitempty"`
	BakeError string   `json:"bake_error,omitempty"`
	Settings  string   `json:"settings,omitempty"`
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	var projected bool
	cmd := &cobra.Command{
		Use:           "get <path>...",
		Short:         "Print entry values",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, rootOpts, args, projected)
		},
	}
	cmd.Flags().BoolVarP(&projected, "projected", "p", false, "print the value handed to the player instead of the edited one")
	return cmd
}

func runGet(cmd *cobra.Command, opts *RootOptions, paths []string, projected bool) error {
	s, err := openSession(cmd.Context(), opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	values := make(map[string]any, len(paths))
	for _, path := range paths {
		get := s.m.Get
		if projected {
			get = s.m.Value
		}
		v, err := get(path)
		if err != nil && v == nil {
			return WrapExitError(ExitCommandError, "cannot read "+path, err)
		}
		values[path] = display(v)
	}

	return newPrinter(opts, cmd.OutOrStdout()).emit(values, func(w io.Writer) {
		if len(paths) == 1 {
			fmt.Fprintln(w, values[paths[0]])
			return
		}
		for _, path := range paths {
			fmt.Fprintf(w, "%s = %v\n", path, values[path])
		}
	})
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <path=value>...",
		Short: "Change entries and commit",
		Long: `Change one or more entries and commit them together.

Values are read as YAML, so lists are written [a, b] and structured
entries {width: 800, height: 600}. Enum and duration entries accept
their names, such as high or 45s. If any value is rejected nothing is
committed.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd, rootOpts, args)
		},
	}
	return cmd
}

func runSet(cmd *cobra.Command, opts *RootOptions, args []string) error {
	s, err := openSession(cmd.Context(), opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	for _, arg := range args {
		path, raw, err := splitAssignment(arg)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid argument", err)
		}
		if err := s.m.Set(path, parseValue(raw)); err != nil {
			return WrapExitError(ExitFailure, "rejected "+path, err)
		}
	}
	return commit(cmd, opts, s)
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:           "reset [path]...",
		Short:         "Restore entries to their defaults and commit",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return WrapExitError(ExitCommandError, "nothing to reset", fmt.Errorf("name entries or pass --all"))
			}
			return runReset(cmd, rootOpts, args, all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "reset every entry")
	return cmd
}

func runReset(cmd *cobra.Command, opts *RootOptions, paths []string, all bool) error {
	s, err := openSession(cmd.Context(), opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	if all {
		err = s.m.Do(func(t *tree.Tree) error {
			for _, item := range t.Walk() {
				if item.IsEdited() {
					item.Reset()
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	for _, path := range paths {
		if err := s.m.Reset(path); err != nil {
			return WrapExitError(ExitCommandError, "cannot reset "+path, err)
		}
	}
	return commit(cmd, opts, s)
}

// commit commits the session's edits and reports the result.
func commit(cmd *cobra.Command, opts *RootOptions, s *session) error {
	res, err := s.m.Commit(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "commit failed", err)
	}

	out := commitResult{
		Committed: res.Changes.Paths(),
		Restart:   res.Restart,
	}
	if res.BakeErr != nil {
		out.BakeError = res.BakeErr.Error()
	} else {
		out.Settings = s.settings.describe()
	}

	return newPrinter(opts, cmd.OutOrStdout()).emit(out, func(w io.Writer) {
		if len(out.Committed) == 0 {
			fmt.Fprintln(w, "nothing changed")
			return
		}
		for _, path := range out.Committed {
			ch := res.Changes[path]
			fmt.Fprintf(w, "%s: %v -> %v\n", path, ch.Base, ch.New)
		}
		if out.Restart {
			fmt.Fprintln(w, "restart the player to apply these changes")
		}
		if out.BakeError != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", out.BakeError)
		}
	})
}
