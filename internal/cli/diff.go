package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/cfgtree/internal/config/tree"
)

// difference is an entry holding something other than its default.
type difference struct {
	Path    string `json:"path"`
	Default any    `json:"default"`
	Current any    `json:"current"`
	Restart bool   `json:"requires_restart,omitempty"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "List entries that differ from their defaults",
		Long: `List every entry whose persisted or overridden value differs from
its default, in stored form.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, rootOpts)
		},
	}
	return cmd
}

func runDiff(cmd *cobra.Command, opts *RootOptions) error {
	s, err := openSession(cmd.Context(), opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	diffs := []difference{}
	err = s.m.Do(func(t *tree.Tree) error {
		for path, item := range t.Walk() {
			if !item.IsEdited() {
				continue
			}
			diffs = append(diffs, difference{
				Path:    path.String(),
				Default: item.Default(),
				Current: item.Stored(),
				Restart: item.RequiresRestart(),
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	return newPrinter(opts, cmd.OutOrStdout()).emit(diffs, func(w io.Writer) {
		if len(diffs) == 0 {
			fmt.Fprintln(w, "all entries hold their defaults")
			return
		}
		for _, d := range diffs {
			fmt.Fprintf(w, "%s: %v -> %v\n", d.Path, d.Default, d.Current)
		}
	})
}
