package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/cfgtree/internal/config/tree"
)

// entryView is one entry as shown to the user.
type entryView struct {
	Path        string `json:"path"`
	Value       any    `json:"value"`
	Default     any    `json:"default"`
	Edited      bool   `json:"edited,omitempty"`
	Restart     bool   `json:"requires_restart,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Invalid     string `json:"invalid,omitempty"`
}

// groupView is one group and everything below it.
type groupView struct {
	Name        string      `json:"name"`
	Path        string      `json:"path,omitempty"`
	Description string      `json:"description,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	Expanded    bool        `json:"expanded,omitempty"`
	Entries     []entryView `json:"entries,omitempty"`
	Groups      []groupView `json:"groups,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "show [group]",
		Short: "Print the configuration tree",
		Long: `Print every group and entry with its current value.

Edited entries are marked with *, entries that need a restart with !.
Collapsed groups show only their summary unless --all is given.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var group string
			if len(args) == 1 {
				group = args[0]
			}
			return runShow(cmd, rootOpts, group, all)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "expand collapsed groups")
	return cmd
}

func runShow(cmd *cobra.Command, opts *RootOptions, group string, all bool) error {
	s, err := openSession(cmd.Context(), opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	var view groupView
	err = s.m.Do(func(t *tree.Tree) error {
		g := t.Root()
		if group != "" {
			n, ok := t.Resolve(tree.ParsePath(group)...)
			if !ok || !n.IsGroup() {
				return fmt.Errorf("no group %q", group)
			}
			g = n.(tree.Group)
		}
		view = viewGroup(g)
		if group == "" {
			view.Name = t.Key()
		}
		return nil
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot show configuration", err)
	}

	return newPrinter(opts, cmd.OutOrStdout()).emit(view, func(w io.Writer) {
		renderGroup(w, view, 0, all || group != "")
	})
}

func viewGroup(g tree.Group) groupView {
	v := groupView{
		Name:        g.Name(),
		Path:        g.Path().String(),
		Description: g.Description(),
		Summary:     g.Summary(),
		Expanded:    g.Expanded(),
	}
	for _, child := range g.Children() {
		switch n := child.(type) {
		case tree.Group:
			v.Groups = append(v.Groups, viewGroup(n))
		case tree.Item:
			v.Entries = append(v.Entries, viewEntry(n))
		}
	}
	return v
}

func viewEntry(it tree.Item) entryView {
	v := entryView{
		Path:        it.Path().String(),
		Default:     it.Default(),
		Edited:      it.IsEdited(),
		Restart:     it.RequiresRestart(),
		Description: it.Description(),
		Icon:        it.Icon(),
	}
	val, err := it.Get()
	if err != nil {
		v.Invalid = err.Error()
	}
	v.Value = display(val)
	return v
}

// display turns edited values with a String method, such as enums and
// durations, into their text form.
func display(v any) any {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return v
}

func renderGroup(w io.Writer, g groupView, depth int, all bool) {
	indent := strings.Repeat("  ", depth)
	header := g.Name
	if depth > 0 {
		header += "/"
	}
	if g.Summary != "" {
		header += " [" + g.Summary + "]"
	}
	if g.Description != "" {
		header += "  # " + g.Description
	}
	fmt.Fprintln(w, indent+header)
	if depth > 0 && !g.Expanded && !all {
		return
	}
	for _, e := range g.Entries {
		renderEntry(w, e, depth+1)
	}
	for _, sub := range g.Groups {
		renderGroup(w, sub, depth+1, all)
	}
}

func renderEntry(w io.Writer, e entryView, depth int) {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(tree.ParsePath(e.Path).Name())
	b.WriteString(" = ")
	fmt.Fprintf(&b, "%v", e.Value)
	if e.Icon != "" {
		b.WriteString(" " + e.Icon)
	}
	if e.Edited {
		b.WriteString(" *")
	}
	if e.Restart {
		b.WriteString(" !")
	}
	if e.Invalid != "" {
		b.WriteString("  (invalid: " + e.Invalid + ")")
	}
	fmt.Fprintln(w, b.String())
}
