package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simp-lee/ftthadmin/internal/console"
	"github.com/simp-lee/ftthadmin/internal/datatable"
)

func newBulkCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk <resource> <action> <id>...",
		Short: "Apply a bulk action to resources",
		Long: `Apply archive, delete, restore (or deactivate for clients) to the given ids.

Large id lists are sent in batches. Rows the action does not apply to are
skipped by the server; only affected rows are printed.`,
		Example: `  ftthconsole bulk odps archive 3f0c... 9a1b...`,
		Args:    cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, ok := console.FindSpec(args[0])
			if !ok {
				return fmt.Errorf("unknown resource %q", args[0])
			}
			actions := spec.Actions
			if actions == nil {
				actions = datatable.StandardActions()
			}
			action, ok := datatable.FindAction(actions, args[1])
			if !ok {
				return fmt.Errorf("unknown action %q for %s, want one of %s", args[1], spec.Path, actionNames(actions))
			}

			sess, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.close()

			out := cmd.OutOrStdout()
			d := datatable.NewDispatcher(datatable.DispatcherConfig{
				BasePath: spec.BasePath(),
				Poster:   sess.client,
				Notify:   func(n datatable.Notification) { printNotification(out, n) },
				Logger:   sess.logger,
			})
			affected, err := d.Dispatch(cmd.Context(), action.Name, args[2:])
			if err != nil {
				return fmt.Errorf("%s %s: %w", action.Name, spec.Path, err)
			}
			for _, r := range affected {
				fmt.Fprintf(out, "%s\t%s\n", r.ID, r.Status)
			}
			return nil
		},
	}
}

func printNotification(out io.Writer, n datatable.Notification) {
	if n.Kind != datatable.NotifyValidation {
		fmt.Fprintln(out, n.Message)
		return
	}
	names := make([]string, 0, len(n.Fields))
	for name := range n.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s: %s\n", name, strings.Join(n.Fields[name], ", "))
	}
}

func actionNames(actions []datatable.Action) string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}
