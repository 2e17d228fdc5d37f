package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/simp-lee/ftthadmin/internal/console"
)

func newStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print record counts per resource and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.close()

			stats, err := sess.client.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("load stats: %w", err)
			}

			t := ltable.New().
				Border(lipgloss.NormalBorder()).
				Headers("Resource", "Total", "Active", "Inactive", "Archived", "Deleted")
			for _, spec := range console.Specs() {
				c := stats[spec.Path]
				t.Row(spec.Title,
					strconv.FormatInt(c.Total, 10),
					strconv.FormatInt(c.Active, 10),
					strconv.FormatInt(c.Inactive, 10),
					strconv.FormatInt(c.Archived, 10),
					strconv.FormatInt(c.Deleted, 10),
				)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return err
		},
	}
}
