package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/simp-lee/ftthadmin/internal/console"
	"github.com/simp-lee/ftthadmin/internal/datatable"
)

type listOptions struct {
	filter    string
	status    string
	sort      string
	custom    string
	dateField string
	from, to  string
	page      int
	perPage   int
	asJSON    bool
}

func newListCmd(opts *globalOptions) *cobra.Command {
	lo := &listOptions{}
	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "Print one page of a resource list",
		Long: `Print one page of locations, odcs, odps, cables, joint_boxes or clients.

Without view flags the operator's saved view of that list is used. The saved
view is never changed by this command.`,
		Example: `  ftthconsole list odps --status active --sort "code|dsc" --per-page 50
  ftthconsole list clients --custom odp-7 --date-field installed_at --from 2024-01-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, ok := console.FindSpec(args[0])
			if !ok {
				return fmt.Errorf("unknown resource %q", args[0])
			}
			sess, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer sess.close()
			return runList(cmd, sess, spec, lo)
		},
	}

	f := cmd.Flags()
	f.StringVar(&lo.filter, "filter", "", "free-text filter")
	f.StringVar(&lo.status, "status", "", "comma separated statuses: active,inactive,archived,deleted")
	f.StringVar(&lo.sort, "sort", "", `sort payload "field|direction"`)
	f.StringVar(&lo.custom, "custom", "", "comma separated values of the resource's parent filter")
	f.StringVar(&lo.dateField, "date-field", "", "date column the --from/--to range applies to")
	f.StringVar(&lo.from, "from", "", "range start, YYYY-MM-DD")
	f.StringVar(&lo.to, "to", "", "range end, YYYY-MM-DD")
	f.IntVar(&lo.page, "page", 1, "page number")
	f.IntVar(&lo.perPage, "per-page", 0, "page size: 10, 50 or 100")
	f.BoolVar(&lo.asJSON, "json", false, "print the rows as JSON")
	return cmd
}

// values turns the flags that were set into list query parameters.
func (lo *listOptions) values(cmd *cobra.Command, spec console.Spec) url.Values {
	changed := cmd.Flags().Changed
	v := url.Values{}
	if changed("filter") {
		v.Set("filter", lo.filter)
	}
	if changed("status") {
		v.Set("status", lo.status)
	}
	if changed("sort") {
		v.Set("sort", lo.sort)
	}
	if changed("custom") && spec.Query.CustomKey != "" {
		v.Set(spec.Query.CustomKey, lo.custom)
	}
	if changed("page") {
		v.Set("page", strconv.Itoa(lo.page))
	}
	if changed("per-page") {
		v.Set("per_page", strconv.Itoa(lo.perPage))
	}
	if lo.dateField != "" && (lo.from != "" || lo.to != "") {
		v.Set(lo.dateField, lo.from+","+lo.to)
	}
	return v
}

func runList(cmd *cobra.Command, sess *session, spec console.Spec, lo *listOptions) error {
	timeout, _ := sess.cfg.Console.Durations()
	fetcher, err := datatable.NewFetcher(sess.client, 1, timeout, sess.logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	tbl := datatable.New(spec.TableConfig(console.Deps{
		Fetcher:     fetcher,
		Poster:      sess.client,
		Preferences: readOnlyPreferences{sess.client},
		Vocab:       sess.vocab,
		PageSize:    sess.cfg.Console.DefaultPageSize,
		Logger:      sess.logger,
	}))
	defer tbl.Close()

	ctx := cmd.Context()
	tbl.Mount(ctx, lo.values(cmd, spec))
	q := tbl.Load(ctx)
	if q.Error {
		return fmt.Errorf("list %s: %w", spec.Path, q.Err)
	}

	out := cmd.OutOrStdout()
	if lo.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(q.Data)
	}
	return printPage(out, spec, tbl, q)
}

// readOnlyPreferences restores the saved view but never writes it: a one-shot
// list must not replace the view the operator keeps in the console.
type readOnlyPreferences struct {
	datatable.PreferenceStore
}

func (readOnlyPreferences) SavePreference(context.Context, string, any) error { return nil }

func printPage(out io.Writer, spec console.Spec, tbl *datatable.Table, q datatable.QueryState) error {
	headers := []string{"ID"}
	for _, c := range spec.Columns {
		headers = append(headers, c.Title)
	}

	t := ltable.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
	for _, r := range q.Data.Rows {
		cells := []string{r.ID}
		for _, c := range spec.Columns {
			cells = append(cells, c.Value(r))
		}
		t.Row(cells...)
	}
	if footer, ok := tbl.Footer(); ok {
		t.Row(append([]string{"total"}, footer...)...)
	}

	state := tbl.State()
	meta := q.Data.Meta
	summary := fmt.Sprintf("page %d of %d, %d records, %d per page", state.Page, max(meta.TotalPages, 1), meta.TotalRecords, state.PageSize)
	if state.Filter != "" {
		summary += fmt.Sprintf(", filter %q", state.Filter)
	}
	if len(state.Status) > 0 {
		summary += ", status " + strings.Join(state.Status, ",")
	}
	_, err := fmt.Fprintf(out, "%s\n%s\n", t.Render(), summary)
	return err
}
