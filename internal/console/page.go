package console

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/simp-lee/ftthadmin/internal/datatable"
)

type pageMode int

const (
	modeBrowse pageMode = iota
	modeFilter
	modeMenu
	modeConfirm
)

const checkboxWidth = 3

// loadedMsg tells the page of path that its table settled a load.
type loadedMsg struct{ path string }

// filterTickMsg fires once the filter input has been idle for the delay.
type filterTickMsg struct {
	path string
	seq  int
}

// dispatchedMsg reports a finished bulk or row action.
type dispatchedMsg struct {
	path     string
	action   string
	affected int
	err      error
}

// Page renders one resource table: filter bar, grid, footer, pagination and
// the action menus.
type Page struct {
	ctx         context.Context
	spec        Spec
	table       *datatable.Table
	styles      Styles
	filterDelay time.Duration

	grid   table.Model
	filter textinput.Model
	mode   pageMode
	ids    []string // row ids in grid order

	menu      []datatable.Action
	menuIndex int
	menuRowID string // empty for the bulk menu
	pick      datatable.Action

	filterSeq int
	// stale is set from the event bus when another component changed the
	// rows of this endpoint.
	stale atomic.Bool
}

func newPage(ctx context.Context, spec Spec, tbl *datatable.Table, styles Styles, filterDelay time.Duration) *Page {
	filter := textinput.New()
	filter.Placeholder = "filter " + strings.ToLower(spec.Title) + "..."
	filter.Prompt = "/ "
	filter.CharLimit = 80
	filter.Width = 40
	filter.SetValue(tbl.State().Filter)

	grid := table.New(
		table.WithFocused(true),
		table.WithHeight(12),
		table.WithStyles(styles.Grid),
	)

	p := &Page{
		ctx:         ctx,
		spec:        spec,
		table:       tbl,
		styles:      styles,
		filterDelay: filterDelay,
		grid:        grid,
		filter:      filter,
	}
	p.rebuild()
	return p
}

// Title is the tab label.
func (p *Page) Title() string { return p.spec.Title }

// Table exposes the state machine behind the page.
func (p *Page) Table() *datatable.Table { return p.table }

// SetSize fits the grid into the terminal.
func (p *Page) SetSize(width, height int) {
	// tabs, filter bar, footer, pagination, message and help lines
	p.grid.SetHeight(max(3, height-12))
	p.grid.SetWidth(width)
	p.filter.Width = max(10, width-8)
}

func (p *Page) load() tea.Cmd {
	ctx, tbl, path := p.ctx, p.table, p.spec.Path
	return func() tea.Msg {
		tbl.Load(ctx)
		return loadedMsg{path: path}
	}
}

func (p *Page) refresh() tea.Cmd {
	ctx, tbl, path := p.ctx, p.table, p.spec.Path
	return func() tea.Msg {
		tbl.Refresh(ctx)
		return loadedMsg{path: path}
	}
}

// Update handles messages addressed to this page.
func (p *Page) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case loadedMsg:
		p.rebuild()
		return nil
	case filterTickMsg:
		if msg.seq != p.filterSeq {
			return nil
		}
		return p.load()
	case dispatchedMsg:
		p.rebuild()
		return nil
	case tea.KeyMsg:
		return p.handleKey(msg)
	}
	if p.mode == modeFilter {
		var cmd tea.Cmd
		p.filter, cmd = p.filter.Update(msg)
		return cmd
	}
	return nil
}

// Capturing reports whether the page consumes every key, e.g. while the
// filter input is focused.
func (p *Page) Capturing() bool { return p.mode != modeBrowse }

func (p *Page) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch p.mode {
	case modeFilter:
		return p.handleFilterKey(msg)
	case modeMenu:
		return p.handleMenuKey(msg)
	case modeConfirm:
		return p.handleConfirmKey(msg)
	}

	key := msg.String()
	switch key {
	case "/":
		p.mode = modeFilter
		p.grid.Blur()
		return p.filter.Focus()
	case "s":
		p.table.SetStatus(nextStatus(p.table.State().Status))
		return p.changed()
	case "p":
		p.table.CyclePageSize()
		return p.changed()
	case "left", "h":
		p.table.PrevPage()
		return p.changed()
	case "right", "l":
		p.table.NextPage()
		return p.changed()
	case "r":
		return p.refresh()
	case " ", "x":
		if id := p.cursorID(); id != "" {
			p.table.Toggle(id)
			p.rebuild()
		}
		return nil
	case "a":
		p.table.SetAll(!p.table.HeaderChecked())
		p.rebuild()
		return nil
	case "enter":
		p.openRowMenu()
		return nil
	case "b":
		p.openBulkMenu()
		return nil
	}

	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(p.spec.Columns) {
		if field := p.spec.Columns[n-1].Key; field != "" && field != "status" {
			p.table.ToggleSort(field)
			return p.changed()
		}
		return nil
	}

	var cmd tea.Cmd
	p.grid, cmd = p.grid.Update(msg)
	return cmd
}

func (p *Page) handleFilterKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "enter":
		p.mode = modeBrowse
		p.filter.Blur()
		p.grid.Focus()
		return nil
	}

	before := p.filter.Value()
	var cmd tea.Cmd
	p.filter, cmd = p.filter.Update(msg)
	if p.filter.Value() == before {
		return cmd
	}

	p.table.SetFilter(p.filter.Value())
	p.rebuild()
	p.filterSeq++
	if p.filterDelay <= 0 {
		return tea.Batch(cmd, p.load())
	}
	seq, path := p.filterSeq, p.spec.Path
	return tea.Batch(cmd, tea.Tick(p.filterDelay, func(time.Time) tea.Msg {
		return filterTickMsg{path: path, seq: seq}
	}))
}

func (p *Page) handleMenuKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if p.menuIndex > 0 {
			p.menuIndex--
		}
	case "down", "j":
		if p.menuIndex < len(p.menu)-1 {
			p.menuIndex++
		}
	case "esc", "q":
		p.closeMenu()
	case "enter":
		p.pick = p.menu[p.menuIndex]
		if p.pick.Confirm {
			p.mode = modeConfirm
			return nil
		}
		return p.dispatch()
	}
	return nil
}

func (p *Page) handleConfirmKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y":
		return p.dispatch()
	case "n", "N", "esc":
		p.closeMenu()
	}
	return nil
}

// changed rebuilds the grid for a new view state and loads its key.
func (p *Page) changed() tea.Cmd {
	p.rebuild()
	return p.load()
}

func (p *Page) cursorID() string {
	i := p.grid.Cursor()
	if i < 0 || i >= len(p.ids) {
		return ""
	}
	return p.ids[i]
}

func (p *Page) openRowMenu() {
	id := p.cursorID()
	if id == "" {
		return
	}
	for _, r := range p.table.Rows() {
		if r.ID == id {
			p.openMenu(p.table.RowActions(r), id)
			return
		}
	}
}

func (p *Page) openBulkMenu() {
	if len(p.table.Selection()) == 0 {
		return
	}
	p.openMenu(p.table.BulkActions(), "")
}

func (p *Page) openMenu(actions []datatable.Action, rowID string) {
	if len(actions) == 0 {
		return
	}
	p.menu = actions
	p.menuIndex = 0
	p.menuRowID = rowID
	p.mode = modeMenu
	p.grid.Blur()
}

func (p *Page) closeMenu() {
	p.menu = nil
	p.menuRowID = ""
	p.pick = datatable.Action{}
	p.mode = modeBrowse
	p.grid.Focus()
}

func (p *Page) dispatch() tea.Cmd {
	ctx, tbl, path := p.ctx, p.table, p.spec.Path
	action, rowID := p.pick.Name, p.menuRowID
	p.closeMenu()

	return func() tea.Msg {
		var (
			affected []datatable.Resource
			err      error
		)
		if rowID != "" {
			affected, err = tbl.DispatchRow(ctx, action, rowID)
		} else {
			affected, err = tbl.Dispatch(ctx, action)
		}
		return dispatchedMsg{path: path, action: action, affected: len(affected), err: err}
	}
}

// rebuild copies the table's current state into the grid.
func (p *Page) rebuild() {
	state := p.table.State()
	vocab := p.table.Vocabulary()

	header := "[ ]"
	if p.table.HeaderChecked() {
		header = "[x]"
	}
	cols := make([]table.Column, 0, len(p.spec.Columns)+1)
	cols = append(cols, table.Column{Title: header, Width: checkboxWidth})
	for i, c := range p.spec.Columns {
		title := c.Title
		if c.Key != "" && c.Key == state.SortField {
			if vocab.IsDesc(state.SortDirection) {
				title += " ▼"
			} else {
				title += " ▲"
			}
		}
		if i < 9 && c.Key != "" && c.Key != "status" {
			title = strconv.Itoa(i+1) + ":" + title
		}
		cols = append(cols, table.Column{Title: title, Width: c.Width})
	}

	rows := p.table.Rows()
	gridRows := make([]table.Row, 0, len(rows))
	p.ids = p.ids[:0]
	for _, r := range rows {
		row := make(table.Row, 0, len(cols))
		if p.table.Selected(r.ID) {
			row = append(row, "[x]")
		} else {
			row = append(row, "[ ]")
		}
		for _, c := range p.spec.Columns {
			row = append(row, c.Value(r))
		}
		gridRows = append(gridRows, row)
		p.ids = append(p.ids, r.ID)
	}

	p.grid.SetColumns(cols)
	p.grid.SetRows(gridRows)
	if n := len(gridRows); n > 0 && p.grid.Cursor() >= n {
		p.grid.SetCursor(n - 1)
	}
}

// View renders the page.
func (p *Page) View() string {
	var b strings.Builder
	b.WriteString(p.renderFilterBar())
	b.WriteByte('\n')
	b.WriteString(p.grid.View())
	b.WriteByte('\n')
	if footer, ok := p.renderFooter(); ok {
		b.WriteString(footer)
		b.WriteByte('\n')
	}
	b.WriteString(p.renderPagination())
	b.WriteByte('\n')
	if msg := p.renderMessage(); msg != "" {
		b.WriteString(msg)
		b.WriteByte('\n')
	}
	return b.String()
}

func (p *Page) renderFilterBar() string {
	state := p.table.State()
	status := "all"
	if len(state.Status) > 0 {
		status = strings.Join(state.Status, ",")
	}
	info := p.styles.Muted.Render(fmt.Sprintf("  status: %s  per page: %d", status, state.PageSize))
	return p.styles.FilterBar.Render(p.filter.View() + info)
}

func (p *Page) renderFooter() (string, bool) {
	cells, ok := p.table.Footer()
	if !ok {
		return "", false
	}
	// grid cells carry one column of padding on each side
	parts := []string{lipgloss.NewStyle().Width(checkboxWidth + 2).Render("Σ")}
	for i, cell := range cells {
		w := p.spec.Columns[i].Width
		parts = append(parts, lipgloss.NewStyle().Width(w+2).MaxWidth(w+2).Render(" "+cell))
	}
	return p.styles.Footer.Render(lipgloss.JoinHorizontal(lipgloss.Top, parts...)), true
}

func (p *Page) renderPagination() string {
	q := p.table.Query()
	state := p.table.State()
	selected := len(p.table.Selection())

	var line string
	switch {
	case q.Data != nil:
		meta := q.Data.Meta
		line = fmt.Sprintf("Page %d of %d | %d records | %d selected", state.Page, max(meta.TotalPages, 1), meta.TotalRecords, selected)
	default:
		line = fmt.Sprintf("Page %d | %d selected", state.Page, selected)
	}
	if q.Loading {
		line += " | loading..."
	}
	return p.styles.Status.Render(line)
}

func (p *Page) renderMessage() string {
	switch p.mode {
	case modeMenu:
		return p.renderMenu()
	case modeConfirm:
		target := "this row"
		if p.menuRowID == "" {
			target = fmt.Sprintf("%d selected %s", len(p.table.Selection()), p.spec.Path)
		}
		return p.styles.Warning.Render(fmt.Sprintf("%s %s? (y/n)", p.pick.Label, target))
	}
	if q := p.table.Query(); q.Error {
		return p.styles.Error.Render(datatable.RefreshMessage)
	}
	return ""
}

func (p *Page) renderMenu() string {
	title := "Actions"
	if p.menuRowID == "" {
		title = fmt.Sprintf("Bulk actions (%d selected)", len(p.table.Selection()))
	}
	lines := []string{p.styles.Muted.Render(title)}
	for i, a := range p.menu {
		if i == p.menuIndex {
			lines = append(lines, p.styles.MenuPick.Render("> "+a.Label))
			continue
		}
		lines = append(lines, p.styles.MenuItem.Render(a.Label))
	}
	return p.styles.Menu.Render(strings.Join(lines, "\n"))
}

// nextStatus steps the status filter through statusCycle.
func nextStatus(current []string) []string {
	for i, s := range statusCycle {
		if slices.Equal(s, current) {
			return statusCycle[(i+1)%len(statusCycle)]
		}
	}
	return statusCycle[0]
}
