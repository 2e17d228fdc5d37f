// Package console is the terminal operator console: one tab per inventory
// resource, each backed by a datatable.Table.
package console

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/simp-lee/ftthadmin/internal/datatable"
	"github.com/simp-lee/ftthadmin/internal/eventbus"
	"github.com/simp-lee/ftthadmin/internal/module/inventory"
)

// Console timings.
const (
	DefaultFilterDelay = 250 * time.Millisecond
	DefaultToastTTL    = 4 * time.Second
	prefetchLimit      = 3
)

// StatsSource returns resource counts keyed by endpoint path.
type StatsSource interface {
	Stats(ctx context.Context) (map[string]inventory.StatusCounts, error)
}

// Deps are the collaborators shared by every tab.
type Deps struct {
	Fetcher     *datatable.Fetcher
	Poster      datatable.BulkPoster
	Preferences datatable.PreferenceStore
	Bus         *eventbus.Bus
	Stats       StatsSource // optional

	Vocab           datatable.SortVocabulary
	PageSize        int
	PersistDebounce time.Duration
	FilterDelay     time.Duration // zero loads on every keystroke
	ToastTTL        time.Duration
	Logger          *slog.Logger
}

// TableConfig returns the datatable configuration of spec. Notify and
// OnInvalidate are left for the caller.
func (s Spec) TableConfig(d Deps) datatable.Config {
	actions := s.Actions
	if actions == nil {
		actions = datatable.StandardActions()
	}
	pageSize := d.PageSize
	if pageSize == 0 {
		pageSize = datatable.PageSizes[0]
	}
	var direction string
	if s.SortField != "" {
		direction = d.Vocab.Asc
	}
	return datatable.Config{
		Resource:      s.Resource,
		PreferenceKey: s.Path,
		BasePath:      s.BasePath(),
		Columns:       s.Columns,
		Actions:       actions,
		Query: datatable.QueryOptions{
			CustomKey:  s.Query.CustomKey,
			DateFields: s.Query.DateFields,
			Vocab:      d.Vocab,
		},
		Defaults: datatable.ViewState{
			Page:          1,
			PageSize:      pageSize,
			SortField:     s.SortField,
			SortDirection: direction,
		},
		Fetcher:         d.Fetcher,
		Poster:          d.Poster,
		Preferences:     d.Preferences,
		Bus:             d.Bus,
		PersistDebounce: d.PersistDebounce,
		Logger:          d.Logger,
	}
}

// toastExpiredMsg clears the toast it was scheduled for.
type toastExpiredMsg struct{ seq int }

type prefetchedMsg struct{}

type statsMsg struct {
	stats map[string]inventory.StatusCounts
}

// noteQueue collects notifications raised on command goroutines until the
// update loop drains them.
type noteQueue struct {
	mu    sync.Mutex
	notes []datatable.Notification
}

func (q *noteQueue) push(n datatable.Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notes = append(q.notes, n)
}

func (q *noteQueue) drain() []datatable.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	notes := q.notes
	q.notes = nil
	return notes
}

// Model is the root bubbletea model of the console.
type Model struct {
	ctx    context.Context
	deps   Deps
	styles Styles
	pages  []*Page
	active int
	notes  *noteQueue
	stats  map[string]inventory.StatusCounts

	toast    *datatable.Notification
	toastSeq int

	width, height int
}

// New mounts one table per resource spec, restoring saved preferences.
func New(ctx context.Context, deps Deps, specs []Spec) *Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Vocab == (datatable.SortVocabulary{}) {
		deps.Vocab = datatable.DefaultSortVocabulary
	}
	if deps.ToastTTL == 0 {
		deps.ToastTTL = DefaultToastTTL
	}

	m := &Model{
		ctx:    ctx,
		deps:   deps,
		styles: DefaultStyles(),
		notes:  &noteQueue{},
	}
	for _, spec := range specs {
		cfg := spec.TableConfig(deps)
		cfg.Notify = m.notes.push

		var page *Page
		cfg.OnInvalidate = func() { page.stale.Store(true) }
		tbl := datatable.New(cfg)
		tbl.Mount(ctx, nil)
		page = newPage(ctx, spec, tbl, m.styles, deps.FilterDelay)
		m.pages = append(m.pages, page)
	}
	return m
}

// Close tears every table down, saving pending preference changes.
func (m *Model) Close() {
	for _, p := range m.pages {
		p.table.Close()
	}
}

// Active returns the page of the selected tab.
func (m *Model) Active() *Page {
	if len(m.pages) == 0 {
		return nil
	}
	return m.pages[m.active]
}

// Init prefetches every tab so switching tabs renders from cache.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.prefetch(), m.loadStats())
}

func (m *Model) prefetch() tea.Cmd {
	ctx, pages, logger := m.ctx, m.pages, m.deps.Logger
	return func() tea.Msg {
		var g errgroup.Group
		g.SetLimit(prefetchLimit)
		for _, p := range pages {
			g.Go(func() error {
				if q := p.table.Load(ctx); q.Error {
					logger.Warn("prefetch failed", slog.String("table", p.spec.Path), slog.Any("error", q.Err))
				}
				return nil
			})
		}
		_ = g.Wait()
		return prefetchedMsg{}
	}
}

func (m *Model) loadStats() tea.Cmd {
	if m.deps.Stats == nil {
		return nil
	}
	ctx, src, logger := m.ctx, m.deps.Stats, m.deps.Logger
	return func() tea.Msg {
		stats, err := src.Stats(ctx)
		if err != nil {
			logger.Warn("load stats failed", slog.Any("error", err))
			return nil
		}
		return statsMsg{stats: stats}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		for _, p := range m.pages {
			p.SetSize(msg.Width, msg.Height)
		}
		return m, nil

	case prefetchedMsg:
		for _, p := range m.pages {
			p.rebuild()
		}
		return m, nil

	case statsMsg:
		m.stats = msg.stats
		return m, nil

	case loadedMsg:
		if p := m.page(msg.path); p != nil {
			p.Update(msg)
		}
		return m, m.showNotes()

	case filterTickMsg:
		if p := m.page(msg.path); p != nil {
			return m, p.Update(msg)
		}
		return m, nil

	case dispatchedMsg:
		if p := m.page(msg.path); p != nil {
			p.Update(msg)
		}
		return m, tea.Batch(m.showNotes(), m.reloadStale(), m.loadStats())

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if p := m.Active(); p != nil {
		return m, p.Update(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	p := m.Active()
	if p == nil {
		return m, tea.Quit
	}
	if p.Capturing() {
		return m, p.Update(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab":
		return m, m.switchTab(m.active + 1)
	case "shift+tab":
		return m, m.switchTab(m.active - 1)
	}
	return m, p.Update(msg)
}

// switchTab selects tab i, reloading it when its rows went stale.
func (m *Model) switchTab(i int) tea.Cmd {
	n := len(m.pages)
	m.active = ((i % n) + n) % n
	p := m.pages[m.active]
	p.rebuild()
	if p.stale.Swap(false) {
		return p.load()
	}
	return nil
}

// reloadStale reloads the visible page when its rows went stale; hidden
// pages reload on their next visit.
func (m *Model) reloadStale() tea.Cmd {
	p := m.Active()
	if p == nil || !p.stale.Swap(false) {
		return nil
	}
	return p.load()
}

func (m *Model) page(path string) *Page {
	for _, p := range m.pages {
		if p.spec.Path == path {
			return p
		}
	}
	return nil
}

// showNotes turns queued notifications into the toast. The last one wins.
func (m *Model) showNotes() tea.Cmd {
	notes := m.notes.drain()
	if len(notes) == 0 {
		return nil
	}
	n := notes[len(notes)-1]
	m.toast = &n
	m.toastSeq++
	seq := m.toastSeq
	return tea.Tick(m.deps.ToastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{seq: seq} })
}

// View implements tea.Model.
func (m *Model) View() string {
	p := m.Active()
	if p == nil {
		return "no resources configured\n"
	}

	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(p.View())
	if toast := m.renderToast(); toast != "" {
		b.WriteString(toast)
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Muted.Render(helpLine))
	return b.String()
}

const helpLine = "/ filter  s status  p per page  h/l page  1-9 sort  space select  a all  enter row  b bulk  r refresh  tab next  q quit"

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, len(m.pages))
	for i, p := range m.pages {
		label := p.Title()
		if c, ok := m.stats[p.spec.Path]; ok {
			label = fmt.Sprintf("%s (%d)", label, c.Active)
		}
		style := m.styles.Tab
		if i == m.active {
			style = m.styles.ActiveTab
		}
		tabs = append(tabs, style.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *Model) renderToast() string {
	if m.toast == nil {
		return ""
	}
	switch m.toast.Kind {
	case datatable.NotifySuccess:
		return m.styles.Success.Render(m.toast.Message)
	case datatable.NotifyValidation:
		return m.styles.Warning.Render(formatFields(m.toast.Fields))
	default:
		return m.styles.Error.Render(m.toast.Message)
	}
}

func formatFields(fields map[string][]string) string {
	parts := make([]string, 0, len(fields))
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		parts = append(parts, name+": "+strings.Join(fields[name], ", "))
	}
	return strings.Join(parts, "; ")
}

// Run starts the console program and blocks until the operator quits.
func Run(ctx context.Context, deps Deps) error {
	m := New(ctx, deps, Specs())
	defer m.Close()

	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("run console: %w", err)
	}
	return nil
}
