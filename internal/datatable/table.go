// Package datatable is the list-view state machine shared by every inventory
// table of the console: view state, fetch keys, the page cache, selection and
// bulk actions. It renders nothing; the console package draws from it.
package datatable

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/simp-lee/ftthadmin/internal/eventbus"
)

// Column declares one table column. Value and Footer are the only ways the
// table reads row contents.
type Column struct {
	// Key is the sort field; empty means the column is not sortable.
	Key    string
	Title  string
	Width  int
	Value  func(Resource) string
	Footer func(rows []Resource) string
}

// Config wires a Table to its collaborators.
type Config struct {
	Resource      string // singular resource name, e.g. "odp"
	PreferenceKey string // overrides PreferenceKey(Resource) for irregular plurals
	BasePath      string // list endpoint path, e.g. "/odps"
	Columns       []Column
	Actions       []Action
	Query         QueryOptions
	Defaults      ViewState
	Correlation   string

	Fetcher     *Fetcher
	Poster      BulkPoster
	Preferences PreferenceStore
	Bus         *eventbus.Bus
	Notify      Notifier
	OnSuccess   func(action string, affected []Resource)

	// OnInvalidate is called after another component invalidated this
	// table's endpoint; the caller should Load again.
	OnInvalidate func()

	PersistDebounce time.Duration
	SaveTimeout     time.Duration
	Logger          *slog.Logger
}

// Table composes the store, synchronizer, fetcher, selection and dispatcher of
// one resource list.
type Table struct {
	cfg        Config
	store      *Store
	syncer     *Synchronizer
	selection  *Selection
	dispatcher *Dispatcher

	mu              sync.Mutex
	current         Key
	query           QueryState
	disabled        bool
	pageSizeChanged bool
	seen            map[string]Resource
	unsubscribe     []func()
}

// New creates an unmounted table.
func New(cfg Config) *Table {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Actions == nil {
		cfg.Actions = StandardActions()
	}
	if cfg.Defaults.PageSize == 0 {
		cfg.Defaults.PageSize = PageSizes[0]
	}
	if cfg.Query.Vocab == (SortVocabulary{}) {
		cfg.Query.Vocab = DefaultSortVocabulary
	}
	logger := cfg.Logger.With(slog.String("table", cfg.Resource))
	prefKey := cfg.PreferenceKey
	if prefKey == "" {
		prefKey = PreferenceKey(cfg.Resource)
	}

	t := &Table{
		cfg:       cfg,
		store:     NewStore(cfg.Defaults, cfg.Query.Vocab),
		selection: NewSelection(),
		seen:      make(map[string]Resource),
	}
	t.syncer = NewSynchronizer(SyncConfig{
		BasePath:    cfg.BasePath,
		Key:         prefKey,
		Query:       cfg.Query,
		Store:       cfg.Preferences,
		Debounce:    cfg.PersistDebounce,
		SaveTimeout: cfg.SaveTimeout,
		Logger:      logger,
	})
	t.dispatcher = NewDispatcher(DispatcherConfig{
		BasePath:  cfg.BasePath,
		Poster:    cfg.Poster,
		Selection: t.selection,
		Bus:       cfg.Bus,
		Notify:    cfg.Notify,
		OnSuccess: cfg.OnSuccess,
		Logger:    logger,
	})
	t.cfg.Logger = logger
	return t
}

// Mount builds the initial state and subscribes to the event bus. A non-empty
// query decides the state; otherwise saved preferences are restored over the
// defaults. Mount issues no list request; call Load.
func (t *Table) Mount(ctx context.Context, query url.Values) Key {
	var state ViewState
	if len(query) > 0 {
		state = DecodeViewState(query, t.cfg.Defaults, t.cfg.Query)
	} else {
		state = t.syncer.Restore(ctx, t.cfg.Defaults)
	}
	state = t.store.Replace(state)

	if bus := t.cfg.Bus; bus != nil {
		t.mu.Lock()
		t.unsubscribe = append(t.unsubscribe,
			eventbus.On(bus, t.onInvalidated),
			eventbus.On(bus, t.onBulkCompleted),
		)
		t.mu.Unlock()
	}
	return t.apply(state)
}

// Close unsubscribes from the bus and saves any pending preference change.
func (t *Table) Close() {
	t.mu.Lock()
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	t.syncer.Flush()
}

func (t *Table) onInvalidated(e eventbus.QueriesInvalidated) {
	if e.Endpoint != t.cfg.BasePath {
		return
	}
	if t.cfg.Fetcher != nil {
		t.cfg.Fetcher.Invalidate(e.Endpoint)
	}
	if t.cfg.OnInvalidate != nil {
		t.cfg.OnInvalidate()
	}
}

func (t *Table) onBulkCompleted(eventbus.BulkCompleted) {
	t.selection.Clear()
}

// apply derives the fetch key of state and makes it current. Rows of the
// previous key stay visible while the new one loads.
func (t *Table) apply(state ViewState) Key {
	key := Key{Endpoint: t.syncer.Apply(state), Correlation: t.cfg.Correlation}

	t.mu.Lock()
	defer t.mu.Unlock()
	if key != t.current {
		t.current = key
		t.query = QueryState{Key: key, Data: t.query.Data, Loading: !t.disabled}
	}
	return key
}

// Load resolves the current key: from cache when possible, otherwise with a
// request. When the table is disabled no request is issued.
func (t *Table) Load(ctx context.Context) QueryState {
	if t.cfg.Fetcher == nil {
		return t.fail(t.Key(), errors.New("datatable: no fetcher configured"))
	}
	// A page past the end comes back empty and moves the table to page 1;
	// that second key is loaded before returning.
	for range 2 {
		t.mu.Lock()
		key, disabled := t.current, t.disabled
		t.mu.Unlock()

		page, ok := t.cfg.Fetcher.Peek(key)
		if !ok {
			if disabled {
				return t.Query()
			}
			var err error
			if page, err = t.cfg.Fetcher.Fetch(ctx, key); err != nil {
				return t.fail(key, err)
			}
		}
		if !t.settle(key, page) {
			break
		}
	}
	return t.Query()
}

// settle stores page as the result of key and reports whether the store
// moved to another page because this one was empty.
func (t *Table) settle(key Key, page *ResultPage) bool {
	t.mu.Lock()
	if key != t.current {
		t.mu.Unlock()
		return false
	}
	t.query = QueryState{Key: key, Data: page}
	ids := page.IDs()
	for _, row := range page.Rows {
		t.seen[row.ID] = row
	}
	t.selection.Reconcile(ids, t.pageSizeChanged)
	t.pageSizeChanged = false
	t.mu.Unlock()

	state, reset := t.store.NoteResult(len(page.Rows))
	if reset {
		t.apply(state)
	}
	return reset
}

func (t *Table) fail(key Key, err error) QueryState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if key == t.current {
		t.query = QueryState{Key: key, Error: true, Err: err}
	}
	return t.query
}

// Query returns the render state of the current key.
func (t *Table) Query() QueryState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.query
}

// Key returns the current fetch key.
func (t *Table) Key() Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// State returns the current view state.
func (t *Table) State() ViewState { return t.store.State() }

// Vocabulary returns the sort tokens of the dataset.
func (t *Table) Vocabulary() SortVocabulary { return t.store.Vocabulary() }

// Config returns the table configuration.
func (t *Table) Config() Config { return t.cfg }

// SetDisabled suppresses requests while keeping the last rows on screen.
func (t *Table) SetDisabled(disabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disabled = disabled
	if disabled {
		t.query.Loading = false
	}
}

// Refresh drops every cached page of the endpoint and loads again.
func (t *Table) Refresh(ctx context.Context) QueryState {
	if t.cfg.Fetcher != nil {
		t.cfg.Fetcher.Invalidate(t.cfg.BasePath)
	}
	return t.Load(ctx)
}

// SetFilter sets the free-text filter.
func (t *Table) SetFilter(text string) Key { return t.apply(t.store.SetFilter(text)) }

// SetStatus replaces the status filter.
func (t *Table) SetStatus(status []string) Key { return t.apply(t.store.SetStatus(status)) }

// ToggleStatus adds or removes one status from the filter.
func (t *Table) ToggleStatus(status string) Key { return t.apply(t.store.ToggleStatus(status)) }

// SetCustom replaces the custom filter values.
func (t *Table) SetCustom(values []string) Key { return t.apply(t.store.SetCustom(values)) }

// SetSortPayload applies a "field|direction" sort payload.
func (t *Table) SetSortPayload(payload string) Key { return t.apply(t.store.SetSortPayload(payload)) }

// ToggleSort sorts by field or flips its direction.
func (t *Table) ToggleSort(field string) Key { return t.apply(t.store.ToggleSort(field)) }

// SetDateRange filters a date column.
func (t *Table) SetDateRange(field string, r *DateRange) Key {
	return t.apply(t.store.SetDateRange(field, r))
}

// SetPage moves to page n.
func (t *Table) SetPage(n int) Key { return t.apply(t.store.SetPage(n)) }

// NextPage moves forward unless the last known page is the last one.
func (t *Table) NextPage() Key {
	state := t.store.State()
	if q := t.Query(); q.Data != nil && state.Page >= q.Data.Meta.TotalPages {
		return t.Key()
	}
	return t.SetPage(state.Page + 1)
}

// PrevPage moves back one page, stopping at the first.
func (t *Table) PrevPage() Key {
	state := t.store.State()
	if state.Page <= 1 {
		return t.Key()
	}
	return t.SetPage(state.Page - 1)
}

// SetPageSize changes the page size.
func (t *Table) SetPageSize(n int) Key {
	before := t.store.State().PageSize
	state := t.store.SetPageSize(n)
	if state.PageSize != before {
		t.mu.Lock()
		t.pageSizeChanged = true
		t.mu.Unlock()
	}
	return t.apply(state)
}

// CyclePageSize moves to the next allowed page size.
func (t *Table) CyclePageSize() Key {
	current := t.store.State().PageSize
	for i, size := range PageSizes {
		if size == current {
			return t.SetPageSize(PageSizes[(i+1)%len(PageSizes)])
		}
	}
	return t.SetPageSize(PageSizes[0])
}

// Rows returns the rows on screen.
func (t *Table) Rows() []Resource {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.query.Data == nil {
		return nil
	}
	return t.query.Data.Rows
}

// VisibleIDs returns the ids of the rows on screen.
func (t *Table) VisibleIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.query.Data.IDs()
}

// Toggle flips the selection of one row.
func (t *Table) Toggle(id string) bool { return t.selection.Toggle(id) }

// SetAll is the header checkbox.
func (t *Table) SetAll(checked bool) { t.selection.SetAll(t.VisibleIDs(), checked) }

// HeaderChecked reports whether the selection is exactly the rows on screen.
func (t *Table) HeaderChecked() bool { return t.selection.HeaderChecked(t.VisibleIDs()) }

// Selected reports whether id is selected.
func (t *Table) Selected(id string) bool { return t.selection.Contains(id) }

// Selection returns the selected ids.
func (t *Table) Selection() []string { return t.selection.IDs() }

// SelectedResources returns the selected rows this table has seen.
func (t *Table) SelectedResources() []Resource {
	ids := t.selection.IDs()
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Resource, 0, len(ids))
	for _, id := range ids {
		if r, ok := t.seen[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// RowActions returns the actions offered for r.
func (t *Table) RowActions(r Resource) []Action { return RowActions(t.cfg.Actions, r) }

// BulkActions returns the actions offered for the current selection.
func (t *Table) BulkActions() []Action { return BulkActions(t.cfg.Actions, t.SelectedResources()) }

// Dispatch runs action on the selection.
func (t *Table) Dispatch(ctx context.Context, action string) ([]Resource, error) {
	return t.dispatcher.Dispatch(ctx, action, t.selection.IDs())
}

// DispatchRow runs action on a single row.
func (t *Table) DispatchRow(ctx context.Context, action, id string) ([]Resource, error) {
	return t.dispatcher.Dispatch(ctx, action, []string{id})
}

// Footer returns one footer cell per column, aggregated over the rows on
// screen, and whether any column defines a footer.
func (t *Table) Footer() ([]string, bool) {
	rows := t.Rows()
	cells := make([]string, len(t.cfg.Columns))
	hasFooter := false
	for i, col := range t.cfg.Columns {
		if col.Footer != nil {
			cells[i] = col.Footer(rows)
			hasFooter = true
		}
	}
	return cells, hasFooter
}
