package datatable

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// PageSizes are the page sizes a table offers.
var PageSizes = []int{10, 50, 100}

// DateRange is an inclusive range of calendar days. A zero side is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// ViewState is everything that decides which page of data a table shows.
type ViewState struct {
	Filter         string
	Status         []string // set semantics, kept sorted
	Custom         []string // order preserved
	SortField      string
	SortDirection  string
	Page           int
	PageSize       int
	DateRangeField string
	DateRange      *DateRange
}

// Clone returns a deep copy of s.
func (s ViewState) Clone() ViewState {
	s.Status = slices.Clone(s.Status)
	s.Custom = slices.Clone(s.Custom)
	if s.DateRange != nil {
		r := *s.DateRange
		s.DateRange = &r
	}
	return s
}

// SnapPageSize returns the allowed page size closest to n. Ties pick the
// smaller size.
func SnapPageSize(n int) int {
	best := PageSizes[0]
	for _, size := range PageSizes[1:] {
		if abs(size-n) < abs(best-n) {
			best = size
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Store holds a table's ViewState. Every setter except SetPage resets the
// page to 1. Setters never perform I/O; they return the new state so the
// caller can derive the fetch key from it.
type Store struct {
	mu    sync.Mutex
	state ViewState
	vocab SortVocabulary
}

// NewStore creates a store seeded with initial, normalized.
func NewStore(initial ViewState, vocab SortVocabulary) *Store {
	s := &Store{vocab: vocab}
	s.state = normalizeState(initial.Clone(), vocab)
	return s
}

// State returns a copy of the current state.
func (s *Store) State() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Vocabulary returns the sort direction tokens of the dataset.
func (s *Store) Vocabulary() SortVocabulary { return s.vocab }

// Replace swaps the whole state, for example when restoring saved preferences.
func (s *Store) Replace(state ViewState) ViewState {
	return s.update(func(v *ViewState) { *v = state.Clone() }, false)
}

// SetFilter sets the free-text filter.
func (s *Store) SetFilter(text string) ViewState {
	return s.update(func(v *ViewState) { v.Filter = text }, true)
}

// SetStatus replaces the status set.
func (s *Store) SetStatus(status []string) ViewState {
	return s.update(func(v *ViewState) { v.Status = slices.Clone(status) }, true)
}

// ToggleStatus adds status to the set, or removes it when present.
func (s *Store) ToggleStatus(status string) ViewState {
	return s.update(func(v *ViewState) {
		if i := slices.Index(v.Status, status); i >= 0 {
			v.Status = slices.Delete(v.Status, i, i+1)
			return
		}
		v.Status = append(v.Status, status)
	}, true)
}

// SetCustom replaces the ordered custom filter values. Values containing a
// comma are dropped.
func (s *Store) SetCustom(values []string) ViewState {
	return s.update(func(v *ViewState) { v.Custom = slices.Clone(values) }, true)
}

// SetSort sets the sort column and direction. An empty field clears sorting;
// an empty direction means ascending.
func (s *Store) SetSort(field, direction string) ViewState {
	return s.update(func(v *ViewState) {
		v.SortField = field
		v.SortDirection = direction
	}, true)
}

// SetSortPayload applies a "field|direction" payload as emitted by column
// headers.
func (s *Store) SetSortPayload(payload string) ViewState {
	field, direction := s.vocab.ParseSortPayload(payload)
	return s.SetSort(field, direction)
}

// ToggleSort sorts by field ascending, or flips the direction when the table
// is already sorted by field.
func (s *Store) ToggleSort(field string) ViewState {
	return s.update(func(v *ViewState) {
		if v.SortField == field {
			v.SortDirection = s.vocab.Toggle(v.SortDirection)
			return
		}
		v.SortField = field
		v.SortDirection = s.vocab.Asc
	}, true)
}

// SetDateRange filters field by r. A nil range clears the date filter.
func (s *Store) SetDateRange(field string, r *DateRange) ViewState {
	return s.update(func(v *ViewState) {
		v.DateRangeField = field
		v.DateRange = r
	}, true)
}

// SetPage moves to page n (minimum 1) and leaves every other field alone.
func (s *Store) SetPage(n int) ViewState {
	return s.update(func(v *ViewState) { v.Page = n }, false)
}

// SetPageSize sets the page size, snapped to PageSizes.
func (s *Store) SetPageSize(n int) ViewState {
	return s.update(func(v *ViewState) { v.PageSize = n }, true)
}

// NoteResult records the row count of the page just fetched. An empty page
// beyond the first resets to page 1; the returned flag tells the caller a
// new fetch is due.
func (s *Store) NoteResult(rows int) (ViewState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rows == 0 && s.state.Page > 1 {
		s.state.Page = 1
		return s.state.Clone(), true
	}
	return s.state.Clone(), false
}

func (s *Store) update(mutate func(*ViewState), resetPage bool) ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.Clone()
	mutate(&next)
	if resetPage {
		next.Page = 1
	}
	s.state = normalizeState(next, s.vocab)
	return s.state.Clone()
}

func normalizeState(v ViewState, vocab SortVocabulary) ViewState {
	if v.Page < 1 {
		v.Page = 1
	}
	v.PageSize = SnapPageSize(v.PageSize)
	v.Status = canonicalSet(v.Status)
	v.Custom = listValues(v.Custom)
	if v.SortField == "" {
		v.SortDirection = ""
	} else {
		v.SortDirection = vocab.NormalizeDirection(v.SortDirection)
		if v.SortDirection == "" {
			v.SortDirection = vocab.Asc
		}
	}
	if v.DateRange != nil {
		r := DateRange{From: dateOnly(v.DateRange.From), To: dateOnly(v.DateRange.To)}
		v.DateRange = &r
	}
	if v.DateRangeField == "" || v.DateRange == nil || (v.DateRange.From.IsZero() && v.DateRange.To.IsZero()) {
		v.DateRangeField = ""
		v.DateRange = nil
	}
	return v
}

// dateOnly truncates t to midnight UTC of its own calendar day.
func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// listValues trims values and drops the ones that cannot travel in a
// comma-separated parameter: empty strings and values containing a comma.
// Order is kept.
func listValues(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && !strings.Contains(v, ",") {
			out = append(out, v)
		}
	}
	return out
}

// canonicalSet sorts and de-duplicates list values.
func canonicalSet(values []string) []string {
	out := listValues(values)
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
