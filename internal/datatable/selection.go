package datatable

import (
	"slices"
	"sync"
)

// Selection is the set of selected row ids. Ids stay selected across pages
// until cleared.
type Selection struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// Toggle flips id and reports whether it is now selected.
func (s *Selection) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// SetAll is the header checkbox. Checking adds every visible id; unchecking
// clears the whole selection, including ids on other pages.
func (s *Selection) SetAll(visible []string, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !checked {
		clear(s.ids)
		return
	}
	for _, id := range visible {
		s.ids[id] = struct{}{}
	}
}

// HeaderChecked reports whether the selection is exactly the visible page.
// Selected ids off the page leave the header unchecked.
func (s *Selection) HeaderChecked(visible []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(visible) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(visible))
	for _, id := range visible {
		if _, ok := s.ids[id]; !ok {
			return false
		}
		seen[id] = struct{}{}
	}
	return len(seen) == len(s.ids)
}

// Reconcile is called with every new page. Selected ids missing from the page
// are kept, except after a page-size change that leaves fewer visible rows
// than selected ids: then the selection is pruned to the visible ones.
func (s *Selection) Reconcile(visible []string, pageSizeChanged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !pageSizeChanged || len(visible) >= len(s.ids) {
		return
	}
	keep := make(map[string]struct{}, len(visible))
	for _, id := range visible {
		if _, ok := s.ids[id]; ok {
			keep[id] = struct{}{}
		}
	}
	s.ids = keep
}

// Contains reports whether id is selected.
func (s *Selection) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// IDs returns the selected ids, sorted.
func (s *Selection) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Clear empties the selection and returns what was selected, sorted.
func (s *Selection) Clear() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	clear(s.ids)
	slices.Sort(ids)
	return ids
}
