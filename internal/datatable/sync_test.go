package datatable

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type savedPreference struct {
	key   string
	value Preference
	at    time.Time
}

// memoryPreferences is an in-memory PreferenceStore recording every save.
type memoryPreferences struct {
	mu      sync.Mutex
	saved   []savedPreference
	stored  map[string][]byte
	saveErr error
	loadErr error
}

func newMemoryPreferences() *memoryPreferences {
	return &memoryPreferences{stored: make(map[string][]byte)}
}

func (m *memoryPreferences) LoadPreference(_ context.Context, key string, into any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return false, m.loadErr
	}
	raw, ok := m.stored[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, into)
}

func (m *memoryPreferences) SavePreference(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pref, _ := value.(Preference)
	m.saved = append(m.saved, savedPreference{key: key, value: pref, at: time.Now()})
	if m.saveErr != nil {
		return m.saveErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.stored[key] = raw
	return nil
}

func (m *memoryPreferences) saves() []savedPreference {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]savedPreference(nil), m.saved...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDebouncer_LastCallWins(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var mu sync.Mutex
	var calls []int
	for i := range 3 {
		d.Debounce(func() {
			mu.Lock()
			calls = append(calls, i)
			mu.Unlock()
		})
	}
	waitFor(t, time.Second, func() bool { return !d.Pending() })
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]int{2}, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestDebouncer_CancelAndFlush(t *testing.T) {
	d := NewDebouncer(time.Hour)
	ran := 0
	d.Debounce(func() { ran++ })
	d.Cancel()
	if d.Flush() {
		t.Error("Flush after Cancel should find nothing pending")
	}

	d.Debounce(func() { ran++ })
	if !d.Flush() {
		t.Error("Flush should run the pending call")
	}
	if ran != 1 {
		t.Errorf("ran = %d; want 1", ran)
	}
	if d.Pending() {
		t.Error("nothing should be pending after Flush")
	}
}

func newTestSynchronizer(store PreferenceStore, debounce time.Duration) *Synchronizer {
	return NewSynchronizer(SyncConfig{
		BasePath: "/odps",
		Key:      "odps",
		Query:    QueryOptions{Vocab: DefaultSortVocabulary},
		Store:    store,
		Debounce: debounce,
	})
}

func TestSynchronizer_FirstApplyIsNotPersisted(t *testing.T) {
	prefs := newMemoryPreferences()
	s := newTestSynchronizer(prefs, 10*time.Millisecond)

	endpoint := s.Apply(ViewState{Page: 1, PageSize: 10})

	if endpoint != "/odps?per_page=10&page=1&sort=" {
		t.Errorf("Apply() = %q", endpoint)
	}
	if s.Flush() {
		t.Error("the mount state must not schedule a write")
	}
	time.Sleep(30 * time.Millisecond)
	if got := len(prefs.saves()); got != 0 {
		t.Errorf("saves = %d; want 0", got)
	}
}

func TestSynchronizer_TwoKeystrokesOneWrite(t *testing.T) {
	const window = 60 * time.Millisecond
	prefs := newMemoryPreferences()
	s := newTestSynchronizer(prefs, window)
	store := NewStore(ViewState{PageSize: 10}, DefaultSortVocabulary)
	s.Apply(store.State())

	first := s.Apply(store.SetFilter("o"))
	time.Sleep(window / 3)
	secondAt := time.Now()
	second := s.Apply(store.SetFilter("od"))

	if first == second {
		t.Fatal("each keystroke must produce a new fetch key immediately")
	}
	if s.Endpoint() != second {
		t.Errorf("Endpoint() = %q; want %q", s.Endpoint(), second)
	}

	waitFor(t, time.Second, func() bool { return len(prefs.saves()) > 0 })
	time.Sleep(2 * window)

	saves := prefs.saves()
	if len(saves) != 1 {
		t.Fatalf("saves = %d; want exactly 1", len(saves))
	}
	if saves[0].key != "odps" {
		t.Errorf("key = %q; want odps", saves[0].key)
	}
	if saves[0].value.Filter != "od" {
		t.Errorf("saved filter = %q; want od", saves[0].value.Filter)
	}
	if saves[0].at.Before(secondAt.Add(window)) {
		t.Errorf("write at %v happened before the second keystroke's window ended (%v)", saves[0].at, secondAt.Add(window))
	}
}

func TestSynchronizer_SaveFailureIsSwallowed(t *testing.T) {
	prefs := newMemoryPreferences()
	prefs.saveErr = errors.New("backend down")
	s := newTestSynchronizer(prefs, time.Hour)
	s.Apply(ViewState{Page: 1, PageSize: 10})

	endpoint := s.Apply(ViewState{Filter: "x", Page: 1, PageSize: 10})
	s.Flush()

	if endpoint == "" || s.Endpoint() != endpoint {
		t.Errorf("fetch key must still advance after a failed save; got %q", s.Endpoint())
	}
	if got := len(prefs.saves()); got != 1 {
		t.Errorf("save attempts = %d; want 1", got)
	}
}

func TestSynchronizer_Restore(t *testing.T) {
	prefs := newMemoryPreferences()
	prefs.stored["odps"] = []byte(`{"filter":"tebet","sort_field":"code","sort_direction":"dsc","page":3,"status":["active"],"per_page":50}`)
	s := newTestSynchronizer(prefs, time.Hour)
	defaults := ViewState{Page: 1, PageSize: 10, Custom: []string{"odc-1"}}

	got := s.Restore(context.Background(), defaults)

	want := ViewState{
		Filter: "tebet", SortField: "code", SortDirection: "dsc", Page: 3,
		Status: []string{"active"}, PageSize: 50, Custom: []string{"odc-1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Restore() mismatch (-want +got):\n%s", diff)
	}

	prefs.loadErr = errors.New("unauthorized")
	if diff := cmp.Diff(defaults, s.Restore(context.Background(), defaults)); diff != "" {
		t.Errorf("failed load should keep defaults (-want +got):\n%s", diff)
	}
}
