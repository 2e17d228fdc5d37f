package datatable

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultPersistDebounce is the quiet period before view preferences are saved.
const DefaultPersistDebounce = 1500 * time.Millisecond

// Preference is the persisted subset of a ViewState.
type Preference struct {
	Filter        string   `json:"filter"`
	SortField     string   `json:"sort_field"`
	SortDirection string   `json:"sort_direction"`
	Page          int      `json:"page"`
	Status        []string `json:"status"`
	PageSize      int      `json:"per_page"`
}

// PreferenceFrom extracts the persisted subset of s.
func PreferenceFrom(s ViewState) Preference {
	return Preference{
		Filter:        s.Filter,
		SortField:     s.SortField,
		SortDirection: s.SortDirection,
		Page:          s.Page,
		Status:        slices.Clone(s.Status),
		PageSize:      s.PageSize,
	}
}

// ApplyTo overlays the preference onto base.
func (p Preference) ApplyTo(base ViewState) ViewState {
	base = base.Clone()
	base.Filter = p.Filter
	base.SortField = p.SortField
	base.SortDirection = p.SortDirection
	base.Page = p.Page
	base.Status = slices.Clone(p.Status)
	if p.PageSize > 0 {
		base.PageSize = p.PageSize
	}
	return base
}

// PreferenceStore persists per-table preferences for the current user.
type PreferenceStore interface {
	LoadPreference(ctx context.Context, key string, into any) (bool, error)
	SavePreference(ctx context.Context, key string, value any) error
}

// PreferenceKey is the store key of a resource's table, e.g. "odps".
func PreferenceKey(resource string) string {
	return resource + "s"
}

// Synchronizer derives the fetch key from every state change immediately and
// persists preferences after a quiet period. The first state it sees is the
// one the table mounted with and is never persisted.
type Synchronizer struct {
	base     string
	opts     QueryOptions
	key      string
	store    PreferenceStore
	debounce *Debouncer
	timeout  time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	applied  bool
	endpoint string
}

// SyncConfig configures a Synchronizer.
type SyncConfig struct {
	BasePath    string
	Key         string // preference key, usually PreferenceKey(resource)
	Query       QueryOptions
	Store       PreferenceStore // nil disables persistence
	Debounce    time.Duration
	SaveTimeout time.Duration
	Logger      *slog.Logger
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(cfg SyncConfig) *Synchronizer {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultPersistDebounce
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Synchronizer{
		base:     cfg.BasePath,
		opts:     cfg.Query,
		key:      cfg.Key,
		store:    cfg.Store,
		debounce: NewDebouncer(cfg.Debounce),
		timeout:  cfg.SaveTimeout,
		logger:   cfg.Logger,
	}
}

// Apply records s as the current state and returns its endpoint URL.
func (s *Synchronizer) Apply(state ViewState) string {
	endpoint := EncodeEndpoint(s.base, state, s.opts)

	s.mu.Lock()
	first := !s.applied
	s.applied = true
	s.endpoint = endpoint
	s.mu.Unlock()

	if first || s.store == nil {
		return endpoint
	}
	pref := PreferenceFrom(state)
	s.debounce.Debounce(func() { s.persist(pref) })
	return endpoint
}

// Endpoint returns the endpoint URL of the last applied state.
func (s *Synchronizer) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// Restore loads the saved preference and overlays it on base. Missing or
// unreadable preferences leave base unchanged.
func (s *Synchronizer) Restore(ctx context.Context, base ViewState) ViewState {
	if s.store == nil {
		return base
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var pref Preference
	found, err := s.store.LoadPreference(ctx, s.key, &pref)
	if err != nil {
		s.logger.WarnContext(ctx, "load preferences failed", slog.String("key", s.key), slog.Any("error", err))
		return base
	}
	if !found {
		return base
	}
	return pref.ApplyTo(base)
}

// Flush saves a pending preference immediately.
func (s *Synchronizer) Flush() bool {
	return s.debounce.Flush()
}

// Stop drops a pending preference write.
func (s *Synchronizer) Stop() {
	s.debounce.Cancel()
}

func (s *Synchronizer) persist(pref Preference) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.store.SavePreference(ctx, s.key, pref); err != nil {
		s.logger.Warn("save preferences failed", slog.String("key", s.key), slog.Any("error", err))
		return
	}
	s.logger.Debug("preferences saved", slog.String("key", s.key))
}
