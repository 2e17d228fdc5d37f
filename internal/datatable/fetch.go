package datatable

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Lister fetches one page from a list endpoint URL.
type Lister interface {
	List(ctx context.Context, endpoint string) (*ResultPage, error)
}

// Key identifies a cached page: the full endpoint URL plus an optional
// caller-chosen correlation string.
type Key struct {
	Endpoint    string
	Correlation string
}

func (k Key) String() string {
	if k.Correlation == "" {
		return k.Endpoint
	}
	return k.Endpoint + "#" + k.Correlation
}

// BasePath returns the endpoint without its query string.
func (k Key) BasePath() string {
	path, _, _ := strings.Cut(k.Endpoint, "?")
	return path
}

// QueryState is what the render layer reads for the current key.
type QueryState struct {
	Key     Key
	Data    *ResultPage
	Loading bool
	Error   bool
	Err     error
}

// Fetcher caches pages per key with no expiry. Identical concurrent requests
// share one call, failures are never cached, and nothing is retried.
type Fetcher struct {
	lister  Lister
	cache   *lru.Cache[Key, *ResultPage]
	group   singleflight.Group
	timeout time.Duration
	logger  *slog.Logger

	mu sync.Mutex
	// generation is bumped by Invalidate so an in-flight call started before
	// it does not repopulate the cache with stale rows.
	generation uint64
}

// NewFetcher creates a Fetcher holding at most size pages.
func NewFetcher(lister Lister, size int, timeout time.Duration, logger *slog.Logger) (*Fetcher, error) {
	cache, err := lru.New[Key, *ResultPage](size)
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{lister: lister, cache: cache, timeout: timeout, logger: logger}, nil
}

// Fetch returns the page for key, from cache when present. The request is
// detached from ctx's cancellation so callers sharing it are not failed by
// one caller giving up; the fetcher's own timeout still applies.
func (f *Fetcher) Fetch(ctx context.Context, key Key) (*ResultPage, error) {
	if page, ok := f.cache.Get(key); ok {
		return page, nil
	}

	f.mu.Lock()
	gen := f.generation
	f.mu.Unlock()

	v, err, shared := f.group.Do(fmt.Sprintf("%d|%s", gen, key), func() (any, error) {
		if page, ok := f.cache.Get(key); ok {
			return page, nil
		}
		callCtx := context.WithoutCancel(ctx)
		if f.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, f.timeout)
			defer cancel()
		}
		page, err := f.lister.List(callCtx, key.Endpoint)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		if f.generation == gen {
			f.cache.Add(key, page)
		}
		f.mu.Unlock()
		return page, nil
	})
	if err != nil {
		f.logger.WarnContext(ctx, "list fetch failed", slog.String("endpoint", key.Endpoint), slog.Any("error", err))
		return nil, err
	}
	if shared {
		f.logger.DebugContext(ctx, "list fetch shared", slog.String("endpoint", key.Endpoint))
	}
	return v.(*ResultPage), nil
}

// Peek returns the cached page for key without issuing a request.
func (f *Fetcher) Peek(key Key) (*ResultPage, bool) {
	return f.cache.Peek(key)
}

// Invalidate drops every cached page whose endpoint path is basePath and
// returns how many were dropped.
func (f *Fetcher) Invalidate(basePath string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation++

	dropped := 0
	for _, key := range f.cache.Keys() {
		if key.BasePath() == basePath {
			f.cache.Remove(key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of cached pages.
func (f *Fetcher) Len() int {
	return f.cache.Len()
}
