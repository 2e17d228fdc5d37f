package datatable

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/simp-lee/ftthadmin/internal/domain"
	"github.com/simp-lee/ftthadmin/internal/eventbus"
)

// BulkPoster posts a bulk action to basePath + "/bulk".
type BulkPoster interface {
	Bulk(ctx context.Context, basePath, action string, ids []string) ([]Resource, error)
}

var (
	// ErrNoIDs is returned when Dispatch is called without ids.
	ErrNoIDs = errors.New("datatable: bulk action needs at least one id")
	// ErrInFlight is returned when an id is already part of a running dispatch.
	ErrInFlight = errors.New("datatable: bulk action already running for a selected id")
)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	BasePath  string
	Poster    BulkPoster
	Selection *Selection
	Bus       *eventbus.Bus // optional
	Notify    Notifier      // optional
	OnSuccess func(action string, affected []Resource)
	Logger    *slog.Logger
}

// Dispatcher runs bulk actions against one endpoint. The selection is cleared
// when a dispatch starts and again when it ends, whatever the outcome.
type Dispatcher struct {
	cfg DispatcherConfig

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Selection == nil {
		cfg.Selection = NewSelection()
	}
	return &Dispatcher{cfg: cfg, inFlight: make(map[string]struct{})}
}

// Dispatch posts action for ids in batches of domain.MaxBulkIDs and returns
// every affected resource. Failures are reported through Notify as well as
// returned.
func (d *Dispatcher) Dispatch(ctx context.Context, action string, ids []string) ([]Resource, error) {
	ids = canonicalSet(ids)
	if len(ids) == 0 {
		return nil, ErrNoIDs
	}

	d.cfg.Selection.Clear()
	defer d.cfg.Selection.Clear()

	if !d.reserve(ids) {
		d.notify(Notification{Kind: NotifyError, Message: RefreshMessage})
		return nil, ErrInFlight
	}
	defer d.release(ids)

	affected := make([]Resource, 0, len(ids))
	for start := 0; start < len(ids); start += domain.MaxBulkIDs {
		end := min(start+domain.MaxBulkIDs, len(ids))
		rows, err := d.cfg.Poster.Bulk(ctx, d.cfg.BasePath, action, ids[start:end])
		if err != nil {
			d.cfg.Logger.WarnContext(ctx, "bulk action failed",
				slog.String("endpoint", d.cfg.BasePath),
				slog.String("action", action),
				slog.Int("ids", len(ids)),
				slog.Any("error", err),
			)
			d.notify(NotificationFromError(err))
			if len(affected) > 0 {
				d.publish(action, ids)
			}
			return affected, err
		}
		affected = append(affected, rows...)
	}

	d.cfg.Logger.InfoContext(ctx, "bulk action applied",
		slog.String("endpoint", d.cfg.BasePath),
		slog.String("action", action),
		slog.Int("requested", len(ids)),
		slog.Int("affected", len(affected)),
	)
	d.notify(SuccessNotification(action, len(affected)))
	if d.cfg.OnSuccess != nil {
		d.cfg.OnSuccess(action, affected)
	}
	d.publish(action, ids)
	return affected, nil
}

// publish tells every mounted table that rows under the endpoint changed.
func (d *Dispatcher) publish(action string, ids []string) {
	if d.cfg.Bus == nil {
		return
	}
	d.cfg.Bus.Publish(eventbus.QueriesInvalidated{Endpoint: d.cfg.BasePath})
	d.cfg.Bus.Publish(eventbus.BulkCompleted{Endpoint: d.cfg.BasePath, Action: action, IDs: ids})
}

func (d *Dispatcher) notify(n Notification) {
	if d.cfg.Notify != nil {
		d.cfg.Notify(n)
	}
}

func (d *Dispatcher) reserve(ids []string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		if _, busy := d.inFlight[id]; busy {
			return false
		}
	}
	for _, id := range ids {
		d.inFlight[id] = struct{}{}
	}
	return true
}

func (d *Dispatcher) release(ids []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		delete(d.inFlight, id)
	}
}
