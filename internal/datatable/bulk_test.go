package datatable

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/simp-lee/ftthadmin/internal/domain"
	"github.com/simp-lee/ftthadmin/internal/eventbus"
)

type bulkCall struct {
	basePath string
	action   string
	ids      []string
}

// fakePoster records bulk calls and answers with err, or with one archived
// row per id.
type fakePoster struct {
	mu    sync.Mutex
	calls []bulkCall
	err   error
	// block, when set, is closed by the test to release a running call.
	block   chan struct{}
	started chan struct{}
}

func (p *fakePoster) Bulk(_ context.Context, basePath, action string, ids []string) ([]Resource, error) {
	p.mu.Lock()
	p.calls = append(p.calls, bulkCall{basePath, action, append([]string(nil), ids...)})
	block, started, err := p.block, p.started, p.err
	p.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	out := make([]Resource, len(ids))
	for i, id := range ids {
		out[i] = Resource{ID: id, Status: "archived"}
	}
	return out, nil
}

type recorder struct {
	mu            sync.Mutex
	notifications []Notification
	events        []string
}

func (r *recorder) notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recorder) kinds() []NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []NotificationKind
	for _, n := range r.notifications {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func newTestDispatcher(poster BulkPoster, rec *recorder, bus *eventbus.Bus, sel *Selection, onSuccess func(string, []Resource)) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		BasePath:  "/odps",
		Poster:    poster,
		Selection: sel,
		Bus:       bus,
		Notify:    rec.notify,
		OnSuccess: onSuccess,
	})
}

func TestDispatcher_Success(t *testing.T) {
	poster := &fakePoster{}
	rec := &recorder{}
	bus := eventbus.New(nil)
	bus.Subscribe(func(e eventbus.Event) {
		rec.mu.Lock()
		rec.events = append(rec.events, fmt.Sprintf("%s %+v", e.EventName(), e))
		rec.mu.Unlock()
	})
	sel := NewSelection()
	sel.SetAll([]string{"b", "a"}, true)
	var affected []Resource
	d := newTestDispatcher(poster, rec, bus, sel, func(action string, rows []Resource) { affected = rows })

	got, err := d.Dispatch(context.Background(), "archive", sel.IDs())
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if diff := cmp.Diff([]bulkCall{{"/odps", "archive", []string{"a", "b"}}}, poster.calls, cmp.AllowUnexported(bulkCall{})); diff != "" {
		t.Errorf("bulk calls mismatch (-want +got):\n%s", diff)
	}
	if len(got) != 2 || len(affected) != 2 {
		t.Errorf("affected = %d / callback %d; want 2", len(got), len(affected))
	}
	if sel.Len() != 0 {
		t.Errorf("selection should be cleared, has %v", sel.IDs())
	}
	if diff := cmp.Diff([]NotificationKind{NotifySuccess}, rec.kinds()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	wantEvents := []string{
		"queries_invalidated {Endpoint:/odps}",
		"bulk_completed {Endpoint:/odps Action:archive IDs:[a b]}",
	}
	if diff := cmp.Diff(wantEvents, rec.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcher_ServerErrorStillClearsSelection(t *testing.T) {
	poster := &fakePoster{err: domain.NewAppError(domain.CodeInternal, "internal error", nil)}
	rec := &recorder{}
	bus := eventbus.New(nil)
	published := 0
	bus.Subscribe(func(eventbus.Event) { published++ })
	sel := NewSelection()
	sel.Toggle("a")
	called := false
	d := newTestDispatcher(poster, rec, bus, sel, func(string, []Resource) { called = true })

	if _, err := d.Dispatch(context.Background(), "delete", sel.IDs()); err == nil {
		t.Fatal("Dispatch() should return the server error")
	}

	if sel.Len() != 0 {
		t.Errorf("selection must be empty after a failed dispatch, has %v", sel.IDs())
	}
	if diff := cmp.Diff([]NotificationKind{NotifyError}, rec.kinds()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
	if rec.notifications[0].Message != RefreshMessage {
		t.Errorf("message = %q; want %q", rec.notifications[0].Message, RefreshMessage)
	}
	if called || published != 0 {
		t.Errorf("a failure must not call OnSuccess (%v) or publish (%d)", called, published)
	}
}

func TestDispatcher_ValidationFailureCarriesFields(t *testing.T) {
	poster := &fakePoster{err: domain.FieldError("ids", "unknown id zz")}
	rec := &recorder{}
	d := newTestDispatcher(poster, rec, nil, NewSelection(), nil)

	d.Dispatch(context.Background(), "restore", []string{"zz"})

	if len(rec.notifications) != 1 {
		t.Fatalf("notifications = %d; want 1", len(rec.notifications))
	}
	n := rec.notifications[0]
	if n.Kind != NotifyValidation || n.Message != "" {
		t.Errorf("notification = %+v; want a validation bag without a toast message", n)
	}
	if diff := cmp.Diff(map[string][]string{"ids": {"unknown id zz"}}, n.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcher_RejectsEmptyIDs(t *testing.T) {
	poster := &fakePoster{}
	d := newTestDispatcher(poster, &recorder{}, nil, NewSelection(), nil)

	if _, err := d.Dispatch(context.Background(), "archive", []string{"", ""}); !errors.Is(err, ErrNoIDs) {
		t.Errorf("Dispatch() error = %v; want ErrNoIDs", err)
	}
	if len(poster.calls) != 0 {
		t.Error("no request should be sent")
	}
}

func TestDispatcher_BatchesLargeSelections(t *testing.T) {
	poster := &fakePoster{}
	d := newTestDispatcher(poster, &recorder{}, nil, NewSelection(), nil)
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%03d", i)
	}

	got, err := d.Dispatch(context.Background(), "archive", ids)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(got) != 250 {
		t.Errorf("affected = %d; want 250", len(got))
	}
	var sizes []int
	for _, c := range poster.calls {
		sizes = append(sizes, len(c.ids))
	}
	if diff := cmp.Diff([]int{100, 100, 50}, sizes); diff != "" {
		t.Errorf("batch sizes mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcher_SameIDNotDispatchedTwiceConcurrently(t *testing.T) {
	poster := &fakePoster{block: make(chan struct{}), started: make(chan struct{}, 1)}
	rec := &recorder{}
	sel := NewSelection()
	d := newTestDispatcher(poster, rec, nil, sel, nil)

	sel.Toggle("a")
	done := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), "archive", sel.IDs())
		done <- err
	}()
	<-poster.started

	if sel.Len() != 0 {
		t.Error("selection must be cleared as soon as a dispatch starts")
	}
	if _, err := d.Dispatch(context.Background(), "archive", []string{"a"}); !errors.Is(err, ErrInFlight) {
		t.Errorf("second Dispatch() error = %v; want ErrInFlight", err)
	}

	close(poster.block)
	if err := <-done; err != nil {
		t.Errorf("first Dispatch() error = %v", err)
	}
	if got := len(poster.calls); got != 1 {
		t.Errorf("requests = %d; want 1", got)
	}
}
