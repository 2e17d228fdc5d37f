// Package eventbus is the console's application-scoped publish/subscribe
// channel. Table instances subscribe on mount and unsubscribe on teardown.
package eventbus

import (
	"log/slog"
	"sync"
)

// Event is implemented by every payload the bus carries.
type Event interface {
	EventName() string
}

// BulkCompleted is published after a bulk action succeeded against Endpoint.
type BulkCompleted struct {
	Endpoint string
	Action   string
	IDs      []string
}

// EventName implements Event.
func (BulkCompleted) EventName() string { return "bulk_completed" }

// QueriesInvalidated asks every list keyed by Endpoint to drop its cache.
type QueriesInvalidated struct {
	Endpoint string
}

// EventName implements Event.
func (QueriesInvalidated) EventName() string { return "queries_invalidated" }

type subscription struct {
	id uint64
	fn func(Event)
}

// Bus delivers events synchronously, in subscription order, on the
// publisher's goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	logger *slog.Logger
}

// New creates an empty bus. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers fn for every event and returns the func that removes it.
// Calling the returned func more than once is a no-op.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// On subscribes fn to events of type T only.
func On[T Event](b *Bus, fn func(T)) (unsubscribe func()) {
	return b.Subscribe(func(e Event) {
		if typed, ok := e.(T); ok {
			fn(typed)
		}
	})
}

// Publish delivers e to every current subscriber. Handlers may subscribe or
// unsubscribe while being called; the change applies to the next Publish.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	b.logger.Debug("event published", slog.String("event", e.EventName()), slog.Int("subscribers", len(subs)))
	for _, s := range subs {
		s.fn(e)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
