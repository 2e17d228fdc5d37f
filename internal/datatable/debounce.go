package datatable

import (
	"sync"
	"time"
)

// Debouncer runs the most recently scheduled func once no new call has
// arrived for the configured duration. At most one timer is live.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	pending  func()
	duration time.Duration
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{duration: duration}
}

// Debounce schedules fn, replacing and cancelling any pending call.
func (d *Debouncer) Debounce(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = fn
	var timer *time.Timer
	timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		if d.timer != timer {
			d.mu.Unlock()
			return
		}
		run := d.pending
		d.timer, d.pending = nil, nil
		d.mu.Unlock()
		run()
	})
	d.timer = timer
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer, d.pending = nil, nil
	}
}

// Flush runs the pending call now, on the caller's goroutine, and reports
// whether there was one.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	run := d.pending
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer, d.pending = nil, nil
	d.mu.Unlock()

	if run == nil {
		return false
	}
	run()
	return true
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
