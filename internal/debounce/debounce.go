// Package debounce coalesces bursts of triggers into one callback per quiet
// period. It backs search-as-you-type: each keystroke cancels the pending
// timer (not any in-flight request), so exactly one fetch is issued once
// input goes quiet.
package debounce

import (
	"sync"
	"time"
)

// DefaultInterval is the quiet period required before the callback fires.
const DefaultInterval = 300 * time.Millisecond

// Debouncer runs the most recent callback after a quiet period. Safe for
// concurrent use.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	pending  func()
	stopped  bool
}

// New creates a Debouncer. A non-positive interval falls back to
// DefaultInterval.
func New(interval time.Duration) *Debouncer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Debouncer{interval: interval}
}

// Trigger schedules fn to run after the quiet period, replacing any
// previously scheduled callback. Only the last fn of a burst runs.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending = fn
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

// fire runs the pending callback, if Trigger hasn't replaced it since.
func (d *Debouncer) fire() {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Flush runs any pending callback immediately instead of waiting out the
// quiet period.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Stop cancels any pending callback and rejects further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
}
