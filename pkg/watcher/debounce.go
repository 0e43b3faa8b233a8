package watcher

import (
	"sync"
	"time"
)

// DefaultDebounce is the default quiet window before a change fires.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer coalesces a burst of triggers into a single callback after
// a quiet window. Each Trigger restarts the window.
type Debouncer struct {
	d     time.Duration
	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a debouncer with the given quiet window. A
// non-positive window fires synchronously.
func NewDebouncer(d time.Duration) *Debouncer {
	return &Debouncer{d: d}
}

// Trigger schedules fn after the quiet window, replacing any pending
// callback.
func (d *Debouncer) Trigger(fn func()) {
	if d.d <= 0 {
		fn()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.d, fn)
}

// Cancel discards any pending callback.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
