package cart

import (
	"sync"
	"time"
)

// Debouncer runs fn once after delay has passed without another Trigger.
// A Trigger while a run is in flight schedules a new run; runs themselves are
// not serialized.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	pending  bool
	closed   bool
	inflight sync.WaitGroup
}

func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger (re)starts the delay. It is a no-op after Close.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.gen++
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// a timer that lost the race with Stop or a newer Trigger is stale
	if gen != d.gen || !d.pending || d.closed {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.inflight.Add(1)
	d.mu.Unlock()

	defer d.inflight.Done()
	d.fn()
}

// Pending reports whether a run is scheduled and has not started yet.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Cancel drops the scheduled run, if any, and reports whether there was one.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked()
}

func (d *Debouncer) cancelLocked() bool {
	was := d.pending
	d.pending = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return was
}

// Flush runs a scheduled run immediately on the calling goroutine.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.closed || !d.cancelLocked() {
		d.mu.Unlock()
		return
	}
	d.inflight.Add(1)
	d.mu.Unlock()

	defer d.inflight.Done()
	d.fn()
}

// Close flushes a scheduled run, waits for runs in flight and disables
// further triggers.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.inflight.Wait()
		return
	}
	run := d.cancelLocked()
	d.closed = true
	if run {
		d.inflight.Add(1)
	}
	d.mu.Unlock()

	if run {
		func() {
			defer d.inflight.Done()
			d.fn()
		}()
	}
	d.inflight.Wait()
}
