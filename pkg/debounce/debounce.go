// Package debounce delays propagation of a rapidly changing value until it
// has been stable for a fixed quiet window.
package debounce

import (
	"sync"
	"time"
)

// Debouncer emits the latest pushed value once no new value has arrived for
// the configured window. Only the most recent value survives; nothing is
// queued.
//
// A Debouncer owns at most one pending timer. Call Stop when the consumer goes
// away so nothing is emitted afterwards.
type Debouncer[T any] struct {
	window time.Duration
	emit   func(T)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// New returns a Debouncer that calls emit with the last pushed value after
// window of inactivity. A non-positive window emits on the next tick of the
// runtime timer, which still coalesces pushes made in a tight loop.
func New[T any](window time.Duration, emit func(T)) *Debouncer[T] {
	if window < 0 {
		window = 0
	}
	return &Debouncer[T]{window: window, emit: emit}
}

// Push cancels any pending emission and reschedules it with v.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen, v) })
}

// fire runs on the timer goroutine. The generation check drops timers that
// already fired while a newer Push or Stop was taking the lock.
func (d *Debouncer[T]) fire(gen uint64, v T) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.emit(v)
}

// Pending reports whether an emission is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels the pending emission, if any. Further pushes are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
