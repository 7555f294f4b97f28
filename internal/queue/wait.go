package queue

import (
	"context"
	"sync"
	"time"
)

// WaitOutcome is how a countdown ended.
type WaitOutcome int

const (
	// WaitCompleted means the countdown reached zero.
	WaitCompleted WaitOutcome = iota
	// WaitSkipped means the operator asked to resume immediately.
	WaitSkipped
	// WaitCancelled means a stop was requested or the context ended.
	WaitCancelled
)

func (o WaitOutcome) String() string {
	switch o {
	case WaitCompleted:
		return "completed"
	case WaitSkipped:
		return "skipped"
	case WaitCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Waiter runs interruptible countdowns, one at a time.
type Waiter struct {
	tick time.Duration

	mu   sync.Mutex
	skip chan struct{}
}

// NewWaiter creates a Waiter that decrements its countdown once per tick.
func NewWaiter(tick time.Duration) *Waiter {
	if tick <= 0 {
		tick = time.Second
	}
	return &Waiter{tick: tick}
}

// Wait counts seconds down to zero, calling onTick with the remaining count at
// the start and after every tick. At every tick it consults stopped; when that
// reports true, or ctx ends, the wait returns WaitCancelled and leaves the
// countdown where it was. Skip ends the wait with WaitSkipped.
func (w *Waiter) Wait(ctx context.Context, seconds int, stopped func() bool, onTick func(remaining int)) WaitOutcome {
	skip := w.begin()
	defer w.end()

	remaining := seconds
	if onTick != nil {
		onTick(remaining)
	}
	if stopped != nil && stopped() {
		return WaitCancelled
	}

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for remaining > 0 {
		select {
		case <-ctx.Done():
			return WaitCancelled
		case <-skip:
			return WaitSkipped
		case <-ticker.C:
			if stopped != nil && stopped() {
				return WaitCancelled
			}
			remaining--
			if onTick != nil {
				onTick(remaining)
			}
		}
	}
	return WaitCompleted
}

// Skip ends the countdown in progress. It reports false when no wait is active.
func (w *Waiter) Skip() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.skip == nil {
		return false
	}
	select {
	case w.skip <- struct{}{}:
	default:
	}
	return true
}

// Waiting reports whether a countdown is in progress.
func (w *Waiter) Waiting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.skip != nil
}

func (w *Waiter) begin() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.skip = make(chan struct{}, 1)
	return w.skip
}

func (w *Waiter) end() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.skip = nil
}
