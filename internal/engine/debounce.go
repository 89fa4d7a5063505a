package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Debouncer runs an action once per burst of requests.
//
// INVARIANTS:
//   - At most one action is pending.
//   - The action never runs after ctx is cancelled; the timer goroutine
//     checks ctx immediately before calling it.
//   - The pending marker is cleared before the action runs, so a request
//     made during or after the action schedules a new, independent one.
type Debouncer struct {
	ctx    context.Context
	clock  Clock
	window func() time.Duration
	action func(Reason)
	logger *slog.Logger

	mu       sync.Mutex
	pending  bool
	reason   Reason
	deadline time.Time
	stop     func() bool
}

// NewDebouncer creates a debouncer. window is read on every request so a
// configuration change applies to the next burst.
func NewDebouncer(ctx context.Context, clock Clock, window func() time.Duration, action func(Reason), logger *slog.Logger) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Debouncer{ctx: ctx, clock: clock, window: window, action: action, logger: logger}
}

// RequestSoon asks for the action to run after the quiescence window. It
// returns true when this call scheduled a new action and false when it was
// folded into a pending one (or the debouncer is closed). The reason of the
// first request of a burst is the one reported.
func (d *Debouncer) RequestSoon(r Reason) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx.Err() != nil {
		return false
	}
	w := ClampWindow(d.window())
	d.deadline = d.clock.Now().Add(w)
	if d.pending {
		return false
	}

	d.pending = true
	d.reason = r
	d.stop = d.clock.AfterFunc(w, d.fire)
	d.logger.Info("resetting audio soon", "reason", r, "window", w)
	return true
}

// Pending reports whether an action is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels a pending action.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		d.stop()
		d.stop = nil
	}
	d.pending = false
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if !d.pending || d.ctx.Err() != nil {
		d.pending = false
		d.mu.Unlock()
		return
	}
	now := d.clock.Now()
	if now.Before(d.deadline) {
		// Requests arrived after arming; wait out the rest of the window.
		d.stop = d.clock.AfterFunc(d.deadline.Sub(now), d.fire)
		d.mu.Unlock()
		return
	}
	r := d.reason
	d.pending = false
	d.stop = nil
	d.mu.Unlock()

	if d.ctx.Err() != nil {
		return
	}
	d.action(r)
}
