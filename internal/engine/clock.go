package engine

import "time"

// Clock is the time source for the engine.
//
// Production uses SystemClock. Tests use testutil.ManualClock, which only
// moves and fires timers when told to, so debounce and sequencer timing is
// fully deterministic.
type Clock interface {
	Now() time.Time

	// AfterFunc calls f in its own goroutine after d and returns a function
	// that cancels the call. stop reports whether it prevented f from running.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
