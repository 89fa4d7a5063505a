// Package engine schedules audio repairs.
//
// Two mechanisms share one clock:
//
// Debounce:
// RequestSoon coalesces bursts of device notifications into one reset. At
// most one reset is pending at a time. Each request made while one is
// pending pushes its deadline to now+window, so the reset fires one window
// after the last request of a burst.
//
// Rebuild sequence:
// StartRebuild arms a four-state machine (Idle, Step1, Step2, Step3) that
// tears down and reconstructs the host's main audio class. The host drives
// it by calling Tick every frame; a step runs only once its due time has
// passed. Steps never roll back: every native call is attempted, failures
// are logged, and the machine still advances.
//
// CONCURRENCY:
// Notification callbacks arrive on host threads, Tick on the frame thread,
// and debounced resets on timer goroutines. The debouncer and the sequencer
// each guard their state with their own mutex. Close cancels a context that
// every pending timer re-checks before acting.
package engine
