package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventKind classifies engine events.
type EventKind string

const (
	// EventResetScheduled: a debounced reset was armed.
	EventResetScheduled EventKind = "reset_scheduled"

	// EventReset: the reset flag is about to be written.
	EventReset EventKind = "reset"

	// EventRebuildStart: a rebuild sequence was started.
	EventRebuildStart EventKind = "rebuild_start"

	// EventRebuildStep: a rebuild step is about to run.
	EventRebuildStep EventKind = "rebuild_step"
)

// Event is emitted to the event hook for notices and journaling.
type Event struct {
	Kind   EventKind
	Token  string
	Reason Reason
	// Step is the 1-based step number for EventRebuildStep.
	Step int
	At   time.Time
}

// Engine combines the debouncer and the rebuild sequencer.
//
// Thread-safety model:
//   - RequestNow, RequestSoon, StartRebuild: safe from any goroutine
//   - Tick: called from the host frame loop
//   - Close: once, at teardown; later calls are no-ops
type Engine struct {
	clock   Clock
	logger  *slog.Logger
	window  func() time.Duration
	tokens  TokenGenerator
	onEvent func(Event)

	integration Integration
	enabled     func() bool

	reset func(Reason)

	ctx      context.Context
	cancel   context.CancelFunc
	debounce *Debouncer
	seq      *Sequencer

	mu       sync.Mutex
	runToken string
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithClock sets the clock. Default: SystemClock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithWindow sets the debounce window source, read on every request.
// Default: DefaultWindow.
func WithWindow(w func() time.Duration) EngineOption {
	return func(e *Engine) { e.window = w }
}

// WithIntegration enables Step3. enabled is evaluated when Step2 finishes
// and before each integration call.
func WithIntegration(i Integration, enabled func() bool) EngineOption {
	return func(e *Engine) {
		e.integration = i
		e.enabled = enabled
	}
}

// WithTokenGenerator sets the correlation token source. Default: UUIDv7Generator.
func WithTokenGenerator(g TokenGenerator) EngineOption {
	return func(e *Engine) { e.tokens = g }
}

// WithEventHook registers a function called for every Event. It runs
// synchronously on the calling goroutine and must not call back into the
// engine.
func WithEventHook(f func(Event)) EngineOption {
	return func(e *Engine) { e.onEvent = f }
}

// New creates an Engine. reset performs the actual reset (writing the host's
// reset flag); proc performs the rebuild steps.
func New(reset func(Reason), proc Procedure, opts ...EngineOption) *Engine {
	e := &Engine{
		clock:  SystemClock{},
		logger: slog.Default(),
		window: func() time.Duration { return DefaultWindow },
		tokens: UUIDv7Generator{},
		reset:  reset,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.debounce = NewDebouncer(e.ctx, e.clock, e.window, e.RequestNow, e.logger)
	e.seq = NewSequencer(e.clock, proc, e.integration, e.enabled, e.stepStarted, e.logger)
	return e
}

func (e *Engine) emit(ev Event) {
	if e.onEvent == nil {
		return
	}
	ev.At = e.clock.Now()
	e.onEvent(ev)
}

// RequestNow performs a reset immediately. It does nothing after Close.
func (e *Engine) RequestNow(r Reason) {
	if e.ctx.Err() != nil {
		return
	}
	e.logger.Info("resetting audio now", "reason", r)
	e.emit(Event{Kind: EventReset, Token: e.tokens.Generate(), Reason: r})
	e.reset(r)
}

// RequestSoon schedules a debounced reset. See Debouncer.RequestSoon.
func (e *Engine) RequestSoon(r Reason) bool {
	if !e.debounce.RequestSoon(r) {
		return false
	}
	e.emit(Event{Kind: EventResetScheduled, Reason: r})
	return true
}

// ResetPending reports whether a debounced reset is scheduled.
func (e *Engine) ResetPending() bool {
	return e.debounce.Pending()
}

// StartRebuild starts the rebuild sequence. It returns false if one is
// already running or the engine is closed.
func (e *Engine) StartRebuild() bool {
	if e.ctx.Err() != nil {
		return false
	}
	if !e.seq.Start() {
		e.logger.Info("rebuild already running")
		return false
	}
	token := e.tokens.Generate()
	e.mu.Lock()
	e.runToken = token
	e.mu.Unlock()

	e.logger.Info("rebuild started", "token", token)
	e.emit(Event{Kind: EventRebuildStart, Token: token, Reason: ReasonUserRequest})
	return true
}

func (e *Engine) stepStarted(n int) {
	e.mu.Lock()
	token := e.runToken
	e.mu.Unlock()
	e.emit(Event{Kind: EventRebuildStep, Token: token, Step: n})
}

// Tick advances the rebuild sequence. Call it once per host frame.
func (e *Engine) Tick() error {
	if e.ctx.Err() != nil {
		return nil
	}
	return e.seq.Tick()
}

// Sequence returns the rebuild state and due time.
func (e *Engine) Sequence() (Step, time.Time) {
	return e.seq.State()
}

// Close cancels pending work. A debounced reset that has not started will
// not run; a rebuild in progress stops advancing.
func (e *Engine) Close() {
	e.cancel()
	e.debounce.Stop()
}
