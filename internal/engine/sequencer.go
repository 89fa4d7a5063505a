package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Step is the state of the rebuild sequence.
type Step int

const (
	Idle Step = iota
	Step1
	Step2
	Step3
)

func (s Step) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Step1:
		return "Step1"
	case Step2:
		return "Step2"
	case Step3:
		return "Step3"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Delays between rebuild steps.
const (
	CleanupDelay     = 300 * time.Millisecond
	IntegrationDelay = 100 * time.Millisecond
)

// Procedure is the host's audio teardown and reconstruction.
type Procedure interface {
	// SignalExit tells the render thread to leave its loop.
	SignalExit() error
	Cleanup() error
	Construct() error
	Initialize() error
	SetStaticAddr2() error
}

// Integration is an optional music player that is nudged after a rebuild so
// background music starts again. PlaySong may return ErrNotReady.
type Integration interface {
	PlaySong(id int) error
}

// Sequencer is the rebuild state machine.
//
// INVARIANTS:
//   - due is meaningful iff step != Idle.
//   - Start while not Idle changes nothing.
//   - Step3 is only entered when the integration is enabled at Step2.
type Sequencer struct {
	clock       Clock
	proc        Procedure
	integration Integration
	enabled     func() bool
	onStep      func(n int)
	logger      *slog.Logger

	mu     sync.Mutex
	step   Step
	due    time.Time
	played bool // Step3 has made its first call
	runs   int  // 1-based number of the step about to run, for notices
}

// NewSequencer creates an idle sequencer. integration and enabled may be nil.
// onStep, if set, is called with 1..4 before each step runs.
func NewSequencer(clock Clock, proc Procedure, integration Integration, enabled func() bool, onStep func(n int), logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	if enabled == nil {
		enabled = func() bool { return false }
	}
	return &Sequencer{
		clock:       clock,
		proc:        proc,
		integration: integration,
		enabled:     enabled,
		onStep:      onStep,
		logger:      logger,
	}
}

// Start arms Step1 for the next Tick. It returns false, leaving state and due
// time untouched, if a sequence is already running.
func (s *Sequencer) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != Idle {
		return false
	}
	s.step = Step1
	s.due = s.clock.Now()
	s.played = false
	s.runs = 0
	return true
}

// State returns the current step and, when not Idle, when it is due.
func (s *Sequencer) State() (Step, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step == Idle {
		return Idle, time.Time{}
	}
	return s.step, s.due
}

// Tick runs the current step if it is due. Call failures are returned joined
// as *StepError values; they never stop the sequence.
func (s *Sequencer) Tick() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step == Idle {
		return nil
	}
	now := s.clock.Now()
	if now.Before(s.due) {
		return nil
	}

	s.runs++
	if s.onStep != nil {
		s.onStep(s.runs)
	}

	var errs []error
	call := func(name string, fn func() error) {
		if err := s.invoke(fn); err != nil {
			s.logger.Error("rebuild call failed", "step", s.step, "call", name, "error", err)
			errs = append(errs, &StepError{Step: s.step, Call: name, Err: err})
			return
		}
		s.logger.Info("rebuild call", "step", s.step, "call", name)
	}

	switch s.step {
	case Step1:
		call("SignalExit", s.proc.SignalExit)
		call("Cleanup", s.proc.Cleanup)
		s.step, s.due = Step2, now.Add(CleanupDelay)

	case Step2:
		call("Construct", s.proc.Construct)
		call("Initialize", s.proc.Initialize)
		call("SetStaticAddr2", s.proc.SetStaticAddr2)
		if s.integration != nil && s.enabled() {
			s.step, s.due = Step3, now.Add(IntegrationDelay)
		} else {
			s.step, s.due = Idle, time.Time{}
		}

	case Step3:
		if !s.played {
			call("PlaySong(1)", s.playSong(1))
			s.played = true
			s.due = now.Add(IntegrationDelay)
		} else {
			call("PlaySong(0)", s.playSong(0))
			s.step, s.due = Idle, time.Time{}
			s.played = false
		}
	}
	return errors.Join(errs...)
}

func (s *Sequencer) playSong(id int) func() error {
	return func() error {
		if !s.enabled() {
			return nil
		}
		err := s.integration.PlaySong(id)
		if errors.Is(err, ErrNotReady) {
			s.logger.Debug("integration not ready", "song", id)
			return nil
		}
		return err
	}
}

// invoke runs fn, turning a panic into an error so one broken call cannot
// wedge the state machine.
func (s *Sequencer) invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
