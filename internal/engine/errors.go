package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by an Integration that cannot take calls yet.
	// The sequencer swallows it.
	ErrNotReady = errors.New("integration not ready")

	// ErrClosed is returned by operations after Close.
	ErrClosed = errors.New("engine closed")
)

// StepError records one failed call of a rebuild step.
//
// Step errors never stop the sequence. Tick returns them joined so the
// caller can log or journal them.
type StepError struct {
	// Step is the state that was running.
	Step Step

	// Call names the native or integration call that failed.
	Call string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Call, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsStepError returns true if err contains a StepError.
// Uses errors.As to handle wrapped and joined errors.
func IsStepError(err error) bool {
	var se *StepError
	return errors.As(err, &se)
}
