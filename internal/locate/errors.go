package locate

import (
	"errors"
	"fmt"
)

// ResolveError reports which startup address could not be established.
type ResolveError struct {
	// Code identifies the failure category.
	Code ResolveErrorCode

	// Target names the address being resolved, e.g. "notification_vtbl".
	Target string

	// Err is the underlying cause.
	Err error
}

// ResolveErrorCode categorizes resolution failures.
type ResolveErrorCode string

const (
	// ErrCodeNotFound indicates a signature did not match.
	ErrCodeNotFound ResolveErrorCode = "PATTERN_NOT_FOUND"

	// ErrCodeAmbiguous indicates a signature matched more than once.
	ErrCodeAmbiguous ResolveErrorCode = "PATTERN_AMBIGUOUS"

	// ErrCodeUnreadable indicates a resolved address is not readable.
	ErrCodeUnreadable ResolveErrorCode = "UNREADABLE"

	// ErrCodeUnwritable indicates the reset flag is not writable.
	ErrCodeUnwritable ResolveErrorCode = "UNWRITABLE"
)

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Target, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a missing-signature failure.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsAmbiguous reports whether err is an ambiguous-signature failure.
func IsAmbiguous(err error) bool {
	return hasCode(err, ErrCodeAmbiguous)
}

func hasCode(err error, code ResolveErrorCode) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
