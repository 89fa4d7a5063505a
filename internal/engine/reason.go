package engine

import (
	"fmt"
	"time"
)

// Reason says why a reset was requested.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonUserRequest
	ReasonDefaultDeviceChange
	ReasonDefaultDevicePropertyChange
)

func (r Reason) String() string {
	switch r {
	case ReasonUnknown:
		return "Unknown"
	case ReasonUserRequest:
		return "UserRequest"
	case ReasonDefaultDeviceChange:
		return "DefaultDeviceChange"
	case ReasonDefaultDevicePropertyChange:
		return "DefaultDevicePropertyChange"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Debounce window bounds.
const (
	DefaultWindow = 100 * time.Millisecond
	MinWindow     = 50 * time.Millisecond
	MaxWindow     = 1000 * time.Millisecond
)

// ClampWindow limits d to [MinWindow, MaxWindow].
func ClampWindow(d time.Duration) time.Duration {
	return min(max(d, MinWindow), MaxWindow)
}
