package notify

import (
	"errors"
	"fmt"
)

// ErrElementNotFound is returned by Devices when no default endpoint exists.
var ErrElementNotFound = errors.New("element not found")

// Devices is the host's endpoint enumeration API.
type Devices interface {
	// DefaultRenderDeviceID returns the id of the default console render
	// endpoint, or ErrElementNotFound when there is none.
	DefaultRenderDeviceID() (string, error)

	// FriendlyName returns the display name of an endpoint.
	FriendlyName(deviceID string) (string, error)

	// PropertyKeyName returns the canonical name of a property key.
	PropertyKeyName(key PropertyKey) (string, error)
}

// IsDefaultRenderDevice reports whether deviceID is the default render
// endpoint. A missing default endpoint is not an error.
func IsDefaultRenderDevice(d Devices, deviceID string) (bool, error) {
	id, err := d.DefaultRenderDeviceID()
	if errors.Is(err, ErrElementNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("default render device: %w", err)
	}
	return id == deviceID, nil
}

// FriendlyNameOr returns the display name of deviceID, or Unknown(id) when
// it cannot be read.
func FriendlyNameOr(d Devices, deviceID string) string {
	if d != nil {
		if name, err := d.FriendlyName(deviceID); err == nil && name != "" {
			return name
		}
	}
	return fmt.Sprintf("Unknown(%s)", deviceID)
}

// KeyNameOr returns the canonical name of key, or its string form.
func KeyNameOr(d Devices, key PropertyKey) string {
	if d != nil {
		if name, err := d.PropertyKeyName(key); err == nil && name != "" {
			return name
		}
	}
	return key.String()
}
