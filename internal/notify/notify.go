// Package notify describes the audio endpoint notification client whose
// dispatch table is intercepted: its slot layout, callback signatures, the
// property key type passed to it, and call-through to the original entries.
package notify

import "fmt"

// Slots of the notification client dispatch table, in table order.
const (
	SlotQueryInterface = iota
	SlotAddRef
	SlotRelease
	SlotOnDeviceStateChanged
	SlotOnDeviceAdded
	SlotOnDeviceRemoved
	SlotOnDefaultDeviceChanged
	SlotOnPropertyValueChanged

	// TableSize is the number of slots in the table.
	TableSize
)

// CallbackSlots are the slots that carry notifications and get intercepted.
var CallbackSlots = []int{
	SlotOnDeviceStateChanged,
	SlotOnDeviceAdded,
	SlotOnDeviceRemoved,
	SlotOnDefaultDeviceChanged,
	SlotOnPropertyValueChanged,
}

// SlotName returns the method name of slot.
func SlotName(slot int) string {
	switch slot {
	case SlotQueryInterface:
		return "QueryInterface"
	case SlotAddRef:
		return "AddRef"
	case SlotRelease:
		return "Release"
	case SlotOnDeviceStateChanged:
		return "OnDeviceStateChanged"
	case SlotOnDeviceAdded:
		return "OnDeviceAdded"
	case SlotOnDeviceRemoved:
		return "OnDeviceRemoved"
	case SlotOnDefaultDeviceChanged:
		return "OnDefaultDeviceChanged"
	case SlotOnPropertyValueChanged:
		return "OnPropertyValueChanged"
	}
	return fmt.Sprintf("Slot(%d)", slot)
}

// HRESULT is a COM status code.
type HRESULT uint32

const (
	S_OK   HRESULT = 0
	E_FAIL HRESULT = 0x80004005

	// E_NOTFOUND is HRESULT_FROM_WIN32(ERROR_NOT_FOUND). The endpoint API
	// returns it when no default device exists.
	E_NOTFOUND HRESULT = 0x80070490
)

// Failed reports whether the code signals failure.
func (h HRESULT) Failed() bool {
	return int32(h) < 0
}

func (h HRESULT) String() string {
	return fmt.Sprintf("0x%08X", uint32(h))
}

// DataFlow is the direction of an audio endpoint.
type DataFlow uint32

const (
	Render DataFlow = iota
	Capture
	AllFlows
)

func (f DataFlow) String() string {
	switch f {
	case Render:
		return "eRender"
	case Capture:
		return "eCapture"
	case AllFlows:
		return "eAll"
	}
	return fmt.Sprintf("EDataFlow(%d)", uint32(f))
}

// Role is the system role assigned to an endpoint.
type Role uint32

const (
	Console Role = iota
	Multimedia
	Communications
)

func (r Role) String() string {
	switch r {
	case Console:
		return "eConsole"
	case Multimedia:
		return "eMultimedia"
	case Communications:
		return "eCommunications"
	}
	return fmt.Sprintf("ERole(%d)", uint32(r))
}

// DeviceState is a bit set of endpoint states.
type DeviceState uint32

const (
	StateActive     DeviceState = 0x1
	StateDisabled   DeviceState = 0x2
	StateNotPresent DeviceState = 0x4
	StateUnplugged  DeviceState = 0x8
)

func (s DeviceState) String() string {
	switch s {
	case StateActive:
		return "Active"
	case StateDisabled:
		return "Disabled"
	case StateNotPresent:
		return "NotPresent"
	case StateUnplugged:
		return "Unplugged"
	}
	return fmt.Sprintf("DeviceState(0x%X)", uint32(s))
}

// Client receives endpoint notifications. Each method returns the status
// handed back to whoever raised the notification.
//
// this is the notification client instance pointer the host passed in; it
// is forwarded unchanged to the original entries.
type Client interface {
	OnDeviceStateChanged(this uintptr, deviceID string, state DeviceState) HRESULT
	OnDeviceAdded(this uintptr, deviceID string) HRESULT
	OnDeviceRemoved(this uintptr, deviceID string) HRESULT
	// OnDefaultDeviceChanged receives a nil deviceID when the role has no
	// default device anymore.
	OnDefaultDeviceChanged(this uintptr, flow DataFlow, role Role, deviceID *string) HRESULT
	OnPropertyValueChanged(this uintptr, deviceID string, key PropertyKey) HRESULT
}
