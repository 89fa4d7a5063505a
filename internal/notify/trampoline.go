package notify

import (
	"log/slog"

	"github.com/roach88/resetaudio/internal/memory"
	"github.com/roach88/resetaudio/internal/native"
)

// Originals yields the pre-interception entry of a slot.
// *vtable.Registry implements it.
type Originals interface {
	Original(slot int) (memory.Addr, error)
}

// Trampolines is a Client that forwards every notification to the original
// table entries. A call that cannot be made is logged and answered with
// S_OK, as if the original had handled it.
type Trampolines struct {
	orig   Originals
	inv    native.Invoker
	logger *slog.Logger
}

// NewTrampolines binds call-throughs to orig.
func NewTrampolines(orig Originals, inv native.Invoker, logger *slog.Logger) *Trampolines {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trampolines{orig: orig, inv: inv, logger: logger}
}

func (t *Trampolines) call(slot int, args ...any) HRESULT {
	fn, err := t.orig.Original(slot)
	if err == nil {
		var r uintptr
		if r, err = t.inv.Call(fn, args...); err == nil {
			return HRESULT(uint32(r))
		}
	}
	t.logger.Error("call original failed", "slot", SlotName(slot), "error", err)
	return S_OK
}

func (t *Trampolines) OnDeviceStateChanged(this uintptr, deviceID string, state DeviceState) HRESULT {
	return t.call(SlotOnDeviceStateChanged, this, deviceID, uint32(state))
}

func (t *Trampolines) OnDeviceAdded(this uintptr, deviceID string) HRESULT {
	return t.call(SlotOnDeviceAdded, this, deviceID)
}

func (t *Trampolines) OnDeviceRemoved(this uintptr, deviceID string) HRESULT {
	return t.call(SlotOnDeviceRemoved, this, deviceID)
}

func (t *Trampolines) OnDefaultDeviceChanged(this uintptr, flow DataFlow, role Role, deviceID *string) HRESULT {
	return t.call(SlotOnDefaultDeviceChanged, this, uint32(flow), uint32(role), deviceID)
}

// OnPropertyValueChanged passes the key by pointer: the x64 convention passes
// structs larger than eight bytes by reference.
func (t *Trampolines) OnPropertyValueChanged(this uintptr, deviceID string, key PropertyKey) HRESULT {
	return t.call(SlotOnPropertyValueChanged, this, deviceID, key)
}
