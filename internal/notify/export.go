package notify

import (
	"sync/atomic"
	"unsafe"

	"github.com/roach88/resetaudio/internal/memory"
	"github.com/roach88/resetaudio/internal/native"
)

// Exporter turns a Client into native function pointers, one per callback
// slot, suitable as dispatch table replacements.
type Exporter interface {
	Export(c Client) (map[int]memory.Addr, error)
}

// dispatcher decodes raw callback arguments and forwards them to the current
// client. Native callbacks cannot be freed, so they are created once per
// process and the client behind them is swapped instead.
type dispatcher struct {
	client atomic.Pointer[Client]
}

func (d *dispatcher) set(c Client) {
	d.client.Store(&c)
}

func (d *dispatcher) current() Client {
	if p := d.client.Load(); p != nil {
		return *p
	}
	return nil
}

func wide(p uintptr) string {
	s, _ := native.WideStringAt(p)
	return s
}

func (d *dispatcher) deviceStateChanged(this, id, state uintptr) uintptr {
	c := d.current()
	if c == nil {
		return uintptr(E_FAIL)
	}
	return uintptr(c.OnDeviceStateChanged(this, wide(id), DeviceState(uint32(state))))
}

func (d *dispatcher) deviceAdded(this, id uintptr) uintptr {
	c := d.current()
	if c == nil {
		return uintptr(E_FAIL)
	}
	return uintptr(c.OnDeviceAdded(this, wide(id)))
}

func (d *dispatcher) deviceRemoved(this, id uintptr) uintptr {
	c := d.current()
	if c == nil {
		return uintptr(E_FAIL)
	}
	return uintptr(c.OnDeviceRemoved(this, wide(id)))
}

func (d *dispatcher) defaultDeviceChanged(this, flow, role, id uintptr) uintptr {
	c := d.current()
	if c == nil {
		return uintptr(E_FAIL)
	}
	var deviceID *string
	if s, ok := native.WideStringAt(id); ok {
		deviceID = &s
	}
	return uintptr(c.OnDefaultDeviceChanged(this, DataFlow(uint32(flow)), Role(uint32(role)), deviceID))
}

func (d *dispatcher) propertyValueChanged(this, id, key uintptr) uintptr {
	c := d.current()
	if c == nil {
		return uintptr(E_FAIL)
	}
	var k PropertyKey
	if key != 0 {
		k, _ = PropertyKeyFromNative(unsafe.Slice((*byte)(unsafe.Pointer(key)), PropertyKeySize))
	}
	return uintptr(c.OnPropertyValueChanged(this, wide(id), k))
}
