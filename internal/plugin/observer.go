package plugin

import (
	"fmt"

	"github.com/roach88/resetaudio/internal/engine"
	"github.com/roach88/resetaudio/internal/notify"
	"github.com/roach88/resetaudio/internal/store"
)

// observer is the notify.Client installed in the dispatch table. It records
// what the host is told, schedules resets, and then either swallows the
// notification or passes it on to the original entry.
//
// Callbacks arrive on host threads. A panic in here would take the host
// down with it, so every entry point recovers and then answers as if the
// notification had been handled: forwarded, or swallowed when forwarding
// is suppressed.
type observer struct {
	p    *Plugin
	next notify.Client
}

var _ notify.Client = (*observer)(nil)

func (o *observer) guard(slot int, hr *notify.HRESULT, call func() notify.HRESULT) {
	if r := recover(); r != nil {
		o.p.logger.Error("notification handler panicked", "slot", notify.SlotName(slot), "panic", r)
		*hr = o.forward(call)
	}
}

// forward decides the answer to a notification that has been handled.
func (o *observer) forward(call func() notify.HRESULT) notify.HRESULT {
	if o.p.host.Config.SuppressForward() {
		return notify.S_OK
	}
	return call()
}

func (o *observer) record(slot int, detail map[string]string) {
	o.p.journal(store.Entry{Kind: "notification", Name: notify.SlotName(slot), Detail: detail})
}

func (o *observer) OnDeviceStateChanged(this uintptr, deviceID string, state notify.DeviceState) (hr notify.HRESULT) {
	call := func() notify.HRESULT { return o.next.OnDeviceStateChanged(this, deviceID, state) }
	defer o.guard(notify.SlotOnDeviceStateChanged, &hr, call)
	if o.p.closed.Load() {
		return call()
	}

	name := notify.FriendlyNameOr(o.p.host.Devices, deviceID)
	o.p.logger.Info("device state changed", "device", name, "state", state)
	o.record(notify.SlotOnDeviceStateChanged, map[string]string{"device": name, "state": state.String()})

	return o.forward(call)
}

func (o *observer) OnDeviceAdded(this uintptr, deviceID string) (hr notify.HRESULT) {
	call := func() notify.HRESULT { return o.next.OnDeviceAdded(this, deviceID) }
	defer o.guard(notify.SlotOnDeviceAdded, &hr, call)
	if o.p.closed.Load() {
		return call()
	}

	name := notify.FriendlyNameOr(o.p.host.Devices, deviceID)
	o.p.logger.Info("device added", "device", name)
	o.record(notify.SlotOnDeviceAdded, map[string]string{"device": name})

	return o.forward(call)
}

func (o *observer) OnDeviceRemoved(this uintptr, deviceID string) (hr notify.HRESULT) {
	call := func() notify.HRESULT { return o.next.OnDeviceRemoved(this, deviceID) }
	defer o.guard(notify.SlotOnDeviceRemoved, &hr, call)
	if o.p.closed.Load() {
		return call()
	}

	name := notify.FriendlyNameOr(o.p.host.Devices, deviceID)
	o.p.logger.Info("device removed", "device", name)
	o.record(notify.SlotOnDeviceRemoved, map[string]string{"device": name})

	return o.forward(call)
}

// OnDefaultDeviceChanged schedules a reset unless the role lost its default
// device entirely.
func (o *observer) OnDefaultDeviceChanged(this uintptr, flow notify.DataFlow, role notify.Role, deviceID *string) (hr notify.HRESULT) {
	call := func() notify.HRESULT { return o.next.OnDefaultDeviceChanged(this, flow, role, deviceID) }
	defer o.guard(notify.SlotOnDefaultDeviceChanged, &hr, call)
	if o.p.closed.Load() {
		return call()
	}

	name := "<null>"
	if deviceID != nil {
		name = notify.FriendlyNameOr(o.p.host.Devices, *deviceID)
	}
	o.p.logger.Info("default device changed", "flow", flow, "role", role, "device", name)
	o.record(notify.SlotOnDefaultDeviceChanged, map[string]string{
		"flow":   flow.String(),
		"role":   role.String(),
		"device": name,
	})

	if deviceID != nil {
		o.p.engine.RequestSoon(engine.ReasonDefaultDeviceChange)
	}

	return o.forward(call)
}

// OnPropertyValueChanged counts property changes on the default render
// device and schedules a reset for keys that are not suppressed.
func (o *observer) OnPropertyValueChanged(this uintptr, deviceID string, key notify.PropertyKey) (hr notify.HRESULT) {
	call := func() notify.HRESULT { return o.next.OnPropertyValueChanged(this, deviceID, key) }
	defer o.guard(notify.SlotOnPropertyValueChanged, &hr, call)
	if o.p.closed.Load() {
		return call()
	}

	detail := map[string]string{"key": key.String()}
	isDefault, err := notify.IsDefaultRenderDevice(o.p.host.Devices, deviceID)
	if err != nil {
		o.p.logger.Warn("default render device lookup failed", "error", err)
	}
	if isDefault {
		rec := o.p.state.Record(key, o.p.clock.Now())
		suppressed := o.p.state.IsSuppressed(key)
		detail["count"] = fmt.Sprint(rec.Count)
		detail["suppressed"] = fmt.Sprint(suppressed)

		o.p.logger.Info("default render device property changed",
			"device", notify.FriendlyNameOr(o.p.host.Devices, deviceID),
			"key", notify.KeyNameOr(o.p.host.Devices, key),
			"count", rec.Count,
			"suppressed", suppressed,
		)
		if !suppressed {
			o.p.engine.RequestSoon(engine.ReasonDefaultDevicePropertyChange)
		}
	}
	o.record(notify.SlotOnPropertyValueChanged, detail)

	return o.forward(call)
}
