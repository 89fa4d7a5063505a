//go:build windows

package notify

import (
	"sync"

	"golang.org/x/sys/windows"

	"github.com/roach88/resetaudio/internal/memory"
)

var (
	exportOnce  sync.Once
	exportTable map[int]memory.Addr
	exportState dispatcher
)

// NativeExporter creates stdcall-compatible callbacks with windows.NewCallback.
type NativeExporter struct{}

// Export implements Exporter. Every call returns the same pointers; the
// latest client receives the notifications.
func (NativeExporter) Export(c Client) (map[int]memory.Addr, error) {
	exportOnce.Do(func() {
		exportTable = map[int]memory.Addr{
			SlotOnDeviceStateChanged:   memory.Addr(windows.NewCallback(exportState.deviceStateChanged)),
			SlotOnDeviceAdded:          memory.Addr(windows.NewCallback(exportState.deviceAdded)),
			SlotOnDeviceRemoved:        memory.Addr(windows.NewCallback(exportState.deviceRemoved)),
			SlotOnDefaultDeviceChanged: memory.Addr(windows.NewCallback(exportState.defaultDeviceChanged)),
			SlotOnPropertyValueChanged: memory.Addr(windows.NewCallback(exportState.propertyValueChanged)),
		}
	})
	exportState.set(c)

	out := make(map[int]memory.Addr, len(exportTable))
	for slot, fn := range exportTable {
		out[slot] = fn
	}
	return out, nil
}

// DefaultExporter returns the exporter for the running platform.
func DefaultExporter() Exporter {
	return NativeExporter{}
}
