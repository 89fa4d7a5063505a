package harness

import (
	"context"
	"fmt"

	"github.com/roach88/resetaudio/internal/locate/locatetest"
	"github.com/roach88/resetaudio/internal/memory"
	"github.com/roach88/resetaudio/internal/notify"
	"github.com/roach88/resetaudio/internal/store"
)

// callNames maps the synthetic image's entry points to trace names.
func callNames() map[memory.Addr]string {
	names := map[memory.Addr]string{
		locatetest.Base + locatetest.OffConstruct:  "Construct",
		locatetest.Base + locatetest.OffInitialize: "Initialize",
		locatetest.Base + locatetest.OffCleanup:    "Cleanup",
		locatetest.Base + locatetest.OffSetStatic:  "SetStaticAddr2",
	}
	for _, slot := range notify.CallbackSlots {
		names[locatetest.Callback(slot)] = notify.SlotName(slot)
	}
	return names
}

type traceInvoker struct{ h *Harness }

func (t traceInvoker) Call(fn memory.Addr, _ ...any) (uintptr, error) {
	name, ok := t.h.names[fn]
	if !ok {
		name = fn.String()
	}
	t.h.record(TraceEvent{Type: EventCall, Name: name})
	return uintptr(notify.S_OK), nil
}

func (t traceInvoker) SignalEvent(handle uintptr) error {
	t.h.record(TraceEvent{Type: EventSignal, Name: fmt.Sprintf("0x%X", handle)})
	return nil
}

type traceExporter struct{ h *Harness }

func (t traceExporter) Export(c notify.Client) (map[int]memory.Addr, error) {
	t.h.client = c
	out := make(map[int]memory.Addr, len(notify.CallbackSlots))
	for _, slot := range notify.CallbackSlots {
		out[slot] = 0x7FF600000000 + memory.Addr(slot)*0x40
	}
	return out, nil
}

type traceChat struct{ h *Harness }

func (t traceChat) Print(msg string) {
	t.h.record(TraceEvent{Type: EventChat, Text: msg})
}

func (t traceChat) PrintError(msg string) {
	t.h.record(TraceEvent{Type: EventChatError, Text: msg})
}

// traceJournal writes to the in-memory journal and mirrors the entry into
// the trace.
type traceJournal struct{ h *Harness }

func (t traceJournal) Append(ctx context.Context, e store.Entry) (int64, error) {
	seq, err := t.h.journal.Append(ctx, e)
	if err != nil {
		return 0, err
	}
	t.h.record(TraceEvent{Type: EventJournal, Kind: e.Kind, Name: e.Name, Detail: e.Detail})
	return seq, nil
}

type traceIntegration struct{ h *Harness }

func (t traceIntegration) PlaySong(id int) error {
	t.h.record(TraceEvent{Type: EventCall, Name: fmt.Sprintf("PlaySong(%d)", id)})
	return nil
}

// devices reports one default render device and no friendly names.
type devices struct {
	defaultID string
}

func (d devices) DefaultRenderDeviceID() (string, error) {
	if d.defaultID == "" {
		return "", notify.ErrElementNotFound
	}
	return d.defaultID, nil
}

func (d devices) FriendlyName(string) (string, error) {
	return "", fmt.Errorf("no friendly name")
}

func (d devices) PropertyKeyName(notify.PropertyKey) (string, error) {
	return "", fmt.Errorf("no key name")
}
