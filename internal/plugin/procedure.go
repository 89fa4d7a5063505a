package plugin

import (
	"fmt"

	"github.com/roach88/resetaudio/internal/locate"
	"github.com/roach88/resetaudio/internal/memory"
	"github.com/roach88/resetaudio/internal/native"
)

// procedure drives the host's main audio class through teardown and
// reconstruction. The instance pointer is re-read on every call since the
// host may move it between steps.
type procedure struct {
	mem     memory.Reader
	inv     native.Invoker
	handles *locate.Handles
}

func (p *procedure) instance() (memory.Addr, error) {
	holder, err := memory.ReadPointer(p.mem, p.handles.MainAudioClassPtr)
	if err != nil {
		return 0, fmt.Errorf("read main audio class holder: %w", err)
	}
	inst, err := memory.ReadPointer(p.mem, holder)
	if err != nil {
		return 0, fmt.Errorf("read main audio class instance: %w", err)
	}
	return inst, nil
}

func (p *procedure) call(name string, fn memory.Addr, args ...any) error {
	inst, err := p.instance()
	if err != nil {
		return err
	}
	if _, err := p.inv.Call(fn, append([]any{uintptr(inst)}, args...)...); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (p *procedure) SignalExit() error {
	h, err := memory.ReadPointer(p.mem, p.handles.ExitEventPtr)
	if err != nil {
		return fmt.Errorf("read exit event handle: %w", err)
	}
	return p.inv.SignalEvent(uintptr(h))
}

func (p *procedure) Cleanup() error {
	return p.call("Cleanup", p.handles.Cleanup)
}

func (p *procedure) Construct() error {
	return p.call("Construct", p.handles.Construct, true, false)
}

func (p *procedure) Initialize() error {
	return p.call("Initialize", p.handles.Initialize, false, uintptr(0))
}

func (p *procedure) SetStaticAddr2() error {
	return p.call("SetStaticAddr2", p.handles.SetStaticAddr2)
}
