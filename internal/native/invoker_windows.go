//go:build windows

package native

import (
	"fmt"
	"runtime"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/roach88/resetaudio/internal/memory"
)

// Windows invokes functions with the x64 Windows calling convention.
type Windows struct{}

// Call implements Invoker.
//
// The error value reported by SyscallN is ignored: the audio entry points do
// not set the thread's last-error, so it would carry stale state.
func (Windows) Call(fn memory.Addr, args ...any) (uintptr, error) {
	if fn == 0 {
		return 0, ErrNilFunction
	}
	words, pins, err := marshalArgs(args)
	if err != nil {
		return 0, err
	}
	r, _, _ := syscall.SyscallN(uintptr(fn), words...)
	runtime.KeepAlive(pins)
	return r, nil
}

// SignalEvent implements Invoker.
func (Windows) SignalEvent(handle uintptr) error {
	if err := windows.SetEvent(windows.Handle(handle)); err != nil {
		return fmt.Errorf("SetEvent(0x%X): %w", handle, err)
	}
	return nil
}

// Default returns the invoker for the running platform.
func Default() Invoker {
	return Windows{}
}
