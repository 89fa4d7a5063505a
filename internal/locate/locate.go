// Package locate establishes every host address the plugin needs, once, at
// startup: the notification dispatch table, the reset flag, the render
// thread exit event and the main audio class entry points.
//
// Resolution is all or nothing. Any missing signature, ambiguous match or
// unreadable result fails Locate, and nothing is written to host memory.
package locate

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/resetaudio/internal/memory"
	"github.com/roach88/resetaudio/internal/notify"
	"github.com/roach88/resetaudio/internal/sigscan"
	"github.com/roach88/resetaudio/internal/vtable"
)

// Memory is what Locate reads from.
type Memory interface {
	memory.Reader
	memory.Querier
}

// Handles are the resolved addresses. They are plain values; nothing in
// Handles owns host memory.
type Handles struct {
	// NotificationVtbl is the notification client dispatch table.
	NotificationVtbl memory.Addr

	// OriginalSlots are the table entries as found, before any interception.
	OriginalSlots []memory.Addr

	// ResetFlag is the byte the host polls to rebuild its audio device.
	ResetFlag memory.Addr

	// ExitEventPtr holds the handle of the render thread exit event.
	ExitEventPtr memory.Addr

	// MainAudioClassPtr points at the pointer to the main audio instance.
	MainAudioClassPtr memory.Addr

	Construct      memory.Addr
	Initialize     memory.Addr
	Cleanup        memory.Addr
	SetStaticAddr2 memory.Addr
}

// Module names an image for address formatting.
type Module struct {
	Name string
	Base memory.Addr
}

// FormatRVA renders addr relative to m, e.g. [game.exe+0x1A2B]. Addresses
// below the base are printed absolute.
func (m Module) FormatRVA(addr memory.Addr) string {
	if m.Name == "" || addr < m.Base {
		return fmt.Sprintf("[%s]", addr)
	}
	return fmt.Sprintf("[%s+0x%X]", m.Name, uint64(addr-m.Base))
}

type options struct {
	logger      *slog.Logger
	module      Module
	firstMatch  bool
	scannerOpts []sigscan.ScannerOption
}

// Option configures Locate.
type Option func(*options)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithModule sets the module used to format addresses in log output.
func WithModule(m Module) Option {
	return func(o *options) { o.module = m }
}

// WithFirstMatch accepts the first match of a signature without checking
// that it is unique.
func WithFirstMatch() Option {
	return func(o *options) { o.firstMatch = true }
}

// WithScannerOptions passes options to the underlying scanner.
func WithScannerOptions(opts ...sigscan.ScannerOption) Option {
	return func(o *options) { o.scannerOpts = append(o.scannerOpts, opts...) }
}

type locator struct {
	mem  Memory
	scan *sigscan.Scanner
	opts options
}

// Locate resolves every handle described by profile inside rng.
func Locate(mem Memory, rng sigscan.Range, profile Profile, opts ...Option) (*Handles, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	l := &locator{mem: mem, scan: sigscan.NewScanner(mem, rng, o.scannerOpts...), opts: o}

	var h Handles
	var err error

	if h.NotificationVtbl, err = l.resolve("notification_vtbl", profile.NotificationVtbl, notify.TableSize*memory.PointerSize); err != nil {
		return nil, err
	}
	if h.ExitEventPtr, err = l.resolve("exit_event", profile.RenderThreadBody, memory.PointerSize); err != nil {
		return nil, err
	}
	if h.Construct, err = l.resolve("construct", profile.Construct, 1); err != nil {
		return nil, err
	}
	if h.Initialize, err = l.resolve("initialize", profile.Initialize, 1); err != nil {
		return nil, err
	}
	if h.Cleanup, err = l.resolve("cleanup", profile.Cleanup, 1); err != nil {
		return nil, err
	}
	if h.SetStaticAddr2, err = l.resolve("set_static_addr2", profile.SetStaticAddr2, 1); err != nil {
		return nil, err
	}

	h.MainAudioClassPtr, err = sigscan.ResolveRelative(mem, h.SetStaticAddr2, MainAudioClassImmediate, MainAudioClassDisplacement)
	if err != nil {
		return nil, &ResolveError{Code: ErrCodeUnreadable, Target: "main_audio_class", Err: err}
	}
	if err := l.readable("main_audio_class", h.MainAudioClassPtr, memory.PointerSize); err != nil {
		return nil, err
	}

	if h.OriginalSlots, err = vtable.Read(mem, h.NotificationVtbl, notify.TableSize); err != nil {
		return nil, &ResolveError{Code: ErrCodeUnreadable, Target: "notification_vtbl", Err: err}
	}
	for _, slot := range notify.CallbackSlots {
		if err := l.readable(notify.SlotName(slot), h.OriginalSlots[slot], 1); err != nil {
			return nil, err
		}
	}

	onDefault := h.OriginalSlots[notify.SlotOnDefaultDeviceChanged]
	h.ResetFlag, err = sigscan.ResolveRelative(mem, onDefault, ResetFlagImmediate, ResetFlagDisplacement)
	if err != nil {
		return nil, &ResolveError{Code: ErrCodeUnreadable, Target: "reset_flag", Err: err}
	}
	if err := memory.CheckWritable(mem, h.ResetFlag, 1); err != nil {
		return nil, &ResolveError{Code: ErrCodeUnwritable, Target: "reset_flag", Err: err}
	}

	l.log("reset_flag", h.ResetFlag)
	return &h, nil
}

// resolve finds sig and validates that size bytes at the result are readable.
func (l *locator) resolve(target string, sig Signature, size uint64) (memory.Addr, error) {
	var match memory.Addr
	var err error
	if l.opts.firstMatch {
		match, err = l.scan.Find(sig.Pattern)
	} else {
		match, err = l.scan.FindUnique(sig.Pattern)
	}
	switch {
	case errors.Is(err, sigscan.ErrNotFound):
		return 0, &ResolveError{Code: ErrCodeNotFound, Target: target, Err: err}
	case errors.Is(err, sigscan.ErrAmbiguous):
		return 0, &ResolveError{Code: ErrCodeAmbiguous, Target: target, Err: err}
	case err != nil:
		return 0, &ResolveError{Code: ErrCodeUnreadable, Target: target, Err: err}
	}

	addr := match
	if sig.Relative {
		addr, err = sigscan.ResolveRelative(l.mem, match, sig.Immediate, sig.Displacement)
		if err != nil {
			return 0, &ResolveError{Code: ErrCodeUnreadable, Target: target, Err: err}
		}
	}
	if err := l.readable(target, addr, size); err != nil {
		return 0, err
	}
	l.log(target, addr)
	return addr, nil
}

func (l *locator) readable(target string, addr memory.Addr, size uint64) error {
	if err := memory.CheckReadable(l.mem, addr, size); err != nil {
		return &ResolveError{Code: ErrCodeUnreadable, Target: target, Err: err}
	}
	return nil
}

func (l *locator) log(target string, addr memory.Addr) {
	l.opts.logger.Debug("resolved", "target", target, "addr", l.opts.module.FormatRVA(addr))
}
