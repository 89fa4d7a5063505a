// Package plugin is the composition root: it locates the host's audio
// internals, intercepts the device notification table, and wires the
// observers, the reset engine, the chat command and the journal together.
//
// Lifecycle:
//
//	p, err := plugin.New(host)   // locate + intercept; nothing is left behind on error
//	p.HandleCommand("harder")    // from the host's command dispatcher
//	p.Tick()                     // once per host frame
//	p.Close()                    // restores the table and saves configuration
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/resetaudio/internal/command"
	"github.com/roach88/resetaudio/internal/config"
	"github.com/roach88/resetaudio/internal/engine"
	"github.com/roach88/resetaudio/internal/locate"
	"github.com/roach88/resetaudio/internal/memory"
	"github.com/roach88/resetaudio/internal/native"
	"github.com/roach88/resetaudio/internal/notify"
	"github.com/roach88/resetaudio/internal/observe"
	"github.com/roach88/resetaudio/internal/sigscan"
	"github.com/roach88/resetaudio/internal/store"
	"github.com/roach88/resetaudio/internal/vtable"
)

// DisplayName prefixes chat notices.
const DisplayName = "Reset Audio"

// ReloadWarning is printed when a complete reload starts.
const ReloadWarning = "[" + DisplayName + "] Completely reloading audio.\n" +
	"* Your sound settings from System Settings will not take effect until you change respective options again.\n" +
	"* Your background music may stop playing until it changes.\n" +
	"* Part of game audio may stop working until restart.\n" +
	"* Restarting the game is still recommended."

// Journal records plugin activity. *store.Store implements it.
type Journal interface {
	Append(ctx context.Context, e store.Entry) (int64, error)
}

// Host is everything the plugin needs from its runtime.
type Host struct {
	// Memory is the host process address space.
	Memory memory.Memory

	// Module names the main executable for diagnostics. When Range is
	// empty the scan range is derived from the module's PE headers.
	Module locate.Module
	Range  sigscan.Range

	Invoker  native.Invoker
	Exporter notify.Exporter
	Devices  notify.Devices
	Chat     command.Chat
	Config   *config.Manager

	// Optional.
	Integration engine.Integration
	Journal     Journal
	Clock       engine.Clock
	Tokens      engine.TokenGenerator
	Logger      *slog.Logger
}

// ErrMissingHost is returned by New when a required Host field is nil.
var ErrMissingHost = errors.New("missing host capability")

func (h *Host) validate() error {
	var missing []error
	check := func(ok bool, name string) {
		if !ok {
			missing = append(missing, fmt.Errorf("%s: %w", name, ErrMissingHost))
		}
	}
	check(h.Memory != nil, "Memory")
	check(h.Invoker != nil, "Invoker")
	check(h.Exporter != nil, "Exporter")
	check(h.Devices != nil, "Devices")
	check(h.Chat != nil, "Chat")
	check(h.Config != nil, "Config")
	return errors.Join(missing...)
}

// Plugin is a live interception.
type Plugin struct {
	host    Host
	logger  *slog.Logger
	clock   engine.Clock
	handles *locate.Handles

	state    *observe.State
	engine   *engine.Engine
	registry *vtable.Registry
	command  *command.Command

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New locates the audio internals and installs the notification hooks.
// On any error nothing has been written to host memory.
func New(h Host) (*Plugin, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	if h.Clock == nil {
		h.Clock = engine.SystemClock{}
	}

	p := &Plugin{host: h, logger: h.Logger, clock: h.Clock}

	rng := h.Range
	if rng.Size == 0 {
		var err error
		if rng, err = sigscan.TextRange(h.Memory, h.Module.Base); err != nil {
			return nil, fmt.Errorf("derive scan range: %w", err)
		}
	}

	cfg := h.Config.Snapshot()
	handles, err := locate.Locate(h.Memory, rng, cfg.Profile(),
		locate.WithLogger(p.logger),
		locate.WithModule(h.Module),
	)
	if err != nil {
		return nil, fmt.Errorf("locate audio internals: %w", err)
	}
	p.handles = handles

	p.state = observe.New(h.Config)

	opts := []engine.EngineOption{
		engine.WithClock(h.Clock),
		engine.WithLogger(p.logger),
		engine.WithWindow(h.Config.Window),
		engine.WithEventHook(p.onEngineEvent),
	}
	if h.Integration != nil {
		opts = append(opts, engine.WithIntegration(h.Integration, h.Config.IntegrationEnabled))
	}
	if h.Tokens != nil {
		opts = append(opts, engine.WithTokenGenerator(h.Tokens))
	}
	proc := &procedure{mem: h.Memory, inv: h.Invoker, handles: handles}
	p.engine = engine.New(p.writeResetFlag, proc, opts...)

	orig := &originals{fallback: handles.OriginalSlots}
	obs := &observer{p: p, next: notify.NewTrampolines(orig, h.Invoker, p.logger)}

	replacements, err := h.Exporter.Export(obs)
	if err != nil {
		p.engine.Close()
		return nil, fmt.Errorf("export callbacks: %w", err)
	}

	patcher := vtable.NewPatcher(h.Memory, vtable.WithLogger(p.logger))
	reg, err := vtable.Attach(patcher, handles.NotificationVtbl, notify.TableSize, replacements)
	if err != nil {
		p.engine.Close()
		return nil, fmt.Errorf("intercept notification table: %w", err)
	}
	orig.set(reg)
	p.registry = reg

	p.command = command.New(p, h.Chat)

	p.logger.Info("audio notification hooks installed",
		"table", h.Module.FormatRVA(handles.NotificationVtbl),
		"reset_flag", h.Module.FormatRVA(handles.ResetFlag),
	)
	return p, nil
}

// Handles returns the resolved addresses.
func (p *Plugin) Handles() locate.Handles {
	return *p.handles
}

// Observations returns the property observation table.
func (p *Plugin) Observations() *observe.State {
	return p.state
}

// Engine returns the reset engine.
func (p *Plugin) Engine() *engine.Engine {
	return p.engine
}

// HandleCommand runs one /resetaudio invocation.
func (p *Plugin) HandleCommand(arguments string) error {
	return p.command.Run(arguments)
}

// Tick advances a running reload. Call once per host frame. Step failures
// are logged and journaled, never returned.
func (p *Plugin) Tick() {
	if err := p.engine.Tick(); err != nil {
		p.journal(store.Entry{Kind: "rebuild_error", Name: err.Error()})
	}
}

// OpenConfig implements command.Handler.
func (p *Plugin) OpenConfig() error {
	return p.host.Config.Update(func(c *config.Config) { c.ConfigVisible = true })
}

// ResetNow implements command.Handler.
func (p *Plugin) ResetNow() error {
	p.engine.RequestNow(engine.ReasonUserRequest)
	return nil
}

// ReloadAudio implements command.Handler. A reload already in progress is
// left alone.
func (p *Plugin) ReloadAudio() error {
	if p.engine.StartRebuild() {
		p.host.Chat.Print(ReloadWarning)
	}
	return nil
}

// writeResetFlag asks the host to rebuild its audio device on its next
// poll. The flag is only ever set; the host clears it.
func (p *Plugin) writeResetFlag(r engine.Reason) {
	if p.host.Config.PrintToChat() {
		p.host.Chat.Print(fmt.Sprintf("[%s] Resetting audio. (Reason: %s)", DisplayName, r))
	}
	if err := p.host.Memory.WriteAt([]byte{1}, p.handles.ResetFlag); err != nil {
		p.logger.Error("write reset flag failed", "addr", p.host.Module.FormatRVA(p.handles.ResetFlag), "error", err)
	}
}

func (p *Plugin) onEngineEvent(ev engine.Event) {
	e := store.Entry{Token: ev.Token, Kind: string(ev.Kind), Name: ev.Reason.String(), At: ev.At}
	if ev.Kind == engine.EventRebuildStep {
		e.Name = fmt.Sprintf("step %d", ev.Step)
		if p.host.Config.PrintToChat() {
			p.host.Chat.Print(fmt.Sprintf("[%s] Completely reloading audio. (Step %d)", DisplayName, ev.Step))
		}
	}
	p.journal(e)
}

func (p *Plugin) journal(e store.Entry) {
	if p.host.Journal == nil {
		return
	}
	if e.At.IsZero() {
		e.At = p.clock.Now()
	}
	if _, err := p.host.Journal.Append(context.Background(), e); err != nil {
		p.logger.Warn("journal append failed", "kind", e.Kind, "error", err)
	}
}

// Close cancels pending work, restores the notification table and saves the
// configuration. It is safe to call more than once.
func (p *Plugin) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.engine.Close()

		var errs []error
		if err := p.registry.Detach(); err != nil {
			errs = append(errs, fmt.Errorf("restore notification table: %w", err))
		}
		if err := p.host.Config.Save(); err != nil {
			errs = append(errs, fmt.Errorf("save config: %w", err))
		}
		p.closeErr = errors.Join(errs...)
		if p.closeErr == nil {
			p.logger.Info("audio notification hooks removed")
		}
	})
	return p.closeErr
}

// originals serves trampolines the table entries as snapshotted at install.
// Until Attach returns, the entries read by Locate stand in; they are the
// same values.
type originals struct {
	reg      atomic.Pointer[vtable.Registry]
	fallback []memory.Addr
}

func (o *originals) set(r *vtable.Registry) {
	o.reg.Store(r)
}

func (o *originals) Original(slot int) (memory.Addr, error) {
	if r := o.reg.Load(); r != nil {
		return r.Original(slot)
	}
	if slot < 0 || slot >= len(o.fallback) {
		return 0, fmt.Errorf("slot %d: %w", slot, vtable.ErrSlotRange)
	}
	return o.fallback[slot], nil
}
