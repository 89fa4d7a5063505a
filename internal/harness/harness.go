package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/resetaudio/internal/config"
	"github.com/roach88/resetaudio/internal/locate"
	"github.com/roach88/resetaudio/internal/locate/locatetest"
	"github.com/roach88/resetaudio/internal/memory"
	"github.com/roach88/resetaudio/internal/notify"
	"github.com/roach88/resetaudio/internal/plugin"
	"github.com/roach88/resetaudio/internal/store"
	"github.com/roach88/resetaudio/internal/testutil"
	"github.com/roach88/resetaudio/internal/vtable"
)

// clientThis is the notification client instance the synthetic host passes.
const clientThis uintptr = 0x1000

// Harness is the scenario execution engine. It owns one plugin instance
// wired to recording fakes.
type Harness struct {
	scenario *Scenario
	clock    *testutil.ManualClock
	journal  *store.Store
	mem      *memory.Buffer
	cfg      *config.Manager
	plugin   *plugin.Plugin
	client   notify.Client
	logger   *slog.Logger

	names     map[memory.Addr]string
	result    *Result
	seq       int64
	nextFrame int64
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh image, configuration and in-memory
// journal. Assertion failures are reported in the Result; setup failures
// are returned as errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer st.Close()

	h := &Harness{
		scenario:  scenario,
		clock:     testutil.NewManualClock(time.Time{}),
		journal:   st,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		names:     callNames(),
		result:    NewResult(),
		nextFrame: scenario.FrameMs,
	}
	if err := h.start(); err != nil {
		return nil, err
	}

	for _, step := range scenario.Steps {
		h.advanceTo(step.AtMs)
		h.apply(step)
	}
	h.advanceTo(scenario.UntilMs)

	ctx := context.Background()
	if err := h.collectState(ctx); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) start() error {
	mem, err := locatetest.Build(nil)
	if err != nil {
		return fmt.Errorf("build image: %w", err)
	}
	h.mem = mem

	h.cfg, err = config.NewManager(&config.MemoryStore{}, config.WithLogger(h.logger))
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	if err := h.cfg.Update(h.scenario.Config.apply); err != nil {
		return fmt.Errorf("apply config overrides: %w", err)
	}

	host := plugin.Host{
		Memory:   mem,
		Module:   locate.Module{Name: "host.exe", Base: locatetest.Base},
		Range:    locatetest.TextRange,
		Invoker:  traceInvoker{h},
		Exporter: traceExporter{h},
		Devices:  devices{defaultID: h.scenario.DefaultDevice},
		Chat:     traceChat{h},
		Config:   h.cfg,
		Journal:  traceJournal{h},
		Clock:    h.clock,
		Tokens:   testutil.NewFixedTokenGenerator(h.scenario.Token),
		Logger:   h.logger,
	}
	if h.scenario.Integration {
		host.Integration = traceIntegration{h}
	}

	h.plugin, err = plugin.New(host)
	if err != nil {
		return fmt.Errorf("start plugin: %w", err)
	}
	return nil
}

func (o ConfigOverrides) apply(c *config.Config) {
	if o.SuppressForward != nil {
		c.SuppressForward = *o.SuppressForward
	}
	if o.PrintToChat != nil {
		c.PrintToChat = *o.PrintToChat
	}
	if o.CoalesceMs != nil {
		c.CoalesceMs = *o.CoalesceMs
	}
	if o.EnableIntegration != nil {
		c.EnableIntegration = *o.EnableIntegration
	}
	if o.Suppress != nil {
		c.IgnorePropertyUpdateKeys = c.IgnorePropertyUpdateKeys[:0]
		for _, k := range o.Suppress {
			c.IgnorePropertyUpdateKeys = append(c.IgnorePropertyUpdateKeys, config.Suppression{Key: k, Enabled: true})
		}
	}
}

// advanceTo moves the clock to ms after the epoch, ticking the plugin on
// every frame boundary passed on the way.
func (h *Harness) advanceTo(ms int64) {
	if f := h.scenario.FrameMs; f > 0 {
		for h.nextFrame <= ms {
			h.clock.AdvanceTo(at(h.nextFrame))
			h.plugin.Tick()
			h.nextFrame += f
		}
	}
	h.clock.AdvanceTo(at(ms))
}

func at(ms int64) time.Time {
	return testutil.Epoch.Add(time.Duration(ms) * time.Millisecond)
}

func (h *Harness) now() int64 {
	return h.clock.Now().Sub(testutil.Epoch).Milliseconds()
}

func (h *Harness) apply(step Step) {
	if step.Command != nil {
		if err := h.plugin.HandleCommand(*step.Command); err != nil {
			h.logger.Info("command failed", "arguments", *step.Command, "error", err)
		}
		return
	}

	c := h.client
	switch step.Notify {
	case NotifyDeviceStateChanged:
		c.OnDeviceStateChanged(clientThis, step.Device, notify.DeviceState(step.State))
	case NotifyDeviceAdded:
		c.OnDeviceAdded(clientThis, step.Device)
	case NotifyDeviceRemoved:
		c.OnDeviceRemoved(clientThis, step.Device)
	case NotifyDefaultDeviceChanged:
		var id *string
		if step.Device != "" {
			id = &step.Device
		}
		c.OnDefaultDeviceChanged(clientThis, notify.Render, notify.Console, id)
	case NotifyPropertyValueChanged:
		c.OnPropertyValueChanged(clientThis, step.Device, step.Key)
	}
}

func (h *Harness) record(e TraceEvent) {
	h.seq++
	e.Seq = h.seq
	e.AtMs = h.now()
	h.result.Trace = append(h.result.Trace, e)
}

// collectState fills Result.State, then closes the plugin and records
// whether the table was restored.
func (h *Harness) collectState(ctx context.Context) error {
	flag := make([]byte, 1)
	if err := h.mem.ReadAt(flag, locatetest.Base+locatetest.OffFlag); err != nil {
		return fmt.Errorf("read reset flag: %w", err)
	}
	entries, err := h.journal.Count(ctx)
	if err != nil {
		return fmt.Errorf("count journal: %w", err)
	}
	step, _ := h.plugin.Engine().Sequence()

	s := h.result.State
	s[StateResetFlag] = int(flag[0])
	s[StateResetPending] = h.plugin.Engine().ResetPending()
	s[StateRebuildStep] = step.String()
	s[StateJournalEntries] = int(entries)
	s[StateObservations] = h.plugin.Observations().Len()
	s[StateConfigVisible] = h.cfg.Snapshot().ConfigVisible

	if err := h.plugin.Close(); err != nil {
		return fmt.Errorf("close plugin: %w", err)
	}
	table, err := vtable.Read(h.mem, locatetest.Base+locatetest.OffVtbl, notify.TableSize)
	if err != nil {
		return fmt.Errorf("read table: %w", err)
	}
	restored := true
	for i, addr := range h.plugin.Handles().OriginalSlots {
		restored = restored && table[i] == addr
	}
	s[StateHooksRestored] = restored
	return nil
}

// Final state names.
const (
	StateResetFlag      = "reset_flag"
	StateResetPending   = "reset_pending"
	StateRebuildStep    = "rebuild_step"
	StateJournalEntries = "journal_entries"
	StateObservations   = "observations"
	StateConfigVisible  = "config_visible"
	StateHooksRestored  = "hooks_restored"
)

func knownState(name string) bool {
	switch name {
	case StateResetFlag, StateResetPending, StateRebuildStep, StateJournalEntries,
		StateObservations, StateConfigVisible, StateHooksRestored:
		return true
	}
	return false
}
