package vtable

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/resetaudio/internal/memory"
)

// Patcher is the Interceptor for tables in a memory.Memory address space.
//
// Thread-safety: Install and Restore on the same table are serialised by a
// lock scoped to that table. Different tables do not contend.
type Patcher struct {
	mem    Memory
	logger *slog.Logger

	mu    sync.Mutex
	locks map[memory.Addr]*sync.Mutex
}

// PatcherOption configures a Patcher.
type PatcherOption func(*Patcher)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) PatcherOption {
	return func(p *Patcher) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPatcher creates a Patcher over mem.
func NewPatcher(mem Memory, opts ...PatcherOption) *Patcher {
	p := &Patcher{
		mem:    mem,
		logger: slog.Default(),
		locks:  make(map[memory.Addr]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Patcher) tableLock(table memory.Addr) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[table]
	if !ok {
		l = &sync.Mutex{}
		p.locks[table] = l
	}
	return l
}

// Install implements Interceptor.
func (p *Patcher) Install(table memory.Addr, slots int, replacements map[int]memory.Addr) (*Snapshot, error) {
	if slots <= 0 {
		return nil, ErrNoSlots
	}
	order := make([]int, 0, len(replacements))
	for slot := range replacements {
		if slot < 0 || slot >= slots {
			return nil, fmt.Errorf("replacement for slot %d of %d: %w", slot, slots, ErrSlotRange)
		}
		order = append(order, slot)
	}
	slices.Sort(order)

	lock := p.tableLock(table)
	lock.Lock()
	defer lock.Unlock()

	var snap *Snapshot
	written := false
	size := uint64(slots) * memory.PointerSize
	err := p.withWritable(table, size, func() error {
		orig, err := Read(p.mem, table, slots)
		if err != nil {
			return err
		}
		snap = &Snapshot{Table: table, Slots: orig}

		for _, slot := range order {
			if err := memory.WritePointer(p.mem, SlotAddr(table, slot), replacements[slot]); err != nil {
				err = fmt.Errorf("write slot %d of table %s: %w", slot, table, err)
				if rbErr := p.writeAll(snap); rbErr != nil {
					return errors.Join(err, fmt.Errorf("roll back: %w", rbErr))
				}
				return err
			}
		}
		written = true
		return nil
	})
	if err != nil {
		// Writes succeeded but the old protection could not be put back.
		// The page is still writable, so undo the writes rather than leave
		// the table pointing at code of an interception that never started.
		if written {
			if rbErr := p.writeAll(snap); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("roll back: %w", rbErr))
			}
		}
		return nil, err
	}

	p.logger.Debug("dispatch table patched", "table", table, "slots", slots, "replaced", order)
	return snap, nil
}

// Restore implements Interceptor.
func (p *Patcher) Restore(s *Snapshot) error {
	if s == nil {
		return ErrNoSnapshot
	}
	if len(s.Slots) == 0 {
		return ErrNoSlots
	}

	lock := p.tableLock(s.Table)
	lock.Lock()
	defer lock.Unlock()

	if err := p.withWritable(s.Table, s.Size(), func() error {
		return p.writeAll(s)
	}); err != nil {
		return err
	}

	p.logger.Debug("dispatch table restored", "table", s.Table, "slots", len(s.Slots))
	return nil
}

// writeAll writes every snapshot slot, continuing past failures so that as
// much of the table as possible is original again.
func (p *Patcher) writeAll(s *Snapshot) error {
	var errs []error
	for i, v := range s.Slots {
		if err := memory.WritePointer(p.mem, SlotAddr(s.Table, i), v); err != nil {
			errs = append(errs, fmt.Errorf("slot %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// withWritable runs fn while [addr, addr+size) is writable and always puts
// the previous protection back afterwards. If protection cannot be changed
// fn does not run.
func (p *Patcher) withWritable(addr memory.Addr, size uint64, fn func() error) (err error) {
	prev, err := p.mem.Protect(addr, size, memory.ProtReadWrite)
	if err != nil {
		return fmt.Errorf("make table %s writable: %w", addr, err)
	}
	defer func() {
		if _, perr := p.mem.Protect(addr, size, prev); perr != nil {
			err = errors.Join(err, fmt.Errorf("restore protection %s of table %s: %w", prev, addr, perr))
		}
	}()
	return fn()
}
