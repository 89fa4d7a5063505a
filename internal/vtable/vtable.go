// Package vtable redirects entries of a foreign virtual dispatch table.
//
// A dispatch table is a run of pointer-sized slots owned by the host process.
// Install swaps selected slots for replacement functions and returns a
// Snapshot of every slot as it was before; Restore writes the snapshot back.
// Both run as one critical section per table: protection is flipped to
// writable, the slots are read or written, and the previous protection is
// put back even when a step in between fails.
//
// INVARIANTS:
//   - A slot is only ever written while its page is writable.
//   - Slots not named in the replacement set are never written by Install.
//   - After a failed Install every slot holds its snapshot value again.
package vtable

import (
	"errors"
	"fmt"

	"github.com/roach88/resetaudio/internal/memory"
)

var (
	// ErrNoSlots is returned for a table size of zero or less.
	ErrNoSlots = errors.New("dispatch table has no slots")

	// ErrSlotRange is returned for a slot index outside the table.
	ErrSlotRange = errors.New("slot index out of range")

	// ErrNoSnapshot is returned when Restore is given a nil snapshot.
	ErrNoSnapshot = errors.New("no snapshot")
)

// Memory is the subset of the address space a Patcher needs.
type Memory interface {
	memory.Reader
	memory.Writer
	memory.Protector
}

// Interceptor installs and removes slot replacements.
type Interceptor interface {
	// Install replaces the given slots of the table at table, which has
	// slots entries, and returns the values of all slots before the change.
	Install(table memory.Addr, slots int, replacements map[int]memory.Addr) (*Snapshot, error)

	// Restore writes every slot of the snapshot back. Calling it again with
	// the same snapshot is harmless.
	Restore(s *Snapshot) error
}

// Snapshot is the complete original content of a dispatch table.
type Snapshot struct {
	Table memory.Addr
	Slots []memory.Addr
}

// Size returns the table size in bytes.
func (s *Snapshot) Size() uint64 {
	return uint64(len(s.Slots)) * memory.PointerSize
}

// Original returns the snapshot value of slot.
func (s *Snapshot) Original(slot int) (memory.Addr, error) {
	if slot < 0 || slot >= len(s.Slots) {
		return 0, fmt.Errorf("slot %d of %d: %w", slot, len(s.Slots), ErrSlotRange)
	}
	return s.Slots[slot], nil
}

// SlotAddr returns the address of slot in the table at table.
func SlotAddr(table memory.Addr, slot int) memory.Addr {
	return table + memory.Addr(slot*memory.PointerSize)
}

// Read returns the current values of the first n slots of a table.
func Read(r memory.Reader, table memory.Addr, n int) ([]memory.Addr, error) {
	if n <= 0 {
		return nil, ErrNoSlots
	}
	out := make([]memory.Addr, n)
	for i := range out {
		v, err := memory.ReadPointer(r, SlotAddr(table, i))
		if err != nil {
			return nil, fmt.Errorf("read slot %d of table %s: %w", i, table, err)
		}
		out[i] = v
	}
	return out, nil
}
