package vtable

import (
	"sync"

	"github.com/roach88/resetaudio/internal/memory"
)

// Registry owns one installed interception: the table address, the original
// snapshot, and whether the replacements are currently live. Trampolines
// look up original slot values here.
type Registry struct {
	ic Interceptor

	mu   sync.Mutex
	snap *Snapshot
	live bool
}

// Attach installs replacements through ic and returns the registry that
// tracks them.
func Attach(ic Interceptor, table memory.Addr, slots int, replacements map[int]memory.Addr) (*Registry, error) {
	snap, err := ic.Install(table, slots, replacements)
	if err != nil {
		return nil, err
	}
	return &Registry{ic: ic, snap: snap, live: true}, nil
}

// Table returns the address of the intercepted table.
func (r *Registry) Table() memory.Addr {
	return r.snap.Table
}

// Snapshot returns a copy of the original table content.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{Table: r.snap.Table, Slots: append([]memory.Addr(nil), r.snap.Slots...)}
}

// Original returns the pre-install value of slot. Originals stay available
// after Detach because the functions they point to belong to the host.
func (r *Registry) Original(slot int) (memory.Addr, error) {
	return r.snap.Original(slot)
}

// Live reports whether the replacements are installed.
func (r *Registry) Live() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Detach restores the original table. It is a no-op once it has succeeded;
// after a failure the registry stays live so Detach can be retried.
func (r *Registry) Detach() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.live {
		return nil
	}
	if err := r.ic.Restore(r.snap); err != nil {
		return err
	}
	r.live = false
	return nil
}
