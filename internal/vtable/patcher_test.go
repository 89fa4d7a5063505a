package vtable

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resetaudio/internal/memory"
)

const (
	tableAddr memory.Addr = 0x141000000
	tableSize             = 8
)

var errInjected = errors.New("injected failure")

// faultyMemory wraps a Buffer and fails selected operations.
type faultyMemory struct {
	*memory.Buffer

	mu            sync.Mutex
	failProtect   bool
	failProtectAt int // 1-based Protect call that fails; 0 disables
	failWriteAt   int // 1-based WriteAt call that fails; 0 disables
	writes        int
	protectCalls  []memory.Protection
	writesApplied []memory.Addr
}

func (f *faultyMemory) Protect(addr memory.Addr, size uint64, prot memory.Protection) (memory.Protection, error) {
	f.mu.Lock()
	f.protectCalls = append(f.protectCalls, prot)
	fail := f.failProtect || f.failProtectAt == len(f.protectCalls)
	f.mu.Unlock()
	if fail {
		return 0, errInjected
	}
	return f.Buffer.Protect(addr, size, prot)
}

func (f *faultyMemory) WriteAt(p []byte, addr memory.Addr) error {
	f.mu.Lock()
	f.writes++
	fail := f.failWriteAt > 0 && f.writes == f.failWriteAt
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	if err := f.Buffer.WriteAt(p, addr); err != nil {
		return err
	}
	f.mu.Lock()
	f.writesApplied = append(f.writesApplied, addr)
	f.mu.Unlock()
	return nil
}

func newTable(t *testing.T) *faultyMemory {
	t.Helper()
	b := memory.NewBuffer(tableAddr, make([]byte, memory.PageSize), memory.ProtReadOnly)

	// Seed the table while the page is briefly writable.
	_, err := b.Protect(tableAddr, tableSize*memory.PointerSize, memory.ProtReadWrite)
	require.NoError(t, err)
	for i := 0; i < tableSize; i++ {
		require.NoError(t, memory.WritePointer(b, SlotAddr(tableAddr, i), memory.Addr(0x7FF600001000+i*0x10)))
	}
	_, err = b.Protect(tableAddr, tableSize*memory.PointerSize, memory.ProtReadOnly)
	require.NoError(t, err)

	return &faultyMemory{Buffer: b}
}

func readTable(t *testing.T, mem memory.Reader) []memory.Addr {
	t.Helper()
	slots, err := Read(mem, tableAddr, tableSize)
	require.NoError(t, err)
	return slots
}

func TestPatcher_InstallRestoreRoundTrip(t *testing.T) {
	mem := newTable(t)
	before := readTable(t, mem)
	p := NewPatcher(mem)

	snap, err := p.Install(tableAddr, tableSize, map[int]memory.Addr{3: 0xAAAA, 6: 0xBBBB})
	require.NoError(t, err)

	if diff := cmp.Diff(before, snap.Slots); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	during := readTable(t, mem)
	want := append([]memory.Addr(nil), before...)
	want[3], want[6] = 0xAAAA, 0xBBBB
	if diff := cmp.Diff(want, during); diff != "" {
		t.Errorf("patched table mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, p.Restore(snap))
	if diff := cmp.Diff(before, readTable(t, mem)); diff != "" {
		t.Errorf("restored table mismatch (-want +got):\n%s", diff)
	}
}

func TestPatcher_ProtectionIsPutBack(t *testing.T) {
	mem := newTable(t)
	p := NewPatcher(mem)

	snap, err := p.Install(tableAddr, tableSize, map[int]memory.Addr{0: 1})
	require.NoError(t, err)
	prot, err := mem.Protection(tableAddr)
	require.NoError(t, err)
	assert.Equal(t, memory.ProtReadOnly, prot)

	require.NoError(t, p.Restore(snap))
	prot, err = mem.Protection(tableAddr)
	require.NoError(t, err)
	assert.Equal(t, memory.ProtReadOnly, prot)

	assert.Equal(t, []memory.Protection{
		memory.ProtReadWrite, memory.ProtReadOnly,
		memory.ProtReadWrite, memory.ProtReadOnly,
	}, mem.protectCalls)
}

func TestPatcher_ProtectionFailureLeavesTableUntouched(t *testing.T) {
	mem := newTable(t)
	before := readTable(t, mem)
	mem.failProtect = true

	snap, err := NewPatcher(mem).Install(tableAddr, tableSize, map[int]memory.Addr{4: 0xDEAD})
	require.ErrorIs(t, err, errInjected)
	assert.Nil(t, snap)
	assert.Zero(t, mem.writes, "no slot may be written without protection")
	assert.Equal(t, before, readTable(t, mem))
}

func TestPatcher_WriteFailureRollsBack(t *testing.T) {
	mem := newTable(t)
	before := readTable(t, mem)
	// Slots are written in ascending order: 3 succeeds, 5 fails.
	mem.failWriteAt = 2

	_, err := NewPatcher(mem).Install(tableAddr, tableSize, map[int]memory.Addr{3: 0xAAAA, 5: 0xBBBB, 7: 0xCCCC})
	require.ErrorIs(t, err, errInjected)

	if diff := cmp.Diff(before, readTable(t, mem)); diff != "" {
		t.Errorf("table not rolled back (-want +got):\n%s", diff)
	}
	prot, err := mem.Protection(tableAddr)
	require.NoError(t, err)
	assert.Equal(t, memory.ProtReadOnly, prot, "protection restored after failure")
}

func TestPatcher_ProtectionRestoreFailureRollsBack(t *testing.T) {
	mem := newTable(t)
	before := readTable(t, mem)
	// The first Protect makes the table writable; putting the old
	// protection back fails.
	mem.failProtectAt = 2

	snap, err := NewPatcher(mem).Install(tableAddr, tableSize, map[int]memory.Addr{3: 0xAAAA, 5: 0xBBBB})
	require.ErrorIs(t, err, errInjected)
	assert.Nil(t, snap)

	if diff := cmp.Diff(before, readTable(t, mem)); diff != "" {
		t.Errorf("table still patched (-want +got):\n%s", diff)
	}
}

func TestPatcher_UntouchedSlotsNeverWritten(t *testing.T) {
	mem := newTable(t)
	_, err := NewPatcher(mem).Install(tableAddr, tableSize, map[int]memory.Addr{6: 0x1234})
	require.NoError(t, err)

	assert.Equal(t, []memory.Addr{SlotAddr(tableAddr, 6)}, mem.writesApplied)
}

func TestPatcher_RestoreIsIdempotent(t *testing.T) {
	mem := newTable(t)
	before := readTable(t, mem)
	p := NewPatcher(mem)

	snap, err := p.Install(tableAddr, tableSize, map[int]memory.Addr{1: 0x1})
	require.NoError(t, err)

	require.NoError(t, p.Restore(snap))
	require.NoError(t, p.Restore(snap))
	assert.Equal(t, before, readTable(t, mem))
}

func TestPatcher_RejectsBadInput(t *testing.T) {
	mem := newTable(t)
	p := NewPatcher(mem)

	_, err := p.Install(tableAddr, 0, nil)
	assert.ErrorIs(t, err, ErrNoSlots)

	_, err = p.Install(tableAddr, tableSize, map[int]memory.Addr{tableSize: 1})
	assert.ErrorIs(t, err, ErrSlotRange)

	_, err = p.Install(tableAddr, tableSize, map[int]memory.Addr{-1: 1})
	assert.ErrorIs(t, err, ErrSlotRange)

	assert.ErrorIs(t, p.Restore(nil), ErrNoSnapshot)
	assert.Empty(t, mem.protectCalls)
}

func TestPatcher_ConcurrentInstallRestore(t *testing.T) {
	mem := newTable(t)
	before := readTable(t, mem)
	p := NewPatcher(mem)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := p.Install(tableAddr, tableSize, map[int]memory.Addr{i % tableSize: memory.Addr(0x9000 + i)})
			if err != nil {
				t.Error(err)
				return
			}
			if err := p.Restore(snap); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	// Interleaved pairs may leave a replacement behind (a later snapshot
	// captured an earlier replacement), so only protection is deterministic.
	prot, err := mem.Protection(tableAddr)
	require.NoError(t, err)
	assert.Equal(t, memory.ProtReadOnly, prot)
	assert.Len(t, readTable(t, mem), len(before))
}

func TestSnapshot_Original(t *testing.T) {
	s := &Snapshot{Table: tableAddr, Slots: []memory.Addr{10, 20}}

	v, err := s.Original(1)
	require.NoError(t, err)
	assert.Equal(t, memory.Addr(20), v)

	_, err = s.Original(2)
	assert.ErrorIs(t, err, ErrSlotRange)
	assert.Equal(t, uint64(16), s.Size())
}
