package memory

import (
	"fmt"
	"sync"
)

// Buffer is an in-memory address range with per-page protection.
//
// It behaves like a mapped image: reads require readable pages, writes
// require writable pages, and Protect flips protection page by page exactly
// like VirtualProtect does. Buffer is safe for concurrent use.
type Buffer struct {
	mu        sync.Mutex
	base      Addr
	data      []byte
	firstPage Addr
	prots     []Protection
}

// NewBuffer maps a copy of data at base with the given initial protection.
func NewBuffer(base Addr, data []byte, prot Protection) *Buffer {
	start, end := pageSpan(base, uint64(len(data)))
	pages := int((end - start) / PageSize)
	if pages == 0 {
		pages = 1
	}

	b := &Buffer{
		base:      base,
		data:      append([]byte(nil), data...),
		firstPage: start,
		prots:     make([]Protection, pages),
	}
	for i := range b.prots {
		b.prots[i] = prot
	}
	return b
}

// Base returns the first mapped address.
func (b *Buffer) Base() Addr {
	return b.base
}

// Size returns the number of mapped bytes.
func (b *Buffer) Size() uint64 {
	return uint64(len(b.data))
}

// Bytes returns a copy of the current contents.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

// ReadAt implements Reader.
func (b *Buffer) ReadAt(p []byte, addr Addr) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	off, err := b.offset(addr, uint64(len(p)))
	if err != nil {
		return err
	}
	if err := b.allowed(addr, uint64(len(p)), Protection.Readable); err != nil {
		return err
	}
	copy(p, b.data[off:])
	return nil
}

// WriteAt implements Writer.
func (b *Buffer) WriteAt(p []byte, addr Addr) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	off, err := b.offset(addr, uint64(len(p)))
	if err != nil {
		return err
	}
	if err := b.allowed(addr, uint64(len(p)), Protection.Writable); err != nil {
		return err
	}
	copy(b.data[off:], p)
	return nil
}

// Protect implements Protector.
func (b *Buffer) Protect(addr Addr, size uint64, prot Protection) (Protection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if size == 0 {
		size = 1
	}
	if _, err := b.offset(addr, size); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProtect, err)
	}
	start, end := pageSpan(addr, size)
	first := int((start - b.firstPage) / PageSize)
	last := int((end - b.firstPage) / PageSize)

	prev := b.prots[first]
	for i := first; i < last && i < len(b.prots); i++ {
		b.prots[i] = prot
	}
	return prev, nil
}

// Query implements Querier.
func (b *Buffer) Query(addr Addr) (Region, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.offset(addr, 1); err != nil {
		return Region{}, err
	}
	idx := int((addr - b.firstPage) / PageSize)
	prot := b.prots[idx]

	lo := idx
	for lo > 0 && b.prots[lo-1] == prot {
		lo--
	}
	hi := idx + 1
	for hi < len(b.prots) && b.prots[hi] == prot {
		hi++
	}

	start := b.firstPage + Addr(lo)*PageSize
	end := b.firstPage + Addr(hi)*PageSize
	if start < b.base {
		start = b.base
	}
	if limit := b.base + Addr(len(b.data)); end > limit {
		end = limit
	}
	return Region{Base: start, Size: uint64(end - start), Prot: prot}, nil
}

// Protection returns the protection of the page containing addr.
func (b *Buffer) Protection(addr Addr) (Protection, error) {
	region, err := b.Query(addr)
	if err != nil {
		return 0, err
	}
	return region.Prot, nil
}

func (b *Buffer) offset(addr Addr, size uint64) (uint64, error) {
	if addr < b.base || uint64(addr-b.base)+size > uint64(len(b.data)) {
		return 0, fmt.Errorf("range %s+%d outside %s+%d: %w", addr, size, b.base, len(b.data), ErrUnmapped)
	}
	return uint64(addr - b.base), nil
}

func (b *Buffer) allowed(addr Addr, size uint64, ok func(Protection) bool) error {
	if size == 0 {
		return nil
	}
	start, end := pageSpan(addr, size)
	for page := start; page < end; page += PageSize {
		prot := b.prots[int((page-b.firstPage)/PageSize)]
		if !ok(prot) {
			return fmt.Errorf("page %s is %s: %w", page, prot, ErrAccess)
		}
	}
	return nil
}
