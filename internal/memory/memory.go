package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PointerSize is the size of a function or data pointer in the target process.
const PointerSize = 8

// PageSize is the granularity at which protection changes apply.
const PageSize = 0x1000

// Addr is an absolute virtual address in the target process.
type Addr uint64

// Add returns the address offset by off bytes. Negative offsets are allowed.
func (a Addr) Add(off int64) Addr {
	return Addr(int64(a) + off)
}

// String formats the address as upper-case hex.
func (a Addr) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// Protection mirrors the PAGE_* protection constants of the Windows memory manager.
type Protection uint32

const (
	ProtNoAccess         Protection = 0x01
	ProtReadOnly         Protection = 0x02
	ProtReadWrite        Protection = 0x04
	ProtWriteCopy        Protection = 0x08
	ProtExecute          Protection = 0x10
	ProtExecuteRead      Protection = 0x20
	ProtExecuteReadWrite Protection = 0x40
	ProtExecuteWriteCopy Protection = 0x80
	ProtGuard            Protection = 0x100
)

const protBaseMask = 0xFF

// Readable reports whether memory with this protection can be read.
func (p Protection) Readable() bool {
	if p&ProtGuard != 0 {
		return false
	}
	switch p & protBaseMask {
	case ProtReadOnly, ProtReadWrite, ProtWriteCopy,
		ProtExecuteRead, ProtExecuteReadWrite, ProtExecuteWriteCopy:
		return true
	}
	return false
}

// Writable reports whether memory with this protection can be written.
func (p Protection) Writable() bool {
	if p&ProtGuard != 0 {
		return false
	}
	switch p & protBaseMask {
	case ProtReadWrite, ProtWriteCopy, ProtExecuteReadWrite, ProtExecuteWriteCopy:
		return true
	}
	return false
}

func (p Protection) String() string {
	switch p & protBaseMask {
	case ProtNoAccess:
		return "---"
	case ProtReadOnly:
		return "r--"
	case ProtReadWrite, ProtWriteCopy:
		return "rw-"
	case ProtExecute:
		return "--x"
	case ProtExecuteRead:
		return "r-x"
	case ProtExecuteReadWrite, ProtExecuteWriteCopy:
		return "rwx"
	}
	return fmt.Sprintf("prot(0x%X)", uint32(p))
}

// Region describes a contiguous range sharing one protection value.
type Region struct {
	Base Addr
	Size uint64
	Prot Protection
}

// End returns the first address past the region.
func (r Region) End() Addr {
	return r.Base + Addr(r.Size)
}

// Reader reads raw bytes from the target address space.
type Reader interface {
	// ReadAt fills p from addr. Either all of p is read or an error is returned.
	ReadAt(p []byte, addr Addr) error
}

// Writer writes raw bytes into the target address space.
type Writer interface {
	// WriteAt writes all of p at addr or returns an error.
	WriteAt(p []byte, addr Addr) error
}

// Protector changes page protection.
type Protector interface {
	// Protect applies prot to every page overlapping [addr, addr+size) and
	// returns the protection that was in effect for the first page.
	Protect(addr Addr, size uint64, prot Protection) (Protection, error)
}

// Querier describes the mapping that contains an address.
type Querier interface {
	Query(addr Addr) (Region, error)
}

// Memory is the full capability set needed to locate and patch the target.
type Memory interface {
	Reader
	Writer
	Protector
	Querier
}

var (
	// ErrUnmapped is returned when an address is not backed by committed memory.
	ErrUnmapped = errors.New("address not mapped")

	// ErrAccess is returned when the page protection forbids the access.
	ErrAccess = errors.New("access violation")

	// ErrProtect is returned when a protection change could not be applied.
	ErrProtect = errors.New("protection change failed")
)

// ReadPointer reads a little-endian pointer-sized value.
func ReadPointer(r Reader, addr Addr) (Addr, error) {
	var buf [PointerSize]byte
	if err := r.ReadAt(buf[:], addr); err != nil {
		return 0, err
	}
	return Addr(binary.LittleEndian.Uint64(buf[:])), nil
}

// WritePointer writes a little-endian pointer-sized value.
func WritePointer(w Writer, addr Addr, v Addr) error {
	var buf [PointerSize]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return w.WriteAt(buf[:], addr)
}

// ReadInt32 reads a little-endian signed 32-bit value.
func ReadInt32(r Reader, addr Addr) (int32, error) {
	var buf [4]byte
	if err := r.ReadAt(buf[:], addr); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// CheckReadable verifies every byte of [addr, addr+size) can be read.
func CheckReadable(q Querier, addr Addr, size uint64) error {
	return check(q, addr, size, Protection.Readable, "readable")
}

// CheckWritable verifies every byte of [addr, addr+size) can be written
// without a protection change.
func CheckWritable(q Querier, addr Addr, size uint64) error {
	return check(q, addr, size, Protection.Writable, "writable")
}

func check(q Querier, addr Addr, size uint64, ok func(Protection) bool, what string) error {
	end := addr + Addr(size)
	for cur := addr; cur < end; {
		region, err := q.Query(cur)
		if err != nil {
			return fmt.Errorf("query %s: %w", cur, err)
		}
		if !ok(region.Prot) {
			return fmt.Errorf("%s is not %s (%s): %w", cur, what, region.Prot, ErrAccess)
		}
		if region.End() <= cur {
			return fmt.Errorf("query %s: empty region: %w", cur, ErrUnmapped)
		}
		cur = region.End()
	}
	return nil
}

// pageSpan returns the page-aligned range covering [addr, addr+size).
func pageSpan(addr Addr, size uint64) (Addr, Addr) {
	start := addr &^ (PageSize - 1)
	end := (addr + Addr(size) + PageSize - 1) &^ (PageSize - 1)
	return start, end
}
