//go:build windows

package memory

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Process is the address space of the current process.
//
// The plugin runs inside the process it patches, so reads and writes are
// plain memory copies guarded by VirtualQuery. Every access is validated
// first: touching an unmapped page would fault the host, not return an error.
type Process struct{}

// CurrentProcess returns the live address space.
func CurrentProcess() *Process {
	return &Process{}
}

// MainModuleBase returns the load address of the process executable.
func MainModuleBase() (Addr, error) {
	var h windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &h); err != nil {
		return 0, fmt.Errorf("GetModuleHandleEx: %w", err)
	}
	return Addr(h), nil
}

// Query implements Querier.
func (p *Process) Query(addr Addr) (Region, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(uintptr(addr), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return Region{}, fmt.Errorf("VirtualQuery %s: %w", addr, err)
	}
	if mbi.State != windows.MEM_COMMIT {
		return Region{}, fmt.Errorf("%s: %w", addr, ErrUnmapped)
	}
	return Region{
		Base: Addr(mbi.BaseAddress),
		Size: uint64(mbi.RegionSize),
		Prot: Protection(mbi.Protect),
	}, nil
}

// ReadAt implements Reader.
func (p *Process) ReadAt(buf []byte, addr Addr) error {
	if len(buf) == 0 {
		return nil
	}
	if err := CheckReadable(p, addr, uint64(len(buf))); err != nil {
		return err
	}
	copy(buf, unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), len(buf)))
	return nil
}

// WriteAt implements Writer.
func (p *Process) WriteAt(buf []byte, addr Addr) error {
	if len(buf) == 0 {
		return nil
	}
	if err := CheckWritable(p, addr, uint64(len(buf))); err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), len(buf)), buf)
	return nil
}

// Protect implements Protector.
func (p *Process) Protect(addr Addr, size uint64, prot Protection) (Protection, error) {
	var old uint32
	if err := windows.VirtualProtect(uintptr(addr), uintptr(size), uint32(prot), &old); err != nil {
		return 0, fmt.Errorf("%w: VirtualProtect %s+%d: %w", ErrProtect, addr, size, err)
	}
	return Protection(old), nil
}
