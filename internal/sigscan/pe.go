package sigscan

import (
	"debug/pe"
	"errors"
	"fmt"

	"github.com/roach88/resetaudio/internal/memory"
)

// ErrNoTextSection is returned when a module image has no .text section.
var ErrNoTextSection = errors.New("module has no .text section")

// imageReader adapts a mapped module to io.ReaderAt with offsets relative to
// the module base. Headers of a mapped PE image sit at the same offsets as in
// the file, which is all debug/pe needs to enumerate sections.
type imageReader struct {
	mem  memory.Reader
	base memory.Addr
}

func (r imageReader) ReadAt(p []byte, off int64) (int, error) {
	if err := r.mem.ReadAt(p, r.base.Add(off)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// TextRange returns the .text section of the module mapped at base.
func TextRange(mem memory.Reader, base memory.Addr) (Range, error) {
	f, err := pe.NewFile(imageReader{mem: mem, base: base})
	if err != nil {
		return Range{}, fmt.Errorf("parse module headers at %s: %w", base, err)
	}
	defer f.Close()

	s := f.Section(".text")
	if s == nil {
		return Range{}, ErrNoTextSection
	}
	size := uint64(s.VirtualSize)
	if size == 0 {
		size = uint64(s.Size)
	}
	return Range{Base: base + memory.Addr(s.VirtualAddress), Size: size}, nil
}
