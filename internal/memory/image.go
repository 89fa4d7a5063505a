package memory

import (
	"debug/pe"
	"errors"
	"fmt"
	"io"
)

// ErrNotImage is returned by LoadImage for files that are not PE32+ executables.
var ErrNotImage = errors.New("not a PE32+ image")

const (
	scnExecute = 0x20000000
	scnRead    = 0x40000000
	scnWrite   = 0x80000000
)

// LoadImage maps a PE32+ file the way the loader would, at its preferred
// image base. Headers are read-only; each section gets the protection its
// characteristics ask for. Relocations and imports are not processed.
func LoadImage(r io.ReaderAt) (*Buffer, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	defer f.Close()

	oh, ok := f.OptionalHeader.(*pe.OptionalHeader64)
	if !ok {
		return nil, ErrNotImage
	}
	if oh.SizeOfHeaders > oh.SizeOfImage {
		return nil, fmt.Errorf("%w: headers larger than image", ErrNotImage)
	}

	data := make([]byte, oh.SizeOfImage)
	if _, err := r.ReadAt(data[:oh.SizeOfHeaders], 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read headers: %w", err)
	}
	for _, s := range f.Sections {
		size := mappedSize(s)
		if uint64(s.VirtualAddress)+uint64(size) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: section %s outside image", ErrNotImage, s.Name)
		}
		raw, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("read section %s: %w", s.Name, err)
		}
		if uint32(len(raw)) > size {
			raw = raw[:size]
		}
		copy(data[s.VirtualAddress:], raw)
	}

	base := Addr(oh.ImageBase)
	b := NewBuffer(base, data, ProtReadOnly)
	for _, s := range f.Sections {
		size := mappedSize(s)
		if size == 0 {
			continue
		}
		if _, err := b.Protect(base+Addr(s.VirtualAddress), uint64(size), sectionProtection(s.Characteristics)); err != nil {
			return nil, fmt.Errorf("protect section %s: %w", s.Name, err)
		}
	}
	return b, nil
}

func mappedSize(s *pe.Section) uint32 {
	if s.VirtualSize != 0 {
		return s.VirtualSize
	}
	return s.Size
}

func sectionProtection(c uint32) Protection {
	exec, read, write := c&scnExecute != 0, c&scnRead != 0, c&scnWrite != 0
	switch {
	case exec && write:
		return ProtExecuteReadWrite
	case exec && read:
		return ProtExecuteRead
	case exec:
		return ProtExecute
	case write:
		return ProtReadWrite
	case read:
		return ProtReadOnly
	default:
		return ProtNoAccess
	}
}
