package sigscan

import (
	"errors"
	"fmt"

	"github.com/roach88/resetaudio/internal/memory"
)

// Range is the scannable region of a module, usually its .text section.
type Range struct {
	Base memory.Addr
	Size uint64
}

// End returns the first address past the range.
func (r Range) End() memory.Addr {
	return r.Base + memory.Addr(r.Size)
}

// Contains reports whether addr lies inside the range.
func (r Range) Contains(addr memory.Addr) bool {
	return addr >= r.Base && addr < r.End()
}

func (r Range) String() string {
	return fmt.Sprintf("%s+0x%X", r.Base, r.Size)
}

var (
	// ErrNotFound is returned when a pattern does not occur in the range.
	ErrNotFound = errors.New("pattern not found")

	// ErrAmbiguous is returned by FindUnique when a pattern occurs more than once.
	ErrAmbiguous = errors.New("pattern is ambiguous")
)

// AmbiguousError lists the matches of a pattern that was expected to be unique.
type AmbiguousError struct {
	Pattern Pattern
	Matches []memory.Addr
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("pattern %q matched %d locations (first %s)", e.Pattern, len(e.Matches), e.Matches[0])
}

// Is makes errors.Is(err, ErrAmbiguous) succeed.
func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguous
}

// DefaultChunkSize is how many bytes the scanner reads per step.
const DefaultChunkSize = 1 << 20

// Scanner searches one Range of a process image.
//
// The scanner only reads; it never changes protection or writes, so it is
// safe to run before any interception state exists.
type Scanner struct {
	mem   memory.Reader
	rng   Range
	chunk int
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithChunkSize overrides DefaultChunkSize. Mostly useful in tests to force
// matches across chunk boundaries.
func WithChunkSize(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.chunk = n
		}
	}
}

// NewScanner creates a scanner over rng.
func NewScanner(mem memory.Reader, rng Range, opts ...ScannerOption) *Scanner {
	s := &Scanner{mem: mem, rng: rng, chunk: DefaultChunkSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Range returns the scanned range.
func (s *Scanner) Range() Range {
	return s.rng
}

// Scan returns the address of the first match of p in rng.
func Scan(mem memory.Reader, rng Range, p Pattern) (memory.Addr, error) {
	return NewScanner(mem, rng).Find(p)
}

// Find returns the first match of p. Later matches are not examined.
func (s *Scanner) Find(p Pattern) (memory.Addr, error) {
	matches, err := s.FindAll(p, 1)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, fmt.Errorf("%q in %s: %w", p, s.rng, ErrNotFound)
	}
	return matches[0], nil
}

// FindUnique returns the first match of p and fails with an *AmbiguousError
// when a second match exists.
func (s *Scanner) FindUnique(p Pattern) (memory.Addr, error) {
	matches, err := s.FindAll(p, 2)
	if err != nil {
		return 0, err
	}
	switch len(matches) {
	case 0:
		return 0, fmt.Errorf("%q in %s: %w", p, s.rng, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		all, err := s.FindAll(p, 0)
		if err != nil {
			return 0, err
		}
		return 0, &AmbiguousError{Pattern: p, Matches: all}
	}
}

// FindAll returns up to limit matches in ascending address order
// (limit <= 0 means no limit).
func (s *Scanner) FindAll(p Pattern, limit int) ([]memory.Addr, error) {
	if p.Len() == 0 {
		return nil, ErrEmptyPattern
	}
	n := uint64(p.Len())
	if s.rng.Size < n {
		return nil, nil
	}

	var out []memory.Addr
	buf := make([]byte, s.chunk+p.Len()-1)
	for off := uint64(0); off+n <= s.rng.Size; off += uint64(s.chunk) {
		// Each window overlaps the next by len(p)-1 bytes so that a match
		// straddling the boundary is still seen exactly once.
		size := uint64(len(buf))
		if rest := s.rng.Size - off; rest < size {
			size = rest
		}
		window := buf[:size]
		base := s.rng.Base + memory.Addr(off)
		if err := s.mem.ReadAt(window, base); err != nil {
			return nil, fmt.Errorf("read %s+0x%X: %w", base, size, err)
		}

		for _, i := range IndexAll(window, p, 0) {
			if i >= s.chunk {
				break
			}
			out = append(out, base+memory.Addr(i))
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}
