package sigscan

import (
	"fmt"

	"github.com/roach88/resetaudio/internal/memory"
)

// ResolveRelative computes the target of a position-relative operand.
//
// x86-64 encodes RIP-relative operands as a signed 32-bit displacement that
// is added to the address of the next instruction. Given the address of a
// matched instruction (or signature start), the offset of the end of the
// instruction (immediate) and the offset of the displacement field
// (displacement), the result is:
//
//	instr + immediate + int32At(instr + displacement)
//
// The resolved address is not validated; callers must check it is mapped.
func ResolveRelative(r memory.Reader, instr memory.Addr, immediate, displacement int64) (memory.Addr, error) {
	field := instr.Add(displacement)
	rel, err := memory.ReadInt32(r, field)
	if err != nil {
		return 0, fmt.Errorf("read displacement at %s: %w", field, err)
	}
	return instr.Add(immediate + int64(rel)), nil
}
