// Package native calls unmanaged entry points located inside the host process.
//
// Go values are lowered to machine words by marshalArgs and passed through the
// platform calling convention. Only the argument kinds the audio entry points
// use are supported.
package native

import (
	"errors"
	"fmt"
	"unicode/utf16"
	"unsafe"

	"github.com/roach88/resetaudio/internal/memory"
)

var (
	// ErrNilFunction is returned when asked to call address zero.
	ErrNilFunction = errors.New("call to nil function pointer")

	// ErrUnsupportedArg is returned for argument types that have no native lowering.
	ErrUnsupportedArg = errors.New("unsupported native argument")

	// ErrUnsupportedPlatform is returned by Unsupported on hosts without a native ABI.
	ErrUnsupportedPlatform = errors.New("native calls are not supported on this platform")
)

// Invoker calls native functions by address.
type Invoker interface {
	// Call invokes fn with args lowered to machine words and returns the
	// raw result register.
	Call(fn memory.Addr, args ...any) (uintptr, error)

	// SignalEvent sets the OS event object identified by handle.
	SignalEvent(handle uintptr) error
}

// Marshaler is implemented by structs that native code receives by pointer.
// The returned bytes are the in-memory layout of the struct.
type Marshaler interface {
	MarshalNative() []byte
}

// marshalArgs lowers args to machine words. The returned pins slice holds the
// buffers that pointer arguments refer to; callers keep it alive until the
// native call returns.
func marshalArgs(args []any) ([]uintptr, []any, error) {
	words := make([]uintptr, len(args))
	var pins []any
	for i, arg := range args {
		switch v := arg.(type) {
		case nil:
			words[i] = 0
		case uintptr:
			words[i] = v
		case memory.Addr:
			words[i] = uintptr(v)
		case bool:
			if v {
				words[i] = 1
			}
		case uint32:
			words[i] = uintptr(v)
		case int32:
			words[i] = uintptr(uint32(v))
		case int:
			words[i] = uintptr(v)
		case string:
			buf := wideString(v)
			pins = append(pins, buf)
			words[i] = uintptr(unsafe.Pointer(&buf[0]))
		case *string:
			if v == nil {
				continue
			}
			buf := wideString(*v)
			pins = append(pins, buf)
			words[i] = uintptr(unsafe.Pointer(&buf[0]))
		case Marshaler:
			buf := v.MarshalNative()
			if len(buf) == 0 {
				return nil, nil, fmt.Errorf("argument %d: %T marshals to zero bytes: %w", i, arg, ErrUnsupportedArg)
			}
			pins = append(pins, buf)
			words[i] = uintptr(unsafe.Pointer(&buf[0]))
		default:
			return nil, nil, fmt.Errorf("argument %d: %T: %w", i, arg, ErrUnsupportedArg)
		}
	}
	return words, pins, nil
}

// wideString returns s as a NUL-terminated UTF-16 string.
func wideString(s string) []uint16 {
	return append(utf16.Encode([]rune(s)), 0)
}

// WideStringAt decodes the NUL-terminated UTF-16 string at p.
// It returns ok=false for a nil pointer.
func WideStringAt(p uintptr) (string, bool) {
	if p == 0 {
		return "", false
	}
	var n int
	for ptr := unsafe.Pointer(p); *(*uint16)(ptr) != 0; n++ {
		ptr = unsafe.Add(ptr, 2)
	}
	return string(utf16.Decode(unsafe.Slice((*uint16)(unsafe.Pointer(p)), n))), true
}

// Unsupported is the Invoker used where no native ABI is available.
type Unsupported struct{}

func (Unsupported) Call(fn memory.Addr, args ...any) (uintptr, error) {
	return 0, ErrUnsupportedPlatform
}

func (Unsupported) SignalEvent(handle uintptr) error {
	return ErrUnsupportedPlatform
}
