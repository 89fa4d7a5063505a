package native

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resetaudio/internal/memory"
)

type fixedStruct [4]byte

func (f fixedStruct) MarshalNative() []byte { return f[:] }

type emptyStruct struct{}

func (emptyStruct) MarshalNative() []byte { return nil }

func TestMarshalArgs_Scalars(t *testing.T) {
	words, pins, err := marshalArgs([]any{
		nil, uintptr(7), memory.Addr(0x1400), true, false, uint32(9), int32(-1), 3,
	})
	require.NoError(t, err)
	assert.Empty(t, pins)
	assert.Equal(t, []uintptr{0, 7, 0x1400, 1, 0, 9, 0xFFFFFFFF, 3}, words)
}

func TestMarshalArgs_Strings(t *testing.T) {
	id := "{0.0.0.00000000}.{abc}"
	var nilID *string

	words, pins, err := marshalArgs([]any{"héllo", &id, nilID})
	require.NoError(t, err)
	require.Len(t, pins, 2)

	s, ok := WideStringAt(words[0])
	require.True(t, ok)
	assert.Equal(t, "héllo", s)

	s, ok = WideStringAt(words[1])
	require.True(t, ok)
	assert.Equal(t, id, s)

	assert.Zero(t, words[2])
}

func TestMarshalArgs_Marshaler(t *testing.T) {
	words, pins, err := marshalArgs([]any{fixedStruct{1, 2, 3, 4}})
	require.NoError(t, err)
	require.Len(t, pins, 1)

	got := unsafe.Slice((*byte)(unsafe.Pointer(words[0])), 4)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestMarshalArgs_Unsupported(t *testing.T) {
	_, _, err := marshalArgs([]any{1.5})
	assert.ErrorIs(t, err, ErrUnsupportedArg)

	_, _, err = marshalArgs([]any{emptyStruct{}})
	assert.ErrorIs(t, err, ErrUnsupportedArg)
}

func TestWideStringAt_Nil(t *testing.T) {
	s, ok := WideStringAt(0)
	assert.False(t, ok)
	assert.Empty(t, s)
}

func TestWideStringAt_Empty(t *testing.T) {
	buf := wideString("")
	s, ok := WideStringAt(uintptr(unsafe.Pointer(&buf[0])))
	assert.True(t, ok)
	assert.Empty(t, s)
}

func TestUnsupported(t *testing.T) {
	var inv Invoker = Unsupported{}

	_, err := inv.Call(0x1000)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	assert.ErrorIs(t, inv.SignalEvent(1), ErrUnsupportedPlatform)
}
