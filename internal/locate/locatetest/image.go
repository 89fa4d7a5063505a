// Package locatetest builds a synthetic host image in which every signature
// of locate.DefaultProfile resolves, for tests that need live-looking
// handles without a real process.
package locatetest

import (
	"encoding/binary"

	"github.com/roach88/resetaudio/internal/locate"
	"github.com/roach88/resetaudio/internal/memory"
	"github.com/roach88/resetaudio/internal/notify"
	"github.com/roach88/resetaudio/internal/sigscan"
)

// Base is the load address of the image.
const Base memory.Addr = 0x140000000

// Offsets inside the image. Page 0 is code, page 2 read-only data, page 3
// read-write data.
const (
	OffEnumInit     = 0x100
	OffRenderThread = 0x200
	OffConstruct    = 0x300
	OffInitialize   = 0x380
	OffCleanup      = 0x400
	OffSetStatic    = 0x480
	OffCallbacks    = 0x500
	OffOnDefault    = 0x600

	OffVtbl      = 0x2000
	OffExitEvent = 0x2100
	OffMainClass = 0x2108

	OffFlag         = 0x3000
	OffInstancePtr  = 0x3100
	OffInstance     = 0x3200
	ExitEventHandle = 0x2A4

	Size = 0x4000
)

// TextRange is the code page of the image.
var TextRange = sigscan.Range{Base: Base, Size: 0x1000}

// Image is the raw image content before it is mapped.
type Image struct {
	Data []byte
}

// Emit writes the exact bytes of p at off. Wildcard positions keep their
// current value.
func (im *Image) Emit(off int, p sigscan.Pattern) {
	for i, tok := range p.Tokens() {
		if !tok.Wildcard {
			im.Data[off+i] = tok.Value
		}
	}
}

// Rel writes the displacement at off+disp so that off+imm+displacement
// equals target.
func (im *Image) Rel(off int, imm, disp int64, target int) {
	v := int32(int64(target) - (int64(off) + imm))
	binary.LittleEndian.PutUint32(im.Data[off+int(disp):], uint32(v))
}

// PutPointer stores an absolute pointer to Base+target at off.
func (im *Image) PutPointer(off int, target memory.Addr) {
	binary.LittleEndian.PutUint64(im.Data[off:], uint64(target))
}

// Callback returns the address of the original entry for slot.
func Callback(slot int) memory.Addr {
	if slot == notify.SlotOnDefaultDeviceChanged {
		return Base + OffOnDefault
	}
	return Base + memory.Addr(OffCallbacks+slot*0x10)
}

// Build lays out the default profile, applies mutate and maps the result.
func Build(mutate func(im *Image)) (*memory.Buffer, error) {
	return New(mutate).Map()
}

// New lays out the default profile and applies mutate.
func New(mutate func(im *Image)) *Image {
	p := locate.DefaultProfile()
	im := &Image{Data: make([]byte, Size)}

	im.Emit(OffEnumInit, p.NotificationVtbl.Pattern)
	im.Rel(OffEnumInit, p.NotificationVtbl.Immediate, p.NotificationVtbl.Displacement, OffVtbl)

	im.Emit(OffRenderThread, p.RenderThreadBody.Pattern)
	im.Rel(OffRenderThread, p.RenderThreadBody.Immediate, p.RenderThreadBody.Displacement, OffExitEvent)

	im.Emit(OffConstruct, p.Construct.Pattern)
	im.Emit(OffInitialize, p.Initialize.Pattern)
	im.Emit(OffCleanup, p.Cleanup.Pattern)
	im.Emit(OffSetStatic, p.SetStaticAddr2.Pattern)
	im.Rel(OffSetStatic, locate.MainAudioClassImmediate, locate.MainAudioClassDisplacement, OffMainClass)

	// mov byte ptr [rip+disp32], sil
	copy(im.Data[OffOnDefault:], []byte{0x40, 0x88, 0x35})
	im.Rel(OffOnDefault, locate.ResetFlagImmediate, locate.ResetFlagDisplacement, OffFlag)

	for slot := 0; slot < notify.TableSize; slot++ {
		im.PutPointer(OffVtbl+slot*memory.PointerSize, Callback(slot))
	}

	binary.LittleEndian.PutUint64(im.Data[OffExitEvent:], ExitEventHandle)
	im.PutPointer(OffMainClass, Base+OffInstancePtr)
	im.PutPointer(OffInstancePtr, Base+OffInstance)

	if mutate != nil {
		mutate(im)
	}
	return im
}

// Map maps the image at Base. Pages 0 and 1 are code, page 2 read-only data
// and page 3 read-write data.
func (im *Image) Map() (*memory.Buffer, error) {
	b := memory.NewBuffer(Base, im.Data, memory.ProtExecuteRead)
	if _, err := b.Protect(Base+0x2000, memory.PageSize, memory.ProtReadOnly); err != nil {
		return nil, err
	}
	if _, err := b.Protect(Base+0x3000, memory.PageSize, memory.ProtReadWrite); err != nil {
		return nil, err
	}
	return b, nil
}
