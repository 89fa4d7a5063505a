package locate_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resetaudio/internal/locate"
	"github.com/roach88/resetaudio/internal/locate/locatetest"
	"github.com/roach88/resetaudio/internal/memory"
	"github.com/roach88/resetaudio/internal/notify"
	"github.com/roach88/resetaudio/internal/sigscan"
	"github.com/roach88/resetaudio/internal/vtable"
)

func buildImage(t *testing.T, mutate func(im *locatetest.Image)) *memory.Buffer {
	t.Helper()
	b, err := locatetest.Build(mutate)
	require.NoError(t, err)
	return b
}

const imageBase = locatetest.Base

var textRange = locatetest.TextRange

func TestDefaultProfile_PatternLengths(t *testing.T) {
	p := locate.DefaultProfile()
	assert.Equal(t, 0x38, p.NotificationVtbl.Pattern.Len())
	assert.Equal(t, 0x2E, p.RenderThreadBody.Pattern.Len())
	assert.Equal(t, 0x2C, p.SetStaticAddr2.Pattern.Len())
	assert.False(t, p.Construct.Relative)
}

func TestLocate(t *testing.T) {
	mem := buildImage(t, nil)

	h, err := locate.Locate(mem, textRange, locate.DefaultProfile())
	require.NoError(t, err)

	assert.Equal(t, imageBase+locatetest.OffVtbl, h.NotificationVtbl)
	assert.Equal(t, imageBase+locatetest.OffExitEvent, h.ExitEventPtr)
	assert.Equal(t, imageBase+locatetest.OffMainClass, h.MainAudioClassPtr)
	assert.Equal(t, imageBase+locatetest.OffConstruct, h.Construct)
	assert.Equal(t, imageBase+locatetest.OffInitialize, h.Initialize)
	assert.Equal(t, imageBase+locatetest.OffCleanup, h.Cleanup)
	assert.Equal(t, imageBase+locatetest.OffSetStatic, h.SetStaticAddr2)
	assert.Equal(t, imageBase+locatetest.OffFlag, h.ResetFlag)

	require.Len(t, h.OriginalSlots, notify.TableSize)
	assert.Equal(t, imageBase+locatetest.OffOnDefault, h.OriginalSlots[notify.SlotOnDefaultDeviceChanged])

	current, err := vtable.Read(mem, h.NotificationVtbl, notify.TableSize)
	require.NoError(t, err)
	assert.Equal(t, h.OriginalSlots, current)
}

func TestLocate_DoesNotWrite(t *testing.T) {
	mem := buildImage(t, nil)
	before := mem.Bytes()

	_, err := locate.Locate(mem, textRange, locate.DefaultProfile())
	require.NoError(t, err)
	assert.Equal(t, before, mem.Bytes())
}

func TestLocate_MissingSignature(t *testing.T) {
	mem := buildImage(t, func(im *locatetest.Image) {
		im.Data[locatetest.OffCleanup] = 0xCC
	})

	h, err := locate.Locate(mem, textRange, locate.DefaultProfile())
	require.Error(t, err)
	assert.Nil(t, h)
	assert.True(t, locate.IsNotFound(err))
	assert.ErrorIs(t, err, sigscan.ErrNotFound)

	var re *locate.ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "cleanup", re.Target)
}

func TestLocate_AmbiguousSignature(t *testing.T) {
	mutate := func(im *locatetest.Image) {
		im.Emit(0x700, locate.DefaultProfile().Construct.Pattern)
	}

	_, err := locate.Locate(buildImage(t, mutate), textRange, locate.DefaultProfile())
	require.Error(t, err)
	assert.True(t, locate.IsAmbiguous(err))

	h, err := locate.Locate(buildImage(t, mutate), textRange, locate.DefaultProfile(), locate.WithFirstMatch())
	require.NoError(t, err)
	assert.Equal(t, imageBase+locatetest.OffConstruct, h.Construct)
}

func TestLocate_ResetFlagMustBeWritable(t *testing.T) {
	mem := buildImage(t, nil)
	_, err := mem.Protect(imageBase+locatetest.OffFlag, 1, memory.ProtReadOnly)
	require.NoError(t, err)

	_, err = locate.Locate(mem, textRange, locate.DefaultProfile())
	var re *locate.ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, locate.ErrCodeUnwritable, re.Code)
	assert.Equal(t, "reset_flag", re.Target)
	assert.ErrorIs(t, err, memory.ErrAccess)
}

func TestLocate_UnreadableTable(t *testing.T) {
	mem := buildImage(t, nil)
	_, err := mem.Protect(imageBase+locatetest.OffVtbl, 1, memory.ProtNoAccess)
	require.NoError(t, err)

	_, err = locate.Locate(mem, textRange, locate.DefaultProfile())
	var re *locate.ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, locate.ErrCodeUnreadable, re.Code)
	assert.Equal(t, "notification_vtbl", re.Target)
}

func TestLocate_ResolvedOutsideImage(t *testing.T) {
	mem := buildImage(t, func(im *locatetest.Image) {
		// Point the exit event operand far past the image.
		binary.LittleEndian.PutUint32(im.Data[locatetest.OffRenderThread+0x2A:], 0x7FFFFFF0)
	})

	_, err := locate.Locate(mem, textRange, locate.DefaultProfile())
	var re *locate.ResolveError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "exit_event", re.Target)
	assert.ErrorIs(t, err, memory.ErrUnmapped)
}

func TestLocate_ChunkedScanFindsSameHandles(t *testing.T) {
	mem := buildImage(t, nil)

	want, err := locate.Locate(mem, textRange, locate.DefaultProfile())
	require.NoError(t, err)
	got, err := locate.Locate(mem, textRange, locate.DefaultProfile(), locate.WithScannerOptions(sigscan.WithChunkSize(64)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestModule_FormatRVA(t *testing.T) {
	m := locate.Module{Name: "game.exe", Base: imageBase}

	assert.Equal(t, "[game.exe+0x1A2B]", m.FormatRVA(imageBase+0x1A2B))
	assert.Equal(t, "[0x1000]", m.FormatRVA(0x1000))
	assert.Equal(t, "[0x140000010]", locate.Module{}.FormatRVA(imageBase+0x10))
}

func TestResolveError(t *testing.T) {
	err := &locate.ResolveError{Code: locate.ErrCodeNotFound, Target: "construct", Err: sigscan.ErrNotFound}
	assert.Equal(t, "PATTERN_NOT_FOUND: construct: pattern not found", err.Error())
	assert.False(t, locate.IsAmbiguous(err))
	assert.False(t, locate.IsNotFound(nil))
}

func TestLocate_LoadedFromFile(t *testing.T) {
	im := locatetest.New(nil)
	mem, err := memory.LoadImage(bytes.NewReader(im.PE()))
	require.NoError(t, err)

	rng, err := sigscan.TextRange(mem, mem.Base())
	require.NoError(t, err)
	assert.Equal(t, sigscan.Range{Base: locatetest.Base, Size: 0x2000}, rng)

	fromFile, err := locate.Locate(mem, rng, locate.DefaultProfile())
	require.NoError(t, err)

	want, err := locate.Locate(buildImage(t, nil), textRange, locate.DefaultProfile())
	require.NoError(t, err)
	assert.Equal(t, want, fromFile)
}
