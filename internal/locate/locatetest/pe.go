package locatetest

import (
	"encoding/binary"

	"github.com/roach88/resetaudio/internal/memory"
)

// PEImageBase is the preferred load address of the file built by PE. Its
// first section starts at Base, so addresses match a mapped Image.
const PEImageBase = Base - 0x1000

// PE section characteristics.
const (
	scnCode    = 0x00000020
	scnData    = 0x00000040
	scnExecute = 0x20000000
	scnRead    = 0x40000000
	scnWrite   = 0x80000000
)

type section struct {
	name  string
	off   int // offset inside Image.Data
	size  int
	flags uint32
}

var sections = []section{
	{".text", 0, 0x2000, scnCode | scnExecute | scnRead},
	{".rdata", 0x2000, 0x1000, scnData | scnRead},
	{".data", 0x3000, 0x1000, scnData | scnRead | scnWrite},
}

// PE wraps the image in a PE32+ executable file, one section per
// protection class, as a linker would lay it out on disk.
func (im *Image) PE() []byte {
	const (
		lfanew        = 0x80
		optSize       = 240
		headersSize   = 0x400
		fileAlignment = 0x200
	)
	out := make([]byte, headersSize+len(im.Data))

	out[0], out[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(out[0x3C:], lfanew)
	copy(out[lfanew:], "PE\x00\x00")

	fh := out[lfanew+4:]
	binary.LittleEndian.PutUint16(fh[0:], 0x8664) // AMD64
	binary.LittleEndian.PutUint16(fh[2:], uint16(len(sections)))
	binary.LittleEndian.PutUint16(fh[16:], optSize)
	binary.LittleEndian.PutUint16(fh[18:], 0x22) // EXECUTABLE_IMAGE | LARGE_ADDRESS_AWARE

	oh := out[lfanew+24:]
	binary.LittleEndian.PutUint16(oh[0:], 0x20B) // PE32+
	binary.LittleEndian.PutUint32(oh[4:], 0x2000)
	binary.LittleEndian.PutUint32(oh[16:], 0x1000+OffEnumInit)
	binary.LittleEndian.PutUint32(oh[20:], 0x1000)
	binary.LittleEndian.PutUint64(oh[24:], uint64(PEImageBase))
	binary.LittleEndian.PutUint32(oh[32:], memory.PageSize)
	binary.LittleEndian.PutUint32(oh[36:], fileAlignment)
	binary.LittleEndian.PutUint16(oh[48:], 6) // subsystem version
	binary.LittleEndian.PutUint32(oh[56:], uint32(0x1000+len(im.Data)))
	binary.LittleEndian.PutUint32(oh[60:], headersSize)
	binary.LittleEndian.PutUint16(oh[68:], 2) // WINDOWS_GUI
	binary.LittleEndian.PutUint32(oh[108:], 16)

	sh := out[lfanew+24+optSize:]
	for i, s := range sections {
		h := sh[i*40:]
		copy(h[0:8], s.name)
		binary.LittleEndian.PutUint32(h[8:], uint32(s.size))
		binary.LittleEndian.PutUint32(h[12:], uint32(0x1000+s.off))
		binary.LittleEndian.PutUint32(h[16:], uint32(s.size))
		binary.LittleEndian.PutUint32(h[20:], uint32(headersSize+s.off))
		binary.LittleEndian.PutUint32(h[36:], s.flags)
		copy(out[headersSize+s.off:], im.Data[s.off:s.off+s.size])
	}
	return out
}
