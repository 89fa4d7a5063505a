//go:build !windows

package notify

import (
	"github.com/roach88/resetaudio/internal/memory"
	"github.com/roach88/resetaudio/internal/native"
)

// unsupportedExporter reports that callbacks cannot be created.
type unsupportedExporter struct{}

func (unsupportedExporter) Export(Client) (map[int]memory.Addr, error) {
	return nil, native.ErrUnsupportedPlatform
}

// DefaultExporter returns the exporter for the running platform.
func DefaultExporter() Exporter {
	return unsupportedExporter{}
}
