package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resetaudio/internal/config"
	"github.com/roach88/resetaudio/internal/locate"
	"github.com/roach88/resetaudio/internal/locate/locatetest"
	"github.com/roach88/resetaudio/internal/sigscan"
)

// writeClient writes the synthetic client image as a PE file and returns its path.
func writeClient(t *testing.T, mutate func(im *locatetest.Image)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffxiv_dx11.exe")
	require.NoError(t, os.WriteFile(path, locatetest.New(mutate).PE(), 0o644))
	return path
}

func executeScan(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewScanCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestScanCommand(t *testing.T) {
	out, err := executeScan(t, "text", writeClient(t, nil))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ All signatures resolved in ffxiv_dx11.exe")
	// Addresses are relative to the preferred image base, one page below
	// the first section.
	assert.Contains(t, out, "notification_vtbl")
	assert.Contains(t, out, "[ffxiv_dx11.exe+0x3000]")
	assert.Contains(t, out, "[ffxiv_dx11.exe+0x4000]")
	assert.Contains(t, out, "[ffxiv_dx11.exe+0x1300]")
	assert.Contains(t, out, "OnDefaultDeviceChanged")
	assert.Contains(t, out, "[ffxiv_dx11.exe+0x1600]")
}

func TestScanCommandJSON(t *testing.T) {
	out, err := executeScan(t, "json", writeClient(t, nil))
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   ScanResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ffxiv_dx11.exe", resp.Data.Module)
	assert.Equal(t, locatetest.PEImageBase.String(), resp.Data.ImageBase)
	assert.Equal(t, sigscan.Range{Base: locatetest.Base, Size: 0x2000}.String(), resp.Data.Text)

	byName := make(map[string]string)
	for _, h := range resp.Data.Handles {
		byName[h.Name] = h.Address
	}
	assert.Equal(t, "[ffxiv_dx11.exe+0x4000]", byName["reset_flag"])
	assert.Equal(t, "[ffxiv_dx11.exe+0x3100]", byName["exit_event"])
	assert.Equal(t, "[ffxiv_dx11.exe+0x3108]", byName["main_audio_class"])
	assert.Equal(t, "[ffxiv_dx11.exe+0x1480]", byName["set_static_addr2"])
	assert.Len(t, resp.Data.Handles, 13)
}

func TestScanCommandMissingSignature(t *testing.T) {
	path := writeClient(t, func(im *locatetest.Image) {
		im.Data[locatetest.OffCleanup] = 0xCC
	})

	out, err := executeScan(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ ffxiv_dx11.exe")
	assert.Contains(t, out, string(locate.ErrCodeNotFound))
	assert.Contains(t, err.Error(), "resolve cleanup")
}

func TestScanCommandAmbiguousJSON(t *testing.T) {
	path := writeClient(t, func(im *locatetest.Image) {
		im.Emit(0x700, locate.DefaultProfile().Construct.Pattern)
	})

	out, err := executeScan(t, "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, string(locate.ErrCodeAmbiguous), resp.Error.Code)
	assert.Equal(t, map[string]any{"module": "ffxiv_dx11.exe", "target": "construct"}, resp.Data)

	_, err = executeScan(t, "json", "--first-match", path)
	assert.NoError(t, err)
}

func TestScanCommandConfigOverride(t *testing.T) {
	p := locate.DefaultProfile()
	p.Cleanup.Pattern = sigscan.MustParsePattern("DE AD BE EF 00 11 22 33")
	c := config.Default()
	c.Signatures = &p

	cfgPath := filepath.Join(t.TempDir(), "resetaudio.yaml")
	require.NoError(t, config.NewFileStore(cfgPath).Save(c))

	out, err := executeScan(t, "text", "--config", cfgPath, writeClient(t, nil))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, string(locate.ErrCodeNotFound))
}

func TestScanCommandErrors(t *testing.T) {
	notPE := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notPE, []byte("not an executable"), 0o644))

	badConfig := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(badConfig, []byte("coalesce_ms: [\n"), 0o644))

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"missing file", []string{"/nonexistent/ffxiv_dx11.exe"}, ErrCodeReadFile},
		{"not an image", []string{notPE}, ErrCodeReadFile},
		{"invalid config", []string{"--config", badConfig, writeClient(t, nil)}, config.ErrCodeParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeScan(t, "text", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestScanCommandMissingArgs(t *testing.T) {
	_, err := executeScan(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
