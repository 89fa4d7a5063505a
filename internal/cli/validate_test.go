package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resetaudio/internal/config"
	"github.com/roach88/resetaudio/internal/notify"
)

func writeConfig(t *testing.T, c config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resetaudio.yaml")
	require.NoError(t, config.NewFileStore(path).Save(c))
	return path
}

func executeValidate(t *testing.T, format, path string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateCommand_Valid(t *testing.T) {
	out, err := executeValidate(t, "text", writeConfig(t, config.Default()))
	require.NoError(t, err)
	assert.Equal(t, "✓ resetaudio.yaml is valid\n", out)
}

func TestValidateCommand_ValidJSON(t *testing.T) {
	out, err := executeValidate(t, "json", writeConfig(t, config.Default()))
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"valid": true}, resp.Data)
}

func TestValidateCommand_SchemaViolation(t *testing.T) {
	path := writeConfig(t, config.Default())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "coalesce_ms: 100")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), "coalesce_ms: 100", "coalesce_ms: 5", 1)), 0o644))

	out, err := executeValidate(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, config.ErrCodeSchema+" coalesce_ms")
}

func TestValidateCommand_DuplicateKeyJSON(t *testing.T) {
	c := config.Default()
	c.IgnorePropertyUpdateKeys = append(c.IgnorePropertyUpdateKeys, config.Suppression{
		Key:     notify.PKeyAudioClientAttach,
		Comment: "again",
		Enabled: false,
	})

	out, err := executeValidate(t, "json", writeConfig(t, c))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, config.ErrCodeDuplicate, resp.Data.Errors[0].Code)
	assert.Equal(t, "ignore_property_update_keys.1.key", resp.Data.Errors[0].Field)
	assert.Equal(t, config.ErrCodeDuplicate, resp.Error.Code)
}

func TestValidateCommand_NotYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("print_to_chat: [\n"), 0o644))

	out, err := executeValidate(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, config.ErrCodeParse)
}

func TestValidateCommand_MissingFile(t *testing.T) {
	out, err := executeValidate(t, "text", "/nonexistent/resetaudio.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeReadFile+"]")
}
