package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resetaudio/internal/store"
)

var journalEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seedJournal writes a notification burst, its reset and an unrelated
// rebuild step.
func seedJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resetaudio.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	entries := []store.Entry{
		{Kind: "notification", Name: "OnPropertyValueChanged", Detail: map[string]string{"count": "1", "device": "speakers"}},
		{Kind: "notification", Name: "OnPropertyValueChanged", Detail: map[string]string{"count": "2", "device": "speakers"}},
		{Token: "run-1", Kind: "reset", Name: "DefaultDevicePropertyChange"},
		{Token: "run-2", Kind: "rebuild_step", Name: "step 1"},
	}
	for i, e := range entries {
		e.At = journalEpoch.Add(time.Duration(i*50) * time.Millisecond)
		_, err := st.Append(context.Background(), e)
		require.NoError(t, err)
	}
	return path
}

func executeJournal(t *testing.T, format string, verbose bool, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewJournalCommand(&RootOptions{Format: format, Verbose: verbose})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestJournalCommand(t *testing.T) {
	out, err := executeJournal(t, "text", false, "--db", seedJournal(t))
	require.NoError(t, err)

	assert.Contains(t, out, "[1] 2024-01-01T00:00:00.000Z notification OnPropertyValueChanged {count=1 device=speakers}")
	assert.Contains(t, out, "[3] 2024-01-01T00:00:00.100Z reset DefaultDevicePropertyChange\n")
	assert.Contains(t, out, "[4] 2024-01-01T00:00:00.150Z rebuild_step step 1\n")
	assert.Contains(t, out, "Shown: 4 of 4 (notification=2, rebuild_step=1, reset=1)")
	assert.NotContains(t, out, "token=")
}

func TestJournalCommand_VerboseShowsTokens(t *testing.T) {
	out, err := executeJournal(t, "text", true, "--db", seedJournal(t), "--kind", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "reset DefaultDevicePropertyChange token=run-1")
	assert.Contains(t, out, "Shown: 1 of 4 (reset=1)")
}

func TestJournalCommand_FiltersJSON(t *testing.T) {
	path := seedJournal(t)

	tests := []struct {
		name     string
		args     []string
		wantSeqs []int64
	}{
		{"kind", []string{"--kind", "notification"}, []int64{1, 2}},
		{"token", []string{"--token", "run-2"}, []int64{4}},
		{"after", []string{"--after", "2"}, []int64{3, 4}},
		{"limit", []string{"--limit", "3"}, []int64{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeJournal(t, "json", false, append([]string{"--db", path}, tt.args...)...)
			require.NoError(t, err)

			var resp struct {
				Status string        `json:"status"`
				Data   JournalResult `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "ok", resp.Status)

			var seqs []int64
			for _, e := range resp.Data.Entries {
				seqs = append(seqs, e.Seq)
			}
			assert.Equal(t, tt.wantSeqs, seqs)
			assert.Equal(t, int64(4), resp.Data.Stats.Total)
			assert.Equal(t, int64(4), resp.Data.Stats.LastSeq)
		})
	}
}

func TestJournalCommand_Prune(t *testing.T) {
	path := seedJournal(t)

	out, err := executeJournal(t, "json", false, "--db", path, "--prune", "1")
	require.NoError(t, err)

	var resp struct {
		Data JournalResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, int64(3), resp.Data.Stats.Pruned)
	assert.Equal(t, int64(1), resp.Data.Stats.Total)
	assert.Equal(t, int64(4), resp.Data.Stats.LastSeq)
	require.Len(t, resp.Data.Entries, 1)
	assert.Equal(t, "rebuild_step", resp.Data.Entries[0].Kind)
}

func TestJournalCommand_Empty(t *testing.T) {
	out, err := executeJournal(t, "text", false, "--db", seedJournal(t), "--kind", "rebuild_error")
	require.NoError(t, err)
	assert.Equal(t, "No journal entries found.\n", out)
}

func TestJournalCommand_MissingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")

	out, err := executeJournal(t, "text", false, "--db", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "journal database not found")
	assert.NoFileExists(t, path)
}

func TestJournalCommand_RequiresDB(t *testing.T) {
	_, err := executeJournal(t, "text", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"db\" not set")
}
