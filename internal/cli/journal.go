package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/resetaudio/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
	Kind     string
	Token    string
	After    int64
	Limit    int
	Prune    int // keep only this many newest entries before reading (0 = no pruning)
}

// JournalEntry is one journal row.
type JournalEntry struct {
	Seq    int64             `json:"seq"`
	At     time.Time         `json:"at"`
	Token  string            `json:"token,omitempty"`
	Kind   string            `json:"kind"`
	Name   string            `json:"name,omitempty"`
	Detail map[string]string `json:"detail,omitempty"`
}

// JournalStats summarizes a journal query.
type JournalStats struct {
	Shown   int            `json:"shown"`
	Total   int64          `json:"total"`
	LastSeq int64          `json:"last_seq"`
	Pruned  int64          `json:"pruned,omitempty"`
	ByKind  map[string]int `json:"by_kind"`
}

// JournalResult holds the complete journal output.
type JournalResult struct {
	Entries []JournalEntry `json:"entries"`
	Stats   JournalStats   `json:"stats"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the plugin's event journal",
		Long: `Show entries of the plugin's event journal in sequence order.

Every intercepted notification, reset and rebuild step is journaled.
Entries of one reset or rebuild share a token.

Examples:
  resetaudio journal --db ./resetaudio.db
  resetaudio journal --db ./resetaudio.db --kind reset
  resetaudio journal --db ./resetaudio.db --token 6f1c... --format json
  resetaudio journal --db ./resetaudio.db --prune 1000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only entries of this kind (notification, reset, rebuild_step, ...)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "only entries of this reset or rebuild")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only entries with a sequence number above this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 = all)")
	cmd.Flags().IntVar(&opts.Prune, "prune", 0, "delete all but the newest N entries first")

	return cmd
}

func runJournal(ctx context.Context, opts *JournalOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	// Opening creates missing files; a typo must not leave an empty journal behind.
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeDatabase, fmt.Sprintf("journal database not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "journal database not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var stats JournalStats
	if opts.Prune > 0 {
		if stats.Pruned, err = st.Prune(ctx, opts.Prune); err != nil {
			return WrapExitError(ExitCommandError, "failed to prune journal", err)
		}
		formatter.VerboseLog("Pruned %d entries", stats.Pruned)
	}

	entries, err := st.Read(ctx, store.Filter{
		Kind:     opts.Kind,
		Token:    opts.Token,
		AfterSeq: opts.After,
		Limit:    opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	if stats.Total, err = st.Count(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to count journal", err)
	}
	if stats.LastSeq, err = st.LastSeq(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := JournalResult{Entries: make([]JournalEntry, 0, len(entries))}
	stats.ByKind = make(map[string]int)
	for _, e := range entries {
		result.Entries = append(result.Entries, JournalEntry{
			Seq:    e.Seq,
			At:     e.At.UTC(),
			Token:  e.Token,
			Kind:   e.Kind,
			Name:   e.Name,
			Detail: e.Detail,
		})
		stats.ByKind[e.Kind]++
	}
	stats.Shown = len(result.Entries)
	result.Stats = stats

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	outputJournalText(formatter, result)
	return nil
}

func outputJournalText(formatter *OutputFormatter, result JournalResult) {
	w := formatter.Writer
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "No journal entries found.")
		return
	}

	for _, e := range result.Entries {
		fmt.Fprintf(w, "[%d] %s %s", e.Seq, e.At.Format("2006-01-02T15:04:05.000Z07:00"), e.Kind)
		if e.Name != "" {
			fmt.Fprintf(w, " %s", e.Name)
		}
		if e.Token != "" && formatter.Verbose {
			fmt.Fprintf(w, " token=%s", e.Token)
		}
		if len(e.Detail) > 0 {
			fmt.Fprintf(w, " {%s}", formatDetail(e.Detail))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	kinds := slices.Sorted(maps.Keys(result.Stats.ByKind))
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s=%d", k, result.Stats.ByKind[k])
	}
	fmt.Fprintf(w, "Shown: %d of %d (%s)\n", result.Stats.Shown, result.Stats.Total, strings.Join(parts, ", "))
}

func formatDetail(detail map[string]string) string {
	keys := slices.Sorted(maps.Keys(detail))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + detail[k]
	}
	return strings.Join(parts, " ")
}
