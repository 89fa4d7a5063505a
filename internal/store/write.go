package store

import (
	"context"
	"fmt"
	"time"
)

// Entry is one journal row.
type Entry struct {
	// Seq is assigned by Append.
	Seq int64

	// Token correlates the entries of one reset or rebuild run.
	Token string

	// Kind classifies the entry, e.g. "notification" or "rebuild_step".
	Kind string

	// Name is the callback, reason or call the entry is about.
	Name string

	Detail map[string]string

	At time.Time
}

// Append writes e and returns its sequence number. e.Seq is ignored.
func (s *Store) Append(ctx context.Context, e Entry) (int64, error) {
	if e.Kind == "" {
		return 0, fmt.Errorf("append: kind is required")
	}
	detail, err := marshalDetail(e.Detail)
	if err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (token, kind, name, detail, at_unix_ns)
		VALUES (?, ?, ?, ?, ?)
	`,
		e.Token,
		e.Kind,
		e.Name,
		detail,
		e.At.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append: last insert id: %w", err)
	}
	return seq, nil
}

// Prune deletes all but the newest keep entries and returns how many were
// removed. Sequence numbers are never reused.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM events
		WHERE seq <= (SELECT COALESCE(MAX(seq), 0) FROM events) - ?
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune: rows affected: %w", err)
	}
	return n, nil
}
