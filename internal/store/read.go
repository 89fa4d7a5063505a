package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Filter selects journal entries. Zero fields match everything.
type Filter struct {
	Kind  string
	Token string

	// AfterSeq returns only entries with seq > AfterSeq.
	AfterSeq int64

	// Limit caps the number of entries (0 = no limit).
	Limit int
}

// Read returns entries matching f ORDER BY seq ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Read(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.Token != "" {
		where = append(where, "token = ?")
		args = append(args, f.Token)
	}
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}

	query := "SELECT seq, token, kind, name, detail, at_unix_ns FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// LastSeq returns the highest sequence number ever assigned, or 0.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT seq FROM sqlite_sequence WHERE name = 'events'").Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e      Entry
		detail string
		atNs   int64
	)
	if err := rows.Scan(&e.Seq, &e.Token, &e.Kind, &e.Name, &detail, &atNs); err != nil {
		return Entry{}, fmt.Errorf("scan event: %w", err)
	}
	d, err := unmarshalDetail(detail)
	if err != nil {
		return Entry{}, fmt.Errorf("event %d: %w", e.Seq, err)
	}
	e.Detail = d
	e.At = time.Unix(0, atNs).UTC()
	return e, nil
}
