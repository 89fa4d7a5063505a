// Package store provides the SQLite-backed event journal.
//
// The journal is append-only: every intercepted notification, reset and
// rebuild step is written as one row so a session can be inspected after
// the fact.
//
// # Ordering
//
//   - seq is an AUTOINCREMENT key assigned by SQLite, strictly increasing
//     for the life of the database file, even across Prune.
//   - All queries ORDER BY seq ASC. Timestamps are informational only.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
