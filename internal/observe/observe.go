// Package observe keeps per-property-key counters of the device property
// notifications seen on the default render endpoint, for display and for
// deciding which keys to suppress.
package observe

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roach88/resetaudio/internal/notify"
)

// Record is what is known about one property key.
type Record struct {
	Count    int
	LastSeen time.Time
}

// Entry pairs a key with its record in a Snapshot.
type Entry struct {
	Key    notify.PropertyKey
	Record Record
}

// Suppressor decides whether notifications for a key are ignored.
// It is consulted on every call so configuration edits apply immediately.
type Suppressor interface {
	IsSuppressed(key notify.PropertyKey) bool
}

// State is the observation table.
//
// Thread-safety: all methods are safe for concurrent use. Notification
// callbacks arrive on OS threads while the presentation layer reads.
type State struct {
	mu       sync.Mutex
	records  map[notify.PropertyKey]Record
	suppress Suppressor
}

// New creates an empty State. s may be nil, in which case nothing is
// suppressed.
func New(s Suppressor) *State {
	return &State{
		records:  make(map[notify.PropertyKey]Record),
		suppress: s,
	}
}

// Record counts one notification for key at now and returns the new record.
// Suppressed keys are counted too.
func (s *State) Record(key notify.PropertyKey, now time.Time) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records[key]
	r.Count++
	r.LastSeen = now
	s.records[key] = r
	return r
}

// Get returns the record for key.
func (s *State) Get(key notify.PropertyKey) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	return r, ok
}

// Len returns the number of distinct keys seen.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Snapshot returns a copy of every record, most recently seen first. Ties
// are ordered by key string.
func (s *State) Snapshot() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.records))
	for k, r := range s.records {
		out = append(out, Entry{Key: k, Record: r})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Record.LastSeen, out[j].Record.LastSeen
		if !a.Equal(b) {
			return a.After(b)
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Clear forgets every record. Suppression is configuration and is not
// affected.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.records)
}

// IsSuppressed reports whether key is ignored for reset purposes.
func (s *State) IsSuppressed(key notify.PropertyKey) bool {
	if s.suppress == nil {
		return false
	}
	return s.suppress.IsSuppressed(key)
}

// FormatTimeAgo renders how long before now t was, in whole units.
func FormatTimeAgo(now, t time.Time) string {
	secs := int64(now.Sub(t) / time.Second)
	switch {
	case secs <= 0:
		return "Now"
	case secs < 60:
		return fmt.Sprintf("%ds ago", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm ago", secs/60)
	default:
		return fmt.Sprintf("%dh ago", secs/3600)
	}
}
