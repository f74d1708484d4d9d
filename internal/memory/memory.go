package memory

import (
	"sync"
	"time"
)

// Entry is one recorded interaction: the task an agent was given and the
// answer it produced. Entries are never mutated after Record.
type Entry struct {
	Prompt    string `json:"prompt"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

// Store is an append-only per-agent interaction log. Appends are serialized
// by the store's own lock so concurrent callers keep chronological order.
//
// Growth is bounded only when maxEntries > 0; an unbounded store grows for
// the whole process lifetime, so long-lived deployments should set a cap.
type Store struct {
	mu         sync.Mutex
	entries    []Entry
	maxEntries int
	now        func() time.Time
}

// NewStore creates a store. maxEntries caps retained entries, oldest first;
// 0 means unbounded.
func NewStore(maxEntries int) *Store {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &Store{maxEntries: maxEntries, now: time.Now}
}

// Record appends one interaction with a generated timestamp.
func (s *Store) Record(prompt, response string) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		Prompt:    prompt,
		Response:  response,
		Timestamp: s.now().Format(time.RFC3339),
	}
	s.entries = append(s.entries, entry)
	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		overflow := len(s.entries) - s.maxEntries
		s.entries = append([]Entry(nil), s.entries[overflow:]...)
	}
	return entry
}

// Recent returns the last n entries in chronological order.
func (s *Store) Recent(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || len(s.entries) == 0 {
		return nil
	}
	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Entry, n)
	copy(out, s.entries[len(s.entries)-n:])
	return out
}

// All returns the full ordered log.
func (s *Store) All() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len reports the number of retained entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
