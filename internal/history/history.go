// Package history keeps a bounded, most-recent-first record of dictation outcomes.
package history

import (
	"sync"
	"time"
)

// Capacity is the maximum number of retained entries.
const Capacity = 20

// Entry is one immutable cycle outcome.
type Entry struct {
	Timestamp time.Time     `json:"timestamp"`
	Text      string        `json:"text,omitempty"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// Log is an in-memory ring of entries, newest first. The zero value is usable.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Add inserts an entry at the head, evicting from the tail beyond Capacity.
func (l *Log) Add(text string, duration time.Duration, success bool, errText string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now
	if l.now != nil {
		now = l.now
	}
	entry := Entry{
		Timestamp: now(),
		Text:      text,
		Duration:  duration,
		Success:   success,
		Error:     errText,
	}

	l.entries = append(l.entries, Entry{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = entry
	if len(l.entries) > Capacity {
		l.entries = l.entries[:Capacity]
	}
	return entry
}

// Entries returns a most-recent-first copy.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Get returns the entry at index i, where 0 is the newest.
func (l *Log) Get(i int) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[i], true
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear drops every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
