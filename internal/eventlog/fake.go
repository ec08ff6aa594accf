package eventlog

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// FakeEventLog is an in-memory implementation of EventLog for unit tests.
type FakeEventLog struct {
	mu      sync.RWMutex
	entries []EventRecord
	closed  bool
}

var _ EventLog = (*FakeEventLog)(nil)

// NewFakeEventLog creates a new FakeEventLog with empty state.
func NewFakeEventLog() *FakeEventLog {
	return &FakeEventLog{}
}

// Write appends a structured entry.
func (f *FakeEventLog) Write(message string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("event log closed")
	}
	f.entries = append(f.entries, EventRecord{
		Timestamp: time.Now(),
		Message:   message,
		Fields:    maps.Clone(fields),
	})
	return nil
}

// Entries returns a copy of all entries written so far.
func (f *FakeEventLog) Entries() []EventRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.entries)
}

// Matching returns entries whose field equals value.
func (f *FakeEventLog) Matching(field, value string) []EventRecord {
	var out []EventRecord
	for _, e := range f.Entries() {
		if e.Fields[field] == value {
			out = append(out, e)
		}
	}
	return out
}

// Close marks the log closed; further writes fail.
func (f *FakeEventLog) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
