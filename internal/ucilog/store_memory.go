package ucilog

import (
	"context"
	"sync"
)

// MemoryStore keeps records in memory. Used in tests and when no database is
// configured.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemory constructs an empty in-memory UCI log.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// Append stores the record.
func (s *MemoryStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of everything appended so far.
func (s *MemoryStore) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
