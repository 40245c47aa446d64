package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uuid.UUID]memoryEntry
}

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uuid.UUID]memoryEntry),
	}
}

func (s *MemoryStore) Put(_ context.Context, st State) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.New()
	s.entries[token] = memoryEntry{state: st, expiresAt: s.now().Add(s.ttl)}
	return token, nil
}

func (s *MemoryStore) Take(_ context.Context, token uuid.UUID) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[token]
	if !ok {
		return State{}, ErrNotFound
	}
	delete(s.entries, token)
	if s.now().After(e.expiresAt) {
		return State{}, ErrNotFound
	}
	return e.state, nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }
