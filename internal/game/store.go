package game

import (
	"context"
	"sync"
)

// SessionPersistence puts and fetches session snapshots.
// Redis in production, InMemorySessionStore in tests and local dev.
type SessionPersistence interface {
	Save(ctx context.Context, sessionID string, snap SessionSnapshot) error
	Load(ctx context.Context, sessionID string) (SessionSnapshot, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

type InMemorySessionStore struct {
	mu sync.Mutex
	m  map[string]SessionSnapshot
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		m: make(map[string]SessionSnapshot),
	}
}

func (s *InMemorySessionStore) Save(_ context.Context, sessionID string, snap SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sessionID] = snap
	return nil
}

func (s *InMemorySessionStore) Load(_ context.Context, sessionID string) (SessionSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.m[sessionID]
	return snap, ok, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, sessionID)
	return nil
}
