package history

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu     sync.RWMutex
	bySess map[string][]Message
	gens   map[string]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bySess: make(map[string][]Message), gens: make(map[string]uint64)}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(sessionID, msgs)
	return nil
}

func (s *MemoryStore) AppendIf(_ context.Context, sessionID string, gen uint64, msgs ...Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[sessionID] != gen {
		return false, nil
	}
	s.appendLocked(sessionID, msgs)
	return true, nil
}

func (s *MemoryStore) appendLocked(sessionID string, msgs []Message) {
	h := append(s.bySess[sessionID], msgs...)
	if l := len(h); l > MaxMessages {
		h = append([]Message(nil), h[l-MaxMessages:]...)
	}
	s.bySess[sessionID] = h
}

func (s *MemoryStore) Generation(_ context.Context, sessionID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gens[sessionID], nil
}

func (s *MemoryStore) List(_ context.Context, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.bySess[sessionID]
	out := make([]Message, len(src))
	copy(out, src)
	return out, nil
}

func (s *MemoryStore) Reset(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.bySess, sessionID)
	s.gens[sessionID]++
	s.mu.Unlock()
	return nil
}
