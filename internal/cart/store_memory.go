package cart

import (
	"context"
	"sync"
)

type MemStore struct {
	mu sync.RWMutex
	m  map[string]Cart
}

func NewMemStore() *MemStore {
	return &MemStore{m: map[string]Cart{}}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Load(ctx context.Context, sessionID string) (Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.m[sessionID]
	if !ok {
		return Empty(), nil
	}
	return c.Clone(), nil
}

func (s *MemStore) Save(ctx context.Context, sessionID string, c Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sessionID] = c.Clone()
	return nil
}
