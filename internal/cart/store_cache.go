package cart

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore is a read-through, write-through LRU in front of another Store.
// It assumes it is the only writer to next and that access to one session is
// serialized by the caller, as Engine does.
type CachedStore struct {
	next  Store
	cache *lru.Cache[string, Cart]
}

func NewCachedStore(next Store, size int) (*CachedStore, error) {
	c, err := lru.New[string, Cart](size)
	if err != nil {
		return nil, fmt.Errorf("cart cache: %w", err)
	}
	return &CachedStore{next: next, cache: c}, nil
}

func (s *CachedStore) Ping(ctx context.Context) error { return s.next.Ping(ctx) }

func (s *CachedStore) Load(ctx context.Context, sessionID string) (Cart, error) {
	if c, ok := s.cache.Get(sessionID); ok {
		return c.Clone(), nil
	}

	c, err := s.next.Load(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}
	s.cache.Add(sessionID, c.Clone())
	return c, nil
}

func (s *CachedStore) Save(ctx context.Context, sessionID string, c Cart) error {
	if err := s.next.Save(ctx, sessionID, c); err != nil {
		s.cache.Remove(sessionID)
		return err
	}
	s.cache.Add(sessionID, c.Clone())
	return nil
}
