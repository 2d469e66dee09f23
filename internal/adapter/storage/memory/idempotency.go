package memory

import (
	"context"
	"sync"
)

type cachedResponse struct {
	status int
	body   []byte
}

// IdempotencyStore remembers responses by Idempotency-Key. The first Reserve
// wins; a reserved key has status 0 until Save fills it in.
type IdempotencyStore struct {
	mu    sync.Mutex
	items map[string]cachedResponse
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{items: make(map[string]cachedResponse)}
}

func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; ok {
		return false, nil
	}
	s.items[key] = cachedResponse{}
	return true, nil
}

func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (int, []byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return 0, nil, false, nil
	}
	return item.status, append([]byte(nil), item.body...), true, nil
}

// Save fills in a reserved key. A key that already holds a response keeps it.
func (s *IdempotencyStore) Save(ctx context.Context, key string, status int, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[key]; ok && item.status != 0 {
		return nil
	}
	s.items[key] = cachedResponse{status: status, body: append([]byte(nil), body...)}
	return nil
}

// Release drops a reservation that never got a response.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[key]; ok && item.status == 0 {
		delete(s.items, key)
	}
	return nil
}
