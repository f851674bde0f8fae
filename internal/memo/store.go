package memo

import (
	"context"
	"sync"
)

// MapStore is an in-process Store that lives as long as the process.
// Entries are never evicted.
type MapStore[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// NewMapStore returns an empty MapStore.
func NewMapStore[V any]() *MapStore[V] {
	return &MapStore[V]{entries: make(map[string]V)}
}

func (s *MapStore[V]) Get(_ context.Context, key string) (V, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *MapStore[V]) Set(_ context.Context, key string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

// Len is the number of distinct keys held.
func (s *MapStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
