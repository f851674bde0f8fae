// Package memo provides a keyed memoization cache with hit, miss and size
// counters and a pluggable backing store.
package memo

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Store persists memoized values. Get reports found=false on a miss; an error
// means the store itself failed.
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V) error
}

// Stats is a point-in-time snapshot of a Memo's counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int64 `json:"size"`
}

// Memo caches the result of fetch calls by key. Failed fetches are never
// stored. Concurrent misses on one key are not coalesced: each caller runs
// fetch and the last Set wins.
type Memo[V any] struct {
	name   string
	store  Store[V]
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	size   atomic.Int64
}

// New creates a Memo over store. A nil store gets a fresh MapStore.
func New[V any](name string, store Store[V], logger *slog.Logger) *Memo[V] {
	if store == nil {
		store = NewMapStore[V]()
	}
	return &Memo[V]{name: name, store: store, logger: logger}
}

// Name identifies the memo in logs and metrics.
func (m *Memo[V]) Name() string { return m.name }

// Do returns the value stored under key, calling fetch on a miss. The bool
// result reports whether the value came from the store.
func (m *Memo[V]) Do(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, bool, error) {
	v, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Warn("memo store get failed, treating as miss", "memo", m.name, "key", key, "error", err)
	} else if ok {
		m.hits.Add(1)
		return v, true, nil
	}

	m.misses.Add(1)
	v, err = fetch(ctx)
	if err != nil {
		var zero V
		return zero, false, err
	}

	if err := m.store.Set(ctx, key, v); err != nil {
		m.logger.Warn("memo store set failed", "memo", m.name, "key", key, "error", err)
		return v, false, nil
	}
	m.size.Add(1)
	return v, false, nil
}

// Stats returns a snapshot of the counters.
func (m *Memo[V]) Stats() Stats {
	return Stats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Size:   m.size.Load(),
	}
}
