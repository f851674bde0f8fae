// Package rediscache backs memo.Memo with Redis so derived tables are shared
// between processes.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store implements memo.Store with JSON-encoded values under a key prefix.
type Store[V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Open creates a Redis client for addr. It does not dial until first use.
func Open(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewStore returns a Store writing keys as "<prefix>:<key>". A zero ttl
// keeps entries until they are removed externally.
func NewStore[V any](client *redis.Client, prefix string, ttl time.Duration) *Store[V] {
	return &Store[V]{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store[V]) key(k string) string {
	return s.prefix + ":" + k
}

func (s *Store[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var v V
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store[V]) Set(ctx context.Context, key string, value V) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.key(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity; used as a readiness signal.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
