// Package hint remembers the last active tenant of each principal for the
// length of a session.
package hint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a hint outlives its last save.
const DefaultTTL = 12 * time.Hour

// DefaultSize bounds the principals an in-memory store remembers.
const DefaultSize = 1024

func key(principal string) string {
	return "docsession:active-tenant:" + principal
}

// RedisStore keeps hints in Redis with a TTL.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a Redis-backed hint store.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{redis: rdb, ttl: ttl}
}

// Load returns the principal's hint, or "" when there is none.
func (s *RedisStore) Load(ctx context.Context, principal string) (string, error) {
	v, err := s.redis.Get(ctx, key(principal)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load hint: %w", err)
	}
	return v, nil
}

// Save replaces the principal's hint and restarts its TTL.
func (s *RedisStore) Save(ctx context.Context, principal, tenantID string) error {
	if err := s.redis.Set(ctx, key(principal), tenantID, s.ttl).Err(); err != nil {
		return fmt.Errorf("save hint: %w", err)
	}
	return nil
}

// Clear removes the principal's hint.
func (s *RedisStore) Clear(ctx context.Context, principal string) error {
	if err := s.redis.Del(ctx, key(principal)).Err(); err != nil {
		return fmt.Errorf("clear hint: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

// MemoryStore keeps hints in process memory. It is used when no Redis is
// configured, so hints do not survive a restart. It holds at most size
// principals; the least recently used hint is dropped first.
type MemoryStore struct {
	hints *expirable.LRU[string, string]
}

// NewMemoryStore creates an in-memory hint store.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &MemoryStore{hints: expirable.NewLRU[string, string](size, nil, ttl)}
}

// Load returns the principal's hint, or "" when there is none or it expired.
func (s *MemoryStore) Load(_ context.Context, principal string) (string, error) {
	tenantID, _ := s.hints.Get(principal)
	return tenantID, nil
}

// Save replaces the principal's hint.
func (s *MemoryStore) Save(_ context.Context, principal, tenantID string) error {
	s.hints.Add(principal, tenantID)
	return nil
}

// Clear removes the principal's hint.
func (s *MemoryStore) Clear(_ context.Context, principal string) error {
	s.hints.Remove(principal)
	return nil
}
