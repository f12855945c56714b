package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisIdempotencyKeyPrefix namespaces processed-event markers so they cannot
// collide with application data in a shared Redis instance.
const redisIdempotencyKeyPrefix = "events:processed:"

// RedisIdempotencyStore is a Redis-backed implementation of IdempotencyStore.
// Use it when multiple consumer instances share a group and an in-memory store
// would let replicas re-process each other's events. Entries expire after the
// configured TTL.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store with the
// given TTL for processed-event markers.
func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		client: client,
		ttl:    ttl,
	}
}

// Contains returns true if the event ID has a live marker in Redis.
func (s *RedisIdempotencyStore) Contains(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, redisIdempotencyKeyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency lookup for event %s: %w", eventID, err)
	}
	return n > 0, nil
}

// Add writes a marker for the event ID with the store's TTL.
func (s *RedisIdempotencyStore) Add(ctx context.Context, eventID string) error {
	if err := s.client.Set(ctx, redisIdempotencyKeyPrefix+eventID, 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("record processed event %s: %w", eventID, err)
	}
	return nil
}
