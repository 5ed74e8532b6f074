// Package idempotency reserves client-supplied idempotency keys so a retried
// order submission is processed once.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store reserves and releases idempotency keys.
type Store interface {
	// Reserve claims key for ttl. It reports false when the key is already held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees key so the request can be retried.
	Release(ctx context.Context, key string) error
}

// RedisStore keeps keys in Redis with SETNX semantics.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore builds a RedisStore. Keys are namespaced with prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.fullKey(key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) fullKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

// NopStore accepts every key. It is used when no Redis is configured.
type NopStore struct{}

func (NopStore) Reserve(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (NopStore) Release(context.Context, string) error                        { return nil }

// Scope namespaces a client key by the caller it belongs to.
func Scope(owner, key string) string {
	return owner + ":" + key
}
