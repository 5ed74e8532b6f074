package idempotency

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_ReserveRelease(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "orderdesk-test")
	require.NoError(t, store.Ping(ctx))

	key := Scope("customer-1", uuid.NewString())

	ok, err := store.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Release(ctx, key))
	ok, err = store.Reserve(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNopStoreAlwaysReserves(t *testing.T) {
	var s Store = NopStore{}
	ok, err := s.Reserve(context.Background(), "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
