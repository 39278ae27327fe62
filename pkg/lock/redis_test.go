package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewRedisClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisLock(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)

	first := NewRedisLock(client, "tick", time.Minute)
	second := NewRedisLock(client, "tick", time.Minute)

	release, ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("lock:tick"))

	_, ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "lock is held")

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("lock:tick"))

	_, ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExpiry(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)

	l := NewRedisLock(client, "tick", time.Second)
	staleRelease, ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok, "expired lock can be retaken")

	// The stale holder must not delete the new holder's key
	require.NoError(t, staleRelease(ctx))
	assert.True(t, mr.Exists("lock:tick"))
}

func TestRedisLockUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client, err := NewRedisClient("redis://" + mr.Addr())
	require.NoError(t, err)
	defer client.Close()
	mr.Close()

	_, ok, err := NewRedisLock(client, "tick", time.Minute).Acquire(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisClientBadURL(t *testing.T) {
	_, err := NewRedisClient("http://nope")
	assert.Error(t, err)
}
