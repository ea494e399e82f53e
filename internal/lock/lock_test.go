package lock

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	m, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return NewRedisLocker(client, ttl), m
}

func TestTryLock_Exclusive(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute)
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "stock")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "stock")
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	_, ok, err = l.TryLock(ctx, "orders")
	require.NoError(t, err)
	assert.True(t, ok, "locks are per task")

	require.NoError(t, unlock(ctx))
	_, ok, err = l.TryLock(ctx, "stock")
	require.NoError(t, err)
	assert.True(t, ok, "released lock can be taken again")
}

func TestTryLock_SetsTTL(t *testing.T) {
	l, m := newTestLocker(t, time.Minute)

	_, ok, err := l.TryLock(context.Background(), "stock")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Minute, m.TTL(DefaultPrefix+"stock"))
}

func TestUnlock_OnlyOwnToken(t *testing.T) {
	l, m := newTestLocker(t, time.Minute)
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "stock")
	require.NoError(t, err)
	require.True(t, ok)

	// The lock expires and another process takes it.
	m.FastForward(2 * time.Minute)
	_, ok, err = l.TryLock(ctx, "stock")
	require.NoError(t, err)
	require.True(t, ok)
	holder, err := l.Holder(ctx, "stock")
	require.NoError(t, err)

	require.NoError(t, unlock(ctx))
	after, err := l.Holder(ctx, "stock")
	require.NoError(t, err)
	assert.Equal(t, holder, after, "stale unlock must not release the new holder")
}

func TestHolder_Free(t *testing.T) {
	l, _ := newTestLocker(t, 0)
	holder, err := l.Holder(context.Background(), "stock")
	require.NoError(t, err)
	assert.Empty(t, holder)
	assert.Equal(t, DefaultTTL, l.ttl)
}

func TestConnect(t *testing.T) {
	m, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	client, err := Connect(context.Background(), "redis://"+m.Addr())
	require.NoError(t, err)
	client.Close()

	client, err = Connect(context.Background(), m.Addr())
	require.NoError(t, err)
	client.Close()

	_, err = Connect(context.Background(), "127.0.0.1:1")
	assert.Error(t, err)
}
