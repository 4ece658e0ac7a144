package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStorageFromClient(client, "test:"), mr
}

type doc struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStorage(t)

	require.NoError(t, store.Set(ctx, "a", doc{Name: "x", Items: []string{"tea"}}, time.Minute))
	assert.True(t, mr.Exists("test:a"))

	var got doc
	require.NoError(t, store.Get(ctx, "a", &got))
	assert.Equal(t, doc{Name: "x", Items: []string{"tea"}}, got)

	require.NoError(t, store.Delete(ctx, "a"))
	assert.ErrorIs(t, store.Get(ctx, "a", &got), ErrNotFound)
}

func TestGetAndTouchExtendsTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStorage(t)

	require.NoError(t, store.Set(ctx, "s", doc{Name: "s"}, 10*time.Second))
	mr.FastForward(8 * time.Second)

	var got doc
	require.NoError(t, store.GetAndTouch(ctx, "s", time.Minute, &got))
	assert.Greater(t, mr.TTL("test:s"), 30*time.Second)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, store.GetAndTouch(ctx, "s", time.Minute, &got), ErrNotFound)
}

func TestLockOwnership(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStorage(t)

	ok, err := store.AcquireLock(ctx, "turn", "owner-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.AcquireLock(ctx, "turn", "owner-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// a stranger cannot release someone else's lock
	require.NoError(t, store.ReleaseLock(ctx, "turn", "owner-2"))
	assert.True(t, mr.Exists("test:turn"))

	require.NoError(t, store.ReleaseLock(ctx, "turn", "owner-1"))
	assert.False(t, mr.Exists("test:turn"))
}
