package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*SessionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionCache(client, time.Minute), mr
}

func TestSessionCache_SetGetDelete(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "tok", CachedSession{SessionID: 7, UserID: 42}))
	got, ok, err := c.Get(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, &CachedSession{SessionID: 7, UserID: 42}, got)

	require.NoError(t, c.Delete(ctx, "tok"))
	_, ok, err = c.Get(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionCache_Expires(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "tok", CachedSession{SessionID: 1, UserID: 1}))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionCache_NilIsNoop(t *testing.T) {
	var c *SessionCache
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "tok", CachedSession{SessionID: 1, UserID: 1}))
	_, ok, err := c.Get(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.Delete(ctx, "tok"))
}

func TestSessionCache_CorruptValueIsMiss(t *testing.T) {
	c, mr := newCache(t)
	require.NoError(t, mr.Set(sessionKey("tok"), "garbage"))

	_, ok, err := c.Get(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, ok)
}
