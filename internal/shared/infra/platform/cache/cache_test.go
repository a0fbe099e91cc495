package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type entry struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Minute), mr
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	c, _ := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", entry{ID: "a", Count: 2}, 0))

	var got entry
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, entry{ID: "a", Count: 2}, got)

	require.NoError(t, c.Delete(ctx, "k"))
	hit, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCache_TTL(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", entry{ID: "a"}, 5))
	assert.Equal(t, 5*time.Second, mr.TTL("k"))

	mr.FastForward(6 * time.Second)

	var got entry
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCache_WithPrefix(t *testing.T) {
	c, mr := newRedisCache(t)
	c.WithPrefix("notifier:")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "stats:admin", entry{ID: "a"}, 0))

	assert.True(t, mr.Exists("notifier:stats:admin"))
	assert.False(t, mr.Exists("stats:admin"))

	require.NoError(t, c.Delete(ctx, "stats:admin"))
	assert.False(t, mr.Exists("notifier:stats:admin"))
}

func TestInMemoryCache_Expiry(t *testing.T) {
	c := NewInMemoryCache(20*time.Millisecond, time.Hour)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", entry{ID: "a"}, 0))

	var got entry
	hit, _ := c.Get(ctx, "k", &got)
	assert.True(t, hit)

	time.Sleep(40 * time.Millisecond)
	hit, _ = c.Get(ctx, "k", &got)
	assert.False(t, hit)
}

type failingCache struct{}

func (failingCache) Get(context.Context, string, interface{}) (bool, error) {
	return false, errors.New("down")
}
func (failingCache) Set(context.Context, string, interface{}, int) error { return errors.New("down") }
func (failingCache) Delete(context.Context, string) error { return errors.New("down") }
func (failingCache) Close() error { return nil }

func TestSafeHelpers_SwallowErrors(t *testing.T) {
	log := zap.NewNop()
	ctx := context.Background()

	var got entry
	assert.False(t, SafeGet(ctx, failingCache{}, "k", &got, log))
	assert.NotPanics(t, func() {
		SafeSet(ctx, failingCache{}, "k", entry{}, 0, log)
		SafeDelete(ctx, failingCache{}, log, "a", "b")
		SafeSet(ctx, nil, "k", entry{}, 0, log)
	})
}

func TestSafeSet_IgnoresCancelledRequest(t *testing.T) {
	c := NewInMemoryCache(time.Minute, time.Hour)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	SafeSet(ctx, c, "k", entry{ID: "x"}, 0, zap.NewNop())

	var got entry
	assert.True(t, SafeGet(context.Background(), c, "k", &got, zap.NewNop()))
}
