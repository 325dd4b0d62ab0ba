package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k1", "v1", time.Minute))
		v, ok, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v1", v)
	})

	t.Run("Missing key", func(t *testing.T) {
		v, ok, err := s.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("Delete many", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k2", "v2", time.Minute))
		require.NoError(t, s.Delete(ctx, "k1", "k2", "absent"))
		_, ok, _ := s.Get(ctx, "k1")
		assert.False(t, ok)
		_, ok, _ = s.Get(ctx, "k2")
		assert.False(t, ok)
		require.NoError(t, s.Delete(ctx))
	})
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisStore(client)
	exerciseStore(t, s)

	t.Run("Expiry is delegated to redis", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "ttl", "x", 3*time.Minute))
		assert.Equal(t, 3*time.Minute, mr.TTL("ttl"))
		mr.FastForward(3*time.Minute + time.Second)
		_, ok, err := s.Get(ctx, "ttl")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGoCacheStore(t *testing.T) {
	s := NewGoCacheStore(LocalConfig{CleanupInterval: time.Minute})
	defer s.Close()
	exerciseStore(t, s)
}

func TestLRUStore(t *testing.T) {
	s, err := NewLRUStore(LocalConfig{MaxSize: 2})
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)

	t.Run("Lazy expiry", func(t *testing.T) {
		ls := s.(*lruStore)
		clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		ls.now = func() time.Time { return clock }
		ctx := context.Background()
		require.NoError(t, ls.Set(ctx, "e", "x", time.Second))
		clock = clock.Add(time.Second)
		_, ok, _ := ls.Get(ctx, "e")
		assert.False(t, ok)
	})

	t.Run("Capacity eviction", func(t *testing.T) {
		ctx := context.Background()
		ls := s.(*lruStore)
		ls.now = time.Now
		require.NoError(t, ls.Set(ctx, "a", "1", 0))
		require.NoError(t, ls.Set(ctx, "b", "2", 0))
		require.NoError(t, ls.Set(ctx, "c", "3", 0))
		_, ok, _ := ls.Get(ctx, "a")
		assert.False(t, ok)
	})
}

func TestNewStore(t *testing.T) {
	_, err := NewStore(Config{Type: "redis"}, nil)
	assert.Error(t, err)

	s, err := NewStore(Config{Type: "gocache"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = NewStore(Config{Type: "memcached"}, nil)
	assert.Error(t, err)
}
