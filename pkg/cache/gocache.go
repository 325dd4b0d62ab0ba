package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// goCacheStore go-cache包装器，适合单实例部署
type goCacheStore struct {
	cache *gocache.Cache
}

// NewGoCacheStore 创建基于go-cache的本地缓存
func NewGoCacheStore(config LocalConfig) Store {
	cleanup := config.CleanupInterval
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &goCacheStore{cache: gocache.New(gocache.NoExpiration, cleanup)}
}

func (gs *goCacheStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, found := gs.cache.Get(key)
	if !found {
		return "", false, nil
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (gs *goCacheStore) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	gs.cache.Set(key, value, expiration)
	return nil
}

func (gs *goCacheStore) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		gs.cache.Delete(k)
	}
	return nil
}

func (gs *goCacheStore) Close() error {
	gs.cache.Flush()
	return nil
}
