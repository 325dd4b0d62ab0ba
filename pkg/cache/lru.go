package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type lruEntry struct {
	value     string
	expiresAt time.Time
}

// lruStore 有容量上限的本地缓存，过期在读取时惰性判断
type lruStore struct {
	cache *lru.Cache[string, lruEntry]
	now   func() time.Time
}

func NewLRUStore(config LocalConfig) (Store, error) {
	size := config.MaxSize
	if size <= 0 {
		size = 10000
	}
	c, err := lru.New[string, lruEntry](size)
	if err != nil {
		return nil, err
	}
	return &lruStore{cache: c, now: time.Now}, nil
}

func (ls *lruStore) Get(ctx context.Context, key string) (string, bool, error) {
	e, ok := ls.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !ls.now().Before(e.expiresAt) {
		ls.cache.Remove(key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (ls *lruStore) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	e := lruEntry{value: value}
	if expiration > 0 {
		e.expiresAt = ls.now().Add(expiration)
	}
	ls.cache.Add(key, e)
	return nil
}

func (ls *lruStore) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		ls.cache.Remove(k)
	}
	return nil
}

func (ls *lruStore) Close() error {
	ls.cache.Purge()
	return nil
}
