package cache

import (
	"context"
	"time"
)

// Store 带过期时间的键值存储，值为已编码的字符串
type Store interface {
	// Get 不存在时返回 ("", false, nil)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	// Delete 删除不存在的键不报错
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Config 缓存配置
type Config struct {
	Type  string        `env:"CACHE_TYPE" default:"redis"` // redis | gocache | lru
	TTL   time.Duration `env:"CACHE_TTL_SECONDS" default:"60s"`
	Stale time.Duration `env:"CACHE_STALE_SECONDS" default:"120s"`
	Local LocalConfig
}

// LocalConfig 进程内缓存配置
type LocalConfig struct {
	MaxSize         int           `env:"CACHE_LOCAL_MAX_SIZE" default:"10000"`
	CleanupInterval time.Duration `env:"CACHE_LOCAL_CLEANUP" default:"10m"`
}

// Policy 返回读穿透使用的新鲜度策略
func (c Config) Policy() Policy {
	return Policy{TTL: c.TTL, Stale: c.Stale}
}
