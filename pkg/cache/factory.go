package cache

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// NewStore 按类型创建存储；redis 类型复用调用方持有的客户端
func NewStore(config Config, client redis.UniversalClient) (Store, error) {
	switch strings.ToLower(config.Type) {
	case "gocache":
		return NewGoCacheStore(config.Local), nil
	case "lru":
		return NewLRUStore(config.Local)
	case "redis", "":
		if client == nil {
			return nil, fmt.Errorf("redis cache requires a redis client")
		}
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}
