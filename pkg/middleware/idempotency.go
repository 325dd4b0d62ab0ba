package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type IdemStore interface {
	// SetNX return true if set, false if exists
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type memoryIdemStore struct {
	mu  sync.Mutex
	m   map[string]time.Time
	now func() time.Time
}

func NewMemoryIdemStore() IdemStore {
	return &memoryIdemStore{m: make(map[string]time.Time), now: time.Now}
}

func (s *memoryIdemStore) SetNX(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	// 顺手清理过期键
	for k, exp := range s.m {
		if !exp.After(now) {
			delete(s.m, k)
		}
	}
	if _, ok := s.m[key]; ok {
		return false, nil
	}
	s.m[key] = now.Add(ttl)
	return true, nil
}

type redisIdemStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisIdemStore(client redis.UniversalClient, prefix string) IdemStore {
	return &redisIdemStore{client: client, prefix: prefix}
}

func (s *redisIdemStore) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+":idem:"+key, 1, ttl).Result()
}

type IdempotencyConfig struct {
	HeaderName string        // Idempotency-Key 的请求头名
	TTL        time.Duration // 决定一段时间内重复请求的拒绝窗口
	Store      IdemStore
}

// Idempotency 同一用户同一键在 TTL 内只放行一次；存储故障时放行
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryIdemStore()
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" {
			// 兜底以请求体生成哈希作为幂等键
			b, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(strings.NewReader(string(b)))
			h := sha256.Sum256(b)
			key = hex.EncodeToString(h[:])
		}
		owner := UserID(c)
		if owner == "" {
			owner = "anon:" + ClientID(c)
		}
		ok, err := cfg.Store.SetNX(c.Request.Context(), owner+":"+c.FullPath()+":"+key, cfg.TTL)
		if err == nil && !ok {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"ok": false, "error": "Duplicate request."})
			return
		}
		c.Next()
	}
}
