package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimiterConfig 示例：Rate "120-M"、SkipPaths ["/health", "/metrics"]
type RateLimiterConfig struct {
	Rate      string
	Prefix    string
	SkipPaths []string
}

// NewRateLimiter 有 redis 客户端时多实例共享计数，否则退回内存
func NewRateLimiter(cfg RateLimiterConfig, client *redis.Client) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		return nil, err
	}
	prefix := cfg.Prefix + ":ratelimit"
	var store limiter.Store
	if client != nil {
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: limiter.DefaultCleanUpInterval})
	}

	lim := limiter.New(store, rate)
	mw := mgin.NewMiddleware(lim,
		mgin.WithKeyGetter(limitKey),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "Too many requests."})
		}),
		// 存储故障不拦截业务
		mgin.WithErrorHandler(func(c *gin.Context, err error) { c.Next() }),
	)
	return func(c *gin.Context) {
		for _, p := range cfg.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}
		mw(c)
	}, nil
}

// 登录用户按用户限流，匿名按 IP
func limitKey(c *gin.Context) string {
	if uid := UserID(c); uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.ClientIP()
}
