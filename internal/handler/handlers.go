package handlers

import (
	"context"
	"net/http"
	"time"

	"Alora/internal/documents"
	"Alora/internal/history"
	"Alora/internal/interview"
	"Alora/internal/models"
	"Alora/internal/schedule"
	"Alora/pkg/media/bridge"
	"Alora/pkg/metrics"
	"Alora/pkg/middleware"
	"Alora/pkg/response"
	"Alora/pkg/sse"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// Deps 各路由依赖的服务，Redis / Bridge / Gatherer 可以为空
type Deps struct {
	Repo      *models.Repository
	Redis     redis.UniversalClient
	Sessions  *interview.Manager
	History   *history.Service
	Schedules *schedule.Service
	Documents *documents.Service
	Hub       *sse.Hub
	Bridge    *bridge.Transport
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Log       *zap.Logger
}

type Options struct {
	APIPrefix   string
	JWTSecret   string
	CronSecret  string
	RedisPrefix string
	RateLimit   gin.HandlerFunc
	IdemStore   middleware.IdemStore
}

type Handlers struct {
	Deps
	opts Options
	// 已确认建档的用户，避免每个请求都写一次 profiles
	profiles *lru.Cache[string, string]
}

func NewHandlers(deps Deps, opts Options) *Handlers {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}
	if opts.RedisPrefix == "" {
		opts.RedisPrefix = "alora"
	}
	profiles, _ := lru.New[string, string](4096)
	return &Handlers{Deps: deps, opts: opts, profiles: profiles}
}

// Register 注册全部路由
func (h *Handlers) Register(engine *gin.Engine) {
	engine.Use(metrics.MonitorMiddleware(h.Metrics))
	engine.GET("/health", h.HealthCheck)
	if h.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
	}

	// 定时任务入口不走用户鉴权和限流
	cron := engine.Group(h.opts.APIPrefix + "/cron")
	cron.Use(middleware.SharedSecret("x-cron-secret", h.opts.CronSecret))
	cron.POST("/schedules", h.sweepSchedules)

	r := engine.Group(h.opts.APIPrefix)
	r.Use(middleware.Identity(h.opts.JWTSecret, h.Log), h.ensureProfile)
	if h.opts.RateLimit != nil {
		r.Use(h.opts.RateLimit)
	}
	h.registerSessionRoutes(r)
	h.registerInterviewRoutes(r)
	h.registerScheduleRoutes(r)
	h.registerDocumentRoutes(r)
	h.registerAccountRoutes(r)
}

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.Repo.DB().DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database connection failed"})
		return
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database ping failed"})
		return
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "redis ping failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "sessions": h.Sessions.Len()})
}

// ensureProfile 登录用户第一次出现时补建档案
func (h *Handlers) ensureProfile(c *gin.Context) {
	uid := middleware.UserID(c)
	if uid == "" {
		c.Next()
		return
	}
	email := middleware.UserEmail(c)
	if prev, ok := h.profiles.Get(uid); ok && prev == email {
		c.Next()
		return
	}
	if err := h.Repo.EnsureProfile(c.Request.Context(), uid, email); err != nil {
		h.Log.Warn("ensure profile failed", zap.String("user_id", uid), zap.Error(err))
	} else {
		h.profiles.Add(uid, email)
	}
	c.Next()
}

func (h *Handlers) owner(c *gin.Context) (interview.Owner, bool) {
	owner, err := interview.OwnerFor(middleware.UserID(c), middleware.UserEmail(c), middleware.ClientID(c))
	if err != nil {
		response.Fail(c, err)
		return interview.Owner{}, false
	}
	return owner, true
}

// requireUser 未登录时写 401
func requireUser(c *gin.Context) (string, bool) {
	uid := middleware.UserID(c)
	if uid == "" {
		response.FailWith(c, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return uid, true
}

// bindOptionalJSON 允许空请求体
func bindOptionalJSON(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		response.FailWith(c, http.StatusBadRequest, "Invalid request body.")
		return false
	}
	return true
}

func queryLimit(c *gin.Context, def, max int) int {
	n := cast.ToInt(c.Query("limit"))
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
