package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"Alora/internal/documents"
	handlers "Alora/internal/handler"
	"Alora/internal/history"
	"Alora/internal/interview"
	"Alora/internal/listeners"
	"Alora/internal/models"
	"Alora/internal/schedule"
	"Alora/pkg/backend"
	"Alora/pkg/cache"
	"Alora/pkg/config"
	"Alora/pkg/llm"
	"Alora/pkg/logger"
	"Alora/pkg/media"
	"Alora/pkg/media/bridge"
	"Alora/pkg/media/livekit"
	"Alora/pkg/metrics"
	"Alora/pkg/middleware"
	"Alora/pkg/notification"
	"Alora/pkg/scheduler"
	"Alora/pkg/sse"
	"Alora/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// observerSessions 会话仍由后端创建，入房令牌本地签发
type observerSessions struct {
	*backend.Client
	tokens *livekit.TokenIssuer
}

func (s observerSessions) IssueMediaToken(ctx context.Context, sessionID string) (string, error) {
	return s.tokens.IssueMediaToken(ctx, sessionID)
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log, cfg.Mode); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Named("alora")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 数据库
	db, err := models.Open(cfg.DBDriver, cfg.DSN, logger.Named("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := models.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	repo := models.NewRepository(db)

	// 2. Redis；只有缓存类型为 redis 时才是必需的
	var rdb *redis.Client
	var shared redis.UniversalClient
	rdb, err = cache.NewRedisClient(ctx, cfg.Redis.URL)
	switch {
	case err == nil:
		shared = rdb
		defer rdb.Close()
	case cfg.Cache.Type == "redis":
		return err
	default:
		log.Warn("redis unavailable, using in-process stores", zap.Error(err))
		rdb = nil
	}

	// 3. 指标与缓存
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	tracer := metrics.NewTracer(2048, m, logger.Named("trace"))
	if err := db.Use(metrics.NewSQLAnalyzer(m, cfg.SlowQuery, logger.Named("sql"))); err != nil {
		return fmt.Errorf("sql analyzer: %w", err)
	}

	store, err := cache.NewStore(cfg.Cache, shared)
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	defer store.Close()
	keys := history.Keys{Prefix: cfg.Redis.Prefix}
	rt := cache.NewReadThrough(store, cfg.Cache.Policy(),
		cache.WithName(cfg.Cache.Type),
		cache.WithMetrics(m),
		cache.WithLogger(logger.Named("cache")),
		cache.WithOperationLabel(keys.Operation),
	)
	hist := history.NewService(repo, rt, keys, logger.Named("history"))

	// 4. 外部服务
	mailer, err := notification.NewMailer(cfg.Mail, logger.Named("mail"))
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	bc := backend.NewClient(cfg.Backend.URL, cfg.Backend.Timeout, logger.Named("backend"))
	var sessions interview.SessionService = bc
	if cfg.Media.APIKey != "" && cfg.Media.APISecret != "" {
		sessions = observerSessions{Client: bc, tokens: livekit.NewTokenIssuer(cfg.Media.APIKey, cfg.Media.APISecret, 0)}
	}
	var summarizer interview.Summarizer = bc
	if cfg.LLM.Summarizer == "openai" {
		lg := logrus.New()
		lg.SetFormatter(&logrus.JSONFormatter{})
		summarizer = llm.NewSummarizer(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, lg)
	}

	var transport media.Transport
	var br *bridge.Transport
	if cfg.Media.Driver == "livekit" {
		transport = livekit.New(cfg.Media.LiveKitURL, logger.Named("livekit"))
	} else {
		br = bridge.New(logger.Named("bridge"))
		transport = br
	}

	var objects storage.ObjectStore
	if cfg.Storage.Endpoint != "" {
		objects, err = storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
			BaseURL:   cfg.Storage.BaseURL,
		})
		if err != nil {
			return err
		}
	} else {
		log.Warn("MINIO_ENDPOINT not set, uploaded documents are kept in memory")
		objects = storage.NewMemoryStore()
	}

	// 5. 业务服务
	hub := sse.NewHub(25 * time.Second)
	notes := listeners.NewNotifications(repo, hub, logger.Named("notify"))
	mgr := interview.NewManager(interview.Deps{
		Sessions:    sessions,
		Transport:   transport,
		Summarizer:  summarizer,
		Recorder:    repo,
		Invalidator: hist,
		Notifier:    notes,
		EventLog:    repo,
		Events:      listeners.NewSessionEvents(hub),
		Log:         logger.Named("interview"),
		Metrics:     m,
		Tracer:      tracer,
	}, interview.Options{
		Duration: cfg.Session.DefaultDuration,
		LowTime:  cfg.Session.LowTimeThreshold,
		Markers:  cfg.Session.AgentMarkers,
	})

	var queue schedule.Queue = schedule.NewMemoryQueue()
	idem := middleware.NewMemoryIdemStore()
	if shared != nil {
		queue = schedule.NewRedisQueue(shared, cfg.Redis.Prefix)
		idem = middleware.NewRedisIdemStore(shared, cfg.Redis.Prefix)
	}
	sched := schedule.NewService(schedule.Deps{
		Repo:        repo,
		Sessions:    sessions,
		Mailer:      mailer,
		Notifier:    notes,
		Invalidator: hist,
		Queue:       queue,
		Log:         logger.Named("schedule"),
		Metrics:     m,
	}, schedule.Config{
		LeadTime:        cfg.Schedule.LeadTime,
		MaxAttempts:     cfg.Schedule.MaxAttempts,
		RetryBackoff:    cfg.Schedule.RetryBackoff,
		AppBaseURL:      cfg.Schedule.AppBaseURL,
		DefaultDuration: cfg.Session.DefaultDuration,
	})
	docs := documents.NewService(objects, repo, nil, logger.Named("documents"))

	// 6. 定时任务：提醒扫描与空闲会话回收
	cr := scheduler.NewCron(time.UTC, logger.Named("cron"))
	if _, err := cr.AddJob(cfg.Schedule.SweepSpec, "reminder-sweep", 50*time.Second, scheduler.FuncJob(func(ctx context.Context) {
		ctx, span := tracer.StartSpan(ctx, "reminder_sweep")
		report, err := sched.SweepDueReminders(ctx)
		tracer.EndSpan(span, err)
		if err != nil {
			log.Error("reminder sweep failed", zap.Error(err))
			return
		}
		if report.Due > 0 {
			log.Info("reminder sweep", zap.Any("report", report))
		}
	})); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", cfg.Schedule.SweepSpec, err)
	}
	if _, err := cr.AddJob(cfg.Session.EvictSpec, "session-evict", 0, scheduler.FuncJob(func(context.Context) {
		if n := mgr.EvictIdle(cfg.Session.IdleTTL); n > 0 {
			log.Info("idle sessions evicted", zap.Int("count", n), zap.Int("remaining", mgr.Len()))
		}
	})); err != nil {
		return fmt.Errorf("session evict %q: %w", cfg.Session.EvictSpec, err)
	}
	cr.Start()

	// 7. HTTP
	limit, err := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:      cfg.RateLimit,
		Prefix:    cfg.Redis.Prefix,
		SkipPaths: []string{cfg.APIPrefix + "/session/events", cfg.APIPrefix + "/session/media"},
	}, rdb)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	handlers.NewHandlers(handlers.Deps{
		Repo:      repo,
		Redis:     shared,
		Sessions:  mgr,
		History:   hist,
		Schedules: sched,
		Documents: docs,
		Hub:       hub,
		Bridge:    br,
		Metrics:   m,
		Gatherer:  reg,
		Log:       logger.Named("http"),
	}, handlers.Options{
		APIPrefix:   cfg.APIPrefix,
		JWTSecret:   cfg.AuthJWTSecret,
		CronSecret:  cfg.Schedule.CronSecret,
		RedisPrefix: cfg.Redis.Prefix,
		RateLimit:   limit,
		IdemStore:   idem,
	}).Register(engine)

	// 关闭时取消它，让 SSE 长连接退出
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Addr), zap.String("media", cfg.Media.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down ...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	// 8. 优雅退出：先停定时任务和会话，再断开长连接，最后等请求结束
	cr.Stop()
	mgr.Close()
	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	return nil
}
