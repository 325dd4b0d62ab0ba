package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"Alora/pkg/cache"
	"Alora/pkg/logger"
	"Alora/pkg/notification"
	"Alora/pkg/util"
)

// config/config.go
type Config struct {
	Addr      string        `env:"ADDR"`
	Mode      string        `env:"MODE"`
	APIPrefix string        `env:"API_PREFIX"`
	DBDriver  string        `env:"DB_DRIVER"`
	DSN       string        `env:"DSN"`
	SlowQuery time.Duration `env:"DB_SLOW_QUERY"`
	Log       logger.LogConfig
	Mail      notification.MailConfig
	Cache     cache.Config
	Redis     RedisConfig
	Backend   BackendConfig
	LLM       LLMConfig
	Media     MediaConfig
	Storage   StorageConfig
	Session   SessionConfig
	Schedule  ScheduleConfig

	AuthJWTSecret string `env:"AUTH_JWT_SECRET"`
	RateLimit     string `env:"RATE_LIMIT"`
}

type RedisConfig struct {
	URL    string `env:"REDIS_URL"`
	Prefix string `env:"REDIS_PREFIX"`
}

type BackendConfig struct {
	URL     string        `env:"BACKEND_URL"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT"`
}

type LLMConfig struct {
	Summarizer string `env:"SUMMARIZER"` // backend | openai
	APIKey     string `env:"LLM_API_KEY"`
	BaseURL    string `env:"LLM_BASE_URL"`
	Model      string `env:"LLM_MODEL"`
}

type MediaConfig struct {
	Driver     string `env:"MEDIA_DRIVER"` // livekit | bridge
	LiveKitURL string `env:"LIVEKIT_URL"`
	// 两者都配置时本地签发观察者令牌，否则向后端 /token 申请
	APIKey    string `env:"LIVEKIT_API_KEY"`
	APISecret string `env:"LIVEKIT_API_SECRET"`
}

type StorageConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	Bucket    string `env:"MINIO_BUCKET"`
	UseSSL    bool   `env:"MINIO_USE_SSL"`
	BaseURL   string `env:"MINIO_PUBLIC_BASE"`
}

type SessionConfig struct {
	DefaultDuration  time.Duration `env:"SESSION_DEFAULT_DURATION_SECONDS"`
	LowTimeThreshold time.Duration `env:"SESSION_LOW_TIME_SECONDS"`
	AgentMarkers     []string      `env:"AGENT_MARKERS"`
	IdleTTL          time.Duration `env:"SESSION_IDLE_TTL"`
	EvictSpec        string        `env:"SESSION_EVICT_SCHEDULE"`
}

type ScheduleConfig struct {
	LeadTime     time.Duration `env:"REMINDER_LEAD_MINUTES"`
	MaxAttempts  int           `env:"REMINDER_MAX_ATTEMPTS"`
	RetryBackoff time.Duration `env:"REMINDER_RETRY_BACKOFF"`
	SweepSpec    string        `env:"SWEEP_SCHEDULE"`
	CronSecret   string        `env:"CRON_SECRET"`
	AppBaseURL   string        `env:"APP_BASE_URL"`
}

// Load 读取环境配置，返回值由调用方持有
func Load() (*Config, error) {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	cacheTTL := util.GetDurationEnv("CACHE_TTL_SECONDS", 60*time.Second)
	cacheStale := util.GetDurationEnv("CACHE_STALE_SECONDS", 120*time.Second)

	cfg := &Config{
		Addr:      util.GetEnvDefault("ADDR", ":8080"),
		Mode:      util.GetEnvDefault("MODE", env),
		APIPrefix: util.GetEnvDefault("API_PREFIX", "/api"),
		DBDriver:  util.GetEnvDefault("DB_DRIVER", "sqlite"),
		DSN:       util.GetEnv("DSN"),
		SlowQuery: util.GetDurationEnv("DB_SLOW_QUERY", 200*time.Millisecond),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		Mail: notification.MailConfig{
			Driver:   util.GetEnvDefault("MAIL_DRIVER", "log"),
			APIKey:   util.GetEnv("RESEND_API_KEY"),
			Host:     util.GetEnv("MAIL_HOST"),
			Username: util.GetEnv("MAIL_USERNAME"),
			Password: util.GetEnv("MAIL_PASSWORD"),
			Port:     util.GetIntEnvDefault("MAIL_PORT", 587),
			From:     util.GetEnvDefault("EMAIL_FROM", util.GetEnv("MAIL_FROM")),
		},
		Cache: cache.Config{
			Type:  util.GetEnvDefault("CACHE_TYPE", "redis"),
			TTL:   cacheTTL,
			Stale: cacheStale,
			Local: cache.LocalConfig{
				MaxSize:         int(util.GetIntEnvDefault("CACHE_LOCAL_MAX_SIZE", 10000)),
				CleanupInterval: util.GetDurationEnv("CACHE_LOCAL_CLEANUP", 10*time.Minute),
			},
		},
		Redis: RedisConfig{
			URL:    util.GetEnvDefault("REDIS_URL", "redis://localhost:6379/0"),
			Prefix: util.GetEnvDefault("REDIS_PREFIX", "alora"),
		},
		Backend: BackendConfig{
			URL:     util.GetEnvDefault("BACKEND_URL", "http://localhost:8000"),
			Timeout: util.GetDurationEnv("BACKEND_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			Summarizer: util.GetEnvDefault("SUMMARIZER", "backend"),
			APIKey:     util.GetEnv("LLM_API_KEY"),
			BaseURL:    util.GetEnv("LLM_BASE_URL"),
			Model:      util.GetEnvDefault("LLM_MODEL", "gpt-4o-mini"),
		},
		Media: MediaConfig{
			Driver:     util.GetEnvDefault("MEDIA_DRIVER", "bridge"),
			LiveKitURL: util.GetEnv("LIVEKIT_URL"),
			APIKey:     util.GetEnv("LIVEKIT_API_KEY"),
			APISecret:  util.GetEnv("LIVEKIT_API_SECRET"),
		},
		Storage: StorageConfig{
			Endpoint:  util.GetEnv("MINIO_ENDPOINT"),
			AccessKey: util.GetEnv("MINIO_ACCESS_KEY"),
			SecretKey: util.GetEnv("MINIO_SECRET_KEY"),
			Bucket:    util.GetEnvDefault("MINIO_BUCKET", "documents"),
			UseSSL:    util.GetBoolEnv("MINIO_USE_SSL"),
			BaseURL:   util.GetEnv("MINIO_PUBLIC_BASE"),
		},
		Session: SessionConfig{
			DefaultDuration:  util.GetDurationEnv("SESSION_DEFAULT_DURATION_SECONDS", 600*time.Second),
			LowTimeThreshold: util.GetDurationEnv("SESSION_LOW_TIME_SECONDS", 30*time.Second),
			AgentMarkers:     util.GetListEnv("AGENT_MARKERS", []string{"agent", "ai"}),
			IdleTTL:          util.GetDurationEnv("SESSION_IDLE_TTL", 30*time.Minute),
			EvictSpec:        util.GetEnvDefault("SESSION_EVICT_SCHEDULE", "@every 5m"),
		},
		Schedule: ScheduleConfig{
			LeadTime:     time.Duration(util.GetIntEnvDefault("REMINDER_LEAD_MINUTES", 10)) * time.Minute,
			MaxAttempts:  int(util.GetIntEnvDefault("REMINDER_MAX_ATTEMPTS", 3)),
			RetryBackoff: util.GetDurationEnv("REMINDER_RETRY_BACKOFF", 2*time.Minute),
			SweepSpec:    util.GetEnvDefault("SWEEP_SCHEDULE", "@every 1m"),
			CronSecret:   util.GetEnv("CRON_SECRET"),
			AppBaseURL:   strings.TrimRight(util.GetEnvDefault("APP_BASE_URL", "http://localhost:3000"), "/"),
		},
		AuthJWTSecret: util.GetEnv("AUTH_JWT_SECRET"),
		RateLimit:     util.GetEnvDefault("RATE_LIMIT", "120-M"),
	}
	return cfg, cfg.Validate()
}

// Validate 只拦截无法启动的组合
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "pg", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDriver != "sqlite" && c.DSN == "" {
		return fmt.Errorf("DSN is required for DB_DRIVER %q", c.DBDriver)
	}
	switch c.Cache.Type {
	case "redis", "gocache", "lru":
	default:
		return fmt.Errorf("unsupported CACHE_TYPE %q", c.Cache.Type)
	}
	if c.Cache.TTL < 0 || c.Cache.Stale < 0 {
		return fmt.Errorf("cache ttl and stale window must not be negative")
	}
	switch c.LLM.Summarizer {
	case "backend":
	case "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required when SUMMARIZER=openai")
		}
	default:
		return fmt.Errorf("unsupported SUMMARIZER %q", c.LLM.Summarizer)
	}
	switch c.Media.Driver {
	case "bridge":
	case "livekit":
		if c.Media.LiveKitURL == "" {
			return fmt.Errorf("LIVEKIT_URL is required when MEDIA_DRIVER=livekit")
		}
	default:
		return fmt.Errorf("unsupported MEDIA_DRIVER %q", c.Media.Driver)
	}
	switch c.Mail.Driver {
	case "log", "smtp", "resend":
	default:
		return fmt.Errorf("unsupported MAIL_DRIVER %q", c.Mail.Driver)
	}
	if c.Session.DefaultDuration <= 0 {
		return fmt.Errorf("session duration must be positive")
	}
	if c.Session.IdleTTL <= 0 {
		c.Session.IdleTTL = 30 * time.Minute
	}
	if c.Schedule.MaxAttempts < 1 {
		c.Schedule.MaxAttempts = 1
	}
	return nil
}
