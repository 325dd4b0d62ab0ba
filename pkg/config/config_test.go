package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("CACHE_TYPE", "")
	t.Setenv("CACHE_TTL_SECONDS", "")
	t.Setenv("CACHE_STALE_SECONDS", "")
	t.Setenv("REDIS_PREFIX", "")
	t.Setenv("REMINDER_LEAD_MINUTES", "")
	t.Setenv("SUMMARIZER", "")
	t.Setenv("MEDIA_DRIVER", "")
	t.Setenv("MAIL_DRIVER", "")
	t.Setenv("SESSION_IDLE_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 60*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 120*time.Second, cfg.Cache.Stale)
	assert.Equal(t, "alora", cfg.Redis.Prefix)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.LeadTime)
	assert.Equal(t, 600*time.Second, cfg.Session.DefaultDuration)
	assert.Equal(t, 30*time.Second, cfg.Session.LowTimeThreshold)
	assert.Equal(t, []string{"agent", "ai"}, cfg.Session.AgentMarkers)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTTL)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DBDriver: "sqlite",
			Session:  SessionConfig{DefaultDuration: time.Minute},
			Schedule: ScheduleConfig{MaxAttempts: 3},
		}
	}

	cases := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"pg without dsn", func(c *Config) { c.DBDriver = "pg" }, false},
		{"unknown cache", func(c *Config) { c.Cache.Type = "memcached" }, false},
		{"openai without key", func(c *Config) { c.LLM.Summarizer = "openai" }, false},
		{"livekit without url", func(c *Config) { c.Media.Driver = "livekit" }, false},
		{"unknown mail driver", func(c *Config) { c.Mail.Driver = "pigeon" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			c.Cache.Type = "redis"
			c.LLM.Summarizer = "backend"
			c.Media.Driver = "bridge"
			c.Mail.Driver = "log"
			tc.mutate(c)
			err := c.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
