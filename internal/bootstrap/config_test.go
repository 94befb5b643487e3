package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"SERVER_PORT", "APP_ENV", "LOG_LEVEL", "DB_DRIVER", "DB_DSN", "DB_USER", "DB_PASSWORD",
	"DB_HOST", "DB_PORT", "DB_NAME", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_KEY_PREFIX",
	"JWT_SECRET", "JWT_EXPIRY_HOURS", "RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW", "CORS_ALLOWED_ORIGIN",
	"HUB_QUEUE_SIZE", "WS_SEND_BUFFER", "ENFORCE_TEACHER_IDENTITY", "PRESENCE_RECONCILE_SCHEDULE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_NAME", "digiboard")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Contains(t, cfg.DBDSN, "root:@tcp(127.0.0.1:3306)/digiboard")
	assert.Equal(t, "digiboard:", cfg.KeyPrefix)
	assert.Equal(t, 24, cfg.JWTExpiryHours)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, time.Second, cfg.RateLimitWindow)
	assert.Equal(t, "http://localhost:5173", cfg.CORSAllowedOrigin)
	assert.Equal(t, 1024, cfg.HubQueueSize)
	assert.Equal(t, 256, cfg.WSSendBuffer)
	assert.False(t, cfg.EnforceTeacherIdentity)
	assert.Equal(t, "@every 1m", cfg.ReconcileSchedule)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("RATE_LIMIT_WINDOW", "2m")
	t.Setenv("ENFORCE_TEACHER_IDENTITY", "true")
	t.Setenv("HUB_QUEUE_SIZE", "16")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "info", cfg.LogLevel, "无效级别回退到 info")
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 2*time.Minute, cfg.RateLimitWindow)
	assert.True(t, cfg.EnforceTeacherIdentity)
	assert.Equal(t, 16, cfg.HubQueueSize)
}

func TestLoadConfig_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing redis":   {"REDIS_ADDR": ""},
		"missing secret":  {"JWT_SECRET": ""},
		"bad driver":      {"DB_DRIVER": "oracle", "DB_DSN": "x"},
		"postgres no dsn": {"DB_DRIVER": "postgres"},
		"bad int":         {"RATE_LIMIT_MAX": "many"},
		"zero buffer":     {"WS_SEND_BUFFER": "0"},
		"bad duration":    {"RATE_LIMIT_WINDOW": "soon"},
		"bad bool":        {"ENFORCE_TEACHER_IDENTITY": "maybe"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
