package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test from an empty directory with every known key unset.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, key := range []string{
		"PORT", "DATA_BACKEND", "SESSION_BACKEND", "MONGO_URI", "POSTGRES_DSN", "REDIS_DB",
		"ACCESS_TOKEN_TTL_MS", "REFRESH_TOKEN_TTL_MS", "BCRYPT_COST", "CORS_ORIGINS",
		"COOKIE_SECURE", "COOKIE_SAMESITE", "MAX_AVATAR_BYTES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("DATA_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendData, cfg.SessionBackend)
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, "lax", cfg.CookieSameSite)
	assert.Equal(t, int64(5<<20), cfg.MaxAvatarBytes)
}

func TestLoadOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ACCESS_TOKEN_TTL_MS", "60000")
	t.Setenv("REFRESH_TOKEN_TTL_MS", "120000")
	t.Setenv("CORS_ORIGINS", " https://a.example.com , ,https://b.example.com")
	t.Setenv("COOKIE_SAMESITE", "None")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.SessionBackend)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 2*time.Minute, cfg.RefreshTokenTTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "none", cfg.CookieSameSite)
	assert.True(t, cfg.CookieSecure)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"mongo without uri", map[string]string{"DATA_BACKEND": "mongo"}},
		{"postgres without dsn", map[string]string{"DATA_BACKEND": "postgres"}},
		{"unknown data backend", map[string]string{"DATA_BACKEND": "sqlite"}},
		{"unknown session backend", map[string]string{"DATA_BACKEND": "memory", "SESSION_BACKEND": "memcached"}},
		{"bad integer", map[string]string{"DATA_BACKEND": "memory", "BCRYPT_COST": "ten"}},
		{"bcrypt cost too high", map[string]string{"DATA_BACKEND": "memory", "BCRYPT_COST": "40"}},
		{"refresh shorter than access", map[string]string{"DATA_BACKEND": "memory", "ACCESS_TOKEN_TTL_MS": "60000", "REFRESH_TOKEN_TTL_MS": "1000"}},
		{"unknown samesite", map[string]string{"DATA_BACKEND": "memory", "COOKIE_SAMESITE": "sometimes"}},
		{"zero avatar size", map[string]string{"DATA_BACKEND": "memory", "MAX_AVATAR_BYTES": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	} {
		assert.Equal(t, want, (&Config{LogLevel: in}).SlogLevel(), in)
	}
}
