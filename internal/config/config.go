package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Backend names accepted by DATA_BACKEND and SESSION_BACKEND. Sessions live
// in the data backend unless SESSION_BACKEND=redis.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendData     = "data"
	BackendRedis    = "redis"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port string

	DataBackend    string
	SessionBackend string

	MongoURI string
	MongoDB  string

	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	CORSOrigins    []string
	CookieSecure   bool
	CookieSameSite string
	MaxAvatarBytes int64

	LogLevel  string
	LogFormat string
}

// Load reads the environment, after applying a .env file from the working
// directory when one exists. Variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	intVar := func(key string, fallback int) int {
		v, err := getenvInt(key, fallback)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Port:            getenv("PORT", "8080"),
		DataBackend:     getenv("DATA_BACKEND", BackendMongo),
		SessionBackend:  getenv("SESSION_BACKEND", BackendData),
		MongoURI:        getenv("MONGO_URI", ""),
		MongoDB:         getenv("MONGO_DB", "water_tracker"),
		PostgresDSN:     getenv("POSTGRES_DSN", ""),
		RedisAddr:       getenv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   getenv("REDIS_PASSWORD", ""),
		RedisDB:         intVar("REDIS_DB", 0),
		MinioEndpoint:   getenv("MINIO_ENDPOINT", "minio:9000"),
		MinioAccessKey:  getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:     getenv("MINIO_BUCKET", "avatars"),
		MinioUseSSL:     getenv("MINIO_USE_SSL", "false") == "true",
		MinioPublicURL:  getenv("MINIO_PUBLIC_URL", "http://localhost:9000"),
		AccessTokenTTL:  time.Duration(intVar("ACCESS_TOKEN_TTL_MS", 24*60*60*1000)) * time.Millisecond,
		RefreshTokenTTL: time.Duration(intVar("REFRESH_TOKEN_TTL_MS", 30*24*60*60*1000)) * time.Millisecond,
		BcryptCost:      intVar("BCRYPT_COST", 10),
		CORSOrigins:     splitList(getenv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		CookieSecure:    getenv("COOKIE_SECURE", "false") == "true",
		CookieSameSite:  strings.ToLower(getenv("COOKIE_SAMESITE", "lax")),
		MaxAvatarBytes:  int64(intVar("MAX_AVATAR_BYTES", 5<<20)),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that would make the server misbehave.
func (c *Config) Validate() error {
	var errs []error
	switch c.DataBackend {
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when DATA_BACKEND=mongo"))
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when DATA_BACKEND=postgres"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown DATA_BACKEND %q", c.DataBackend))
	}
	switch c.SessionBackend {
	case BackendData, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	} else if c.RefreshTokenTTL < c.AccessTokenTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL_MS must not be shorter than ACCESS_TOKEN_TTL_MS"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
	}
	switch c.CookieSameSite {
	case "lax", "strict", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown COOKIE_SAMESITE %q", c.CookieSameSite))
	}
	if c.MaxAvatarBytes <= 0 {
		errs = append(errs, errors.New("MAX_AVATAR_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
