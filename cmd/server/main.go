package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ayush/water-tracker/backend/internal/auth"
	"github.com/ayush/water-tracker/backend/internal/config"
	"github.com/ayush/water-tracker/backend/internal/middleware"
	"github.com/ayush/water-tracker/backend/internal/store"
	"github.com/ayush/water-tracker/backend/internal/store/memstore"
	"github.com/ayush/water-tracker/backend/internal/users"
	"github.com/ayush/water-tracker/backend/internal/water"
	"github.com/ayush/water-tracker/backend/internal/web"
)

// storageConnectTimeout bounds the avatar bucket check at startup.
const storageConnectTimeout = 10 * time.Second

// waterStore is what the water and users services need from entry storage.
type waterStore interface {
	water.EntryStore
	users.WaterStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", slog.Any("error", err))
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		accounts auth.AccountStore
		sessions auth.SessionStore
		entries  waterStore
	)

	switch cfg.DataBackend {
	case config.BackendMongo:
		// ── MongoDB ──────────────────────────────────────────
		mongoClient, err := store.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			fatal("mongo connect", err)
		}
		defer disconnect(mongoClient)

		db := mongoClient.Database(cfg.MongoDB)
		if err := store.EnsureIndexes(ctx, db); err != nil {
			fatal("mongo indexes", err)
		}
		accounts = store.NewMongoAccountStore(db)
		sessions = store.NewMongoSessionStore(db)
		entries = store.NewMongoWaterStore(db)

	case config.BackendPostgres:
		// ── PostgreSQL ───────────────────────────────────────
		pgPool, err := store.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			fatal("postgres connect", err)
		}
		defer pgPool.Close()
		if err := store.Migrate(ctx, pgPool); err != nil {
			fatal("postgres migrate", err)
		}
		accounts = store.NewPostgresAccountStore(pgPool)
		sessions = store.NewPostgresSessionStore(pgPool)
		entries = store.NewPostgresWaterStore(pgPool)

	default:
		slog.Warn("using in-memory data backend; nothing survives a restart")
		accounts = memstore.NewAccounts()
		sessions = memstore.NewSessions()
		entries = memstore.NewWater()
	}

	// ── Redis ────────────────────────────────────────────────
	if cfg.SessionBackend == config.BackendRedis {
		var rdb *redis.Client
		rdb, err = store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			fatal("redis connect", err)
		}
		defer rdb.Close()
		sessions = store.NewRedisSessionStore(rdb)
	}

	// ── MinIO ────────────────────────────────────────────────
	avatars := connectAvatarStorage(ctx, cfg, storageConnectTimeout)

	// ── Services ─────────────────────────────────────────────
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	authSvc := auth.NewService(accounts, sessions, hasher, auth.NewIssuer(cfg.AccessTokenTTL, cfg.RefreshTokenTTL))
	usersSvc := users.NewService(accounts, sessions, entries, avatars, hasher, cfg.MaxAvatarBytes)
	waterSvc := water.NewService(entries, accounts)

	cookies := auth.CookieConfig{Secure: cfg.CookieSecure, SameSite: auth.ParseSameSite(cfg.CookieSameSite)}
	gate := middleware.RequireAuth(authSvc)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		web.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Mount("/auth", auth.NewHandler(authSvc, cookies).Routes())
	r.Mount("/users", users.NewHandler(usersSvc, cookies).Routes(gate))
	r.Mount("/water", water.NewHandler(waterSvc).Routes(gate))

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("backend listening",
			slog.String("port", cfg.Port),
			slog.String("data_backend", cfg.DataBackend),
			slog.String("session_backend", cfg.SessionBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("server error", slog.Any("error", err))
	}

	slog.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Error("shutdown", slog.Any("error", err))
	}
}

// connectAvatarStorage returns nil when the bucket cannot be reached within
// timeout. Avatar uploads then answer 503 and everything else keeps working.
func connectAvatarStorage(ctx context.Context, cfg *config.Config, timeout time.Duration) users.AvatarStorage {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	minioStore, err := store.NewMinioStore(ctx,
		cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
		cfg.MinioBucket, cfg.MinioUseSSL, cfg.MinioPublicURL,
	)
	if err != nil {
		slog.Warn("minio unavailable, avatar uploads disabled", slog.Any("error", err))
		return nil
	}
	return minioStore
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		slog.Warn("mongo disconnect", slog.Any("error", err))
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
