package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/engram-labs/engram/internal/application/account"
	memapp "github.com/engram-labs/engram/internal/application/memory"
	"github.com/engram-labs/engram/internal/application/ports"
	snapapp "github.com/engram-labs/engram/internal/application/snapshot"
	"github.com/engram-labs/engram/internal/application/tier"
	"github.com/engram-labs/engram/internal/config"
	httprouter "github.com/engram-labs/engram/internal/infrastructure/http"
	"github.com/engram-labs/engram/internal/infrastructure/http/handlers"
	"github.com/engram-labs/engram/internal/infrastructure/http/middleware"
	"github.com/engram-labs/engram/internal/infrastructure/persistence/postgres"
	"github.com/engram-labs/engram/internal/infrastructure/queue"
	"github.com/engram-labs/engram/internal/infrastructure/webhook"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("apply schema")
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("parse REDIS_URL")
		}
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis ping failed; continuing without redis")
			redisClient = nil
		}
	}

	userRepo := postgres.NewUserRepository(pool)
	keyRepo := postgres.NewAPIKeyRepository(pool)
	memoryRepo := postgres.NewMemoryRepository(pool)
	snapshotRepo := postgres.NewSnapshotRepository(pool)

	var enqueuer ports.TaskEnqueuer
	var asynqWorker *queue.Worker
	if redisClient != nil {
		redisOpt, _ := redis.ParseURL(cfg.Redis.URL)
		asynqOpt := asynq.RedisClientOpt{Addr: redisOpt.Addr, Password: redisOpt.Password, DB: redisOpt.DB}
		asynqEnq, err := queue.NewAsynqEnqueuer(asynqOpt, log)
		if err != nil {
			log.Fatal().Err(err).Msg("create asynq enqueuer")
		}
		defer asynqEnq.Close()
		enqueuer = asynqEnq
		asynqWorker = queue.NewWorker(asynqOpt, keyRepo, log)
		go func() {
			if err := asynqWorker.Run(); err != nil {
				log.Warn().Err(err).Msg("asynq worker stopped")
			}
		}()
	} else {
		enqueuer = queue.NewInlineEnqueuer(keyRepo, log)
	}

	var emitter ports.WebhookEmitter
	if cfg.Webhook.AuditURL != "" {
		emitter = webhook.NewHTTPEmitter(cfg.Webhook.AuditURL)
	} else {
		emitter = webhook.NewNoopEmitter()
	}

	limiter := tier.NewLimiter(userRepo, memoryRepo, cfg.Tier.FreeMemoryLimit)
	syncMemoryUC := memapp.NewSyncMemory(memoryRepo, limiter)
	bulkSyncMemoriesUC := memapp.NewBulkSyncMemories(memoryRepo, limiter, log)
	syncSnapshotUC := snapapp.NewSyncSnapshot(snapshotRepo)
	bulkSyncSnapshotsUC := snapapp.NewBulkSyncSnapshots(snapshotRepo, log)
	createUserUC := account.NewCreateUser(userRepo, keyRepo, nil)
	rotateKeyUC := account.NewRotateKey(userRepo, keyRepo, nil)
	revokeKeyUC := account.NewRevokeKey(keyRepo)

	authValidator := middleware.NewAPIKeyValidator(keyRepo, enqueuer, middleware.SHA256HashAPIKey(), log)
	requireAdmin := middleware.RequireAdminSecret(cfg.Admin.Secret)

	ipLimit, err := middleware.NewIPRateLimiter(cfg.RateLimit.RatePerIP)
	if err != nil {
		log.Fatal().Err(err).Msg("create IP rate limiter")
	}
	userLimit, err := middleware.NewUserRateLimiter(cfg.RateLimit.RatePerUser)
	if err != nil {
		log.Fatal().Err(err).Msg("create user rate limiter")
	}
	secureMiddleware := middleware.NewSecure(middleware.SecureOptions(cfg.Secure.IsDevelopment))
	corsMiddleware := middleware.CORS(cfg.CORS.AllowedOrigins, nil, nil)

	healthHandler := handlers.NewHealthHandler(pool, redisClient)
	memoriesHandler := handlers.NewMemoriesHandler(syncMemoryUC, bulkSyncMemoriesUC, memoryRepo, cfg.Tier.UpgradeURL, emitter, log)
	snapshotsHandler := handlers.NewSnapshotsHandler(syncSnapshotUC, bulkSyncSnapshotsUC, emitter, log)
	adminHandler := handlers.NewAdminHandler(createUserUC, rotateKeyUC, revokeKeyUC, log)

	router := httprouter.NewRouter(httprouter.RouterConfig{
		HealthHandler:    healthHandler,
		MemoriesHandler:  memoriesHandler,
		SnapshotsHandler: snapshotsHandler,
		AdminHandler:     adminHandler,
		Auth:             authValidator,
		RequireAdmin:     requireAdmin,
		Log:              log,
		Secure:           secureMiddleware,
		IPRateLimit:      ipLimit,
		UserRateLimit:    userLimit,
		CORS:             corsMiddleware,
		Metrics:          true,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if asynqWorker != nil {
		asynqWorker.Shutdown()
	}
	log.Info().Msg("server stopped")
}
