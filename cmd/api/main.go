// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	accountflag "github.com/someoneelse131/purfacted-sub003/internal/flag"
	"github.com/someoneelse131/purfacted-sub003/internal/admin"
	"github.com/someoneelse131/purfacted-sub003/internal/auth"
	"github.com/someoneelse131/purfacted-sub003/internal/ban"
	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
	"github.com/someoneelse131/purfacted-sub003/internal/health"
	"github.com/someoneelse131/purfacted-sub003/internal/middleware"
	"github.com/someoneelse131/purfacted-sub003/internal/moderator"
	"github.com/someoneelse131/purfacted-sub003/internal/server"
	"github.com/someoneelse131/purfacted-sub003/internal/trust"
	"github.com/someoneelse131/purfacted-sub003/internal/user"
	"github.com/someoneelse131/purfacted-sub003/internal/veto"
	"github.com/someoneelse131/purfacted-sub003/internal/vote"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	provider := config.NewProvider(cfg)

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	calc := trust.NewCalculator(provider)
	trustRepo := trust.NewRepository(db.DB)
	ledger := trust.NewLedger(trustRepo, provider)
	trustHandler := trust.NewHandler(ledger, calc)

	banHasher := ban.NewHasher(provider.Trust().BlocklistSalt)
	banRepo := ban.NewRepository(db.DB)
	banSvc := ban.NewService(banRepo, banHasher, provider)
	banHandler := ban.NewHandler(banSvc)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	moderatorRepo := moderator.NewRepository(db.DB)
	moderatorSvc := moderator.NewService(moderatorRepo, userRepo, provider)
	moderatorHandler := moderator.NewHandler(moderatorSvc)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(
		authRepo,
		jwtManager,
		userSvc,
		banSvc,
		moderatorSvc,
		redis.Client,
	)
	authHandler := auth.NewHandler(authSvc)

	flagRepo := accountflag.NewRepository(db.DB)
	flagSvc := accountflag.NewService(flagRepo, banSvc, provider)
	flagHandler := accountflag.NewHandler(flagSvc)

	vetoRepo := veto.NewRepository(db.DB)
	factGateway := veto.NewSQLFactGateway(db.DB)
	vetoSvc := veto.NewService(
		vetoRepo,
		calc,
		ledger,
		userSvc,
		factGateway,
		flagSvc,
		provider,
	)
	vetoHandler := veto.NewHandler(vetoSvc)

	voteRepo := vote.NewRepository(db.DB)
	voteSvc := vote.NewService(
		voteRepo,
		calc,
		ledger,
		userSvc,
		flagSvc,
		banSvc,
		vetoSvc,
		banHasher,
		redis.Client,
		provider,
	)
	voteHandler := vote.NewHandler(voteSvc)

	healthHandler := health.NewHandler(db, redis)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		DB:         db.DB,
		Config:     provider,
		ConfigPath: configPath,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(jwtManager)
	moderatorOnly := middleware.RequireModerator

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		r.Post("/users", authHandler.Register)

		userHandler.RegisterRoutes(r, authenticator)
		trustHandler.RegisterRoutes(r, authenticator)
		vetoHandler.RegisterRoutes(r, authenticator)
		voteHandler.RegisterRoutes(r, authenticator)
		moderatorHandler.RegisterRoutes(r)

		userHandler.RegisterAdminRoutes(r, authenticator, moderatorOnly)
		trustHandler.RegisterAdminRoutes(r, authenticator, moderatorOnly)
		banHandler.RegisterAdminRoutes(r, authenticator, moderatorOnly)
		flagHandler.RegisterAdminRoutes(r, authenticator, moderatorOnly)
		moderatorHandler.RegisterAdminRoutes(r, authenticator, moderatorOnly)
		adminHandler.RegisterRoutes(r, authenticator, moderatorOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
