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

	"github.com/hibiken/asynq"

	"github.com/semsearch/semsearch/internal/app"
	"github.com/semsearch/semsearch/internal/container"
	"github.com/semsearch/semsearch/internal/observability"
	"github.com/semsearch/semsearch/internal/platform/cache"
	"github.com/semsearch/semsearch/internal/platform/db"
	"github.com/semsearch/semsearch/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		logger.Warn("redis unavailable, response cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	proc, err := container.NewProcess(container.ProcessParams{
		Config:  cfg,
		Logger:  logger,
		DB:      pool,
		Redis:   redisClient,
		Metrics: metrics,
	})
	if err != nil {
		logger.Error("init container", slog.Any("error", err))
		os.Exit(1)
	}
	if err := proc.SeedRoles(ctx); err != nil {
		logger.Error("seed roles", slog.Any("error", err))
		os.Exit(1)
	}

	var jobHandler *jobs.Handler
	if redisClient != nil {
		inspector := asynq.NewInspector(redisOpts.AsynqOpt())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("asynq inspector close", slog.Any("error", err))
			}
		}()
		jobClient, err := jobs.NewClient(redisOpts.AsynqOpt())
		if err != nil {
			logger.Error("asynq client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, jobClient, cfg.JobStaleAfter, logger)
	}

	handlers := proc.Handlers()
	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		UnitOfWork:         proc.Middleware(),
		Authenticate:       proc.Authenticate(),
		RBAC:               proc.RBAC(),
		AuthHandler:        handlers.Auth,
		ChatHandler:        handlers.Chat,
		AdminHandler:       handlers.Admin,
		IndexingHandler:    handlers.Indexing,
		PermissionsHandler: handlers.Permissions,
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server started", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
