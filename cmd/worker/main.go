package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/semsearch/semsearch/internal/app"
	"github.com/semsearch/semsearch/internal/container"
	jobmetrics "github.com/semsearch/semsearch/internal/jobs"
	"github.com/semsearch/semsearch/internal/platform/cache"
	"github.com/semsearch/semsearch/internal/platform/db"
	"github.com/semsearch/semsearch/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	proc, err := container.NewProcess(container.ProcessParams{
		Config: cfg,
		Logger: logger,
		DB:     pool,
	})
	if err != nil {
		logger.Error("init container", slog.Any("error", err))
		os.Exit(1)
	}

	sweepJob := jobs.NewIndexingSweepJob(proc, logger, jobmetrics.NewMetrics(prometheus.DefaultRegisterer), cfg.JobStaleAfter)
	sweepTask, err := jobs.NewIndexingSweepTask(cfg.JobStaleAfter)
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts.AsynqOpt(),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskIndexingSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.JobSweepSpec, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("sweep", cfg.JobSweepSpec), slog.Duration("stale_after", cfg.JobStaleAfter))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
