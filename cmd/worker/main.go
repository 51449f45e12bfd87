package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mathshelp/mathshelp25/internal/activities"
	"github.com/mathshelp/mathshelp25/internal/app"
	"github.com/mathshelp/mathshelp25/internal/catalog"
	"github.com/mathshelp/mathshelp25/internal/platform/cache"
	"github.com/mathshelp/mathshelp25/internal/platform/db"
	"github.com/mathshelp/mathshelp25/internal/shared"
	"github.com/mathshelp/mathshelp25/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	catalogService := catalog.NewService(catalog.NewRepository(pool), redisClient, logger)
	activitiesService := activities.NewService(activities.NewRepository(pool), redisClient, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	statsTask, err := jobs.NewStatsRecountTask(jobs.StatsRecountPayload{})
	if err != nil {
		logger.Error("build stats task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskViewsFlush, Handler: jobs.HandlerFor(func(ctx context.Context) error {
				if err := catalogService.FlushTopicViews(ctx); err != nil {
					return err
				}
				return activitiesService.FlushViews(ctx)
			})},
			{Type: jobs.TaskStatsRecount, Handler: func(ctx context.Context, t *asynq.Task) error {
				payload, err := jobs.DecodeStatsRecount(t)
				if err != nil {
					return err
				}
				if err := jobs.RecountUserStats(ctx, pool, logger, payload.UserID); err != nil {
					return err
				}
				if payload.UserID == 0 {
					// Full nightly recount also reconciles the catalog counters.
					return jobs.RecountCatalogStats(ctx, pool, logger)
				}
				return nil
			}},
			{Type: jobs.TaskRatingsRefresh, Handler: jobs.HandlerFor(func(ctx context.Context) error {
				return jobs.RefreshActivityRatings(ctx, pool, logger)
			})},
			{Type: jobs.TaskIdempotencyCleanup, Handler: jobs.HandlerFor(func(ctx context.Context) error {
				return idempotencyStore.Cleanup(ctx, 24*time.Hour)
			})},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/5 * * * *", Task: jobs.NewViewsFlushTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: statsTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: jobs.NewRatingsRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 4 * * *", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
