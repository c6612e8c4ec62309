package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/lumbung-pos/lumbung/internal/app"
	"github.com/lumbung-pos/lumbung/internal/inventory"
	jobmetrics "github.com/lumbung-pos/lumbung/internal/jobs"
	"github.com/lumbung-pos/lumbung/internal/platform/cache"
	"github.com/lumbung-pos/lumbung/internal/platform/db"
	"github.com/lumbung-pos/lumbung/internal/reports"
	"github.com/lumbung-pos/lumbung/internal/shared"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
	"github.com/lumbung-pos/lumbung/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
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

	metrics := jobmetrics.NewMetrics(nil)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	tenancyService := tenancy.NewService(
		tenancy.NewRepository(pool),
		tenancy.NewRedisFeatureCache(redisClient, cfg.FeatureCacheTTL),
		logger,
	)
	inventoryService := inventory.NewService(
		inventory.NewRepository(pool),
		shared.NewAuditLogger(pool),
		idempotencyStore,
		inventory.NewRedisAlertStore(redisClient, inventory.AlertTTL),
		inventory.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock},
	)
	reportsService := reports.NewService(reports.NewRepository(pool), reports.NewCache(redisClient, cfg.ReportCacheTTL))

	lowStockJob := jobs.NewLowStockScanJob(tenancyService, inventoryService, logger, metrics)
	warmupJob := jobs.NewReportsWarmupJob(tenancyService, reportsService, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, cfg.IdempotencyRetention, logger, metrics)

	schedule, err := jobs.DefaultSchedule(jobs.ScheduleConfig{
		LowStockScan:       cfg.LowStockScanCron,
		ReportsWarmup:      cfg.ReportWarmupCron,
		IdempotencyCleanup: cfg.IdempotencyCleanCron,
	})
	if err != nil {
		logger.Error("build schedule", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLowStockScan, Handler: lowStockJob.Handle},
			{Type: jobs.TaskReportsWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: schedule,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.Int("cron_entries", len(schedule)))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
