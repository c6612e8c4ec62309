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
	"github.com/redis/go-redis/v9"

	"github.com/lumbung-pos/lumbung/internal/app"
	"github.com/lumbung-pos/lumbung/internal/audit"
	audithttp "github.com/lumbung-pos/lumbung/internal/audit/http"
	"github.com/lumbung-pos/lumbung/internal/inventory"
	"github.com/lumbung-pos/lumbung/internal/masterdata/categories"
	"github.com/lumbung-pos/lumbung/internal/masterdata/outlets"
	"github.com/lumbung-pos/lumbung/internal/masterdata/products"
	"github.com/lumbung-pos/lumbung/internal/masterdata/suppliers"
	"github.com/lumbung-pos/lumbung/internal/observability"
	"github.com/lumbung-pos/lumbung/internal/platform/cache"
	"github.com/lumbung-pos/lumbung/internal/platform/db"
	"github.com/lumbung-pos/lumbung/internal/purchasing"
	"github.com/lumbung-pos/lumbung/internal/rbac"
	"github.com/lumbung-pos/lumbung/internal/reports"
	"github.com/lumbung-pos/lumbung/internal/sales"
	"github.com/lumbung-pos/lumbung/internal/shared"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
	"github.com/lumbung-pos/lumbung/jobs"
)

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	tenancyService := tenancy.NewService(
		tenancy.NewRepository(dbpool),
		tenancy.NewRedisFeatureCache(redisClient, cfg.FeatureCacheTTL),
		logger,
	)
	gate := tenancy.Gate{Decider: tenancyService, Logger: logger}

	reportsService := reports.NewService(reports.NewRepository(dbpool), reports.NewCache(redisClient, cfg.ReportCacheTTL))

	outletService := outlets.NewService(outlets.NewRepository(dbpool), tenancyService)
	supplierService := suppliers.NewService(suppliers.NewRepository(dbpool))
	categoryService := categories.NewService(categories.NewRepository(dbpool))
	productService := products.NewService(products.NewRepository(dbpool), tenancyService)

	inventoryService := inventory.NewService(
		inventory.NewRepository(dbpool),
		auditLogger,
		idempotencyStore,
		inventory.NewRedisAlertStore(redisClient, inventory.AlertTTL),
		inventory.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock, Reports: reportsService},
	)
	purchasingService := purchasing.NewService(purchasing.NewRepository(dbpool), auditLogger, idempotencyStore, reportsService)
	salesService := sales.NewService(
		sales.NewRepository(dbpool),
		auditLogger,
		idempotencyStore,
		reportsService,
		jobClient,
		sales.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock},
	)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Organizations: tenancyService,
		Checks: map[string]app.Pinger{
			"postgres": dbpool,
			"redis":    redisPinger{client: redisClient},
		},
		Metrics: metrics,

		OrganizationHandler: tenancy.NewHandler(logger, tenancyService, rbacMiddleware),
		OutletHandler:       outlets.NewHandler(logger, outletService, rbacMiddleware),
		SupplierHandler:     suppliers.NewHandler(logger, supplierService, rbacMiddleware, gate),
		CategoryHandler:     categories.NewHandler(logger, categoryService, rbacMiddleware),
		ProductHandler:      products.NewHandler(logger, productService, rbacMiddleware),
		InventoryHandler:    inventory.NewHandler(logger, inventoryService, rbacMiddleware, gate),
		PurchasingHandler:   purchasing.NewHandler(logger, purchasingService, rbacMiddleware, gate),
		SalesHandler:        sales.NewHandler(logger, salesService, rbacMiddleware),
		ReportsHandler:      reports.NewHandler(logger, reportsService, rbacMiddleware, gate, cfg.ReportRateLimitPerMinute),
		AuditHandler:        audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware),
		JobHandler:          jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
