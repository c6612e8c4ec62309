package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lumbung-pos/lumbung/internal/inventory"
	jobmetrics "github.com/lumbung-pos/lumbung/internal/jobs"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// OrganizationLister finds tenants entitled to a feature.
type OrganizationLister interface {
	OrganizationsWithFeature(ctx context.Context, key tenancy.FeatureKey) ([]int64, error)
}

// LowStockScanner recomputes and stores an organization's low-stock snapshot.
type LowStockScanner interface {
	ScanLowStock(ctx context.Context, orgID int64) (inventory.AlertSnapshot, error)
}

// LowStockScanJob refreshes low-stock snapshots and the matching gauge.
type LowStockScanJob struct {
	Orgs    OrganizationLister
	Scanner LowStockScanner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(orgs OrganizationLister, scanner LowStockScanner, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Orgs: orgs, Scanner: scanner, Logger: logger, Metrics: metrics}
}

// Handle processes low-stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Scanner == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := decodePayload(t, &payload); err != nil {
		return fmt.Errorf("low stock scan payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskLowStockScan)
	start := time.Now()

	orgs, err := targetOrganizations(ctx, j.Orgs, payload.OrganizationID, tenancy.FeatureLowStockAlerts)
	if err != nil {
		resultErr = err
		logger.Error("load organizations", slog.Any("error", err))
		return resultErr
	}

	total := 0
	for _, orgID := range orgs {
		snapshot, err := j.Scanner.ScanLowStock(ctx, orgID)
		if err != nil {
			resultErr = err
			logger.Error("scan organization", slog.Int64("organization_id", orgID), slog.Any("error", err))
			return resultErr
		}
		metricsOrDefault(j.Metrics).SetLowStock(orgID, len(snapshot.Items))
		total += len(snapshot.Items)
	}

	logger.Info("low stock scan completed",
		slog.Int("organizations", len(orgs)),
		slog.Int("items", total),
		slog.Int64("outlet_id", payload.OutletID),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

// targetOrganizations returns the single requested tenant, or every tenant
// holding the feature when orgID is zero.
func targetOrganizations(ctx context.Context, lister OrganizationLister, orgID int64, feature tenancy.FeatureKey) ([]int64, error) {
	if orgID > 0 {
		return []int64{orgID}, nil
	}
	if lister == nil {
		return nil, errors.New("organization lister not configured")
	}
	return lister.OrganizationsWithFeature(ctx, feature)
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger != nil {
		return logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}
