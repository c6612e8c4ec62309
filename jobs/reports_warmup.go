package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/lumbung-pos/lumbung/internal/jobs"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
)

// ReportWarmer pre-builds cached reports for an organization.
type ReportWarmer interface {
	Warmup(ctx context.Context, orgID int64) error
}

// ReportsWarmupJob fills the report cache ahead of the business day.
type ReportsWarmupJob struct {
	Orgs    OrganizationLister
	Reports ReportWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(orgs OrganizationLister, reports ReportWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{Orgs: orgs, Reports: reports, Logger: logger, Metrics: metrics, Timeout: 20 * time.Second}
}

// Handle processes report warmup tasks. A failing tenant is logged and
// skipped; the task fails only when every tenant failed.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload ReportsWarmupPayload
	if err := decodePayload(t, &payload); err != nil {
		return fmt.Errorf("reports warmup payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := metricsOrDefault(j.Metrics).Track(TaskReportsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskReportsWarmup)
	start := time.Now()

	orgs, err := targetOrganizations(ctx, j.Orgs, payload.OrganizationID, tenancy.FeatureAdvancedReports)
	if err != nil {
		resultErr = err
		logger.Error("load organizations", slog.Any("error", err))
		return resultErr
	}
	if len(orgs) == 0 {
		logger.Info("no organizations to warm")
		return resultErr
	}

	warmed := 0
	var lastErr error
	for _, orgID := range orgs {
		if err := j.warm(ctx, orgID); err != nil {
			lastErr = err
			logger.Warn("warm organization", slog.Int64("organization_id", orgID), slog.Any("error", err))
			continue
		}
		warmed++
	}
	if warmed == 0 && lastErr != nil {
		resultErr = lastErr
		return resultErr
	}

	logger.Info("reports warmup completed", slog.Int("organizations", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *ReportsWarmupJob) warm(ctx context.Context, orgID int64) error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	orgCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return j.Reports.Warmup(orgCtx, orgID)
}
