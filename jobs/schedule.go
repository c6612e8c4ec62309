package jobs

import (
	"time"

	"github.com/hibiken/asynq"
)

// ScheduleConfig holds the cron expressions for recurring work.
type ScheduleConfig struct {
	LowStockScan       string
	ReportsWarmup      string
	IdempotencyCleanup string
}

// DefaultSchedule builds the cron registrations for the worker. Empty
// expressions are skipped.
func DefaultSchedule(cfg ScheduleConfig) ([]CronRegistration, error) {
	scan, err := NewLowStockScanTask(LowStockScanPayload{})
	if err != nil {
		return nil, err
	}
	warm, err := NewReportsWarmupTask(ReportsWarmupPayload{})
	if err != nil {
		return nil, err
	}
	clean, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{})
	if err != nil {
		return nil, err
	}
	entries := []CronRegistration{
		{Spec: cfg.LowStockScan, Task: scan, Options: []asynq.Option{asynq.Queue(QueueDefault), asynq.Unique(10 * time.Minute)}},
		{Spec: cfg.ReportsWarmup, Task: warm, Options: []asynq.Option{asynq.Queue(QueueMaintenance), asynq.Timeout(15 * time.Minute)}},
		{Spec: cfg.IdempotencyCleanup, Task: clean, Options: []asynq.Option{asynq.Queue(QueueMaintenance), asynq.MaxRetry(1)}},
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Spec != "" {
			out = append(out, e)
		}
	}
	return out, nil
}
