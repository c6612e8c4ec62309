package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMaintenance holds housekeeping work that can lag behind.
	QueueMaintenance = "maintenance"

	// TaskLowStockScan recomputes low-stock snapshots.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskReportsWarmup pre-builds the common report ranges.
	TaskReportsWarmup = "reports:warmup"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// LowStockScanPayload scopes a scan. A zero organization scans every tenant
// entitled to low-stock alerts.
type LowStockScanPayload struct {
	OrganizationID int64 `json:"organization_id,omitempty"`
	OutletID       int64 `json:"outlet_id,omitempty"`
}

// ReportsWarmupPayload scopes a warmup the same way.
type ReportsWarmupPayload struct {
	OrganizationID int64 `json:"organization_id,omitempty"`
}

// IdempotencyCleanupPayload overrides the retention window.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// Retention falls back to def when the payload leaves it unset.
func (p IdempotencyCleanupPayload) Retention(def time.Duration) time.Duration {
	if p.RetentionHours <= 0 {
		return def
	}
	return time.Duration(p.RetentionHours) * time.Hour
}

// NewLowStockScanTask builds a scan task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	return newTask(TaskLowStockScan, payload)
}

// NewReportsWarmupTask builds a warmup task.
func NewReportsWarmupTask(payload ReportsWarmupPayload) (*asynq.Task, error) {
	return newTask(TaskReportsWarmup, payload)
}

// NewIdempotencyCleanupTask builds a cleanup task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	return newTask(TaskIdempotencyCleanup, payload)
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data), nil
}

func decodePayload(t *asynq.Task, dst any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	return json.Unmarshal(t.Payload(), dst)
}
