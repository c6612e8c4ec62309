package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/lumbung-pos/lumbung/internal/inventory"
	jobmetrics "github.com/lumbung-pos/lumbung/internal/jobs"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubLister struct {
	orgs  map[tenancy.FeatureKey][]int64
	calls int
}

func (s *stubLister) OrganizationsWithFeature(_ context.Context, key tenancy.FeatureKey) ([]int64, error) {
	s.calls++
	return s.orgs[key], nil
}

type stubScanner struct {
	items   map[int64]int
	scanned []int64
	err     error
}

func (s *stubScanner) ScanLowStock(_ context.Context, orgID int64) (inventory.AlertSnapshot, error) {
	if s.err != nil {
		return inventory.AlertSnapshot{}, s.err
	}
	s.scanned = append(s.scanned, orgID)
	return inventory.AlertSnapshot{OrganizationID: orgID, Items: make([]inventory.LowStockItem, s.items[orgID])}, nil
}

type stubWarmer struct {
	failing map[int64]bool
	warmed  []int64
}

func (s *stubWarmer) Warmup(_ context.Context, orgID int64) error {
	if s.failing[orgID] {
		return errors.New("cache offline")
	}
	s.warmed = append(s.warmed, orgID)
	return nil
}

type stubPurger struct {
	retention time.Duration
	removed   int64
}

func (s *stubPurger) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.retention = olderThan
	return s.removed, nil
}

func newMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestLowStockScanAllEntitledOrganizations(t *testing.T) {
	lister := &stubLister{orgs: map[tenancy.FeatureKey][]int64{tenancy.FeatureLowStockAlerts: {3, 5}}}
	scanner := &stubScanner{items: map[int64]int{3: 2, 5: 0}}
	job := NewLowStockScanJob(lister, scanner, discard, newMetrics())

	task, err := NewLowStockScanTask(LowStockScanPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{3, 5}, scanner.scanned)
	require.Equal(t, 1, lister.calls)
}

func TestLowStockScanSingleOrganization(t *testing.T) {
	lister := &stubLister{}
	scanner := &stubScanner{}
	job := NewLowStockScanJob(lister, scanner, discard, newMetrics())

	task, err := NewLowStockScanTask(LowStockScanPayload{OrganizationID: 9, OutletID: 2})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{9}, scanner.scanned)
	require.Zero(t, lister.calls)
}

func TestLowStockScanBadPayloadSkipsRetry(t *testing.T) {
	job := NewLowStockScanJob(&stubLister{}, &stubScanner{}, discard, newMetrics())
	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestLowStockScanPropagatesFailure(t *testing.T) {
	job := NewLowStockScanJob(nil, &stubScanner{err: errors.New("db down")}, discard, newMetrics())
	task, _ := NewLowStockScanTask(LowStockScanPayload{OrganizationID: 1})
	require.EqualError(t, job.Handle(context.Background(), task), "db down")
}

func TestReportsWarmupSkipsFailingTenant(t *testing.T) {
	lister := &stubLister{orgs: map[tenancy.FeatureKey][]int64{tenancy.FeatureAdvancedReports: {1, 2, 3}}}
	warmer := &stubWarmer{failing: map[int64]bool{2: true}}
	job := NewReportsWarmupJob(lister, warmer, discard, newMetrics())

	task, _ := NewReportsWarmupTask(ReportsWarmupPayload{})
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{1, 3}, warmer.warmed)
}

func TestReportsWarmupFailsWhenEveryTenantFails(t *testing.T) {
	warmer := &stubWarmer{failing: map[int64]bool{4: true}}
	job := NewReportsWarmupJob(nil, warmer, discard, newMetrics())

	task, _ := NewReportsWarmupTask(ReportsWarmupPayload{OrganizationID: 4})
	require.Error(t, job.Handle(context.Background(), task))
}

func TestIdempotencyCleanupRetention(t *testing.T) {
	purger := &stubPurger{removed: 12}
	job := NewIdempotencyCleanupJob(purger, 72*time.Hour, discard, newMetrics())

	task, _ := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{})
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 72*time.Hour, purger.retention)

	task, _ = NewIdempotencyCleanupTask(IdempotencyCleanupPayload{RetentionHours: 6})
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 6*time.Hour, purger.retention)
}

func TestDefaultScheduleSkipsEmptyExpressions(t *testing.T) {
	entries, err := DefaultSchedule(ScheduleConfig{LowStockScan: "0 * * * *", IdempotencyCleanup: "45 2 * * *"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, TaskLowStockScan, entries[0].Task.Type())
	require.Equal(t, TaskIdempotencyCleanup, entries[1].Task.Type())
}

func TestClientCollapsesScansPerOrganization(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	for outlet := int64(1); outlet <= 4; outlet++ {
		require.NoError(t, client.EnqueueLowStockScan(ctx, 1, outlet))
	}
	require.NoError(t, client.EnqueueLowStockScan(ctx, 2, 1))

	pending, err := mr.List("asynq:{default}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestNilClientIsNoop(t *testing.T) {
	var client *Client
	require.NoError(t, client.EnqueueLowStockScan(context.Background(), 1, 1))
	require.NoError(t, client.Close())
}

type stubInspector struct {
	info map[string]*asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	info, ok := s.info[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func TestHealthReportsQueues(t *testing.T) {
	h := NewHandler(stubInspector{info: map[string]*asynq.QueueInfo{
		QueueDefault: {Queue: QueueDefault, Pending: 4, Active: 1},
	}}, discard)
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queues":[
		{"queue":"default","pending":4,"active":1,"retry":0,"paused":false},
		{"queue":"maintenance","pending":0,"active":0,"retry":0,"paused":false}
	]}`, rr.Body.String())
}

func TestHealthUnavailable(t *testing.T) {
	h := NewHandler(stubInspector{err: errors.New("redis down")}, discard)
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
