package audithttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/lumbung-pos/lumbung/internal/audit"
	"github.com/lumbung-pos/lumbung/internal/rbac"
	"github.com/lumbung-pos/lumbung/internal/shared"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(_ context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) Export(_ context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return s.exportRows, nil
}

func newRouter(svc *stubTimelineService, role string) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, rbac.Middleware{Logger: logger})
	h.now = func() time.Time { return time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithTenant(r.Context(), shared.Tenant{OrganizationID: 7, ActorID: 1, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	h.MountRoutes(r)
	return r
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	svc := &stubTimelineService{result: audit.Result{Rows: []audit.TimelineRow{}, Paging: audit.PagingInfo{Page: 1, PageSize: 20}}}
	rr := httptest.NewRecorder()
	newRouter(svc, "owner").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit-logs?entity=sale", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 7, svc.lastFilters.OrganizationID)
	require.Equal(t, "sale", svc.lastFilters.Entity)
	require.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), svc.lastFilters.To)
	require.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), svc.lastFilters.From)
	require.Contains(t, rr.Body.String(), `"has_next":false`)
}

func TestTimelineRejectsBadDate(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter(&stubTimelineService{}, "owner").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit-logs?from=15-03-2026", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTimelineForbiddenForCashier(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter(&stubTimelineService{}, "cashier").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit-logs", nil))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestExportWritesCSV(t *testing.T) {
	svc := &stubTimelineService{exportRows: []audit.TimelineRow{{ID: 1, At: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC), Action: "sale.void", Entity: "sale", EntityID: "5"}}}
	rr := httptest.NewRecorder()
	newRouter(svc, "manager").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit-logs/export.csv?from=2026-03-01&to=2026-03-14", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "1,2026-03-14T08:00:00Z,,sale.void,sale,5,", lines[1])
}
