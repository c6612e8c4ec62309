package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumbung-pos/lumbung/internal/observability"
	"github.com/lumbung-pos/lumbung/internal/rbac"
	"github.com/lumbung-pos/lumbung/internal/shared"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type orgRepo map[int64]tenancy.Organization

func (r orgRepo) GetOrganization(_ context.Context, id int64) (tenancy.Organization, error) {
	org, ok := r[id]
	if !ok {
		return tenancy.Organization{}, tenancy.ErrOrganizationNotFound
	}
	return org, nil
}

func (r orgRepo) CreateOrganization(_ context.Context, org tenancy.Organization) (tenancy.Organization, error) {
	return tenancy.Organization{}, shared.ErrConflict
}

func (r orgRepo) UpdatePlan(context.Context, int64, tenancy.Plan, *time.Time) error {
	return nil
}

func (r orgRepo) FeatureOverrides(context.Context, int64) (map[tenancy.FeatureKey]bool, error) {
	return nil, nil
}

func (r orgRepo) ListOrganizationIDs(context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	return ids, nil
}

func testRouter(checks map[string]Pinger) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orgs := tenancy.NewService(orgRepo{1: {ID: 1, Name: "Toko", Slug: "toko", Plan: tenancy.PlanBasic}}, nil, logger)
	return NewRouter(RouterParams{
		Logger:              logger,
		Config:              &Config{AppEnv: "test", RateLimitPerMinute: 1000},
		Organizations:       orgs,
		Checks:              checks,
		Metrics:             observability.NewMetrics(),
		OrganizationHandler: tenancy.NewHandler(logger, orgs, rbac.Middleware{Logger: logger}),
	})
}

func TestHealthzReportsDependencies(t *testing.T) {
	router := testRouter(map[string]Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok","checks":{"postgres":"up"}}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestHealthzDegraded(t *testing.T) {
	router := testRouter(map[string]Pinger{
		"redis": pingFunc(func(context.Context) error { return errors.New("refused") }),
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), `"redis":"down"`)
}

func TestAPIRequiresOrganizationHeader(t *testing.T) {
	router := testRouter(nil)

	cases := []struct {
		name   string
		org    string
		status int
	}{
		{"missing", "", http.StatusBadRequest},
		{"not numeric", "toko", http.StatusBadRequest},
		{"unknown", "404", http.StatusNotFound},
		{"known", "1", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/organization/", nil)
			if tc.org != "" {
				req.Header.Set(tenancy.HeaderOrganizationID, tc.org)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			require.Equal(t, tc.status, rr.Code)
		})
	}
}

func TestMetricsEndpointMounted(t *testing.T) {
	router := testRouter(nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "lumbung_http_requests_in_flight")
}
