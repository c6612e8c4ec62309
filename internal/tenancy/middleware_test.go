package tenancy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumbung-pos/lumbung/internal/platform/httpx"
	"github.com/lumbung-pos/lumbung/internal/shared"
)

func TestResolveOrganization(t *testing.T) {
	svc, _, _ := newTestService(t)
	org, err := svc.Create(context.Background(), CreateOrganizationInput{Name: "Resolve", Plan: PlanPro})
	require.NoError(t, err)

	var seen shared.Tenant
	h := ResolveOrganization(svc, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = shared.TenantFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		org    string
		actor  string
		status int
	}{
		{"missing", "", "", http.StatusBadRequest},
		{"garbage", "abc", "", http.StatusBadRequest},
		{"bad actor", "1", "x", http.StatusBadRequest},
		{"unknown", "999", "", http.StatusNotFound},
		{"ok", "1", "42", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.org != "" {
				req.Header.Set(HeaderOrganizationID, tc.org)
			}
			if tc.actor != "" {
				req.Header.Set(HeaderActorID, tc.actor)
			}
			req.Header.Set(HeaderActorRole, "manager")
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			require.Equal(t, tc.status, rr.Code)
		})
	}
	require.Equal(t, org.ID, seen.OrganizationID)
	require.Equal(t, int64(42), seen.ActorID)
	require.Equal(t, "manager", seen.Role)
}

func TestGateRequireFeature(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	free, _ := svc.Create(ctx, CreateOrganizationInput{Name: "Free"})
	pro, _ := svc.Create(ctx, CreateOrganizationInput{Name: "Pro", Plan: PlanPro})

	gate := Gate{Decider: svc, Logger: discardLogger()}
	h := gate.RequireFeature(FeaturePurchaseOrders)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(orgID int64) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(shared.ContextWithTenant(req.Context(), shared.Tenant{OrganizationID: orgID}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	rr := call(free.ID)
	require.Equal(t, http.StatusForbidden, rr.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&problem))
	require.Contains(t, problem.Detail, `"purchase_orders"`)
	require.Contains(t, problem.Detail, `"free"`)

	require.Equal(t, http.StatusNoContent, call(pro.ID).Code)
	require.Equal(t, http.StatusForbidden, call(0).Code)
}

func TestGateRequireAnyFeature(t *testing.T) {
	svc, _, _ := newTestService(t)
	basic, _ := svc.Create(context.Background(), CreateOrganizationInput{Name: "Basic", Plan: PlanBasic})
	gate := Gate{Decider: svc}
	h := gate.RequireAnyFeature(FeatureAdvancedReports, FeatureStockOpname)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithTenant(req.Context(), shared.Tenant{OrganizationID: basic.ID}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestGatePanicsOnUnknownFeature(t *testing.T) {
	require.Panics(t, func() {
		Gate{}.RequireFeature(FeatureKey("warp_drive"))
	})
}
