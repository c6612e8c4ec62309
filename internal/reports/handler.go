package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/lumbung-pos/lumbung/internal/platform/httpx"
	"github.com/lumbung-pos/lumbung/internal/rbac"
	"github.com/lumbung-pos/lumbung/internal/shared"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
)

// Handler exposes report endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	gate      tenancy.Gate
	rateLimit func(http.Handler) http.Handler
}

// NewHandler builds the handler. perMinute bounds report requests per organization.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, gate tenancy.Gate, perMinute int) *Handler {
	if perMinute <= 0 {
		perMinute = 30
	}
	limiter := httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(organizationKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "report rate limit exceeded")
		}))
	return &Handler{logger: logger, service: service, rbac: rbac, gate: gate, rateLimit: limiter}
}

func organizationKey(r *http.Request) (string, error) {
	if orgID := shared.OrganizationID(r.Context()); orgID > 0 {
		return "org:" + strconv.FormatInt(orgID, 10), nil
	}
	return httprate.KeyByIP(r)
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermReportsView))
		r.Use(h.rateLimit)
		r.With(h.gate.RequireFeature(tenancy.FeatureAdvancedReports)).Get("/sales-profit", h.salesProfit)
		r.With(h.gate.RequireFeature(tenancy.FeatureInventoryValuation)).Get("/inventory-valuation", h.inventoryValuation)
		r.With(h.gate.RequireFeature(tenancy.FeaturePurchaseOrders)).Get("/purchases", h.purchases)
	})
}

func (h *Handler) salesProfit(w http.ResponseWriter, r *http.Request) {
	filter := SalesProfitFilter{
		OrganizationID: shared.OrganizationID(r.Context()),
		Granularity:    Granularity(r.URL.Query().Get("granularity")),
		TopN:           httpx.QueryInt(r, "top_n", 0),
	}
	var err error
	if filter.From, err = httpx.QueryDate(r, "from", false); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.QueryDate(r, "to", false); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.OutletID, err = httpx.QueryInt64(r, "outlet_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.SalesProfit(r.Context(), filter)
	if err != nil {
		h.fail(w, "sales profit report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) inventoryValuation(w http.ResponseWriter, r *http.Request) {
	outletID, err := httpx.QueryInt64(r, "outlet_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.InventoryValuation(r.Context(), shared.OrganizationID(r.Context()), outletID)
	if err != nil {
		h.fail(w, "inventory valuation report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) purchases(w http.ResponseWriter, r *http.Request) {
	from, err := httpx.QueryDate(r, "from", false)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := httpx.QueryDate(r, "to", false)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.PurchaseSummary(r.Context(), shared.OrganizationID(r.Context()), from, to)
	if err != nil {
		h.fail(w, "purchase summary report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
