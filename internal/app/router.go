package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	audithttp "github.com/lumbung-pos/lumbung/internal/audit/http"
	"github.com/lumbung-pos/lumbung/internal/inventory"
	"github.com/lumbung-pos/lumbung/internal/masterdata/categories"
	"github.com/lumbung-pos/lumbung/internal/masterdata/outlets"
	"github.com/lumbung-pos/lumbung/internal/masterdata/products"
	"github.com/lumbung-pos/lumbung/internal/masterdata/suppliers"
	"github.com/lumbung-pos/lumbung/internal/observability"
	"github.com/lumbung-pos/lumbung/internal/platform/httpx"
	"github.com/lumbung-pos/lumbung/internal/purchasing"
	"github.com/lumbung-pos/lumbung/internal/reports"
	"github.com/lumbung-pos/lumbung/internal/sales"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
	"github.com/lumbung-pos/lumbung/jobs"
)

// Pinger reports dependency health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Organizations tenancy.OrganizationLookup
	Checks        map[string]Pinger
	Metrics       *observability.Metrics

	OrganizationHandler *tenancy.Handler
	OutletHandler       *outlets.Handler
	SupplierHandler     *suppliers.Handler
	CategoryHandler     *categories.Handler
	ProductHandler      *products.Handler
	InventoryHandler    *inventory.Handler
	PurchasingHandler   *purchasing.Handler
	SalesHandler        *sales.Handler
	ReportsHandler      *reports.Handler
	AuditHandler        *audithttp.Handler
	JobHandler          *jobs.Handler
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route matches "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not supported here")
	})

	r.Get("/healthz", healthHandler(params.Checks, logger))
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.Organizations != nil {
			r.Use(tenancy.ResolveOrganization(params.Organizations, logger))
		}
		if params.OrganizationHandler != nil {
			r.Route("/organization", params.OrganizationHandler.MountRoutes)
		}
		if params.OutletHandler != nil {
			r.Route("/outlets", params.OutletHandler.MountRoutes)
		}
		if params.SupplierHandler != nil {
			r.Route("/suppliers", params.SupplierHandler.MountRoutes)
		}
		if params.CategoryHandler != nil {
			r.Route("/categories", params.CategoryHandler.MountRoutes)
		}
		if params.ProductHandler != nil {
			r.Route("/products", params.ProductHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.PurchasingHandler != nil {
			params.PurchasingHandler.MountRoutes(r)
		}
		if params.SalesHandler != nil {
			params.SalesHandler.MountRoutes(r)
		}
		if params.ReportsHandler != nil {
			params.ReportsHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
	})

	return r
}

func healthHandler(checks map[string]Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		result := map[string]string{}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				logger.Warn("health check failed", slog.String("dependency", name), slog.Any("error", err))
				result[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "up"
		}
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		httpx.JSON(w, status, map[string]any{"status": state, "checks": result})
	}
}
