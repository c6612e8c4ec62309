package tenancy

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumbung-pos/lumbung/internal/platform/httpx"
	"github.com/lumbung-pos/lumbung/internal/rbac"
	"github.com/lumbung-pos/lumbung/internal/shared"
)

// Handler exposes organization endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the organization handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers organization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermOrgManage))
		r.Put("/plan", h.changePlan)
	})
}

type organizationResponse struct {
	Organization  Organization        `json:"organization"`
	EffectivePlan Plan                `json:"effective_plan"`
	Features      map[FeatureKey]bool `json:"features"`
	Limits        map[LimitKey]*int   `json:"limits"`
}

type changePlanRequest struct {
	Plan      string     `json:"plan" validate:"required,oneof=free basic pro enterprise"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	orgID := shared.OrganizationID(r.Context())
	resp, err := h.describe(r, orgID)
	if err != nil {
		h.fail(w, "show organization", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) changePlan(w http.ResponseWriter, r *http.Request) {
	var req changePlanRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	orgID := shared.OrganizationID(r.Context())
	if _, err := h.service.ChangePlan(r.Context(), orgID, Plan(req.Plan), req.ExpiresAt); err != nil {
		h.fail(w, "change plan", err)
		return
	}
	resp, err := h.describe(r, orgID)
	if err != nil {
		h.fail(w, "show organization", err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) describe(r *http.Request, orgID int64) (organizationResponse, error) {
	org, err := h.service.Get(r.Context(), orgID)
	if err != nil {
		return organizationResponse{}, err
	}
	features, err := h.service.Features(r.Context(), orgID)
	if err != nil {
		return organizationResponse{}, err
	}
	plan := org.EffectivePlan(h.service.now())
	return organizationResponse{
		Organization:  org,
		EffectivePlan: plan,
		Features:      features,
		Limits: map[LimitKey]*int{
			LimitOutlets:  PlanLimit(plan, LimitOutlets),
			LimitProducts: PlanLimit(plan, LimitProducts),
		},
	}, nil
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
