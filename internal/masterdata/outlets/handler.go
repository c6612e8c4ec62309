package outlets

import (
	"log/slog"
	"net/http"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
	"github.com/lumbung-pos/lumbung/internal/platform/httpx"
	"github.com/lumbung-pos/lumbung/internal/rbac"
	internalShared "github.com/lumbung-pos/lumbung/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

type outletRequest struct {
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=120"`
	Address  string `json:"address" validate:"max=255"`
	Phone    string `json:"phone" validate:"max=32"`
	IsActive *bool  `json:"is_active"`
}

func (req outletRequest) toOutlet(orgID int64) Outlet {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Outlet{OrganizationID: orgID, Code: req.Code, Name: req.Name, Address: req.Address, Phone: req.Phone, IsActive: active}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromRequest(r)
	outlets, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list outlets failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(outlets, filters, total))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	outlet, err := h.service.Get(r.Context(), internalShared.OrganizationID(r.Context()), id)
	if err != nil {
		h.fail(w, "get outlet failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, outlet)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req outletRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), req.toOutlet(internalShared.OrganizationID(r.Context())))
	if err != nil {
		h.fail(w, "create outlet failed", err)
		return
	}
	h.logger.Info("outlet created", slog.Int64("outlet_id", created.ID), slog.Int64("organization_id", created.OrganizationID))
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req outletRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	outlet := req.toOutlet(internalShared.OrganizationID(r.Context()))
	outlet.ID = id
	updated, err := h.service.Update(r.Context(), outlet)
	if err != nil {
		h.fail(w, "update outlet failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), internalShared.OrganizationID(r.Context()), id); err != nil {
		h.fail(w, "delete outlet failed", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
