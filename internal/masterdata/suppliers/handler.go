package suppliers

import (
	"log/slog"
	"net/http"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
	"github.com/lumbung-pos/lumbung/internal/platform/httpx"
	"github.com/lumbung-pos/lumbung/internal/rbac"
	internalShared "github.com/lumbung-pos/lumbung/internal/shared"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	gate    tenancy.Gate
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, gate tenancy.Gate) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, gate: gate}
}

type supplierRequest struct {
	Code          string `json:"code" validate:"required,max=32"`
	Name          string `json:"name" validate:"required,max=160"`
	ContactPerson string `json:"contact_person" validate:"max=120"`
	Phone         string `json:"phone" validate:"max=32"`
	Email         string `json:"email" validate:"omitempty,email"`
	Address       string `json:"address" validate:"max=255"`
	IsActive      *bool  `json:"is_active"`
}

func (req supplierRequest) toSupplier(orgID int64) Supplier {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Supplier{
		OrganizationID: orgID,
		Code:           req.Code,
		Name:           req.Name,
		ContactPerson:  req.ContactPerson,
		Phone:          req.Phone,
		Email:          req.Email,
		Address:        req.Address,
		IsActive:       active,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromRequest(r)
	suppliers, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list suppliers failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(suppliers, filters, total))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplier, err := h.service.Get(r.Context(), internalShared.OrganizationID(r.Context()), id)
	if err != nil {
		h.fail(w, "get supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), req.toSupplier(internalShared.OrganizationID(r.Context())))
	if err != nil {
		h.fail(w, "create supplier failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req supplierRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplier := req.toSupplier(internalShared.OrganizationID(r.Context()))
	supplier.ID = id
	updated, err := h.service.Update(r.Context(), supplier)
	if err != nil {
		h.fail(w, "update supplier failed", err)
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
		h.fail(w, "delete supplier failed", err)
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
