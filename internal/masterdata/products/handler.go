package products

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

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

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(internalShared.PermCatalogView))
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
		r.Get("/{id}/details", h.Details)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(internalShared.PermCatalogEdit))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

type productRequest struct {
	CategoryID   *int64          `json:"category_id" validate:"omitempty,gt=0"`
	SKU          string          `json:"sku" validate:"required,max=64"`
	Barcode      string          `json:"barcode" validate:"max=64"`
	Name         string          `json:"name" validate:"required,max=160"`
	Description  string          `json:"description" validate:"max=1000"`
	Unit         string          `json:"unit" validate:"max=16"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	MinStock     decimal.Decimal `json:"min_stock"`
	IsActive     *bool           `json:"is_active"`
}

func (req productRequest) toProduct(orgID int64) Product {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Product{
		OrganizationID: orgID,
		CategoryID:     req.CategoryID,
		SKU:            req.SKU,
		Barcode:        req.Barcode,
		Name:           req.Name,
		Description:    req.Description,
		Unit:           req.Unit,
		CostPrice:      req.CostPrice,
		SellingPrice:   req.SellingPrice,
		MinStock:       req.MinStock,
		IsActive:       active,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromRequest(r)
	products, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list products failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(products, filters, total))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.Get(r.Context(), internalShared.OrganizationID(r.Context()), id)
	if err != nil {
		h.fail(w, "get product failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	details, err := h.service.Details(r.Context(), internalShared.OrganizationID(r.Context()), id)
	if err != nil {
		h.fail(w, "product details failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), req.toProduct(internalShared.OrganizationID(r.Context())))
	if err != nil {
		h.fail(w, "create product failed", err)
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
	var req productRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product := req.toProduct(internalShared.OrganizationID(r.Context()))
	product.ID = id
	updated, err := h.service.Update(r.Context(), product)
	if err != nil {
		h.fail(w, "update product failed", err)
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
	deactivated, err := h.service.Delete(r.Context(), internalShared.OrganizationID(r.Context()), id)
	if err != nil {
		h.fail(w, "delete product failed", err)
		return
	}
	if deactivated {
		httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "deactivated": true})
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
