package categories

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

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
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(internalShared.PermCatalogEdit))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromRequest(r)
	categories, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list categories failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(categories, filters, total))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	category, err := h.service.Get(r.Context(), internalShared.OrganizationID(r.Context()), id)
	if err != nil {
		h.fail(w, "get category failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, category)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), Category{
		OrganizationID: internalShared.OrganizationID(r.Context()),
		Name:           req.Name,
		Description:    req.Description,
	})
	if err != nil {
		h.fail(w, "create category failed", err)
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
	var req categoryRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.Update(r.Context(), Category{
		ID:             id,
		OrganizationID: internalShared.OrganizationID(r.Context()),
		Name:           req.Name,
		Description:    req.Description,
	})
	if err != nil {
		h.fail(w, "update category failed", err)
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
	detached, err := h.service.Delete(r.Context(), internalShared.OrganizationID(r.Context()), id)
	if err != nil {
		h.fail(w, "delete category failed", err)
		return
	}
	h.logger.Info("category deleted", slog.Int64("category_id", id), slog.Int64("products_detached", detached))
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
