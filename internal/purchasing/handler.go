package purchasing

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lumbung-pos/lumbung/internal/platform/httpx"
	"github.com/lumbung-pos/lumbung/internal/rbac"
	"github.com/lumbung-pos/lumbung/internal/shared"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
)

// Handler exposes purchase order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	gate    tenancy.Gate
}

// NewHandler builds handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, gate tenancy.Gate) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, gate: gate}
}

// MountRoutes registers purchase order routes. The whole group is plan gated.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/purchase-orders", func(r chi.Router) {
		r.Use(h.gate.RequireFeature(tenancy.FeaturePurchaseOrders))
		r.With(h.rbac.RequireAny(shared.PermPurchasingView)).Get("/", h.list)
		r.With(h.rbac.RequireAny(shared.PermPurchasingView)).Get("/{id}", h.get)
		r.With(h.rbac.RequireAll(shared.PermPurchasingEdit)).Post("/", h.create)
		r.With(h.rbac.RequireAll(shared.PermPurchasingEdit)).Put("/{id}", h.update)
		r.With(h.rbac.RequireAll(shared.PermPurchasingEdit)).Patch("/{id}/status", h.changeStatus)
		r.With(h.rbac.RequireAll(shared.PermPurchasingEdit)).Delete("/{id}", h.delete)
		r.With(h.rbac.RequireAll(shared.PermPurchasingReceive)).Post("/{id}/receive", h.receive)
	})
}

type itemRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type draftRequest struct {
	OutletID     int64           `json:"outlet_id" validate:"required,gt=0"`
	SupplierID   int64           `json:"supplier_id" validate:"required,gt=0"`
	OrderDate    string          `json:"order_date" validate:"omitempty,datetime=2006-01-02"`
	ExpectedDate string          `json:"expected_date" validate:"omitempty,datetime=2006-01-02"`
	Notes        string          `json:"notes" validate:"max=1000"`
	Discount     decimal.Decimal `json:"discount"`
	Tax          decimal.Decimal `json:"tax"`
	Items        []itemRequest   `json:"items" validate:"required,min=1,dive"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type receiveLineRequest struct {
	ItemID   int64            `json:"item_id" validate:"required,gt=0"`
	Quantity decimal.Decimal  `json:"quantity"`
	UnitCost *decimal.Decimal `json:"unit_cost"`
}

type receiveRequest struct {
	Items      []receiveLineRequest `json:"items" validate:"required,min=1,dive"`
	Note       string               `json:"note" validate:"max=255"`
	ReceivedAt *time.Time           `json:"received_at"`
}

func (req draftRequest) input(actorID int64) DraftInput {
	in := DraftInput{
		OutletID:   req.OutletID,
		SupplierID: req.SupplierID,
		Notes:      req.Notes,
		Discount:   req.Discount,
		Tax:        req.Tax,
		ActorID:    actorID,
	}
	if req.OrderDate != "" {
		in.OrderDate, _ = time.Parse(time.DateOnly, req.OrderDate)
	}
	if req.ExpectedDate != "" {
		if t, err := time.Parse(time.DateOnly, req.ExpectedDate); err == nil {
			in.ExpectedDate = &t
		}
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, ItemInput{ProductID: item.ProductID, Quantity: item.Quantity, UnitCost: item.UnitCost})
	}
	return in
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		OrganizationID: shared.OrganizationID(r.Context()),
		Status:         Status(r.URL.Query().Get("status")),
		Search:         r.URL.Query().Get("search"),
		Page:           httpx.QueryInt(r, "page", 1),
		PerPage:        httpx.QueryInt(r, "per_page", 0),
	}
	var err error
	if filter.SupplierID, err = httpx.QueryInt64(r, "supplier_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.OutletID, err = httpx.QueryInt64(r, "outlet_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.From, err = httpx.QueryDate(r, "from", false); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.QueryDate(r, "to", true); err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list purchase orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.Get(r.Context(), shared.OrganizationID(r.Context()), id)
	if err != nil {
		h.fail(w, "get purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenant, _ := shared.TenantFromContext(r.Context())
	po, err := h.service.Create(r.Context(), tenant.OrganizationID, req.input(tenant.ActorID))
	if err != nil {
		h.fail(w, "create purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req draftRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenant, _ := shared.TenantFromContext(r.Context())
	po, err := h.service.Update(r.Context(), tenant.OrganizationID, id, req.input(tenant.ActorID))
	if err != nil {
		h.fail(w, "update purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req statusRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenant, _ := shared.TenantFromContext(r.Context())
	po, err := h.service.ChangeStatus(r.Context(), tenant.OrganizationID, id, Status(req.Status), tenant.ActorID)
	if err != nil {
		h.fail(w, "change purchase order status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenant, _ := shared.TenantFromContext(r.Context())
	if err := h.service.Delete(r.Context(), tenant.OrganizationID, id, tenant.ActorID); err != nil {
		h.fail(w, "delete purchase order", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req receiveRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenant, _ := shared.TenantFromContext(r.Context())
	input := ReceiveInput{
		Note:           req.Note,
		ReceivedAt:     req.ReceivedAt,
		ActorID:        tenant.ActorID,
		IdempotencyKey: httpx.IdempotencyKey(r),
	}
	for _, line := range req.Items {
		rl := ReceiveLine{ItemID: line.ItemID, Quantity: line.Quantity}
		if line.UnitCost != nil {
			rl.UnitCost = decimal.NewNullDecimal(*line.UnitCost)
		}
		input.Items = append(input.Items, rl)
	}
	result, err := h.service.ReceiveGoods(r.Context(), tenant.OrganizationID, id, input)
	if err != nil {
		h.fail(w, "receive purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
