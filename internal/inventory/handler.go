package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lumbung-pos/lumbung/internal/platform/httpx"
	"github.com/lumbung-pos/lumbung/internal/rbac"
	"github.com/lumbung-pos/lumbung/internal/shared"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	gate    tenancy.Gate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, gate tenancy.Gate) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, gate: gate}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermInventoryView))
		r.Get("/stock", h.listStock)
		r.Get("/movements", h.listMovements)
		r.Group(func(r chi.Router) {
			r.Use(h.gate.RequireFeature(tenancy.FeatureLowStockAlerts))
			r.Get("/low-stock", h.lowStock)
			r.Get("/alerts", h.alerts)
		})
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermInventoryEdit))
		r.Post("/adjustments", h.adjust)
		r.With(h.gate.RequireFeature(tenancy.FeatureMultiOutlet)).Post("/transfers", h.transfer)
		r.With(h.gate.RequireFeature(tenancy.FeatureStockOpname)).Post("/opname", h.opname)
	})
}

type adjustmentRequest struct {
	OutletID  int64            `json:"outlet_id" validate:"required,gt=0"`
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitCost  *decimal.Decimal `json:"unit_cost"`
	Reason    string           `json:"reason" validate:"required,max=255"`
}

type transferLineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type transferRequest struct {
	FromOutletID int64                 `json:"from_outlet_id" validate:"required,gt=0"`
	ToOutletID   int64                 `json:"to_outlet_id" validate:"required,gt=0,nefield=FromOutletID"`
	Items        []transferLineRequest `json:"items" validate:"required,min=1,dive"`
	Note         string                `json:"note" validate:"max=255"`
}

type opnameLineRequest struct {
	ProductID       int64           `json:"product_id" validate:"required,gt=0"`
	CountedQuantity decimal.Decimal `json:"counted_quantity"`
}

type opnameRequest struct {
	OutletID int64               `json:"outlet_id" validate:"required,gt=0"`
	Items    []opnameLineRequest `json:"items" validate:"required,min=1,dive"`
	Note     string              `json:"note" validate:"max=255"`
}

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	outletID, err := httpx.QueryInt64(r, "outlet_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lowOnly := httpx.QueryBool(r, "low_only")
	filter := StockFilter{
		OrganizationID: shared.OrganizationID(r.Context()),
		OutletID:       outletID,
		Search:         r.URL.Query().Get("search"),
		LowOnly:        lowOnly != nil && *lowOnly,
		Page:           httpx.QueryInt(r, "page", 1),
		PerPage:        httpx.QueryInt(r, "per_page", 0),
	}
	page, err := h.service.ListStock(r.Context(), filter)
	if err != nil {
		h.fail(w, "list stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	filter := MovementFilter{
		OrganizationID: shared.OrganizationID(r.Context()),
		Type:           MovementType(r.URL.Query().Get("type")),
		Page:           httpx.QueryInt(r, "page", 1),
		PerPage:        httpx.QueryInt(r, "per_page", 0),
	}
	var err error
	if filter.OutletID, err = httpx.QueryInt64(r, "outlet_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.ProductID, err = httpx.QueryInt64(r, "product_id"); err != nil {
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
	page, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.fail(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	outletID, err := httpx.QueryInt64(r, "outlet_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.LowStock(r.Context(), shared.OrganizationID(r.Context()), outletID)
	if err != nil {
		h.fail(w, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Alerts(r.Context(), shared.OrganizationID(r.Context()))
	if err != nil {
		h.fail(w, "low stock alerts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshot)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenant, _ := shared.TenantFromContext(r.Context())
	input := AdjustmentInput{
		OutletID:       req.OutletID,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		Reason:         req.Reason,
		ActorID:        tenant.ActorID,
		IdempotencyKey: httpx.IdempotencyKey(r),
	}
	if req.UnitCost != nil {
		input.UnitCost = decimal.NewNullDecimal(*req.UnitCost)
	}
	movement, err := h.service.Adjust(r.Context(), tenant.OrganizationID, input)
	if err != nil {
		h.fail(w, "post adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenant, _ := shared.TenantFromContext(r.Context())
	input := TransferInput{
		FromOutletID:   req.FromOutletID,
		ToOutletID:     req.ToOutletID,
		Note:           req.Note,
		ActorID:        tenant.ActorID,
		IdempotencyKey: httpx.IdempotencyKey(r),
	}
	for _, item := range req.Items {
		input.Lines = append(input.Lines, TransferLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	result, err := h.service.Transfer(r.Context(), tenant.OrganizationID, input)
	if err != nil {
		h.fail(w, "post transfer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) opname(w http.ResponseWriter, r *http.Request) {
	var req opnameRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenant, _ := shared.TenantFromContext(r.Context())
	input := OpnameInput{
		OutletID:       req.OutletID,
		Note:           req.Note,
		ActorID:        tenant.ActorID,
		IdempotencyKey: httpx.IdempotencyKey(r),
	}
	for _, item := range req.Items {
		input.Lines = append(input.Lines, OpnameLine{ProductID: item.ProductID, CountedQuantity: item.CountedQuantity})
	}
	result, err := h.service.Opname(r.Context(), tenant.OrganizationID, input)
	if err != nil {
		h.fail(w, "post stock opname", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
