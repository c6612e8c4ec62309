package sales

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lumbung-pos/lumbung/internal/platform/httpx"
	"github.com/lumbung-pos/lumbung/internal/rbac"
	"github.com/lumbung-pos/lumbung/internal/shared"
)

// Handler manages POS endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.With(h.rbac.RequireAll(shared.PermSalesCheckout)).Post("/", h.checkout)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(shared.PermSalesView))
			r.Get("/", h.list)
			r.Get("/{id}", h.get)
		})
		r.With(h.rbac.RequireAll(shared.PermSalesVoid)).Post("/{id}/void", h.void)
	})
}

type checkoutItemRequest struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal  `json:"discount"`
}

type checkoutRequest struct {
	OutletID      int64                 `json:"outlet_id" validate:"required,gt=0"`
	Items         []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	Discount      decimal.Decimal       `json:"discount"`
	TaxRate       decimal.Decimal       `json:"tax_rate"`
	PaymentMethod string                `json:"payment_method" validate:"required,oneof=cash card qris transfer ewallet"`
	AmountPaid    decimal.Decimal       `json:"amount_paid"`
	CustomerName  string                `json:"customer_name" validate:"max=120"`
	Note          string                `json:"note" validate:"max=255"`
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenant, _ := shared.TenantFromContext(r.Context())
	input := CheckoutInput{
		OutletID:       req.OutletID,
		Discount:       req.Discount,
		TaxRate:        req.TaxRate,
		PaymentMethod:  PaymentMethod(req.PaymentMethod),
		AmountPaid:     req.AmountPaid,
		CustomerName:   req.CustomerName,
		Note:           req.Note,
		CashierID:      tenant.ActorID,
		IdempotencyKey: httpx.IdempotencyKey(r),
	}
	for _, item := range req.Items {
		line := ItemInput{ProductID: item.ProductID, Quantity: item.Quantity, Discount: item.Discount}
		if item.UnitPrice != nil {
			line.UnitPrice = decimal.NewNullDecimal(*item.UnitPrice)
		}
		input.Items = append(input.Items, line)
	}
	sale, err := h.service.Checkout(r.Context(), tenant.OrganizationID, input)
	if err != nil {
		h.fail(w, "checkout", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		OrganizationID: shared.OrganizationID(r.Context()),
		Status:         Status(q.Get("status")),
		PaymentMethod:  PaymentMethod(q.Get("payment_method")),
		Page:           httpx.QueryInt(r, "page", 1),
		PerPage:        httpx.QueryInt(r, "per_page", 0),
	}
	var err error
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
		h.fail(w, "list sales", err)
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
	sale, err := h.service.Get(r.Context(), shared.OrganizationID(r.Context()), id)
	if err != nil {
		h.fail(w, "get sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req voidRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenant, _ := shared.TenantFromContext(r.Context())
	sale, err := h.service.Void(r.Context(), tenant.OrganizationID, id, VoidInput{Reason: req.Reason, ActorID: tenant.ActorID})
	if err != nil {
		h.fail(w, "void sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if httpx.IsServerError(err) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
