package purchasing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumbung-pos/lumbung/internal/inventory"
	"github.com/lumbung-pos/lumbung/internal/shared"
)

// Status is the purchase order lifecycle state.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusOrdered           Status = "ordered"
	StatusPartiallyReceived Status = "partially_received"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusOrdered, StatusPartiallyReceived, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further change is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Receivable reports whether goods may be received against the order.
func (s Status) Receivable() bool {
	return s == StatusOrdered || s == StatusPartiallyReceived
}

// PurchaseOrder models a supplier order delivered to one outlet.
type PurchaseOrder struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	OutletID       int64           `json:"outlet_id"`
	OutletName     string          `json:"outlet_name,omitempty"`
	SupplierID     int64           `json:"supplier_id"`
	SupplierName   string          `json:"supplier_name,omitempty"`
	Number         string          `json:"number"`
	Status         Status          `json:"status"`
	OrderDate      time.Time       `json:"order_date"`
	ExpectedDate   *time.Time      `json:"expected_date"`
	ReceivedAt     *time.Time      `json:"received_at"`
	Notes          string          `json:"notes"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	CreatedBy      int64           `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Items          []Item          `json:"items,omitempty"`
}

// Item is one ordered product.
type Item struct {
	ID               int64           `json:"id"`
	PurchaseOrderID  int64           `json:"purchase_order_id"`
	ProductID        int64           `json:"product_id"`
	ProductName      string          `json:"product_name,omitempty"`
	SKU              string          `json:"sku,omitempty"`
	QuantityOrdered  decimal.Decimal `json:"quantity_ordered"`
	QuantityReceived decimal.Decimal `json:"quantity_received"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	Subtotal         decimal.Decimal `json:"subtotal"`
}

// Outstanding is the quantity still to be received.
func (i Item) Outstanding() decimal.Decimal {
	return i.QuantityOrdered.Sub(i.QuantityReceived)
}

// FullyReceived reports whether every item arrived in full.
func (po PurchaseOrder) FullyReceived() bool {
	for _, item := range po.Items {
		if item.QuantityReceived.LessThan(item.QuantityOrdered) {
			return false
		}
	}
	return len(po.Items) > 0
}

// AnyReceived reports whether some goods have been received.
func (po PurchaseOrder) AnyReceived() bool {
	for _, item := range po.Items {
		if item.QuantityReceived.IsPositive() {
			return true
		}
	}
	return false
}

// ItemInput describes an order line on create or update.
type ItemInput struct {
	ProductID int64
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
}

// DraftInput carries the editable fields of a draft order.
type DraftInput struct {
	OutletID     int64
	SupplierID   int64
	OrderDate    time.Time
	ExpectedDate *time.Time
	Notes        string
	Discount     decimal.Decimal
	Tax          decimal.Decimal
	Items        []ItemInput
	ActorID      int64
}

// ReceiveLine is the quantity arriving for one item.
type ReceiveLine struct {
	ItemID   int64
	Quantity decimal.Decimal
	// UnitCost overrides the ordered cost when valid.
	UnitCost decimal.NullDecimal
}

// ReceiveInput records a delivery against an order.
type ReceiveInput struct {
	Items          []ReceiveLine
	Note           string
	ReceivedAt     *time.Time
	ActorID        int64
	IdempotencyKey string
}

// Receipt is one delivery; its reference ties stock movements to the order.
type Receipt struct {
	ID              int64     `json:"id"`
	OrganizationID  int64     `json:"organization_id"`
	PurchaseOrderID int64     `json:"purchase_order_id"`
	ReferenceID     string    `json:"reference_id"`
	Note            string    `json:"note,omitempty"`
	ReceivedAt      time.Time `json:"received_at"`
	CreatedBy       int64     `json:"created_by,omitempty"`
}

// ReceiveResult is returned by ReceiveGoods.
type ReceiveResult struct {
	Order     PurchaseOrder        `json:"purchase_order"`
	Receipt   Receipt              `json:"receipt"`
	Movements []inventory.Movement `json:"movements"`
}

// ListFilter narrows order listings.
type ListFilter struct {
	OrganizationID int64
	Status         Status
	SupplierID     int64
	OutletID       int64
	From           time.Time
	To             time.Time
	Search         string
	Page           int
	PerPage        int
}

// SupplierRef is the supplier data needed to place an order.
type SupplierRef struct {
	ID       int64
	Name     string
	IsActive bool
}

var (
	// ErrOrderNotFound indicates record missing.
	ErrOrderNotFound = fmt.Errorf("purchasing: purchase order %w", shared.ErrNotFound)
	// ErrSupplierNotFound indicates the supplier is outside the organization.
	ErrSupplierNotFound = fmt.Errorf("purchasing: supplier %w", shared.ErrNotFound)
	// ErrSupplierInactive rejects orders to deactivated suppliers.
	ErrSupplierInactive = fmt.Errorf("purchasing: supplier is inactive: %w", shared.ErrValidation)
	// ErrInvalidTransition occurs when action violates status workflow.
	ErrInvalidTransition = fmt.Errorf("purchasing: invalid status transition: %w", shared.ErrConflict)
	// ErrNotEditable rejects edits outside draft.
	ErrNotEditable = fmt.Errorf("purchasing: only draft orders can be edited: %w", shared.ErrConflict)
	// ErrNotDeletable rejects deleting orders that reached the supplier.
	ErrNotDeletable = fmt.Errorf("purchasing: only draft or cancelled orders can be deleted: %w", shared.ErrConflict)
	// ErrOverReceipt rejects receiving more than ordered.
	ErrOverReceipt = fmt.Errorf("purchasing: received quantity exceeds ordered quantity: %w", shared.ErrValidation)
	// ErrNoItems rejects orders or receipts without lines.
	ErrNoItems = fmt.Errorf("purchasing: at least one item required: %w", shared.ErrValidation)
	// ErrDuplicateItem rejects repeated products or items.
	ErrDuplicateItem = fmt.Errorf("purchasing: item listed twice: %w", shared.ErrValidation)
	// ErrItemNotInOrder rejects receipt lines for foreign items.
	ErrItemNotInOrder = fmt.Errorf("purchasing: item does not belong to purchase order: %w", shared.ErrValidation)
	// ErrInvalidQuantity indicates invalid qty.
	ErrInvalidQuantity = fmt.Errorf("purchasing: quantity must be > 0: %w", shared.ErrValidation)
	// ErrQuantityPrecision rejects quantities finer than the stored scale.
	ErrQuantityPrecision = fmt.Errorf("purchasing: quantity allows at most 3 decimal places: %w", shared.ErrValidation)
	// ErrCostPrecision rejects unit costs finer than cents.
	ErrCostPrecision = fmt.Errorf("purchasing: unit cost allows at most 2 decimal places: %w", shared.ErrValidation)
	// ErrInvalidCost indicates negative cost.
	ErrInvalidCost = fmt.Errorf("purchasing: unit cost must be >= 0: %w", shared.ErrValidation)
	// ErrInvalidDiscount rejects discounts outside [0, subtotal].
	ErrInvalidDiscount = fmt.Errorf("purchasing: discount must be between 0 and subtotal: %w", shared.ErrValidation)
	// ErrInvalidTax rejects negative tax.
	ErrInvalidTax = fmt.Errorf("purchasing: tax must be >= 0: %w", shared.ErrValidation)
	// ErrInvalidStatus rejects unknown statuses.
	ErrInvalidStatus = fmt.Errorf("purchasing: unknown status: %w", shared.ErrValidation)
)
