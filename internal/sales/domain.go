package sales

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

// Status of a sale.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusVoided    Status = "voided"
)

// Valid reports whether s is known.
func (s Status) Valid() bool {
	return s == StatusCompleted || s == StatusVoided
}

// PaymentMethod is how the customer paid.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentQRIS     PaymentMethod = "qris"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentEWallet  PaymentMethod = "ewallet"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentQRIS, PaymentTransfer, PaymentEWallet:
		return true
	}
	return false
}

// Sale is a completed POS transaction.
type Sale struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	OutletID       int64           `json:"outlet_id"`
	OutletName     string          `json:"outlet_name,omitempty"`
	Number         string          `json:"number"`
	ReferenceID    string          `json:"reference_id"`
	Status         Status          `json:"status"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	Change         decimal.Decimal `json:"change"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	CustomerName   string          `json:"customer_name,omitempty"`
	Note           string          `json:"note,omitempty"`
	CashierID      int64           `json:"cashier_id,omitempty"`
	SoldAt         time.Time       `json:"sold_at"`
	VoidedAt       *time.Time      `json:"voided_at,omitempty"`
	VoidedBy       int64           `json:"voided_by,omitempty"`
	VoidReason     string          `json:"void_reason,omitempty"`
	Items          []SaleItem      `json:"items,omitempty"`
}

// SaleItem is one sold product line. UnitCost is the moving average at sale time.
type SaleItem struct {
	ID          int64           `json:"id"`
	SaleID      int64           `json:"sale_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// ItemInput is a cart line.
type ItemInput struct {
	ProductID int64
	Quantity  decimal.Decimal
	// UnitPrice overrides the product selling price when valid.
	UnitPrice decimal.NullDecimal
	Discount  decimal.Decimal
}

// CheckoutInput describes a cart being paid.
type CheckoutInput struct {
	OutletID       int64
	Items          []ItemInput
	Discount       decimal.Decimal
	TaxRate        decimal.Decimal
	PaymentMethod  PaymentMethod
	AmountPaid     decimal.Decimal
	CustomerName   string
	Note           string
	CashierID      int64
	IdempotencyKey string
}

// VoidInput cancels a completed sale.
type VoidInput struct {
	Reason  string
	ActorID int64
}

// ListFilter narrows sale listings.
type ListFilter struct {
	OrganizationID int64
	OutletID       int64
	Status         Status
	PaymentMethod  PaymentMethod
	From           time.Time
	To             time.Time
	Page           int
	PerPage        int
}

var (
	// ErrSaleNotFound indicates the sale is missing or belongs to another organization.
	ErrSaleNotFound = fmt.Errorf("sales: sale %w", shared.ErrNotFound)
	// ErrNoItems rejects empty carts.
	ErrNoItems = fmt.Errorf("sales: at least one item required: %w", shared.ErrValidation)
	// ErrInvalidQuantity rejects non-positive quantities.
	ErrInvalidQuantity = fmt.Errorf("sales: quantity must be > 0: %w", shared.ErrValidation)
	// ErrQuantityPrecision rejects quantities finer than the stored scale.
	ErrQuantityPrecision = fmt.Errorf("sales: quantity allows at most 3 decimal places: %w", shared.ErrValidation)
	// ErrPricePrecision rejects prices finer than cents.
	ErrPricePrecision = fmt.Errorf("sales: unit price allows at most 2 decimal places: %w", shared.ErrValidation)
	// ErrInvalidPrice rejects negative prices.
	ErrInvalidPrice = fmt.Errorf("sales: unit price must be >= 0: %w", shared.ErrValidation)
	// ErrInvalidDiscount rejects discounts outside [0, gross].
	ErrInvalidDiscount = fmt.Errorf("sales: discount out of range: %w", shared.ErrValidation)
	// ErrInvalidTaxRate rejects rates outside [0, 100].
	ErrInvalidTaxRate = fmt.Errorf("sales: tax rate must be between 0 and 100: %w", shared.ErrValidation)
	// ErrInvalidPaymentMethod rejects unknown methods.
	ErrInvalidPaymentMethod = fmt.Errorf("sales: unknown payment method: %w", shared.ErrValidation)
	// ErrInsufficientPayment rejects cash below the total.
	ErrInsufficientPayment = fmt.Errorf("sales: amount paid is less than total: %w", shared.ErrValidation)
	// ErrProductInactive rejects selling deactivated products.
	ErrProductInactive = fmt.Errorf("sales: product is inactive: %w", shared.ErrValidation)
	// ErrAlreadyVoided rejects voiding twice.
	ErrAlreadyVoided = fmt.Errorf("sales: sale already voided: %w", shared.ErrConflict)
	// ErrVoidReasonRequired rejects voids without a reason.
	ErrVoidReasonRequired = fmt.Errorf("sales: void reason required: %w", shared.ErrValidation)
	// ErrInvalidStatus rejects unknown status filters.
	ErrInvalidStatus = fmt.Errorf("sales: unknown status: %w", shared.ErrValidation)
)
