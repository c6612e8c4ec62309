package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	MovementInitial         MovementType = "initial"
	MovementPurchaseReceipt MovementType = "purchase_receipt"
	MovementSale            MovementType = "sale"
	MovementSaleVoid        MovementType = "sale_void"
	MovementAdjustment      MovementType = "adjustment"
	MovementTransferIn      MovementType = "transfer_in"
	MovementTransferOut     MovementType = "transfer_out"
	MovementStockOpname     MovementType = "stock_opname"
)

var movementTypes = map[MovementType]struct{}{
	MovementInitial:         {},
	MovementPurchaseReceipt: {},
	MovementSale:            {},
	MovementSaleVoid:        {},
	MovementAdjustment:      {},
	MovementTransferIn:      {},
	MovementTransferOut:     {},
	MovementStockOpname:     {},
}

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	_, ok := movementTypes[t]
	return ok
}

// Reference types recorded on movements.
const (
	RefPurchaseOrder = "purchase_order"
	RefSale          = "sale"
	RefAdjustment    = "adjustment"
	RefTransfer      = "transfer"
	RefOpname        = "stock_opname"
)

// Stock is the on-hand quantity of a product at an outlet.
type Stock struct {
	OrganizationID int64           `json:"organization_id"`
	OutletID       int64           `json:"outlet_id"`
	ProductID      int64           `json:"product_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	AvgCost        decimal.Decimal `json:"avg_cost"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// StockLevel is a stock row joined with product and outlet data.
type StockLevel struct {
	Stock
	OutletName  string          `json:"outlet_name"`
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	Unit        string          `json:"unit"`
	MinStock    decimal.Decimal `json:"min_stock"`
	StockValue  decimal.Decimal `json:"stock_value"`
	IsLow       bool            `json:"is_low"`
}

// Movement records a single change of on-hand stock.
type Movement struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	OutletID       int64           `json:"outlet_id"`
	ProductID      int64           `json:"product_id"`
	Type           MovementType    `json:"movement_type"`
	Quantity       decimal.Decimal `json:"quantity"`
	StockBefore    decimal.Decimal `json:"stock_before"`
	StockAfter     decimal.Decimal `json:"stock_after"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	ReferenceType  string          `json:"reference_type,omitempty"`
	ReferenceID    string          `json:"reference_id,omitempty"`
	Note           string          `json:"note,omitempty"`
	CreatedBy      int64           `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MovementInput is the ledger instruction applied by Apply.
type MovementInput struct {
	OrganizationID int64
	OutletID       int64
	ProductID      int64
	Type           MovementType
	// Quantity is signed: positive adds stock, negative removes it.
	Quantity decimal.Decimal
	// UnitCost prices inbound stock. When not valid the current average is used.
	UnitCost      decimal.NullDecimal
	ReferenceType string
	ReferenceID   string
	Note          string
	CreatedBy     int64
	AllowNegative bool
}

// OutletRef is the slice of outlet data the ledger needs.
type OutletRef struct {
	ID       int64
	Name     string
	IsActive bool
}

// ProductRef is the slice of product data the ledger and its callers need.
type ProductRef struct {
	ID           int64
	SKU          string
	Name         string
	CategoryID   *int64
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	MinStock     decimal.Decimal
	IsActive     bool
}

// StockFilter filters stock listings.
type StockFilter struct {
	OrganizationID int64
	OutletID       int64
	Search         string
	LowOnly        bool
	Page           int
	PerPage        int
}

// MovementFilter filters movement listings.
type MovementFilter struct {
	OrganizationID int64
	OutletID       int64
	ProductID      int64
	Type           MovementType
	From           time.Time
	To             time.Time
	Page           int
	PerPage        int
}

// AdjustmentInput describes a manual correction.
type AdjustmentInput struct {
	OutletID       int64
	ProductID      int64
	Quantity       decimal.Decimal
	UnitCost       decimal.NullDecimal
	Reason         string
	ActorID        int64
	IdempotencyKey string
}

// TransferLine is one product moved between outlets.
type TransferLine struct {
	ProductID int64
	Quantity  decimal.Decimal
}

// TransferInput moves stock between outlets of the same organization.
type TransferInput struct {
	FromOutletID   int64
	ToOutletID     int64
	Lines          []TransferLine
	Note           string
	ActorID        int64
	IdempotencyKey string
}

// TransferResult pairs the outbound and inbound movements.
type TransferResult struct {
	Reference string     `json:"reference"`
	Out       []Movement `json:"out"`
	In        []Movement `json:"in"`
}

// OpnameLine is a physical count for one product.
type OpnameLine struct {
	ProductID       int64
	CountedQuantity decimal.Decimal
}

// OpnameInput records a stock take at an outlet.
type OpnameInput struct {
	OutletID       int64
	Lines          []OpnameLine
	Note           string
	ActorID        int64
	IdempotencyKey string
}

// OpnameResult lists the corrections written by a stock take.
type OpnameResult struct {
	Reference string     `json:"reference"`
	Movements []Movement `json:"movements"`
	Unchanged int        `json:"unchanged"`
}

// LowStockItem is a product at or below its minimum stock.
type LowStockItem struct {
	OutletID    int64           `json:"outlet_id"`
	OutletName  string          `json:"outlet_name"`
	ProductID   int64           `json:"product_id"`
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	MinStock    decimal.Decimal `json:"min_stock"`
	Shortage    decimal.Decimal `json:"shortage"`
}

// AlertSnapshot is the last low-stock scan result for an organization.
type AlertSnapshot struct {
	OrganizationID int64          `json:"organization_id"`
	GeneratedAt    time.Time      `json:"generated_at"`
	Live           bool           `json:"live"`
	Items          []LowStockItem `json:"items"`
}

var (
	// ErrNegativeStock triggered when movement would result negative qty.
	ErrNegativeStock = fmt.Errorf("inventory: insufficient stock: %w", shared.ErrConflict)
	// ErrInvalidQuantity indicates invalid qty.
	ErrInvalidQuantity = fmt.Errorf("inventory: quantity must be non zero: %w", shared.ErrValidation)
	// ErrQuantityPrecision rejects quantities finer than the stored scale.
	ErrQuantityPrecision = fmt.Errorf("inventory: quantity allows at most 3 decimal places: %w", shared.ErrValidation)
	// ErrInvalidUnitCost indicates invalid cost value.
	ErrInvalidUnitCost = fmt.Errorf("inventory: unit cost must be >= 0 with at most 4 decimal places: %w", shared.ErrValidation)
	// ErrInvalidMovementType rejects unknown movement types.
	ErrInvalidMovementType = fmt.Errorf("inventory: unknown movement type: %w", shared.ErrValidation)
	// ErrOutletNotFound is returned for outlets outside the organization.
	ErrOutletNotFound = fmt.Errorf("inventory: outlet %w", shared.ErrNotFound)
	// ErrOutletInactive rejects movements at deactivated outlets.
	ErrOutletInactive = fmt.Errorf("inventory: outlet is inactive: %w", shared.ErrConflict)
	// ErrProductNotFound is returned for products outside the organization.
	ErrProductNotFound = fmt.Errorf("inventory: product %w", shared.ErrNotFound)
	// ErrSameOutlet rejects transfers to the source outlet.
	ErrSameOutlet = fmt.Errorf("inventory: source and destination outlet must differ: %w", shared.ErrValidation)
	// ErrReasonRequired rejects adjustments without a reason.
	ErrReasonRequired = fmt.Errorf("inventory: reason required: %w", shared.ErrValidation)
	// ErrNoLines rejects empty transfers and stock takes.
	ErrNoLines = fmt.Errorf("inventory: at least one line required: %w", shared.ErrValidation)
	// ErrDuplicateProduct rejects repeated products within one document.
	ErrDuplicateProduct = fmt.Errorf("inventory: product listed twice: %w", shared.ErrValidation)
	// ErrScopeRequired rejects movements without organization, outlet or product.
	ErrScopeRequired = fmt.Errorf("inventory: organization, outlet and product required: %w", shared.ErrValidation)
	// ErrStockNotFound indicates missing stock row.
	ErrStockNotFound = fmt.Errorf("inventory: stock row %w", shared.ErrNotFound)
)
