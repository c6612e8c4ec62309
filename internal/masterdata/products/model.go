package products

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumbung-pos/lumbung/internal/inventory"
)

// Product represents a sellable stock item.
type Product struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	CategoryID     *int64          `json:"category_id"`
	CategoryName   string          `json:"category_name,omitempty"`
	SKU            string          `json:"sku"`
	Barcode        string          `json:"barcode"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Unit           string          `json:"unit"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	SellingPrice   decimal.Decimal `json:"selling_price"`
	MinStock       decimal.Decimal `json:"min_stock"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OutletStock is the on-hand position of the product at one outlet.
type OutletStock struct {
	OutletID   int64           `json:"outlet_id"`
	OutletName string          `json:"outlet_name"`
	Quantity   decimal.Decimal `json:"quantity"`
	AvgCost    decimal.Decimal `json:"avg_cost"`
	StockValue decimal.Decimal `json:"stock_value"`
	IsLow      bool            `json:"is_low"`
}

// StockTotals sums OutletStock rows.
type StockTotals struct {
	Quantity   decimal.Decimal `json:"quantity"`
	StockValue decimal.Decimal `json:"stock_value"`
}

// LastPurchase describes the most recent receipt of the product.
type LastPurchase struct {
	PONumber     string          `json:"po_number"`
	SupplierName string          `json:"supplier_name"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	ReceivedAt   time.Time       `json:"received_at"`
}

// Details aggregates everything shown on a product page.
type Details struct {
	Product         Product              `json:"product"`
	CategoryName    string               `json:"category_name"`
	Stock           []OutletStock        `json:"stock"`
	Totals          StockTotals          `json:"totals"`
	RecentMovements []inventory.Movement `json:"recent_movements"`
	LastPurchase    *LastPurchase        `json:"last_purchase"`
	GrossMargin     decimal.Decimal      `json:"gross_margin"`
	MarginPercent   decimal.Decimal      `json:"margin_percent"`
}

// RecentMovementLimit bounds the movements returned by Details.
const RecentMovementLimit = 10
