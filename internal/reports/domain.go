package reports

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

// Granularity buckets the sales timeline.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

// Valid reports whether g is supported.
func (g Granularity) Valid() bool {
	return g == GranularityDay || g == GranularityWeek || g == GranularityMonth
}

const (
	// MaxRangeDays bounds a single sales report.
	MaxRangeDays = 366
	// DefaultTopN is used when no limit is requested.
	DefaultTopN = 10
	// MaxTopN caps the top products section.
	MaxTopN = 100
)

// SalesProfitFilter selects completed sales between two dates inclusive.
type SalesProfitFilter struct {
	OrganizationID int64       `json:"organization_id"`
	From           time.Time   `json:"from"`
	To             time.Time   `json:"to"`
	OutletID       int64       `json:"outlet_id,omitempty"`
	Granularity    Granularity `json:"granularity"`
	TopN           int         `json:"top_n"`
}

// salesQuery is the normalised scope handed to the repository. Until is exclusive.
type salesQuery struct {
	OrganizationID int64
	OutletID       int64
	From           time.Time
	Until          time.Time
}

// SummaryTotals are raw sums read from storage.
type SummaryTotals struct {
	Transactions  int64
	ItemsSold     decimal.Decimal
	GrossSales    decimal.Decimal
	ItemDiscounts decimal.Decimal
	SaleDiscounts decimal.Decimal
	Tax           decimal.Decimal
	Revenue       decimal.Decimal
	COGS          decimal.Decimal
}

// Summary is the headline block of the sales and profit report.
type Summary struct {
	Transactions       int64             `json:"transactions"`
	ItemsSold          decimal.Decimal   `json:"items_sold"`
	GrossSales         decimal.Decimal   `json:"gross_sales"`
	Discounts          decimal.Decimal   `json:"discounts"`
	NetSales           decimal.Decimal   `json:"net_sales"`
	Tax                decimal.Decimal   `json:"tax"`
	Revenue            decimal.Decimal   `json:"revenue"`
	COGS               decimal.Decimal   `json:"cogs"`
	GrossProfit        decimal.Decimal   `json:"gross_profit"`
	MarginPct          decimal.Decimal   `json:"margin_pct"`
	AverageTransaction decimal.Decimal   `json:"average_transaction"`
	Formatted          map[string]string `json:"formatted"`
}

// TimelinePoint is one bucket of the timeline.
type TimelinePoint struct {
	Bucket       time.Time       `json:"bucket"`
	Transactions int64           `json:"transactions"`
	NetSales     decimal.Decimal `json:"net_sales"`
	Revenue      decimal.Decimal `json:"revenue"`
	COGS         decimal.Decimal `json:"cogs"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
}

// ProductRow ranks a product by revenue.
type ProductRow struct {
	ProductID   int64           `json:"product_id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
	COGS        decimal.Decimal `json:"cogs"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
	MarginPct   decimal.Decimal `json:"margin_pct"`
}

// CategoryRow aggregates sales per product category.
type CategoryRow struct {
	CategoryID  *int64          `json:"category_id"`
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
	COGS        decimal.Decimal `json:"cogs"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
}

// OutletRow aggregates sales per outlet.
type OutletRow struct {
	OutletID     int64           `json:"outlet_id"`
	Name         string          `json:"name"`
	Transactions int64           `json:"transactions"`
	NetSales     decimal.Decimal `json:"net_sales"`
	Revenue      decimal.Decimal `json:"revenue"`
	COGS         decimal.Decimal `json:"cogs"`
	GrossProfit  decimal.Decimal `json:"gross_profit"`
}

// PaymentRow aggregates sales per payment method.
type PaymentRow struct {
	Method       string          `json:"method"`
	Transactions int64           `json:"transactions"`
	Revenue      decimal.Decimal `json:"revenue"`
	SharePct     decimal.Decimal `json:"share_pct"`
}

// SalesProfitReport is the advanced sales and profit report.
type SalesProfitReport struct {
	Filter          SalesProfitFilter `json:"filter"`
	GeneratedAt     time.Time         `json:"generated_at"`
	Summary         Summary           `json:"summary"`
	Timeline        []TimelinePoint   `json:"timeline"`
	TopProducts     []ProductRow      `json:"top_products"`
	ByCategory      []CategoryRow     `json:"by_category"`
	ByOutlet        []OutletRow       `json:"by_outlet"`
	ByPaymentMethod []PaymentRow      `json:"by_payment_method"`
}

// ValuationRow is the stock value of one product at one outlet.
type ValuationRow struct {
	OutletID    int64           `json:"outlet_id"`
	OutletName  string          `json:"-"`
	ProductID   int64           `json:"product_id"`
	SKU         string          `json:"sku"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgCost     decimal.Decimal `json:"avg_cost"`
	Value       decimal.Decimal `json:"value"`
}

// OutletValuation groups valuation rows for an outlet.
type OutletValuation struct {
	OutletID int64           `json:"outlet_id"`
	Name     string          `json:"name"`
	Items    []ValuationRow  `json:"items"`
	Quantity decimal.Decimal `json:"quantity"`
	Value    decimal.Decimal `json:"value"`
}

// InventoryValuation is the stock value report.
type InventoryValuation struct {
	GeneratedAt    time.Time         `json:"generated_at"`
	Outlets        []OutletValuation `json:"outlets"`
	TotalQuantity  decimal.Decimal   `json:"total_quantity"`
	TotalValue     decimal.Decimal   `json:"total_value"`
	FormattedValue string            `json:"formatted_value"`
}

// SupplierPurchase aggregates non-cancelled orders per supplier.
type SupplierPurchase struct {
	SupplierID int64           `json:"supplier_id"`
	Name       string          `json:"name"`
	Orders     int64           `json:"orders"`
	Ordered    decimal.Decimal `json:"ordered_value"`
	Received   decimal.Decimal `json:"received_value"`
}

// PurchaseSummary is the purchasing report.
type PurchaseSummary struct {
	From          time.Time          `json:"from"`
	To            time.Time          `json:"to"`
	Suppliers     []SupplierPurchase `json:"suppliers"`
	ByStatus      map[string]int64   `json:"by_status"`
	TotalOrdered  decimal.Decimal    `json:"total_ordered"`
	TotalReceived decimal.Decimal    `json:"total_received"`
}

var (
	// ErrInvalidRange rejects From after To or missing dates.
	ErrInvalidRange = fmt.Errorf("reports: from must be on or before to: %w", shared.ErrValidation)
	// ErrRangeTooLong rejects ranges above MaxRangeDays.
	ErrRangeTooLong = fmt.Errorf("reports: range longer than %d days: %w", MaxRangeDays, shared.ErrValidation)
	// ErrInvalidGranularity rejects unknown bucket sizes.
	ErrInvalidGranularity = fmt.Errorf("reports: granularity must be day, week or month: %w", shared.ErrValidation)
	// ErrInvalidTopN rejects limits outside 1..MaxTopN.
	ErrInvalidTopN = fmt.Errorf("reports: top_n must be between 1 and %d: %w", MaxTopN, shared.ErrValidation)
)
