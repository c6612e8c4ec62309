package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs report aggregations in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// completedSales scopes every sales query; args are $1 org, $2 from, $3 until, $4 outlet (0 = all).
const completedSales = `WITH s AS (
  SELECT id, outlet_id, subtotal, discount, tax, total, payment_method, sold_at
  FROM sales
  WHERE organization_id = $1 AND status = 'completed' AND sold_at >= $2 AND sold_at < $3
    AND ($4::bigint = 0 OR outlet_id = $4)
), si AS (
  SELECT i.* FROM sale_items i JOIN s ON s.id = i.sale_id
), c AS (
  SELECT sale_id, SUM(quantity * unit_cost) AS cogs FROM si GROUP BY sale_id
)
`

func (q salesQuery) args(extra ...any) []any {
	return append([]any{q.OrganizationID, q.From, q.Until, q.OutletID}, extra...)
}

// SalesSummary reads the headline sums.
func (r *Repository) SalesSummary(ctx context.Context, q salesQuery) (SummaryTotals, error) {
	var t SummaryTotals
	err := r.pool.QueryRow(ctx, completedSales+`SELECT
  (SELECT COUNT(*) FROM s),
  COALESCE((SELECT SUM(quantity) FROM si), 0),
  COALESCE((SELECT SUM(quantity * unit_price) FROM si), 0),
  COALESCE((SELECT SUM(discount) FROM si), 0),
  COALESCE((SELECT SUM(discount) FROM s), 0),
  COALESCE((SELECT SUM(tax) FROM s), 0),
  COALESCE((SELECT SUM(total) FROM s), 0),
  COALESCE((SELECT SUM(cogs) FROM c), 0)`, q.args()...).
		Scan(&t.Transactions, &t.ItemsSold, &t.GrossSales, &t.ItemDiscounts, &t.SaleDiscounts, &t.Tax, &t.Revenue, &t.COGS)
	return t, err
}

// SalesTimeline buckets sales with date_trunc.
func (r *Repository) SalesTimeline(ctx context.Context, q salesQuery, g Granularity) ([]TimelinePoint, error) {
	rows, err := r.pool.Query(ctx, completedSales+`SELECT date_trunc($5::text, s.sold_at AT TIME ZONE 'UTC') AS bucket,
  COUNT(*), SUM(s.subtotal - s.discount), SUM(s.total), COALESCE(SUM(c.cogs), 0)
FROM s LEFT JOIN c ON c.sale_id = s.id
GROUP BY 1 ORDER BY 1`, q.args(string(g))...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelinePoint, error) {
		var p TimelinePoint
		var bucket time.Time
		err := row.Scan(&bucket, &p.Transactions, &p.NetSales, &p.Revenue, &p.COGS)
		p.Bucket = bucket.UTC()
		return p, err
	})
}

// TopProducts ranks products by line revenue.
func (r *Repository) TopProducts(ctx context.Context, q salesQuery, limit int) ([]ProductRow, error) {
	rows, err := r.pool.Query(ctx, completedSales+`SELECT si.product_id, MAX(si.sku), MAX(si.product_name),
  SUM(si.quantity), SUM(si.subtotal), SUM(si.quantity * si.unit_cost)
FROM si GROUP BY si.product_id
ORDER BY SUM(si.subtotal) DESC, si.product_id
LIMIT $5`, q.args(limit)...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ProductRow, error) {
		var p ProductRow
		err := row.Scan(&p.ProductID, &p.SKU, &p.Name, &p.Quantity, &p.Revenue, &p.COGS)
		return p, err
	})
}

// SalesByCategory groups line revenue by the product's current category.
func (r *Repository) SalesByCategory(ctx context.Context, q salesQuery) ([]CategoryRow, error) {
	rows, err := r.pool.Query(ctx, completedSales+`SELECT p.category_id, cat.name,
  SUM(si.quantity), SUM(si.subtotal), SUM(si.quantity * si.unit_cost)
FROM si
JOIN products p ON p.id = si.product_id
LEFT JOIN categories cat ON cat.id = p.category_id
GROUP BY p.category_id, cat.name
ORDER BY SUM(si.subtotal) DESC`, q.args()...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (CategoryRow, error) {
		var c CategoryRow
		var name *string
		err := row.Scan(&c.CategoryID, &name, &c.Quantity, &c.Revenue, &c.COGS)
		if name != nil {
			c.Name = *name
		}
		return c, err
	})
}

// SalesByOutlet groups sales per outlet.
func (r *Repository) SalesByOutlet(ctx context.Context, q salesQuery) ([]OutletRow, error) {
	rows, err := r.pool.Query(ctx, completedSales+`SELECT s.outlet_id, o.name, COUNT(*),
  SUM(s.subtotal - s.discount), SUM(s.total), COALESCE(SUM(c.cogs), 0)
FROM s
JOIN outlets o ON o.id = s.outlet_id
LEFT JOIN c ON c.sale_id = s.id
GROUP BY s.outlet_id, o.name
ORDER BY SUM(s.total) DESC`, q.args()...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OutletRow, error) {
		var o OutletRow
		err := row.Scan(&o.OutletID, &o.Name, &o.Transactions, &o.NetSales, &o.Revenue, &o.COGS)
		return o, err
	})
}

// SalesByPayment groups sales per payment method.
func (r *Repository) SalesByPayment(ctx context.Context, q salesQuery) ([]PaymentRow, error) {
	rows, err := r.pool.Query(ctx, completedSales+`SELECT s.payment_method, COUNT(*), SUM(s.total)
FROM s GROUP BY s.payment_method ORDER BY SUM(s.total) DESC`, q.args()...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PaymentRow, error) {
		var p PaymentRow
		err := row.Scan(&p.Method, &p.Transactions, &p.Revenue)
		return p, err
	})
}

// Valuation lists non-zero stock rows with their value at average cost.
func (r *Repository) Valuation(ctx context.Context, orgID, outletID int64) ([]ValuationRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT st.outlet_id, o.name, st.product_id, p.sku, p.name, st.quantity, st.avg_cost
FROM outlet_stocks st
JOIN outlets o ON o.id = st.outlet_id
JOIN products p ON p.id = st.product_id
WHERE st.organization_id = $1 AND ($2::bigint = 0 OR st.outlet_id = $2) AND st.quantity <> 0
ORDER BY o.name, p.name`, orgID, outletID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ValuationRow, error) {
		var v ValuationRow
		err := row.Scan(&v.OutletID, &v.OutletName, &v.ProductID, &v.SKU, &v.ProductName, &v.Quantity, &v.AvgCost)
		return v, err
	})
}

// PurchasesBySupplier aggregates non-cancelled orders dated within [from, to].
func (r *Repository) PurchasesBySupplier(ctx context.Context, orgID int64, from, to time.Time) ([]SupplierPurchase, error) {
	rows, err := r.pool.Query(ctx, `SELECT sup.id, sup.name, COUNT(po.id), COALESCE(SUM(po.total), 0), COALESCE(SUM(recv.value), 0)
FROM purchase_orders po
JOIN suppliers sup ON sup.id = po.supplier_id
LEFT JOIN LATERAL (
  SELECT SUM(quantity_received * unit_cost) AS value FROM purchase_order_items WHERE purchase_order_id = po.id
) recv ON TRUE
WHERE po.organization_id = $1 AND po.order_date BETWEEN $2 AND $3 AND po.status <> 'cancelled'
GROUP BY sup.id, sup.name
ORDER BY SUM(po.total) DESC`, orgID, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SupplierPurchase, error) {
		var s SupplierPurchase
		err := row.Scan(&s.SupplierID, &s.Name, &s.Orders, &s.Ordered, &s.Received)
		return s, err
	})
}

// PurchaseStatusCounts counts orders per status within [from, to].
func (r *Repository) PurchaseStatusCounts(ctx context.Context, orgID int64, from, to time.Time) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM purchase_orders
WHERE organization_id = $1 AND order_date BETWEEN $2 AND $3 GROUP BY status`, orgID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
