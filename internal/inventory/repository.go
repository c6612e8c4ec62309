package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-pos/lumbung/internal/platform/db"
	"github.com/lumbung-pos/lumbung/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	StockTx
	GetOutlet(ctx context.Context, orgID, outletID int64) (OutletRef, error)
	GetProduct(ctx context.Context, orgID, productID int64) (ProductRef, error)
}

// TxRepo implements TxRepository on top of a pgx transaction. Other modules
// embed it to post movements inside their own transactions.
type TxRepo struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction.
func NewTxRepository(tx pgx.Tx) *TxRepo {
	return &TxRepo{tx: tx}
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// LockStock selects the stock row FOR UPDATE.
func (r *TxRepo) LockStock(ctx context.Context, orgID, outletID, productID int64) (Stock, error) {
	var stock Stock
	err := r.tx.QueryRow(ctx, `SELECT organization_id, outlet_id, product_id, quantity, avg_cost, updated_at
FROM outlet_stocks WHERE organization_id=$1 AND outlet_id=$2 AND product_id=$3 FOR UPDATE`, orgID, outletID, productID).
		Scan(&stock.OrganizationID, &stock.OutletID, &stock.ProductID, &stock.Quantity, &stock.AvgCost, &stock.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{OrganizationID: orgID, OutletID: outletID, ProductID: productID}, ErrStockNotFound
		}
		return Stock{}, err
	}
	return stock, nil
}

// SaveStock upserts the stock row.
func (r *TxRepo) SaveStock(ctx context.Context, stock Stock) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO outlet_stocks (organization_id, outlet_id, product_id, quantity, avg_cost, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (outlet_id, product_id) DO UPDATE SET quantity=EXCLUDED.quantity, avg_cost=EXCLUDED.avg_cost, updated_at=NOW()`,
		stock.OrganizationID, stock.OutletID, stock.ProductID, stock.Quantity, stock.AvgCost)
	return err
}

// InsertMovement appends to the ledger.
func (r *TxRepo) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements
(organization_id, outlet_id, product_id, movement_type, quantity, stock_before, stock_after, unit_cost, reference_type, reference_id, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),NULLIF($10,''),NULLIF($11,''),$12,NOW())
RETURNING id, created_at`,
		m.OrganizationID, m.OutletID, m.ProductID, string(m.Type), m.Quantity, m.StockBefore, m.StockAfter, m.UnitCost,
		m.ReferenceType, m.ReferenceID, m.Note, db.NullInt64(m.CreatedBy)).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return Movement{}, err
	}
	return m, nil
}

// GetOutlet loads an outlet owned by the organization. The row is share-locked
// so it cannot be deleted while stock is being posted.
func (r *TxRepo) GetOutlet(ctx context.Context, orgID, outletID int64) (OutletRef, error) {
	var ref OutletRef
	err := r.tx.QueryRow(ctx, `SELECT id, name, is_active FROM outlets WHERE organization_id=$1 AND id=$2 FOR SHARE`, orgID, outletID).
		Scan(&ref.ID, &ref.Name, &ref.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return OutletRef{}, ErrOutletNotFound
	}
	return ref, err
}

// GetProduct loads a product owned by the organization.
func (r *TxRepo) GetProduct(ctx context.Context, orgID, productID int64) (ProductRef, error) {
	var ref ProductRef
	err := r.tx.QueryRow(ctx, `SELECT id, sku, name, category_id, cost_price, selling_price, min_stock, is_active
FROM products WHERE organization_id=$1 AND id=$2 FOR SHARE`, orgID, productID).
		Scan(&ref.ID, &ref.SKU, &ref.Name, &ref.CategoryID, &ref.CostPrice, &ref.SellingPrice, &ref.MinStock, &ref.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductRef{}, ErrProductNotFound
	}
	return ref, err
}

// ListStock returns stock levels with product data.
func (r *Repository) ListStock(ctx context.Context, filter StockFilter) ([]StockLevel, int, error) {
	where := []string{"s.organization_id = $1"}
	args := []any{filter.OrganizationID}
	if filter.OutletID != 0 {
		args = append(args, filter.OutletID)
		where = append(where, fmt.Sprintf("s.outlet_id = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		where = append(where, fmt.Sprintf("(p.name ILIKE $%[1]d OR p.sku ILIKE $%[1]d)", len(args)))
	}
	if filter.LowOnly {
		where = append(where, "p.min_stock > 0 AND s.quantity <= p.min_stock")
	}
	base := ` FROM outlet_stocks s
JOIN products p ON p.id = s.product_id
JOIN outlets o ON o.id = s.outlet_id
WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+base, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	args = append(args, perPage, shared.Offset(page, perPage))
	query := `SELECT s.organization_id, s.outlet_id, s.product_id, s.quantity, s.avg_cost, s.updated_at,
o.name, p.sku, p.name, p.unit, p.min_stock` + base +
		fmt.Sprintf(" ORDER BY o.name, p.name, s.product_id LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var lvl StockLevel
		if err := rows.Scan(&lvl.OrganizationID, &lvl.OutletID, &lvl.ProductID, &lvl.Quantity, &lvl.AvgCost, &lvl.UpdatedAt,
			&lvl.OutletName, &lvl.SKU, &lvl.ProductName, &lvl.Unit, &lvl.MinStock); err != nil {
			return nil, 0, err
		}
		levels = append(levels, decorateLevel(lvl))
	}
	return levels, total, rows.Err()
}

// ListMovements returns ledger rows newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	where := []string{"organization_id = $1"}
	args := []any{filter.OrganizationID}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.OutletID != 0 {
		add("outlet_id = $%d", filter.OutletID)
	}
	if filter.ProductID != 0 {
		add("product_id = $%d", filter.ProductID)
	}
	if filter.Type != "" {
		add("movement_type = $%d", string(filter.Type))
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}
	base := ` FROM stock_movements WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+base, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	args = append(args, perPage, shared.Offset(page, perPage))
	query := `SELECT id, organization_id, outlet_id, product_id, movement_type, quantity, stock_before, stock_after, unit_cost,
COALESCE(reference_type,''), COALESCE(reference_id,''), COALESCE(note,''), COALESCE(created_by,0), created_at` + base +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		var mt string
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.OutletID, &m.ProductID, &mt, &m.Quantity, &m.StockBefore, &m.StockAfter,
			&m.UnitCost, &m.ReferenceType, &m.ReferenceID, &m.Note, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		m.Type = MovementType(mt)
		movements = append(movements, m)
	}
	return movements, total, rows.Err()
}

// LowStock lists active products at or below their minimum stock.
func (r *Repository) LowStock(ctx context.Context, orgID, outletID int64) ([]LowStockItem, error) {
	args := []any{orgID}
	outletClause := ""
	if outletID != 0 {
		args = append(args, outletID)
		outletClause = " AND s.outlet_id = $2"
	}
	rows, err := r.pool.Query(ctx, `SELECT s.outlet_id, o.name, s.product_id, p.sku, p.name, s.quantity, p.min_stock
FROM outlet_stocks s
JOIN products p ON p.id = s.product_id
JOIN outlets o ON o.id = s.outlet_id
WHERE s.organization_id = $1 AND p.is_active AND o.is_active AND p.min_stock > 0 AND s.quantity <= p.min_stock`+outletClause+`
ORDER BY (p.min_stock - s.quantity) DESC, p.name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LowStockItem
	for rows.Next() {
		var item LowStockItem
		if err := rows.Scan(&item.OutletID, &item.OutletName, &item.ProductID, &item.SKU, &item.ProductName, &item.Quantity, &item.MinStock); err != nil {
			return nil, err
		}
		item.Shortage = item.MinStock.Sub(item.Quantity)
		items = append(items, item)
	}
	return items, rows.Err()
}

func decorateLevel(lvl StockLevel) StockLevel {
	lvl.StockValue = shared.RoundMoney(lvl.Quantity.Mul(lvl.AvgCost))
	lvl.IsLow = lvl.MinStock.IsPositive() && lvl.Quantity.LessThanOrEqual(lvl.MinStock)
	return lvl
}
