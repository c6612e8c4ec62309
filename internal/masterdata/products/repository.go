package products

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-pos/lumbung/internal/inventory"
	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, orgID, id int64) (Product, error)
	CategoryExists(ctx context.Context, orgID, categoryID int64) (bool, error)
	// Create and Update apply quota under the organization lock whenever the
	// write leaves one more product active.
	Create(ctx context.Context, product Product, quota shared.QuotaFunc) (Product, error)
	Update(ctx context.Context, product Product, quota shared.QuotaFunc) (Product, error)
	HasMovements(ctx context.Context, orgID, id int64) (bool, error)
	Deactivate(ctx context.Context, orgID, id int64) error
	Delete(ctx context.Context, orgID, id int64) error

	StockByOutlet(ctx context.Context, orgID, id int64) ([]OutletStock, error)
	RecentMovements(ctx context.Context, orgID, id int64, limit int) ([]inventory.Movement, error)
	LastPurchase(ctx context.Context, orgID, id int64) (*LastPurchase, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productColumns = `p.id, p.organization_id, p.category_id, COALESCE(c.name,''), p.sku, COALESCE(p.barcode,''), p.name,
COALESCE(p.description,''), p.unit, p.cost_price, p.selling_price, p.min_stock, p.is_active, p.created_at, p.updated_at`

const productFrom = ` FROM products p LEFT JOIN categories c ON c.id = p.category_id`

var sortColumns = map[string]string{
	"sku":           "p.sku",
	"name":          "p.name",
	"selling_price": "p.selling_price",
	"created_at":    "p.created_at",
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.OrganizationID, &p.CategoryID, &p.CategoryName, &p.SKU, &p.Barcode, &p.Name,
		&p.Description, &p.Unit, &p.CostPrice, &p.SellingPrice, &p.MinStock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, shared.MapStoreError(err)
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	where := ` WHERE p.organization_id = $1`
	args := []any{filters.OrganizationID}
	if filters.Search != "" {
		args = append(args, filters.SearchPattern())
		n := strconv.Itoa(len(args))
		where += ` AND (p.name ILIKE $` + n + ` OR p.sku ILIKE $` + n + ` OR p.barcode ILIKE $` + n + `)`
	}
	if filters.CategoryID != nil {
		args = append(args, *filters.CategoryID)
		where += ` AND p.category_id = $` + strconv.Itoa(len(args))
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND p.is_active = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filters.Limit, filters.Offset())
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+productFrom+where+
		` ORDER BY `+filters.OrderBy(sortColumns, "p.name")+
		` LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+productFrom+` WHERE p.organization_id=$1 AND p.id=$2`, orgID, id))
}

func (r *repository) CategoryExists(ctx context.Context, orgID, categoryID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE organization_id=$1 AND id=$2)`, orgID, categoryID).Scan(&ok)
	return ok, err
}

func (r *repository) Create(ctx context.Context, p Product, quota shared.QuotaFunc) (Product, error) {
	var id int64
	err := shared.WithQuotaLock(ctx, r.pool, p.OrganizationID, func(tx pgx.Tx) error {
		if p.IsActive {
			if err := shared.CheckQuota(ctx, tx, "products", p.OrganizationID, quota); err != nil {
				return err
			}
		}
		err := tx.QueryRow(ctx, `INSERT INTO products
(organization_id, category_id, sku, barcode, name, description, unit, cost_price, selling_price, min_stock, is_active, created_at, updated_at)
VALUES ($1,$2,$3,NULLIF($4,''),$5,NULLIF($6,''),$7,$8,$9,$10,$11,NOW(),NOW()) RETURNING id`,
			p.OrganizationID, p.CategoryID, p.SKU, p.Barcode, p.Name, p.Description, p.Unit,
			p.CostPrice, p.SellingPrice, p.MinStock, p.IsActive).Scan(&id)
		return shared.MapStoreError(err)
	})
	if err != nil {
		return Product{}, err
	}
	return r.Get(ctx, p.OrganizationID, id)
}

func (r *repository) Update(ctx context.Context, p Product, quota shared.QuotaFunc) (Product, error) {
	err := shared.WithQuotaLock(ctx, r.pool, p.OrganizationID, func(tx pgx.Tx) error {
		var wasActive bool
		err := tx.QueryRow(ctx, `SELECT is_active FROM products WHERE organization_id=$1 AND id=$2 FOR UPDATE`, p.OrganizationID, p.ID).Scan(&wasActive)
		if err != nil {
			return shared.MapStoreError(err)
		}
		if p.IsActive && !wasActive {
			if err := shared.CheckQuota(ctx, tx, "products", p.OrganizationID, quota); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `UPDATE products SET category_id=$3, sku=$4, barcode=NULLIF($5,''), name=$6, description=NULLIF($7,''),
unit=$8, cost_price=$9, selling_price=$10, min_stock=$11, is_active=$12, updated_at=NOW()
WHERE organization_id=$1 AND id=$2`,
			p.OrganizationID, p.ID, p.CategoryID, p.SKU, p.Barcode, p.Name, p.Description, p.Unit,
			p.CostPrice, p.SellingPrice, p.MinStock, p.IsActive)
		return shared.MapStoreError(err)
	})
	if err != nil {
		return Product{}, err
	}
	return r.Get(ctx, p.OrganizationID, p.ID)
}

func (r *repository) HasMovements(ctx context.Context, orgID, id int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_movements WHERE organization_id=$1 AND product_id=$2)
OR EXISTS (SELECT 1 FROM purchase_order_items i JOIN purchase_orders po ON po.id = i.purchase_order_id WHERE po.organization_id=$1 AND i.product_id=$2)`,
		orgID, id).Scan(&ok)
	return ok, err
}

func (r *repository) Deactivate(ctx context.Context, orgID, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE products SET is_active=FALSE, updated_at=NOW() WHERE organization_id=$1 AND id=$2`, orgID, id)
	return err
}

func (r *repository) Delete(ctx context.Context, orgID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE organization_id=$1 AND id=$2`, orgID, id)
	if err != nil {
		return shared.MapStoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) StockByOutlet(ctx context.Context, orgID, id int64) ([]OutletStock, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.outlet_id, o.name, s.quantity, s.avg_cost,
(p.min_stock > 0 AND s.quantity <= p.min_stock)
FROM outlet_stocks s
JOIN outlets o ON o.id = s.outlet_id
JOIN products p ON p.id = s.product_id
WHERE s.organization_id=$1 AND s.product_id=$2
ORDER BY o.name`, orgID, id)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OutletStock, error) {
		var s OutletStock
		err := row.Scan(&s.OutletID, &s.OutletName, &s.Quantity, &s.AvgCost, &s.IsLow)
		return s, err
	})
}

func (r *repository) RecentMovements(ctx context.Context, orgID, id int64, limit int) ([]inventory.Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, organization_id, outlet_id, product_id, movement_type, quantity, stock_before, stock_after,
unit_cost, COALESCE(reference_type,''), COALESCE(reference_id,''), COALESCE(note,''), COALESCE(created_by,0), created_at
FROM stock_movements WHERE organization_id=$1 AND product_id=$2
ORDER BY created_at DESC, id DESC LIMIT $3`, orgID, id, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.Movement, error) {
		var m inventory.Movement
		var mt string
		err := row.Scan(&m.ID, &m.OrganizationID, &m.OutletID, &m.ProductID, &mt, &m.Quantity, &m.StockBefore, &m.StockAfter,
			&m.UnitCost, &m.ReferenceType, &m.ReferenceID, &m.Note, &m.CreatedBy, &m.CreatedAt)
		m.Type = inventory.MovementType(mt)
		return m, err
	})
}

func (r *repository) LastPurchase(ctx context.Context, orgID, id int64) (*LastPurchase, error) {
	var lp LastPurchase
	err := r.pool.QueryRow(ctx, `SELECT po.number, s.name, m.unit_cost, pr.received_at
FROM stock_movements m
JOIN purchase_receipts pr ON pr.reference_id = m.reference_id AND pr.organization_id = m.organization_id
JOIN purchase_orders po ON po.id = pr.purchase_order_id
JOIN suppliers s ON s.id = po.supplier_id
WHERE m.organization_id=$1 AND m.product_id=$2 AND m.movement_type='purchase_receipt'
ORDER BY pr.received_at DESC, m.id DESC
LIMIT 1`, orgID, id).Scan(&lp.PONumber, &lp.SupplierName, &lp.UnitCost, &lp.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lp, nil
}
