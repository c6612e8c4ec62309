package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lumbung-pos/lumbung/internal/inventory"
	"github.com/lumbung-pos/lumbung/internal/platform/db"
	"github.com/lumbung-pos/lumbung/internal/shared"
)

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service. Stock
// movements share the same transaction through the embedded inventory repo.
type TxRepository interface {
	inventory.TxRepository
	GetSupplier(ctx context.Context, orgID, id int64) (SupplierRef, error)
	LockOrder(ctx context.Context, orgID, id int64) (PurchaseOrder, error)
	InsertOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	UpdateOrderHeader(ctx context.Context, po PurchaseOrder) error
	ReplaceItems(ctx context.Context, poID int64, items []Item) ([]Item, error)
	UpdateStatus(ctx context.Context, orgID, id int64, status Status, receivedAt *time.Time) error
	UpdateItemReceived(ctx context.Context, itemID int64, received decimal.Decimal) error
	CountReceipts(ctx context.Context, poID int64) (int, error)
	InsertReceipt(ctx context.Context, receipt Receipt) (Receipt, error)
	DeleteOrder(ctx context.Context, orgID, id int64) error
}

type txRepo struct {
	*inventory.TxRepo
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{TxRepo: inventory.NewTxRepository(tx), tx: tx})
	})
}

const orderColumns = `po.id, po.organization_id, po.outlet_id, o.name, po.supplier_id, s.name, po.number, po.status,
po.order_date, po.expected_date, po.received_at, COALESCE(po.notes,''), po.subtotal, po.discount, po.tax, po.total,
COALESCE(po.created_by,0), po.created_at, po.updated_at`

const orderFrom = ` FROM purchase_orders po
JOIN outlets o ON o.id = po.outlet_id
JOIN suppliers s ON s.id = po.supplier_id`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	var status string
	err := row.Scan(&po.ID, &po.OrganizationID, &po.OutletID, &po.OutletName, &po.SupplierID, &po.SupplierName, &po.Number, &status,
		&po.OrderDate, &po.ExpectedDate, &po.ReceivedAt, &po.Notes, &po.Subtotal, &po.Discount, &po.Tax, &po.Total,
		&po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	po.Status = Status(status)
	return po, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, poID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT i.id, i.purchase_order_id, i.product_id, p.name, p.sku, i.quantity_ordered, i.quantity_received, i.unit_cost, i.subtotal
FROM purchase_order_items i JOIN products p ON p.id = i.product_id
WHERE i.purchase_order_id = $1 ORDER BY i.product_id`, poID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.ID, &it.PurchaseOrderID, &it.ProductID, &it.ProductName, &it.SKU, &it.QuantityOrdered, &it.QuantityReceived, &it.UnitCost, &it.Subtotal)
		return it, err
	})
}

// Get loads an order with its items.
func (r *Repository) Get(ctx context.Context, orgID, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+orderFrom+` WHERE po.organization_id=$1 AND po.id=$2`, orgID, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items, err = loadItems(ctx, r.pool, po.ID)
	return po, err
}

// List returns order headers newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	where := []string{"po.organization_id = $1"}
	args := []any{filter.OrganizationID}
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("po.status = $%d", string(filter.Status))
	}
	if filter.SupplierID != 0 {
		add("po.supplier_id = $%d", filter.SupplierID)
	}
	if filter.OutletID != 0 {
		add("po.outlet_id = $%d", filter.OutletID)
	}
	if !filter.From.IsZero() {
		add("po.order_date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("po.order_date <= $%d", filter.To)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		add("po.number ILIKE $%d", "%"+search+"%")
	}
	cond := ` WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders po`+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	args = append(args, perPage, shared.Offset(page, perPage))
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+orderFrom+cond+
		fmt.Sprintf(` ORDER BY po.order_date DESC, po.id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, po)
	}
	return orders, total, rows.Err()
}

func (r *txRepo) GetSupplier(ctx context.Context, orgID, id int64) (SupplierRef, error) {
	var ref SupplierRef
	err := r.tx.QueryRow(ctx, `SELECT id, name, is_active FROM suppliers WHERE organization_id=$1 AND id=$2 FOR SHARE`, orgID, id).
		Scan(&ref.ID, &ref.Name, &ref.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return SupplierRef{}, ErrSupplierNotFound
	}
	return ref, err
}

// LockOrder selects the order FOR UPDATE together with its items.
func (r *txRepo) LockOrder(ctx context.Context, orgID, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+orderFrom+` WHERE po.organization_id=$1 AND po.id=$2 FOR UPDATE OF po`, orgID, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items, err = loadItems(ctx, r.tx, po.ID)
	return po, err
}

func (r *txRepo) InsertOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders
(organization_id, outlet_id, supplier_id, number, status, order_date, expected_date, notes, subtotal, discount, tax, total, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9,$10,$11,$12,$13,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		po.OrganizationID, po.OutletID, po.SupplierID, po.Number, string(po.Status), po.OrderDate, po.ExpectedDate, po.Notes,
		po.Subtotal, po.Discount, po.Tax, po.Total, db.NullInt64(po.CreatedBy)).Scan(&po.ID, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

func (r *txRepo) UpdateOrderHeader(ctx context.Context, po PurchaseOrder) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET outlet_id=$3, supplier_id=$4, order_date=$5, expected_date=$6, notes=NULLIF($7,''),
subtotal=$8, discount=$9, tax=$10, total=$11, updated_at=NOW()
WHERE organization_id=$1 AND id=$2`,
		po.OrganizationID, po.ID, po.OutletID, po.SupplierID, po.OrderDate, po.ExpectedDate, po.Notes,
		po.Subtotal, po.Discount, po.Tax, po.Total)
	return err
}

func (r *txRepo) ReplaceItems(ctx context.Context, poID int64, items []Item) ([]Item, error) {
	if _, err := r.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id=$1`, poID); err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		it.PurchaseOrderID = poID
		err := r.tx.QueryRow(ctx, `INSERT INTO purchase_order_items (purchase_order_id, product_id, quantity_ordered, quantity_received, unit_cost, subtotal)
VALUES ($1,$2,$3,0,$4,$5) RETURNING id`, poID, it.ProductID, it.QuantityOrdered, it.UnitCost, it.Subtotal).Scan(&it.ID)
		if err != nil {
			return nil, err
		}
		it.QuantityReceived = decimal.Zero
		out = append(out, it)
	}
	return out, nil
}

func (r *txRepo) UpdateStatus(ctx context.Context, orgID, id int64, status Status, receivedAt *time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status=$3, received_at=COALESCE($4, received_at), updated_at=NOW()
WHERE organization_id=$1 AND id=$2`, orgID, id, string(status), receivedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *txRepo) UpdateItemReceived(ctx context.Context, itemID int64, received decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_order_items SET quantity_received=$2 WHERE id=$1`, itemID, received)
	return err
}

func (r *txRepo) CountReceipts(ctx context.Context, poID int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_receipts WHERE purchase_order_id=$1`, poID).Scan(&n)
	return n, err
}

func (r *txRepo) InsertReceipt(ctx context.Context, rc Receipt) (Receipt, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_receipts (organization_id, purchase_order_id, reference_id, note, received_at, created_by, created_at)
VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,NOW()) RETURNING id`,
		rc.OrganizationID, rc.PurchaseOrderID, rc.ReferenceID, rc.Note, rc.ReceivedAt, db.NullInt64(rc.CreatedBy)).Scan(&rc.ID)
	return rc, err
}

func (r *txRepo) DeleteOrder(ctx context.Context, orgID, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id=$1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE organization_id=$1 AND id=$2`, orgID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
