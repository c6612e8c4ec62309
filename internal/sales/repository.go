package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-pos/lumbung/internal/inventory"
	"github.com/lumbung-pos/lumbung/internal/platform/db"
	"github.com/lumbung-pos/lumbung/internal/shared"
)

// Repository persists sales.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Stock movements run through
// the embedded inventory repository on the same transaction.
type TxRepository interface {
	inventory.TxRepository
	InsertSale(ctx context.Context, sale Sale) (Sale, error)
	LockSale(ctx context.Context, orgID, id int64) (Sale, error)
	MarkVoided(ctx context.Context, sale Sale) error
}

type txRepo struct {
	*inventory.TxRepo
	tx pgx.Tx
}

// WithTx executes fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{TxRepo: inventory.NewTxRepository(tx), tx: tx})
	})
}

const saleColumns = `s.id, s.organization_id, s.outlet_id, o.name, s.number, s.reference_id, s.status,
s.subtotal, s.discount, s.tax_rate, s.tax, s.total, s.amount_paid, s.change_amount, s.payment_method,
COALESCE(s.customer_name,''), COALESCE(s.note,''), COALESCE(s.cashier_id,0), s.sold_at,
s.voided_at, COALESCE(s.voided_by,0), COALESCE(s.void_reason,'')`

const saleFrom = ` FROM sales s JOIN outlets o ON o.id = s.outlet_id`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	var status, method string
	err := row.Scan(&s.ID, &s.OrganizationID, &s.OutletID, &s.OutletName, &s.Number, &s.ReferenceID, &status,
		&s.Subtotal, &s.Discount, &s.TaxRate, &s.Tax, &s.Total, &s.AmountPaid, &s.Change, &method,
		&s.CustomerName, &s.Note, &s.CashierID, &s.SoldAt, &s.VoidedAt, &s.VoidedBy, &s.VoidReason)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	s.Status = Status(status)
	s.PaymentMethod = PaymentMethod(method)
	return s, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, saleID int64) ([]SaleItem, error) {
	rows, err := q.Query(ctx, `SELECT id, sale_id, product_id, product_name, sku, quantity, unit_price, discount, subtotal, unit_cost
FROM sale_items WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SaleItem, error) {
		var it SaleItem
		err := row.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.SKU, &it.Quantity, &it.UnitPrice, &it.Discount, &it.Subtotal, &it.UnitCost)
		return it, err
	})
}

// Get loads a sale with items.
func (r *Repository) Get(ctx context.Context, orgID, id int64) (Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+saleFrom+` WHERE s.organization_id=$1 AND s.id=$2`, orgID, id))
	if err != nil {
		return Sale{}, err
	}
	sale.Items, err = loadItems(ctx, r.pool, sale.ID)
	return sale, err
}

// List returns sale headers newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	clauses := []string{"s.organization_id = $1"}
	args := []any{filter.OrganizationID}
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.OutletID > 0 {
		add("s.outlet_id = $%d", filter.OutletID)
	}
	if filter.Status != "" {
		add("s.status = $%d", string(filter.Status))
	}
	if filter.PaymentMethod != "" {
		add("s.payment_method = $%d", string(filter.PaymentMethod))
	}
	if !filter.From.IsZero() {
		add("s.sold_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("s.sold_at <= $%d", filter.To)
	}
	where := " WHERE " + strings.Join(clauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+saleFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, perPage := shared.NormalizePage(filter.Page, filter.PerPage)
	args = append(args, perPage, shared.Offset(page, perPage))
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+saleFrom+where+
		fmt.Sprintf(` ORDER BY s.sold_at DESC, s.id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var sales []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, sale)
	}
	return sales, total, rows.Err()
}

func (r *txRepo) InsertSale(ctx context.Context, sale Sale) (Sale, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sales
(organization_id, outlet_id, number, reference_id, status, subtotal, discount, tax_rate, tax, total, amount_paid, change_amount,
 payment_method, customer_name, note, cashier_id, sold_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULLIF($14,''),NULLIF($15,''),$16,$17,NOW())
RETURNING id`,
		sale.OrganizationID, sale.OutletID, sale.Number, sale.ReferenceID, string(sale.Status), sale.Subtotal, sale.Discount,
		sale.TaxRate, sale.Tax, sale.Total, sale.AmountPaid, sale.Change, string(sale.PaymentMethod),
		sale.CustomerName, sale.Note, db.NullInt64(sale.CashierID), sale.SoldAt).Scan(&sale.ID)
	if err != nil {
		return Sale{}, err
	}
	batch := &pgx.Batch{}
	for _, it := range sale.Items {
		batch.Queue(`INSERT INTO sale_items (sale_id, product_id, product_name, sku, quantity, unit_price, discount, subtotal, unit_cost)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
			sale.ID, it.ProductID, it.ProductName, it.SKU, it.Quantity, it.UnitPrice, it.Discount, it.Subtotal, it.UnitCost)
	}
	results := r.tx.SendBatch(ctx, batch)
	for i := range sale.Items {
		sale.Items[i].SaleID = sale.ID
		if err := results.QueryRow().Scan(&sale.Items[i].ID); err != nil {
			_ = results.Close()
			return Sale{}, err
		}
	}
	return sale, results.Close()
}

// LockSale selects the sale FOR UPDATE with its items.
func (r *txRepo) LockSale(ctx context.Context, orgID, id int64) (Sale, error) {
	sale, err := scanSale(r.tx.QueryRow(ctx, `SELECT `+saleColumns+saleFrom+` WHERE s.organization_id=$1 AND s.id=$2 FOR UPDATE OF s`, orgID, id))
	if err != nil {
		return Sale{}, err
	}
	sale.Items, err = loadItems(ctx, r.tx, sale.ID)
	return sale, err
}

func (r *txRepo) MarkVoided(ctx context.Context, sale Sale) error {
	voidedAt := time.Now().UTC()
	if sale.VoidedAt != nil {
		voidedAt = *sale.VoidedAt
	}
	tag, err := r.tx.Exec(ctx, `UPDATE sales SET status=$3, voided_at=$4, voided_by=$5, void_reason=$6
WHERE organization_id=$1 AND id=$2`,
		sale.OrganizationID, sale.ID, string(StatusVoided), voidedAt, db.NullInt64(sale.VoidedBy), sale.VoidReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}
