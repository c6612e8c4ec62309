package suppliers

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, orgID, id int64) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, supplier Supplier) (Supplier, error)
	HasPurchaseOrders(ctx context.Context, orgID, id int64) (bool, error)
	Delete(ctx context.Context, orgID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const supplierColumns = `id, organization_id, code, name, COALESCE(contact_person,''), COALESCE(phone,''), COALESCE(email,''), COALESCE(address,''), is_active, created_at, updated_at`

var sortColumns = map[string]string{
	"code": "code",
	"name": "name",
}

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.OrganizationID, &s.Code, &s.Name, &s.ContactPerson, &s.Phone, &s.Email, &s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, shared.MapStoreError(err)
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	where := ` WHERE organization_id = $1`
	args := []any{filters.OrganizationID}
	if filters.Search != "" {
		args = append(args, filters.SearchPattern())
		n := strconv.Itoa(len(args))
		where += ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + ` OR contact_person ILIKE $` + n + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND is_active = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filters.Limit, filters.Offset())
	rows, err := r.pool.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers`+where+
		` ORDER BY `+filters.OrderBy(sortColumns, "name")+
		` LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (Supplier, error) {
	return scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE organization_id=$1 AND id=$2`, orgID, id))
}

func (r *repository) Create(ctx context.Context, s Supplier) (Supplier, error) {
	return scanSupplier(r.pool.QueryRow(ctx, `INSERT INTO suppliers (organization_id, code, name, contact_person, phone, email, address, is_active, created_at, updated_at)
VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),NULLIF($6,''),NULLIF($7,''),$8,NOW(),NOW()) RETURNING `+supplierColumns,
		s.OrganizationID, s.Code, s.Name, s.ContactPerson, s.Phone, s.Email, s.Address, s.IsActive))
}

func (r *repository) Update(ctx context.Context, s Supplier) (Supplier, error) {
	return scanSupplier(r.pool.QueryRow(ctx, `UPDATE suppliers SET code=$3, name=$4, contact_person=NULLIF($5,''), phone=NULLIF($6,''),
email=NULLIF($7,''), address=NULLIF($8,''), is_active=$9, updated_at=NOW()
WHERE organization_id=$1 AND id=$2 RETURNING `+supplierColumns,
		s.OrganizationID, s.ID, s.Code, s.Name, s.ContactPerson, s.Phone, s.Email, s.Address, s.IsActive))
}

func (r *repository) HasPurchaseOrders(ctx context.Context, orgID, id int64) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM purchase_orders WHERE organization_id=$1 AND supplier_id=$2)`, orgID, id).Scan(&used)
	return used, err
}

func (r *repository) Delete(ctx context.Context, orgID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM suppliers WHERE organization_id=$1 AND id=$2`, orgID, id)
	if err != nil {
		return shared.MapStoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
