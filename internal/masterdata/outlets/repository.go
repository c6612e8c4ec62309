package outlets

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Outlet, int, error)
	Get(ctx context.Context, orgID, id int64) (Outlet, error)
	Create(ctx context.Context, outlet Outlet, quota shared.QuotaFunc) (Outlet, error)
	Update(ctx context.Context, outlet Outlet, quota shared.QuotaFunc) (Outlet, error)
	InUse(ctx context.Context, orgID, id int64) (bool, error)
	Delete(ctx context.Context, orgID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const outletColumns = `id, organization_id, code, name, COALESCE(address,''), COALESCE(phone,''), is_active, created_at, updated_at`

var sortColumns = map[string]string{
	"code":       "code",
	"name":       "name",
	"created_at": "created_at",
}

func scanOutlet(row pgx.Row) (Outlet, error) {
	var o Outlet
	err := row.Scan(&o.ID, &o.OrganizationID, &o.Code, &o.Name, &o.Address, &o.Phone, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	return o, shared.MapStoreError(err)
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Outlet, int, error) {
	where := ` WHERE organization_id = $1`
	args := []any{filters.OrganizationID}

	if filters.Search != "" {
		args = append(args, filters.SearchPattern())
		n := strconv.Itoa(len(args))
		where += ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND is_active = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outlets`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filters.Limit, filters.Offset())
	query := `SELECT ` + outletColumns + ` FROM outlets` + where +
		` ORDER BY ` + filters.OrderBy(sortColumns, "name") +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var outlets []Outlet
	for rows.Next() {
		o, err := scanOutlet(rows)
		if err != nil {
			return nil, 0, err
		}
		outlets = append(outlets, o)
	}
	return outlets, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (Outlet, error) {
	return scanOutlet(r.pool.QueryRow(ctx, `SELECT `+outletColumns+` FROM outlets WHERE organization_id=$1 AND id=$2`, orgID, id))
}

// Create inserts the outlet. An active outlet must fit quota, checked under
// the organization lock.
func (r *repository) Create(ctx context.Context, o Outlet, quota shared.QuotaFunc) (Outlet, error) {
	var created Outlet
	err := shared.WithQuotaLock(ctx, r.pool, o.OrganizationID, func(tx pgx.Tx) error {
		if o.IsActive {
			if err := shared.CheckQuota(ctx, tx, "outlets", o.OrganizationID, quota); err != nil {
				return err
			}
		}
		var err error
		created, err = scanOutlet(tx.QueryRow(ctx, `INSERT INTO outlets (organization_id, code, name, address, phone, is_active, created_at, updated_at)
VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6,NOW(),NOW()) RETURNING `+outletColumns,
			o.OrganizationID, o.Code, o.Name, o.Address, o.Phone, o.IsActive))
		return err
	})
	return created, err
}

// Update saves the outlet. Reactivating an outlet counts against quota.
func (r *repository) Update(ctx context.Context, o Outlet, quota shared.QuotaFunc) (Outlet, error) {
	var updated Outlet
	err := shared.WithQuotaLock(ctx, r.pool, o.OrganizationID, func(tx pgx.Tx) error {
		var wasActive bool
		err := tx.QueryRow(ctx, `SELECT is_active FROM outlets WHERE organization_id=$1 AND id=$2 FOR UPDATE`, o.OrganizationID, o.ID).Scan(&wasActive)
		if err != nil {
			return shared.MapStoreError(err)
		}
		if o.IsActive && !wasActive {
			if err := shared.CheckQuota(ctx, tx, "outlets", o.OrganizationID, quota); err != nil {
				return err
			}
		}
		updated, err = scanOutlet(tx.QueryRow(ctx, `UPDATE outlets SET code=$3, name=$4, address=NULLIF($5,''), phone=NULLIF($6,''), is_active=$7, updated_at=NOW()
WHERE organization_id=$1 AND id=$2 RETURNING `+outletColumns,
			o.OrganizationID, o.ID, o.Code, o.Name, o.Address, o.Phone, o.IsActive))
		return err
	})
	return updated, err
}

// InUse reports stock on hand or purchase orders referencing the outlet.
func (r *repository) InUse(ctx context.Context, orgID, id int64) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx, `SELECT
EXISTS (SELECT 1 FROM outlet_stocks WHERE organization_id=$1 AND outlet_id=$2 AND quantity <> 0)
OR EXISTS (SELECT 1 FROM purchase_orders WHERE organization_id=$1 AND outlet_id=$2)`, orgID, id).Scan(&used)
	return used, err
}

func (r *repository) Delete(ctx context.Context, orgID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM outlets WHERE organization_id=$1 AND id=$2`, orgID, id)
	if err != nil {
		return shared.MapStoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
