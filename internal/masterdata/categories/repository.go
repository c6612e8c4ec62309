package categories

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
	"github.com/lumbung-pos/lumbung/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error)
	Get(ctx context.Context, orgID, id int64) (Category, error)
	NameTaken(ctx context.Context, orgID int64, nameKey string, excludeID int64) (bool, error)
	Create(ctx context.Context, category Category) (Category, error)
	Update(ctx context.Context, category Category) (Category, error)
	Delete(ctx context.Context, orgID, id int64) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const categoryColumns = `c.id, c.organization_id, c.name, COALESCE(c.description,''),
(SELECT COUNT(*) FROM products p WHERE p.category_id = c.id), c.created_at, c.updated_at`

var sortColumns = map[string]string{
	"name":       "c.name",
	"created_at": "c.created_at",
}

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Description, &c.ProductCount, &c.CreatedAt, &c.UpdatedAt)
	return c, shared.MapStoreError(err)
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error) {
	where := ` WHERE c.organization_id = $1`
	args := []any{filters.OrganizationID}
	if filters.Search != "" {
		args = append(args, filters.SearchPattern())
		where += ` AND c.name ILIKE $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM categories c`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filters.Limit, filters.Offset())
	rows, err := r.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories c`+where+
		` ORDER BY `+filters.OrderBy(sortColumns, "c.name")+
		` LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, err
		}
		categories = append(categories, c)
	}
	return categories, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, orgID, id int64) (Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.organization_id=$1 AND c.id=$2`, orgID, id))
}

func (r *repository) NameTaken(ctx context.Context, orgID int64, nameKey string, excludeID int64) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE organization_id=$1 AND name_key=$2 AND id <> $3)`,
		orgID, nameKey, excludeID).Scan(&taken)
	return taken, err
}

func (r *repository) Create(ctx context.Context, c Category) (Category, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (organization_id, name, name_key, description, created_at, updated_at)
VALUES ($1,$2,$3,NULLIF($4,''),NOW(),NOW()) RETURNING id`,
		c.OrganizationID, c.Name, shared.SearchKey(c.Name), c.Description).Scan(&id)
	if err != nil {
		return Category{}, shared.MapStoreError(err)
	}
	return r.Get(ctx, c.OrganizationID, id)
}

func (r *repository) Update(ctx context.Context, c Category) (Category, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE categories SET name=$3, name_key=$4, description=NULLIF($5,''), updated_at=NOW()
WHERE organization_id=$1 AND id=$2`, c.OrganizationID, c.ID, c.Name, shared.SearchKey(c.Name), c.Description)
	if err != nil {
		return Category{}, shared.MapStoreError(err)
	}
	if tag.RowsAffected() == 0 {
		return Category{}, shared.ErrNotFound
	}
	return r.Get(ctx, c.OrganizationID, c.ID)
}

// Delete detaches products from the category and removes it, returning the
// number of products detached.
func (r *repository) Delete(ctx context.Context, orgID, id int64) (int64, error) {
	var detached int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE products SET category_id=NULL, updated_at=NOW() WHERE organization_id=$1 AND category_id=$2`, orgID, id)
		if err != nil {
			return err
		}
		detached = tag.RowsAffected()
		tag, err = tx.Exec(ctx, `DELETE FROM categories WHERE organization_id=$1 AND id=$2`, orgID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
	return detached, err
}
