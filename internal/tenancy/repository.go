package tenancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

// Repository persists organizations in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const organizationColumns = `id, name, slug, plan, plan_expires_at, created_at, updated_at`

func scanOrganization(row pgx.Row) (Organization, error) {
	var org Organization
	var plan string
	err := row.Scan(&org.ID, &org.Name, &org.Slug, &plan, &org.PlanExpiresAt, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, ErrOrganizationNotFound
		}
		return Organization{}, err
	}
	org.Plan = Plan(plan)
	return org, nil
}

// GetOrganization loads a tenant by id.
func (r *Repository) GetOrganization(ctx context.Context, id int64) (Organization, error) {
	return scanOrganization(r.pool.QueryRow(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id=$1`, id))
}

// CreateOrganization inserts a tenant.
func (r *Repository) CreateOrganization(ctx context.Context, org Organization) (Organization, error) {
	created, err := scanOrganization(r.pool.QueryRow(ctx, `INSERT INTO organizations (name, slug, plan, plan_expires_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING `+organizationColumns, org.Name, org.Slug, string(org.Plan), org.PlanExpiresAt))
	if err != nil {
		return Organization{}, mapCreateError(org.Slug, err)
	}
	return created, nil
}

func mapCreateError(slug string, err error) error {
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", slug, ErrDuplicateSlug)
	}
	return err
}

// UpdatePlan switches the subscription plan.
func (r *Repository) UpdatePlan(ctx context.Context, id int64, plan Plan, expiresAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE organizations SET plan=$2, plan_expires_at=$3, updated_at=NOW() WHERE id=$1`, id, string(plan), expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

// FeatureOverrides returns per-organization feature switches.
func (r *Repository) FeatureOverrides(ctx context.Context, id int64) (map[FeatureKey]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT feature_key, enabled FROM organization_features WHERE organization_id=$1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	overrides := map[FeatureKey]bool{}
	for rows.Next() {
		var key string
		var enabled bool
		if err := rows.Scan(&key, &enabled); err != nil {
			return nil, err
		}
		overrides[FeatureKey(key)] = enabled
	}
	return overrides, rows.Err()
}

// ListOrganizationIDs returns all tenant ids ordered ascending.
func (r *Repository) ListOrganizationIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM organizations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
