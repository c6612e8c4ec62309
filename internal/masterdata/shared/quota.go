package shared

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumbung-pos/lumbung/internal/platform/db"
)

// QuotaFunc decides whether one more active record fits the organization's
// plan, given the number already active.
type QuotaFunc func(ctx context.Context, active int) error

// WithQuotaLock runs fn in a read committed transaction holding the
// organization row lock, so quota-bound writes of one tenant serialise and
// counts taken after the lock see rows committed by the previous holder.
func WithQuotaLock(ctx context.Context, pool *pgxpool.Pool, orgID int64, fn func(pgx.Tx) error) error {
	return db.WithTxOptions(ctx, pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var id int64
		if err := tx.QueryRow(ctx, `SELECT id FROM organizations WHERE id=$1 FOR UPDATE`, orgID).Scan(&id); err != nil {
			return MapStoreError(err)
		}
		return fn(tx)
	})
}

// CheckQuota counts the organization's active rows of table and applies quota.
// A nil quota always passes.
func CheckQuota(ctx context.Context, tx pgx.Tx, table string, orgID int64, quota QuotaFunc) error {
	if quota == nil {
		return nil
	}
	var active int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+` WHERE organization_id=$1 AND is_active`, orgID).Scan(&active); err != nil {
		return err
	}
	return quota(ctx, active)
}
