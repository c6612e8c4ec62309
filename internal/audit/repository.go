package audit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository membaca audit_logs langsung dari PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository membuat repository audit.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const timelineQuery = `SELECT id, occurred_at, COALESCE(actor_id, 0), action, entity, entity_id, COALESCE(meta, 'null'::jsonb)
FROM audit_logs
WHERE organization_id = $1
  AND ($2::timestamptz IS NULL OR occurred_at >= $2)
  AND ($3::timestamptz IS NULL OR occurred_at < $3)
  AND ($4::bigint IS NULL OR actor_id = $4)
  AND ($5::text IS NULL OR entity = $5)
  AND ($6::text IS NULL OR entity_id = $6)
  AND ($7::text IS NULL OR action = $7)
ORDER BY occurred_at DESC, id DESC`

// TimelineWindow mengambil satu halaman; limit biasanya PageSize+1.
func (r *PgRepository) TimelineWindow(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	args := filterArgs(f)
	args = append(args, limit, offset)
	return r.query(ctx, timelineQuery+` LIMIT $8 OFFSET $9`, args...)
}

// TimelineAll mengambil seluruh baris hingga max untuk ekspor.
func (r *PgRepository) TimelineAll(ctx context.Context, f TimelineFilters, max int) ([]TimelineRow, error) {
	args := filterArgs(f)
	args = append(args, max)
	return r.query(ctx, timelineQuery+` LIMIT $8`, args...)
}

func (r *PgRepository) query(ctx context.Context, sql string, args ...any) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var out TimelineRow
		var meta []byte
		if err := row.Scan(&out.ID, &out.At, &out.ActorID, &out.Action, &out.Entity, &out.EntityID, &meta); err != nil {
			return out, err
		}
		if string(meta) != "null" {
			out.Meta = meta
		}
		return out, nil
	})
}

func filterArgs(f TimelineFilters) []any {
	return []any{
		f.OrganizationID,
		toPgTime(f.From),
		toPgTime(f.To),
		optionalID(f.ActorID),
		optionalText(f.Entity),
		optionalText(f.EntityID),
		optionalText(f.Action),
	}
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

func optionalID(id int64) pgtype.Int8 {
	if id <= 0 {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: id, Valid: true}
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
