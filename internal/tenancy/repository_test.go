package tenancy

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

func TestMapCreateError(t *testing.T) {
	err := mapCreateError("toko-maju", &pgconn.PgError{Code: "23505", ConstraintName: "organizations_slug_key"})
	require.ErrorIs(t, err, ErrDuplicateSlug)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Contains(t, err.Error(), "toko-maju")

	other := errors.New("connection reset")
	require.Same(t, other, mapCreateError("toko-maju", other))
}
