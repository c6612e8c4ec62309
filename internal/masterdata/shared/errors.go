package shared

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	platform "github.com/lumbung-pos/lumbung/internal/shared"
)

var (
	ErrNotFound      = fmt.Errorf("resource %w", platform.ErrNotFound)
	ErrDuplicate     = fmt.Errorf("duplicate entry: %w", platform.ErrConflict)
	ErrInvalidID     = fmt.Errorf("invalid ID: %w", platform.ErrValidation)
	ErrRequiredField = fmt.Errorf("field is required: %w", platform.ErrValidation)
	ErrInUse         = fmt.Errorf("record is referenced by other data: %w", platform.ErrConflict)
)

// Required wraps ErrRequiredField with the field name.
func Required(field string) error {
	return fmt.Errorf("%s: %w", field, ErrRequiredField)
}

// Invalid builds a validation error for field.
func Invalid(field, reason string) error {
	return fmt.Errorf("%s %s: %w", field, reason, platform.ErrValidation)
}

const foreignKeyViolation = "23503"

// MapStoreError converts driver errors into masterdata error kinds.
func MapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if platform.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrInUse
	}
	return err
}
