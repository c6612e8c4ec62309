// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	switch {
	case errors.As(err, &fieldErrs):
		ValidationProblem(w, fieldErrors(fieldErrs))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case shared.IsUniqueViolation(err):
		Problem(w, http.StatusConflict, "Duplicate", "a record with the same unique value already exists")
	case errors.Is(err, shared.ErrFeatureUnavailable):
		Problem(w, http.StatusForbidden, "Feature Unavailable", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// IsServerError reports whether RespondError would answer with a 5xx status.
func IsServerError(err error) bool {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return false
	}
	for _, kind := range []error{shared.ErrNotFound, shared.ErrValidation, shared.ErrConflict, shared.ErrFeatureUnavailable, shared.ErrForbidden} {
		if errors.Is(err, kind) {
			return false
		}
	}
	return !shared.IsUniqueViolation(err)
}
