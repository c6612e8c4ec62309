package suppliers

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
)

// ErrSupplierInUse blocks deleting suppliers referenced by purchase orders.
var ErrSupplierInUse = fmt.Errorf("supplier has purchase orders: %w", shared.ErrInUse)

var fieldValidator = validator.New()

func normalize(s Supplier) Supplier {
	s.Code = shared.Code(s.Code)
	s.Name = shared.Name(s.Name)
	s.ContactPerson = shared.Name(s.ContactPerson)
	s.Phone = shared.Name(s.Phone)
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	s.Address = strings.TrimSpace(s.Address)
	return s
}

func (s *Service) validate(sup Supplier) error {
	if sup.OrganizationID <= 0 {
		return shared.Required("organization")
	}
	if sup.Code == "" {
		return shared.Required("code")
	}
	if sup.Name == "" {
		return shared.Required("name")
	}
	if sup.Email != "" {
		if err := fieldValidator.Var(sup.Email, "email"); err != nil {
			return shared.Invalid("email", "is not a valid address")
		}
	}
	return nil
}
