package outlets

import (
	"fmt"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
)

// ErrOutletInUse blocks deleting outlets holding stock or purchase orders.
var ErrOutletInUse = fmt.Errorf("outlet has stock or purchase orders: %w", shared.ErrInUse)

func normalize(o Outlet) Outlet {
	o.Code = shared.Code(o.Code)
	o.Name = shared.Name(o.Name)
	o.Address = shared.Name(o.Address)
	o.Phone = shared.Name(o.Phone)
	return o
}

func (s *Service) validate(o Outlet) error {
	if o.OrganizationID <= 0 {
		return shared.Required("organization")
	}
	if o.Code == "" {
		return shared.Required("code")
	}
	if len(o.Code) > 32 {
		return shared.Invalid("code", "must be at most 32 characters")
	}
	if o.Name == "" {
		return shared.Required("name")
	}
	return nil
}
