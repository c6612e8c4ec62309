package categories

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
)

// ErrNameTaken reports a category name already used in the organization.
var ErrNameTaken = fmt.Errorf("category name already exists: %w", shared.ErrDuplicate)

func normalize(c Category) Category {
	c.Name = shared.Name(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	return c
}

func (s *Service) validate(ctx context.Context, c Category) error {
	if c.OrganizationID <= 0 {
		return shared.Required("organization")
	}
	if c.Name == "" {
		return shared.Required("name")
	}
	if len(c.Name) > 100 {
		return shared.Invalid("name", "must be at most 100 characters")
	}
	taken, err := s.repo.NameTaken(ctx, c.OrganizationID, shared.SearchKey(c.Name), c.ID)
	if err != nil {
		return err
	}
	if taken {
		return ErrNameTaken
	}
	return nil
}
