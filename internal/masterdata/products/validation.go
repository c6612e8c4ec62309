package products

import (
	"context"
	"strings"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
)

// DefaultUnit is used when a product is created without a unit.
const DefaultUnit = "pcs"

func normalize(p Product) Product {
	p.SKU = shared.Code(p.SKU)
	p.Barcode = strings.TrimSpace(p.Barcode)
	p.Name = shared.Name(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Unit = strings.ToLower(shared.Name(p.Unit))
	if p.Unit == "" {
		p.Unit = DefaultUnit
	}
	if p.CategoryID != nil && *p.CategoryID <= 0 {
		p.CategoryID = nil
	}
	return p
}

func (s *Service) validate(ctx context.Context, p Product) error {
	if p.OrganizationID <= 0 {
		return shared.Required("organization")
	}
	if p.SKU == "" {
		return shared.Required("sku")
	}
	if len(p.SKU) > 64 {
		return shared.Invalid("sku", "must be at most 64 characters")
	}
	if p.Name == "" {
		return shared.Required("name")
	}
	if p.SellingPrice.IsNegative() {
		return shared.Invalid("selling_price", "must be >= 0")
	}
	if p.CostPrice.IsNegative() {
		return shared.Invalid("cost_price", "must be >= 0")
	}
	if p.MinStock.IsNegative() {
		return shared.Invalid("min_stock", "must be >= 0")
	}
	if p.CategoryID != nil {
		ok, err := s.repo.CategoryExists(ctx, p.OrganizationID, *p.CategoryID)
		if err != nil {
			return err
		}
		if !ok {
			return shared.Invalid("category_id", "does not exist")
		}
	}
	return nil
}
