package suppliers

import (
	"context"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, orgID, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, orgID, id)
}

func (s *Service) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	supplier = normalize(supplier)
	if err := s.validate(supplier); err != nil {
		return Supplier{}, err
	}
	return s.repo.Create(ctx, supplier)
}

func (s *Service) Update(ctx context.Context, supplier Supplier) (Supplier, error) {
	if supplier.ID <= 0 {
		return Supplier{}, shared.ErrInvalidID
	}
	supplier = normalize(supplier)
	if err := s.validate(supplier); err != nil {
		return Supplier{}, err
	}
	return s.repo.Update(ctx, supplier)
}

func (s *Service) Delete(ctx context.Context, orgID, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if _, err := s.repo.Get(ctx, orgID, id); err != nil {
		return err
	}
	used, err := s.repo.HasPurchaseOrders(ctx, orgID, id)
	if err != nil {
		return err
	}
	if used {
		return ErrSupplierInUse
	}
	return s.repo.Delete(ctx, orgID, id)
}
