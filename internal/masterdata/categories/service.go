package categories

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, orgID, id int64) (Category, error) {
	if id <= 0 {
		return Category{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, orgID, id)
}

func (s *Service) Create(ctx context.Context, category Category) (Category, error) {
	category = normalize(category)
	if err := s.validate(ctx, category); err != nil {
		return Category{}, err
	}
	return s.repo.Create(ctx, category)
}

func (s *Service) Update(ctx context.Context, category Category) (Category, error) {
	if category.ID <= 0 {
		return Category{}, shared.ErrInvalidID
	}
	category = normalize(category)
	if err := s.validate(ctx, category); err != nil {
		return Category{}, err
	}
	return s.repo.Update(ctx, category)
}

// Delete removes the category; its products become uncategorized.
func (s *Service) Delete(ctx context.Context, orgID, id int64) (int64, error) {
	if id <= 0 {
		return 0, shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, orgID, id)
}
