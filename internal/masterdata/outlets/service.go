package outlets

import (
	"context"

	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
)

// LimitChecker enforces plan quotas.
type LimitChecker interface {
	CheckLimit(ctx context.Context, orgID int64, key tenancy.LimitKey, current int) error
}

type Service struct {
	repo   Repository
	limits LimitChecker
}

func NewService(repo Repository, limits LimitChecker) *Service {
	return &Service{repo: repo, limits: limits}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Outlet, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, orgID, id int64) (Outlet, error) {
	if id <= 0 {
		return Outlet{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, orgID, id)
}

func (s *Service) Create(ctx context.Context, outlet Outlet) (Outlet, error) {
	outlet = normalize(outlet)
	if err := s.validate(outlet); err != nil {
		return Outlet{}, err
	}
	return s.repo.Create(ctx, outlet, s.quota(outlet.OrganizationID))
}

func (s *Service) Update(ctx context.Context, outlet Outlet) (Outlet, error) {
	if outlet.ID <= 0 {
		return Outlet{}, shared.ErrInvalidID
	}
	outlet = normalize(outlet)
	if err := s.validate(outlet); err != nil {
		return Outlet{}, err
	}
	return s.repo.Update(ctx, outlet, s.quota(outlet.OrganizationID))
}

func (s *Service) quota(orgID int64) shared.QuotaFunc {
	if s.limits == nil {
		return nil
	}
	return func(ctx context.Context, active int) error {
		return s.limits.CheckLimit(ctx, orgID, tenancy.LimitOutlets, active)
	}
}

func (s *Service) Delete(ctx context.Context, orgID, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if _, err := s.repo.Get(ctx, orgID, id); err != nil {
		return err
	}
	used, err := s.repo.InUse(ctx, orgID, id)
	if err != nil {
		return err
	}
	if used {
		return ErrOutletInUse
	}
	return s.repo.Delete(ctx, orgID, id)
}
