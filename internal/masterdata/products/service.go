package products

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/lumbung-pos/lumbung/internal/inventory"
	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
	platform "github.com/lumbung-pos/lumbung/internal/shared"
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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters.Normalize())
}

func (s *Service) Get(ctx context.Context, orgID, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, orgID, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	product = normalize(product)
	if err := s.validate(ctx, product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product, s.quota(product.OrganizationID))
}

func (s *Service) Update(ctx context.Context, product Product) (Product, error) {
	if product.ID <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	product = normalize(product)
	if err := s.validate(ctx, product); err != nil {
		return Product{}, err
	}
	return s.repo.Update(ctx, product, s.quota(product.OrganizationID))
}

// quota checks max_products against the active count.
func (s *Service) quota(orgID int64) shared.QuotaFunc {
	if s.limits == nil {
		return nil
	}
	return func(ctx context.Context, active int) error {
		return s.limits.CheckLimit(ctx, orgID, tenancy.LimitProducts, active)
	}
}

// Delete removes the product, or deactivates it when stock history exists.
// It reports whether the product was only deactivated.
func (s *Service) Delete(ctx context.Context, orgID, id int64) (bool, error) {
	if id <= 0 {
		return false, shared.ErrInvalidID
	}
	if _, err := s.repo.Get(ctx, orgID, id); err != nil {
		return false, err
	}
	used, err := s.repo.HasMovements(ctx, orgID, id)
	if err != nil {
		return false, err
	}
	if used {
		return true, s.repo.Deactivate(ctx, orgID, id)
	}
	return false, s.repo.Delete(ctx, orgID, id)
}

// Details loads the product page: stock per outlet, recent movements and the
// last purchase, queried concurrently.
func (s *Service) Details(ctx context.Context, orgID, id int64) (Details, error) {
	product, err := s.Get(ctx, orgID, id)
	if err != nil {
		return Details{}, err
	}

	var (
		stock     []OutletStock
		movements = make([]inventory.Movement, 0)
		last      *LastPurchase
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stock, err = s.repo.StockByOutlet(gctx, orgID, id)
		return err
	})
	g.Go(func() error {
		rows, err := s.repo.RecentMovements(gctx, orgID, id, RecentMovementLimit)
		if rows != nil {
			movements = rows
		}
		return err
	})
	g.Go(func() error {
		var err error
		last, err = s.repo.LastPurchase(gctx, orgID, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Details{}, err
	}

	details := Details{
		Product:         product,
		CategoryName:    product.CategoryName,
		Stock:           make([]OutletStock, 0, len(stock)),
		Totals:          StockTotals{Quantity: decimal.Zero, StockValue: decimal.Zero},
		RecentMovements: movements,
		LastPurchase:    last,
		GrossMargin:     product.SellingPrice.Sub(product.CostPrice),
		MarginPercent:   platform.Percent(product.SellingPrice.Sub(product.CostPrice), product.SellingPrice),
	}
	for _, row := range stock {
		row.StockValue = platform.RoundMoney(row.Quantity.Mul(row.AvgCost))
		details.Stock = append(details.Stock, row)
		details.Totals.Quantity = details.Totals.Quantity.Add(row.Quantity)
		details.Totals.StockValue = details.Totals.StockValue.Add(row.StockValue)
	}
	return details, nil
}
