package products

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumbung-pos/lumbung/internal/inventory"
	"github.com/lumbung-pos/lumbung/internal/masterdata/shared"
	platform "github.com/lumbung-pos/lumbung/internal/shared"
	"github.com/lumbung-pos/lumbung/internal/tenancy"
)

type fakeRepo struct {
	products    map[int64]Product
	categories  map[int64]bool
	movements   map[int64]bool
	stock       []OutletStock
	recent      []inventory.Movement
	last        *LastPurchase
	stockErr    error
	deactivated []int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{products: map[int64]Product{}, categories: map[int64]bool{7: true}, movements: map[int64]bool{}}
}

func (f *fakeRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) Get(ctx context.Context, orgID, id int64) (Product, error) {
	p, ok := f.products[id]
	if !ok || p.OrganizationID != orgID {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) CategoryExists(ctx context.Context, orgID, categoryID int64) (bool, error) {
	return f.categories[categoryID], nil
}

func (f *fakeRepo) active(orgID int64) int {
	n := 0
	for _, p := range f.products {
		if p.OrganizationID == orgID && p.IsActive {
			n++
		}
	}
	return n
}

func (f *fakeRepo) Create(ctx context.Context, p Product, quota shared.QuotaFunc) (Product, error) {
	for _, existing := range f.products {
		if existing.OrganizationID == p.OrganizationID && existing.SKU == p.SKU {
			return Product{}, shared.ErrDuplicate
		}
	}
	if p.IsActive && quota != nil {
		if err := quota(ctx, f.active(p.OrganizationID)); err != nil {
			return Product{}, err
		}
	}
	p.ID = int64(len(f.products) + 1)
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeRepo) Update(ctx context.Context, p Product, quota shared.QuotaFunc) (Product, error) {
	existing, ok := f.products[p.ID]
	if !ok || existing.OrganizationID != p.OrganizationID {
		return Product{}, shared.ErrNotFound
	}
	if p.IsActive && !existing.IsActive && quota != nil {
		if err := quota(ctx, f.active(p.OrganizationID)); err != nil {
			return Product{}, err
		}
	}
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeRepo) HasMovements(ctx context.Context, orgID, id int64) (bool, error) {
	return f.movements[id], nil
}

func (f *fakeRepo) Deactivate(ctx context.Context, orgID, id int64) error {
	f.deactivated = append(f.deactivated, id)
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, orgID, id int64) error {
	delete(f.products, id)
	return nil
}

func (f *fakeRepo) StockByOutlet(ctx context.Context, orgID, id int64) ([]OutletStock, error) {
	return f.stock, f.stockErr
}

func (f *fakeRepo) RecentMovements(ctx context.Context, orgID, id int64, limit int) ([]inventory.Movement, error) {
	return f.recent, nil
}

func (f *fakeRepo) LastPurchase(ctx context.Context, orgID, id int64) (*LastPurchase, error) {
	return f.last, nil
}

type limitStub struct{ max int }

func (l limitStub) CheckLimit(ctx context.Context, orgID int64, key tenancy.LimitKey, current int) error {
	if key != tenancy.LimitProducts {
		return errors.New("unexpected limit key")
	}
	if current >= l.max {
		return tenancy.ErrLimitReached
	}
	return nil
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestCreateProductValidation(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)
	ctx := context.Background()

	cases := []Product{
		{OrganizationID: 1, Name: "Kopi"},
		{OrganizationID: 1, SKU: "K1"},
		{OrganizationID: 1, SKU: "K1", Name: "Kopi", SellingPrice: d("-1")},
		{OrganizationID: 1, SKU: "K1", Name: "Kopi", CostPrice: d("-0.01")},
		{OrganizationID: 1, SKU: "K1", Name: "Kopi", MinStock: d("-2")},
		{OrganizationID: 1, SKU: "K1", Name: "Kopi", CategoryID: ptr(int64(99))},
	}
	for _, c := range cases {
		_, err := svc.Create(ctx, c)
		require.ErrorIs(t, err, platform.ErrValidation, "%+v", c)
	}

	created, err := svc.Create(ctx, Product{OrganizationID: 1, SKU: " kopi susu ", Name: "Kopi Susu", CategoryID: ptr(int64(7)), SellingPrice: d("18000"), CostPrice: d("9000")})
	require.NoError(t, err)
	require.Equal(t, "KOPI-SUSU", created.SKU)
	require.Equal(t, DefaultUnit, created.Unit)

	_, err = svc.Create(ctx, Product{OrganizationID: 1, SKU: "KOPI-SUSU", Name: "Dup"})
	require.ErrorIs(t, err, platform.ErrConflict)
}

func TestCreateProductPlanLimit(t *testing.T) {
	svc := NewService(newFakeRepo(), limitStub{max: 1})
	ctx := context.Background()
	a, err := svc.Create(ctx, Product{OrganizationID: 1, SKU: "A", Name: "A", IsActive: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, Product{OrganizationID: 1, SKU: "B", Name: "B", IsActive: true})
	require.ErrorIs(t, err, platform.ErrFeatureUnavailable)

	a.IsActive = false
	_, err = svc.Update(ctx, a)
	require.NoError(t, err)
	b, err := svc.Create(ctx, Product{OrganizationID: 1, SKU: "B", Name: "B", IsActive: true})
	require.NoError(t, err, "deactivated products do not use the quota")

	a.IsActive = true
	_, err = svc.Update(ctx, a)
	require.ErrorIs(t, err, tenancy.ErrLimitReached)

	b.Name = "B baru"
	_, err = svc.Update(ctx, b)
	require.NoError(t, err)
}

func TestDeleteSoftWhenHistoryExists(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	a, _ := svc.Create(ctx, Product{OrganizationID: 1, SKU: "A", Name: "A"})
	b, _ := svc.Create(ctx, Product{OrganizationID: 1, SKU: "B", Name: "B"})
	repo.movements[a.ID] = true

	soft, err := svc.Delete(ctx, 1, a.ID)
	require.NoError(t, err)
	require.True(t, soft)
	require.Equal(t, []int64{a.ID}, repo.deactivated)

	soft, err = svc.Delete(ctx, 1, b.ID)
	require.NoError(t, err)
	require.False(t, soft)
	_, err = svc.Get(ctx, 1, b.ID)
	require.ErrorIs(t, err, platform.ErrNotFound)
}

func TestDetailsAggregatesSections(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	p, err := svc.Create(ctx, Product{OrganizationID: 1, SKU: "TEH", Name: "Teh", SellingPrice: d("10000"), CostPrice: d("6000"), MinStock: d("5")})
	require.NoError(t, err)

	repo.stock = []OutletStock{
		{OutletID: 1, OutletName: "Pusat", Quantity: d("10"), AvgCost: d("6000")},
		{OutletID: 2, OutletName: "Cabang", Quantity: d("2.5"), AvgCost: d("6100"), IsLow: true},
	}
	repo.last = &LastPurchase{PONumber: "PO-20260101-ABCDEF", SupplierName: "CV Teh", UnitCost: d("6100"), ReceivedAt: time.Now()}

	details, err := svc.Details(ctx, 1, p.ID)
	require.NoError(t, err)
	require.Len(t, details.Stock, 2)
	require.True(t, details.Stock[0].StockValue.Equal(d("60000")))
	require.True(t, details.Totals.Quantity.Equal(d("12.5")))
	require.True(t, details.Totals.StockValue.Equal(d("75250")))
	require.True(t, details.GrossMargin.Equal(d("4000")))
	require.True(t, details.MarginPercent.Equal(d("40")))
	require.NotNil(t, details.RecentMovements)
	require.Equal(t, "PO-20260101-ABCDEF", details.LastPurchase.PONumber)

	free, err := svc.Create(ctx, Product{OrganizationID: 1, SKU: "GRATIS", Name: "Sample"})
	require.NoError(t, err)
	details, err = svc.Details(ctx, 1, free.ID)
	require.NoError(t, err)
	require.True(t, details.MarginPercent.IsZero())

	repo.stockErr = errors.New("boom")
	_, err = svc.Details(ctx, 1, p.ID)
	require.Error(t, err)

	_, err = svc.Details(ctx, 2, p.ID)
	require.ErrorIs(t, err, platform.ErrNotFound)
}

func ptr[T any](v T) *T { return &v }
