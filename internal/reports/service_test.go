package reports

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	summaryCalls atomic.Int32
	gate         chan struct{}
	totals       SummaryTotals
	lastQuery    salesQuery
	lastTopN     int
	mu           sync.Mutex
	valuation    []ValuationRow
	suppliers    []SupplierPurchase
}

func (r *memoryRepo) SalesSummary(ctx context.Context, q salesQuery) (SummaryTotals, error) {
	r.summaryCalls.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.lastQuery = q
	r.mu.Unlock()
	return r.totals, nil
}

func (r *memoryRepo) SalesTimeline(ctx context.Context, q salesQuery, g Granularity) ([]TimelinePoint, error) {
	return []TimelinePoint{{Bucket: q.From, Transactions: 2, NetSales: dec("100000"), COGS: dec("60000")}}, nil
}

func (r *memoryRepo) TopProducts(ctx context.Context, q salesQuery, limit int) ([]ProductRow, error) {
	r.mu.Lock()
	r.lastTopN = limit
	r.mu.Unlock()
	return []ProductRow{{ProductID: 1, Name: "Kopi", Quantity: dec("5"), Revenue: dec("90000"), COGS: dec("45000")}}, nil
}

func (r *memoryRepo) SalesByCategory(ctx context.Context, q salesQuery) ([]CategoryRow, error) {
	id := int64(3)
	return []CategoryRow{
		{CategoryID: &id, Name: "Minuman", Revenue: dec("90000"), COGS: dec("45000")},
		{Revenue: dec("10000"), COGS: dec("15000")},
	}, nil
}

func (r *memoryRepo) SalesByOutlet(ctx context.Context, q salesQuery) ([]OutletRow, error) {
	return []OutletRow{{OutletID: 1, Name: "Pusat", Transactions: 2, NetSales: dec("100000"), Revenue: dec("111000"), COGS: dec("60000")}}, nil
}

func (r *memoryRepo) SalesByPayment(ctx context.Context, q salesQuery) ([]PaymentRow, error) {
	return []PaymentRow{{Method: "cash", Transactions: 1, Revenue: dec("55500")}, {Method: "qris", Transactions: 1, Revenue: dec("55500")}}, nil
}

func (r *memoryRepo) Valuation(ctx context.Context, orgID, outletID int64) ([]ValuationRow, error) {
	return r.valuation, nil
}

func (r *memoryRepo) PurchasesBySupplier(ctx context.Context, orgID int64, from, to time.Time) ([]SupplierPurchase, error) {
	return r.suppliers, nil
}

func (r *memoryRepo) PurchaseStatusCounts(ctx context.Context, orgID int64, from, to time.Time) (map[string]int64, error) {
	return map[string]int64{"ordered": 2, "cancelled": 1}, nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func day(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func sampleTotals() SummaryTotals {
	return SummaryTotals{
		Transactions:  2,
		ItemsSold:     dec("7"),
		GrossSales:    dec("105000"),
		ItemDiscounts: dec("3000"),
		SaleDiscounts: dec("2000"),
		Tax:           dec("11000"),
		Revenue:       dec("111000"),
		COGS:          dec("60000"),
	}
}

func TestNormalizeSalesFilter(t *testing.T) {
	f, err := NormalizeSalesFilter(SalesProfitFilter{From: day("2024-01-01"), To: day("2024-01-31").Add(23 * time.Hour)})
	require.NoError(t, err)
	require.Equal(t, GranularityDay, f.Granularity)
	require.Equal(t, DefaultTopN, f.TopN)
	require.Equal(t, day("2024-01-31"), f.To)

	_, err = NormalizeSalesFilter(SalesProfitFilter{From: day("2024-02-01"), To: day("2024-01-01")})
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = NormalizeSalesFilter(SalesProfitFilter{To: day("2024-01-01")})
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = NormalizeSalesFilter(SalesProfitFilter{From: day("2024-01-01"), To: day("2024-12-31")})
	require.NoError(t, err, "366 days inclusive in a leap year")
	_, err = NormalizeSalesFilter(SalesProfitFilter{From: day("2024-01-01"), To: day("2025-01-01")})
	require.ErrorIs(t, err, ErrRangeTooLong)
	_, err = NormalizeSalesFilter(SalesProfitFilter{From: day("2024-01-01"), To: day("2024-01-02"), Granularity: "hour"})
	require.ErrorIs(t, err, ErrInvalidGranularity)
	_, err = NormalizeSalesFilter(SalesProfitFilter{From: day("2024-01-01"), To: day("2024-01-02"), TopN: 101})
	require.ErrorIs(t, err, ErrInvalidTopN)
}

func TestSalesProfitDerivesFigures(t *testing.T) {
	repo := &memoryRepo{totals: sampleTotals()}
	svc := NewService(repo, nil)

	report, err := svc.SalesProfit(context.Background(), SalesProfitFilter{OrganizationID: 1, From: day("2024-03-01"), To: day("2024-03-31"), TopN: 5})
	require.NoError(t, err)

	s := report.Summary
	require.True(t, s.Discounts.Equal(dec("5000")))
	require.True(t, s.NetSales.Equal(dec("100000")))
	require.True(t, s.GrossProfit.Equal(dec("40000")))
	require.True(t, s.MarginPct.Equal(dec("40")))
	require.True(t, s.AverageTransaction.Equal(dec("55500")))
	require.Equal(t, "Rp 111.000,00", s.Formatted["revenue"])

	require.Equal(t, day("2024-04-01"), repo.lastQuery.Until, "to date is inclusive")
	require.Equal(t, 5, repo.lastTopN)
	require.True(t, report.Timeline[0].GrossProfit.Equal(dec("40000")))
	require.True(t, report.TopProducts[0].MarginPct.Equal(dec("50")))
	require.Equal(t, UncategorizedName, report.ByCategory[1].Name)
	require.True(t, report.ByCategory[1].GrossProfit.Equal(dec("-5000")))
	require.True(t, report.ByOutlet[0].GrossProfit.Equal(dec("40000")))
	require.True(t, report.ByPaymentMethod[0].SharePct.Equal(dec("50")))
}

func TestSalesProfitEmptyPeriod(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil)
	report, err := svc.SalesProfit(context.Background(), SalesProfitFilter{OrganizationID: 1, From: day("2024-03-01"), To: day("2024-03-01")})
	require.NoError(t, err)
	require.True(t, report.Summary.MarginPct.IsZero())
	require.True(t, report.Summary.AverageTransaction.IsZero())
}

func TestSalesProfitCachedUntilBump(t *testing.T) {
	repo := &memoryRepo{totals: sampleTotals()}
	svc := NewService(repo, newCache(t))
	ctx := context.Background()
	filter := SalesProfitFilter{OrganizationID: 1, From: day("2024-03-01"), To: day("2024-03-31")}

	first, err := svc.SalesProfit(ctx, filter)
	require.NoError(t, err)
	second, err := svc.SalesProfit(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, int32(1), repo.summaryCalls.Load())
	require.True(t, first.Summary.Revenue.Equal(second.Summary.Revenue))

	require.NoError(t, svc.Bump(ctx, 2))
	_, err = svc.SalesProfit(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, int32(1), repo.summaryCalls.Load(), "bumping another organization keeps the entry")

	require.NoError(t, svc.Bump(ctx, 1))
	_, err = svc.SalesProfit(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, int32(2), repo.summaryCalls.Load())
}

func TestSalesProfitSharesConcurrentBuilds(t *testing.T) {
	repo := &memoryRepo{totals: sampleTotals(), gate: make(chan struct{})}
	svc := NewService(repo, nil)
	filter := SalesProfitFilter{OrganizationID: 1, From: day("2024-03-01"), To: day("2024-03-31")}

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SalesProfit(context.Background(), filter)
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return repo.summaryCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(repo.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), repo.summaryCalls.Load())
}

func TestInventoryValuationGroupsByOutlet(t *testing.T) {
	repo := &memoryRepo{valuation: []ValuationRow{
		{OutletID: 1, OutletName: "Pusat", ProductID: 1, Quantity: dec("10"), AvgCost: dec("1250.5")},
		{OutletID: 1, OutletName: "Pusat", ProductID: 2, Quantity: dec("2"), AvgCost: dec("3000")},
		{OutletID: 2, OutletName: "Cabang", ProductID: 1, Quantity: dec("-1"), AvgCost: dec("0")},
	}}
	svc := NewService(repo, nil)
	out, err := svc.InventoryValuation(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, out.Outlets, 2)
	require.True(t, out.Outlets[0].Value.Equal(dec("18505")))
	require.True(t, out.TotalQuantity.Equal(dec("11")))
	require.True(t, out.TotalValue.Equal(dec("18505")))
	require.Equal(t, "Rp 18.505,00", out.FormattedValue)
}

func TestPurchaseSummary(t *testing.T) {
	repo := &memoryRepo{suppliers: []SupplierPurchase{
		{SupplierID: 1, Name: "A", Orders: 1, Ordered: dec("100"), Received: dec("40")},
		{SupplierID: 2, Name: "B", Orders: 2, Ordered: dec("300"), Received: dec("300")},
	}}
	svc := NewService(repo, nil)
	out, err := svc.PurchaseSummary(context.Background(), 1, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	require.Equal(t, int64(2), out.Suppliers[0].SupplierID)
	require.True(t, out.TotalOrdered.Equal(dec("400")))
	require.True(t, out.TotalReceived.Equal(dec("340")))
	require.Equal(t, int64(1), out.ByStatus["cancelled"])

	_, err = svc.PurchaseSummary(context.Background(), 1, day("2024-02-01"), day("2024-01-01"))
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestWarmupPopulatesCache(t *testing.T) {
	repo := &memoryRepo{totals: sampleTotals()}
	svc := NewService(repo, newCache(t))
	svc.now = func() time.Time { return time.Date(2024, 5, 15, 3, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.Warmup(context.Background(), 1))
	require.Equal(t, int32(2), repo.summaryCalls.Load())

	_, err := svc.SalesProfit(context.Background(), SalesProfitFilter{OrganizationID: 1, From: day("2024-05-01"), To: day("2024-05-15")})
	require.NoError(t, err)
	require.Equal(t, int32(2), repo.summaryCalls.Load())
}
