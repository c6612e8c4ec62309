package reports

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

// RepositoryPort lists the aggregations used by Service.
type RepositoryPort interface {
	SalesSummary(ctx context.Context, q salesQuery) (SummaryTotals, error)
	SalesTimeline(ctx context.Context, q salesQuery, g Granularity) ([]TimelinePoint, error)
	TopProducts(ctx context.Context, q salesQuery, limit int) ([]ProductRow, error)
	SalesByCategory(ctx context.Context, q salesQuery) ([]CategoryRow, error)
	SalesByOutlet(ctx context.Context, q salesQuery) ([]OutletRow, error)
	SalesByPayment(ctx context.Context, q salesQuery) ([]PaymentRow, error)
	Valuation(ctx context.Context, orgID, outletID int64) ([]ValuationRow, error)
	PurchasesBySupplier(ctx context.Context, orgID int64, from, to time.Time) ([]SupplierPurchase, error)
	PurchaseStatusCounts(ctx context.Context, orgID int64, from, to time.Time) (map[string]int64, error)
}

// UncategorizedName labels products without a category.
const UncategorizedName = "Uncategorized"

// Service builds reports with a versioned cache in front.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	group singleflight.Group
	now   func() time.Time
}

// NewService wires a Repository with a Cache helper. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: func() time.Time { return time.Now().UTC() }}
}

// Bump invalidates cached reports for the organization.
func (s *Service) Bump(ctx context.Context, orgID int64) error {
	return s.cache.Bump(ctx, orgID)
}

// NormalizeSalesFilter applies defaults and validates the filter.
func NormalizeSalesFilter(f SalesProfitFilter) (SalesProfitFilter, error) {
	if f.From.IsZero() || f.To.IsZero() {
		return f, ErrInvalidRange
	}
	f.From = truncateDay(f.From)
	f.To = truncateDay(f.To)
	if f.From.After(f.To) {
		return f, ErrInvalidRange
	}
	if f.To.Sub(f.From) > (MaxRangeDays-1)*24*time.Hour {
		return f, ErrRangeTooLong
	}
	if f.Granularity == "" {
		f.Granularity = GranularityDay
	}
	if !f.Granularity.Valid() {
		return f, ErrInvalidGranularity
	}
	if f.TopN == 0 {
		f.TopN = DefaultTopN
	}
	if f.TopN < 1 || f.TopN > MaxTopN {
		return f, ErrInvalidTopN
	}
	return f, nil
}

// SalesProfit builds the advanced sales and profit report over completed sales.
// Identical concurrent requests share one computation.
func (s *Service) SalesProfit(ctx context.Context, filter SalesProfitFilter) (SalesProfitReport, error) {
	filter, err := NormalizeSalesFilter(filter)
	if err != nil {
		return SalesProfitReport{}, err
	}
	key, err := s.cache.BuildKey(ctx, filter.OrganizationID, "sales_profit",
		filter.From.Format(time.DateOnly), filter.To.Format(time.DateOnly),
		strconv.FormatInt(filter.OutletID, 10), string(filter.Granularity), strconv.Itoa(filter.TopN))
	if err != nil {
		return SalesProfitReport{}, err
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var report SalesProfitReport
		err := s.cache.FetchJSON(context.WithoutCancel(ctx), key, &report, func(ctx context.Context) (any, error) {
			return s.buildSalesProfit(ctx, filter)
		})
		return report, err
	})
	select {
	case <-ctx.Done():
		return SalesProfitReport{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return SalesProfitReport{}, res.Err
		}
		return res.Val.(SalesProfitReport), nil
	}
}

func (s *Service) buildSalesProfit(ctx context.Context, filter SalesProfitFilter) (SalesProfitReport, error) {
	q := salesQuery{
		OrganizationID: filter.OrganizationID,
		OutletID:       filter.OutletID,
		From:           filter.From,
		Until:          filter.To.AddDate(0, 0, 1),
	}
	report := SalesProfitReport{Filter: filter, GeneratedAt: s.now()}
	var totals SummaryTotals

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = s.repo.SalesSummary(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		report.Timeline, err = s.repo.SalesTimeline(gctx, q, filter.Granularity)
		return err
	})
	g.Go(func() (err error) {
		report.TopProducts, err = s.repo.TopProducts(gctx, q, filter.TopN)
		return err
	})
	g.Go(func() (err error) {
		report.ByCategory, err = s.repo.SalesByCategory(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		report.ByOutlet, err = s.repo.SalesByOutlet(gctx, q)
		return err
	})
	g.Go(func() (err error) {
		report.ByPaymentMethod, err = s.repo.SalesByPayment(gctx, q)
		return err
	})
	if err := g.Wait(); err != nil {
		return SalesProfitReport{}, fmt.Errorf("sales profit report: %w", err)
	}

	report.Summary = summarize(totals)
	for i := range report.Timeline {
		p := &report.Timeline[i]
		p.GrossProfit = p.NetSales.Sub(p.COGS)
	}
	for i := range report.TopProducts {
		p := &report.TopProducts[i]
		p.GrossProfit = p.Revenue.Sub(p.COGS)
		p.MarginPct = shared.Percent(p.GrossProfit, p.Revenue)
	}
	for i := range report.ByCategory {
		c := &report.ByCategory[i]
		if c.CategoryID == nil || c.Name == "" {
			c.Name = UncategorizedName
		}
		c.GrossProfit = c.Revenue.Sub(c.COGS)
	}
	for i := range report.ByOutlet {
		o := &report.ByOutlet[i]
		o.GrossProfit = o.NetSales.Sub(o.COGS)
	}
	for i := range report.ByPaymentMethod {
		p := &report.ByPaymentMethod[i]
		p.SharePct = shared.Percent(p.Revenue, report.Summary.Revenue)
	}
	ensureSlices(&report)
	return report, nil
}

// summarize derives the headline figures from raw sums.
func summarize(t SummaryTotals) Summary {
	discounts := t.ItemDiscounts.Add(t.SaleDiscounts)
	net := t.GrossSales.Sub(discounts)
	sum := Summary{
		Transactions: t.Transactions,
		ItemsSold:    t.ItemsSold,
		GrossSales:   shared.RoundMoney(t.GrossSales),
		Discounts:    shared.RoundMoney(discounts),
		NetSales:     shared.RoundMoney(net),
		Tax:          shared.RoundMoney(t.Tax),
		Revenue:      shared.RoundMoney(t.Revenue),
		COGS:         shared.RoundMoney(t.COGS),
		GrossProfit:  shared.RoundMoney(net.Sub(t.COGS)),
	}
	sum.MarginPct = shared.Percent(sum.GrossProfit, sum.NetSales)
	if t.Transactions > 0 {
		sum.AverageTransaction = shared.RoundMoney(t.Revenue.Div(decimal.NewFromInt(t.Transactions)))
	}
	sum.Formatted = formatSummary(sum)
	return sum
}

func ensureSlices(r *SalesProfitReport) {
	if r.Timeline == nil {
		r.Timeline = []TimelinePoint{}
	}
	if r.TopProducts == nil {
		r.TopProducts = []ProductRow{}
	}
	if r.ByCategory == nil {
		r.ByCategory = []CategoryRow{}
	}
	if r.ByOutlet == nil {
		r.ByOutlet = []OutletRow{}
	}
	if r.ByPaymentMethod == nil {
		r.ByPaymentMethod = []PaymentRow{}
	}
}

// InventoryValuation values stock at moving average cost, grouped per outlet.
func (s *Service) InventoryValuation(ctx context.Context, orgID, outletID int64) (InventoryValuation, error) {
	rows, err := s.repo.Valuation(ctx, orgID, outletID)
	if err != nil {
		return InventoryValuation{}, err
	}
	out := InventoryValuation{GeneratedAt: s.now(), Outlets: []OutletValuation{}, TotalQuantity: decimal.Zero, TotalValue: decimal.Zero}
	index := make(map[int64]int)
	for _, row := range rows {
		row.Value = shared.RoundMoney(row.Quantity.Mul(row.AvgCost))
		i, ok := index[row.OutletID]
		if !ok {
			i = len(out.Outlets)
			index[row.OutletID] = i
			out.Outlets = append(out.Outlets, OutletValuation{OutletID: row.OutletID, Name: row.OutletName, Quantity: decimal.Zero, Value: decimal.Zero})
		}
		group := &out.Outlets[i]
		group.Items = append(group.Items, row)
		group.Quantity = group.Quantity.Add(row.Quantity)
		group.Value = group.Value.Add(row.Value)
		out.TotalQuantity = out.TotalQuantity.Add(row.Quantity)
		out.TotalValue = out.TotalValue.Add(row.Value)
	}
	out.FormattedValue = FormatIDR(out.TotalValue)
	return out, nil
}

// PurchaseSummary aggregates purchase orders dated within [from, to].
func (s *Service) PurchaseSummary(ctx context.Context, orgID int64, from, to time.Time) (PurchaseSummary, error) {
	if from.IsZero() || to.IsZero() {
		return PurchaseSummary{}, ErrInvalidRange
	}
	from, to = truncateDay(from), truncateDay(to)
	if from.After(to) {
		return PurchaseSummary{}, ErrInvalidRange
	}
	if to.Sub(from) > (MaxRangeDays-1)*24*time.Hour {
		return PurchaseSummary{}, ErrRangeTooLong
	}
	var (
		suppliers []SupplierPurchase
		counts    map[string]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		suppliers, err = s.repo.PurchasesBySupplier(gctx, orgID, from, to)
		return err
	})
	g.Go(func() (err error) {
		counts, err = s.repo.PurchaseStatusCounts(gctx, orgID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return PurchaseSummary{}, err
	}
	out := PurchaseSummary{From: from, To: to, Suppliers: suppliers, ByStatus: counts, TotalOrdered: decimal.Zero, TotalReceived: decimal.Zero}
	if out.Suppliers == nil {
		out.Suppliers = []SupplierPurchase{}
	}
	if out.ByStatus == nil {
		out.ByStatus = map[string]int64{}
	}
	sort.SliceStable(out.Suppliers, func(i, j int) bool { return out.Suppliers[i].Ordered.GreaterThan(out.Suppliers[j].Ordered) })
	for _, sp := range out.Suppliers {
		out.TotalOrdered = out.TotalOrdered.Add(sp.Ordered)
		out.TotalReceived = out.TotalReceived.Add(shared.RoundMoney(sp.Received))
	}
	return out, nil
}

// Warmup precomputes yesterday and month-to-date sales reports.
func (s *Service) Warmup(ctx context.Context, orgID int64) error {
	today := truncateDay(s.now())
	yesterday := today.AddDate(0, 0, -1)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	for _, f := range []SalesProfitFilter{
		{OrganizationID: orgID, From: yesterday, To: yesterday, Granularity: GranularityDay},
		{OrganizationID: orgID, From: monthStart, To: today, Granularity: GranularityDay},
	} {
		if _, err := s.SalesProfit(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
