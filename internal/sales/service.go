package sales

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumbung-pos/lumbung/internal/inventory"
	"github.com/lumbung-pos/lumbung/internal/shared"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, orgID, id int64) (Sale, error)
	List(ctx context.Context, filter ListFilter) ([]Sale, int, error)
}

// AuditPort records audit entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReportInvalidator drops cached reports once sales change.
type ReportInvalidator interface {
	Bump(ctx context.Context, orgID int64) error
}

// LowStockEnqueuer schedules a low-stock scan for an outlet.
type LowStockEnqueuer interface {
	EnqueueLowStockScan(ctx context.Context, orgID, outletID int64) error
}

// ServiceConfig tunes checkout behaviour.
type ServiceConfig struct {
	AllowNegativeStock bool
}

var (
	saleNamespace = uuid.MustParse("b8e3d1a4-5c2f-4e71-9d0a-7f6b1c3e2a95")
	hundred       = decimal.NewFromInt(100)
)

// Service implements POS checkout and voids.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency shared.IdempotencyPort
	reports     ReportInvalidator
	scans       LowStockEnqueuer
	cfg         ServiceConfig
	now         func() time.Time
}

// NewService constructs the sales service. reports and scans may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem shared.IdempotencyPort, reports ReportInvalidator, scans LowStockEnqueuer, cfg ServiceConfig) *Service {
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		reports:     reports,
		scans:       scans,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a sale with items.
func (s *Service) Get(ctx context.Context, orgID, id int64) (Sale, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns a page of sales.
func (s *Service) List(ctx context.Context, filter ListFilter) (shared.Page[Sale], error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return shared.Page[Sale]{}, ErrInvalidStatus
	}
	if filter.PaymentMethod != "" && !filter.PaymentMethod.Valid() {
		return shared.Page[Sale]{}, ErrInvalidPaymentMethod
	}
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	sales, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Page[Sale]{}, err
	}
	return shared.NewPage(sales, filter.Page, filter.PerPage, total), nil
}

// Checkout sells a cart: stock leaves the outlet at the current average cost
// and the sale is stored in the same transaction.
func (s *Service) Checkout(ctx context.Context, orgID int64, input CheckoutInput) (Sale, error) {
	if err := validateCheckout(input); err != nil {
		return Sale{}, err
	}
	soldAt := s.now()
	number := generateNumber("INV", soldAt)

	var sale Sale
	key := shared.IdempotencyKey(orgID, "sales.checkout", input.IdempotencyKey)
	err := shared.RunIdempotent(ctx, s.idempotency, key, "sales", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			outlet, err := tx.GetOutlet(ctx, orgID, input.OutletID)
			if err != nil {
				return err
			}
			if !outlet.IsActive {
				return inventory.ErrOutletInactive
			}
			draft := Sale{
				OrganizationID: orgID,
				OutletID:       outlet.ID,
				OutletName:     outlet.Name,
				Number:         number,
				ReferenceID:    uuid.NewSHA1(saleNamespace, []byte(fmt.Sprintf("%d:%s", orgID, number))).String(),
				Status:         StatusCompleted,
				PaymentMethod:  input.PaymentMethod,
				CustomerName:   strings.TrimSpace(input.CustomerName),
				Note:           strings.TrimSpace(input.Note),
				CashierID:      input.CashierID,
				SoldAt:         soldAt,
			}
			items := make([]SaleItem, len(input.Items))
			for i, line := range input.Items {
				product, err := tx.GetProduct(ctx, orgID, line.ProductID)
				if err != nil {
					return fmt.Errorf("item %d: %w", i+1, err)
				}
				if !product.IsActive {
					return fmt.Errorf("item %d: %w", i+1, ErrProductInactive)
				}
				price := product.SellingPrice
				if line.UnitPrice.Valid {
					price = line.UnitPrice.Decimal
				}
				item, err := buildItem(line, price)
				if err != nil {
					return fmt.Errorf("item %d: %w", i+1, err)
				}
				item.ProductName = product.Name
				item.SKU = product.SKU
				items[i] = item
			}
			draft.Items = items
			if err := applyTotals(&draft, input); err != nil {
				return err
			}

			// lock stock rows in product order
			order := make([]int, len(items))
			for i := range order {
				order[i] = i
			}
			sort.SliceStable(order, func(a, b int) bool { return items[order[a]].ProductID < items[order[b]].ProductID })
			for _, i := range order {
				m, err := inventory.Apply(ctx, tx, inventory.MovementInput{
					OrganizationID: orgID,
					OutletID:       outlet.ID,
					ProductID:      items[i].ProductID,
					Type:           inventory.MovementSale,
					Quantity:       items[i].Quantity.Neg(),
					ReferenceType:  inventory.RefSale,
					ReferenceID:    draft.ReferenceID,
					Note:           number,
					CreatedBy:      input.CashierID,
					AllowNegative:  s.cfg.AllowNegativeStock,
				})
				if err != nil {
					return fmt.Errorf("item %d: %w", i+1, err)
				}
				draft.Items[i].UnitCost = m.UnitCost
			}

			saved, err := tx.InsertSale(ctx, draft)
			if err != nil {
				return err
			}
			sale = saved
			return nil
		})
	})
	if err != nil {
		return Sale{}, err
	}
	if s.reports != nil {
		_ = s.reports.Bump(ctx, orgID)
	}
	if s.scans != nil {
		_ = s.scans.EnqueueLowStockScan(ctx, orgID, sale.OutletID)
	}
	s.recordAudit(ctx, orgID, input.CashierID, "sale.checkout", sale.ID, map[string]any{
		"number": sale.Number,
		"total":  sale.Total.String(),
		"method": string(sale.PaymentMethod),
	})
	return sale, nil
}

// Void reverses a completed sale, returning stock at the recorded cost.
func (s *Service) Void(ctx context.Context, orgID, saleID int64, input VoidInput) (Sale, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return Sale{}, ErrVoidReasonRequired
	}
	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockSale(ctx, orgID, saleID)
		if err != nil {
			return err
		}
		if locked.Status != StatusCompleted {
			return ErrAlreadyVoided
		}
		items := append([]SaleItem(nil), locked.Items...)
		sort.SliceStable(items, func(a, b int) bool { return items[a].ProductID < items[b].ProductID })
		for _, item := range items {
			if _, err := inventory.Apply(ctx, tx, inventory.MovementInput{
				OrganizationID: orgID,
				OutletID:       locked.OutletID,
				ProductID:      item.ProductID,
				Type:           inventory.MovementSaleVoid,
				Quantity:       item.Quantity,
				UnitCost:       decimal.NewNullDecimal(item.UnitCost),
				ReferenceType:  inventory.RefSale,
				ReferenceID:    locked.ReferenceID,
				Note:           "void " + locked.Number,
				CreatedBy:      input.ActorID,
			}); err != nil {
				return err
			}
		}
		voidedAt := s.now()
		locked.Status = StatusVoided
		locked.VoidedAt = &voidedAt
		locked.VoidedBy = input.ActorID
		locked.VoidReason = reason
		if err := tx.MarkVoided(ctx, locked); err != nil {
			return err
		}
		sale = locked
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	if s.reports != nil {
		_ = s.reports.Bump(ctx, orgID)
	}
	s.recordAudit(ctx, orgID, input.ActorID, "sale.void", sale.ID, map[string]any{"number": sale.Number, "reason": reason})
	return sale, nil
}

func (s *Service) recordAudit(ctx context.Context, orgID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         action,
		Entity:         "sale",
		EntityID:       fmt.Sprintf("%d", entityID),
		Meta:           meta,
		At:             s.now(),
	})
}

func validateCheckout(input CheckoutInput) error {
	if input.OutletID <= 0 {
		return fmt.Errorf("sales: outlet required: %w", shared.ErrValidation)
	}
	if len(input.Items) == 0 {
		return ErrNoItems
	}
	if !input.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	if input.TaxRate.IsNegative() || input.TaxRate.GreaterThan(hundred) {
		return ErrInvalidTaxRate
	}
	if input.Discount.IsNegative() || input.AmountPaid.IsNegative() {
		return ErrInvalidDiscount
	}
	for i, line := range input.Items {
		if line.ProductID <= 0 {
			return fmt.Errorf("item %d: product required: %w", i+1, shared.ErrValidation)
		}
		if !line.Quantity.IsPositive() {
			return fmt.Errorf("item %d: %w", i+1, ErrInvalidQuantity)
		}
		if !shared.WithinPlaces(line.Quantity, shared.QuantityPlaces) {
			return fmt.Errorf("item %d: %w", i+1, ErrQuantityPrecision)
		}
		if line.UnitPrice.Valid && !shared.WithinPlaces(line.UnitPrice.Decimal, shared.MoneyPlaces) {
			return fmt.Errorf("item %d: %w", i+1, ErrPricePrecision)
		}
	}
	return nil
}

func buildItem(line ItemInput, price decimal.Decimal) (SaleItem, error) {
	if price.IsNegative() {
		return SaleItem{}, ErrInvalidPrice
	}
	gross := line.Quantity.Mul(price)
	if line.Discount.IsNegative() || line.Discount.GreaterThan(gross) {
		return SaleItem{}, ErrInvalidDiscount
	}
	return SaleItem{
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		UnitPrice: price,
		Discount:  shared.RoundMoney(line.Discount),
		Subtotal:  shared.RoundMoney(gross.Sub(line.Discount)),
	}, nil
}

// applyTotals fills subtotal, tax, total, amount paid and change.
func applyTotals(sale *Sale, input CheckoutInput) error {
	subtotal := decimal.Zero
	for _, item := range sale.Items {
		subtotal = subtotal.Add(item.Subtotal)
	}
	discount := shared.RoundMoney(input.Discount)
	if discount.GreaterThan(subtotal) {
		return ErrInvalidDiscount
	}
	taxable := subtotal.Sub(discount)
	tax := shared.RoundMoney(taxable.Mul(input.TaxRate).Div(hundred))
	total := taxable.Add(tax)

	sale.Subtotal = subtotal
	sale.Discount = discount
	sale.TaxRate = input.TaxRate
	sale.Tax = tax
	sale.Total = total
	if input.PaymentMethod == PaymentCash {
		paid := shared.RoundMoney(input.AmountPaid)
		if paid.LessThan(total) {
			return ErrInsufficientPayment
		}
		sale.AmountPaid = paid
		sale.Change = paid.Sub(total)
		return nil
	}
	sale.AmountPaid = total
	sale.Change = decimal.Zero
	return nil
}

// generateNumber builds PREFIX-YYYYMMDD-XXXXXX from a random uuid.
func generateNumber(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix)
}
