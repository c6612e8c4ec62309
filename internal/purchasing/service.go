package purchasing

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

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, orgID, id int64) (PurchaseOrder, error)
	List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReportInvalidator drops cached reports after stock or cost changes.
type ReportInvalidator interface {
	Bump(ctx context.Context, orgID int64) error
}

// receiptNamespace seeds deterministic receipt references.
var receiptNamespace = uuid.MustParse("6f1c8f0e-3b7a-4d55-9a51-0c2b8e4f7a10")

// Service orchestrates purchase order flows.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency shared.IdempotencyPort
	reports     ReportInvalidator
	now         func() time.Time
}

// NewService constructs purchasing service.
func NewService(repo RepositoryPort, audit AuditPort, idem shared.IdempotencyPort, reports ReportInvalidator) *Service {
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		reports:     reports,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Get returns an order with items and names.
func (s *Service) Get(ctx context.Context, orgID, id int64) (PurchaseOrder, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns a page of order headers.
func (s *Service) List(ctx context.Context, filter ListFilter) (shared.Page[PurchaseOrder], error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return shared.Page[PurchaseOrder]{}, ErrInvalidStatus
	}
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return shared.Page[PurchaseOrder]{}, err
	}
	return shared.NewPage(orders, filter.Page, filter.PerPage, total), nil
}

// Create persists a draft order.
func (s *Service) Create(ctx context.Context, orgID int64, input DraftInput) (PurchaseOrder, error) {
	po := PurchaseOrder{
		OrganizationID: orgID,
		Number:         generateNumber("PO", s.now()),
		Status:         StatusDraft,
		CreatedBy:      input.ActorID,
	}
	if err := applyDraft(&po, input, s.now()); err != nil {
		return PurchaseOrder{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkParties(ctx, tx, orgID, input); err != nil {
			return err
		}
		if err := s.fillProducts(ctx, tx, orgID, po.Items); err != nil {
			return err
		}
		created, err := tx.InsertOrder(ctx, po)
		if err != nil {
			return err
		}
		created.Items, err = tx.ReplaceItems(ctx, created.ID, po.Items)
		if err != nil {
			return err
		}
		po = created
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, orgID, input.ActorID, "purchase_order.create", po.ID, map[string]any{"number": po.Number, "total": po.Total.String()})
	return s.repo.Get(ctx, orgID, po.ID)
}

// Update replaces header fields and items of a draft order.
func (s *Service) Update(ctx context.Context, orgID, id int64, input DraftInput) (PurchaseOrder, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockOrder(ctx, orgID, id)
		if err != nil {
			return err
		}
		if po.Status != StatusDraft {
			return ErrNotEditable
		}
		if err := applyDraft(&po, input, po.OrderDate); err != nil {
			return err
		}
		if err := checkParties(ctx, tx, orgID, input); err != nil {
			return err
		}
		if err := s.fillProducts(ctx, tx, orgID, po.Items); err != nil {
			return err
		}
		if err := tx.UpdateOrderHeader(ctx, po); err != nil {
			return err
		}
		_, err = tx.ReplaceItems(ctx, po.ID, po.Items)
		return err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, orgID, input.ActorID, "purchase_order.update", id, nil)
	return s.repo.Get(ctx, orgID, id)
}

// ChangeStatus applies a manual status transition.
func (s *Service) ChangeStatus(ctx context.Context, orgID, id int64, to Status, actorID int64) (PurchaseOrder, error) {
	var from Status
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockOrder(ctx, orgID, id)
		if err != nil {
			return err
		}
		if err := CheckTransition(po, to); err != nil {
			return err
		}
		from = po.Status
		return tx.UpdateStatus(ctx, orgID, id, to, nil)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, orgID, actorID, "purchase_order.status", id, map[string]any{"from": string(from), "to": string(to)})
	return s.repo.Get(ctx, orgID, id)
}

// Delete removes a draft or cancelled order.
func (s *Service) Delete(ctx context.Context, orgID, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.LockOrder(ctx, orgID, id)
		if err != nil {
			return err
		}
		if po.Status != StatusDraft && po.Status != StatusCancelled {
			return ErrNotDeletable
		}
		return tx.DeleteOrder(ctx, orgID, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, orgID, actorID, "purchase_order.delete", id, nil)
	return nil
}

// ReceiveGoods records a delivery: received quantities, stock movements and
// the resulting status are committed in one transaction.
func (s *Service) ReceiveGoods(ctx context.Context, orgID, id int64, input ReceiveInput) (ReceiveResult, error) {
	lines, err := normalizeReceiveLines(input.Items)
	if err != nil {
		return ReceiveResult{}, err
	}
	receivedAt := s.now()
	if input.ReceivedAt != nil && !input.ReceivedAt.IsZero() {
		receivedAt = input.ReceivedAt.UTC()
	}
	note := strings.TrimSpace(input.Note)

	var result ReceiveResult
	key := shared.IdempotencyKey(orgID, fmt.Sprintf("purchasing.receive.%d", id), input.IdempotencyKey)
	err = shared.RunIdempotent(ctx, s.idempotency, key, "purchasing", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			po, err := tx.LockOrder(ctx, orgID, id)
			if err != nil {
				return err
			}
			if !po.Status.Receivable() {
				return ErrInvalidTransition
			}
			seq, err := tx.CountReceipts(ctx, po.ID)
			if err != nil {
				return err
			}
			receipt, err := tx.InsertReceipt(ctx, Receipt{
				OrganizationID:  orgID,
				PurchaseOrderID: po.ID,
				ReferenceID:     receiptReference(orgID, po.ID, seq+1),
				Note:            note,
				ReceivedAt:      receivedAt,
				CreatedBy:       input.ActorID,
			})
			if err != nil {
				return err
			}

			index := make(map[int64]int, len(po.Items))
			for i, item := range po.Items {
				index[item.ID] = i
			}
			// lock stock rows in product order
			sort.SliceStable(lines, func(i, j int) bool {
				return productOf(po, index, lines[i].ItemID) < productOf(po, index, lines[j].ItemID)
			})

			movements := make([]inventory.Movement, 0, len(lines))
			for _, line := range lines {
				i, ok := index[line.ItemID]
				if !ok {
					return ErrItemNotInOrder
				}
				item := po.Items[i]
				received := item.QuantityReceived.Add(line.Quantity)
				if received.GreaterThan(item.QuantityOrdered) {
					return fmt.Errorf("item %d outstanding %s: %w", item.ID, item.Outstanding(), ErrOverReceipt)
				}
				cost := item.UnitCost
				if line.UnitCost.Valid {
					cost = line.UnitCost.Decimal
				}
				if cost.IsNegative() {
					return ErrInvalidCost
				}
				if err := tx.UpdateItemReceived(ctx, item.ID, received); err != nil {
					return err
				}
				po.Items[i].QuantityReceived = received
				m, err := inventory.Apply(ctx, tx, inventory.MovementInput{
					OrganizationID: orgID,
					OutletID:       po.OutletID,
					ProductID:      item.ProductID,
					Type:           inventory.MovementPurchaseReceipt,
					Quantity:       line.Quantity,
					UnitCost:       decimal.NewNullDecimal(cost),
					ReferenceType:  inventory.RefPurchaseOrder,
					ReferenceID:    receipt.ReferenceID,
					Note:           po.Number,
					CreatedBy:      input.ActorID,
				})
				if err != nil {
					return err
				}
				movements = append(movements, m)
			}

			po.Status = statusAfterReceipt(po)
			var completedAt *time.Time
			if po.Status == StatusCompleted {
				completedAt = &receivedAt
				po.ReceivedAt = completedAt
			}
			if err := tx.UpdateStatus(ctx, orgID, po.ID, po.Status, completedAt); err != nil {
				return err
			}
			result = ReceiveResult{Order: po, Receipt: receipt, Movements: movements}
			return nil
		})
	})
	if err != nil {
		return ReceiveResult{}, err
	}
	if s.reports != nil {
		_ = s.reports.Bump(ctx, orgID)
	}
	s.recordAudit(ctx, orgID, input.ActorID, "purchase_order.receive", id, map[string]any{
		"number":    result.Order.Number,
		"reference": result.Receipt.ReferenceID,
		"lines":     len(result.Movements),
		"status":    string(result.Order.Status),
	})
	return result, nil
}

func (s *Service) fillProducts(ctx context.Context, tx TxRepository, orgID int64, items []Item) error {
	for i := range items {
		p, err := tx.GetProduct(ctx, orgID, items[i].ProductID)
		if err != nil {
			return err
		}
		items[i].ProductName = p.Name
		items[i].SKU = p.SKU
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, orgID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         action,
		Entity:         "purchase_order",
		EntityID:       fmt.Sprintf("%d", entityID),
		Meta:           meta,
		At:             s.now(),
	})
}

func checkParties(ctx context.Context, tx TxRepository, orgID int64, input DraftInput) error {
	outlet, err := tx.GetOutlet(ctx, orgID, input.OutletID)
	if err != nil {
		return err
	}
	if !outlet.IsActive {
		return inventory.ErrOutletInactive
	}
	supplier, err := tx.GetSupplier(ctx, orgID, input.SupplierID)
	if err != nil {
		return err
	}
	if !supplier.IsActive {
		return ErrSupplierInactive
	}
	return nil
}

// applyDraft validates input and computes items and totals onto po.
func applyDraft(po *PurchaseOrder, input DraftInput, defaultDate time.Time) error {
	if input.OutletID == 0 || input.SupplierID == 0 {
		return fmt.Errorf("purchasing: outlet and supplier required: %w", shared.ErrValidation)
	}
	if len(input.Items) == 0 {
		return ErrNoItems
	}
	seen := make(map[int64]struct{}, len(input.Items))
	items := make([]Item, 0, len(input.Items))
	subtotal := decimal.Zero
	for _, in := range input.Items {
		if in.ProductID == 0 {
			return fmt.Errorf("purchasing: product required: %w", shared.ErrValidation)
		}
		if _, dup := seen[in.ProductID]; dup {
			return ErrDuplicateItem
		}
		seen[in.ProductID] = struct{}{}
		if !in.Quantity.IsPositive() {
			return ErrInvalidQuantity
		}
		if !shared.WithinPlaces(in.Quantity, shared.QuantityPlaces) {
			return ErrQuantityPrecision
		}
		if in.UnitCost.IsNegative() {
			return ErrInvalidCost
		}
		if !shared.WithinPlaces(in.UnitCost, shared.MoneyPlaces) {
			return ErrCostPrecision
		}
		line := shared.RoundMoney(in.Quantity.Mul(in.UnitCost))
		subtotal = subtotal.Add(line)
		items = append(items, Item{ProductID: in.ProductID, QuantityOrdered: in.Quantity, QuantityReceived: decimal.Zero, UnitCost: in.UnitCost, Subtotal: line})
	}
	if input.Discount.IsNegative() || input.Discount.GreaterThan(subtotal) {
		return ErrInvalidDiscount
	}
	if input.Tax.IsNegative() {
		return ErrInvalidTax
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = defaultDate
	}
	if input.ExpectedDate != nil && input.ExpectedDate.Before(truncateDay(orderDate)) {
		return fmt.Errorf("purchasing: expected date before order date: %w", shared.ErrValidation)
	}
	po.OutletID = input.OutletID
	po.SupplierID = input.SupplierID
	po.OrderDate = truncateDay(orderDate)
	po.ExpectedDate = input.ExpectedDate
	po.Notes = strings.TrimSpace(input.Notes)
	po.Items = items
	po.Subtotal = subtotal
	po.Discount = shared.RoundMoney(input.Discount)
	po.Tax = shared.RoundMoney(input.Tax)
	po.Total = subtotal.Sub(po.Discount).Add(po.Tax)
	return nil
}

func normalizeReceiveLines(lines []ReceiveLine) ([]ReceiveLine, error) {
	if len(lines) == 0 {
		return nil, ErrNoItems
	}
	out := append([]ReceiveLine(nil), lines...)
	seen := make(map[int64]struct{}, len(out))
	for _, line := range out {
		if line.ItemID == 0 {
			return nil, ErrItemNotInOrder
		}
		if _, dup := seen[line.ItemID]; dup {
			return nil, ErrDuplicateItem
		}
		seen[line.ItemID] = struct{}{}
		if !line.Quantity.IsPositive() {
			return nil, ErrInvalidQuantity
		}
		if !shared.WithinPlaces(line.Quantity, shared.QuantityPlaces) {
			return nil, ErrQuantityPrecision
		}
		if line.UnitCost.Valid && line.UnitCost.Decimal.IsNegative() {
			return nil, ErrInvalidCost
		}
		if line.UnitCost.Valid && !shared.WithinPlaces(line.UnitCost.Decimal, shared.MoneyPlaces) {
			return nil, ErrCostPrecision
		}
	}
	return out, nil
}

func productOf(po PurchaseOrder, index map[int64]int, itemID int64) int64 {
	if i, ok := index[itemID]; ok {
		return po.Items[i].ProductID
	}
	return 0
}

func receiptReference(orgID, poID int64, seq int) string {
	return uuid.NewSHA1(receiptNamespace, []byte(fmt.Sprintf("%d:%d:%d", orgID, poID, seq))).String()
}

// generateNumber builds PREFIX-YYYYMMDD-XXXXXX from a random uuid.
func generateNumber(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
