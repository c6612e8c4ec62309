package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListStock(ctx context.Context, filter StockFilter) ([]StockLevel, int, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error)
	LowStock(ctx context.Context, orgID, outletID int64) ([]LowStockItem, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReportInvalidator drops cached valuation reports after stock changes.
type ReportInvalidator interface {
	Bump(ctx context.Context, orgID int64) error
}

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency shared.IdempotencyPort
	alerts      AlertStore
	reports     ReportInvalidator
	allowNeg    bool
	now         func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
	Reports            ReportInvalidator
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem shared.IdempotencyPort, alerts AlertStore, cfg ServiceConfig) *Service {
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		alerts:      alerts,
		reports:     cfg.Reports,
		allowNeg:    cfg.AllowNegativeStock,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListStock returns paginated stock levels.
func (s *Service) ListStock(ctx context.Context, filter StockFilter) (shared.Page[StockLevel], error) {
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	levels, total, err := s.repo.ListStock(ctx, filter)
	if err != nil {
		return shared.Page[StockLevel]{}, err
	}
	return shared.NewPage(levels, filter.Page, filter.PerPage, total), nil
}

// ListMovements returns paginated ledger entries.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) (shared.Page[Movement], error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return shared.Page[Movement]{}, ErrInvalidMovementType
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return shared.Page[Movement]{}, fmt.Errorf("inventory: date range inverted: %w", shared.ErrValidation)
	}
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	movements, total, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return shared.Page[Movement]{}, err
	}
	return shared.NewPage(movements, filter.Page, filter.PerPage, total), nil
}

// LowStock computes low-stock items live.
func (s *Service) LowStock(ctx context.Context, orgID, outletID int64) ([]LowStockItem, error) {
	items, err := s.repo.LowStock(ctx, orgID, outletID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []LowStockItem{}
	}
	return items, nil
}

// Alerts returns the last scan snapshot, or a live computation when none is stored.
func (s *Service) Alerts(ctx context.Context, orgID int64) (AlertSnapshot, error) {
	if s.alerts != nil {
		snapshot, ok, err := s.alerts.Load(ctx, orgID)
		if err != nil {
			return AlertSnapshot{}, err
		}
		if ok {
			return snapshot, nil
		}
	}
	items, err := s.LowStock(ctx, orgID, 0)
	if err != nil {
		return AlertSnapshot{}, err
	}
	return AlertSnapshot{OrganizationID: orgID, GeneratedAt: s.now(), Live: true, Items: items}, nil
}

// ScanLowStock recomputes and stores the organization snapshot.
func (s *Service) ScanLowStock(ctx context.Context, orgID int64) (AlertSnapshot, error) {
	items, err := s.LowStock(ctx, orgID, 0)
	if err != nil {
		return AlertSnapshot{}, err
	}
	snapshot := AlertSnapshot{OrganizationID: orgID, GeneratedAt: s.now(), Items: items}
	if s.alerts != nil {
		if err := s.alerts.Save(ctx, snapshot); err != nil {
			return AlertSnapshot{}, err
		}
	}
	return snapshot, nil
}

// Adjust posts a manual correction which may be positive or negative.
func (s *Service) Adjust(ctx context.Context, orgID int64, input AdjustmentInput) (Movement, error) {
	if input.OutletID == 0 || input.ProductID == 0 {
		return Movement{}, ErrScopeRequired
	}
	if input.Quantity.IsZero() {
		return Movement{}, ErrInvalidQuantity
	}
	if input.UnitCost.Valid && input.UnitCost.Decimal.IsNegative() {
		return Movement{}, ErrInvalidUnitCost
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return Movement{}, ErrReasonRequired
	}
	ref := uuid.NewString()
	var movement Movement
	key := shared.IdempotencyKey(orgID, "inventory.adjustment", input.IdempotencyKey)
	err := shared.RunIdempotent(ctx, s.idempotency, key, "inventory", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := requireActiveOutlet(ctx, tx, orgID, input.OutletID); err != nil {
				return err
			}
			if _, err := tx.GetProduct(ctx, orgID, input.ProductID); err != nil {
				return err
			}
			m, err := Apply(ctx, tx, MovementInput{
				OrganizationID: orgID,
				OutletID:       input.OutletID,
				ProductID:      input.ProductID,
				Type:           MovementAdjustment,
				Quantity:       input.Quantity,
				UnitCost:       input.UnitCost,
				ReferenceType:  RefAdjustment,
				ReferenceID:    ref,
				Note:           reason,
				CreatedBy:      input.ActorID,
				AllowNegative:  s.allowNeg,
			})
			if err != nil {
				return err
			}
			movement = m
			return nil
		})
	})
	if err != nil {
		return Movement{}, err
	}
	s.invalidate(ctx, orgID)
	s.record(ctx, orgID, input.ActorID, "inventory.adjust", "stock_movement", ref, map[string]any{
		"outlet_id":  input.OutletID,
		"product_id": input.ProductID,
		"quantity":   input.Quantity.String(),
		"reason":     reason,
	})
	return movement, nil
}

// Transfer moves stock between two outlets within one transaction.
func (s *Service) Transfer(ctx context.Context, orgID int64, input TransferInput) (TransferResult, error) {
	if input.FromOutletID == 0 || input.ToOutletID == 0 {
		return TransferResult{}, ErrScopeRequired
	}
	if input.FromOutletID == input.ToOutletID {
		return TransferResult{}, ErrSameOutlet
	}
	lines, err := normalizeTransferLines(input.Lines)
	if err != nil {
		return TransferResult{}, err
	}
	result := TransferResult{Reference: uuid.NewString()}
	note := strings.TrimSpace(input.Note)
	key := shared.IdempotencyKey(orgID, "inventory.transfer", input.IdempotencyKey)
	err = shared.RunIdempotent(ctx, s.idempotency, key, "inventory", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			result.Out, result.In = nil, nil
			if err := requireActiveOutlet(ctx, tx, orgID, input.FromOutletID); err != nil {
				return err
			}
			if err := requireActiveOutlet(ctx, tx, orgID, input.ToOutletID); err != nil {
				return err
			}
			first, second := input.FromOutletID, input.ToOutletID
			if second < first {
				first, second = second, first
			}
			for _, line := range lines {
				if _, err := tx.GetProduct(ctx, orgID, line.ProductID); err != nil {
					return err
				}
				if err := lockPair(ctx, tx, orgID, line.ProductID, first, second); err != nil {
					return err
				}
				out, err := Apply(ctx, tx, MovementInput{
					OrganizationID: orgID,
					OutletID:       input.FromOutletID,
					ProductID:      line.ProductID,
					Type:           MovementTransferOut,
					Quantity:       line.Quantity.Neg(),
					ReferenceType:  RefTransfer,
					ReferenceID:    result.Reference,
					Note:           note,
					CreatedBy:      input.ActorID,
					AllowNegative:  s.allowNeg,
				})
				if err != nil {
					return err
				}
				in, err := Apply(ctx, tx, MovementInput{
					OrganizationID: orgID,
					OutletID:       input.ToOutletID,
					ProductID:      line.ProductID,
					Type:           MovementTransferIn,
					Quantity:       line.Quantity,
					UnitCost:       decimal.NewNullDecimal(out.UnitCost),
					ReferenceType:  RefTransfer,
					ReferenceID:    result.Reference,
					Note:           note,
					CreatedBy:      input.ActorID,
				})
				if err != nil {
					return err
				}
				result.Out = append(result.Out, out)
				result.In = append(result.In, in)
			}
			return nil
		})
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.invalidate(ctx, orgID)
	s.record(ctx, orgID, input.ActorID, "inventory.transfer", "stock_transfer", result.Reference, map[string]any{
		"from_outlet_id": input.FromOutletID,
		"to_outlet_id":   input.ToOutletID,
		"lines":          len(lines),
	})
	return result, nil
}

// Opname reconciles counted quantities with the books.
func (s *Service) Opname(ctx context.Context, orgID int64, input OpnameInput) (OpnameResult, error) {
	if input.OutletID == 0 {
		return OpnameResult{}, ErrScopeRequired
	}
	if len(input.Lines) == 0 {
		return OpnameResult{}, ErrNoLines
	}
	lines := append([]OpnameLine(nil), input.Lines...)
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if line.ProductID == 0 {
			return OpnameResult{}, ErrScopeRequired
		}
		if line.CountedQuantity.IsNegative() {
			return OpnameResult{}, ErrInvalidQuantity
		}
		if _, dup := seen[line.ProductID]; dup {
			return OpnameResult{}, ErrDuplicateProduct
		}
		seen[line.ProductID] = struct{}{}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	result := OpnameResult{Reference: uuid.NewString()}
	note := strings.TrimSpace(input.Note)
	key := shared.IdempotencyKey(orgID, "inventory.opname", input.IdempotencyKey)
	err := shared.RunIdempotent(ctx, s.idempotency, key, "inventory", func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			result.Movements, result.Unchanged = nil, 0
			if err := requireActiveOutlet(ctx, tx, orgID, input.OutletID); err != nil {
				return err
			}
			for _, line := range lines {
				if _, err := tx.GetProduct(ctx, orgID, line.ProductID); err != nil {
					return err
				}
				current, err := lockOrZero(ctx, tx, orgID, input.OutletID, line.ProductID)
				if err != nil {
					return err
				}
				diff := line.CountedQuantity.Sub(current.Quantity)
				if diff.IsZero() {
					result.Unchanged++
					continue
				}
				m, err := Apply(ctx, tx, MovementInput{
					OrganizationID: orgID,
					OutletID:       input.OutletID,
					ProductID:      line.ProductID,
					Type:           MovementStockOpname,
					Quantity:       diff,
					ReferenceType:  RefOpname,
					ReferenceID:    result.Reference,
					Note:           note,
					CreatedBy:      input.ActorID,
					AllowNegative:  true,
				})
				if err != nil {
					return err
				}
				result.Movements = append(result.Movements, m)
			}
			return nil
		})
	})
	if err != nil {
		return OpnameResult{}, err
	}
	if result.Movements == nil {
		result.Movements = []Movement{}
	}
	s.invalidate(ctx, orgID)
	s.record(ctx, orgID, input.ActorID, "inventory.opname", "stock_opname", result.Reference, map[string]any{
		"outlet_id": input.OutletID,
		"changed":   len(result.Movements),
		"unchanged": result.Unchanged,
	})
	return result, nil
}

func (s *Service) invalidate(ctx context.Context, orgID int64) {
	if s.reports != nil {
		_ = s.reports.Bump(ctx, orgID)
	}
}

func (s *Service) record(ctx context.Context, orgID, actorID int64, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrganizationID: orgID,
		ActorID:        actorID,
		Action:         action,
		Entity:         entity,
		EntityID:       entityID,
		Meta:           meta,
		At:             s.now(),
	})
}

func normalizeTransferLines(lines []TransferLine) ([]TransferLine, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	out := append([]TransferLine(nil), lines...)
	seen := make(map[int64]struct{}, len(out))
	for _, line := range out {
		if line.ProductID == 0 {
			return nil, ErrScopeRequired
		}
		if !line.Quantity.IsPositive() {
			return nil, ErrInvalidQuantity
		}
		if _, dup := seen[line.ProductID]; dup {
			return nil, ErrDuplicateProduct
		}
		seen[line.ProductID] = struct{}{}
	}
	// consistent lock order across concurrent transfers
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func requireActiveOutlet(ctx context.Context, tx TxRepository, orgID, outletID int64) error {
	outlet, err := tx.GetOutlet(ctx, orgID, outletID)
	if err != nil {
		return err
	}
	if !outlet.IsActive {
		return ErrOutletInactive
	}
	return nil
}

func lockOrZero(ctx context.Context, tx StockTx, orgID, outletID, productID int64) (Stock, error) {
	stock, err := tx.LockStock(ctx, orgID, outletID, productID)
	if err == nil || isStockMissing(err) {
		return stock, nil
	}
	return Stock{}, err
}

func lockPair(ctx context.Context, tx StockTx, orgID, productID, first, second int64) error {
	if _, err := lockOrZero(ctx, tx, orgID, first, productID); err != nil {
		return err
	}
	_, err := lockOrZero(ctx, tx, orgID, second, productID)
	return err
}
