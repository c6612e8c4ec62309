package inventory

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/lumbung-pos/lumbung/internal/shared"
)

// CostPlaces is the precision kept for moving-average cost.
const CostPlaces = 4

// StockTx is the transactional surface Apply needs. Purchasing and sales
// transactions embed it so their documents and the ledger commit together.
type StockTx interface {
	LockStock(ctx context.Context, orgID, outletID, productID int64) (Stock, error)
	SaveStock(ctx context.Context, stock Stock) error
	InsertMovement(ctx context.Context, movement Movement) (Movement, error)
}

// Apply posts a single movement against the locked stock row.
func Apply(ctx context.Context, tx StockTx, input MovementInput) (Movement, error) {
	if input.OrganizationID == 0 || input.OutletID == 0 || input.ProductID == 0 {
		return Movement{}, ErrScopeRequired
	}
	if !input.Type.Valid() {
		return Movement{}, ErrInvalidMovementType
	}
	if input.Quantity.IsZero() {
		return Movement{}, ErrInvalidQuantity
	}
	if !shared.WithinPlaces(input.Quantity, shared.QuantityPlaces) {
		return Movement{}, ErrQuantityPrecision
	}
	if input.UnitCost.Valid && (input.UnitCost.Decimal.IsNegative() || !shared.WithinPlaces(input.UnitCost.Decimal, CostPlaces)) {
		return Movement{}, ErrInvalidUnitCost
	}

	stock, err := tx.LockStock(ctx, input.OrganizationID, input.OutletID, input.ProductID)
	if err != nil {
		if !isStockMissing(err) {
			return Movement{}, err
		}
		stock = Stock{OrganizationID: input.OrganizationID, OutletID: input.OutletID, ProductID: input.ProductID}
	}

	before := stock.Quantity
	after := before.Add(input.Quantity)
	if after.IsNegative() && !input.AllowNegative {
		return Movement{}, ErrNegativeStock
	}

	unitCost, avg := nextCost(before, after, stock.AvgCost, input)

	stock.OrganizationID = input.OrganizationID
	stock.OutletID = input.OutletID
	stock.ProductID = input.ProductID
	stock.Quantity = after
	stock.AvgCost = avg
	if err := tx.SaveStock(ctx, stock); err != nil {
		return Movement{}, err
	}

	return tx.InsertMovement(ctx, Movement{
		OrganizationID: input.OrganizationID,
		OutletID:       input.OutletID,
		ProductID:      input.ProductID,
		Type:           input.Type,
		Quantity:       input.Quantity,
		StockBefore:    before,
		StockAfter:     after,
		UnitCost:       unitCost,
		ReferenceType:  input.ReferenceType,
		ReferenceID:    input.ReferenceID,
		Note:           input.Note,
		CreatedBy:      input.CreatedBy,
	})
}

func isStockMissing(err error) bool {
	return errors.Is(err, ErrStockNotFound)
}

// nextCost returns the cost recorded on the movement and the new average.
func nextCost(before, after, avg decimal.Decimal, input MovementInput) (decimal.Decimal, decimal.Decimal) {
	if input.Quantity.IsPositive() {
		if !input.UnitCost.Valid {
			// restocking without a price keeps the current valuation
			if !after.IsPositive() {
				return avg, decimal.Zero
			}
			return avg, avg
		}
		cost := input.UnitCost.Decimal
		if !after.IsPositive() {
			return cost, decimal.Zero
		}
		if !before.IsPositive() {
			return cost, cost.Round(CostPlaces)
		}
		total := before.Mul(avg).Add(input.Quantity.Mul(cost))
		return cost, total.Div(after).Round(CostPlaces)
	}
	if !after.IsPositive() {
		return avg, decimal.Zero
	}
	return avg, avg
}
