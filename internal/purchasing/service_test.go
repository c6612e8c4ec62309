package purchasing

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lumbung-pos/lumbung/internal/inventory"
	"github.com/lumbung-pos/lumbung/internal/shared"
)

type memoryRepo struct {
	orders    map[int64]PurchaseOrder
	receipts  []Receipt
	stocks    map[string]inventory.Stock
	movements []inventory.Movement
	suppliers map[int64]SupplierRef
	outlets   map[int64]inventory.OutletRef
	products  map[int64]inventory.ProductRef
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders: make(map[int64]PurchaseOrder),
		stocks: make(map[string]inventory.Stock),
		suppliers: map[int64]SupplierRef{
			1: {ID: 1, Name: "CV Sumber Makmur", IsActive: true},
			2: {ID: 2, Name: "Lama", IsActive: false},
		},
		outlets: map[int64]inventory.OutletRef{
			1: {ID: 1, Name: "Pusat", IsActive: true},
		},
		products: map[int64]inventory.ProductRef{
			1: {ID: 1, SKU: "BRS-5", Name: "Beras 5kg", IsActive: true},
			2: {ID: 2, SKU: "MNY-1", Name: "Minyak 1L", IsActive: true},
		},
	}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func copyOrder(po PurchaseOrder) PurchaseOrder {
	po.Items = append([]Item(nil), po.Items...)
	return po
}

func stockKey(outletID, productID int64) string {
	return fmt.Sprintf("%d:%d", outletID, productID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	orders := make(map[int64]PurchaseOrder, len(r.orders))
	for k, v := range r.orders {
		orders[k] = copyOrder(v)
	}
	stocks := make(map[string]inventory.Stock, len(r.stocks))
	for k, v := range r.stocks {
		stocks[k] = v
	}
	movements, receipts := len(r.movements), len(r.receipts)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.orders = orders
		r.stocks = stocks
		r.movements = r.movements[:movements]
		r.receipts = r.receipts[:receipts]
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, orgID, id int64) (PurchaseOrder, error) {
	po, ok := r.orders[id]
	if !ok || po.OrganizationID != orgID {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	return copyOrder(po), nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	var out []PurchaseOrder
	for _, po := range r.orders {
		if filter.Status != "" && po.Status != filter.Status {
			continue
		}
		out = append(out, po)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (tx *memoryTx) LockStock(ctx context.Context, orgID, outletID, productID int64) (inventory.Stock, error) {
	if s, ok := tx.repo.stocks[stockKey(outletID, productID)]; ok {
		return s, nil
	}
	return inventory.Stock{}, inventory.ErrStockNotFound
}

func (tx *memoryTx) SaveStock(ctx context.Context, stock inventory.Stock) error {
	tx.repo.stocks[stockKey(stock.OutletID, stock.ProductID)] = stock
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m inventory.Movement) (inventory.Movement, error) {
	m.ID = tx.repo.id()
	m.CreatedAt = time.Now()
	tx.repo.movements = append(tx.repo.movements, m)
	return m, nil
}

func (tx *memoryTx) GetOutlet(ctx context.Context, orgID, outletID int64) (inventory.OutletRef, error) {
	if o, ok := tx.repo.outlets[outletID]; ok {
		return o, nil
	}
	return inventory.OutletRef{}, inventory.ErrOutletNotFound
}

func (tx *memoryTx) GetProduct(ctx context.Context, orgID, productID int64) (inventory.ProductRef, error) {
	if p, ok := tx.repo.products[productID]; ok {
		return p, nil
	}
	return inventory.ProductRef{}, inventory.ErrProductNotFound
}

func (tx *memoryTx) GetSupplier(ctx context.Context, orgID, id int64) (SupplierRef, error) {
	if s, ok := tx.repo.suppliers[id]; ok {
		return s, nil
	}
	return SupplierRef{}, ErrSupplierNotFound
}

func (tx *memoryTx) LockOrder(ctx context.Context, orgID, id int64) (PurchaseOrder, error) {
	return tx.repo.Get(ctx, orgID, id)
}

func (tx *memoryTx) InsertOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	po.ID = tx.repo.id()
	po.CreatedAt = time.Now()
	po.UpdatedAt = po.CreatedAt
	tx.repo.orders[po.ID] = copyOrder(po)
	return po, nil
}

func (tx *memoryTx) UpdateOrderHeader(ctx context.Context, po PurchaseOrder) error {
	tx.repo.orders[po.ID] = copyOrder(po)
	return nil
}

func (tx *memoryTx) ReplaceItems(ctx context.Context, poID int64, items []Item) ([]Item, error) {
	po := tx.repo.orders[poID]
	po.Items = nil
	for _, it := range items {
		it.ID = tx.repo.id()
		it.PurchaseOrderID = poID
		po.Items = append(po.Items, it)
	}
	tx.repo.orders[poID] = po
	return append([]Item(nil), po.Items...), nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, orgID, id int64, status Status, receivedAt *time.Time) error {
	po, ok := tx.repo.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	po.Status = status
	if receivedAt != nil {
		po.ReceivedAt = receivedAt
	}
	tx.repo.orders[id] = po
	return nil
}

func (tx *memoryTx) UpdateItemReceived(ctx context.Context, itemID int64, received decimal.Decimal) error {
	for id, po := range tx.repo.orders {
		for i := range po.Items {
			if po.Items[i].ID == itemID {
				po.Items[i].QuantityReceived = received
				tx.repo.orders[id] = po
				return nil
			}
		}
	}
	return ErrItemNotInOrder
}

func (tx *memoryTx) CountReceipts(ctx context.Context, poID int64) (int, error) {
	n := 0
	for _, rc := range tx.repo.receipts {
		if rc.PurchaseOrderID == poID {
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) InsertReceipt(ctx context.Context, rc Receipt) (Receipt, error) {
	rc.ID = tx.repo.id()
	tx.repo.receipts = append(tx.repo.receipts, rc)
	return rc, nil
}

func (tx *memoryTx) DeleteOrder(ctx context.Context, orgID, id int64) error {
	delete(tx.repo.orders, id)
	return nil
}

type memoryAudit struct {
	actions []string
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

type memoryIdempotency struct {
	keys map[string]struct{}
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = struct{}{}
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

type countingInvalidator struct {
	bumps int
}

func (c *countingInvalidator) Bump(ctx context.Context, orgID int64) error {
	c.bumps++
	return nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func draft() DraftInput {
	return DraftInput{
		OutletID:   1,
		SupplierID: 1,
		Discount:   dec("5000"),
		Tax:        dec("1100"),
		Items: []ItemInput{
			{ProductID: 2, Quantity: dec("12"), UnitCost: dec("15000")},
			{ProductID: 1, Quantity: dec("10"), UnitCost: dec("60000")},
		},
		ActorID: 7,
	}
}

func newTestService() (*Service, *memoryRepo, *memoryAudit, *countingInvalidator) {
	repo := newMemoryRepo()
	audit := &memoryAudit{}
	reports := &countingInvalidator{}
	svc := NewService(repo, audit, &memoryIdempotency{keys: map[string]struct{}{}}, reports)
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC) }
	return svc, repo, audit, reports
}

func orderedPO(t *testing.T, svc *Service) PurchaseOrder {
	t.Helper()
	po, err := svc.Create(context.Background(), 1, draft())
	require.NoError(t, err)
	po, err = svc.ChangeStatus(context.Background(), 1, po.ID, StatusOrdered, 7)
	require.NoError(t, err)
	return po
}

func itemFor(po PurchaseOrder, productID int64) Item {
	for _, it := range po.Items {
		if it.ProductID == productID {
			return it
		}
	}
	return Item{}
}

func TestCreateComputesTotals(t *testing.T) {
	svc, _, audit, _ := newTestService()
	po, err := svc.Create(context.Background(), 1, draft())
	require.NoError(t, err)

	require.Equal(t, StatusDraft, po.Status)
	require.Regexp(t, `^PO-20240305-[0-9A-F]{6}$`, po.Number)
	require.True(t, po.Subtotal.Equal(dec("780000")), po.Subtotal.String())
	require.True(t, po.Total.Equal(dec("776100")), po.Total.String())
	require.Len(t, po.Items, 2)
	require.Equal(t, int64(1), po.Items[0].ProductID, "items sorted by product")
	require.Equal(t, "Beras 5kg", po.Items[0].ProductName)
	require.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), po.OrderDate)
	require.Equal(t, []string{"purchase_order.create"}, audit.actions)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	cases := map[string]struct {
		mutate func(*DraftInput)
		want   error
	}{
		"no items":          {func(in *DraftInput) { in.Items = nil }, ErrNoItems},
		"duplicate product": {func(in *DraftInput) { in.Items[1].ProductID = 2 }, ErrDuplicateItem},
		"zero quantity":     {func(in *DraftInput) { in.Items[0].Quantity = decimal.Zero }, ErrInvalidQuantity},
		"negative cost":     {func(in *DraftInput) { in.Items[0].UnitCost = dec("-1") }, ErrInvalidCost},
		"cost too fine":     {func(in *DraftInput) { in.Items[0].UnitCost = dec("1.2345") }, ErrCostPrecision},
		"quantity too fine": {func(in *DraftInput) { in.Items[0].Quantity = dec("0.0005") }, ErrQuantityPrecision},
		"discount too big":  {func(in *DraftInput) { in.Discount = dec("1000000") }, ErrInvalidDiscount},
		"negative tax":      {func(in *DraftInput) { in.Tax = dec("-1") }, ErrInvalidTax},
		"inactive supplier": {func(in *DraftInput) { in.SupplierID = 2 }, ErrSupplierInactive},
		"unknown supplier":  {func(in *DraftInput) { in.SupplierID = 9 }, ErrSupplierNotFound},
		"unknown product":   {func(in *DraftInput) { in.Items[0].ProductID = 99 }, inventory.ErrProductNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := draft()
			in.Items = append([]ItemInput(nil), in.Items...)
			tc.mutate(&in)
			_, err := svc.Create(ctx, 1, in)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUpdateOnlyDraft(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	po, err := svc.Create(ctx, 1, draft())
	require.NoError(t, err)

	in := draft()
	in.Items = []ItemInput{{ProductID: 1, Quantity: dec("3"), UnitCost: dec("61000")}}
	in.Discount = decimal.Zero
	in.Tax = decimal.Zero
	po, err = svc.Update(ctx, 1, po.ID, in)
	require.NoError(t, err)
	require.Len(t, po.Items, 1)
	require.True(t, po.Total.Equal(dec("183000")))

	_, err = svc.ChangeStatus(ctx, 1, po.ID, StatusOrdered, 7)
	require.NoError(t, err)
	_, err = svc.Update(ctx, 1, po.ID, in)
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestReceiveGoodsPartialThenComplete(t *testing.T) {
	svc, repo, _, reports := newTestService()
	ctx := context.Background()
	po := orderedPO(t, svc)
	rice := itemFor(po, 1)
	oil := itemFor(po, 2)

	res, err := svc.ReceiveGoods(ctx, 1, po.ID, ReceiveInput{
		Items:   []ReceiveLine{{ItemID: rice.ID, Quantity: dec("4")}},
		ActorID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyReceived, res.Order.Status)
	require.Len(t, res.Movements, 1)
	m := res.Movements[0]
	require.Equal(t, inventory.MovementPurchaseReceipt, m.Type)
	require.True(t, m.StockBefore.IsZero())
	require.True(t, m.StockAfter.Equal(dec("4")))
	require.True(t, m.UnitCost.Equal(dec("60000")))
	require.Equal(t, inventory.RefPurchaseOrder, m.ReferenceType)
	require.Equal(t, res.Receipt.ReferenceID, m.ReferenceID)
	require.Equal(t, po.Number, m.Note)
	require.Nil(t, res.Order.ReceivedAt)

	res, err = svc.ReceiveGoods(ctx, 1, po.ID, ReceiveInput{
		Items: []ReceiveLine{
			{ItemID: oil.ID, Quantity: dec("12"), UnitCost: decimal.NewNullDecimal(dec("16000"))},
			{ItemID: rice.ID, Quantity: dec("6")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Order.Status)
	require.NotNil(t, res.Order.ReceivedAt)
	require.NotEqual(t, repo.receipts[0].ReferenceID, repo.receipts[1].ReferenceID)

	require.True(t, repo.stocks[stockKey(1, 1)].Quantity.Equal(dec("10")))
	require.True(t, repo.stocks[stockKey(1, 2)].AvgCost.Equal(dec("16000")))
	require.Equal(t, 2, reports.bumps)

	_, err = svc.ReceiveGoods(ctx, 1, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: rice.ID, Quantity: dec("1")}}})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReceiveGoodsRejectsOverReceiptAtomically(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	po := orderedPO(t, svc)

	_, err := svc.ReceiveGoods(ctx, 1, po.ID, ReceiveInput{Items: []ReceiveLine{
		{ItemID: itemFor(po, 1).ID, Quantity: dec("2")},
		{ItemID: itemFor(po, 2).ID, Quantity: dec("13")},
	}})
	require.ErrorIs(t, err, ErrOverReceipt)
	require.Empty(t, repo.movements)
	require.Empty(t, repo.receipts)
	require.Empty(t, repo.stocks)

	stored, err := svc.Get(ctx, 1, po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOrdered, stored.Status)
	require.True(t, itemFor(stored, 1).QuantityReceived.IsZero())
}

func TestReceiveGoodsValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	po, err := svc.Create(ctx, 1, draft())
	require.NoError(t, err)
	line := ReceiveLine{ItemID: po.Items[0].ID, Quantity: dec("1")}

	_, err = svc.ReceiveGoods(ctx, 1, po.ID, ReceiveInput{Items: []ReceiveLine{line}})
	require.ErrorIs(t, err, ErrInvalidTransition, "draft orders cannot be received")

	_, err = svc.ChangeStatus(ctx, 1, po.ID, StatusOrdered, 7)
	require.NoError(t, err)

	_, err = svc.ReceiveGoods(ctx, 1, po.ID, ReceiveInput{})
	require.ErrorIs(t, err, ErrNoItems)
	_, err = svc.ReceiveGoods(ctx, 1, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: 999, Quantity: dec("1")}}})
	require.ErrorIs(t, err, ErrItemNotInOrder)
	_, err = svc.ReceiveGoods(ctx, 1, po.ID, ReceiveInput{Items: []ReceiveLine{line, line}})
	require.ErrorIs(t, err, ErrDuplicateItem)
	_, err = svc.ReceiveGoods(ctx, 1, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: line.ItemID, Quantity: dec("-1")}}})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.ReceiveGoods(ctx, 1, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: line.ItemID, Quantity: dec("0.0005")}}})
	require.ErrorIs(t, err, ErrQuantityPrecision)
	_, err = svc.ReceiveGoods(ctx, 1, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: line.ItemID, Quantity: dec("1"), UnitCost: decimal.NewNullDecimal(dec("1.2345"))}}})
	require.ErrorIs(t, err, ErrCostPrecision)
	_, err = svc.ReceiveGoods(ctx, 1, 404, ReceiveInput{Items: []ReceiveLine{line}})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReceiveGoodsIdempotent(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	po := orderedPO(t, svc)
	input := ReceiveInput{Items: []ReceiveLine{{ItemID: itemFor(po, 1).ID, Quantity: dec("1")}}, IdempotencyKey: "rcv-1"}

	_, err := svc.ReceiveGoods(ctx, 1, po.ID, input)
	require.NoError(t, err)
	_, err = svc.ReceiveGoods(ctx, 1, po.ID, input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.movements, 1)
}

func TestCancelAndDelete(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	po := orderedPO(t, svc)

	_, err := svc.ReceiveGoods(ctx, 1, po.ID, ReceiveInput{Items: []ReceiveLine{{ItemID: itemFor(po, 1).ID, Quantity: dec("1")}}})
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, 1, po.ID, StatusCancelled, 7)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorIs(t, svc.Delete(ctx, 1, po.ID, 7), ErrNotDeletable)

	other := orderedPO(t, svc)
	cancelled, err := svc.ChangeStatus(ctx, 1, other.ID, StatusCancelled, 7)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.NoError(t, svc.Delete(ctx, 1, other.ID, 7))
	_, err = svc.Get(ctx, 1, other.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.List(context.Background(), ListFilter{OrganizationID: 1, Status: "shipped"})
	require.ErrorIs(t, err, ErrInvalidStatus)

	orderedPO(t, svc)
	page, err := svc.List(context.Background(), ListFilter{OrganizationID: 1, Status: StatusOrdered})
	require.NoError(t, err)
	require.Equal(t, 1, page.Pagination.Total)
}
