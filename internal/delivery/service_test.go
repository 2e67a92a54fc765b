package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armada-dist/armada/internal/orders"
	"github.com/armada-dist/armada/internal/shared"
	"github.com/armada-dist/armada/internal/stock"
)

// fakeState is the in-memory world shared by the fake repositories. WithTx
// snapshots it and restores the snapshot when the callback fails, so tests
// observe real all-or-nothing behaviour.
type fakeState struct {
	deliveries  map[int64]*Delivery
	products    map[int64]*stock.Product
	movements   []stock.Movement
	orderStatus map[int64]orders.Status
	orderItems  map[int64][]orders.Item
	nextID      int64
}

func newFakeState() *fakeState {
	return &fakeState{
		deliveries:  map[int64]*Delivery{},
		products:    map[int64]*stock.Product{},
		orderStatus: map[int64]orders.Status{},
		orderItems:  map[int64][]orders.Item{},
		nextID:      100,
	}
}

func (s *fakeState) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeState) clone() *fakeState {
	c := newFakeState()
	c.nextID = s.nextID
	for id, d := range s.deliveries {
		cp := *d
		cp.Orders = append([]DeliveryOrder(nil), d.Orders...)
		c.deliveries[id] = &cp
	}
	for id, p := range s.products {
		cp := *p
		c.products[id] = &cp
	}
	c.movements = append([]stock.Movement(nil), s.movements...)
	for id, st := range s.orderStatus {
		c.orderStatus[id] = st
	}
	for id, items := range s.orderItems {
		c.orderItems[id] = append([]orders.Item(nil), items...)
	}
	return c
}

func (s *fakeState) restore(from *fakeState) {
	*s = *from
}

type fakeRepo struct {
	state *fakeState
	inTx  bool
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := r.state.clone()
	r.inTx = true
	err := fn(ctx, &fakeTx{state: r.state})
	r.inTx = false
	if err != nil {
		r.state.restore(snapshot)
		return err
	}
	return nil
}

func (r *fakeRepo) GetDelivery(_ context.Context, id int64) (Delivery, error) {
	d, ok := r.state.deliveries[id]
	if !ok {
		return Delivery{}, shared.ErrNotFound
	}
	cp := *d
	cp.Orders = append([]DeliveryOrder(nil), d.Orders...)
	return cp, nil
}

func (r *fakeRepo) ListDeliveries(_ context.Context, _ ListFilter) ([]Delivery, int64, error) {
	out := []Delivery{}
	for _, d := range r.state.deliveries {
		out = append(out, *d)
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) ListDrivers(context.Context) ([]Driver, error) {
	return []Driver{{ID: 1, Name: "Budi"}}, nil
}

type fakeTx struct {
	state *fakeState
}

func (t *fakeTx) InsertDelivery(_ context.Context, d Delivery) (int64, error) {
	d.ID = t.state.id()
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	t.state.deliveries[d.ID] = &d
	return d.ID, nil
}

func (t *fakeTx) InsertDeliveryOrder(_ context.Context, do DeliveryOrder) (int64, error) {
	d, ok := t.state.deliveries[do.DeliveryID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	for _, existing := range d.Orders {
		if existing.OrderID == do.OrderID {
			return 0, shared.ErrConflict
		}
	}
	do.ID = t.state.id()
	d.Orders = append(d.Orders, do)
	return do.ID, nil
}

func (t *fakeTx) GetDeliveryForUpdate(_ context.Context, id int64) (Delivery, error) {
	d, ok := t.state.deliveries[id]
	if !ok {
		return Delivery{}, shared.ErrNotFound
	}
	return *d, nil
}

func (t *fakeTx) StartDelivery(_ context.Context, id int64) error {
	d, ok := t.state.deliveries[id]
	if !ok {
		return shared.ErrNotFound
	}
	if !d.Status.CanStart() {
		return shared.Statef("delivery %d is %s, expected %s", id, d.Status, StatusScheduled)
	}
	d.Status = StatusOnDelivery
	return nil
}

func (t *fakeTx) MarkOrdersOnDelivery(_ context.Context, deliveryID int64) error {
	d, ok := t.state.deliveries[deliveryID]
	if !ok {
		return shared.ErrNotFound
	}
	for i := range d.Orders {
		if d.Orders[i].Status == StatusScheduled {
			d.Orders[i].Status = StatusOnDelivery
		}
	}
	return nil
}

func (t *fakeTx) MarkOrderDelivered(_ context.Context, deliveryID, orderID int64, info DeliveredInfo) (DeliveryOrder, error) {
	d, ok := t.state.deliveries[deliveryID]
	if !ok {
		return DeliveryOrder{}, shared.ErrNotFound
	}
	for i := range d.Orders {
		if d.Orders[i].OrderID != orderID {
			continue
		}
		switch d.Orders[i].Status {
		case StatusDelivered:
			return DeliveryOrder{}, shared.Statef("order %d on delivery %d already delivered", orderID, deliveryID)
		case StatusScheduled:
			return DeliveryOrder{}, shared.Statef("delivery %d has not started", deliveryID)
		}
		name := info.RecipientName
		at := info.DeliveredAt
		d.Orders[i].Status = StatusDelivered
		d.Orders[i].RecipientName = &name
		d.Orders[i].DeliveredAt = &at
		if info.Notes != "" {
			notes := info.Notes
			d.Orders[i].Notes = &notes
		}
		return d.Orders[i], nil
	}
	return DeliveryOrder{}, shared.ErrNotFound
}

func (t *fakeTx) CountUndelivered(_ context.Context, deliveryID int64) (int64, error) {
	d, ok := t.state.deliveries[deliveryID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	var count int64
	for _, do := range d.Orders {
		if do.Status != StatusDelivered {
			count++
		}
	}
	return count, nil
}

func (t *fakeTx) CompleteDelivery(_ context.Context, deliveryID int64) (bool, error) {
	d, ok := t.state.deliveries[deliveryID]
	if !ok {
		return false, shared.ErrNotFound
	}
	if d.Status != StatusOnDelivery {
		return false, nil
	}
	for _, do := range d.Orders {
		if do.Status != StatusDelivered {
			return false, nil
		}
	}
	d.Status = StatusDelivered
	return true, nil
}

func (t *fakeTx) ListOrderIDs(_ context.Context, deliveryID int64) ([]int64, error) {
	d, ok := t.state.deliveries[deliveryID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	ids := []int64{}
	for _, do := range d.Orders {
		ids = append(ids, do.OrderID)
	}
	return ids, nil
}

func (t *fakeTx) GetOrderItems(_ context.Context, orderIDs []int64) ([]orders.Item, error) {
	items := []orders.Item{}
	for _, id := range orderIDs {
		items = append(items, t.state.orderItems[id]...)
	}
	return items, nil
}

func (t *fakeTx) Stock() stock.TxRepository {
	return &fakeStockTx{state: t.state}
}

func (t *fakeTx) Orders() orders.TxRepository {
	return &fakeOrdersTx{state: t.state}
}

type fakeStockTx struct {
	state *fakeState
}

func (t *fakeStockTx) GetProductForUpdate(_ context.Context, productID int64) (stock.Product, error) {
	p, ok := t.state.products[productID]
	if !ok {
		return stock.Product{}, shared.ErrNotFound
	}
	return *p, nil
}

func (t *fakeStockTx) UpdateProductStock(_ context.Context, productID, newStock int64) error {
	p, ok := t.state.products[productID]
	if !ok {
		return shared.ErrNotFound
	}
	p.Stock = newStock
	return nil
}

func (t *fakeStockTx) HasMovement(_ context.Context, refType stock.ReferenceType, refID, productID int64) (bool, error) {
	for _, m := range t.state.movements {
		if m.ReferenceType == refType && m.ReferenceID == refID && m.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeStockTx) InsertMovement(_ context.Context, m stock.Movement) (int64, error) {
	m.ID = t.state.id()
	t.state.movements = append(t.state.movements, m)
	return m.ID, nil
}

type fakeOrdersTx struct {
	state *fakeState
}

func (t *fakeOrdersTx) SetOrderStatus(_ context.Context, orderID int64, status orders.Status) error {
	if _, ok := t.state.orderStatus[orderID]; !ok {
		return shared.ErrNotFound
	}
	t.state.orderStatus[orderID] = status
	return nil
}

func newTestService(state *fakeState) *Service {
	stockSvc := stock.NewService(nil, nil, nil, nil, stock.ServiceConfig{})
	return NewService(&fakeRepo{state: state}, stockSvc, orders.NewCoordinator(), nil, nil)
}

// fakeBalanceCache records invalidations and whether any arrived while the
// repository transaction was still open.
type fakeBalanceCache struct {
	repo        *fakeRepo
	invalidated [][]int64
	duringTx    bool
}

func (c *fakeBalanceCache) Get(context.Context, int64) (int64, bool) { return 0, false }
func (c *fakeBalanceCache) Set(context.Context, int64, int64)        {}
func (c *fakeBalanceCache) Invalidate(_ context.Context, ids ...int64) {
	c.invalidated = append(c.invalidated, ids)
	if c.repo.inTx {
		c.duringTx = true
	}
}

type fakeMetrics struct {
	deliveries []string
	movements  []string
}

func (m *fakeMetrics) ObserveDelivery(status string) {
	m.deliveries = append(m.deliveries, status)
}

func (m *fakeMetrics) ObserveMovement(movementType string) {
	m.movements = append(m.movements, movementType)
}

// seedDelivery wires a scheduled delivery carrying two orders. Order 1
// wants 5 of product 10, order 2 wants 3 of product 10 and 2 of product 20.
func seedDelivery(state *fakeState) int64 {
	state.products[10] = &stock.Product{ID: 10, Code: "PRD-10", Name: "Kopi 1kg", Stock: 50, MinStock: 5, IsActive: true}
	state.products[20] = &stock.Product{ID: 20, Code: "PRD-20", Name: "Gula 1kg", Stock: 20, MinStock: 5, IsActive: true}
	state.orderStatus[1] = orders.StatusShipped
	state.orderStatus[2] = orders.StatusShipped
	state.orderItems[1] = []orders.Item{{ID: 1, OrderID: 1, ProductID: 10, Quantity: 5}}
	state.orderItems[2] = []orders.Item{
		{ID: 2, OrderID: 2, ProductID: 10, Quantity: 3},
		{ID: 3, OrderID: 2, ProductID: 20, Quantity: 2},
	}
	state.deliveries[1] = &Delivery{
		ID:           1,
		DriverID:     1,
		DeliveryDate: time.Now().UTC(),
		Status:       StatusScheduled,
		Orders: []DeliveryOrder{
			{ID: 11, DeliveryID: 1, OrderID: 1, RouteOrder: 1, Status: StatusScheduled},
			{ID: 12, DeliveryID: 1, OrderID: 2, RouteOrder: 2, Status: StatusScheduled},
		},
	}
	return 1
}

func TestStartDelivery(t *testing.T) {
	state := newFakeState()
	deliveryID := seedDelivery(state)
	svc := newTestService(state)

	d, err := svc.Start(context.Background(), deliveryID, 7)
	require.NoError(t, err)

	assert.Equal(t, StatusOnDelivery, d.Status)
	for _, do := range d.Orders {
		assert.Equal(t, StatusOnDelivery, do.Status)
	}
	assert.Equal(t, orders.StatusOnDelivery, state.orderStatus[1])
	assert.Equal(t, orders.StatusOnDelivery, state.orderStatus[2])

	// 5 + 3 of product 10 merged into a single movement, 2 of product 20.
	assert.EqualValues(t, 42, state.products[10].Stock)
	assert.EqualValues(t, 18, state.products[20].Stock)
	require.Len(t, state.movements, 2)
	assert.EqualValues(t, -8, state.movements[0].Quantity)
	assert.Equal(t, stock.ReferenceDelivery, state.movements[0].ReferenceType)
	assert.Equal(t, deliveryID, state.movements[0].ReferenceID)
	assert.EqualValues(t, -2, state.movements[1].Quantity)
}

func TestStartDeliveryTwice(t *testing.T) {
	state := newFakeState()
	deliveryID := seedDelivery(state)
	svc := newTestService(state)

	_, err := svc.Start(context.Background(), deliveryID, 7)
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), deliveryID, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrState)

	// The retry must not deduct again.
	assert.EqualValues(t, 42, state.products[10].Stock)
	assert.Len(t, state.movements, 2)
}

func TestStartDeliveryInsufficientStockRollsBack(t *testing.T) {
	state := newFakeState()
	deliveryID := seedDelivery(state)
	state.products[20].Stock = 1
	svc := newTestService(state)

	_, err := svc.Start(context.Background(), deliveryID, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, stock.ErrInsufficientStock)

	// Nothing moved: statuses and balances are untouched.
	assert.Equal(t, StatusScheduled, state.deliveries[deliveryID].Status)
	assert.Equal(t, orders.StatusShipped, state.orderStatus[1])
	assert.EqualValues(t, 50, state.products[10].Stock)
	assert.EqualValues(t, 1, state.products[20].Stock)
	assert.Empty(t, state.movements)
}

func TestStartDeliveryNotFound(t *testing.T) {
	svc := newTestService(newFakeState())

	_, err := svc.Start(context.Background(), 999, 7)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMarkDeliveredCompletesDelivery(t *testing.T) {
	state := newFakeState()
	deliveryID := seedDelivery(state)
	svc := newTestService(state)

	_, err := svc.Start(context.Background(), deliveryID, 7)
	require.NoError(t, err)

	do, err := svc.MarkDelivered(context.Background(), MarkDeliveredInput{
		DeliveryID:    deliveryID,
		OrderID:       1,
		RecipientName: "Ibu Sari",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, do.Status)
	require.NotNil(t, do.RecipientName)
	assert.Equal(t, "Ibu Sari", *do.RecipientName)
	assert.NotNil(t, do.DeliveredAt)
	assert.Equal(t, orders.StatusDelivered, state.orderStatus[1])

	// One order still outstanding, the delivery stays on_delivery.
	assert.Equal(t, StatusOnDelivery, state.deliveries[deliveryID].Status)

	_, err = svc.MarkDelivered(context.Background(), MarkDeliveredInput{
		DeliveryID:    deliveryID,
		OrderID:       2,
		RecipientName: "Pak Joko",
		Notes:         "left at the counter",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, state.deliveries[deliveryID].Status)
	assert.Equal(t, orders.StatusDelivered, state.orderStatus[2])
}

func TestMarkDeliveredTwice(t *testing.T) {
	state := newFakeState()
	deliveryID := seedDelivery(state)
	svc := newTestService(state)

	_, err := svc.Start(context.Background(), deliveryID, 7)
	require.NoError(t, err)

	_, err = svc.MarkDelivered(context.Background(), MarkDeliveredInput{
		DeliveryID: deliveryID, OrderID: 1, RecipientName: "Ibu Sari",
	})
	require.NoError(t, err)

	_, err = svc.MarkDelivered(context.Background(), MarkDeliveredInput{
		DeliveryID: deliveryID, OrderID: 1, RecipientName: "Ibu Sari",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrState)
}

func TestMarkDeliveredBeforeStart(t *testing.T) {
	state := newFakeState()
	deliveryID := seedDelivery(state)
	svc := newTestService(state)

	_, err := svc.MarkDelivered(context.Background(), MarkDeliveredInput{
		DeliveryID: deliveryID, OrderID: 1, RecipientName: "Ibu Sari",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrState)
}

func TestMarkDeliveredRequiresRecipient(t *testing.T) {
	state := newFakeState()
	deliveryID := seedDelivery(state)
	svc := newTestService(state)

	_, err := svc.Start(context.Background(), deliveryID, 7)
	require.NoError(t, err)

	_, err = svc.MarkDelivered(context.Background(), MarkDeliveredInput{
		DeliveryID: deliveryID, OrderID: 1, RecipientName: "   ",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidation)

	// The order is untouched.
	assert.Equal(t, StatusOnDelivery, state.deliveries[deliveryID].Orders[0].Status)
}

func TestCreateDelivery(t *testing.T) {
	state := newFakeState()
	svc := newTestService(state)

	d, err := svc.Create(context.Background(), CreateDeliveryInput{
		DriverID: 1,
		Orders: []CreateDeliveryOrderInput{
			{OrderID: 5},
			{OrderID: 6},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, d.Status)
	require.Len(t, d.Orders, 2)
	assert.Equal(t, 1, d.Orders[0].RouteOrder)
	assert.Equal(t, 2, d.Orders[1].RouteOrder)
}

func TestCreateDeliveryValidation(t *testing.T) {
	svc := newTestService(newFakeState())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateDeliveryInput{DriverID: 1})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateDeliveryInput{
		DriverID: 1,
		Orders:   []CreateDeliveryOrderInput{{OrderID: 5}, {OrderID: 5}},
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateDeliveryInput{
		DriverID: 1,
		Orders:   []CreateDeliveryOrderInput{{OrderID: 5, RouteOrder: 1}, {OrderID: 6, RouteOrder: 1}},
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestStartDeliveryInvalidatesBalancesAfterCommit(t *testing.T) {
	state := newFakeState()
	deliveryID := seedDelivery(state)
	repo := &fakeRepo{state: state}
	cache := &fakeBalanceCache{repo: repo}
	stockSvc := stock.NewService(nil, nil, cache, nil, stock.ServiceConfig{})
	svc := NewService(repo, stockSvc, orders.NewCoordinator(), nil, nil)

	_, err := svc.Start(context.Background(), deliveryID, 7)
	require.NoError(t, err)

	require.Len(t, cache.invalidated, 1)
	assert.ElementsMatch(t, []int64{10, 20}, cache.invalidated[0])
	assert.False(t, cache.duringTx, "balances dropped before the deduction committed")
}

func TestStartDeliveryFailureLeavesCacheUntouched(t *testing.T) {
	state := newFakeState()
	deliveryID := seedDelivery(state)
	state.products[20].Stock = 1
	repo := &fakeRepo{state: state}
	cache := &fakeBalanceCache{repo: repo}
	stockSvc := stock.NewService(nil, nil, cache, nil, stock.ServiceConfig{})
	svc := NewService(repo, stockSvc, orders.NewCoordinator(), nil, nil)

	_, err := svc.Start(context.Background(), deliveryID, 7)
	require.Error(t, err)
	assert.Empty(t, cache.invalidated)
}

func TestDeliveryTransitionsObserved(t *testing.T) {
	state := newFakeState()
	deliveryID := seedDelivery(state)
	metrics := &fakeMetrics{}
	stockSvc := stock.NewService(nil, nil, nil, nil, stock.ServiceConfig{})
	svc := NewService(&fakeRepo{state: state}, stockSvc, orders.NewCoordinator(), nil, metrics)
	ctx := context.Background()

	_, err := svc.Start(ctx, deliveryID, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"on_delivery"}, metrics.deliveries)
	assert.Equal(t, []string{"out", "out"}, metrics.movements)

	_, err = svc.MarkDelivered(ctx, MarkDeliveredInput{DeliveryID: deliveryID, OrderID: 1, RecipientName: "Ibu Sari"})
	require.NoError(t, err)
	// The first handover leaves the delivery open, so no transition yet.
	assert.Equal(t, []string{"on_delivery"}, metrics.deliveries)

	_, err = svc.MarkDelivered(ctx, MarkDeliveredInput{DeliveryID: deliveryID, OrderID: 2, RecipientName: "Pak Joko"})
	require.NoError(t, err)
	assert.Equal(t, []string{"on_delivery", "delivered"}, metrics.deliveries)
}

func TestListDeliveriesRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newFakeState())

	_, _, err := svc.List(context.Background(), ListFilter{Status: "lost"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
