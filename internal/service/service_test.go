package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/furniture-store/internal/events"
	"github.com/mmeshcher/furniture-store/internal/model"
	"github.com/mmeshcher/furniture-store/internal/repository"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, evt events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []events.OrderEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var res []events.OrderEventType
	for _, e := range p.events {
		res = append(res, e.Type)
	}
	return res
}

type fixture struct {
	repo      *repository.MemoryRepository
	publisher *recordingPublisher
	orders    *OrderService
	coupons   *CouponService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := repository.NewMemoryRepository()
	repo.AddProduct(model.Product{ID: 1, Name: "Oak Dining Table", Price: dec("100.00"), Stock: 10})
	repo.AddProduct(model.Product{ID: 2, Name: "Velvet Chair", Price: dec("19.99"), Stock: 2})

	ctx := context.Background()
	one := 1
	for _, c := range []*model.Coupon{
		{Code: "SAVE10", DiscountType: model.DiscountTypePercentage, DiscountValue: dec("10"),
			MinimumOrderAmount: dec("50.00")},
		{Code: "BIG500", DiscountType: model.DiscountTypeFixedAmount, DiscountValue: dec("500.00")},
		{Code: "USEDUP", DiscountType: model.DiscountTypeFixedAmount, DiscountValue: dec("5.00"),
			UsageLimit: &one, UsedCount: 1},
		{Code: "ONCE", DiscountType: model.DiscountTypeFixedAmount, DiscountValue: dec("5.00"),
			UsageLimit: &one},
	} {
		c.Active = true
		c.ValidFrom = testNow.Add(-24 * time.Hour)
		c.ValidUntil = testNow.Add(30 * 24 * time.Hour)
		require.NoError(t, repo.CreateCoupon(ctx, c))
	}

	publisher := &recordingPublisher{}
	clock := func() time.Time { return testNow }

	orders, err := NewOrderService(OrderServiceDeps{
		Orders:     repo,
		Coupons:    repo,
		Inventory:  repo,
		UnitOfWork: repo,
		Numbers:    repo,
		Events:     publisher,
		Logger:     zap.NewNop(),
		Clock:      clock,
	})
	require.NoError(t, err)

	return &fixture{
		repo:      repo,
		publisher: publisher,
		orders:    orders,
		coupons:   NewCouponService(repo, zap.NewNop(), clock),
	}
}

func (f *fixture) stock(t *testing.T, productID int64) int {
	t.Helper()
	p, err := f.repo.Product(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) usedCount(t *testing.T, code string) int {
	t.Helper()
	c, err := f.repo.GetCouponByCode(context.Background(), code)
	require.NoError(t, err)
	return c.UsedCount
}

func orderRequest(coupon string, items ...OrderItemRequest) CreateOrderRequest {
	return CreateOrderRequest{
		Email:        "guest@example.com",
		FirstName:    "Anna",
		LastName:     "Smith",
		Phone:        "+14155552671",
		Items:        items,
		TaxAmount:    dec("10.00"),
		ShippingCost: dec("5.00"),
		CouponCode:   coupon,
		ShippingAddress: &model.Address{
			Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701",
		},
	}
}

func assertTotals(t *testing.T, o *model.Order) {
	t.Helper()
	want := o.Subtotal.Add(o.TaxAmount).Add(o.ShippingCost).Sub(o.DiscountAmount)
	assert.True(t, o.TotalAmount.Equal(want), "total %s != %s", o.TotalAmount, want)
}

func TestNewOrderService_RequiresDependencies(t *testing.T) {
	_, err := NewOrderService(OrderServiceDeps{})
	assert.Error(t, err)
}

func TestCreateOrder_WithPercentageCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := WithActor(context.Background(), "web-checkout")

	order, err := f.orders.CreateOrder(ctx, orderRequest("save10", OrderItemRequest{ProductID: 1, Quantity: 2}))
	require.NoError(t, err)

	assert.NotZero(t, order.ID)
	assert.Equal(t, "ORD-2024-00000001", order.OrderNumber)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.True(t, order.Subtotal.Equal(dec("200.00")))
	assert.True(t, order.DiscountAmount.Equal(dec("20.00")))
	assert.True(t, order.TotalAmount.Equal(dec("195.00")))
	assert.Equal(t, "SAVE10", order.CouponCode)
	assert.Equal(t, testNow.Add(7*24*time.Hour), order.EstimatedDeliveryDate)
	require.Len(t, order.Items, 1)
	assert.True(t, order.Items[0].UnitPrice.Equal(dec("100.00")))
	assertTotals(t, order)

	assert.Equal(t, 8, f.stock(t, 1))
	assert.Equal(t, 1, f.usedCount(t, "SAVE10"))

	history, err := f.orders.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].PreviousStatus)
	assert.Equal(t, model.OrderStatusPending, history[0].NewStatus)
	assert.Equal(t, "Order created", history[0].Notes)
	assert.Equal(t, "web-checkout", history[0].ChangedBy)

	assert.Equal(t, []events.OrderEventType{events.OrderCreated}, f.publisher.types())
	stored, err := f.orders.GetByOrderNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(dec("195.00")))
}

func TestCreateOrder_FixedCouponClampedToSubtotal(t *testing.T) {
	f := newFixture(t)

	order, err := f.orders.CreateOrder(context.Background(), orderRequest("BIG500", OrderItemRequest{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	assert.True(t, order.DiscountAmount.Equal(dec("100.00")))
	assert.True(t, order.TotalAmount.Equal(dec("15.00")))
	assertTotals(t, order)
}

func TestCreateOrder_InsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.CreateOrder(context.Background(), orderRequest("SAVE10",
		OrderItemRequest{ProductID: 1, Quantity: 2},
		OrderItemRequest{ProductID: 2, Quantity: 3},
	))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	var itemErr *ItemError
	require.True(t, errors.As(err, &itemErr))
	assert.Equal(t, 1, itemErr.Index)
	assert.Equal(t, int64(2), itemErr.ProductID)

	assert.Equal(t, 10, f.stock(t, 1))
	assert.Equal(t, 2, f.stock(t, 2))
	assert.Zero(t, f.usedCount(t, "SAVE10"))

	all, err := f.orders.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.publisher.types())
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.CreateOrder(context.Background(), orderRequest("", OrderItemRequest{ProductID: 404, Quantity: 1}))
	assert.ErrorIs(t, err, model.ErrNotFound)

	var itemErr *ItemError
	require.True(t, errors.As(err, &itemErr))
	assert.Equal(t, 0, itemErr.Index)
}

func TestCreateOrder_CouponRejections(t *testing.T) {
	tests := []struct {
		name     string
		coupon   string
		quantity int
		notFound bool
	}{
		{name: "usage exhausted", coupon: "USEDUP", quantity: 1},
		{name: "below minimum", coupon: "SAVE10", quantity: 0},
		{name: "unknown code", coupon: "NOPE", quantity: 1, notFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			items := []OrderItemRequest{{ProductID: 2, Quantity: 1}}
			if tt.quantity > 0 {
				items = []OrderItemRequest{{ProductID: 1, Quantity: tt.quantity}}
			}

			_, err := f.orders.CreateOrder(context.Background(), orderRequest(tt.coupon, items...))
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidCoupon)
			if tt.notFound {
				assert.ErrorIs(t, err, model.ErrNotFound)
			}

			assert.Equal(t, 10, f.stock(t, 1))
			assert.Equal(t, 2, f.stock(t, 2))
		})
	}
}

func TestCreateOrder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateOrderRequest)
	}{
		{name: "bad email", mutate: func(r *CreateOrderRequest) { r.Email = "not-an-email" }},
		{name: "missing first name", mutate: func(r *CreateOrderRequest) { r.FirstName = " " }},
		{name: "bad phone", mutate: func(r *CreateOrderRequest) { r.Phone = "call me" }},
		{name: "no items", mutate: func(r *CreateOrderRequest) { r.Items = nil }},
		{name: "zero quantity", mutate: func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 }},
		{name: "negative tax", mutate: func(r *CreateOrderRequest) { r.TaxAmount = dec("-1") }},
		{name: "three decimals", mutate: func(r *CreateOrderRequest) { r.ShippingCost = dec("1.005") }},
		{name: "bad coupon code", mutate: func(r *CreateOrderRequest) { r.CouponCode = "SAVE 10" }},
		{name: "incomplete address", mutate: func(r *CreateOrderRequest) { r.ShippingAddress.City = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := orderRequest("", OrderItemRequest{ProductID: 1, Quantity: 1})
			tt.mutate(&req)

			_, err := f.orders.CreateOrder(context.Background(), req)
			assert.ErrorIs(t, err, model.ErrInvalidArgument)
			assert.Equal(t, 10, f.stock(t, 1))
		})
	}
}

type sequenceNumbers struct {
	numbers []string
	calls   int
}

func (s *sequenceNumbers) NextOrderNumber(context.Context, time.Time) (string, error) {
	n := s.numbers[min(s.calls, len(s.numbers)-1)]
	s.calls++
	return n, nil
}

func TestCreateOrder_RegeneratesDuplicateOrderNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orders.CreateOrder(ctx, orderRequest("", OrderItemRequest{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	numbers := &sequenceNumbers{numbers: []string{"ORD-2024-00000001", "ORD-2024-00000002"}}
	f.orders.numbers = numbers

	order, err := f.orders.CreateOrder(ctx, orderRequest("", OrderItemRequest{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, "ORD-2024-00000002", order.OrderNumber)
	assert.Equal(t, 2, numbers.calls)
	assert.Equal(t, 8, f.stock(t, 1))
}

func TestCancelOrder_ReleasesStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, orderRequest("SAVE10",
		OrderItemRequest{ProductID: 1, Quantity: 3},
		OrderItemRequest{ProductID: 2, Quantity: 2},
	))
	require.NoError(t, err)
	assert.Equal(t, 7, f.stock(t, 1))
	assert.Equal(t, 0, f.stock(t, 2))

	cancelled, err := f.orders.CancelOrder(WithActor(ctx, "support"), order.ID, "Customer changed mind")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.stock(t, 1))
	assert.Equal(t, 2, f.stock(t, 2))
	assert.Equal(t, 1, f.usedCount(t, "SAVE10"), "usage is not reversed on cancel")

	_, err = f.orders.CancelOrder(ctx, order.ID, "again")
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition)
	assert.Equal(t, 10, f.stock(t, 1))
	assert.Equal(t, 2, f.stock(t, 2))

	history, err := f.orders.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.OrderStatusCancelled, history[0].NewStatus)
	require.NotNil(t, history[0].PreviousStatus)
	assert.Equal(t, model.OrderStatusPending, *history[0].PreviousStatus)
	assert.Equal(t, "Customer changed mind", history[0].Notes)
	assert.Equal(t, "support", history[0].ChangedBy)

	assert.Equal(t, []events.OrderEventType{events.OrderCreated, events.OrderStatusChanged}, f.publisher.types())
}

func TestCancelOrder_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.CancelOrder(context.Background(), 42, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateOrderStatus_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, orderRequest("", OrderItemRequest{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, "SHIPPED", "")
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, "PENDING", "")
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition, "self transition")

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, "LOST", "")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	for _, status := range []string{"confirmed", "PROCESSING", "SHIPPED", "DELIVERED"} {
		updated, err := f.orders.UpdateOrderStatus(ctx, order.ID, status, "step "+status)
		require.NoError(t, err, status)
		want, err := model.ParseOrderStatus(status)
		require.NoError(t, err)
		assert.Equal(t, want, updated.Status)
	}

	stored, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, stored.Status)

	_, err = f.orders.CancelOrder(ctx, order.ID, "too late")
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition)
	assert.Equal(t, 9, f.stock(t, 1))

	history, err := f.orders.History(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 5)
	assert.Equal(t, model.OrderStatusDelivered, history[0].NewStatus)
	assert.Equal(t, model.SystemActor, history[0].ChangedBy)
}

func TestUpdateOrderStatus_CancelledReleasesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, orderRequest("", OrderItemRequest{ProductID: 1, Quantity: 4}))
	require.NoError(t, err)
	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, "CONFIRMED", "")
	require.NoError(t, err)

	cancelled, err := f.orders.UpdateOrderStatus(ctx, order.ID, "cancelled", "out of stock at warehouse")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.stock(t, 1))

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, "CANCELLED", "")
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition)
	assert.Equal(t, 10, f.stock(t, 1))
}

func TestApplyCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, orderRequest("", OrderItemRequest{ProductID: 1, Quantity: 2}))
	require.NoError(t, err)

	updated, err := f.orders.ApplyCoupon(ctx, order.ID, " save10 ")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", updated.CouponCode)
	assert.True(t, updated.TotalAmount.Equal(dec("195.00")))
	assert.Equal(t, 1, f.usedCount(t, "SAVE10"))

	_, err = f.orders.ApplyCoupon(ctx, order.ID, "ONCE")
	assert.ErrorIs(t, err, model.ErrInvalidCoupon)
	assert.Zero(t, f.usedCount(t, "ONCE"))

	_, err = f.orders.ApplyCoupon(ctx, order.ID, "")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	assert.Equal(t, []events.OrderEventType{events.OrderCreated, events.OrderCouponApplied}, f.publisher.types())
}

func TestApplyCoupon_RejectedForShippedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, orderRequest("", OrderItemRequest{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	for _, s := range []string{"CONFIRMED", "PROCESSING", "SHIPPED"} {
		_, err := f.orders.UpdateOrderStatus(ctx, order.ID, s, "")
		require.NoError(t, err)
	}

	_, err = f.orders.ApplyCoupon(ctx, order.ID, "SAVE10")
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition)
	assert.Zero(t, f.usedCount(t, "SAVE10"))

	_, err = f.orders.RemoveCoupon(ctx, order.ID)
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition)
}

func TestRemoveCoupon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, orderRequest("SAVE10", OrderItemRequest{ProductID: 1, Quantity: 2}))
	require.NoError(t, err)

	updated, err := f.orders.RemoveCoupon(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, updated.HasCoupon())
	assert.Nil(t, updated.CouponID)
	assert.True(t, updated.DiscountAmount.IsZero())
	assert.True(t, updated.TotalAmount.Equal(dec("215.00")))
	assert.Equal(t, 1, f.usedCount(t, "SAVE10"), "usage is not reversed on removal")

	again, err := f.orders.RemoveCoupon(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, again.TotalAmount.Equal(dec("215.00")))

	assert.Equal(t, []events.OrderEventType{events.OrderCreated, events.OrderCouponRemoved}, f.publisher.types())
	f.publisher.mu.Lock()
	assert.Equal(t, "SAVE10", f.publisher.events[1].CouponCode)
	f.publisher.mu.Unlock()
}

func TestReadAccessors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.orders.CreateOrder(ctx, orderRequest("", OrderItemRequest{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	second, err := f.orders.CreateOrder(ctx, orderRequest("", OrderItemRequest{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	_, err = f.orders.CancelOrder(ctx, first.ID, "")
	require.NoError(t, err)

	byEmail, err := f.orders.ListByEmail(ctx, "guest@example.com")
	require.NoError(t, err)
	require.Len(t, byEmail, 2)
	assert.Equal(t, second.ID, byEmail[0].ID)

	active, err := f.orders.ListActiveByEmail(ctx, "guest@example.com")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	_, err = f.orders.GetByOrderNumber(ctx, "ORD-1999-00000001")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.orders.History(ctx, 999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	order, err := f.orders.CreateOrder(context.Background(), orderRequest("", OrderItemRequest{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
}

// remoteLedger имитирует удалённый каталог, который не участвует в транзакции хранилища.
type remoteLedger struct {
	products    map[int64]model.ProductSnapshot
	failOn      map[int64]error
	failRelease map[int64]error
	reserved    []int64
	released    []int64
}

func (l *remoteLedger) Reserve(_ context.Context, productID int64, _ int) (model.ProductSnapshot, error) {
	if err := l.failOn[productID]; err != nil {
		return model.ProductSnapshot{}, err
	}
	l.reserved = append(l.reserved, productID)
	return l.products[productID], nil
}

func (l *remoteLedger) Release(_ context.Context, productID int64, _ int) error {
	if err := l.failRelease[productID]; err != nil {
		return err
	}
	l.released = append(l.released, productID)
	return nil
}

func newRemoteFixture(t *testing.T, ledger *remoteLedger) *OrderService {
	t.Helper()
	repo := repository.NewMemoryRepository()
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:            repo,
		Coupons:           repo,
		Inventory:         ledger,
		UnitOfWork:        repo,
		Numbers:           repo,
		Clock:             func() time.Time { return testNow },
		ExternalInventory: true,
	})
	require.NoError(t, err)
	return svc
}

func TestCreateOrder_CompensatesRemoteReservations(t *testing.T) {
	ledger := &remoteLedger{
		products: map[int64]model.ProductSnapshot{
			1: {ID: 1, Name: "Sofa", Price: dec("10.00")},
			2: {ID: 2, Name: "Lamp", Price: dec("5.00")},
		},
		failOn: map[int64]error{3: &model.StockError{ProductID: 3, Requested: 1}},
	}
	svc := newRemoteFixture(t, ledger)

	_, err := svc.CreateOrder(context.Background(), orderRequest("",
		OrderItemRequest{ProductID: 1, Quantity: 2},
		OrderItemRequest{ProductID: 2, Quantity: 1},
		OrderItemRequest{ProductID: 3, Quantity: 1},
	))
	require.ErrorIs(t, err, model.ErrInsufficientStock)

	assert.Equal(t, []int64{1, 2}, ledger.reserved)
	assert.Equal(t, []int64{2, 1}, ledger.released)
}

func TestCancelOrder_ReleasesRemoteStockOnce(t *testing.T) {
	ledger := &remoteLedger{
		products: map[int64]model.ProductSnapshot{1: {ID: 1, Name: "Sofa", Price: dec("10.00")}},
	}
	svc := newRemoteFixture(t, ledger)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, orderRequest("", OrderItemRequest{ProductID: 1, Quantity: 2}))
	require.NoError(t, err)
	assert.Empty(t, ledger.released)

	_, err = svc.CancelOrder(ctx, order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ledger.released)

	_, err = svc.CancelOrder(ctx, order.ID, "")
	assert.ErrorIs(t, err, model.ErrIllegalStateTransition)
	assert.Equal(t, []int64{1}, ledger.released)
}

func TestCancelOrder_FailedRemoteReleaseKeepsOrderCancellable(t *testing.T) {
	ledger := &remoteLedger{
		products: map[int64]model.ProductSnapshot{
			1: {ID: 1, Name: "Sofa", Price: dec("10.00")},
			2: {ID: 2, Name: "Lamp", Price: dec("5.00")},
		},
	}
	svc := newRemoteFixture(t, ledger)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, orderRequest("",
		OrderItemRequest{ProductID: 1, Quantity: 2},
		OrderItemRequest{ProductID: 2, Quantity: 3},
	))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, ledger.reserved)

	ledger.failRelease = map[int64]error{2: errors.New("catalog unavailable")}

	_, err = svc.CancelOrder(ctx, order.ID, "customer request")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release product 2")
	assert.Equal(t, []int64{1}, ledger.released)
	assert.Equal(t, []int64{1, 2, 1}, ledger.reserved, "released product must be reserved again")

	got, err := svc.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, got.Status)
	history, err := svc.History(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	ledger.failRelease = nil

	cancelled, err := svc.CancelOrder(ctx, order.ID, "customer request")
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, []int64{1, 1, 2}, ledger.released)
}
