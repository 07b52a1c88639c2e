package repository

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmeshcher/furniture-store/internal/model"
)

type memoryTxKey struct{}

type memoryState struct {
	products     map[int64]model.Product
	coupons      map[int64]model.Coupon
	couponCodes  map[string]int64
	orders       map[int64]model.Order
	orderNumbers map[string]int64
	history      []model.StatusHistory

	lastProductID int64
	lastCouponID  int64
	lastOrderID   int64
	lastItemID    int64
	lastHistoryID int64
}

func newMemoryState() memoryState {
	return memoryState{
		products:     make(map[int64]model.Product),
		coupons:      make(map[int64]model.Coupon),
		couponCodes:  make(map[string]int64),
		orders:       make(map[int64]model.Order),
		orderNumbers: make(map[string]int64),
	}
}

func (s memoryState) clone() memoryState {
	c := s
	c.products = maps.Clone(s.products)
	c.coupons = maps.Clone(s.coupons)
	c.couponCodes = maps.Clone(s.couponCodes)
	c.orderNumbers = maps.Clone(s.orderNumbers)
	c.history = slices.Clone(s.history)
	c.orders = make(map[int64]model.Order, len(s.orders))
	for id, o := range s.orders {
		c.orders[id] = copyOrder(o)
	}
	return c
}

// MemoryRepository хранит данные в памяти процесса. Используется, когда адрес БД не задан,
// и в тестах сервиса. Транзакция удерживает общий мьютекс и при ошибке восстанавливает
// снимок состояния.
type MemoryRepository struct {
	mu       sync.Mutex
	state    memoryState
	orderSeq atomic.Int64
}

// NewMemoryRepository создаёт пустое хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: newMemoryState()}
}

// RunInTx выполняет fn атомарно относительно остальных операций хранилища.
func (r *MemoryRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.inTx(ctx) {
		return fn(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.state.clone()
	if err := fn(context.WithValue(ctx, memoryTxKey{}, r)); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *MemoryRepository) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(memoryTxKey{}).(*MemoryRepository)
	return owner == r
}

// lock захватывает мьютекс, если вызов не идёт внутри транзакции этого хранилища.
func (r *MemoryRepository) lock(ctx context.Context) func() {
	if r.inTx(ctx) {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

// AddProduct добавляет товар в каталог. Нулевой ID заменяется следующим свободным.
func (r *MemoryRepository) AddProduct(p model.Product) model.Product {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == 0 {
		p.ID = r.state.lastProductID + 1
	}
	r.state.lastProductID = max(r.state.lastProductID, p.ID)
	r.state.products[p.ID] = p
	return p
}

// Product возвращает товар каталога.
func (r *MemoryRepository) Product(ctx context.Context, productID int64) (model.Product, error) {
	defer r.lock(ctx)()

	p, ok := r.state.products[productID]
	if !ok {
		return model.Product{}, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}
	return p, nil
}

// Reserve списывает quantity единиц товара и возвращает снимок товара.
func (r *MemoryRepository) Reserve(ctx context.Context, productID int64, quantity int) (model.ProductSnapshot, error) {
	if quantity <= 0 {
		return model.ProductSnapshot{}, fmt.Errorf("%w: quantity must be positive", model.ErrInvalidArgument)
	}
	defer r.lock(ctx)()

	p, ok := r.state.products[productID]
	if !ok {
		return model.ProductSnapshot{}, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}
	if p.Stock < quantity {
		return model.ProductSnapshot{}, &model.StockError{ProductID: productID, Requested: quantity, Available: p.Stock}
	}

	p.Stock -= quantity
	r.state.products[productID] = p
	return p.Snapshot(), nil
}

// Release возвращает quantity единиц товара на склад.
func (r *MemoryRepository) Release(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", model.ErrInvalidArgument)
	}
	defer r.lock(ctx)()

	p, ok := r.state.products[productID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}
	p.Stock += quantity
	r.state.products[productID] = p
	return nil
}

// NextOrderNumber выдаёт следующий номер заказа. Как и последовательность БД,
// счётчик не откатывается вместе с транзакцией.
func (r *MemoryRepository) NextOrderNumber(_ context.Context, at time.Time) (string, error) {
	return model.FormatOrderNumber(at, r.orderSeq.Add(1)), nil
}

// InsertOrder сохраняет заказ и заполняет его идентификатор.
func (r *MemoryRepository) InsertOrder(ctx context.Context, o *model.Order) error {
	defer r.lock(ctx)()

	if _, exists := r.state.orderNumbers[o.OrderNumber]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, o.OrderNumber)
	}

	r.state.lastOrderID++
	o.ID = r.state.lastOrderID
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}

	r.state.orders[o.ID] = copyOrder(*o)
	r.state.orderNumbers[o.OrderNumber] = o.ID
	return nil
}

// InsertOrderItems сохраняет позиции заказа и заполняет их идентификаторы.
func (r *MemoryRepository) InsertOrderItems(ctx context.Context, orderID int64, items []model.LineItem) error {
	defer r.lock(ctx)()

	o, ok := r.state.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID)
	}

	for i := range items {
		r.state.lastItemID++
		items[i].ID = r.state.lastItemID
		items[i].OrderID = orderID
		o.Items = append(o.Items, items[i])
	}
	r.state.orders[orderID] = o
	return nil
}

// UpdateOrder сохраняет статус, суммы и купон заказа. Позиции не меняются.
func (r *MemoryRepository) UpdateOrder(ctx context.Context, o *model.Order) error {
	defer r.lock(ctx)()

	stored, ok := r.state.orders[o.ID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrOrderNotFound, o.ID)
	}

	updated := copyOrder(*o)
	updated.Items = stored.Items
	updated.OrderNumber = stored.OrderNumber
	r.state.orders[o.ID] = updated
	return nil
}

// GetOrderByID возвращает копию заказа.
func (r *MemoryRepository) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	defer r.lock(ctx)()

	o, ok := r.state.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	res := copyOrder(o)
	return &res, nil
}

// LockOrderByID совпадает с GetOrderByID: транзакция уже удерживает хранилище целиком.
func (r *MemoryRepository) LockOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	return r.GetOrderByID(ctx, id)
}

// GetOrderByNumber возвращает копию заказа по номеру.
func (r *MemoryRepository) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	defer r.lock(ctx)()

	id, ok := r.state.orderNumbers[number]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, number)
	}
	res := copyOrder(r.state.orders[id])
	return &res, nil
}

// ListOrdersByEmail возвращает заказы покупателя, новые первыми.
func (r *MemoryRepository) ListOrdersByEmail(ctx context.Context, email string, activeOnly bool) ([]model.Order, error) {
	return r.listOrders(ctx, func(o model.Order) bool {
		if o.Email != email {
			return false
		}
		return !activeOnly || o.Status != model.OrderStatusCancelled
	}), nil
}

// ListOrders возвращает все заказы, новые первыми.
func (r *MemoryRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	return r.listOrders(ctx, func(model.Order) bool { return true }), nil
}

func (r *MemoryRepository) listOrders(ctx context.Context, keep func(model.Order) bool) []model.Order {
	defer r.lock(ctx)()

	var res []model.Order
	for _, o := range r.state.orders {
		if keep(o) {
			res = append(res, copyOrder(o))
		}
	}
	slices.SortFunc(res, func(a, b model.Order) int {
		if c := b.OrderDate.Compare(a.OrderDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return res
}

// InsertStatusHistory добавляет запись в журнал статусов.
func (r *MemoryRepository) InsertStatusHistory(ctx context.Context, h *model.StatusHistory) error {
	defer r.lock(ctx)()

	if _, ok := r.state.orders[h.OrderID]; !ok {
		return fmt.Errorf("%w: id %d", ErrOrderNotFound, h.OrderID)
	}
	r.state.lastHistoryID++
	h.ID = r.state.lastHistoryID
	r.state.history = append(r.state.history, *h)
	return nil
}

// ListStatusHistory возвращает журнал статусов заказа, новые записи первыми.
func (r *MemoryRepository) ListStatusHistory(ctx context.Context, orderID int64) ([]model.StatusHistory, error) {
	defer r.lock(ctx)()

	var res []model.StatusHistory
	for _, h := range r.state.history {
		if h.OrderID == orderID {
			res = append(res, h)
		}
	}
	slices.SortFunc(res, func(a, b model.StatusHistory) int {
		if c := b.ChangedAt.Compare(a.ChangedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return res, nil
}

// GetCouponByCode возвращает копию купона.
func (r *MemoryRepository) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	defer r.lock(ctx)()

	id, ok := r.state.couponCodes[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCouponNotFound, code)
	}
	c := r.state.coupons[id]
	return &c, nil
}

// LockCouponByCode совпадает с GetCouponByCode.
func (r *MemoryRepository) LockCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return r.GetCouponByCode(ctx, code)
}

// IncrementCouponUsage учитывает одно использование купона, не превышая лимит.
func (r *MemoryRepository) IncrementCouponUsage(ctx context.Context, id int64, at time.Time) error {
	defer r.lock(ctx)()

	c, ok := r.state.coupons[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrCouponNotFound, id)
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return fmt.Errorf("%w: %s", model.ErrInvalidCoupon, model.CouponReasonUsageExhausted)
	}
	c.RecordUsage()
	c.UpdatedAt = at.UTC()
	r.state.coupons[id] = c
	return nil
}

// CreateCoupon сохраняет купон и заполняет его идентификатор.
func (r *MemoryRepository) CreateCoupon(ctx context.Context, c *model.Coupon) error {
	defer r.lock(ctx)()

	if _, exists := r.state.couponCodes[c.Code]; exists {
		return fmt.Errorf("%w: %s", ErrCouponExists, c.Code)
	}
	r.state.lastCouponID++
	c.ID = r.state.lastCouponID
	r.state.coupons[c.ID] = *c
	r.state.couponCodes[c.Code] = c.ID
	return nil
}

func copyOrder(o model.Order) model.Order {
	o.Items = slices.Clone(o.Items)
	if o.ShippingAddress != nil {
		a := *o.ShippingAddress
		o.ShippingAddress = &a
	}
	if o.BillingAddress != nil {
		a := *o.BillingAddress
		o.BillingAddress = &a
	}
	if o.CouponID != nil {
		id := *o.CouponID
		o.CouponID = &id
	}
	return o
}
