package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/furniture-store/internal/events"
	"github.com/mmeshcher/furniture-store/internal/model"
	"github.com/mmeshcher/furniture-store/internal/validation"
)

const (
	defaultDeliveryLeadTime = 7 * 24 * time.Hour
	maxOrderNumberAttempts  = 3
)

// OrderServiceDeps содержит зависимости сервиса заказов.
type OrderServiceDeps struct {
	Orders     OrderRepository
	Coupons    CouponRepository
	Inventory  InventoryLedger
	UnitOfWork UnitOfWork
	Numbers    OrderNumberGenerator
	Events     EventPublisher
	Logger     *zap.Logger
	Clock      func() time.Time

	// DeliveryLeadTime - срок от оформления до ожидаемой доставки.
	DeliveryLeadTime time.Duration
	// ExternalInventory выставляется, если склад не участвует в транзакции хранилища
	// (удалённый каталог). Тогда резервы откатываются явно, а возврат остатков
	// при отмене выполняется после фиксации транзакции.
	ExternalInventory bool
}

// OrderService оформляет гостевые заказы и управляет их жизненным циклом.
type OrderService struct {
	orders            OrderRepository
	coupons           CouponRepository
	inventory         InventoryLedger
	unitOfWork        UnitOfWork
	numbers           OrderNumberGenerator
	events            EventPublisher
	logger            *zap.Logger
	clock             func() time.Time
	deliveryLeadTime  time.Duration
	externalInventory bool
}

// NewOrderService создаёт сервис заказов.
func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Coupons == nil {
		return nil, errors.New("order service: coupon repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory ledger is required")
	}
	if deps.Numbers == nil {
		return nil, errors.New("order service: order number generator is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lead := deps.DeliveryLeadTime
	if lead <= 0 {
		lead = defaultDeliveryLeadTime
	}

	return &OrderService{
		orders:     deps.Orders,
		coupons:    deps.Coupons,
		inventory:  deps.Inventory,
		unitOfWork: deps.UnitOfWork,
		numbers:    deps.Numbers,
		events:     deps.Events,
		logger:     logger,
		clock: func() time.Time {
			return clock().UTC()
		},
		deliveryLeadTime:  lead,
		externalInventory: deps.ExternalInventory,
	}, nil
}

// OrderItemRequest - запрошенная позиция заказа.
type OrderItemRequest struct {
	ProductID int64
	Quantity  int
}

// CreateOrderRequest - данные гостевого оформления заказа.
type CreateOrderRequest struct {
	Email           string
	FirstName       string
	LastName        string
	Phone           string
	Items           []OrderItemRequest
	ShippingAddress *model.Address
	BillingAddress  *model.Address
	TaxAmount       decimal.Decimal
	ShippingCost    decimal.Decimal
	CouponCode      string
}

// Validate проверяет поля запроса и нормализует код купона.
func (r *CreateOrderRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.CouponCode = model.NormalizeCouponCode(r.CouponCode)

	var problems []string
	if !validation.IsValidEmail(r.Email) {
		problems = append(problems, "email is invalid")
	}
	if !validation.IsValidName(r.FirstName) {
		problems = append(problems, "first name is required and must not exceed 100 characters")
	}
	if !validation.IsValidName(r.LastName) {
		problems = append(problems, "last name is required and must not exceed 100 characters")
	}
	if r.Phone != "" && !validation.IsValidPhone(r.Phone) {
		problems = append(problems, "phone number format is invalid")
	}
	if len(r.Items) == 0 {
		problems = append(problems, "order must have at least one item")
	}
	for i, item := range r.Items {
		if item.ProductID <= 0 {
			problems = append(problems, fmt.Sprintf("item %d: product id is required", i))
		}
		if item.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("item %d: quantity must be positive", i))
		}
	}
	if !validation.IsValidAmount(r.TaxAmount) {
		problems = append(problems, "tax amount must be non-negative with at most 2 decimal places")
	}
	if !validation.IsValidAmount(r.ShippingCost) {
		problems = append(problems, "shipping cost must be non-negative with at most 2 decimal places")
	}
	if r.CouponCode != "" && !validation.IsValidCouponCode(r.CouponCode) {
		problems = append(problems, "coupon code is invalid")
	}
	for name, addr := range map[string]*model.Address{"shipping": r.ShippingAddress, "billing": r.BillingAddress} {
		if addr != nil && !validation.IsValidAddress(*addr) {
			problems = append(problems, name+" address is incomplete")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", model.ErrInvalidArgument, strings.Join(problems, "; "))
	}
	return nil
}

type reservation struct {
	productID int64
	quantity  int
}

// CreateOrder оформляет гостевой заказ: резервирует товары, применяет купон
// и записывает начальный статус PENDING. Все изменения выполняются в одной транзакции.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.logger.Info("creating guest order",
		zap.String("email", req.Email),
		zap.Int("items", len(req.Items)),
		zap.String("coupon", req.CouponCode),
	)

	actor := actorFromContext(ctx)

	var (
		order    *model.Order
		reserved []reservation
		err      error
	)
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		err = s.runInTx(ctx, func(txCtx context.Context) error {
			// Повтор транзакции не должен оставлять резервы предыдущей попытки.
			reserved = s.compensate(ctx, reserved)

			var txErr error
			order, txErr = s.createOrderTx(txCtx, req, actor, &reserved)
			return txErr
		})
		if err == nil || !errors.Is(err, model.ErrConflict) {
			break
		}
		s.logger.Warn("order number collision, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		s.compensate(ctx, reserved)
		s.logger.Warn("guest order creation failed", zap.String("email", req.Email), zap.Error(err))
		return nil, err
	}

	s.logger.Info("guest order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)

	evt := s.newEvent(events.OrderCreated, order, actor)
	s.publish(ctx, evt)

	return order, nil
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, actor string, reserved *[]reservation) (*model.Order, error) {
	now := s.now()

	order := model.NewOrder(req.Email, req.FirstName, req.LastName, req.Phone)
	if err := order.SetCharges(req.TaxAmount, req.ShippingCost); err != nil {
		return nil, err
	}
	order.ShippingAddress = req.ShippingAddress
	order.BillingAddress = req.BillingAddress
	order.OrderDate = now
	order.EstimatedDeliveryDate = now.Add(s.deliveryLeadTime)
	order.CreatedAt = now
	order.UpdatedAt = now

	number, err := s.numbers.NextOrderNumber(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("generate order number: %w", err)
	}
	order.OrderNumber = number

	if err := s.orders.InsertOrder(ctx, order); err != nil {
		return nil, err
	}

	for i, item := range req.Items {
		product, err := s.inventory.Reserve(ctx, item.ProductID, item.Quantity)
		if err != nil {
			return nil, &ItemError{Index: i, ProductID: item.ProductID, Err: err}
		}
		*reserved = append(*reserved, reservation{productID: item.ProductID, quantity: item.Quantity})

		line, err := model.NewLineItem(product, item.Quantity)
		if err != nil {
			return nil, &ItemError{Index: i, ProductID: item.ProductID, Err: err}
		}
		order.AddItem(line)
	}

	if err := s.orders.InsertOrderItems(ctx, order.ID, order.Items); err != nil {
		return nil, err
	}

	if req.CouponCode != "" {
		if err := s.applyCouponTx(ctx, order, req.CouponCode, now); err != nil {
			return nil, err
		}
	}

	if err := s.orders.UpdateOrder(ctx, order); err != nil {
		return nil, err
	}

	history := model.NewStatusHistory(order.ID, nil, model.OrderStatusPending, "Order created", actor, now)
	if err := s.orders.InsertStatusHistory(ctx, &history); err != nil {
		return nil, err
	}

	return order, nil
}

// applyCouponTx применяет купон к заказу и учитывает одно использование купона.
// Строка купона блокируется до конца транзакции.
func (s *OrderService) applyCouponTx(ctx context.Context, order *model.Order, code string, now time.Time) error {
	code = model.NormalizeCouponCode(code)

	coupon, err := s.coupons.LockCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("%w: %w", model.ErrInvalidCoupon, err)
		}
		return err
	}

	if err := order.ApplyCoupon(coupon, now); err != nil {
		return err
	}

	if err := s.coupons.IncrementCouponUsage(ctx, coupon.ID, now); err != nil {
		return err
	}
	coupon.RecordUsage()

	s.logger.Info("coupon applied",
		zap.String("coupon", coupon.Code),
		zap.Int64("order_id", order.ID),
		zap.String("discount", order.DiscountAmount.StringFixed(2)),
		zap.Int("used_count", coupon.UsedCount),
	)
	return nil
}

// compensate возвращает на склад резервы удалённого каталога в обратном порядке.
// Для транзакционного склада откат выполняет сама транзакция.
func (s *OrderService) compensate(ctx context.Context, reserved []reservation) []reservation {
	if !s.externalInventory || len(reserved) == 0 {
		return nil
	}
	for i := len(reserved) - 1; i >= 0; i-- {
		r := reserved[i]
		if err := s.inventory.Release(ctx, r.productID, r.quantity); err != nil {
			s.logger.Error("failed to compensate stock reservation",
				zap.Int64("product_id", r.productID),
				zap.Int("quantity", r.quantity),
				zap.Error(err),
			)
		}
	}
	return nil
}

// CancelOrder отменяет заказ и возвращает на склад количество каждой позиции.
// Повторная отмена и отмена доставленного заказа запрещены. Если вернуть остаток
// не удалось, заказ остаётся в прежнем статусе и отмену можно повторить.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64, reason string) (*model.Order, error) {
	s.logger.Info("cancelling guest order", zap.Int64("order_id", orderID), zap.String("reason", reason))

	actor := actorFromContext(ctx)

	var (
		order    *model.Order
		prev     model.OrderStatus
		released []reservation
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		// Повтор транзакции заново резервирует то, что вернула предыдущая попытка.
		released = s.restore(ctx, released)

		o, err := s.orders.LockOrderByID(txCtx, orderID)
		if err != nil {
			return err
		}
		prev = o.Status

		if !model.CanTransition(o.Status, model.OrderStatusCancelled) {
			return fmt.Errorf("%w: order %s is %s and cannot be cancelled",
				model.ErrIllegalStateTransition, o.OrderNumber, o.Status)
		}

		if err := s.releaseItems(txCtx, o.Items, &released); err != nil {
			return err
		}

		if err := s.transitionTx(txCtx, o, model.OrderStatusCancelled, reason, actor); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		s.restore(ctx, released)
		s.logger.Warn("guest order cancellation failed", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("guest order cancelled", zap.Int64("order_id", order.ID), zap.String("order_number", order.OrderNumber))

	evt := s.newEvent(events.OrderStatusChanged, order, actor)
	evt.PreviousStatus = string(prev)
	if reason != "" {
		evt.Metadata = map[string]string{"reason": reason}
	}
	s.publish(ctx, evt)

	return order, nil
}

// releaseItems возвращает на склад количество каждой позиции и запоминает,
// что уже возвращено.
func (s *OrderService) releaseItems(ctx context.Context, items []model.LineItem, released *[]reservation) error {
	for _, item := range items {
		if err := s.inventory.Release(ctx, item.ProductID, item.Quantity); err != nil {
			return fmt.Errorf("release product %d: %w", item.ProductID, err)
		}
		*released = append(*released, reservation{productID: item.ProductID, quantity: item.Quantity})
	}
	return nil
}

// restore откатывает возврат остатков в удалённый каталог в обратном порядке.
// Локальный склад откатывается вместе с транзакцией.
func (s *OrderService) restore(ctx context.Context, released []reservation) []reservation {
	if !s.externalInventory || len(released) == 0 {
		return nil
	}
	for i := len(released) - 1; i >= 0; i-- {
		r := released[i]
		if _, err := s.inventory.Reserve(ctx, r.productID, r.quantity); err != nil {
			s.logger.Error("failed to restore released stock",
				zap.Int64("product_id", r.productID),
				zap.Int("quantity", r.quantity),
				zap.Error(err),
			)
		}
	}
	return nil
}

// UpdateOrderStatus переводит заказ в новый статус по таблице переходов.
// Отмена через этот метод выполняется так же, как CancelOrder.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, status, notes string) (*model.Order, error) {
	target, err := model.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	if target == model.OrderStatusCancelled {
		return s.CancelOrder(ctx, orderID, notes)
	}

	s.logger.Info("updating order status", zap.Int64("order_id", orderID), zap.String("status", string(target)))

	actor := actorFromContext(ctx)

	var (
		order *model.Order
		prev  model.OrderStatus
	)
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		o, err := s.orders.LockOrderByID(txCtx, orderID)
		if err != nil {
			return err
		}
		prev = o.Status

		if !model.CanTransition(o.Status, target) {
			return fmt.Errorf("%w: %s -> %s", model.ErrIllegalStateTransition, o.Status, target)
		}
		if err := s.transitionTx(txCtx, o, target, notes, actor); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	evt := s.newEvent(events.OrderStatusChanged, order, actor)
	evt.PreviousStatus = string(prev)
	s.publish(ctx, evt)

	return order, nil
}

func (s *OrderService) transitionTx(ctx context.Context, o *model.Order, target model.OrderStatus, notes, actor string) error {
	now := s.now()
	prev := o.Status

	o.Status = target
	o.UpdatedAt = now
	if err := s.orders.UpdateOrder(ctx, o); err != nil {
		return err
	}

	history := model.NewStatusHistory(o.ID, &prev, target, notes, actor, now)
	return s.orders.InsertStatusHistory(ctx, &history)
}

// ApplyCoupon применяет купон к существующему заказу.
func (s *OrderService) ApplyCoupon(ctx context.Context, orderID int64, code string) (*model.Order, error) {
	code = model.NormalizeCouponCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: coupon code is required", model.ErrInvalidArgument)
	}

	s.logger.Info("applying coupon to order", zap.Int64("order_id", orderID), zap.String("coupon", code))

	var order *model.Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		o, err := s.orders.LockOrderByID(txCtx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.AllowsCouponChanges() {
			return fmt.Errorf("%w: cannot apply coupon to order in status %s", model.ErrIllegalStateTransition, o.Status)
		}

		now := s.now()
		if err := s.applyCouponTx(txCtx, o, code, now); err != nil {
			return err
		}
		o.UpdatedAt = now
		if err := s.orders.UpdateOrder(txCtx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, s.newEvent(events.OrderCouponApplied, order, actorFromContext(ctx)))
	return order, nil
}

// RemoveCoupon снимает купон с заказа. Счётчик использований купона не уменьшается.
func (s *OrderService) RemoveCoupon(ctx context.Context, orderID int64) (*model.Order, error) {
	s.logger.Info("removing coupon from order", zap.Int64("order_id", orderID))

	var (
		order   *model.Order
		removed string
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		o, err := s.orders.LockOrderByID(txCtx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.AllowsCouponChanges() {
			return fmt.Errorf("%w: cannot remove coupon from order in status %s", model.ErrIllegalStateTransition, o.Status)
		}
		order = o
		if !o.HasCoupon() {
			return nil
		}

		removed = o.CouponCode
		o.RemoveCoupon()
		o.UpdatedAt = s.now()
		return s.orders.UpdateOrder(txCtx, o)
	})
	if err != nil {
		return nil, err
	}

	if removed != "" {
		evt := s.newEvent(events.OrderCouponRemoved, order, actorFromContext(ctx))
		evt.CouponCode = removed
		s.publish(ctx, evt)
	}
	return order, nil
}

// GetByID возвращает заказ по идентификатору.
func (s *OrderService) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	return s.orders.GetOrderByID(ctx, id)
}

// GetByOrderNumber возвращает заказ по номеру.
func (s *OrderService) GetByOrderNumber(ctx context.Context, number string) (*model.Order, error) {
	return s.orders.GetOrderByNumber(ctx, strings.TrimSpace(number))
}

// ListByEmail возвращает заказы покупателя, новые первыми.
func (s *OrderService) ListByEmail(ctx context.Context, email string) ([]model.Order, error) {
	return s.orders.ListOrdersByEmail(ctx, strings.TrimSpace(email), false)
}

// ListActiveByEmail возвращает неотменённые заказы покупателя.
func (s *OrderService) ListActiveByEmail(ctx context.Context, email string) ([]model.Order, error) {
	return s.orders.ListOrdersByEmail(ctx, strings.TrimSpace(email), true)
}

// ListAll возвращает все заказы.
func (s *OrderService) ListAll(ctx context.Context) ([]model.Order, error) {
	return s.orders.ListOrders(ctx)
}

// History возвращает журнал статусов заказа, новые записи первыми.
func (s *OrderService) History(ctx context.Context, orderID int64) ([]model.StatusHistory, error) {
	if _, err := s.orders.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.orders.ListStatusHistory(ctx, orderID)
}

func (s *OrderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *OrderService) now() time.Time {
	return s.clock()
}

func (s *OrderService) newEvent(t events.OrderEventType, o *model.Order, actor string) events.OrderEvent {
	evt := events.NewOrderEvent(t, o.ID, o.OrderNumber, s.now())
	evt.CurrentStatus = string(o.Status)
	evt.TotalAmount = o.TotalAmount
	evt.CouponCode = o.CouponCode
	evt.Actor = actor
	return evt
}

func (s *OrderService) publish(ctx context.Context, evt events.OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, evt); err != nil {
		s.logger.Warn("order event publish failed",
			zap.String("type", string(evt.Type)),
			zap.Int64("order_id", evt.OrderID),
			zap.Error(err),
		)
	}
}
