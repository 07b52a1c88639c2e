// Package service реализует бизнес-логику гостевых заказов и купонов.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmeshcher/furniture-store/internal/events"
	"github.com/mmeshcher/furniture-store/internal/model"
)

// UnitOfWork объединяет операции репозитория в одну транзакцию.
// Транзакция передаётся через ctx, который получает fn.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository описывает хранение заказов, позиций и журнала статусов.
type OrderRepository interface {
	InsertOrder(ctx context.Context, o *model.Order) error
	InsertOrderItems(ctx context.Context, orderID int64, items []model.LineItem) error
	UpdateOrder(ctx context.Context, o *model.Order) error
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	LockOrderByID(ctx context.Context, id int64) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	ListOrdersByEmail(ctx context.Context, email string, activeOnly bool) ([]model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	InsertStatusHistory(ctx context.Context, h *model.StatusHistory) error
	ListStatusHistory(ctx context.Context, orderID int64) ([]model.StatusHistory, error)
}

// CouponRepository описывает хранение купонов.
type CouponRepository interface {
	GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	LockCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	IncrementCouponUsage(ctx context.Context, id int64, at time.Time) error
	CreateCoupon(ctx context.Context, c *model.Coupon) error
}

// InventoryLedger резервирует и возвращает остатки товаров каталога.
type InventoryLedger interface {
	Reserve(ctx context.Context, productID int64, quantity int) (model.ProductSnapshot, error)
	Release(ctx context.Context, productID int64, quantity int) error
}

// OrderNumberGenerator выдаёт номера заказов вида ORD-<год>-<8 цифр>.
type OrderNumberGenerator interface {
	NextOrderNumber(ctx context.Context, at time.Time) (string, error)
}

// EventPublisher публикует события заказов для внешних потребителей.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, evt events.OrderEvent) error
}

// ItemError указывает, какая позиция запроса не смогла быть зарезервирована.
type ItemError struct {
	Index     int
	ProductID int64
	Err       error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (product %d): %v", e.Index, e.ProductID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

type actorKey struct{}

// WithActor сохраняет в контексте инициатора изменений для журнала статусов.
func WithActor(ctx context.Context, actor string) context.Context {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	if actor == "" {
		return model.SystemActor
	}
	return actor
}
