package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// OrderStatus описывает статус гостевого заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// SystemActor подставляется в историю, если инициатор изменения неизвестен.
const SystemActor = "SYSTEM"

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
}

// ParseOrderStatus разбирает название статуса без учёта регистра.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidArgument, s)
}

// IsTerminal сообщает, что из статуса нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// AllowsCouponChanges сообщает, можно ли менять купон заказа в этом статусе.
func (s OrderStatus) AllowsCouponChanges() bool {
	switch s {
	case OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return false
	}
	return true
}

// CanTransition проверяет переход по таблице допустимых переходов.
// Переход в тот же статус не допускается.
func CanTransition(from, to OrderStatus) bool {
	return slices.Contains(orderStatusTransitions[from], to)
}

// StatusHistory - неизменяемая запись журнала переходов статуса заказа.
type StatusHistory struct {
	ID             int64
	OrderID        int64
	PreviousStatus *OrderStatus
	NewStatus      OrderStatus
	Notes          string
	ChangedAt      time.Time
	ChangedBy      string
}

// NewStatusHistory создаёт запись журнала. Пустой actor заменяется на SystemActor.
func NewStatusHistory(orderID int64, prev *OrderStatus, next OrderStatus, notes, actor string, at time.Time) StatusHistory {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = SystemActor
	}
	return StatusHistory{
		OrderID:        orderID,
		PreviousStatus: prev,
		NewStatus:      next,
		Notes:          notes,
		ChangedAt:      at,
		ChangedBy:      actor,
	}
}
