// Package events описывает доменные события заказов и их публикацию в Kafka.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderEventType - тип события жизненного цикла заказа.
type OrderEventType string

const (
	OrderCreated       OrderEventType = "order.created"
	OrderStatusChanged OrderEventType = "order.status.changed"
	OrderCouponApplied OrderEventType = "order.coupon.applied"
	OrderCouponRemoved OrderEventType = "order.coupon.removed"
)

// OrderEvent - сообщение, публикуемое после фиксации изменений заказа.
type OrderEvent struct {
	EventID        string            `json:"event_id"`
	Type           OrderEventType    `json:"type"`
	OrderID        int64             `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	PreviousStatus string            `json:"previous_status,omitempty"`
	CurrentStatus  string            `json:"current_status"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	CouponCode     string            `json:"coupon_code,omitempty"`
	Actor          string            `json:"actor,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// NewOrderEvent создаёт событие с новым идентификатором.
func NewOrderEvent(t OrderEventType, orderID int64, orderNumber string, at time.Time) OrderEvent {
	return OrderEvent{
		EventID:     uuid.NewString(),
		Type:        t,
		OrderID:     orderID,
		OrderNumber: orderNumber,
		OccurredAt:  at,
	}
}

// Encode возвращает JSON-представление события.
func (e OrderEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeOrderEvent разбирает событие из JSON.
func DecodeOrderEvent(payload []byte) (OrderEvent, error) {
	var evt OrderEvent
	err := json.Unmarshal(payload, &evt)
	return evt, err
}
