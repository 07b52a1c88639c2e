// Package model содержит доменные сущности магазина мебели: гостевой заказ,
// купон и журнал статусов.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem - позиция заказа со снимком товара на момент оформления.
type LineItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	TotalPrice  decimal.Decimal
}

// NewLineItem создаёт позицию и рассчитывает её стоимость.
func NewLineItem(product ProductSnapshot, quantity int) (LineItem, error) {
	if quantity <= 0 {
		return LineItem{}, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidArgument, quantity)
	}
	return LineItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitPrice:   product.Price,
		Quantity:    quantity,
		TotalPrice:  product.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// Order - гостевой заказ. Денежные поля пересчитываются после каждого изменения позиций,
// сборов или купона, так что Total = Subtotal + Tax + Shipping - Discount выполняется всегда.
type Order struct {
	ID          int64
	OrderNumber string

	Email     string
	FirstName string
	LastName  string
	Phone     string

	Items  []LineItem
	Status OrderStatus

	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingCost   decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal

	CouponID   *int64
	CouponCode string

	ShippingAddress *Address
	BillingAddress  *Address

	OrderDate             time.Time
	EstimatedDeliveryDate time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewOrder создаёт заказ в статусе PENDING с нулевыми суммами.
func NewOrder(email, firstName, lastName, phone string) *Order {
	return &Order{
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		Phone:          phone,
		Status:         OrderStatusPending,
		Subtotal:       decimal.Zero,
		TaxAmount:      decimal.Zero,
		ShippingCost:   decimal.Zero,
		DiscountAmount: decimal.Zero,
		TotalAmount:    decimal.Zero,
	}
}

// SetCharges задаёт налог и стоимость доставки.
func (o *Order) SetCharges(tax, shipping decimal.Decimal) error {
	if tax.IsNegative() {
		return fmt.Errorf("%w: tax amount must not be negative", ErrInvalidArgument)
	}
	if shipping.IsNegative() {
		return fmt.Errorf("%w: shipping cost must not be negative", ErrInvalidArgument)
	}
	o.TaxAmount = tax
	o.ShippingCost = shipping
	o.Recalculate()
	return nil
}

// AddItem добавляет позицию и пересчитывает суммы.
func (o *Order) AddItem(item LineItem) {
	item.OrderID = o.ID
	o.Items = append(o.Items, item)
	o.Recalculate()
}

// RemoveItem удаляет позицию по товару. Возвращает false, если позиции нет.
func (o *Order) RemoveItem(productID int64) bool {
	for i, item := range o.Items {
		if item.ProductID == productID {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			o.Recalculate()
			return true
		}
	}
	return false
}

// HasCoupon сообщает, применён ли к заказу купон.
func (o *Order) HasCoupon() bool {
	return o.CouponCode != ""
}

// ApplyCoupon применяет купон к текущему подытогу заказа.
// Учёт использования купона остаётся на вызывающей стороне.
func (o *Order) ApplyCoupon(c *Coupon, now time.Time) error {
	if c == nil {
		return fmt.Errorf("%w: coupon is required", ErrInvalidCoupon)
	}
	if o.HasCoupon() {
		return fmt.Errorf("%w: order already has coupon %s", ErrInvalidCoupon, o.CouponCode)
	}
	if reason := c.Reason(o.Subtotal, now); reason != "" {
		return fmt.Errorf("%w: %s: %s", ErrInvalidCoupon, c.Code, reason)
	}

	id := c.ID
	o.CouponID = &id
	o.CouponCode = c.Code
	o.DiscountAmount = c.CalculateDiscount(o.Subtotal, now)
	o.Recalculate()
	return nil
}

// RemoveCoupon снимает купон и пересчитывает итог.
func (o *Order) RemoveCoupon() {
	o.CouponID = nil
	o.CouponCode = ""
	o.DiscountAmount = decimal.Zero
	o.Recalculate()
}

// Recalculate пересчитывает подытог и итог заказа по текущим позициям и сборам.
func (o *Order) Recalculate() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.TotalPrice)
	}
	o.Subtotal = subtotal

	if o.DiscountAmount.GreaterThan(o.Subtotal) {
		o.DiscountAmount = o.Subtotal
	}

	o.TotalAmount = o.Subtotal.
		Add(o.TaxAmount).
		Add(o.ShippingCost).
		Sub(o.DiscountAmount)
}

// FormatOrderNumber строит номер заказа вида ORD-<год>-<8 цифр>.
func FormatOrderNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%04d-%08d", at.Year(), seq%100_000_000)
}
