package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType определяет способ расчёта скидки по купону.
type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "PERCENTAGE"
	DiscountTypeFixedAmount DiscountType = "FIXED_AMOUNT"
)

// Причины, по которым купон не может быть применён.
const (
	CouponReasonInactive       = "coupon is inactive"
	CouponReasonNotYetValid    = "coupon is not valid yet"
	CouponReasonExpired        = "coupon has expired"
	CouponReasonUsageExhausted = "coupon usage limit reached"
	CouponReasonMinimumNotMet  = "order amount is below coupon minimum"
)

var hundred = decimal.NewFromInt(100)

// Coupon описывает купон на скидку.
type Coupon struct {
	ID                    int64
	Code                  string
	Description           string
	DiscountType          DiscountType
	DiscountValue         decimal.Decimal
	MinimumOrderAmount    decimal.Decimal
	MaximumDiscountAmount *decimal.Decimal
	UsageLimit            *int
	UsedCount             int
	ValidFrom             time.Time
	ValidUntil            time.Time
	Active                bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NormalizeCouponCode приводит код купона к каноническому виду.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValid проверяет активность, окно действия [ValidFrom, ValidUntil) и лимит использований.
func (c *Coupon) IsValid(now time.Time) bool {
	return c.invalidReason(now) == ""
}

// CanApply проверяет, что купон действителен и сумма заказа не меньше минимальной.
func (c *Coupon) CanApply(orderAmount decimal.Decimal, now time.Time) bool {
	return c.Reason(orderAmount, now) == ""
}

// Reason возвращает причину, по которой купон нельзя применить, или пустую строку.
func (c *Coupon) Reason(orderAmount decimal.Decimal, now time.Time) string {
	if reason := c.invalidReason(now); reason != "" {
		return reason
	}
	if orderAmount.LessThan(c.MinimumOrderAmount) {
		return CouponReasonMinimumNotMet
	}
	return ""
}

func (c *Coupon) invalidReason(now time.Time) string {
	switch {
	case !c.Active:
		return CouponReasonInactive
	case now.Before(c.ValidFrom):
		return CouponReasonNotYetValid
	case !now.Before(c.ValidUntil):
		return CouponReasonExpired
	case c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit:
		return CouponReasonUsageExhausted
	}
	return ""
}

// CalculateDiscount рассчитывает скидку для суммы заказа.
// Результат всегда в диапазоне [0, orderAmount]; для неприменимого купона - ноль.
func (c *Coupon) CalculateDiscount(orderAmount decimal.Decimal, now time.Time) decimal.Decimal {
	if !c.CanApply(orderAmount, now) || !orderAmount.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountTypePercentage:
		discount = orderAmount.Mul(c.DiscountValue).Div(hundred).Round(2)
		if c.MaximumDiscountAmount != nil && discount.GreaterThan(*c.MaximumDiscountAmount) {
			discount = *c.MaximumDiscountAmount
		}
	case DiscountTypeFixedAmount:
		discount = c.DiscountValue
	default:
		return decimal.Zero
	}

	if discount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(discount, orderAmount)
}

// RecordUsage увеличивает счётчик использований. Повторный вызов учитывается повторно.
func (c *Coupon) RecordUsage() {
	c.UsedCount++
}
