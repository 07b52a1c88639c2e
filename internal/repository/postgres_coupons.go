package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/furniture-store/internal/model"
)

const couponColumns = `id, code, description, discount_type, discount_value,
	minimum_order_amount, maximum_discount_amount, usage_limit, used_count,
	valid_from, valid_until, is_active, created_at, updated_at`

// GetCouponByCode возвращает купон по коду.
func (r *PostgresRepository) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return r.getCoupon(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
}

// LockCouponByCode возвращает купон и блокирует его строку до конца транзакции,
// чтобы параллельные заказы не превысили лимит использований.
func (r *PostgresRepository) LockCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return r.getCoupon(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1 FOR UPDATE`, code)
}

func (r *PostgresRepository) getCoupon(ctx context.Context, query, code string) (*model.Coupon, error) {
	var (
		c            model.Coupon
		discountType string
		maxDiscount  decimal.NullDecimal
	)
	err := r.q(ctx).QueryRow(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.Description, &discountType, &c.DiscountValue,
		&c.MinimumOrderAmount, &maxDiscount, &c.UsageLimit, &c.UsedCount,
		&c.ValidFrom, &c.ValidUntil, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrCouponNotFound, code)
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}

	c.DiscountType = model.DiscountType(discountType)
	if maxDiscount.Valid {
		v := maxDiscount.Decimal
		c.MaximumDiscountAmount = &v
	}
	return &c, nil
}

// IncrementCouponUsage учитывает одно использование купона. Если лимит уже исчерпан,
// счётчик не меняется и возвращается ErrInvalidCoupon.
func (r *PostgresRepository) IncrementCouponUsage(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE coupons
		 SET used_count = used_count + 1, updated_at = $2
		 WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", model.ErrInvalidCoupon, model.CouponReasonUsageExhausted)
	}
	return nil
}

// CreateCoupon сохраняет купон и заполняет его идентификатор.
func (r *PostgresRepository) CreateCoupon(ctx context.Context, c *model.Coupon) error {
	maxDiscount := decimal.NullDecimal{}
	if c.MaximumDiscountAmount != nil {
		maxDiscount = decimal.NewNullDecimal(*c.MaximumDiscountAmount)
	}

	err := r.q(ctx).QueryRow(ctx,
		`INSERT INTO coupons (code, description, discount_type, discount_value,
			minimum_order_amount, maximum_discount_amount, usage_limit, used_count,
			valid_from, valid_until, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		c.MinimumOrderAmount, maxDiscount, c.UsageLimit, c.UsedCount,
		c.ValidFrom, c.ValidUntil, c.Active, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrCouponExists, c.Code)
		}
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}
