package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/furniture-store/internal/model"
	"github.com/mmeshcher/furniture-store/internal/validation"
)

// ReasonNoDiscount - купон применим, но для этой суммы скидка нулевая.
const ReasonNoDiscount = "coupon gives no discount for this order amount"

// CouponValidation - результат проверки купона для суммы заказа.
// Valid выставляется только при положительной скидке.
type CouponValidation struct {
	Code           string
	Valid          bool
	DiscountAmount decimal.Decimal
	Reason         string
}

// CreateCouponRequest - данные нового купона.
type CreateCouponRequest struct {
	Code                  string
	Description           string
	DiscountType          model.DiscountType
	DiscountValue         decimal.Decimal
	MinimumOrderAmount    decimal.Decimal
	MaximumDiscountAmount *decimal.Decimal
	UsageLimit            *int
	ValidFrom             time.Time
	ValidUntil            time.Time
	Active                bool
}

// Validate проверяет поля купона и нормализует код.
func (r *CreateCouponRequest) Validate() error {
	r.Code = model.NormalizeCouponCode(r.Code)
	r.DiscountType = model.DiscountType(strings.ToUpper(strings.TrimSpace(string(r.DiscountType))))

	var problems []string
	if r.Code == "" || !validation.IsValidCouponCode(r.Code) {
		problems = append(problems, "coupon code must contain only A-Z, 0-9, '_' or '-' and not exceed 50 characters")
	}
	switch r.DiscountType {
	case model.DiscountTypePercentage:
		if !r.DiscountValue.IsPositive() || r.DiscountValue.GreaterThan(decimal.NewFromInt(100)) ||
			!validation.IsValidAmount(r.DiscountValue) {
			problems = append(problems, "percentage discount must be in (0, 100] with at most 2 decimal places")
		}
	case model.DiscountTypeFixedAmount:
		if !r.DiscountValue.IsPositive() || !validation.IsValidAmount(r.DiscountValue) {
			problems = append(problems, "fixed discount must be positive with at most 2 decimal places")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown discount type %q", r.DiscountType))
	}
	if !validation.IsValidAmount(r.MinimumOrderAmount) {
		problems = append(problems, "minimum order amount must be non-negative with at most 2 decimal places")
	}
	if r.MaximumDiscountAmount != nil && !validation.IsValidAmount(*r.MaximumDiscountAmount) {
		problems = append(problems, "maximum discount amount must be non-negative with at most 2 decimal places")
	}
	if r.UsageLimit != nil && *r.UsageLimit < 0 {
		problems = append(problems, "usage limit must not be negative")
	}
	if r.ValidFrom.IsZero() || r.ValidUntil.IsZero() || !r.ValidFrom.Before(r.ValidUntil) {
		problems = append(problems, "validity window must have validFrom before validUntil")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", model.ErrInvalidArgument, strings.Join(problems, "; "))
	}
	return nil
}

// CouponService проверяет и создаёт купоны.
type CouponService struct {
	coupons CouponRepository
	logger  *zap.Logger
	clock   func() time.Time
}

// NewCouponService создаёт сервис купонов.
func NewCouponService(coupons CouponRepository, logger *zap.Logger, clock func() time.Time) *CouponService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &CouponService{
		coupons: coupons,
		logger:  logger,
		clock:   clock,
	}
}

// Validate проверяет применимость купона к сумме заказа без его использования.
// Неизвестный код возвращается как недействительный купон, а не как ошибка.
func (s *CouponService) Validate(ctx context.Context, code string, orderAmount decimal.Decimal) (CouponValidation, error) {
	code = model.NormalizeCouponCode(code)
	result := CouponValidation{Code: code, DiscountAmount: decimal.Zero}

	if orderAmount.IsNegative() {
		return result, fmt.Errorf("%w: order amount must not be negative", model.ErrInvalidArgument)
	}
	if code == "" {
		result.Reason = "coupon code is required"
		return result, nil
	}

	coupon, err := s.coupons.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			result.Reason = "coupon not found"
			return result, nil
		}
		return result, err
	}

	now := s.clock().UTC()
	if reason := coupon.Reason(orderAmount, now); reason != "" {
		result.Reason = reason
		s.logger.Debug("coupon rejected", zap.String("coupon", code), zap.String("reason", reason))
		return result, nil
	}

	result.DiscountAmount = coupon.CalculateDiscount(orderAmount, now)
	if !result.DiscountAmount.IsPositive() {
		result.Reason = ReasonNoDiscount
		return result, nil
	}
	result.Valid = true

	s.logger.Debug("coupon validated",
		zap.String("coupon", code),
		zap.String("amount", orderAmount.StringFixed(2)),
		zap.String("discount", result.DiscountAmount.StringFixed(2)),
	)
	return result, nil
}

// GetCoupon возвращает купон по коду.
func (s *CouponService) GetCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	return s.coupons.GetCouponByCode(ctx, model.NormalizeCouponCode(code))
}

// CreateCoupon сохраняет новый купон. Код купона уникален.
func (s *CouponService) CreateCoupon(ctx context.Context, req CreateCouponRequest) (*model.Coupon, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	coupon := &model.Coupon{
		Code:                  req.Code,
		Description:           strings.TrimSpace(req.Description),
		DiscountType:          req.DiscountType,
		DiscountValue:         req.DiscountValue,
		MinimumOrderAmount:    req.MinimumOrderAmount,
		MaximumDiscountAmount: req.MaximumDiscountAmount,
		UsageLimit:            req.UsageLimit,
		ValidFrom:             req.ValidFrom.UTC(),
		ValidUntil:            req.ValidUntil.UTC(),
		Active:                req.Active,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.coupons.CreateCoupon(ctx, coupon); err != nil {
		return nil, err
	}

	s.logger.Info("coupon created", zap.String("coupon", coupon.Code), zap.Int64("coupon_id", coupon.ID))
	return coupon, nil
}
