package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/furniture-store/internal/model"
)

// ValidateCoupon проверяет купон для суммы orderAmount без его использования.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("orderAmount"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: orderAmount must be a decimal number", model.ErrInvalidArgument))
		return
	}

	res, err := h.coupons.Validate(r.Context(), chi.URLParam(r, "couponCode"), amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, couponValidationResponse{
		Code:           res.Code,
		Valid:          res.Valid,
		DiscountAmount: res.DiscountAmount,
		Reason:         res.Reason,
	})
}

// CreateCoupon создаёт купон.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: malformed request body", model.ErrInvalidArgument))
		return
	}

	coupon, err := h.coupons.CreateCoupon(r.Context(), req.toService())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newCouponResponse(coupon))
}

// GetCoupon возвращает купон по коду.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := h.coupons.GetCoupon(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newCouponResponse(coupon))
}
