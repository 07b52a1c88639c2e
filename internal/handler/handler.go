// Package handler содержит HTTP-обработчики API гостевых заказов и купонов.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/furniture-store/internal/middleware"
	"github.com/mmeshcher/furniture-store/internal/model"
	"github.com/mmeshcher/furniture-store/internal/service"
)

// OrderService определяет операции над гостевыми заказами, используемые обработчиками.
type OrderService interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID int64, reason string) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status, notes string) (*model.Order, error)
	ApplyCoupon(ctx context.Context, orderID int64, code string) (*model.Order, error)
	RemoveCoupon(ctx context.Context, orderID int64) (*model.Order, error)
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetByOrderNumber(ctx context.Context, number string) (*model.Order, error)
	ListByEmail(ctx context.Context, email string) ([]model.Order, error)
	ListActiveByEmail(ctx context.Context, email string) ([]model.Order, error)
	ListAll(ctx context.Context) ([]model.Order, error)
	History(ctx context.Context, orderID int64) ([]model.StatusHistory, error)
}

// CouponService определяет операции над купонами, используемые обработчиками.
type CouponService interface {
	Validate(ctx context.Context, code string, orderAmount decimal.Decimal) (service.CouponValidation, error)
	CreateCoupon(ctx context.Context, req service.CreateCouponRequest) (*model.Coupon, error)
	GetCoupon(ctx context.Context, code string) (*model.Coupon, error)
}

// Handler реализует HTTP-обработчики API магазина.
type Handler struct {
	orders  OrderService
	coupons CouponService
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(orders OrderService, coupons CouponService, logger *zap.Logger) *Handler {
	return &Handler{
		orders:  orders,
		coupons: coupons,
		logger:  logger,
	}
}

// CreateOrder оформляет гостевой заказ.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: malformed request body", model.ErrInvalidArgument))
		return
	}

	order, err := h.orders.CreateOrder(h.actorContext(r), req.toService())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, newOrderResponse(order))
}

// ListOrders возвращает все заказы.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderListResponse(orders))
}

// GetOrderByNumber возвращает заказ по номеру.
func (h *Handler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetByOrderNumber(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(order))
}

// GetOrderByID возвращает заказ по идентификатору.
func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(order))
}

// GetOrderHistory возвращает журнал статусов заказа.
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	history, err := h.orders.History(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newHistoryResponse(history))
}

// ListOrdersByEmail возвращает заказы покупателя. Параметр active=true исключает отменённые.
func (h *Handler) ListOrdersByEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	var (
		orders []model.Order
		err    error
	)
	if active, _ := strconv.ParseBool(r.URL.Query().Get("active")); active {
		orders, err = h.orders.ListActiveByEmail(r.Context(), email)
	} else {
		orders, err = h.orders.ListByEmail(r.Context(), email)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderListResponse(orders))
}

// UpdateOrderStatus переводит заказ в статус из параметра status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	status := query.Get("status")
	if status == "" {
		h.writeError(w, r, fmt.Errorf("%w: status is required", model.ErrInvalidArgument))
		return
	}

	order, err := h.orders.UpdateOrderStatus(h.actorContext(r), id, status, query.Get("notes"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(order))
}

// CancelOrder отменяет заказ.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.orders.CancelOrder(h.actorContext(r), id, r.URL.Query().Get("reason")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyCoupon применяет купон из параметра couponCode к заказу.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.ApplyCoupon(h.actorContext(r), id, r.URL.Query().Get("couponCode"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(order))
}

// RemoveCoupon снимает купон с заказа.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.RemoveCoupon(h.actorContext(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) actorContext(r *http.Request) context.Context {
	ctx := r.Context()
	if actor, ok := middleware.ActorFromContext(ctx); ok {
		return service.WithActor(ctx, actor)
	}
	return ctx
}

func orderIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid order id %q", model.ErrInvalidArgument, raw)
	}
	return id, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}
