package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/furniture-store/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware магазина.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Actor)

	r.Route("/api/guest-orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)

		r.Get("/coupon/{couponCode}/validate", h.ValidateCoupon)
		r.Get("/email/{email}", h.ListOrdersByEmail)
		r.Get("/id/{id}", h.GetOrderByID)
		r.Get("/id/{id}/history", h.GetOrderHistory)

		r.Put("/{id}/status", h.UpdateOrderStatus)
		r.Delete("/{id}", h.CancelOrder)
		r.Post("/{id}/coupon", h.ApplyCoupon)
		r.Delete("/{id}/coupon", h.RemoveCoupon)

		r.Get("/{orderNumber}", h.GetOrderByNumber)
	})

	r.Route("/api/coupons", func(r chi.Router) {
		r.Post("/", h.CreateCoupon)
		r.Get("/{code}", h.GetCoupon)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
