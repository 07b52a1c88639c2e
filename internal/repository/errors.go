package repository

import (
	"fmt"

	"github.com/mmeshcher/furniture-store/internal/model"
)

var (
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = fmt.Errorf("order %w", model.ErrNotFound)
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = fmt.Errorf("product %w", model.ErrNotFound)
	// ErrCouponNotFound возвращается, если купон не найден.
	ErrCouponNotFound = fmt.Errorf("coupon %w", model.ErrNotFound)
	// ErrDuplicateOrderNumber возвращается при совпадении номера заказа.
	ErrDuplicateOrderNumber = fmt.Errorf("order number %w", model.ErrConflict)
	// ErrCouponExists возвращается при создании купона с уже существующим кодом.
	ErrCouponExists = fmt.Errorf("coupon code %w", model.ErrConflict)
)
