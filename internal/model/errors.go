package model

import (
	"errors"
	"fmt"
)

// Категории ошибок предметной области. Конкретные ошибки оборачивают одну из них,
// поэтому вызывающий код проверяет категорию через errors.Is.
var (
	// ErrNotFound возвращается, если заказ, товар или купон не найден.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument возвращается при некорректных входных данных.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInsufficientStock возвращается, если остатка товара не хватает для резервирования.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidCoupon возвращается, если купон нельзя применить к заказу.
	ErrInvalidCoupon = errors.New("invalid coupon")
	// ErrIllegalStateTransition возвращается при недопустимом переходе статуса заказа.
	ErrIllegalStateTransition = errors.New("illegal state transition")
	// ErrConflict возвращается при нарушении уникальности (код купона, номер заказа).
	ErrConflict = errors.New("conflict")
)

// StockError описывает нехватку остатка по конкретному товару.
type StockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrInsufficientStock).
func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}
