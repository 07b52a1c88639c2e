package model

import "github.com/shopspring/decimal"

// Product - товар каталога в объёме, нужном для резервирования.
type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Stock int
}

// ProductSnapshot фиксирует название и цену товара на момент резервирования.
type ProductSnapshot struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

// Snapshot возвращает снимок товара для позиции заказа.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{ID: p.ID, Name: p.Name, Price: p.Price}
}
