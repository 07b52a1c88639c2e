package repository

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/furniture-store/internal/model"
)

// SampleProducts возвращает демонстрационный каталог. Тот же набор добавляет
// миграция 00002_sample_products.sql для PostgreSQL.
func SampleProducts() []model.Product {
	return []model.Product{
		{ID: 1, Name: "Luxe 3-Seater Sofa", Price: decimal.RequireFromString("1299.99"), Stock: 15},
		{ID: 2, Name: "Scandinavian L-Shape Sectional", Price: decimal.RequireFromString("1899.99"), Stock: 8},
		{ID: 3, Name: "Classic Chesterfield Sofa", Price: decimal.RequireFromString("2499.99"), Stock: 5},
		{ID: 4, Name: "Ergonomic Office Chair", Price: decimal.RequireFromString("399.99"), Stock: 25},
		{ID: 5, Name: "Mid-Century Accent Chair", Price: decimal.RequireFromString("549.99"), Stock: 18},
		{ID: 6, Name: "Windsor Dining Chair Set (2)", Price: decimal.RequireFromString("299.99"), Stock: 30},
	}
}

// SeedProducts заполняет пустой каталог. Возвращает число добавленных товаров.
func (r *MemoryRepository) SeedProducts(products []model.Product) int {
	r.mu.Lock()
	empty := len(r.state.products) == 0
	r.mu.Unlock()

	if !empty {
		return 0
	}
	for _, p := range products {
		r.AddProduct(p)
	}
	return len(products)
}
