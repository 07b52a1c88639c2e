package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/furniture-store/internal/model"
)

// Reserve списывает quantity единиц товара со склада и возвращает снимок товара.
// Строка товара блокируется, поэтому параллельные резервы не уводят остаток в минус.
func (r *PostgresRepository) Reserve(ctx context.Context, productID int64, quantity int) (model.ProductSnapshot, error) {
	if quantity <= 0 {
		return model.ProductSnapshot{}, fmt.Errorf("%w: quantity must be positive", model.ErrInvalidArgument)
	}

	var p model.Product
	err := r.q(ctx).QueryRow(ctx,
		`SELECT id, name, price, stock FROM products WHERE id = $1 FOR UPDATE`,
		productID,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ProductSnapshot{}, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
		}
		return model.ProductSnapshot{}, fmt.Errorf("select product: %w", err)
	}

	if p.Stock < quantity {
		return model.ProductSnapshot{}, &model.StockError{ProductID: productID, Requested: quantity, Available: p.Stock}
	}

	_, err = r.q(ctx).Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1`,
		productID, quantity,
	)
	if err != nil {
		return model.ProductSnapshot{}, fmt.Errorf("reserve stock: %w", err)
	}

	return p.Snapshot(), nil
}

// Release возвращает quantity единиц товара на склад.
func (r *PostgresRepository) Release(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", model.ErrInvalidArgument)
	}

	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}
	return nil
}
