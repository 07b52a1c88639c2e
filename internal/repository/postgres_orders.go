package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/furniture-store/internal/model"
)

const orderColumns = `id, order_number, email, first_name, last_name, phone, status,
	subtotal, tax_amount, shipping_cost, discount_amount, total_amount,
	coupon_id, coupon_code, shipping_address, billing_address,
	order_date, estimated_delivery_date, created_at, updated_at`

// NextOrderNumber выдаёт следующий номер заказа из последовательности БД.
func (r *PostgresRepository) NextOrderNumber(ctx context.Context, at time.Time) (string, error) {
	var seq int64
	if err := r.q(ctx).QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("next order number: %w", err)
	}
	return model.FormatOrderNumber(at, seq), nil
}

// InsertOrder сохраняет заказ и заполняет его идентификатор.
func (r *PostgresRepository) InsertOrder(ctx context.Context, o *model.Order) error {
	err := r.q(ctx).QueryRow(ctx,
		`INSERT INTO guest_orders (order_number, email, first_name, last_name, phone, status,
			subtotal, tax_amount, shipping_cost, discount_amount, total_amount,
			coupon_id, coupon_code, shipping_address, billing_address,
			order_date, estimated_delivery_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 RETURNING id`,
		o.OrderNumber, o.Email, o.FirstName, o.LastName, o.Phone, string(o.Status),
		o.Subtotal, o.TaxAmount, o.ShippingCost, o.DiscountAmount, o.TotalAmount,
		o.CouponID, o.CouponCode, o.ShippingAddress, o.BillingAddress,
		o.OrderDate, o.EstimatedDeliveryDate, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, o.OrderNumber)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// InsertOrderItems сохраняет позиции заказа одним пакетом и заполняет их идентификаторы.
func (r *PostgresRepository) InsertOrderItems(ctx context.Context, orderID int64, items []model.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range items {
		item := &items[i]
		item.OrderID = orderID
		batch.Queue(
			`INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity, total_price)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			orderID, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity, item.TotalPrice,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&item.ID)
		})
	}

	if err := r.q(ctx).SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

// UpdateOrder сохраняет статус, суммы и купон заказа.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, o *model.Order) error {
	tag, err := r.q(ctx).Exec(ctx,
		`UPDATE guest_orders
		 SET status = $2, subtotal = $3, tax_amount = $4, shipping_cost = $5,
		     discount_amount = $6, total_amount = $7, coupon_id = $8, coupon_code = $9,
		     updated_at = $10
		 WHERE id = $1`,
		o.ID, string(o.Status), o.Subtotal, o.TaxAmount, o.ShippingCost,
		o.DiscountAmount, o.TotalAmount, o.CouponID, o.CouponCode,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrOrderNotFound, o.ID)
	}
	return nil
}

// GetOrderByID возвращает заказ с позициями.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM guest_orders WHERE id = $1`, id)
}

// LockOrderByID возвращает заказ и блокирует его строку до конца транзакции.
func (r *PostgresRepository) LockOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM guest_orders WHERE id = $1 FOR UPDATE`, id)
}

// GetOrderByNumber возвращает заказ по номеру.
func (r *PostgresRepository) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM guest_orders WHERE order_number = $1`, number)
}

func (r *PostgresRepository) getOrder(ctx context.Context, query string, arg any) (*model.Order, error) {
	o, err := scanOrder(r.q(ctx).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %v", ErrOrderNotFound, arg)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := r.listOrderItems(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]

	return o, nil
}

// ListOrdersByEmail возвращает заказы покупателя, новые первыми.
// При activeOnly отменённые заказы пропускаются.
func (r *PostgresRepository) ListOrdersByEmail(ctx context.Context, email string, activeOnly bool) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM guest_orders WHERE email = $1`
	args := []any{email}
	if activeOnly {
		query += ` AND status <> $2`
		args = append(args, string(model.OrderStatusCancelled))
	}
	query += ` ORDER BY order_date DESC, id DESC`

	return r.listOrders(ctx, query, args...)
}

// ListOrders возвращает все заказы, новые первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	return r.listOrders(ctx, `SELECT `+orderColumns+` FROM guest_orders ORDER BY order_date DESC, id DESC`)
}

func (r *PostgresRepository) listOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []model.Order
		ids    []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.listOrderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

func (r *PostgresRepository) listOrderItems(ctx context.Context, orderIDs []int64) (map[int64][]model.LineItem, error) {
	rows, err := r.q(ctx).Query(ctx,
		`SELECT id, order_id, product_id, product_name, unit_price, quantity, total_price
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, id`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	res := make(map[int64][]model.LineItem, len(orderIDs))
	for rows.Next() {
		var item model.LineItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.UnitPrice, &item.Quantity, &item.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		res[item.OrderID] = append(res[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o      model.Order
		status string
		eta    *time.Time
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.Email, &o.FirstName, &o.LastName, &o.Phone, &status,
		&o.Subtotal, &o.TaxAmount, &o.ShippingCost, &o.DiscountAmount, &o.TotalAmount,
		&o.CouponID, &o.CouponCode, &o.ShippingAddress, &o.BillingAddress,
		&o.OrderDate, &eta, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status = model.OrderStatus(status)
	if eta != nil {
		o.EstimatedDeliveryDate = *eta
	}
	return &o, nil
}

// InsertStatusHistory добавляет запись в журнал статусов.
func (r *PostgresRepository) InsertStatusHistory(ctx context.Context, h *model.StatusHistory) error {
	var prev *string
	if h.PreviousStatus != nil {
		s := string(*h.PreviousStatus)
		prev = &s
	}

	err := r.q(ctx).QueryRow(ctx,
		`INSERT INTO order_status_history (order_id, previous_status, new_status, notes, changed_at, changed_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		h.OrderID, prev, string(h.NewStatus), h.Notes, h.ChangedAt, h.ChangedBy,
	).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

// ListStatusHistory возвращает журнал статусов заказа, новые записи первыми.
func (r *PostgresRepository) ListStatusHistory(ctx context.Context, orderID int64) ([]model.StatusHistory, error) {
	rows, err := r.q(ctx).Query(ctx,
		`SELECT id, order_id, previous_status, new_status, notes, changed_at, changed_by
		 FROM order_status_history
		 WHERE order_id = $1
		 ORDER BY changed_at DESC, id DESC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select status history: %w", err)
	}
	defer rows.Close()

	var res []model.StatusHistory
	for rows.Next() {
		var (
			h    model.StatusHistory
			prev *string
			next string
		)
		if err := rows.Scan(&h.ID, &h.OrderID, &prev, &next, &h.Notes, &h.ChangedAt, &h.ChangedBy); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		if prev != nil {
			ps := model.OrderStatus(*prev)
			h.PreviousStatus = &ps
		}
		h.NewStatus = model.OrderStatus(next)
		res = append(res, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
