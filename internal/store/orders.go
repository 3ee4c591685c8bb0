package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/db"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
)

const orderColumns = "id, user_id, order_number, status, subtotal, tax, shipping, discount_code, discount_amount, total, shipping_address, cancel_reason, created_at, updated_at"

// OrderRepo reads and writes orders and their line items
type OrderRepo struct {
	repo
}

func scanOrder(row scanner) (*models.Order, error) {
	var (
		o       models.Order
		address string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.Subtotal, &o.Tax, &o.Shipping,
		&o.DiscountCode, &o.DiscountAmount, &o.Total, &address, &o.CancelReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if address != "" {
		if err := json.Unmarshal([]byte(address), &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("failed to decode shipping address: %w", err)
		}
	}
	return &o, nil
}

// Create inserts the order and its items. Call it inside InTx so the order
// never exists without its items.
func (r *OrderRepo) Create(ctx context.Context, o *models.Order) error {
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}

	start := time.Now()
	now := r.now()
	query := "INSERT INTO orders (user_id, order_number, status, subtotal, tax, shipping, discount_code, discount_amount, total, shipping_address, cancel_reason, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	result, err := r.exec.ExecContext(ctx, query, o.UserID, o.OrderNumber, string(o.Status), o.Subtotal, o.Tax, o.Shipping,
		o.DiscountCode, o.DiscountAmount, o.Total, string(address), o.CancelReason, now, now)
	r.metrics.RecordDBQuery(ctx, "INSERT", "orders", query, start, err == nil)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("order number %q: %w", o.OrderNumber, ErrDuplicate)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	orderID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get order ID: %w", err)
	}

	itemQuery := "INSERT INTO order_items (order_id, product_id, name, quantity, price) VALUES (?, ?, ?, ?, ?)"
	for i := range o.Items {
		item := &o.Items[i]
		start = time.Now()
		res, err := r.exec.ExecContext(ctx, itemQuery, orderID, item.ProductID, item.Name, item.Quantity, item.Price)
		r.metrics.RecordDBQuery(ctx, "INSERT", "order_items", itemQuery, start, err == nil)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
		if item.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get order item ID: %w", err)
		}
		item.OrderID = orderID
	}

	o.ID = orderID
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// FindByID returns an order with its items
func (r *OrderRepo) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	return r.findOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", id)
}

// FindByOrderNumber returns an order with its items
func (r *OrderRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE order_number = ?", orderNumber)
}

func (r *OrderRepo) findOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	start := time.Now()
	o, err := scanOrder(r.exec.QueryRowContext(ctx, query, arg))
	r.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil || errors.Is(err, sql.ErrNoRows))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

// FindByUserID returns a page of the user's orders, newest first
func (r *OrderRepo) FindByUserID(ctx context.Context, userID int64, limit, offset int) ([]models.Order, error) {
	limit, offset = clampPage(limit, offset)

	start := time.Now()
	query := "SELECT " + orderColumns + " FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.exec.QueryContext(ctx, query, userID, limit, offset)
	r.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Items are loaded after the cursor is closed so a single-connection
	// pool is not asked for a second connection.
	for i := range orders {
		if orders[i].Items, err = r.items(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *OrderRepo) items(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	start := time.Now()
	query := "SELECT id, order_id, product_id, name, quantity, price FROM order_items WHERE order_id = ? ORDER BY id"
	rows, err := r.exec.QueryContext(ctx, query, orderID)
	r.metrics.RecordDBQuery(ctx, "SELECT", "order_items", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateStatus moves an order from one status to another. False means the
// order was not in the from status when the statement ran.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id int64, from, to models.OrderStatus, reason string) (bool, error) {
	query := "UPDATE orders SET status = ?, cancel_reason = ?, updated_at = ? WHERE id = ? AND status = ?"
	ok, err := affectedOne(ctx, r.repo, "UPDATE", "orders", query, time.Now(), string(to), reason, r.now(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	return ok, nil
}
