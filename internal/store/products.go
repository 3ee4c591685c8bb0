package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/db"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
)

const productColumns = "id, sku, name, description, category, price, stock_quantity, low_stock_threshold, is_active, created_at, updated_at"

// ProductRepo reads and writes the products table
type ProductRepo struct {
	repo
}

func scanProduct(row scanner) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Price,
		&p.StockQuantity, &p.LowStockThreshold, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a product and fills in its ID and timestamps
func (r *ProductRepo) Create(ctx context.Context, p *models.Product) error {
	start := time.Now()
	now := r.now()

	query := "INSERT INTO products (sku, name, description, category, price, stock_quantity, low_stock_threshold, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	result, err := r.exec.ExecContext(ctx, query, p.SKU, p.Name, p.Description, p.Category, p.Price,
		p.StockQuantity, p.LowStockThreshold, p.IsActive, now, now)
	r.metrics.RecordDBQuery(ctx, "INSERT", "products", query, start, err == nil)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("product sku %q: %w", p.SKU, ErrDuplicate)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get product ID: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// FindByID returns a product by ID
func (r *ProductRepo) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	start := time.Now()
	query := "SELECT " + productColumns + " FROM products WHERE id = ?"
	p, err := scanProduct(r.exec.QueryRowContext(ctx, query, id))
	r.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || errors.Is(err, sql.ErrNoRows))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// List returns a page of products ordered by ID
func (r *ProductRepo) List(ctx context.Context, limit, offset int) ([]models.Product, error) {
	limit, offset = clampPage(limit, offset)
	query := "SELECT " + productColumns + " FROM products ORDER BY id LIMIT ? OFFSET ?"
	return r.query(ctx, query, limit, offset)
}

// FindLowStock returns active products at or below threshold. A threshold
// of zero or less compares against each product's own low_stock_threshold.
func (r *ProductRepo) FindLowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	if threshold > 0 {
		query := "SELECT " + productColumns + " FROM products WHERE is_active = 1 AND stock_quantity <= ? ORDER BY stock_quantity, id"
		return r.query(ctx, query, threshold)
	}
	query := "SELECT " + productColumns + " FROM products WHERE is_active = 1 AND stock_quantity <= low_stock_threshold ORDER BY stock_quantity, id"
	return r.query(ctx, query)
}

func (r *ProductRepo) query(ctx context.Context, query string, args ...any) ([]models.Product, error) {
	start := time.Now()
	rows, err := r.exec.QueryContext(ctx, query, args...)
	r.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// DecrementStock subtracts quantity only if enough stock remains. It reports
// false when the guard did not match (insufficient stock or unknown product).
func (r *ProductRepo) DecrementStock(ctx context.Context, id int64, quantity int) (bool, error) {
	query := "UPDATE products SET stock_quantity = stock_quantity - ?, updated_at = ? WHERE id = ? AND stock_quantity >= ?"
	ok, err := affectedOne(ctx, r.repo, "UPDATE", "products", query, time.Now(), quantity, r.now(), id, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return ok, nil
}

// IncrementStock adds quantity; false means the product does not exist
func (r *ProductRepo) IncrementStock(ctx context.Context, id int64, quantity int) (bool, error) {
	query := "UPDATE products SET stock_quantity = stock_quantity + ?, updated_at = ? WHERE id = ?"
	ok, err := affectedOne(ctx, r.repo, "UPDATE", "products", query, time.Now(), quantity, r.now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to increment stock: %w", err)
	}
	return ok, nil
}

// CompareAndSetStock writes newQuantity only if the row still holds expected
func (r *ProductRepo) CompareAndSetStock(ctx context.Context, id int64, expected, newQuantity int) (bool, error) {
	query := "UPDATE products SET stock_quantity = ?, updated_at = ? WHERE id = ? AND stock_quantity = ?"
	ok, err := affectedOne(ctx, r.repo, "UPDATE", "products", query, time.Now(), newQuantity, r.now(), id, expected)
	if err != nil {
		return false, fmt.Errorf("failed to set stock: %w", err)
	}
	return ok, nil
}
