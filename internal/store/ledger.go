package store

import (
	"context"
	"fmt"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
)

// LedgerRepo appends to and reads the stock_movements table. It has no
// update or delete.
type LedgerRepo struct {
	repo
}

// Append records a movement and fills in its ID and timestamp
func (r *LedgerRepo) Append(ctx context.Context, m *models.StockMovement) error {
	start := time.Now()
	now := r.now()

	query := "INSERT INTO stock_movements (product_id, quantity, type, reason, created_at) VALUES (?, ?, ?, ?, ?)"
	result, err := r.exec.ExecContext(ctx, query, m.ProductID, m.Quantity, string(m.Type), m.Reason, now)
	r.metrics.RecordDBQuery(ctx, "INSERT", "stock_movements", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to append stock movement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get stock movement ID: %w", err)
	}
	m.ID = id
	m.CreatedAt = now
	return nil
}

// FindByProduct returns a product's movements, most recent first. A limit
// of zero or less returns the full history.
func (r *LedgerRepo) FindByProduct(ctx context.Context, productID int64, limit int) ([]models.StockMovement, error) {
	start := time.Now()
	query := "SELECT id, product_id, quantity, type, reason, created_at FROM stock_movements WHERE product_id = ? ORDER BY created_at DESC, id DESC"
	args := []any{productID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.exec.QueryContext(ctx, query, args...)
	r.metrics.RecordDBQuery(ctx, "SELECT", "stock_movements", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	movements := []models.StockMovement{}
	for rows.Next() {
		var m models.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Quantity, &m.Type, &m.Reason, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
