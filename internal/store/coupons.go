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

const couponColumns = "id, code, discount_type, discount_value, minimum_order_amount, usage_limit, times_used, expiration_date, is_active, created_at, updated_at"

// CouponRepo reads and writes the coupons table
type CouponRepo struct {
	repo
}

func scanCoupon(row scanner) (*models.Coupon, error) {
	var (
		c          models.Coupon
		usageLimit sql.NullInt64
		expiresAt  sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinimumOrderAmount,
		&usageLimit, &c.TimesUsed, &expiresAt, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if usageLimit.Valid {
		limit := usageLimit.Int64
		c.UsageLimit = &limit
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		c.ExpirationDate = &t
	}
	return &c, nil
}

// Create inserts a coupon; a taken code yields ErrDuplicate
func (r *CouponRepo) Create(ctx context.Context, c *models.Coupon) error {
	start := time.Now()
	now := r.now()

	var usageLimit sql.NullInt64
	if c.UsageLimit != nil {
		usageLimit = sql.NullInt64{Int64: *c.UsageLimit, Valid: true}
	}
	var expiresAt sql.NullTime
	if c.ExpirationDate != nil {
		expiresAt = sql.NullTime{Time: c.ExpirationDate.UTC(), Valid: true}
	}

	query := "INSERT INTO coupons (code, discount_type, discount_value, minimum_order_amount, usage_limit, times_used, expiration_date, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	result, err := r.exec.ExecContext(ctx, query, c.Code, string(c.DiscountType), c.DiscountValue, c.MinimumOrderAmount,
		usageLimit, c.TimesUsed, expiresAt, c.IsActive, now, now)
	r.metrics.RecordDBQuery(ctx, "INSERT", "coupons", query, start, err == nil)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("coupon %q: %w", c.Code, ErrDuplicate)
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get coupon ID: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// FindByCode returns the coupon with the given code
func (r *CouponRepo) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	start := time.Now()
	query := "SELECT " + couponColumns + " FROM coupons WHERE code = ?"
	c, err := scanCoupon(r.exec.QueryRowContext(ctx, query, code))
	r.metrics.RecordDBQuery(ctx, "SELECT", "coupons", query, start, err == nil || errors.Is(err, sql.ErrNoRows))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("coupon %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return c, nil
}

// IncrementUsage adds one use while the coupon is active and under its
// limit. False means the guard lost: limit reached or coupon deactivated.
func (r *CouponRepo) IncrementUsage(ctx context.Context, id int64) (bool, error) {
	query := "UPDATE coupons SET times_used = times_used + 1, updated_at = ? WHERE id = ? AND is_active = 1 AND (usage_limit IS NULL OR times_used < usage_limit)"
	ok, err := affectedOne(ctx, r.repo, "UPDATE", "coupons", query, time.Now(), r.now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to increment coupon usage: %w", err)
	}
	return ok, nil
}

// DecrementUsage gives back one use, never going below zero
func (r *CouponRepo) DecrementUsage(ctx context.Context, id int64) (bool, error) {
	query := "UPDATE coupons SET times_used = times_used - 1, updated_at = ? WHERE id = ? AND times_used > 0"
	ok, err := affectedOne(ctx, r.repo, "UPDATE", "coupons", query, time.Now(), r.now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to decrement coupon usage: %w", err)
	}
	return ok, nil
}

// Deactivate marks a coupon inactive; false means no such code
func (r *CouponRepo) Deactivate(ctx context.Context, code string) (bool, error) {
	query := "UPDATE coupons SET is_active = 0, updated_at = ? WHERE code = ?"
	ok, err := affectedOne(ctx, r.repo, "UPDATE", "coupons", query, time.Now(), r.now(), code)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate coupon: %w", err)
	}
	return ok, nil
}
