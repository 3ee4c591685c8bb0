// Package store implements the product, coupon, order and stock ledger
// repositories over database/sql. Every statement is portable between the
// MySQL and SQLite dialects.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/db"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when an insert violates a unique key
	ErrDuplicate = errors.New("store: duplicate")
)

// Store hands out repositories bound either to the connection pool or to a
// single transaction.
type Store struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	now     func() time.Time
}

// New creates a store over the given database
func New(database *db.DB, m *metrics.AppMetrics) *Store {
	return &Store{
		db:      database,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source, for tests
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Now returns the store's current time
func (s *Store) Now() time.Time {
	return s.now()
}

// Tx groups repositories that share one database transaction
type Tx struct {
	Products *ProductRepo
	Coupons  *CouponRepo
	Orders   *OrderRepo
	Ledger   *LedgerRepo
}

func (s *Store) base(exec db.Executor) repo {
	return repo{exec: exec, metrics: s.metrics, now: s.now}
}

// Products returns a pool-bound product repository
func (s *Store) Products() *ProductRepo { return &ProductRepo{s.base(s.db)} }

// Coupons returns a pool-bound coupon repository
func (s *Store) Coupons() *CouponRepo { return &CouponRepo{s.base(s.db)} }

// Orders returns a pool-bound order repository
func (s *Store) Orders() *OrderRepo { return &OrderRepo{s.base(s.db)} }

// Ledger returns a pool-bound stock ledger repository
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s.base(s.db)} }

// InTx runs fn inside a transaction, committing when fn returns nil
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	b := s.base(sqlTx)
	if err := fn(&Tx{
		Products: &ProductRepo{b},
		Coupons:  &CouponRepo{b},
		Orders:   &OrderRepo{b},
		Ledger:   &LedgerRepo{b},
	}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type repo struct {
	exec    db.Executor
	metrics *metrics.AppMetrics
	now     func() time.Time
}

// scanner is the common subset of *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func affectedOne(ctx context.Context, r repo, op, table, query string, start time.Time, args ...any) (bool, error) {
	result, err := r.exec.ExecContext(ctx, query, args...)
	r.metrics.RecordDBQuery(ctx, op, table, query, start, err == nil)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}
