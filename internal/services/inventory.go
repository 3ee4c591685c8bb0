package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// maxAdjustAttempts bounds compare-and-set retries when an adjustment races
// with reservations on the same product.
const maxAdjustAttempts = 5

var errStockChanged = errors.New("stock changed during adjustment")

// InventoryService is the only writer of products.stock_quantity. Every
// mutation is a guarded UPDATE plus a ledger entry in one transaction.
type InventoryService struct {
	store    *store.Store
	ledger   *StockLedger
	metrics  *metrics.AppMetrics
	onChange func(productID int64)
}

// NewInventoryService creates a new inventory service
func NewInventoryService(s *store.Store, ledger *StockLedger, m *metrics.AppMetrics) *InventoryService {
	return &InventoryService{
		store:    s,
		ledger:   ledger,
		metrics:  m,
		onChange: func(int64) {},
	}
}

// OnStockChange registers a callback run after every committed stock change
func (s *InventoryService) OnStockChange(fn func(productID int64)) {
	s.onChange = fn
}

// GetProduct reads a product with its live stock level
func (s *InventoryService) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	p, err := s.store.Products().FindByID(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &ProductNotFoundError{ProductID: productID}
	}
	return p, err
}

// Reserve decrements stock by quantity or fails with *InsufficientStockError
func (s *InventoryService) Reserve(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		return s.reserveTx(ctx, tx, productID, quantity)
	})

	var insufficient *InsufficientStockError
	switch {
	case err == nil:
		s.metrics.RecordReservation(ctx, productID, quantity, "reserved")
		log.Printf("[INVENTORY] Reserved product_id=%d quantity=%d", productID, quantity)
		s.onChange(productID)
	case errors.As(err, &insufficient):
		s.metrics.RecordReservation(ctx, productID, quantity, "insufficient")
		log.Printf("[INVENTORY] Insufficient stock: product_id=%d requested=%d available=%d", productID, quantity, insufficient.Available)
	default:
		s.metrics.RecordReservation(ctx, productID, quantity, "error")
	}
	return err
}

// ReserveStock reports false rather than an error when stock is short;
// storage failures still come back as errors.
func (s *InventoryService) ReserveStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	err := s.Reserve(ctx, productID, quantity)
	if errors.Is(err, ErrInsufficientStock) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *InventoryService) reserveTx(ctx context.Context, tx *store.Tx, productID int64, quantity int) error {
	ok, err := tx.Products.DecrementStock(ctx, productID, quantity)
	if err != nil {
		return err
	}
	if !ok {
		p, err := tx.Products.FindByID(ctx, productID)
		if errors.Is(err, store.ErrNotFound) {
			return &ProductNotFoundError{ProductID: productID}
		}
		if err != nil {
			return err
		}
		return &InsufficientStockError{ProductID: productID, Requested: quantity, Available: p.StockQuantity}
	}
	return s.ledger.record(ctx, tx, productID, quantity, models.MovementOut, reasonReserved)
}

// ReleaseStock returns quantity to stock. It is not idempotent: callers must
// release a given reservation once.
func (s *InventoryService) ReleaseStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, ErrInvalidQuantity
	}
	if err := s.release(ctx, productID, quantity, reasonReleased); err != nil {
		return false, err
	}
	return true, nil
}

func (s *InventoryService) release(ctx context.Context, productID int64, quantity int, reason string) error {
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		return s.releaseTx(ctx, tx, productID, quantity, reason)
	})
	if err != nil {
		return err
	}

	log.Printf("[INVENTORY] Released product_id=%d quantity=%d (%s)", productID, quantity, reason)
	s.onChange(productID)
	return nil
}

func (s *InventoryService) releaseTx(ctx context.Context, tx *store.Tx, productID int64, quantity int, reason string) error {
	ok, err := tx.Products.IncrementStock(ctx, productID, quantity)
	if err != nil {
		return err
	}
	if !ok {
		return &ProductNotFoundError{ProductID: productID}
	}
	return s.ledger.record(ctx, tx, productID, quantity, models.MovementIn, reason)
}

// AdjustStock sets stock to an absolute quantity and logs the delta
func (s *InventoryService) AdjustStock(ctx context.Context, productID int64, newQuantity int, reason string) (bool, error) {
	if newQuantity < 0 {
		return false, ErrInvalidQuantity
	}
	if reason == "" {
		reason = reasonAdjustment
	}

	var delta int
	var err error
	for attempt := 1; attempt <= maxAdjustAttempts; attempt++ {
		err = s.store.InTx(ctx, func(tx *store.Tx) error {
			p, err := tx.Products.FindByID(ctx, productID)
			if errors.Is(err, store.ErrNotFound) {
				return &ProductNotFoundError{ProductID: productID}
			}
			if err != nil {
				return err
			}

			delta = newQuantity - p.StockQuantity
			if delta != 0 {
				ok, err := tx.Products.CompareAndSetStock(ctx, productID, p.StockQuantity, newQuantity)
				if err != nil {
					return err
				}
				if !ok {
					return errStockChanged
				}
			}
			return s.ledger.record(ctx, tx, productID, delta, models.MovementAdjustment, reason)
		})
		if !errors.Is(err, errStockChanged) {
			break
		}
		log.Printf("[INVENTORY] Adjustment raced on product_id=%d, retrying (attempt %d)", productID, attempt)
	}
	if err != nil {
		return false, err
	}

	log.Printf("[INVENTORY] Adjusted product_id=%d to %d (delta=%d, reason=%q)", productID, newQuantity, delta, reason)
	s.metrics.RecordInventoryLevel(ctx, productID, newQuantity)
	s.onChange(productID)
	return true, nil
}

// GetLowStockProducts lists active products at or below threshold. A
// threshold of zero or less uses each product's own low stock threshold.
func (s *InventoryService) GetLowStockProducts(ctx context.Context, threshold int) ([]models.Product, error) {
	return s.store.Products().FindLowStock(ctx, threshold)
}

// GetStockHistory returns the ledger for a product, most recent first
func (s *InventoryService) GetStockHistory(ctx context.Context, productID int64, limit int) ([]models.StockMovement, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.ledger.GetHistory(ctx, productID, limit)
}

// MonitorStockLevels periodically records low stock gauges until ctx is done
func (s *InventoryService) MonitorStockLevels(ctx context.Context, interval time.Duration, threshold int) {
	if interval <= 0 {
		log.Printf("[INVENTORY] Stock monitor disabled (interval=%s)", interval)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.recordStockLevels(ctx, threshold); err != nil {
				log.Printf("[INVENTORY] Stock level check failed: %v", err)
			}
		}
	}
}

func (s *InventoryService) recordStockLevels(ctx context.Context, threshold int) error {
	low, err := s.GetLowStockProducts(ctx, threshold)
	if err != nil {
		return fmt.Errorf("failed to list low stock products: %w", err)
	}

	s.metrics.LowStockProducts.Record(ctx, int64(len(low)), metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int("threshold", threshold),
	})...))
	for _, p := range low {
		s.metrics.RecordInventoryLevel(ctx, p.ID, p.StockQuantity)
	}
	if len(low) > 0 {
		log.Printf("[INVENTORY] %d product(s) at or below low stock threshold", len(low))
	}
	return nil
}
