package services

import (
	"context"
	"fmt"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
)

const (
	reasonReserved   = "Stock Reserved"
	reasonReleased   = "Stock Released"
	reasonAdjustment = "Manual adjustment"
	reasonRollback   = "Checkout rollback"
	reasonCancelled  = "Order cancelled"
)

// StockLedger is the append-only audit trail of inventory movements. Only
// InventoryService records to it, always inside the transaction that
// changed the stock.
type StockLedger struct {
	store *store.Store
}

// NewStockLedger creates a ledger over the given store
func NewStockLedger(s *store.Store) *StockLedger {
	return &StockLedger{store: s}
}

func (l *StockLedger) record(ctx context.Context, tx *store.Tx, productID int64, quantity int, typ models.MovementType, reason string) error {
	m := &models.StockMovement{
		ProductID: productID,
		Quantity:  quantity,
		Type:      typ,
		Reason:    reason,
	}
	if err := tx.Ledger.Append(ctx, m); err != nil {
		return fmt.Errorf("failed to record %s movement for product %d: %w", typ, productID, err)
	}
	return nil
}

// GetHistory returns a product's stock movements, most recent first
func (l *StockLedger) GetHistory(ctx context.Context, productID int64, limit int) ([]models.StockMovement, error) {
	return l.store.Ledger().FindByProduct(ctx, productID, limit)
}
