package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/db/dbtest"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var skuSeq atomic.Int64

type testEnv struct {
	store     *store.Store
	ledger    *StockLedger
	inventory *InventoryService
	coupons   *CouponService
	orders    *OrderService
	products  *ProductService
	carts     *CartService
}

func testSettings() OrderSettings {
	return OrderSettings{
		TaxRate:               decimal.RequireFromString("0.10"),
		ShippingFlatRate:      decimal.RequireFromString("5.00"),
		FreeShippingThreshold: decimal.RequireFromString("1000.00"),
		CheckoutTimeout:       10 * time.Second,
		CompensationTimeout:   5 * time.Second,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	m := metrics.NewNoopMetrics()
	s := store.New(dbtest.Open(t), m)

	ledger := NewStockLedger(s)
	inventory := NewInventoryService(s, ledger, m)
	coupons := NewCouponService(s, m)
	return &testEnv{
		store:     s,
		ledger:    ledger,
		inventory: inventory,
		coupons:   coupons,
		orders:    NewOrderService(s, inventory, coupons, m, testSettings()),
		products:  NewProductService(s, ledger, m, time.Minute),
		carts:     NewCartService(inventory, m),
	}
}

func (e *testEnv) seedProduct(t *testing.T, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		SKU:               fmt.Sprintf("SKU-%d", skuSeq.Add(1)),
		Name:              "Product",
		Category:          "tools",
		Price:             decimal.RequireFromString(price),
		StockQuantity:     stock,
		LowStockThreshold: 5,
		IsActive:          true,
	}
	require.NoError(t, e.store.Products().Create(context.Background(), p))
	return p
}

func (e *testEnv) seedCoupon(t *testing.T, c models.CreateCouponRequest) *models.Coupon {
	t.Helper()
	coupon, err := e.coupons.CreateCoupon(context.Background(), c)
	require.NoError(t, err)
	return coupon
}

func (e *testEnv) stock(t *testing.T, productID int64) int {
	t.Helper()
	p, err := e.store.Products().FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQuantity
}

func (e *testEnv) timesUsed(t *testing.T, code string) int64 {
	t.Helper()
	c, err := e.store.Coupons().FindByCode(context.Background(), code)
	require.NoError(t, err)
	return c.TimesUsed
}

func limit(n int64) *int64 { return &n }
