package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/cartstore"
	"github.com/SigNoz/ecommerce-checkout/internal/db/dbtest"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/services"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"github.com/SigNoz/ecommerce-checkout/pkg/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		TaxRate:               decimal.RequireFromString("0.10"),
		ShippingFlatRate:      decimal.RequireFromString("5.00"),
		FreeShippingThreshold: decimal.RequireFromString("1000.00"),
		CheckoutTimeout:       10 * time.Second,
		CompensationTimeout:   5 * time.Second,
		LowStockThreshold:     10,
		ProductCacheTTL:       time.Minute,
	}
	m := metrics.NewNoopMetrics()
	s := store.New(dbtest.Open(t), m)

	ledger := services.NewStockLedger(s)
	inventory := services.NewInventoryService(s, ledger, m)
	products := services.NewProductService(s, ledger, m, cfg.ProductCacheTTL)
	inventory.OnStockChange(products.Invalidate)
	coupons := services.NewCouponService(s, m)
	orders := services.NewOrderService(s, inventory, coupons, m, services.SettingsFromConfig(cfg))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	app := NewApp(cfg, m, products, inventory, coupons, services.NewCartService(inventory, m), orders, cartstore.NewRedisStore(client, time.Hour))
	r := mux.NewRouter()
	app.SetupRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func createProduct(t *testing.T, srv *httptest.Server, sku, price string, stock int) models.Product {
	t.Helper()
	var p models.Product
	status := do(t, srv, "POST", "/api/v1/products", models.CreateProductRequest{
		SKU: sku, Name: "Product " + sku, Price: decimal.RequireFromString(price), StockQuantity: stock, LowStockThreshold: 2,
	}, &p)
	require.Equal(t, http.StatusCreated, status)
	return p
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, do(t, srv, "GET", "/health", nil, &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestCheckoutFlow(t *testing.T) {
	srv := newTestServer(t)
	mug := createProduct(t, srv, "MUG", "50.00", 10)
	lamp := createProduct(t, srv, "LAMP", "100.00", 2)

	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/api/v1/coupons", models.CreateCouponRequest{
		Code: "SAVE10", DiscountType: models.DiscountPercentage, DiscountValue: decimal.NewFromInt(10),
	}, nil))

	var cart models.CartResponse
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/v1/cart/add?user_id=5", models.AddToCartRequest{ProductID: mug.ID, Quantity: 2}, &cart))
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/v1/cart/add?user_id=5", models.AddToCartRequest{ProductID: lamp.ID, Quantity: 1}, &cart))
	assert.True(t, cart.Total.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 3, cart.ItemCount)

	var validation models.CouponValidation
	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/v1/coupons/validate?user_id=5", map[string]string{"code": "save10"}, &validation))
	assert.True(t, validation.IsValid)
	assert.True(t, validation.DiscountAmount.Equal(decimal.NewFromInt(20)))

	var order models.Order
	status := do(t, srv, "POST", "/api/v1/orders?user_id=5", models.CreateOrderRequest{
		ShippingAddress: models.Address{Name: "Ada", Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
		CouponCode:      "SAVE10",
	}, &order)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(205)))

	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/api/v1/cart?user_id=5", nil, &cart))
	assert.Empty(t, cart.Cart.Items, "cart cleared after checkout")

	var p models.Product
	require.Equal(t, http.StatusOK, do(t, srv, "GET", fmt.Sprintf("/api/v1/products/%d", lamp.ID), nil, &p))
	assert.Equal(t, 1, p.StockQuantity)

	var cancelled models.Order
	require.Equal(t, http.StatusOK, do(t, srv, "POST", fmt.Sprintf("/api/v1/orders/%d/cancel", order.ID), map[string]string{"reason": "duplicate"}, &cancelled))
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	require.Equal(t, http.StatusOK, do(t, srv, "GET", fmt.Sprintf("/api/v1/products/%d", lamp.ID), nil, &p))
	assert.Equal(t, 2, p.StockQuantity)

	var history []models.StockMovement
	require.Equal(t, http.StatusOK, do(t, srv, "GET", fmt.Sprintf("/api/v1/products/%d/history", lamp.ID), nil, &history))
	require.Len(t, history, 3)
	assert.Equal(t, models.MovementIn, history[0].Type)

	var orders []models.Order
	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/api/v1/orders?user_id=5", nil, &orders))
	assert.Len(t, orders, 1)
}

func TestAddToCartInsufficientStock(t *testing.T) {
	srv := newTestServer(t)
	p := createProduct(t, srv, "RARE", "10.00", 1)

	var body errorBody
	status := do(t, srv, "POST", "/api/v1/cart/add", models.AddToCartRequest{ProductID: p.ID, Quantity: 3}, &body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Code)
	assert.EqualValues(t, p.ID, body.Details["product_id"])
	assert.EqualValues(t, 1, body.Details["available"])
}

func TestCheckoutErrors(t *testing.T) {
	srv := newTestServer(t)
	p := createProduct(t, srv, "MUG", "10.00", 5)
	past := time.Now().Add(-time.Hour)
	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/api/v1/coupons", models.CreateCouponRequest{
		Code: "OLD", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(1), ExpirationDate: &past,
	}, nil))

	var body errorBody
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "POST", "/api/v1/orders", models.CreateOrderRequest{}, &body))
	assert.Equal(t, "EMPTY_ORDER", body.Code)

	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/v1/cart/add", models.AddToCartRequest{ProductID: p.ID, Quantity: 2}, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, srv, "POST", "/api/v1/orders", models.CreateOrderRequest{CouponCode: "OLD"}, &body))
	assert.Equal(t, "COUPON_EXPIRED", body.Code)
	assert.Equal(t, "OLD", body.Details["coupon_code"])

	var product models.Product
	require.Equal(t, http.StatusOK, do(t, srv, "GET", fmt.Sprintf("/api/v1/products/%d", p.ID), nil, &product))
	assert.Equal(t, 5, product.StockQuantity, "stock released after coupon rejection")

	var cart models.CartResponse
	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/api/v1/cart", nil, &cart))
	assert.Len(t, cart.Cart.Items, 1, "cart kept when checkout fails")
}

func TestOrderStateErrors(t *testing.T) {
	srv := newTestServer(t)
	p := createProduct(t, srv, "MUG", "10.00", 5)

	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/v1/cart/add", models.AddToCartRequest{ProductID: p.ID, Quantity: 1}, nil))
	var order models.Order
	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/api/v1/orders", models.CreateOrderRequest{}, &order))

	var body errorBody
	path := fmt.Sprintf("/api/v1/orders/%d/status", order.ID)
	assert.Equal(t, http.StatusConflict, do(t, srv, "PUT", path, map[string]string{"status": "DELIVERED"}, &body))
	assert.Equal(t, "INVALID_ORDER_STATE", body.Code)

	for _, status := range []string{"CONFIRMED", "PROCESSING", "SHIPPED"} {
		require.Equal(t, http.StatusOK, do(t, srv, "PUT", path, map[string]string{"status": status}, nil))
	}
	assert.Equal(t, http.StatusConflict, do(t, srv, "POST", fmt.Sprintf("/api/v1/orders/%d/cancel", order.ID), nil, &body))
	assert.Equal(t, "SHIPPED", body.Details["from"])

	assert.Equal(t, http.StatusNotFound, do(t, srv, "GET", "/api/v1/orders/9999", nil, &body))
	assert.Equal(t, "ORDER_NOT_FOUND", body.Code)
}

func TestAdjustStockAndLowStock(t *testing.T) {
	srv := newTestServer(t)
	p := createProduct(t, srv, "MUG", "10.00", 50)

	var updated models.Product
	require.Equal(t, http.StatusOK, do(t, srv, "PUT", fmt.Sprintf("/api/v1/products/%d/stock", p.ID), map[string]any{"quantity": 3, "reason": "damaged"}, &updated))
	assert.Equal(t, 3, updated.StockQuantity)

	var low []models.Product
	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/api/v1/products/low-stock", nil, &low))
	require.Len(t, low, 1)
	assert.Equal(t, p.ID, low[0].ID)

	var body errorBody
	assert.Equal(t, http.StatusBadRequest, do(t, srv, "PUT", fmt.Sprintf("/api/v1/products/%d/stock", p.ID), map[string]any{}, &body))
	assert.Equal(t, http.StatusNotFound, do(t, srv, "GET", "/api/v1/products/424242", nil, &body))
	assert.Equal(t, "PRODUCT_NOT_FOUND", body.Code)
}

func TestCouponAdmin(t *testing.T) {
	srv := newTestServer(t)
	req := models.CreateCouponRequest{Code: "spring", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(5)}

	var coupon models.Coupon
	require.Equal(t, http.StatusCreated, do(t, srv, "POST", "/api/v1/coupons", req, &coupon))
	assert.Equal(t, "SPRING", coupon.Code)

	var body errorBody
	assert.Equal(t, http.StatusConflict, do(t, srv, "POST", "/api/v1/coupons", req, &body))
	assert.Equal(t, "COUPON_EXISTS", body.Code)

	require.Equal(t, http.StatusOK, do(t, srv, "POST", "/api/v1/coupons/SPRING/deactivate", nil, nil))
	require.Equal(t, http.StatusOK, do(t, srv, "GET", "/api/v1/coupons/spring", nil, &coupon))
	assert.False(t, coupon.IsActive)

	assert.Equal(t, http.StatusNotFound, do(t, srv, "GET", "/api/v1/coupons/NOPE", nil, &body))
	assert.Equal(t, "COUPON_NOT_FOUND", body.Code)
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest("GET", "/x", nil), errors.New("dial tcp 10.0.0.1:3306: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "INTERNAL", body.Code)
	assert.NotContains(t, body.Error, "10.0.0.1")
}
