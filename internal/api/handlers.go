package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/middleware"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/services"
	"github.com/SigNoz/ecommerce-checkout/pkg/config"
	"github.com/gorilla/mux"
)

// CartStore persists session carts between requests
type CartStore interface {
	Get(ctx context.Context, userID int64) (models.Cart, error)
	Save(ctx context.Context, cart models.Cart) error
	Delete(ctx context.Context, userID int64) error
}

// App holds application dependencies
type App struct {
	config           *config.Config
	metrics          *metrics.AppMetrics
	productService   *services.ProductService
	inventoryService *services.InventoryService
	couponService    *services.CouponService
	cartService      *services.CartService
	orderService     *services.OrderService
	carts            CartStore
}

// NewApp creates a new application instance
func NewApp(
	cfg *config.Config,
	m *metrics.AppMetrics,
	ps *services.ProductService,
	is *services.InventoryService,
	cps *services.CouponService,
	cs *services.CartService,
	os *services.OrderService,
	carts CartStore,
) *App {
	return &App{
		config:           cfg,
		metrics:          m,
		productService:   ps,
		inventoryService: is,
		couponService:    cps,
		cartService:      cs,
		orderService:     os,
		carts:            carts,
	}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	// Middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.ErrorHandlerMiddleware)
	r.Use(middleware.MetricsMiddleware(a.metrics))

	// API Routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Products
	api.HandleFunc("/products", a.ListProductsHandler).Methods("GET")
	api.HandleFunc("/products", a.CreateProductHandler).Methods("POST")
	api.HandleFunc("/products/low-stock", a.LowStockHandler).Methods("GET")
	api.HandleFunc("/products/{id:[0-9]+}", a.GetProductHandler).Methods("GET")
	api.HandleFunc("/products/{id:[0-9]+}/history", a.StockHistoryHandler).Methods("GET")
	api.HandleFunc("/products/{id:[0-9]+}/stock", a.AdjustStockHandler).Methods("PUT")

	// Cart
	api.HandleFunc("/cart", a.GetCartHandler).Methods("GET")
	api.HandleFunc("/cart/add", a.AddToCartHandler).Methods("POST")
	api.HandleFunc("/cart/items/{productId:[0-9]+}", a.UpdateCartItemHandler).Methods("PUT")
	api.HandleFunc("/cart/remove", a.RemoveFromCartHandler).Methods("POST")
	api.HandleFunc("/cart/validate", a.ValidateCartHandler).Methods("POST")

	// Coupons
	api.HandleFunc("/coupons", a.CreateCouponHandler).Methods("POST")
	api.HandleFunc("/coupons/validate", a.ValidateCouponHandler).Methods("POST")
	api.HandleFunc("/coupons/{code}", a.GetCouponHandler).Methods("GET")
	api.HandleFunc("/coupons/{code}/deactivate", a.DeactivateCouponHandler).Methods("POST")

	// Orders
	api.HandleFunc("/orders", a.CreateOrderHandler).Methods("POST")
	api.HandleFunc("/orders", a.ListOrdersHandler).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", a.GetOrderHandler).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}/status", a.UpdateOrderStatusHandler).Methods("PUT")
	api.HandleFunc("/orders/{id:[0-9]+}/cancel", a.CancelOrderHandler).Methods("POST")

	// Health
	r.HandleFunc("/health", a.HealthHandler).Methods("GET")
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return false
	}
	return true
}

// userID reads user_id from the query string, defaulting to 1
func userID(r *http.Request) int64 {
	if uid := r.URL.Query().Get("user_id"); uid != "" {
		if parsed, err := strconv.ParseInt(uid, 10, 64); err == nil {
			return parsed
		}
	}
	return 1
}

func pathID(w http.ResponseWriter, r *http.Request, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid " + label + " ID", Code: "INVALID_REQUEST"})
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
