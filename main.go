package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/api"
	"github.com/SigNoz/ecommerce-checkout/internal/cartstore"
	"github.com/SigNoz/ecommerce-checkout/internal/db"
	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/services"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"github.com/SigNoz/ecommerce-checkout/pkg/config"
	"github.com/gorilla/mux"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize OpenTelemetry metrics
	ctx := context.Background()
	appMetrics, meterProvider, err := metrics.InitMetrics(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down meter provider: %v", err)
		}
	}()

	// Initialize database
	database, err := db.NewDB(cfg.DBDriver, cfg.GetDSN(), meterProvider, cfg.OTELServiceName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		log.Fatalf("Failed to apply %s schema: %v", database.Driver(), err)
	}

	// Initialize cart session store
	redisClient, err := cartstore.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to connect to cart store: %v", err)
	}
	defer redisClient.Close()
	carts := cartstore.NewRedisStore(redisClient, cfg.CartTTL)

	// Initialize services
	st := store.New(database, appMetrics)
	ledger := services.NewStockLedger(st)
	inventoryService := services.NewInventoryService(st, ledger, appMetrics)
	productService := services.NewProductService(st, ledger, appMetrics, cfg.ProductCacheTTL)
	inventoryService.OnStockChange(productService.Invalidate)
	couponService := services.NewCouponService(st, appMetrics)
	cartService := services.NewCartService(inventoryService, appMetrics)
	orderService := services.NewOrderService(st, inventoryService, couponService, appMetrics, services.SettingsFromConfig(cfg))

	// Background stock level monitor
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go inventoryService.MonitorStockLevels(monitorCtx, cfg.StockMonitorInterval, cfg.LowStockThreshold)

	// Initialize app
	app := api.NewApp(cfg, appMetrics, productService, inventoryService, couponService, cartService, orderService, carts)

	// Setup router
	router := mux.NewRouter()
	app.SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %s (db=%s)", cfg.AppPort, database.Driver())
		log.Printf("OTLP endpoint: %s", cfg.OTELExporterOTLPEndpoint)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	stopMonitor()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
