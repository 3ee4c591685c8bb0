package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

const reasonInitialStock = "Initial stock"

// ProductCache holds cached products
type ProductCache struct {
	mu    sync.RWMutex
	items map[int64]cachedProduct
}

type cachedProduct struct {
	product models.Product
	expires time.Time
}

// NewProductCache creates an empty cache
func NewProductCache() *ProductCache {
	return &ProductCache{
		items: make(map[int64]cachedProduct),
	}
}

func (c *ProductCache) get(id int64, now time.Time) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.items[id]
	if !ok || !now.Before(cached.expires) {
		return models.Product{}, false
	}
	return cached.product, true
}

func (c *ProductCache) put(p models.Product, expires time.Time) {
	c.mu.Lock()
	c.items[p.ID] = cachedProduct{product: p, expires: expires}
	c.mu.Unlock()
}

func (c *ProductCache) delete(id int64) {
	c.mu.Lock()
	delete(c.items, id)
	c.mu.Unlock()
}

// ProductService serves the catalog. Reads go through a TTL cache; stock
// sensitive paths use InventoryService, which always reads live.
type ProductService struct {
	store   *store.Store
	ledger  *StockLedger
	metrics *metrics.AppMetrics
	cache   *ProductCache
	ttl     time.Duration
	loads   singleflight.Group
}

// NewProductService creates a new product service
func NewProductService(s *store.Store, ledger *StockLedger, m *metrics.AppMetrics, ttl time.Duration) *ProductService {
	return &ProductService{
		store:   s,
		ledger:  ledger,
		metrics: m,
		cache:   NewProductCache(),
		ttl:     ttl,
	}
}

// CreateProduct adds a product; starting stock is recorded as an IN movement
func (s *ProductService) CreateProduct(ctx context.Context, req models.CreateProductRequest) (*models.Product, error) {
	sku := strings.TrimSpace(req.SKU)
	name := strings.TrimSpace(req.Name)
	switch {
	case sku == "":
		return nil, fmt.Errorf("%w: sku is required", ErrInvalidProduct)
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case req.Price.IsNegative():
		return nil, fmt.Errorf("%w: price cannot be negative", ErrInvalidProduct)
	case req.StockQuantity < 0:
		return nil, fmt.Errorf("%w: stock quantity cannot be negative", ErrInvalidProduct)
	case req.LowStockThreshold < 0:
		return nil, fmt.Errorf("%w: low stock threshold cannot be negative", ErrInvalidProduct)
	}

	p := &models.Product{
		SKU:               sku,
		Name:              name,
		Description:       req.Description,
		Category:          req.Category,
		Price:             req.Price,
		StockQuantity:     req.StockQuantity,
		LowStockThreshold: req.LowStockThreshold,
		IsActive:          true,
	}
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.Products.Create(ctx, p); err != nil {
			return err
		}
		if p.StockQuantity > 0 {
			return s.ledger.record(ctx, tx, p.ID, p.StockQuantity, models.MovementIn, reasonInitialStock)
		}
		return nil
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("%w: %s", ErrProductExists, sku)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[CATALOG] Product created: product_id=%d sku=%s stock=%d", p.ID, p.SKU, p.StockQuantity)
	return p, nil
}

// ListProducts returns a page of products
func (s *ProductService) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	return s.store.Products().List(ctx, limit, offset)
}

// GetProduct returns a product by ID, from cache when fresh. Concurrent
// misses for the same product share one query.
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	if p, ok := s.cache.get(id, time.Now()); ok {
		s.metrics.CacheHits.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
			attribute.String("cache", "product"),
		})...))
		return &p, nil
	}
	s.metrics.CacheMisses.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("cache", "product"),
	})...))

	v, err, _ := s.loads.Do(strconv.FormatInt(id, 10), func() (any, error) {
		p, err := s.store.Products().FindByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ProductNotFoundError{ProductID: id}
		}
		if err != nil {
			return nil, err
		}
		s.cache.put(*p, time.Now().Add(s.ttl))
		return *p, nil
	})
	if err != nil {
		return nil, err
	}

	p := v.(models.Product)
	return &p, nil
}

// Invalidate drops a product from the cache
func (s *ProductService) Invalidate(productID int64) {
	s.cache.delete(productID)
}
