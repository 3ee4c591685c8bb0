package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/saga"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"github.com/SigNoz/ecommerce-checkout/pkg/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OrderSettings are the pricing and timeout knobs for checkout
type OrderSettings struct {
	TaxRate               decimal.Decimal
	ShippingFlatRate      decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	CheckoutTimeout       time.Duration
	CompensationTimeout   time.Duration
}

// SettingsFromConfig picks the checkout settings out of the app config
func SettingsFromConfig(cfg *config.Config) OrderSettings {
	return OrderSettings{
		TaxRate:               cfg.TaxRate,
		ShippingFlatRate:      cfg.ShippingFlatRate,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		CheckoutTimeout:       cfg.CheckoutTimeout,
		CompensationTimeout:   cfg.CompensationTimeout,
	}
}

// OrderService turns line items into persisted orders and drives the order
// lifecycle afterwards
type OrderService struct {
	store     *store.Store
	inventory *InventoryService
	coupons   *CouponService
	metrics   *metrics.AppMetrics
	settings  OrderSettings
	newNumber func(time.Time) string
}

// NewOrderService creates a new order service
func NewOrderService(s *store.Store, inventory *InventoryService, coupons *CouponService, m *metrics.AppMetrics, settings OrderSettings) *OrderService {
	if settings.CompensationTimeout <= 0 {
		settings.CompensationTimeout = 5 * time.Second
	}
	return &OrderService{
		store:     s,
		inventory: inventory,
		coupons:   coupons,
		metrics:   m,
		settings:  settings,
		newNumber: newOrderNumber,
	}
}

// CalculateOrderTotal returns subtotal + tax + shipping - discount, floored at 0
func CalculateOrderTotal(subtotal, tax, shipping, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(tax).Add(shipping).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// CalculateTax returns the tax on subtotal rounded to cents
func (s *OrderService) CalculateTax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(s.settings.TaxRate).Round(2)
}

// CalculateShipping returns the flat rate unless subtotal reaches the free
// shipping threshold
func (s *OrderService) CalculateShipping(subtotal decimal.Decimal) decimal.Decimal {
	if s.settings.FreeShippingThreshold.IsPositive() && subtotal.GreaterThanOrEqual(s.settings.FreeShippingThreshold) {
		return decimal.Zero
	}
	return s.settings.ShippingFlatRate
}

func newOrderNumber(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), strings.ToUpper(id[:8]))
}

// mergeLineItems sums quantities of repeated products, keeping first-seen order
func mergeLineItems(items []models.LineItem) ([]models.LineItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	index := make(map[int64]int, len(items))
	merged := make([]models.LineItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("product %d: %w", item.ProductID, ErrInvalidQuantity)
		}
		if i, ok := index[item.ProductID]; ok {
			if item.Quantity > math.MaxInt-merged[i].Quantity {
				return nil, fmt.Errorf("product %d: %w", item.ProductID, ErrInvalidQuantity)
			}
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

// CreateOrder reserves stock for every line item, applies the coupon if one is
// given and persists the order as PENDING. Any failure releases whatever was
// already reserved or applied before returning the error.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, items []models.LineItem, address models.Address, couponCode string) (*models.Order, error) {
	if s.settings.CheckoutTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.CheckoutTimeout)
		defer cancel()
	}

	merged, err := mergeLineItems(items)
	if err != nil {
		return nil, err
	}

	// Prices are snapshotted here; later catalog changes do not touch the order
	orderItems := make([]models.OrderItem, 0, len(merged))
	subtotal := decimal.Zero
	for _, item := range merged {
		p, err := s.inventory.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if !p.IsActive {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		orderItems = append(orderItems, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  item.Quantity,
			Price:     p.Price,
		})
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	order := &models.Order{
		UserID:          userID,
		OrderNumber:     s.newNumber(s.store.Now()),
		Status:          models.StatusPending,
		Items:           orderItems,
		Subtotal:        subtotal,
		Tax:             s.CalculateTax(subtotal),
		Shipping:        s.CalculateShipping(subtotal),
		DiscountAmount:  decimal.Zero,
		ShippingAddress: address,
	}

	checkout := saga.NewOrchestrator("checkout "+order.OrderNumber, s.settings.CompensationTimeout)
	for _, item := range orderItems {
		checkout.Add(s.reserveStep(item.ProductID, item.Quantity))
	}
	if code := NormalizeCode(couponCode); code != "" {
		checkout.Add(s.couponStep(order, code))
	}
	checkout.Add(saga.StepFunc("persist order",
		func(ctx context.Context) error {
			order.Total = CalculateOrderTotal(order.Subtotal, order.Tax, order.Shipping, order.DiscountAmount)
			return s.store.InTx(ctx, func(tx *store.Tx) error {
				return tx.Orders.Create(ctx, order)
			})
		},
		nil,
	))

	if err := checkout.Run(ctx); err != nil {
		s.recordRollback(ctx, err)
		log.Printf("[ORDER] Checkout failed for user_id=%d order_number=%s: %v", userID, order.OrderNumber, err)
		return nil, err
	}

	s.recordOrderCreated(ctx, order)
	log.Printf("[ORDER] Order created: order_id=%d order_number=%s items=%d total=%s status=%s",
		order.ID, order.OrderNumber, len(order.Items), order.Total.StringFixed(2), order.Status)
	return order, nil
}

func (s *OrderService) reserveStep(productID int64, quantity int) saga.Step {
	return saga.StepFunc(fmt.Sprintf("reserve product %d", productID),
		func(ctx context.Context) error {
			return s.inventory.Reserve(ctx, productID, quantity)
		},
		func(ctx context.Context) error {
			return s.inventory.release(ctx, productID, quantity, reasonRollback)
		},
	)
}

func (s *OrderService) couponStep(order *models.Order, code string) saga.Step {
	var applied *AppliedCoupon
	return saga.StepFunc("apply coupon "+code,
		func(ctx context.Context) error {
			var err error
			applied, err = s.coupons.ApplyCoupon(ctx, code, order.OrderNumber, order.Subtotal)
			if err != nil {
				return err
			}
			order.DiscountCode = applied.Coupon.Code
			order.DiscountAmount = applied.Discount
			return nil
		},
		func(ctx context.Context) error {
			return s.coupons.ReleaseCoupon(ctx, applied.Coupon.ID)
		},
	)
}

func rollbackReason(err error) string {
	var couponErr *CouponError
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.As(err, &couponErr):
		return "coupon_rejected"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	}
	return "error"
}

func (s *OrderService) recordRollback(ctx context.Context, err error) {
	s.metrics.CheckoutRollbacks.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("reason", rollbackReason(err)),
		attribute.Bool("compensation_failed", saga.IsCompensationFailure(err)),
	})...))
}

func (s *OrderService) recordOrderCreated(ctx context.Context, order *models.Order) {
	attrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("order_status", string(order.Status)),
		attribute.Bool("coupon_applied", order.DiscountCode != ""),
	})
	s.metrics.OrdersCreated.Add(ctx, 1, metric.WithAttributes(attrs...))

	total, _ := order.Total.Float64()
	s.metrics.RevenueTotal.Add(ctx, total, metric.WithAttributes(attrs...))
}

// CancelOrder cancels a PENDING, CONFIRMED or PROCESSING order and returns
// its stock. The transition and the releases commit together, so stock is
// released at most once per order.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64, reason string) (*models.Order, error) {
	var items []models.OrderItem
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		o, err := tx.Orders.FindByID(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
		}
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(models.StatusCancelled) {
			return &InvalidOrderStateError{OrderID: orderID, From: o.Status, To: models.StatusCancelled}
		}

		ok, err := tx.Orders.UpdateStatus(ctx, orderID, o.Status, models.StatusCancelled, reason)
		if err != nil {
			return err
		}
		if !ok {
			return &InvalidOrderStateError{OrderID: orderID, From: o.Status, To: models.StatusCancelled}
		}

		for _, item := range o.Items {
			if err := s.inventory.releaseTx(ctx, tx, item.ProductID, item.Quantity, reasonCancelled); err != nil {
				return fmt.Errorf("failed to release stock for order %d: %w", orderID, err)
			}
		}
		items = o.Items
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidOrderState) {
			log.Printf("[ORDER] ERROR: %v", err)
		}
		return nil, err
	}

	for _, item := range items {
		s.inventory.onChange(item.ProductID)
	}
	s.metrics.OrdersCancelled.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName(nil)...))
	log.Printf("[ORDER] Order cancelled: order_id=%d items=%d reason=%q", orderID, len(items), reason)

	return s.GetOrder(ctx, orderID)
}

// UpdateOrderStatus moves an order one step forward in its lifecycle.
// CANCELLED is routed through CancelOrder so stock is returned.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, next models.OrderStatus) (*models.Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidOrderState, next)
	}
	if next == models.StatusCancelled {
		return s.CancelOrder(ctx, orderID, "")
	}

	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(next) {
		err := &InvalidOrderStateError{OrderID: orderID, From: o.Status, To: next}
		log.Printf("[ORDER] ERROR: %v", err)
		return nil, err
	}

	ok, err := s.store.Orders().UpdateStatus(ctx, orderID, o.Status, next, o.CancelReason)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone else moved the order first
		current, err := s.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		err = &InvalidOrderStateError{OrderID: orderID, From: current.Status, To: next}
		log.Printf("[ORDER] ERROR: %v", err)
		return nil, err
	}

	log.Printf("[ORDER] Order status updated: order_id=%d %s -> %s", orderID, o.Status, next)
	return s.GetOrder(ctx, orderID)
}

// GetOrder returns an order with its items
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
	}
	return o, err
}

// GetOrderByNumber returns an order by its customer-facing number
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	o, err := s.store.Orders().FindByOrderNumber(ctx, orderNumber)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("order %s: %w", orderNumber, ErrOrderNotFound)
	}
	return o, err
}

// ListUserOrders returns a page of a user's orders, newest first
func (s *OrderService) ListUserOrders(ctx context.Context, userID int64, limit, offset int) ([]models.Order, error) {
	return s.store.Orders().FindByUserID(ctx, userID, limit, offset)
}
