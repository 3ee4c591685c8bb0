package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ProductReader looks up a product with its live stock level
type ProductReader interface {
	GetProduct(ctx context.Context, productID int64) (*models.Product, error)
}

// CartService transforms cart values. It never mutates its input cart and
// keeps no state of its own; persistence is the caller's concern.
type CartService struct {
	products ProductReader
	metrics  *metrics.AppMetrics
	now      func() time.Time
}

// NewCartService creates a new cart service
func NewCartService(products ProductReader, m *metrics.AppMetrics) *CartService {
	return &CartService{
		products: products,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func cloneCart(cart models.Cart) models.Cart {
	items := make([]models.CartItem, len(cart.Items))
	copy(items, cart.Items)
	cart.Items = items
	return cart
}

func findItem(cart models.Cart, productID int64) int {
	for i, item := range cart.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// lookup treats inactive products as missing
func (s *CartService) lookup(ctx context.Context, productID int64) (*models.Product, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, &ProductNotFoundError{ProductID: productID}
	}
	return p, nil
}

// addQuantity sums two positive quantities, saturating at math.MaxInt
func addQuantity(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

// AddToCart adds quantity of a product, summing with any existing line
func (s *CartService) AddToCart(ctx context.Context, cart models.Cart, productID int64, quantity int) (models.Cart, error) {
	if quantity <= 0 {
		return cart, ErrInvalidQuantity
	}

	p, err := s.lookup(ctx, productID)
	if err != nil {
		return cart, err
	}

	out := cloneCart(cart)
	idx := findItem(out, productID)
	existing := 0
	if idx >= 0 {
		existing = out.Items[idx].Quantity
	}

	if quantity > p.StockQuantity-existing {
		return cart, &InsufficientStockError{ProductID: productID, Requested: addQuantity(existing, quantity), Available: p.StockQuantity}
	}

	if idx >= 0 {
		out.Items[idx].Quantity += quantity
		out.Items[idx].UnitPrice = p.Price
		out.Items[idx].Name = p.Name
	} else {
		out.Items = append(out.Items, models.CartItem{
			ProductID: productID,
			Name:      p.Name,
			Quantity:  quantity,
			UnitPrice: p.Price,
		})
	}
	out.UpdatedAt = s.now()

	s.recordCartSize(ctx, out)
	return out, nil
}

// UpdateQuantity sets a line's quantity; zero or less removes the line. A
// product not yet in the cart is added with newQuantity.
func (s *CartService) UpdateQuantity(ctx context.Context, cart models.Cart, productID int64, newQuantity int) (models.Cart, error) {
	if newQuantity <= 0 {
		out := RemoveFromCart(cart, productID)
		s.recordCartSize(ctx, out)
		return out, nil
	}

	p, err := s.lookup(ctx, productID)
	if err != nil {
		return cart, err
	}
	if newQuantity > p.StockQuantity {
		return cart, &InsufficientStockError{ProductID: productID, Requested: newQuantity, Available: p.StockQuantity}
	}

	out := cloneCart(cart)
	if idx := findItem(out, productID); idx >= 0 {
		out.Items[idx].Quantity = newQuantity
		out.Items[idx].UnitPrice = p.Price
	} else {
		out.Items = append(out.Items, models.CartItem{
			ProductID: productID,
			Name:      p.Name,
			Quantity:  newQuantity,
			UnitPrice: p.Price,
		})
	}
	out.UpdatedAt = s.now()

	s.recordCartSize(ctx, out)
	return out, nil
}

// RemoveFromCart drops a product's line; unknown products leave the cart as is
func RemoveFromCart(cart models.Cart, productID int64) models.Cart {
	idx := findItem(cart, productID)
	if idx < 0 {
		return cart
	}
	out := cloneCart(cart)
	out.Items = append(out.Items[:idx], out.Items[idx+1:]...)
	out.UpdatedAt = time.Now().UTC()
	return out
}

// CalculateCartTotal sums unit price times quantity over every line
func CalculateCartTotal(cart models.Cart) decimal.Decimal {
	total := decimal.Zero
	for _, item := range cart.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// GetCartItemCount sums quantities over every line
func GetCartItemCount(cart models.Cart) int {
	count := 0
	for _, item := range cart.Items {
		count += item.Quantity
	}
	return count
}

// ValidateCart re-checks every line against live stock
func (s *CartService) ValidateCart(ctx context.Context, cart models.Cart) (*models.CartValidation, error) {
	result := &models.CartValidation{IsValid: true, Errors: []models.CartItemError{}}

	for _, item := range cart.Items {
		p, err := s.lookup(ctx, item.ProductID)
		if errors.Is(err, ErrProductNotFound) {
			result.Errors = append(result.Errors, models.CartItemError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Message:   "Product is no longer available",
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to validate cart item %d: %w", item.ProductID, err)
		}

		if item.Quantity > p.StockQuantity {
			result.Errors = append(result.Errors, models.CartItemError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: p.StockQuantity,
				Message:   fmt.Sprintf("Only %d of %s left in stock", p.StockQuantity, p.Name),
			})
		}
	}

	result.IsValid = len(result.Errors) == 0
	return result, nil
}

// Summarize wraps a cart with its computed totals
func Summarize(cart models.Cart) *models.CartResponse {
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &models.CartResponse{
		Cart:      cart,
		Total:     CalculateCartTotal(cart),
		ItemCount: GetCartItemCount(cart),
	}
}

// LineItems converts cart lines to checkout line items
func LineItems(cart models.Cart) []models.LineItem {
	items := make([]models.LineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, models.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return items
}

func (s *CartService) recordCartSize(ctx context.Context, cart models.Cart) {
	s.metrics.CartItemsCount.Record(ctx, int64(GetCartItemCount(cart)), metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("user_id", cart.UserID),
	})...))
}
