package services

import (
	"errors"
	"fmt"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
)

var (
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrEmptyOrder         = errors.New("order has no items")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidOrderState  = errors.New("invalid order state")
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrCouponInactive     = errors.New("coupon is not active")
	ErrCouponExpired      = errors.New("coupon has expired")
	ErrCouponLimitReached = errors.New("coupon usage limit reached")
	ErrMinimumOrderNotMet = errors.New("minimum order amount not met")
	ErrCouponExists       = errors.New("coupon code already exists")
	ErrInvalidCoupon      = errors.New("invalid coupon definition")
	ErrInvalidProduct     = errors.New("invalid product definition")
	ErrProductExists      = errors.New("product sku already exists")
)

// InsufficientStockError names the product that could not be reserved
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ProductNotFoundError names the missing product
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// CouponError is a rejected coupon; Kind is one of the ErrCoupon* sentinels
// or ErrMinimumOrderNotMet.
type CouponError struct {
	Code string
	Kind error
}

func (e *CouponError) Error() string {
	return fmt.Sprintf("coupon %q: %v", e.Code, e.Kind)
}

func (e *CouponError) Unwrap() error {
	return e.Kind
}

// InvalidOrderStateError is a transition the order state machine forbids
type InvalidOrderStateError struct {
	OrderID int64
	From    models.OrderStatus
	To      models.OrderStatus
}

func (e *InvalidOrderStateError) Error() string {
	return fmt.Sprintf("order %d cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *InvalidOrderStateError) Is(target error) bool {
	return target == ErrInvalidOrderState
}
