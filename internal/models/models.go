package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID                int64           `json:"id" db:"id"`
	SKU               string          `json:"sku" db:"sku"`
	Name              string          `json:"name" db:"name"`
	Description       string          `json:"description" db:"description"`
	Category          string          `json:"category" db:"category"`
	Price             decimal.Decimal `json:"price" db:"price"`
	StockQuantity     int             `json:"stock_quantity" db:"stock_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold" db:"low_stock_threshold"`
	IsActive          bool            `json:"is_active" db:"is_active"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// MovementType classifies a stock ledger entry
type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// StockMovement is an append-only ledger entry. Quantity is positive for IN/OUT
// and a signed delta for ADJUSTMENT.
type StockMovement struct {
	ID        int64        `json:"id" db:"id"`
	ProductID int64        `json:"product_id" db:"product_id"`
	Quantity  int          `json:"quantity" db:"quantity"`
	Type      MovementType `json:"type" db:"type"`
	Reason    string       `json:"reason" db:"reason"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// DiscountType is how a coupon's value is interpreted
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// Coupon represents a discount code
type Coupon struct {
	ID                 int64               `json:"id" db:"id"`
	Code               string              `json:"code" db:"code"`
	DiscountType       DiscountType        `json:"discount_type" db:"discount_type"`
	DiscountValue      decimal.Decimal     `json:"discount_value" db:"discount_value"`
	MinimumOrderAmount decimal.NullDecimal `json:"minimum_order_amount" db:"minimum_order_amount"`
	UsageLimit         *int64              `json:"usage_limit" db:"usage_limit"`
	TimesUsed          int64               `json:"times_used" db:"times_used"`
	ExpirationDate     *time.Time          `json:"expiration_date" db:"expiration_date"`
	IsActive           bool                `json:"is_active" db:"is_active"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" db:"updated_at"`
}

// CouponValidation is the soft result of checking a coupon against a cart total
type CouponValidation struct {
	IsValid            bool            `json:"is_valid"`
	Message            string          `json:"message"`
	Code               string          `json:"code,omitempty"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
}

// Cart is a user's session cart. It is a value: the cart engine returns
// modified copies and never mutates its input.
type Cart struct {
	UserID    int64      `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem represents an item in a cart
type CartItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CartItemError describes a line item that can no longer be fulfilled
type CartItemError struct {
	ProductID int64  `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Message   string `json:"message"`
}

// CartValidation is the result of re-checking a cart against live stock
type CartValidation struct {
	IsValid bool            `json:"is_valid"`
	Errors  []CartItemError `json:"errors"`
}

// CartResponse represents a cart with its computed totals
type CartResponse struct {
	Cart      Cart            `json:"cart"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// Address is where an order ships to
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order represents an order
type Order struct {
	ID              int64           `json:"id" db:"id"`
	UserID          int64           `json:"user_id" db:"user_id"`
	OrderNumber     string          `json:"order_number" db:"order_number"`
	Status          OrderStatus     `json:"status" db:"status"`
	Items           []OrderItem     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	Tax             decimal.Decimal `json:"tax" db:"tax"`
	Shipping        decimal.Decimal `json:"shipping" db:"shipping"`
	DiscountCode    string          `json:"discount_code,omitempty" db:"discount_code"`
	DiscountAmount  decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	Total           decimal.Decimal `json:"total" db:"total"`
	ShippingAddress Address         `json:"shipping_address" db:"shipping_address"`
	CancelReason    string          `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderItem is an immutable line item with the price at purchase
type OrderItem struct {
	ID        int64           `json:"id" db:"id"`
	OrderID   int64           `json:"order_id" db:"order_id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Name      string          `json:"name" db:"name"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
}

// LineItem is a requested product and quantity at checkout
type LineItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// AddToCartRequest represents a request to add item to cart
type AddToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CreateOrderRequest represents a request to check out the current cart
type CreateOrderRequest struct {
	ShippingAddress Address `json:"shipping_address"`
	CouponCode      string  `json:"coupon_code"`
}

// CreateProductRequest represents an admin request to add a product
type CreateProductRequest struct {
	SKU               string          `json:"sku"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price"`
	StockQuantity     int             `json:"stock_quantity"`
	LowStockThreshold int             `json:"low_stock_threshold"`
}

// CreateCouponRequest represents an admin request to add a coupon
type CreateCouponRequest struct {
	Code               string              `json:"code"`
	DiscountType       DiscountType        `json:"discount_type"`
	DiscountValue      decimal.Decimal     `json:"discount_value"`
	MinimumOrderAmount decimal.NullDecimal `json:"minimum_order_amount"`
	UsageLimit         *int64              `json:"usage_limit"`
	ExpirationDate     *time.Time          `json:"expiration_date"`
}
