package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/metrics"
	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/store"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CouponService validates coupons and records their usage
type CouponService struct {
	store   *store.Store
	metrics *metrics.AppMetrics
	now     func() time.Time
}

// NewCouponService creates a new coupon service
func NewCouponService(s *store.Store, m *metrics.AppMetrics) *CouponService {
	return &CouponService{
		store:   s,
		metrics: m,
		now:     s.Now,
	}
}

// NormalizeCode trims and upper-cases a coupon code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// check applies the rejection rules in order and returns the first that fails
func (s *CouponService) check(c *models.Coupon, cartTotal decimal.Decimal) error {
	switch {
	case !c.IsActive:
		return ErrCouponInactive
	case c.ExpirationDate != nil && !s.now().Before(*c.ExpirationDate):
		return ErrCouponExpired
	case c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit:
		return ErrCouponLimitReached
	case c.MinimumOrderAmount.Valid && cartTotal.LessThan(c.MinimumOrderAmount.Decimal):
		return ErrMinimumOrderNotMet
	}
	return nil
}

// CalculateDiscount returns the discount for cartTotal, rounded to cents and
// never more than cartTotal.
func CalculateDiscount(c *models.Coupon, cartTotal decimal.Decimal) decimal.Decimal {
	if !cartTotal.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case models.DiscountPercentage:
		discount = cartTotal.Mul(c.DiscountValue).Div(hundred).Round(2)
	case models.DiscountFixed:
		discount = c.DiscountValue
	}
	return decimal.Min(discount, cartTotal)
}

func validationMessage(kind error) string {
	switch {
	case errors.Is(kind, ErrCouponNotFound):
		return "Coupon not found"
	case errors.Is(kind, ErrCouponInactive):
		return "Coupon is not active"
	case errors.Is(kind, ErrCouponExpired):
		return "Coupon has expired"
	case errors.Is(kind, ErrCouponLimitReached):
		return "Coupon usage limit reached"
	case errors.Is(kind, ErrMinimumOrderNotMet):
		return "Minimum order amount not met"
	}
	return kind.Error()
}

// ValidateCoupon checks a code against cartTotal without using it up
func (s *CouponService) ValidateCoupon(ctx context.Context, code string, cartTotal decimal.Decimal) (*models.CouponValidation, error) {
	code = NormalizeCode(code)
	result := &models.CouponValidation{Code: code}

	c, err := s.store.Coupons().FindByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		result.Message = validationMessage(ErrCouponNotFound)
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	if kind := s.check(c, cartTotal); kind != nil {
		result.Message = validationMessage(kind)
		if errors.Is(kind, ErrMinimumOrderNotMet) {
			result.Message = fmt.Sprintf("Minimum order amount of %s not met", c.MinimumOrderAmount.Decimal.StringFixed(2))
		}
		return result, nil
	}

	result.IsValid = true
	result.Message = "Coupon applied"
	result.DiscountAmount = CalculateDiscount(c, cartTotal)
	if c.DiscountType == models.DiscountPercentage {
		result.DiscountPercentage = c.DiscountValue
	}
	return result, nil
}

// AppliedCoupon is a coupon whose usage has been counted for an order
type AppliedCoupon struct {
	Coupon   *models.Coupon
	Discount decimal.Decimal
}

// ApplyCoupon re-validates the code from a fresh read and then counts one use
// with a guarded increment. Rejections are *CouponError.
func (s *CouponService) ApplyCoupon(ctx context.Context, code, orderRef string, cartTotal decimal.Decimal) (*AppliedCoupon, error) {
	code = NormalizeCode(code)
	applied, err := s.apply(ctx, code, cartTotal)

	var couponErr *CouponError
	switch {
	case err == nil:
		s.metrics.RecordCouponApplication(ctx, code, "applied")
		log.Printf("[COUPON] Applied %s to %s: discount=%s times_used=%d", code, orderRef, applied.Discount.StringFixed(2), applied.Coupon.TimesUsed)
	case errors.As(err, &couponErr):
		s.metrics.RecordCouponApplication(ctx, code, "rejected")
		log.Printf("[COUPON] Rejected %s for %s: %v", code, orderRef, couponErr.Kind)
	default:
		s.metrics.RecordCouponApplication(ctx, code, "error")
	}
	return applied, err
}

func (s *CouponService) apply(ctx context.Context, code string, cartTotal decimal.Decimal) (*AppliedCoupon, error) {
	c, err := s.store.Coupons().FindByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &CouponError{Code: code, Kind: ErrCouponNotFound}
	}
	if err != nil {
		return nil, err
	}
	if kind := s.check(c, cartTotal); kind != nil {
		return nil, &CouponError{Code: code, Kind: kind}
	}

	ok, err := s.store.Coupons().IncrementUsage(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race: re-read to report why the guard failed
		fresh, err := s.store.Coupons().FindByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		kind := s.check(fresh, cartTotal)
		if kind == nil {
			kind = ErrCouponLimitReached
		}
		return nil, &CouponError{Code: code, Kind: kind}
	}

	c.TimesUsed++
	return &AppliedCoupon{Coupon: c, Discount: CalculateDiscount(c, cartTotal)}, nil
}

// ReleaseCoupon gives back one use, undoing ApplyCoupon
func (s *CouponService) ReleaseCoupon(ctx context.Context, couponID int64) error {
	ok, err := s.store.Coupons().DecrementUsage(ctx, couponID)
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("[COUPON] Release of coupon_id=%d found no usage to give back", couponID)
	}
	return nil
}

// CreateCoupon adds a coupon after checking its definition
func (s *CouponService) CreateCoupon(ctx context.Context, req models.CreateCouponRequest) (*models.Coupon, error) {
	code := NormalizeCode(req.Code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidCoupon)
	}

	switch req.DiscountType {
	case models.DiscountPercentage:
		if !req.DiscountValue.IsPositive() || req.DiscountValue.GreaterThan(hundred) {
			return nil, fmt.Errorf("%w: percentage must be in (0, 100]", ErrInvalidCoupon)
		}
	case models.DiscountFixed:
		if !req.DiscountValue.IsPositive() {
			return nil, fmt.Errorf("%w: fixed discount must be positive", ErrInvalidCoupon)
		}
	default:
		return nil, fmt.Errorf("%w: unknown discount type %q", ErrInvalidCoupon, req.DiscountType)
	}
	if req.UsageLimit != nil && *req.UsageLimit < 0 {
		return nil, fmt.Errorf("%w: usage limit cannot be negative", ErrInvalidCoupon)
	}
	if req.MinimumOrderAmount.Valid && req.MinimumOrderAmount.Decimal.IsNegative() {
		return nil, fmt.Errorf("%w: minimum order amount cannot be negative", ErrInvalidCoupon)
	}

	c := &models.Coupon{
		Code:               code,
		DiscountType:       req.DiscountType,
		DiscountValue:      req.DiscountValue,
		MinimumOrderAmount: req.MinimumOrderAmount,
		UsageLimit:         req.UsageLimit,
		ExpirationDate:     req.ExpirationDate,
		IsActive:           true,
	}
	if err := s.store.Coupons().Create(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrCouponExists, code)
		}
		return nil, err
	}

	log.Printf("[COUPON] Created %s (%s %s)", code, c.DiscountType, c.DiscountValue)
	return c, nil
}

// GetCoupon returns a coupon by code
func (s *CouponService) GetCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	code = NormalizeCode(code)
	c, err := s.store.Coupons().FindByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &CouponError{Code: code, Kind: ErrCouponNotFound}
	}
	return c, err
}

// DeactivateCoupon stops a coupon from being applied; past orders keep
// their discount code.
func (s *CouponService) DeactivateCoupon(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	ok, err := s.store.Coupons().Deactivate(ctx, code)
	if err != nil {
		return err
	}
	if !ok {
		return &CouponError{Code: code, Kind: ErrCouponNotFound}
	}
	log.Printf("[COUPON] Deactivated %s", code)
	return nil
}
