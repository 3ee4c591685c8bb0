package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculateDiscount(t *testing.T) {
	tests := []struct {
		name   string
		coupon models.Coupon
		total  string
		want   string
	}{
		{"percentage", models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: dec("10")}, "100", "10"},
		{"percentage rounds to cents", models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: dec("15")}, "33.33", "5"},
		{"fixed", models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: dec("20")}, "100", "20"},
		{"fixed clamped to total", models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: dec("50")}, "30", "30"},
		{"full percentage", models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: dec("100")}, "42.50", "42.50"},
		{"empty cart", models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: dec("5")}, "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateDiscount(&tt.coupon, dec(tt.total))
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestValidateCoupon(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(24 * time.Hour)

	e.seedCoupon(t, models.CreateCouponRequest{Code: "save10", DiscountType: models.DiscountPercentage, DiscountValue: dec("10"), ExpirationDate: &future})
	e.seedCoupon(t, models.CreateCouponRequest{Code: "OLD", DiscountType: models.DiscountPercentage, DiscountValue: dec("10"), ExpirationDate: &past})
	e.seedCoupon(t, models.CreateCouponRequest{Code: "BIG", DiscountType: models.DiscountFixed, DiscountValue: dec("25"),
		MinimumOrderAmount: decimal.NewNullDecimal(dec("150"))})
	e.seedCoupon(t, models.CreateCouponRequest{Code: "ONCE", DiscountType: models.DiscountFixed, DiscountValue: dec("5"), UsageLimit: limit(0)})
	e.seedCoupon(t, models.CreateCouponRequest{Code: "GONE", DiscountType: models.DiscountFixed, DiscountValue: dec("5")})
	require.NoError(t, e.coupons.DeactivateCoupon(ctx, "gone"))

	v, err := e.coupons.ValidateCoupon(ctx, " Save10 ", dec("100"))
	require.NoError(t, err)
	assert.True(t, v.IsValid)
	assert.Equal(t, "SAVE10", v.Code)
	assert.True(t, v.DiscountAmount.Equal(dec("10")))
	assert.True(t, v.DiscountPercentage.Equal(dec("10")))

	invalid := map[string]string{
		"OLD":     "Coupon has expired",
		"BIG":     "Minimum order amount of 150.00 not met",
		"ONCE":    "Coupon usage limit reached",
		"GONE":    "Coupon is not active",
		"MISSING": "Coupon not found",
	}
	for code, msg := range invalid {
		v, err := e.coupons.ValidateCoupon(ctx, code, dec("100"))
		require.NoError(t, err, code)
		assert.False(t, v.IsValid, code)
		assert.Equal(t, msg, v.Message, code)
		assert.True(t, v.DiscountAmount.IsZero(), code)
	}
}

func TestExpiredCouponIsAlwaysInvalid(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)

	e.seedCoupon(t, models.CreateCouponRequest{Code: "LATE", DiscountType: models.DiscountFixed, DiscountValue: dec("1"),
		UsageLimit: limit(1000), ExpirationDate: &past})

	for _, total := range []string{"0", "1", "100", "100000"} {
		v, err := e.coupons.ValidateCoupon(ctx, "LATE", dec(total))
		require.NoError(t, err)
		assert.False(t, v.IsValid, total)
	}

	_, err := e.coupons.ApplyCoupon(ctx, "LATE", "ORD-TEST", dec("100"))
	assert.ErrorIs(t, err, ErrCouponExpired)
}

func TestApplyCouponCountsUsage(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedCoupon(t, models.CreateCouponRequest{Code: "TWICE", DiscountType: models.DiscountFixed, DiscountValue: dec("5"), UsageLimit: limit(2)})

	for i := 0; i < 2; i++ {
		applied, err := e.coupons.ApplyCoupon(ctx, "twice", "ORD-TEST", dec("50"))
		require.NoError(t, err)
		assert.True(t, applied.Discount.Equal(dec("5")))
	}
	assert.Equal(t, int64(2), e.timesUsed(t, "TWICE"))

	_, err := e.coupons.ApplyCoupon(ctx, "TWICE", "ORD-TEST", dec("50"))
	var couponErr *CouponError
	require.True(t, errors.As(err, &couponErr))
	assert.Equal(t, "TWICE", couponErr.Code)
	assert.ErrorIs(t, err, ErrCouponLimitReached)

	c, err := e.coupons.GetCoupon(ctx, "TWICE")
	require.NoError(t, err)
	require.NoError(t, e.coupons.ReleaseCoupon(ctx, c.ID))
	assert.Equal(t, int64(1), e.timesUsed(t, "TWICE"))
}

func TestApplyCouponMinimumOrder(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedCoupon(t, models.CreateCouponRequest{Code: "MIN50", DiscountType: models.DiscountFixed, DiscountValue: dec("5"),
		MinimumOrderAmount: decimal.NewNullDecimal(dec("50"))})

	_, err := e.coupons.ApplyCoupon(ctx, "MIN50", "ORD-TEST", dec("49.99"))
	assert.ErrorIs(t, err, ErrMinimumOrderNotMet)
	assert.Equal(t, int64(0), e.timesUsed(t, "MIN50"))

	_, err = e.coupons.ApplyCoupon(ctx, "MIN50", "ORD-TEST", dec("50"))
	assert.NoError(t, err)
}

func TestConcurrentApplyRespectsUsageLimit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedCoupon(t, models.CreateCouponRequest{Code: "FLASH", DiscountType: models.DiscountPercentage, DiscountValue: dec("20"), UsageLimit: limit(5)})

	var g errgroup.Group
	applied := make([]bool, 20)
	for i := range applied {
		g.Go(func() error {
			_, err := e.coupons.ApplyCoupon(ctx, "FLASH", "ORD-TEST", dec("100"))
			if errors.Is(err, ErrCouponLimitReached) {
				return nil
			}
			applied[i] = err == nil
			return err
		})
	}
	require.NoError(t, g.Wait())

	count := 0
	for _, ok := range applied {
		if ok {
			count++
		}
	}
	assert.Equal(t, 5, count)
	assert.Equal(t, int64(5), e.timesUsed(t, "FLASH"))
}

func TestCreateCouponValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	bad := []models.CreateCouponRequest{
		{Code: "", DiscountType: models.DiscountFixed, DiscountValue: dec("1")},
		{Code: "P0", DiscountType: models.DiscountPercentage, DiscountValue: dec("0")},
		{Code: "P101", DiscountType: models.DiscountPercentage, DiscountValue: dec("101")},
		{Code: "F0", DiscountType: models.DiscountFixed, DiscountValue: dec("0")},
		{Code: "X", DiscountType: "BOGO", DiscountValue: dec("1")},
		{Code: "NEG", DiscountType: models.DiscountFixed, DiscountValue: dec("1"), UsageLimit: limit(-1)},
	}
	for _, req := range bad {
		_, err := e.coupons.CreateCoupon(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidCoupon, req.Code)
	}

	e.seedCoupon(t, models.CreateCouponRequest{Code: "WELCOME", DiscountType: models.DiscountFixed, DiscountValue: dec("5")})
	_, err := e.coupons.CreateCoupon(ctx, models.CreateCouponRequest{Code: "welcome", DiscountType: models.DiscountFixed, DiscountValue: dec("5")})
	assert.ErrorIs(t, err, ErrCouponExists)

	assert.ErrorIs(t, e.coupons.DeactivateCoupon(ctx, "NOPE"), ErrCouponNotFound)
	_, err = e.coupons.GetCoupon(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrCouponNotFound)
}
