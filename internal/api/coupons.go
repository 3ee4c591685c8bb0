package api

import (
	"net/http"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/services"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// CreateCouponHandler handles POST /api/v1/coupons
func (a *App) CreateCouponHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCouponRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	coupon, err := a.couponService.CreateCoupon(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, coupon)
}

// ValidateCouponHandler handles POST /api/v1/coupons/validate. Without a
// cart_total the user's current cart total is used.
func (a *App) ValidateCouponHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code      string              `json:"code"`
		CartTotal decimal.NullDecimal `json:"cart_total"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	total := req.CartTotal.Decimal
	if !req.CartTotal.Valid {
		cart, err := a.carts.Get(r.Context(), userID(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		total = services.CalculateCartTotal(cart)
	}

	result, err := a.couponService.ValidateCoupon(r.Context(), req.Code, total)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetCouponHandler handles GET /api/v1/coupons/{code}
func (a *App) GetCouponHandler(w http.ResponseWriter, r *http.Request) {
	coupon, err := a.couponService.GetCoupon(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, coupon)
}

// DeactivateCouponHandler handles POST /api/v1/coupons/{code}/deactivate
func (a *App) DeactivateCouponHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.couponService.DeactivateCoupon(r.Context(), mux.Vars(r)["code"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
