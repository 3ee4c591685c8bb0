package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/SigNoz/ecommerce-checkout/internal/middleware"
	"github.com/SigNoz/ecommerce-checkout/internal/services"
)

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

var sentinelStatus = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrCouponNotFound, http.StatusNotFound, "COUPON_NOT_FOUND"},
	{services.ErrCouponInactive, http.StatusUnprocessableEntity, "COUPON_INACTIVE"},
	{services.ErrCouponExpired, http.StatusUnprocessableEntity, "COUPON_EXPIRED"},
	{services.ErrCouponLimitReached, http.StatusConflict, "COUPON_LIMIT_REACHED"},
	{services.ErrMinimumOrderNotMet, http.StatusUnprocessableEntity, "MINIMUM_ORDER_NOT_MET"},
	{services.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
	{services.ErrEmptyOrder, http.StatusBadRequest, "EMPTY_ORDER"},
	{services.ErrInvalidQuantity, http.StatusBadRequest, "INVALID_QUANTITY"},
	{services.ErrInvalidCoupon, http.StatusBadRequest, "INVALID_COUPON"},
	{services.ErrInvalidProduct, http.StatusBadRequest, "INVALID_PRODUCT"},
	{services.ErrCouponExists, http.StatusConflict, "COUPON_EXISTS"},
	{services.ErrProductExists, http.StatusConflict, "PRODUCT_EXISTS"},
	{services.ErrInvalidOrderState, http.StatusConflict, "INVALID_ORDER_STATE"},
}

// writeError maps service errors to a status code and a JSON body naming
// the failing product or coupon rule
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		insufficient *services.InsufficientStockError
		notFound     *services.ProductNotFoundError
		couponErr    *services.CouponError
		stateErr     *services.InvalidOrderStateError
	)

	switch {
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "INSUFFICIENT_STOCK", Details: map[string]any{
			"product_id": insufficient.ProductID,
			"requested":  insufficient.Requested,
			"available":  insufficient.Available,
		}})
		return
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "PRODUCT_NOT_FOUND", Details: map[string]any{
			"product_id": notFound.ProductID,
		}})
		return
	case errors.As(err, &stateErr):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "INVALID_ORDER_STATE", Details: map[string]any{
			"order_id": stateErr.OrderID,
			"from":     stateErr.From,
			"to":       stateErr.To,
		}})
		return
	}

	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			body := errorBody{Error: err.Error(), Code: s.code}
			if errors.As(err, &couponErr) {
				body.Details = map[string]any{"coupon_code": couponErr.Code}
			}
			writeJSON(w, s.status, body)
			return
		}
	}

	log.Printf("[API] ERROR request_id=%s %s %s: %v", middleware.RequestIDFromContext(r.Context()), r.Method, r.URL.Path, err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error", Code: "INTERNAL"})
}
