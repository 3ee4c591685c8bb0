package api

import (
	"log"
	"net/http"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/services"
)

// CreateOrderHandler handles POST /api/v1/orders. It checks out the user's
// cart and clears it once the order exists.
func (a *App) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	uid := userID(r)
	cart, err := a.carts.Get(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	order, err := a.orderService.CreateOrder(r.Context(), uid, services.LineItems(cart), req.ShippingAddress, req.CouponCode)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := a.carts.Delete(r.Context(), uid); err != nil {
		log.Printf("[WARNING] Order %s created but cart for user_id=%d was not cleared: %v", order.OrderNumber, uid, err)
	}
	writeJSON(w, http.StatusCreated, order)
}

// GetOrderHandler handles GET /api/v1/orders/{id}
func (a *App) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "order")
	if !ok {
		return
	}

	order, err := a.orderService.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// ListOrdersHandler handles GET /api/v1/orders
func (a *App) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := a.orderService.ListUserOrders(r.Context(), userID(r), queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// UpdateOrderStatusHandler handles PUT /api/v1/orders/{id}/status
func (a *App) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "order")
	if !ok {
		return
	}

	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := a.orderService.UpdateOrderStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// CancelOrderHandler handles POST /api/v1/orders/{id}/cancel
func (a *App) CancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "order")
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	order, err := a.orderService.CancelOrder(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
