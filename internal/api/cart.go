package api

import (
	"log"
	"net/http"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
	"github.com/SigNoz/ecommerce-checkout/internal/services"
)

// GetCartHandler handles GET /api/v1/cart
func (a *App) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	cart, err := a.carts.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.Summarize(cart))
}

// AddToCartHandler handles POST /api/v1/cart/add
func (a *App) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AddToCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := a.carts.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cart, err = a.cartService.AddToCart(r.Context(), cart, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.saveCart(w, r, cart)
}

// UpdateCartItemHandler handles PUT /api/v1/cart/items/{productId}
func (a *App) UpdateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productId", "product")
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := a.carts.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	cart, err = a.cartService.UpdateQuantity(r.Context(), cart, productID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.saveCart(w, r, cart)
}

// RemoveFromCartHandler handles POST /api/v1/cart/remove
func (a *App) RemoveFromCartHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID int64 `json:"product_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := a.carts.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.saveCart(w, r, services.RemoveFromCart(cart, req.ProductID))
}

// ValidateCartHandler handles POST /api/v1/cart/validate
func (a *App) ValidateCartHandler(w http.ResponseWriter, r *http.Request) {
	cart, err := a.carts.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := a.cartService.ValidateCart(r.Context(), cart)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *App) saveCart(w http.ResponseWriter, r *http.Request, cart models.Cart) {
	if err := a.carts.Save(r.Context(), cart); err != nil {
		writeError(w, r, err)
		return
	}
	log.Printf("[CART] Saved cart: user_id=%d items=%d", cart.UserID, services.GetCartItemCount(cart))
	writeJSON(w, http.StatusOK, services.Summarize(cart))
}
