package api

import (
	"net/http"

	"github.com/SigNoz/ecommerce-checkout/internal/models"
)

// ListProductsHandler handles GET /api/v1/products
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := a.productService.ListProducts(r.Context(), queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// CreateProductHandler handles POST /api/v1/products
func (a *App) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := a.productService.CreateProduct(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// GetProductHandler handles GET /api/v1/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "product")
	if !ok {
		return
	}

	product, err := a.productService.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// LowStockHandler handles GET /api/v1/products/low-stock
func (a *App) LowStockHandler(w http.ResponseWriter, r *http.Request) {
	products, err := a.inventoryService.GetLowStockProducts(r.Context(), queryInt(r, "threshold", a.config.LowStockThreshold))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// StockHistoryHandler handles GET /api/v1/products/{id}/history
func (a *App) StockHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "product")
	if !ok {
		return
	}

	history, err := a.inventoryService.GetStockHistory(r.Context(), id, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// AdjustStockHandler handles PUT /api/v1/products/{id}/stock
func (a *App) AdjustStockHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "product")
	if !ok {
		return
	}

	var req struct {
		Quantity *int   `json:"quantity"`
		Reason   string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "quantity is required", Code: "INVALID_REQUEST"})
		return
	}

	if _, err := a.inventoryService.AdjustStock(r.Context(), id, *req.Quantity, req.Reason); err != nil {
		writeError(w, r, err)
		return
	}

	product, err := a.inventoryService.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}
