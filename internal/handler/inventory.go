package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mylittleshop/fulfillment/internal/domain"
	"github.com/mylittleshop/fulfillment/internal/service"
)

// InventoryHandler handles HTTP requests for stock endpoints.
type InventoryHandler struct {
	inventorySvc *service.InventoryService
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(inventorySvc *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventorySvc: inventorySvc}
}

// stockChangeRequest is the JSON request body for stock mutations.
type stockChangeRequest struct {
	Quantity int64  `json:"quantity"`
	Note     string `json:"note"`
}

// stockResponse is the JSON representation of an inventory snapshot.
type stockResponse struct {
	ProductID      string `json:"product_id"`
	Quantity       int64  `json:"quantity"`
	AvailableStock int64  `json:"available_stock"`
	Reserved       int64  `json:"reserved"`
	UpdatedAt      string `json:"updated_at"`
}

// historyResponse is a single stock mutation record.
type historyResponse struct {
	HistoryID  string `json:"history_id"`
	ProductID  string `json:"product_id"`
	ChangeType string `json:"change_type"`
	Quantity   int64  `json:"quantity"`
	ChangedAt  string `json:"changed_at"`
	Note       string `json:"note,omitempty"`
}

// AddStock handles POST /inventory/{product_id}/add.
func (h *InventoryHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.inventorySvc.AddStock)
}

// RemoveStock handles POST /inventory/{product_id}/remove.
func (h *InventoryHandler) RemoveStock(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.inventorySvc.RemoveStock)
}

// AdjustStock handles POST /inventory/{product_id}/adjust. Quantity is the
// counted on-hand value, not a delta.
func (h *InventoryHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.inventorySvc.AdjustStock)
}

// Reserve handles POST /inventory/{product_id}/reserve.
func (h *InventoryHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.inventorySvc.Reserve)
}

// Release handles POST /inventory/{product_id}/release.
func (h *InventoryHandler) Release(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.inventorySvc.Release)
}

func (h *InventoryHandler) mutate(
	w http.ResponseWriter,
	r *http.Request,
	op func(productID string, qty int64, note string) (domain.InventorySnapshot, error),
) {
	productID := chi.URLParam(r, "product_id")

	var req stockChangeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	snap, err := op(productID, req.Quantity, req.Note)
	if err != nil {
		mapInventoryError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildStockResponse(snap))
}

// GetStock handles GET /inventory/{product_id}.
func (h *InventoryHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	snap, err := h.inventorySvc.GetStock(productID)
	if err != nil {
		mapInventoryError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildStockResponse(snap))
}

// lowStockRow is one product in the low-stock listing.
type lowStockRow struct {
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	StockQuantity int64   `json:"stock_quantity"`
	ConsumerPrice float64 `json:"consumer_price"`
	Status        string  `json:"status"`
}

// LowStock handles GET /inventory/low. The threshold query parameter
// defaults to 10.
func (h *InventoryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryInt(r, "threshold", 10)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "threshold must be an integer")
		return
	}

	products, err := h.inventorySvc.ListLow(int64(threshold))
	if err != nil {
		mapInventoryError(w, err)
		return
	}

	out := make([]lowStockRow, len(products))
	for i, p := range products {
		out[i] = lowStockRow{
			ProductID:     p.ProductID,
			Name:          p.Name,
			StockQuantity: p.StockQuantity,
			ConsumerPrice: domain.CentsToDollars(p.ConsumerPrice),
			Status:        string(p.Status),
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"products": out, "threshold": threshold})
}

// History handles GET /inventory/{product_id}/history.
func (h *InventoryHandler) History(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	records := h.inventorySvc.History(productID)
	out := make([]historyResponse, len(records))
	for i, rec := range records {
		out[i] = historyResponse{
			HistoryID:  rec.HistoryID,
			ProductID:  rec.ProductID,
			ChangeType: string(rec.ChangeType),
			Quantity:   rec.Quantity,
			ChangedAt:  formatTime(rec.ChangedAt),
			Note:       rec.Note,
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"history": out})
}

func buildStockResponse(snap domain.InventorySnapshot) stockResponse {
	return stockResponse{
		ProductID:      snap.ProductID,
		Quantity:       snap.Quantity,
		AvailableStock: snap.AvailableStock,
		Reserved:       snap.Quantity - snap.AvailableStock,
		UpdatedAt:      formatTime(snap.UpdatedAt),
	}
}

// mapInventoryError maps domain errors to HTTP responses for stock endpoints.
func mapInventoryError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		WriteError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, domain.ErrInventoryNotFound):
		WriteError(w, http.StatusNotFound, "inventory_not_found", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		WriteError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, domain.ErrInvalidAdjustment):
		WriteError(w, http.StatusConflict, "invalid_adjustment", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
