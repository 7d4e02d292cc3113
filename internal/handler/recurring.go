package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mylittleshop/fulfillment/internal/domain"
	"github.com/mylittleshop/fulfillment/internal/service"
)

// RecurringOrderHandler handles HTTP requests for recurring-order
// template endpoints.
type RecurringOrderHandler struct {
	recurringSvc *service.RecurringOrderService
}

// NewRecurringOrderHandler creates a new RecurringOrderHandler.
func NewRecurringOrderHandler(recurringSvc *service.RecurringOrderService) *RecurringOrderHandler {
	return &RecurringOrderHandler{recurringSvc: recurringSvc}
}

// recurringLineRequest is one line of a create-template request body.
type recurringLineRequest struct {
	ProductID string   `json:"product_id"`
	Quantity  int64    `json:"quantity"`
	UnitPrice *float64 `json:"unit_price"`
}

// createRecurringOrderRequest is the JSON request body for POST /recurring-orders.
type createRecurringOrderRequest struct {
	UserID            string                 `json:"user_id"`
	SubscriptionID    string                 `json:"subscription_id"`
	Frequency         string                 `json:"frequency"`
	NextOrderDate     string                 `json:"next_order_date"`
	Items             []recurringLineRequest `json:"items"`
	ShippingAddressID string                 `json:"shipping_address_id"`
	PaymentMethodID   string                 `json:"payment_method_id"`
	Notes             string                 `json:"notes"`
}

// recurringItemResponse is a single template line.
type recurringItemResponse struct {
	ItemID    string  `json:"item_id"`
	ProductID string  `json:"product_id"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// recurringOrderResponse is the JSON representation of a template.
type recurringOrderResponse struct {
	RecurringOrderID  string                  `json:"recurring_order_id"`
	UserID            string                  `json:"user_id"`
	SubscriptionID    string                  `json:"subscription_id,omitempty"`
	Status            string                  `json:"status"`
	Frequency         string                  `json:"frequency"`
	Items             []recurringItemResponse `json:"items"`
	NextOrderDate     string                  `json:"next_order_date"`
	LastOrderDate     *string                 `json:"last_order_date"`
	OrderIDs          []string                `json:"order_ids"`
	ShippingAddressID string                  `json:"shipping_address_id,omitempty"`
	PaymentMethodID   string                  `json:"payment_method_id,omitempty"`
	Notes             string                  `json:"notes,omitempty"`
	CreatedAt         string                  `json:"created_at"`
	UpdatedAt         string                  `json:"updated_at"`
}

// Create handles POST /recurring-orders.
func (h *RecurringOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRecurringOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	next, err := parseDate(req.NextOrderDate)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "next_order_date must be a valid date (YYYY-MM-DD)")
		return
	}

	lines := make([]service.RecurringLine, 0, len(req.Items))
	for _, it := range req.Items {
		line := service.RecurringLine{ProductID: it.ProductID, Quantity: it.Quantity}
		if it.UnitPrice != nil {
			cents, err := domain.DollarsToCents(*it.UnitPrice)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
				return
			}
			line.UnitPrice = &cents
		}
		lines = append(lines, line)
	}

	template, err := h.recurringSvc.Create(service.CreateRecurringOrderRequest{
		UserID:            req.UserID,
		SubscriptionID:    req.SubscriptionID,
		Frequency:         req.Frequency,
		NextOrderDate:     next,
		Lines:             lines,
		ShippingAddressID: req.ShippingAddressID,
		PaymentMethodID:   req.PaymentMethodID,
		Notes:             req.Notes,
	})
	if err != nil {
		mapRecurringError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildRecurringOrderResponse(template))
}

// Get handles GET /recurring-orders/{recurring_order_id}.
func (h *RecurringOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	template, err := h.recurringSvc.Get(chi.URLParam(r, "recurring_order_id"))
	if err != nil {
		mapRecurringError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildRecurringOrderResponse(template))
}

// ListByUser handles GET /users/{user_id}/recurring-orders.
func (h *RecurringOrderHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	templates, err := h.recurringSvc.ListByUser(chi.URLParam(r, "user_id"))
	if err != nil {
		mapRecurringError(w, err)
		return
	}

	out := make([]recurringOrderResponse, len(templates))
	for i, template := range templates {
		out[i] = buildRecurringOrderResponse(template)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"recurring_orders": out})
}

// List handles GET /recurring-orders. Templates are selected either by
// lifecycle status (?status=active) or by a due window
// (?from=2024-05-01&to=2024-05-31); exactly one selector is required.
func (h *RecurringOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fromStr, toStr, status := q.Get("from"), q.Get("to"), q.Get("status")

	var templates []*domain.RecurringOrder
	switch {
	case fromStr != "" || toStr != "":
		if fromStr == "" || toStr == "" {
			WriteError(w, http.StatusBadRequest, "validation_error", "from and to must be given together")
			return
		}
		from, err := parseDate(fromStr)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "from must be a valid date (YYYY-MM-DD)")
			return
		}
		to, err := parseDate(toStr)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "to must be a valid date (YYYY-MM-DD)")
			return
		}
		templates, err = h.recurringSvc.ListDueBetween(from, to)
		if err != nil {
			mapRecurringError(w, err)
			return
		}
	case status != "":
		var err error
		templates, err = h.recurringSvc.ListByStatus(status)
		if err != nil {
			mapRecurringError(w, err)
			return
		}
	default:
		WriteError(w, http.StatusBadRequest, "validation_error", "either status or a from/to window is required")
		return
	}

	out := make([]recurringOrderResponse, len(templates))
	for i, template := range templates {
		out[i] = buildRecurringOrderResponse(template)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"recurring_orders": out})
}

// Pause handles POST /recurring-orders/{recurring_order_id}/pause.
func (h *RecurringOrderHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.recurringSvc.Pause)
}

// Resume handles POST /recurring-orders/{recurring_order_id}/resume.
func (h *RecurringOrderHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.recurringSvc.Resume)
}

// Cancel handles DELETE /recurring-orders/{recurring_order_id}.
func (h *RecurringOrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.recurringSvc.Cancel)
}

func (h *RecurringOrderHandler) lifecycle(
	w http.ResponseWriter,
	r *http.Request,
	op func(id string) (*domain.RecurringOrder, error),
) {
	template, err := op(chi.URLParam(r, "recurring_order_id"))
	if err != nil {
		mapRecurringError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildRecurringOrderResponse(template))
}

// updateFrequencyRequest is the JSON request body for PATCH .../frequency.
type updateFrequencyRequest struct {
	Frequency string `json:"frequency"`
}

// UpdateFrequency handles PATCH /recurring-orders/{recurring_order_id}/frequency.
func (h *RecurringOrderHandler) UpdateFrequency(w http.ResponseWriter, r *http.Request) {
	var req updateFrequencyRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	template, err := h.recurringSvc.UpdateFrequency(chi.URLParam(r, "recurring_order_id"), req.Frequency)
	if err != nil {
		mapRecurringError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildRecurringOrderResponse(template))
}

// updateNextOrderDateRequest is the JSON request body for PATCH .../next-order-date.
type updateNextOrderDateRequest struct {
	NextOrderDate string `json:"next_order_date"`
}

// UpdateNextOrderDate handles PATCH /recurring-orders/{recurring_order_id}/next-order-date.
func (h *RecurringOrderHandler) UpdateNextOrderDate(w http.ResponseWriter, r *http.Request) {
	var req updateNextOrderDateRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	next, err := parseDate(req.NextOrderDate)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "next_order_date must be a valid date (YYYY-MM-DD)")
		return
	}

	template, err := h.recurringSvc.UpdateNextOrderDate(chi.URLParam(r, "recurring_order_id"), next)
	if err != nil {
		mapRecurringError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildRecurringOrderResponse(template))
}

// updateItemRequest is the JSON request body for PATCH .../items/{item_id}.
type updateItemRequest struct {
	Quantity int64 `json:"quantity"`
}

// UpdateItem handles PATCH /recurring-orders/{recurring_order_id}/items/{item_id}.
func (h *RecurringOrderHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	template, err := h.recurringSvc.UpdateItemQuantity(
		chi.URLParam(r, "recurring_order_id"),
		chi.URLParam(r, "item_id"),
		req.Quantity,
	)
	if err != nil {
		mapRecurringError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildRecurringOrderResponse(template))
}

// Process handles POST /recurring-orders/{recurring_order_id}/process:
// an operator-triggered equivalent of one scheduler pass for a single
// template.
func (h *RecurringOrderHandler) Process(w http.ResponseWriter, r *http.Request) {
	order, err := h.recurringSvc.ProcessDue(chi.URLParam(r, "recurring_order_id"))
	if err != nil {
		mapRecurringError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// parseDate accepts a date-only or RFC 3339 timestamp string.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func buildRecurringOrderResponse(template *domain.RecurringOrder) recurringOrderResponse {
	items := make([]recurringItemResponse, len(template.Items))
	for i, it := range template.Items {
		items[i] = recurringItemResponse{
			ItemID:    it.ItemID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: domain.CentsToDollars(it.UnitPrice),
		}
	}

	var lastOrderDate *string
	if template.LastOrderDate != nil {
		s := template.LastOrderDate.Format("2006-01-02")
		lastOrderDate = &s
	}

	orderIDs := template.OrderIDs
	if orderIDs == nil {
		orderIDs = []string{}
	}

	return recurringOrderResponse{
		RecurringOrderID:  template.RecurringOrderID,
		UserID:            template.UserID,
		SubscriptionID:    template.SubscriptionID,
		Status:            string(template.Status),
		Frequency:         string(template.Frequency),
		Items:             items,
		NextOrderDate:     template.NextOrderDate.Format("2006-01-02"),
		LastOrderDate:     lastOrderDate,
		OrderIDs:          orderIDs,
		ShippingAddressID: template.ShippingAddressID,
		PaymentMethodID:   template.PaymentMethodID,
		Notes:             template.Notes,
		CreatedAt:         formatTime(template.CreatedAt),
		UpdatedAt:         formatTime(template.UpdatedAt),
	}
}

// mapRecurringError maps domain errors to HTTP responses for
// recurring-order endpoints.
func mapRecurringError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}
	var transitionErr *domain.InvalidStateTransitionError
	if errors.As(err, &transitionErr) {
		WriteError(w, http.StatusConflict, "invalid_state_transition", transitionErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		WriteError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		WriteError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, domain.ErrRecurringOrderNotFound):
		WriteError(w, http.StatusNotFound, "recurring_order_not_found", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		WriteError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, domain.ErrNotDue):
		WriteError(w, http.StatusConflict, "not_due", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
