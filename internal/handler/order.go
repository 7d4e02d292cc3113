package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mylittleshop/fulfillment/internal/domain"
	"github.com/mylittleshop/fulfillment/internal/service"
)

// OrderHandler handles HTTP requests for order, payment, and shipment
// endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// orderLineRequest is one line of a create-order request body.
type orderLineRequest struct {
	ProductID string   `json:"product_id"`
	Quantity  int64    `json:"quantity"`
	UnitPrice *float64 `json:"unit_price"`
}

// createOrderRequest is the JSON request body for POST /orders.
type createOrderRequest struct {
	UserID         string             `json:"user_id"`
	Items          []orderLineRequest `json:"items"`
	RecipientName  string             `json:"recipient_name"`
	ContactNumber  string             `json:"contact_number"`
	Address        string             `json:"address"`
	PaymentMethod  string             `json:"payment_method"`
	ShippingMethod string             `json:"shipping_method"`
	DiscountAmount *float64           `json:"discount_amount"`
	ShippingFee    *float64           `json:"shipping_fee"`
	TaxAmount      *float64           `json:"tax_amount"`
	CouponCode     string             `json:"coupon_code"`
	IsGift         bool               `json:"is_gift"`
	GiftMessage    string             `json:"gift_message"`
}

// orderItemResponse is a single line item in an order response.
type orderItemResponse struct {
	ItemID    string  `json:"item_id"`
	ProductID string  `json:"product_id"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

// paymentResponse is a single payment in an order response.
type paymentResponse struct {
	PaymentID     string  `json:"payment_id"`
	Amount        float64 `json:"amount"`
	Method        string  `json:"method"`
	Status        string  `json:"status"`
	TransactionID string  `json:"transaction_id"`
	AttemptedAt   string  `json:"attempted_at"`
}

// shipmentResponse is the JSON representation of a shipment.
type shipmentResponse struct {
	ShipmentID     string  `json:"shipment_id"`
	OrderID        string  `json:"order_id"`
	TrackingNumber string  `json:"tracking_number"`
	Carrier        string  `json:"carrier"`
	Status         string  `json:"status"`
	RecipientName  string  `json:"recipient_name"`
	RecipientPhone string  `json:"recipient_phone"`
	Address        string  `json:"address"`
	CreatedAt      string  `json:"created_at"`
	ShippedAt      *string `json:"shipped_at"`
	DeliveredAt    *string `json:"delivered_at"`
}

// orderResponse is the JSON representation of an order aggregate.
type orderResponse struct {
	OrderID          string              `json:"order_id"`
	OrderNumber      string              `json:"order_number"`
	UserID           string              `json:"user_id"`
	Status           string              `json:"status"`
	Items            []orderItemResponse `json:"items"`
	TotalAmount      float64             `json:"total_amount"`
	DiscountAmount   float64             `json:"discount_amount"`
	ShippingFee      float64             `json:"shipping_fee"`
	TaxAmount        float64             `json:"tax_amount"`
	FinalAmount      float64             `json:"final_amount"`
	PaidAmount       float64             `json:"paid_amount"`
	RecipientName    string              `json:"recipient_name"`
	ContactNumber    string              `json:"contact_number"`
	Address          string              `json:"address"`
	PaymentMethod    string              `json:"payment_method"`
	ShippingMethod   string              `json:"shipping_method"`
	CouponCode       string              `json:"coupon_code,omitempty"`
	IsGift           bool                `json:"is_gift"`
	GiftMessage      string              `json:"gift_message,omitempty"`
	RecurringOrderID string              `json:"recurring_order_id,omitempty"`
	Payments         []paymentResponse   `json:"payments"`
	Shipments        []shipmentResponse  `json:"shipments"`
	CreatedAt        string              `json:"created_at"`
	UpdatedAt        string              `json:"updated_at"`
}

// statusHistoryResponse is a single status transition record.
type statusHistoryResponse struct {
	HistoryID      string `json:"history_id"`
	PreviousStatus string `json:"previous_status"`
	NewStatus      string `json:"new_status"`
	ChangedAt      string `json:"changed_at"`
	ChangedBy      string `json:"changed_by"`
	Reason         string `json:"reason,omitempty"`
}

// CreateOrder handles POST /orders.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	lines := make([]service.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		line := service.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity}
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

	discount, err := optionalCents(req.DiscountAmount)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	shipping, err := optionalCents(req.ShippingFee)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	tax, err := optionalCents(req.TaxAmount)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	order, err := h.orderSvc.CreateOrder(service.CreateOrderRequest{
		UserID: req.UserID,
		Lines:  lines,
		Delivery: domain.Delivery{
			RecipientName: req.RecipientName,
			ContactNumber: req.ContactNumber,
			Address:       req.Address,
		},
		PaymentMethod:  req.PaymentMethod,
		ShippingMethod: req.ShippingMethod,
		DiscountAmount: discount,
		ShippingFee:    shipping,
		TaxAmount:      tax,
		CouponCode:     req.CouponCode,
		IsGift:         req.IsGift,
		GiftMessage:    req.GiftMessage,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// GetOrder handles GET /orders/{order_id}. An order_id prefixed with
// "ORD-" is looked up as a human-facing order number.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	var (
		order *domain.Order
		err   error
	)
	if len(orderID) > 4 && orderID[:4] == "ORD-" {
		order, err = h.orderSvc.GetOrderByNumber(orderID)
	} else {
		order, err = h.orderSvc.GetOrder(orderID)
	}
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// changeStatusRequest is the JSON request body for PATCH /orders/{order_id}/status.
type changeStatusRequest struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	ChangedBy string `json:"changed_by"`
}

// ChangeStatus handles PATCH /orders/{order_id}/status.
func (h *OrderHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	var req changeStatusRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	status := domain.OrderStatus(req.Status)
	if !service.ValidOrderStatuses[status] {
		WriteError(w, http.StatusBadRequest, "validation_error", "unknown order status: "+req.Status)
		return
	}
	actor := req.ChangedBy
	if actor == "" {
		actor = service.SystemActor
	}

	order, err := h.orderSvc.ChangeStatus(orderID, status, req.Reason, actor)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// cancelOrderRequest is the JSON request body for DELETE /orders/{order_id}.
// The body is optional.
type cancelOrderRequest struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by"`
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	var req cancelOrderRequest
	_ = ParseJSON(r, &req) // optional body
	actor := req.CancelledBy
	if actor == "" {
		actor = service.SystemActor
	}

	order, err := h.orderSvc.CancelOrder(orderID, req.Reason, actor)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// CompleteOrder handles POST /orders/{order_id}/complete.
func (h *OrderHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.CompleteOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// addPaymentRequest is the JSON request body for POST /orders/{order_id}/payments.
type addPaymentRequest struct {
	Amount          float64 `json:"amount"`
	Method          string  `json:"method"`
	TransactionID   string  `json:"transaction_id"`
	GatewayResponse string  `json:"gateway_response"`
}

// AddPayment handles POST /orders/{order_id}/payments.
func (h *OrderHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	var req addPaymentRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	amount, err := domain.DollarsToCents(req.Amount)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	payment, err := h.orderSvc.AddPayment(orderID, amount, req.Method, req.TransactionID, req.GatewayResponse)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildPaymentResponse(payment))
}

// createShipmentRequest is the JSON request body for POST /orders/{order_id}/shipments.
type createShipmentRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

// CreateShipment handles POST /orders/{order_id}/shipments.
func (h *OrderHandler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	var req createShipmentRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	shipment, err := h.orderSvc.CreateShipment(orderID, req.TrackingNumber, req.Carrier)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildShipmentResponse(shipment))
}

// updateShipmentRequest is the JSON request body for PATCH /shipments/{shipment_id}.
type updateShipmentRequest struct {
	Status string `json:"status"`
}

// UpdateShipment handles PATCH /shipments/{shipment_id}.
func (h *OrderHandler) UpdateShipment(w http.ResponseWriter, r *http.Request) {
	shipmentID := chi.URLParam(r, "shipment_id")

	var req updateShipmentRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	shipment, err := h.orderSvc.UpdateShipmentStatus(shipmentID, domain.ShipmentStatus(req.Status))
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildShipmentResponse(shipment))
}

// StatusHistory handles GET /orders/{order_id}/history.
func (h *OrderHandler) StatusHistory(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	history, err := h.orderSvc.StatusHistory(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	out := make([]statusHistoryResponse, len(history))
	for i, hrec := range history {
		out[i] = statusHistoryResponse{
			HistoryID:      hrec.HistoryID,
			PreviousStatus: string(hrec.PreviousStatus),
			NewStatus:      string(hrec.NewStatus),
			ChangedAt:      formatTime(hrec.ChangedAt),
			ChangedBy:      hrec.ChangedBy,
			Reason:         hrec.Reason,
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"history": out})
}

// ListOrders handles GET /users/{user_id}/orders with optional status,
// page, and limit query parameters.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var status *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.OrderStatus(s)
		status = &st
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "page must be an integer")
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "limit must be an integer")
		return
	}

	orders, total, err := h.orderSvc.ListOrders(userID, status, page, limit)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = buildOrderResponse(o)
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"orders": out,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// optionalCents converts an optional dollar amount, defaulting to zero.
func optionalCents(f *float64) (int64, error) {
	if f == nil {
		return 0, nil
	}
	return domain.DollarsToCents(*f)
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, key string, defaultVal int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// buildOrderResponse converts an order aggregate to its JSON shape.
func buildOrderResponse(o *domain.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ItemID:    it.ItemID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: domain.CentsToDollars(it.UnitPrice),
			Subtotal:  domain.CentsToDollars(it.Subtotal()),
		}
	}
	payments := make([]paymentResponse, len(o.Payments))
	for i, p := range o.Payments {
		payments[i] = buildPaymentResponse(p)
	}
	shipments := make([]shipmentResponse, len(o.Shipments))
	for i, sh := range o.Shipments {
		shipments[i] = buildShipmentResponse(sh)
	}

	return orderResponse{
		OrderID:          o.OrderID,
		OrderNumber:      o.OrderNumber,
		UserID:           o.UserID,
		Status:           string(o.Status),
		Items:            items,
		TotalAmount:      domain.CentsToDollars(o.TotalAmount),
		DiscountAmount:   domain.CentsToDollars(o.DiscountAmount),
		ShippingFee:      domain.CentsToDollars(o.ShippingFee),
		TaxAmount:        domain.CentsToDollars(o.TaxAmount),
		FinalAmount:      domain.CentsToDollars(o.FinalAmount),
		PaidAmount:       domain.CentsToDollars(o.TotalPaid()),
		RecipientName:    o.Delivery.RecipientName,
		ContactNumber:    o.Delivery.ContactNumber,
		Address:          o.Delivery.Address,
		PaymentMethod:    o.PaymentMethod,
		ShippingMethod:   o.ShippingMethod,
		CouponCode:       o.CouponCode,
		IsGift:           o.IsGift,
		GiftMessage:      o.GiftMessage,
		RecurringOrderID: o.RecurringOrderID,
		Payments:         payments,
		Shipments:        shipments,
		CreatedAt:        formatTime(o.CreatedAt),
		UpdatedAt:        formatTime(o.UpdatedAt),
	}
}

func buildPaymentResponse(p *domain.Payment) paymentResponse {
	return paymentResponse{
		PaymentID:     p.PaymentID,
		Amount:        domain.CentsToDollars(p.Amount),
		Method:        p.Method,
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		AttemptedAt:   formatTime(p.AttemptedAt),
	}
}

func buildShipmentResponse(sh *domain.Shipment) shipmentResponse {
	return shipmentResponse{
		ShipmentID:     sh.ShipmentID,
		OrderID:        sh.OrderID,
		TrackingNumber: sh.TrackingNumber,
		Carrier:        sh.Carrier,
		Status:         string(sh.Status),
		RecipientName:  sh.RecipientName,
		RecipientPhone: sh.RecipientPhone,
		Address:        sh.Address,
		CreatedAt:      formatTime(sh.CreatedAt),
		ShippedAt:      formatTimePtr(sh.ShippedAt),
		DeliveredAt:    formatTimePtr(sh.DeliveredAt),
	}
}

// mapOrderError maps domain errors to HTTP responses for order endpoints.
func mapOrderError(w http.ResponseWriter, err error) {
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
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrShipmentNotFound):
		WriteError(w, http.StatusNotFound, "shipment_not_found", err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		WriteError(w, http.StatusConflict, "insufficient_stock", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
