package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mylittleshop/fulfillment/internal/service"
)

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(
	orderSvc *service.OrderService,
	inventorySvc *service.InventoryService,
	recurringSvc *service.RecurringOrderService,
	subSvc *service.SubscriptionService,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	orderH := NewOrderHandler(orderSvc)
	inventoryH := NewInventoryHandler(inventorySvc)
	recurringH := NewRecurringOrderHandler(recurringSvc)
	subH := NewSubscriptionHandler(subSvc)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Order routes.
	r.Post("/orders", orderH.CreateOrder)
	r.Get("/orders/{order_id}", orderH.GetOrder)
	r.Delete("/orders/{order_id}", orderH.CancelOrder)
	r.Patch("/orders/{order_id}/status", orderH.ChangeStatus)
	r.Post("/orders/{order_id}/complete", orderH.CompleteOrder)
	r.Post("/orders/{order_id}/payments", orderH.AddPayment)
	r.Post("/orders/{order_id}/shipments", orderH.CreateShipment)
	r.Get("/orders/{order_id}/history", orderH.StatusHistory)
	r.Patch("/shipments/{shipment_id}", orderH.UpdateShipment)
	r.Get("/users/{user_id}/orders", orderH.ListOrders)

	// Inventory routes. The static /inventory/low route coexists with the
	// {product_id} wildcard; chi matches static segments first.
	r.Get("/inventory/low", inventoryH.LowStock)
	r.Get("/inventory/{product_id}", inventoryH.GetStock)
	r.Get("/inventory/{product_id}/history", inventoryH.History)
	r.Post("/inventory/{product_id}/add", inventoryH.AddStock)
	r.Post("/inventory/{product_id}/remove", inventoryH.RemoveStock)
	r.Post("/inventory/{product_id}/adjust", inventoryH.AdjustStock)
	r.Post("/inventory/{product_id}/reserve", inventoryH.Reserve)
	r.Post("/inventory/{product_id}/release", inventoryH.Release)

	// Recurring-order routes.
	r.Post("/recurring-orders", recurringH.Create)
	r.Get("/recurring-orders", recurringH.List)
	r.Get("/recurring-orders/{recurring_order_id}", recurringH.Get)
	r.Delete("/recurring-orders/{recurring_order_id}", recurringH.Cancel)
	r.Post("/recurring-orders/{recurring_order_id}/pause", recurringH.Pause)
	r.Post("/recurring-orders/{recurring_order_id}/resume", recurringH.Resume)
	r.Post("/recurring-orders/{recurring_order_id}/process", recurringH.Process)
	r.Patch("/recurring-orders/{recurring_order_id}/frequency", recurringH.UpdateFrequency)
	r.Patch("/recurring-orders/{recurring_order_id}/next-order-date", recurringH.UpdateNextOrderDate)
	r.Patch("/recurring-orders/{recurring_order_id}/items/{item_id}", recurringH.UpdateItem)
	r.Get("/users/{user_id}/recurring-orders", recurringH.ListByUser)

	// Subscription routes.
	r.Post("/subscriptions", subH.Create)
	r.Get("/subscriptions/{subscription_id}", subH.Get)
	r.Delete("/subscriptions/{subscription_id}", subH.Cancel)
	r.Post("/subscriptions/{subscription_id}/renew", subH.Renew)
	r.Post("/subscriptions/{subscription_id}/payment-failure", subH.PaymentFailure)
	r.Post("/subscriptions/{subscription_id}/pause", subH.Pause)
	r.Post("/subscriptions/{subscription_id}/resume", subH.Resume)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
