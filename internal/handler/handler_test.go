package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mylittleshop/fulfillment/internal/domain"
	"github.com/mylittleshop/fulfillment/internal/engine"
	"github.com/mylittleshop/fulfillment/internal/service"
	"github.com/mylittleshop/fulfillment/internal/store"
)

// testEnv bundles all dependencies for handler integration tests.
type testEnv struct {
	router       http.Handler
	products     *store.ProductStore
	users        *store.UserStore
	orderSvc     *service.OrderService
	inventorySvc *service.InventoryService
	recurringSvc *service.RecurringOrderService
	subSvc       *service.SubscriptionService
}

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestEnv() *testEnv {
	clock := domain.FixedClock(testNow)
	products := store.NewProductStore()
	users := store.NewUserStore()
	inventory := store.NewInventoryStore()
	orders := store.NewOrderStore()
	templates := store.NewRecurringOrderStore()
	subs := store.NewSubscriptionStore()
	dueIndex := engine.NewDueIndex()

	ledger := engine.NewLedger(inventory, clock)
	inventorySvc := service.NewInventoryService(ledger, products, store.NewHistoryStore(), clock)
	orderSvc := service.NewOrderService(orders, inventorySvc, products, users, clock)
	recurringSvc := service.NewRecurringOrderService(templates, orderSvc, dueIndex, products, users, clock)
	subSvc := service.NewSubscriptionService(subs, templates, recurringSvc, users, clock)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(orderSvc, inventorySvc, recurringSvc, subSvc, logger)

	return &testEnv{
		router:       router,
		products:     products,
		users:        users,
		orderSvc:     orderSvc,
		inventorySvc: inventorySvc,
		recurringSvc: recurringSvc,
		subSvc:       subSvc,
	}
}

// doJSON sends a JSON request and returns the recorder. The Content-Type
// header is always set so body-less POSTs pass the middleware.
func (env *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// doRaw sends a raw request with optional content-type override.
func (env *testEnv) doRaw(t *testing.T, method, path, contentType, rawBody string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(rawBody))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// decodeJSON decodes the response body into v.
func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rr.Body.String())
	}
}

func (env *testEnv) seedProduct(t *testing.T, id string, price, stock int64) {
	t.Helper()
	env.products.Create(&domain.Product{
		ProductID:     id,
		Name:          "product " + id,
		ConsumerPrice: price,
		Status:        domain.ProductStatusActive,
	})
	if stock > 0 {
		if _, err := env.inventorySvc.AddStock(id, stock, "initial receipt"); err != nil {
			t.Fatalf("seed stock: %v", err)
		}
	}
}

func (env *testEnv) seedUser(t *testing.T, id string) {
	t.Helper()
	env.users.Create(&domain.User{UserID: id, Name: "user " + id})
}

// createOrder places an order via the API and returns the decoded response.
func (env *testEnv) createOrder(t *testing.T, userID string, items []map[string]any) map[string]any {
	t.Helper()
	rr := env.doJSON(t, "POST", "/orders", map[string]any{
		"user_id":        userID,
		"items":          items,
		"recipient_name": "Ada",
		"contact_number": "555-0101",
		"address":        "1 Main St",
		"payment_method": "card",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, rr, &resp)
	return resp
}

func TestHealthz(t *testing.T) {
	env := newTestEnv()

	rr := env.doJSON(t, "GET", "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestContentTypeRequired(t *testing.T) {
	env := newTestEnv()

	rr := env.doRaw(t, "POST", "/orders", "text/plain", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong content type, got %d", rr.Code)
	}
	rr = env.doRaw(t, "POST", "/orders", "application/json", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rr.Code)
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "u1")
	env.seedProduct(t, "p1", 1500, 10)

	order := env.createOrder(t, "u1", []map[string]any{
		{"product_id": "p1", "quantity": 2},
	})
	orderID := order["order_id"].(string)
	if order["status"] != "pending" {
		t.Fatalf("expected pending, got %v", order["status"])
	}
	if order["total_amount"].(float64) != 30.0 {
		t.Fatalf("expected total 30.0, got %v", order["total_amount"])
	}

	// Lookup by id and by order number.
	rr := env.doJSON(t, "GET", "/orders/"+orderID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get by id: expected 200, got %d", rr.Code)
	}
	rr = env.doJSON(t, "GET", "/orders/"+order["order_number"].(string), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get by number: expected 200, got %d", rr.Code)
	}

	// Pay in full: the order auto-transitions to processing.
	rr = env.doJSON(t, "POST", "/orders/"+orderID+"/payments", map[string]any{
		"amount": 30.0,
		"method": "card",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add payment: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = env.doJSON(t, "GET", "/orders/"+orderID, nil)
	var paid map[string]any
	decodeJSON(t, rr, &paid)
	if paid["status"] != "processing" {
		t.Fatalf("expected processing after full payment, got %v", paid["status"])
	}

	// Ship it and drive the shipment to delivered.
	rr = env.doJSON(t, "POST", "/orders/"+orderID+"/shipments", map[string]any{
		"tracking_number": "TRK-1",
		"carrier":         "ups",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create shipment: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var shipment map[string]any
	decodeJSON(t, rr, &shipment)
	shipmentID := shipment["shipment_id"].(string)
	if shipment["recipient_name"] != "Ada" {
		t.Fatalf("expected recipient copied to shipment, got %v", shipment["recipient_name"])
	}

	rr = env.doJSON(t, "PATCH", "/shipments/"+shipmentID, map[string]any{"status": "in_transit"})
	if rr.Code != http.StatusOK {
		t.Fatalf("ship: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = env.doJSON(t, "PATCH", "/shipments/"+shipmentID, map[string]any{"status": "delivered"})
	if rr.Code != http.StatusOK {
		t.Fatalf("deliver: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.doJSON(t, "POST", "/orders/"+orderID+"/complete", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// History reflects the full chain.
	rr = env.doJSON(t, "GET", "/orders/"+orderID+"/history", nil)
	var histResp struct {
		History []map[string]any `json:"history"`
	}
	decodeJSON(t, rr, &histResp)
	if len(histResp.History) != 5 {
		t.Fatalf("expected 5 history entries, got %d", len(histResp.History))
	}
	last := histResp.History[len(histResp.History)-1]
	if last["new_status"] != "completed" {
		t.Fatalf("expected final entry completed, got %v", last["new_status"])
	}
}

func TestCancelOrderOverHTTP(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "u1")
	env.seedProduct(t, "p1", 1000, 5)

	order := env.createOrder(t, "u1", []map[string]any{{"product_id": "p1", "quantity": 3}})
	orderID := order["order_id"].(string)

	rr := env.doJSON(t, "DELETE", "/orders/"+orderID, map[string]any{"reason": "changed my mind"})
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var cancelled map[string]any
	decodeJSON(t, rr, &cancelled)
	if cancelled["status"] != "cancelled" {
		t.Fatalf("expected cancelled, got %v", cancelled["status"])
	}

	// Stock is back.
	rr = env.doJSON(t, "GET", "/inventory/p1", nil)
	var stock map[string]any
	decodeJSON(t, rr, &stock)
	if stock["available_stock"].(float64) != 5 {
		t.Fatalf("expected availability restored to 5, got %v", stock["available_stock"])
	}

	// A second cancel is a conflict.
	rr = env.doJSON(t, "DELETE", "/orders/"+orderID, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("double cancel: expected 409, got %d", rr.Code)
	}
}

func TestOrderErrorMapping(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "u1")
	env.seedProduct(t, "p1", 1000, 2)

	// Unknown user → 404.
	rr := env.doJSON(t, "POST", "/orders", map[string]any{
		"user_id": "ghost",
		"items":   []map[string]any{{"product_id": "p1", "quantity": 1}},
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rr.Code)
	}

	// Insufficient stock → 409.
	rr = env.doJSON(t, "POST", "/orders", map[string]any{
		"user_id": "u1",
		"items":   []map[string]any{{"product_id": "p1", "quantity": 99}},
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d", rr.Code)
	}

	// Zero quantity → 400.
	rr = env.doJSON(t, "POST", "/orders", map[string]any{
		"user_id": "u1",
		"items":   []map[string]any{{"product_id": "p1", "quantity": 0}},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d", rr.Code)
	}

	// Unknown order → 404.
	rr = env.doJSON(t, "GET", "/orders/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown order, got %d", rr.Code)
	}

	// Illegal status edge → 409.
	order := env.createOrder(t, "u1", []map[string]any{{"product_id": "p1", "quantity": 1}})
	rr = env.doJSON(t, "PATCH", "/orders/"+order["order_id"].(string)+"/status", map[string]any{
		"status": "delivered",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for illegal transition, got %d", rr.Code)
	}

	// Unknown status value → 400.
	rr = env.doJSON(t, "PATCH", "/orders/"+order["order_id"].(string)+"/status", map[string]any{
		"status": "teleported",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
}

func TestListOrdersOverHTTP(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "u1")
	env.seedProduct(t, "p1", 1000, 100)

	for i := 0; i < 5; i++ {
		env.createOrder(t, "u1", []map[string]any{{"product_id": "p1", "quantity": 1}})
	}

	rr := env.doJSON(t, "GET", "/users/u1/orders?page=1&limit=2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Orders []map[string]any `json:"orders"`
		Total  int              `json:"total"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Total != 5 || len(resp.Orders) != 2 {
		t.Fatalf("expected 2 of 5, got %d of %d", len(resp.Orders), resp.Total)
	}

	rr = env.doJSON(t, "GET", "/users/u1/orders?status=cancelled", nil)
	decodeJSON(t, rr, &resp)
	if resp.Total != 0 {
		t.Fatalf("expected 0 cancelled, got %d", resp.Total)
	}

	rr = env.doJSON(t, "GET", "/users/u1/orders?page=abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad page, got %d", rr.Code)
	}
}

func TestInventoryEndpoints(t *testing.T) {
	env := newTestEnv()
	env.seedProduct(t, "p1", 1000, 0)

	rr := env.doJSON(t, "POST", "/inventory/p1/add", map[string]any{"quantity": 10, "note": "receipt"})
	if rr.Code != http.StatusOK {
		t.Fatalf("add: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = env.doJSON(t, "POST", "/inventory/p1/reserve", map[string]any{"quantity": 4})
	if rr.Code != http.StatusOK {
		t.Fatalf("reserve: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.doJSON(t, "GET", "/inventory/p1", nil)
	var stock map[string]any
	decodeJSON(t, rr, &stock)
	if stock["quantity"].(float64) != 10 || stock["available_stock"].(float64) != 6 || stock["reserved"].(float64) != 4 {
		t.Fatalf("unexpected stock response: %v", stock)
	}

	// Over-reserve → 409.
	rr = env.doJSON(t, "POST", "/inventory/p1/reserve", map[string]any{"quantity": 7})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for over-reserve, got %d", rr.Code)
	}

	// Adjustment below reserved units → 409.
	rr = env.doJSON(t, "POST", "/inventory/p1/adjust", map[string]any{"quantity": 3})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for invalid adjustment, got %d", rr.Code)
	}

	// Unknown product → 404, on reserve and release too.
	rr = env.doJSON(t, "POST", "/inventory/ghost/add", map[string]any{"quantity": 1})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rr.Code)
	}
	rr = env.doJSON(t, "POST", "/inventory/ghost/reserve", map[string]any{"quantity": 1})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for reserve on unknown product, got %d", rr.Code)
	}
	rr = env.doJSON(t, "POST", "/inventory/ghost/release", map[string]any{"quantity": 1})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for release on unknown product, got %d", rr.Code)
	}

	rr = env.doJSON(t, "GET", "/inventory/p1/history", nil)
	var histResp struct {
		History []map[string]any `json:"history"`
	}
	decodeJSON(t, rr, &histResp)
	if len(histResp.History) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(histResp.History))
	}
}

func TestLowStockEndpoint(t *testing.T) {
	env := newTestEnv()
	env.seedProduct(t, "plenty", 1000, 50)
	env.seedProduct(t, "scarce", 2500, 4)
	env.seedProduct(t, "empty", 900, 0)

	rr := env.doJSON(t, "GET", "/inventory/low", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Products  []map[string]any `json:"products"`
		Threshold int              `json:"threshold"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Threshold != 10 {
		t.Fatalf("expected default threshold 10, got %d", resp.Threshold)
	}
	if len(resp.Products) != 2 {
		t.Fatalf("expected 2 low products, got %d: %v", len(resp.Products), resp.Products)
	}
	// Sorted by product id: "empty" before "scarce".
	if resp.Products[0]["product_id"] != "empty" || resp.Products[1]["product_id"] != "scarce" {
		t.Fatalf("unexpected products: %v", resp.Products)
	}
	if resp.Products[1]["stock_quantity"].(float64) != 4 {
		t.Fatalf("expected stock 4, got %v", resp.Products[1]["stock_quantity"])
	}
	if resp.Products[1]["consumer_price"].(float64) != 25.0 {
		t.Fatalf("expected price 25.0, got %v", resp.Products[1]["consumer_price"])
	}

	rr = env.doJSON(t, "GET", "/inventory/low?threshold=3", nil)
	decodeJSON(t, rr, &resp)
	if len(resp.Products) != 1 {
		t.Fatalf("expected 1 product under threshold 3, got %d", len(resp.Products))
	}

	rr = env.doJSON(t, "GET", "/inventory/low?threshold=lots", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric threshold, got %d", rr.Code)
	}
}

func TestRecurringOrderEndpoints(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "u1")
	env.seedProduct(t, "p1", 1200, 50)

	rr := env.doJSON(t, "POST", "/recurring-orders", map[string]any{
		"user_id":         "u1",
		"frequency":       "MONTHLY",
		"next_order_date": "2024-05-10",
		"items":           []map[string]any{{"product_id": "p1", "quantity": 2}},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var template map[string]any
	decodeJSON(t, rr, &template)
	id := template["recurring_order_id"].(string)
	if template["status"] != "active" {
		t.Fatalf("expected active, got %v", template["status"])
	}

	// Trigger a run by hand.
	rr = env.doJSON(t, "POST", "/recurring-orders/"+id+"/process", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("process: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var order map[string]any
	decodeJSON(t, rr, &order)
	if order["recurring_order_id"] != id {
		t.Fatalf("expected order linked to template, got %v", order["recurring_order_id"])
	}

	rr = env.doJSON(t, "GET", "/recurring-orders/"+id, nil)
	decodeJSON(t, rr, &template)
	if template["next_order_date"] != "2024-06-10" {
		t.Fatalf("expected next date advanced to 2024-06-10, got %v", template["next_order_date"])
	}
	if template["last_order_date"] != "2024-05-10" {
		t.Fatalf("expected last date 2024-05-10, got %v", template["last_order_date"])
	}

	// Pause, then processing is a conflict.
	rr = env.doJSON(t, "POST", "/recurring-orders/"+id+"/pause", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = env.doJSON(t, "POST", "/recurring-orders/"+id+"/process", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("process paused: expected 409, got %d", rr.Code)
	}

	rr = env.doJSON(t, "POST", "/recurring-orders/"+id+"/resume", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d", rr.Code)
	}

	// Update frequency and item quantity.
	rr = env.doJSON(t, "PATCH", "/recurring-orders/"+id+"/frequency", map[string]any{"frequency": "WEEKLY"})
	if rr.Code != http.StatusOK {
		t.Fatalf("frequency: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	decodeJSON(t, rr, &template)
	if template["frequency"] != "weekly" {
		t.Fatalf("expected weekly, got %v", template["frequency"])
	}

	items := template["items"].([]any)
	itemID := items[0].(map[string]any)["item_id"].(string)
	rr = env.doJSON(t, "PATCH", "/recurring-orders/"+id+"/items/"+itemID, map[string]any{"quantity": 5})
	if rr.Code != http.StatusOK {
		t.Fatalf("item: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.doJSON(t, "GET", "/users/u1/recurring-orders", nil)
	var listResp struct {
		RecurringOrders []map[string]any `json:"recurring_orders"`
	}
	decodeJSON(t, rr, &listResp)
	if len(listResp.RecurringOrders) != 1 {
		t.Fatalf("expected 1 template, got %d", len(listResp.RecurringOrders))
	}

	rr = env.doJSON(t, "DELETE", "/recurring-orders/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rr.Code)
	}
	rr = env.doJSON(t, "POST", "/recurring-orders/"+id+"/resume", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("resume cancelled: expected 409, got %d", rr.Code)
	}

	// Bad date → 400.
	rr = env.doJSON(t, "POST", "/recurring-orders", map[string]any{
		"user_id":         "u1",
		"frequency":       "MONTHLY",
		"next_order_date": "soon",
		"items":           []map[string]any{{"product_id": "p1", "quantity": 1}},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rr.Code)
	}
}

func TestRecurringOrderListEndpoint(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "u1")
	env.seedProduct(t, "p1", 1200, 50)

	create := func(next string) string {
		rr := env.doJSON(t, "POST", "/recurring-orders", map[string]any{
			"user_id":         "u1",
			"frequency":       "MONTHLY",
			"next_order_date": next,
			"items":           []map[string]any{{"product_id": "p1", "quantity": 1}},
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
		}
		var template map[string]any
		decodeJSON(t, rr, &template)
		return template["recurring_order_id"].(string)
	}

	soonID := create("2024-05-15")
	create("2024-07-01")
	pausedID := create("2024-05-20")
	rr := env.doJSON(t, "POST", "/recurring-orders/"+pausedID+"/pause", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d", rr.Code)
	}

	var resp struct {
		RecurringOrders []map[string]any `json:"recurring_orders"`
	}

	rr = env.doJSON(t, "GET", "/recurring-orders?status=paused", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status filter: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	decodeJSON(t, rr, &resp)
	if len(resp.RecurringOrders) != 1 || resp.RecurringOrders[0]["recurring_order_id"] != pausedID {
		t.Fatalf("unexpected paused listing: %v", resp.RecurringOrders)
	}

	// Due window is inclusive and status-blind.
	rr = env.doJSON(t, "GET", "/recurring-orders?from=2024-05-01&to=2024-05-15", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("window: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	decodeJSON(t, rr, &resp)
	if len(resp.RecurringOrders) != 1 || resp.RecurringOrders[0]["recurring_order_id"] != soonID {
		t.Fatalf("unexpected window listing: %v", resp.RecurringOrders)
	}

	// Selector validation.
	if rr := env.doJSON(t, "GET", "/recurring-orders", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("no selector: expected 400, got %d", rr.Code)
	}
	if rr := env.doJSON(t, "GET", "/recurring-orders?from=2024-05-01", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("half window: expected 400, got %d", rr.Code)
	}
	if rr := env.doJSON(t, "GET", "/recurring-orders?status=dormant", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad status: expected 400, got %d", rr.Code)
	}
}

func TestProcessNotYetDueOverHTTP(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "u1")
	env.seedProduct(t, "p1", 1200, 50)

	rr := env.doJSON(t, "POST", "/recurring-orders", map[string]any{
		"user_id":         "u1",
		"frequency":       "MONTHLY",
		"next_order_date": "2024-06-01",
		"items":           []map[string]any{{"product_id": "p1", "quantity": 1}},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var template map[string]any
	decodeJSON(t, rr, &template)
	id := template["recurring_order_id"].(string)

	// The template's next date is in the future relative to the fixed
	// clock (2024-05-10): a manual run conflicts instead of ordering.
	rr = env.doJSON(t, "POST", "/recurring-orders/"+id+"/process", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for early run, got %d: %s", rr.Code, rr.Body.String())
	}
	var errResp map[string]any
	decodeJSON(t, rr, &errResp)
	if errResp["error"] != "not_due" {
		t.Fatalf("expected not_due error code, got %v", errResp["error"])
	}

	// Nothing was ordered or advanced.
	rr = env.doJSON(t, "GET", "/recurring-orders/"+id, nil)
	decodeJSON(t, rr, &template)
	if template["next_order_date"] != "2024-06-01" {
		t.Fatalf("next date moved to %v", template["next_order_date"])
	}
	if got := template["order_ids"].([]any); len(got) != 0 {
		t.Fatalf("expected no orders, got %v", got)
	}
}

func TestSubscriptionEndpoints(t *testing.T) {
	env := newTestEnv()
	env.seedUser(t, "u1")

	rr := env.doJSON(t, "POST", "/subscriptions", map[string]any{
		"user_id":    "u1",
		"plan_name":  "coffee-club",
		"frequency":  "MONTHLY",
		"trial_days": 14,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var sub map[string]any
	decodeJSON(t, rr, &sub)
	id := sub["subscription_id"].(string)
	if sub["status"] != "trial" {
		t.Fatalf("expected trial, got %v", sub["status"])
	}
	if sub["next_billing_date"] != "2024-05-24" {
		t.Fatalf("expected first bill at trial end, got %v", sub["next_billing_date"])
	}

	rr = env.doJSON(t, "POST", "/subscriptions/"+id+"/renew", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("renew: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	decodeJSON(t, rr, &sub)
	if sub["status"] != "active" {
		t.Fatalf("expected active after renewal, got %v", sub["status"])
	}

	rr = env.doJSON(t, "POST", "/subscriptions/"+id+"/payment-failure", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("payment-failure: expected 200, got %d", rr.Code)
	}

	rr = env.doJSON(t, "DELETE", "/subscriptions/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rr.Code)
	}
	rr = env.doJSON(t, "POST", "/subscriptions/"+id+"/renew", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("renew cancelled: expected 409, got %d", rr.Code)
	}

	rr = env.doJSON(t, "GET", "/subscriptions/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown subscription, got %d", rr.Code)
	}
}
