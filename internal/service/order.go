package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mylittleshop/fulfillment/internal/domain"
	"github.com/mylittleshop/fulfillment/internal/store"
)

// SystemActor stamps transitions the engine performs on its own
// (payment-driven auto-transitions, shipment propagation).
const SystemActor = "system"

// ValidOrderStatuses lists all valid order status values for validation.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusPending:            true,
	domain.OrderStatusPaymentPending:     true,
	domain.OrderStatusPaymentFailed:      true,
	domain.OrderStatusProcessing:         true,
	domain.OrderStatusOnHold:             true,
	domain.OrderStatusPartiallyShipped:   true,
	domain.OrderStatusShipped:            true,
	domain.OrderStatusPartiallyDelivered: true,
	domain.OrderStatusDelivered:          true,
	domain.OrderStatusReturned:           true,
	domain.OrderStatusPartiallyRefunded:  true,
	domain.OrderStatusCompleted:          true,
	domain.OrderStatusCancelled:          true,
	domain.OrderStatusRefunded:           true,
}

// OrderLine is one requested line of a new order. UnitPrice overrides the
// product's consumer price when set; either way the price is captured on
// the order item and never recomputed.
type OrderLine struct {
	ProductID string
	Quantity  int64
	UnitPrice *int64 // cents; nil means the product's consumer price
}

// CreateOrderRequest carries everything needed to place an order.
type CreateOrderRequest struct {
	UserID         string
	Lines          []OrderLine
	Delivery       domain.Delivery
	PaymentMethod  string
	ShippingMethod string
	DiscountAmount int64
	ShippingFee    int64
	TaxAmount      int64
	CouponCode     string
	IsGift         bool
	GiftMessage    string

	// RecurringOrderID links the order back to the template that
	// produced it. Set by the recurring-order service only.
	RecurringOrderID string
}

// OrderService owns the order aggregate: creation with all-or-nothing
// stock reservation, the status state machine with history, payments,
// shipments, and cancellation with stock release.
type OrderService struct {
	orders    *store.OrderStore
	inventory *InventoryService
	catalog   Catalog
	users     Identity
	clock     domain.Clock
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(
	orders *store.OrderStore,
	inventory *InventoryService,
	catalog Catalog,
	users Identity,
	clock domain.Clock,
) *OrderService {
	return &OrderService{
		orders:    orders,
		inventory: inventory,
		catalog:   catalog,
		users:     users,
		clock:     clock,
	}
}

// CreateOrder reserves stock for every line and persists the order with a
// pending status-history entry. Reservation is all-or-nothing: if any line
// cannot be reserved, reservations already taken for earlier lines are
// released and the whole operation fails.
func (s *OrderService) CreateOrder(req CreateOrderRequest) (*domain.Order, error) {
	if _, err := s.users.GetUser(req.UserID); err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, &domain.ValidationError{Message: "order must have at least one line"}
	}
	if req.DiscountAmount < 0 || req.ShippingFee < 0 || req.TaxAmount < 0 {
		return nil, &domain.ValidationError{Message: "monetary fields must not be negative"}
	}

	// Resolve products and capture unit prices before touching stock.
	items := make([]domain.OrderItem, 0, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
		}
		product, err := s.catalog.GetProduct(line.ProductID)
		if err != nil {
			return nil, err
		}
		unitPrice := product.ConsumerPrice
		if line.UnitPrice != nil {
			if *line.UnitPrice < 0 {
				return nil, &domain.ValidationError{Message: "unit price must not be negative"}
			}
			unitPrice = *line.UnitPrice
		}
		items = append(items, domain.OrderItem{
			ItemID:    uuid.New().String(),
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
		})
	}

	now := s.clock.Now()
	orderID := uuid.New().String()
	orderNumber := newOrderNumber(now, orderID)
	note := "order " + orderNumber

	// Reserve line by line; roll back earlier reservations on failure.
	for i, it := range items {
		if _, err := s.inventory.Reserve(it.ProductID, it.Quantity, note); err != nil {
			for _, taken := range items[:i] {
				s.inventory.Release(taken.ProductID, taken.Quantity, note+" rollback")
			}
			if err == domain.ErrInsufficientStock {
				return nil, fmt.Errorf("product %s: %w", it.ProductID, err)
			}
			return nil, err
		}
	}

	order := &domain.Order{
		OrderID:          orderID,
		OrderNumber:      orderNumber,
		UserID:           req.UserID,
		Status:           domain.OrderStatusPending,
		Items:            items,
		DiscountAmount:   req.DiscountAmount,
		ShippingFee:      req.ShippingFee,
		TaxAmount:        req.TaxAmount,
		Delivery:         req.Delivery,
		PaymentMethod:    req.PaymentMethod,
		ShippingMethod:   req.ShippingMethod,
		CouponCode:       req.CouponCode,
		IsGift:           req.IsGift,
		GiftMessage:      req.GiftMessage,
		RecurringOrderID: req.RecurringOrderID,
		CreatedAt:        now,
		UpdatedAt:        now,
		UpdatedBy:        req.UserID,
	}
	order.RecomputeTotals()
	order.StatusHistory = append(order.StatusHistory, domain.OrderStatusHistory{
		HistoryID: uuid.New().String(),
		NewStatus: domain.OrderStatusPending,
		ChangedAt: now,
		ChangedBy: req.UserID,
		Reason:    "order created",
	})

	s.orders.Create(order)
	order.Mu.Lock()
	defer order.Mu.Unlock()
	return order.Snapshot(), nil
}

// newOrderNumber builds the human-facing order number: date plus the first
// uuid block, e.g. ORD-20240510-9F3A21C4.
func newOrderNumber(now time.Time, orderID string) string {
	return "ORD-" + now.Format("20060102") + "-" + strings.ToUpper(orderID[:8])
}

// ChangeStatus transitions an order through the state machine, appending
// one immutable history entry per transition. Illegal edges (including any
// transition out of a terminal state) fail with InvalidStateTransition.
func (s *OrderService) ChangeStatus(orderID string, newStatus domain.OrderStatus, reason, actor string) (*domain.Order, error) {
	if !ValidOrderStatuses[newStatus] {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown order status: %q", newStatus)}
	}
	order, err := s.orders.Get(orderID)
	if err != nil {
		return nil, err
	}

	order.Mu.Lock()
	defer order.Mu.Unlock()
	if err := s.changeStatusLocked(order, newStatus, reason, actor); err != nil {
		return nil, err
	}
	return order.Snapshot(), nil
}

// changeStatusLocked performs the transition contract: history entry with
// the previous status, then the status and audit stamps. Caller holds
// order.Mu.
func (s *OrderService) changeStatusLocked(order *domain.Order, newStatus domain.OrderStatus, reason, actor string) error {
	if !domain.CanTransition(order.Status, newStatus) {
		return &domain.InvalidStateTransitionError{
			Entity: "order",
			From:   string(order.Status),
			To:     string(newStatus),
		}
	}
	now := s.clock.Now()
	order.StatusHistory = append(order.StatusHistory, domain.OrderStatusHistory{
		HistoryID:      uuid.New().String(),
		PreviousStatus: order.Status,
		NewStatus:      newStatus,
		ChangedAt:      now,
		ChangedBy:      actor,
		Reason:         reason,
	})
	order.Status = newStatus
	order.UpdatedAt = now
	order.UpdatedBy = actor
	return nil
}

// AddPayment records a completed payment result against an order and
// recomputes whether it is fully paid. An order that becomes fully paid
// while pending (or payment-pending) auto-transitions to processing.
// Terminal orders accept no further payments.
func (s *OrderService) AddPayment(orderID string, amount int64, method, transactionID, gatewayResponse string) (*domain.Payment, error) {
	if amount <= 0 {
		return nil, &domain.ValidationError{Message: "amount must be a positive integer"}
	}
	order, err := s.orders.Get(orderID)
	if err != nil {
		return nil, err
	}

	order.Mu.Lock()
	defer order.Mu.Unlock()

	if domain.IsTerminalStatus(order.Status) {
		return nil, &domain.InvalidStateTransitionError{Entity: "order", From: string(order.Status)}
	}

	now := s.clock.Now()
	payment := &domain.Payment{
		PaymentID:       uuid.New().String(),
		OrderID:         order.OrderID,
		Amount:          amount,
		Method:          method,
		Status:          domain.PaymentStatusCompleted,
		TransactionID:   transactionID,
		GatewayResponse: gatewayResponse,
		AttemptedAt:     now,
		CompletedAt:     &now,
	}
	order.Payments = append(order.Payments, payment)

	if order.IsFullyPaid() &&
		(order.Status == domain.OrderStatusPending || order.Status == domain.OrderStatusPaymentPending) {
		if err := s.changeStatusLocked(order, domain.OrderStatusProcessing, "payment completed", SystemActor); err != nil {
			return nil, err
		}
	}
	out := *payment
	return &out, nil
}

// CancelOrder cancels an order that has not yet shipped and releases every
// line's reservation back to availability. The ledger's release clamp
// makes a retried cancellation idempotent at the stock level; the state
// machine rejects the retry itself, so stock is credited exactly once.
func (s *OrderService) CancelOrder(orderID, reason, actor string) (*domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return nil, err
	}

	order.Mu.Lock()
	defer order.Mu.Unlock()

	if !domain.IsCancellable(order.Status) {
		return nil, &domain.InvalidStateTransitionError{
			Entity: "order",
			From:   string(order.Status),
			To:     string(domain.OrderStatusCancelled),
		}
	}
	if err := s.changeStatusLocked(order, domain.OrderStatusCancelled, reason, actor); err != nil {
		return nil, err
	}
	for _, it := range order.Items {
		s.inventory.Release(it.ProductID, it.Quantity, "order "+order.OrderNumber+" cancelled")
	}
	return order.Snapshot(), nil
}

// CompleteOrder marks a delivered order as completed. Any other current
// status fails with InvalidStateTransition.
func (s *OrderService) CompleteOrder(orderID string) (*domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return nil, err
	}

	order.Mu.Lock()
	defer order.Mu.Unlock()

	if order.Status != domain.OrderStatusDelivered {
		return nil, &domain.InvalidStateTransitionError{
			Entity: "order",
			From:   string(order.Status),
			To:     string(domain.OrderStatusCompleted),
		}
	}
	if err := s.changeStatusLocked(order, domain.OrderStatusCompleted, "order completed", SystemActor); err != nil {
		return nil, err
	}
	return order.Snapshot(), nil
}

// CreateShipment creates a shipment for an order, copying the recipient
// fields from the order's delivery at this moment.
func (s *OrderService) CreateShipment(orderID, trackingNumber, carrier string) (*domain.Shipment, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return nil, err
	}

	order.Mu.Lock()
	defer order.Mu.Unlock()

	if domain.IsTerminalStatus(order.Status) {
		return nil, &domain.InvalidStateTransitionError{Entity: "order", From: string(order.Status)}
	}

	shipment := &domain.Shipment{
		ShipmentID:     uuid.New().String(),
		OrderID:        order.OrderID,
		TrackingNumber: trackingNumber,
		Carrier:        carrier,
		Status:         domain.ShipmentStatusPending,
		RecipientName:  order.Delivery.RecipientName,
		RecipientPhone: order.Delivery.ContactNumber,
		Address:        order.Delivery.Address,
		CreatedAt:      s.clock.Now(),
	}
	order.Shipments = append(order.Shipments, shipment)
	s.orders.IndexShipment(shipment.ShipmentID, order)
	out := *shipment
	return &out, nil
}

// UpdateShipmentStatus updates a shipment's carrier status. A shipment
// entering transit drives the parent order to shipped; a delivered
// shipment drives it to delivered. These are the only cross-entity status
// propagations. When a sibling shipment already drove the order to the
// target status, the propagation is skipped; an order that cannot legally
// reach the target (e.g. still pending) fails the update.
func (s *OrderService) UpdateShipmentStatus(shipmentID string, status domain.ShipmentStatus) (*domain.Shipment, error) {
	order, err := s.orders.GetByShipment(shipmentID)
	if err != nil {
		return nil, err
	}

	order.Mu.Lock()
	defer order.Mu.Unlock()

	var shipment *domain.Shipment
	for _, sh := range order.Shipments {
		if sh.ShipmentID == shipmentID {
			shipment = sh
			break
		}
	}
	if shipment == nil {
		return nil, domain.ErrShipmentNotFound
	}

	now := s.clock.Now()
	switch status {
	case domain.ShipmentStatusInTransit:
		if order.Status != domain.OrderStatusShipped {
			if err := s.changeStatusLocked(order, domain.OrderStatusShipped, "shipment in transit", SystemActor); err != nil {
				return nil, err
			}
		}
		shipment.ShippedAt = &now
	case domain.ShipmentStatusDelivered:
		if order.Status != domain.OrderStatusDelivered {
			if err := s.changeStatusLocked(order, domain.OrderStatusDelivered, "shipment delivered", SystemActor); err != nil {
				return nil, err
			}
		}
		shipment.DeliveredAt = &now
	}
	shipment.Status = status
	out := *shipment
	return &out, nil
}

// GetOrder retrieves a detached snapshot of an order by ID.
func (s *OrderService) GetOrder(orderID string) (*domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	order.Mu.Lock()
	defer order.Mu.Unlock()
	return order.Snapshot(), nil
}

// GetOrderByNumber retrieves a detached snapshot of an order by its
// human-facing number.
func (s *OrderService) GetOrderByNumber(number string) (*domain.Order, error) {
	order, err := s.orders.GetByNumber(number)
	if err != nil {
		return nil, err
	}
	order.Mu.Lock()
	defer order.Mu.Unlock()
	return order.Snapshot(), nil
}

// StatusHistory returns an order's transition history, oldest first.
func (s *OrderService) StatusHistory(orderID string) ([]domain.OrderStatusHistory, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	order.Mu.Lock()
	defer order.Mu.Unlock()

	out := make([]domain.OrderStatusHistory, len(order.StatusHistory))
	copy(out, order.StatusHistory)
	return out, nil
}

// ListOrders returns a paginated list of order snapshots for a user with
// optional status filtering.
func (s *OrderService) ListOrders(userID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if _, err := s.users.GetUser(userID); err != nil {
		return nil, 0, err
	}
	if status != nil && !ValidOrderStatuses[*status] {
		return nil, 0, &domain.ValidationError{
			Message: fmt.Sprintf("invalid status filter: %q", *status),
		}
	}
	if page < 1 {
		return nil, 0, &domain.ValidationError{Message: "page must be >= 1"}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}

	orders, total := s.orders.ListByUser(userID, status, page, limit)
	return orders, total, nil
}
