package domain

import (
	"sync"
	"time"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "pending"
	OrderStatusPaymentPending     OrderStatus = "payment_pending"
	OrderStatusPaymentFailed      OrderStatus = "payment_failed"
	OrderStatusProcessing         OrderStatus = "processing"
	OrderStatusOnHold             OrderStatus = "on_hold"
	OrderStatusPartiallyShipped   OrderStatus = "partially_shipped"
	OrderStatusShipped            OrderStatus = "shipped"
	OrderStatusPartiallyDelivered OrderStatus = "partially_delivered"
	OrderStatusDelivered          OrderStatus = "delivered"
	OrderStatusReturned           OrderStatus = "returned"
	OrderStatusPartiallyRefunded  OrderStatus = "partially_refunded"
	OrderStatusCompleted          OrderStatus = "completed"
	OrderStatusCancelled          OrderStatus = "cancelled"
	OrderStatusRefunded           OrderStatus = "refunded"
)

// allowedTransitions is the explicit order state machine. A status maps to
// the set of statuses it may move to; terminal states (completed, cancelled,
// refunded) have no outgoing edges and so reject every transition.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {
		OrderStatusProcessing, OrderStatusPaymentPending, OrderStatusOnHold,
		OrderStatusCancelled,
	},
	OrderStatusPaymentPending: {
		OrderStatusProcessing, OrderStatusPaymentFailed, OrderStatusOnHold,
		OrderStatusCancelled,
	},
	OrderStatusPaymentFailed: {
		OrderStatusPaymentPending, OrderStatusOnHold, OrderStatusCancelled,
	},
	OrderStatusProcessing: {
		OrderStatusPartiallyShipped, OrderStatusShipped, OrderStatusOnHold,
		OrderStatusCancelled,
	},
	OrderStatusOnHold: {
		OrderStatusProcessing, OrderStatusCancelled,
	},
	OrderStatusPartiallyShipped: {
		OrderStatusShipped, OrderStatusPartiallyDelivered,
	},
	OrderStatusShipped: {
		OrderStatusPartiallyDelivered, OrderStatusDelivered,
	},
	OrderStatusPartiallyDelivered: {
		OrderStatusDelivered,
	},
	OrderStatusDelivered: {
		OrderStatusCompleted, OrderStatusReturned, OrderStatusPartiallyRefunded,
	},
	OrderStatusReturned: {
		OrderStatusRefunded, OrderStatusPartiallyRefunded,
	},
	OrderStatusPartiallyRefunded: {
		OrderStatusRefunded, OrderStatusCompleted,
	},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
	OrderStatusRefunded:  {},
}

// CanTransition reports whether the state machine permits moving from one
// order status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether a status has no outgoing transitions.
func IsTerminalStatus(s OrderStatus) bool {
	return len(allowedTransitions[s]) == 0
}

// cancellableStatuses lists the states an order may be cancelled from:
// anything not yet shipped.
var cancellableStatuses = map[OrderStatus]bool{
	OrderStatusPending:        true,
	OrderStatusProcessing:     true,
	OrderStatusOnHold:         true,
	OrderStatusPaymentPending: true,
	OrderStatusPaymentFailed:  true,
}

// IsCancellable reports whether an order in the given status may still be
// cancelled.
func IsCancellable(s OrderStatus) bool {
	return cancellableStatuses[s]
}

// OrderItem is one line of an order. UnitPrice is captured at order time
// and never recomputed from the current product price.
type OrderItem struct {
	ItemID    string
	ProductID string
	Quantity  int64
	UnitPrice int64
}

// Subtotal returns UnitPrice × Quantity.
func (it OrderItem) Subtotal() int64 {
	return it.UnitPrice * it.Quantity
}

// OrderStatusHistory is an immutable record of one status transition.
// Created exactly once per transition and appended to the order.
type OrderStatusHistory struct {
	HistoryID      string
	PreviousStatus OrderStatus
	NewStatus      OrderStatus
	ChangedAt      time.Time
	ChangedBy      string
	Reason         string
}

// Delivery holds the recipient and address metadata captured at checkout.
// Shipments copy these fields at the moment of shipment creation.
type Delivery struct {
	RecipientName string
	ContactNumber string
	Address       string
}

// Order is the aggregate root for a customer order: line items, monetary
// totals, payments, shipments, and the append-only status history.
//
// Mu serializes aggregate mutations (status changes, payment and shipment
// appends). The live aggregate never crosses the service boundary: readers
// get a Snapshot taken under Mu.
type Order struct {
	OrderID     string
	OrderNumber string
	UserID      string
	Status      OrderStatus

	Items          []OrderItem
	TotalAmount    int64
	DiscountAmount int64
	ShippingFee    int64
	TaxAmount      int64
	FinalAmount    int64

	Delivery       Delivery
	PaymentMethod  string
	ShippingMethod string
	CouponCode     string
	IsGift         bool
	GiftMessage    string

	// RecurringOrderID is set when this order was produced from a
	// recurring-order template.
	RecurringOrderID string

	Payments      []*Payment
	Shipments     []*Shipment
	StatusHistory []OrderStatusHistory

	CreatedAt time.Time
	UpdatedAt time.Time
	UpdatedBy string

	Mu sync.Mutex
}

// Snapshot returns a detached copy of the order sharing no mutable state
// with the live aggregate, so callers can read and serialize it without
// further locking. Caller must hold Mu.
func (o *Order) Snapshot() *Order {
	c := &Order{
		OrderID:          o.OrderID,
		OrderNumber:      o.OrderNumber,
		UserID:           o.UserID,
		Status:           o.Status,
		TotalAmount:      o.TotalAmount,
		DiscountAmount:   o.DiscountAmount,
		ShippingFee:      o.ShippingFee,
		TaxAmount:        o.TaxAmount,
		FinalAmount:      o.FinalAmount,
		Delivery:         o.Delivery,
		PaymentMethod:    o.PaymentMethod,
		ShippingMethod:   o.ShippingMethod,
		CouponCode:       o.CouponCode,
		IsGift:           o.IsGift,
		GiftMessage:      o.GiftMessage,
		RecurringOrderID: o.RecurringOrderID,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		UpdatedBy:        o.UpdatedBy,
	}
	c.Items = append([]OrderItem(nil), o.Items...)
	c.StatusHistory = append([]OrderStatusHistory(nil), o.StatusHistory...)
	for _, p := range o.Payments {
		pc := *p
		c.Payments = append(c.Payments, &pc)
	}
	for _, sh := range o.Shipments {
		shc := *sh
		c.Shipments = append(c.Shipments, &shc)
	}
	return c
}

// RecomputeTotals recalculates TotalAmount from the item subtotals and
// FinalAmount from its inputs. Called after any mutation of the money
// fields so the invariant
//
//	FinalAmount = TotalAmount − DiscountAmount + ShippingFee + TaxAmount
//
// holds at all times. Caller must hold Mu when the order is shared.
func (o *Order) RecomputeTotals() {
	var total int64
	for _, it := range o.Items {
		total += it.Subtotal()
	}
	o.TotalAmount = total
	o.FinalAmount = o.TotalAmount - o.DiscountAmount + o.ShippingFee + o.TaxAmount
}

// TotalPaid sums the amounts of completed payments. Caller must hold Mu
// when the order is shared.
func (o *Order) TotalPaid() int64 {
	var paid int64
	for _, p := range o.Payments {
		if p.Status == PaymentStatusCompleted {
			paid += p.Amount
		}
	}
	return paid
}

// RemainingAmount returns FinalAmount minus the total paid. Negative when
// overpaid.
func (o *Order) RemainingAmount() int64 {
	return o.FinalAmount - o.TotalPaid()
}

// IsFullyPaid reports whether completed payments cover the final amount.
func (o *Order) IsFullyPaid() bool {
	return o.RemainingAmount() <= 0
}
