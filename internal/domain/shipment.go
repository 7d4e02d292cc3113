package domain

import "time"

// ShipmentStatus represents the carrier-side state of a shipment.
type ShipmentStatus string

const (
	ShipmentStatusPending        ShipmentStatus = "pending"
	ShipmentStatusProcessing     ShipmentStatus = "processing"
	ShipmentStatusReadyForPickup ShipmentStatus = "ready_for_pickup"
	ShipmentStatusPickedUp       ShipmentStatus = "picked_up"
	ShipmentStatusInTransit      ShipmentStatus = "in_transit"
	ShipmentStatusDelayed        ShipmentStatus = "delayed"
	ShipmentStatusDelivered      ShipmentStatus = "delivered"
	ShipmentStatusReturned       ShipmentStatus = "returned"
	ShipmentStatusFailedDelivery ShipmentStatus = "failed_delivery"
	ShipmentStatusCancelled      ShipmentStatus = "cancelled"
)

// Shipment tracks one physical dispatch for an order. Recipient fields are
// copied from the order's delivery at the moment the shipment is created,
// so later address edits never rewrite an already-dispatched parcel.
type Shipment struct {
	ShipmentID     string
	OrderID        string
	TrackingNumber string
	Carrier        string
	Status         ShipmentStatus

	RecipientName  string
	RecipientPhone string
	Address        string

	CreatedAt   time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
}
