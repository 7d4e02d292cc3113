package domain

import "time"

// PaymentStatus represents the lifecycle state of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "pending"
	PaymentStatusProcessing        PaymentStatus = "processing"
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusFailed            PaymentStatus = "failed"
	PaymentStatusCancelled         PaymentStatus = "cancelled"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentStatusExpired           PaymentStatus = "expired"
)

// Payment records the order-side bookkeeping of a payment result. The core
// never calls a gateway; it only records what the gateway reported. Many
// payments may exist per order (retries, partial payments).
type Payment struct {
	PaymentID       string
	OrderID         string
	Amount          int64
	Method          string
	Status          PaymentStatus
	TransactionID   string
	GatewayResponse string
	AttemptedAt     time.Time
	CompletedAt     *time.Time
	FailedAt        *time.Time
}
