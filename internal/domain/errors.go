package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInsufficientStock      = errors.New("insufficient_stock")
	ErrInvalidAdjustment      = errors.New("invalid_adjustment")
	ErrProductNotFound        = errors.New("product_not_found")
	ErrUserNotFound           = errors.New("user_not_found")
	ErrOrderNotFound          = errors.New("order_not_found")
	ErrShipmentNotFound       = errors.New("shipment_not_found")
	ErrInventoryNotFound      = errors.New("inventory_not_found")
	ErrRecurringOrderNotFound = errors.New("recurring_order_not_found")
	ErrSubscriptionNotFound   = errors.New("subscription_not_found")

	// ErrNotDue rejects a run of a recurring-order template whose next
	// order date is still in the future.
	ErrNotDue = errors.New("not_due")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InvalidStateTransitionError reports an operation attempted from a state
// that forbids it. From carries the entity's current state so callers can
// explain the rejection (e.g. "cannot cancel a shipped order").
type InvalidStateTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidStateTransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("invalid_state_transition: %s is %s", e.Entity, e.From)
	}
	return fmt.Sprintf("invalid_state_transition: %s cannot go from %s to %s", e.Entity, e.From, e.To)
}

// IsInvalidStateTransition reports whether err is an
// InvalidStateTransitionError anywhere in its chain.
func IsInvalidStateTransition(err error) bool {
	var ist *InvalidStateTransitionError
	return errors.As(err, &ist)
}
