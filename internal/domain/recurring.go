package domain

import (
	"strings"
	"sync"
	"time"
)

// Frequency is the billing cycle of a recurring order or subscription.
type Frequency string

const (
	FrequencyDaily      Frequency = "daily"
	FrequencyWeekly     Frequency = "weekly"
	FrequencyBiweekly   Frequency = "biweekly"
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencyBiannually Frequency = "biannually"
	FrequencyAnnually   Frequency = "annually"
)

// ParseFrequency normalizes a frequency string. Returns false for values
// outside the known set.
func ParseFrequency(s string) (Frequency, bool) {
	f := Frequency(strings.ToLower(s))
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencyBiannually, FrequencyAnnually:
		return f, true
	}
	return "", false
}

// AdvanceDate returns the next order date derived from the last order date
// and the billing frequency. Month and year increments clamp to the last
// valid day of the target month, so Jan 31 + monthly lands on Feb 29 in a
// leap year rather than spilling into March. An unrecognized frequency
// advances by one month.
func AdvanceDate(last time.Time, freq Frequency) time.Time {
	last = DateOf(last)
	switch freq {
	case FrequencyDaily:
		return last.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return last.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return last.AddDate(0, 0, 14)
	case FrequencyQuarterly:
		return addMonthsClamped(last, 3)
	case FrequencyBiannually:
		return addMonthsClamped(last, 6)
	case FrequencyAnnually:
		return addMonthsClamped(last, 12)
	case FrequencyMonthly:
		return addMonthsClamped(last, 1)
	default:
		return addMonthsClamped(last, 1)
	}
}

// addMonthsClamped advances by whole months, clamping the day of month to
// the last valid day of the target month. time.AddDate normalizes overflow
// (Jan 31 + 1 month = Mar 2/3), which would double-bill short months.
func addMonthsClamped(d time.Time, months int) time.Time {
	y, m, day := d.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, time.UTC)
}

// RecurringOrderStatus represents the lifecycle state of a recurring-order
// template.
type RecurringOrderStatus string

const (
	RecurringOrderStatusActive    RecurringOrderStatus = "active"
	RecurringOrderStatusPaused    RecurringOrderStatus = "paused"
	RecurringOrderStatusCancelled RecurringOrderStatus = "cancelled"
)

// RecurringOrderItem is one line of a recurring-order template. UnitPrice
// is the price captured when the template was set up; generated orders use
// it, never the live product price.
type RecurringOrderItem struct {
	ItemID    string
	ProductID string
	Quantity  int64
	UnitPrice int64
}

// RecurringOrder is a template that the scheduler turns into concrete
// orders. NextOrderDate is strictly derived from LastOrderDate and
// Frequency by AdvanceDate; it is never set to a value inconsistent with
// that rule except at creation.
//
// Mu serializes template mutations so the date advance and the produced
// order id append commit together.
type RecurringOrder struct {
	RecurringOrderID string
	UserID           string
	SubscriptionID   string // empty when not subscription-driven
	Status           RecurringOrderStatus
	Frequency        Frequency
	Items            []RecurringOrderItem

	NextOrderDate time.Time
	LastOrderDate *time.Time

	ShippingAddressID string
	PaymentMethodID   string
	Notes             string

	// OrderIDs back-references the concrete orders this template has
	// produced, oldest first.
	OrderIDs []string

	CreatedAt time.Time
	UpdatedAt time.Time

	Mu sync.Mutex
}

// Snapshot returns a detached copy of the template sharing no mutable
// state with the live aggregate. Caller must hold Mu.
func (r *RecurringOrder) Snapshot() *RecurringOrder {
	c := &RecurringOrder{
		RecurringOrderID:  r.RecurringOrderID,
		UserID:            r.UserID,
		SubscriptionID:    r.SubscriptionID,
		Status:            r.Status,
		Frequency:         r.Frequency,
		NextOrderDate:     r.NextOrderDate,
		ShippingAddressID: r.ShippingAddressID,
		PaymentMethodID:   r.PaymentMethodID,
		Notes:             r.Notes,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	c.Items = append([]RecurringOrderItem(nil), r.Items...)
	c.OrderIDs = append([]string(nil), r.OrderIDs...)
	if r.LastOrderDate != nil {
		d := *r.LastOrderDate
		c.LastOrderDate = &d
	}
	return c
}

// IsDue reports whether the template should produce an order: it is active
// and its next order date is on or before today.
func (r *RecurringOrder) IsDue(today time.Time) bool {
	return r.Status == RecurringOrderStatusActive && !r.NextOrderDate.After(DateOf(today))
}

// BatchFailure records one template that could not be processed in a
// batch run. The template's dates are untouched, so it stays due and the
// next tick retries it.
type BatchFailure struct {
	RecurringOrderID string
	Err              error
}

// BatchReport summarizes one recurring-order batch run: the concrete
// orders created and the per-template failures that were contained.
type BatchReport struct {
	OrderIDs []string
	Failures []BatchFailure
}
