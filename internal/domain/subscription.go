package domain

import (
	"sync"
	"time"
)

// SubscriptionStatus represents the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusTrial         SubscriptionStatus = "trial"
	SubscriptionStatusActive        SubscriptionStatus = "active"
	SubscriptionStatusPaused        SubscriptionStatus = "paused"
	SubscriptionStatusCancelled     SubscriptionStatus = "cancelled"
	SubscriptionStatusPaymentFailed SubscriptionStatus = "payment_failed"
)

// Subscription is a billing agreement that drives zero or more recurring
// orders. Lifecycle operations on the subscription cascade to its linked
// templates.
type Subscription struct {
	SubscriptionID string
	UserID         string
	PlanName       string
	Frequency      Frequency
	Status         SubscriptionStatus

	NextBillingDate   time.Time
	ContractStartDate time.Time
	ContractEndDate   *time.Time
	TrialEndDate      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Mu sync.Mutex
}

// Snapshot returns a detached copy of the subscription. Caller must hold
// Mu.
func (s *Subscription) Snapshot() *Subscription {
	c := &Subscription{
		SubscriptionID:    s.SubscriptionID,
		UserID:            s.UserID,
		PlanName:          s.PlanName,
		Frequency:         s.Frequency,
		Status:            s.Status,
		NextBillingDate:   s.NextBillingDate,
		ContractStartDate: s.ContractStartDate,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if s.ContractEndDate != nil {
		d := *s.ContractEndDate
		c.ContractEndDate = &d
	}
	if s.TrialEndDate != nil {
		d := *s.TrialEndDate
		c.TrialEndDate = &d
	}
	return c
}
