package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/mylittleshop/fulfillment/internal/domain"
	"github.com/mylittleshop/fulfillment/internal/store"
)

// CreateSubscriptionRequest carries everything needed to start a
// subscription.
type CreateSubscriptionRequest struct {
	UserID          string
	PlanName        string
	Frequency       string
	TrialDays       int
	ContractEndDate *time.Time
}

// SubscriptionService owns subscription lifecycle and billing dates.
// Lifecycle operations cascade to the recurring-order templates linked to
// the subscription.
type SubscriptionService struct {
	subs      *store.SubscriptionStore
	templates *store.RecurringOrderStore
	recurring *RecurringOrderService
	users     Identity
	clock     domain.Clock
}

// NewSubscriptionService creates a new SubscriptionService with the given
// dependencies.
func NewSubscriptionService(
	subs *store.SubscriptionStore,
	templates *store.RecurringOrderStore,
	recurring *RecurringOrderService,
	users Identity,
	clock domain.Clock,
) *SubscriptionService {
	return &SubscriptionService{
		subs:      subs,
		templates: templates,
		recurring: recurring,
		users:     users,
		clock:     clock,
	}
}

// Create starts a subscription. With trial days configured the
// subscription starts in trial and first bills when the trial ends;
// otherwise it is active immediately and bills one cycle out.
func (s *SubscriptionService) Create(req CreateSubscriptionRequest) (*domain.Subscription, error) {
	if _, err := s.users.GetUser(req.UserID); err != nil {
		return nil, err
	}
	freq, ok := domain.ParseFrequency(req.Frequency)
	if !ok {
		return nil, &domain.ValidationError{Message: "unknown frequency: " + req.Frequency}
	}
	if req.PlanName == "" {
		return nil, &domain.ValidationError{Message: "plan name is required"}
	}
	if req.TrialDays < 0 {
		return nil, &domain.ValidationError{Message: "trial days must not be negative"}
	}

	now := s.clock.Now()
	today := domain.Today(s.clock)
	sub := &domain.Subscription{
		SubscriptionID:    uuid.New().String(),
		UserID:            req.UserID,
		PlanName:          req.PlanName,
		Frequency:         freq,
		Status:            domain.SubscriptionStatusActive,
		ContractStartDate: today,
		ContractEndDate:   req.ContractEndDate,
		NextBillingDate:   domain.AdvanceDate(today, freq),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.TrialDays > 0 {
		trialEnd := today.AddDate(0, 0, req.TrialDays)
		sub.Status = domain.SubscriptionStatusTrial
		sub.TrialEndDate = &trialEnd
		sub.NextBillingDate = trialEnd
	}

	s.subs.Create(sub)
	sub.Mu.Lock()
	defer sub.Mu.Unlock()
	return sub.Snapshot(), nil
}

// Get retrieves a detached snapshot of a subscription by ID.
func (s *SubscriptionService) Get(id string) (*domain.Subscription, error) {
	sub, err := s.subs.Get(id)
	if err != nil {
		return nil, err
	}
	sub.Mu.Lock()
	defer sub.Mu.Unlock()
	return sub.Snapshot(), nil
}

// Renew advances the billing clock by one cycle. A trial subscription
// renewing for the first time becomes active.
func (s *SubscriptionService) Renew(id string) (*domain.Subscription, error) {
	sub, err := s.subs.Get(id)
	if err != nil {
		return nil, err
	}

	sub.Mu.Lock()
	defer sub.Mu.Unlock()

	switch sub.Status {
	case domain.SubscriptionStatusActive:
	case domain.SubscriptionStatusTrial:
		sub.Status = domain.SubscriptionStatusActive
	case domain.SubscriptionStatusPaymentFailed:
		// A successful renewal clears the failed-payment flag.
		sub.Status = domain.SubscriptionStatusActive
	default:
		return nil, &domain.InvalidStateTransitionError{
			Entity: "subscription",
			From:   string(sub.Status),
		}
	}
	sub.NextBillingDate = domain.AdvanceDate(sub.NextBillingDate, sub.Frequency)
	sub.UpdatedAt = s.clock.Now()
	return sub.Snapshot(), nil
}

// RecordPaymentFailure flags an active or trial subscription after a
// failed billing attempt. The next successful renewal clears it.
func (s *SubscriptionService) RecordPaymentFailure(id string) (*domain.Subscription, error) {
	sub, err := s.subs.Get(id)
	if err != nil {
		return nil, err
	}

	sub.Mu.Lock()
	defer sub.Mu.Unlock()

	if sub.Status != domain.SubscriptionStatusActive && sub.Status != domain.SubscriptionStatusTrial {
		return nil, &domain.InvalidStateTransitionError{
			Entity: "subscription",
			From:   string(sub.Status),
		}
	}
	sub.Status = domain.SubscriptionStatusPaymentFailed
	sub.UpdatedAt = s.clock.Now()
	return sub.Snapshot(), nil
}

// Pause suspends an active subscription and pauses its linked
// recurring-order templates.
func (s *SubscriptionService) Pause(id string) (*domain.Subscription, error) {
	sub, err := s.subs.Get(id)
	if err != nil {
		return nil, err
	}

	sub.Mu.Lock()
	if sub.Status != domain.SubscriptionStatusActive && sub.Status != domain.SubscriptionStatusTrial {
		from := sub.Status
		sub.Mu.Unlock()
		return nil, &domain.InvalidStateTransitionError{Entity: "subscription", From: string(from)}
	}
	sub.Status = domain.SubscriptionStatusPaused
	sub.UpdatedAt = s.clock.Now()
	snap := sub.Snapshot()
	sub.Mu.Unlock()

	s.cascade(id, domain.RecurringOrderStatusActive, func(tid string) {
		s.recurring.Pause(tid)
	})
	return snap, nil
}

// Resume reactivates a paused subscription and resumes its linked
// recurring-order templates.
func (s *SubscriptionService) Resume(id string) (*domain.Subscription, error) {
	sub, err := s.subs.Get(id)
	if err != nil {
		return nil, err
	}

	sub.Mu.Lock()
	if sub.Status != domain.SubscriptionStatusPaused {
		from := sub.Status
		sub.Mu.Unlock()
		return nil, &domain.InvalidStateTransitionError{Entity: "subscription", From: string(from)}
	}
	sub.Status = domain.SubscriptionStatusActive
	sub.UpdatedAt = s.clock.Now()
	snap := sub.Snapshot()
	sub.Mu.Unlock()

	s.cascade(id, domain.RecurringOrderStatusPaused, func(tid string) {
		s.recurring.Resume(tid)
	})
	return snap, nil
}

// Cancel permanently ends a subscription and cancels its linked
// recurring-order templates.
func (s *SubscriptionService) Cancel(id string) (*domain.Subscription, error) {
	sub, err := s.subs.Get(id)
	if err != nil {
		return nil, err
	}

	sub.Mu.Lock()
	if sub.Status == domain.SubscriptionStatusCancelled {
		from := sub.Status
		sub.Mu.Unlock()
		return nil, &domain.InvalidStateTransitionError{Entity: "subscription", From: string(from)}
	}
	sub.Status = domain.SubscriptionStatusCancelled
	sub.UpdatedAt = s.clock.Now()
	snap := sub.Snapshot()
	sub.Mu.Unlock()

	for _, t := range s.templates.ListBySubscription(id) {
		t.Mu.Lock()
		cancelled := t.Status == domain.RecurringOrderStatusCancelled
		t.Mu.Unlock()
		if !cancelled {
			s.recurring.Cancel(t.RecurringOrderID)
		}
	}
	return snap, nil
}

// cascade applies fn to every linked template currently in the given
// status. Templates in other states are left alone: pausing the
// subscription does not touch a template that was already cancelled.
func (s *SubscriptionService) cascade(subscriptionID string, status domain.RecurringOrderStatus, fn func(string)) {
	for _, t := range s.templates.ListBySubscription(subscriptionID) {
		t.Mu.Lock()
		match := t.Status == status
		t.Mu.Unlock()
		if match {
			fn(t.RecurringOrderID)
		}
	}
}
