package store

import (
	"sync"

	"github.com/mylittleshop/fulfillment/internal/domain"
)

// SubscriptionStore is a thread-safe in-memory store for subscriptions,
// with a secondary index by user_id.
type SubscriptionStore struct {
	mu      sync.RWMutex
	subs    map[string]*domain.Subscription
	byUser map[string][]*domain.Subscription // user_id → subscriptions (append-only)
}

// NewSubscriptionStore creates an empty SubscriptionStore.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{
		subs:    make(map[string]*domain.Subscription),
		byUser: make(map[string][]*domain.Subscription),
	}
}

// Create adds a subscription to the store.
func (s *SubscriptionStore) Create(sub *domain.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[sub.SubscriptionID] = sub
	s.byUser[sub.UserID] = append(s.byUser[sub.UserID], sub)
}

// Get retrieves a subscription by ID. It returns
// domain.ErrSubscriptionNotFound if the subscription does not exist.
func (s *SubscriptionStore) Get(id string) (*domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return sub, nil
}

// ListByUser returns a user's subscriptions in creation order.
func (s *SubscriptionStore) ListByUser(userID string) []*domain.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.byUser[userID]
	out := make([]*domain.Subscription, len(src))
	copy(out, src)
	return out
}
