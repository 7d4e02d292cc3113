package store

import (
	"sync"
	"time"

	"github.com/mylittleshop/fulfillment/internal/domain"
)

// RecurringOrderStore is a thread-safe in-memory store for recurring-order
// templates, with secondary indexes by user_id and subscription_id.
type RecurringOrderStore struct {
	mu             sync.RWMutex
	templates      map[string]*domain.RecurringOrder
	userTemplates  map[string][]*domain.RecurringOrder // user_id → templates (append-only)
	subscriptionID map[string][]*domain.RecurringOrder // subscription_id → templates
}

// NewRecurringOrderStore creates an empty RecurringOrderStore.
func NewRecurringOrderStore() *RecurringOrderStore {
	return &RecurringOrderStore{
		templates:      make(map[string]*domain.RecurringOrder),
		userTemplates:  make(map[string][]*domain.RecurringOrder),
		subscriptionID: make(map[string][]*domain.RecurringOrder),
	}
}

// Create adds a template to the store and its secondary indexes.
func (s *RecurringOrderStore) Create(r *domain.RecurringOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates[r.RecurringOrderID] = r
	s.userTemplates[r.UserID] = append(s.userTemplates[r.UserID], r)
	if r.SubscriptionID != "" {
		s.subscriptionID[r.SubscriptionID] = append(s.subscriptionID[r.SubscriptionID], r)
	}
}

// Get retrieves a template by ID. It returns
// domain.ErrRecurringOrderNotFound if the template does not exist.
func (s *RecurringOrderStore) Get(id string) (*domain.RecurringOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.templates[id]
	if !ok {
		return nil, domain.ErrRecurringOrderNotFound
	}
	return r, nil
}

// ListByUser returns a user's templates in creation order.
func (s *RecurringOrderStore) ListByUser(userID string) []*domain.RecurringOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.userTemplates[userID]
	out := make([]*domain.RecurringOrder, len(src))
	copy(out, src)
	return out
}

// ListBySubscription returns the templates linked to a subscription.
func (s *RecurringOrderStore) ListBySubscription(subscriptionID string) []*domain.RecurringOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.subscriptionID[subscriptionID]
	out := make([]*domain.RecurringOrder, len(src))
	copy(out, src)
	return out
}

// ListByStatus returns detached snapshots of all templates currently in
// the given status. The filter reads each template under its own lock so
// it never races a concurrent lifecycle change.
func (s *RecurringOrderStore) ListByStatus(status domain.RecurringOrderStatus) []*domain.RecurringOrder {
	out := make([]*domain.RecurringOrder, 0)
	for _, snap := range s.snapshots() {
		if snap.Status == status {
			out = append(out, snap)
		}
	}
	return out
}

// ListByNextOrderDateRange returns detached snapshots of templates whose
// next order date falls within [from, to] inclusive.
func (s *RecurringOrderStore) ListByNextOrderDateRange(from, to time.Time) []*domain.RecurringOrder {
	from, to = domain.DateOf(from), domain.DateOf(to)
	out := make([]*domain.RecurringOrder, 0)
	for _, snap := range s.snapshots() {
		if !snap.NextOrderDate.Before(from) && !snap.NextOrderDate.After(to) {
			out = append(out, snap)
		}
	}
	return out
}

// snapshots copies the template pointers under the store lock, then takes
// each template's snapshot under its own lock.
func (s *RecurringOrderStore) snapshots() []*domain.RecurringOrder {
	s.mu.RLock()
	live := make([]*domain.RecurringOrder, 0, len(s.templates))
	for _, r := range s.templates {
		live = append(live, r)
	}
	s.mu.RUnlock()

	out := make([]*domain.RecurringOrder, 0, len(live))
	for _, r := range live {
		r.Mu.Lock()
		out = append(out, r.Snapshot())
		r.Mu.Unlock()
	}
	return out
}

// All returns every template. Used to rebuild the due index at startup.
func (s *RecurringOrderStore) All() []*domain.RecurringOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.RecurringOrder, 0, len(s.templates))
	for _, r := range s.templates {
		out = append(out, r)
	}
	return out
}
