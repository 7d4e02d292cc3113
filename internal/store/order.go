package store

import (
	"sync"

	"github.com/mylittleshop/fulfillment/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders, with a primary
// index by order_id and secondary indexes by order_number and user_id.
// Orders are never physically deleted; soft lifecycle only.
type OrderStore struct {
	mu         sync.RWMutex
	orders     map[string]*domain.Order
	byNumber   map[string]*domain.Order
	userOrders map[string][]*domain.Order // user_id → orders (append-only)
	shipments  map[string]*domain.Order   // shipment_id → owning order
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:     make(map[string]*domain.Order),
		byNumber:   make(map[string]*domain.Order),
		userOrders: make(map[string][]*domain.Order),
		shipments:  make(map[string]*domain.Order),
	}
}

// Create adds an order to the store and appends it to the user's
// secondary index.
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.OrderID] = o
	s.byNumber[o.OrderNumber] = o
	s.userOrders[o.UserID] = append(s.userOrders[o.UserID], o)
}

// Get retrieves an order by ID for mutation: the caller works on the live
// aggregate under order.Mu. It returns domain.ErrOrderNotFound if the
// order does not exist.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// GetByNumber retrieves an order by its human-facing order number.
func (s *OrderStore) GetByNumber(number string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.byNumber[number]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// IndexShipment registers a shipment's owning order so shipment updates
// can find their parent without a scan.
func (s *OrderStore) IndexShipment(shipmentID string, o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shipments[shipmentID] = o
}

// GetByShipment retrieves the order owning a shipment. It returns
// domain.ErrShipmentNotFound if no such shipment was indexed.
func (s *OrderStore) GetByShipment(shipmentID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.shipments[shipmentID]
	if !ok {
		return nil, domain.ErrShipmentNotFound
	}
	return o, nil
}

// ListByUser returns orders for a user in reverse chronological order
// (newest first). If status is non-nil, only orders matching that status
// are included. Pagination is 1-based. Returns the matching orders for the
// requested page and the total count of matching orders (before pagination).
//
// The returned orders are detached snapshots: the status filter and any
// later serialization read them without racing concurrent mutations of
// the live aggregates.
func (s *OrderStore) ListByUser(userID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int) {
	s.mu.RLock()
	all := make([]*domain.Order, len(s.userOrders[userID]))
	copy(all, s.userOrders[userID])
	s.mu.RUnlock()

	// Snapshot each order under its own lock, then filter, collecting in
	// reverse order. The store lock is already released here: holding it
	// while taking order locks would invert the order→store ordering that
	// shipment indexing uses.
	filtered := make([]*domain.Order, 0)
	for i := len(all) - 1; i >= 0; i-- {
		all[i].Mu.Lock()
		snap := all[i].Snapshot()
		all[i].Mu.Unlock()
		if status != nil && snap.Status != *status {
			continue
		}
		filtered = append(filtered, snap)
	}

	total := len(filtered)

	// Apply pagination.
	start := (page - 1) * limit
	if start >= total {
		return []*domain.Order{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return filtered[start:end], total
}
