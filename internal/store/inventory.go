package store

import (
	"sync"

	"github.com/mylittleshop/fulfillment/internal/domain"
)

// InventoryStore is a thread-safe in-memory store for inventory rows, one
// per product. The store lock only guards the map; each row carries its
// own mutex, which the ledger holds while mutating counters, so two
// products' mutations never contend with each other.
type InventoryStore struct {
	mu   sync.RWMutex
	rows map[string]*domain.Inventory
}

// NewInventoryStore creates an empty InventoryStore.
func NewInventoryStore() *InventoryStore {
	return &InventoryStore{
		rows: make(map[string]*domain.Inventory),
	}
}

// Get retrieves the inventory row for a product. It returns
// domain.ErrInventoryNotFound if the product has never received stock.
func (s *InventoryStore) Get(productID string) (*domain.Inventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[productID]
	if !ok {
		return nil, domain.ErrInventoryNotFound
	}
	return row, nil
}

// GetOrCreate retrieves the inventory row for a product, creating a zero
// row on first receipt. Rows are never deleted while the product exists.
func (s *InventoryStore) GetOrCreate(productID string) *domain.Inventory {
	s.mu.RLock()
	row, ok := s.rows[productID]
	s.mu.RUnlock()
	if ok {
		return row
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the write lock: another goroutine may have created it.
	if row, ok := s.rows[productID]; ok {
		return row
	}
	row = &domain.Inventory{ProductID: productID}
	s.rows[productID] = row
	return row
}

// Snapshots returns point-in-time copies of every inventory row.
func (s *InventoryStore) Snapshots() []domain.InventorySnapshot {
	s.mu.RLock()
	rows := make([]*domain.Inventory, 0, len(s.rows))
	for _, row := range s.rows {
		rows = append(rows, row)
	}
	s.mu.RUnlock()

	out := make([]domain.InventorySnapshot, 0, len(rows))
	for _, row := range rows {
		row.Mu.Lock()
		out = append(out, row.Snapshot())
		row.Mu.Unlock()
	}
	return out
}

// HistoryStore is a thread-safe append-only store for inventory history
// records, indexed by product_id.
type HistoryStore struct {
	mu      sync.RWMutex
	entries map[string][]domain.InventoryHistory // product_id → records (append-only)
}

// NewHistoryStore creates an empty HistoryStore.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		entries: make(map[string][]domain.InventoryHistory),
	}
}

// Append records an inventory history entry for a product.
func (s *HistoryStore) Append(h domain.InventoryHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[h.ProductID] = append(s.entries[h.ProductID], h)
}

// ListByProduct returns a product's history records in insertion order.
func (s *HistoryStore) ListByProduct(productID string) []domain.InventoryHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.entries[productID]
	out := make([]domain.InventoryHistory, len(src))
	copy(out, src)
	return out
}
