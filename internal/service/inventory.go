package service

import (
	"github.com/google/uuid"

	"github.com/mylittleshop/fulfillment/internal/domain"
	"github.com/mylittleshop/fulfillment/internal/engine"
	"github.com/mylittleshop/fulfillment/internal/store"
)

// InventoryService wraps the ledger with the bookkeeping around every
// stock mutation: the append-only history record and the refresh of the
// product's denormalized stock cache. All counter arithmetic stays in the
// ledger.
type InventoryService struct {
	ledger  *engine.Ledger
	catalog Catalog
	history *store.HistoryStore
	clock   domain.Clock
}

// NewInventoryService creates a new InventoryService with the given dependencies.
func NewInventoryService(ledger *engine.Ledger, catalog Catalog, history *store.HistoryStore, clock domain.Clock) *InventoryService {
	return &InventoryService{
		ledger:  ledger,
		catalog: catalog,
		history: history,
		clock:   clock,
	}
}

// AddStock records a goods receipt for a product.
func (s *InventoryService) AddStock(productID string, qty int64, note string) (domain.InventorySnapshot, error) {
	if _, err := s.catalog.GetProduct(productID); err != nil {
		return domain.InventorySnapshot{}, err
	}
	snap, err := s.ledger.AddStock(productID, qty)
	if err != nil {
		return domain.InventorySnapshot{}, err
	}
	s.record(productID, domain.StockChangeInbound, qty, note)
	s.catalog.SetStockCache(productID, snap.AvailableStock)
	return snap, nil
}

// RemoveStock records shrinkage or a write-off for a product.
func (s *InventoryService) RemoveStock(productID string, qty int64, note string) (domain.InventorySnapshot, error) {
	if _, err := s.catalog.GetProduct(productID); err != nil {
		return domain.InventorySnapshot{}, err
	}
	snap, err := s.ledger.RemoveStock(productID, qty)
	if err != nil {
		return domain.InventorySnapshot{}, err
	}
	s.record(productID, domain.StockChangeOutbound, qty, note)
	s.catalog.SetStockCache(productID, snap.AvailableStock)
	return snap, nil
}

// AdjustStock reconciles a product's on-hand quantity to a counted value.
func (s *InventoryService) AdjustStock(productID string, newQuantity int64, note string) (domain.InventorySnapshot, error) {
	if _, err := s.catalog.GetProduct(productID); err != nil {
		return domain.InventorySnapshot{}, err
	}
	snap, err := s.ledger.AdjustStock(productID, newQuantity)
	if err != nil {
		return domain.InventorySnapshot{}, err
	}
	s.record(productID, domain.StockChangeAdjustment, newQuantity, note)
	s.catalog.SetStockCache(productID, snap.AvailableStock)
	return snap, nil
}

// Reserve holds stock for an in-flight order.
func (s *InventoryService) Reserve(productID string, qty int64, note string) (domain.InventorySnapshot, error) {
	if _, err := s.catalog.GetProduct(productID); err != nil {
		return domain.InventorySnapshot{}, err
	}
	snap, err := s.ledger.Reserve(productID, qty)
	if err != nil {
		return domain.InventorySnapshot{}, err
	}
	s.record(productID, domain.StockChangeReserve, qty, note)
	s.catalog.SetStockCache(productID, snap.AvailableStock)
	return snap, nil
}

// Release returns reserved stock to availability.
func (s *InventoryService) Release(productID string, qty int64, note string) (domain.InventorySnapshot, error) {
	if _, err := s.catalog.GetProduct(productID); err != nil {
		return domain.InventorySnapshot{}, err
	}
	snap, err := s.ledger.Release(productID, qty)
	if err != nil {
		return domain.InventorySnapshot{}, err
	}
	s.record(productID, domain.StockChangeRelease, qty, note)
	s.catalog.SetStockCache(productID, snap.AvailableStock)
	return snap, nil
}

// GetStock returns a snapshot of a product's ledger row.
func (s *InventoryService) GetStock(productID string) (domain.InventorySnapshot, error) {
	if _, err := s.catalog.GetProduct(productID); err != nil {
		return domain.InventorySnapshot{}, err
	}
	return s.ledger.Stock(productID)
}

// ListLow returns the products whose cached stock sits at or below the
// threshold, for replenishment review.
func (s *InventoryService) ListLow(threshold int64) ([]domain.Product, error) {
	if threshold < 0 {
		return nil, &domain.ValidationError{Message: "threshold must not be negative"}
	}
	return s.catalog.ListLowStock(threshold), nil
}

// History returns a product's stock mutation records in insertion order.
func (s *InventoryService) History(productID string) []domain.InventoryHistory {
	return s.history.ListByProduct(productID)
}

func (s *InventoryService) record(productID string, change domain.StockChangeType, qty int64, note string) {
	s.history.Append(domain.InventoryHistory{
		HistoryID:  uuid.New().String(),
		ProductID:  productID,
		ChangeType: change,
		Quantity:   qty,
		ChangedAt:  s.clock.Now(),
		Note:       note,
	})
}
