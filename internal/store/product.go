package store

import (
	"sort"
	"sync"

	"github.com/mylittleshop/fulfillment/internal/domain"
)

// ProductStore is a thread-safe in-memory store for products, keyed by
// product_id. It stands in for the catalog service's read side.
type ProductStore struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

// NewProductStore creates an empty ProductStore.
func NewProductStore() *ProductStore {
	return &ProductStore{
		products: make(map[string]*domain.Product),
	}
}

// Create adds a product to the store.
func (s *ProductStore) Create(p *domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[p.ProductID] = p
}

// Get retrieves a product by ID. It returns domain.ErrProductNotFound if
// the product does not exist.
func (s *ProductStore) Get(id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

// GetProduct implements the catalog lookup interface consumed by the
// service layer.
func (s *ProductStore) GetProduct(id string) (*domain.Product, error) {
	return s.Get(id)
}

// SetStockCache refreshes the product's denormalized stock quantity and
// flips the status between active and sold_out as availability crosses
// zero. Discontinued products keep their status.
func (s *ProductStore) SetStockCache(id string, available int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return
	}
	p.StockQuantity = available
	if p.Status == domain.ProductStatusDiscontinued {
		return
	}
	if available == 0 {
		p.Status = domain.ProductStatusSoldOut
	} else if p.Status == domain.ProductStatusSoldOut {
		p.Status = domain.ProductStatusActive
	}
}

// ListLowStock returns copies of the products whose cached stock quantity
// is at or below the threshold, ordered by product id for stable output.
func (s *ProductStore) ListLowStock(threshold int64) []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0)
	for _, p := range s.products {
		if p.StockQuantity <= threshold {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// List returns all products in unspecified order.
func (s *ProductStore) List() []*domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out
}
