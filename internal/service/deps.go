package service

import "github.com/mylittleshop/fulfillment/internal/domain"

// Catalog is the narrow product-lookup surface the fulfillment core
// consumes. SetStockCache is the write-back hook for the product's
// denormalized stock quantity; the ledger row stays the source of truth.
type Catalog interface {
	GetProduct(id string) (*domain.Product, error)
	SetStockCache(id string, available int64)
	ListLowStock(threshold int64) []domain.Product
}

// Identity is the narrow user-lookup surface the core consumes.
type Identity interface {
	GetUser(id string) (*domain.User, error)
}
