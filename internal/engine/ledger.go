package engine

import (
	"github.com/mylittleshop/fulfillment/internal/domain"
	"github.com/mylittleshop/fulfillment/internal/store"
)

// Ledger is the only component allowed to mutate inventory counters. Every
// operation is a single atomic unit against one product's row: the row
// mutex is held for the full read-check-write, so two concurrent
// reservations for the last unit resolve with exactly one success.
type Ledger struct {
	inventory *store.InventoryStore
	clock     domain.Clock
}

// NewLedger creates a Ledger over the given inventory store.
func NewLedger(inventory *store.InventoryStore, clock domain.Clock) *Ledger {
	return &Ledger{inventory: inventory, clock: clock}
}

// Reserve holds qty units for an in-flight order by decrementing available
// stock. The on-hand quantity is untouched: the goods have not left the
// warehouse. Fails with domain.ErrInsufficientStock when fewer than qty
// units are available.
func (l *Ledger) Reserve(productID string, qty int64) (domain.InventorySnapshot, error) {
	if qty <= 0 {
		return domain.InventorySnapshot{}, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	row := l.inventory.GetOrCreate(productID)
	row.Mu.Lock()
	defer row.Mu.Unlock()

	if row.AvailableStock < qty {
		return domain.InventorySnapshot{}, domain.ErrInsufficientStock
	}
	row.AvailableStock -= qty
	row.UpdatedAt = l.clock.Now()
	return row.Snapshot(), nil
}

// Release returns qty reserved units to availability. The result is
// clamped so available stock never exceeds the on-hand quantity, which
// makes a retried cancellation (double release) a no-op instead of a
// phantom stock credit.
func (l *Ledger) Release(productID string, qty int64) (domain.InventorySnapshot, error) {
	if qty <= 0 {
		return domain.InventorySnapshot{}, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	row := l.inventory.GetOrCreate(productID)
	row.Mu.Lock()
	defer row.Mu.Unlock()

	row.AvailableStock += qty
	if row.AvailableStock > row.Quantity {
		row.AvailableStock = row.Quantity
	}
	row.UpdatedAt = l.clock.Now()
	return row.Snapshot(), nil
}

// AddStock records a goods receipt: both on-hand quantity and available
// stock grow by qty. Creates the row on a product's first receipt.
func (l *Ledger) AddStock(productID string, qty int64) (domain.InventorySnapshot, error) {
	if qty <= 0 {
		return domain.InventorySnapshot{}, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	row := l.inventory.GetOrCreate(productID)
	row.Mu.Lock()
	defer row.Mu.Unlock()

	row.Quantity += qty
	row.AvailableStock += qty
	row.UpdatedAt = l.clock.Now()
	return row.Snapshot(), nil
}

// RemoveStock records shrinkage or a write-off: both counters shrink by
// qty. This is not a reservation; the goods are gone. Fails with
// domain.ErrInsufficientStock when fewer than qty units are available,
// so reserved units can never be written off underneath an order.
func (l *Ledger) RemoveStock(productID string, qty int64) (domain.InventorySnapshot, error) {
	if qty <= 0 {
		return domain.InventorySnapshot{}, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	row := l.inventory.GetOrCreate(productID)
	row.Mu.Lock()
	defer row.Mu.Unlock()

	if row.AvailableStock < qty {
		return domain.InventorySnapshot{}, domain.ErrInsufficientStock
	}
	row.Quantity -= qty
	row.AvailableStock -= qty
	row.UpdatedAt = l.clock.Now()
	return row.Snapshot(), nil
}

// AdjustStock reconciles the on-hand quantity to a counted value. An
// increase credits both counters with the delta; a decrease must fit
// within the currently available stock, otherwise the adjustment would
// drive availability below zero and fails with domain.ErrInvalidAdjustment.
func (l *Ledger) AdjustStock(productID string, newQuantity int64) (domain.InventorySnapshot, error) {
	if newQuantity < 0 {
		return domain.InventorySnapshot{}, &domain.ValidationError{Message: "quantity must not be negative"}
	}

	row := l.inventory.GetOrCreate(productID)
	row.Mu.Lock()
	defer row.Mu.Unlock()

	delta := newQuantity - row.Quantity
	if delta < 0 && row.AvailableStock+delta < 0 {
		return domain.InventorySnapshot{}, domain.ErrInvalidAdjustment
	}
	row.Quantity += delta
	row.AvailableStock += delta
	row.UpdatedAt = l.clock.Now()
	return row.Snapshot(), nil
}

// Stock returns a snapshot of the product's row. It returns
// domain.ErrInventoryNotFound when the product has never received stock.
func (l *Ledger) Stock(productID string) (domain.InventorySnapshot, error) {
	row, err := l.inventory.Get(productID)
	if err != nil {
		return domain.InventorySnapshot{}, err
	}
	row.Mu.Lock()
	defer row.Mu.Unlock()
	return row.Snapshot(), nil
}
