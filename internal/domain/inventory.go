package domain

import (
	"sync"
	"time"
)

// Inventory is the stock ledger row for a single product.
//
// Quantity is the physical on-hand count. AvailableStock is Quantity minus
// outstanding reservations: stock held for in-flight orders without having
// physically left the warehouse. Invariant: 0 <= AvailableStock <= Quantity.
//
// Mu serializes every mutation of the row's counters. All writes go through
// the ledger in the engine package; nothing else touches the counters.
type Inventory struct {
	ProductID      string
	Quantity       int64
	AvailableStock int64
	UpdatedAt      time.Time

	Mu sync.Mutex
}

// Reserved returns the number of units currently held for in-flight orders.
// Caller must hold Mu.
func (inv *Inventory) Reserved() int64 {
	return inv.Quantity - inv.AvailableStock
}

// Snapshot returns a copy of the row's counters for returning to callers
// outside the row lock. Caller must hold Mu.
func (inv *Inventory) Snapshot() InventorySnapshot {
	return InventorySnapshot{
		ProductID:      inv.ProductID,
		Quantity:       inv.Quantity,
		AvailableStock: inv.AvailableStock,
		UpdatedAt:      inv.UpdatedAt,
	}
}

// InventorySnapshot is a point-in-time copy of an inventory row.
type InventorySnapshot struct {
	ProductID      string
	Quantity       int64
	AvailableStock int64
	UpdatedAt      time.Time
}

// StockChangeType classifies an inventory history record.
type StockChangeType string

const (
	StockChangeInbound    StockChangeType = "in"
	StockChangeOutbound   StockChangeType = "out"
	StockChangeAdjustment StockChangeType = "adjust"
	StockChangeReserve    StockChangeType = "reserve"
	StockChangeRelease    StockChangeType = "release"
)

// InventoryHistory is an append-only record of a single stock mutation.
// Never mutated or deleted after creation.
type InventoryHistory struct {
	HistoryID  string
	ProductID  string
	ChangeType StockChangeType
	Quantity   int64
	ChangedAt  time.Time
	Note       string
}
