package engine

import (
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/mylittleshop/fulfillment/internal/domain"
)

// dueEntry is one active template in the due index.
type dueEntry struct {
	NextOrderDate    time.Time
	RecurringOrderID string
}

// dueLess orders entries by next order date ascending, then by id for a
// stable total order. Min() is the most overdue template.
func dueLess(a, b dueEntry) bool {
	if !a.NextOrderDate.Equal(b.NextOrderDate) {
		return a.NextOrderDate.Before(b.NextOrderDate)
	}
	return a.RecurringOrderID < b.RecurringOrderID
}

// DueIndex tracks active recurring-order templates sorted by next order
// date using a B-tree, with a secondary index for O(log n) removal by
// template id. Only active templates live in the index: pausing or
// cancelling removes the template, resuming re-adds it.
type DueIndex struct {
	mu    sync.Mutex
	tree  *btree.BTreeG[dueEntry]
	index map[string]dueEntry // recurring_order_id → entry
}

// NewDueIndex creates an empty DueIndex.
func NewDueIndex() *DueIndex {
	const degree = 32
	return &DueIndex{
		tree:  btree.NewG[dueEntry](degree, dueLess),
		index: make(map[string]dueEntry),
	}
}

// Upsert inserts or repositions a template keyed by its next order date.
func (d *DueIndex) Upsert(id string, nextOrderDate time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.index[id]; ok {
		d.tree.Delete(old)
	}
	entry := dueEntry{NextOrderDate: domain.DateOf(nextOrderDate), RecurringOrderID: id}
	d.tree.ReplaceOrInsert(entry)
	d.index[id] = entry
}

// Remove deletes a template from the index by id.
func (d *DueIndex) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.index[id]
	if !ok {
		return
	}
	d.tree.Delete(entry)
	delete(d.index, id)
}

// Due returns the ids of templates whose next order date is on or before
// today, most overdue first.
func (d *DueIndex) Due(today time.Time) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	today = domain.DateOf(today)
	var ids []string
	d.tree.Ascend(func(e dueEntry) bool {
		if e.NextOrderDate.After(today) {
			return false
		}
		ids = append(ids, e.RecurringOrderID)
		return true
	})
	return ids
}

// Len returns the number of templates currently indexed.
func (d *DueIndex) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tree.Len()
}
