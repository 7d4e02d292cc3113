package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mylittleshop/fulfillment/internal/domain"
	"github.com/mylittleshop/fulfillment/internal/engine"
	"github.com/mylittleshop/fulfillment/internal/store"
)

// RecurringLine is one requested line of a new recurring-order template.
type RecurringLine struct {
	ProductID string
	Quantity  int64
	UnitPrice *int64 // cents; nil captures the product's consumer price
}

// CreateRecurringOrderRequest carries everything needed to set up a
// recurring-order template.
type CreateRecurringOrderRequest struct {
	UserID            string
	SubscriptionID    string
	Frequency         string
	NextOrderDate     time.Time
	Lines             []RecurringLine
	ShippingAddressID string
	PaymentMethodID   string
	Notes             string
}

// RecurringOrderService owns recurring-order templates: lifecycle,
// billing-cycle date math, and turning a due template into a concrete
// order exactly once per due date.
type RecurringOrderService struct {
	templates *store.RecurringOrderStore
	orders    *OrderService
	dueIndex  *engine.DueIndex
	catalog   Catalog
	users     Identity
	clock     domain.Clock
}

// NewRecurringOrderService creates a new RecurringOrderService with the
// given dependencies.
func NewRecurringOrderService(
	templates *store.RecurringOrderStore,
	orders *OrderService,
	dueIndex *engine.DueIndex,
	catalog Catalog,
	users Identity,
	clock domain.Clock,
) *RecurringOrderService {
	return &RecurringOrderService{
		templates: templates,
		orders:    orders,
		dueIndex:  dueIndex,
		catalog:   catalog,
		users:     users,
		clock:     clock,
	}
}

// Create sets up an active recurring-order template and registers it in
// the due index. Unit prices are captured now; generated orders use the
// captured prices, never the live product price.
func (s *RecurringOrderService) Create(req CreateRecurringOrderRequest) (*domain.RecurringOrder, error) {
	if _, err := s.users.GetUser(req.UserID); err != nil {
		return nil, err
	}
	freq, ok := domain.ParseFrequency(req.Frequency)
	if !ok {
		return nil, &domain.ValidationError{Message: "unknown frequency: " + req.Frequency}
	}
	if len(req.Lines) == 0 {
		return nil, &domain.ValidationError{Message: "recurring order must have at least one line"}
	}
	if req.NextOrderDate.IsZero() {
		return nil, &domain.ValidationError{Message: "next_order_date is required"}
	}

	items := make([]domain.RecurringOrderItem, 0, len(req.Lines))
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
		}
		product, err := s.catalog.GetProduct(line.ProductID)
		if err != nil {
			return nil, err
		}
		unitPrice := product.ConsumerPrice
		if line.UnitPrice != nil {
			if *line.UnitPrice < 0 {
				return nil, &domain.ValidationError{Message: "unit price must not be negative"}
			}
			unitPrice = *line.UnitPrice
		}
		items = append(items, domain.RecurringOrderItem{
			ItemID:    uuid.New().String(),
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
		})
	}

	now := s.clock.Now()
	template := &domain.RecurringOrder{
		RecurringOrderID:  uuid.New().String(),
		UserID:            req.UserID,
		SubscriptionID:    req.SubscriptionID,
		Status:            domain.RecurringOrderStatusActive,
		Frequency:         freq,
		Items:             items,
		NextOrderDate:     domain.DateOf(req.NextOrderDate),
		ShippingAddressID: req.ShippingAddressID,
		PaymentMethodID:   req.PaymentMethodID,
		Notes:             req.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	s.templates.Create(template)
	s.dueIndex.Upsert(template.RecurringOrderID, template.NextOrderDate)
	template.Mu.Lock()
	defer template.Mu.Unlock()
	return template.Snapshot(), nil
}

// Get retrieves a detached snapshot of a template by ID.
func (s *RecurringOrderService) Get(id string) (*domain.RecurringOrder, error) {
	template, err := s.templates.Get(id)
	if err != nil {
		return nil, err
	}
	template.Mu.Lock()
	defer template.Mu.Unlock()
	return template.Snapshot(), nil
}

// ListByUser returns snapshots of a user's templates.
func (s *RecurringOrderService) ListByUser(userID string) ([]*domain.RecurringOrder, error) {
	if _, err := s.users.GetUser(userID); err != nil {
		return nil, err
	}
	live := s.templates.ListByUser(userID)
	out := make([]*domain.RecurringOrder, 0, len(live))
	for _, t := range live {
		t.Mu.Lock()
		out = append(out, t.Snapshot())
		t.Mu.Unlock()
	}
	return out, nil
}

// ListByStatus returns snapshots of every template in the given lifecycle
// status.
func (s *RecurringOrderService) ListByStatus(status string) ([]*domain.RecurringOrder, error) {
	switch domain.RecurringOrderStatus(status) {
	case domain.RecurringOrderStatusActive,
		domain.RecurringOrderStatusPaused,
		domain.RecurringOrderStatusCancelled:
	default:
		return nil, &domain.ValidationError{Message: "unknown recurring order status: " + status}
	}
	return s.templates.ListByStatus(domain.RecurringOrderStatus(status)), nil
}

// ListDueBetween returns snapshots of every template whose next order date
// falls inside the inclusive [from, to] window.
func (s *RecurringOrderService) ListDueBetween(from, to time.Time) ([]*domain.RecurringOrder, error) {
	if from.IsZero() || to.IsZero() {
		return nil, &domain.ValidationError{Message: "from and to are required"}
	}
	if from.After(to) {
		return nil, &domain.ValidationError{Message: "from must not be after to"}
	}
	return s.templates.ListByNextOrderDateRange(from, to), nil
}

// Pause suspends an active template. Paused templates are not due and are
// removed from the due index.
func (s *RecurringOrderService) Pause(id string) (*domain.RecurringOrder, error) {
	return s.setStatus(id, domain.RecurringOrderStatusActive, domain.RecurringOrderStatusPaused)
}

// Resume reactivates a paused template and re-indexes it. A template that
// went overdue while paused is processed on the next tick.
func (s *RecurringOrderService) Resume(id string) (*domain.RecurringOrder, error) {
	return s.setStatus(id, domain.RecurringOrderStatusPaused, domain.RecurringOrderStatusActive)
}

// Cancel permanently stops a template. Cancelled templates cannot be
// resumed.
func (s *RecurringOrderService) Cancel(id string) (*domain.RecurringOrder, error) {
	template, err := s.templates.Get(id)
	if err != nil {
		return nil, err
	}

	template.Mu.Lock()
	defer template.Mu.Unlock()

	if template.Status == domain.RecurringOrderStatusCancelled {
		return nil, &domain.InvalidStateTransitionError{
			Entity: "recurring_order",
			From:   string(template.Status),
			To:     string(domain.RecurringOrderStatusCancelled),
		}
	}
	template.Status = domain.RecurringOrderStatusCancelled
	template.UpdatedAt = s.clock.Now()
	s.dueIndex.Remove(id)
	return template.Snapshot(), nil
}

func (s *RecurringOrderService) setStatus(id string, from, to domain.RecurringOrderStatus) (*domain.RecurringOrder, error) {
	template, err := s.templates.Get(id)
	if err != nil {
		return nil, err
	}

	template.Mu.Lock()
	defer template.Mu.Unlock()

	if template.Status != from {
		return nil, &domain.InvalidStateTransitionError{
			Entity: "recurring_order",
			From:   string(template.Status),
			To:     string(to),
		}
	}
	template.Status = to
	template.UpdatedAt = s.clock.Now()

	if to == domain.RecurringOrderStatusActive {
		s.dueIndex.Upsert(id, template.NextOrderDate)
	} else {
		s.dueIndex.Remove(id)
	}
	return template.Snapshot(), nil
}

// UpdateFrequency changes a template's billing cycle. When the template
// has produced an order before, the next order date is re-derived from the
// last order date under the new frequency.
func (s *RecurringOrderService) UpdateFrequency(id, frequency string) (*domain.RecurringOrder, error) {
	freq, ok := domain.ParseFrequency(frequency)
	if !ok {
		return nil, &domain.ValidationError{Message: "unknown frequency: " + frequency}
	}
	template, err := s.templates.Get(id)
	if err != nil {
		return nil, err
	}

	template.Mu.Lock()
	defer template.Mu.Unlock()

	template.Frequency = freq
	if template.LastOrderDate != nil {
		template.NextOrderDate = domain.AdvanceDate(*template.LastOrderDate, freq)
	}
	template.UpdatedAt = s.clock.Now()
	if template.Status == domain.RecurringOrderStatusActive {
		s.dueIndex.Upsert(id, template.NextOrderDate)
	}
	return template.Snapshot(), nil
}

// UpdateNextOrderDate overrides a template's next order date. This is the
// one operator escape hatch from the derived-date rule; dates still only
// advance by AdvanceDate after each produced order.
func (s *RecurringOrderService) UpdateNextOrderDate(id string, next time.Time) (*domain.RecurringOrder, error) {
	if next.IsZero() {
		return nil, &domain.ValidationError{Message: "next_order_date is required"}
	}
	template, err := s.templates.Get(id)
	if err != nil {
		return nil, err
	}

	template.Mu.Lock()
	defer template.Mu.Unlock()

	template.NextOrderDate = domain.DateOf(next)
	template.UpdatedAt = s.clock.Now()
	if template.Status == domain.RecurringOrderStatusActive {
		s.dueIndex.Upsert(id, template.NextOrderDate)
	}
	return template.Snapshot(), nil
}

// UpdateItemQuantity changes the quantity of one template line. Future
// generated orders pick up the new quantity; already-produced orders are
// untouched.
func (s *RecurringOrderService) UpdateItemQuantity(id, itemID string, quantity int64) (*domain.RecurringOrder, error) {
	if quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	template, err := s.templates.Get(id)
	if err != nil {
		return nil, err
	}

	template.Mu.Lock()
	defer template.Mu.Unlock()

	for i := range template.Items {
		if template.Items[i].ItemID == itemID {
			template.Items[i].Quantity = quantity
			template.UpdatedAt = s.clock.Now()
			return template.Snapshot(), nil
		}
	}
	return nil, &domain.ValidationError{Message: "no such item: " + itemID}
}

// ProcessDue converts a template into a concrete order and advances the
// billing clock. The order creation and the date advance commit together
// under the template lock: an insufficient-stock failure leaves the
// template untouched so the next tick retries it, and a success can never
// be recorded without the date advance.
func (s *RecurringOrderService) ProcessDue(id string) (*domain.Order, error) {
	template, err := s.templates.Get(id)
	if err != nil {
		return nil, err
	}

	template.Mu.Lock()
	defer template.Mu.Unlock()

	if template.Status != domain.RecurringOrderStatusActive {
		return nil, &domain.InvalidStateTransitionError{
			Entity: "recurring_order",
			From:   string(template.Status),
		}
	}

	// The dueness check lives inside the critical section: a scheduler
	// tick and a manual run racing on the same template must produce one
	// order, not two.
	today := domain.Today(s.clock)
	if template.NextOrderDate.After(today) {
		return nil, fmt.Errorf("%w until %s", domain.ErrNotDue, template.NextOrderDate.Format("2006-01-02"))
	}

	lines := make([]OrderLine, 0, len(template.Items))
	for _, it := range template.Items {
		unitPrice := it.UnitPrice
		lines = append(lines, OrderLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: &unitPrice,
		})
	}

	order, err := s.orders.CreateOrder(CreateOrderRequest{
		UserID:           template.UserID,
		Lines:            lines,
		PaymentMethod:    template.PaymentMethodID,
		RecurringOrderID: template.RecurringOrderID,
	})
	if err != nil {
		return nil, err
	}

	template.LastOrderDate = &today
	template.NextOrderDate = domain.AdvanceDate(today, template.Frequency)
	template.OrderIDs = append(template.OrderIDs, order.OrderID)
	template.UpdatedAt = s.clock.Now()
	s.dueIndex.Upsert(id, template.NextOrderDate)

	return order, nil
}

// ProcessAllDue processes every template due on or before today. One
// template's failure is collected and never aborts the batch or advances
// that template's dates.
func (s *RecurringOrderService) ProcessAllDue(today time.Time) domain.BatchReport {
	var report domain.BatchReport
	for _, id := range s.dueIndex.Due(today) {
		order, err := s.ProcessDue(id)
		if err != nil {
			if errors.Is(err, domain.ErrNotDue) {
				// Raced with a concurrent manual run that already
				// advanced the template; nothing to do.
				continue
			}
			report.Failures = append(report.Failures, domain.BatchFailure{RecurringOrderID: id, Err: err})
			continue
		}
		report.OrderIDs = append(report.OrderIDs, order.OrderID)
	}
	return report
}
