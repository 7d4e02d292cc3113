package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/mylittleshop/fulfillment/internal/domain"
)

// BatchProcessor converts every due recurring-order template into a
// concrete order. Implemented by the recurring-order service; the engine
// only drives the ticks.
type BatchProcessor interface {
	ProcessAllDue(today time.Time) domain.BatchReport
}

// Scheduler periodically runs the recurring-order batch. A tick that
// overlaps live checkout traffic is fine: the ledger serializes per-product
// mutations, and a failed template simply stays due for the next tick.
type Scheduler struct {
	interval  time.Duration
	clock     domain.Clock
	processor BatchProcessor
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler ticking at the given interval.
func NewScheduler(interval time.Duration, clock domain.Clock, processor BatchProcessor, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		interval:  interval,
		clock:     clock,
		processor: processor,
		logger:    logger,
	}
}

// Start launches a background goroutine that ticks at the configured
// interval and processes due templates. It stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce()
			}
		}
	}()
}

// runOnce executes a single batch pass and logs the report. One template's
// failure never aborts the batch; failures are collected, logged, and left
// due for the next tick.
func (s *Scheduler) runOnce() {
	today := domain.Today(s.clock)
	report := s.processor.ProcessAllDue(today)

	if len(report.Failures) == 0 && len(report.OrderIDs) == 0 {
		return
	}
	s.logger.Info("recurring order batch",
		slog.Time("today", today),
		slog.Int("orders_created", len(report.OrderIDs)),
		slog.Int("failures", len(report.Failures)),
	)
	for _, f := range report.Failures {
		s.logger.Warn("recurring order skipped",
			slog.String("recurring_order_id", f.RecurringOrderID),
			slog.String("error", f.Err.Error()),
		)
	}
}
