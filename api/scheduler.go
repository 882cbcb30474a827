/*
scheduler.go - Automated overdue materialization

PURPOSE:
  Periodically stores status overdue on pending installments whose due date
  has passed, so stored schedules, events and metrics agree with the
  derived statuses reads already show. It never bumps a loan revision.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Uses the service clock for "today"
  - Errors are logged; the next tick retries

CONFIGURATION:
  - CheckInterval: How often to check (OVERDUE_INTERVAL, default: 1 hour)
  - Enabled: Whether scheduler is active (false when the interval is 0)

USAGE:
  scheduler := NewOverdueScheduler(svc, time.Hour, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - loan/service.go: MaterializeOverdue
  - lifecycle/status.go: Derived statuses
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/observability"
)

// OverdueScheduler materializes overdue installments on a ticker.
type OverdueScheduler struct {
	Service       *loan.Service
	CheckInterval time.Duration
	Enabled       bool

	logger *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewOverdueScheduler creates a new scheduler. A zero interval disables it.
func NewOverdueScheduler(svc *loan.Service, interval time.Duration, logger *slog.Logger) *OverdueScheduler {
	return &OverdueScheduler{
		Service:       svc,
		CheckInterval: interval,
		Enabled:       interval > 0,
		logger:        observability.Component(logger, observability.ComponentScheduler),
	}
}

// Start begins the scheduler.
func (sc *OverdueScheduler) Start() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.Enabled {
		sc.logger.Info("Overdue scheduler disabled, not starting")
		return
	}
	if sc.ticker != nil {
		return
	}

	sc.ticker = time.NewTicker(sc.CheckInterval)
	sc.stop = make(chan struct{})
	sc.wg.Add(1)

	go sc.run(sc.ticker.C, sc.stop)

	sc.logger.Info("Overdue scheduler started", "interval", sc.CheckInterval.String())
}

// Stop stops the scheduler and waits for a running check to finish.
func (sc *OverdueScheduler) Stop() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.ticker != nil {
		sc.ticker.Stop()
		close(sc.stop)
		sc.wg.Wait()
		sc.ticker = nil
		sc.logger.Info("Overdue scheduler stopped")
	}
}

func (sc *OverdueScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer sc.wg.Done()

	// Run immediately on start
	sc.RunOnce(context.Background())

	for {
		select {
		case <-tick:
			sc.RunOnce(context.Background())
		case <-stop:
			return
		}
	}
}

// RunOnce materializes overdue installments as of the service clock and
// returns how many changed.
func (sc *OverdueScheduler) RunOnce(ctx context.Context) int {
	today := sc.Service.Today()

	n, err := sc.Service.MaterializeOverdue(ctx, today)
	if err != nil {
		sc.logger.ErrorContext(ctx, "Overdue materialization failed",
			"today", today.String(),
			observability.FieldError, err)
		return 0
	}
	if n > 0 {
		sc.logger.InfoContext(ctx, "Installments marked overdue",
			"today", today.String(),
			observability.FieldCount, n)
	}
	return n
}
