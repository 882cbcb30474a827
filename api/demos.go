/*
demos.go - Demo loan loaders for testing and demonstrations

PURPOSE:

	Provides pre-built household loan sets that populate the store with
	realistic data for demos. Dates are relative to the service clock, so a
	demo always shows a loan in progress: some installments paid, the next
	ones pending and, where the demo says so, one overdue.

AVAILABLE DEMOS:

	household:        Mortgage, car loan and kitchen loan, all paid to date
	early-repayment:  Consumer loan with a confirmed early repayment
	bridge-overdue:   Interest-only bridge loan with a missed installment

HOW DEMOS WORK:
 1. Reset the store (clear all data)
 2. Parse loans from factory presets
 3. Create them through the service (schedules generated)
 4. Record payments for installments already due
 5. Optionally confirm an early repayment

USAGE VIA API:

	POST /api/demo/load
	{"demo_id": "household"}

NOTE:

	Demos reset the store. Only use in development/demo environments.

SEE ALSO:
  - factory/presets.go: Loan JSON presets
  - handlers.go: Handler
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/warp/loan-engine/factory"
	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/repayment"
	"github.com/warp/loan-engine/schedule"
)

// =============================================================================
// DEMO DEFINITIONS
// =============================================================================

var errUnknownDemo = errors.New("unknown demo")

var demos = []DemoDTO{
	{
		ID:          "household",
		Name:        "Household",
		Description: "Mortgage, car loan and kitchen loan, every due installment paid",
		Loans:       3,
	},
	{
		ID:          "early-repayment",
		Name:        "Early Repayment",
		Description: "Consumer loan shortened by a 3,000.00 early repayment after six installments",
		Loans:       1,
	},
	{
		ID:          "bridge-overdue",
		Name:        "Bridge Loan, Overdue",
		Description: "Interest-only bridge loan with a balloon and the latest installment unpaid",
		Loans:       1,
	},
}

// ListDemos returns available demos.
// GET /api/demo
func (h *Handler) ListDemos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, demos)
}

// GetCurrentDemo returns the currently loaded demo, if any.
// GET /api/demo/current
func (h *Handler) GetCurrentDemo(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentDemo
	h.mu.Unlock()

	for _, d := range demos {
		if d.ID == current {
			writeJSON(w, http.StatusOK, d)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadDemo resets the store and loads a demo loan set.
// POST /api/demo/load
func (h *Handler) LoadDemo(w http.ResponseWriter, r *http.Request) {
	var req LoadDemoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	today := h.Service.Today()
	if err := h.loadDemo(ctx, req.DemoID, today); err != nil {
		if errors.Is(err, errUnknownDemo) {
			writeError(w, http.StatusNotFound, "Unknown demo", err)
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	loans, err := h.Service.ListLoans(ctx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	resp := LoadDemoResponse{DemoID: req.DemoID, AsOf: today, Loans: make([]LoanDTO, len(loans))}
	for i, l := range loans {
		resp.Loans[i] = h.toLoanDTO(l)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) loadDemo(ctx context.Context, id string, today finance.Date) error {
	var load func(ctx context.Context, today finance.Date) error
	switch id {
	case "household":
		load = h.loadHousehold
	case "early-repayment":
		load = h.loadEarlyRepayment
	case "bridge-overdue":
		load = h.loadBridgeOverdue
	default:
		return fmt.Errorf("%w: %q", errUnknownDemo, id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	h.currentDemo = ""
	if err := load(ctx, today); err != nil {
		return fmt.Errorf("demo %q: %w", id, err)
	}
	h.currentDemo = id

	h.logger.InfoContext(ctx, "Demo loaded", "demo", id)
	return nil
}

// =============================================================================
// DEMO LOADERS
// =============================================================================

func (h *Handler) loadHousehold(ctx context.Context, today finance.Date) error {
	presets := []string{
		factory.MortgageJSON("mortgage", "Home mortgage", "180000.00", "3.45", today.AddMonths(-20).String(), 300),
		factory.CarLoanJSON("car", "Family car", "18000.00", "6.9", today.AddMonths(-9).String(), 60),
		factory.ConsumerLoanJSON("kitchen", "Kitchen", "8000.00", "8.5", today.AddMonths(-4).String(), 36,
			"150.00", "2.00", "4.50"),
	}
	for _, js := range presets {
		l, err := h.createFromJSON(ctx, js)
		if err != nil {
			return err
		}
		if err := h.payDue(ctx, l.ID, today, 0); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadEarlyRepayment(ctx context.Context, today finance.Date) error {
	start := today.AddMonths(-12)
	l, err := h.createFromJSON(ctx, factory.ConsumerLoanJSON("consumer", "Consumer loan", "12000.00", "7.2",
		start.String(), 36, "100.00", "1.50", "0.00"))
	if err != nil {
		return err
	}

	// Six installments paid, then 3,000.00 repaid on the sixth due date.
	repaidOn := start.AddMonths(6)
	if err := h.payDue(ctx, l.ID, repaidOn, 0); err != nil {
		return err
	}
	_, err = h.Service.ConfirmEarlyRepayment(ctx, l.ID, loan.RepaymentRequest{
		Amount:      finance.MustParseMoney("3000.00"),
		PaymentDate: repaidOn,
		Policy:      repayment.TermReduction,
	})
	if err != nil {
		return err
	}
	return h.payDue(ctx, l.ID, today, 0)
}

func (h *Handler) loadBridgeOverdue(ctx context.Context, today finance.Date) error {
	// Starting ten days earlier keeps the latest due date strictly before today.
	start := finance.DateOf(today.AddMonths(-5).AddDate(0, 0, -10))
	l, err := h.createFromJSON(ctx, factory.BridgeLoanJSON("bridge", "Bridge loan", "50000.00", "5.25",
		"20000.00", start.String(), 18))
	if err != nil {
		return err
	}
	// The most recent due installment stays unpaid.
	return h.payDue(ctx, l.ID, today, 1)
}

func (h *Handler) createFromJSON(ctx context.Context, js string) (*loan.Loan, error) {
	in, err := h.Factory.ParseLoan(js)
	if err != nil {
		return nil, err
	}
	return h.Service.CreateLoan(ctx, in)
}

// payDue pays every unpaid installment due on or before asOf, on its due
// date, leaving the last skip of them unpaid.
func (h *Handler) payDue(ctx context.Context, loanID string, asOf finance.Date, skip int) error {
	rows, err := h.Store.GetSchedule(ctx, loanID)
	if err != nil {
		return err
	}

	var due []schedule.Installment
	for _, row := range rows {
		if !row.IsPaid() && row.DueDate.BeforeOrEqual(asOf) {
			due = append(due, row)
		}
	}
	if skip > len(due) {
		skip = len(due)
	}
	for _, row := range due[:len(due)-skip] {
		if _, err := h.Service.RecordPayment(ctx, loanID, row.No, row.DueDate); err != nil {
			return err
		}
	}
	return nil
}
