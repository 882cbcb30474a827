/*
Package loan ties the pure engine packages to storage.

PURPOSE:
  A Loan is the persisted aggregate: terms, the current schedule, confirmed
  early repayments and a revision counter. The Service is the only writer;
  every write runs under a per-loan lock and is applied by the Store with a
  compare-and-swap on the revision, so a write based on a stale read fails
  with ErrConcurrentModification instead of corrupting the schedule.

KEY CONCEPTS:
  Loan        terms + status + revision
  Repayment   a confirmed early repayment
  View        the loan, its schedule with derived statuses and aggregates
  Store       persistence port (loan/store: memory, store/sqlite: SQLite)

WRITES (each bumps the revision by one):
  CreateLoan              revision 1, schedule generated from the terms
  ConfirmEarlyRepayment   tail replaced, repayment recorded
  RecordPayment           one installment marked paid

  MaterializeOverdue also writes (status pending -> overdue) but never bumps
  the revision: it does not change any amount.

SEE ALSO:
  - service.go: Operations
  - store.go: Store interface
  - repayment/processor.go: Tail computation
*/
package loan

import (
	"time"

	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/lifecycle"
	"github.com/warp/loan-engine/repayment"
	"github.com/warp/loan-engine/schedule"
)

// =============================================================================
// LOAN
// =============================================================================

// Status is the lifecycle state of a loan.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaidOff   Status = "paid_off"
	StatusDefaulted Status = "defaulted"
)

// Loan is a persisted loan.
type Loan struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Lender    string         `json:"lender,omitempty"`
	Terms     schedule.Terms `json:"terms"`
	Status    Status         `json:"status"`
	Revision  int64          `json:"revision"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewLoan is the input of CreateLoan. An empty ID is generated.
type NewLoan struct {
	ID     string
	Name   string
	Lender string
	Terms  schedule.Terms
}

// =============================================================================
// REPAYMENT
// =============================================================================

// Repayment is a confirmed early repayment.
type Repayment struct {
	ID                  string           `json:"id"`
	LoanID              string           `json:"loan_id"`
	Amount              finance.Money    `json:"amount"`
	PaymentDate         finance.Date     `json:"payment_date"`
	Policy              repayment.Policy `json:"policy"`
	AfterInstallment    int              `json:"after_installment"`
	BalanceBefore       finance.Money    `json:"balance_before"`
	SavedInterest       finance.Money    `json:"saved_interest"`
	NewInstallmentCount int              `json:"new_installment_count"`
	Revision            int64            `json:"revision"`
	CreatedAt           time.Time        `json:"created_at"`
}

// Prepayment is the repayment as the lifecycle aggregates see it.
func (r Repayment) Prepayment() schedule.Prepayment {
	return schedule.Prepayment{
		Amount:           r.Amount,
		PaymentDate:      r.PaymentDate,
		AfterInstallment: r.AfterInstallment,
	}
}

// Prepayments converts repayments for lifecycle.Summarize.
func Prepayments(rs []Repayment) []schedule.Prepayment {
	out := make([]schedule.Prepayment, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Prepayment())
	}
	return out
}

// =============================================================================
// VIEW
// =============================================================================

// View is the read-side aggregate of one loan as of a date.
type View struct {
	Loan       Loan                   `json:"loan"`
	AsOf       finance.Date           `json:"as_of"`
	Schedule   []schedule.Installment `json:"schedule"`
	Repayments []Repayment            `json:"repayments"`
	lifecycle.Summary
}

// RepaymentRequest is the input of PreviewEarlyRepayment and
// ConfirmEarlyRepayment. A zero PaymentDate means today and an empty
// Policy means the service default.
type RepaymentRequest struct {
	Amount      finance.Money
	PaymentDate finance.Date
	Policy      repayment.Policy

	// ExpectedRevision, when set, must match the loan's revision at
	// confirmation time.
	ExpectedRevision *int64
}

// Confirmation is the outcome of ConfirmEarlyRepayment.
type Confirmation struct {
	Preview   *repayment.Preview `json:"preview"`
	Repayment Repayment          `json:"repayment"`
	Revision  int64              `json:"revision"`
	Status    Status             `json:"status"`
}

func allPaid(rows []schedule.Installment) bool {
	for _, r := range rows {
		if !r.IsPaid() {
			return false
		}
	}
	return true
}
