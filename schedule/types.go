/*
Package schedule generates loan payment schedules.

PURPOSE:
  Given a loan's commercial terms, produce the ordered installment sequence
  that pays the principal down to exactly zero. The same generator is reused
  by early repayment (a new tail from a mid-schedule balance) and by
  simulation (counterfactual terms), so it works on a Plan: a principal,
  a periodic rate and a run of periods starting at some installment number.

KEY CONCEPTS IN THIS FILE (types.go):
  - LoanType: which amortization method produces the periods
  - Installment: one row of a schedule
  - Status: pending / paid / overdue
  - Prepayment: an out-of-schedule principal payment already applied

INVARIANTS (full schedule of one loan state):
  - Σ PrincipalDue == principal, exactly
  - BalanceAfter never increases and is 0 on the final installment
  - No runs 1..n without gaps; DueDate is start + No months
  - TotalDue == PrincipalDue + InterestDue + FeesDue

SEE ALSO:
  - terms.go: Loan terms and validation
  - method.go: Method registry
  - generator.go: The shared period loop and residual correction
*/
package schedule

import (
	"github.com/warp/loan-engine/finance"
)

// =============================================================================
// LOAN TYPE
// =============================================================================

// LoanType selects the amortization method.
type LoanType string

const (
	Annuity        LoanType = "annuity"
	FixedPrincipal LoanType = "fixed_principal"
	InterestOnly   LoanType = "interest_only"
)

// =============================================================================
// INSTALLMENT
// =============================================================================

// Status is the lifecycle state of an installment.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// Installment is one row of a schedule.
type Installment struct {
	LoanID       string        `json:"loan_id,omitempty"`
	No           int           `json:"installment_no"`
	DueDate      finance.Date  `json:"due_date"`
	PrincipalDue finance.Money `json:"principal_due"`
	InterestDue  finance.Money `json:"interest_due"`
	FeesDue      finance.Money `json:"fees_due"`
	TotalDue     finance.Money `json:"total_due"`
	BalanceAfter finance.Money `json:"principal_balance_after"`
	Status       Status        `json:"status"`
	PaidOn       finance.Date  `json:"paid_on"`
}

// Payment is the scheduled principal plus interest, without fees.
func (i Installment) Payment() finance.Money {
	return i.PrincipalDue.Add(i.InterestDue)
}

// IsPaid reports whether a payment has been recorded for the installment.
func (i Installment) IsPaid() bool {
	return i.Status == StatusPaid
}

// Prepayment is an early repayment already folded into the schedule.
// AfterInstallment is the number of installments kept in front of the
// regenerated tail.
type Prepayment struct {
	Amount           finance.Money
	PaymentDate      finance.Date
	AfterInstallment int
}

// =============================================================================
// TOTALS
// =============================================================================

// Totals are the sums over a run of installments.
type Totals struct {
	Count     int
	Principal finance.Money
	Interest  finance.Money
	Fees      finance.Money
	Due       finance.Money

	// LevelPayment is the first installment's principal plus interest.
	LevelPayment finance.Money
}

// Summarize folds rows into Totals.
func Summarize(rows []Installment) Totals {
	t := Totals{Count: len(rows)}
	for _, r := range rows {
		t.Principal = t.Principal.Add(r.PrincipalDue)
		t.Interest = t.Interest.Add(r.InterestDue)
		t.Fees = t.Fees.Add(r.FeesDue)
		t.Due = t.Due.Add(r.TotalDue)
	}
	if len(rows) > 0 {
		t.LevelPayment = rows[0].Payment()
	}
	return t
}

// Clone returns a copy of rows that shares no backing array.
func Clone(rows []Installment) []Installment {
	if rows == nil {
		return nil
	}
	out := make([]Installment, len(rows))
	copy(out, rows)
	return out
}
