/*
Package lifecycle derives installment statuses and loan-level aggregates.

PURPOSE:
  The read-side view over whatever schedule currently exists for a loan.
  Nothing here generates installments; it classifies and folds them.

KEY RULES:
  - overdue  = dueDate < today AND not paid
  - pending  = otherwise, until a payment is recorded
  - paid     = recorded by the payment layer, never overdue
  - today is always a parameter; this package never reads a clock

AGGREGATES:
  currentBalance   principalBalanceAfter of the latest paid installment
                   (principal if none), less early repayments confirmed
                   after that installment
  paidPrincipal    principal - currentBalance
  paidAmount       Σ totalDue of paid installments + early repayments
  totalInterest    Σ interestDue over the schedule
  nextInstallment  earliest unpaid installment by due date

SEE ALSO:
  - schedule/types.go: Installment and Prepayment
  - loan/service.go: Builds the loan view from these aggregates
*/
package lifecycle

import (
	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/schedule"
)

// Classify returns the status inst has on date today.
func Classify(inst schedule.Installment, today finance.Date) schedule.Status {
	if inst.Status == schedule.StatusPaid {
		return schedule.StatusPaid
	}
	if inst.DueDate.Before(today) {
		return schedule.StatusOverdue
	}
	return schedule.StatusPending
}

// Apply returns a copy of rows with every status derived for today.
func Apply(rows []schedule.Installment, today finance.Date) []schedule.Installment {
	out := schedule.Clone(rows)
	for i := range out {
		out[i].Status = Classify(out[i], today)
	}
	return out
}

// Summary is the loan-level fold over a schedule.
type Summary struct {
	CurrentBalance  finance.Money         `json:"current_balance"`
	PaidPrincipal   finance.Money         `json:"paid_principal"`
	PaidAmount      finance.Money         `json:"paid_amount"`
	TotalInterest   finance.Money         `json:"total_interest"`
	NextInstallment *schedule.Installment `json:"next_installment"`
	OverdueCount    int                   `json:"overdue_count"`
	PaidCount       int                   `json:"paid_count"`
	RemainingCount  int                   `json:"remaining_count"`
}

// Summarize folds rows for a loan of the given principal as of today.
func Summarize(principal finance.Money, rows []schedule.Installment, prepayments []schedule.Prepayment, today finance.Date) Summary {
	var (
		s        Summary
		lastPaid *schedule.Installment
	)

	for i := range rows {
		row := rows[i]
		s.TotalInterest = s.TotalInterest.Add(row.InterestDue)

		switch Classify(row, today) {
		case schedule.StatusPaid:
			s.PaidCount++
			s.PaidAmount = s.PaidAmount.Add(row.TotalDue)
			if lastPaid == nil || row.No > lastPaid.No {
				lastPaid = &rows[i]
			}
			continue
		case schedule.StatusOverdue:
			s.OverdueCount++
		}

		s.RemainingCount++
		if s.NextInstallment == nil || row.DueDate.Before(s.NextInstallment.DueDate) {
			next := row
			next.Status = Classify(row, today)
			s.NextInstallment = &next
		}
	}

	s.CurrentBalance = principal
	lastPaidNo := 0
	if lastPaid != nil {
		s.CurrentBalance = lastPaid.BalanceAfter
		lastPaidNo = lastPaid.No
	}

	for _, p := range prepayments {
		s.PaidAmount = s.PaidAmount.Add(p.Amount)
		if p.AfterInstallment >= lastPaidNo {
			s.CurrentBalance = s.CurrentBalance.Sub(p.Amount)
		}
	}
	if s.CurrentBalance.IsNegative() {
		s.CurrentBalance = finance.Zero
	}

	s.PaidPrincipal = principal.Sub(s.CurrentBalance)
	return s
}

// Overdue returns the unpaid installments due before today.
func Overdue(rows []schedule.Installment, today finance.Date) []schedule.Installment {
	var out []schedule.Installment
	for _, r := range rows {
		if Classify(r, today) == schedule.StatusOverdue {
			r.Status = schedule.StatusOverdue
			out = append(out, r)
		}
	}
	return out
}
