/*
Package repayment computes the effect of a partial early repayment.

PURPOSE:
  Given a loan's terms, its current schedule and an extra principal payment
  on a date, compute the replacement tail of the schedule. The computation
  is pure: a preview and a confirmation run exactly the same code, and only
  the caller decides whether to persist the result.

ALGORITHM:
  1. Split the schedule at the payment date. Installments due on or before
     the date, or already paid, are kept; the rest is the tail. A date
     before the loan start is rejected.
  2. B is the balance before the first tail installment (0 if no tail).
     The amount must satisfy 0 < amount <= B.
  3. B' = B - amount is amortized again from the first tail position:
       term_reduction  hold the periodic level, stop when B' reaches 0
       reduce_payment  hold the tail length, derive a new level (fixed
                       principal: old part less amount/n in whole cents)
     Interest-only loans always keep the tail length; the balloon shrinks
     by the repaid amount.
  4. savedInterest = Σ interest(old tail) - Σ interest(new tail)

USAGE:
  p := repayment.NewProcessor(repayment.TermReduction)
  preview, err := p.Preview(terms, rows, amount, date, "")
  full := repayment.Splice(rows, preview)

SEE ALSO:
  - schedule/generator.go: Amortize, reused for the new tail
  - loan/service.go: Confirmation under the per-loan lock
*/
package repayment

import (
	"sort"

	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/schedule"
)

// Preview is the computed impact of an early repayment.
type Preview struct {
	Amount      finance.Money `json:"amount"`
	PaymentDate finance.Date  `json:"payment_date"`
	Policy      Policy        `json:"policy"`

	BalanceBefore         finance.Money `json:"balance_before"`
	NewRemainingPrincipal finance.Money `json:"new_remaining_principal"`
	SavedInterest         finance.Money `json:"saved_interest"`
	NewInstallmentCount   int           `json:"new_installment_count"`

	OriginalRemainingCount    int           `json:"original_remaining_count"`
	OriginalRemainingInterest finance.Money `json:"original_remaining_interest"`
	NewRemainingInterest      finance.Money `json:"new_remaining_interest"`
	NewPeriodicPayment        finance.Money `json:"new_periodic_payment"`

	// KeptCount installments stay in front of Tail.
	KeptCount int                    `json:"kept_count"`
	Tail      []schedule.Installment `json:"tail"`
}

// PaysOff reports whether the repayment clears the remaining principal.
func (p *Preview) PaysOff() bool {
	return p.NewRemainingPrincipal.IsZero()
}

// Processor computes previews with a configured default policy.
type Processor struct {
	DefaultPolicy Policy
}

// NewProcessor returns a processor; an empty policy means DefaultPolicy.
func NewProcessor(defaultPolicy Policy) *Processor {
	if defaultPolicy == "" {
		defaultPolicy = DefaultPolicy
	}
	return &Processor{DefaultPolicy: defaultPolicy}
}

// Preview computes the repayment of amount on date against rows.
// An empty policy uses the processor's default.
func (p *Processor) Preview(t schedule.Terms, rows []schedule.Installment, amount finance.Money, date finance.Date, policy Policy) (*Preview, error) {
	if policy == "" {
		policy = p.DefaultPolicy
	}
	if !amount.IsPositive() {
		return nil, &finance.RepaymentAmountError{Amount: amount}
	}
	if len(rows) == 0 {
		return nil, finance.ErrScheduleNotFound
	}
	if date.Before(t.StartDate) {
		return nil, &finance.PaymentDateError{Date: date, Earliest: t.StartDate, Reason: "before the loan start date"}
	}

	ordered := schedule.Clone(rows)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].No < ordered[j].No })

	kept := splitPoint(ordered, date)
	tail := ordered[kept:]

	balance := finance.Zero
	if len(tail) > 0 {
		balance = tail[0].BalanceAfter.Add(tail[0].PrincipalDue)
	}
	if amount.GreaterThan(balance) {
		return nil, &finance.RepaymentAmountError{Amount: amount, Balance: balance}
	}

	remaining := balance.Sub(amount)
	newTail, err := p.regenerate(t, tail, kept, remaining, amount, policy)
	if err != nil {
		return nil, err
	}

	oldTotals := schedule.Summarize(tail)
	newTotals := schedule.Summarize(newTail)

	return &Preview{
		Amount:                    amount,
		PaymentDate:               date,
		Policy:                    policy,
		BalanceBefore:             balance,
		NewRemainingPrincipal:     remaining,
		SavedInterest:             oldTotals.Interest.Sub(newTotals.Interest),
		NewInstallmentCount:       len(newTail),
		OriginalRemainingCount:    len(tail),
		OriginalRemainingInterest: oldTotals.Interest,
		NewRemainingInterest:      newTotals.Interest,
		NewPeriodicPayment:        newTotals.LevelPayment,
		KeptCount:                 kept,
		Tail:                      newTail,
	}, nil
}

func (p *Processor) regenerate(t schedule.Terms, tail []schedule.Installment, kept int, remaining, amount finance.Money, policy Policy) ([]schedule.Installment, error) {
	if remaining.IsZero() {
		return []schedule.Installment{}, nil
	}

	method, err := schedule.Lookup(t.LoanType)
	if err != nil {
		return nil, err
	}
	rate, err := t.PeriodicRate()
	if err != nil {
		return nil, err
	}

	plan := schedule.Plan{
		Type:      t.LoanType,
		Principal: remaining,
		Rate:      rate,
		Periods:   len(tail),
		Start:     t.StartDate,
		FirstNo:   kept + 1,
		Charges:   t.Charges(),
	}

	switch {
	case !method.ShortensTerm():
		// The balloon absorbs the repayment first.
		plan.Balloon = tail[len(tail)-1].PrincipalDue.Sub(amount).Max(finance.Zero)
	case policy == TermReduction:
		plan.Level = method.Level(tail[0])
		plan.StopWhenPaid = true
	case t.LoanType == schedule.FixedPrincipal:
		// Lowering the old part by whole cents keeps every new balance at or
		// below the old one, so the tail never carries more interest.
		level := method.Level(tail[0]).Sub(finance.Cents(amount.Cents() / int64(len(tail))))
		if level.IsPositive() {
			plan.Level = level
		}
	}

	return schedule.Amortize(plan)
}

// KeptCount returns how many installments of rows a repayment on date
// leaves in place.
func KeptCount(rows []schedule.Installment, date finance.Date) int {
	ordered := schedule.Clone(rows)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].No < ordered[j].No })
	return splitPoint(ordered, date)
}

// splitPoint returns how many leading installments stay untouched: every
// installment due on or before date, and every installment already paid.
func splitPoint(rows []schedule.Installment, date finance.Date) int {
	kept := 0
	for i, r := range rows {
		if r.DueDate.BeforeOrEqual(date) || r.IsPaid() {
			kept = i + 1
		}
	}
	return kept
}

// Splice returns rows with the tail replaced by the preview's tail.
func Splice(rows []schedule.Installment, p *Preview) []schedule.Installment {
	ordered := schedule.Clone(rows)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].No < ordered[j].No })

	out := make([]schedule.Installment, 0, p.KeptCount+len(p.Tail))
	out = append(out, ordered[:p.KeptCount]...)
	out = append(out, p.Tail...)
	return out
}
