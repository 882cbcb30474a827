/*
Package simulation answers what-if questions about a loan.

PURPOSE:
  A simulation regenerates a loan's schedule under hypothetical terms and
  compares it with the schedule the loan's own terms produce. Nothing is
  stored: both runs are computed from the terms alone, so a simulation can
  never change what a later read of the loan returns.

OVERRIDES:
  Overrides apply from origination: the original principal, start date and
  loan type are kept, and the full term is regenerated.

    NewRate              replaces annualRatePercent
    NewTerm              replaces termMonths
    ExtraPaymentMonthly  is added to every period's principal; the run
                         stops as soon as the balance reaches zero

FIGURES PER RUN:
  monthlyPayment   first installment principal + interest (extra included)
  totalInterest    Σ interestDue
  totalCost        Σ totalDue + feeSetup

EXAMPLE:
  extra := finance.MustParseMoney("200.00")
  res, err := simulation.Simulate(terms, simulation.Overrides{ExtraPaymentMonthly: extra})
  fmt.Println(res.Savings.InterestSaved, res.Savings.TimeSavedMonths)

SEE ALSO:
  - compare.go: Several named simulations side by side
  - schedule/generator.go: The generator both runs share
*/
package simulation

import (
	"github.com/shopspring/decimal"

	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/schedule"
)

// =============================================================================
// INPUT
// =============================================================================

// Overrides are the hypothetical changes to a loan's terms.
// Nil fields keep the loan's own value.
type Overrides struct {
	NewRate             *decimal.Decimal `json:"new_rate,omitempty"`
	NewTerm             *int             `json:"new_term,omitempty"`
	ExtraPaymentMonthly finance.Money    `json:"extra_payment_monthly"`
}

// IsZero reports whether o changes nothing.
func (o Overrides) IsZero() bool {
	return o.NewRate == nil && o.NewTerm == nil && o.ExtraPaymentMonthly.IsZero()
}

// Apply returns t with the overrides substituted.
func (o Overrides) Apply(t schedule.Terms) schedule.Terms {
	if o.NewRate != nil {
		t.AnnualRatePercent = *o.NewRate
	}
	if o.NewTerm != nil {
		t.TermMonths = *o.NewTerm
	}
	return t
}

// =============================================================================
// OUTPUT
// =============================================================================

// Run holds the headline figures of one generated schedule.
type Run struct {
	MonthlyPayment   finance.Money `json:"monthly_payment"`
	TotalInterest    finance.Money `json:"total_interest"`
	TotalCost        finance.Money `json:"total_cost"`
	InstallmentCount int           `json:"installment_count"`
}

// Savings compares the simulated run against the original. Both figures
// are negative when the overrides make the loan more expensive or longer.
type Savings struct {
	InterestSaved   finance.Money `json:"interest_saved"`
	TimeSavedMonths int           `json:"time_saved_months"`
}

// Result is the outcome of one simulation.
type Result struct {
	Original  Run     `json:"original"`
	Simulated Run     `json:"simulated"`
	Savings   Savings `json:"savings"`
}

// TotalSaved is the difference in total cost between the two runs.
func (r *Result) TotalSaved() finance.Money {
	return r.Original.TotalCost.Sub(r.Simulated.TotalCost)
}

// =============================================================================
// SIMULATE
// =============================================================================

// Simulate generates the schedule for t and for t under o, and compares
// them.
func Simulate(t schedule.Terms, o Overrides) (*Result, error) {
	if o.ExtraPaymentMonthly.IsNegative() {
		return nil, &finance.TermsError{Field: "extra_payment_monthly", Reason: "must not be negative"}
	}

	original, err := run(t, finance.Zero)
	if err != nil {
		return nil, err
	}
	simulated, err := run(o.Apply(t), o.ExtraPaymentMonthly)
	if err != nil {
		return nil, err
	}

	return &Result{
		Original:  original,
		Simulated: simulated,
		Savings: Savings{
			InterestSaved:   original.TotalInterest.Sub(simulated.TotalInterest),
			TimeSavedMonths: original.InstallmentCount - simulated.InstallmentCount,
		},
	}, nil
}

func run(t schedule.Terms, extra finance.Money) (Run, error) {
	plan, err := t.Plan()
	if err != nil {
		return Run{}, err
	}
	plan.Extra = extra
	plan.StopWhenPaid = extra.IsPositive()

	rows, err := schedule.Amortize(plan)
	if err != nil {
		return Run{}, err
	}

	totals := schedule.Summarize(rows)
	return Run{
		MonthlyPayment:   totals.LevelPayment,
		TotalInterest:    totals.Interest,
		TotalCost:        totals.Due.Add(t.FeeSetup),
		InstallmentCount: totals.Count,
	}, nil
}
