package schedule

import (
	"github.com/shopspring/decimal"

	"github.com/warp/loan-engine/finance"
)

// Terms are the commercial terms a schedule is generated from.
type Terms struct {
	Principal          finance.Money   `json:"principal"`
	AnnualRatePercent  decimal.Decimal `json:"annual_rate_percent"`
	DayCountConvention string          `json:"day_count_convention"`
	StartDate          finance.Date    `json:"start_date"`
	TermMonths         int             `json:"term_months"`
	LoanType           LoanType        `json:"loan_type"`

	// FeeSetup is charged once and never appears in the schedule.
	FeeSetup         finance.Money `json:"fee_setup"`
	FeeMonthly       finance.Money `json:"fee_monthly"`
	InsuranceMonthly finance.Money `json:"insurance_monthly"`

	// BalloonAmount applies to interest_only loans; nil means the full principal.
	BalloonAmount *finance.Money `json:"balloon_amount,omitempty"`
}

// Validate rejects terms no schedule can be generated from.
func (t Terms) Validate() error {
	if !t.Principal.IsPositive() {
		return &finance.TermsError{Field: "principal", Reason: "must be positive"}
	}
	if t.TermMonths <= 0 {
		return &finance.TermsError{Field: "term_months", Reason: "must be positive"}
	}
	if t.AnnualRatePercent.IsNegative() {
		return &finance.TermsError{Field: "annual_rate_percent", Reason: "must not be negative"}
	}
	if t.StartDate.IsZero() {
		return &finance.TermsError{Field: "start_date", Reason: "is required"}
	}
	if _, err := Lookup(t.LoanType); err != nil {
		return err
	}
	if _, err := finance.LookupDayCount(t.DayCountConvention); err != nil {
		return err
	}
	if t.FeeSetup.IsNegative() || t.FeeMonthly.IsNegative() || t.InsuranceMonthly.IsNegative() {
		return &finance.TermsError{Field: "fees", Reason: "must not be negative"}
	}
	if t.BalloonAmount != nil {
		if t.LoanType != InterestOnly {
			return &finance.TermsError{Field: "balloon_amount", Reason: "only applies to interest_only loans"}
		}
		if t.BalloonAmount.IsNegative() {
			return &finance.TermsError{Field: "balloon_amount", Reason: "must not be negative"}
		}
		if t.BalloonAmount.GreaterThan(t.Principal) {
			return &finance.TermsError{Field: "balloon_amount", Reason: "exceeds principal"}
		}
	}
	return nil
}

// PeriodicRate is the rate applied to the balance each period.
func (t Terms) PeriodicRate() (decimal.Decimal, error) {
	return finance.MonthlyRate(t.AnnualRatePercent, t.DayCountConvention)
}

// Charges is the recurring amount added to every installment's total.
func (t Terms) Charges() finance.Money {
	return t.FeeMonthly.Add(t.InsuranceMonthly)
}

// Balloon resolves the balloon amount, defaulting to the principal.
func (t Terms) Balloon() finance.Money {
	if t.BalloonAmount == nil {
		return t.Principal
	}
	return *t.BalloonAmount
}

// Plan validates t and returns the plan for its full schedule.
func (t Terms) Plan() (Plan, error) {
	if err := t.Validate(); err != nil {
		return Plan{}, err
	}
	rate, err := t.PeriodicRate()
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Type:      t.LoanType,
		Principal: t.Principal,
		Rate:      rate,
		Periods:   t.TermMonths,
		Start:     t.StartDate,
		FirstNo:   1,
		Balloon:   t.Balloon(),
		Charges:   t.Charges(),
	}, nil
}

// DueDate is the due date of installment no.
func (t Terms) DueDate(no int) finance.Date {
	return t.StartDate.AddMonths(no)
}
