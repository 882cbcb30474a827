/*
Package factory provides JSON to Go loan conversion.

PURPOSE:
  Converts JSON loan definitions into loan.NewLoan values and JSON scenario
  definitions into simulation scenarios. Missing optional fields get the
  configured defaults, and every field problem is reported as a
  *finance.TermsError naming the field.

JSON SCHEMA:
  {
    "name": "Home mortgage",
    "lender": "Banca Etica",
    "principal": "180000.00",
    "annual_rate_percent": "3.45",
    "day_count_convention": "30/360",
    "start_date": "2024-03-15",
    "term_months": 300,
    "loan_type": "annuity",
    "fee_setup": "1200.00",
    "fee_monthly": "2.50",
    "insurance_monthly": "18.00"
  }

  Amounts accept JSON numbers or quoted decimals. balloon_amount applies to
  interest_only loans only.

DEFAULTS:
  loan_type              annuity
  day_count_convention   the factory's DayCount (DEFAULT_DAY_COUNT)
  name                   the loan id

USAGE:
  f := factory.NewLoanFactory("30/360")

  in, err := f.ParseLoan(jsonString)
  l, err := svc.CreateLoan(ctx, in)

  // Presets
  in, err := f.ParseLoan(factory.MortgageJSON("mortgage", "Home", "180000.00", "3.45", "2024-03-15", 300))

SEE ALSO:
  - presets.go: Household loan presets
  - schedule/terms.go: Terms validation
  - loan/service.go: CreateLoan
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/schedule"
	"github.com/warp/loan-engine/simulation"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// LoanJSON is the JSON representation of a loan.
type LoanJSON struct {
	ID                 string          `json:"id,omitempty"`
	Name               string          `json:"name,omitempty"`
	Lender             string          `json:"lender,omitempty"`
	Principal          finance.Money   `json:"principal"`
	AnnualRatePercent  decimal.Decimal `json:"annual_rate_percent"`
	DayCountConvention string          `json:"day_count_convention,omitempty"`
	StartDate          string          `json:"start_date"`
	TermMonths         int             `json:"term_months"`
	LoanType           string          `json:"loan_type,omitempty"`
	FeeSetup           finance.Money   `json:"fee_setup,omitempty"`
	FeeMonthly         finance.Money   `json:"fee_monthly,omitempty"`
	InsuranceMonthly   finance.Money   `json:"insurance_monthly,omitempty"`
	BalloonAmount      *finance.Money  `json:"balloon_amount,omitempty"`
}

// ScenarioJSON is the JSON representation of a what-if scenario.
type ScenarioJSON struct {
	Name string `json:"name"`
	OverridesJSON
}

// OverridesJSON holds the optional simulation overrides.
type OverridesJSON struct {
	NewRate             *decimal.Decimal `json:"new_rate,omitempty"`
	NewTerm             *int             `json:"new_term,omitempty"`
	ExtraPaymentMonthly finance.Money    `json:"extra_payment_monthly,omitempty"`
}

// =============================================================================
// LOAN FACTORY
// =============================================================================

// LoanFactory converts JSON loans to Go structs.
type LoanFactory struct {
	// DayCount is used when a loan names no convention.
	DayCount string
}

// NewLoanFactory creates a factory defaulting to dayCount. Empty means
// finance.DefaultDayCount.
func NewLoanFactory(dayCount string) *LoanFactory {
	if dayCount == "" {
		dayCount = finance.DefaultDayCount
	}
	return &LoanFactory{DayCount: dayCount}
}

// ParseLoan parses a JSON string into a NewLoan.
func (f *LoanFactory) ParseLoan(jsonStr string) (loan.NewLoan, error) {
	var lj LoanJSON
	if err := json.Unmarshal([]byte(jsonStr), &lj); err != nil {
		return loan.NewLoan{}, &finance.TermsError{Field: "body", Reason: fmt.Sprintf("invalid loan JSON: %v", err)}
	}
	return f.FromJSON(lj)
}

// FromJSON converts LoanJSON to a validated NewLoan.
func (f *LoanFactory) FromJSON(lj LoanJSON) (loan.NewLoan, error) {
	terms, err := f.Terms(lj)
	if err != nil {
		return loan.NewLoan{}, err
	}
	return loan.NewLoan{
		ID:     strings.TrimSpace(lj.ID),
		Name:   strings.TrimSpace(lj.Name),
		Lender: strings.TrimSpace(lj.Lender),
		Terms:  terms,
	}, nil
}

// Terms extracts and validates the schedule terms of lj.
func (f *LoanFactory) Terms(lj LoanJSON) (schedule.Terms, error) {
	start, err := parseStartDate(lj.StartDate)
	if err != nil {
		return schedule.Terms{}, err
	}

	dayCount := strings.TrimSpace(lj.DayCountConvention)
	if dayCount == "" {
		dayCount = f.DayCount
	}

	terms := schedule.Terms{
		Principal:          lj.Principal,
		AnnualRatePercent:  lj.AnnualRatePercent,
		DayCountConvention: dayCount,
		StartDate:          start,
		TermMonths:         lj.TermMonths,
		LoanType:           parseLoanType(lj.LoanType),
		FeeSetup:           lj.FeeSetup,
		FeeMonthly:         lj.FeeMonthly,
		InsuranceMonthly:   lj.InsuranceMonthly,
		BalloonAmount:      lj.BalloonAmount,
	}
	if err := terms.Validate(); err != nil {
		return schedule.Terms{}, err
	}
	return terms, nil
}

// ToJSON converts a stored loan back to LoanJSON.
func (f *LoanFactory) ToJSON(l loan.Loan) LoanJSON {
	return LoanJSON{
		ID:                 l.ID,
		Name:               l.Name,
		Lender:             l.Lender,
		Principal:          l.Terms.Principal,
		AnnualRatePercent:  l.Terms.AnnualRatePercent,
		DayCountConvention: l.Terms.DayCountConvention,
		StartDate:          l.Terms.StartDate.String(),
		TermMonths:         l.Terms.TermMonths,
		LoanType:           string(l.Terms.LoanType),
		FeeSetup:           l.Terms.FeeSetup,
		FeeMonthly:         l.Terms.FeeMonthly,
		InsuranceMonthly:   l.Terms.InsuranceMonthly,
		BalloonAmount:      l.Terms.BalloonAmount,
	}
}

// =============================================================================
// SCENARIOS
// =============================================================================

// Overrides converts OverridesJSON. Validation happens when the overrides
// are simulated.
func (oj OverridesJSON) Overrides() simulation.Overrides {
	return simulation.Overrides{
		NewRate:             oj.NewRate,
		NewTerm:             oj.NewTerm,
		ExtraPaymentMonthly: oj.ExtraPaymentMonthly,
	}
}

// Scenarios converts scenario definitions, keeping their order.
func Scenarios(sjs []ScenarioJSON) []simulation.Scenario {
	out := make([]simulation.Scenario, 0, len(sjs))
	for _, sj := range sjs {
		out = append(out, simulation.Scenario{
			Name:      strings.TrimSpace(sj.Name),
			Overrides: sj.Overrides(),
		})
	}
	return out
}

// ParseScenarios parses a JSON array of scenarios.
func ParseScenarios(jsonStr string) ([]simulation.Scenario, error) {
	var sjs []ScenarioJSON
	if err := json.Unmarshal([]byte(jsonStr), &sjs); err != nil {
		return nil, &finance.ScenarioError{Reason: fmt.Sprintf("invalid scenarios JSON: %v", err)}
	}
	return Scenarios(sjs), nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseLoanType(s string) schedule.LoanType {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return schedule.Annuity
	}
	return schedule.LoanType(s)
}

func parseStartDate(s string) (finance.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return finance.Date{}, &finance.TermsError{Field: "start_date", Reason: "is required"}
	}
	d, err := finance.ParseDate(s)
	if err != nil {
		return finance.Date{}, &finance.TermsError{Field: "start_date", Reason: err.Error()}
	}
	return d, nil
}
