package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/factory"
	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/schedule"
)

func TestParseLoan_Defaults(t *testing.T) {
	// GIVEN: A loan with only the required fields
	// WHEN: It is parsed by a factory configured for 30E/360
	// THEN: Loan type and day count get their defaults

	f := factory.NewLoanFactory("30E/360")
	in, err := f.ParseLoan(`{
		"name": " Sofa ",
		"principal": 1200,
		"annual_rate_percent": "7.9",
		"start_date": "2025-03-01",
		"term_months": 12
	}`)
	require.NoError(t, err)

	assert.Equal(t, "Sofa", in.Name)
	assert.Empty(t, in.ID)
	assert.Equal(t, finance.MustParseMoney("1200.00"), in.Terms.Principal)
	assert.True(t, decimal.RequireFromString("7.9").Equal(in.Terms.AnnualRatePercent))
	assert.Equal(t, "30E/360", in.Terms.DayCountConvention)
	assert.Equal(t, schedule.Annuity, in.Terms.LoanType)
	assert.Equal(t, finance.MustParseDate("2025-03-01"), in.Terms.StartDate)
	assert.Nil(t, in.Terms.BalloonAmount)
}

func TestNewLoanFactory_EmptyDayCount(t *testing.T) {
	f := factory.NewLoanFactory("")
	assert.Equal(t, finance.DefaultDayCount, f.DayCount)
}

func TestParseLoan_InvalidFields(t *testing.T) {
	f := factory.NewLoanFactory("")
	tests := []struct {
		name  string
		json  string
		field string
	}{
		{"malformed", `{"principal":`, "body"},
		{"missing start", `{"principal": "100.00", "annual_rate_percent": 5, "term_months": 12}`, "start_date"},
		{"bad start", `{"principal": "100.00", "annual_rate_percent": 5, "term_months": 12, "start_date": "01/02/2025"}`, "start_date"},
		{"zero principal", `{"principal": "0", "annual_rate_percent": 5, "term_months": 12, "start_date": "2025-01-01"}`, "principal"},
		{"zero term", `{"principal": "100.00", "annual_rate_percent": 5, "term_months": 0, "start_date": "2025-01-01"}`, "term_months"},
		{"unknown type", `{"principal": "100.00", "annual_rate_percent": 5, "term_months": 12, "start_date": "2025-01-01", "loan_type": "bullet"}`, "loan_type"},
		{"balloon on annuity", `{"principal": "100.00", "annual_rate_percent": 5, "term_months": 12, "start_date": "2025-01-01", "balloon_amount": "50.00"}`, "balloon_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseLoan(tt.json)
			require.ErrorIs(t, err, finance.ErrInvalidLoanTerms)

			var te *finance.TermsError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.field, te.Field)
		})
	}
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := factory.NewLoanFactory("")
	in, err := f.ParseLoan(factory.BridgeLoanJSON("bridge", "Bridge", "50000.00", "5.25", "20000.00", "2025-01-10", 18))
	require.NoError(t, err)

	back := f.ToJSON(loan.Loan{ID: "bridge", Name: in.Name, Terms: in.Terms})
	again, err := f.FromJSON(back)
	require.NoError(t, err)

	assert.Equal(t, in.Terms.Principal, again.Terms.Principal)
	assert.Equal(t, *in.Terms.BalloonAmount, *again.Terms.BalloonAmount)
	assert.Equal(t, in.Terms.StartDate, again.Terms.StartDate)
	assert.Equal(t, schedule.InterestOnly, again.Terms.LoanType)
}

func TestPresets_AreValid(t *testing.T) {
	f := factory.NewLoanFactory("")
	presets := map[string]string{
		"mortgage": factory.MortgageJSON("m", "Home", "180000.00", "3.45", "2024-03-15", 300),
		"car":      factory.CarLoanJSON("c", "Car", "18000.00", "6.9", "2025-02-01", 60),
		"consumer": factory.ConsumerLoanJSON("k", "Kitchen", "8000.00", "8.5", "2025-04-20", 36, "150.00", "2.00", "4.50"),
		"bridge":   factory.BridgeLoanJSON("b", "Bridge", "50000.00", "5.25", "", "2025-01-10", 18),
	}
	for name, js := range presets {
		t.Run(name, func(t *testing.T) {
			in, err := f.ParseLoan(js)
			require.NoError(t, err)

			rows, err := schedule.Generate(in.Terms)
			require.NoError(t, err)
			assert.Len(t, rows, in.Terms.TermMonths)
			assert.True(t, rows[len(rows)-1].BalanceAfter.IsZero())
		})
	}
}

func TestParseScenarios(t *testing.T) {
	scenarios, err := factory.ParseScenarios(`[
		{"name": "extra", "extra_payment_monthly": "200.00"},
		{"name": " refinance ", "new_rate": "4.8", "new_term": 24}
	]`)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	assert.Equal(t, "extra", scenarios[0].Name)
	assert.Equal(t, finance.MustParseMoney("200.00"), scenarios[0].Overrides.ExtraPaymentMonthly)
	assert.Nil(t, scenarios[0].Overrides.NewRate)

	assert.Equal(t, "refinance", scenarios[1].Name)
	require.NotNil(t, scenarios[1].Overrides.NewTerm)
	assert.Equal(t, 24, *scenarios[1].Overrides.NewTerm)
	assert.True(t, decimal.RequireFromString("4.8").Equal(*scenarios[1].Overrides.NewRate))

	_, err = factory.ParseScenarios(`{"name": "not a list"}`)
	assert.ErrorIs(t, err, finance.ErrInvalidScenario)
}
