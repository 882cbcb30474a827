package finance_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/finance"
)

// =============================================================================
// MONEY
// =============================================================================

func TestFromDecimal_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want finance.Money
	}{
		{"0.005", 1},
		{"0.004", 0},
		{"1.005", 101},
		{"50.00", 5000},
		{"45.83335", 4583},
		{"-0.005", -1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, finance.FromDecimal(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestParseMoney(t *testing.T) {
	m, err := finance.ParseMoney("1234.5")
	require.NoError(t, err)
	assert.Equal(t, finance.Cents(123450), m)
	assert.Equal(t, "1234.50", m.String())

	_, err = finance.ParseMoney("1.234")
	assert.Error(t, err, "three fraction digits are not money")

	_, err = finance.ParseMoney("abc")
	assert.Error(t, err)

	m, err = finance.ParseMoney("10.100")
	require.NoError(t, err, "trailing zeros are still whole cents")
	assert.Equal(t, finance.Cents(1010), m)
}

func TestMoney_Arithmetic(t *testing.T) {
	a := finance.MustParseMoney("10000.00")
	assert.Equal(t, "833.33", a.DivInt(12).String())
	assert.Equal(t, "50.00", a.MulRate(decimal.RequireFromString("0.005")).String())
	assert.Equal(t, "9950.00", a.Sub(finance.MustParseMoney("50")).String())
	assert.Equal(t, "-0.01", finance.Cents(-1).String())
	assert.Equal(t, finance.Cents(6), finance.Sum(1, 2, 3))
}

func TestMoney_JSON(t *testing.T) {
	type payload struct {
		Amount finance.Money `json:"amount"`
	}

	out, err := json.Marshal(payload{Amount: finance.Cents(123450)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": 1234.50}`, string(out))
	assert.Contains(t, string(out), "1234.50", "always two fraction digits on the wire")

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 12.3}`), &p))
	assert.Equal(t, finance.Cents(1230), p.Amount)

	require.NoError(t, json.Unmarshal([]byte(`{"amount": "99.99"}`), &p))
	assert.Equal(t, finance.Cents(9999), p.Amount)

	assert.Error(t, json.Unmarshal([]byte(`{"amount": 0.001}`), &p))
}

// =============================================================================
// RATES
// =============================================================================

func TestMonthlyRate_Thirty360(t *testing.T) {
	r, err := finance.MonthlyRate(decimal.NewFromInt(6), "30/360")
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.RequireFromString("0.005")), "got %s", r)

	r, err = finance.MonthlyRate(decimal.NewFromInt(6), "")
	require.NoError(t, err, "empty convention falls back to 30/360")
	assert.True(t, r.Equal(decimal.RequireFromString("0.005")))

	r, err = finance.MonthlyRate(decimal.NewFromInt(5), "30E/360")
	require.NoError(t, err)
	assert.Equal(t, "0.0041666666666667", r.Round(16).String())
}

func TestMonthlyRate_UnsupportedConvention(t *testing.T) {
	_, err := finance.MonthlyRate(decimal.NewFromInt(6), "ACT/ACT")
	assert.ErrorIs(t, err, finance.ErrInvalidLoanTerms)

	var termsErr *finance.TermsError
	require.ErrorAs(t, err, &termsErr)
	assert.Equal(t, "day_count_convention", termsErr.Field)
}

func TestCompound(t *testing.T) {
	f := finance.Compound(decimal.RequireFromString("0.005"), 12)
	assert.Equal(t, "1.0616778119", f.Round(10).String())
	assert.True(t, finance.Compound(decimal.Zero, 360).Equal(decimal.NewFromInt(1)))
	assert.True(t, finance.Compound(decimal.RequireFromString("0.01"), 0).Equal(decimal.NewFromInt(1)))
}

func TestDayCountNames(t *testing.T) {
	assert.Subset(t, finance.DayCountNames(), []string{"30/360", "30E/360", "30U/360"})
}

// =============================================================================
// DATES
// =============================================================================

func TestDate_AddMonths_ClampsToMonthEnd(t *testing.T) {
	start := finance.NewDate(2025, time.January, 31)

	assert.Equal(t, "2025-02-28", start.AddMonths(1).String())
	assert.Equal(t, "2025-03-31", start.AddMonths(2).String())
	assert.Equal(t, "2025-04-30", start.AddMonths(3).String())
	assert.Equal(t, "2028-02-29", start.AddMonths(37).String(), "leap year")
	assert.Equal(t, "2024-12-31", start.AddMonths(-1).String())
}

func TestDate_ParseAndJSON(t *testing.T) {
	d, err := finance.ParseDate("2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, finance.NewDate(2026, time.March, 15), d)

	_, err = finance.ParseDate("15/03/2026")
	assert.Error(t, err)

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-15"`, string(out))

	var back finance.Date
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, back.Equal(d))

	assert.True(t, d.Before(d.AddMonths(1)))
	assert.True(t, d.BeforeOrEqual(d))
	assert.True(t, finance.DateOf(time.Date(2026, 3, 15, 23, 59, 0, 0, time.UTC)).Equal(d))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrorHelpers(t *testing.T) {
	assert.True(t, finance.IsClientError(&finance.TermsError{Field: "principal", Reason: "must be positive"}))
	assert.True(t, finance.IsClientError(&finance.RepaymentAmountError{Amount: 0}))
	assert.True(t, finance.IsNotFound(finance.ErrScheduleNotFound))
	assert.True(t, finance.IsRetryable(&finance.RevisionConflictError{LoanID: "l", Expected: 1, Actual: 2}))
	assert.False(t, finance.IsRetryable(finance.ErrLoanNotFound))

	err := &finance.RepaymentAmountError{Amount: finance.Cents(600000), Balance: finance.Cents(500000)}
	assert.Equal(t, "invalid repayment amount: 6000.00 exceeds remaining balance 5000.00", err.Error())

	dateErr := &finance.PaymentDateError{
		Date:     finance.NewDate(2025, time.January, 10),
		Earliest: finance.NewDate(2025, time.January, 15),
		Reason:   "before the loan start date",
	}
	assert.True(t, finance.IsClientError(dateErr))
	assert.ErrorIs(t, dateErr, finance.ErrInvalidPaymentDate)
	assert.Equal(t, "invalid payment date 2025-01-10: before the loan start date (earliest 2025-01-15)", dateErr.Error())
}
