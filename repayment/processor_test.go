package repayment_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/repayment"
	"github.com/warp/loan-engine/schedule"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var start = finance.NewDate(2025, time.January, 15)

func loanTerms(loanType schedule.LoanType, principal string) schedule.Terms {
	return schedule.Terms{
		Principal:          finance.MustParseMoney(principal),
		AnnualRatePercent:  decimal.NewFromInt(6),
		DayCountConvention: "30/360",
		StartDate:          start,
		TermMonths:         12,
		LoanType:           loanType,
	}
}

func generate(t *testing.T, tm schedule.Terms) []schedule.Installment {
	t.Helper()
	rows, err := schedule.Generate(tm)
	require.NoError(t, err)
	return rows
}

func money(s string) finance.Money { return finance.MustParseMoney(s) }

// =============================================================================
// TERM REDUCTION (default)
// =============================================================================

func TestPreview_TermReduction_FiveThousandBalance(t *testing.T) {
	// GIVEN: 5,000.00 at 6% over 12 months, nothing due yet (B = 5,000.00)
	// WHEN: Repaying 2,000.00 early with the default policy
	// THEN: 3,000.00 remains, the 430.33 payment is kept, 8 installments remain

	tm := loanTerms(schedule.Annuity, "5000.00")
	rows := generate(t, tm)
	p := repayment.NewProcessor("")

	preview, err := p.Preview(tm, rows, money("2000.00"), finance.NewDate(2025, time.January, 20), "")
	require.NoError(t, err)

	assert.Equal(t, repayment.TermReduction, preview.Policy)
	assert.Equal(t, money("5000.00"), preview.BalanceBefore)
	assert.Equal(t, money("3000.00"), preview.NewRemainingPrincipal)
	assert.Equal(t, 12, preview.OriginalRemainingCount)
	assert.Equal(t, 8, preview.NewInstallmentCount)
	assert.Equal(t, money("430.33"), preview.NewPeriodicPayment)
	assert.Equal(t, money("163.98"), preview.OriginalRemainingInterest)
	assert.Equal(t, money("61.26"), preview.NewRemainingInterest)
	assert.Equal(t, money("102.72"), preview.SavedInterest)

	require.Len(t, preview.Tail, 8)
	assert.Equal(t, 1, preview.Tail[0].No)
	assert.Equal(t, finance.Zero, preview.Tail[7].BalanceAfter)
}

func TestPreview_DoesNotMutateSchedule(t *testing.T) {
	tm := loanTerms(schedule.Annuity, "5000.00")
	rows := generate(t, tm)
	before := schedule.Clone(rows)

	_, err := repayment.NewProcessor("").Preview(tm, rows, money("2000.00"), start, "")
	require.NoError(t, err)

	assert.Equal(t, before, rows)
}

// =============================================================================
// REDUCE PAYMENT
// =============================================================================

func TestPreview_ReducePayment_KeepsTerm(t *testing.T) {
	tm := loanTerms(schedule.Annuity, "5000.00")
	rows := generate(t, tm)

	preview, err := repayment.NewProcessor(repayment.ReducePayment).
		Preview(tm, rows, money("2000.00"), start, "")
	require.NoError(t, err)

	assert.Equal(t, repayment.ReducePayment, preview.Policy)
	assert.Equal(t, 12, preview.NewInstallmentCount)
	assert.Equal(t, money("258.20"), preview.NewPeriodicPayment)
	assert.Equal(t, money("98.37"), preview.NewRemainingInterest)
	assert.Equal(t, money("65.61"), preview.SavedInterest)
}

func TestPreview_RequestPolicyOverridesDefault(t *testing.T) {
	tm := loanTerms(schedule.Annuity, "5000.00")
	rows := generate(t, tm)

	preview, err := repayment.NewProcessor(repayment.TermReduction).
		Preview(tm, rows, money("2000.00"), start, repayment.ReducePayment)
	require.NoError(t, err)
	assert.Equal(t, 12, preview.NewInstallmentCount)
}

// =============================================================================
// SPLIT POINT AND SPLICE
// =============================================================================

func TestPreview_MidSchedule_SpliceIsContiguous(t *testing.T) {
	// GIVEN: 10,000.00 loan, five installments due by 2025-06-20
	// WHEN: Repaying 1,000.00 on 2025-06-20
	// THEN: The tail starts at installment 6 and the spliced schedule still pays off exactly

	tm := loanTerms(schedule.Annuity, "10000.00")
	rows := generate(t, tm)

	preview, err := repayment.NewProcessor("").Preview(tm, rows, money("1000.00"), finance.NewDate(2025, time.June, 20), "")
	require.NoError(t, err)

	assert.Equal(t, 5, preview.KeptCount)
	assert.Equal(t, rows[4].BalanceAfter, preview.BalanceBefore)
	assert.Equal(t, money("5905.96"), preview.BalanceBefore)
	assert.Equal(t, 7, preview.OriginalRemainingCount)
	assert.Less(t, preview.NewInstallmentCount, 7)

	full := repayment.Splice(rows, preview)
	for i, r := range full {
		assert.Equal(t, i+1, r.No)
		assert.Equal(t, start.AddMonths(i+1), r.DueDate)
	}
	assert.Equal(t, tm.Principal, schedule.Summarize(full).Principal.Add(money("1000.00")))
	assert.Equal(t, finance.Zero, full[len(full)-1].BalanceAfter)
	assert.Equal(t, rows[5].DueDate, preview.Tail[0].DueDate, "the tail stays on the original grid")
}

func TestPreview_PaidAheadInstallmentsAreKept(t *testing.T) {
	tm := loanTerms(schedule.Annuity, "10000.00")
	rows := generate(t, tm)
	rows[5].Status = schedule.StatusPaid
	rows[6].Status = schedule.StatusPaid

	preview, err := repayment.NewProcessor("").Preview(tm, rows, money("500.00"), finance.NewDate(2025, time.June, 20), "")
	require.NoError(t, err)

	assert.Equal(t, 7, preview.KeptCount)
	assert.Equal(t, rows[6].BalanceAfter, preview.BalanceBefore)
}

// =============================================================================
// OTHER METHODS
// =============================================================================

func TestPreview_FixedPrincipal_TermReduction(t *testing.T) {
	tm := loanTerms(schedule.FixedPrincipal, "10000.00")
	rows := generate(t, tm)

	preview, err := repayment.NewProcessor("").Preview(tm, rows, money("2000.00"), start, "")
	require.NoError(t, err)

	assert.Equal(t, 10, preview.NewInstallmentCount)
	assert.Equal(t, money("833.33"), preview.Tail[0].PrincipalDue)
	assert.Equal(t, money("500.03"), preview.Tail[9].PrincipalDue)
}

func TestPreview_InterestOnly_BalloonShrinks(t *testing.T) {
	tm := loanTerms(schedule.InterestOnly, "10000.00")
	rows := generate(t, tm)

	for _, policy := range []repayment.Policy{repayment.TermReduction, repayment.ReducePayment} {
		t.Run(string(policy), func(t *testing.T) {
			preview, err := repayment.NewProcessor(policy).Preview(tm, rows, money("2000.00"), start, "")
			require.NoError(t, err)

			assert.Equal(t, 12, preview.NewInstallmentCount)
			for _, r := range preview.Tail {
				assert.Equal(t, money("40.00"), r.InterestDue)
			}
			assert.Equal(t, money("8000.00"), preview.Tail[11].PrincipalDue)
			assert.Equal(t, money("120.00"), preview.SavedInterest)
		})
	}
}

// =============================================================================
// AMOUNT VALIDATION
// =============================================================================

func TestPreview_InvalidAmounts(t *testing.T) {
	tm := loanTerms(schedule.Annuity, "5000.00")
	rows := generate(t, tm)
	p := repayment.NewProcessor("")

	for _, amount := range []finance.Money{0, money("-1.00"), money("5000.01")} {
		t.Run(amount.String(), func(t *testing.T) {
			_, err := p.Preview(tm, rows, amount, start, "")
			assert.ErrorIs(t, err, finance.ErrInvalidRepaymentAmount)
		})
	}
}

func TestPreview_AfterFinalDueDate_NothingToRepay(t *testing.T) {
	tm := loanTerms(schedule.Annuity, "5000.00")
	rows := generate(t, tm)

	_, err := repayment.NewProcessor("").Preview(tm, rows, money("1.00"), finance.NewDate(2026, time.June, 1), "")

	var amountErr *finance.RepaymentAmountError
	require.ErrorAs(t, err, &amountErr)
	assert.Equal(t, finance.Zero, amountErr.Balance)
}

func TestPreview_EmptySchedule(t *testing.T) {
	_, err := repayment.NewProcessor("").Preview(loanTerms(schedule.Annuity, "5000.00"), nil, money("1.00"), start, "")
	assert.ErrorIs(t, err, finance.ErrScheduleNotFound)
}

func TestPreview_FullBalancePaysOff(t *testing.T) {
	tm := loanTerms(schedule.Annuity, "5000.00")
	rows := generate(t, tm)

	preview, err := repayment.NewProcessor("").Preview(tm, rows, money("5000.00"), start, "")
	require.NoError(t, err)

	assert.True(t, preview.PaysOff())
	assert.Equal(t, 0, preview.NewInstallmentCount)
	assert.Empty(t, preview.Tail)
	assert.Equal(t, money("163.98"), preview.SavedInterest)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestPreview_Monotonicity(t *testing.T) {
	amounts := []string{"0.01", "0.10", "0.99", "100.00", "2500.00", "9000.00"}
	for _, lt := range schedule.Types() {
		for _, term := range []int{12, 48} {
			tm := loanTerms(lt, "10000.00")
			tm.TermMonths = term
			rows := generate(t, tm)
			for _, policy := range []repayment.Policy{repayment.TermReduction, repayment.ReducePayment} {
				for _, a := range amounts {
					for _, months := range []int{0, 3, 9} {
						date := start.AddMonths(months)
						name := fmt.Sprintf("%s/%d/%s/%s/%d", lt, term, policy, a, months)
						t.Run(name, func(t *testing.T) {
							preview, err := repayment.NewProcessor(policy).Preview(tm, rows, money(a), date, "")
							if err != nil {
								assert.ErrorIs(t, err, finance.ErrInvalidRepaymentAmount)
								return
							}
							assert.True(t, preview.NewRemainingPrincipal.LessThan(preview.BalanceBefore))
							assert.False(t, preview.SavedInterest.IsNegative(), "saved %s", preview.SavedInterest)
							assert.LessOrEqual(t, preview.NewInstallmentCount, preview.OriginalRemainingCount)
							assert.Equal(t, preview.NewRemainingPrincipal, schedule.Summarize(preview.Tail).Principal)
						})
					}
				}
			}
		}
	}
}

func TestPreview_FixedPrincipal_ReducePaymentNeverRaisesBalances(t *testing.T) {
	// GIVEN: 10,000.00 fixed principal over 48 months
	// WHEN: Repaying a few cents with reduce_payment
	// THEN: Every new balance is at or below the old one and no interest is added

	tm := loanTerms(schedule.FixedPrincipal, "10000.00")
	tm.TermMonths = 48
	rows := generate(t, tm)

	for _, a := range []string{"0.01", "0.10", "0.47", "0.99"} {
		t.Run(a, func(t *testing.T) {
			preview, err := repayment.NewProcessor(repayment.ReducePayment).Preview(tm, rows, money(a), start, "")
			require.NoError(t, err)

			require.Len(t, preview.Tail, 48)
			for i, r := range preview.Tail {
				assert.LessOrEqual(t, r.BalanceAfter.Cents(), rows[i].BalanceAfter.Cents(), "installment %d", r.No)
			}
			assert.False(t, preview.SavedInterest.IsNegative())
			assert.Equal(t, finance.Zero, preview.Tail[47].BalanceAfter)
		})
	}
}

func TestPreview_FixedPrincipal_ReducePaymentLevel(t *testing.T) {
	tm := loanTerms(schedule.FixedPrincipal, "10000.00")
	rows := generate(t, tm)

	preview, err := repayment.NewProcessor(repayment.ReducePayment).Preview(tm, rows, money("2000.00"), start, "")
	require.NoError(t, err)

	// 833.33 less 2000.00 / 12 = 166.66 (rounded down)
	assert.Equal(t, 12, preview.NewInstallmentCount)
	assert.Equal(t, money("666.67"), preview.Tail[0].PrincipalDue)
	assert.Equal(t, money("666.63"), preview.Tail[11].PrincipalDue)
	assert.Equal(t, money("8000.00"), schedule.Summarize(preview.Tail).Principal)
}

// =============================================================================
// PAYMENT DATE
// =============================================================================

func TestPreview_BeforeStartDateRejected(t *testing.T) {
	tm := loanTerms(schedule.Annuity, "5000.00")
	rows := generate(t, tm)

	_, err := repayment.NewProcessor("").Preview(tm, rows, money("100.00"), finance.NewDate(2025, time.January, 14), "")

	var dateErr *finance.PaymentDateError
	require.ErrorAs(t, err, &dateErr)
	assert.Equal(t, start, dateErr.Earliest)
	assert.True(t, finance.IsClientError(err))
}

func TestKeptCount(t *testing.T) {
	tm := loanTerms(schedule.Annuity, "5000.00")
	rows := generate(t, tm)

	assert.Equal(t, 0, repayment.KeptCount(rows, start))
	assert.Equal(t, 1, repayment.KeptCount(rows, start.AddMonths(1)))
	assert.Equal(t, 5, repayment.KeptCount(rows, finance.NewDate(2025, time.June, 20)))
	assert.Equal(t, 12, repayment.KeptCount(rows, finance.NewDate(2026, time.June, 1)))
}

func TestParsePolicy(t *testing.T) {
	p, err := repayment.ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, repayment.TermReduction, p)

	p, err = repayment.ParsePolicy(" Reduce_Payment ")
	require.NoError(t, err)
	assert.Equal(t, repayment.ReducePayment, p)

	_, err = repayment.ParsePolicy("skip_installment")
	assert.Error(t, err)
}
