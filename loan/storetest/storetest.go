// Package storetest holds the behaviour every loan.Store must share. Each
// implementation runs Run from its own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/repayment"
	"github.com/warp/loan-engine/schedule"
)

// Run exercises a fresh store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) loan.Store) {
	t.Run("CreateAndRead", func(t *testing.T) { testCreateAndRead(t, newStore(t)) })
	t.Run("UnknownLoan", func(t *testing.T) { testUnknownLoan(t, newStore(t)) })
	t.Run("ReplaceTail", func(t *testing.T) { testReplaceTail(t, newStore(t)) })
	t.Run("ReplaceTailStaleRevision", func(t *testing.T) { testReplaceTailStale(t, newStore(t)) })
	t.Run("SequentialReplaceTail", func(t *testing.T) { testSequentialReplaceTail(t, newStore(t)) })
	t.Run("MarkPaid", func(t *testing.T) { testMarkPaid(t, newStore(t)) })
	t.Run("MarkOverdue", func(t *testing.T) { testMarkOverdue(t, newStore(t)) })
	t.Run("Reset", func(t *testing.T) { testReset(t, newStore(t)) })
}

// Fixture returns a stored-ready loan and its schedule.
func Fixture(t *testing.T, id string) (loan.Loan, []schedule.Installment) {
	t.Helper()
	terms := schedule.Terms{
		Principal:          finance.MustParseMoney("10000.00"),
		AnnualRatePercent:  decimal.RequireFromString("6.5"),
		DayCountConvention: "30/360",
		StartDate:          finance.NewDate(2025, time.January, 31),
		TermMonths:         12,
		LoanType:           schedule.Annuity,
		FeeMonthly:         finance.MustParseMoney("2.50"),
	}
	rows, err := schedule.Generate(terms)
	require.NoError(t, err)
	for i := range rows {
		rows[i].LoanID = id
	}
	now := time.Date(2025, time.January, 31, 12, 0, 0, 0, time.UTC)
	return loan.Loan{
		ID:        id,
		Name:      "Loan " + id,
		Lender:    "Bank",
		Terms:     terms,
		Status:    loan.StatusActive,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}, rows
}

func testCreateAndRead(t *testing.T, s loan.Store) {
	ctx := context.Background()
	l, rows := Fixture(t, "loan-1")
	require.NoError(t, s.CreateLoan(ctx, l, rows))
	other, otherRows := Fixture(t, "loan-2")
	require.NoError(t, s.CreateLoan(ctx, other, otherRows))

	got, err := s.GetLoan(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
	assert.Equal(t, l.Name, got.Name)
	assert.Equal(t, l.Terms.Principal, got.Terms.Principal)
	assert.True(t, l.Terms.AnnualRatePercent.Equal(got.Terms.AnnualRatePercent))
	assert.Equal(t, l.Terms.StartDate, got.Terms.StartDate)
	assert.Equal(t, l.Terms.FeeMonthly, got.Terms.FeeMonthly)
	assert.Nil(t, got.Terms.BalloonAmount)
	assert.Equal(t, int64(1), got.Revision)

	stored, err := s.GetSchedule(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, rows, stored)

	all, err := s.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "loan-1", all[0].ID)

	assert.Error(t, s.CreateLoan(ctx, l, rows), "duplicate id")
}

func testUnknownLoan(t *testing.T, s loan.Store) {
	ctx := context.Background()

	_, err := s.GetLoan(ctx, "missing")
	assert.ErrorIs(t, err, finance.ErrLoanNotFound)
	_, err = s.GetSchedule(ctx, "missing")
	assert.ErrorIs(t, err, finance.ErrLoanNotFound)
	_, err = s.MarkPaid(ctx, loan.PaymentUpdate{LoanID: "missing", ExpectedRevision: 1, No: 1})
	assert.ErrorIs(t, err, finance.ErrLoanNotFound)
}

func testReplaceTail(t *testing.T, s loan.Store) {
	ctx := context.Background()
	l, rows := Fixture(t, "loan-1")
	require.NoError(t, s.CreateLoan(ctx, l, rows))

	preview, err := repayment.NewProcessor("").Preview(l.Terms, rows, finance.MustParseMoney("3000.00"),
		finance.NewDate(2025, time.April, 30), "")
	require.NoError(t, err)
	tail := schedule.Clone(preview.Tail)
	for i := range tail {
		tail[i].LoanID = l.ID
	}
	rec := loan.Repayment{
		ID:                  "rep-1",
		LoanID:              l.ID,
		Amount:              preview.Amount,
		PaymentDate:         preview.PaymentDate,
		Policy:              preview.Policy,
		AfterInstallment:    preview.KeptCount,
		BalanceBefore:       preview.BalanceBefore,
		SavedInterest:       preview.SavedInterest,
		NewInstallmentCount: preview.NewInstallmentCount,
		Revision:            2,
		CreatedAt:           time.Date(2025, time.April, 30, 9, 0, 0, 0, time.UTC),
	}

	rev, err := s.ReplaceTail(ctx, loan.TailReplacement{
		LoanID:           l.ID,
		ExpectedRevision: 1,
		KeepCount:        preview.KeptCount,
		Tail:             tail,
		Repayment:        rec,
		Status:           loan.StatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	stored, err := s.GetSchedule(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, preview.KeptCount+len(tail), len(stored))
	assert.Equal(t, rows[:preview.KeptCount], stored[:preview.KeptCount])
	assert.Equal(t, tail, stored[preview.KeptCount:])

	reps, err := s.ListRepayments(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, reps, 1)
	assert.Equal(t, rec.Amount, reps[0].Amount)
	assert.Equal(t, rec.Policy, reps[0].Policy)
	assert.Equal(t, rec.AfterInstallment, reps[0].AfterInstallment)
	assert.Equal(t, rec.PaymentDate, reps[0].PaymentDate)

	got, err := s.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Revision)
}

func testReplaceTailStale(t *testing.T, s loan.Store) {
	ctx := context.Background()
	l, rows := Fixture(t, "loan-1")
	require.NoError(t, s.CreateLoan(ctx, l, rows))

	_, err := s.ReplaceTail(ctx, loan.TailReplacement{
		LoanID:           l.ID,
		ExpectedRevision: 5,
		KeepCount:        0,
		Tail:             nil,
		Repayment:        loan.Repayment{ID: "rep-1", LoanID: l.ID},
		Status:           loan.StatusPaidOff,
	})
	var conflict *finance.RevisionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(5), conflict.Expected)
	assert.Equal(t, int64(1), conflict.Actual)

	stored, err := s.GetSchedule(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 12, "nothing changed")
	reps, err := s.ListRepayments(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, reps)
}

func testSequentialReplaceTail(t *testing.T, s loan.Store) {
	ctx := context.Background()
	l, rows := Fixture(t, "loan-1")
	require.NoError(t, s.CreateLoan(ctx, l, rows))

	confirm := func(id, amount string, date finance.Date, expected int64) *repayment.Preview {
		t.Helper()
		current, err := s.GetSchedule(ctx, l.ID)
		require.NoError(t, err)
		preview, err := repayment.NewProcessor("").Preview(l.Terms, current, finance.MustParseMoney(amount), date, "")
		require.NoError(t, err)
		tail := schedule.Clone(preview.Tail)
		for i := range tail {
			tail[i].LoanID = l.ID
		}
		_, err = s.ReplaceTail(ctx, loan.TailReplacement{
			LoanID:           l.ID,
			ExpectedRevision: expected,
			KeepCount:        preview.KeptCount,
			Tail:             tail,
			Repayment: loan.Repayment{
				ID:               id,
				LoanID:           l.ID,
				Amount:           preview.Amount,
				PaymentDate:      date,
				Policy:           preview.Policy,
				AfterInstallment: preview.KeptCount,
				BalanceBefore:    preview.BalanceBefore,
				SavedInterest:    preview.SavedInterest,
				Revision:         expected + 1,
				CreatedAt:        time.Date(date.Year(), date.Month(), date.Day(), 9, 0, 0, 0, time.UTC),
			},
			Status: loan.StatusActive,
		})
		require.NoError(t, err)
		return preview
	}

	first := confirm("rep-1", "3000.00", finance.NewDate(2025, time.April, 30), 1)
	second := confirm("rep-2", "1000.00", finance.NewDate(2025, time.August, 31), 2)
	require.Greater(t, second.KeptCount, first.KeptCount)

	stored, err := s.GetSchedule(ctx, l.ID)
	require.NoError(t, err)
	for i, r := range stored {
		assert.Equal(t, i+1, r.No)
	}
	assert.Equal(t, finance.MustParseMoney("6000.00"), schedule.Summarize(stored).Principal)
	assert.Equal(t, finance.Zero, stored[len(stored)-1].BalanceAfter)
	assert.Equal(t, second.BalanceBefore, stored[second.KeptCount-1].BalanceAfter)

	reps, err := s.ListRepayments(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, reps, 2)
	assert.Equal(t, "rep-1", reps[0].ID)
	assert.Equal(t, "rep-2", reps[1].ID)

	got, err := s.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Revision)
}

func testMarkPaid(t *testing.T, s loan.Store) {
	ctx := context.Background()
	l, rows := Fixture(t, "loan-1")
	require.NoError(t, s.CreateLoan(ctx, l, rows))
	paidOn := finance.NewDate(2025, time.February, 27)

	rev, err := s.MarkPaid(ctx, loan.PaymentUpdate{LoanID: l.ID, ExpectedRevision: 1, No: 1, PaidOn: paidOn, Status: loan.StatusActive})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	stored, err := s.GetSchedule(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusPaid, stored[0].Status)
	assert.Equal(t, paidOn, stored[0].PaidOn)
	assert.Equal(t, schedule.StatusPending, stored[1].Status)

	_, err = s.MarkPaid(ctx, loan.PaymentUpdate{LoanID: l.ID, ExpectedRevision: 1, No: 2, PaidOn: paidOn})
	assert.ErrorIs(t, err, finance.ErrConcurrentModification)

	_, err = s.MarkPaid(ctx, loan.PaymentUpdate{LoanID: l.ID, ExpectedRevision: 2, No: 99, PaidOn: paidOn})
	assert.ErrorIs(t, err, finance.ErrInstallmentNotFound)
	got, err := s.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Revision)
}

func testMarkOverdue(t *testing.T, s loan.Store) {
	ctx := context.Background()
	l, rows := Fixture(t, "loan-1")
	require.NoError(t, s.CreateLoan(ctx, l, rows))
	_, err := s.MarkPaid(ctx, loan.PaymentUpdate{LoanID: l.ID, ExpectedRevision: 1, No: 1,
		PaidOn: finance.NewDate(2025, time.February, 28), Status: loan.StatusActive})
	require.NoError(t, err)

	// Due dates: 02-28, 03-31, 04-30, ...
	marked, err := s.MarkOverdue(ctx, finance.NewDate(2025, time.May, 1))
	require.NoError(t, err)
	require.Len(t, marked, 2)
	assert.Equal(t, 2, marked[0].No)
	assert.Equal(t, l.ID, marked[0].LoanID)
	assert.Equal(t, schedule.StatusOverdue, marked[1].Status)

	marked, err = s.MarkOverdue(ctx, finance.NewDate(2025, time.May, 1))
	require.NoError(t, err)
	assert.Empty(t, marked)

	got, err := s.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Revision)
}

func testReset(t *testing.T, s loan.Store) {
	ctx := context.Background()
	l, rows := Fixture(t, "loan-1")
	require.NoError(t, s.CreateLoan(ctx, l, rows))

	require.NoError(t, s.Reset(ctx))

	all, err := s.ListLoans(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
