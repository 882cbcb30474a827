package lifecycle_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/lifecycle"
	"github.com/warp/loan-engine/schedule"
)

func sampleSchedule(t *testing.T) (schedule.Terms, []schedule.Installment) {
	t.Helper()
	tm := schedule.Terms{
		Principal:          finance.MustParseMoney("10000.00"),
		AnnualRatePercent:  decimal.NewFromInt(6),
		DayCountConvention: "30/360",
		StartDate:          finance.NewDate(2025, time.January, 15),
		TermMonths:         12,
		LoanType:           schedule.Annuity,
	}
	rows, err := schedule.Generate(tm)
	require.NoError(t, err)
	return tm, rows
}

func TestClassify(t *testing.T) {
	due := finance.NewDate(2025, time.March, 15)
	inst := schedule.Installment{No: 2, DueDate: due, Status: schedule.StatusPending}

	tests := []struct {
		name   string
		status schedule.Status
		today  finance.Date
		want   schedule.Status
	}{
		{"before due date", schedule.StatusPending, due.AddMonths(-1), schedule.StatusPending},
		{"on due date", schedule.StatusPending, due, schedule.StatusPending},
		{"day after due date", schedule.StatusPending, finance.NewDate(2025, time.March, 16), schedule.StatusOverdue},
		{"paid late is never overdue", schedule.StatusPaid, due.AddMonths(3), schedule.StatusPaid},
		{"stale overdue becomes pending again", schedule.StatusOverdue, due.AddMonths(-1), schedule.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst.Status = tt.status
			assert.Equal(t, tt.want, lifecycle.Classify(inst, tt.today))
		})
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	_, rows := sampleSchedule(t)
	today := finance.NewDate(2025, time.June, 1)

	derived := lifecycle.Apply(rows, today)

	assert.Equal(t, schedule.StatusPending, rows[0].Status)
	assert.Equal(t, schedule.StatusOverdue, derived[0].Status)
	assert.Equal(t, schedule.StatusPending, derived[4].Status, "due 2025-06-15")
}

func TestSummarize_NothingPaid(t *testing.T) {
	tm, rows := sampleSchedule(t)
	today := finance.NewDate(2025, time.January, 20)

	s := lifecycle.Summarize(tm.Principal, rows, nil, today)

	assert.Equal(t, tm.Principal, s.CurrentBalance)
	assert.Equal(t, finance.Zero, s.PaidPrincipal)
	assert.Equal(t, finance.Zero, s.PaidAmount)
	assert.Equal(t, finance.MustParseMoney("327.96"), s.TotalInterest)
	require.NotNil(t, s.NextInstallment)
	assert.Equal(t, 1, s.NextInstallment.No)
	assert.Equal(t, 0, s.OverdueCount)
	assert.Equal(t, 12, s.RemainingCount)
}

func TestSummarize_SomePaidSomeOverdue(t *testing.T) {
	// GIVEN: Installments 1-3 paid, 4 and 5 past due
	// WHEN: Summarizing on 2025-07-01
	// THEN: Balance is after installment 3, two overdue, next is installment 4
	tm, rows := sampleSchedule(t)
	for i := 0; i < 3; i++ {
		rows[i].Status = schedule.StatusPaid
	}
	today := finance.NewDate(2025, time.July, 1)

	s := lifecycle.Summarize(tm.Principal, rows, nil, today)

	assert.Equal(t, rows[2].BalanceAfter, s.CurrentBalance)
	assert.Equal(t, tm.Principal.Sub(rows[2].BalanceAfter), s.PaidPrincipal)
	assert.Equal(t, finance.MustParseMoney("2581.98"), s.PaidAmount)
	assert.Equal(t, 2, s.OverdueCount)
	assert.Equal(t, 3, s.PaidCount)
	assert.Equal(t, 9, s.RemainingCount)
	require.NotNil(t, s.NextInstallment)
	assert.Equal(t, 4, s.NextInstallment.No)
	assert.Equal(t, schedule.StatusOverdue, s.NextInstallment.Status)
}

func TestSummarize_PrepaymentAfterLastPaid(t *testing.T) {
	tm, rows := sampleSchedule(t)
	rows[0].Status = schedule.StatusPaid
	prepaid := []schedule.Prepayment{{
		Amount:           finance.MustParseMoney("1000.00"),
		PaymentDate:      finance.NewDate(2025, time.February, 20),
		AfterInstallment: 1,
	}}

	s := lifecycle.Summarize(tm.Principal, rows, prepaid, finance.NewDate(2025, time.February, 20))

	assert.Equal(t, finance.MustParseMoney("8189.34"), s.CurrentBalance)
	assert.Equal(t, finance.MustParseMoney("1810.66"), s.PaidPrincipal)
	assert.Equal(t, finance.MustParseMoney("1860.66"), s.PaidAmount)

	// Once a later installment is paid its balance already reflects the prepayment.
	rows[1].Status = schedule.StatusPaid
	s = lifecycle.Summarize(tm.Principal, rows, prepaid, finance.NewDate(2025, time.March, 20))
	assert.Equal(t, rows[1].BalanceAfter, s.CurrentBalance)
}

func TestSummarize_AllPaid(t *testing.T) {
	tm, rows := sampleSchedule(t)
	for i := range rows {
		rows[i].Status = schedule.StatusPaid
	}

	s := lifecycle.Summarize(tm.Principal, rows, nil, finance.NewDate(2030, time.January, 1))

	assert.Equal(t, finance.Zero, s.CurrentBalance)
	assert.Equal(t, tm.Principal, s.PaidPrincipal)
	assert.Nil(t, s.NextInstallment)
	assert.Equal(t, 0, s.RemainingCount)
}

func TestOverdue(t *testing.T) {
	_, rows := sampleSchedule(t)
	rows[0].Status = schedule.StatusPaid

	overdue := lifecycle.Overdue(rows, finance.NewDate(2025, time.May, 1))

	require.Len(t, overdue, 2, "installments 2 and 3 are due 2025-03-15 and 2025-04-15")
	assert.Equal(t, 2, overdue[0].No)
	assert.Equal(t, schedule.StatusOverdue, overdue[1].Status)
}
