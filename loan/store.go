package loan

import (
	"context"

	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/schedule"
)

// Store persists loans, their schedules and their repayments.
//
// Writes that change amounts are compare-and-swap on the loan revision:
// when the stored revision differs from ExpectedRevision they fail with a
// *finance.RevisionConflictError and change nothing. On success the
// revision becomes ExpectedRevision+1 and is returned.
//
// Implementations:
//   - loan/store: in-memory
//   - store/sqlite: SQLite
type Store interface {
	// CreateLoan stores a new loan with its full schedule.
	CreateLoan(ctx context.Context, l Loan, rows []schedule.Installment) error

	// GetLoan returns finance.ErrLoanNotFound for an unknown id.
	GetLoan(ctx context.Context, id string) (*Loan, error)

	// ListLoans returns every loan ordered by creation.
	ListLoans(ctx context.Context) ([]Loan, error)

	// GetSchedule returns the installments ordered by number.
	GetSchedule(ctx context.Context, loanID string) ([]schedule.Installment, error)

	// ListRepayments returns confirmed repayments in confirmation order.
	ListRepayments(ctx context.Context, loanID string) ([]Repayment, error)

	// ReplaceTail deletes every installment after KeepCount, inserts Tail
	// and records the repayment, atomically.
	ReplaceTail(ctx context.Context, r TailReplacement) (int64, error)

	// MarkPaid records the payment of one installment.
	MarkPaid(ctx context.Context, u PaymentUpdate) (int64, error)

	// MarkOverdue stores status overdue on pending installments due before
	// today and returns them. Revisions are left alone.
	MarkOverdue(ctx context.Context, today finance.Date) ([]schedule.Installment, error)

	// Reset removes everything.
	Reset(ctx context.Context) error
}

// TailReplacement is the write of a confirmed early repayment.
type TailReplacement struct {
	LoanID           string
	ExpectedRevision int64
	KeepCount        int
	Tail             []schedule.Installment
	Repayment        Repayment
	Status           Status
}

// PaymentUpdate is the write of a recorded payment.
type PaymentUpdate struct {
	LoanID           string
	ExpectedRevision int64
	No               int
	PaidOn           finance.Date
	Status           Status
}
