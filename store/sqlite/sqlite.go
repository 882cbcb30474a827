/*
Package sqlite provides a SQLite-backed implementation of loan.Store.

PURPOSE:
  Persists loans, their installment schedules and confirmed early
  repayments. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  loans:         Terms (flattened), status and revision
  installments:  One row per period, keyed by (loan_id, installment_no)
  repayments:    Confirmed early repayments, in confirmation order

STORAGE FORMATS:
  - Money:  INTEGER cents
  - Dates:  TEXT "YYYY-MM-DD"; NULL for an unset paid_on
  - Rate:   TEXT decimal, exactly as entered
  - Times:  TEXT RFC 3339 (UTC)

REVISION CHECK:
  Every amount-changing write starts with

    UPDATE loans SET revision = revision + 1 ... WHERE id = ? AND revision = ?

  inside the same transaction as the schedule change. Zero rows affected
  means the loan is unknown or was changed since it was read; the
  transaction is rolled back and nothing is written.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging). The pool is limited to a
  single connection: SQLite has one writer anyway, and ":memory:" databases
  exist per connection.

MIGRATION:
  Versioned migrations live in migrations/ and are embedded in the binary.
  They run with golang-migrate on New().

USAGE:
  store, err := sqlite.New("./data/loans.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := loan.NewService(store)

SEE ALSO:
  - loan/store.go: Interface definition
  - loan/store/memory.go: In-memory implementation for testing
  - loan/storetest: Behaviour shared by both implementations
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/repayment"
	"github.com/warp/loan-engine/schedule"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements loan.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ loan.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// runMigrations applies every pending migration. The migrate instance is not
// closed: its database driver would close db along with it.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	defer src.Close()

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// =============================================================================
// LOANS
// =============================================================================

const loanColumns = `id, name, lender, principal_cents, annual_rate_percent,
	day_count_convention, start_date, term_months, loan_type, fee_setup_cents,
	fee_monthly_cents, insurance_monthly_cents, balloon_cents, status, revision,
	created_at, updated_at`

// CreateLoan stores the loan and its schedule in one transaction. A duplicate
// id fails with finance.ErrConcurrentModification.
func (s *Store) CreateLoan(ctx context.Context, l loan.Loan, rows []schedule.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans WHERE id = ?`, l.ID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("%w: loan %s already exists", finance.ErrConcurrentModification, l.ID)
		}

		var balloon sql.NullInt64
		if l.Terms.BalloonAmount != nil {
			balloon = sql.NullInt64{Int64: l.Terms.BalloonAmount.Cents(), Valid: true}
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO loans (`+loanColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.Name, l.Lender,
			l.Terms.Principal.Cents(), l.Terms.AnnualRatePercent.String(),
			l.Terms.DayCountConvention, formatDate(l.Terms.StartDate), l.Terms.TermMonths,
			string(l.Terms.LoanType), l.Terms.FeeSetup.Cents(), l.Terms.FeeMonthly.Cents(),
			l.Terms.InsuranceMonthly.Cents(), balloon, string(l.Status), l.Revision,
			formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}

		return insertInstallments(ctx, tx, l.ID, rows)
	})
}

// GetLoan returns finance.ErrLoanNotFound for an unknown id.
func (s *Store) GetLoan(ctx context.Context, id string) (*loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, finance.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLoans returns every loan in insertion order.
func (s *Store) ListLoans(ctx context.Context) ([]loan.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []loan.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLoan(row scanner) (loan.Loan, error) {
	var (
		l                                 loan.Loan
		principal, feeSetup, feeMonthly   int64
		insurance                         int64
		rate, startDate, loanType, status string
		createdAt, updatedAt              string
		balloon                           sql.NullInt64
	)
	err := row.Scan(
		&l.ID, &l.Name, &l.Lender, &principal, &rate,
		&l.Terms.DayCountConvention, &startDate, &l.Terms.TermMonths, &loanType, &feeSetup,
		&feeMonthly, &insurance, &balloon, &status, &l.Revision,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return loan.Loan{}, err
	}

	if l.Terms.AnnualRatePercent, err = decimal.NewFromString(rate); err != nil {
		return loan.Loan{}, fmt.Errorf("loan %s: invalid rate %q: %w", l.ID, rate, err)
	}
	if l.Terms.StartDate, err = parseDate(startDate); err != nil {
		return loan.Loan{}, fmt.Errorf("loan %s: %w", l.ID, err)
	}
	l.Terms.Principal = finance.Cents(principal)
	l.Terms.LoanType = schedule.LoanType(loanType)
	l.Terms.FeeSetup = finance.Cents(feeSetup)
	l.Terms.FeeMonthly = finance.Cents(feeMonthly)
	l.Terms.InsuranceMonthly = finance.Cents(insurance)
	if balloon.Valid {
		b := finance.Cents(balloon.Int64)
		l.Terms.BalloonAmount = &b
	}
	l.Status = loan.Status(status)
	l.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	l.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return l, nil
}

// =============================================================================
// SCHEDULES
// =============================================================================

const installmentColumns = `loan_id, installment_no, due_date, principal_due_cents,
	interest_due_cents, fees_due_cents, total_due_cents, balance_after_cents,
	status, paid_on`

// GetSchedule returns the installments ordered by number.
func (s *Store) GetSchedule(ctx context.Context, loanID string) ([]schedule.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireLoan(ctx, loanID); err != nil {
		return nil, err
	}
	return queryInstallments(ctx, s.db, `SELECT `+installmentColumns+`
		FROM installments WHERE loan_id = ? ORDER BY installment_no`, loanID)
}

func insertInstallments(ctx context.Context, tx *sql.Tx, loanID string, rows []schedule.Installment) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO installments (`+installmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		status := r.Status
		if status == "" {
			status = schedule.StatusPending
		}
		_, err := stmt.ExecContext(ctx,
			loanID, r.No, formatDate(r.DueDate), r.PrincipalDue.Cents(),
			r.InterestDue.Cents(), r.FeesDue.Cents(), r.TotalDue.Cents(), r.BalanceAfter.Cents(),
			string(status), nullDate(r.PaidOn),
		)
		if err != nil {
			return fmt.Errorf("insert installment %d: %w", r.No, err)
		}
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryInstallments(ctx context.Context, db querier, query string, args ...any) ([]schedule.Installment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanInstallment(row scanner) (schedule.Installment, error) {
	var (
		inst                                    schedule.Installment
		dueDate, status                         string
		principal, interest, fees, total, after int64
		paidOn                                  sql.NullString
	)
	err := row.Scan(&inst.LoanID, &inst.No, &dueDate, &principal,
		&interest, &fees, &total, &after, &status, &paidOn)
	if err != nil {
		return schedule.Installment{}, err
	}

	if inst.DueDate, err = parseDate(dueDate); err != nil {
		return schedule.Installment{}, err
	}
	if paidOn.Valid {
		if inst.PaidOn, err = parseDate(paidOn.String); err != nil {
			return schedule.Installment{}, err
		}
	}
	inst.PrincipalDue = finance.Cents(principal)
	inst.InterestDue = finance.Cents(interest)
	inst.FeesDue = finance.Cents(fees)
	inst.TotalDue = finance.Cents(total)
	inst.BalanceAfter = finance.Cents(after)
	inst.Status = schedule.Status(status)
	return inst, nil
}

// =============================================================================
// REPAYMENTS
// =============================================================================

const repaymentColumns = `id, loan_id, amount_cents, payment_date, policy,
	after_installment, balance_before_cents, saved_interest_cents,
	new_installment_count, revision, created_at`

// ListRepayments returns confirmed repayments in confirmation order.
func (s *Store) ListRepayments(ctx context.Context, loanID string) ([]loan.Repayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireLoan(ctx, loanID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+repaymentColumns+`
		FROM repayments WHERE loan_id = ? ORDER BY revision, rowid`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []loan.Repayment{}
	for rows.Next() {
		var (
			r                              loan.Repayment
			amount, before, saved          int64
			paymentDate, policy, createdAt string
		)
		err := rows.Scan(&r.ID, &r.LoanID, &amount, &paymentDate, &policy,
			&r.AfterInstallment, &before, &saved,
			&r.NewInstallmentCount, &r.Revision, &createdAt)
		if err != nil {
			return nil, err
		}
		if r.PaymentDate, err = parseDate(paymentDate); err != nil {
			return nil, err
		}
		r.Amount = finance.Cents(amount)
		r.BalanceBefore = finance.Cents(before)
		r.SavedInterest = finance.Cents(saved)
		r.Policy = repayment.Policy(policy)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// WRITES
// =============================================================================

// ReplaceTail deletes every installment after KeepCount, inserts the new tail
// and records the repayment in one transaction.
func (s *Store) ReplaceTail(ctx context.Context, r loan.TailReplacement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rev int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if rev, err = bumpRevision(ctx, tx, r.LoanID, r.ExpectedRevision, r.Status); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM installments
			WHERE loan_id = ? AND installment_no > ?`, r.LoanID, r.KeepCount)
		if err != nil {
			return fmt.Errorf("delete tail: %w", err)
		}
		if err := insertInstallments(ctx, tx, r.LoanID, r.Tail); err != nil {
			return err
		}

		rep := r.Repayment
		_, err = tx.ExecContext(ctx, `INSERT INTO repayments (`+repaymentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.ID, r.LoanID, rep.Amount.Cents(), formatDate(rep.PaymentDate), string(rep.Policy),
			rep.AfterInstallment, rep.BalanceBefore.Cents(), rep.SavedInterest.Cents(),
			rep.NewInstallmentCount, rev, formatTime(rep.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert repayment: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rev, nil
}

// MarkPaid records the payment of one installment.
func (s *Store) MarkPaid(ctx context.Context, u loan.PaymentUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rev int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if rev, err = bumpRevision(ctx, tx, u.LoanID, u.ExpectedRevision, u.Status); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `UPDATE installments SET status = ?, paid_on = ?
			WHERE loan_id = ? AND installment_no = ?`,
			string(schedule.StatusPaid), nullDate(u.PaidOn), u.LoanID, u.No)
		if err != nil {
			return fmt.Errorf("update installment: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return finance.ErrInstallmentNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rev, nil
}

// MarkOverdue stores status overdue on pending installments due before today.
// Revisions are left alone.
func (s *Store) MarkOverdue(ctx context.Context, today finance.Date) ([]schedule.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var marked []schedule.Installment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		marked, err = queryInstallments(ctx, tx, `SELECT `+installmentColumns+`
			FROM installments WHERE status = ? AND due_date < ?
			ORDER BY loan_id, installment_no`,
			string(schedule.StatusPending), formatDate(today))
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE installments SET status = ?
			WHERE status = ? AND due_date < ?`,
			string(schedule.StatusOverdue), string(schedule.StatusPending), formatDate(today))
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range marked {
		marked[i].Status = schedule.StatusOverdue
	}
	return marked, nil
}

// bumpRevision is the compare-and-swap every amount-changing write starts
// with. An empty status leaves the loan status unchanged.
func bumpRevision(ctx context.Context, tx *sql.Tx, loanID string, expected int64, status loan.Status) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE loans
		SET revision = revision + 1,
		    status = COALESCE(NULLIF(?, ''), status),
		    updated_at = ?
		WHERE id = ? AND revision = ?`,
		string(status), formatTime(time.Now()), loanID, expected)
	if err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return expected + 1, nil
	}

	var actual int64
	err = tx.QueryRowContext(ctx, `SELECT revision FROM loans WHERE id = ?`, loanID).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, finance.ErrLoanNotFound
	}
	if err != nil {
		return 0, err
	}
	return 0, &finance.RevisionConflictError{LoanID: loanID, Expected: expected, Actual: actual}
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"repayments", "installments", "loans"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) requireLoan(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans WHERE id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return finance.ErrLoanNotFound
	}
	return nil
}

func formatDate(d finance.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func nullDate(d finance.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDate(s string) (finance.Date, error) {
	if s == "" {
		return finance.Date{}, nil
	}
	return finance.ParseDate(s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
