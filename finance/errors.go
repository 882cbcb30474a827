/*
errors.go - Centralized error types for the loan engine

PURPOSE:
  All engine errors in one place. Every failure the engine can produce is a
  deterministic consequence of its inputs; nothing here is transient except
  ErrConcurrentModification, which asks the caller to re-read and retry.

ERROR CATEGORIES:
  1. Terms errors - Loan terms rejected before any generation
  2. Repayment errors - Early repayment amount outside (0, balance], or a
     payment date before the loan start or a confirmed repayment
  3. Lookup errors - Missing loan, schedule or installment
  4. Concurrency errors - Stale schedule revision on confirmation

USAGE:
  if errors.Is(err, finance.ErrInvalidRepaymentAmount) {
      ...
  }

  var conflict *finance.RevisionConflictError
  if errors.As(err, &conflict) {
      // conflict.Actual is the revision to re-read
  }

SEE ALSO:
  - schedule/terms.go: Returns TermsError
  - repayment/processor.go: Returns RepaymentAmountError
  - loan/service.go: Returns RevisionConflictError
*/
package finance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidLoanTerms is returned for non-positive principal or term,
	// a balloon above the principal, or an unsupported loan type or
	// day-count convention.
	ErrInvalidLoanTerms = errors.New("invalid loan terms")

	// ErrInvalidRepaymentAmount is returned when an early repayment is not
	// positive or exceeds the balance at the payment date.
	ErrInvalidRepaymentAmount = errors.New("invalid repayment amount")

	// ErrInvalidPaymentDate is returned when an early repayment is dated
	// before the loan starts or before an already confirmed repayment.
	ErrInvalidPaymentDate = errors.New("invalid payment date")

	// ErrScheduleNotFound is returned for a loan without a generated schedule.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrConcurrentModification is returned when a confirmation's expected
	// schedule revision no longer matches the stored one.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrLoanNotFound is returned when a referenced loan doesn't exist.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrInstallmentNotFound is returned when an installment number is not
	// part of the loan's schedule.
	ErrInstallmentNotFound = errors.New("installment not found")

	// ErrInvalidScenario is returned for malformed simulation scenarios.
	ErrInvalidScenario = errors.New("invalid scenario")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TermsError names the offending field of rejected loan terms.
type TermsError struct {
	Field  string
	Reason string
}

func (e *TermsError) Error() string {
	return fmt.Sprintf("invalid loan terms: %s: %s", e.Field, e.Reason)
}

func (e *TermsError) Unwrap() error {
	return ErrInvalidLoanTerms
}

// RepaymentAmountError reports a repayment amount against the balance it
// was checked against.
type RepaymentAmountError struct {
	Amount  Money
	Balance Money
}

func (e *RepaymentAmountError) Error() string {
	if !e.Amount.IsPositive() {
		return fmt.Sprintf("invalid repayment amount: %s must be positive", e.Amount)
	}
	return fmt.Sprintf("invalid repayment amount: %s exceeds remaining balance %s", e.Amount, e.Balance)
}

func (e *RepaymentAmountError) Unwrap() error {
	return ErrInvalidRepaymentAmount
}

// PaymentDateError reports a repayment date earlier than the first date
// the schedule accepts.
type PaymentDateError struct {
	Date     Date
	Earliest Date
	Reason   string
}

func (e *PaymentDateError) Error() string {
	return fmt.Sprintf("invalid payment date %s: %s (earliest %s)", e.Date, e.Reason, e.Earliest)
}

func (e *PaymentDateError) Unwrap() error {
	return ErrInvalidPaymentDate
}

// RevisionConflictError reports the revision a writer expected and the one
// it found.
type RevisionConflictError struct {
	LoanID   string
	Expected int64
	Actual   int64
}

func (e *RevisionConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of loan %s: expected revision %d, found %d",
		e.LoanID, e.Expected, e.Actual)
}

func (e *RevisionConflictError) Unwrap() error {
	return ErrConcurrentModification
}

// ScenarioError names the scenario that could not be simulated.
type ScenarioError struct {
	Scenario string
	Reason   string
}

func (e *ScenarioError) Error() string {
	if e.Scenario == "" {
		return fmt.Sprintf("invalid scenario: %s", e.Reason)
	}
	return fmt.Sprintf("invalid scenario %q: %s", e.Scenario, e.Reason)
}

func (e *ScenarioError) Unwrap() error {
	return ErrInvalidScenario
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed after a fresh read.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidLoanTerms) ||
		errors.Is(err, ErrInvalidRepaymentAmount) ||
		errors.Is(err, ErrInvalidPaymentDate) ||
		errors.Is(err, ErrInvalidScenario)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrInstallmentNotFound)
}
