/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Loan definitions reuse
  factory.LoanJSON so the API and the presets share one schema; domain
  results that already carry JSON tags (loan.View, repayment.Preview,
  simulation.Comparison) are returned as they are.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Loans:
    CreateLoanRequest (factory.LoanJSON), LoanDTO

  Schedules:
    ScheduleResponse, TotalsDTO

  Payments and repayments:
    PayInstallmentRequest, RepaymentRequest, RepaymentHistoryResponse

  What-if:
    SimulateRequest, SimulationResponse, CompareRequest

  Demo:
    DemoDTO, LoadDemoRequest, LoadDemoResponse

VALIDATION:
  Validation is done in handlers and the factory, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/loan.go: LoanJSON, ScenarioJSON
*/
package api

import (
	"github.com/warp/loan-engine/factory"
	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/schedule"
	"github.com/warp/loan-engine/simulation"
)

// =============================================================================
// LOANS
// =============================================================================

// CreateLoanRequest is the request to create a loan.
type CreateLoanRequest = factory.LoanJSON

// LoanDTO represents a loan in list responses.
type LoanDTO struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Lender    string           `json:"lender,omitempty"`
	Terms     factory.LoanJSON `json:"terms"`
	Status    loan.Status      `json:"status"`
	Revision  int64            `json:"revision"`
	CreatedAt string           `json:"created_at,omitempty"`
}

// =============================================================================
// SCHEDULES
// =============================================================================

// TotalsDTO holds the aggregates of a schedule.
type TotalsDTO struct {
	Count          int           `json:"installment_count"`
	LevelPayment   finance.Money `json:"level_payment"`
	TotalPrincipal finance.Money `json:"total_principal"`
	TotalInterest  finance.Money `json:"total_interest"`
	TotalFees      finance.Money `json:"total_fees"`
	TotalDue       finance.Money `json:"total_due"`
	TotalCost      finance.Money `json:"total_cost"`
}

// ScheduleResponse is a schedule with its aggregates.
type ScheduleResponse struct {
	LoanID       string                 `json:"loan_id,omitempty"`
	AsOf         *finance.Date          `json:"as_of,omitempty"`
	Installments []schedule.Installment `json:"installments"`
	Totals       TotalsDTO              `json:"totals"`
}

// =============================================================================
// PAYMENTS AND REPAYMENTS
// =============================================================================

// PayInstallmentRequest records the payment of one installment. An empty
// paid_on means today.
type PayInstallmentRequest struct {
	PaidOn string `json:"paid_on,omitempty"`
}

// PayInstallmentResponse is the installment after the payment.
type PayInstallmentResponse struct {
	Installment *schedule.Installment `json:"installment"`
	Loan        *loan.Loan            `json:"loan"`
}

// RepaymentRequest is the body of preview and confirm. An empty
// payment_date means today and an empty policy the configured default.
type RepaymentRequest struct {
	Amount           finance.Money `json:"amount"`
	PaymentDate      string        `json:"payment_date,omitempty"`
	Policy           string        `json:"policy,omitempty"`
	ExpectedRevision *int64        `json:"expected_revision,omitempty"`
}

// RepaymentHistoryResponse lists confirmed repayments.
type RepaymentHistoryResponse struct {
	LoanID     string           `json:"loan_id"`
	Repayments []loan.Repayment `json:"repayments"`
	Total      finance.Money    `json:"total_repaid"`
	Saved      finance.Money    `json:"total_saved_interest"`
}

// =============================================================================
// WHAT-IF
// =============================================================================

// SimulateRequest carries the overrides of one simulation.
type SimulateRequest = factory.OverridesJSON

// SimulationResponse is a simulation result with its total saving.
type SimulationResponse struct {
	simulation.Result
	TotalSaved finance.Money `json:"total_saved"`
}

// CompareRequest lists the scenarios to compare.
type CompareRequest struct {
	Scenarios []factory.ScenarioJSON `json:"scenarios"`
}

// =============================================================================
// DEMO
// =============================================================================

// DemoDTO describes a demo loan set.
type DemoDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Loans       int    `json:"loans"`
}

// LoadDemoRequest selects a demo loan set.
type LoadDemoRequest struct {
	DemoID string `json:"demo_id"`
}

// LoadDemoResponse reports what was loaded.
type LoadDemoResponse struct {
	DemoID string       `json:"demo_id"`
	Loans  []LoanDTO    `json:"loans"`
	AsOf   finance.Date `json:"as_of"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
