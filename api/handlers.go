/*
handlers.go - HTTP API handlers for the loan engine

PURPOSE:
  Exposes the loan service via REST API. Handles HTTP request/response and
  JSON serialization, and delegates everything else to loan.Service.

ENDPOINTS:
  Loans:
    GET    /api/loans                              List all loans
    POST   /api/loans                              Create loan (generates schedule)
    GET    /api/loans/{id}                         Loan view with aggregates
    GET    /api/loans/{id}/schedule                Schedule with derived statuses

  Payments:
    POST   /api/loans/{id}/installments/{no}/pay   Record an installment payment

  Early repayments:
    POST   /api/loans/{id}/repayments/preview      Preview (stores nothing)
    POST   /api/loans/{id}/repayments              Confirm
    GET    /api/loans/{id}/repayments              History

  What-if:
    POST   /api/loans/{id}/simulate                One set of overrides
    POST   /api/loans/{id}/scenarios/compare       Several named scenarios
    POST   /api/schedules/generate                 Stateless schedule

  Read endpoints accept ?as_of=YYYY-MM-DD; the default is the server clock.

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: every loan operation
  - Store: demo loading resets it
  - Factory: JSON to loan terms conversion

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid terms, amounts, scenarios or request bodies
  - 404: Loan, schedule or installment not found
  - 409: Revision conflict (stale expected_revision, concurrent write)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - demos.go: Demo loan loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/loan-engine/factory"
	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/observability"
	"github.com/warp/loan-engine/repayment"
	"github.com/warp/loan-engine/schedule"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *loan.Service
	Store   loan.Store
	Factory *factory.LoanFactory

	logger *slog.Logger

	// Track currently loaded demo
	mu          sync.Mutex
	currentDemo string
}

// NewHandler creates a new handler. A nil factory uses the default day count.
func NewHandler(svc *loan.Service, store loan.Store, f *factory.LoanFactory, logger *slog.Logger) *Handler {
	if f == nil {
		f = factory.NewLoanFactory("")
	}
	return &Handler{
		Service: svc,
		Store:   store,
		Factory: f,
		logger:  observability.Component(logger, observability.ComponentAPI),
	}
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// ListLoans returns all loans.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Service.ListLoans(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	dtos := make([]LoanDTO, len(loans))
	for i, l := range loans {
		dtos[i] = h.toLoanDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLoan creates a loan from a LoanJSON body and returns its view.
// POST /api/loans
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := h.Factory.FromJSON(req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	l, err := h.Service.CreateLoan(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	view, err := h.Service.GetLoanView(r.Context(), l.ID, finance.Date{})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GetLoan returns the loan view as of ?as_of (default today).
// GET /api/loans/{id}
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	asOf, ok := parseAsOf(w, r)
	if !ok {
		return
	}

	view, err := h.Service.GetLoanView(r.Context(), chi.URLParam(r, "id"), asOf)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetSchedule returns the schedule with statuses derived as of ?as_of.
// GET /api/loans/{id}/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	asOf, ok := parseAsOf(w, r)
	if !ok {
		return
	}

	view, err := h.Service.GetLoanView(r.Context(), chi.URLParam(r, "id"), asOf)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := scheduleResponse(view.Schedule, view.Loan.Terms.FeeSetup)
	resp.LoanID = view.Loan.ID
	resp.AsOf = &view.AsOf
	writeJSON(w, http.StatusOK, resp)
}

// GenerateSchedule generates a schedule from terms without storing it.
// POST /api/schedules/generate
func (h *Handler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	terms, err := h.Factory.Terms(req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	rows, err := h.Service.GenerateSchedule(r.Context(), terms)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse(rows, terms.FeeSetup))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// PayInstallment records the payment of one installment.
// POST /api/loans/{id}/installments/{no}/pay
func (h *Handler) PayInstallment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	no, err := strconv.Atoi(chi.URLParam(r, "no"))
	if err != nil || no < 1 {
		writeError(w, http.StatusBadRequest, "Invalid installment number", err)
		return
	}

	var req PayInstallmentRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	paidOn, err := parseOptionalDate(req.PaidOn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_on", err)
		return
	}

	inst, err := h.Service.RecordPayment(r.Context(), id, no, paidOn)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	l, err := h.Service.GetLoan(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PayInstallmentResponse{Installment: inst, Loan: l})
}

// =============================================================================
// EARLY REPAYMENT HANDLERS
// =============================================================================

// PreviewRepayment computes the effect of an early repayment.
// POST /api/loans/{id}/repayments/preview
func (h *Handler) PreviewRepayment(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRepayment(w, r)
	if !ok {
		return
	}

	preview, err := h.Service.PreviewEarlyRepayment(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// ConfirmRepayment applies an early repayment.
// POST /api/loans/{id}/repayments
func (h *Handler) ConfirmRepayment(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRepayment(w, r)
	if !ok {
		return
	}

	conf, err := h.Service.ConfirmEarlyRepayment(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conf)
}

// ListRepayments returns the confirmed repayments of a loan.
// GET /api/loans/{id}/repayments
func (h *Handler) ListRepayments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reps, err := h.Service.ListRepayments(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := RepaymentHistoryResponse{LoanID: id, Repayments: reps}
	if resp.Repayments == nil {
		resp.Repayments = []loan.Repayment{}
	}
	for _, rep := range reps {
		resp.Total = resp.Total.Add(rep.Amount)
		resp.Saved = resp.Saved.Add(rep.SavedInterest)
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeRepayment(w http.ResponseWriter, r *http.Request) (loan.RepaymentRequest, bool) {
	var body RepaymentRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return loan.RepaymentRequest{}, false
	}

	date, err := parseOptionalDate(body.PaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment_date", err)
		return loan.RepaymentRequest{}, false
	}

	var policy repayment.Policy
	if strings.TrimSpace(body.Policy) != "" {
		if policy, err = repayment.ParsePolicy(body.Policy); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid policy", err)
			return loan.RepaymentRequest{}, false
		}
	}

	return loan.RepaymentRequest{
		Amount:           body.Amount,
		PaymentDate:      date,
		Policy:           policy,
		ExpectedRevision: body.ExpectedRevision,
	}, true
}

// =============================================================================
// WHAT-IF HANDLERS
// =============================================================================

// Simulate runs one what-if against the loan's terms.
// POST /api/loans/{id}/simulate
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Service.Simulate(r.Context(), chi.URLParam(r, "id"), req.Overrides())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SimulationResponse{Result: *res, TotalSaved: res.TotalSaved()})
}

// CompareScenarios compares named scenarios against the loan's terms.
// POST /api/loans/{id}/scenarios/compare
func (h *Handler) CompareScenarios(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cmp, err := h.Service.CompareScenarios(r.Context(), chi.URLParam(r, "id"), factory.Scenarios(req.Scenarios))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) toLoanDTO(l loan.Loan) LoanDTO {
	dto := LoanDTO{
		ID:       l.ID,
		Name:     l.Name,
		Lender:   l.Lender,
		Terms:    h.Factory.ToJSON(l),
		Status:   l.Status,
		Revision: l.Revision,
	}
	if !l.CreatedAt.IsZero() {
		dto.CreatedAt = l.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func scheduleResponse(rows []schedule.Installment, feeSetup finance.Money) ScheduleResponse {
	t := schedule.Summarize(rows)
	if rows == nil {
		rows = []schedule.Installment{}
	}
	return ScheduleResponse{
		Installments: rows,
		Totals: TotalsDTO{
			Count:          t.Count,
			LevelPayment:   t.LevelPayment,
			TotalPrincipal: t.Principal,
			TotalInterest:  t.Interest,
			TotalFees:      t.Fees,
			TotalDue:       t.Due,
			TotalCost:      t.Due.Add(feeSetup),
		},
	}
}

// parseAsOf reads ?as_of. A missing value is the zero date, which the
// service resolves to its clock.
func parseAsOf(w http.ResponseWriter, r *http.Request) (finance.Date, bool) {
	d, err := parseOptionalDate(r.URL.Query().Get("as_of"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of", err)
		return finance.Date{}, false
	}
	return d, true
}

func parseOptionalDate(s string) (finance.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return finance.Date{}, nil
	}
	return finance.ParseDate(s)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// decodeOptionalJSON is decodeJSON accepting an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := decodeJSON(w, r, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeServiceError maps domain errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case finance.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case finance.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case finance.IsRetryable(err):
		writeError(w, http.StatusConflict, "Concurrent modification", err)
	default:
		h.logger.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			observability.FieldError, err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
