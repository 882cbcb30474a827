package loan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/warp/loan-engine/events"
	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/lifecycle"
	"github.com/warp/loan-engine/observability"
	"github.com/warp/loan-engine/repayment"
	"github.com/warp/loan-engine/schedule"
	"github.com/warp/loan-engine/simulation"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service runs the engine operations against a Store.
type Service struct {
	store     Store
	processor *repayment.Processor
	publisher events.Publisher
	clock     func() finance.Date
	logger    *slog.Logger
	tracer    trace.Tracer
	locks     *keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the default early repayment policy.
func WithPolicy(p repayment.Policy) Option {
	return func(s *Service) { s.processor = repayment.NewProcessor(p) }
}

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock sets the source of today's date.
func WithClock(clock func() finance.Date) Option {
	return func(s *Service) { s.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService returns a service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		processor: repayment.NewProcessor(repayment.DefaultPolicy),
		publisher: events.Nop{},
		clock:     finance.Today,
		locks:     newKeyedMutex(),
		tracer:    observability.Tracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = observability.Component(s.logger, observability.ComponentService)
	return s
}

// Today is the service clock's date.
func (s *Service) Today() finance.Date {
	return s.clock()
}

// DefaultPolicy is the policy used when a request names none.
func (s *Service) DefaultPolicy() repayment.Policy {
	return s.processor.DefaultPolicy
}

func (s *Service) asOf(d finance.Date) finance.Date {
	if d.IsZero() {
		return s.clock()
	}
	return d
}

// =============================================================================
// SCHEDULE GENERATION
// =============================================================================

// GenerateSchedule generates a schedule without storing anything.
func (s *Service) GenerateSchedule(ctx context.Context, t schedule.Terms) ([]schedule.Installment, error) {
	_, span := s.tracer.Start(ctx, "loan.GenerateSchedule",
		trace.WithAttributes(attribute.String("loan.type", string(t.LoanType))))
	defer span.End()

	rows, err := schedule.Generate(t)
	if err != nil {
		return nil, fail(span, err)
	}
	observability.SchedulesGenerated.WithLabelValues(string(t.LoanType)).Inc()
	return rows, nil
}

// CreateLoan validates the terms, generates the schedule and stores both.
func (s *Service) CreateLoan(ctx context.Context, in NewLoan) (*Loan, error) {
	rows, err := s.GenerateSchedule(ctx, in.Terms)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	l := Loan{
		ID:        in.ID,
		Name:      in.Name,
		Lender:    in.Lender,
		Terms:     in.Terms,
		Status:    StatusActive,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Name == "" {
		l.Name = l.ID
	}
	for i := range rows {
		rows[i].LoanID = l.ID
	}

	if err := s.store.CreateLoan(ctx, l, rows); err != nil {
		return nil, fmt.Errorf("failed to store loan %s: %w", l.ID, err)
	}

	s.logger.InfoContext(ctx, "Loan created",
		observability.FieldLoanID, l.ID,
		observability.FieldLoanType, l.Terms.LoanType,
		observability.FieldAmount, l.Terms.Principal.String(),
		observability.FieldCount, len(rows))
	s.publish(ctx, events.New(events.TypeLoanCreated, l.ID, l.Revision, l))
	return &l, nil
}

// =============================================================================
// READS
// =============================================================================

// GetLoan returns a stored loan.
func (s *Service) GetLoan(ctx context.Context, id string) (*Loan, error) {
	return s.store.GetLoan(ctx, id)
}

// ListLoans returns every stored loan.
func (s *Service) ListLoans(ctx context.Context) ([]Loan, error) {
	return s.store.ListLoans(ctx)
}

// GetSchedule returns the loan's schedule with statuses derived for today
// (zero means the service clock).
func (s *Service) GetSchedule(ctx context.Context, id string, today finance.Date) ([]schedule.Installment, error) {
	if _, err := s.store.GetLoan(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	return lifecycle.Apply(rows, s.asOf(today)), nil
}

// GetLoanView returns the loan with its schedule and aggregates as of
// today (zero means the service clock).
func (s *Service) GetLoanView(ctx context.Context, id string, today finance.Date) (*View, error) {
	l, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	reps, err := s.store.ListRepayments(ctx, id)
	if err != nil {
		return nil, err
	}

	today = s.asOf(today)
	if reps == nil {
		reps = []Repayment{}
	}
	return &View{
		Loan:       *l,
		AsOf:       today,
		Schedule:   lifecycle.Apply(rows, today),
		Repayments: reps,
		Summary:    lifecycle.Summarize(l.Terms.Principal, rows, Prepayments(reps), today),
	}, nil
}

// ListRepayments returns the confirmed early repayments of a loan.
func (s *Service) ListRepayments(ctx context.Context, id string) ([]Repayment, error) {
	if _, err := s.store.GetLoan(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListRepayments(ctx, id)
}

// =============================================================================
// EARLY REPAYMENT
// =============================================================================

// PreviewEarlyRepayment computes the effect of an early repayment without
// storing anything.
func (s *Service) PreviewEarlyRepayment(ctx context.Context, id string, req RepaymentRequest) (*repayment.Preview, error) {
	ctx, span := s.tracer.Start(ctx, "loan.PreviewEarlyRepayment",
		trace.WithAttributes(attribute.String("loan.id", id)))
	defer span.End()

	l, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	rows, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}

	preview, err := s.preview(ctx, l, rows, req)
	observability.Repayments.WithLabelValues("preview", string(s.policy(req)), observability.Outcome(err)).Inc()
	if err != nil {
		return nil, fail(span, err)
	}
	return preview, nil
}

// ConfirmEarlyRepayment applies an early repayment: the schedule tail is
// replaced and the repayment recorded. A rejected amount changes nothing.
func (s *Service) ConfirmEarlyRepayment(ctx context.Context, id string, req RepaymentRequest) (*Confirmation, error) {
	ctx, span := s.tracer.Start(ctx, "loan.ConfirmEarlyRepayment",
		trace.WithAttributes(attribute.String("loan.id", id)))
	defer span.End()

	conf, err := s.confirm(ctx, id, req)
	observability.Repayments.WithLabelValues("confirm", string(s.policy(req)), observability.Outcome(err)).Inc()
	if err != nil {
		if finance.IsRetryable(err) {
			observability.ConcurrentModifications.Inc()
			s.logger.WarnContext(ctx, "Early repayment rejected on stale revision",
				observability.FieldLoanID, id, observability.FieldError, err)
		}
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int64("loan.revision", conf.Revision))
	return conf, nil
}

func (s *Service) confirm(ctx context.Context, id string, req RepaymentRequest) (*Confirmation, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	l, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ExpectedRevision != nil && *req.ExpectedRevision != l.Revision {
		return nil, &finance.RevisionConflictError{LoanID: id, Expected: *req.ExpectedRevision, Actual: l.Revision}
	}
	rows, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	preview, err := s.preview(ctx, l, rows, req)
	if err != nil {
		return nil, err
	}

	tail := schedule.Clone(preview.Tail)
	for i := range tail {
		tail[i].LoanID = id
	}
	status := StatusActive
	if allPaid(repayment.Splice(rows, preview)) {
		status = StatusPaidOff
	}

	rec := Repayment{
		ID:                  uuid.NewString(),
		LoanID:              id,
		Amount:              preview.Amount,
		PaymentDate:         preview.PaymentDate,
		Policy:              preview.Policy,
		AfterInstallment:    preview.KeptCount,
		BalanceBefore:       preview.BalanceBefore,
		SavedInterest:       preview.SavedInterest,
		NewInstallmentCount: preview.NewInstallmentCount,
		Revision:            l.Revision + 1,
		CreatedAt:           time.Now().UTC(),
	}

	rev, err := s.store.ReplaceTail(ctx, TailReplacement{
		LoanID:           id,
		ExpectedRevision: l.Revision,
		KeepCount:        preview.KeptCount,
		Tail:             tail,
		Repayment:        rec,
		Status:           status,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Early repayment confirmed",
		observability.FieldLoanID, id,
		observability.FieldAmount, rec.Amount.String(),
		observability.FieldPolicy, rec.Policy,
		observability.FieldRevision, rev,
		"saved_interest", rec.SavedInterest.String(),
		"new_installment_count", rec.NewInstallmentCount)

	s.publish(ctx, events.New(events.TypeRepaymentConfirmed, id, rev, rec))
	if status == StatusPaidOff {
		s.publish(ctx, events.New(events.TypeLoanPaidOff, id, rev, nil))
	}

	return &Confirmation{Preview: preview, Repayment: rec, Revision: rev, Status: status}, nil
}

func (s *Service) preview(ctx context.Context, l *Loan, rows []schedule.Installment, req RepaymentRequest) (*repayment.Preview, error) {
	if l.Status == StatusPaidOff {
		return nil, &finance.RepaymentAmountError{Amount: req.Amount, Balance: finance.Zero}
	}
	date := s.asOf(req.PaymentDate)

	// Installments ahead of a confirmed repayment's split still carry the
	// balances from before it, so a new repayment may not split ahead of it.
	reps, err := s.store.ListRepayments(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	if latest, ok := latestRepayment(reps); ok && repayment.KeptCount(rows, date) < latest.AfterInstallment {
		return nil, &finance.PaymentDateError{
			Date:     date,
			Earliest: latest.PaymentDate,
			Reason:   "before an already confirmed repayment",
		}
	}

	return s.processor.Preview(l.Terms, rows, req.Amount, date, req.Policy)
}

// latestRepayment returns the repayment with the furthest split point.
func latestRepayment(reps []Repayment) (Repayment, bool) {
	if len(reps) == 0 {
		return Repayment{}, false
	}
	latest := reps[0]
	for _, r := range reps[1:] {
		if r.AfterInstallment > latest.AfterInstallment ||
			(r.AfterInstallment == latest.AfterInstallment && r.PaymentDate.After(latest.PaymentDate)) {
			latest = r
		}
	}
	return latest, true
}

func (s *Service) policy(req RepaymentRequest) repayment.Policy {
	if req.Policy != "" {
		return req.Policy
	}
	return s.processor.DefaultPolicy
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPayment marks installment no paid on paidOn (zero means today).
// Paying a paid installment changes nothing. The loan is paid off once
// every installment is paid.
func (s *Service) RecordPayment(ctx context.Context, id string, no int, paidOn finance.Date) (*schedule.Installment, error) {
	ctx, span := s.tracer.Start(ctx, "loan.RecordPayment",
		trace.WithAttributes(attribute.String("loan.id", id), attribute.Int("installment.no", no)))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	l, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	rows, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}

	idx := -1
	for i := range rows {
		if rows[i].No == no {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fail(span, fmt.Errorf("%w: loan %s has no installment %d", finance.ErrInstallmentNotFound, id, no))
	}
	if rows[idx].IsPaid() {
		return &rows[idx], nil
	}

	rows[idx].Status = schedule.StatusPaid
	rows[idx].PaidOn = s.asOf(paidOn)
	status := l.Status
	if allPaid(rows) {
		status = StatusPaidOff
	}

	rev, err := s.store.MarkPaid(ctx, PaymentUpdate{
		LoanID:           id,
		ExpectedRevision: l.Revision,
		No:               no,
		PaidOn:           rows[idx].PaidOn,
		Status:           status,
	})
	if err != nil {
		if finance.IsRetryable(err) {
			observability.ConcurrentModifications.Inc()
		}
		return nil, fail(span, err)
	}
	observability.PaymentsRecorded.Inc()

	s.logger.InfoContext(ctx, "Installment paid",
		observability.FieldLoanID, id,
		observability.FieldInstallmentNo, no,
		observability.FieldRevision, rev)
	s.publish(ctx, events.New(events.TypeInstallmentPaid, id, rev, rows[idx]))
	if status == StatusPaidOff && l.Status != StatusPaidOff {
		s.publish(ctx, events.New(events.TypeLoanPaidOff, id, rev, nil))
	}
	return &rows[idx], nil
}

// MaterializeOverdue stores status overdue on every unpaid installment due
// before today and returns how many changed.
func (s *Service) MaterializeOverdue(ctx context.Context, today finance.Date) (int, error) {
	ctx, span := s.tracer.Start(ctx, "loan.MaterializeOverdue")
	defer span.End()

	marked, err := s.store.MarkOverdue(ctx, s.asOf(today))
	if err != nil {
		return 0, fail(span, err)
	}
	observability.OverdueMaterialized.Add(float64(len(marked)))

	byLoan := make(map[string][]int)
	var order []string
	for _, inst := range marked {
		if _, ok := byLoan[inst.LoanID]; !ok {
			order = append(order, inst.LoanID)
		}
		byLoan[inst.LoanID] = append(byLoan[inst.LoanID], inst.No)
	}
	for _, loanID := range order {
		s.publish(ctx, events.New(events.TypeInstallmentsOverdue, loanID, 0, map[string][]int{"installments": byLoan[loanID]}))
	}
	return len(marked), nil
}

// =============================================================================
// SIMULATION
// =============================================================================

// Simulate runs a what-if against the loan's own terms. Nothing is stored.
func (s *Service) Simulate(ctx context.Context, id string, o simulation.Overrides) (*simulation.Result, error) {
	ctx, span := s.tracer.Start(ctx, "loan.Simulate", trace.WithAttributes(attribute.String("loan.id", id)))
	defer span.End()

	l, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	res, err := simulation.Simulate(l.Terms, o)
	observability.Simulations.WithLabelValues("simulate", observability.Outcome(err)).Inc()
	if err != nil {
		return nil, fail(span, err)
	}
	return res, nil
}

// CompareScenarios simulates several named scenarios side by side.
func (s *Service) CompareScenarios(ctx context.Context, id string, scenarios []simulation.Scenario) (*simulation.Comparison, error) {
	ctx, span := s.tracer.Start(ctx, "loan.CompareScenarios",
		trace.WithAttributes(attribute.String("loan.id", id), attribute.Int("scenarios", len(scenarios))))
	defer span.End()

	l, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	cmp, err := simulation.Compare(ctx, l.Terms, scenarios)
	observability.Simulations.WithLabelValues("compare", observability.Outcome(err)).Inc()
	if err != nil {
		return nil, fail(span, err)
	}
	return cmp, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) publish(ctx context.Context, evt events.Event) {
	err := s.publisher.Publish(ctx, evt)
	observability.EventsPublished.WithLabelValues(evt.Type, observability.Outcome(err)).Inc()
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event",
			observability.FieldEventType, evt.Type,
			observability.FieldLoanID, evt.LoanID,
			observability.FieldError, err)
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
