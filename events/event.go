/*
Package events publishes loan domain events to the outside world.

PURPOSE:
  The loan service announces state changes (loan created, installment paid,
  early repayment confirmed). Publishing is best-effort: the service logs a
  failed publish and never rolls back the change it describes.

BACKENDS:
  none   Nop, events are dropped
  log    Log, one structured log line per event
  amqp   AMQPPublisher, RabbitMQ topic exchange
  kafka  KafkaPublisher, one topic keyed by loan id

WIRE FORMAT:
  JSON encoding of Event. Headers (AMQP) and message headers (Kafka) repeat
  event_type and event_id so consumers can route without decoding.

SEE ALSO:
  - loan/service.go: Emits the events
  - config/config.go: EVENTS_BACKEND and broker settings
*/
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeLoanCreated         = "loan.created"
	TypeInstallmentPaid     = "loan.installment_paid"
	TypeRepaymentConfirmed  = "loan.repayment_confirmed"
	TypeLoanPaidOff         = "loan.paid_off"
	TypeInstallmentsOverdue = "loan.installments_overdue"
)

// Event is one domain event.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	LoanID     string    `json:"loan_id"`
	Revision   int64     `json:"revision"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// New builds an event with a fresh id.
func New(eventType, loanID string, revision int64, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		LoanID:     loanID,
		Revision:   revision,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// =============================================================================
// NOP / LOG / RECORDER
// =============================================================================

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Log writes every event to a logger.
type Log struct {
	Logger *slog.Logger
}

// NewLog returns a Log publisher; a nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{Logger: logger}
}

func (l *Log) Publish(ctx context.Context, evt Event) error {
	l.Logger.InfoContext(ctx, "Domain event",
		"event_id", evt.ID,
		"event_type", evt.Type,
		"loan_id", evt.LoanID,
		"revision", evt.Revision,
	)
	return nil
}

func (l *Log) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the type of every published event, in order.
func (r *Recorder) Types() []string {
	var types []string
	for _, e := range r.Events() {
		types = append(types, e.Type)
	}
	return types
}
