package schedule

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/loan-engine/finance"
)

// =============================================================================
// PLAN - Input of one amortization run
// =============================================================================

// Plan describes one run of the generator: a principal amortized over
// Periods installments numbered from FirstNo.
type Plan struct {
	Type      LoanType
	Principal finance.Money

	// Rate is the periodic rate, already converted by the day-count convention.
	Rate decimal.Decimal

	Periods int

	// Start anchors due dates: installment k is due Start + k months.
	Start   finance.Date
	FirstNo int

	// Level is the per-period amount held fixed (annuity payment, fixed
	// principal part, interest-only amortizing part). Zero derives it from
	// Principal, Rate and Periods.
	Level finance.Money

	// Extra is added to each period's principal.
	Extra finance.Money

	// Balloon is the principal left for the final interest_only period.
	Balloon finance.Money

	// Charges are added to every installment's total due.
	Charges finance.Money

	// StopWhenPaid ends the run as soon as the balance reaches zero instead
	// of padding it to Periods installments.
	StopWhenPaid bool
}

// =============================================================================
// METHOD - One amortization variant
// =============================================================================

// Method is one amortization variant. Begin is called once per run.
type Method interface {
	Type() LoanType

	// Begin prepares a stepper for plan p.
	Begin(p Plan) Stepper

	// Level extracts, from an existing installment, the per-period amount
	// this method holds fixed.
	Level(inst Installment) finance.Money

	// ShortensTerm reports whether holding the level fixed after a
	// principal reduction pays the loan off in fewer periods.
	ShortensTerm() bool
}

// Stepper yields the raw figures of successive periods.
type Stepper interface {
	// Next returns the principal and interest of period i (1-based within
	// the run) given the balance before it. The generator clamps and
	// residual-corrects the principal.
	Next(i int, balance finance.Money) (principal, interest finance.Money)

	// Level is the per-period amount this run holds fixed.
	Level() finance.Money
}

// =============================================================================
// REGISTRY
// =============================================================================

var (
	methodsMu sync.RWMutex
	methods   = map[LoanType]Method{}
)

func init() {
	Register(annuityMethod{})
	Register(fixedPrincipalMethod{})
	Register(interestOnlyMethod{})
}

// Register adds a method, replacing any method of the same type.
func Register(m Method) {
	methodsMu.Lock()
	defer methodsMu.Unlock()
	methods[m.Type()] = m
}

// Lookup returns the method for t.
func Lookup(t LoanType) (Method, error) {
	methodsMu.RLock()
	defer methodsMu.RUnlock()
	m, ok := methods[t]
	if !ok {
		return nil, &finance.TermsError{Field: "loan_type", Reason: fmt.Sprintf("unsupported loan type %q", t)}
	}
	return m, nil
}

// Types lists the registered loan types in sorted order.
func Types() []LoanType {
	methodsMu.RLock()
	defer methodsMu.RUnlock()
	types := make([]LoanType, 0, len(methods))
	for t := range methods {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
