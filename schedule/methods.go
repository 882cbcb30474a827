package schedule

import (
	"github.com/shopspring/decimal"

	"github.com/warp/loan-engine/finance"
)

// =============================================================================
// ANNUITY - Level total payment
// =============================================================================

type annuityMethod struct{}

func (annuityMethod) Type() LoanType     { return Annuity }
func (annuityMethod) ShortensTerm() bool { return true }

func (annuityMethod) Level(inst Installment) finance.Money { return inst.Payment() }

func (annuityMethod) Begin(p Plan) Stepper {
	level := p.Level
	if level.IsZero() {
		level = AnnuityPayment(p.Principal, p.Rate, p.Periods)
	}
	return &annuityStepper{rate: p.Rate, level: level, extra: p.Extra}
}

type annuityStepper struct {
	rate  decimal.Decimal
	level finance.Money
	extra finance.Money
}

func (s *annuityStepper) Level() finance.Money { return s.level }

func (s *annuityStepper) Next(_ int, balance finance.Money) (finance.Money, finance.Money) {
	interest := balance.MulRate(s.rate)
	principal := s.level.Sub(interest).Add(s.extra)
	return principal, interest
}

// AnnuityPayment is the level payment P·r / (1 − (1+r)^-n), rounded to
// cents. At r = 0 it is P/n.
func AnnuityPayment(principal finance.Money, rate decimal.Decimal, n int) finance.Money {
	if n <= 0 {
		return principal
	}
	if rate.IsZero() {
		return principal.DivInt(n)
	}
	// P·r·f / (f − 1) with f = (1+r)^n avoids the negative power.
	f := finance.Compound(rate, n)
	return finance.FromDecimal(principal.Decimal().Mul(rate).Mul(f).Div(f.Sub(decimal.NewFromInt(1))))
}

// =============================================================================
// FIXED PRINCIPAL - Level principal part, declining payment
// =============================================================================

type fixedPrincipalMethod struct{}

func (fixedPrincipalMethod) Type() LoanType     { return FixedPrincipal }
func (fixedPrincipalMethod) ShortensTerm() bool { return true }

func (fixedPrincipalMethod) Level(inst Installment) finance.Money { return inst.PrincipalDue }

func (fixedPrincipalMethod) Begin(p Plan) Stepper {
	level := p.Level
	if level.IsZero() {
		level = p.Principal.DivInt(p.Periods)
	}
	return &fixedPrincipalStepper{rate: p.Rate, level: level, extra: p.Extra}
}

type fixedPrincipalStepper struct {
	rate  decimal.Decimal
	level finance.Money
	extra finance.Money
}

func (s *fixedPrincipalStepper) Level() finance.Money { return s.level }

func (s *fixedPrincipalStepper) Next(_ int, balance finance.Money) (finance.Money, finance.Money) {
	return s.level.Add(s.extra), balance.MulRate(s.rate)
}

// =============================================================================
// INTEREST ONLY - Interest every period, balloon at the end
// =============================================================================

// With the default balloon (the full principal) no principal is repaid
// before the final period. A smaller balloon leaves principal − balloon to
// amortize in equal parts over the periods before it.
type interestOnlyMethod struct{}

func (interestOnlyMethod) Type() LoanType     { return InterestOnly }
func (interestOnlyMethod) ShortensTerm() bool { return false }

func (interestOnlyMethod) Level(inst Installment) finance.Money { return inst.PrincipalDue }

func (interestOnlyMethod) Begin(p Plan) Stepper {
	balloon := p.Balloon.Min(p.Principal)
	if balloon.IsNegative() {
		balloon = finance.Zero
	}
	level := p.Level
	if level.IsZero() && p.Periods > 1 {
		level = p.Principal.Sub(balloon).DivInt(p.Periods - 1)
	}
	return &interestOnlyStepper{rate: p.Rate, level: level, extra: p.Extra, periods: p.Periods}
}

type interestOnlyStepper struct {
	rate    decimal.Decimal
	level   finance.Money
	extra   finance.Money
	periods int
}

func (s *interestOnlyStepper) Level() finance.Money { return s.level }

func (s *interestOnlyStepper) Next(i int, balance finance.Money) (finance.Money, finance.Money) {
	interest := balance.MulRate(s.rate)
	if i >= s.periods {
		return balance, interest
	}
	return s.level.Add(s.extra), interest
}
