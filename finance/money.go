/*
Package finance provides the numeric primitives of the loan engine.

PURPOSE:
  Every other package builds on the types in this package. Money is kept as an
  integer count of cents so that sums over a schedule are exact; rates and
  intermediate products are decimal.Decimal and only ever leave this package
  as rounded cents.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: fixed-point amount in minor units (cents)
  - FromDecimal: the single rounding point (half-up, 2 places)
  - Wire format: JSON number with exactly 2 fraction digits

DESIGN PRINCIPLES:
  1. Precision: no float64 ever touches a stored amount
  2. One rounding rule: every computed amount is rounded once, half-up
  3. Boundary format: "1234.50", never "1234.5" or "1.2345e3"

USAGE:
  payment := finance.MustParseMoney("860.66")
  interest := finance.FromDecimal(balance.Decimal().Mul(rate))
  total := payment.Add(interest)

SEE ALSO:
  - rate.go: Periodic rate conversion and day-count conventions
  - date.go: Calendar dates and month arithmetic
  - errors.go: Error taxonomy
*/
package finance

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point amount in cents
// =============================================================================

// Money is an amount of currency expressed in cents.
type Money int64

// Zero is the zero amount.
const Zero Money = 0

var hundred = decimal.NewFromInt(100)

// Cents returns an amount from a count of minor units.
func Cents(c int64) Money { return Money(c) }

// FromDecimal rounds d half-up (away from zero) to 2 places.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Mul(hundred).Round(0).IntPart())
}

// ParseMoney parses a decimal string such as "1234.50".
// More than 2 significant fraction digits is an error.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid money amount %q: %w", s, err)
	}
	return FromExactDecimal(d)
}

// FromExactDecimal converts d without rounding; d must be a whole number of cents.
func FromExactDecimal(d decimal.Decimal) (Money, error) {
	if !d.Equal(d.Round(2)) {
		return 0, fmt.Errorf("invalid money amount %s: more than 2 fraction digits", d)
	}
	return FromDecimal(d), nil
}

// MustParseMoney is ParseMoney for constants and tests.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Cents() int64             { return int64(m) }
func (m Money) Decimal() decimal.Decimal { return decimal.New(int64(m), -2) }
func (m Money) Add(o Money) Money        { return m + o }
func (m Money) Sub(o Money) Money        { return m - o }
func (m Money) Neg() Money               { return -m }
func (m Money) IsZero() bool             { return m == 0 }
func (m Money) IsNegative() bool         { return m < 0 }
func (m Money) IsPositive() bool         { return m > 0 }
func (m Money) GreaterThan(o Money) bool { return m > o }
func (m Money) LessThan(o Money) bool    { return m < o }

// Min returns the smaller of m and o.
func (m Money) Min(o Money) Money {
	if m < o {
		return m
	}
	return o
}

// Max returns the larger of m and o.
func (m Money) Max(o Money) Money {
	if m > o {
		return m
	}
	return o
}

// MulRate returns m × r rounded half-up to cents.
func (m Money) MulRate(r decimal.Decimal) Money {
	return FromDecimal(m.Decimal().Mul(r))
}

// DivInt splits m into n parts rounded half-up to cents.
func (m Money) DivInt(n int) Money {
	if n <= 0 {
		return m
	}
	return FromDecimal(m.Decimal().Div(decimal.NewFromInt(int64(n))))
}

// String renders m with exactly 2 fraction digits.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Sum adds up amounts.
func Sum(ms ...Money) Money {
	var total Money
	for _, m := range ms {
		total += m
	}
	return total
}

// =============================================================================
// JSON
// =============================================================================

// MarshalJSON encodes m as a JSON number with 2 fraction digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		*m = 0
		return nil
	}
	s := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("invalid money amount %s: %w", s, err)
		}
		s = unquoted
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
