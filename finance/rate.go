package finance

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAY-COUNT CONVENTIONS
// =============================================================================

// DayCount fixes the fraction of a year attributed to one schedule period.
type DayCount interface {
	// Name is the convention identifier, e.g. "30/360".
	Name() string

	// PeriodsInYear returns how many periods of the convention's length fit
	// in its year when a year is scheduled as periodsPerYear payments. One
	// period's year fraction is the reciprocal.
	PeriodsInYear(periodsPerYear int) decimal.Decimal
}

// DefaultDayCount is used when a loan does not name a convention.
const DefaultDayCount = "30/360"

// thirty360 covers the 30/360 family. Every month counts as 30 days of a
// 360-day year, so each monthly period is exactly 1/12 of a year.
type thirty360 struct{ name string }

func (c thirty360) Name() string { return c.name }

func (c thirty360) PeriodsInYear(periodsPerYear int) decimal.Decimal {
	daysPerPeriod := 360 / periodsPerYear
	return decimal.NewFromInt(int64(360 / daysPerPeriod))
}

var (
	dayCountsMu sync.RWMutex
	dayCounts   = map[string]DayCount{
		"30/360":  thirty360{name: "30/360"},
		"30E/360": thirty360{name: "30E/360"},
		"30U/360": thirty360{name: "30U/360"},
	}
)

// RegisterDayCount adds or replaces a convention.
func RegisterDayCount(dc DayCount) {
	dayCountsMu.Lock()
	defer dayCountsMu.Unlock()
	dayCounts[dc.Name()] = dc
}

// LookupDayCount returns the convention registered under name.
// An empty name resolves to DefaultDayCount.
func LookupDayCount(name string) (DayCount, error) {
	if name == "" {
		name = DefaultDayCount
	}
	dayCountsMu.RLock()
	defer dayCountsMu.RUnlock()
	dc, ok := dayCounts[name]
	if !ok {
		return nil, &TermsError{Field: "day_count_convention", Reason: fmt.Sprintf("unsupported convention %q", name)}
	}
	return dc, nil
}

// DayCountNames lists the registered conventions in sorted order.
func DayCountNames() []string {
	dayCountsMu.RLock()
	defer dayCountsMu.RUnlock()
	names := make([]string, 0, len(dayCounts))
	for name := range dayCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// RATES
// =============================================================================

// PeriodsPerYear is the number of schedule periods in a year. Terms are in months.
const PeriodsPerYear = 12

// rateScale bounds the digits kept on periodic rates; 5%/12 is a repeating decimal.
const rateScale = 18

var hundredPercent = decimal.NewFromInt(100)

// ParseRate parses an annual percentage rate such as "6.00".
func ParseRate(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	return d, nil
}

// PeriodicRate converts an annual percentage rate into the rate for one period.
func PeriodicRate(annualPercent decimal.Decimal, dc DayCount, periodsPerYear int) decimal.Decimal {
	return annualPercent.Div(hundredPercent).Div(dc.PeriodsInYear(periodsPerYear)).Truncate(rateScale)
}

// MonthlyRate is PeriodicRate for a named convention with monthly periods.
func MonthlyRate(annualPercent decimal.Decimal, convention string) (decimal.Decimal, error) {
	dc, err := LookupDayCount(convention)
	if err != nil {
		return decimal.Zero, err
	}
	return PeriodicRate(annualPercent, dc, PeriodsPerYear), nil
}

// Compound returns (1+r)^n, keeping rateScale digits between steps.
func Compound(r decimal.Decimal, n int) decimal.Decimal {
	base := decimal.NewFromInt(1).Add(r)
	result := decimal.NewFromInt(1)
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base).Truncate(rateScale)
		}
		base = base.Mul(base).Truncate(rateScale)
		n >>= 1
	}
	return result
}
