package simulation

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/warp/loan-engine/finance"
	"github.com/warp/loan-engine/schedule"
)

// =============================================================================
// SCENARIOS
// =============================================================================

// Scenario is a named set of overrides.
type Scenario struct {
	Name      string    `json:"name"`
	Overrides Overrides `json:"overrides"`
}

// ScenarioResult is the comparison row for one scenario.
type ScenarioResult struct {
	Name           string        `json:"name"`
	MonthlyPayment finance.Money `json:"monthly_payment"`
	TotalInterest  finance.Money `json:"total_interest"`
	TotalPayment   finance.Money `json:"total_payment"`
	MonthsSaved    int           `json:"months_saved"`
	TotalSaved     finance.Money `json:"total_saved"`
}

// MoneyRange is the min and max of one metric across scenarios.
type MoneyRange struct {
	Min finance.Money `json:"min"`
	Max finance.Money `json:"max"`
}

func (r *MoneyRange) include(m finance.Money, first bool) {
	if first {
		r.Min, r.Max = m, m
		return
	}
	r.Min = r.Min.Min(m)
	r.Max = r.Max.Max(m)
}

// IntRange is the min and max of a count across scenarios.
type IntRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r *IntRange) include(n int, first bool) {
	if first {
		r.Min, r.Max = n, n
		return
	}
	r.Min = min(r.Min, n)
	r.Max = max(r.Max, n)
}

// Ranges aggregates every metric across scenarios.
type Ranges struct {
	TotalInterest MoneyRange `json:"total_interest"`
	TotalPayment  MoneyRange `json:"total_payment"`
	MonthsSaved   IntRange   `json:"months_saved"`
	TotalSaved    MoneyRange `json:"total_saved"`
}

// Comparison is the outcome of Compare. Scenarios keep the input order.
type Comparison struct {
	Original     Run              `json:"original"`
	Scenarios    []ScenarioResult `json:"scenarios"`
	Ranges       Ranges           `json:"ranges"`
	BestScenario string           `json:"best_scenario"`
}

// =============================================================================
// COMPARE
// =============================================================================

// Compare simulates every scenario against t concurrently.
//
// The best scenario saves the most in total; ties go to the lowest total
// interest, then to the earliest scenario.
func Compare(ctx context.Context, t schedule.Terms, scenarios []Scenario) (*Comparison, error) {
	if err := validateScenarios(scenarios); err != nil {
		return nil, err
	}

	results := make([]*Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := Simulate(t, sc.Overrides)
			if err != nil {
				return fmt.Errorf("scenario %q: %w", sc.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cmp := &Comparison{
		Original:  results[0].Original,
		Scenarios: make([]ScenarioResult, len(scenarios)),
	}
	best := -1
	for i, res := range results {
		row := ScenarioResult{
			Name:           scenarios[i].Name,
			MonthlyPayment: res.Simulated.MonthlyPayment,
			TotalInterest:  res.Simulated.TotalInterest,
			TotalPayment:   res.Simulated.TotalCost,
			MonthsSaved:    res.Savings.TimeSavedMonths,
			TotalSaved:     res.TotalSaved(),
		}
		cmp.Scenarios[i] = row

		first := i == 0
		cmp.Ranges.TotalInterest.include(row.TotalInterest, first)
		cmp.Ranges.TotalPayment.include(row.TotalPayment, first)
		cmp.Ranges.MonthsSaved.include(row.MonthsSaved, first)
		cmp.Ranges.TotalSaved.include(row.TotalSaved, first)

		if best < 0 || better(row, cmp.Scenarios[best]) {
			best = i
		}
	}
	cmp.BestScenario = cmp.Scenarios[best].Name
	return cmp, nil
}

// better reports whether a beats b. Equal rows keep b, the earlier one.
func better(a, b ScenarioResult) bool {
	if a.TotalSaved != b.TotalSaved {
		return a.TotalSaved.GreaterThan(b.TotalSaved)
	}
	return a.TotalInterest.LessThan(b.TotalInterest)
}

func validateScenarios(scenarios []Scenario) error {
	if len(scenarios) == 0 {
		return &finance.ScenarioError{Reason: "at least one scenario is required"}
	}
	seen := make(map[string]bool, len(scenarios))
	for _, sc := range scenarios {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			return &finance.ScenarioError{Reason: "scenario name is required"}
		}
		if seen[name] {
			return &finance.ScenarioError{Scenario: name, Reason: "duplicate scenario name"}
		}
		seen[name] = true
	}
	return nil
}
