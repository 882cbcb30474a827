package repayment

import (
	"fmt"
	"strings"
)

// Policy decides what an early repayment shortens.
type Policy string

const (
	// TermReduction keeps the periodic payment and pays the loan off sooner.
	TermReduction Policy = "term_reduction"

	// ReducePayment keeps the remaining number of installments and lowers
	// the periodic payment.
	ReducePayment Policy = "reduce_payment"
)

// DefaultPolicy applies when neither the request nor the configuration
// names one.
const DefaultPolicy = TermReduction

// ParsePolicy accepts the policy names case-insensitively. Empty means
// DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultPolicy, nil
	case TermReduction:
		return TermReduction, nil
	case ReducePayment:
		return ReducePayment, nil
	default:
		return "", fmt.Errorf("unknown repayment policy %q: must be %q or %q", s, TermReduction, ReducePayment)
	}
}

func (p Policy) String() string { return string(p) }
