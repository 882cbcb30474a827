package factory

import (
	"encoding/json"
)

// =============================================================================
// PRESET LOANS
// =============================================================================
//
// Presets return LoanJSON strings for the common household loan shapes.
// Amounts and rates are decimal strings so they parse exactly.

// MortgageJSON returns JSON for a level-payment home mortgage.
func MortgageJSON(id, name, principal, ratePercent, startDate string, termMonths int) string {
	lj := map[string]interface{}{
		"id":                   id,
		"name":                 name,
		"principal":            principal,
		"annual_rate_percent":  ratePercent,
		"day_count_convention": "30/360",
		"start_date":           startDate,
		"term_months":          termMonths,
		"loan_type":            "annuity",
		"fee_setup":            "1200.00",
		"insurance_monthly":    "18.00",
	}
	b, _ := json.MarshalIndent(lj, "", "  ")
	return string(b)
}

// CarLoanJSON returns JSON for a car loan repaid in equal principal parts.
func CarLoanJSON(id, name, principal, ratePercent, startDate string, termMonths int) string {
	lj := map[string]interface{}{
		"id":                  id,
		"name":                name,
		"principal":           principal,
		"annual_rate_percent": ratePercent,
		"start_date":          startDate,
		"term_months":         termMonths,
		"loan_type":           "fixed_principal",
		"fee_monthly":         "3.00",
	}
	b, _ := json.MarshalIndent(lj, "", "  ")
	return string(b)
}

// ConsumerLoanJSON returns JSON for an annuity consumer loan with the usual
// setup fee, monthly fee and credit insurance.
func ConsumerLoanJSON(id, name, principal, ratePercent, startDate string, termMonths int, feeSetup, feeMonthly, insuranceMonthly string) string {
	lj := map[string]interface{}{
		"id":                  id,
		"name":                name,
		"principal":           principal,
		"annual_rate_percent": ratePercent,
		"start_date":          startDate,
		"term_months":         termMonths,
		"loan_type":           "annuity",
		"fee_setup":           feeSetup,
		"fee_monthly":         feeMonthly,
		"insurance_monthly":   insuranceMonthly,
	}
	b, _ := json.MarshalIndent(lj, "", "  ")
	return string(b)
}

// BridgeLoanJSON returns JSON for an interest-only loan ending in a balloon.
// An empty balloon repays the full principal at maturity.
func BridgeLoanJSON(id, name, principal, ratePercent, balloon, startDate string, termMonths int) string {
	lj := map[string]interface{}{
		"id":                  id,
		"name":                name,
		"principal":           principal,
		"annual_rate_percent": ratePercent,
		"start_date":          startDate,
		"term_months":         termMonths,
		"loan_type":           "interest_only",
	}
	if balloon != "" {
		lj["balloon_amount"] = balloon
	}
	b, _ := json.MarshalIndent(lj, "", "  ")
	return string(b)
}
