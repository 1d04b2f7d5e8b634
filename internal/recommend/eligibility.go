package recommend

import "github.com/finpersona/backend/internal/domain"

// EligibleProducts returns the active products whose eligibility criteria
// the user satisfies. A criterion absent on a product never excludes it.
// Callers fall back to the full active catalog when the result is empty.
func EligibleProducts(user domain.UserProfile, products []domain.Product) []domain.Product {
	var out []domain.Product
	for _, product := range products {
		if !product.IsActive {
			continue
		}
		if MeetsEligibility(user, product) {
			out = append(out, product)
		}
	}
	return out
}

// MeetsEligibility reports whether the user satisfies every criterion the
// product sets.
func MeetsEligibility(user domain.UserProfile, product domain.Product) bool {
	el := product.Eligibility
	fp := user.FinancialProfile

	if el.MinIncome != nil && fp.MonthlyIncome < *el.MinIncome {
		return false
	}
	if el.MinCreditScore != nil && fp.CreditScore < *el.MinCreditScore {
		return false
	}
	if el.RiskLevel != "" && fp.RiskProfile != el.RiskLevel {
		return false
	}
	if el.TargetAgeMin != nil && user.Profile.Age < *el.TargetAgeMin {
		return false
	}
	if el.TargetAgeMax != nil && user.Profile.Age > *el.TargetAgeMax {
		return false
	}
	return true
}
