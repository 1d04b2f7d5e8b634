package domain

// Eligibility holds the product-side thresholds a user must satisfy to be
// considered for a recommendation. A nil field means no constraint.
type Eligibility struct {
	MinIncome      *float64
	MinCreditScore *int
	RiskLevel      string
	TargetAgeMin   *int
	TargetAgeMax   *int
}

// Product is a financial product from the catalog. The personalization
// pipeline treats products as read-only input.
type Product struct {
	ID          string
	Name        string
	Category    string
	Description string
	Features    []string
	Eligibility Eligibility
	Details     map[string]string
	IsActive    bool
}
