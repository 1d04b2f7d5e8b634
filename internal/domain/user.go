package domain

import "time"

// FinancialProfile captures the financial attributes used for eligibility
// checks and advisor context.
type FinancialProfile struct {
	MonthlyIncome   float64
	MonthlyExpenses float64
	Balance         float64
	Debt            float64
	CreditScore     int
	RiskProfile     string
	FinancialHealth string
}

// Profile holds demographic attributes.
type Profile struct {
	Age        int
	Occupation string
	Location   string
}

// Preferences stores explicit user preferences.
type Preferences struct {
	PreferredCategories []string
}

// FinancialGoal represents a savings or purchase target the user is working
// towards. Goal types drive part of the heuristic product pre-ranking.
type FinancialGoal struct {
	ID                  string
	Type                string
	Name                string
	TargetAmount        float64
	CurrentAmount       float64
	MonthlyContribution float64
	TargetDate          time.Time
	Priority            string
	CreatedAt           time.Time
}

// UserProfile aggregates the canonical user record, including the bounded
// per-user collections maintained by the intelligence pipeline.
type UserProfile struct {
	ID                string
	Email             string
	Name              string
	FinancialProfile  FinancialProfile
	Profile           Profile
	Preferences       Preferences
	FinancialGoals    []FinancialGoal
	Insights          []Insight
	Anomalies         []Anomaly
	PredictedExpenses []PredictedExpense
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasGoalType reports whether any financial goal has the given type.
func (u UserProfile) HasGoalType(goalType string) bool {
	for _, goal := range u.FinancialGoals {
		if goal.Type == goalType {
			return true
		}
	}
	return false
}

// PrefersCategory reports whether the category is one of the user's
// preferred product categories.
func (u UserProfile) PrefersCategory(category string) bool {
	for _, c := range u.Preferences.PreferredCategories {
		if c == category {
			return true
		}
	}
	return false
}
