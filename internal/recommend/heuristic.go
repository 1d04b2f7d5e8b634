package recommend

import (
	"sort"

	"github.com/finpersona/backend/internal/domain"
)

// goalAlignments maps a product category to the goal types it serves. Only
// the first matching goal contributes to the heuristic score.
var goalAlignments = map[string][]string{
	"savings":     {"emergency_fund", "savings"},
	"investments": {"retirement", "investment"},
	"loans":       {"home_purchase", "car_purchase"},
}

// HeuristicScore ranks a candidate product for a user before any advisor
// call is spent on it. The score is never persisted or shown to the user.
func HeuristicScore(product domain.Product, user domain.UserProfile) int {
	el := product.Eligibility
	fp := user.FinancialProfile
	score := 0

	if el.MinIncome != nil && fp.MonthlyIncome >= *el.MinIncome {
		score++
	}
	if el.MinCreditScore != nil && fp.CreditScore >= *el.MinCreditScore {
		score++
	}
	if el.RiskLevel != "" && fp.RiskProfile == el.RiskLevel {
		score += 2
	}
	// Unset bounds are open-ended, so a product without age targeting
	// still earns the point.
	if withinAgeRange(user.Profile.Age, el.TargetAgeMin, el.TargetAgeMax) {
		score++
	}
	if user.PrefersCategory(product.Category) {
		score += 3
	}
	if alignsWithGoal(product.Category, user.FinancialGoals) {
		score += 2
	}

	return score
}

// RankByHeuristic sorts products descending by heuristic score. Ties keep
// catalog order.
func RankByHeuristic(products []domain.Product, user domain.UserProfile) []domain.Product {
	ranked := append([]domain.Product(nil), products...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return HeuristicScore(ranked[i], user) > HeuristicScore(ranked[j], user)
	})
	return ranked
}

func withinAgeRange(age int, min, max *int) bool {
	if min != nil && age < *min {
		return false
	}
	if max != nil && age > *max {
		return false
	}
	return true
}

func alignsWithGoal(category string, goals []domain.FinancialGoal) bool {
	aligned, ok := goalAlignments[category]
	if !ok {
		return false
	}
	for _, goal := range goals {
		for _, goalType := range aligned {
			if goal.Type == goalType {
				return true
			}
		}
	}
	return false
}
