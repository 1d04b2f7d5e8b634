package recommend

import (
	"testing"

	"github.com/finpersona/backend/internal/domain"
)

func TestHeuristicScoreWeights(t *testing.T) {
	user := domain.UserProfile{
		FinancialProfile: domain.FinancialProfile{
			MonthlyIncome: 80000,
			CreditScore:   750,
			RiskProfile:   "moderate",
		},
		Profile:     domain.Profile{Age: 30},
		Preferences: domain.Preferences{PreferredCategories: []string{"savings"}},
		FinancialGoals: []domain.FinancialGoal{
			{ID: "G-1", Type: "emergency_fund"},
		},
	}

	// Every product earns the age point unless a bound excludes the
	// user, so the open-ended cases below all start from 1.
	cases := []struct {
		name    string
		product domain.Product
		want    int
	}{
		{
			"no signals",
			domain.Product{Category: "insurance"},
			1,
		},
		{
			"income threshold met",
			domain.Product{Category: "insurance", Eligibility: domain.Eligibility{MinIncome: floatPtr(50000)}},
			2,
		},
		{
			"credit threshold met",
			domain.Product{Category: "insurance", Eligibility: domain.Eligibility{MinCreditScore: intPtr(700)}},
			2,
		},
		{
			"risk profile match",
			domain.Product{Category: "insurance", Eligibility: domain.Eligibility{RiskLevel: "moderate"}},
			3,
		},
		{
			"age range satisfied",
			domain.Product{Category: "insurance", Eligibility: domain.Eligibility{TargetAgeMin: intPtr(25), TargetAgeMax: intPtr(40)}},
			1,
		},
		{
			"age range excludes",
			domain.Product{Category: "insurance", Eligibility: domain.Eligibility{TargetAgeMin: intPtr(50)}},
			0,
		},
		{
			"preferred category",
			domain.Product{Category: "savings"},
			1 + 3 + 2, // age plus category preference plus emergency fund goal alignment
		},
		{
			"no goal alignment",
			domain.Product{Category: "loans"},
			1,
		},
		{
			"everything",
			domain.Product{Category: "savings", Eligibility: domain.Eligibility{
				MinIncome:      floatPtr(50000),
				MinCreditScore: intPtr(700),
				RiskLevel:      "moderate",
				TargetAgeMin:   intPtr(25),
				TargetAgeMax:   intPtr(40),
			}},
			1 + 1 + 2 + 1 + 3 + 2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HeuristicScore(tc.product, user); got != tc.want {
				t.Fatalf("HeuristicScore = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestHeuristicGoalAlignmentFirstMatchOnly(t *testing.T) {
	user := domain.UserProfile{
		FinancialGoals: []domain.FinancialGoal{
			{ID: "G-1", Type: "emergency_fund"},
			{ID: "G-2", Type: "savings"},
		},
	}
	product := domain.Product{Category: "savings"}

	// Both goals align with the category, but alignment contributes once
	// (plus the open-ended age point).
	if got := HeuristicScore(product, user); got != 3 {
		t.Fatalf("HeuristicScore = %d, want 3", got)
	}
}

func TestHeuristicScoreAgePointNotGatedOnBounds(t *testing.T) {
	user := domain.UserProfile{Profile: domain.Profile{Age: 30}}
	bounded := domain.Product{Category: "insurance", Eligibility: domain.Eligibility{
		TargetAgeMin: intPtr(25), TargetAgeMax: intPtr(45),
	}}
	boundless := domain.Product{Category: "insurance"}

	if got, want := HeuristicScore(bounded, user), HeuristicScore(boundless, user); got != want {
		t.Fatalf("bounded = %d, boundless = %d; age point must not depend on bounds being set", got, want)
	}
}

func TestRankByHeuristicPreferredCategoryOutranksIncome(t *testing.T) {
	user := domain.UserProfile{
		FinancialProfile: domain.FinancialProfile{MonthlyIncome: 80000},
		Preferences:      domain.Preferences{PreferredCategories: []string{"investments"}},
	}
	products := []domain.Product{
		{ID: "PRD-income", Category: "savings", Eligibility: domain.Eligibility{MinIncome: floatPtr(50000)}},
		{ID: "PRD-preferred", Category: "investments"},
	}

	ranked := RankByHeuristic(products, user)
	if ranked[0].ID != "PRD-preferred" {
		t.Fatalf("expected preferred-category product first, got %s", ranked[0].ID)
	}
}

func TestRankByHeuristicTiesKeepCatalogOrder(t *testing.T) {
	user := domain.UserProfile{}
	products := []domain.Product{
		{ID: "PRD-1", Category: "savings"},
		{ID: "PRD-2", Category: "loans"},
		{ID: "PRD-3", Category: "insurance"},
	}

	ranked := RankByHeuristic(products, user)
	for i, want := range []string{"PRD-1", "PRD-2", "PRD-3"} {
		if ranked[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, ranked[i].ID)
		}
	}
}

func TestRankByHeuristicDoesNotMutateInput(t *testing.T) {
	user := domain.UserProfile{
		Preferences: domain.Preferences{PreferredCategories: []string{"loans"}},
	}
	products := []domain.Product{
		{ID: "PRD-1", Category: "savings"},
		{ID: "PRD-2", Category: "loans"},
	}

	RankByHeuristic(products, user)
	if products[0].ID != "PRD-1" {
		t.Fatalf("input slice was reordered")
	}
}
