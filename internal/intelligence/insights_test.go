package intelligence

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/finpersona/backend/internal/advisor"
	"github.com/finpersona/backend/internal/domain"
)

func TestMergeInsightsCapsAtMax(t *testing.T) {
	existing := make([]domain.Insight, 0, 5)
	for i := 0; i < 5; i++ {
		existing = append(existing, domain.Insight{
			ID:        fmt.Sprintf("OLD-%d", i),
			CreatedAt: testNow.Add(-time.Duration(i+1) * time.Hour),
			ExpiresAt: testNow.Add(24 * time.Hour),
		})
	}
	fresh := make([]domain.Insight, 0, 7)
	for i := 0; i < 7; i++ {
		fresh = append(fresh, domain.Insight{
			ID:        fmt.Sprintf("NEW-%d", i),
			CreatedAt: testNow,
			ExpiresAt: testNow.Add(24 * time.Hour),
		})
	}

	merged := MergeInsights(existing, fresh, testNow)
	if len(merged) != domain.MaxInsights {
		t.Fatalf("merged size = %d, want %d", len(merged), domain.MaxInsights)
	}

	// All 7 fresh insights survive; only the 3 newest old ones do.
	freshCount := 0
	for _, insight := range merged {
		if insight.CreatedAt.Equal(testNow) {
			freshCount++
		}
	}
	if freshCount != 7 {
		t.Fatalf("fresh insights kept = %d, want 7", freshCount)
	}
	for _, insight := range merged {
		if insight.ID == "OLD-3" || insight.ID == "OLD-4" {
			t.Fatalf("oldest insights should have been evicted, found %s", insight.ID)
		}
	}
}

func TestMergeInsightsDropsExpiredFirst(t *testing.T) {
	existing := []domain.Insight{
		{ID: "EXPIRED", CreatedAt: testNow.Add(-48 * time.Hour), ExpiresAt: testNow.Add(-time.Hour)},
		{ID: "ACTIVE", CreatedAt: testNow.Add(-24 * time.Hour), ExpiresAt: testNow.Add(time.Hour)},
	}
	fresh := []domain.Insight{
		{ID: "NEW", CreatedAt: testNow, ExpiresAt: testNow.Add(24 * time.Hour)},
	}

	merged := MergeInsights(existing, fresh, testNow)
	if len(merged) != 2 {
		t.Fatalf("merged size = %d, want 2", len(merged))
	}
	for _, insight := range merged {
		if insight.ID == "EXPIRED" {
			t.Fatalf("expired insight survived the merge")
		}
	}
	if merged[0].ID != "NEW" {
		t.Fatalf("expected newest first, got %s", merged[0].ID)
	}
}

func TestRefreshInsightsValidatesDrafts(t *testing.T) {
	adv := &stubAdvisor{insightDrafts: []advisor.InsightDraft{
		{Category: "savings", Description: "Automate a monthly transfer.", Importance: "high"},
		{Category: "", Description: "Review your subscriptions.", Importance: "bogus"},
		{Category: "debt", Description: "", Importance: "low"}, // dropped
	}}
	svc, mem := newTestService(adv)
	seedUser(mem)
	mem.AddTransaction(expense("T-1", 40, "groceries", 2))

	fresh, err := svc.RefreshInsights(context.Background(), "USR-1")
	if err != nil {
		t.Fatalf("RefreshInsights failed: %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("expected 2 valid insights, got %d", len(fresh))
	}

	first := fresh[0]
	if first.ID == "" {
		t.Fatalf("insight id not assigned")
	}
	if first.Importance != domain.ImportanceHigh {
		t.Fatalf("importance = %q", first.Importance)
	}
	if !first.CreatedAt.Equal(testNow) {
		t.Fatalf("createdAt not stamped")
	}
	// Generated insights always live 30 days, whatever their importance.
	if want := testNow.Add(30 * 24 * time.Hour); !first.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", first.ExpiresAt, want)
	}

	second := fresh[1]
	if second.Category != "general" {
		t.Fatalf("blank category should default to general, got %q", second.Category)
	}
	if second.Importance != domain.ImportanceMedium {
		t.Fatalf("unknown importance should default to medium, got %q", second.Importance)
	}

	user, err := mem.GetUser(context.Background(), "USR-1")
	if err != nil {
		t.Fatalf("loading user failed: %v", err)
	}
	if len(user.Insights) != 2 {
		t.Fatalf("persisted insights = %d, want 2", len(user.Insights))
	}
}

func TestRefreshInsightsNoTransactionsSkipsAdvisor(t *testing.T) {
	// With no history there is nothing to analyze; the deterministic
	// rules apply without an advisor call.
	adv := &stubAdvisor{}
	svc, mem := newTestService(adv)
	user := seedUser(mem)
	user.FinancialProfile.Debt = 50000 // > half of annual income (5000 * 12 / 2)
	mem.AddUser(user)

	fresh, err := svc.RefreshInsights(context.Background(), "USR-1")
	if err != nil {
		t.Fatalf("RefreshInsights failed: %v", err)
	}
	if adv.insightCalls != 0 {
		t.Fatalf("advisor must not be called without transaction history")
	}
	if len(fresh) != 3 {
		t.Fatalf("expected 3 fallback insights, got %d", len(fresh))
	}

	categories := map[string]bool{}
	for _, insight := range fresh {
		categories[insight.Category] = true
	}
	for _, want := range []string{"budgeting", "savings", "debt"} {
		if !categories[want] {
			t.Fatalf("missing fallback insight category %q", want)
		}
	}
}

func TestRefreshInsightsFallsBackToRules(t *testing.T) {
	// Advisor yields nothing despite available history; the
	// deterministic rules fill in.
	adv := &stubAdvisor{}
	svc, mem := newTestService(adv)
	seedUser(mem)
	mem.AddTransaction(expense("T-1", 40, "groceries", 2))

	fresh, err := svc.RefreshInsights(context.Background(), "USR-1")
	if err != nil {
		t.Fatalf("RefreshInsights failed: %v", err)
	}
	if adv.insightCalls != 1 {
		t.Fatalf("advisor calls = %d, want 1", adv.insightCalls)
	}
	if len(fresh) != 2 {
		t.Fatalf("expected 2 fallback insights, got %d", len(fresh))
	}
	categories := map[string]bool{}
	for _, insight := range fresh {
		categories[insight.Category] = true
	}
	if !categories["budgeting"] || !categories["savings"] {
		t.Fatalf("missing fallback categories, got %v", categories)
	}
}

func TestRefreshInsightsFallbackSkipsCoveredGoals(t *testing.T) {
	svc, mem := newTestService(&stubAdvisor{})
	user := seedUser(mem)
	user.FinancialGoals = []domain.FinancialGoal{{ID: "G-1", Type: "emergency_fund"}}
	mem.AddUser(user)

	fresh, err := svc.RefreshInsights(context.Background(), "USR-1")
	if err != nil {
		t.Fatalf("RefreshInsights failed: %v", err)
	}
	for _, insight := range fresh {
		if insight.Category == "savings" {
			t.Fatalf("emergency fund insight should be skipped when the goal exists")
		}
	}
}

func TestTransactionInsightsRules(t *testing.T) {
	svc, mem := newTestService(&stubAdvisor{})
	seedUser(mem) // monthly income 5000

	// Over 20% of monthly income.
	mem.AddTransaction(expense("T-big", 1500, "electronics", 2))
	// Subscription merchant.
	mem.AddTransaction(domain.Transaction{
		ID: "T-sub", UserID: "USR-1", Amount: -15.99, Category: "entertainment",
		Merchant: "Netflix", Timestamp: testNow.Add(-3 * 24 * time.Hour),
	})
	// Dining over the threshold across two transactions.
	mem.AddTransaction(expense("T-d1", 80, "dining", 4))
	mem.AddTransaction(expense("T-d2", 60, "dining", 6))

	fresh, err := svc.TransactionInsights(context.Background(), "USR-1")
	if err != nil {
		t.Fatalf("TransactionInsights failed: %v", err)
	}

	byCategory := map[string]domain.Insight{}
	for _, insight := range fresh {
		byCategory[insight.Category] = insight
	}

	large, ok := byCategory["spending"]
	if !ok {
		t.Fatalf("missing large-expense insight")
	}
	if large.Importance != domain.ImportanceHigh {
		t.Fatalf("large expense importance = %q", large.Importance)
	}
	if large.RelatedTransactionID != "T-big" {
		t.Fatalf("large expense not linked to transaction, got %q", large.RelatedTransactionID)
	}

	sub, ok := byCategory["subscriptions"]
	if !ok {
		t.Fatalf("missing subscription insight")
	}
	if sub.Importance != domain.ImportanceMedium {
		t.Fatalf("subscription importance = %q", sub.Importance)
	}

	dining, ok := byCategory["dining"]
	if !ok {
		t.Fatalf("missing dining insight")
	}
	if dining.Importance != domain.ImportanceLow {
		t.Fatalf("dining importance = %q", dining.Importance)
	}
}

func TestTransactionInsightsSubscriptionCategory(t *testing.T) {
	svc, mem := newTestService(&stubAdvisor{})
	seedUser(mem)

	// Categorized as a subscription without a recognized merchant.
	mem.AddTransaction(domain.Transaction{
		ID: "T-gym", UserID: "USR-1", Amount: -29.99, Category: "subscriptions",
		Merchant: "Local Gym", Timestamp: testNow.Add(-2 * 24 * time.Hour),
	})

	fresh, err := svc.TransactionInsights(context.Background(), "USR-1")
	if err != nil {
		t.Fatalf("TransactionInsights failed: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(fresh))
	}
	sub := fresh[0]
	if sub.Category != "subscriptions" {
		t.Fatalf("category = %q", sub.Category)
	}
	if !strings.Contains(sub.Description, "Local Gym") {
		t.Fatalf("description should name the merchant, got %q", sub.Description)
	}
}

func TestTransactionInsightsNoSignals(t *testing.T) {
	svc, mem := newTestService(&stubAdvisor{})
	seedUser(mem)
	mem.AddTransaction(expense("T-1", 20, "groceries", 2))

	fresh, err := svc.TransactionInsights(context.Background(), "USR-1")
	if err != nil {
		t.Fatalf("TransactionInsights failed: %v", err)
	}
	if len(fresh) != 0 {
		t.Fatalf("expected no insights, got %d", len(fresh))
	}
}
