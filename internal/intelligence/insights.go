package intelligence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finpersona/backend/internal/advisor"
	"github.com/finpersona/backend/internal/domain"
	"github.com/finpersona/backend/internal/store"
)

// Insight lifetimes. Generated insights carry a flat 30-day lifetime;
// the per-transaction rule insights expire by importance.
const (
	generatedInsightTTL = 30 * 24 * time.Hour

	highInsightTTL   = 7 * 24 * time.Hour
	mediumInsightTTL = 30 * 24 * time.Hour
	lowInsightTTL    = 14 * 24 * time.Hour
)

// RefreshInsights regenerates the user's insight collection from recent
// transaction activity. New insights are merged into the existing
// collection: expired entries are dropped first, then the merged set is
// capped at domain.MaxInsights newest-first.
func (s *Service) RefreshInsights(ctx context.Context, userID string) ([]domain.Insight, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.nowFn().UTC()
	transactions, err := s.store.GetTransactionsInRange(ctx, userID, now.Add(-analysisWindow), now)
	if err != nil {
		s.logger.Warn("loading transactions for insights failed", "userId", userID, "error", err)
		transactions = nil
	}

	// Without transaction history there is nothing for the advisor to
	// analyze; the deterministic rules cover that case directly.
	var drafts []advisor.InsightDraft
	if len(transactions) == 0 {
		drafts = ruleBasedDrafts(user)
	} else {
		drafts = s.advisor.GenerateInsights(ctx, user, transactions)
		if len(drafts) == 0 {
			drafts = ruleBasedDrafts(user)
		}
	}

	fresh := make([]domain.Insight, 0, len(drafts))
	for _, draft := range drafts {
		insight, ok := s.validateDraft(draft, now)
		if !ok {
			s.logger.Warn("insight draft dropped", "userId", userID, "category", draft.Category)
			continue
		}
		fresh = append(fresh, insight)
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	// Reload under the lock so a concurrent read/act update is not lost.
	user, err = s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	merged := MergeInsights(user.Insights, fresh, now)
	if err := s.store.UpdateUserFields(ctx, userID, store.UserUpdate{Insights: &merged}); err != nil {
		return nil, err
	}

	s.logger.Info("insights refreshed", "userId", userID, "new", len(fresh), "total", len(merged))
	return fresh, nil
}

// validateDraft turns an advisor draft into a stored insight, or reports
// that the draft is unusable. A missing description is the only fatal
// defect; category and importance fall back to defaults.
func (s *Service) validateDraft(draft advisor.InsightDraft, now time.Time) (domain.Insight, bool) {
	description := strings.TrimSpace(draft.Description)
	if description == "" {
		return domain.Insight{}, false
	}

	category := strings.TrimSpace(draft.Category)
	if category == "" {
		category = "general"
	}

	importance := strings.ToLower(strings.TrimSpace(draft.Importance))
	switch importance {
	case domain.ImportanceHigh, domain.ImportanceMedium, domain.ImportanceLow:
	default:
		importance = domain.ImportanceMedium
	}

	return domain.Insight{
		ID:          uuid.NewString(),
		Category:    category,
		Description: description,
		Importance:  importance,
		CreatedAt:   now,
		ExpiresAt:   now.Add(generatedInsightTTL),
	}, true
}

// MergeInsights drops expired entries from the existing collection, appends
// the fresh ones, and caps the result at domain.MaxInsights keeping the
// newest by creation time.
func MergeInsights(existing, fresh []domain.Insight, now time.Time) []domain.Insight {
	merged := make([]domain.Insight, 0, len(existing)+len(fresh))
	for _, insight := range existing {
		if insight.Active(now) {
			merged = append(merged, insight)
		}
	}
	merged = append(merged, fresh...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	if len(merged) > domain.MaxInsights {
		merged = merged[:domain.MaxInsights]
	}
	return merged
}

// ruleBasedDrafts produces the deterministic fallback insights used when
// the user has no recent transactions or the advisor yields nothing usable.
func ruleBasedDrafts(user domain.UserProfile) []advisor.InsightDraft {
	drafts := []advisor.InsightDraft{{
		Category:    "budgeting",
		Description: "Track your spending regularly to stay on top of your budget and spot changes early.",
		Importance:  domain.ImportanceMedium,
	}}

	if !user.HasGoalType("emergency_fund") {
		drafts = append(drafts, advisor.InsightDraft{
			Category:    "savings",
			Description: "You have no emergency fund goal. Aim to set aside three to six months of expenses.",
			Importance:  domain.ImportanceHigh,
		})
	}

	fp := user.FinancialProfile
	if fp.Debt > 0 && fp.Debt > 0.5*12*fp.MonthlyIncome {
		drafts = append(drafts, advisor.InsightDraft{
			Category:    "debt",
			Description: "Your debt is high relative to your annual income. Consider prioritizing repayment of high-interest balances.",
			Importance:  domain.ImportanceHigh,
		})
	}

	return drafts
}

// Subscription merchants recognized by the deterministic transaction rules.
var subscriptionMerchants = []string{"netflix", "spotify", "hulu", "disney", "apple", "amazon prime"}

// subscriptionMatch reports whether the transaction looks like a recurring
// subscription, either by known merchant or by a subscription category. It
// returns a dedup key and the display label for the insight text.
func subscriptionMatch(txn domain.Transaction) (key, label string) {
	merchant := strings.ToLower(txn.Merchant)
	for _, name := range subscriptionMerchants {
		if strings.Contains(merchant, name) {
			return name, txn.Merchant
		}
	}
	if strings.Contains(strings.ToLower(txn.Category), "subscription") {
		label = txn.Merchant
		if label == "" {
			label = txn.Description
		}
		if label == "" {
			return "", ""
		}
		return strings.ToLower(label), label
	}
	return "", ""
}

// TransactionInsights derives rule-based insights from the user's recent
// transactions without any advisor call, then merges them into the insight
// collection through the same cap-and-evict path as generated insights.
func (s *Service) TransactionInsights(ctx context.Context, userID string) ([]domain.Insight, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	transactions, err := s.store.GetRecentTransactions(ctx, userID, 100)
	if err != nil {
		return nil, err
	}

	now := s.nowFn().UTC()
	var fresh []domain.Insight

	income := user.FinancialProfile.MonthlyIncome
	diningTotal := 0.0
	seenSubscription := map[string]bool{}

	for _, txn := range transactions {
		if !txn.IsExpense() {
			continue
		}
		amount := -txn.Amount

		if income > 0 && amount > 0.20*income {
			fresh = append(fresh, domain.Insight{
				ID:       uuid.NewString(),
				Category: "spending",
				Description: "A recent " + txn.Category + " payment of " + formatAmount(amount) +
					" was over 20% of your monthly income.",
				Importance:           domain.ImportanceHigh,
				CreatedAt:            now,
				ExpiresAt:            now.Add(highInsightTTL),
				RelatedTransactionID: txn.ID,
			})
		}

		if key, label := subscriptionMatch(txn); key != "" && !seenSubscription[key] {
			seenSubscription[key] = true
			fresh = append(fresh, domain.Insight{
				ID:       uuid.NewString(),
				Category: "subscriptions",
				Description: "You have a recurring subscription with " + label +
					". Review whether you still use it.",
				Importance:           domain.ImportanceMedium,
				CreatedAt:            now,
				ExpiresAt:            now.Add(mediumInsightTTL),
				RelatedTransactionID: txn.ID,
			})
		}

		if txn.Category == "dining" {
			diningTotal += amount
		}
	}

	if diningTotal > 100 {
		fresh = append(fresh, domain.Insight{
			ID:          uuid.NewString(),
			Category:    "dining",
			Description: "You spent " + formatAmount(diningTotal) + " on dining recently. Cooking at home more often could free up savings.",
			Importance:  domain.ImportanceLow,
			CreatedAt:   now,
			ExpiresAt:   now.Add(lowInsightTTL),
		})
	}

	if len(fresh) == 0 {
		return nil, nil
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err = s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	merged := MergeInsights(user.Insights, fresh, now)
	if err := s.store.UpdateUserFields(ctx, userID, store.UserUpdate{Insights: &merged}); err != nil {
		return nil, err
	}
	return fresh, nil
}

func formatAmount(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}
