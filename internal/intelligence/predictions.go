package intelligence

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finpersona/backend/internal/advisor"
	"github.com/finpersona/backend/internal/domain"
	"github.com/finpersona/backend/internal/store"
)

// minGroupOccurrences is how many times an expense must repeat before its
// group is submitted to the predictor.
const minGroupOccurrences = 2

// minPredictionConfidence drops forecasts the predictor itself is not
// confident about.
const minPredictionConfidence = 0.6

// PredictExpenses forecasts upcoming expenses from recurring patterns in
// the user's history. The user's prediction collection is replaced
// wholesale; stale forecasts never survive a refresh.
func (s *Service) PredictExpenses(ctx context.Context, userID string) ([]domain.PredictedExpense, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	now := s.nowFn().UTC()
	transactions, err := s.store.GetTransactionsInRange(ctx, userID, now.Add(-predictionWindow), now)
	if err != nil {
		return nil, err
	}

	groups := recurringGroups(transactions)

	var predictions []domain.PredictedExpense
	if len(groups) > 0 {
		drafts := s.advisor.PredictExpenses(ctx, groups)
		predictions = s.validateExpenseDrafts(userID, drafts)
	} else {
		s.logger.Info("no recurring expense groups found", "userId", userID)
	}
	if predictions == nil {
		predictions = []domain.PredictedExpense{}
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.UpdateUserFields(ctx, userID, store.UserUpdate{PredictedExpenses: &predictions}); err != nil {
		return nil, err
	}

	s.logger.Info("predicted expenses refreshed", "userId", userID, "count", len(predictions))
	return predictions, nil
}

// recurringGroups buckets expenses by (category, description) and keeps
// the buckets that repeat. Transactions without a description fall back to
// the merchant name; expenses with neither are ignored.
func recurringGroups(transactions []domain.Transaction) []advisor.RecurringGroup {
	type key struct {
		category    string
		description string
	}
	buckets := make(map[key]*advisor.RecurringGroup)

	for _, txn := range transactions {
		if !txn.IsExpense() {
			continue
		}
		description := strings.TrimSpace(txn.Description)
		if description == "" {
			description = strings.TrimSpace(txn.Merchant)
		}
		if description == "" {
			continue
		}
		k := key{category: txn.Category, description: strings.ToLower(description)}
		group, ok := buckets[k]
		if !ok {
			group = &advisor.RecurringGroup{Category: txn.Category, Description: description}
			buckets[k] = group
		}
		group.Amounts = append(group.Amounts, -txn.Amount)
		group.Days = append(group.Days, txn.Timestamp.Day())
		group.Dates = append(group.Dates, txn.Timestamp)
	}

	var groups []advisor.RecurringGroup
	for _, group := range buckets {
		if group.Occurrences() >= minGroupOccurrences {
			groups = append(groups, *group)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Category != groups[j].Category {
			return groups[i].Category < groups[j].Category
		}
		return groups[i].Description < groups[j].Description
	})
	return groups
}

// validateExpenseDrafts converts predictor drafts to stored forecasts,
// dropping any with a missing description, a non-positive amount, an
// unparseable due date, or confidence below the floor.
func (s *Service) validateExpenseDrafts(userID string, drafts []advisor.ExpenseDraft) []domain.PredictedExpense {
	var out []domain.PredictedExpense
	for _, draft := range drafts {
		description := strings.TrimSpace(draft.Description)
		if description == "" || draft.Amount <= 0 {
			continue
		}
		if draft.Confidence < minPredictionConfidence {
			continue
		}
		dueDate, ok := parseDueDate(draft.DueDate)
		if !ok {
			s.logger.Warn("prediction dropped, bad due date",
				"userId", userID, "description", description, "dueDate", draft.DueDate)
			continue
		}
		category := strings.TrimSpace(draft.Category)
		if category == "" {
			category = "other"
		}
		out = append(out, domain.PredictedExpense{
			ID:          uuid.NewString(),
			Description: description,
			Amount:      draft.Amount,
			Category:    category,
			DueDate:     dueDate,
			Confidence:  draft.Confidence,
			IsRecurring: draft.IsRecurring,
		})
	}
	return out
}

func parseDueDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
