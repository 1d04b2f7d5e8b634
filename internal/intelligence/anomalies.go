package intelligence

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/finpersona/backend/internal/advisor"
	"github.com/finpersona/backend/internal/domain"
	"github.com/finpersona/backend/internal/store"
)

// DetectAnomalies scans the user's recent expenses for unusual spending and
// appends any findings to the user's anomaly collection. With fewer than
// advisor.MinAnomalyTransactions expenses in the window, no advisor call is
// made and no anomalies are produced.
func (s *Service) DetectAnomalies(ctx context.Context, userID string) ([]domain.Anomaly, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	now := s.nowFn().UTC()
	transactions, err := s.store.GetTransactionsInRange(ctx, userID, now.Add(-analysisWindow), now)
	if err != nil {
		return nil, err
	}

	expenses := make([]domain.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		if txn.IsExpense() {
			expenses = append(expenses, txn)
		}
	}
	if len(expenses) < advisor.MinAnomalyTransactions {
		s.logger.Info("not enough expense history for anomaly detection",
			"userId", userID, "expenses", len(expenses))
		return nil, nil
	}

	drafts := s.advisor.DetectAnomalies(ctx, expenses)

	fresh := make([]domain.Anomaly, 0, len(drafts))
	for _, draft := range drafts {
		description := strings.TrimSpace(draft.Description)
		if description == "" {
			continue
		}
		category := strings.TrimSpace(draft.Category)
		if category == "" {
			category = "general"
		}
		severity := strings.ToLower(strings.TrimSpace(draft.Severity))
		switch severity {
		case domain.ImportanceHigh, domain.ImportanceMedium, domain.ImportanceLow:
		default:
			severity = domain.ImportanceMedium
		}
		fresh = append(fresh, domain.Anomaly{
			ID:            uuid.NewString(),
			Category:      category,
			Description:   description,
			Severity:      severity,
			Amount:        draft.Amount,
			DetectionDate: now,
		})
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Anomalies are append-only; nothing is evicted.
	anomalies := append(append([]domain.Anomaly(nil), user.Anomalies...), fresh...)
	if err := s.store.UpdateUserFields(ctx, userID, store.UserUpdate{Anomalies: &anomalies}); err != nil {
		return nil, err
	}

	s.logger.Info("anomalies detected", "userId", userID, "new", len(fresh), "total", len(anomalies))
	return fresh, nil
}
