package intelligence

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/finpersona/backend/internal/advisor"
	"github.com/finpersona/backend/internal/domain"
	"github.com/finpersona/backend/internal/store"
)

const (
	// analysisWindow is how far back insight generation and anomaly
	// detection look.
	analysisWindow = 90 * 24 * time.Hour

	// predictionWindow is how far back recurring-expense grouping looks.
	predictionWindow = 180 * 24 * time.Hour
)

// Service runs the transaction-intelligence pipeline: insights, anomalies,
// predicted expenses, sentiment, and spending patterns.
type Service struct {
	store   store.Store
	advisor advisor.Advisor
	logger  *slog.Logger
	nowFn   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService constructs the intelligence service.
func NewService(st store.Store, adv advisor.Advisor, logger *slog.Logger) *Service {
	return &Service{
		store:   st,
		advisor: adv,
		logger:  logger,
		nowFn:   time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *Service) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// userLock returns the per-user mutex serializing read-modify-write cycles
// on that user's collections.
func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// AnalyzeSentiment runs sentiment analysis over the user's recent
// transactions and records the resulting financial-health label on the
// user document.
func (s *Service) AnalyzeSentiment(ctx context.Context, userID string) (domain.SentimentReport, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return domain.SentimentReport{}, err
	}

	transactions, err := s.store.GetRecentTransactions(ctx, userID, 50)
	if err != nil {
		s.logger.Warn("loading transactions for sentiment failed", "userId", userID, "error", err)
		transactions = nil
	}

	report := s.advisor.AnalyzeSentiment(ctx, transactions)

	if report.FinancialHealth != "" {
		if err := s.store.UpdateUserFields(ctx, userID, store.UserUpdate{FinancialHealth: &report.FinancialHealth}); err != nil {
			s.logger.Warn("recording financial health failed", "userId", userID, "error", err)
		}
	}
	return report, nil
}

// SpendingPatterns aggregates the user's expenses per category over the
// given number of days. The analysis is fully deterministic.
func (s *Service) SpendingPatterns(ctx context.Context, userID string, days int) (domain.SpendingReport, error) {
	if days <= 0 {
		days = 90
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return domain.SpendingReport{}, err
	}

	end := s.nowFn().UTC()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)
	transactions, err := s.store.GetTransactionsInRange(ctx, userID, start, end)
	if err != nil {
		return domain.SpendingReport{}, err
	}

	report := domain.SpendingReport{
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
	}

	type bucket struct {
		total     float64
		count     int
		firstHalf float64
		lastHalf  float64
	}
	buckets := make(map[string]*bucket)
	midpoint := start.Add(end.Sub(start) / 2)

	for _, txn := range transactions {
		if !txn.IsExpense() {
			continue
		}
		category := txn.Category
		if category == "" {
			category = "other"
		}
		b, ok := buckets[category]
		if !ok {
			b = &bucket{}
			buckets[category] = b
		}
		amount := -txn.Amount
		b.total += amount
		b.count++
		if txn.Timestamp.Before(midpoint) {
			b.firstHalf += amount
		} else {
			b.lastHalf += amount
		}
		report.TotalSpent += amount
	}

	for category, b := range buckets {
		pattern := domain.SpendingPattern{
			Category:           category,
			Total:              b.total,
			Count:              b.count,
			AverageTransaction: b.total / float64(b.count),
			TrendDirection:     trendDirection(b.firstHalf, b.lastHalf),
		}
		if report.TotalSpent > 0 {
			pattern.Percentage = 100 * b.total / report.TotalSpent
		}
		report.Patterns = append(report.Patterns, pattern)
	}
	sort.Slice(report.Patterns, func(i, j int) bool {
		if report.Patterns[i].Total != report.Patterns[j].Total {
			return report.Patterns[i].Total > report.Patterns[j].Total
		}
		return report.Patterns[i].Category < report.Patterns[j].Category
	})

	return report, nil
}

// trendDirection compares spend across the two halves of the window. Moves
// within 10% count as stable.
func trendDirection(firstHalf, lastHalf float64) string {
	if firstHalf == 0 {
		if lastHalf > 0 {
			return "increasing"
		}
		return "stable"
	}
	change := (lastHalf - firstHalf) / firstHalf
	switch {
	case change > 0.10:
		return "increasing"
	case change < -0.10:
		return "decreasing"
	default:
		return "stable"
	}
}

// MarkInsightRead flags an insight as read. Repeating the call is a no-op.
func (s *Service) MarkInsightRead(ctx context.Context, userID, insightID string) error {
	return s.updateInsight(ctx, userID, insightID, func(in *domain.Insight) {
		in.IsRead = true
	})
}

// RecordInsightAction records whether the user acted on an insight and
// marks it read as a side effect.
func (s *Service) RecordInsightAction(ctx context.Context, userID, insightID string, actedUpon bool) error {
	return s.updateInsight(ctx, userID, insightID, func(in *domain.Insight) {
		in.IsRead = true
		in.IsActedUpon = &actedUpon
	})
}

func (s *Service) updateInsight(ctx context.Context, userID, insightID string, apply func(*domain.Insight)) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	found := false
	insights := append([]domain.Insight(nil), user.Insights...)
	for i := range insights {
		if insights[i].ID == insightID {
			apply(&insights[i])
			found = true
			break
		}
	}
	if !found {
		return domain.ErrNotFound
	}
	return s.store.UpdateUserFields(ctx, userID, store.UserUpdate{Insights: &insights})
}

// AcknowledgeAnomaly marks an anomaly as seen. Repeating the call is a
// no-op; anomalies are never removed.
func (s *Service) AcknowledgeAnomaly(ctx context.Context, userID, anomalyID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	found := false
	anomalies := append([]domain.Anomaly(nil), user.Anomalies...)
	for i := range anomalies {
		if anomalies[i].ID == anomalyID {
			anomalies[i].IsAcknowledged = true
			found = true
			break
		}
	}
	if !found {
		return domain.ErrNotFound
	}
	return s.store.UpdateUserFields(ctx, userID, store.UserUpdate{Anomalies: &anomalies})
}
