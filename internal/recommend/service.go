package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finpersona/backend/internal/advisor"
	"github.com/finpersona/backend/internal/domain"
	"github.com/finpersona/backend/internal/store"
)

const (
	// AcceptanceThreshold is the minimum advisor score required to persist
	// a recommendation.
	AcceptanceThreshold = 60

	// recommendationTTL is how long a recommendation stays active.
	recommendationTTL = 30 * 24 * time.Hour

	// historyContextLimit bounds the transaction history passed to the
	// advisor as context.
	historyContextLimit = 100

	defaultConcurrency = 3
)

// Service orchestrates candidate selection, advisor scoring, and the
// recommendation lifecycle.
type Service struct {
	store       store.Store
	advisor     advisor.Advisor
	logger      *slog.Logger
	nowFn       func() time.Time
	concurrency int
}

// NewService constructs the recommendation orchestrator.
func NewService(st store.Store, adv advisor.Advisor, logger *slog.Logger) *Service {
	return &Service{
		store:       st,
		advisor:     adv,
		logger:      logger,
		nowFn:       time.Now,
		concurrency: defaultConcurrency,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *Service) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// WithConcurrency caps how many advisor calls run in flight while scoring
// candidates.
func (s *Service) WithConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

type candidateResult struct {
	rank    int
	product domain.Product
	advice  advisor.ProductAdvice
}

// Generate produces up to count recommendations for the user. Candidates
// come from eligibility filtering and heuristic pre-ranking; at most
// 2×count candidates are scored by the advisor, and only scores at or above
// AcceptanceThreshold are persisted. Per-candidate failures are absorbed.
func (s *Service) Generate(ctx context.Context, userID string, count int) ([]domain.Recommendation, error) {
	if count <= 0 {
		count = 3
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.store.GetRecentTransactions(ctx, userID, historyContextLimit)
	if err != nil {
		s.logger.Warn("loading transaction context failed", "userId", userID, "error", err)
		history = nil
	}

	active, err := s.store.GetActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load product catalog: %w", err)
	}
	if len(active) == 0 {
		s.logger.Warn("product catalog is empty", "userId", userID)
		return []domain.Recommendation{}, nil
	}

	candidates := EligibleProducts(user, active)
	if len(candidates) == 0 {
		// Documented policy: an empty eligible set falls back to the full
		// active catalog rather than returning nothing.
		s.logger.Info("no eligible products, using full catalog", "userId", userID, "catalogSize", len(active))
		candidates = active
	}

	ranked := RankByHeuristic(candidates, user)
	if max := 2 * count; len(ranked) > max {
		ranked = ranked[:max]
	}

	results := s.scoreCandidates(ctx, user, ranked, history)

	now := s.nowFn().UTC()
	accepted := make([]domain.Recommendation, 0, count)
	for _, res := range results {
		if len(accepted) >= count {
			break
		}
		if res.advice.Text == "" {
			s.logger.Warn("candidate skipped, advisor returned no content",
				"userId", userID, "productId", res.product.ID)
			continue
		}
		if res.advice.Score < AcceptanceThreshold {
			s.logger.Info("candidate skipped below acceptance threshold",
				"userId", userID, "productId", res.product.ID, "score", res.advice.Score)
			continue
		}

		rec := domain.Recommendation{
			ID:              uuid.NewString(),
			UserID:          userID,
			ProductID:       res.product.ID,
			ProductName:     res.product.Name,
			ProductCategory: res.product.Category,
			Score:           res.advice.Score,
			Reason:          res.advice.Text,
			Features:        append([]string(nil), res.product.Features...),
			Timestamp:       now,
			ExpiresAt:       now.Add(recommendationTTL),
		}
		if _, err := s.store.CreateRecommendation(ctx, rec); err != nil {
			s.logger.Error("persisting recommendation failed",
				"userId", userID, "productId", res.product.ID, "error", err)
			continue
		}
		accepted = append(accepted, rec)
	}

	s.logger.Info("recommendations generated",
		"userId", userID, "requested", count, "accepted", len(accepted), "candidates", len(ranked))
	return accepted, nil
}

// scoreCandidates evaluates candidates with a bounded number of advisor
// calls in flight. Results come back ordered by original rank so acceptance
// stays deterministic regardless of call completion order.
func (s *Service) scoreCandidates(ctx context.Context, user domain.UserProfile, ranked []domain.Product, history []domain.Transaction) []candidateResult {
	results := make([]candidateResult, len(ranked))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for i, product := range ranked {
		wg.Add(1)
		go func(rank int, product domain.Product) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				results[rank] = candidateResult{rank: rank, product: product}
				return
			}
			advice := s.advisor.ExplainProduct(ctx, user, product, history)
			results[rank] = candidateResult{rank: rank, product: product, advice: advice}
		}(i, product)
	}
	wg.Wait()

	return results
}

// RefreshContent regenerates a recommendation's reason and score, preserving
// its identity and tracking flags.
func (s *Service) RefreshContent(ctx context.Context, recommendationID string) error {
	rec, err := s.store.GetRecommendation(ctx, recommendationID)
	if err != nil {
		return err
	}
	user, err := s.store.GetUser(ctx, rec.UserID)
	if err != nil {
		return err
	}
	product, err := s.store.GetProductByID(ctx, rec.ProductID)
	if err != nil {
		return err
	}

	history, err := s.store.GetRecentTransactions(ctx, rec.UserID, 50)
	if err != nil {
		s.logger.Warn("loading transaction context failed", "userId", rec.UserID, "error", err)
		history = nil
	}

	advice := s.advisor.ExplainProduct(ctx, user, product, history)
	if advice.Text == "" {
		return fmt.Errorf("advisor returned no content for recommendation %s", recommendationID)
	}

	now := s.nowFn().UTC()
	return s.store.UpdateRecommendation(ctx, recommendationID, store.RecommendationUpdate{
		Reason:      &advice.Text,
		Score:       &advice.Score,
		RefreshedAt: &now,
	})
}

// Comparison detail keys pulled from the product catalog.
var comparisonPoints = []struct {
	name        string
	description string
	detailKey   string
}{
	{"Interest Rate", "Annual interest rate or yield", "interest_rate"},
	{"Fees", "Monthly or annual fees", "monthly_fee"},
	{"Risk Level", "Investment risk level", "risk_level"},
}

// Compare joins two or more of one user's recommendations with product
// detail into a structured comparison.
func (s *Service) Compare(ctx context.Context, recommendationIDs []string) (domain.Comparison, error) {
	if len(recommendationIDs) < 2 {
		return domain.Comparison{}, fmt.Errorf("%w: at least two recommendations are required", domain.ErrValidation)
	}

	var entries []domain.ComparisonEntry
	userID := ""
	for _, id := range recommendationIDs {
		rec, err := s.store.GetRecommendation(ctx, id)
		if err != nil {
			s.logger.Warn("comparison skipped missing recommendation", "recommendationId", id, "error", err)
			continue
		}
		if userID == "" {
			userID = rec.UserID
		} else if userID != rec.UserID {
			return domain.Comparison{}, fmt.Errorf("%w: all recommendations must belong to the same user", domain.ErrValidation)
		}

		product, err := s.store.GetProductByID(ctx, rec.ProductID)
		if err != nil {
			s.logger.Warn("comparison skipped missing product", "productId", rec.ProductID, "error", err)
			continue
		}

		entries = append(entries, domain.ComparisonEntry{
			RecommendationID: rec.ID,
			ProductID:        product.ID,
			ProductName:      product.Name,
			ProductCategory:  product.Category,
			Score:            rec.Score,
			Features:         rec.Features,
			Description:      product.Description,
			Details:          product.Details,
		})
	}
	if len(entries) < 2 {
		return domain.Comparison{}, fmt.Errorf("%w: not enough valid recommendations for comparison", domain.ErrValidation)
	}

	points := make([]domain.ComparisonPoint, 0, len(comparisonPoints))
	for _, cp := range comparisonPoints {
		values := make(map[string]string, len(entries))
		for _, entry := range entries {
			value := "N/A"
			if v, ok := entry.Details[cp.detailKey]; ok && v != "" {
				value = v
			}
			values[entry.RecommendationID] = value
		}
		points = append(points, domain.ComparisonPoint{
			Name:        cp.name,
			Description: cp.description,
			Values:      values,
		})
	}

	return domain.Comparison{
		Entries:   entries,
		Points:    points,
		Narrative: buildComparisonNarrative(entries),
	}, nil
}

func buildComparisonNarrative(entries []domain.ComparisonEntry) string {
	best := entries[0]
	for _, entry := range entries[1:] {
		if entry.Score > best.Score {
			best = entry
		}
	}
	return fmt.Sprintf(
		"Based on your financial profile, %s is the strongest match of the %d products compared. "+
			"Review the comparison points to weigh fees and risk against your goals.",
		best.ProductName, len(entries))
}

// ListForUser returns the user's recommendations sorted by score. Expired
// entries are filtered at read time unless includeExpired is set.
func (s *Service) ListForUser(ctx context.Context, userID string, includeExpired bool, limit int) ([]domain.Recommendation, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.ListUserRecommendations(ctx, userID, includeExpired, limit)
}

// MarkViewed flags a recommendation as seen by the user.
func (s *Service) MarkViewed(ctx context.Context, recommendationID string) error {
	viewed := true
	return s.store.UpdateRecommendation(ctx, recommendationID, store.RecommendationUpdate{IsViewed: &viewed})
}

// MarkClicked flags a recommendation as clicked. Click tracking is
// independent of qualitative feedback; neither supersedes the other.
func (s *Service) MarkClicked(ctx context.Context, recommendationID string) error {
	clicked := true
	return s.store.UpdateRecommendation(ctx, recommendationID, store.RecommendationUpdate{IsClicked: &clicked})
}

// RecordFeedback stores helpfulness feedback with an optional free-text
// comment and stamps the feedback date.
func (s *Service) RecordFeedback(ctx context.Context, recommendationID string, isHelpful bool, feedbackText string) error {
	now := s.nowFn().UTC()
	return s.store.UpdateRecommendation(ctx, recommendationID, store.RecommendationUpdate{
		Feedback: &domain.RecommendationFeedback{
			IsHelpful:    &isHelpful,
			FeedbackText: feedbackText,
			FeedbackDate: &now,
		},
	})
}

// RecordConversion stores whether the user acted on the recommendation and
// stamps the conversion date.
func (s *Service) RecordConversion(ctx context.Context, recommendationID string, isConverted bool) error {
	now := s.nowFn().UTC()
	return s.store.UpdateRecommendation(ctx, recommendationID, store.RecommendationUpdate{
		Conversion: &domain.RecommendationConversion{
			IsConverted:    isConverted,
			ConversionDate: &now,
		},
	})
}
