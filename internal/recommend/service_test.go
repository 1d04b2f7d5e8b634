package recommend

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/finpersona/backend/internal/advisor"
	"github.com/finpersona/backend/internal/domain"
	"github.com/finpersona/backend/internal/logging"
	"github.com/finpersona/backend/internal/store"
)

// stubAdvisor scores products from a fixed table and records which products
// were evaluated.
type stubAdvisor struct {
	scores    map[string]int
	evaluated []string
	adviseErr error
}

func (s *stubAdvisor) ExplainProduct(_ context.Context, _ domain.UserProfile, product domain.Product, _ []domain.Transaction) advisor.ProductAdvice {
	s.evaluated = append(s.evaluated, product.ID)
	score, ok := s.scores[product.ID]
	if !ok {
		score = advisor.DefaultScore
	}
	return advisor.ProductAdvice{Text: "A good fit for your profile.", Score: score}
}

func (s *stubAdvisor) AnalyzeSentiment(_ context.Context, _ []domain.Transaction) domain.SentimentReport {
	return advisor.NeutralSentiment("")
}

func (s *stubAdvisor) DetectAnomalies(context.Context, []domain.Transaction) []advisor.AnomalyDraft {
	return nil
}

func (s *stubAdvisor) GenerateInsights(context.Context, domain.UserProfile, []domain.Transaction) []advisor.InsightDraft {
	return nil
}

func (s *stubAdvisor) PredictExpenses(context.Context, []advisor.RecurringGroup) []advisor.ExpenseDraft {
	return nil
}

func (s *stubAdvisor) Advise(context.Context, domain.UserProfile, string, []domain.Transaction, []domain.ChatMessage) (string, error) {
	if s.adviseErr != nil {
		return "", s.adviseErr
	}
	return "advice", nil
}

func testLogger() *slog.Logger {
	return logging.Discard()
}

func seedService(t *testing.T, adv advisor.Advisor) (*Service, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	mem.AddUser(baseUser())
	svc := NewService(mem, adv, testLogger())
	svc.WithConcurrency(1)
	return svc, mem
}

func TestGenerateReturnsNotFoundForMissingUser(t *testing.T) {
	svc, _ := seedService(t, &stubAdvisor{})

	_, err := svc.Generate(context.Background(), "USR-missing", 3)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGenerateNeverPersistsBelowThreshold(t *testing.T) {
	adv := &stubAdvisor{scores: map[string]int{
		"PRD-good": 85,
		"PRD-bad":  45,
	}}
	svc, mem := seedService(t, adv)
	mem.AddProduct(domain.Product{ID: "PRD-good", Name: "Good", Category: "savings", IsActive: true})
	mem.AddProduct(domain.Product{ID: "PRD-bad", Name: "Bad", Category: "loans", IsActive: true})

	recs, err := svc.Generate(context.Background(), "USR-1", 3)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].ProductID != "PRD-good" {
		t.Fatalf("expected PRD-good, got %s", recs[0].ProductID)
	}

	stored, err := mem.ListUserRecommendations(context.Background(), "USR-1", true, 0)
	if err != nil {
		t.Fatalf("listing recommendations failed: %v", err)
	}
	for _, rec := range stored {
		if rec.Score < AcceptanceThreshold {
			t.Fatalf("recommendation %s persisted with score %d below threshold", rec.ID, rec.Score)
		}
	}
}

func TestGenerateThresholdBoundary(t *testing.T) {
	adv := &stubAdvisor{scores: map[string]int{"PRD-edge": AcceptanceThreshold}}
	svc, mem := seedService(t, adv)
	mem.AddProduct(domain.Product{ID: "PRD-edge", Name: "Edge", Category: "savings", IsActive: true})

	recs, err := svc.Generate(context.Background(), "USR-1", 3)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("score exactly at threshold should be accepted, got %d recommendations", len(recs))
	}
}

func TestGenerateEvaluatesAtMostTwiceCount(t *testing.T) {
	adv := &stubAdvisor{scores: map[string]int{}}
	svc, mem := seedService(t, adv)
	for _, id := range []string{"PRD-1", "PRD-2", "PRD-3", "PRD-4", "PRD-5", "PRD-6"} {
		mem.AddProduct(domain.Product{ID: id, Name: id, Category: "savings", IsActive: true})
	}

	if _, err := svc.Generate(context.Background(), "USR-1", 2); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(adv.evaluated) != 4 {
		t.Fatalf("expected 4 advisor calls for count=2, got %d", len(adv.evaluated))
	}
}

func TestGenerateTruncatesToCount(t *testing.T) {
	adv := &stubAdvisor{scores: map[string]int{}}
	svc, mem := seedService(t, adv)
	for _, id := range []string{"PRD-1", "PRD-2", "PRD-3", "PRD-4"} {
		mem.AddProduct(domain.Product{ID: id, Name: id, Category: "savings", IsActive: true})
	}

	recs, err := svc.Generate(context.Background(), "USR-1", 2)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(recs))
	}
}

func TestGenerateFallsBackToFullCatalog(t *testing.T) {
	adv := &stubAdvisor{scores: map[string]int{}}
	svc, mem := seedService(t, adv)
	// Risk mismatch excludes the product from the eligible set.
	mem.AddProduct(domain.Product{
		ID: "PRD-1", Name: "Aggressive Fund", Category: "investments", IsActive: true,
		Eligibility: domain.Eligibility{RiskLevel: "aggressive"},
	})

	recs, err := svc.Generate(context.Background(), "USR-1", 3)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected fallback to full catalog to yield 1 recommendation, got %d", len(recs))
	}
}

func TestGenerateEmptyCatalog(t *testing.T) {
	svc, _ := seedService(t, &stubAdvisor{})

	recs, err := svc.Generate(context.Background(), "USR-1", 3)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty result, got %d", len(recs))
	}
}

func TestGenerateStampsExpiry(t *testing.T) {
	adv := &stubAdvisor{scores: map[string]int{}}
	svc, mem := seedService(t, adv)
	mem.AddProduct(domain.Product{ID: "PRD-1", Name: "Fund", Category: "savings", IsActive: true})

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	recs, err := svc.Generate(context.Background(), "USR-1", 1)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	rec := recs[0]
	if !rec.Timestamp.Equal(now) {
		t.Fatalf("timestamp = %v, want %v", rec.Timestamp, now)
	}
	if want := now.Add(30 * 24 * time.Hour); !rec.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", rec.ExpiresAt, want)
	}
	if rec.IsViewed || rec.IsClicked {
		t.Fatalf("new recommendation should have tracking flags cleared")
	}
}

func TestRefreshContentPreservesIdentityAndTracking(t *testing.T) {
	adv := &stubAdvisor{scores: map[string]int{"PRD-1": 90}}
	svc, mem := seedService(t, adv)
	mem.AddProduct(domain.Product{ID: "PRD-1", Name: "Fund", Category: "savings", IsActive: true})

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	seed := domain.Recommendation{
		ID:        "REC-1",
		UserID:    "USR-1",
		ProductID: "PRD-1",
		Score:     70,
		Reason:    "old reason",
		Timestamp: now.Add(-time.Hour),
		ExpiresAt: now.Add(29 * 24 * time.Hour),
		IsViewed:  true,
		IsClicked: true,
	}
	if _, err := mem.CreateRecommendation(context.Background(), seed); err != nil {
		t.Fatalf("seeding recommendation failed: %v", err)
	}

	if err := svc.RefreshContent(context.Background(), "REC-1"); err != nil {
		t.Fatalf("RefreshContent failed: %v", err)
	}

	rec, err := mem.GetRecommendation(context.Background(), "REC-1")
	if err != nil {
		t.Fatalf("loading recommendation failed: %v", err)
	}
	if rec.ID != "REC-1" {
		t.Fatalf("identity changed: %s", rec.ID)
	}
	if rec.Score != 90 || rec.Reason == "old reason" {
		t.Fatalf("content was not refreshed: score=%d reason=%q", rec.Score, rec.Reason)
	}
	if !rec.IsViewed || !rec.IsClicked {
		t.Fatalf("tracking flags were reset")
	}
	if rec.RefreshedAt == nil || !rec.RefreshedAt.Equal(now) {
		t.Fatalf("refreshedAt not stamped: %v", rec.RefreshedAt)
	}
}

func TestRefreshContentMissingRecommendation(t *testing.T) {
	svc, _ := seedService(t, &stubAdvisor{})

	err := svc.RefreshContent(context.Background(), "REC-missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompareRequiresTwoRecommendations(t *testing.T) {
	svc, _ := seedService(t, &stubAdvisor{})

	_, err := svc.Compare(context.Background(), []string{"REC-1"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCompareRejectsMixedUsers(t *testing.T) {
	svc, mem := seedService(t, &stubAdvisor{})
	mem.AddProduct(domain.Product{ID: "PRD-1", Name: "Fund", IsActive: true})
	for _, rec := range []domain.Recommendation{
		{ID: "REC-1", UserID: "USR-1", ProductID: "PRD-1", ExpiresAt: time.Now().Add(time.Hour)},
		{ID: "REC-2", UserID: "USR-2", ProductID: "PRD-1", ExpiresAt: time.Now().Add(time.Hour)},
	} {
		if _, err := mem.CreateRecommendation(context.Background(), rec); err != nil {
			t.Fatalf("seeding failed: %v", err)
		}
	}

	_, err := svc.Compare(context.Background(), []string{"REC-1", "REC-2"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCompareBuildsPointsFromDetails(t *testing.T) {
	svc, mem := seedService(t, &stubAdvisor{})
	mem.AddProduct(domain.Product{
		ID: "PRD-1", Name: "Saver", IsActive: true,
		Details: map[string]string{"interest_rate": "4.5%", "monthly_fee": "$0"},
	})
	mem.AddProduct(domain.Product{
		ID: "PRD-2", Name: "Growth", IsActive: true,
		Details: map[string]string{"risk_level": "high"},
	})
	for _, rec := range []domain.Recommendation{
		{ID: "REC-1", UserID: "USR-1", ProductID: "PRD-1", Score: 80, ExpiresAt: time.Now().Add(time.Hour)},
		{ID: "REC-2", UserID: "USR-1", ProductID: "PRD-2", Score: 90, ExpiresAt: time.Now().Add(time.Hour)},
	} {
		if _, err := mem.CreateRecommendation(context.Background(), rec); err != nil {
			t.Fatalf("seeding failed: %v", err)
		}
	}

	comparison, err := svc.Compare(context.Background(), []string{"REC-1", "REC-2"})
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(comparison.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(comparison.Entries))
	}
	if len(comparison.Points) != 3 {
		t.Fatalf("expected 3 comparison points, got %d", len(comparison.Points))
	}

	var interest domain.ComparisonPoint
	for _, point := range comparison.Points {
		if point.Name == "Interest Rate" {
			interest = point
		}
	}
	if interest.Values["REC-1"] != "4.5%" {
		t.Fatalf("REC-1 interest = %q, want 4.5%%", interest.Values["REC-1"])
	}
	if interest.Values["REC-2"] != "N/A" {
		t.Fatalf("missing detail should read N/A, got %q", interest.Values["REC-2"])
	}
	if comparison.Narrative == "" {
		t.Fatalf("expected a narrative")
	}
}

func TestLifecycleUpdatesAreIndependent(t *testing.T) {
	svc, mem := seedService(t, &stubAdvisor{})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	seed := domain.Recommendation{ID: "REC-1", UserID: "USR-1", ProductID: "PRD-1", ExpiresAt: now.Add(time.Hour)}
	if _, err := mem.CreateRecommendation(context.Background(), seed); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	if err := svc.MarkViewed(context.Background(), "REC-1"); err != nil {
		t.Fatalf("MarkViewed failed: %v", err)
	}
	if err := svc.MarkClicked(context.Background(), "REC-1"); err != nil {
		t.Fatalf("MarkClicked failed: %v", err)
	}
	if err := svc.RecordFeedback(context.Background(), "REC-1", false, "not relevant"); err != nil {
		t.Fatalf("RecordFeedback failed: %v", err)
	}
	if err := svc.RecordConversion(context.Background(), "REC-1", true); err != nil {
		t.Fatalf("RecordConversion failed: %v", err)
	}

	rec, err := mem.GetRecommendation(context.Background(), "REC-1")
	if err != nil {
		t.Fatalf("loading recommendation failed: %v", err)
	}
	if !rec.IsViewed || !rec.IsClicked {
		t.Fatalf("view/click flags not set")
	}
	if rec.Feedback.IsHelpful == nil || *rec.Feedback.IsHelpful {
		t.Fatalf("negative feedback not recorded")
	}
	if rec.Feedback.FeedbackText != "not relevant" {
		t.Fatalf("feedback text = %q", rec.Feedback.FeedbackText)
	}
	if !rec.Conversion.IsConverted {
		t.Fatalf("conversion not recorded")
	}
	if rec.Conversion.ConversionDate == nil || !rec.Conversion.ConversionDate.Equal(now) {
		t.Fatalf("conversion date not stamped")
	}
}
