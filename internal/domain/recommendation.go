package domain

import "time"

// RecommendationFeedback captures qualitative feedback on a recommendation.
type RecommendationFeedback struct {
	IsHelpful    *bool
	FeedbackText string
	FeedbackDate *time.Time
}

// RecommendationConversion records whether the user acted on a recommendation.
type RecommendationConversion struct {
	IsConverted    bool
	ConversionDate *time.Time
}

// Recommendation is a persisted, advisor-scored product match for a user.
// Tracking flags are independent of one another; expiry is evaluated at read
// time rather than stored as a state transition.
type Recommendation struct {
	ID              string
	UserID          string
	ProductID       string
	ProductName     string
	ProductCategory string
	Score           int
	Reason          string
	Features        []string
	Timestamp       time.Time
	ExpiresAt       time.Time
	RefreshedAt     *time.Time
	IsViewed        bool
	IsClicked       bool
	Feedback        RecommendationFeedback
	Conversion      RecommendationConversion
}

// Expired reports whether the recommendation has passed its expiry at the
// given instant.
func (r Recommendation) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// ComparisonEntry joins a recommendation with its product detail for
// side-by-side comparison.
type ComparisonEntry struct {
	RecommendationID string
	ProductID        string
	ProductName      string
	ProductCategory  string
	Score            int
	Features         []string
	Description      string
	Details          map[string]string
}

// ComparisonPoint is a named dimension compared across recommendations,
// keyed by recommendation ID.
type ComparisonPoint struct {
	Name        string
	Description string
	Values      map[string]string
}

// Comparison is the structured result of comparing recommendations for one
// user.
type Comparison struct {
	Entries   []ComparisonEntry
	Points    []ComparisonPoint
	Narrative string
}
