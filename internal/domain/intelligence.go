package domain

import "time"

// Insight importance levels.
const (
	ImportanceHigh   = "high"
	ImportanceMedium = "medium"
	ImportanceLow    = "low"
)

// MaxInsights caps the per-user insight collection; merges evict the oldest
// entries by creation time.
const MaxInsights = 10

// Insight is a single piece of generated or rule-based financial guidance.
// IsActedUpon is tri-state: nil means the user has not responded yet.
type Insight struct {
	ID                   string
	Category             string
	Description          string
	Importance           string
	CreatedAt            time.Time
	ExpiresAt            time.Time
	IsRead               bool
	IsActedUpon          *bool
	RelatedTransactionID string
}

// Active reports whether the insight has not yet expired.
func (i Insight) Active(now time.Time) bool {
	return i.ExpiresAt.IsZero() || now.Before(i.ExpiresAt)
}

// Anomaly flags an unusual spending pattern. The collection is append-only;
// entries are never evicted, only acknowledged.
type Anomaly struct {
	ID             string
	Category       string
	Description    string
	Severity       string
	Amount         *float64
	DetectionDate  time.Time
	IsAcknowledged bool
}

// PredictedExpense is an upcoming expense forecast. The per-user collection
// is replaced wholesale on each refresh.
type PredictedExpense struct {
	ID          string
	Description string
	Amount      float64
	Category    string
	DueDate     time.Time
	Confidence  float64
	IsRecurring bool
}

// SentimentReport summarizes advisor sentiment analysis over recent
// transactions.
type SentimentReport struct {
	OverallSentiment string
	Confidence       float64
	FinancialHealth  string
	Explanation      string
}

// SpendingPattern aggregates one category's expenses over the analysis
// window.
type SpendingPattern struct {
	Category           string
	Total              float64
	Count              int
	Percentage         float64
	AverageTransaction float64
	TrendDirection     string
}

// SpendingReport is the deterministic per-category spending analysis.
type SpendingReport struct {
	UserID     string
	StartDate  time.Time
	EndDate    time.Time
	TotalSpent float64
	Patterns   []SpendingPattern
}
