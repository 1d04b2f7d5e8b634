package advisor

import (
	"context"
	"time"

	"github.com/finpersona/backend/internal/domain"
)

// ProductAdvice is the advisor's verdict on a single user/product pair.
type ProductAdvice struct {
	Text  string
	Score int
}

// InsightDraft is an unvalidated insight candidate returned by the advisor.
// The pipeline assigns ids and timestamps and drops incomplete drafts.
type InsightDraft struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Importance  string `json:"importance"`
}

// AnomalyDraft is an unvalidated anomaly candidate.
type AnomalyDraft struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Amount      *float64 `json:"amount,omitempty"`
}

// ExpenseDraft is an unvalidated predicted-expense candidate. DueDate stays
// a raw string; the pipeline drops drafts whose date does not parse.
type ExpenseDraft struct {
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	DueDate     string  `json:"due_date"`
	Confidence  float64 `json:"confidence"`
	IsRecurring bool    `json:"is_recurring"`
}

// RecurringGroup summarizes repeated expenses sharing a (category,
// description) key, submitted to the predictor.
type RecurringGroup struct {
	Category    string
	Description string
	Amounts     []float64
	Days        []int
	Dates       []time.Time
}

// Occurrences returns how many transactions the group contains.
func (g RecurringGroup) Occurrences() int {
	return len(g.Dates)
}

// MinAnomalyTransactions is the minimum number of expense transactions
// required before an anomaly detection call is made.
const MinAnomalyTransactions = 10

// Advisor is the contract for the external generative capability. The five
// analysis methods are total: on transport or parse failure they return the
// documented default rather than an error, so callers can always proceed.
// Advise reports errors so the chat worker can persist a failure message.
type Advisor interface {
	ExplainProduct(ctx context.Context, user domain.UserProfile, product domain.Product, history []domain.Transaction) ProductAdvice
	AnalyzeSentiment(ctx context.Context, transactions []domain.Transaction) domain.SentimentReport
	DetectAnomalies(ctx context.Context, transactions []domain.Transaction) []AnomalyDraft
	GenerateInsights(ctx context.Context, user domain.UserProfile, transactions []domain.Transaction) []InsightDraft
	PredictExpenses(ctx context.Context, groups []RecurringGroup) []ExpenseDraft
	Advise(ctx context.Context, user domain.UserProfile, query string, transactions []domain.Transaction, history []domain.ChatMessage) (string, error)
}

// NeutralSentiment is the documented sentiment fallback used whenever the
// advisor response is missing or unparseable.
func NeutralSentiment(explanation string) domain.SentimentReport {
	if explanation == "" {
		explanation = "Not enough transaction data to analyze."
	}
	return domain.SentimentReport{
		OverallSentiment: "neutral",
		Confidence:       0.5,
		FinancialHealth:  "stable",
		Explanation:      explanation,
	}
}
