package store

import (
	"time"

	"github.com/finpersona/backend/internal/domain"
)

// Document shapes persisted in MongoDB. Field names mirror the collection
// schemas; conversion to and from domain types happens at this boundary so
// the pipeline only ever sees validated typed records.

type financialProfileDoc struct {
	MonthlyIncome   float64 `bson:"monthly_income"`
	MonthlyExpenses float64 `bson:"monthly_expenses"`
	Balance         float64 `bson:"balance"`
	Debt            float64 `bson:"debt"`
	CreditScore     int     `bson:"credit_score"`
	RiskProfile     string  `bson:"risk_profile"`
	FinancialHealth string  `bson:"financial_health"`
}

type profileDoc struct {
	Age        int    `bson:"age"`
	Occupation string `bson:"occupation"`
	Location   string `bson:"location"`
}

type preferencesDoc struct {
	PreferredCategories []string `bson:"preferred_categories"`
}

type financialGoalDoc struct {
	GoalID              string    `bson:"goal_id"`
	Type                string    `bson:"type"`
	Name                string    `bson:"name"`
	TargetAmount        float64   `bson:"target_amount"`
	CurrentAmount       float64   `bson:"current_amount"`
	MonthlyContribution float64   `bson:"monthly_contribution"`
	TargetDate          time.Time `bson:"target_date"`
	Priority            string    `bson:"priority"`
	CreatedAt           time.Time `bson:"created_at"`
}

type insightDoc struct {
	InsightID            string    `bson:"insight_id"`
	Category             string    `bson:"category"`
	Description          string    `bson:"description"`
	Importance           string    `bson:"importance"`
	CreatedAt            time.Time `bson:"created_at"`
	ExpiresAt            time.Time `bson:"expires_at"`
	IsRead               bool      `bson:"is_read"`
	IsActedUpon          *bool     `bson:"is_acted_upon"`
	RelatedTransactionID string    `bson:"related_transaction_id,omitempty"`
}

type anomalyDoc struct {
	AnomalyID      string    `bson:"anomaly_id"`
	Category       string    `bson:"category"`
	Description    string    `bson:"description"`
	Severity       string    `bson:"severity"`
	Amount         *float64  `bson:"amount,omitempty"`
	DetectionDate  time.Time `bson:"detection_date"`
	IsAcknowledged bool      `bson:"is_acknowledged"`
}

type predictedExpenseDoc struct {
	ExpenseID   string    `bson:"expense_id"`
	Description string    `bson:"description"`
	Amount      float64   `bson:"amount"`
	Category    string    `bson:"category"`
	DueDate     time.Time `bson:"due_date"`
	Confidence  float64   `bson:"confidence"`
	IsRecurring bool      `bson:"is_recurring"`
}

type userDoc struct {
	UserID            string                `bson:"user_id"`
	Email             string                `bson:"email"`
	Name              string                `bson:"name"`
	FinancialProfile  financialProfileDoc   `bson:"financial_profile"`
	Profile           profileDoc            `bson:"profile"`
	Preferences       preferencesDoc        `bson:"preferences"`
	FinancialGoals    []financialGoalDoc    `bson:"financial_goals"`
	Insights          []insightDoc          `bson:"insights"`
	Anomalies         []anomalyDoc          `bson:"anomalies"`
	PredictedExpenses []predictedExpenseDoc `bson:"predicted_expenses"`
	CreatedAt         time.Time             `bson:"created_at"`
	UpdatedAt         time.Time             `bson:"updated_at"`
}

func (d userDoc) toDomain() domain.UserProfile {
	user := domain.UserProfile{
		ID:    d.UserID,
		Email: d.Email,
		Name:  d.Name,
		FinancialProfile: domain.FinancialProfile{
			MonthlyIncome:   d.FinancialProfile.MonthlyIncome,
			MonthlyExpenses: d.FinancialProfile.MonthlyExpenses,
			Balance:         d.FinancialProfile.Balance,
			Debt:            d.FinancialProfile.Debt,
			CreditScore:     d.FinancialProfile.CreditScore,
			RiskProfile:     d.FinancialProfile.RiskProfile,
			FinancialHealth: d.FinancialProfile.FinancialHealth,
		},
		Profile: domain.Profile{
			Age:        d.Profile.Age,
			Occupation: d.Profile.Occupation,
			Location:   d.Profile.Location,
		},
		Preferences: domain.Preferences{
			PreferredCategories: d.Preferences.PreferredCategories,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, g := range d.FinancialGoals {
		user.FinancialGoals = append(user.FinancialGoals, domain.FinancialGoal{
			ID:                  g.GoalID,
			Type:                g.Type,
			Name:                g.Name,
			TargetAmount:        g.TargetAmount,
			CurrentAmount:       g.CurrentAmount,
			MonthlyContribution: g.MonthlyContribution,
			TargetDate:          g.TargetDate,
			Priority:            g.Priority,
			CreatedAt:           g.CreatedAt,
		})
	}
	for _, i := range d.Insights {
		user.Insights = append(user.Insights, domain.Insight{
			ID:                   i.InsightID,
			Category:             i.Category,
			Description:          i.Description,
			Importance:           i.Importance,
			CreatedAt:            i.CreatedAt,
			ExpiresAt:            i.ExpiresAt,
			IsRead:               i.IsRead,
			IsActedUpon:          i.IsActedUpon,
			RelatedTransactionID: i.RelatedTransactionID,
		})
	}
	for _, a := range d.Anomalies {
		user.Anomalies = append(user.Anomalies, domain.Anomaly{
			ID:             a.AnomalyID,
			Category:       a.Category,
			Description:    a.Description,
			Severity:       a.Severity,
			Amount:         a.Amount,
			DetectionDate:  a.DetectionDate,
			IsAcknowledged: a.IsAcknowledged,
		})
	}
	for _, e := range d.PredictedExpenses {
		user.PredictedExpenses = append(user.PredictedExpenses, domain.PredictedExpense{
			ID:          e.ExpenseID,
			Description: e.Description,
			Amount:      e.Amount,
			Category:    e.Category,
			DueDate:     e.DueDate,
			Confidence:  e.Confidence,
			IsRecurring: e.IsRecurring,
		})
	}
	return user
}

func insightDocs(insights []domain.Insight) []insightDoc {
	out := make([]insightDoc, 0, len(insights))
	for _, i := range insights {
		out = append(out, insightDoc{
			InsightID:            i.ID,
			Category:             i.Category,
			Description:          i.Description,
			Importance:           i.Importance,
			CreatedAt:            i.CreatedAt,
			ExpiresAt:            i.ExpiresAt,
			IsRead:               i.IsRead,
			IsActedUpon:          i.IsActedUpon,
			RelatedTransactionID: i.RelatedTransactionID,
		})
	}
	return out
}

func anomalyDocs(anomalies []domain.Anomaly) []anomalyDoc {
	out := make([]anomalyDoc, 0, len(anomalies))
	for _, a := range anomalies {
		out = append(out, anomalyDoc{
			AnomalyID:      a.ID,
			Category:       a.Category,
			Description:    a.Description,
			Severity:       a.Severity,
			Amount:         a.Amount,
			DetectionDate:  a.DetectionDate,
			IsAcknowledged: a.IsAcknowledged,
		})
	}
	return out
}

func expenseDocs(expenses []domain.PredictedExpense) []predictedExpenseDoc {
	out := make([]predictedExpenseDoc, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, predictedExpenseDoc{
			ExpenseID:   e.ID,
			Description: e.Description,
			Amount:      e.Amount,
			Category:    e.Category,
			DueDate:     e.DueDate,
			Confidence:  e.Confidence,
			IsRecurring: e.IsRecurring,
		})
	}
	return out
}

type transactionDoc struct {
	TransactionID string    `bson:"transaction_id"`
	UserID        string    `bson:"user_id"`
	Amount        float64   `bson:"amount"`
	Category      string    `bson:"category"`
	Merchant      string    `bson:"merchant"`
	Description   string    `bson:"description,omitempty"`
	Timestamp     time.Time `bson:"timestamp"`
}

type eligibilityDoc struct {
	MinIncome      *float64 `bson:"min_income,omitempty"`
	MinCreditScore *int     `bson:"min_credit_score,omitempty"`
	RiskLevel      string   `bson:"risk_level,omitempty"`
	TargetAgeMin   *int     `bson:"target_age_min,omitempty"`
	TargetAgeMax   *int     `bson:"target_age_max,omitempty"`
}

type productDoc struct {
	ProductID   string            `bson:"product_id"`
	Name        string            `bson:"name"`
	Category    string            `bson:"category"`
	Description string            `bson:"description"`
	Features    []string          `bson:"features"`
	Eligibility eligibilityDoc    `bson:"eligibility"`
	Details     map[string]string `bson:"details,omitempty"`
	IsActive    bool              `bson:"is_active"`
}

func (d productDoc) toDomain() domain.Product {
	return domain.Product{
		ID:          d.ProductID,
		Name:        d.Name,
		Category:    d.Category,
		Description: d.Description,
		Features:    d.Features,
		Eligibility: domain.Eligibility{
			MinIncome:      d.Eligibility.MinIncome,
			MinCreditScore: d.Eligibility.MinCreditScore,
			RiskLevel:      d.Eligibility.RiskLevel,
			TargetAgeMin:   d.Eligibility.TargetAgeMin,
			TargetAgeMax:   d.Eligibility.TargetAgeMax,
		},
		Details:  d.Details,
		IsActive: d.IsActive,
	}
}

type feedbackDoc struct {
	IsHelpful    *bool      `bson:"is_helpful"`
	FeedbackText string     `bson:"feedback_text,omitempty"`
	FeedbackDate *time.Time `bson:"feedback_date"`
}

type conversionDoc struct {
	IsConverted    bool       `bson:"is_converted"`
	ConversionDate *time.Time `bson:"conversion_date"`
}

type recommendationDoc struct {
	RecommendationID string        `bson:"recommendation_id"`
	UserID           string        `bson:"user_id"`
	ProductID        string        `bson:"product_id"`
	ProductName      string        `bson:"product_name"`
	ProductCategory  string        `bson:"product_category"`
	Score            int           `bson:"score"`
	Reason           string        `bson:"reason"`
	Features         []string      `bson:"features"`
	Timestamp        time.Time     `bson:"timestamp"`
	ExpiresAt        time.Time     `bson:"expires_at"`
	RefreshedAt      *time.Time    `bson:"refreshed_at,omitempty"`
	IsViewed         bool          `bson:"is_viewed"`
	IsClicked        bool          `bson:"is_clicked"`
	Feedback         feedbackDoc   `bson:"feedback"`
	Conversion       conversionDoc `bson:"conversion"`
}

func newRecommendationDoc(rec domain.Recommendation) recommendationDoc {
	return recommendationDoc{
		RecommendationID: rec.ID,
		UserID:           rec.UserID,
		ProductID:        rec.ProductID,
		ProductName:      rec.ProductName,
		ProductCategory:  rec.ProductCategory,
		Score:            rec.Score,
		Reason:           rec.Reason,
		Features:         rec.Features,
		Timestamp:        rec.Timestamp,
		ExpiresAt:        rec.ExpiresAt,
		RefreshedAt:      rec.RefreshedAt,
		IsViewed:         rec.IsViewed,
		IsClicked:        rec.IsClicked,
		Feedback: feedbackDoc{
			IsHelpful:    rec.Feedback.IsHelpful,
			FeedbackText: rec.Feedback.FeedbackText,
			FeedbackDate: rec.Feedback.FeedbackDate,
		},
		Conversion: conversionDoc{
			IsConverted:    rec.Conversion.IsConverted,
			ConversionDate: rec.Conversion.ConversionDate,
		},
	}
}

func (d recommendationDoc) toDomain() domain.Recommendation {
	return domain.Recommendation{
		ID:              d.RecommendationID,
		UserID:          d.UserID,
		ProductID:       d.ProductID,
		ProductName:     d.ProductName,
		ProductCategory: d.ProductCategory,
		Score:           d.Score,
		Reason:          d.Reason,
		Features:        d.Features,
		Timestamp:       d.Timestamp,
		ExpiresAt:       d.ExpiresAt,
		RefreshedAt:     d.RefreshedAt,
		IsViewed:        d.IsViewed,
		IsClicked:       d.IsClicked,
		Feedback: domain.RecommendationFeedback{
			IsHelpful:    d.Feedback.IsHelpful,
			FeedbackText: d.Feedback.FeedbackText,
			FeedbackDate: d.Feedback.FeedbackDate,
		},
		Conversion: domain.RecommendationConversion{
			IsConverted:    d.Conversion.IsConverted,
			ConversionDate: d.Conversion.ConversionDate,
		},
	}
}

type chatMessageDoc struct {
	MessageID string    `bson:"message_id"`
	UserID    string    `bson:"user_id"`
	Sender    string    `bson:"sender"`
	Text      string    `bson:"text"`
	CreatedAt time.Time `bson:"created_at"`
}
