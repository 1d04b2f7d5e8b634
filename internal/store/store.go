package store

import (
	"context"
	"errors"
	"time"

	"github.com/finpersona/backend/internal/domain"
)

// UserUpdate is a partial update applied to a user document. Nil fields are
// left untouched; a non-nil slice pointer replaces the whole collection.
type UserUpdate struct {
	Insights          *[]domain.Insight
	Anomalies         *[]domain.Anomaly
	PredictedExpenses *[]domain.PredictedExpense
	FinancialHealth   *string
}

// RecommendationUpdate is a partial update applied to a recommendation.
type RecommendationUpdate struct {
	Reason      *string
	Score       *int
	RefreshedAt *time.Time
	IsViewed    *bool
	IsClicked   *bool
	Feedback    *domain.RecommendationFeedback
	Conversion  *domain.RecommendationConversion
}

// IsZero reports whether the update would change nothing.
func (u RecommendationUpdate) IsZero() bool {
	return u.Reason == nil && u.Score == nil && u.RefreshedAt == nil &&
		u.IsViewed == nil && u.IsClicked == nil && u.Feedback == nil && u.Conversion == nil
}

// Store is the persistence contract consumed by the personalization
// pipeline. Implementations return domain.ErrNotFound for missing subjects.
type Store interface {
	GetUser(ctx context.Context, id string) (domain.UserProfile, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	UpdateUserFields(ctx context.Context, id string, update UserUpdate) error

	GetTransactionsInRange(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error)
	GetRecentTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)

	GetActiveProducts(ctx context.Context) ([]domain.Product, error)
	GetProductByID(ctx context.Context, id string) (domain.Product, error)

	CreateRecommendation(ctx context.Context, rec domain.Recommendation) (string, error)
	GetRecommendation(ctx context.Context, id string) (domain.Recommendation, error)
	UpdateRecommendation(ctx context.Context, id string, update RecommendationUpdate) error
	ListUserRecommendations(ctx context.Context, userID string, includeExpired bool, limit int) ([]domain.Recommendation, error)

	AppendChatMessage(ctx context.Context, msg domain.ChatMessage) error
	GetChatHistory(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Options configures a store implementation.
type Options struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// ErrMissingURI indicates the store URI is not provided.
var ErrMissingURI = errors.New("store URI is required")
