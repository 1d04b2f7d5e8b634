package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/finpersona/backend/internal/domain"
)

// NewMongoStore connects to the document store using the official MongoDB
// driver and verifies connectivity before returning.
func NewMongoStore(ctx context.Context, opts Options) (Store, error) {
	if opts.URI == "" {
		return nil, ErrMissingURI
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("verify store connectivity: %w", err)
	}

	database := opts.Database
	if database == "" {
		database = "finpersona"
	}

	return &mongoStore{
		client: client,
		db:     client.Database(database),
	}, nil
}

type mongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func (s *mongoStore) users() *mongo.Collection           { return s.db.Collection("users") }
func (s *mongoStore) transactions() *mongo.Collection    { return s.db.Collection("transactions") }
func (s *mongoStore) products() *mongo.Collection        { return s.db.Collection("products") }
func (s *mongoStore) recommendations() *mongo.Collection { return s.db.Collection("recommendations") }
func (s *mongoStore) chatMessages() *mongo.Collection    { return s.db.Collection("chat_messages") }

func (s *mongoStore) GetUser(ctx context.Context, id string) (domain.UserProfile, error) {
	var doc userDoc
	err := s.users().FindOne(ctx, bson.M{"user_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.UserProfile{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

func (s *mongoStore) ListUserIDs(ctx context.Context) ([]string, error) {
	cursor, err := s.users().Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"user_id": 1}).SetSort(bson.M{"user_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			UserID string `bson:"user_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.UserID)
	}
	return ids, cursor.Err()
}

func (s *mongoStore) UpdateUserFields(ctx context.Context, id string, update UserUpdate) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.Insights != nil {
		set["insights"] = insightDocs(*update.Insights)
	}
	if update.Anomalies != nil {
		set["anomalies"] = anomalyDocs(*update.Anomalies)
	}
	if update.PredictedExpenses != nil {
		set["predicted_expenses"] = expenseDocs(*update.PredictedExpenses)
	}
	if update.FinancialHealth != nil {
		set["financial_profile.financial_health"] = *update.FinancialHealth
	}

	res, err := s.users().UpdateOne(ctx, bson.M{"user_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *mongoStore) GetTransactionsInRange(ctx context.Context, userID string, start, end time.Time) ([]domain.Transaction, error) {
	filter := bson.M{
		"user_id":   userID,
		"timestamp": bson.M{"$gte": start, "$lte": end},
	}
	cursor, err := s.transactions().Find(ctx, filter, options.Find().SetSort(bson.M{"timestamp": -1}))
	if err != nil {
		return nil, fmt.Errorf("transactions in range for %s: %w", userID, err)
	}
	defer cursor.Close(ctx)
	return decodeTransactions(ctx, cursor)
}

func (s *mongoStore) GetRecentTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	opts := options.Find().SetSort(bson.M{"timestamp": -1})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := s.transactions().Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("recent transactions for %s: %w", userID, err)
	}
	defer cursor.Close(ctx)
	return decodeTransactions(ctx, cursor)
}

func (s *mongoStore) GetActiveProducts(ctx context.Context) ([]domain.Product, error) {
	cursor, err := s.products().Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, fmt.Errorf("active products: %w", err)
	}
	defer cursor.Close(ctx)

	var out []domain.Product
	for cursor.Next(ctx) {
		var doc productDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cursor.Err()
}

func (s *mongoStore) GetProductByID(ctx context.Context, id string) (domain.Product, error) {
	var doc productDoc
	err := s.products().FindOne(ctx, bson.M{"product_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Product{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

func (s *mongoStore) CreateRecommendation(ctx context.Context, rec domain.Recommendation) (string, error) {
	if _, err := s.recommendations().InsertOne(ctx, newRecommendationDoc(rec)); err != nil {
		return "", fmt.Errorf("create recommendation: %w", err)
	}
	return rec.ID, nil
}

func (s *mongoStore) GetRecommendation(ctx context.Context, id string) (domain.Recommendation, error) {
	var doc recommendationDoc
	err := s.recommendations().FindOne(ctx, bson.M{"recommendation_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("get recommendation %s: %w", id, err)
	}
	return doc.toDomain(), nil
}

func (s *mongoStore) UpdateRecommendation(ctx context.Context, id string, update RecommendationUpdate) error {
	set := bson.M{}
	if update.Reason != nil {
		set["reason"] = *update.Reason
	}
	if update.Score != nil {
		set["score"] = *update.Score
	}
	if update.RefreshedAt != nil {
		set["refreshed_at"] = *update.RefreshedAt
	}
	if update.IsViewed != nil {
		set["is_viewed"] = *update.IsViewed
	}
	if update.IsClicked != nil {
		set["is_clicked"] = *update.IsClicked
	}
	if update.Feedback != nil {
		set["feedback.is_helpful"] = update.Feedback.IsHelpful
		set["feedback.feedback_text"] = update.Feedback.FeedbackText
		set["feedback.feedback_date"] = update.Feedback.FeedbackDate
	}
	if update.Conversion != nil {
		set["conversion.is_converted"] = update.Conversion.IsConverted
		set["conversion.conversion_date"] = update.Conversion.ConversionDate
	}
	if len(set) == 0 {
		return nil
	}

	res, err := s.recommendations().UpdateOne(ctx, bson.M{"recommendation_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update recommendation %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *mongoStore) ListUserRecommendations(ctx context.Context, userID string, includeExpired bool, limit int) ([]domain.Recommendation, error) {
	filter := bson.M{"user_id": userID}
	if !includeExpired {
		filter["expires_at"] = bson.M{"$gt": time.Now().UTC()}
	}
	opts := options.Find().SetSort(bson.M{"score": -1})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := s.recommendations().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list recommendations for %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var out []domain.Recommendation
	for cursor.Next(ctx) {
		var doc recommendationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cursor.Err()
}

func (s *mongoStore) AppendChatMessage(ctx context.Context, msg domain.ChatMessage) error {
	doc := chatMessageDoc{
		MessageID: msg.ID,
		UserID:    msg.UserID,
		Sender:    msg.Sender,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}
	if _, err := s.chatMessages().InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

func (s *mongoStore) GetChatHistory(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := s.chatMessages().Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("chat history for %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var docs []chatMessageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	out := make([]domain.ChatMessage, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		d := docs[i]
		out = append(out, domain.ChatMessage{
			ID:        d.MessageID,
			UserID:    d.UserID,
			Sender:    d.Sender,
			Text:      d.Text,
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

func (s *mongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func decodeTransactions(ctx context.Context, cursor *mongo.Cursor) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for cursor.Next(ctx) {
		var doc transactionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, domain.Transaction{
			ID:          doc.TransactionID,
			UserID:      doc.UserID,
			Amount:      doc.Amount,
			Category:    doc.Category,
			Merchant:    doc.Merchant,
			Description: doc.Description,
			Timestamp:   doc.Timestamp,
		})
	}
	return out, cursor.Err()
}
