package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finpersona/backend/internal/domain"
)

// MemoryStore is an in-memory implementation of the Store interface used for
// unit testing pipeline logic and for local runs without a database.
type MemoryStore struct {
	mu              sync.Mutex
	users           map[string]domain.UserProfile
	transactions    map[string][]domain.Transaction
	products        []domain.Product
	recommendations map[string]domain.Recommendation
	chat            map[string][]domain.ChatMessage
	nowFn           func() time.Time
	err             error
}

// NewMemoryStore instantiates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:           make(map[string]domain.UserProfile),
		transactions:    make(map[string][]domain.Transaction),
		recommendations: make(map[string]domain.Recommendation),
		chat:            make(map[string][]domain.ChatMessage),
		nowFn:           time.Now,
	}
}

// WithClock overrides the time provider used for expiry filtering.
func (m *MemoryStore) WithClock(nowFn func() time.Time) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	if nowFn != nil {
		m.nowFn = nowFn
	}
	return m
}

// WithError configures the store to return the provided error for all
// subsequent calls.
func (m *MemoryStore) WithError(err error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// AddUser seeds a user profile.
func (m *MemoryStore) AddUser(user domain.UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

// AddProduct seeds a catalog product.
func (m *MemoryStore) AddProduct(product domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, product)
}

// AddTransaction seeds a transaction.
func (m *MemoryStore) AddTransaction(tx domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.UserID] = append(m.transactions[tx.UserID], tx)
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.UserProfile{}, m.err
	}
	user, ok := m.users[id]
	if !ok {
		return domain.UserProfile{}, domain.ErrNotFound
	}
	return user, nil
}

func (m *MemoryStore) ListUserIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) UpdateUserFields(_ context.Context, id string, update UserUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	user, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	if update.Insights != nil {
		user.Insights = append([]domain.Insight(nil), (*update.Insights)...)
	}
	if update.Anomalies != nil {
		user.Anomalies = append([]domain.Anomaly(nil), (*update.Anomalies)...)
	}
	if update.PredictedExpenses != nil {
		user.PredictedExpenses = append([]domain.PredictedExpense(nil), (*update.PredictedExpenses)...)
	}
	if update.FinancialHealth != nil {
		user.FinancialProfile.FinancialHealth = *update.FinancialHealth
	}
	user.UpdatedAt = m.nowFn().UTC()
	m.users[id] = user
	return nil
}

func (m *MemoryStore) GetTransactionsInRange(_ context.Context, userID string, start, end time.Time) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Transaction
	for _, tx := range m.transactions[userID] {
		if tx.Timestamp.Before(start) || tx.Timestamp.After(end) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStore) GetRecentTransactions(_ context.Context, userID string, limit int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := append([]domain.Transaction(nil), m.transactions[userID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) GetActiveProducts(context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Product
	for _, p := range m.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetProductByID(_ context.Context, id string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Product{}, m.err
	}
	for _, p := range m.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrNotFound
}

func (m *MemoryStore) CreateRecommendation(_ context.Context, rec domain.Recommendation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.recommendations[rec.ID] = rec
	return rec.ID, nil
}

func (m *MemoryStore) GetRecommendation(_ context.Context, id string) (domain.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Recommendation{}, m.err
	}
	rec, ok := m.recommendations[id]
	if !ok {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) UpdateRecommendation(_ context.Context, id string, update RecommendationUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	rec, ok := m.recommendations[id]
	if !ok {
		return domain.ErrNotFound
	}
	if update.Reason != nil {
		rec.Reason = *update.Reason
	}
	if update.Score != nil {
		rec.Score = *update.Score
	}
	if update.RefreshedAt != nil {
		rec.RefreshedAt = update.RefreshedAt
	}
	if update.IsViewed != nil {
		rec.IsViewed = *update.IsViewed
	}
	if update.IsClicked != nil {
		rec.IsClicked = *update.IsClicked
	}
	if update.Feedback != nil {
		rec.Feedback = *update.Feedback
	}
	if update.Conversion != nil {
		rec.Conversion = *update.Conversion
	}
	m.recommendations[id] = rec
	return nil
}

func (m *MemoryStore) ListUserRecommendations(_ context.Context, userID string, includeExpired bool, limit int) ([]domain.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	now := m.nowFn()
	var out []domain.Recommendation
	for _, rec := range m.recommendations {
		if rec.UserID != userID {
			continue
		}
		if !includeExpired && rec.Expired(now) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) AppendChatMessage(_ context.Context, msg domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.chat[msg.UserID] = append(m.chat[msg.UserID], msg)
	return nil
}

func (m *MemoryStore) GetChatHistory(_ context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	msgs := m.chat[userID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.ChatMessage(nil), msgs...), nil
}

func (m *MemoryStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *MemoryStore) Close(context.Context) error {
	return nil
}
