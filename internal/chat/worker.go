package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finpersona/backend/internal/advisor"
	"github.com/finpersona/backend/internal/domain"
	"github.com/finpersona/backend/internal/store"
)

const (
	defaultQueueSize = 32

	// historyLimit bounds the conversation context passed to the advisor.
	historyLimit = 5

	// transactionLimit bounds the transaction context passed to the advisor.
	transactionLimit = 10

	failureReply = "I'm having trouble answering right now. Please try again in a moment."
)

// ErrQueueFull is returned when the chat queue has no room for another
// message. Callers should surface this as backpressure, not retry blindly.
var ErrQueueFull = errors.New("chat queue is full")

// task is one queued chat exchange. reply receives the assistant's answer
// and is closed afterwards.
type task struct {
	userID  string
	message string
	reply   chan result
}

type result struct {
	text string
	err  error
}

// Worker serializes advisor chat through a single bounded queue so a burst
// of messages cannot fan out into unbounded concurrent advisor calls.
type Worker struct {
	store   store.Store
	advisor advisor.Advisor
	logger  *slog.Logger
	nowFn   func() time.Time
	queue   chan task
}

// NewWorker constructs the chat worker. Start must be called before Send.
func NewWorker(st store.Store, adv advisor.Advisor, logger *slog.Logger, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Worker{
		store:   st,
		advisor: adv,
		logger:  logger,
		nowFn:   time.Now,
		queue:   make(chan task, queueSize),
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (w *Worker) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		w.nowFn = nowFn
	}
}

// Start runs the worker loop until the context is cancelled. Intended to
// run in its own goroutine.
func (w *Worker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			t.reply <- w.process(ctx, t)
			close(t.reply)
		}
	}
}

// Send enqueues a chat message and blocks until the assistant reply is
// ready or the context is cancelled. A full queue fails fast with
// ErrQueueFull.
func (w *Worker) Send(ctx context.Context, userID, message string) (domain.ChatMessage, error) {
	if userID == "" || message == "" {
		return domain.ChatMessage{}, domain.ErrValidation
	}

	t := task{userID: userID, message: message, reply: make(chan result, 1)}
	select {
	case w.queue <- t:
	default:
		return domain.ChatMessage{}, ErrQueueFull
	}

	select {
	case <-ctx.Done():
		return domain.ChatMessage{}, ctx.Err()
	case res := <-t.reply:
		if res.err != nil {
			return domain.ChatMessage{}, res.err
		}
		return domain.ChatMessage{
			ID:        uuid.NewString(),
			UserID:    userID,
			Sender:    domain.SenderAssistant,
			Text:      res.text,
			CreatedAt: w.nowFn().UTC(),
		}, nil
	}
}

// process persists the user message, asks the advisor, and persists the
// reply. An advisor failure still produces a persisted failure message so
// the conversation history stays coherent.
func (w *Worker) process(ctx context.Context, t task) result {
	user, err := w.store.GetUser(ctx, t.userID)
	if err != nil {
		return result{err: err}
	}

	history, err := w.store.GetChatHistory(ctx, t.userID, historyLimit)
	if err != nil {
		w.logger.Warn("loading chat history failed", "userId", t.userID, "error", err)
		history = nil
	}
	transactions, err := w.store.GetRecentTransactions(ctx, t.userID, transactionLimit)
	if err != nil {
		w.logger.Warn("loading transaction context failed", "userId", t.userID, "error", err)
		transactions = nil
	}

	now := w.nowFn().UTC()
	if err := w.store.AppendChatMessage(ctx, domain.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    t.userID,
		Sender:    domain.SenderUser,
		Text:      t.message,
		CreatedAt: now,
	}); err != nil {
		return result{err: err}
	}

	reply, err := w.advisor.Advise(ctx, user, t.message, transactions, history)
	if err != nil {
		w.logger.Error("advisor chat failed", "userId", t.userID, "error", err)
		reply = failureReply
	}

	if err := w.store.AppendChatMessage(ctx, domain.ChatMessage{
		ID:        uuid.NewString(),
		UserID:    t.userID,
		Sender:    domain.SenderAssistant,
		Text:      reply,
		CreatedAt: w.nowFn().UTC(),
	}); err != nil {
		w.logger.Error("persisting assistant reply failed", "userId", t.userID, "error", err)
	}

	return result{text: reply}
}

// History returns the user's most recent chat messages in chronological
// order.
func (w *Worker) History(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	return w.store.GetChatHistory(ctx, userID, limit)
}
