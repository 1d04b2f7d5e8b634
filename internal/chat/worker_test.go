package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/finpersona/backend/internal/advisor"
	"github.com/finpersona/backend/internal/domain"
	"github.com/finpersona/backend/internal/logging"
	"github.com/finpersona/backend/internal/store"
)

type stubAdvisor struct {
	reply     string
	adviseErr error
}

func (s *stubAdvisor) ExplainProduct(context.Context, domain.UserProfile, domain.Product, []domain.Transaction) advisor.ProductAdvice {
	return advisor.ProductAdvice{}
}

func (s *stubAdvisor) AnalyzeSentiment(context.Context, []domain.Transaction) domain.SentimentReport {
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
	return s.reply, nil
}

func testLogger() *slog.Logger {
	return logging.Discard()
}

func startWorker(t *testing.T, adv advisor.Advisor) (*Worker, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	mem.AddUser(domain.UserProfile{ID: "USR-1", Name: "Jane"})

	worker := NewWorker(mem, adv, testLogger(), 4)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go worker.Start(ctx)

	return worker, mem
}

func TestSendPersistsBothSides(t *testing.T) {
	worker, mem := startWorker(t, &stubAdvisor{reply: "Build an emergency fund first."})

	reply, err := worker.Send(context.Background(), "USR-1", "Where should I start?")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if reply.Sender != domain.SenderAssistant {
		t.Fatalf("sender = %q", reply.Sender)
	}
	if reply.Text != "Build an emergency fund first." {
		t.Fatalf("reply = %q", reply.Text)
	}

	history, err := mem.GetChatHistory(context.Background(), "USR-1", 10)
	if err != nil {
		t.Fatalf("loading history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history size = %d, want 2", len(history))
	}
	if history[0].Sender != domain.SenderUser || history[0].Text != "Where should I start?" {
		t.Fatalf("user message not persisted first: %+v", history[0])
	}
	if history[1].Sender != domain.SenderAssistant {
		t.Fatalf("assistant message not persisted: %+v", history[1])
	}
}

func TestSendValidatesInput(t *testing.T) {
	worker, _ := startWorker(t, &stubAdvisor{reply: "hi"})

	if _, err := worker.Send(context.Background(), "USR-1", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty message, got %v", err)
	}
	if _, err := worker.Send(context.Background(), "", "hello"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty user, got %v", err)
	}
}

func TestSendMissingUser(t *testing.T) {
	worker, _ := startWorker(t, &stubAdvisor{reply: "hi"})

	_, err := worker.Send(context.Background(), "USR-missing", "hello")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSendQueueFull(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.AddUser(domain.UserProfile{ID: "USR-1"})
	worker := NewWorker(mem, &stubAdvisor{reply: "hi"}, testLogger(), 1)
	// Worker not started; occupy the single queue slot directly.
	worker.queue <- task{userID: "USR-1", message: "queued", reply: make(chan result, 1)}

	_, err := worker.Send(context.Background(), "USR-1", "hello")
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestSendPersistsFailureReply(t *testing.T) {
	worker, mem := startWorker(t, &stubAdvisor{adviseErr: errors.New("backend down")})

	reply, err := worker.Send(context.Background(), "USR-1", "hello")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !strings.Contains(reply.Text, "trouble") {
		t.Fatalf("expected failure reply, got %q", reply.Text)
	}

	history, err := mem.GetChatHistory(context.Background(), "USR-1", 10)
	if err != nil {
		t.Fatalf("loading history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("failure reply must still be persisted, history size = %d", len(history))
	}
}

func TestSendStreamDeliversOrderedSegments(t *testing.T) {
	reply := "one two three four five six seven eight nine"
	worker, _ := startWorker(t, &stubAdvisor{reply: reply})

	segments, err := worker.SendStream(context.Background(), "USR-1", "hello")
	if err != nil {
		t.Fatalf("SendStream failed: %v", err)
	}

	var assembled strings.Builder
	count := 0
	for segment := range segments {
		assembled.WriteString(segment)
		count++
	}
	if count < 2 {
		t.Fatalf("expected multiple segments, got %d", count)
	}
	if assembled.String() != reply {
		t.Fatalf("assembled = %q, want %q", assembled.String(), reply)
	}
}

func TestSendStreamStopsOnCancel(t *testing.T) {
	reply := strings.Repeat("word ", 100)
	worker, _ := startWorker(t, &stubAdvisor{reply: reply})

	ctx, cancel := context.WithCancel(context.Background())
	segments, err := worker.SendStream(ctx, "USR-1", "hello")
	if err != nil {
		t.Fatalf("SendStream failed: %v", err)
	}

	<-segments
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-segments:
			if !ok {
				return // channel closed after cancellation
			}
		case <-deadline:
			t.Fatalf("stream did not close after cancellation")
		}
	}
}

func TestSplitSegments(t *testing.T) {
	if got := splitSegments(""); got != nil {
		t.Fatalf("empty reply should yield no segments, got %v", got)
	}

	segments := splitSegments("a b c d e")
	if len(segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(segments))
	}
	if segments[0] != "a b c d " || segments[1] != "e" {
		t.Fatalf("unexpected segmentation: %q", segments)
	}
}
