package domain

import "time"

// Chat message senders.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// ChatMessage is one turn of the advisor conversation.
type ChatMessage struct {
	ID        string
	UserID    string
	Sender    string
	Text      string
	CreatedAt time.Time
}
