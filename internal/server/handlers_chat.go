package server

import (
	"fmt"
	"net/http"

	"github.com/finpersona/backend/internal/domain"
)

// handleUserChat serves the advisor chat:
//
//	GET  /chat/user/{userID}          conversation history
//	POST /chat/user/{userID}          send a message, full reply
//	POST /chat/user/{userID}/stream   send a message, reply streamed as SSE
func (h *APIHandlers) handleUserChat(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/chat/user/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "user ID is required")
		return
	}
	userID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.chatHistory(w, r, userID)
	case len(parts) == 1 && r.Method == http.MethodPost:
		h.chatSend(w, r, userID)
	case len(parts) == 2 && parts[1] == "stream":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		h.chatStream(w, r, userID)
	case len(parts) == 1:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	default:
		writeError(w, http.StatusNotFound, "unknown chat route")
	}
}

func (h *APIHandlers) chatHistory(w http.ResponseWriter, r *http.Request, userID string) {
	limit := parseInt(r.URL.Query().Get("limit"), 20)
	history, err := h.chat.History(r.Context(), userID, limit)
	if err != nil {
		h.writeServiceError(w, err, "failed to load chat history", "userId", userID)
		return
	}

	items := make([]chatMessageResponse, 0, len(history))
	for _, msg := range history {
		items = append(items, toChatMessageResponse(msg))
	}
	respondJSON(w, http.StatusOK, chatHistoryResponse{UserID: userID, Items: items})
}

func (h *APIHandlers) chatSend(w http.ResponseWriter, r *http.Request, userID string) {
	var payload chatMessageRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.chat.Send(r.Context(), userID, payload.Message)
	if err != nil {
		h.writeServiceError(w, err, "chat message failed", "userId", userID)
		return
	}
	respondJSON(w, http.StatusOK, toChatMessageResponse(reply))
}

// chatStream delivers the assistant reply as server-sent events. The reply
// is fully generated and persisted before the first event is written.
func (h *APIHandlers) chatStream(w http.ResponseWriter, r *http.Request, userID string) {
	var payload chatMessageRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	segments, err := h.chat.SendStream(r.Context(), userID, payload.Message)
	if err != nil {
		h.writeServiceError(w, err, "chat stream failed", "userId", userID)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for segment := range segments {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", segment); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

// --- Request & Response DTOs ---

type chatMessageRequest struct {
	Message string `json:"message"`
}

type chatHistoryResponse struct {
	UserID string                `json:"userId"`
	Items  []chatMessageResponse `json:"items"`
}

type chatMessageResponse struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

func toChatMessageResponse(msg domain.ChatMessage) chatMessageResponse {
	return chatMessageResponse{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Text:      msg.Text,
		CreatedAt: formatTime(msg.CreatedAt),
	}
}
