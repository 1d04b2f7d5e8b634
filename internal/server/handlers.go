package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/finpersona/backend/internal/chat"
	"github.com/finpersona/backend/internal/domain"
	"github.com/finpersona/backend/internal/intelligence"
	"github.com/finpersona/backend/internal/recommend"
	"github.com/finpersona/backend/internal/store"
)

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger       *slog.Logger
	recommender  *recommend.Service
	intelligence *intelligence.Service
	chat         *chat.Worker
	store        store.Store
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, rec *recommend.Service, intel *intelligence.Service, chatWorker *chat.Worker, st store.Store) *APIHandlers {
	return &APIHandlers{
		logger:       logger,
		recommender:  rec,
		intelligence: intel,
		chat:         chatWorker,
		store:        st,
	}
}

// handleUserRecommendations serves GET /recommendations/user/{userID}.
// Passing refresh=true generates a fresh batch instead of listing stored
// recommendations.
func (h *APIHandlers) handleUserRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	userID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/recommendations/user/"), "/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user ID is required")
		return
	}

	query := r.URL.Query()
	var (
		recs []domain.Recommendation
		err  error
	)
	if parseBool(query.Get("refresh")) {
		count := parseInt(query.Get("count"), 3)
		recs, err = h.recommender.Generate(r.Context(), userID, count)
	} else {
		limit := parseInt(query.Get("limit"), 10)
		includeExpired := parseBool(query.Get("includeExpired"))
		recs, err = h.recommender.ListForUser(r.Context(), userID, includeExpired, limit)
	}
	if err != nil {
		h.writeServiceError(w, err, "failed to load recommendations", "userId", userID)
		return
	}

	items := make([]recommendationResponse, 0, len(recs))
	for _, rec := range recs {
		items = append(items, toRecommendationResponse(rec))
	}
	respondJSON(w, http.StatusOK, recommendationListResponse{UserID: userID, Items: items})
}

// handleCompare serves POST /recommendations/compare.
func (h *APIHandlers) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload compareRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comparison, err := h.recommender.Compare(r.Context(), payload.RecommendationIDs)
	if err != nil {
		h.writeServiceError(w, err, "failed to compare recommendations")
		return
	}

	resp := comparisonResponse{Narrative: comparison.Narrative}
	for _, entry := range comparison.Entries {
		resp.Entries = append(resp.Entries, comparisonEntryResponse{
			RecommendationID: entry.RecommendationID,
			ProductID:        entry.ProductID,
			ProductName:      entry.ProductName,
			ProductCategory:  entry.ProductCategory,
			Score:            entry.Score,
			Features:         entry.Features,
			Description:      entry.Description,
			Details:          entry.Details,
		})
	}
	for _, point := range comparison.Points {
		resp.Points = append(resp.Points, comparisonPointResponse{
			Name:        point.Name,
			Description: point.Description,
			Values:      point.Values,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleRecommendationAction serves POST /recommendations/{id}/{action}
// where action is view, click, feedback, conversion, or refresh.
func (h *APIHandlers) handleRecommendationAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/recommendations/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "expected /recommendations/{id}/{action}")
		return
	}
	recID, action := parts[0], parts[1]

	var err error
	switch action {
	case "view":
		err = h.recommender.MarkViewed(r.Context(), recID)
	case "click":
		err = h.recommender.MarkClicked(r.Context(), recID)
	case "refresh":
		err = h.recommender.RefreshContent(r.Context(), recID)
	case "feedback":
		var payload feedbackRequest
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if payload.IsHelpful == nil {
			writeError(w, http.StatusBadRequest, "isHelpful is required")
			return
		}
		err = h.recommender.RecordFeedback(r.Context(), recID, *payload.IsHelpful, payload.FeedbackText)
	case "conversion":
		var payload conversionRequest
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		err = h.recommender.RecordConversion(r.Context(), recID, payload.IsConverted)
	default:
		writeError(w, http.StatusNotFound, "unknown recommendation action")
		return
	}
	if err != nil {
		h.writeServiceError(w, err, "recommendation action failed", "recommendationId", recID, "action", action)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "ok", ID: recID})
}

// --- Request & Response DTOs ---

type compareRequest struct {
	RecommendationIDs []string `json:"recommendationIds"`
}

type feedbackRequest struct {
	IsHelpful    *bool  `json:"isHelpful"`
	FeedbackText string `json:"feedbackText"`
}

type conversionRequest struct {
	IsConverted bool `json:"isConverted"`
}

type recommendationListResponse struct {
	UserID string                   `json:"userId"`
	Items  []recommendationResponse `json:"items"`
}

type recommendationResponse struct {
	ID              string   `json:"id"`
	ProductID       string   `json:"productId"`
	ProductName     string   `json:"productName"`
	ProductCategory string   `json:"productCategory"`
	Score           int      `json:"score"`
	Reason          string   `json:"reason"`
	Features        []string `json:"features"`
	Timestamp       string   `json:"timestamp"`
	ExpiresAt       string   `json:"expiresAt"`
	RefreshedAt     string   `json:"refreshedAt,omitempty"`
	IsViewed        bool     `json:"isViewed"`
	IsClicked       bool     `json:"isClicked"`
	IsHelpful       *bool    `json:"isHelpful,omitempty"`
	IsConverted     bool     `json:"isConverted"`
}

type comparisonResponse struct {
	Entries   []comparisonEntryResponse `json:"entries"`
	Points    []comparisonPointResponse `json:"points"`
	Narrative string                    `json:"narrative"`
}

type comparisonEntryResponse struct {
	RecommendationID string            `json:"recommendationId"`
	ProductID        string            `json:"productId"`
	ProductName      string            `json:"productName"`
	ProductCategory  string            `json:"productCategory"`
	Score            int               `json:"score"`
	Features         []string          `json:"features"`
	Description      string            `json:"description"`
	Details          map[string]string `json:"details"`
}

type comparisonPointResponse struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Values      map[string]string `json:"values"`
}

type statusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func toRecommendationResponse(rec domain.Recommendation) recommendationResponse {
	return recommendationResponse{
		ID:              rec.ID,
		ProductID:       rec.ProductID,
		ProductName:     rec.ProductName,
		ProductCategory: rec.ProductCategory,
		Score:           rec.Score,
		Reason:          rec.Reason,
		Features:        rec.Features,
		Timestamp:       formatTime(rec.Timestamp),
		ExpiresAt:       formatTime(rec.ExpiresAt),
		RefreshedAt:     formatTimePtr(rec.RefreshedAt),
		IsViewed:        rec.IsViewed,
		IsClicked:       rec.IsClicked,
		IsHelpful:       rec.Feedback.IsHelpful,
		IsConverted:     rec.Conversion.IsConverted,
	}
}

// --- Helpers ---

// writeServiceError maps service errors onto HTTP status codes.
func (h *APIHandlers) writeServiceError(w http.ResponseWriter, err error, msg string, logArgs ...any) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "chat queue is full, try again shortly")
	default:
		h.logger.Error(msg, append([]any{"error", err}, logArgs...)...)
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

func parseBool(value string) bool {
	v, err := strconv.ParseBool(value)
	return err == nil && v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
