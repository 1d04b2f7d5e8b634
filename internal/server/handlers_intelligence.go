package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/finpersona/backend/internal/domain"
)

// handleUserInsights serves the insight collection:
//
//	GET  /insights/user/{userID}
//	POST /insights/user/{userID}/refresh
//	POST /insights/user/{userID}/transactions
//	POST /insights/user/{userID}/{insightID}/read
//	POST /insights/user/{userID}/{insightID}/action
func (h *APIHandlers) handleUserInsights(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/insights/user/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "user ID is required")
		return
	}
	userID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		h.listInsights(w, r, userID)
	case len(parts) == 2 && parts[1] == "refresh":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		fresh, err := h.intelligence.RefreshInsights(r.Context(), userID)
		if err != nil {
			h.writeServiceError(w, err, "failed to refresh insights", "userId", userID)
			return
		}
		respondJSON(w, http.StatusOK, insightListResponse{UserID: userID, Items: toInsightResponses(fresh)})
	case len(parts) == 2 && parts[1] == "transactions":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		fresh, err := h.intelligence.TransactionInsights(r.Context(), userID)
		if err != nil {
			h.writeServiceError(w, err, "failed to derive transaction insights", "userId", userID)
			return
		}
		respondJSON(w, http.StatusOK, insightListResponse{UserID: userID, Items: toInsightResponses(fresh)})
	case len(parts) == 3 && parts[2] == "read":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		if err := h.intelligence.MarkInsightRead(r.Context(), userID, parts[1]); err != nil {
			h.writeServiceError(w, err, "failed to mark insight read", "userId", userID, "insightId", parts[1])
			return
		}
		respondJSON(w, http.StatusOK, statusResponse{Status: "ok", ID: parts[1]})
	case len(parts) == 3 && parts[2] == "action":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		var payload insightActionRequest
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if payload.ActedUpon == nil {
			writeError(w, http.StatusBadRequest, "actedUpon is required")
			return
		}
		if err := h.intelligence.RecordInsightAction(r.Context(), userID, parts[1], *payload.ActedUpon); err != nil {
			h.writeServiceError(w, err, "failed to record insight action", "userId", userID, "insightId", parts[1])
			return
		}
		respondJSON(w, http.StatusOK, statusResponse{Status: "ok", ID: parts[1]})
	default:
		writeError(w, http.StatusNotFound, "unknown insights route")
	}
}

func (h *APIHandlers) listInsights(w http.ResponseWriter, r *http.Request, userID string) {
	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "failed to load insights", "userId", userID)
		return
	}

	includeExpired := parseBool(r.URL.Query().Get("includeExpired"))
	now := time.Now().UTC()
	items := make([]insightResponse, 0, len(user.Insights))
	for _, insight := range user.Insights {
		if !includeExpired && !insight.Active(now) {
			continue
		}
		items = append(items, toInsightResponse(insight))
	}
	respondJSON(w, http.StatusOK, insightListResponse{UserID: userID, Items: items})
}

// handleUserAnomalies serves the anomaly collection:
//
//	GET  /anomalies/user/{userID}
//	POST /anomalies/user/{userID}/detect
//	POST /anomalies/user/{userID}/{anomalyID}/acknowledge
func (h *APIHandlers) handleUserAnomalies(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/anomalies/user/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "user ID is required")
		return
	}
	userID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		user, err := h.store.GetUser(r.Context(), userID)
		if err != nil {
			h.writeServiceError(w, err, "failed to load anomalies", "userId", userID)
			return
		}
		respondJSON(w, http.StatusOK, anomalyListResponse{UserID: userID, Items: toAnomalyResponses(user.Anomalies)})
	case len(parts) == 2 && parts[1] == "detect":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		fresh, err := h.intelligence.DetectAnomalies(r.Context(), userID)
		if err != nil {
			h.writeServiceError(w, err, "failed to detect anomalies", "userId", userID)
			return
		}
		respondJSON(w, http.StatusOK, anomalyListResponse{UserID: userID, Items: toAnomalyResponses(fresh)})
	case len(parts) == 3 && parts[2] == "acknowledge":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		if err := h.intelligence.AcknowledgeAnomaly(r.Context(), userID, parts[1]); err != nil {
			h.writeServiceError(w, err, "failed to acknowledge anomaly", "userId", userID, "anomalyId", parts[1])
			return
		}
		respondJSON(w, http.StatusOK, statusResponse{Status: "ok", ID: parts[1]})
	default:
		writeError(w, http.StatusNotFound, "unknown anomalies route")
	}
}

// handleUserPredictions serves predicted expenses:
//
//	GET  /predictions/user/{userID}
//	POST /predictions/user/{userID}/refresh
func (h *APIHandlers) handleUserPredictions(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/predictions/user/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "user ID is required")
		return
	}
	userID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		user, err := h.store.GetUser(r.Context(), userID)
		if err != nil {
			h.writeServiceError(w, err, "failed to load predictions", "userId", userID)
			return
		}
		respondJSON(w, http.StatusOK, predictionListResponse{UserID: userID, Items: toPredictionResponses(user.PredictedExpenses)})
	case len(parts) == 2 && parts[1] == "refresh":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		predictions, err := h.intelligence.PredictExpenses(r.Context(), userID)
		if err != nil {
			h.writeServiceError(w, err, "failed to predict expenses", "userId", userID)
			return
		}
		respondJSON(w, http.StatusOK, predictionListResponse{UserID: userID, Items: toPredictionResponses(predictions)})
	default:
		writeError(w, http.StatusNotFound, "unknown predictions route")
	}
}

// handleUserSentiment serves GET /sentiment/user/{userID}.
func (h *APIHandlers) handleUserSentiment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	userID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sentiment/user/"), "/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user ID is required")
		return
	}

	report, err := h.intelligence.AnalyzeSentiment(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "failed to analyze sentiment", "userId", userID)
		return
	}
	respondJSON(w, http.StatusOK, sentimentResponse{
		UserID:           userID,
		OverallSentiment: report.OverallSentiment,
		Confidence:       report.Confidence,
		FinancialHealth:  report.FinancialHealth,
		Explanation:      report.Explanation,
	})
}

// handleUserPatterns serves GET /patterns/user/{userID}?days=N.
func (h *APIHandlers) handleUserPatterns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	userID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/patterns/user/"), "/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user ID is required")
		return
	}

	days := parseInt(r.URL.Query().Get("days"), 90)
	report, err := h.intelligence.SpendingPatterns(r.Context(), userID, days)
	if err != nil {
		h.writeServiceError(w, err, "failed to analyze spending patterns", "userId", userID)
		return
	}

	resp := spendingReportResponse{
		UserID:     report.UserID,
		StartDate:  formatTime(report.StartDate),
		EndDate:    formatTime(report.EndDate),
		TotalSpent: report.TotalSpent,
		Patterns:   make([]spendingPatternResponse, 0, len(report.Patterns)),
	}
	for _, pattern := range report.Patterns {
		resp.Patterns = append(resp.Patterns, spendingPatternResponse{
			Category:           pattern.Category,
			Total:              pattern.Total,
			Count:              pattern.Count,
			Percentage:         pattern.Percentage,
			AverageTransaction: pattern.AverageTransaction,
			TrendDirection:     pattern.TrendDirection,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// --- Request & Response DTOs ---

type insightActionRequest struct {
	ActedUpon *bool `json:"actedUpon"`
}

type insightListResponse struct {
	UserID string            `json:"userId"`
	Items  []insightResponse `json:"items"`
}

type insightResponse struct {
	ID                   string `json:"id"`
	Category             string `json:"category"`
	Description          string `json:"description"`
	Importance           string `json:"importance"`
	CreatedAt            string `json:"createdAt"`
	ExpiresAt            string `json:"expiresAt"`
	IsRead               bool   `json:"isRead"`
	IsActedUpon          *bool  `json:"isActedUpon,omitempty"`
	RelatedTransactionID string `json:"relatedTransactionId,omitempty"`
}

type anomalyListResponse struct {
	UserID string            `json:"userId"`
	Items  []anomalyResponse `json:"items"`
}

type anomalyResponse struct {
	ID             string   `json:"id"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	Severity       string   `json:"severity"`
	Amount         *float64 `json:"amount,omitempty"`
	DetectionDate  string   `json:"detectionDate"`
	IsAcknowledged bool     `json:"isAcknowledged"`
}

type predictionListResponse struct {
	UserID string               `json:"userId"`
	Items  []predictionResponse `json:"items"`
}

type predictionResponse struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	DueDate     string  `json:"dueDate"`
	Confidence  float64 `json:"confidence"`
	IsRecurring bool    `json:"isRecurring"`
}

type sentimentResponse struct {
	UserID           string  `json:"userId"`
	OverallSentiment string  `json:"overallSentiment"`
	Confidence       float64 `json:"confidence"`
	FinancialHealth  string  `json:"financialHealth"`
	Explanation      string  `json:"explanation"`
}

type spendingReportResponse struct {
	UserID     string                    `json:"userId"`
	StartDate  string                    `json:"startDate"`
	EndDate    string                    `json:"endDate"`
	TotalSpent float64                   `json:"totalSpent"`
	Patterns   []spendingPatternResponse `json:"patterns"`
}

type spendingPatternResponse struct {
	Category           string  `json:"category"`
	Total              float64 `json:"total"`
	Count              int     `json:"count"`
	Percentage         float64 `json:"percentage"`
	AverageTransaction float64 `json:"averageTransaction"`
	TrendDirection     string  `json:"trendDirection"`
}

func toInsightResponse(insight domain.Insight) insightResponse {
	return insightResponse{
		ID:                   insight.ID,
		Category:             insight.Category,
		Description:          insight.Description,
		Importance:           insight.Importance,
		CreatedAt:            formatTime(insight.CreatedAt),
		ExpiresAt:            formatTime(insight.ExpiresAt),
		IsRead:               insight.IsRead,
		IsActedUpon:          insight.IsActedUpon,
		RelatedTransactionID: insight.RelatedTransactionID,
	}
}

func toInsightResponses(insights []domain.Insight) []insightResponse {
	out := make([]insightResponse, 0, len(insights))
	for _, insight := range insights {
		out = append(out, toInsightResponse(insight))
	}
	return out
}

func toAnomalyResponses(anomalies []domain.Anomaly) []anomalyResponse {
	out := make([]anomalyResponse, 0, len(anomalies))
	for _, anomaly := range anomalies {
		out = append(out, anomalyResponse{
			ID:             anomaly.ID,
			Category:       anomaly.Category,
			Description:    anomaly.Description,
			Severity:       anomaly.Severity,
			Amount:         anomaly.Amount,
			DetectionDate:  formatTime(anomaly.DetectionDate),
			IsAcknowledged: anomaly.IsAcknowledged,
		})
	}
	return out
}

func toPredictionResponses(predictions []domain.PredictedExpense) []predictionResponse {
	out := make([]predictionResponse, 0, len(predictions))
	for _, prediction := range predictions {
		out = append(out, predictionResponse{
			ID:          prediction.ID,
			Description: prediction.Description,
			Amount:      prediction.Amount,
			Category:    prediction.Category,
			DueDate:     formatTime(prediction.DueDate),
			Confidence:  prediction.Confidence,
			IsRecurring: prediction.IsRecurring,
		})
	}
	return out
}

func splitPath(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
