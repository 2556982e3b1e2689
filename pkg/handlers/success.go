package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/models"
	"github.com/mylesweissleder/newday-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// RecordFeedbackRequest for POST .../opportunities/{oid}/feedback
type RecordFeedbackRequest struct {
	Rating              int                    `json:"rating"`
	ActualOutcome       models.FeedbackOutcome `json:"actual_outcome"`
	ActualImpact        float64                `json:"actual_impact"`
	TimeInvestedMinutes int                    `json:"time_invested_minutes"`
	Notes               *string                `json:"notes,omitempty"`
}

// RecordFeedbackResponse returns the derived learning signal.
type RecordFeedbackResponse struct {
	Signal *models.LearningSignal `json:"signal"`
}

// RecommendationsResponse for GET .../metrics/recommendations
type RecommendationsResponse struct {
	Recommendations []services.Recommendation `json:"recommendations"`
}

// ============================================================================
// Handler
// ============================================================================

// SuccessHandler handles feedback recording and success metrics requests.
type SuccessHandler struct {
	successService services.SuccessService
	logger         *zap.Logger
}

// NewSuccessHandler creates a new success handler.
func NewSuccessHandler(successService services.SuccessService, logger *zap.Logger) *SuccessHandler {
	return &SuccessHandler{
		successService: successService,
		logger:         logger,
	}
}

// RegisterRoutes registers the success handler's routes on the given mux.
func (h *SuccessHandler) RegisterRoutes(mux *http.ServeMux, accountScope AccountMiddleware) {
	base := "/api/accounts/{aid}"

	mux.HandleFunc("POST "+base+"/opportunities/{oid}/feedback", accountScope(h.RecordFeedback))
	mux.HandleFunc("GET "+base+"/metrics", accountScope(h.GetMetrics))
	mux.HandleFunc("GET "+base+"/metrics/recommendations", accountScope(h.GetRecommendations))
}

// RecordFeedback handles POST /api/accounts/{aid}/opportunities/{oid}/feedback
func (h *SuccessHandler) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	opportunityID, ok := ParseOpportunityID(w, r, h.logger)
	if !ok {
		return
	}

	var req RecordFeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	feedback := &models.OpportunityFeedback{
		OpportunityID:       opportunityID,
		Rating:              req.Rating,
		ActualOutcome:       req.ActualOutcome,
		ActualImpact:        req.ActualImpact,
		TimeInvestedMinutes: req.TimeInvestedMinutes,
		Notes:               req.Notes,
	}

	signal, err := h.successService.RecordFeedback(r.Context(), feedback)
	if err != nil {
		h.logger.Error("Failed to record feedback",
			zap.String("opportunity_id", opportunityID.String()),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, RecordFeedbackResponse{Signal: signal}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetMetrics handles GET /api/accounts/{aid}/metrics
func (h *SuccessHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.successService.ComputeMetrics(r.Context(), windowDays(r))
	if err != nil {
		h.logger.Error("Failed to compute metrics", zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, metrics); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetRecommendations handles GET /api/accounts/{aid}/metrics/recommendations
func (h *SuccessHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.successService.RecommendAdjustments(r.Context(), windowDays(r))
	if err != nil {
		h.logger.Error("Failed to compute recommendations", zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}
	if recs == nil {
		recs = []services.Recommendation{}
	}

	if err := WriteJSON(w, http.StatusOK, RecommendationsResponse{Recommendations: recs}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// windowDays reads the optional ?window_days query parameter. Zero means the
// service default.
func windowDays(r *http.Request) int {
	raw := r.URL.Query().Get("window_days")
	if raw == "" {
		return 0
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		return 0
	}
	return days
}
