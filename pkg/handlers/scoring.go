package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/services"
)

// ScoringHandler handles contact scoring HTTP requests.
type ScoringHandler struct {
	scoringService services.ScoringService
	logger         *zap.Logger
}

// NewScoringHandler creates a new scoring handler.
func NewScoringHandler(scoringService services.ScoringService, logger *zap.Logger) *ScoringHandler {
	return &ScoringHandler{
		scoringService: scoringService,
		logger:         logger,
	}
}

// RegisterRoutes registers the scoring handler's routes on the given mux.
func (h *ScoringHandler) RegisterRoutes(mux *http.ServeMux, accountScope AccountMiddleware) {
	base := "/api/accounts/{aid}"

	mux.HandleFunc("POST "+base+"/scoring/run", accountScope(h.RunBatch))
	mux.HandleFunc("GET "+base+"/contacts/{cid}/scorecard", accountScope(h.GetScorecard))
}

// RunBatch handles POST /api/accounts/{aid}/scoring/run
func (h *ScoringHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	accountID, ok := ParseAccountID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.scoringService.ScoreBatch(r.Context(), accountID)
	if err != nil {
		h.logger.Error("Scoring batch failed",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, batchRunResponse(result)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetScorecard handles GET /api/accounts/{aid}/contacts/{cid}/scorecard
func (h *ScoringHandler) GetScorecard(w http.ResponseWriter, r *http.Request) {
	contactID, ok := ParseContactID(w, r, h.logger)
	if !ok {
		return
	}

	card, err := h.scoringService.ScoreContact(r.Context(), contactID)
	if err != nil {
		h.logger.Error("Failed to score contact",
			zap.String("contact_id", contactID.String()),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, card); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
