package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/models"
	"github.com/mylesweissleder/newday-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// OpportunitiesResponse for GET /api/accounts/{aid}/opportunities
type OpportunitiesResponse struct {
	Opportunities []*models.OpportunitySuggestion `json:"opportunities"`
}

// UpdateOpportunityStatusRequest for POST .../opportunities/{oid}/status
type UpdateOpportunityStatusRequest struct {
	Status models.OpportunityStatus `json:"status"`
}

// ============================================================================
// Handler
// ============================================================================

// OpportunityHandler handles opportunity suggestion HTTP requests.
type OpportunityHandler struct {
	opportunityService services.OpportunityService
	logger             *zap.Logger
}

// NewOpportunityHandler creates a new opportunity handler.
func NewOpportunityHandler(opportunityService services.OpportunityService, logger *zap.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		opportunityService: opportunityService,
		logger:             logger,
	}
}

// RegisterRoutes registers the opportunity handler's routes on the given mux.
func (h *OpportunityHandler) RegisterRoutes(mux *http.ServeMux, accountScope AccountMiddleware) {
	base := "/api/accounts/{aid}"

	mux.HandleFunc("POST "+base+"/opportunities/generate", accountScope(h.Generate))
	mux.HandleFunc("GET "+base+"/opportunities", accountScope(h.List))
	mux.HandleFunc("POST "+base+"/opportunities/{oid}/status", accountScope(h.UpdateStatus))
}

// Generate handles POST /api/accounts/{aid}/opportunities/generate
func (h *OpportunityHandler) Generate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := ParseAccountID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.opportunityService.GenerateBatch(r.Context(), accountID)
	if err != nil {
		h.logger.Error("Opportunity generation failed",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, batchRunResponse(result)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/accounts/{aid}/opportunities
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	opps, err := h.opportunityService.ListPending(r.Context())
	if err != nil {
		h.logger.Error("Failed to list opportunities", zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}
	if opps == nil {
		opps = []*models.OpportunitySuggestion{}
	}

	if err := WriteJSON(w, http.StatusOK, OpportunitiesResponse{Opportunities: opps}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateStatus handles POST /api/accounts/{aid}/opportunities/{oid}/status
func (h *OpportunityHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	opportunityID, ok := ParseOpportunityID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateOpportunityStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	opp, err := h.opportunityService.UpdateStatus(r.Context(), opportunityID, req.Status)
	if err != nil {
		h.logger.Error("Failed to update opportunity status",
			zap.String("opportunity_id", opportunityID.String()),
			zap.String("status", string(req.Status)),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, opp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
