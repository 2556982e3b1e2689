package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/models"
	"github.com/mylesweissleder/newday-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// BatchRunResponse reports the outcome of a discovery or scoring batch.
type BatchRunResponse struct {
	Processed int                 `json:"processed"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Created   int                 `json:"created"`
	Skipped   int                 `json:"skipped"`
	Errors    []models.BatchError `json:"errors,omitempty"`
}

func batchRunResponse(result *models.BatchResult) BatchRunResponse {
	return BatchRunResponse{
		Processed: result.Processed,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Created:   result.Created,
		Skipped:   result.Skipped,
		Errors:    result.Errors,
	}
}

// CandidatesResponse for GET /api/accounts/{aid}/candidates
type CandidatesResponse struct {
	Candidates []*models.PotentialRelationship `json:"candidates"`
}

// ApproveCandidateResponse for POST .../candidates/{rid}/approve
type ApproveCandidateResponse struct {
	Relationship *models.Relationship `json:"relationship"`
}

// ============================================================================
// Handler
// ============================================================================

// DiscoveryHandler handles relationship discovery HTTP requests.
type DiscoveryHandler struct {
	discoveryService services.DiscoveryService
	logger           *zap.Logger
}

// NewDiscoveryHandler creates a new discovery handler.
func NewDiscoveryHandler(discoveryService services.DiscoveryService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		logger:           logger,
	}
}

// RegisterRoutes registers the discovery handler's routes on the given mux.
func (h *DiscoveryHandler) RegisterRoutes(mux *http.ServeMux, accountScope AccountMiddleware) {
	base := "/api/accounts/{aid}"

	mux.HandleFunc("POST "+base+"/discovery/run", accountScope(h.RunBatch))
	mux.HandleFunc("GET "+base+"/candidates", accountScope(h.ListCandidates))
	mux.HandleFunc("POST "+base+"/candidates/{rid}/approve", accountScope(h.Approve))
	mux.HandleFunc("POST "+base+"/candidates/{rid}/reject", accountScope(h.Reject))
}

// RunBatch handles POST /api/accounts/{aid}/discovery/run
func (h *DiscoveryHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	accountID, ok := ParseAccountID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.discoveryService.DiscoverBatch(r.Context(), accountID)
	if err != nil {
		h.logger.Error("Discovery batch failed",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, batchRunResponse(result)); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListCandidates handles GET /api/accounts/{aid}/candidates
func (h *DiscoveryHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.discoveryService.ListPending(r.Context())
	if err != nil {
		h.logger.Error("Failed to list candidates", zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}
	if candidates == nil {
		candidates = []*models.PotentialRelationship{}
	}

	if err := WriteJSON(w, http.StatusOK, CandidatesResponse{Candidates: candidates}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Approve handles POST /api/accounts/{aid}/candidates/{rid}/approve
func (h *DiscoveryHandler) Approve(w http.ResponseWriter, r *http.Request) {
	candidateID, ok := ParseCandidateID(w, r, h.logger)
	if !ok {
		return
	}

	rel, err := h.discoveryService.ApproveCandidate(r.Context(), candidateID)
	if err != nil {
		h.logger.Error("Failed to approve candidate",
			zap.String("candidate_id", candidateID.String()),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApproveCandidateResponse{Relationship: rel}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Reject handles POST /api/accounts/{aid}/candidates/{rid}/reject
func (h *DiscoveryHandler) Reject(w http.ResponseWriter, r *http.Request) {
	candidateID, ok := ParseCandidateID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.discoveryService.RejectCandidate(r.Context(), candidateID); err != nil {
		h.logger.Error("Failed to reject candidate",
			zap.String("candidate_id", candidateID.String()),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
