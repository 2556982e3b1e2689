package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mylesweissleder/newday-engine/pkg/models"
	"github.com/mylesweissleder/newday-engine/pkg/repositories"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// ContactRequest for POST and PUT contact endpoints.
type ContactRequest struct {
	Name            string              `json:"name"`
	Email           *string             `json:"email,omitempty"`
	Company         string              `json:"company,omitempty"`
	Position        string              `json:"position,omitempty"`
	Location        string              `json:"location,omitempty"`
	Industry        string              `json:"industry,omitempty"`
	Tags            []string            `json:"tags,omitempty"`
	Source          string              `json:"source,omitempty"`
	Tier            *models.ContactTier `json:"tier,omitempty"`
	LastContactedAt *string             `json:"last_contacted_at,omitempty"`
}

// ContactsResponse for GET /api/accounts/{aid}/contacts
type ContactsResponse struct {
	Contacts []*models.Contact `json:"contacts"`
	Total    int               `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// ContactHandler handles contact CRUD HTTP requests.
type ContactHandler struct {
	contactRepo repositories.ContactRepository
	logger      *zap.Logger
}

// NewContactHandler creates a new contact handler.
func NewContactHandler(contactRepo repositories.ContactRepository, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{
		contactRepo: contactRepo,
		logger:      logger,
	}
}

// RegisterRoutes registers the contact handler's routes on the given mux.
func (h *ContactHandler) RegisterRoutes(mux *http.ServeMux, accountScope AccountMiddleware) {
	base := "/api/accounts/{aid}"

	mux.HandleFunc("POST "+base+"/contacts", accountScope(h.Create))
	mux.HandleFunc("GET "+base+"/contacts", accountScope(h.List))
	mux.HandleFunc("GET "+base+"/contacts/{cid}", accountScope(h.Get))
	mux.HandleFunc("PUT "+base+"/contacts/{cid}", accountScope(h.Update))
}

// Create handles POST /api/accounts/{aid}/contacts
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, ok := ParseAccountID(w, r, h.logger)
	if !ok {
		return
	}

	req, ok := h.decodeContact(w, r)
	if !ok {
		return
	}

	contact := &models.Contact{
		AccountID: accountID,
		Name:      req.Name,
		Email:     req.Email,
		Company:   req.Company,
		Position:  req.Position,
		Location:  req.Location,
		Industry:  req.Industry,
		Tags:      req.Tags,
		Source:    req.Source,
		Tier:      req.Tier,
	}

	if err := h.contactRepo.Create(r.Context(), contact); err != nil {
		h.logger.Error("Failed to create contact",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, contact); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/accounts/{aid}/contacts
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.ContactStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.ContactStatusActive
	}
	if !models.IsValidContactStatus(status) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_status", "Unknown contact status"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	contacts, err := h.contactRepo.List(r.Context(), status)
	if err != nil {
		h.logger.Error("Failed to list contacts", zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}
	if contacts == nil {
		contacts = []*models.Contact{}
	}

	if err := WriteJSON(w, http.StatusOK, ContactsResponse{Contacts: contacts, Total: len(contacts)}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/accounts/{aid}/contacts/{cid}
func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	contactID, ok := ParseContactID(w, r, h.logger)
	if !ok {
		return
	}

	contact, err := h.contactRepo.GetByID(r.Context(), contactID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, contact); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/accounts/{aid}/contacts/{cid}
func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	contactID, ok := ParseContactID(w, r, h.logger)
	if !ok {
		return
	}

	req, ok := h.decodeContact(w, r)
	if !ok {
		return
	}

	contact, err := h.contactRepo.GetByID(r.Context(), contactID)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	contact.Name = req.Name
	contact.Email = req.Email
	contact.Company = req.Company
	contact.Position = req.Position
	contact.Location = req.Location
	contact.Industry = req.Industry
	contact.Tags = req.Tags
	contact.Source = req.Source
	contact.Tier = req.Tier

	if err := h.contactRepo.Update(r.Context(), contact); err != nil {
		h.logger.Error("Failed to update contact",
			zap.String("contact_id", contactID.String()),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, contact); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *ContactHandler) decodeContact(w http.ResponseWriter, r *http.Request) (*ContactRequest, bool) {
	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	if req.Name == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_name", "Contact name is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	if req.Tier != nil && !models.IsValidContactTier(*req.Tier) {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_tier", "Tier must be A, B or C"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	return &req, true
}
