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

// DispatchResponse for POST .../notifications/dispatch
type DispatchResponse struct {
	Sent int `json:"sent"`
}

// DigestResponse for POST .../digest/send. Notification is null when there
// was nothing new to digest.
type DigestResponse struct {
	Notification *models.Notification `json:"notification"`
}

// ============================================================================
// Handler
// ============================================================================

// NotificationHandler handles notification policy HTTP requests.
type NotificationHandler struct {
	notificationService services.NotificationService
	logger              *zap.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(notificationService services.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// RegisterRoutes registers the notification handler's routes on the given mux.
func (h *NotificationHandler) RegisterRoutes(mux *http.ServeMux, accountScope AccountMiddleware) {
	base := "/api/accounts/{aid}"

	mux.HandleFunc("POST "+base+"/notifications/dispatch", accountScope(h.Dispatch))
	mux.HandleFunc("POST "+base+"/digest/send", accountScope(h.SendDigest))
	mux.HandleFunc("GET "+base+"/notifications/settings", accountScope(h.GetSettings))
	mux.HandleFunc("PUT "+base+"/notifications/settings", accountScope(h.SaveSettings))
}

// Dispatch handles POST /api/accounts/{aid}/notifications/dispatch
func (h *NotificationHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	accountID, ok := ParseAccountID(w, r, h.logger)
	if !ok {
		return
	}

	sent, err := h.notificationService.Dispatch(r.Context(), accountID)
	if err != nil {
		h.logger.Error("Notification dispatch failed",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, DispatchResponse{Sent: sent}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SendDigest handles POST /api/accounts/{aid}/digest/send
func (h *NotificationHandler) SendDigest(w http.ResponseWriter, r *http.Request) {
	accountID, ok := ParseAccountID(w, r, h.logger)
	if !ok {
		return
	}

	notification, err := h.notificationService.SendDailyDigest(r.Context(), accountID)
	if err != nil {
		h.logger.Error("Digest send failed",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, DigestResponse{Notification: notification}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetSettings handles GET /api/accounts/{aid}/notifications/settings
func (h *NotificationHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	accountID, ok := ParseAccountID(w, r, h.logger)
	if !ok {
		return
	}

	settings, err := h.notificationService.GetSettings(r.Context(), accountID)
	if err != nil {
		h.logger.Error("Failed to load notification settings",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, settings); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SaveSettings handles PUT /api/accounts/{aid}/notifications/settings
func (h *NotificationHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	accountID, ok := ParseAccountID(w, r, h.logger)
	if !ok {
		return
	}

	var settings models.NotificationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	settings.AccountID = accountID

	if err := h.notificationService.SaveSettings(r.Context(), &settings); err != nil {
		h.logger.Error("Failed to save notification settings",
			zap.String("account_id", accountID.String()),
			zap.Error(err))
		WriteServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, settings); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
