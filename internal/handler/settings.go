package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/finledger/calsync/internal/middleware"
	"github.com/finledger/calsync/internal/models"
	"github.com/finledger/calsync/internal/repository"
)

// SettingsStore is the settings persistence the handlers depend on.
type SettingsStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.SyncSettings, error)
	Upsert(ctx context.Context, s *models.SyncSettings) error
}

// SettingsHandler handles HTTP requests for per-user sync configuration.
type SettingsHandler struct {
	settings SettingsStore
	logger   *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settings SettingsStore, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

type settingsRequest struct {
	Enabled                     bool   `json:"enabled"`
	Direction                   string `json:"direction"`
	CalendarID                  string `json:"calendarId"`
	IncludeAmountsInDescription bool   `json:"includeAmountsInDescription"`
}

type settingsResponse struct {
	Enabled                     bool       `json:"enabled"`
	Direction                   string     `json:"direction"`
	CalendarID                  string     `json:"calendarId"`
	IncludeAmountsInDescription bool       `json:"includeAmountsInDescription"`
	HasChangeCursor             bool       `json:"hasChangeCursor"`
	ChannelID                   *string    `json:"channelId,omitempty"`
	ChannelExpiresAt            *time.Time `json:"channelExpiresAt,omitempty"`
}

func settingsToResponse(s *models.SyncSettings) settingsResponse {
	return settingsResponse{
		Enabled:                     s.Enabled,
		Direction:                   string(s.Direction),
		CalendarID:                  s.CalendarID,
		IncludeAmountsInDescription: s.IncludeAmountsInDescription,
		HasChangeCursor:             s.ChangeToken != nil && *s.ChangeToken != "",
		ChannelID:                   s.ChannelID,
		ChannelExpiresAt:            s.ChannelExpiresAt,
	}
}

// HandleGetSettings handles GET /api/v1/settings requests.
func (h *SettingsHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	settings, err := h.settings.GetByUserID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrSettingsNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse("sync is not configured for this user"))
			return
		}
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, settingsToResponse(settings))
}

// HandlePutSettings handles PUT /api/v1/settings requests.
func (h *SettingsHandler) HandlePutSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	direction := models.Direction(req.Direction)
	if req.Direction == "" {
		direction = models.DirectionBidirectional
	}
	if !models.IsValidDirection(direction) {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid direction"))
		return
	}

	calendarID := req.CalendarID
	if calendarID == "" {
		calendarID = models.DefaultCalendarID
	}

	settings := &models.SyncSettings{
		UserID:                      userID,
		Enabled:                     req.Enabled,
		Direction:                   direction,
		CalendarID:                  calendarID,
		IncludeAmountsInDescription: req.IncludeAmountsInDescription,
	}
	if err := h.settings.Upsert(r.Context(), settings); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	saved, err := h.settings.GetByUserID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, settingsToResponse(saved))
}
