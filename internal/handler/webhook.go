package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/finledger/calsync/internal/models"
	"github.com/finledger/calsync/internal/repository"
)

// SettingsResolver resolves which user a notification channel belongs to.
type SettingsResolver interface {
	GetByChannelID(ctx context.Context, channelID string) (*models.SyncSettings, error)
}

// WebhookHandler receives the provider's push notifications.
type WebhookHandler struct {
	settings SettingsResolver
	syncer   Syncer
	logger   *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(settings SettingsResolver, syncer Syncer, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{settings: settings, syncer: syncer, logger: logger}
}

type webhookNotification struct {
	ChannelID     string `json:"channelId"`
	ResourceState string `json:"resourceState"`
}

// HandleNotification handles POST /api/v1/channel/webhook-notification
// requests. The provider identifies the channel in headers; a JSON body is
// accepted as a fallback for relayed notifications.
func (h *WebhookHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	channelID := r.Header.Get("X-Goog-Channel-ID")
	state := r.Header.Get("X-Goog-Resource-State")

	if channelID == "" && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
		var note webhookNotification
		if err := json.NewDecoder(r.Body).Decode(&note); err == nil {
			channelID = note.ChannelID
			if state == "" {
				state = note.ResourceState
			}
		}
	}

	if channelID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("notification carries no channel id"))
		return
	}

	// The provider sends a "sync" message when a channel opens. Nothing has
	// changed yet; just acknowledge it.
	if state == "sync" {
		w.WriteHeader(http.StatusOK)
		return
	}

	settings, err := h.settings.GetByChannelID(r.Context(), channelID)
	if err != nil {
		if errors.Is(err, repository.ErrSettingsNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse("unknown notification channel"))
			return
		}
		writeServiceError(w, h.logger, err)
		return
	}

	res, err := h.syncer.IncrementalSync(r.Context(), settings.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if res.CursorInvalid {
		h.logger.Info("cursor invalid on notification, falling back to full sync",
			zap.String("user_id", settings.UserID),
			zap.String("channel_id", channelID))
		full, err := h.syncer.FullSync(r.Context(), settings.UserID)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, full)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
