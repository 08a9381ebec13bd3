package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/finledger/calsync/internal/middleware"
	"github.com/finledger/calsync/internal/service"
)

// Syncer runs the sync flows for one user.
type Syncer interface {
	SyncEventToRemote(ctx context.Context, userID, internalEventID string) (service.ToRemoteResult, error)
	SyncEventFromRemote(ctx context.Context, userID, remoteEventID string) (service.FromRemoteResult, error)
	FullSync(ctx context.Context, userID string) (service.FullSyncResult, error)
	IncrementalSync(ctx context.Context, userID string) (service.IncrementalSyncResult, error)
}

// ChannelService manages push notification channels and account disconnects.
type ChannelService interface {
	Renew(ctx context.Context, userID string) (service.ChannelInfo, error)
	Disconnect(ctx context.Context, userID string) error
}

// SyncHandler handles HTTP requests for sync operations.
type SyncHandler struct {
	syncer   Syncer
	channels ChannelService
	logger   *zap.Logger
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(syncer Syncer, channels ChannelService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{syncer: syncer, channels: channels, logger: logger}
}

type syncToRemoteRequest struct {
	InternalEventID string `json:"internalEventId"`
}

type syncFromRemoteRequest struct {
	RemoteEventID string `json:"remoteEventId"`
}

// HandleSyncToRemote handles POST /api/v1/sync/to-remote requests.
func (h *SyncHandler) HandleSyncToRemote(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	var req syncToRemoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}
	if req.InternalEventID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("internalEventId is required"))
		return
	}

	res, err := h.syncer.SyncEventToRemote(r.Context(), userID, req.InternalEventID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// HandleSyncFromRemote handles POST /api/v1/sync/from-remote requests.
func (h *SyncHandler) HandleSyncFromRemote(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	var req syncFromRemoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}
	if req.RemoteEventID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("remoteEventId is required"))
		return
	}

	res, err := h.syncer.SyncEventFromRemote(r.Context(), userID, req.RemoteEventID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// HandleFullSync handles POST /api/v1/sync/full requests.
func (h *SyncHandler) HandleFullSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	res, err := h.syncer.FullSync(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// HandleIncrementalSync handles POST /api/v1/sync/incremental requests.
// A missing or invalidated cursor is a 409: the caller should run a full
// sync to re-establish one.
func (h *SyncHandler) HandleIncrementalSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	res, err := h.syncer.IncrementalSync(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if res.CursorInvalid {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":         "change cursor is invalid, run a full sync",
			"cursorInvalid": true,
		})
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// HandleRenewChannel handles POST /api/v1/channel/renew requests.
func (h *SyncHandler) HandleRenewChannel(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	info, err := h.channels.Renew(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// HandleDisconnect handles POST /api/v1/sync/disconnect requests.
func (h *SyncHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	if err := h.channels.Disconnect(r.Context(), userID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
