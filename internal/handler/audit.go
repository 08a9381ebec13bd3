package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/finledger/calsync/internal/middleware"
	"github.com/finledger/calsync/internal/models"
)

// AuditLister reads back recorded sync outcomes.
type AuditLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error)
}

// AuditHandler handles HTTP requests for the audit trail.
type AuditHandler struct {
	audit  AuditLister
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(audit AuditLister, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

type auditEntryResponse struct {
	ID              string       `json:"id"`
	Action          string       `json:"action"`
	Direction       string       `json:"direction,omitempty"`
	InternalEventID *string      `json:"internalEventId,omitempty"`
	RemoteEventID   *string      `json:"remoteEventId,omitempty"`
	Outcome         string       `json:"outcome"`
	Detail          models.JSONB `json:"detail,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
}

// HandleListAudit handles GET /api/v1/audit requests. The optional limit
// query parameter caps how many entries come back, newest first.
func (h *AuditHandler) HandleListAudit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid limit"))
			return
		}
		limit = parsed
	}

	entries, err := h.audit.ListByUser(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, auditEntryResponse{
			ID:              e.ID,
			Action:          e.Action,
			Direction:       e.Direction,
			InternalEventID: e.InternalEventID,
			RemoteEventID:   e.RemoteEventID,
			Outcome:         e.Outcome,
			Detail:          e.Detail,
			Timestamp:       e.Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
