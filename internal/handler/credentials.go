package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/finledger/calsync/internal/middleware"
)

// CredentialStorer persists provider OAuth tokens.
type CredentialStorer interface {
	Store(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error
}

// CredentialsHandler receives the tokens obtained by the host's OAuth
// exchange and hands them to the vault.
type CredentialsHandler struct {
	vault  CredentialStorer
	logger *zap.Logger
}

// NewCredentialsHandler creates a new CredentialsHandler.
func NewCredentialsHandler(vault CredentialStorer, logger *zap.Logger) *CredentialsHandler {
	return &CredentialsHandler{vault: vault, logger: logger}
}

type credentialsRequest struct {
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresAt    *time.Time `json:"expiresAt"`
}

// HandleStoreCredentials handles POST /api/v1/credentials requests. Tokens
// never come back out over HTTP, so the success response carries no body.
func (h *CredentialsHandler) HandleStoreCredentials(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}
	if req.AccessToken == "" || req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("accessToken and refreshToken are required"))
		return
	}

	expiresAt := time.Time{}
	if req.ExpiresAt != nil {
		expiresAt = *req.ExpiresAt
	}

	if err := h.vault.Store(r.Context(), userID, req.AccessToken, req.RefreshToken, expiresAt); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
