// Package handler exposes the sync engine over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/finledger/calsync/internal/repository"
	"github.com/finledger/calsync/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Anything unrecognized is a 500 and gets logged; sentinel failures are the
// caller's problem and are not.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, repository.ErrSettingsNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse("sync is not configured for this user"))
	case errors.Is(err, service.ErrSyncDisabled):
		writeJSON(w, http.StatusConflict, errorResponse("sync is disabled"))
	case errors.Is(err, service.ErrCredentialInvalid):
		writeJSON(w, http.StatusConflict, errorResponse("provider credential is invalid, reconnect the account"))
	case errors.Is(err, service.ErrTransientProvider):
		writeJSON(w, http.StatusBadGateway, errorResponse("calendar provider is unavailable"))
	default:
		logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
	}
}
