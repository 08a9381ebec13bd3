package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/finledger/calsync/internal/middleware"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Sync        *SyncHandler
	Webhook     *WebhookHandler
	Settings    *SettingsHandler
	Credentials *CredentialsHandler
	Audit       *AuditHandler
	JWTSecret   string
	Logger      *zap.Logger
}

// NewRouter builds the full route tree. Everything under /api/v1 requires a
// bearer token except the webhook endpoint, which the provider calls
// unauthenticated and which is rate limited instead.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(deps.Logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(10, 20))
		r.Post("/api/v1/channel/webhook-notification", deps.Webhook.HandleNotification)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(deps.JWTSecret))

		r.Post("/api/v1/sync/to-remote", deps.Sync.HandleSyncToRemote)
		r.Post("/api/v1/sync/from-remote", deps.Sync.HandleSyncFromRemote)
		r.Post("/api/v1/sync/full", deps.Sync.HandleFullSync)
		r.Post("/api/v1/sync/incremental", deps.Sync.HandleIncrementalSync)
		r.Post("/api/v1/sync/disconnect", deps.Sync.HandleDisconnect)

		r.Post("/api/v1/channel/renew", deps.Sync.HandleRenewChannel)

		r.Get("/api/v1/settings", deps.Settings.HandleGetSettings)
		r.Put("/api/v1/settings", deps.Settings.HandlePutSettings)

		r.Post("/api/v1/credentials", deps.Credentials.HandleStoreCredentials)

		r.Get("/api/v1/audit", deps.Audit.HandleListAudit)
	})

	return r
}
