// Package audit appends sync outcomes to the append-only audit log.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finledger/calsync/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Store is the persistence the recorder depends on.
type Store interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error)
}

type Recorder struct {
	store  Store
	logger *zap.Logger
}

func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record appends one entry, filling in the id and timestamp when unset.
// Failures are logged and swallowed: an audit write must never change a sync
// outcome.
func (r *Recorder) Record(ctx context.Context, entry models.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if err := r.store.Create(ctx, &entry); err != nil {
		r.logger.Error("failed to record audit entry",
			zap.String("user_id", entry.UserID),
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}

// ListByUser returns a user's most recent entries, newest first
func (r *Recorder) ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	return r.store.ListByUser(ctx, userID, limit)
}
