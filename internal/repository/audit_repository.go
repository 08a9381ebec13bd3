package repository

import (
	"context"
	"fmt"

	"github.com/finledger/calsync/internal/models"
	"gorm.io/gorm"
)

// AuditRepository is append-only; entries are never updated or deleted.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit entry
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	result := r.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		return fmt.Errorf("failed to create audit entry: %w", result.Error)
	}
	return nil
}

// ListByUser retrieves a user's most recent audit entries. A limit of zero
// or less falls back to 50.
func (r *AuditRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.AuditEntry
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", result.Error)
	}
	return entries, nil
}
