package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finledger/calsync/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSettingsNotFound = errors.New("sync settings not found")

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetByUserID retrieves the sync settings for a user
func (r *SettingsRepository) GetByUserID(ctx context.Context, userID string) (*models.SyncSettings, error) {
	var s models.SyncSettings
	result := r.db.WithContext(ctx).First(&s, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get settings: %w", result.Error)
	}
	return &s, nil
}

// GetByChannelID resolves a push channel back to the settings that own it
func (r *SettingsRepository) GetByChannelID(ctx context.Context, channelID string) (*models.SyncSettings, error) {
	var s models.SyncSettings
	result := r.db.WithContext(ctx).First(&s, "channel_id = ?", channelID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to get settings by channel: %w", result.Error)
	}
	return &s, nil
}

// Upsert creates the settings row for a user or updates the user-editable
// fields on conflict.
func (r *SettingsRepository) Upsert(ctx context.Context, s *models.SyncSettings) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enabled", "direction", "calendar_id",
			"include_amounts_in_description", "updated_at",
		}),
	}).Create(s)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert settings: %w", result.Error)
	}
	return nil
}

// SaveChangeToken persists the provider's incremental cursor. A nil token
// clears the cursor, forcing the next sync to be a full one.
func (r *SettingsRepository) SaveChangeToken(ctx context.Context, userID string, token *string) error {
	result := r.db.WithContext(ctx).Model(&models.SyncSettings{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"change_token": token,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save change token: %w", result.Error)
	}
	return nil
}

// SaveChannel records the active push channel for a user
func (r *SettingsRepository) SaveChannel(ctx context.Context, userID, channelID, resourceID string, expiresAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.SyncSettings{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"channel_id":          channelID,
			"channel_resource_id": resourceID,
			"channel_expires_at":  expiresAt,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save channel: %w", result.Error)
	}
	return nil
}

// ListEnabled retrieves all settings rows with sync enabled
func (r *SettingsRepository) ListEnabled(ctx context.Context) ([]models.SyncSettings, error) {
	var settings []models.SyncSettings
	result := r.db.WithContext(ctx).Where("enabled = ?", true).Find(&settings)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list enabled settings: %w", result.Error)
	}
	return settings, nil
}

// ListNeedingChannelRenewal retrieves enabled settings whose push channel is
// missing or expires before the cutoff.
func (r *SettingsRepository) ListNeedingChannelRenewal(ctx context.Context, cutoff time.Time) ([]models.SyncSettings, error) {
	var settings []models.SyncSettings
	result := r.db.WithContext(ctx).
		Where("enabled = ? AND (channel_id IS NULL OR channel_expires_at < ?)", true, cutoff).
		Find(&settings)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list settings needing renewal: %w", result.Error)
	}
	return settings, nil
}

// DeleteByUserID removes the settings row for a user
func (r *SettingsRepository) DeleteByUserID(ctx context.Context, userID string) error {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.SyncSettings{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete settings: %w", result.Error)
	}
	return nil
}
