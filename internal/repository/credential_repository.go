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

var ErrCredentialNotFound = errors.New("credential not found")

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// GetByUserID retrieves the stored credential for a user
func (r *CredentialRepository) GetByUserID(ctx context.Context, userID string) (*models.Credential, error) {
	var cred models.Credential
	result := r.db.WithContext(ctx).First(&cred, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", result.Error)
	}
	return &cred, nil
}

// Upsert stores the credential for a user, replacing any existing one
func (r *CredentialRepository) Upsert(ctx context.Context, cred *models.Credential) error {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"encrypted_access_token", "access_token_nonce",
			"encrypted_refresh_token", "refresh_token_nonce",
			"algorithm_id", "access_expires_at", "updated_at",
		}),
	}).Create(cred)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert credential: %w", result.Error)
	}
	return nil
}

// UpdateTokens updates the encrypted token material and expiry after a refresh
func (r *CredentialRepository) UpdateTokens(ctx context.Context, userID string, encAccess, accessNonce, encRefresh, refreshNonce []byte, accessExpiresAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Credential{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"encrypted_access_token":  encAccess,
			"access_token_nonce":      accessNonce,
			"encrypted_refresh_token": encRefresh,
			"refresh_token_nonce":     refreshNonce,
			"access_expires_at":       accessExpiresAt,
			"updated_at":              time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update tokens: %w", result.Error)
	}
	return nil
}

// DeleteByUserID removes the stored credential for a user
func (r *CredentialRepository) DeleteByUserID(ctx context.Context, userID string) error {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Credential{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete credential: %w", result.Error)
	}
	return nil
}
