// Package vault stores the user's provider credentials encrypted at rest and
// hands out valid access tokens, refreshing them through the provider when
// they are expired or about to expire.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/finledger/calsync/internal/models"
	"github.com/finledger/calsync/internal/repository"
	"github.com/finledger/calsync/internal/service"
)

// expiryLeeway refreshes tokens ahead of their stated expiry so in-flight
// calls never carry a token that dies mid-request.
const expiryLeeway = 5 * time.Minute

// TokenRefresher exchanges a refresh token for new access credentials at the
// provider. An empty newRefreshToken means the provider did not rotate it.
type TokenRefresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (accessToken, newRefreshToken string, expiresAt time.Time, err error)
}

// CredentialStore is the persistence the vault depends on.
type CredentialStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Credential, error)
	Upsert(ctx context.Context, cred *models.Credential) error
	UpdateTokens(ctx context.Context, userID string, encAccess, accessNonce, encRefresh, refreshNonce []byte, accessExpiresAt time.Time) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// Auditor records credential lifecycle outcomes.
type Auditor interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

type Vault struct {
	cipher    *Cipher
	creds     CredentialStore
	refresher TokenRefresher
	auditor   Auditor
	logger    *zap.Logger
	now       func() time.Time
}

func New(cipher *Cipher, creds CredentialStore, refresher TokenRefresher, auditor Auditor, logger *zap.Logger) *Vault {
	return &Vault{
		cipher:    cipher,
		creds:     creds,
		refresher: refresher,
		auditor:   auditor,
		logger:    logger,
		now:       time.Now,
	}
}

// Store encrypts and persists tokens obtained by the host's OAuth exchange,
// replacing any credential already stored for the user.
func (v *Vault) Store(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error {
	encAccess, accessNonce, err := v.cipher.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, refreshNonce, err := v.cipher.Encrypt(refreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	cred := &models.Credential{
		UserID:                userID,
		EncryptedAccessToken:  encAccess,
		AccessTokenNonce:      accessNonce,
		EncryptedRefreshToken: encRefresh,
		RefreshTokenNonce:     refreshNonce,
		AlgorithmID:           models.AlgorithmAESGCM,
		AccessExpiresAt:       &expiresAt,
	}
	if err := v.creds.Upsert(ctx, cred); err != nil {
		return err
	}

	v.logger.Info("credential stored", zap.String("user_id", userID))
	return nil
}

// GetValidAccessToken returns a usable access token for the user, refreshing
// through the provider when the stored one is expired or nearly so.
func (v *Vault) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	cred, err := v.creds.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return "", fmt.Errorf("%w: no credential stored", service.ErrCredentialInvalid)
		}
		return "", err
	}

	if cred.AlgorithmID != models.AlgorithmAESGCM {
		return "", fmt.Errorf("%w: %s", ErrUnknownAlgorithm, cred.AlgorithmID)
	}

	if !v.isTokenExpired(cred.AccessExpiresAt) {
		token, err := v.cipher.Decrypt(cred.EncryptedAccessToken, cred.AccessTokenNonce)
		if err != nil {
			return "", fmt.Errorf("%w: access token unreadable", service.ErrCredentialInvalid)
		}
		return token, nil
	}

	return v.refresh(ctx, cred)
}

// isTokenExpired treats a missing expiry as expired
func (v *Vault) isTokenExpired(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return true
	}
	return v.now().Add(expiryLeeway).After(*expiresAt)
}

// refresh exchanges the stored refresh token for new credentials and
// persists them. Exactly one audit entry is recorded per refresh attempt,
// whatever the outcome.
func (v *Vault) refresh(ctx context.Context, cred *models.Credential) (token string, err error) {
	defer func() {
		entry := models.AuditEntry{
			UserID:  cred.UserID,
			Action:  models.AuditActionTokenRefresh,
			Outcome: models.AuditOutcomeSuccess,
		}
		if err != nil {
			entry.Outcome = models.AuditOutcomeError
			entry.Detail = models.JSONB{"error": err.Error()}
		}
		v.auditor.Record(ctx, entry)
	}()

	refreshToken, err := v.cipher.Decrypt(cred.EncryptedRefreshToken, cred.RefreshTokenNonce)
	if err != nil {
		return "", fmt.Errorf("%w: refresh token unreadable", service.ErrCredentialInvalid)
	}

	accessToken, newRefreshToken, expiresAt, err := v.refresher.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}

	// The provider may rotate the refresh token; keep the old one otherwise.
	if newRefreshToken == "" {
		newRefreshToken = refreshToken
	}

	encAccess, accessNonce, err := v.cipher.Encrypt(accessToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefresh, refreshNonce, err := v.cipher.Encrypt(newRefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	if err = v.creds.UpdateTokens(ctx, cred.UserID, encAccess, accessNonce, encRefresh, refreshNonce, expiresAt); err != nil {
		return "", err
	}

	v.logger.Info("access token refreshed", zap.String("user_id", cred.UserID))
	return accessToken, nil
}

// RefreshToken returns the decrypted refresh token so the disconnect flow
// can revoke it at the provider.
func (v *Vault) RefreshToken(ctx context.Context, userID string) (string, error) {
	cred, err := v.creds.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return "", fmt.Errorf("%w: no credential stored", service.ErrCredentialInvalid)
		}
		return "", err
	}
	token, err := v.cipher.Decrypt(cred.EncryptedRefreshToken, cred.RefreshTokenNonce)
	if err != nil {
		return "", fmt.Errorf("%w: refresh token unreadable", service.ErrCredentialInvalid)
	}
	return token, nil
}

// Delete removes the stored credential for a user
func (v *Vault) Delete(ctx context.Context, userID string) error {
	return v.creds.DeleteByUserID(ctx, userID)
}
