package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finledger/calsync/internal/models"
	"github.com/finledger/calsync/internal/repository"
)

// CredentialVault is the token vault surface the channel manager needs:
// live tokens for provider calls plus teardown on disconnect.
type CredentialVault interface {
	TokenSource
	RefreshToken(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) error
}

// ChannelManager maintains the provider's push notification channels and
// handles account disconnects.
type ChannelManager struct {
	settings   SettingsStore
	mappings   MappingStore
	vault      CredentialVault
	cal        CalendarAPI
	auditor    Auditor
	logger     *zap.Logger
	webhookURL string
}

func NewChannelManager(settings SettingsStore, mappings MappingStore, vault CredentialVault, cal CalendarAPI, auditor Auditor, logger *zap.Logger, webhookURL string) *ChannelManager {
	return &ChannelManager{
		settings:   settings,
		mappings:   mappings,
		vault:      vault,
		cal:        cal,
		auditor:    auditor,
		logger:     logger,
		webhookURL: webhookURL,
	}
}

// Renew opens a fresh notification channel and persists its identifiers.
// The prior channel, if any, is stopped best-effort first: the provider
// expires channels on its own, so a failed stop only means a few redundant
// notifications.
func (c *ChannelManager) Renew(ctx context.Context, userID string) (ChannelInfo, error) {
	settings, err := c.settings.GetByUserID(ctx, userID)
	if err != nil {
		return ChannelInfo{}, err
	}
	if !settings.Enabled {
		return ChannelInfo{}, ErrSyncDisabled
	}
	if c.webhookURL == "" {
		return ChannelInfo{}, errors.New("webhook URL is not configured")
	}

	token, err := c.vault.GetValidAccessToken(ctx, userID)
	if err != nil {
		return ChannelInfo{}, err
	}

	if settings.ChannelID != nil && settings.ChannelResourceID != nil {
		if err := c.cal.StopChannel(ctx, token, *settings.ChannelID, *settings.ChannelResourceID); err != nil {
			c.logger.Warn("failed to stop previous channel",
				zap.String("user_id", userID),
				zap.String("channel_id", *settings.ChannelID),
				zap.Error(err))
		}
	}

	calendarID := settings.CalendarID
	if calendarID == "" {
		calendarID = models.DefaultCalendarID
	}

	info, err := c.cal.Watch(ctx, token, calendarID, uuid.New().String(), c.webhookURL)
	if err != nil {
		c.auditor.Record(ctx, models.AuditEntry{
			UserID:  userID,
			Action:  models.AuditActionChannelRenew,
			Outcome: models.AuditOutcomeError,
			Detail:  models.JSONB{"error": err.Error()},
		})
		return ChannelInfo{}, fmt.Errorf("failed to open notification channel: %w", err)
	}

	if err := c.settings.SaveChannel(ctx, userID, info.ChannelID, info.ResourceID, info.ExpiresAt); err != nil {
		return ChannelInfo{}, err
	}

	c.auditor.Record(ctx, models.AuditEntry{
		UserID:  userID,
		Action:  models.AuditActionChannelRenew,
		Outcome: models.AuditOutcomeSuccess,
		Detail:  models.JSONB{"channel_id": info.ChannelID, "expires_at": info.ExpiresAt},
	})
	return *info, nil
}

// Disconnect tears the account down: stop the notification channel, revoke
// the provider grant, then drop credentials, mappings and settings. Provider
// calls are best-effort so a revoked-elsewhere account can still be cleaned
// up locally.
func (c *ChannelManager) Disconnect(ctx context.Context, userID string) error {
	settings, err := c.settings.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrSettingsNotFound) {
		return err
	}

	if settings != nil && settings.ChannelID != nil && settings.ChannelResourceID != nil {
		if token, tokenErr := c.vault.GetValidAccessToken(ctx, userID); tokenErr == nil {
			if stopErr := c.cal.StopChannel(ctx, token, *settings.ChannelID, *settings.ChannelResourceID); stopErr != nil {
				c.logger.Warn("failed to stop channel on disconnect",
					zap.String("user_id", userID),
					zap.Error(stopErr))
			}
		}
	}

	if refresh, refreshErr := c.vault.RefreshToken(ctx, userID); refreshErr == nil && refresh != "" {
		if revokeErr := c.cal.RevokeToken(ctx, refresh); revokeErr != nil {
			c.logger.Warn("failed to revoke provider grant",
				zap.String("user_id", userID),
				zap.Error(revokeErr))
		}
	}

	if err := c.vault.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	if err := c.mappings.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete mappings: %w", err)
	}
	if settings != nil {
		if err := c.settings.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete settings: %w", err)
		}
	}

	c.auditor.Record(ctx, models.AuditEntry{
		UserID:  userID,
		Action:  models.AuditActionDisconnect,
		Outcome: models.AuditOutcomeSuccess,
	})
	c.logger.Info("account disconnected", zap.String("user_id", userID))
	return nil
}
