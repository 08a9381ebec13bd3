// Package scheduler drives the recurring sync passes and channel renewals.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/finledger/calsync/internal/models"
	"github.com/finledger/calsync/internal/service"
)

// SettingsLister enumerates the users the periodic jobs cover.
type SettingsLister interface {
	ListEnabled(ctx context.Context) ([]models.SyncSettings, error)
	ListNeedingChannelRenewal(ctx context.Context, cutoff time.Time) ([]models.SyncSettings, error)
}

// Syncer runs sync passes for one user.
type Syncer interface {
	IncrementalSync(ctx context.Context, userID string) (service.IncrementalSyncResult, error)
	FullSync(ctx context.Context, userID string) (service.FullSyncResult, error)
}

// ChannelRenewer re-registers push channels before they lapse.
type ChannelRenewer interface {
	Renew(ctx context.Context, userID string) (service.ChannelInfo, error)
}

// Config holds the job schedules in standard five-field cron syntax.
// RenewalLeadTime is how far ahead of channel expiry the renewal sweep
// reaches.
type Config struct {
	IncrementalSpec    string
	ChannelRenewalSpec string
	RenewalLeadTime    time.Duration
}

// Scheduler owns the cron loop for incremental syncs and channel renewals.
type Scheduler struct {
	settings SettingsLister
	syncer   Syncer
	channels ChannelRenewer
	logger   *zap.Logger
	cfg      Config
	cron     *cron.Cron
}

// New creates a Scheduler. Zero config fields fall back to every five
// minutes for syncs, hourly for renewals, and a 24 hour renewal lead.
func New(settings SettingsLister, syncer Syncer, channels ChannelRenewer, logger *zap.Logger, cfg Config) *Scheduler {
	if cfg.IncrementalSpec == "" {
		cfg.IncrementalSpec = "*/5 * * * *"
	}
	if cfg.ChannelRenewalSpec == "" {
		cfg.ChannelRenewalSpec = "0 * * * *"
	}
	if cfg.RenewalLeadTime <= 0 {
		cfg.RenewalLeadTime = 24 * time.Hour
	}
	return &Scheduler{
		settings: settings,
		syncer:   syncer,
		channels: channels,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start registers both jobs and launches the cron loop. The jobs stop
// doing work once ctx is cancelled; call Stop to halt the loop itself.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.IncrementalSpec, func() { s.runIncrementalPass(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule incremental sync: %w", err)
	}
	if _, err := c.AddFunc(s.cfg.ChannelRenewalSpec, func() { s.runRenewalPass(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule channel renewal: %w", err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("scheduler started",
		zap.String("incremental_schedule", s.cfg.IncrementalSpec),
		zap.String("renewal_schedule", s.cfg.ChannelRenewalSpec))
	return nil
}

// Stop halts the cron loop and waits for any running job to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// runIncrementalPass syncs every enabled user. A lapsed change cursor for
// one user downgrades that user to a full sync; failures are logged and do
// not stop the pass.
func (s *Scheduler) runIncrementalPass(ctx context.Context) {
	enabled, err := s.settings.ListEnabled(ctx)
	if err != nil {
		s.logger.Error("failed to list enabled users", zap.Error(err))
		return
	}

	for i := range enabled {
		if ctx.Err() != nil {
			return
		}
		userID := enabled[i].UserID

		res, err := s.syncer.IncrementalSync(ctx, userID)
		if err != nil {
			s.logger.Warn("incremental sync failed",
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}
		if res.CursorInvalid {
			s.logger.Info("change cursor missing or lapsed, running full sync",
				zap.String("user_id", userID))
			if _, err := s.syncer.FullSync(ctx, userID); err != nil {
				s.logger.Warn("full sync failed",
					zap.String("user_id", userID),
					zap.Error(err))
			}
			continue
		}
		if res.Errors > 0 {
			s.logger.Warn("incremental sync finished with errors",
				zap.String("user_id", userID),
				zap.Int("errors", res.Errors))
		}
	}
}

// runRenewalPass renews every push channel expiring within the lead time.
func (s *Scheduler) runRenewalPass(ctx context.Context) {
	cutoff := time.Now().Add(s.cfg.RenewalLeadTime)
	expiring, err := s.settings.ListNeedingChannelRenewal(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to list expiring channels", zap.Error(err))
		return
	}

	for i := range expiring {
		if ctx.Err() != nil {
			return
		}
		userID := expiring[i].UserID

		if _, err := s.channels.Renew(ctx, userID); err != nil {
			s.logger.Warn("channel renewal failed",
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}
		s.logger.Info("channel renewed", zap.String("user_id", userID))
	}
}
