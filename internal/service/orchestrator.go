package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"

	"github.com/finledger/calsync/internal/models"
	"github.com/finledger/calsync/internal/repository"
	"github.com/finledger/calsync/internal/translate"
)

// remoteStatusCancelled is the provider's tombstone status for deleted
// events returned by listings.
const remoteStatusCancelled = "cancelled"

// EventStore is the host system's financial event storage.
type EventStore interface {
	GetByID(ctx context.Context, eventID string) (*models.FinancialEvent, error)
	ApplyDraft(ctx context.Context, userID, eventID string, draft models.EventDraft) (*models.FinancialEvent, error)
	Delete(ctx context.Context, eventID string) error
	ListWithoutMapping(ctx context.Context, userID string, from time.Time) ([]models.FinancialEvent, error)
}

// MappingStore persists event-to-event links.
type MappingStore interface {
	GetByInternalID(ctx context.Context, internalEventID string) (*models.SyncMapping, error)
	GetByRemoteID(ctx context.Context, remoteEventID string) (*models.SyncMapping, error)
	Upsert(ctx context.Context, m *models.SyncMapping) (int64, error)
	Delete(ctx context.Context, internalEventID string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// SettingsStore persists per-user sync configuration.
type SettingsStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.SyncSettings, error)
	GetByChannelID(ctx context.Context, channelID string) (*models.SyncSettings, error)
	SaveChangeToken(ctx context.Context, userID string, token *string) error
	SaveChannel(ctx context.Context, userID, channelID, resourceID string, expiresAt time.Time) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// TokenSource hands out valid provider access tokens.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, userID string) (string, error)
}

// Auditor records sync outcomes.
type Auditor interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

// ListOptions narrows a remote listing. Set SyncToken for an incremental
// listing or TimeMin for a windowed one; PageToken continues a prior page.
type ListOptions struct {
	SyncToken string
	TimeMin   time.Time
	PageToken string
}

// EventPage is one page of a remote listing. NextSyncToken arrives on the
// final page only.
type EventPage struct {
	Items         []*calendar.Event
	NextPageToken string
	NextSyncToken string
}

// CalendarAPI is the remote provider surface the engine depends on.
// Implementations translate provider failures into the sentinel taxonomy in
// errors.go.
type CalendarAPI interface {
	CreateEvent(ctx context.Context, token, calendarID string, ev *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, token, calendarID, eventID string, ev *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, token, calendarID, eventID string) error
	GetEvent(ctx context.Context, token, calendarID, eventID string) (*calendar.Event, error)
	ListEvents(ctx context.Context, token, calendarID string, opts ListOptions) (*EventPage, error)
	Watch(ctx context.Context, token, calendarID, channelID, address string) (*ChannelInfo, error)
	StopChannel(ctx context.Context, token, channelID, resourceID string) error
	RevokeToken(ctx context.Context, refreshToken string) error
}

// Config carries the orchestrator's tunables.
type Config struct {
	SyncWindow time.Duration
	LoopGuard  time.Duration
	Retry      RetryPolicy
}

// Orchestrator coordinates every sync flow. It owns no state of its own:
// each operation loads what it needs, runs its units and persists outcomes,
// so concurrent triggers serialize on the mapping store rather than on the
// process.
type Orchestrator struct {
	cfg      Config
	events   EventStore
	mappings MappingStore
	settings SettingsStore
	tokens   TokenSource
	cal      CalendarAPI
	guard    *LoopGuard
	auditor  Auditor
	logger   *zap.Logger
	sleep    func(context.Context, time.Duration) error
}

func NewOrchestrator(cfg Config, events EventStore, mappings MappingStore, settings SettingsStore, tokens TokenSource, cal CalendarAPI, auditor Auditor, logger *zap.Logger) *Orchestrator {
	if cfg.SyncWindow <= 0 {
		cfg.SyncWindow = 30 * 24 * time.Hour
	}
	if cfg.LoopGuard <= 0 {
		cfg.LoopGuard = 5 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff <= 0 {
		cfg.Retry.InitialBackoff = time.Second
	}
	return &Orchestrator{
		cfg:      cfg,
		events:   events,
		mappings: mappings,
		settings: settings,
		tokens:   tokens,
		cal:      cal,
		guard:    NewLoopGuard(cfg.LoopGuard),
		auditor:  auditor,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// SyncEventToRemote pushes one financial event to the remote calendar. An
// event missing from the store propagates as a remote deletion.
func (o *Orchestrator) SyncEventToRemote(ctx context.Context, userID, internalEventID string) (ToRemoteResult, error) {
	settings, err := o.loadEnabledSettings(ctx, userID)
	if err != nil {
		return ToRemoteResult{}, err
	}
	if !settings.AllowsToRemote() {
		return ToRemoteResult{Skipped: true, Reason: "direction does not allow outbound sync"}, nil
	}

	token, err := o.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return ToRemoteResult{}, err
	}

	return o.pushEventToRemote(ctx, settings, token, internalEventID)
}

// pushEventToRemote is the outbound sync unit shared by SyncEventToRemote
// and FullSync.
func (o *Orchestrator) pushEventToRemote(ctx context.Context, settings *models.SyncSettings, token, internalEventID string) (ToRemoteResult, error) {
	userID := settings.UserID

	ev, err := o.events.GetByID(ctx, internalEventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return o.propagateLocalDeletion(ctx, settings, token, internalEventID)
		}
		return ToRemoteResult{}, err
	}

	var mapping *models.SyncMapping
	if m, err := o.mappings.GetByInternalID(ctx, internalEventID); err == nil {
		mapping = m
	} else if !errors.Is(err, repository.ErrMappingNotFound) {
		return ToRemoteResult{}, err
	}

	if o.guard.ShouldSkip(mapping, models.SyncDirectionToRemote) {
		o.audit(ctx, userID, models.AuditActionSyncToRemote, models.SyncDirectionToRemote,
			&internalEventID, remoteIDOf(mapping), models.AuditOutcomeSkipped,
			models.JSONB{"reason": "echo of recent sync"})
		return ToRemoteResult{Skipped: true, Reason: "suppressed echo of a recent sync"}, nil
	}

	// Nothing changed since the last successful sync: repeating the call
	// must not produce a second remote write.
	if mapping != nil && mapping.SyncStatus == models.SyncStatusSynced && !ev.UpdatedAt.After(mapping.LastSyncedAt) {
		return ToRemoteResult{Success: true, Skipped: true, RemoteEventID: mapping.RemoteEventID, Reason: "not modified since last sync"}, nil
	}

	payload := translate.ToRemote(ev, settings)

	var remote *calendar.Event
	if mapping == nil {
		err = o.withRetry(ctx, func() error {
			var callErr error
			remote, callErr = o.cal.CreateEvent(ctx, token, settings.CalendarID, payload)
			return callErr
		})
	} else {
		err = o.withRetry(ctx, func() error {
			var callErr error
			remote, callErr = o.cal.UpdateEvent(ctx, token, settings.CalendarID, mapping.RemoteEventID, payload)
			return callErr
		})
		if errors.Is(err, ErrRemoteNotFound) {
			// The remote copy vanished out from under the mapping;
			// recreate and adopt the new id.
			err = o.withRetry(ctx, func() error {
				var callErr error
				remote, callErr = o.cal.CreateEvent(ctx, token, settings.CalendarID, payload)
				return callErr
			})
		}
	}
	if err != nil {
		o.markMappingError(ctx, mapping, err)
		o.audit(ctx, userID, models.AuditActionSyncToRemote, models.SyncDirectionToRemote,
			&internalEventID, remoteIDOf(mapping), models.AuditOutcomeError,
			models.JSONB{"error": err.Error()})
		return ToRemoteResult{}, fmt.Errorf("failed to push event %s: %w", internalEventID, err)
	}

	now := time.Now()
	next := models.SyncMapping{
		UserID:          userID,
		InternalEventID: ev.ID,
		RemoteEventID:   remote.Id,
		SyncStatus:      models.SyncStatusSynced,
		SyncDirection:   models.SyncDirectionToRemote,
		SyncSource:      models.SyncSourceInternal,
		LastModifiedAt:  now,
		LastSyncedAt:    now,
		Version:         1,
	}
	if mapping != nil {
		next.ID = mapping.ID
		next.CreatedAt = mapping.CreatedAt
		next.Version = mapping.Version + 1
	}
	if _, err := o.mappings.Upsert(ctx, &next); err != nil {
		if isMappingConstraintViolation(err) {
			o.logger.Error("mapping write lost a race",
				zap.String("internal_event_id", ev.ID),
				zap.String("remote_event_id", remote.Id),
				zap.Error(err))
			o.audit(ctx, userID, models.AuditActionSyncToRemote, models.SyncDirectionToRemote,
				&internalEventID, &remote.Id, models.AuditOutcomeError,
				models.JSONB{"error": "mapping constraint violation"})
			return ToRemoteResult{Skipped: true, Reason: "mapping write lost a race"}, nil
		}
		return ToRemoteResult{}, err
	}

	o.audit(ctx, userID, models.AuditActionSyncToRemote, models.SyncDirectionToRemote,
		&internalEventID, &remote.Id, models.AuditOutcomeSuccess, nil)
	return ToRemoteResult{Success: true, RemoteEventID: remote.Id}, nil
}

// propagateLocalDeletion removes the remote copy of an event that no longer
// exists internally. An absent mapping means nothing was ever pushed; an
// already-deleted remote copy still counts as propagated.
func (o *Orchestrator) propagateLocalDeletion(ctx context.Context, settings *models.SyncSettings, token, internalEventID string) (ToRemoteResult, error) {
	mapping, err := o.mappings.GetByInternalID(ctx, internalEventID)
	if err != nil {
		if errors.Is(err, repository.ErrMappingNotFound) {
			return ToRemoteResult{Success: true, Reason: "event and mapping already gone"}, nil
		}
		return ToRemoteResult{}, err
	}

	err = o.withRetry(ctx, func() error {
		return o.cal.DeleteEvent(ctx, token, settings.CalendarID, mapping.RemoteEventID)
	})
	if err != nil && !errors.Is(err, ErrRemoteNotFound) {
		o.audit(ctx, settings.UserID, models.AuditActionSyncToRemote, models.SyncDirectionToRemote,
			&internalEventID, &mapping.RemoteEventID, models.AuditOutcomeError,
			models.JSONB{"error": err.Error()})
		return ToRemoteResult{}, fmt.Errorf("failed to delete remote event %s: %w", mapping.RemoteEventID, err)
	}

	if err := o.mappings.Delete(ctx, internalEventID); err != nil {
		return ToRemoteResult{}, err
	}

	o.audit(ctx, settings.UserID, models.AuditActionSyncToRemote, models.SyncDirectionToRemote,
		&internalEventID, &mapping.RemoteEventID, models.AuditOutcomeDeleted, nil)
	return ToRemoteResult{Success: true, Deleted: true, RemoteEventID: mapping.RemoteEventID}, nil
}

// SyncEventFromRemote pulls one remote event into the internal store. A
// provider not-found, gone, or cancelled status propagates as an internal
// deletion.
func (o *Orchestrator) SyncEventFromRemote(ctx context.Context, userID, remoteEventID string) (FromRemoteResult, error) {
	settings, err := o.loadEnabledSettings(ctx, userID)
	if err != nil {
		return FromRemoteResult{}, err
	}
	if !settings.AllowsFromRemote() {
		return FromRemoteResult{Skipped: true, Reason: "direction does not allow inbound sync"}, nil
	}

	token, err := o.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return FromRemoteResult{}, err
	}

	var remote *calendar.Event
	err = o.withRetry(ctx, func() error {
		var callErr error
		remote, callErr = o.cal.GetEvent(ctx, token, settings.CalendarID, remoteEventID)
		return callErr
	})
	if errors.Is(err, ErrRemoteNotFound) {
		return o.propagateRemoteDeletion(ctx, userID, remoteEventID)
	}
	if err != nil {
		o.audit(ctx, userID, models.AuditActionSyncFromRemote, models.SyncDirectionFromRemote,
			nil, &remoteEventID, models.AuditOutcomeError, models.JSONB{"error": err.Error()})
		return FromRemoteResult{}, fmt.Errorf("failed to fetch remote event %s: %w", remoteEventID, err)
	}

	return o.applyRemoteEvent(ctx, settings, remote)
}

// applyRemoteEvent is the inbound sync unit shared by SyncEventFromRemote,
// FullSync and IncrementalSync. The caller has already fetched the payload.
func (o *Orchestrator) applyRemoteEvent(ctx context.Context, settings *models.SyncSettings, remote *calendar.Event) (FromRemoteResult, error) {
	userID := settings.UserID

	if remote.Status == remoteStatusCancelled {
		return o.propagateRemoteDeletion(ctx, userID, remote.Id)
	}

	draft, ref := translate.ToInternal(remote)

	mapping, err := o.lookupMappingForRemote(ctx, remote.Id, ref)
	if err != nil {
		return FromRemoteResult{}, err
	}

	if o.guard.ShouldSkip(mapping, models.SyncDirectionFromRemote) {
		o.audit(ctx, userID, models.AuditActionSyncFromRemote, models.SyncDirectionFromRemote,
			internalIDOf(mapping), &remote.Id, models.AuditOutcomeSkipped,
			models.JSONB{"reason": "echo of recent sync"})
		return FromRemoteResult{Skipped: true, Reason: "suppressed echo of a recent sync"}, nil
	}

	now := time.Now()

	if mapping == nil {
		ev, err := o.events.ApplyDraft(ctx, userID, "", draft)
		if err != nil {
			return FromRemoteResult{}, err
		}
		next := models.SyncMapping{
			UserID:          userID,
			InternalEventID: ev.ID,
			RemoteEventID:   remote.Id,
			SyncStatus:      models.SyncStatusSynced,
			SyncDirection:   models.SyncDirectionFromRemote,
			SyncSource:      models.SyncSourceRemote,
			LastModifiedAt:  now,
			LastSyncedAt:    now,
			Version:         1,
		}
		if _, err := o.mappings.Upsert(ctx, &next); err != nil {
			if isMappingConstraintViolation(err) {
				o.logger.Error("mapping write lost a race",
					zap.String("internal_event_id", ev.ID),
					zap.String("remote_event_id", remote.Id),
					zap.Error(err))
				return FromRemoteResult{Skipped: true, Reason: "mapping write lost a race"}, nil
			}
			return FromRemoteResult{}, err
		}
		o.audit(ctx, userID, models.AuditActionSyncFromRemote, models.SyncDirectionFromRemote,
			&ev.ID, &remote.Id, models.AuditOutcomeSuccess, models.JSONB{"created": true})
		return FromRemoteResult{Success: true, Created: true, InternalEventID: ev.ID}, nil
	}

	local, err := o.events.GetByID(ctx, mapping.InternalEventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			// Deleted locally but the mapping survives: the outbound
			// cycle owns that deletion, so the inbound update yields.
			return FromRemoteResult{Skipped: true, Reason: "event deleted locally"}, nil
		}
		return FromRemoteResult{}, err
	}

	remoteModified := translate.RemoteUpdated(remote)
	if remoteModified.IsZero() {
		remoteModified = now
	}

	if !remoteModified.After(mapping.LastSyncedAt) {
		return FromRemoteResult{Success: true, Skipped: true, InternalEventID: local.ID, Reason: "remote not modified since last sync"}, nil
	}

	// Both sides changed since the last sync: resolve rather than
	// overwrite blindly. A single-sided change applies directly.
	if local.UpdatedAt.After(mapping.LastSyncedAt) {
		winner := ResolveConflict(local.UpdatedAt, remoteModified)
		o.logger.Info("conflicting write resolved",
			zap.String("internal_event_id", local.ID),
			zap.String("remote_event_id", remote.Id),
			zap.String("winner", string(winner)))
		if winner == LocalWins {
			o.audit(ctx, userID, models.AuditActionSyncFromRemote, models.SyncDirectionFromRemote,
				&local.ID, &remote.Id, models.AuditOutcomeSkipped,
				models.JSONB{"resolution": string(LocalWins)})
			return FromRemoteResult{Skipped: true, InternalEventID: local.ID, Reason: "local change is newer"}, nil
		}
	}

	if _, err := o.events.ApplyDraft(ctx, userID, local.ID, draft); err != nil {
		return FromRemoteResult{}, err
	}

	next := *mapping
	next.RemoteEventID = remote.Id
	next.SyncStatus = models.SyncStatusSynced
	next.SyncDirection = models.SyncDirectionFromRemote
	next.SyncSource = models.SyncSourceRemote
	next.LastModifiedAt = now
	next.LastSyncedAt = now
	next.Version = mapping.Version + 1
	next.ErrorMessage = nil
	if _, err := o.mappings.Upsert(ctx, &next); err != nil {
		if isMappingConstraintViolation(err) {
			o.logger.Error("mapping write lost a race",
				zap.String("internal_event_id", local.ID),
				zap.String("remote_event_id", remote.Id),
				zap.Error(err))
			return FromRemoteResult{Skipped: true, Reason: "mapping write lost a race"}, nil
		}
		return FromRemoteResult{}, err
	}

	o.audit(ctx, userID, models.AuditActionSyncFromRemote, models.SyncDirectionFromRemote,
		&local.ID, &remote.Id, models.AuditOutcomeSuccess, nil)
	return FromRemoteResult{Success: true, Updated: true, InternalEventID: local.ID}, nil
}

// propagateRemoteDeletion removes the internal copy of an event the provider
// no longer has. An absent mapping means nothing to do.
func (o *Orchestrator) propagateRemoteDeletion(ctx context.Context, userID, remoteEventID string) (FromRemoteResult, error) {
	mapping, err := o.mappings.GetByRemoteID(ctx, remoteEventID)
	if err != nil {
		if errors.Is(err, repository.ErrMappingNotFound) {
			return FromRemoteResult{Success: true, Reason: "no mapping for deleted remote event"}, nil
		}
		return FromRemoteResult{}, err
	}

	if err := o.events.Delete(ctx, mapping.InternalEventID); err != nil {
		return FromRemoteResult{}, err
	}
	if err := o.mappings.Delete(ctx, mapping.InternalEventID); err != nil {
		return FromRemoteResult{}, err
	}

	o.audit(ctx, userID, models.AuditActionSyncFromRemote, models.SyncDirectionFromRemote,
		&mapping.InternalEventID, &remoteEventID, models.AuditOutcomeDeleted, nil)
	return FromRemoteResult{Success: true, Deleted: true, InternalEventID: mapping.InternalEventID}, nil
}

// FullSync reconciles the whole window: every remote event in the window
// runs through the inbound unit, then unmapped internal events are pushed
// outbound. Unit failures are isolated into the Errors count; the pass
// continues. The provider's fresh cursor is persisted at the end.
func (o *Orchestrator) FullSync(ctx context.Context, userID string) (FullSyncResult, error) {
	settings, err := o.loadEnabledSettings(ctx, userID)
	if err != nil {
		return FullSyncResult{}, err
	}
	token, err := o.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return FullSyncResult{}, err
	}

	var res FullSyncResult
	timeMin := time.Now().Add(-o.cfg.SyncWindow)

	if settings.AllowsFromRemote() {
		opts := ListOptions{TimeMin: timeMin}
		for {
			var page *EventPage
			err = o.withRetry(ctx, func() error {
				var callErr error
				page, callErr = o.cal.ListEvents(ctx, token, settings.CalendarID, opts)
				return callErr
			})
			if err != nil {
				return res, fmt.Errorf("failed to list remote events: %w", err)
			}

			for _, item := range page.Items {
				if err := ctx.Err(); err != nil {
					return res, err
				}
				if _, unitErr := o.applyRemoteEvent(ctx, settings, item); unitErr != nil {
					res.Errors++
					o.logger.Warn("inbound sync unit failed",
						zap.String("user_id", userID),
						zap.String("remote_event_id", item.Id),
						zap.Error(unitErr))
					continue
				}
				res.Processed++
			}

			if page.NextPageToken == "" {
				if page.NextSyncToken != "" {
					if err := o.settings.SaveChangeToken(ctx, userID, &page.NextSyncToken); err != nil {
						return res, err
					}
				}
				break
			}
			opts.PageToken = page.NextPageToken
		}
	}

	if settings.AllowsToRemote() {
		unmapped, err := o.events.ListWithoutMapping(ctx, userID, timeMin)
		if err != nil {
			return res, err
		}
		for _, ev := range unmapped {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if _, unitErr := o.pushEventToRemote(ctx, settings, token, ev.ID); unitErr != nil {
				res.Errors++
				o.logger.Warn("outbound sync unit failed",
					zap.String("user_id", userID),
					zap.String("internal_event_id", ev.ID),
					zap.Error(unitErr))
				continue
			}
			res.Pushed++
		}
	}

	res.Success = res.Errors == 0
	o.audit(ctx, userID, models.AuditActionFullSync, "", nil, nil, batchOutcome(res.Errors),
		models.JSONB{"processed": res.Processed, "pushed": res.Pushed, "errors": res.Errors})
	return res, nil
}

// IncrementalSync advances the stored change cursor and applies everything
// the provider reports as changed. A missing or rejected cursor is not an
// error: the cursor is cleared and the result tells the caller to fall back
// to FullSync.
func (o *Orchestrator) IncrementalSync(ctx context.Context, userID string) (IncrementalSyncResult, error) {
	settings, err := o.loadEnabledSettings(ctx, userID)
	if err != nil {
		return IncrementalSyncResult{}, err
	}
	if !settings.AllowsFromRemote() {
		return IncrementalSyncResult{Success: true}, nil
	}
	if settings.ChangeToken == nil || *settings.ChangeToken == "" {
		return IncrementalSyncResult{CursorInvalid: true}, nil
	}

	token, err := o.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return IncrementalSyncResult{}, err
	}

	var res IncrementalSyncResult
	opts := ListOptions{SyncToken: *settings.ChangeToken}
	for {
		var page *EventPage
		err = o.withRetry(ctx, func() error {
			var callErr error
			page, callErr = o.cal.ListEvents(ctx, token, settings.CalendarID, opts)
			return callErr
		})
		if errors.Is(err, ErrCursorInvalid) {
			if err := o.settings.SaveChangeToken(ctx, userID, nil); err != nil {
				return res, err
			}
			o.audit(ctx, userID, models.AuditActionIncrementalSync, "", nil, nil,
				models.AuditOutcomeError, models.JSONB{"reason": "cursor invalidated by provider"})
			res.CursorInvalid = true
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("failed to list remote changes: %w", err)
		}

		for _, item := range page.Items {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if _, unitErr := o.applyRemoteEvent(ctx, settings, item); unitErr != nil {
				res.Errors++
				o.logger.Warn("inbound sync unit failed",
					zap.String("user_id", userID),
					zap.String("remote_event_id", item.Id),
					zap.Error(unitErr))
				continue
			}
			res.Processed++
		}

		if page.NextPageToken == "" {
			if page.NextSyncToken != "" {
				if err := o.settings.SaveChangeToken(ctx, userID, &page.NextSyncToken); err != nil {
					return res, err
				}
			}
			break
		}
		opts.PageToken = page.NextPageToken
	}

	res.Success = res.Errors == 0
	o.audit(ctx, userID, models.AuditActionIncrementalSync, "", nil, nil, batchOutcome(res.Errors),
		models.JSONB{"processed": res.Processed, "errors": res.Errors})
	return res, nil
}

func (o *Orchestrator) loadEnabledSettings(ctx context.Context, userID string) (*models.SyncSettings, error) {
	settings, err := o.settings.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, ErrSyncDisabled
	}
	if settings.CalendarID == "" {
		settings.CalendarID = models.DefaultCalendarID
	}
	return settings, nil
}

// lookupMappingForRemote resolves the mapping for an incoming remote event,
// falling back to the payload's inline back-reference when the remote id is
// not yet mapped.
func (o *Orchestrator) lookupMappingForRemote(ctx context.Context, remoteEventID string, ref translate.BackRef) (*models.SyncMapping, error) {
	m, err := o.mappings.GetByRemoteID(ctx, remoteEventID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, repository.ErrMappingNotFound) {
		return nil, err
	}

	if ref.InternalEventID == "" {
		return nil, nil
	}
	m, err = o.mappings.GetByInternalID(ctx, ref.InternalEventID)
	if err == nil {
		return m, nil
	}
	if errors.Is(err, repository.ErrMappingNotFound) {
		return nil, nil
	}
	return nil, err
}

func (o *Orchestrator) withRetry(ctx context.Context, fn func() error) error {
	return retryTransient(ctx, o.cfg.Retry, o.sleep, fn)
}

// markMappingError records a push failure on the mapping. Timestamps and
// source stay untouched: no side was written.
func (o *Orchestrator) markMappingError(ctx context.Context, mapping *models.SyncMapping, cause error) {
	if mapping == nil {
		return
	}
	next := *mapping
	next.SyncStatus = models.SyncStatusError
	next.ErrorMessage = strPtr(cause.Error())
	next.Version = mapping.Version + 1
	if _, err := o.mappings.Upsert(ctx, &next); err != nil {
		o.logger.Error("failed to mark mapping error",
			zap.String("internal_event_id", mapping.InternalEventID),
			zap.Error(err))
	}
}

func (o *Orchestrator) audit(ctx context.Context, userID, action string, direction models.SyncDirection, internalEventID, remoteEventID *string, outcome string, detail models.JSONB) {
	o.auditor.Record(ctx, models.AuditEntry{
		UserID:          userID,
		Action:          action,
		Direction:       string(direction),
		InternalEventID: internalEventID,
		RemoteEventID:   remoteEventID,
		Outcome:         outcome,
		Detail:          detail,
	})
}

func isMappingConstraintViolation(err error) bool {
	return errors.Is(err, repository.ErrStaleMapping) || errors.Is(err, repository.ErrDuplicateMapping)
}

func batchOutcome(errorCount int) string {
	if errorCount > 0 {
		return models.AuditOutcomeError
	}
	return models.AuditOutcomeSuccess
}

func strPtr(s string) *string {
	return &s
}

func remoteIDOf(m *models.SyncMapping) *string {
	if m == nil {
		return nil
	}
	return &m.RemoteEventID
}

func internalIDOf(m *models.SyncMapping) *string {
	if m == nil {
		return nil
	}
	return &m.InternalEventID
}
