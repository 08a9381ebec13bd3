package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"

	"github.com/finledger/calsync/internal/models"
	"github.com/finledger/calsync/internal/repository"
)

type mockEventStore struct {
	getByID            func(ctx context.Context, eventID string) (*models.FinancialEvent, error)
	applyDraft         func(ctx context.Context, userID, eventID string, draft models.EventDraft) (*models.FinancialEvent, error)
	delete             func(ctx context.Context, eventID string) error
	listWithoutMapping func(ctx context.Context, userID string, from time.Time) ([]models.FinancialEvent, error)
}

func (m *mockEventStore) GetByID(ctx context.Context, eventID string) (*models.FinancialEvent, error) {
	return m.getByID(ctx, eventID)
}

func (m *mockEventStore) ApplyDraft(ctx context.Context, userID, eventID string, draft models.EventDraft) (*models.FinancialEvent, error) {
	return m.applyDraft(ctx, userID, eventID, draft)
}

func (m *mockEventStore) Delete(ctx context.Context, eventID string) error {
	return m.delete(ctx, eventID)
}

func (m *mockEventStore) ListWithoutMapping(ctx context.Context, userID string, from time.Time) ([]models.FinancialEvent, error) {
	return m.listWithoutMapping(ctx, userID, from)
}

type mockMappingStore struct {
	getByInternalID func(ctx context.Context, internalEventID string) (*models.SyncMapping, error)
	getByRemoteID   func(ctx context.Context, remoteEventID string) (*models.SyncMapping, error)
	upsert          func(ctx context.Context, m *models.SyncMapping) (int64, error)
	delete          func(ctx context.Context, internalEventID string) error
	deleteByUserID  func(ctx context.Context, userID string) error
}

func (m *mockMappingStore) GetByInternalID(ctx context.Context, internalEventID string) (*models.SyncMapping, error) {
	return m.getByInternalID(ctx, internalEventID)
}

func (m *mockMappingStore) GetByRemoteID(ctx context.Context, remoteEventID string) (*models.SyncMapping, error) {
	return m.getByRemoteID(ctx, remoteEventID)
}

func (m *mockMappingStore) Upsert(ctx context.Context, mapping *models.SyncMapping) (int64, error) {
	return m.upsert(ctx, mapping)
}

func (m *mockMappingStore) Delete(ctx context.Context, internalEventID string) error {
	return m.delete(ctx, internalEventID)
}

func (m *mockMappingStore) DeleteByUserID(ctx context.Context, userID string) error {
	return m.deleteByUserID(ctx, userID)
}

type mockSettingsStore struct {
	getByUserID     func(ctx context.Context, userID string) (*models.SyncSettings, error)
	getByChannelID  func(ctx context.Context, channelID string) (*models.SyncSettings, error)
	saveChangeToken func(ctx context.Context, userID string, token *string) error
	saveChannel     func(ctx context.Context, userID, channelID, resourceID string, expiresAt time.Time) error
	deleteByUserID  func(ctx context.Context, userID string) error
}

func (m *mockSettingsStore) GetByUserID(ctx context.Context, userID string) (*models.SyncSettings, error) {
	return m.getByUserID(ctx, userID)
}

func (m *mockSettingsStore) GetByChannelID(ctx context.Context, channelID string) (*models.SyncSettings, error) {
	return m.getByChannelID(ctx, channelID)
}

func (m *mockSettingsStore) SaveChangeToken(ctx context.Context, userID string, token *string) error {
	return m.saveChangeToken(ctx, userID, token)
}

func (m *mockSettingsStore) SaveChannel(ctx context.Context, userID, channelID, resourceID string, expiresAt time.Time) error {
	return m.saveChannel(ctx, userID, channelID, resourceID, expiresAt)
}

func (m *mockSettingsStore) DeleteByUserID(ctx context.Context, userID string) error {
	return m.deleteByUserID(ctx, userID)
}

type mockTokenSource struct {
	getValidAccessToken func(ctx context.Context, userID string) (string, error)
}

func (m *mockTokenSource) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	return m.getValidAccessToken(ctx, userID)
}

type recordingAuditor struct {
	entries []models.AuditEntry
}

func (a *recordingAuditor) Record(_ context.Context, entry models.AuditEntry) {
	a.entries = append(a.entries, entry)
}

func (a *recordingAuditor) countOutcome(outcome string) int {
	n := 0
	for _, e := range a.entries {
		if e.Outcome == outcome {
			n++
		}
	}
	return n
}

type mockCalendar struct {
	createEvent func(ctx context.Context, token, calendarID string, ev *calendar.Event) (*calendar.Event, error)
	updateEvent func(ctx context.Context, token, calendarID, eventID string, ev *calendar.Event) (*calendar.Event, error)
	deleteEvent func(ctx context.Context, token, calendarID, eventID string) error
	getEvent    func(ctx context.Context, token, calendarID, eventID string) (*calendar.Event, error)
	listEvents  func(ctx context.Context, token, calendarID string, opts ListOptions) (*EventPage, error)
	watch       func(ctx context.Context, token, calendarID, channelID, address string) (*ChannelInfo, error)
	stopChannel func(ctx context.Context, token, channelID, resourceID string) error
	revokeToken func(ctx context.Context, refreshToken string) error
}

func (m *mockCalendar) CreateEvent(ctx context.Context, token, calendarID string, ev *calendar.Event) (*calendar.Event, error) {
	return m.createEvent(ctx, token, calendarID, ev)
}

func (m *mockCalendar) UpdateEvent(ctx context.Context, token, calendarID, eventID string, ev *calendar.Event) (*calendar.Event, error) {
	return m.updateEvent(ctx, token, calendarID, eventID, ev)
}

func (m *mockCalendar) DeleteEvent(ctx context.Context, token, calendarID, eventID string) error {
	return m.deleteEvent(ctx, token, calendarID, eventID)
}

func (m *mockCalendar) GetEvent(ctx context.Context, token, calendarID, eventID string) (*calendar.Event, error) {
	return m.getEvent(ctx, token, calendarID, eventID)
}

func (m *mockCalendar) ListEvents(ctx context.Context, token, calendarID string, opts ListOptions) (*EventPage, error) {
	return m.listEvents(ctx, token, calendarID, opts)
}

func (m *mockCalendar) Watch(ctx context.Context, token, calendarID, channelID, address string) (*ChannelInfo, error) {
	return m.watch(ctx, token, calendarID, channelID, address)
}

func (m *mockCalendar) StopChannel(ctx context.Context, token, channelID, resourceID string) error {
	return m.stopChannel(ctx, token, channelID, resourceID)
}

func (m *mockCalendar) RevokeToken(ctx context.Context, refreshToken string) error {
	return m.revokeToken(ctx, refreshToken)
}

func bidirSettings() *models.SyncSettings {
	return &models.SyncSettings{
		ID:         "set-1",
		UserID:     "user-1",
		Enabled:    true,
		Direction:  models.DirectionBidirectional,
		CalendarID: "primary",
	}
}

func settingsStoreReturning(s *models.SyncSettings) *mockSettingsStore {
	return &mockSettingsStore{
		getByUserID: func(_ context.Context, _ string) (*models.SyncSettings, error) {
			return s, nil
		},
	}
}

func staticToken(token string) *mockTokenSource {
	return &mockTokenSource{
		getValidAccessToken: func(_ context.Context, _ string) (string, error) {
			return token, nil
		},
	}
}

func mappingsReturning(m *models.SyncMapping) *mockMappingStore {
	notFound := func() (*models.SyncMapping, error) {
		if m == nil {
			return nil, repository.ErrMappingNotFound
		}
		copied := *m
		return &copied, nil
	}
	return &mockMappingStore{
		getByInternalID: func(_ context.Context, _ string) (*models.SyncMapping, error) { return notFound() },
		getByRemoteID:   func(_ context.Context, _ string) (*models.SyncMapping, error) { return notFound() },
		upsert:          func(_ context.Context, _ *models.SyncMapping) (int64, error) { return 0, nil },
		delete:          func(_ context.Context, _ string) error { return nil },
	}
}

func newTestOrchestrator(events EventStore, mappings MappingStore, settings SettingsStore, tokens TokenSource, cal CalendarAPI, auditor Auditor) *Orchestrator {
	o := NewOrchestrator(Config{}, events, mappings, settings, tokens, cal, auditor, zap.NewNop())
	o.sleep = func(context.Context, time.Duration) error { return nil }
	return o
}

func TestSyncEventToRemote_CreatesUnmappedEvent(t *testing.T) {
	ev := &models.FinancialEvent{
		ID:        "ev-1",
		UserID:    "user-1",
		Title:     "Electricity Bill",
		Amount:    -245.67,
		StartTime: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Now(),
	}
	events := &mockEventStore{
		getByID: func(_ context.Context, _ string) (*models.FinancialEvent, error) { return ev, nil },
	}

	var upserted *models.SyncMapping
	mappings := mappingsReturning(nil)
	mappings.upsert = func(_ context.Context, m *models.SyncMapping) (int64, error) {
		upserted = m
		return 0, nil
	}

	creates := 0
	cal := &mockCalendar{
		createEvent: func(_ context.Context, token, calendarID string, payload *calendar.Event) (*calendar.Event, error) {
			creates++
			if token != "tok-1" {
				t.Errorf("unexpected token %q", token)
			}
			if calendarID != "primary" {
				t.Errorf("unexpected calendar %q", calendarID)
			}
			if payload.Summary != "Electricity Bill" {
				t.Errorf("unexpected summary %q", payload.Summary)
			}
			payload.Id = "rem-1"
			return payload, nil
		},
	}

	auditor := &recordingAuditor{}
	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, auditor)

	res, err := o.SyncEventToRemote(context.Background(), "user-1", "ev-1")
	if err != nil {
		t.Fatalf("SyncEventToRemote() error = %v", err)
	}
	if !res.Success || res.RemoteEventID != "rem-1" {
		t.Errorf("unexpected result %+v", res)
	}
	if creates != 1 {
		t.Errorf("expected 1 create, got %d", creates)
	}
	if upserted == nil {
		t.Fatal("expected a mapping upsert")
	}
	if upserted.SyncStatus != models.SyncStatusSynced {
		t.Errorf("mapping status = %v, want synced", upserted.SyncStatus)
	}
	if upserted.SyncSource != models.SyncSourceInternal {
		t.Errorf("mapping source = %v, want internal", upserted.SyncSource)
	}
	if upserted.Version != 1 {
		t.Errorf("mapping version = %d, want 1", upserted.Version)
	}
	if auditor.countOutcome(models.AuditOutcomeSuccess) != 1 {
		t.Errorf("expected 1 success audit entry, got %d", auditor.countOutcome(models.AuditOutcomeSuccess))
	}
}

func TestSyncEventToRemote_UnchangedEventMakesNoRemoteWrite(t *testing.T) {
	lastSynced := time.Now().Add(-time.Hour)
	ev := &models.FinancialEvent{
		ID:        "ev-1",
		UserID:    "user-1",
		UpdatedAt: lastSynced.Add(-time.Minute),
	}
	events := &mockEventStore{
		getByID: func(_ context.Context, _ string) (*models.FinancialEvent, error) { return ev, nil },
	}
	mappings := mappingsReturning(&models.SyncMapping{
		InternalEventID: "ev-1",
		RemoteEventID:   "rem-1",
		SyncStatus:      models.SyncStatusSynced,
		SyncSource:      models.SyncSourceInternal,
		LastModifiedAt:  lastSynced,
		LastSyncedAt:    lastSynced,
		Version:         3,
	})
	cal := &mockCalendar{
		createEvent: func(_ context.Context, _, _ string, _ *calendar.Event) (*calendar.Event, error) {
			t.Fatal("unchanged event must not be created remotely")
			return nil, nil
		},
		updateEvent: func(_ context.Context, _, _, _ string, _ *calendar.Event) (*calendar.Event, error) {
			t.Fatal("unchanged event must not be updated remotely")
			return nil, nil
		},
	}

	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.SyncEventToRemote(context.Background(), "user-1", "ev-1")
	if err != nil {
		t.Fatalf("SyncEventToRemote() error = %v", err)
	}
	if !res.Success || !res.Skipped {
		t.Errorf("unexpected result %+v", res)
	}
	if res.RemoteEventID != "rem-1" {
		t.Errorf("result remote id = %q, want rem-1", res.RemoteEventID)
	}
}

func TestSyncEventToRemote_SuppressesEchoOfInboundWrite(t *testing.T) {
	ev := &models.FinancialEvent{ID: "ev-1", UserID: "user-1", UpdatedAt: time.Now()}
	events := &mockEventStore{
		getByID: func(_ context.Context, _ string) (*models.FinancialEvent, error) { return ev, nil },
	}
	mappings := mappingsReturning(&models.SyncMapping{
		InternalEventID: "ev-1",
		RemoteEventID:   "rem-1",
		SyncStatus:      models.SyncStatusSynced,
		SyncSource:      models.SyncSourceRemote,
		LastModifiedAt:  time.Now().Add(-time.Second),
		LastSyncedAt:    time.Now().Add(-time.Second),
	})
	cal := &mockCalendar{
		updateEvent: func(_ context.Context, _, _, _ string, _ *calendar.Event) (*calendar.Event, error) {
			t.Fatal("echo must not reach the provider")
			return nil, nil
		},
	}

	auditor := &recordingAuditor{}
	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, auditor)

	res, err := o.SyncEventToRemote(context.Background(), "user-1", "ev-1")
	if err != nil {
		t.Fatalf("SyncEventToRemote() error = %v", err)
	}
	if !res.Skipped {
		t.Errorf("unexpected result %+v", res)
	}
	if auditor.countOutcome(models.AuditOutcomeSkipped) != 1 {
		t.Errorf("expected a skipped audit entry, got %d", auditor.countOutcome(models.AuditOutcomeSkipped))
	}
}

func TestSyncEventToRemote_UpdatesMappedEvent(t *testing.T) {
	lastSynced := time.Now().Add(-time.Hour)
	ev := &models.FinancialEvent{
		ID:        "ev-1",
		UserID:    "user-1",
		Title:     "Rent",
		UpdatedAt: time.Now(),
	}
	events := &mockEventStore{
		getByID: func(_ context.Context, _ string) (*models.FinancialEvent, error) { return ev, nil },
	}

	var upserted *models.SyncMapping
	mappings := mappingsReturning(&models.SyncMapping{
		ID:              "map-1",
		InternalEventID: "ev-1",
		RemoteEventID:   "rem-1",
		SyncStatus:      models.SyncStatusSynced,
		SyncSource:      models.SyncSourceInternal,
		LastModifiedAt:  lastSynced,
		LastSyncedAt:    lastSynced,
		Version:         4,
	})
	mappings.upsert = func(_ context.Context, m *models.SyncMapping) (int64, error) {
		upserted = m
		return 4, nil
	}

	updates := 0
	cal := &mockCalendar{
		updateEvent: func(_ context.Context, _, _, eventID string, payload *calendar.Event) (*calendar.Event, error) {
			updates++
			if eventID != "rem-1" {
				t.Errorf("updated remote id = %q, want rem-1", eventID)
			}
			payload.Id = eventID
			return payload, nil
		},
	}

	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.SyncEventToRemote(context.Background(), "user-1", "ev-1")
	if err != nil {
		t.Fatalf("SyncEventToRemote() error = %v", err)
	}
	if !res.Success || res.RemoteEventID != "rem-1" {
		t.Errorf("unexpected result %+v", res)
	}
	if updates != 1 {
		t.Errorf("expected 1 update, got %d", updates)
	}
	if upserted == nil || upserted.Version != 5 {
		t.Fatalf("expected mapping version 5, got %+v", upserted)
	}
	if upserted.ID != "map-1" {
		t.Errorf("mapping id = %q, want map-1", upserted.ID)
	}
}

func TestSyncEventToRemote_RecreatesWhenRemoteVanished(t *testing.T) {
	ev := &models.FinancialEvent{ID: "ev-1", UserID: "user-1", UpdatedAt: time.Now()}
	events := &mockEventStore{
		getByID: func(_ context.Context, _ string) (*models.FinancialEvent, error) { return ev, nil },
	}

	var upserted *models.SyncMapping
	mappings := mappingsReturning(&models.SyncMapping{
		InternalEventID: "ev-1",
		RemoteEventID:   "rem-old",
		SyncStatus:      models.SyncStatusSynced,
		SyncSource:      models.SyncSourceInternal,
		LastModifiedAt:  time.Now().Add(-time.Hour),
		LastSyncedAt:    time.Now().Add(-time.Hour),
		Version:         1,
	})
	mappings.upsert = func(_ context.Context, m *models.SyncMapping) (int64, error) {
		upserted = m
		return 1, nil
	}

	cal := &mockCalendar{
		updateEvent: func(_ context.Context, _, _, _ string, _ *calendar.Event) (*calendar.Event, error) {
			return nil, ErrRemoteNotFound
		},
		createEvent: func(_ context.Context, _, _ string, payload *calendar.Event) (*calendar.Event, error) {
			payload.Id = "rem-new"
			return payload, nil
		},
	}

	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.SyncEventToRemote(context.Background(), "user-1", "ev-1")
	if err != nil {
		t.Fatalf("SyncEventToRemote() error = %v", err)
	}
	if res.RemoteEventID != "rem-new" {
		t.Errorf("result remote id = %q, want rem-new", res.RemoteEventID)
	}
	if upserted == nil || upserted.RemoteEventID != "rem-new" {
		t.Fatalf("expected mapping to adopt the new remote id, got %+v", upserted)
	}
}

func TestSyncEventToRemote_RetriesTransientFailures(t *testing.T) {
	ev := &models.FinancialEvent{ID: "ev-1", UserID: "user-1", UpdatedAt: time.Now()}
	events := &mockEventStore{
		getByID: func(_ context.Context, _ string) (*models.FinancialEvent, error) { return ev, nil },
	}
	mappings := mappingsReturning(nil)

	creates := 0
	cal := &mockCalendar{
		createEvent: func(_ context.Context, _, _ string, payload *calendar.Event) (*calendar.Event, error) {
			creates++
			if creates < 3 {
				return nil, fmt.Errorf("create: %w", ErrTransientProvider)
			}
			payload.Id = "rem-1"
			return payload, nil
		},
	}

	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.SyncEventToRemote(context.Background(), "user-1", "ev-1")
	if err != nil {
		t.Fatalf("SyncEventToRemote() error = %v", err)
	}
	if !res.Success {
		t.Errorf("unexpected result %+v", res)
	}
	if creates != 3 {
		t.Errorf("expected 3 attempts, got %d", creates)
	}
}

func TestSyncEventToRemote_MarksMappingAfterExhaustedRetries(t *testing.T) {
	lastModified := time.Now().Add(-time.Hour)
	ev := &models.FinancialEvent{ID: "ev-1", UserID: "user-1", UpdatedAt: time.Now()}
	events := &mockEventStore{
		getByID: func(_ context.Context, _ string) (*models.FinancialEvent, error) { return ev, nil },
	}

	var upserted *models.SyncMapping
	mappings := mappingsReturning(&models.SyncMapping{
		InternalEventID: "ev-1",
		RemoteEventID:   "rem-1",
		SyncStatus:      models.SyncStatusSynced,
		SyncSource:      models.SyncSourceInternal,
		LastModifiedAt:  lastModified,
		LastSyncedAt:    lastModified,
		Version:         2,
	})
	mappings.upsert = func(_ context.Context, m *models.SyncMapping) (int64, error) {
		upserted = m
		return 2, nil
	}

	updates := 0
	cal := &mockCalendar{
		updateEvent: func(_ context.Context, _, _, _ string, _ *calendar.Event) (*calendar.Event, error) {
			updates++
			return nil, ErrTransientProvider
		},
	}

	auditor := &recordingAuditor{}
	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, auditor)

	_, err := o.SyncEventToRemote(context.Background(), "user-1", "ev-1")
	if !errors.Is(err, ErrTransientProvider) {
		t.Fatalf("SyncEventToRemote() error = %v, want ErrTransientProvider", err)
	}
	if updates != 3 {
		t.Errorf("expected 3 attempts, got %d", updates)
	}
	if upserted == nil {
		t.Fatal("expected the mapping to record the failure")
	}
	if upserted.SyncStatus != models.SyncStatusError {
		t.Errorf("mapping status = %v, want error", upserted.SyncStatus)
	}
	if upserted.ErrorMessage == nil || *upserted.ErrorMessage == "" {
		t.Error("expected an error message on the mapping")
	}
	if !upserted.LastModifiedAt.Equal(lastModified) {
		t.Error("a failed push must not advance the mapping timestamps")
	}
	if auditor.countOutcome(models.AuditOutcomeError) != 1 {
		t.Errorf("expected 1 error audit entry, got %d", auditor.countOutcome(models.AuditOutcomeError))
	}
}

func TestSyncEventToRemote_PropagatesLocalDeletion(t *testing.T) {
	events := &mockEventStore{
		getByID: func(_ context.Context, _ string) (*models.FinancialEvent, error) {
			return nil, repository.ErrEventNotFound
		},
	}

	deletedMapping := ""
	mappings := mappingsReturning(&models.SyncMapping{
		InternalEventID: "ev-1",
		RemoteEventID:   "rem-1",
	})
	mappings.delete = func(_ context.Context, internalEventID string) error {
		deletedMapping = internalEventID
		return nil
	}

	deletedRemote := ""
	cal := &mockCalendar{
		deleteEvent: func(_ context.Context, _, _, eventID string) error {
			deletedRemote = eventID
			return nil
		},
	}

	auditor := &recordingAuditor{}
	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, auditor)

	res, err := o.SyncEventToRemote(context.Background(), "user-1", "ev-1")
	if err != nil {
		t.Fatalf("SyncEventToRemote() error = %v", err)
	}
	if !res.Success || !res.Deleted {
		t.Errorf("unexpected result %+v", res)
	}
	if deletedRemote != "rem-1" {
		t.Errorf("deleted remote id = %q, want rem-1", deletedRemote)
	}
	if deletedMapping != "ev-1" {
		t.Errorf("deleted mapping for %q, want ev-1", deletedMapping)
	}
	if auditor.countOutcome(models.AuditOutcomeDeleted) != 1 {
		t.Errorf("expected 1 deleted audit entry, got %d", auditor.countOutcome(models.AuditOutcomeDeleted))
	}
}

func TestSyncEventToRemote_DeletionToleratesMissingRemote(t *testing.T) {
	events := &mockEventStore{
		getByID: func(_ context.Context, _ string) (*models.FinancialEvent, error) {
			return nil, repository.ErrEventNotFound
		},
	}
	mappings := mappingsReturning(&models.SyncMapping{InternalEventID: "ev-1", RemoteEventID: "rem-1"})
	cal := &mockCalendar{
		deleteEvent: func(_ context.Context, _, _, _ string) error { return ErrRemoteNotFound },
	}

	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.SyncEventToRemote(context.Background(), "user-1", "ev-1")
	if err != nil {
		t.Fatalf("SyncEventToRemote() error = %v", err)
	}
	if !res.Success || !res.Deleted {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestSyncEventToRemote_DisabledSync(t *testing.T) {
	settings := bidirSettings()
	settings.Enabled = false

	o := newTestOrchestrator(nil, nil, settingsStoreReturning(settings), nil, nil, &recordingAuditor{})

	_, err := o.SyncEventToRemote(context.Background(), "user-1", "ev-1")
	if !errors.Is(err, ErrSyncDisabled) {
		t.Errorf("SyncEventToRemote() error = %v, want ErrSyncDisabled", err)
	}
}

func TestSyncEventToRemote_InboundOnlyDirectionSkips(t *testing.T) {
	settings := bidirSettings()
	settings.Direction = models.DirectionFromRemoteOnly

	tokens := &mockTokenSource{
		getValidAccessToken: func(_ context.Context, _ string) (string, error) {
			t.Fatal("direction gate must come before token use")
			return "", nil
		},
	}
	o := newTestOrchestrator(nil, nil, settingsStoreReturning(settings), tokens, nil, &recordingAuditor{})

	res, err := o.SyncEventToRemote(context.Background(), "user-1", "ev-1")
	if err != nil {
		t.Fatalf("SyncEventToRemote() error = %v", err)
	}
	if !res.Skipped {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestSyncEventFromRemote_CreatesInternalEvent(t *testing.T) {
	remote := &calendar.Event{
		Id:          "rem-1",
		Summary:     "Loan Payment",
		Description: "Monthly installment\n\nValue: -512.00",
		Updated:     time.Now().UTC().Format(time.RFC3339),
		Start:       &calendar.EventDateTime{DateTime: "2026-03-20T10:00:00Z"},
		End:         &calendar.EventDateTime{DateTime: "2026-03-20T10:30:00Z"},
	}

	var createdDraft models.EventDraft
	events := &mockEventStore{
		applyDraft: func(_ context.Context, userID, eventID string, draft models.EventDraft) (*models.FinancialEvent, error) {
			if eventID != "" {
				t.Errorf("expected a creation, got update of %q", eventID)
			}
			createdDraft = draft
			return &models.FinancialEvent{ID: "ev-new", UserID: userID}, nil
		},
	}

	var upserted *models.SyncMapping
	mappings := mappingsReturning(nil)
	mappings.upsert = func(_ context.Context, m *models.SyncMapping) (int64, error) {
		upserted = m
		return 0, nil
	}

	cal := &mockCalendar{
		getEvent: func(_ context.Context, _, _, _ string) (*calendar.Event, error) { return remote, nil },
	}

	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.SyncEventFromRemote(context.Background(), "user-1", "rem-1")
	if err != nil {
		t.Fatalf("SyncEventFromRemote() error = %v", err)
	}
	if !res.Success || !res.Created || res.InternalEventID != "ev-new" {
		t.Errorf("unexpected result %+v", res)
	}
	if createdDraft.Amount == nil || *createdDraft.Amount != -512.00 {
		t.Errorf("draft amount = %v, want -512.00", createdDraft.Amount)
	}
	if createdDraft.Description != "Monthly installment" {
		t.Errorf("draft description = %q, want marker stripped", createdDraft.Description)
	}
	if upserted == nil {
		t.Fatal("expected a mapping upsert")
	}
	if upserted.SyncSource != models.SyncSourceRemote {
		t.Errorf("mapping source = %v, want remote", upserted.SyncSource)
	}
	if upserted.Version != 1 {
		t.Errorf("mapping version = %d, want 1", upserted.Version)
	}
}

func TestSyncEventFromRemote_RemoteWinsConflict(t *testing.T) {
	lastSynced := time.Now().Add(-time.Hour)
	remote := &calendar.Event{
		Id:      "rem-1",
		Summary: "Updated remotely",
		Updated: lastSynced.Add(30 * time.Minute).UTC().Format(time.RFC3339),
		Start:   &calendar.EventDateTime{DateTime: "2026-03-20T10:00:00Z"},
	}

	applied := false
	events := &mockEventStore{
		getByID: func(_ context.Context, _ string) (*models.FinancialEvent, error) {
			return &models.FinancialEvent{ID: "ev-1", UserID: "user-1", UpdatedAt: lastSynced.Add(10 * time.Minute)}, nil
		},
		applyDraft: func(_ context.Context, _, eventID string, _ models.EventDraft) (*models.FinancialEvent, error) {
			applied = true
			if eventID != "ev-1" {
				t.Errorf("applied to %q, want ev-1", eventID)
			}
			return &models.FinancialEvent{ID: "ev-1"}, nil
		},
	}

	var upserted *models.SyncMapping
	mappings := mappingsReturning(&models.SyncMapping{
		InternalEventID: "ev-1",
		RemoteEventID:   "rem-1",
		SyncStatus:      models.SyncStatusSynced,
		SyncSource:      models.SyncSourceRemote,
		LastModifiedAt:  lastSynced,
		LastSyncedAt:    lastSynced,
		Version:         2,
	})
	mappings.upsert = func(_ context.Context, m *models.SyncMapping) (int64, error) {
		upserted = m
		return 2, nil
	}

	cal := &mockCalendar{
		getEvent: func(_ context.Context, _, _, _ string) (*calendar.Event, error) { return remote, nil },
	}

	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.SyncEventFromRemote(context.Background(), "user-1", "rem-1")
	if err != nil {
		t.Fatalf("SyncEventFromRemote() error = %v", err)
	}
	if !res.Success || !res.Updated || res.InternalEventID != "ev-1" {
		t.Errorf("unexpected result %+v", res)
	}
	if !applied {
		t.Error("expected the remote change to be applied")
	}
	if upserted == nil || upserted.Version != 3 {
		t.Fatalf("expected mapping version 3, got %+v", upserted)
	}
}

func TestSyncEventFromRemote_LocalWinsConflictSkips(t *testing.T) {
	lastSynced := time.Now().Add(-time.Hour)
	remote := &calendar.Event{
		Id:      "rem-1",
		Summary: "Updated remotely",
		Updated: lastSynced.Add(10 * time.Minute).UTC().Format(time.RFC3339),
		Start:   &calendar.EventDateTime{DateTime: "2026-03-20T10:00:00Z"},
	}

	events := &mockEventStore{
		getByID: func(_ context.Context, _ string) (*models.FinancialEvent, error) {
			return &models.FinancialEvent{ID: "ev-1", UserID: "user-1", UpdatedAt: lastSynced.Add(30 * time.Minute)}, nil
		},
		applyDraft: func(_ context.Context, _, _ string, _ models.EventDraft) (*models.FinancialEvent, error) {
			t.Fatal("a losing remote change must not be applied")
			return nil, nil
		},
	}
	mappings := mappingsReturning(&models.SyncMapping{
		InternalEventID: "ev-1",
		RemoteEventID:   "rem-1",
		SyncStatus:      models.SyncStatusSynced,
		SyncSource:      models.SyncSourceRemote,
		LastModifiedAt:  lastSynced,
		LastSyncedAt:    lastSynced,
	})
	cal := &mockCalendar{
		getEvent: func(_ context.Context, _, _, _ string) (*calendar.Event, error) { return remote, nil },
	}

	auditor := &recordingAuditor{}
	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, auditor)

	res, err := o.SyncEventFromRemote(context.Background(), "user-1", "rem-1")
	if err != nil {
		t.Fatalf("SyncEventFromRemote() error = %v", err)
	}
	if !res.Skipped || res.Reason != "local change is newer" {
		t.Errorf("unexpected result %+v", res)
	}
	if auditor.countOutcome(models.AuditOutcomeSkipped) != 1 {
		t.Errorf("expected 1 skipped audit entry, got %d", auditor.countOutcome(models.AuditOutcomeSkipped))
	}
}

func TestSyncEventFromRemote_SuppressesEchoOfOutboundWrite(t *testing.T) {
	remote := &calendar.Event{
		Id:      "rem-1",
		Summary: "Just pushed",
		Updated: time.Now().UTC().Format(time.RFC3339),
		Start:   &calendar.EventDateTime{DateTime: "2026-03-20T10:00:00Z"},
	}

	events := &mockEventStore{
		applyDraft: func(_ context.Context, _, _ string, _ models.EventDraft) (*models.FinancialEvent, error) {
			t.Fatal("echo must not be applied")
			return nil, nil
		},
	}
	mappings := mappingsReturning(&models.SyncMapping{
		InternalEventID: "ev-1",
		RemoteEventID:   "rem-1",
		SyncStatus:      models.SyncStatusSynced,
		SyncSource:      models.SyncSourceInternal,
		LastModifiedAt:  time.Now().Add(-time.Second),
		LastSyncedAt:    time.Now().Add(-time.Second),
	})
	cal := &mockCalendar{
		getEvent: func(_ context.Context, _, _, _ string) (*calendar.Event, error) { return remote, nil },
	}

	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.SyncEventFromRemote(context.Background(), "user-1", "rem-1")
	if err != nil {
		t.Fatalf("SyncEventFromRemote() error = %v", err)
	}
	if !res.Skipped {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestSyncEventFromRemote_PropagatesRemoteDeletion(t *testing.T) {
	deletedEvent := ""
	events := &mockEventStore{
		delete: func(_ context.Context, eventID string) error {
			deletedEvent = eventID
			return nil
		},
	}

	deletedMapping := ""
	mappings := mappingsReturning(&models.SyncMapping{InternalEventID: "ev-1", RemoteEventID: "rem-1"})
	mappings.delete = func(_ context.Context, internalEventID string) error {
		deletedMapping = internalEventID
		return nil
	}

	cal := &mockCalendar{
		getEvent: func(_ context.Context, _, _, _ string) (*calendar.Event, error) {
			return nil, ErrRemoteNotFound
		},
	}

	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.SyncEventFromRemote(context.Background(), "user-1", "rem-1")
	if err != nil {
		t.Fatalf("SyncEventFromRemote() error = %v", err)
	}
	if !res.Success || !res.Deleted || res.InternalEventID != "ev-1" {
		t.Errorf("unexpected result %+v", res)
	}
	if deletedEvent != "ev-1" {
		t.Errorf("deleted event %q, want ev-1", deletedEvent)
	}
	if deletedMapping != "ev-1" {
		t.Errorf("deleted mapping for %q, want ev-1", deletedMapping)
	}
}

func TestSyncEventFromRemote_CancelledStatusDeletes(t *testing.T) {
	deleted := false
	events := &mockEventStore{
		delete: func(_ context.Context, _ string) error {
			deleted = true
			return nil
		},
	}
	mappings := mappingsReturning(&models.SyncMapping{InternalEventID: "ev-1", RemoteEventID: "rem-1"})
	cal := &mockCalendar{
		getEvent: func(_ context.Context, _, _, _ string) (*calendar.Event, error) {
			return &calendar.Event{Id: "rem-1", Status: "cancelled"}, nil
		},
	}

	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.SyncEventFromRemote(context.Background(), "user-1", "rem-1")
	if err != nil {
		t.Fatalf("SyncEventFromRemote() error = %v", err)
	}
	if !res.Deleted || !deleted {
		t.Errorf("expected a cancelled remote event to delete the local copy, got %+v", res)
	}
}

func TestSyncEventFromRemote_BackRefResolvesMapping(t *testing.T) {
	lastSynced := time.Now().Add(-time.Hour)
	remote := &calendar.Event{
		Id:      "rem-renamed",
		Summary: "Renamed on provider side",
		Updated: time.Now().UTC().Format(time.RFC3339),
		Start:   &calendar.EventDateTime{DateTime: "2026-03-20T10:00:00Z"},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{"finledgerEventId": "ev-1", "finledgerOrigin": "finledger"},
		},
	}

	events := &mockEventStore{
		getByID: func(_ context.Context, _ string) (*models.FinancialEvent, error) {
			return &models.FinancialEvent{ID: "ev-1", UserID: "user-1", UpdatedAt: lastSynced}, nil
		},
		applyDraft: func(_ context.Context, _, eventID string, _ models.EventDraft) (*models.FinancialEvent, error) {
			if eventID != "ev-1" {
				t.Errorf("applied to %q, want ev-1", eventID)
			}
			return &models.FinancialEvent{ID: "ev-1"}, nil
		},
	}

	mapping := &models.SyncMapping{
		InternalEventID: "ev-1",
		RemoteEventID:   "rem-1",
		SyncStatus:      models.SyncStatusSynced,
		SyncSource:      models.SyncSourceRemote,
		LastModifiedAt:  lastSynced,
		LastSyncedAt:    lastSynced,
	}
	mappings := &mockMappingStore{
		getByRemoteID: func(_ context.Context, _ string) (*models.SyncMapping, error) {
			return nil, repository.ErrMappingNotFound
		},
		getByInternalID: func(_ context.Context, internalEventID string) (*models.SyncMapping, error) {
			if internalEventID != "ev-1" {
				t.Errorf("looked up mapping for %q, want ev-1", internalEventID)
			}
			copied := *mapping
			return &copied, nil
		},
		upsert: func(_ context.Context, _ *models.SyncMapping) (int64, error) { return 1, nil },
	}

	cal := &mockCalendar{
		getEvent: func(_ context.Context, _, _, _ string) (*calendar.Event, error) { return remote, nil },
	}

	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.SyncEventFromRemote(context.Background(), "user-1", "rem-renamed")
	if err != nil {
		t.Fatalf("SyncEventFromRemote() error = %v", err)
	}
	if !res.Success || res.InternalEventID != "ev-1" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestFullSync_IsolatesFailingUnit(t *testing.T) {
	remoteItems := []*calendar.Event{
		{Id: "rem-1", Summary: "One", Updated: time.Now().UTC().Format(time.RFC3339), Start: &calendar.EventDateTime{DateTime: "2026-03-20T10:00:00Z"}},
		{Id: "rem-2", Summary: "Two", Updated: time.Now().UTC().Format(time.RFC3339), Start: &calendar.EventDateTime{DateTime: "2026-03-21T10:00:00Z"}},
	}
	unmapped := []models.FinancialEvent{
		{ID: "ev-10", UserID: "user-1", UpdatedAt: time.Now()},
		{ID: "ev-11", UserID: "user-1", UpdatedAt: time.Now()},
		{ID: "ev-12", UserID: "user-1", UpdatedAt: time.Now()},
	}

	events := &mockEventStore{
		getByID: func(_ context.Context, eventID string) (*models.FinancialEvent, error) {
			for i := range unmapped {
				if unmapped[i].ID == eventID {
					return &unmapped[i], nil
				}
			}
			return nil, repository.ErrEventNotFound
		},
		applyDraft: func(_ context.Context, userID, _ string, draft models.EventDraft) (*models.FinancialEvent, error) {
			return &models.FinancialEvent{ID: "ev-" + draft.Title, UserID: userID}, nil
		},
		listWithoutMapping: func(_ context.Context, _ string, _ time.Time) ([]models.FinancialEvent, error) {
			return unmapped, nil
		},
	}
	mappings := mappingsReturning(nil)

	savedCursor := ""
	settings := settingsStoreReturning(bidirSettings())
	settings.saveChangeToken = func(_ context.Context, _ string, token *string) error {
		if token != nil {
			savedCursor = *token
		}
		return nil
	}

	failingCreates := 0
	cal := &mockCalendar{
		listEvents: func(_ context.Context, _, _ string, opts ListOptions) (*EventPage, error) {
			if opts.TimeMin.IsZero() {
				t.Error("full sync must bound the listing window")
			}
			return &EventPage{Items: remoteItems, NextSyncToken: "cursor-after-full"}, nil
		},
		createEvent: func(_ context.Context, _, _ string, payload *calendar.Event) (*calendar.Event, error) {
			if payload.ExtendedProperties.Private["finledgerEventId"] == "ev-11" {
				failingCreates++
				return nil, ErrTransientProvider
			}
			payload.Id = "rem-" + payload.ExtendedProperties.Private["finledgerEventId"]
			return payload, nil
		},
	}

	auditor := &recordingAuditor{}
	o := newTestOrchestrator(events, mappings, settings, staticToken("tok-1"), cal, auditor)

	res, err := o.FullSync(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if res.Processed != 2 {
		t.Errorf("processed = %d, want 2", res.Processed)
	}
	if res.Pushed != 2 {
		t.Errorf("pushed = %d, want 2", res.Pushed)
	}
	if res.Errors != 1 {
		t.Errorf("errors = %d, want 1", res.Errors)
	}
	if res.Success {
		t.Error("a pass with failures must not report success")
	}
	if failingCreates != 3 {
		t.Errorf("failing unit should exhaust 3 attempts, got %d", failingCreates)
	}
	if savedCursor != "cursor-after-full" {
		t.Errorf("saved cursor = %q, want cursor-after-full", savedCursor)
	}
}

func TestFullSync_PaginatesListing(t *testing.T) {
	pages := map[string]*EventPage{
		"": {
			Items:         []*calendar.Event{{Id: "rem-1", Summary: "One", Start: &calendar.EventDateTime{DateTime: "2026-03-20T10:00:00Z"}}},
			NextPageToken: "page-2",
		},
		"page-2": {
			Items:         []*calendar.Event{{Id: "rem-2", Summary: "Two", Start: &calendar.EventDateTime{DateTime: "2026-03-21T10:00:00Z"}}},
			NextSyncToken: "cursor-1",
		},
	}

	events := &mockEventStore{
		applyDraft: func(_ context.Context, userID, _ string, _ models.EventDraft) (*models.FinancialEvent, error) {
			return &models.FinancialEvent{ID: "ev-x", UserID: userID}, nil
		},
		listWithoutMapping: func(_ context.Context, _ string, _ time.Time) ([]models.FinancialEvent, error) {
			return nil, nil
		},
	}
	mappings := mappingsReturning(nil)

	var savedCursor *string
	settings := settingsStoreReturning(bidirSettings())
	settings.saveChangeToken = func(_ context.Context, _ string, token *string) error {
		savedCursor = token
		return nil
	}

	listCalls := 0
	cal := &mockCalendar{
		listEvents: func(_ context.Context, _, _ string, opts ListOptions) (*EventPage, error) {
			listCalls++
			page, ok := pages[opts.PageToken]
			if !ok {
				t.Fatalf("unexpected page token %q", opts.PageToken)
			}
			return page, nil
		},
	}

	o := newTestOrchestrator(events, mappings, settings, staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.FullSync(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if listCalls != 2 {
		t.Errorf("expected 2 listing calls, got %d", listCalls)
	}
	if res.Processed != 2 {
		t.Errorf("processed = %d, want 2", res.Processed)
	}
	if savedCursor == nil || *savedCursor != "cursor-1" {
		t.Errorf("saved cursor = %v, want cursor-1", savedCursor)
	}
}

func TestFullSync_OutboundOnlySkipsListing(t *testing.T) {
	s := bidirSettings()
	s.Direction = models.DirectionToRemoteOnly

	events := &mockEventStore{
		getByID: func(_ context.Context, eventID string) (*models.FinancialEvent, error) {
			return &models.FinancialEvent{ID: eventID, UserID: "user-1", UpdatedAt: time.Now()}, nil
		},
		listWithoutMapping: func(_ context.Context, _ string, _ time.Time) ([]models.FinancialEvent, error) {
			return []models.FinancialEvent{{ID: "ev-1", UserID: "user-1"}}, nil
		},
	}
	mappings := mappingsReturning(nil)
	cal := &mockCalendar{
		listEvents: func(_ context.Context, _, _ string, _ ListOptions) (*EventPage, error) {
			t.Fatal("outbound-only sync must not list remote events")
			return nil, nil
		},
		createEvent: func(_ context.Context, _, _ string, payload *calendar.Event) (*calendar.Event, error) {
			payload.Id = "rem-1"
			return payload, nil
		},
	}

	o := newTestOrchestrator(events, mappings, settingsStoreReturning(s), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.FullSync(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if res.Pushed != 1 || res.Processed != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestFullSync_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	remoteItems := []*calendar.Event{
		{Id: "rem-1", Summary: "One", Start: &calendar.EventDateTime{DateTime: "2026-03-20T10:00:00Z"}},
		{Id: "rem-2", Summary: "Two", Start: &calendar.EventDateTime{DateTime: "2026-03-21T10:00:00Z"}},
	}

	events := &mockEventStore{
		applyDraft: func(_ context.Context, userID, _ string, _ models.EventDraft) (*models.FinancialEvent, error) {
			cancel()
			return &models.FinancialEvent{ID: "ev-x", UserID: userID}, nil
		},
	}
	mappings := mappingsReturning(nil)
	cal := &mockCalendar{
		listEvents: func(_ context.Context, _, _ string, _ ListOptions) (*EventPage, error) {
			return &EventPage{Items: remoteItems}, nil
		},
	}

	o := newTestOrchestrator(events, mappings, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.FullSync(ctx, "user-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("FullSync() error = %v, want context.Canceled", err)
	}
	if res.Processed != 1 {
		t.Errorf("processed = %d, want 1 before cancellation", res.Processed)
	}
}

func TestIncrementalSync_AppliesReportedChanges(t *testing.T) {
	cursor := "cursor-1"
	s := bidirSettings()
	s.ChangeToken = &cursor

	events := &mockEventStore{
		applyDraft: func(_ context.Context, userID, _ string, _ models.EventDraft) (*models.FinancialEvent, error) {
			return &models.FinancialEvent{ID: "ev-x", UserID: userID}, nil
		},
	}
	mappings := mappingsReturning(nil)

	var savedCursor *string
	settings := settingsStoreReturning(s)
	settings.saveChangeToken = func(_ context.Context, _ string, token *string) error {
		savedCursor = token
		return nil
	}

	cal := &mockCalendar{
		listEvents: func(_ context.Context, _, _ string, opts ListOptions) (*EventPage, error) {
			if opts.SyncToken != "cursor-1" {
				t.Errorf("listing used cursor %q, want cursor-1", opts.SyncToken)
			}
			return &EventPage{
				Items:         []*calendar.Event{{Id: "rem-1", Summary: "Changed", Start: &calendar.EventDateTime{DateTime: "2026-03-20T10:00:00Z"}}},
				NextSyncToken: "cursor-2",
			}, nil
		},
	}

	o := newTestOrchestrator(events, mappings, settings, staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.IncrementalSync(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IncrementalSync() error = %v", err)
	}
	if !res.Success || res.Processed != 1 || res.CursorInvalid {
		t.Errorf("unexpected result %+v", res)
	}
	if savedCursor == nil || *savedCursor != "cursor-2" {
		t.Errorf("saved cursor = %v, want cursor-2", savedCursor)
	}
}

func TestIncrementalSync_InvalidCursorClearsAndReports(t *testing.T) {
	cursor := "cursor-stale"
	s := bidirSettings()
	s.ChangeToken = &cursor

	var savedCursor *string
	cleared := false
	settings := settingsStoreReturning(s)
	settings.saveChangeToken = func(_ context.Context, _ string, token *string) error {
		savedCursor = token
		cleared = token == nil
		return nil
	}

	cal := &mockCalendar{
		listEvents: func(_ context.Context, _, _ string, _ ListOptions) (*EventPage, error) {
			return nil, ErrCursorInvalid
		},
	}

	o := newTestOrchestrator(nil, nil, settings, staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.IncrementalSync(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IncrementalSync() error = %v", err)
	}
	if !res.CursorInvalid {
		t.Errorf("unexpected result %+v", res)
	}
	if !cleared {
		t.Errorf("expected the stored cursor to be cleared, got %v", savedCursor)
	}
}

func TestIncrementalSync_MissingCursorReportsInvalid(t *testing.T) {
	cal := &mockCalendar{
		listEvents: func(_ context.Context, _, _ string, _ ListOptions) (*EventPage, error) {
			t.Fatal("a missing cursor must not reach the provider")
			return nil, nil
		},
	}

	o := newTestOrchestrator(nil, nil, settingsStoreReturning(bidirSettings()), staticToken("tok-1"), cal, &recordingAuditor{})

	res, err := o.IncrementalSync(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IncrementalSync() error = %v", err)
	}
	if !res.CursorInvalid {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestIncrementalSync_OutboundOnlyIsNoOp(t *testing.T) {
	s := bidirSettings()
	s.Direction = models.DirectionToRemoteOnly

	o := newTestOrchestrator(nil, nil, settingsStoreReturning(s), nil, nil, &recordingAuditor{})

	res, err := o.IncrementalSync(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IncrementalSync() error = %v", err)
	}
	if !res.Success || res.CursorInvalid {
		t.Errorf("unexpected result %+v", res)
	}
}
