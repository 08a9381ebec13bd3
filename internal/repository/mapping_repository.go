package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finledger/calsync/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrMappingNotFound  = errors.New("sync mapping not found")
	ErrStaleMapping     = errors.New("sync mapping version is stale")
	ErrDuplicateMapping = errors.New("remote event is already mapped")
)

type MappingRepository struct {
	db *gorm.DB
}

func NewMappingRepository(db *gorm.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// GetByInternalID retrieves the mapping for a financial event
func (r *MappingRepository) GetByInternalID(ctx context.Context, internalEventID string) (*models.SyncMapping, error) {
	var m models.SyncMapping
	result := r.db.WithContext(ctx).First(&m, "internal_event_id = ?", internalEventID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to get mapping: %w", result.Error)
	}
	return &m, nil
}

// GetByRemoteID retrieves the mapping for a remote calendar event
func (r *MappingRepository) GetByRemoteID(ctx context.Context, remoteEventID string) (*models.SyncMapping, error) {
	var m models.SyncMapping
	result := r.db.WithContext(ctx).First(&m, "remote_event_id = ?", remoteEventID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to get mapping: %w", result.Error)
	}
	return &m, nil
}

// upsertQuery inserts a mapping or, on an internal_event_id conflict,
// applies the update only when the incoming version is newer. The first CTE
// captures the version visible before this statement so callers can tell
// whether a concurrent writer got there first.
const upsertQuery = `
	WITH existing AS (
		SELECT version FROM sync_mapping WHERE internal_event_id = $3
	), applied AS (
		INSERT INTO sync_mapping (
			id, user_id, internal_event_id, remote_event_id, sync_status,
			sync_direction, sync_source, last_modified_at, last_synced_at,
			version, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (internal_event_id) DO UPDATE SET
			remote_event_id = EXCLUDED.remote_event_id,
			sync_status = EXCLUDED.sync_status,
			sync_direction = EXCLUDED.sync_direction,
			sync_source = EXCLUDED.sync_source,
			last_modified_at = EXCLUDED.last_modified_at,
			last_synced_at = EXCLUDED.last_synced_at,
			version = EXCLUDED.version,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at
		WHERE sync_mapping.version < EXCLUDED.version
		RETURNING version
	)
	SELECT
		COALESCE((SELECT version FROM existing), 0) AS prior_version,
		EXISTS (SELECT 1 FROM applied) AS applied
`

// Upsert atomically creates or updates the mapping keyed on the internal
// event id. The write applies only when m.Version is greater than the stored
// version; a rejected write returns ErrStaleMapping. The returned value is
// the version stored before this write, 0 when the mapping is new.
func (r *MappingRepository) Upsert(ctx context.Context, m *models.SyncMapping) (int64, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	var priorVersion int64
	var applied bool
	row := r.db.WithContext(ctx).Raw(upsertQuery,
		m.ID, m.UserID, m.InternalEventID, m.RemoteEventID, m.SyncStatus,
		m.SyncDirection, m.SyncSource, m.LastModifiedAt, m.LastSyncedAt,
		m.Version, m.ErrorMessage, m.CreatedAt, m.UpdatedAt,
	).Row()
	if err := row.Scan(&priorVersion, &applied); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateMapping
		}
		return 0, fmt.Errorf("failed to upsert mapping: %w", err)
	}
	if !applied {
		return priorVersion, ErrStaleMapping
	}
	return priorVersion, nil
}

// Delete removes the mapping for a financial event. Deleting a mapping that
// does not exist is not an error.
func (r *MappingRepository) Delete(ctx context.Context, internalEventID string) error {
	result := r.db.WithContext(ctx).Where("internal_event_id = ?", internalEventID).Delete(&models.SyncMapping{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete mapping: %w", result.Error)
	}
	return nil
}

// DeleteByUserID removes all mappings for a user
func (r *MappingRepository) DeleteByUserID(ctx context.Context, userID string) error {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.SyncMapping{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete mappings: %w", result.Error)
	}
	return nil
}
