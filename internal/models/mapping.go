package models

import "time"

type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusError   SyncStatus = "error"
)

// SyncDirection is the direction of the last sync recorded on a mapping.
type SyncDirection string

const (
	SyncDirectionToRemote   SyncDirection = "to_remote"
	SyncDirectionFromRemote SyncDirection = "from_remote"
)

// SyncSource is the side that authored the change recorded on a mapping.
type SyncSource string

const (
	SyncSourceInternal SyncSource = "internal"
	SyncSourceRemote   SyncSource = "remote"
)

// SyncMapping links exactly one financial event to exactly one remote
// calendar event. Version only ever increases; stale writes are rejected by
// the store.
type SyncMapping struct {
	ID              string        `gorm:"column:id;primaryKey"`
	UserID          string        `gorm:"column:user_id;index"`
	InternalEventID string        `gorm:"column:internal_event_id;uniqueIndex"`
	RemoteEventID   string        `gorm:"column:remote_event_id;uniqueIndex"`
	SyncStatus      SyncStatus    `gorm:"column:sync_status"`
	SyncDirection   SyncDirection `gorm:"column:sync_direction"`
	SyncSource      SyncSource    `gorm:"column:sync_source"`
	LastModifiedAt  time.Time     `gorm:"column:last_modified_at"`
	LastSyncedAt    time.Time     `gorm:"column:last_synced_at"`
	Version         int64         `gorm:"column:version"`
	ErrorMessage    *string       `gorm:"column:error_message"`
	CreatedAt       time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (SyncMapping) TableName() string {
	return "sync_mapping"
}
