package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Audit action constants
const (
	AuditActionSyncToRemote    = "sync_to_remote"
	AuditActionSyncFromRemote  = "sync_from_remote"
	AuditActionFullSync        = "full_sync"
	AuditActionIncrementalSync = "incremental_sync"
	AuditActionTokenRefresh    = "token_refresh"
	AuditActionChannelRenew    = "channel_renew"
	AuditActionDisconnect      = "disconnect"
)

// Audit outcome constants
const (
	AuditOutcomeSuccess = "success"
	AuditOutcomeError   = "error"
	AuditOutcomeSkipped = "skipped"
	AuditOutcomeDeleted = "deleted"
)

// JSONB type for GORM to handle PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Value implements driver.Valuer for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// AuditEntry is one append-only record of a sync outcome. Entries are never
// updated or deleted.
type AuditEntry struct {
	ID              string    `gorm:"column:id;primaryKey"`
	UserID          string    `gorm:"column:user_id;index"`
	Action          string    `gorm:"column:action"`
	Direction       string    `gorm:"column:direction"`
	InternalEventID *string   `gorm:"column:internal_event_id"`
	RemoteEventID   *string   `gorm:"column:remote_event_id"`
	Outcome         string    `gorm:"column:outcome"`
	Detail          JSONB     `gorm:"column:detail;type:jsonb"`
	Timestamp       time.Time `gorm:"column:timestamp;index"`
}

// TableName specifies the table name for GORM
func (AuditEntry) TableName() string {
	return "audit_entry"
}
