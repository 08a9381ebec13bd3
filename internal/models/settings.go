package models

import "time"

// Direction controls which way changes are allowed to flow for a user.
type Direction string

const (
	DirectionToRemoteOnly   Direction = "to_remote_only"
	DirectionFromRemoteOnly Direction = "from_remote_only"
	DirectionBidirectional  Direction = "bidirectional"
)

// DefaultCalendarID is the provider alias for the user's main calendar.
const DefaultCalendarID = "primary"

// SyncSettings is the per-user sync configuration. ChangeToken is the
// provider's incremental cursor; its absence forces a full sync.
type SyncSettings struct {
	ID                          string     `gorm:"column:id;primaryKey"`
	UserID                      string     `gorm:"column:user_id;uniqueIndex"`
	Enabled                     bool       `gorm:"column:enabled"`
	Direction                   Direction  `gorm:"column:direction"`
	CalendarID                  string     `gorm:"column:calendar_id"`
	ChangeToken                 *string    `gorm:"column:change_token"`
	ChannelID                   *string    `gorm:"column:channel_id;index"`
	ChannelResourceID           *string    `gorm:"column:channel_resource_id"`
	ChannelExpiresAt            *time.Time `gorm:"column:channel_expires_at"`
	IncludeAmountsInDescription bool       `gorm:"column:include_amounts_in_description"`
	CreatedAt                   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (SyncSettings) TableName() string {
	return "sync_settings"
}

// AllowsToRemote reports whether outbound sync is permitted.
func (s *SyncSettings) AllowsToRemote() bool {
	return s.Direction != DirectionFromRemoteOnly
}

// AllowsFromRemote reports whether inbound sync is permitted.
func (s *SyncSettings) AllowsFromRemote() bool {
	return s.Direction != DirectionToRemoteOnly
}

func IsValidDirection(d Direction) bool {
	switch d {
	case DirectionToRemoteOnly, DirectionFromRemoteOnly, DirectionBidirectional:
		return true
	}
	return false
}
