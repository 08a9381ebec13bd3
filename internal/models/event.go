package models

import "time"

// FinancialEvent represents a scheduled money movement (bill, transfer,
// expected income) that can be projected onto the user's remote calendar.
type FinancialEvent struct {
	ID          string    `gorm:"column:id;primaryKey"`
	UserID      string    `gorm:"column:user_id;index"`
	Title       string    `gorm:"column:title"`
	Description string    `gorm:"column:description"`
	Amount      float64   `gorm:"column:amount"`
	Currency    string    `gorm:"column:currency"`
	Category    *string   `gorm:"column:category"`
	StartTime   time.Time `gorm:"column:start_time;index"`
	EndTime     time.Time `gorm:"column:end_time"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (FinancialEvent) TableName() string {
	return "financial_event"
}

// EventDraft is a provider-neutral rendition of a remote calendar event,
// produced by the translator and applied to the event store.
type EventDraft struct {
	Title       string
	Description string
	Amount      *float64
	Category    *string
	StartTime   time.Time
	EndTime     time.Time
}
