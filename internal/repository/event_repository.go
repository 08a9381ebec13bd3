package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finledger/calsync/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrEventNotFound = errors.New("financial event not found")

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// GetByID retrieves a financial event by ID
func (r *EventRepository) GetByID(ctx context.Context, eventID string) (*models.FinancialEvent, error) {
	var ev models.FinancialEvent
	result := r.db.WithContext(ctx).First(&ev, "id = ?", eventID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", result.Error)
	}
	return &ev, nil
}

// ApplyDraft creates a financial event from a translated draft, or updates
// the existing one when eventID is non-empty.
func (r *EventRepository) ApplyDraft(ctx context.Context, userID, eventID string, draft models.EventDraft) (*models.FinancialEvent, error) {
	if eventID == "" {
		ev := models.FinancialEvent{
			ID:          uuid.New().String(),
			UserID:      userID,
			Title:       draft.Title,
			Description: draft.Description,
			Currency:    "USD",
			Category:    draft.Category,
			StartTime:   draft.StartTime,
			EndTime:     draft.EndTime,
		}
		if draft.Amount != nil {
			ev.Amount = *draft.Amount
		}
		if result := r.db.WithContext(ctx).Create(&ev); result.Error != nil {
			return nil, fmt.Errorf("failed to create event: %w", result.Error)
		}
		return &ev, nil
	}

	updates := map[string]interface{}{
		"title":       draft.Title,
		"description": draft.Description,
		"category":    draft.Category,
		"start_time":  draft.StartTime,
		"end_time":    draft.EndTime,
		"updated_at":  time.Now(),
	}
	if draft.Amount != nil {
		updates["amount"] = *draft.Amount
	}
	result := r.db.WithContext(ctx).Model(&models.FinancialEvent{}).
		Where("id = ?", eventID).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrEventNotFound
	}
	return r.GetByID(ctx, eventID)
}

// Delete removes a financial event. Deleting an event that does not exist is
// not an error.
func (r *EventRepository) Delete(ctx context.Context, eventID string) error {
	result := r.db.WithContext(ctx).Where("id = ?", eventID).Delete(&models.FinancialEvent{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete event: %w", result.Error)
	}
	return nil
}

// ListWithoutMapping retrieves a user's events starting at or after the
// given time that have no sync mapping yet.
func (r *EventRepository) ListWithoutMapping(ctx context.Context, userID string, from time.Time) ([]models.FinancialEvent, error) {
	var events []models.FinancialEvent
	result := r.db.WithContext(ctx).
		Joins("LEFT JOIN sync_mapping ON sync_mapping.internal_event_id = financial_event.id").
		Where("financial_event.user_id = ? AND financial_event.start_time >= ? AND sync_mapping.id IS NULL", userID, from).
		Order("financial_event.start_time ASC").
		Find(&events)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list unmapped events: %w", result.Error)
	}
	return events, nil
}
