package repository

import (
	"context"
	"time"

	"inboxflow/internal/automation/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type executionRepository struct {
	db *gorm.DB
}

// NewExecutionRepository creates a gorm backed ExecutionRepository
func NewExecutionRepository(db *gorm.DB) ExecutionRepository {
	return &executionRepository{db: db}
}

// TryAcquire relies on the composite primary key. A conflicting insert
// affects no rows, which is reported as "already processed".
func (r *executionRepository) TryAcquire(ctx context.Context, automationID, eventID string) (bool, error) {
	record := domain.ExecutionRecord{
		AutomationID:    automationID,
		ExternalEventID: eventID,
		CreatedAt:       time.Now(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *executionRepository) AppendLog(ctx context.Context, log *domain.ExecutionLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *executionRepository) ListLogs(ctx context.Context, automationID string, limit int) ([]*domain.ExecutionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []*domain.ExecutionLog
	err := r.db.WithContext(ctx).
		Where("automation_id = ?", automationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
