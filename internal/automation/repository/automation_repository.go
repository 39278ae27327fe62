package repository

import (
	"context"
	"errors"
	"time"

	"inboxflow/internal/automation/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type automationRepository struct {
	db *gorm.DB
}

// NewAutomationRepository creates a gorm backed AutomationRepository
func NewAutomationRepository(db *gorm.DB) AutomationRepository {
	return &automationRepository{db: db}
}

func (r *automationRepository) ListActive(ctx context.Context) ([]*domain.Automation, error) {
	var automations []*domain.Automation
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusActive).
		Order("created_at ASC").
		Find(&automations).Error
	return automations, err
}

func (r *automationRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Automation, error) {
	var automations []*domain.Automation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, domain.StatusActive).
		Order("created_at ASC").
		Find(&automations).Error
	return automations, err
}

func (r *automationRepository) FindByID(ctx context.Context, id string) (*domain.Automation, error) {
	var automation domain.Automation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&automation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &automation, nil
}

func (r *automationRepository) FindByUserAndName(ctx context.Context, userID, name string) (*domain.Automation, error) {
	var automation domain.Automation
	if err := r.db.WithContext(ctx).Where("user_id = ? AND name = ?", userID, name).First(&automation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &automation, nil
}

func (r *automationRepository) Create(ctx context.Context, automation *domain.Automation) error {
	if automation.ID == "" {
		automation.ID = uuid.New().String()
	}
	if automation.Status == "" {
		automation.Status = domain.StatusActive
	}
	if automation.AnalysisLanguage == "" {
		automation.AnalysisLanguage = "es"
	}
	return r.db.WithContext(ctx).Create(automation).Error
}

func (r *automationRepository) UpdateStatus(ctx context.Context, id string, status domain.AutomationStatus) error {
	result := r.db.WithContext(ctx).Model(&domain.Automation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
