package repository

import (
	"inboxflow/internal/automation/domain"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables owned by the automation engine
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Automation{},
		&domain.Connection{},
		&domain.ExecutionRecord{},
		&domain.ExecutionLog{},
	)
}
