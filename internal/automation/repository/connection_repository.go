package repository

import (
	"context"
	"errors"
	"time"

	"inboxflow/internal/automation/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type connectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a gorm backed ConnectionRepository
func NewConnectionRepository(db *gorm.DB) ConnectionRepository {
	return &connectionRepository{db: db}
}

func (r *connectionRepository) Get(ctx context.Context, userID string, provider domain.Provider) (*domain.Connection, error) {
	var conn domain.Connection
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Order("created_at DESC").
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) FindByExternalID(ctx context.Context, provider domain.Provider, externalID string) (*domain.Connection, error) {
	var conn domain.Connection
	err := r.db.WithContext(ctx).
		Where("provider = ? AND external_id = ?", provider, externalID).
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) Replace(ctx context.Context, conn *domain.Connection) error {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND provider = ?", conn.UserID, conn.Provider).
			Delete(&domain.Connection{}).Error; err != nil {
			return err
		}
		return tx.Create(conn).Error
	})
}

func (r *connectionRepository) UpdateToken(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Connection{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"access_token": accessToken,
			"expires_at":   expiresAt,
			"updated_at":   time.Now(),
		}).Error
}
