package repository

import (
	"context"
	"time"

	"inboxflow/internal/automation/domain"
)

// AutomationRepository defines persistence operations for automations
type AutomationRepository interface {
	// ListActive returns every active automation
	ListActive(ctx context.Context) ([]*domain.Automation, error)
	// ListActiveByUser returns the active automations owned by userID
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Automation, error)
	FindByID(ctx context.Context, id string) (*domain.Automation, error)
	FindByUserAndName(ctx context.Context, userID, name string) (*domain.Automation, error)
	Create(ctx context.Context, automation *domain.Automation) error
	UpdateStatus(ctx context.Context, id string, status domain.AutomationStatus) error
}

// ConnectionRepository defines persistence operations for linked accounts
type ConnectionRepository interface {
	// Get returns nil, nil when the user has no connection for provider
	Get(ctx context.Context, userID string, provider domain.Provider) (*domain.Connection, error)
	FindByExternalID(ctx context.Context, provider domain.Provider, externalID string) (*domain.Connection, error)
	// Replace removes the user's previous connections for the provider and stores conn
	Replace(ctx context.Context, conn *domain.Connection) error
	UpdateToken(ctx context.Context, id, accessToken string, expiresAt time.Time) error
}

// ExecutionRepository owns the idempotency gate and the execution log
type ExecutionRepository interface {
	// TryAcquire inserts the execution record. It returns false when the
	// (automation, event) pair was already recorded.
	TryAcquire(ctx context.Context, automationID, eventID string) (bool, error)
	AppendLog(ctx context.Context, log *domain.ExecutionLog) error
	ListLogs(ctx context.Context, automationID string, limit int) ([]*domain.ExecutionLog, error)
}
