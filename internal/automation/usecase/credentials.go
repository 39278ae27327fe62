package usecase

import (
	"context"
	"fmt"
	"time"

	"inboxflow/internal/automation/domain"
	"inboxflow/internal/automation/repository"

	"github.com/rs/zerolog"
)

// CredentialProvider resolves linked connections and keeps their access
// tokens fresh
type CredentialProvider struct {
	connections repository.ConnectionRepository
	refresher   TokenRefresher
	logger      zerolog.Logger
	now         func() time.Time
}

func NewCredentialProvider(connections repository.ConnectionRepository, refresher TokenRefresher, logger zerolog.Logger) *CredentialProvider {
	return &CredentialProvider{
		connections: connections,
		refresher:   refresher,
		logger:      logger.With().Str("component", "credentials").Logger(),
		now:         time.Now,
	}
}

// Get returns the user's connection for provider, or nil when none is linked
func (p *CredentialProvider) Get(ctx context.Context, userID string, provider domain.Provider) (*domain.Connection, error) {
	return p.connections.Get(ctx, userID, provider)
}

// Valid returns the user's Google connection with a usable access token,
// refreshing and persisting it first when it has expired.
// ErrNoConnection is returned when nothing is linked.
func (p *CredentialProvider) Valid(ctx context.Context, userID string) (*domain.Connection, error) {
	conn, err := p.connections.Get(ctx, userID, domain.ProviderGoogle)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	if conn == nil {
		return nil, ErrNoConnection
	}
	if !conn.Expired(p.now()) {
		return conn, nil
	}
	return p.refresh(ctx, conn)
}

func (p *CredentialProvider) refresh(ctx context.Context, conn *domain.Connection) (*domain.Connection, error) {
	if conn.RefreshToken == "" {
		return nil, fmt.Errorf("%w: connection %s has no refresh token", ErrRefreshFailed, conn.ID)
	}

	token, err := p.refresher.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	expiresAt := p.now().Add(token.ExpiresIn)
	if err := p.connections.UpdateToken(ctx, conn.ID, token.AccessToken, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	p.logger.Debug().Str("connection_id", conn.ID).Time("expires_at", expiresAt).Msg("access token refreshed")

	refreshed := *conn
	refreshed.AccessToken = token.AccessToken
	refreshed.ExpiresAt = &expiresAt
	return &refreshed, nil
}
