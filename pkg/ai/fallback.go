package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
)

// FallbackService tries the primary provider and falls back to the secondary
// one on any error. Connection and quota failures are logged as such.
type FallbackService struct {
	primary   Provider
	secondary Provider
	logger    zerolog.Logger
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(primary, secondary Provider, logger zerolog.Logger) *FallbackService {
	return &FallbackService{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With().Str("component", "ai_fallback").Logger(),
	}
}

func (f *FallbackService) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *FallbackService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	result, err := f.primary.Complete(ctx, req)
	if err == nil && strings.TrimSpace(result) != "" {
		return result, nil
	}

	switch {
	case err == nil:
		f.logger.Warn().Str("provider", f.primary.Name()).Msg("empty completion, falling back")
	case isQuotaError(err):
		f.logger.Warn().Err(err).Str("provider", f.primary.Name()).Msg("quota exhausted, falling back")
	case isConnectionError(err):
		f.logger.Warn().Err(err).Str("provider", f.primary.Name()).Msg("connection failed, falling back")
	default:
		f.logger.Warn().Err(err).Str("provider", f.primary.Name()).Msg("completion failed, falling back")
	}

	// A cancelled context fails the secondary too
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("%s completion aborted: %w", f.primary.Name(), ctxErr)
	}

	result, secondaryErr := f.secondary.Complete(ctx, req)
	if secondaryErr != nil {
		return "", fmt.Errorf("%s completion failed: %w", f.secondary.Name(), secondaryErr)
	}
	return result, nil
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"resource_exhausted",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
