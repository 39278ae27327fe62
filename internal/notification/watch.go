package notification

import (
	"context"
	"fmt"
	"time"

	"inboxflow/internal/automation/domain"
	"inboxflow/internal/automation/repository"
	"inboxflow/pkg/logger"

	"github.com/rs/zerolog"
)

// WatchRenewInterval is how often mailbox watches are renewed. Gmail drops
// a watch after seven days.
const WatchRenewInterval = 24 * time.Hour

// Watcher asks the mailbox provider to publish changes to a topic
type Watcher interface {
	Watch(ctx context.Context, cred domain.Credential, topicName string) (uint64, error)
}

// CredentialSource yields a Google connection with a usable token
type CredentialSource interface {
	Valid(ctx context.Context, userID string) (*domain.Connection, error)
}

// WatchRegistrar keeps a Gmail watch on the mailbox of every user with an
// active automation
type WatchRegistrar struct {
	automations repository.AutomationRepository
	credentials CredentialSource
	watcher     Watcher
	topic       string
	logger      zerolog.Logger
}

// TopicPath is the fully qualified topic name Gmail expects
func TopicPath(projectID, topicName string) string {
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topicName)
}

func NewWatchRegistrar(automations repository.AutomationRepository, credentials CredentialSource, watcher Watcher, topic string, log zerolog.Logger) *WatchRegistrar {
	return &WatchRegistrar{
		automations: automations,
		credentials: credentials,
		watcher:     watcher,
		topic:       topic,
		logger:      logger.Component(log, "gmail_watch"),
	}
}

// RegisterAll renews the watch of each distinct automation owner and
// returns how many succeeded
func (r *WatchRegistrar) RegisterAll(ctx context.Context) (int, error) {
	automations, err := r.automations.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active automations: %w", err)
	}

	seen := make(map[string]bool)
	registered := 0
	for _, a := range automations {
		if seen[a.UserID] || a.Trigger.Type != domain.TriggerNewEmail {
			continue
		}
		seen[a.UserID] = true

		conn, err := r.credentials.Valid(ctx, a.UserID)
		if err != nil {
			r.logger.Warn().Err(err).Str("user_id", a.UserID).Msg("cannot watch mailbox")
			continue
		}
		historyID, err := r.watcher.Watch(ctx, conn.Credential(), r.topic)
		if err != nil {
			r.logger.Warn().Err(err).Str("user_id", a.UserID).Msg("watch request failed")
			continue
		}
		r.logger.Debug().Str("user_id", a.UserID).Uint64("history_id", historyID).Msg("mailbox watched")
		registered++
	}
	return registered, nil
}

// Run registers immediately and then every interval until ctx is done
func (r *WatchRegistrar) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := r.RegisterAll(ctx)
		if err != nil {
			r.logger.Error().Err(err).Msg("watch renewal failed")
		} else {
			r.logger.Info().Int("mailboxes", n).Msg("mailbox watches renewed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
