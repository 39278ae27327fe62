package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"inboxflow/internal/automation/domain"
	"inboxflow/internal/automation/repository"
	"inboxflow/pkg/logger"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes for a watched mailbox
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// UserEvaluator runs the automations of one user right away
type UserEvaluator interface {
	EvaluateUser(ctx context.Context, userID string) error
}

// Listener turns Gmail push notifications into immediate evaluations of the
// mailbox owner's automations
type Listener struct {
	client      *pubsub.Client
	connections repository.ConnectionRepository
	evaluator   UserEvaluator
	topicName   string
	subName     string
	logger      zerolog.Logger

	mu sync.Mutex
	// last historyId handled per mailbox address
	lastHistoryID map[string]uint64
}

func NewListener(
	ctx context.Context,
	projectID, topicName, credentialsFile string,
	connections repository.ConnectionRepository,
	evaluator UserEvaluator,
	log zerolog.Logger,
) (*Listener, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	l := newListener(connections, evaluator, topicName, log)
	l.client = client
	return l, nil
}

func newListener(connections repository.ConnectionRepository, evaluator UserEvaluator, topicName string, log zerolog.Logger) *Listener {
	return &Listener{
		connections:   connections,
		evaluator:     evaluator,
		topicName:     topicName,
		subName:       topicName + "-sub",
		logger:        logger.Component(log, "pubsub"),
		lastHistoryID: make(map[string]uint64),
	}
}

// Start receives notifications until ctx is cancelled. The subscription is
// created on the topic when it does not exist yet.
func (l *Listener) Start(ctx context.Context) error {
	sub, err := l.ensureSubscription(ctx)
	if err != nil {
		return err
	}

	l.logger.Info().Str("subscription", l.subName).Msg("listening for mailbox notifications")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := l.handle(ctx, msg.Data); err != nil {
			l.logger.Error().Err(err).Msg("notification handling failed")
		}
		// the scheduler picks up whatever a failed push evaluation missed
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pubsub receive failed: %w", err)
	}
	return nil
}

// Close releases the Pub/Sub client
func (l *Listener) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}

func (l *Listener) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := l.client.Subscription(l.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription %s: %w", l.subName, err)
	}
	if exists {
		return sub, nil
	}

	topic := l.client.Topic(l.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check topic %s: %w", l.topicName, err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist", l.topicName)
	}

	sub, err = l.client.CreateSubscription(ctx, l.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 60 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription %s: %w", l.subName, err)
	}
	l.logger.Info().Str("subscription", l.subName).Msg("subscription created")
	return sub, nil
}

func (l *Listener) handle(ctx context.Context, data []byte) error {
	var n GmailNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}
	if n.EmailAddress == "" {
		return errors.New("notification without email address")
	}

	if !l.advance(n.EmailAddress, n.HistoryID) {
		l.logger.Debug().Str("email", n.EmailAddress).Uint64("history_id", n.HistoryID).Msg("stale notification, skipping")
		return nil
	}

	conn, err := l.connections.FindByExternalID(ctx, domain.ProviderGoogle, n.EmailAddress)
	if err != nil {
		return fmt.Errorf("failed to resolve mailbox %s: %w", n.EmailAddress, err)
	}
	if conn == nil {
		l.logger.Debug().Str("email", n.EmailAddress).Msg("no user linked to mailbox")
		return nil
	}

	l.logger.Debug().Str("user_id", conn.UserID).Uint64("history_id", n.HistoryID).Msg("evaluating automations on push")
	return l.evaluator.EvaluateUser(ctx, conn.UserID)
}

// advance records historyID for the mailbox and reports whether it is newer
// than the last one seen
func (l *Listener) advance(email string, historyID uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.lastHistoryID[email]; ok && historyID <= last {
		return false
	}
	l.lastHistoryID[email] = historyID
	return true
}
