package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inboxflow/internal/automation/domain"
	"inboxflow/internal/automation/repository"

	"github.com/rs/zerolog"
)

// DefaultMaxResults caps the unread candidates fetched per automation and tick
const DefaultMaxResults = 20

// Evaluator scans the inbox of each active automation for unread mail that
// satisfies its trigger and fans matching events out to the executor
type Evaluator struct {
	automations repository.AutomationRepository
	credentials *CredentialProvider
	source      EventSource
	executor    ActionExecutor
	maxResults  int64
	callTimeout time.Duration
	logger      zerolog.Logger
}

// EvaluatorOption tunes an Evaluator
type EvaluatorOption func(*Evaluator)

func WithMaxResults(n int64) EvaluatorOption {
	return func(v *Evaluator) {
		if n > 0 {
			v.maxResults = n
		}
	}
}

func WithCallTimeout(d time.Duration) EvaluatorOption {
	return func(v *Evaluator) { v.callTimeout = d }
}

func NewEvaluator(
	automations repository.AutomationRepository,
	credentials *CredentialProvider,
	source EventSource,
	executor ActionExecutor,
	logger zerolog.Logger,
	opts ...EvaluatorOption,
) *Evaluator {
	v := &Evaluator{
		automations: automations,
		credentials: credentials,
		source:      source,
		executor:    executor,
		maxResults:  DefaultMaxResults,
		logger:      logger.With().Str("component", "evaluator").Logger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// EvaluateAll runs one scan over every active automation. Failures of one
// automation are logged and do not stop the others.
func (v *Evaluator) EvaluateAll(ctx context.Context) error {
	automations, err := v.automations.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active automations: %w", err)
	}
	v.evaluateEach(ctx, automations)
	return nil
}

// EvaluateUser runs one scan over the active automations of a single user
func (v *Evaluator) EvaluateUser(ctx context.Context, userID string) error {
	automations, err := v.automations.ListActiveByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list automations of user %s: %w", userID, err)
	}
	v.evaluateEach(ctx, automations)
	return nil
}

func (v *Evaluator) evaluateEach(ctx context.Context, automations []*domain.Automation) {
	for _, automation := range automations {
		if ctx.Err() != nil {
			v.logger.Info().Msg("scan cancelled")
			return
		}
		if err := v.Evaluate(ctx, automation); err != nil {
			v.logger.Error().Err(err).Str("automation_id", automation.ID).Msg("evaluation aborted")
		}
	}
}

// Evaluate checks one automation against the unread mail of its owner.
// A missing connection skips the automation; a failed refresh or search
// aborts it until the next scan.
func (v *Evaluator) Evaluate(ctx context.Context, automation *domain.Automation) error {
	l := v.logger.With().Str("automation_id", automation.ID).Str("user_id", automation.UserID).Logger()

	if automation.Trigger.Type != domain.TriggerNewEmail {
		l.Debug().Str("trigger", automation.Trigger.Type).Msg("unsupported trigger type, skipping")
		return nil
	}

	credCtx, cancel := v.callContext(ctx)
	conn, err := v.credentials.Valid(credCtx, automation.UserID)
	cancel()
	if errors.Is(err, ErrNoConnection) {
		l.Warn().Msg("no Google connection linked, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	cred := conn.Credential()

	query := UnreadQuery(automation.Trigger.From)
	searchCtx, cancel := v.callContext(ctx)
	refs, err := v.source.Search(searchCtx, cred, query, v.maxResults)
	cancel()
	if err != nil {
		return fmt.Errorf("search %q failed: %w", query, err)
	}
	if len(refs) == 0 {
		return nil
	}
	l.Debug().Int("candidates", len(refs)).Str("query", query).Msg("unread candidates found")

	for _, ref := range refs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := v.handleCandidate(ctx, automation, cred, ref); err != nil {
			l.Warn().Err(err).Str("event_id", ref.ID).Msg("candidate skipped")
		}
	}
	return nil
}

func (v *Evaluator) handleCandidate(ctx context.Context, automation *domain.Automation, cred domain.Credential, ref domain.EventRef) error {
	fetchCtx, cancel := v.callContext(ctx)
	event, err := v.source.FetchFull(fetchCtx, cred, ref.ID)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	sender := event.From()
	if !MatchesSender(sender, automation.Trigger.From) {
		v.logger.Debug().Str("event_id", event.ID).Str("from", sender).Msg("sender does not match, marking read")
		return v.markRead(ctx, cred, event.ID)
	}

	// Fan out to every automation of the owner that accepts this sender.
	siblings, err := v.automations.ListActiveByUser(ctx, automation.UserID)
	if err != nil {
		return fmt.Errorf("failed to list automations for fan-out: %w", err)
	}
	for _, matched := range SelectMatching(siblings, domain.TriggerNewEmail, sender) {
		result, err := v.executor.Execute(ctx, matched, event)
		if err != nil {
			v.logger.Error().Err(err).Str("automation_id", matched.ID).Str("event_id", event.ID).Msg("execution failed")
			continue
		}
		v.logger.Debug().Str("automation_id", matched.ID).Str("event_id", event.ID).Str("result", string(result)).Msg("execution finished")
	}

	return v.markRead(ctx, cred, event.ID)
}

func (v *Evaluator) markRead(ctx context.Context, cred domain.Credential, id string) error {
	callCtx, cancel := v.callContext(ctx)
	defer cancel()
	if err := v.source.MarkRead(callCtx, cred, id); err != nil {
		return fmt.Errorf("mark read failed: %w", err)
	}
	return nil
}

func (v *Evaluator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, v.callTimeout)
}
