package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"inboxflow/internal/automation/domain"
	"inboxflow/internal/automation/repository"
	"inboxflow/pkg/sheets"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StageStatus tags the outcome of one pipeline stage
type StageStatus int

const (
	// StageOK means the stage completed or had nothing to do
	StageOK StageStatus = iota
	// StageDegraded means the stage failed but the pipeline continues with defaults
	StageDegraded
	// StageFatal aborts the remaining actions of the execution
	StageFatal
)

func (s StageStatus) String() string {
	switch s {
	case StageOK:
		return "ok"
	case StageDegraded:
		return "degraded"
	case StageFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// StageResult is the tagged result of a stage. Reason is set unless the
// status is StageOK.
type StageResult struct {
	Status StageStatus
	Reason error
}

func ok() StageResult { return StageResult{Status: StageOK} }

func degraded(err error) StageResult { return StageResult{Status: StageDegraded, Reason: err} }

func fatal(err error) StageResult { return StageResult{Status: StageFatal, Reason: err} }

// PipelineContext is the state threaded through the stages of one
// execution. Stages return an updated copy instead of mutating it.
type PipelineContext struct {
	Automation *domain.Automation
	Event      *domain.Event
	Analysis   *domain.AnalysisResult
}

func (pc PipelineContext) withAnalysis(result *domain.AnalysisResult) PipelineContext {
	pc.Analysis = result
	return pc
}

// ExecutorDeps are the collaborators of the executor. Analyzer may be nil,
// in which case analysis always degrades.
type ExecutorDeps struct {
	Executions  repository.ExecutionRepository
	Credentials *CredentialProvider
	Source      EventSource
	Analyzer    Analyzer
	Messenger   MessageSender
	Sheets      SpreadsheetWriter
	Uploader    FileUploader
	// CallTimeout bounds every external call; zero disables it
	CallTimeout time.Duration
}

// Executor runs the action pipeline of one automation against one event,
// at most once per (automation, event)
type Executor struct {
	deps   ExecutorDeps
	logger zerolog.Logger
	now    func() time.Time
}

func NewExecutor(deps ExecutorDeps, logger zerolog.Logger) *Executor {
	return &Executor{
		deps:   deps,
		logger: logger.With().Str("component", "executor").Logger(),
		now:    time.Now,
	}
}

// Execute gates, runs and logs one execution. A duplicate is reported as
// ExecutionSkipped without error or log entry.
func (e *Executor) Execute(ctx context.Context, automation *domain.Automation, event *domain.Event) (ExecutionResult, error) {
	l := e.logger.With().Str("automation_id", automation.ID).Str("event_id", event.ID).Logger()

	acquired, err := e.deps.Executions.TryAcquire(ctx, automation.ID, event.ID)
	if err != nil {
		return ExecutionFailed, fmt.Errorf("idempotency gate failed: %w", err)
	}
	if !acquired {
		l.Debug().Msg("already executed for this event, skipping")
		return ExecutionSkipped, nil
	}

	pc, result := e.run(ctx, PipelineContext{Automation: automation, Event: event})

	if result.Status == StageFatal {
		l.Error().Err(result.Reason).Msg("execution failed")
		if err := e.appendLog(ctx, pc, domain.ExecutionError, domain.ErrorOutput{Error: result.Reason.Error()}); err != nil {
			return ExecutionFailed, errors.Join(result.Reason, err)
		}
		return ExecutionFailed, result.Reason
	}

	output := domain.SuccessOutput{Analysis: pc.Analysis, Actions: automation.ActionTypes()}
	if err := e.appendLog(ctx, pc, domain.ExecutionSuccess, output); err != nil {
		return ExecutionSucceeded, err
	}
	l.Info().Bool("analyzed", pc.Analysis != nil).Msg("execution succeeded")
	return ExecutionSucceeded, nil
}

// run hoists the analysis stage in front of the declared actions and stops
// at the first fatal stage
func (e *Executor) run(ctx context.Context, pc PipelineContext) (PipelineContext, StageResult) {
	l := e.logger.With().Str("automation_id", pc.Automation.ID).Str("event_id", pc.Event.ID).Logger()

	if pc.Automation.HasAction(domain.ActionAnalyzeEmail) {
		next, result := e.analyze(ctx, pc)
		if result.Status != StageOK {
			l.Warn().Err(result.Reason).Msg("analysis degraded, continuing with defaults")
		}
		pc = next
	}

	for _, action := range pc.Automation.Actions {
		if action.Type == domain.ActionAnalyzeEmail {
			continue
		}

		result := e.runAction(ctx, pc, action)
		switch result.Status {
		case StageFatal:
			return pc, StageResult{Status: StageFatal, Reason: fmt.Errorf("%s: %w", action.Type, result.Reason)}
		case StageDegraded:
			l.Warn().Err(result.Reason).Str("action", string(action.Type)).Msg("action degraded")
		}
	}
	return pc, ok()
}

func (e *Executor) runAction(ctx context.Context, pc PipelineContext, action domain.Action) StageResult {
	switch action.Type {
	case domain.ActionSendChatMessage:
		return e.sendMessage(ctx, pc, action)
	case domain.ActionAppendSheetRow:
		return e.appendRow(ctx, pc)
	case domain.ActionUploadAttachment:
		return e.uploadAttachments(ctx, pc)
	default:
		return degraded(fmt.Errorf("unsupported action %q", action.Type))
	}
}

func (e *Executor) analyze(ctx context.Context, pc PipelineContext) (PipelineContext, StageResult) {
	if e.deps.Analyzer == nil {
		return pc, degraded(errors.New("no analysis service configured"))
	}

	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	result, err := e.deps.Analyzer.Analyze(callCtx, BuildDocument(pc.Event), pc.Automation.Language())
	if err != nil {
		return pc, degraded(err)
	}
	return pc.withAnalysis(result), ok()
}

func (e *Executor) sendMessage(ctx context.Context, pc PipelineContext, action domain.Action) StageResult {
	conn, err := e.deps.Credentials.Get(ctx, pc.Automation.UserID, domain.ProviderTelegram)
	if err != nil {
		return fatal(fmt.Errorf("failed to load chat connection: %w", err))
	}
	if conn == nil {
		return ok()
	}

	text := ChatText(action, pc.Analysis)
	if text == "" {
		return ok()
	}

	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	if err := e.deps.Messenger.SendMessage(callCtx, conn.ExternalID, text); err != nil {
		return fatal(err)
	}
	return ok()
}

func (e *Executor) appendRow(ctx context.Context, pc PipelineContext) StageResult {
	res := pc.Automation.Resources
	if res.SpreadsheetID == "" || res.SheetName == "" {
		return ok()
	}

	conn, result := e.googleConnection(ctx, pc)
	if conn == nil {
		return result
	}

	row := SheetRow(e.now(), pc.Event.From(), pc.Analysis)

	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	if err := e.deps.Sheets.AppendRow(callCtx, conn.AccessToken, res.SpreadsheetID, sheets.A1Range(res.SheetName, "A1"), row); err != nil {
		return fatal(err)
	}
	return ok()
}

func (e *Executor) uploadAttachments(ctx context.Context, pc PipelineContext) StageResult {
	folderID := pc.Automation.Resources.DriveFolderID
	if folderID == "" {
		return ok()
	}

	conn, result := e.googleConnection(ctx, pc)
	if conn == nil {
		return result
	}
	cred := conn.Credential()

	fetchCtx, cancel := e.callContext(ctx)
	event, err := e.deps.Source.FetchFull(fetchCtx, cred, pc.Event.ID)
	cancel()
	if err != nil {
		return fatal(err)
	}

	for _, att := range event.Attachments {
		if att.AttachmentID == "" {
			continue
		}
		if err := e.uploadOne(ctx, cred, event.ID, att, folderID); err != nil {
			return fatal(err)
		}
	}
	return ok()
}

func (e *Executor) uploadOne(ctx context.Context, cred domain.Credential, eventID string, att domain.AttachmentRef, folderID string) error {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	content, err := e.deps.Source.FetchAttachment(callCtx, cred, eventID, att.AttachmentID)
	if err != nil {
		return err
	}
	fileID, err := e.deps.Uploader.Upload(callCtx, cred.AccessToken, att.Filename, att.MimeType, content, folderID)
	if err != nil {
		return err
	}
	e.logger.Debug().Str("file_id", fileID).Str("filename", att.Filename).Msg("attachment uploaded")
	return nil
}

// googleConnection returns a connection with a valid token. A nil
// connection comes with the stage result to return: ok when nothing is
// linked, fatal otherwise.
func (e *Executor) googleConnection(ctx context.Context, pc PipelineContext) (*domain.Connection, StageResult) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	conn, err := e.deps.Credentials.Valid(callCtx, pc.Automation.UserID)
	if errors.Is(err, ErrNoConnection) {
		return nil, ok()
	}
	if err != nil {
		return nil, fatal(err)
	}
	return conn, ok()
}

func (e *Executor) appendLog(ctx context.Context, pc PipelineContext, status domain.ExecutionStatus, output interface{}) error {
	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to encode execution output: %w", err)
	}

	log := &domain.ExecutionLog{
		ID:           uuid.New().String(),
		AutomationID: pc.Automation.ID,
		EventID:      pc.Event.ID,
		Status:       status,
		Output:       payload,
		CreatedAt:    e.now(),
	}
	// The outcome is recorded even when the tick is being cancelled.
	if err := e.deps.Executions.AppendLog(context.WithoutCancel(ctx), log); err != nil {
		return fmt.Errorf("failed to write execution log: %w", err)
	}
	return nil
}

func (e *Executor) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.deps.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.deps.CallTimeout)
}
