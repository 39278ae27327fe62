package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inboxflow/internal/automation/domain"
	"inboxflow/internal/automation/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogSheetName is the sheet created for automations that append rows
const LogSheetName = "Registros"

// LogSheetHeaders is the header row of the log sheet
var LogSheetHeaders = []string{"Fecha", "Origen", "Prioridad", "Categoría", "Sentimiento", "Requiere acción", "Resumen IA"}

// backlogLimit caps how many pre-existing unread messages are marked read
const backlogLimit = 500

// CreateAutomationInput describes a new automation
type CreateAutomationInput struct {
	UserID   string
	Name     string
	Trigger  domain.Trigger
	Actions  []domain.Action
	Language string
}

// Provisioner creates automations along with the provider resources their
// actions need
type Provisioner struct {
	automations  repository.AutomationRepository
	credentials  *CredentialProvider
	source       EventSource
	spreadsheets SpreadsheetCreator
	folders      FolderCreator
	logger       zerolog.Logger
	now          func() time.Time
}

func NewProvisioner(
	automations repository.AutomationRepository,
	credentials *CredentialProvider,
	source EventSource,
	spreadsheets SpreadsheetCreator,
	folders FolderCreator,
	logger zerolog.Logger,
) *Provisioner {
	return &Provisioner{
		automations:  automations,
		credentials:  credentials,
		source:       source,
		spreadsheets: spreadsheets,
		folders:      folders,
		logger:       logger.With().Str("component", "provisioning").Logger(),
		now:          time.Now,
	}
}

// Create validates the input, creates the spreadsheet and folder the actions
// need, marks the matching unread backlog as read and stores the automation
// as active
func (p *Provisioner) Create(ctx context.Context, in CreateAutomationInput) (*domain.Automation, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.New("automation name is required")
	}
	if in.Trigger.Type != domain.TriggerNewEmail {
		return nil, fmt.Errorf("unsupported trigger type %q", in.Trigger.Type)
	}
	if len(in.Actions) == 0 {
		return nil, errors.New("at least one action is required")
	}
	for _, action := range in.Actions {
		if !action.Type.Valid() {
			return nil, fmt.Errorf("unsupported action type %q", action.Type)
		}
	}

	existing, err := p.automations.FindByUserAndName(ctx, in.UserID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	google, err := p.credentials.Valid(ctx, in.UserID)
	if errors.Is(err, ErrNoConnection) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConnection, domain.ProviderGoogle)
	}
	if err != nil {
		return nil, err
	}

	automation := &domain.Automation{
		ID:               uuid.New().String(),
		UserID:           in.UserID,
		Name:             name,
		Trigger:          in.Trigger,
		Actions:          in.Actions,
		AnalysisLanguage: in.Language,
		Status:           domain.StatusActive,
	}
	if automation.AnalysisLanguage == "" {
		automation.AnalysisLanguage = "es"
	}

	if automation.HasAction(domain.ActionSendChatMessage) {
		chat, err := p.credentials.Get(ctx, in.UserID, domain.ProviderTelegram)
		if err != nil {
			return nil, err
		}
		if chat == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingConnection, domain.ProviderTelegram)
		}
	}

	if automation.HasAction(domain.ActionAppendSheetRow) {
		id, err := p.spreadsheets.CreateSpreadsheet(ctx, google.AccessToken, name, LogSheetName, LogSheetHeaders)
		if err != nil {
			return nil, fmt.Errorf("failed to create log spreadsheet: %w", err)
		}
		automation.Resources.SpreadsheetID = id
		automation.Resources.SheetName = LogSheetName
	}

	if automation.HasAction(domain.ActionUploadAttachment) {
		id, err := p.folders.CreateFolder(ctx, google.AccessToken, name)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment folder: %w", err)
		}
		automation.Resources.DriveFolderID = id
	}

	skipped, err := p.ignoreBacklog(ctx, google.Credential(), in.Trigger.From)
	if err != nil {
		return nil, err
	}

	if err := p.automations.Create(ctx, automation); err != nil {
		return nil, err
	}
	p.logger.Info().
		Str("automation_id", automation.ID).
		Str("user_id", automation.UserID).
		Int("backlog_marked_read", skipped).
		Msg("automation created")
	return automation, nil
}

// ignoreBacklog marks the mail that already matches the trigger as read so
// only new mail fires the automation
func (p *Provisioner) ignoreBacklog(ctx context.Context, cred domain.Credential, filter *domain.TriggerFilter) (int, error) {
	refs, err := p.source.Search(ctx, cred, UnreadQuery(filter), backlogLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to list unread backlog: %w", err)
	}
	for _, ref := range refs {
		if err := p.source.MarkRead(ctx, cred, ref.ID); err != nil {
			return 0, fmt.Errorf("failed to mark backlog message %s as read: %w", ref.ID, err)
		}
	}
	return len(refs), nil
}

// SetStatus pauses or resumes an automation
func (p *Provisioner) SetStatus(ctx context.Context, automationID string, status domain.AutomationStatus) error {
	if status != domain.StatusActive && status != domain.StatusPaused {
		return fmt.Errorf("invalid status %q", status)
	}
	automation, err := p.automations.FindByID(ctx, automationID)
	if err != nil {
		return err
	}
	if automation == nil {
		return fmt.Errorf("automation %s not found", automationID)
	}
	return p.automations.UpdateStatus(ctx, automationID, status)
}
