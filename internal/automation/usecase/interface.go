package usecase

import (
	"context"
	"errors"

	"inboxflow/internal/automation/domain"
	"inboxflow/pkg/googleauth"
)

var (
	// ErrNoConnection means the user has not linked the provider
	ErrNoConnection = errors.New("no connection linked")
	// ErrRefreshFailed wraps a failed OAuth refresh
	ErrRefreshFailed = errors.New("credential refresh failed")
	// ErrDuplicateName is returned when the user already owns an automation with that name
	ErrDuplicateName = errors.New("automation name already in use")
	// ErrMissingConnection is returned when provisioning needs a connection the user lacks
	ErrMissingConnection = errors.New("required connection is not linked")
)

// EventSource is the inbox the automations watch
type EventSource interface {
	Search(ctx context.Context, cred domain.Credential, query string, max int64) ([]domain.EventRef, error)
	FetchFull(ctx context.Context, cred domain.Credential, id string) (*domain.Event, error)
	MarkRead(ctx context.Context, cred domain.Credential, id string) error
	FetchAttachment(ctx context.Context, cred domain.Credential, messageID, attachmentID string) ([]byte, error)
}

// TokenRefresher exchanges a refresh token for a new access token
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*googleauth.Token, error)
}

// Analyzer produces the structured analysis of an email
type Analyzer interface {
	Analyze(ctx context.Context, doc domain.EmailDocument, language string) (*domain.AnalysisResult, error)
}

// MessageSender delivers chat messages
type MessageSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// SpreadsheetWriter appends rows to a spreadsheet
type SpreadsheetWriter interface {
	AppendRow(ctx context.Context, accessToken, spreadsheetID, rng string, values []interface{}) error
}

// SpreadsheetCreator creates the log spreadsheet of a new automation
type SpreadsheetCreator interface {
	CreateSpreadsheet(ctx context.Context, accessToken, title, sheetName string, headers []string) (string, error)
}

// FileUploader stores attachments
type FileUploader interface {
	Upload(ctx context.Context, accessToken, filename, mimeType string, content []byte, folderID string) (string, error)
}

// FolderCreator creates the attachment folder of a new automation
type FolderCreator interface {
	CreateFolder(ctx context.Context, accessToken, name string) (string, error)
}

// ExecutionResult is the terminal state of one (automation, event) execution
type ExecutionResult string

const (
	ExecutionSkipped   ExecutionResult = "skipped"
	ExecutionSucceeded ExecutionResult = "succeeded"
	ExecutionFailed    ExecutionResult = "failed"
)

// ActionExecutor runs an automation's pipeline against one event
type ActionExecutor interface {
	Execute(ctx context.Context, automation *domain.Automation, event *domain.Event) (ExecutionResult, error)
}
