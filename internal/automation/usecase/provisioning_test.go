package usecase

import (
	"context"
	"testing"

	"inboxflow/internal/automation/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type provisioningHarness struct {
	automations *fakeAutomations
	connections *fakeConnections
	source      *fakeSource
	sheets      *fakeSheets
	drive       *fakeDrive
	provisioner *Provisioner
}

func newProvisioningHarness(conns ...*domain.Connection) *provisioningHarness {
	h := &provisioningHarness{
		automations: &fakeAutomations{},
		connections: &fakeConnections{conns: conns},
		source:      &fakeSource{},
		sheets:      &fakeSheets{},
		drive:       &fakeDrive{},
	}
	credentials := NewCredentialProvider(h.connections, &fakeRefresher{}, zerolog.Nop())
	h.provisioner = NewProvisioner(h.automations, credentials, h.source, h.sheets, h.drive, zerolog.Nop())
	return h
}

func validInput() CreateAutomationInput {
	return CreateAutomationInput{
		UserID:  "u1",
		Name:    "Facturas",
		Trigger: domain.Trigger{Type: domain.TriggerNewEmail, From: &domain.TriggerFilter{Operator: domain.OperatorEndsWith, Value: "vendor.com"}},
		Actions: []domain.Action{
			{Type: domain.ActionAnalyzeEmail},
			{Type: domain.ActionAppendSheetRow},
			{Type: domain.ActionUploadAttachment},
		},
	}
}

func TestProvisionerCreate(t *testing.T) {
	h := newProvisioningHarness(googleConnection("u1"))
	h.source.results = []domain.EventRef{{ID: "old-1"}, {ID: "old-2"}}

	automation, err := h.provisioner.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, automation.ID)
	assert.Equal(t, domain.StatusActive, automation.Status)
	assert.Equal(t, "es", automation.AnalysisLanguage)
	assert.Equal(t, domain.Resources{
		SpreadsheetID: "sheet-Facturas",
		SheetName:     LogSheetName,
		DriveFolderID: "folder-Facturas",
	}, automation.Resources)
	assert.Equal(t, []string{"Facturas/Registros"}, h.sheets.created)
	assert.Equal(t, []string{"Facturas"}, h.drive.folders)

	assert.Equal(t, []string{"is:unread from:@vendor.com"}, h.source.queries)
	assert.Equal(t, []string{"old-1", "old-2"}, h.source.markedRead)
	assert.Len(t, h.automations.created, 1)
}

func TestProvisionerCreateWithoutResources(t *testing.T) {
	h := newProvisioningHarness(googleConnection("u1"))
	in := validInput()
	in.Actions = []domain.Action{{Type: domain.ActionAnalyzeEmail}}
	in.Language = "en"

	automation, err := h.provisioner.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, domain.Resources{}, automation.Resources)
	assert.Equal(t, "en", automation.AnalysisLanguage)
	assert.Empty(t, h.sheets.created)
	assert.Empty(t, h.drive.folders)
}

func TestProvisionerCreateValidation(t *testing.T) {
	t.Run("duplicate name", func(t *testing.T) {
		h := newProvisioningHarness(googleConnection("u1"))
		h.automations.items = []*domain.Automation{{ID: "x", UserID: "u1", Name: "Facturas"}}

		_, err := h.provisioner.Create(context.Background(), validInput())
		assert.ErrorIs(t, err, ErrDuplicateName)
	})

	t.Run("missing google connection", func(t *testing.T) {
		h := newProvisioningHarness()
		_, err := h.provisioner.Create(context.Background(), validInput())
		assert.ErrorIs(t, err, ErrMissingConnection)
	})

	t.Run("chat action requires telegram", func(t *testing.T) {
		h := newProvisioningHarness(googleConnection("u1"))
		in := validInput()
		in.Actions = append(in.Actions, domain.Action{Type: domain.ActionSendChatMessage, Text: "hi"})

		_, err := h.provisioner.Create(context.Background(), in)
		assert.ErrorIs(t, err, ErrMissingConnection)
		assert.Empty(t, h.automations.created)

		h.connections.conns = append(h.connections.conns, telegramConnection("u1", "chat-1"))
		_, err = h.provisioner.Create(context.Background(), in)
		assert.NoError(t, err)
	})

	t.Run("bad input", func(t *testing.T) {
		h := newProvisioningHarness(googleConnection("u1"))

		in := validInput()
		in.Name = "  "
		_, err := h.provisioner.Create(context.Background(), in)
		assert.Error(t, err)

		in = validInput()
		in.Actions = nil
		_, err = h.provisioner.Create(context.Background(), in)
		assert.Error(t, err)

		in = validInput()
		in.Actions = []domain.Action{{Type: "fax.send"}}
		_, err = h.provisioner.Create(context.Background(), in)
		assert.Error(t, err)

		in = validInput()
		in.Trigger.Type = "slack.new_message"
		_, err = h.provisioner.Create(context.Background(), in)
		assert.Error(t, err)
	})
}

func TestProvisionerSetStatus(t *testing.T) {
	h := newProvisioningHarness()
	h.automations.items = []*domain.Automation{{ID: "a1", UserID: "u1"}}

	require.NoError(t, h.provisioner.SetStatus(context.Background(), "a1", domain.StatusPaused))
	assert.Equal(t, domain.StatusPaused, h.automations.status["a1"])

	assert.Error(t, h.provisioner.SetStatus(context.Background(), "missing", domain.StatusActive))
	assert.Error(t, h.provisioner.SetStatus(context.Background(), "a1", "deleted"))
}
