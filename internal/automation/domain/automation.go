package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AutomationStatus is the lifecycle state of an automation
type AutomationStatus string

const (
	StatusActive AutomationStatus = "active"
	StatusPaused AutomationStatus = "paused"
)

// TriggerNewEmail fires on new unread inbox messages
const TriggerNewEmail = "gmail.new_email"

// ActionType identifies one step of an automation's pipeline
type ActionType string

const (
	ActionAnalyzeEmail     ActionType = "ia.analyze_email"
	ActionSendChatMessage  ActionType = "telegram.send_message"
	ActionAppendSheetRow   ActionType = "sheets.append_row"
	ActionUploadAttachment ActionType = "drive.upload_attachment"
)

// Valid reports whether t is a known action type
func (t ActionType) Valid() bool {
	switch t {
	case ActionAnalyzeEmail, ActionSendChatMessage, ActionAppendSheetRow, ActionUploadAttachment:
		return true
	}
	return false
}

// FilterOperator selects how a sender filter value is compared
type FilterOperator string

const (
	OperatorEquals   FilterOperator = "equals"
	OperatorEndsWith FilterOperator = "ends_with"
	OperatorContains FilterOperator = "contains"
)

// TriggerFilter restricts a trigger to some senders.
// A nil *TriggerFilter matches every sender. A filter decoded from a bare
// JSON string has Bare set and compares by equality.
type TriggerFilter struct {
	Operator FilterOperator `json:"operator"`
	Value    string         `json:"value"`
	Bare     bool           `json:"-"`
}

// NewBareFilter builds the plain-string form of a filter
func NewBareFilter(value string) *TriggerFilter {
	return &TriggerFilter{Operator: OperatorEquals, Value: value, Bare: true}
}

func (f TriggerFilter) MarshalJSON() ([]byte, error) {
	if f.Bare {
		return json.Marshal(f.Value)
	}
	type plain TriggerFilter
	return json.Marshal(plain(f))
}

func (f *TriggerFilter) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*f = *NewBareFilter(value)
		return nil
	}

	type plain TriggerFilter
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid trigger filter: %w", err)
	}
	*f = TriggerFilter(p)
	f.Bare = false
	return nil
}

// Trigger is the condition half of an automation
type Trigger struct {
	Type string         `json:"type"`
	From *TriggerFilter `json:"from,omitempty"`
}

// Action is one configured pipeline step. Text is only used by chat messages.
type Action struct {
	Type ActionType `json:"type"`
	Text string     `json:"text,omitempty"`
}

// Resources holds provider handles created when the automation was provisioned
type Resources struct {
	SpreadsheetID string `json:"spreadsheetId,omitempty"`
	SheetName     string `json:"sheetName,omitempty"`
	DriveFolderID string `json:"driveFolderId,omitempty"`
}

// Automation pairs one trigger with an ordered action list
type Automation struct {
	ID               string           `json:"id" gorm:"primaryKey"`
	UserID           string           `json:"user_id" gorm:"index:idx_automation_user_status;not null"`
	Name             string           `json:"name" gorm:"not null"`
	Trigger          Trigger          `json:"trigger" gorm:"serializer:json;type:text"`
	Actions          []Action         `json:"actions" gorm:"serializer:json;type:text"`
	Resources        Resources        `json:"resources" gorm:"serializer:json;type:text"`
	AnalysisLanguage string           `json:"analysis_language" gorm:"default:es"`
	Status           AutomationStatus `json:"status" gorm:"index:idx_automation_user_status;default:active"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (Automation) TableName() string {
	return "automations"
}

// HasAction reports whether the action list contains the given type
func (a *Automation) HasAction(t ActionType) bool {
	for _, action := range a.Actions {
		if action.Type == t {
			return true
		}
	}
	return false
}

// ActionTypes lists the configured action types in declaration order
func (a *Automation) ActionTypes() []ActionType {
	types := make([]ActionType, 0, len(a.Actions))
	for _, action := range a.Actions {
		types = append(types, action.Type)
	}
	return types
}

// Language returns the analysis language, "es" unless configured
func (a *Automation) Language() string {
	if a.AnalysisLanguage == "" {
		return "es"
	}
	return a.AnalysisLanguage
}
