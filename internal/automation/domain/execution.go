package domain

import (
	"time"

	"gorm.io/datatypes"
)

// ExecutionRecord marks that an automation already handled an event.
// The composite primary key is the idempotency gate.
type ExecutionRecord struct {
	AutomationID    string    `json:"automation_id" gorm:"primaryKey"`
	ExternalEventID string    `json:"external_event_id" gorm:"primaryKey"`
	CreatedAt       time.Time `json:"created_at"`
}

func (ExecutionRecord) TableName() string {
	return "automation_executions"
}

// ExecutionStatus is the outcome written to the execution log
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionError   ExecutionStatus = "error"
)

// ExecutionLog is an append-only record of one gated execution attempt
type ExecutionLog struct {
	ID           string          `json:"id" gorm:"primaryKey"`
	AutomationID string          `json:"automation_id" gorm:"index:idx_log_automation_created,priority:1;not null"`
	EventID      string          `json:"event_id"`
	Status       ExecutionStatus `json:"status" gorm:"not null"`
	Output       datatypes.JSON  `json:"output"`
	CreatedAt    time.Time       `json:"created_at" gorm:"index:idx_log_automation_created,priority:2"`
}

func (ExecutionLog) TableName() string {
	return "automation_logs"
}

// SuccessOutput is the payload of a success log entry
type SuccessOutput struct {
	Analysis *AnalysisResult `json:"ia"`
	Actions  []ActionType    `json:"actions"`
}

// ErrorOutput is the payload of an error log entry
type ErrorOutput struct {
	Error string `json:"error"`
}
