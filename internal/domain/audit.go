package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TriggerType records what initiated an execution.
type TriggerType string

const (
	TriggerPolicy TriggerType = "policy"
	TriggerVIP    TriggerType = "vip"
	TriggerManual TriggerType = "manual"
	TriggerRetry  TriggerType = "retry"
)

// ExecutionResult is the outcome recorded in the ledger.
type ExecutionResult string

const (
	ResultSuccess ExecutionResult = "success"
	ResultFailed  ExecutionResult = "failed"
	ResultPartial ExecutionResult = "partial"
	ResultSkipped ExecutionResult = "skipped"
	ResultUndone  ExecutionResult = "undone"
)

// TakenAction is one entry in an execution record's action list.
type TakenAction struct {
	ActionID uuid.UUID  `json:"action_id"`
	Type     ActionType `json:"action_type"`
	Summary  string     `json:"summary,omitempty"`
}

// ExecutionRecord is the audit trail's atomic unit: immutable after insert,
// except the single allowed flip of Result to undone when a human reverses
// an already-executed action.
type ExecutionRecord struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	OwnerID         string          `json:"owner_id" db:"owner_id"`
	PolicyID        *uuid.UUID      `json:"policy_id,omitempty" db:"policy_id"` // nil for vip/manual/direct
	TriggerType     TriggerType     `json:"trigger_type" db:"trigger_type"`
	TriggerData     json.RawMessage `json:"trigger_data,omitempty" db:"trigger_data"`
	ActionsTaken    []TakenAction   `json:"actions_taken"`
	Result          ExecutionResult `json:"result" db:"result"`
	Error           string          `json:"error,omitempty" db:"error"`
	RelatedActionID *uuid.UUID      `json:"related_action_id,omitempty" db:"related_action_id"`
	UndoneAt        *time.Time      `json:"undone_at,omitempty" db:"undone_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// PeriodSummary aggregates ledger activity over a day/week/month bucket.
type PeriodSummary struct {
	PeriodStart time.Time               `json:"period_start"`
	Total       int                     `json:"total"`
	ByResult    map[ExecutionResult]int `json:"by_result"`
	ByTrigger   map[TriggerType]int     `json:"by_trigger"`
}
