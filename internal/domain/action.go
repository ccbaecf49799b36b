package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActionType enumerates every side effect the assistant can take on a
// mailbox or calendar. The set is closed: the executor dispatches over it
// exhaustively and anything else is rejected at enqueue time.
type ActionType string

const (
	ActionSendMessage    ActionType = "send_message"
	ActionReplyMessage   ActionType = "reply_message"
	ActionForwardMessage ActionType = "forward_message"
	ActionDeleteMessage  ActionType = "delete_message"
	ActionArchiveMessage ActionType = "archive_message"
	ActionMarkRead       ActionType = "mark_read"
	ActionFlagMessage    ActionType = "flag_message"
	ActionScheduleEvent  ActionType = "schedule_event"
	ActionCancelEvent    ActionType = "cancel_event"
	ActionRespondToEvent ActionType = "respond_to_event"
)

// AllActionTypes lists the closed set, in a stable order.
var AllActionTypes = []ActionType{
	ActionSendMessage,
	ActionReplyMessage,
	ActionForwardMessage,
	ActionDeleteMessage,
	ActionArchiveMessage,
	ActionMarkRead,
	ActionFlagMessage,
	ActionScheduleEvent,
	ActionCancelEvent,
	ActionRespondToEvent,
}

// Valid reports whether t is a member of the closed action type set.
func (t ActionType) Valid() bool {
	switch t {
	case ActionSendMessage, ActionReplyMessage, ActionForwardMessage,
		ActionDeleteMessage, ActionArchiveMessage, ActionMarkRead,
		ActionFlagMessage, ActionScheduleEvent, ActionCancelEvent,
		ActionRespondToEvent:
		return true
	}
	return false
}

// Destructive reports whether the action is hard to reverse once executed.
// Destructive types get longer default undo windows.
func (t ActionType) Destructive() bool {
	switch t {
	case ActionDeleteMessage, ActionCancelEvent:
		return true
	}
	return false
}

// ActionStatus enumerates the lifecycle states of a queued action.
//
// pending is the only state a transition may leave. executing is the
// claim lease held by exactly one worker between pending and a terminal
// outcome; every other state is terminal.
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionExecuting ActionStatus = "executing"
	ActionExecuted  ActionStatus = "executed"
	ActionUndone    ActionStatus = "undone"
	ActionExpired   ActionStatus = "expired"
	ActionFailed    ActionStatus = "failed"
)

// Terminal reports whether no further transition is possible from s.
func (s ActionStatus) Terminal() bool {
	switch s {
	case ActionExecuted, ActionUndone, ActionExpired, ActionFailed:
		return true
	}
	return false
}

// Action is a single proposed side effect held in the queue until its
// undo deadline passes, then claimed and executed exactly once.
type Action struct {
	ID      uuid.UUID  `json:"id" db:"id"`
	OwnerID string     `json:"owner_id" db:"owner_id"`
	Type    ActionType `json:"action_type" db:"action_type"`
	Payload Payload    `json:"payload" db:"payload"`
	// Trigger records what proposed the action; the executor copies it
	// into the audit trail when the action runs.
	Trigger  TriggerType `json:"trigger_type" db:"trigger_type"`
	PolicyID *uuid.UUID  `json:"policy_id,omitempty" db:"policy_id"`
	// TriggerData snapshots the event that proposed the action, so the
	// audit trail shows what the assistant reacted to. Empty for direct
	// manual enqueues.
	TriggerData  json.RawMessage `json:"trigger_data,omitempty" db:"trigger_data"`
	Status       ActionStatus    `json:"status" db:"status"`
	Priority     int             `json:"priority" db:"priority"`
	UndoDeadline time.Time       `json:"undo_deadline" db:"undo_deadline"`
	ClaimedAt    *time.Time      `json:"claimed_at,omitempty" db:"claimed_at"`
	WorkerID     string          `json:"worker_id,omitempty" db:"worker_id"`
	Error        string          `json:"error,omitempty" db:"error"`
	ExecutedAt   *time.Time      `json:"executed_at,omitempty" db:"executed_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Cancellable reports whether the action can still be cancelled by its
// owner: only while pending and strictly before the undo deadline.
func (a *Action) Cancellable(now time.Time) bool {
	return a.Status == ActionPending && now.Before(a.UndoDeadline)
}

// Due reports whether the action is eligible for claim: pending and at or
// past its undo deadline. Cancellable and Due are mutually exclusive and
// jointly exhaustive over the lifetime of a pending action.
func (a *Action) Due(now time.Time) bool {
	return a.Status == ActionPending && !now.Before(a.UndoDeadline)
}
