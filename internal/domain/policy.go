package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PolicyType categorizes what kind of event a policy reacts to.
type PolicyType string

const (
	PolicyInbox    PolicyType = "inbox"
	PolicyCalendar PolicyType = "calendar"
	PolicyResponse PolicyType = "response"
	PolicySchedule PolicyType = "schedule"
)

// Valid reports whether t is a known policy type.
func (t PolicyType) Valid() bool {
	switch t {
	case PolicyInbox, PolicyCalendar, PolicyResponse, PolicySchedule:
		return true
	}
	return false
}

// Operator enumerates condition comparison operators.
type Operator string

const (
	OpEquals       Operator = "equals"
	OpNotEquals    Operator = "not_equals"
	OpContains     Operator = "contains"
	OpStartsWith   Operator = "starts_with"
	OpEndsWith     Operator = "ends_with"
	OpMatchesRegex Operator = "matches_regex"
	OpGreaterThan  Operator = "greater_than"
	OpLessThan     Operator = "less_than"
	OpInList       Operator = "in_list"
	OpNotInList    Operator = "not_in_list"
	OpIsEmpty      Operator = "is_empty"
	OpInVIPList    Operator = "in_vip_list"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpStartsWith, OpEndsWith,
		OpMatchesRegex, OpGreaterThan, OpLessThan, OpInList, OpNotInList,
		OpIsEmpty, OpInVIPList:
		return true
	}
	return false
}

// Condition is one field/operator/value test against normalized event data.
// Field is a dot-addressable path into the event map ("message.sender").
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Validate checks the condition shape. is_empty and in_vip_list take no
// value; everything else requires one.
func (c Condition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("condition: field required")
	}
	if !c.Operator.Valid() {
		return fmt.Errorf("condition %s: unknown operator %q", c.Field, c.Operator)
	}
	switch c.Operator {
	case OpIsEmpty, OpInVIPList:
	default:
		if c.Value == nil {
			return fmt.Errorf("condition %s: operator %s requires a value", c.Field, c.Operator)
		}
	}
	return nil
}

// ActionTemplate is an action type plus static parameters enqueued when a
// policy matches. String parameters may contain Liquid tags referencing
// {{ event.* }} fields, rendered at selection time.
type ActionTemplate struct {
	Type   ActionType     `json:"action_type"`
	Params map[string]any `json:"params,omitempty"`
}

// Validate checks the template references a known action type.
func (t ActionTemplate) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("action template: unknown action type %q", t.Type)
	}
	return nil
}

// Policy is an owner-authored automation rule: ANDed conditions plus the
// actions to enqueue when they all hold, ranked by priority.
//
// The engine evaluates policies read-only; only the owner (via the API)
// mutates them, except the enabled toggle.
type Policy struct {
	ID                  uuid.UUID        `json:"id" db:"id"`
	OwnerID             string           `json:"owner_id" db:"owner_id"`
	Type                PolicyType       `json:"policy_type" db:"policy_type"`
	Name                string           `json:"name" db:"name"`
	Description         string           `json:"description,omitempty" db:"description"`
	Conditions          []Condition      `json:"conditions"`
	Actions             []ActionTemplate `json:"actions"`
	Enabled             bool             `json:"enabled" db:"enabled"`
	Priority            int              `json:"priority" db:"priority"`
	MaxExecutionsPerDay *int             `json:"max_executions_per_day,omitempty" db:"max_executions_per_day"`
	CooldownMinutes     *int             `json:"cooldown_minutes,omitempty" db:"cooldown_minutes"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at" db:"updated_at"`
}

// Validate checks the policy is well-formed. Called at create/update time;
// a malformed policy is rejected synchronously and never persisted.
func (p *Policy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy: name required")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("policy %s: unknown policy type %q", p.Name, p.Type)
	}
	if len(p.Actions) == 0 {
		return fmt.Errorf("policy %s: at least one action required", p.Name)
	}
	for _, c := range p.Conditions {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("policy %s: %w", p.Name, err)
		}
	}
	for _, a := range p.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("policy %s: %w", p.Name, err)
		}
	}
	if p.MaxExecutionsPerDay != nil && *p.MaxExecutionsPerDay < 1 {
		return fmt.Errorf("policy %s: max_executions_per_day must be >= 1", p.Name)
	}
	if p.CooldownMinutes != nil && *p.CooldownMinutes < 0 {
		return fmt.Errorf("policy %s: cooldown_minutes must be >= 0", p.Name)
	}
	return nil
}
