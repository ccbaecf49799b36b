package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/osteele/liquid"

	"github.com/stewardhq/steward/internal/domain"
)

// PolicySource lists enabled policies for an owner and event type, ordered
// by (priority DESC, created_at ASC).
type PolicySource interface {
	ListEnabled(ctx context.Context, ownerID string, t domain.PolicyType) ([]domain.Policy, error)
}

// VIPSource batch-loads an owner's VIP address set.
type VIPSource interface {
	VIPAddresses(ctx context.Context, ownerID string) (VIPSet, error)
}

// PauseChecker reports whether an owner's autonomy is paused.
type PauseChecker interface {
	IsPaused(ctx context.Context, ownerID string) (bool, error)
}

// Mode selects how many qualifying policies fire per event.
type Mode int

const (
	// FirstMatch fires only the highest-priority policy whose conditions
	// and constraints both pass (the default).
	FirstMatch Mode = iota
	// AllMatches fires every qualifying policy, concatenating action lists
	// in policy-priority order (used by bulk digesting callers).
	AllMatches
)

// ProposedAction is one action a matched policy wants enqueued.
type ProposedAction struct {
	PolicyID uuid.UUID
	Type     domain.ActionType
	Payload  domain.Payload
}

// Evaluation is the outcome of running an event through the selector.
type Evaluation struct {
	Paused       bool
	Matched      []domain.Policy
	Actions      []ProposedAction
	ShouldPrompt bool
}

// Selector runs events through the owner's enabled policies: pause gate,
// then priority-ordered condition matching, then constraint checks.
type Selector struct {
	policies PolicySource
	vips     VIPSource
	pause    PauseChecker
	checker  *ConstraintChecker
	engine   *liquid.Engine
}

// NewSelector wires a selector from its collaborators.
func NewSelector(policies PolicySource, vips VIPSource, pause PauseChecker, checker *ConstraintChecker) *Selector {
	return &Selector{
		policies: policies,
		vips:     vips,
		pause:    pause,
		checker:  checker,
		engine:   liquid.NewEngine(),
	}
}

// Evaluate matches the event against the owner's enabled policies.
//
// Paused owners short-circuit with no matches. Constraint failure on one
// policy falls through to the next-lower-priority policy. No qualifying
// policy sets ShouldPrompt, signaling the caller to fall back to a human.
func (s *Selector) Evaluate(ctx context.Context, ownerID string, eventType domain.PolicyType, event map[string]any, mode Mode) (*Evaluation, error) {
	return s.evaluate(ctx, ownerID, eventType, event, mode, false)
}

// EvaluateBypass matches without the pause gate or constraint checks. Used
// for events from VIP contacts flagged bypass_policies: a VIP match is
// unconditional.
func (s *Selector) EvaluateBypass(ctx context.Context, ownerID string, eventType domain.PolicyType, event map[string]any, mode Mode) (*Evaluation, error) {
	return s.evaluate(ctx, ownerID, eventType, event, mode, true)
}

func (s *Selector) evaluate(ctx context.Context, ownerID string, eventType domain.PolicyType, event map[string]any, mode Mode, bypass bool) (*Evaluation, error) {
	if !bypass {
		paused, err := s.pause.IsPaused(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("pause check: %w", err)
		}
		if paused {
			return &Evaluation{Paused: true}, nil
		}
	}

	policies, err := s.policies.ListEnabled(ctx, ownerID, eventType)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}

	// VIP set loaded once per evaluation, not per condition.
	var vips VIPSet
	if anyVIPCondition(policies) {
		vips, err = s.vips.VIPAddresses(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("load vip set: %w", err)
		}
	}

	now := time.Now()
	eval := &Evaluation{}
	for i := range policies {
		p := &policies[i]
		if !MatchAll(p.Conditions, event, vips) {
			continue
		}
		if !bypass {
			if err := s.checker.Allow(ctx, p, now); err != nil {
				log.Printf("[Selector] policy %q skipped: %v", p.Name, err)
				continue
			}
		}
		actions, err := s.materialize(p, event)
		if err != nil {
			log.Printf("[Selector] policy %q actions invalid: %v", p.Name, err)
			continue
		}
		eval.Matched = append(eval.Matched, *p)
		eval.Actions = append(eval.Actions, actions...)
		if mode == FirstMatch {
			break
		}
	}

	if len(eval.Matched) == 0 {
		eval.ShouldPrompt = true
	}
	return eval, nil
}

// materialize renders a matched policy's action templates into typed
// proposed actions. String parameters may carry Liquid tags referencing
// {{ event.* }} fields.
func (s *Selector) materialize(p *domain.Policy, event map[string]any) ([]ProposedAction, error) {
	bindings := map[string]any{"event": event}
	var out []ProposedAction
	for _, tpl := range p.Actions {
		params, err := s.renderParams(tpl.Params, bindings)
		if err != nil {
			return nil, fmt.Errorf("render %s params: %w", tpl.Type, err)
		}
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal %s params: %w", tpl.Type, err)
		}
		payload, err := domain.DecodePayload(tpl.Type, raw)
		if err != nil {
			return nil, err
		}
		if err := payload.Validate(); err != nil {
			return nil, err
		}
		out = append(out, ProposedAction{PolicyID: p.ID, Type: tpl.Type, Payload: payload})
	}
	return out, nil
}

func (s *Selector) renderParams(params map[string]any, bindings map[string]any) (map[string]any, error) {
	if params == nil {
		return map[string]any{}, nil
	}
	rendered := make(map[string]any, len(params))
	for k, v := range params {
		str, ok := v.(string)
		if !ok || !strings.Contains(str, "{{") && !strings.Contains(str, "{%") {
			rendered[k] = v
			continue
		}
		out, err := s.engine.ParseAndRenderString(str, bindings)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", k, err)
		}
		rendered[k] = out
	}
	return rendered, nil
}

func anyVIPCondition(policies []domain.Policy) bool {
	for _, p := range policies {
		for _, c := range p.Conditions {
			if c.Operator == domain.OpInVIPList {
				return true
			}
		}
	}
	return false
}
