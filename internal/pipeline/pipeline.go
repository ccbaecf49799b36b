// Package pipeline is the inbound event path: VIP/pause gate first, then
// policy evaluation, then enqueueing whatever the matched policies propose.
// The pipeline never executes anything itself; every side effect waits in
// the queue for its undo window to close.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stewardhq/steward/internal/domain"
	"github.com/stewardhq/steward/internal/guard"
	"github.com/stewardhq/steward/internal/pkg/logger"
	"github.com/stewardhq/steward/internal/policy"
	"github.com/stewardhq/steward/internal/queue"
)

// Gatekeeper runs the VIP/pause front door.
type Gatekeeper interface {
	Check(ctx context.Context, ownerID, senderAddress string) (*guard.Verdict, error)
}

// Evaluator matches events against the owner's policies.
type Evaluator interface {
	Evaluate(ctx context.Context, ownerID string, t domain.PolicyType, event map[string]any, mode policy.Mode) (*policy.Evaluation, error)
	EvaluateBypass(ctx context.Context, ownerID string, t domain.PolicyType, event map[string]any, mode policy.Mode) (*policy.Evaluation, error)
}

// Enqueuer proposes actions into the delayed queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, req queue.EnqueueRequest) (*domain.Action, error)
}

// Event is one inbound mailbox or calendar occurrence to evaluate.
type Event struct {
	OwnerID string            `json:"owner_id"`
	Type    domain.PolicyType `json:"event_type"`
	// Data is the raw event fields conditions match against (from, subject,
	// body, organizer, attendee_count, ...). Dot paths traverse nested maps.
	Data map[string]any `json:"data"`
}

// Outcome reports what the pipeline did with one event.
type Outcome struct {
	// VIP is set when the sender matched the owner's VIP list.
	VIP *guard.VIPMatch `json:"vip,omitempty"`
	// Paused means autonomy was suppressed and nothing was enqueued.
	Paused bool `json:"paused"`
	// MatchedPolicies names the policies that fired, in firing order.
	MatchedPolicies []string `json:"matched_policies,omitempty"`
	// Enqueued lists the actions now waiting in the queue.
	Enqueued []domain.Action `json:"enqueued,omitempty"`
	// ShouldPrompt means no policy claimed the event; the caller should
	// surface it to the human instead of acting.
	ShouldPrompt bool `json:"should_prompt"`
}

// Pipeline wires the gate, the selector, and the queue.
type Pipeline struct {
	gate    Gatekeeper
	eval    Evaluator
	enqueue Enqueuer
	mode    policy.Mode
}

// New creates a pipeline. mode picks first-match or all-matches firing.
func New(gate Gatekeeper, eval Evaluator, enqueue Enqueuer, mode policy.Mode) *Pipeline {
	return &Pipeline{gate: gate, eval: eval, enqueue: enqueue, mode: mode}
}

// HandleEvent runs one inbound event end to end.
//
// A VIP sender flagged bypass_policies evaluates without the pause gate or
// per-policy constraints and enqueues with vip attribution. A paused owner
// otherwise short-circuits: no new autonomy, though actions already queued
// keep their deadlines.
func (p *Pipeline) HandleEvent(ctx context.Context, ev Event) (*Outcome, error) {
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}

	verdict, err := p.gate.Check(ctx, ev.OwnerID, senderOf(ev.Data))
	if err != nil {
		return nil, fmt.Errorf("gate: %w", err)
	}

	out := &Outcome{}
	trigger := domain.TriggerPolicy
	var eval *policy.Evaluation

	if verdict.VIP != nil {
		out.VIP = verdict.VIP
	}
	if verdict.VIP != nil && verdict.VIP.BypassPolicies {
		trigger = domain.TriggerVIP
		eval, err = p.eval.EvaluateBypass(ctx, ev.OwnerID, ev.Type, ev.Data, p.mode)
	} else {
		eval, err = p.eval.Evaluate(ctx, ev.OwnerID, ev.Type, ev.Data, p.mode)
	}
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	if eval.Paused {
		out.Paused = true
		return out, nil
	}

	for i := range eval.Matched {
		out.MatchedPolicies = append(out.MatchedPolicies, eval.Matched[i].Name)
	}

	// Snapshot the event once; every enqueued action carries it into the
	// execution record.
	snapshot, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("encode event data: %w", err)
	}

	for _, pa := range eval.Actions {
		raw, err := domain.EncodePayload(pa.Payload)
		if err != nil {
			return nil, err
		}
		policyID := pa.PolicyID
		action, err := p.enqueue.Enqueue(ctx, queue.EnqueueRequest{
			OwnerID:     ev.OwnerID,
			Type:        pa.Type,
			Payload:     raw,
			Trigger:     trigger,
			PolicyID:    &policyID,
			TriggerData: snapshot,
		})
		if err != nil {
			// One bad proposal must not sink the rest of the batch.
			logger.Warn("enqueue rejected",
				"owner", ev.OwnerID, "action_type", string(pa.Type), "error", err.Error())
			continue
		}
		out.Enqueued = append(out.Enqueued, *action)
	}

	out.ShouldPrompt = eval.ShouldPrompt
	logger.Info("event handled",
		"owner", ev.OwnerID,
		"event_type", string(ev.Type),
		"sender", senderOf(ev.Data),
		"vip", fmt.Sprintf("%t", out.VIP != nil),
		"paused", fmt.Sprintf("%t", out.Paused),
		"enqueued", fmt.Sprintf("%d", len(out.Enqueued)),
		"should_prompt", fmt.Sprintf("%t", out.ShouldPrompt))
	return out, nil
}

// senderOf pulls the counterparty address out of the event, trying the
// field names the mailbox and calendar sources use.
func senderOf(data map[string]any) string {
	for _, key := range []string{"from", "sender", "organizer"} {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
