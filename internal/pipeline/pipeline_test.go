package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/domain"
	"github.com/stewardhq/steward/internal/guard"
	"github.com/stewardhq/steward/internal/policy"
	"github.com/stewardhq/steward/internal/queue"
)

type fakeGate struct {
	verdict guard.Verdict
	sender  string
}

func (g *fakeGate) Check(_ context.Context, _, senderAddress string) (*guard.Verdict, error) {
	g.sender = senderAddress
	v := g.verdict
	return &v, nil
}

type fakeEvaluator struct {
	eval        policy.Evaluation
	bypassEval  *policy.Evaluation
	bypassCalls int
	normalCalls int
}

func (e *fakeEvaluator) Evaluate(context.Context, string, domain.PolicyType, map[string]any, policy.Mode) (*policy.Evaluation, error) {
	e.normalCalls++
	v := e.eval
	return &v, nil
}

func (e *fakeEvaluator) EvaluateBypass(context.Context, string, domain.PolicyType, map[string]any, policy.Mode) (*policy.Evaluation, error) {
	e.bypassCalls++
	if e.bypassEval != nil {
		v := *e.bypassEval
		return &v, nil
	}
	v := e.eval
	return &v, nil
}

type fakeEnqueuer struct {
	requests []queue.EnqueueRequest
	failType domain.ActionType
}

func (q *fakeEnqueuer) Enqueue(_ context.Context, req queue.EnqueueRequest) (*domain.Action, error) {
	if req.Type == q.failType {
		return nil, queue.ErrUnknownActionType
	}
	q.requests = append(q.requests, req)
	return &domain.Action{
		ID:       uuid.New(),
		OwnerID:  req.OwnerID,
		Type:     req.Type,
		Trigger:  req.Trigger,
		PolicyID: req.PolicyID,
		Status:   domain.ActionPending,
	}, nil
}

func proposal(t domain.ActionType, p domain.Payload) policy.ProposedAction {
	return policy.ProposedAction{PolicyID: uuid.New(), Type: t, Payload: p}
}

func inboxEvent(from string) Event {
	return Event{
		OwnerID: "o1",
		Type:    domain.PolicyInbox,
		Data:    map[string]any{"from": from, "subject": "newsletter", "message_id": "m1"},
	}
}

func TestHandleEventEnqueuesWithPolicyAttribution(t *testing.T) {
	pa := proposal(domain.ActionArchiveMessage, domain.ArchiveMessagePayload{MessageID: "m1"})
	eval := &fakeEvaluator{eval: policy.Evaluation{
		Matched: []domain.Policy{{Name: "newsletters"}},
		Actions: []policy.ProposedAction{pa},
	}}
	enq := &fakeEnqueuer{}
	gate := &fakeGate{}
	p := New(gate, eval, enq, policy.FirstMatch)

	out, err := p.HandleEvent(context.Background(), inboxEvent("list@example.com"))
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if gate.sender != "list@example.com" {
		t.Errorf("gate saw sender %q", gate.sender)
	}
	if len(out.Enqueued) != 1 {
		t.Fatalf("enqueued = %d, want 1", len(out.Enqueued))
	}
	req := enq.requests[0]
	if req.Trigger != domain.TriggerPolicy {
		t.Errorf("trigger = %s, want policy", req.Trigger)
	}
	if req.PolicyID == nil || *req.PolicyID != pa.PolicyID {
		t.Errorf("policy attribution lost: %v", req.PolicyID)
	}
	// The event snapshot rides the request into the audit trail.
	var snapshot map[string]any
	if err := json.Unmarshal(req.TriggerData, &snapshot); err != nil {
		t.Fatalf("trigger data not valid JSON: %v", err)
	}
	if snapshot["from"] != "list@example.com" || snapshot["message_id"] != "m1" {
		t.Errorf("snapshot = %v", snapshot)
	}
	if out.MatchedPolicies[0] != "newsletters" {
		t.Errorf("matched = %v", out.MatchedPolicies)
	}
}

func TestHandleEventVIPBypass(t *testing.T) {
	eval := &fakeEvaluator{eval: policy.Evaluation{
		Actions: []policy.ProposedAction{
			proposal(domain.ActionFlagMessage, domain.FlagMessagePayload{MessageID: "m1", Flag: "vip"}),
		},
	}}
	enq := &fakeEnqueuer{}
	gate := &fakeGate{verdict: guard.Verdict{
		VIP: &guard.VIPMatch{Address: "boss@corp.example", BypassPolicies: true},
	}}
	p := New(gate, eval, enq, policy.FirstMatch)

	out, err := p.HandleEvent(context.Background(), inboxEvent("boss@corp.example"))
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if eval.bypassCalls != 1 || eval.normalCalls != 0 {
		t.Errorf("bypass path not taken: bypass=%d normal=%d", eval.bypassCalls, eval.normalCalls)
	}
	if out.VIP == nil {
		t.Fatal("outcome should surface the VIP match")
	}
	if enq.requests[0].Trigger != domain.TriggerVIP {
		t.Errorf("trigger = %s, want vip", enq.requests[0].Trigger)
	}
}

func TestHandleEventVIPWithoutBypassStaysNormal(t *testing.T) {
	eval := &fakeEvaluator{eval: policy.Evaluation{ShouldPrompt: true}}
	gate := &fakeGate{verdict: guard.Verdict{
		VIP: &guard.VIPMatch{Address: "boss@corp.example", BypassPolicies: false},
	}}
	p := New(gate, eval, &fakeEnqueuer{}, policy.FirstMatch)

	out, err := p.HandleEvent(context.Background(), inboxEvent("boss@corp.example"))
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if eval.normalCalls != 1 || eval.bypassCalls != 0 {
		t.Errorf("non-bypass VIP must use the normal path: normal=%d bypass=%d", eval.normalCalls, eval.bypassCalls)
	}
	if out.VIP == nil || !out.ShouldPrompt {
		t.Errorf("outcome = %+v", out)
	}
}

func TestHandleEventPaused(t *testing.T) {
	eval := &fakeEvaluator{eval: policy.Evaluation{Paused: true}}
	enq := &fakeEnqueuer{}
	p := New(&fakeGate{}, eval, enq, policy.FirstMatch)

	out, err := p.HandleEvent(context.Background(), inboxEvent("a@example.com"))
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if !out.Paused {
		t.Error("outcome should report paused")
	}
	if len(enq.requests) != 0 {
		t.Error("paused owner must not enqueue")
	}
}

func TestHandleEventBadProposalSkipped(t *testing.T) {
	eval := &fakeEvaluator{eval: policy.Evaluation{
		Actions: []policy.ProposedAction{
			proposal(domain.ActionDeleteMessage, domain.DeleteMessagePayload{MessageID: "m1"}),
			proposal(domain.ActionArchiveMessage, domain.ArchiveMessagePayload{MessageID: "m1"}),
		},
	}}
	enq := &fakeEnqueuer{failType: domain.ActionDeleteMessage}
	p := New(&fakeGate{}, eval, enq, policy.AllMatches)

	out, err := p.HandleEvent(context.Background(), inboxEvent("a@example.com"))
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	// The rejected proposal is dropped, not fatal.
	if len(out.Enqueued) != 1 || out.Enqueued[0].Type != domain.ActionArchiveMessage {
		t.Errorf("enqueued = %+v", out.Enqueued)
	}
}

func TestHandleEventUnknownType(t *testing.T) {
	p := New(&fakeGate{}, &fakeEvaluator{}, &fakeEnqueuer{}, policy.FirstMatch)
	_, err := p.HandleEvent(context.Background(), Event{OwnerID: "o1", Type: "weather"})
	if err == nil {
		t.Fatal("unknown event type should be rejected")
	}
}

func TestSenderOf(t *testing.T) {
	cases := []struct {
		data map[string]any
		want string
	}{
		{map[string]any{"from": "a@x.example"}, "a@x.example"},
		{map[string]any{"organizer": "b@x.example"}, "b@x.example"},
		{map[string]any{"sender": "c@x.example", "organizer": "d@x.example"}, "c@x.example"},
		{map[string]any{"subject": "no sender"}, ""},
		{map[string]any{"from": 42}, ""},
	}
	for _, tc := range cases {
		if got := senderOf(tc.data); got != tc.want {
			t.Errorf("senderOf(%v) = %q, want %q", tc.data, got, tc.want)
		}
	}
}
