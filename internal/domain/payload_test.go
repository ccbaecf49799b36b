package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodePayloadRoundTrip(t *testing.T) {
	raw := json.RawMessage(`{"to":["a@example.com"],"subject":"hi","body":"text"}`)
	p, err := DecodePayload(ActionSendMessage, raw)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	send, ok := p.(SendMessagePayload)
	if !ok {
		t.Fatalf("expected SendMessagePayload, got %T", p)
	}
	if send.Subject != "hi" || len(send.To) != 1 {
		t.Errorf("unexpected payload: %+v", send)
	}

	encoded, err := EncodePayload(send)
	if err != nil {
		t.Fatalf("EncodePayload: %v", err)
	}
	p2, err := DecodePayload(ActionSendMessage, encoded)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if p2.(SendMessagePayload).Subject != "hi" {
		t.Error("round trip lost subject")
	}
}

func TestDecodePayloadUnknownType(t *testing.T) {
	if _, err := DecodePayload("compose_sonnet", json.RawMessage(`{}`)); err == nil {
		t.Error("expected error for unknown action type")
	}
}

func TestPayloadValidate(t *testing.T) {
	start := time.Now().Add(time.Hour)
	tests := []struct {
		name    string
		payload Payload
		wantErr bool
	}{
		{"send ok", SendMessagePayload{To: []string{"a@b.c"}, Subject: "s"}, false},
		{"send no recipients", SendMessagePayload{Subject: "s"}, true},
		{"send empty subject and body", SendMessagePayload{To: []string{"a@b.c"}}, true},
		{"reply ok", ReplyMessagePayload{MessageID: "m1", Body: "ok"}, false},
		{"reply missing body", ReplyMessagePayload{MessageID: "m1"}, true},
		{"forward missing to", ForwardMessagePayload{MessageID: "m1"}, true},
		{"delete ok", DeleteMessagePayload{MessageID: "m1"}, false},
		{"delete missing id", DeleteMessagePayload{}, true},
		{"flag missing flag", FlagMessagePayload{MessageID: "m1"}, true},
		{"schedule ok", ScheduleEventPayload{Title: "t", StartsAt: start, EndsAt: start.Add(time.Hour)}, false},
		{"schedule inverted times", ScheduleEventPayload{Title: "t", StartsAt: start, EndsAt: start.Add(-time.Hour)}, true},
		{"respond ok", RespondToEventPayload{EventID: "e1", Response: ResponseAccepted}, false},
		{"respond bad response", RespondToEventPayload{EventID: "e1", Response: "maybe"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActionLifecycleHelpers(t *testing.T) {
	now := time.Now()
	a := &Action{Status: ActionPending, UndoDeadline: now.Add(time.Minute)}

	if !a.Cancellable(now) {
		t.Error("pending action before deadline should be cancellable")
	}
	if a.Due(now) {
		t.Error("action before deadline should not be due")
	}

	late := now.Add(2 * time.Minute)
	if a.Cancellable(late) {
		t.Error("pending action past deadline should not be cancellable")
	}
	if !a.Due(late) {
		t.Error("pending action past deadline should be due")
	}

	a.Status = ActionExecuted
	if a.Cancellable(now) || a.Due(late) {
		t.Error("terminal action is neither cancellable nor due")
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []ActionStatus{ActionExecuted, ActionUndone, ActionExpired, ActionFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []ActionStatus{ActionPending, ActionExecuting} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
