package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the typed parameter block for one action. Each action type
// carries exactly one payload struct; the union is decoded once at the
// queue boundary by DecodePayload and stays typed from there on.
type Payload interface {
	// ActionType returns the action type this payload belongs to.
	ActionType() ActionType
	// Validate checks required fields. Called at enqueue time; a payload
	// that fails validation is never persisted.
	Validate() error
}

// SendMessagePayload carries an outbound message.
type SendMessagePayload struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Bcc     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	HTML    bool     `json:"html,omitempty"`
}

func (SendMessagePayload) ActionType() ActionType { return ActionSendMessage }

func (p SendMessagePayload) Validate() error {
	if len(p.To) == 0 {
		return fmt.Errorf("send_message: at least one recipient required")
	}
	if p.Subject == "" && p.Body == "" {
		return fmt.Errorf("send_message: subject or body required")
	}
	return nil
}

// ReplyMessagePayload replies to an existing message thread.
type ReplyMessagePayload struct {
	MessageID string `json:"message_id"`
	Body      string `json:"body"`
	ReplyAll  bool   `json:"reply_all,omitempty"`
}

func (ReplyMessagePayload) ActionType() ActionType { return ActionReplyMessage }

func (p ReplyMessagePayload) Validate() error {
	if p.MessageID == "" {
		return fmt.Errorf("reply_message: message_id required")
	}
	if p.Body == "" {
		return fmt.Errorf("reply_message: body required")
	}
	return nil
}

// ForwardMessagePayload forwards an existing message.
type ForwardMessagePayload struct {
	MessageID string   `json:"message_id"`
	To        []string `json:"to"`
	Comment   string   `json:"comment,omitempty"`
}

func (ForwardMessagePayload) ActionType() ActionType { return ActionForwardMessage }

func (p ForwardMessagePayload) Validate() error {
	if p.MessageID == "" {
		return fmt.Errorf("forward_message: message_id required")
	}
	if len(p.To) == 0 {
		return fmt.Errorf("forward_message: at least one recipient required")
	}
	return nil
}

// DeleteMessagePayload moves a message to trash.
type DeleteMessagePayload struct {
	MessageID string `json:"message_id"`
}

func (DeleteMessagePayload) ActionType() ActionType { return ActionDeleteMessage }

func (p DeleteMessagePayload) Validate() error {
	if p.MessageID == "" {
		return fmt.Errorf("delete_message: message_id required")
	}
	return nil
}

// ArchiveMessagePayload removes a message from the inbox without deleting.
type ArchiveMessagePayload struct {
	MessageID string `json:"message_id"`
}

func (ArchiveMessagePayload) ActionType() ActionType { return ActionArchiveMessage }

func (p ArchiveMessagePayload) Validate() error {
	if p.MessageID == "" {
		return fmt.Errorf("archive_message: message_id required")
	}
	return nil
}

// MarkReadPayload marks a message read or unread.
type MarkReadPayload struct {
	MessageID string `json:"message_id"`
	Unread    bool   `json:"unread,omitempty"`
}

func (MarkReadPayload) ActionType() ActionType { return ActionMarkRead }

func (p MarkReadPayload) Validate() error {
	if p.MessageID == "" {
		return fmt.Errorf("mark_read: message_id required")
	}
	return nil
}

// FlagMessagePayload applies or removes a flag/label on a message.
type FlagMessagePayload struct {
	MessageID string `json:"message_id"`
	Flag      string `json:"flag"`
	Remove    bool   `json:"remove,omitempty"`
}

func (FlagMessagePayload) ActionType() ActionType { return ActionFlagMessage }

func (p FlagMessagePayload) Validate() error {
	if p.MessageID == "" {
		return fmt.Errorf("flag_message: message_id required")
	}
	if p.Flag == "" {
		return fmt.Errorf("flag_message: flag required")
	}
	return nil
}

// ScheduleEventPayload creates a calendar event.
type ScheduleEventPayload struct {
	Title       string    `json:"title"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Attendees   []string  `json:"attendees,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
}

func (ScheduleEventPayload) ActionType() ActionType { return ActionScheduleEvent }

func (p ScheduleEventPayload) Validate() error {
	if p.Title == "" {
		return fmt.Errorf("schedule_event: title required")
	}
	if p.StartsAt.IsZero() || p.EndsAt.IsZero() {
		return fmt.Errorf("schedule_event: starts_at and ends_at required")
	}
	if !p.EndsAt.After(p.StartsAt) {
		return fmt.Errorf("schedule_event: ends_at must be after starts_at")
	}
	return nil
}

// CancelEventPayload cancels an existing calendar event.
type CancelEventPayload struct {
	EventID string `json:"event_id"`
	Comment string `json:"comment,omitempty"`
}

func (CancelEventPayload) ActionType() ActionType { return ActionCancelEvent }

func (p CancelEventPayload) Validate() error {
	if p.EventID == "" {
		return fmt.Errorf("cancel_event: event_id required")
	}
	return nil
}

// EventResponse is the RSVP value for respond_to_event.
type EventResponse string

const (
	ResponseAccepted  EventResponse = "accepted"
	ResponseDeclined  EventResponse = "declined"
	ResponseTentative EventResponse = "tentative"
)

// RespondToEventPayload RSVPs to a meeting invitation.
type RespondToEventPayload struct {
	EventID  string        `json:"event_id"`
	Response EventResponse `json:"response"`
	Comment  string        `json:"comment,omitempty"`
}

func (RespondToEventPayload) ActionType() ActionType { return ActionRespondToEvent }

func (p RespondToEventPayload) Validate() error {
	if p.EventID == "" {
		return fmt.Errorf("respond_to_event: event_id required")
	}
	switch p.Response {
	case ResponseAccepted, ResponseDeclined, ResponseTentative:
	default:
		return fmt.Errorf("respond_to_event: invalid response %q", p.Response)
	}
	return nil
}

// DecodePayload unmarshals raw JSON into the payload struct for the given
// action type. This is the single point where untyped parameter blobs
// become typed; everything downstream of the queue works with the union.
func DecodePayload(t ActionType, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch t {
	case ActionSendMessage:
		p = &SendMessagePayload{}
	case ActionReplyMessage:
		p = &ReplyMessagePayload{}
	case ActionForwardMessage:
		p = &ForwardMessagePayload{}
	case ActionDeleteMessage:
		p = &DeleteMessagePayload{}
	case ActionArchiveMessage:
		p = &ArchiveMessagePayload{}
	case ActionMarkRead:
		p = &MarkReadPayload{}
	case ActionFlagMessage:
		p = &FlagMessagePayload{}
	case ActionScheduleEvent:
		p = &ScheduleEventPayload{}
	case ActionCancelEvent:
		p = &CancelEventPayload{}
	case ActionRespondToEvent:
		p = &RespondToEventPayload{}
	default:
		return nil, fmt.Errorf("unknown action type %q", t)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
	}
	return deref(p), nil
}

// deref returns the value behind the pointer so payloads compare by value
// in tests and the union stays immutable once decoded.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *SendMessagePayload:
		return *v
	case *ReplyMessagePayload:
		return *v
	case *ForwardMessagePayload:
		return *v
	case *DeleteMessagePayload:
		return *v
	case *ArchiveMessagePayload:
		return *v
	case *MarkReadPayload:
		return *v
	case *FlagMessagePayload:
		return *v
	case *ScheduleEventPayload:
		return *v
	case *CancelEventPayload:
		return *v
	case *RespondToEventPayload:
		return *v
	}
	return p
}

// EncodePayload marshals a typed payload back to JSON for persistence.
func EncodePayload(p Payload) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.ActionType(), err)
	}
	return b, nil
}
