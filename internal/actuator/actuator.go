// Package actuator binds the external providers that perform real side
// effects for claimed actions. The core never inspects provider response
// shapes beyond success/failure plus an optional new resource id.
//
// Dispatch is an explicit switch over the closed action type set: the
// composite routes outbound sends to SES and everything that touches an
// existing mailbox or calendar to the provider REST adapter.
package actuator

import (
	"context"
	"errors"
	"fmt"

	"github.com/stewardhq/steward/internal/domain"
)

// ErrUnsupported means the adapter has no operation for the action type.
var ErrUnsupported = errors.New("action type not supported by this actuator")

// Result is what the core learns from an execution attempt.
type Result struct {
	// Detail is a short human-readable outcome for the audit trail.
	Detail string
	// ResourceID is the provider id of anything newly created (sent
	// message id, event id), when the provider reports one.
	ResourceID string
}

// Actuator performs the real-world side effect for one claimed action.
type Actuator interface {
	// Authenticate verifies the adapter can reach its provider.
	Authenticate(ctx context.Context) error
	// Execute performs the action. A nil error means the side effect
	// happened; the executor records anything else as a failure.
	Execute(ctx context.Context, a *domain.Action) (*Result, error)
}

// Composite routes each action type to the adapter that owns it.
type Composite struct {
	mail     Actuator // outbound sends
	provider Actuator // mailbox + calendar mutations
}

// NewComposite wires the router. Either adapter may be nil; actions routed
// to a missing adapter fail with ErrUnsupported.
func NewComposite(mail, provider Actuator) *Composite {
	return &Composite{mail: mail, provider: provider}
}

// Authenticate checks every configured adapter.
func (c *Composite) Authenticate(ctx context.Context) error {
	if c.mail != nil {
		if err := c.mail.Authenticate(ctx); err != nil {
			return fmt.Errorf("mail actuator: %w", err)
		}
	}
	if c.provider != nil {
		if err := c.provider.Authenticate(ctx); err != nil {
			return fmt.Errorf("provider actuator: %w", err)
		}
	}
	return nil
}

// Execute dispatches over the closed action type enum.
func (c *Composite) Execute(ctx context.Context, a *domain.Action) (*Result, error) {
	switch a.Type {
	case domain.ActionSendMessage:
		return c.via(ctx, c.mail, a)
	case domain.ActionReplyMessage, domain.ActionForwardMessage,
		domain.ActionDeleteMessage, domain.ActionArchiveMessage,
		domain.ActionMarkRead, domain.ActionFlagMessage,
		domain.ActionScheduleEvent, domain.ActionCancelEvent,
		domain.ActionRespondToEvent:
		return c.via(ctx, c.provider, a)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, a.Type)
}

func (c *Composite) via(ctx context.Context, target Actuator, a *domain.Action) (*Result, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: no adapter configured for %s", ErrUnsupported, a.Type)
	}
	return target.Execute(ctx, a)
}
