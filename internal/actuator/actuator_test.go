package actuator

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/domain"
)

type countingActuator struct {
	name    string
	calls   int
	authErr error
}

func (c *countingActuator) Authenticate(context.Context) error { return c.authErr }

func (c *countingActuator) Execute(_ context.Context, _ *domain.Action) (*Result, error) {
	c.calls++
	return &Result{Detail: c.name}, nil
}

func action(t domain.ActionType) *domain.Action {
	return &domain.Action{ID: uuid.New(), OwnerID: "o1", Type: t}
}

func TestCompositeRouting(t *testing.T) {
	mail := &countingActuator{name: "mail"}
	provider := &countingActuator{name: "provider"}
	c := NewComposite(mail, provider)

	res, err := c.Execute(context.Background(), action(domain.ActionSendMessage))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Detail != "mail" {
		t.Errorf("send routed to %s, want mail", res.Detail)
	}

	providerTypes := []domain.ActionType{
		domain.ActionReplyMessage, domain.ActionForwardMessage,
		domain.ActionDeleteMessage, domain.ActionArchiveMessage,
		domain.ActionMarkRead, domain.ActionFlagMessage,
		domain.ActionScheduleEvent, domain.ActionCancelEvent,
		domain.ActionRespondToEvent,
	}
	for _, at := range providerTypes {
		res, err := c.Execute(context.Background(), action(at))
		if err != nil {
			t.Fatalf("%s: %v", at, err)
		}
		if res.Detail != "provider" {
			t.Errorf("%s routed to %s, want provider", at, res.Detail)
		}
	}
	if mail.calls != 1 || provider.calls != len(providerTypes) {
		t.Errorf("calls: mail=%d provider=%d", mail.calls, provider.calls)
	}
}

func TestCompositeMissingAdapter(t *testing.T) {
	c := NewComposite(nil, &countingActuator{name: "provider"})

	_, err := c.Execute(context.Background(), action(domain.ActionSendMessage))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestCompositeUnknownType(t *testing.T) {
	c := NewComposite(&countingActuator{}, &countingActuator{})

	_, err := c.Execute(context.Background(), action("teleport"))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestCompositeAuthenticate(t *testing.T) {
	mail := &countingActuator{name: "mail", authErr: errors.New("bad creds")}
	c := NewComposite(mail, &countingActuator{name: "provider"})

	if err := c.Authenticate(context.Background()); err == nil {
		t.Error("auth failure should propagate")
	}

	if err := NewComposite(nil, nil).Authenticate(context.Background()); err != nil {
		t.Errorf("empty composite should authenticate trivially: %v", err)
	}
}
