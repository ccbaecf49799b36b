package guard

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Notifier is the fire-and-forget notification sink. Failures are logged
// and swallowed; they must never fail the action they're attached to.
type Notifier interface {
	Notify(ctx context.Context, ownerID, message, priority string)
}

// Gate is the VIP/emergency front door run before ordinary policy
// matching. A VIP sender short-circuits the selector; a paused owner
// suppresses autonomous firing.
type Gate struct {
	vips   *VIPStore
	pause  *PauseService
	notify Notifier // may be nil
}

// NewGate wires the gate. notify may be nil.
func NewGate(vips *VIPStore, pause *PauseService, notify Notifier) *Gate {
	return &Gate{vips: vips, pause: pause, notify: notify}
}

// Verdict is the gate's decision for one inbound event.
type Verdict struct {
	// VIP is set when the sender is on the owner's VIP list. A VIP match
	// with BypassPolicies skips priority ordering and constraint checks
	// entirely; a VIP match is unconditional.
	VIP *VIPMatch
	// Paused reports whether autonomous policy firing is suppressed.
	// It does not apply to the VIP notification above.
	Paused bool
}

// VIPMatch carries the matched contact's routing flags.
type VIPMatch struct {
	ContactID      string
	Address        string
	Tier           string
	BypassPolicies bool
}

// Check runs the VIP lookup and the pause check for an inbound event.
// senderAddress may be empty (events with no sender skip the VIP path).
//
// VIP immediate-notify fires even while the owner is paused: pause brakes
// autonomy, not awareness.
func (g *Gate) Check(ctx context.Context, ownerID, senderAddress string) (*Verdict, error) {
	verdict := &Verdict{}

	if senderAddress != "" {
		contact, err := g.vips.Find(ctx, ownerID, senderAddress)
		switch {
		case err == nil:
			verdict.VIP = &VIPMatch{
				ContactID:      contact.ID.String(),
				Address:        contact.Address,
				Tier:           string(contact.Tier),
				BypassPolicies: contact.BypassPolicies,
			}
			if contact.NotifyImmediately && g.notify != nil {
				g.notify.Notify(ctx, ownerID,
					fmt.Sprintf("VIP message from %s", contact.Address),
					string(contact.Tier))
			}
			if err := g.vips.RecordInteraction(ctx, contact.ID); err != nil {
				log.Printf("[Gate] interaction counter update failed: %v", err)
			}
		case errors.Is(err, ErrVIPNotFound):
			// Not a VIP; fall through to the pause check.
		default:
			return nil, fmt.Errorf("vip lookup: %w", err)
		}
	}

	paused, err := g.pause.IsPaused(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("pause check: %w", err)
	}
	verdict.Paused = paused
	return verdict, nil
}
