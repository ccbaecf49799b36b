package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tier is an owner's integration capability level. Higher tiers unlock
// more consequential action types; the gate is checked at enqueue time and
// again at claim time (the tier may have been downgraded in between).
type Tier int

const (
	TierRead     Tier = 1 // read-only: no queued actions at all
	TierStandard Tier = 2 // reversible mailbox ops, RSVP
	TierFull     Tier = 3 // send, delete, schedule, cancel
)

// String returns the tier's wire name.
func (t Tier) String() string {
	switch t {
	case TierRead:
		return "read"
	case TierStandard:
		return "standard"
	case TierFull:
		return "full"
	}
	return "unknown"
}

// VIPTier ranks how loudly a VIP match is surfaced.
type VIPTier string

const (
	VIPNormal VIPTier = "normal"
	VIPHigh   VIPTier = "high"
	VIPUrgent VIPTier = "urgent"
)

// VIPContact is a sender address the owner has marked as always-important.
// The matching path consults it and increments the interaction counter, but
// never otherwise mutates it.
type VIPContact struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	OwnerID           string     `json:"owner_id" db:"owner_id"`
	Address           string     `json:"address" db:"address"`
	DisplayName       string     `json:"display_name,omitempty" db:"display_name"`
	Tier              VIPTier    `json:"tier" db:"tier"`
	NotifyImmediately bool       `json:"notify_immediately" db:"notify_immediately"`
	BypassPolicies    bool       `json:"bypass_policies" db:"bypass_policies"`
	InteractionCount  int        `json:"interaction_count" db:"interaction_count"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty" db:"last_interaction_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// PauseState is the per-owner emergency brake. While paused, no new
// autonomous policy firing happens; actions already queued keep their own
// schedule (pause is a brake on new autonomy, not a rollback).
type PauseState struct {
	OwnerID     string     `json:"owner_id" db:"owner_id"`
	IsPaused    bool       `json:"is_paused" db:"is_paused"`
	PausedUntil *time.Time `json:"paused_until,omitempty" db:"paused_until"`
	Reason      string     `json:"reason,omitempty" db:"reason"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// PauseWindow is a pre-scheduled future pause interval.
type PauseWindow struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	StartsAt  time.Time `json:"starts_at" db:"starts_at"`
	EndsAt    time.Time `json:"ends_at" db:"ends_at"`
	Reason    string    `json:"reason,omitempty" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Active reports whether now falls inside the window.
func (w PauseWindow) Active(now time.Time) bool {
	return !now.Before(w.StartsAt) && now.Before(w.EndsAt)
}
