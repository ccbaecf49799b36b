// Package capability implements the integration-tier gate: which action
// types an owner's provider connection is allowed to perform. The gate is
// consulted at enqueue time and re-checked at claim time.
package capability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stewardhq/steward/internal/domain"
)

// ErrInsufficientTier is returned when the owner's tier is below the
// minimum for the requested action type.
var ErrInsufficientTier = errors.New("integration tier insufficient for action type")

// MinimumTierFor returns the lowest tier allowed to perform the action type.
// Reversible mailbox operations need standard; anything that sends, deletes,
// or alters other people's calendars needs full.
func MinimumTierFor(t domain.ActionType) domain.Tier {
	switch t {
	case domain.ActionArchiveMessage, domain.ActionMarkRead, domain.ActionFlagMessage,
		domain.ActionRespondToEvent:
		return domain.TierStandard
	case domain.ActionSendMessage, domain.ActionReplyMessage, domain.ActionForwardMessage,
		domain.ActionDeleteMessage, domain.ActionScheduleEvent, domain.ActionCancelEvent:
		return domain.TierFull
	}
	// Unknown types are rejected elsewhere; be conservative here.
	return domain.TierFull
}

// Store looks up owner tiers from Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a capability store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// OwnerTier returns the owner's current integration tier. Owners with no
// row default to read-only, which blocks every queued action type.
func (s *Store) OwnerTier(ctx context.Context, ownerID string) (domain.Tier, error) {
	var tier int
	err := s.db.QueryRowContext(ctx,
		`SELECT tier FROM steward_owner_tiers WHERE owner_id = $1`, ownerID,
	).Scan(&tier)
	if err == sql.ErrNoRows {
		return domain.TierRead, nil
	}
	if err != nil {
		return 0, fmt.Errorf("owner tier lookup: %w", err)
	}
	return domain.Tier(tier), nil
}

// SetOwnerTier upserts the owner's tier.
func (s *Store) SetOwnerTier(ctx context.Context, ownerID string, tier domain.Tier) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO steward_owner_tiers (owner_id, tier, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (owner_id) DO UPDATE SET tier = $2, updated_at = NOW()`,
		ownerID, int(tier))
	return err
}

// Check verifies the owner's tier covers the action type.
func Check(ownerTier domain.Tier, t domain.ActionType) error {
	if min := MinimumTierFor(t); ownerTier < min {
		return fmt.Errorf("%w: %s requires %s, owner has %s",
			ErrInsufficientTier, t, min, ownerTier)
	}
	return nil
}
