package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/domain"
)

// ExecutionHistory is the read surface the constraint checker needs from
// the audit ledger. Counts are exact per-event queries; see DESIGN.md for
// the caching decision.
type ExecutionHistory interface {
	// CountPolicySuccessesSince counts successful executions of the policy
	// at or after the given time.
	CountPolicySuccessesSince(ctx context.Context, policyID uuid.UUID, since time.Time) (int, error)
	// LastPolicySuccess returns the timestamp of the most recent successful
	// execution, or nil if the policy has never fired successfully.
	LastPolicySuccess(ctx context.Context, policyID uuid.UUID) (*time.Time, error)
}

// ConstraintChecker enforces per-policy rate limits and cooldowns against
// execution history.
type ConstraintChecker struct {
	history ExecutionHistory
}

// NewConstraintChecker creates a constraint checker over the given history.
func NewConstraintChecker(history ExecutionHistory) *ConstraintChecker {
	return &ConstraintChecker{history: history}
}

// Allow returns nil if the policy may fire now. A rate-limit breach returns
// ErrRateLimited and an active cooldown returns ErrCooldownActive, both
// wrapped with a remaining-quota hint. Constraint failure is not fatal to
// evaluation: the selector skips to the next-lower-priority policy.
func (c *ConstraintChecker) Allow(ctx context.Context, p *domain.Policy, now time.Time) error {
	if p.MaxExecutionsPerDay != nil {
		dayStart := now.UTC().Truncate(24 * time.Hour)
		n, err := c.history.CountPolicySuccessesSince(ctx, p.ID, dayStart)
		if err != nil {
			return fmt.Errorf("count executions for policy %s: %w", p.ID, err)
		}
		if n >= *p.MaxExecutionsPerDay {
			return fmt.Errorf("%w: %d/%d used today", ErrRateLimited, n, *p.MaxExecutionsPerDay)
		}
	}

	if p.CooldownMinutes != nil && *p.CooldownMinutes > 0 {
		last, err := c.history.LastPolicySuccess(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("last execution for policy %s: %w", p.ID, err)
		}
		if last != nil {
			cooldown := time.Duration(*p.CooldownMinutes) * time.Minute
			if elapsed := now.Sub(*last); elapsed < cooldown {
				return fmt.Errorf("%w: %s remaining", ErrCooldownActive, (cooldown - elapsed).Round(time.Second))
			}
		}
	}

	return nil
}
