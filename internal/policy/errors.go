package policy

import "errors"

// Sentinel errors for the policy engine.
var (
	ErrNotFound       = errors.New("policy not found")
	ErrRateLimited    = errors.New("policy daily execution limit reached")
	ErrCooldownActive = errors.New("policy cooldown active")
)
