package queue

import "errors"

// Sentinel errors for queue operations.
var (
	// ErrNotFound means no action with that id belongs to the owner.
	ErrNotFound = errors.New("action not found")

	// ErrWindowExpired means a cancel arrived at or after the undo
	// deadline. Distinct from ErrStateConflict because the action may
	// already be mid-execution; callers must not treat it as a no-op.
	ErrWindowExpired = errors.New("undo window expired")

	// ErrStateConflict means the operation requires a state the action is
	// no longer in (cancel on undone, retry on non-failed, ...).
	ErrStateConflict = errors.New("action not in required state")

	// ErrUnknownActionType means the request named a type outside the
	// closed enum. Rejected synchronously; never persisted.
	ErrUnknownActionType = errors.New("unknown action type")
)
