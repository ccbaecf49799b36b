package queue

import (
	"time"

	"github.com/stewardhq/steward/internal/domain"
)

// Default undo windows per action class. Destructive types get the longest
// grace period; cheap-to-reverse mailbox ops the shortest.
const (
	windowDestructive = 5 * time.Minute
	windowSend        = 60 * time.Second
	windowSchedule    = 2 * time.Minute
	windowReversible  = 30 * time.Second

	// sentimentThreshold is the emotional-charge score above which an
	// outgoing message's window is extended.
	sentimentThreshold = 0.6

	// maxSentimentExtension caps how much a charged message adds on top
	// of the base send window.
	maxSentimentExtension = 4 * time.Minute
)

// UndoWindow returns the grace period for an action type. sentiment is the
// optional emotional-charge score in [0,1] from the upstream signal; it
// only affects outgoing-message types and a nil score (collaborator absent
// or failed) leaves the default untouched.
//
// This is a pure function of (type, score); sizing policy lives here,
// independent of the queue's persistence logic.
func UndoWindow(t domain.ActionType, sentiment *float64) time.Duration {
	var base time.Duration
	switch t {
	case domain.ActionDeleteMessage, domain.ActionCancelEvent:
		base = windowDestructive
	case domain.ActionSendMessage, domain.ActionReplyMessage, domain.ActionForwardMessage:
		base = windowSend
	case domain.ActionScheduleEvent:
		base = windowSchedule
	default:
		base = windowReversible
	}

	if sentiment == nil {
		return base
	}
	switch t {
	case domain.ActionSendMessage, domain.ActionReplyMessage, domain.ActionForwardMessage:
	default:
		return base
	}

	score := *sentiment
	if score < sentimentThreshold {
		return base
	}
	if score > 1 {
		score = 1
	}
	// Scale the extension linearly across the charged range.
	frac := (score - sentimentThreshold) / (1 - sentimentThreshold)
	return base + time.Duration(frac*float64(maxSentimentExtension))
}
