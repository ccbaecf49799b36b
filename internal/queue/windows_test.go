package queue

import (
	"testing"
	"time"

	"github.com/stewardhq/steward/internal/domain"
)

func TestUndoWindowDefaults(t *testing.T) {
	tests := []struct {
		actionType domain.ActionType
		want       time.Duration
	}{
		{domain.ActionDeleteMessage, 5 * time.Minute},
		{domain.ActionCancelEvent, 5 * time.Minute},
		{domain.ActionSendMessage, 60 * time.Second},
		{domain.ActionReplyMessage, 60 * time.Second},
		{domain.ActionForwardMessage, 60 * time.Second},
		{domain.ActionScheduleEvent, 2 * time.Minute},
		{domain.ActionArchiveMessage, 30 * time.Second},
		{domain.ActionMarkRead, 30 * time.Second},
		{domain.ActionFlagMessage, 30 * time.Second},
		{domain.ActionRespondToEvent, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(string(tt.actionType), func(t *testing.T) {
			if got := UndoWindow(tt.actionType, nil); got != tt.want {
				t.Errorf("UndoWindow(%s, nil) = %v, want %v", tt.actionType, got, tt.want)
			}
		})
	}
}

func TestUndoWindowSentimentExtension(t *testing.T) {
	score := func(v float64) *float64 { return &v }

	// Below the threshold nothing changes.
	if got := UndoWindow(domain.ActionSendMessage, score(0.5)); got != 60*time.Second {
		t.Errorf("low score should keep base window, got %v", got)
	}
	// At the threshold the extension is zero.
	if got := UndoWindow(domain.ActionSendMessage, score(0.6)); got != 60*time.Second {
		t.Errorf("threshold score should keep base window, got %v", got)
	}
	// Maximum charge adds the full extension.
	if got := UndoWindow(domain.ActionSendMessage, score(1.0)); got != 60*time.Second+4*time.Minute {
		t.Errorf("max score should add full extension, got %v", got)
	}
	// Midway through the charged range scales linearly.
	if got := UndoWindow(domain.ActionSendMessage, score(0.8)); got != 60*time.Second+2*time.Minute {
		t.Errorf("0.8 score should add half extension, got %v", got)
	}
	// Scores above 1 are clamped.
	if got := UndoWindow(domain.ActionSendMessage, score(1.5)); got != 60*time.Second+4*time.Minute {
		t.Errorf("clamped score should add full extension, got %v", got)
	}
	// Sentiment never touches non-message types.
	if got := UndoWindow(domain.ActionDeleteMessage, score(1.0)); got != 5*time.Minute {
		t.Errorf("destructive window should ignore sentiment, got %v", got)
	}
}
