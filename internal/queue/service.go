package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/capability"
	"github.com/stewardhq/steward/internal/domain"
)

// Repository is the persistence surface the queue service needs. *Store
// implements it against Postgres; tests supply fakes.
type Repository interface {
	Insert(ctx context.Context, a *domain.Action) error
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.Action, error)
	CancelPending(ctx context.Context, ownerID string, id uuid.UUID, reason string) (int64, error)
	ExpeditePending(ctx context.Context, ownerID string, id uuid.UUID) (int64, error)
	ListPending(ctx context.Context, ownerID string, typeFilter domain.ActionType) ([]domain.Action, error)
	GetStats(ctx context.Context, ownerID string) (*Stats, error)
}

// TierSource resolves an owner's integration tier.
type TierSource interface {
	OwnerTier(ctx context.Context, ownerID string) (domain.Tier, error)
}

// SentimentScorer is the optional upstream emotional-charge signal. A nil
// scorer, or a scorer error, must never block enqueue.
type SentimentScorer interface {
	Score(ctx context.Context, subject, body string) (float64, error)
}

// Service exposes the queue's owner-facing operations: enqueue, cancel,
// expedite, lookup, stats.
type Service struct {
	repo      Repository
	tiers     TierSource
	sentiment SentimentScorer // may be nil
}

// NewService creates a queue service. sentiment may be nil.
func NewService(repo Repository, tiers TierSource, sentiment SentimentScorer) *Service {
	return &Service{repo: repo, tiers: tiers, sentiment: sentiment}
}

// EnqueueRequest holds the parameters for proposing an action.
type EnqueueRequest struct {
	OwnerID string            `json:"owner_id"`
	Type    domain.ActionType `json:"action_type"`
	Payload json.RawMessage   `json:"payload"`
	// UndoWindowSeconds overrides the type-derived window when > 0.
	UndoWindowSeconds int `json:"undo_window_seconds,omitempty"`
	Priority          int `json:"priority,omitempty"`
	// Trigger defaults to manual. The evaluation pipeline sets policy or
	// vip together with PolicyID so the audit trail attributes correctly.
	Trigger  domain.TriggerType `json:"-"`
	PolicyID *uuid.UUID         `json:"-"`
	// TriggerData is the event snapshot the pipeline captured; it rides the
	// action row and lands in the execution record.
	TriggerData json.RawMessage `json:"-"`
}

// Enqueue validates and persists a new pending action. The payload is
// decoded into its typed form exactly once, here at the queue boundary.
// Rejects unknown action types, malformed payloads, and owners whose
// integration tier is below the type's minimum.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.Action, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, req.Type)
	}
	payload, err := domain.DecodePayload(req.Type, req.Payload)
	if err != nil {
		return nil, err
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	tier, err := s.tiers.OwnerTier(ctx, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("tier lookup: %w", err)
	}
	if err := capability.Check(tier, req.Type); err != nil {
		return nil, err
	}

	window := time.Duration(req.UndoWindowSeconds) * time.Second
	if window <= 0 {
		window = UndoWindow(req.Type, s.scoreFor(ctx, payload))
	}

	trigger := req.Trigger
	if trigger == "" {
		trigger = domain.TriggerManual
	}

	now := time.Now()
	action := &domain.Action{
		ID:           uuid.New(),
		OwnerID:      req.OwnerID,
		Type:         req.Type,
		Payload:      payload,
		Trigger:      trigger,
		PolicyID:     req.PolicyID,
		TriggerData:  req.TriggerData,
		Status:       domain.ActionPending,
		Priority:     req.Priority,
		UndoDeadline: now.Add(window),
		CreatedAt:    now,
	}
	if err := s.repo.Insert(ctx, action); err != nil {
		return nil, fmt.Errorf("persist action: %w", err)
	}
	return action, nil
}

// scoreFor asks the sentiment collaborator for an emotional-charge score on
// outgoing message payloads. Any failure degrades to "no signal".
func (s *Service) scoreFor(ctx context.Context, payload domain.Payload) *float64 {
	if s.sentiment == nil {
		return nil
	}
	var subject, body string
	switch p := payload.(type) {
	case domain.SendMessagePayload:
		subject, body = p.Subject, p.Body
	case domain.ReplyMessagePayload:
		body = p.Body
	case domain.ForwardMessagePayload:
		body = p.Comment
	default:
		return nil
	}
	score, err := s.sentiment.Score(ctx, subject, body)
	if err != nil {
		log.Printf("[Queue] sentiment signal unavailable: %v", err)
		return nil
	}
	return &score
}

// Cancel transitions a pending action to undone while its undo window is
// open. Past-deadline attempts fail with ErrWindowExpired (the action may
// already be mid-execution); attempts on terminal actions fail with
// ErrStateConflict carrying the actual state.
func (s *Service) Cancel(ctx context.Context, ownerID string, id uuid.UUID, reason string) error {
	rows, err := s.repo.CancelPending(ctx, ownerID, id, reason)
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	// Conditional update missed: figure out why.
	a, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if a.Status == domain.ActionPending {
		return fmt.Errorf("%w: deadline was %s", ErrWindowExpired, a.UndoDeadline.Format(time.RFC3339))
	}
	return fmt.Errorf("%w: status is %s", ErrStateConflict, a.Status)
}

// Expedite makes a pending action immediately eligible for claim by
// collapsing its undo deadline to now. Execution still happens on the
// scheduler's claim path, preserving at-most-once semantics.
func (s *Service) Expedite(ctx context.Context, ownerID string, id uuid.UUID) error {
	rows, err := s.repo.ExpeditePending(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	a, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: status is %s", ErrStateConflict, a.Status)
}

// Get returns one action scoped to its owner.
func (s *Service) Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.Action, error) {
	return s.repo.Get(ctx, ownerID, id)
}

// ListPending returns the owner's pending actions, optionally filtered by
// type.
func (s *Service) ListPending(ctx context.Context, ownerID string, typeFilter domain.ActionType) ([]domain.Action, error) {
	if typeFilter != "" && !typeFilter.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionType, typeFilter)
	}
	return s.repo.ListPending(ctx, ownerID, typeFilter)
}

// GetStats returns the owner's queue counts by status and type.
func (s *Service) GetStats(ctx context.Context, ownerID string) (*Stats, error) {
	return s.repo.GetStats(ctx, ownerID)
}
