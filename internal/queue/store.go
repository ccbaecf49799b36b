package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/domain"
)

// Store persists actions in the steward_actions table.
type Store struct {
	db *sql.DB
}

// NewStore creates an action store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const actionColumns = `id, owner_id, action_type, payload, trigger_type, policy_id,
	trigger_data, status, priority, undo_deadline, claimed_at, COALESCE(worker_id,''),
	COALESCE(error,''), executed_at, created_at`

func scanAction(row interface{ Scan(...any) error }) (*domain.Action, error) {
	var a domain.Action
	var payloadJSON, triggerData []byte
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Type, &payloadJSON, &a.Trigger,
		&a.PolicyID, &triggerData, &a.Status, &a.Priority, &a.UndoDeadline,
		&a.ClaimedAt, &a.WorkerID, &a.Error, &a.ExecutedAt, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.TriggerData = triggerData
	payload, err := domain.DecodePayload(a.Type, payloadJSON)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", a.ID, err)
	}
	a.Payload = payload
	return &a, nil
}

// Insert persists a new pending action.
func (s *Store) Insert(ctx context.Context, a *domain.Action) error {
	raw, err := domain.EncodePayload(a.Payload)
	if err != nil {
		return err
	}
	triggerData := a.TriggerData
	if len(triggerData) == 0 {
		triggerData = json.RawMessage("{}")
	}
	return s.db.QueryRowContext(ctx,
		`INSERT INTO steward_actions
		(id, owner_id, action_type, payload, trigger_type, policy_id, trigger_data, status, priority, undo_deadline)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		a.ID, a.OwnerID, a.Type, json.RawMessage(raw), a.Trigger, a.PolicyID,
		triggerData, a.Status, a.Priority, a.UndoDeadline,
	).Scan(&a.CreatedAt)
}

// Get returns a single action scoped to its owner.
func (s *Store) Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.Action, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+actionColumns+` FROM steward_actions WHERE id = $1 AND owner_id = $2`,
		id, ownerID)
	a, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

// CancelPending transitions pending -> undone, but only while the undo
// window is still open. Returns the number of rows updated; zero means the
// action was missing, already terminal, or past its deadline; the caller
// disambiguates with Get.
func (s *Store) CancelPending(ctx context.Context, ownerID string, id uuid.UUID, reason string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE steward_actions
		SET status = $1, error = $2
		WHERE id = $3 AND owner_id = $4 AND status = $5 AND undo_deadline > NOW()`,
		domain.ActionUndone, reason, id, ownerID, domain.ActionPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExpeditePending collapses a pending action's undo deadline to now, making
// it eligible for the next claim pass. It does not execute anything itself;
// execution stays on the single claim path.
func (s *Store) ExpeditePending(ctx context.Context, ownerID string, id uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE steward_actions
		SET undo_deadline = NOW()
		WHERE id = $1 AND owner_id = $2 AND status = $3`,
		id, ownerID, domain.ActionPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClaimDue atomically claims up to limit due pending actions for the given
// worker, oldest first. The CTE + FOR UPDATE SKIP LOCKED makes the
// pending -> executing transition a single conditional write, so concurrent
// workers never double-claim.
func (s *Store) ClaimDue(ctx context.Context, workerID string, limit int) ([]domain.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH due AS (
			SELECT id
			FROM steward_actions
			WHERE status = 'pending'
			  AND undo_deadline <= NOW()
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE steward_actions a
		SET status = 'executing',
		    claimed_at = NOW(),
		    worker_id = $2
		FROM due d
		WHERE a.id = d.id
		RETURNING a.id, a.owner_id, a.action_type, a.payload, a.trigger_type,
		          a.policy_id, a.trigger_data, a.status, a.priority, a.undo_deadline,
		          a.claimed_at, COALESCE(a.worker_id,''), COALESCE(a.error,''),
		          a.executed_at, a.created_at`,
		limit, workerID)
	if err != nil {
		return nil, fmt.Errorf("claim query: %w", err)
	}
	defer rows.Close()

	var actions []domain.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, *a)
	}
	return actions, rows.Err()
}

// ClaimByID claims one specific pending action regardless of its deadline.
// Used by the inline retry path. Returns nil (no error) if the claim lost.
func (s *Store) ClaimByID(ctx context.Context, workerID string, id uuid.UUID) (*domain.Action, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE steward_actions
		SET status = 'executing', claimed_at = NOW(), worker_id = $1
		WHERE id = $2 AND status = 'pending'
		RETURNING `+actionColumns,
		workerID, id)
	a, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// MarkExecuted finalizes a claimed action as executed.
func (s *Store) MarkExecuted(ctx context.Context, id uuid.UUID, executedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE steward_actions
		SET status = $1, executed_at = $2, error = ''
		WHERE id = $3 AND status = $4`,
		domain.ActionExecuted, executedAt, id, domain.ActionExecuting)
	return err
}

// MarkFailed finalizes a claimed action as failed, retaining the error.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE steward_actions
		SET status = $1, error = $2
		WHERE id = $3 AND status = $4`,
		domain.ActionFailed, detail, id, domain.ActionExecuting)
	return err
}

// ResetFailedForRetry transitions failed -> pending with an immediate
// deadline so the retry executes without waiting a tick. Returns rows
// updated; zero means the action isn't in failed state.
func (s *Store) ResetFailedForRetry(ctx context.Context, ownerID string, id uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE steward_actions
		SET status = $1, undo_deadline = NOW(), error = ''
		WHERE id = $2 AND owner_id = $3 AND status = $4`,
		domain.ActionPending, id, ownerID, domain.ActionFailed)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListPending returns the owner's pending actions, optionally filtered by
// type, soonest deadline first.
func (s *Store) ListPending(ctx context.Context, ownerID string, typeFilter domain.ActionType) ([]domain.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM steward_actions
		WHERE owner_id = $1 AND status = 'pending'`
	args := []any{ownerID}
	if typeFilter != "" {
		query += ` AND action_type = $2`
		args = append(args, typeFilter)
	}
	query += ` ORDER BY undo_deadline ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []domain.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, *a)
	}
	return actions, rows.Err()
}

// Stats aggregates the owner's actions by status and by type.
type Stats struct {
	ByStatus map[domain.ActionStatus]int `json:"by_status"`
	ByType   map[domain.ActionType]int   `json:"by_type"`
	Total    int                         `json:"total"`
}

// GetStats returns queue counts for one owner.
func (s *Store) GetStats(ctx context.Context, ownerID string) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, action_type, COUNT(*)
		FROM steward_actions WHERE owner_id = $1
		GROUP BY status, action_type`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &Stats{
		ByStatus: make(map[domain.ActionStatus]int),
		ByType:   make(map[domain.ActionType]int),
	}
	for rows.Next() {
		var status domain.ActionStatus
		var actionType domain.ActionType
		var n int
		if err := rows.Scan(&status, &actionType, &n); err != nil {
			return nil, err
		}
		stats.ByStatus[status] += n
		stats.ByType[actionType] += n
		stats.Total += n
	}
	return stats, rows.Err()
}

// RecoverStale requeues actions stuck in executing longer than the lease;
// a worker died between claim and outcome. Returns the number requeued.
func (s *Store) RecoverStale(ctx context.Context, lease time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE steward_actions
		SET status = 'pending', claimed_at = NULL, worker_id = NULL
		WHERE status = 'executing' AND claimed_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int(lease.Seconds())))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExpireOld marks pending actions older than maxAge as expired. This only
// fires when the scheduler has been down long enough that executing the
// backlog would do more harm than good.
func (s *Store) ExpireOld(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE steward_actions
		SET status = 'expired'
		WHERE status = 'pending' AND created_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int(maxAge.Seconds())))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
