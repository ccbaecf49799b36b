// Package ledger implements the append-only audit trail. Every action the
// assistant takes, via the queue or directly on the VIP path, lands here
// as an ExecutionRecord. Records are never updated after insert, with one
// exception: flipping result to undone when a human reverses an
// already-executed action.
//
// The ledger doubles as the execution history the policy engine's
// constraint checker reads (daily counts, most recent success).
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/domain"
)

// ErrNotFound means no record with that id belongs to the owner.
var ErrNotFound = errors.New("execution record not found")

// Store persists execution records in steward_execution_records.
type Store struct {
	db *sql.DB
}

// NewStore creates a ledger store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const recordColumns = `id, owner_id, policy_id, trigger_type, trigger_data,
	actions_taken, result, COALESCE(error,''), related_action_id, undone_at, created_at`

func scanRecord(row interface{ Scan(...any) error }) (*domain.ExecutionRecord, error) {
	var r domain.ExecutionRecord
	var triggerData, actionsJSON []byte
	if err := row.Scan(&r.ID, &r.OwnerID, &r.PolicyID, &r.TriggerType,
		&triggerData, &actionsJSON, &r.Result, &r.Error,
		&r.RelatedActionID, &r.UndoneAt, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.TriggerData = triggerData
	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &r.ActionsTaken); err != nil {
			return nil, fmt.Errorf("decode actions for record %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

// Append inserts a new execution record and returns its id.
func (s *Store) Append(ctx context.Context, r *domain.ExecutionRecord) (uuid.UUID, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if len(r.TriggerData) == 0 {
		r.TriggerData = json.RawMessage("{}")
	}
	actionsJSON, err := json.Marshal(r.ActionsTaken)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode actions taken: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO steward_execution_records
		(id, owner_id, policy_id, trigger_type, trigger_data, actions_taken,
		 result, error, related_action_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		r.ID, r.OwnerID, r.PolicyID, r.TriggerType, r.TriggerData, actionsJSON,
		r.Result, r.Error, r.RelatedActionID,
	).Scan(&r.CreatedAt)
	if err != nil {
		return uuid.Nil, err
	}
	return r.ID, nil
}

// MarkUndone flips a record's result to undone. This is the single field
// update the append-only model allows, recorded with its own timestamp.
func (s *Store) MarkUndone(ctx context.Context, ownerID string, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE steward_execution_records
		SET result = $1, undone_at = NOW()
		WHERE id = $2 AND owner_id = $3 AND undone_at IS NULL`,
		domain.ResultUndone, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Filter narrows ledger queries. Zero values mean "no constraint".
type Filter struct {
	TriggerType domain.TriggerType
	Result      domain.ExecutionResult
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// Query returns matching records newest-first plus the unpaginated total.
func (s *Store) Query(ctx context.Context, ownerID string, f Filter) ([]domain.ExecutionRecord, int, error) {
	where := `WHERE owner_id = $1`
	args := []any{ownerID}
	argN := 2

	if f.TriggerType != "" {
		where += fmt.Sprintf(" AND trigger_type = $%d", argN)
		args = append(args, f.TriggerType)
		argN++
	}
	if f.Result != "" {
		where += fmt.Sprintf(" AND result = $%d", argN)
		args = append(args, f.Result)
		argN++
	}
	if !f.From.IsZero() {
		where += fmt.Sprintf(" AND created_at >= $%d", argN)
		args = append(args, f.From)
		argN++
	}
	if !f.To.IsZero() {
		where += fmt.Sprintf(" AND created_at < $%d", argN)
		args = append(args, f.To)
		argN++
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM steward_execution_records `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM steward_execution_records %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		recordColumns, where, argN, argN+1)
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []domain.ExecutionRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *r)
	}
	return records, total, rows.Err()
}

// Summarize aggregates activity into day/week/month buckets since the given
// time, for digests.
func (s *Store) Summarize(ctx context.Context, ownerID, period string, since time.Time) ([]domain.PeriodSummary, error) {
	switch period {
	case "day", "week", "month":
	default:
		return nil, fmt.Errorf("unknown summary period %q", period)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date_trunc($1, created_at) AS bucket, trigger_type, result, COUNT(*)
		FROM steward_execution_records
		WHERE owner_id = $2 AND created_at >= $3
		GROUP BY bucket, trigger_type, result
		ORDER BY bucket`,
		period, ownerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.PeriodSummary
	index := map[time.Time]int{}
	for rows.Next() {
		var bucket time.Time
		var trigger domain.TriggerType
		var result domain.ExecutionResult
		var n int
		if err := rows.Scan(&bucket, &trigger, &result, &n); err != nil {
			return nil, err
		}
		i, ok := index[bucket]
		if !ok {
			summaries = append(summaries, domain.PeriodSummary{
				PeriodStart: bucket,
				ByResult:    make(map[domain.ExecutionResult]int),
				ByTrigger:   make(map[domain.TriggerType]int),
			})
			i = len(summaries) - 1
			index[bucket] = i
		}
		summaries[i].Total += n
		summaries[i].ByResult[result] += n
		summaries[i].ByTrigger[trigger] += n
	}
	return summaries, rows.Err()
}

// CountPolicySuccessesSince counts successful firings of one policy at or
// after the given time. Part of the policy engine's ExecutionHistory.
func (s *Store) CountPolicySuccessesSince(ctx context.Context, policyID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM steward_execution_records
		WHERE policy_id = $1 AND result = $2 AND created_at >= $3`,
		policyID, domain.ResultSuccess, since).Scan(&n)
	return n, err
}

// LastPolicySuccess returns when the policy last fired successfully, or nil.
func (s *Store) LastPolicySuccess(ctx context.Context, policyID uuid.UUID) (*time.Time, error) {
	var last time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM steward_execution_records
		WHERE policy_id = $1 AND result = $2
		ORDER BY created_at DESC LIMIT 1`,
		policyID, domain.ResultSuccess).Scan(&last)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &last, nil
}
