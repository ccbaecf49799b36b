package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/domain"
)

// Store handles CRUD for the steward_policies table. Conditions and action
// templates are stored as JSONB columns and decoded into typed slices on
// every read.
type Store struct {
	db *sql.DB
}

// NewStore creates a policy store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const policyColumns = `id, owner_id, policy_type, name, COALESCE(description,''),
	conditions, actions, enabled, priority, max_executions_per_day,
	cooldown_minutes, created_at, updated_at`

func scanPolicy(row interface{ Scan(...any) error }) (*domain.Policy, error) {
	var p domain.Policy
	var condJSON, actJSON []byte
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Type, &p.Name, &p.Description,
		&condJSON, &actJSON, &p.Enabled, &p.Priority,
		&p.MaxExecutionsPerDay, &p.CooldownMinutes,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(condJSON, &p.Conditions); err != nil {
		return nil, fmt.Errorf("decode conditions for policy %s: %w", p.ID, err)
	}
	if err := json.Unmarshal(actJSON, &p.Actions); err != nil {
		return nil, fmt.Errorf("decode actions for policy %s: %w", p.ID, err)
	}
	return &p, nil
}

// Get returns a single policy by id, scoped to the owner.
func (s *Store) Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.Policy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM steward_policies WHERE id = $1 AND owner_id = $2`,
		id, ownerID)
	p, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// ListEnabled returns the owner's enabled policies for one event type,
// ordered by priority descending with creation time as tie-break.
func (s *Store) ListEnabled(ctx context.Context, ownerID string, t domain.PolicyType) ([]domain.Policy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+policyColumns+` FROM steward_policies
		WHERE owner_id = $1 AND policy_type = $2 AND enabled = true
		ORDER BY priority DESC, created_at ASC`,
		ownerID, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []domain.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *p)
	}
	return policies, rows.Err()
}

// List returns all of the owner's policies regardless of enabled state.
func (s *Store) List(ctx context.Context, ownerID string) ([]domain.Policy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+policyColumns+` FROM steward_policies
		WHERE owner_id = $1
		ORDER BY priority DESC, created_at ASC`,
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []domain.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *p)
	}
	return policies, rows.Err()
}

// Create validates and inserts a new policy.
func (s *Store) Create(ctx context.Context, p *domain.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	condJSON, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	actJSON, err := json.Marshal(p.Actions)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}
	return s.db.QueryRowContext(ctx,
		`INSERT INTO steward_policies
		(id, owner_id, policy_type, name, description, conditions, actions,
		 enabled, priority, max_executions_per_day, cooldown_minutes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		p.ID, p.OwnerID, p.Type, p.Name, p.Description, condJSON, actJSON,
		p.Enabled, p.Priority, p.MaxExecutionsPerDay, p.CooldownMinutes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// Update modifies an existing policy's mutable fields.
func (s *Store) Update(ctx context.Context, p *domain.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	condJSON, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	actJSON, err := json.Marshal(p.Actions)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE steward_policies SET
		policy_type=$1, name=$2, description=$3, conditions=$4, actions=$5,
		enabled=$6, priority=$7, max_executions_per_day=$8, cooldown_minutes=$9,
		updated_at=NOW()
		WHERE id = $10 AND owner_id = $11`,
		p.Type, p.Name, p.Description, condJSON, actJSON,
		p.Enabled, p.Priority, p.MaxExecutionsPerDay, p.CooldownMinutes,
		p.ID, p.OwnerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled toggles a policy without touching the rest of the definition.
// This is the only mutation the engine-facing surface supports.
func (s *Store) SetEnabled(ctx context.Context, ownerID string, id uuid.UUID, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE steward_policies SET enabled = $1, updated_at = NOW()
		WHERE id = $2 AND owner_id = $3`,
		enabled, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a policy.
func (s *Store) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM steward_policies WHERE id = $1 AND owner_id = $2`,
		id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
