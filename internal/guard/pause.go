package guard

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/domain"
)

// PauseService owns the per-owner emergency pause state and the list of
// pre-scheduled pause windows.
type PauseService struct {
	db *sql.DB
}

// NewPauseService creates a pause service.
func NewPauseService(db *sql.DB) *PauseService {
	return &PauseService{db: db}
}

// Pause engages the emergency brake. A nil duration pauses indefinitely
// until an explicit Resume; otherwise the pause lapses on its own.
func (s *PauseService) Pause(ctx context.Context, ownerID, reason string, duration *time.Duration) error {
	var until *time.Time
	if duration != nil {
		t := time.Now().Add(*duration)
		until = &t
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO steward_pause_state (owner_id, is_paused, paused_until, reason, updated_at)
		VALUES ($1, true, $2, $3, NOW())
		ON CONFLICT (owner_id) DO UPDATE
		SET is_paused = true, paused_until = $2, reason = $3, updated_at = NOW()`,
		ownerID, until, reason)
	return err
}

// Resume clears the pause state unconditionally.
func (s *PauseService) Resume(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO steward_pause_state (owner_id, is_paused, paused_until, reason, updated_at)
		VALUES ($1, false, NULL, '', NOW())
		ON CONFLICT (owner_id) DO UPDATE
		SET is_paused = false, paused_until = NULL, reason = '', updated_at = NOW()`,
		ownerID)
	return err
}

// IsPaused is the fast check run before every policy evaluation. A timed
// pause that has elapsed auto-resumes here and reports false. Scheduled
// windows count as paused while now falls inside one.
func (s *PauseService) IsPaused(ctx context.Context, ownerID string) (bool, error) {
	state, err := s.State(ctx, ownerID)
	if err != nil {
		return false, err
	}
	now := time.Now()

	if state.IsPaused {
		if state.PausedUntil == nil || now.Before(*state.PausedUntil) {
			return true, nil
		}
		// Timed pause elapsed: auto-resume. Best effort; a failed write
		// just means the next check resumes again.
		if err := s.Resume(ctx, ownerID); err != nil {
			return false, fmt.Errorf("auto-resume: %w", err)
		}
	}

	var active bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM steward_pause_windows
			WHERE owner_id = $1 AND starts_at <= $2 AND ends_at > $2
		)`, ownerID, now).Scan(&active)
	if err != nil {
		return false, err
	}
	return active, nil
}

// State returns the owner's raw pause state. Owners without a row are
// treated as never paused.
func (s *PauseService) State(ctx context.Context, ownerID string) (*domain.PauseState, error) {
	state := &domain.PauseState{OwnerID: ownerID}
	err := s.db.QueryRowContext(ctx,
		`SELECT is_paused, paused_until, COALESCE(reason,''), updated_at
		FROM steward_pause_state WHERE owner_id = $1`, ownerID,
	).Scan(&state.IsPaused, &state.PausedUntil, &state.Reason, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// AddWindow schedules a future pause interval.
func (s *PauseService) AddWindow(ctx context.Context, w *domain.PauseWindow) error {
	if !w.EndsAt.After(w.StartsAt) {
		return fmt.Errorf("pause window: ends_at must be after starts_at")
	}
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return s.db.QueryRowContext(ctx,
		`INSERT INTO steward_pause_windows (id, owner_id, starts_at, ends_at, reason)
		VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		w.ID, w.OwnerID, w.StartsAt, w.EndsAt, w.Reason).Scan(&w.CreatedAt)
}

// ListWindows returns the owner's scheduled pause windows, soonest first.
func (s *PauseService) ListWindows(ctx context.Context, ownerID string) ([]domain.PauseWindow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, starts_at, ends_at, COALESCE(reason,''), created_at
		FROM steward_pause_windows WHERE owner_id = $1 ORDER BY starts_at`,
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []domain.PauseWindow
	for rows.Next() {
		var w domain.PauseWindow
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.StartsAt, &w.EndsAt, &w.Reason, &w.CreatedAt); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// DeleteWindow removes a scheduled pause window.
func (s *PauseService) DeleteWindow(ctx context.Context, ownerID string, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM steward_pause_windows WHERE id = $1 AND owner_id = $2`,
		id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("pause window not found")
	}
	return nil
}
