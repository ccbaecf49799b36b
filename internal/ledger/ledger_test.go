package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/domain"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return NewStore(db), mock, func() { db.Close() }
}

func TestAppend(t *testing.T) {
	store, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO steward_execution_records").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	rec := &domain.ExecutionRecord{
		OwnerID:     "o1",
		TriggerType: domain.TriggerPolicy,
		Result:      domain.ResultSuccess,
		ActionsTaken: []domain.TakenAction{
			{ActionID: uuid.New(), Type: domain.ActionArchiveMessage},
		},
	}
	id, err := store.Append(context.Background(), rec)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if id == uuid.Nil {
		t.Error("Append should assign an id")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Append should set created_at")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMarkUndoneOnce(t *testing.T) {
	store, mock, cleanup := newMock(t)
	defer cleanup()

	id := uuid.New()
	mock.ExpectExec("UPDATE steward_execution_records").
		WithArgs(domain.ResultUndone, id, "o1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.MarkUndone(context.Background(), "o1", id); err != nil {
		t.Fatalf("MarkUndone: %v", err)
	}

	// Second flip matches no rows: undone_at is already set.
	mock.ExpectExec("UPDATE steward_execution_records").
		WithArgs(domain.ResultUndone, id, "o1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkUndone(context.Background(), "o1", id)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestQueryFilters(t *testing.T) {
	store, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("o1", domain.TriggerPolicy).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	cols := []string{"id", "owner_id", "policy_id", "trigger_type", "trigger_data",
		"actions_taken", "result", "error", "related_action_id", "undone_at", "created_at"}
	mock.ExpectQuery("SELECT .* FROM steward_execution_records").
		WithArgs("o1", domain.TriggerPolicy, 50, 0).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			uuid.New(), "o1", nil, "policy", []byte(`{}`),
			[]byte(`[{"action_id":"`+uuid.NewString()+`","action_type":"mark_read"}]`),
			"success", "", nil, nil, time.Now(),
		))

	records, total, err := store.Query(context.Background(), "o1",
		Filter{TriggerType: domain.TriggerPolicy})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 1 || len(records) != 1 {
		t.Fatalf("got %d records (total %d), want 1", len(records), total)
	}
	if len(records[0].ActionsTaken) != 1 || records[0].ActionsTaken[0].Type != domain.ActionMarkRead {
		t.Errorf("actions not decoded: %+v", records[0].ActionsTaken)
	}
}

func TestCountPolicySuccessesSince(t *testing.T) {
	store, mock, cleanup := newMock(t)
	defer cleanup()

	policyID := uuid.New()
	since := time.Now().Add(-time.Hour)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(policyID, domain.ResultSuccess, since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := store.CountPolicySuccessesSince(context.Background(), policyID, since)
	if err != nil {
		t.Fatalf("CountPolicySuccessesSince: %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
}

func TestLastPolicySuccessNever(t *testing.T) {
	store, mock, cleanup := newMock(t)
	defer cleanup()

	policyID := uuid.New()
	mock.ExpectQuery("SELECT created_at FROM steward_execution_records").
		WithArgs(policyID, domain.ResultSuccess).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

	last, err := store.LastPolicySuccess(context.Background(), policyID)
	if err != nil {
		t.Fatalf("LastPolicySuccess: %v", err)
	}
	if last != nil {
		t.Errorf("never-fired policy should return nil, got %v", last)
	}
}
