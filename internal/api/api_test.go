package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/capability"
	"github.com/stewardhq/steward/internal/domain"
	"github.com/stewardhq/steward/internal/guard"
	"github.com/stewardhq/steward/internal/queue"
)

type memRepo struct {
	actions map[uuid.UUID]*domain.Action
}

func newMemRepo() *memRepo {
	return &memRepo{actions: map[uuid.UUID]*domain.Action{}}
}

func (r *memRepo) Insert(_ context.Context, a *domain.Action) error {
	r.actions[a.ID] = a
	return nil
}

func (r *memRepo) Get(_ context.Context, _ string, id uuid.UUID) (*domain.Action, error) {
	a, ok := r.actions[id]
	if !ok {
		return nil, queue.ErrNotFound
	}
	return a, nil
}

func (r *memRepo) CancelPending(_ context.Context, _ string, id uuid.UUID, _ string) (int64, error) {
	a, ok := r.actions[id]
	if !ok || a.Status != domain.ActionPending || !time.Now().Before(a.UndoDeadline) {
		return 0, nil
	}
	a.Status = domain.ActionUndone
	return 1, nil
}

func (r *memRepo) ExpeditePending(_ context.Context, _ string, id uuid.UUID) (int64, error) {
	a, ok := r.actions[id]
	if !ok || a.Status != domain.ActionPending {
		return 0, nil
	}
	a.UndoDeadline = time.Now()
	return 1, nil
}

func (r *memRepo) ListPending(_ context.Context, _ string, _ domain.ActionType) ([]domain.Action, error) {
	var out []domain.Action
	for _, a := range r.actions {
		if a.Status == domain.ActionPending {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memRepo) GetStats(context.Context, string) (*queue.Stats, error) {
	return &queue.Stats{}, nil
}

type stubTiers struct{ tier domain.Tier }

func (s stubTiers) OwnerTier(context.Context, string) (domain.Tier, error) { return s.tier, nil }

// newTestServer stands up the full router with an in-memory queue and
// sqlmock-backed guard/tier stores. The scheduler is nil, as on an
// API-only instance.
func newTestServer(t *testing.T, tier domain.Tier) (*httptest.Server, *memRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := newMemRepo()
	h := NewHandlers(
		queue.NewService(repo, stubTiers{tier}, nil),
		nil, // policy store: not exercised here
		nil, // pipeline: covered by its own tests
		nil, // scheduler
		guard.NewPauseService(db),
		guard.NewVIPStore(db, nil),
		nil, // ledger store: not exercised here
		capability.NewStore(db),
	)
	srv := httptest.NewServer(SetupRoutes(h))
	t.Cleanup(srv.Close)
	return srv, repo, mock
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func TestHealthCheck(t *testing.T) {
	srv, _, _ := newTestServer(t, domain.TierFull)

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["scheduler_running"]; ok {
		t.Error("API-only instance must not report scheduler state")
	}
}

func TestEnqueueAction(t *testing.T) {
	srv, repo, _ := newTestServer(t, domain.TierFull)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/owners/o1/actions/", map[string]any{
		"action_type": "archive_message",
		"payload":     map[string]any{"message_id": "m1"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var action struct {
		ID      uuid.UUID          `json:"id"`
		Trigger domain.TriggerType `json:"trigger_type"`
		Status  domain.ActionStatus `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&action); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if action.Trigger != domain.TriggerManual {
		t.Errorf("trigger = %s, want manual", action.Trigger)
	}
	if action.Status != domain.ActionPending {
		t.Errorf("status = %s, want pending", action.Status)
	}
	if _, ok := repo.actions[action.ID]; !ok {
		t.Error("action not persisted")
	}
}

func TestEnqueueActionInsufficientTier(t *testing.T) {
	srv, _, _ := newTestServer(t, domain.TierStandard)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/owners/o1/actions/", map[string]any{
		"action_type": "send_message",
		"payload":     map[string]any{"to": []string{"a@example.com"}, "subject": "s", "body": "b"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestEnqueueActionUnknownType(t *testing.T) {
	srv, _, _ := newTestServer(t, domain.TierFull)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/owners/o1/actions/", map[string]any{
		"action_type": "teleport",
		"payload":     map[string]any{},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCancelAction(t *testing.T) {
	srv, repo, _ := newTestServer(t, domain.TierFull)

	a := &domain.Action{
		ID:           uuid.New(),
		OwnerID:      "o1",
		Type:         domain.ActionArchiveMessage,
		Status:       domain.ActionPending,
		UndoDeadline: time.Now().Add(time.Minute),
	}
	repo.actions[a.ID] = a

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/owners/o1/actions/"+a.ID.String()+"/cancel", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if a.Status != domain.ActionUndone {
		t.Errorf("status = %s, want undone", a.Status)
	}

	// A second cancel hits a terminal state.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/owners/o1/actions/"+a.ID.String()+"/cancel", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("repeat status = %d, want 409", resp.StatusCode)
	}
}

func TestCancelActionExpiredWindow(t *testing.T) {
	srv, repo, _ := newTestServer(t, domain.TierFull)

	a := &domain.Action{
		ID:           uuid.New(),
		OwnerID:      "o1",
		Type:         domain.ActionArchiveMessage,
		Status:       domain.ActionPending,
		UndoDeadline: time.Now().Add(-time.Second),
	}
	repo.actions[a.ID] = a

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/owners/o1/actions/"+a.ID.String()+"/cancel", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestCancelActionNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t, domain.TierFull)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/owners/o1/actions/"+uuid.NewString()+"/cancel", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetActionBadID(t *testing.T) {
	srv, _, _ := newTestServer(t, domain.TierFull)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/owners/o1/actions/not-a-uuid", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestExpediteAction(t *testing.T) {
	srv, repo, _ := newTestServer(t, domain.TierFull)

	a := &domain.Action{
		ID:           uuid.New(),
		OwnerID:      "o1",
		Type:         domain.ActionSendMessage,
		Status:       domain.ActionPending,
		UndoDeadline: time.Now().Add(time.Minute),
	}
	repo.actions[a.ID] = a

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/owners/o1/actions/"+a.ID.String()+"/expedite", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if a.UndoDeadline.After(time.Now()) {
		t.Error("deadline should have collapsed to now")
	}
}

func TestRetryWithoutScheduler(t *testing.T) {
	srv, _, _ := newTestServer(t, domain.TierFull)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/owners/o1/actions/"+uuid.NewString()+"/retry", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestSetTierValidation(t *testing.T) {
	srv, _, mock := newTestServer(t, domain.TierFull)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/owners/o1/tier", map[string]int{"tier": 9})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	mock.ExpectExec("INSERT INTO steward_owner_tiers").
		WithArgs("o1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/owners/o1/tier", map[string]int{"tier": 2})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestPauseAndResume(t *testing.T) {
	srv, _, mock := newTestServer(t, domain.TierFull)

	mock.ExpectExec("INSERT INTO steward_pause_state").
		WillReturnResult(sqlmock.NewResult(0, 1))
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/owners/o1/pause/", map[string]any{
		"reason": "vacation", "duration_minutes": 60,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pause status = %d", resp.StatusCode)
	}

	mock.ExpectExec("INSERT INTO steward_pause_state").
		WillReturnResult(sqlmock.NewResult(0, 1))
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/owners/o1/pause/", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resume status = %d", resp.StatusCode)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDeleteVIPNotFound(t *testing.T) {
	srv, _, mock := newTestServer(t, domain.TierFull)

	id := uuid.New()
	mock.ExpectExec("DELETE FROM steward_vip_contacts").
		WithArgs(id, "o1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/owners/o1/vips/"+id.String(), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
