package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/capability"
	"github.com/stewardhq/steward/internal/executor"
	"github.com/stewardhq/steward/internal/guard"
	"github.com/stewardhq/steward/internal/ledger"
	"github.com/stewardhq/steward/internal/pipeline"
	"github.com/stewardhq/steward/internal/pkg/httputil"
	"github.com/stewardhq/steward/internal/policy"
	"github.com/stewardhq/steward/internal/queue"
)

// Handlers carries the services the HTTP layer fronts.
type Handlers struct {
	queue     *queue.Service
	policies  *policy.Store
	events    *pipeline.Pipeline
	scheduler *executor.Scheduler // nil on API-only instances
	pause     *guard.PauseService
	vips      *guard.VIPStore
	ledger    *ledger.Store
	tiers     *capability.Store
}

// NewHandlers wires the handler set. scheduler may be nil when this
// instance only serves the API and a separate worker executes.
func NewHandlers(
	queueSvc *queue.Service,
	policies *policy.Store,
	events *pipeline.Pipeline,
	scheduler *executor.Scheduler,
	pause *guard.PauseService,
	vips *guard.VIPStore,
	ledgerStore *ledger.Store,
	tiers *capability.Store,
) *Handlers {
	return &Handlers{
		queue:     queueSvc,
		policies:  policies,
		events:    events,
		scheduler: scheduler,
		pause:     pause,
		vips:      vips,
		ledger:    ledgerStore,
		tiers:     tiers,
	}
}

// HealthCheck reports process liveness and, when this instance runs the
// scheduler, its loop state and counters.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.scheduler != nil {
		resp["scheduler_running"] = h.scheduler.Running()
		resp["scheduler"] = h.scheduler.Stats()
	}
	httputil.OK(w, resp)
}

func ownerID(r *http.Request) string {
	return chi.URLParam(r, "ownerID")
}

// idParam parses the {id} route parameter. Writes a 400 and returns false
// on garbage.
func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "invalid id: "+err.Error())
		return uuid.Nil, false
	}
	return id, true
}
