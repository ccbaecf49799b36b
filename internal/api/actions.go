package api

import (
	"errors"
	"net/http"

	"github.com/stewardhq/steward/internal/capability"
	"github.com/stewardhq/steward/internal/domain"
	"github.com/stewardhq/steward/internal/pipeline"
	"github.com/stewardhq/steward/internal/pkg/httputil"
	"github.com/stewardhq/steward/internal/queue"
)

// HandleEvent runs one inbound mailbox/calendar event through the gate, the
// policy engine, and the queue.
func (h *Handlers) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type domain.PolicyType `json:"event_type"`
		Data map[string]any    `json:"data"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	out, err := h.events.HandleEvent(r.Context(), pipeline.Event{
		OwnerID: ownerID(r),
		Type:    body.Type,
		Data:    body.Data,
	})
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.OK(w, out)
}

// EnqueueAction proposes an action directly, bypassing policy evaluation.
// The trigger is recorded as manual.
func (h *Handlers) EnqueueAction(w http.ResponseWriter, r *http.Request) {
	var req queue.EnqueueRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	req.OwnerID = ownerID(r)
	req.Trigger = domain.TriggerManual
	req.PolicyID = nil

	action, err := h.queue.Enqueue(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, capability.ErrInsufficientTier):
			httputil.Error(w, http.StatusForbidden, err.Error())
		default:
			httputil.BadRequest(w, err.Error())
		}
		return
	}
	httputil.Created(w, action)
}

// ListPendingActions returns the owner's pending queue, optionally filtered
// with ?type=.
func (h *Handlers) ListPendingActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.queue.ListPending(r.Context(), ownerID(r),
		domain.ActionType(r.URL.Query().Get("type")))
	if err != nil {
		if errors.Is(err, queue.ErrUnknownActionType) {
			httputil.BadRequest(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"actions": actions, "count": len(actions)})
}

// ActionStats returns queue counts by status and type.
func (h *Handlers) ActionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.GetStats(r.Context(), ownerID(r))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// GetAction returns one action.
func (h *Handlers) GetAction(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	action, err := h.queue.Get(r.Context(), ownerID(r), id)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, action)
}

// CancelAction undoes a pending action while its window is open.
func (h *Handlers) CancelAction(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 && !httputil.Decode(w, r, &body) {
		return
	}
	err := h.queue.Cancel(r.Context(), ownerID(r), id, body.Reason)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrNotFound):
			httputil.NotFound(w, err.Error())
		case errors.Is(err, queue.ErrWindowExpired), errors.Is(err, queue.ErrStateConflict):
			httputil.Error(w, http.StatusConflict, err.Error())
		default:
			httputil.InternalError(w, err)
		}
		return
	}
	httputil.NoContent(w)
}

// ExpediteAction collapses a pending action's undo window so the next
// scheduler tick executes it.
func (h *Handlers) ExpediteAction(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	err := h.queue.Expedite(r.Context(), ownerID(r), id)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrNotFound):
			httputil.NotFound(w, err.Error())
		case errors.Is(err, queue.ErrStateConflict):
			httputil.Error(w, http.StatusConflict, err.Error())
		default:
			httputil.InternalError(w, err)
		}
		return
	}
	httputil.OK(w, map[string]string{"status": "expedited"})
}

// RetryAction re-runs a failed action inline and returns its final state.
func (h *Handlers) RetryAction(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "no scheduler on this instance")
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	action, err := h.scheduler.Retry(r.Context(), ownerID(r), id)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrNotFound):
			httputil.NotFound(w, err.Error())
		case errors.Is(err, queue.ErrStateConflict):
			httputil.Error(w, http.StatusConflict, err.Error())
		default:
			httputil.InternalError(w, err)
		}
		return
	}
	httputil.OK(w, action)
}
