package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/stewardhq/steward/internal/domain"
	"github.com/stewardhq/steward/internal/guard"
	"github.com/stewardhq/steward/internal/pkg/httputil"
)

// PauseState returns the owner's current pause state and scheduled windows.
func (h *Handlers) PauseState(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)
	state, err := h.pause.State(r.Context(), owner)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	paused, err := h.pause.IsPaused(r.Context(), owner)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	windows, err := h.pause.ListWindows(r.Context(), owner)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"paused":  paused,
		"state":   state,
		"windows": windows,
	})
}

// Pause engages the emergency brake, indefinitely or for duration_minutes.
func (h *Handlers) Pause(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason          string `json:"reason"`
		DurationMinutes int    `json:"duration_minutes"`
	}
	if r.ContentLength > 0 && !httputil.Decode(w, r, &body) {
		return
	}
	var duration *time.Duration
	if body.DurationMinutes > 0 {
		d := time.Duration(body.DurationMinutes) * time.Minute
		duration = &d
	}
	if err := h.pause.Pause(r.Context(), ownerID(r), body.Reason, duration); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "paused"})
}

// Resume clears the pause state.
func (h *Handlers) Resume(w http.ResponseWriter, r *http.Request) {
	if err := h.pause.Resume(r.Context(), ownerID(r)); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "resumed"})
}

// ListPauseWindows returns the owner's scheduled pause windows.
func (h *Handlers) ListPauseWindows(w http.ResponseWriter, r *http.Request) {
	windows, err := h.pause.ListWindows(r.Context(), ownerID(r))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"windows": windows, "count": len(windows)})
}

// AddPauseWindow schedules a future pause interval.
func (h *Handlers) AddPauseWindow(w http.ResponseWriter, r *http.Request) {
	var win domain.PauseWindow
	if !httputil.Decode(w, r, &win) {
		return
	}
	win.OwnerID = ownerID(r)
	if err := h.pause.AddWindow(r.Context(), &win); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, win)
}

// DeletePauseWindow removes a scheduled pause window.
func (h *Handlers) DeletePauseWindow(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.pause.DeleteWindow(r.Context(), ownerID(r), id); err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.NoContent(w)
}

// ListVIPs returns the owner's VIP contacts.
func (h *Handlers) ListVIPs(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.vips.List(r.Context(), ownerID(r))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"vips": contacts, "count": len(contacts)})
}

// CreateVIP adds a VIP contact.
func (h *Handlers) CreateVIP(w http.ResponseWriter, r *http.Request) {
	var v domain.VIPContact
	if !httputil.Decode(w, r, &v) {
		return
	}
	v.OwnerID = ownerID(r)
	if err := h.vips.Create(r.Context(), &v); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, v)
}

// DeleteVIP removes a VIP contact.
func (h *Handlers) DeleteVIP(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.vips.Delete(r.Context(), ownerID(r), id); err != nil {
		if errors.Is(err, guard.ErrVIPNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

// GetTier returns the owner's integration tier.
func (h *Handlers) GetTier(w http.ResponseWriter, r *http.Request) {
	tier, err := h.tiers.OwnerTier(r.Context(), ownerID(r))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"tier": int(tier), "name": tier.String()})
}

// SetTier updates the owner's integration tier.
func (h *Handlers) SetTier(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tier int `json:"tier"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	tier := domain.Tier(body.Tier)
	if tier < domain.TierRead || tier > domain.TierFull {
		httputil.BadRequest(w, "tier must be 1 (read), 2 (standard), or 3 (full)")
		return
	}
	if err := h.tiers.SetOwnerTier(r.Context(), ownerID(r), tier); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"tier": int(tier), "name": tier.String()})
}
