package api

import (
	"errors"
	"net/http"

	"github.com/stewardhq/steward/internal/domain"
	"github.com/stewardhq/steward/internal/pkg/httputil"
	"github.com/stewardhq/steward/internal/policy"
)

// ListPolicies returns all of the owner's policies.
func (h *Handlers) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policies.List(r.Context(), ownerID(r))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"policies": policies, "count": len(policies)})
}

// GetPolicy returns one policy.
func (h *Handlers) GetPolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := h.policies.Get(r.Context(), ownerID(r), id)
	if err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, p)
}

// CreatePolicy validates and stores a new policy.
func (h *Handlers) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var p domain.Policy
	if !httputil.Decode(w, r, &p) {
		return
	}
	p.OwnerID = ownerID(r)
	if err := p.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := h.policies.Create(r.Context(), &p); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, p)
}

// UpdatePolicy replaces a policy's definition.
func (h *Handlers) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p domain.Policy
	if !httputil.Decode(w, r, &p) {
		return
	}
	p.ID = id
	p.OwnerID = ownerID(r)
	if err := p.Validate(); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := h.policies.Update(r.Context(), &p); err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, p)
}

// DeletePolicy removes a policy.
func (h *Handlers) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.policies.Delete(r.Context(), ownerID(r), id); err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

// EnablePolicy turns a policy on.
func (h *Handlers) EnablePolicy(w http.ResponseWriter, r *http.Request) {
	h.setPolicyEnabled(w, r, true)
}

// DisablePolicy turns a policy off.
func (h *Handlers) DisablePolicy(w http.ResponseWriter, r *http.Request) {
	h.setPolicyEnabled(w, r, false)
}

func (h *Handlers) setPolicyEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.policies.SetEnabled(r.Context(), ownerID(r), id, enabled); err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"enabled": enabled})
}
