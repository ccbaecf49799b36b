package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/stewardhq/steward/internal/domain"
	"github.com/stewardhq/steward/internal/ledger"
	"github.com/stewardhq/steward/internal/pkg/httputil"
)

// ledgerFilter builds a ledger filter from query parameters: trigger,
// result, from, to (RFC3339), limit, offset.
func ledgerFilter(r *http.Request) (ledger.Filter, error) {
	q := r.URL.Query()
	f := ledger.Filter{
		TriggerType: domain.TriggerType(q.Get("trigger")),
		Result:      domain.ExecutionResult(q.Get("result")),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, err
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, err
		}
		f.To = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, err
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, err
		}
		f.Offset = n
	}
	return f, nil
}

// QueryLedger returns the owner's execution records, filtered and paged.
func (h *Handlers) QueryLedger(w http.ResponseWriter, r *http.Request) {
	f, err := ledgerFilter(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	records, total, err := h.ledger.Query(r.Context(), ownerID(r), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"records": records, "total": total})
}

// LedgerSummary aggregates activity into ?period= day/week/month buckets
// going back ?days= (default 30).
func (h *Handlers) LedgerSummary(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "day"
	}
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "days must be a positive integer")
			return
		}
		days = n
	}
	since := time.Now().AddDate(0, 0, -days)
	summaries, err := h.ledger.Summarize(r.Context(), ownerID(r), period, since)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.OK(w, map[string]any{"period": period, "since": since, "summaries": summaries})
}

// ExportLedger streams the filtered records as CSV.
func (h *Handlers) ExportLedger(w http.ResponseWriter, r *http.Request) {
	f, err := ledgerFilter(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.csv"`)
	if err := h.ledger.ExportCSV(r.Context(), w, ownerID(r), f); err != nil {
		// Headers are out; all we can do is log via the envelope helper.
		httputil.InternalError(w, err)
	}
}

// MarkRecordUndone flips an executed record's result to undone after a
// human reversed it out of band.
func (h *Handlers) MarkRecordUndone(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.ledger.MarkUndone(r.Context(), ownerID(r), id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"result": string(domain.ResultUndone)})
}
