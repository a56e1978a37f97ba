package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"abode/internal/httpkit"
	"abode/internal/pkg/errors"
	"abode/internal/render"
)

// SubmitRender accepts a render job submission and returns its queue slot.
func (h *Handler) SubmitRender(w http.ResponseWriter, r *http.Request) {
	caller, ok := render.IdentityFrom(r.Context())
	if !ok {
		httpkit.WriteError(w, errors.Unauthorized("Unauthorized"))
		return
	}

	var req render.SubmitRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteError(w, errors.Validation("invalid json body"))
		return
	}

	res, err := h.svc.Submit(r.Context(), caller, req)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{
		"success":                 true,
		"jobId":                   res.JobID,
		"status":                  res.Status,
		"position":                res.Position,
		"estimatedStartTime":      res.EstimatedStart,
		"estimatedCompletionTime": res.EstimatedCompletion,
		"creditsCost":             res.CreditsCost,
	})
}

// ListRender returns the caller's jobs with pagination and stats.
func (h *Handler) ListRender(w http.ResponseWriter, r *http.Request) {
	caller, ok := render.IdentityFrom(r.Context())
	if !ok {
		httpkit.WriteError(w, errors.Unauthorized("Unauthorized"))
		return
	}

	q := r.URL.Query()
	params := render.ListParams{
		Filter: render.JobFilter{
			Statuses:   statusList(q.Get("status")),
			Priorities: priorityList(q.Get("priority")),
			Types:      typeList(q.Get("type")),
			ProjectID:  strings.TrimSpace(q.Get("projectId")),
		},
		Limit:  intParam(q.Get("limit")),
		Offset: intParam(q.Get("offset")),
	}

	res, err := h.svc.List(r.Context(), caller, params)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusOK, res)
}

// GetRender returns one job with its live placement.
func (h *Handler) GetRender(w http.ResponseWriter, r *http.Request) {
	caller, ok := render.IdentityFrom(r.Context())
	if !ok {
		httpkit.WriteError(w, errors.Unauthorized("Unauthorized"))
		return
	}

	job, placement, err := h.svc.Get(r.Context(), caller, chi.URLParam(r, "jobId"))
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	body := map[string]any{"job": job}
	if job.Status == render.StatusQueued || job.Status == render.StatusProcessing {
		body["queue"] = placement
	}
	httpkit.WriteJSON(w, http.StatusOK, body)
}

// CancelRender aborts a non-terminal job and refunds its credits.
func (h *Handler) CancelRender(w http.ResponseWriter, r *http.Request) {
	caller, ok := render.IdentityFrom(r.Context())
	if !ok {
		httpkit.WriteError(w, errors.Unauthorized("Unauthorized"))
		return
	}

	job, err := h.svc.Cancel(r.Context(), caller, chi.URLParam(r, "jobId"))
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"jobId":           job.ID,
		"status":          job.Status,
		"creditsRefunded": job.CreditsCost,
	})
}

// Farm callbacks. The render farm reports lifecycle transitions here after
// claiming job ids from the dispatch queue.

func (h *Handler) FarmStart(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Start(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (h *Handler) FarmProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Progress int `json:"progress"`
	}
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteError(w, errors.Validation("invalid json body"))
		return
	}

	job, err := h.svc.Progress(r.Context(), chi.URLParam(r, "jobId"), req.Progress)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (h *Handler) FarmComplete(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Complete(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (h *Handler) FarmFail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	// An empty or malformed body is a failure with no reason given.
	_ = httpkit.DecodeJSON(r, &req)

	job, err := h.svc.Fail(r.Context(), chi.URLParam(r, "jobId"), req.Reason)
	if err != nil {
		httpkit.WriteError(w, err)
		return
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"job": job})
}

func statusList(raw string) []render.Status {
	var out []render.Status
	for _, v := range splitCSV(raw) {
		out = append(out, render.Status(v))
	}
	return out
}

func priorityList(raw string) []render.Priority {
	var out []render.Priority
	for _, v := range splitCSV(raw) {
		out = append(out, render.Priority(v))
	}
	return out
}

func typeList(raw string) []render.JobType {
	var out []render.JobType
	for _, v := range splitCSV(raw) {
		out = append(out, render.JobType(v))
	}
	return out
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intParam(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return v
}
