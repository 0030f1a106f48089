package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// runRequest is the optional body of the manual run endpoints. An empty body
// reconciles the previous complete period.
type runRequest struct {
	Date  string `json:"date"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
}

func decodeRun(r *http.Request) (runRequest, error) {
	var req runRequest
	if r.ContentLength == 0 {
		return req, nil
	}
	return req, decode(r, &req)
}

func (h *handler) runDaily(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRun(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	date, err := optionalTime("date", req.Date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Reconciliation.RunDaily(r.Context(), date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, res)
}

func (h *handler) runWeekly(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRun(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	start, err := optionalTime("date", req.Date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Reconciliation.RunWeekly(r.Context(), start)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, res)
}

func (h *handler) runMonthly(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRun(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Reconciliation.RunMonthly(r.Context(), req.Year, time.Month(req.Month))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, res)
}

func (h *handler) listReports(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r.URL.Query(), "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	reports, err := h.Reconciliation.ListReports(r.Context(), models.Period(r.URL.Query().Get("period")), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, reports)
}

func (h *handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	acked, err := queryBool(q, "acknowledged")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := queryInt(q, "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	alerts, err := h.Reconciliation.ListAlerts(r.Context(), acked, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, alerts)
}

func (h *handler) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "alertID")
	if err := h.Reconciliation.AcknowledgeAlert(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Status: "success", Message: "alert acknowledged"})
}

func (h *handler) reconcileUser(w http.ResponseWriter, r *http.Request) {
	res, err := h.Reconciliation.ReconcileUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	success(w, res)
}
