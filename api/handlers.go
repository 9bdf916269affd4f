package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// StatsResponse combines queue and deletion counts.
type StatsResponse struct {
	Submissions submission.Statistics `json:"submissions"`
	Deletions   deletion.Statistics   `json:"deletions"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP status codes. Unexpected errors
// are logged and reported without detail.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, timesheet.ErrItemNotFound), errors.Is(err, timesheet.ErrDeletionNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, timesheet.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		a.logger.Error("api request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.Store().Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	a.writeStats(w, r, "")
}

func (a *API) employeeStats(w http.ResponseWriter, r *http.Request) {
	a.writeStats(w, r, chi.URLParam(r, "employeeID"))
}

func (a *API) writeStats(w http.ResponseWriter, r *http.Request, employeeID string) {
	ctx := r.Context()
	subs, err := a.eng.Queue().GetStatistics(ctx, employeeID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	dels, err := a.eng.Deletions().GetStatistics(ctx, employeeID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Submissions: subs, Deletions: dels})
}

func (a *API) employeeQueue(w http.ResponseWriter, r *http.Request) {
	items, err := a.eng.Queue().GetEmployeeQueue(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*submission.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) employeeDeletions(w http.ResponseWriter, r *http.Request) {
	reqs, err := a.eng.Deletions().ListEmployeeRequests(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []*deletion.Request{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (a *API) pendingDeletion(w http.ResponseWriter, r *http.Request) {
	req, err := a.eng.Deletions().GetPendingRequest(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (a *API) getDeletion(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseDeletionID(chi.URLParam(r, "requestID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	req, err := a.eng.Deletions().GetRequest(r.Context(), requestID, chi.URLParam(r, "employeeID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
