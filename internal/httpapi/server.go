// Package httpapi is the operational HTTP surface: settings updates,
// conflict summaries, and manual evaluation triggers. It is not a UI.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pr-autopilot/internal/config"
	"pr-autopilot/internal/jira"
	"pr-autopilot/internal/lifecycle"
	"pr-autopilot/internal/monitor"
	"pr-autopilot/internal/storage"
	"pr-autopilot/pkg/models"
)

// Handlers serves the admin API over a Monitor.
type Handlers struct {
	mon  *monitor.Monitor
	jira *jira.Client
}

// NewHandlers creates the handler set.
func NewHandlers(mon *monitor.Monitor) *Handlers {
	return &Handlers{mon: mon}
}

// WithJira attaches a ticket client for the linked-tickets endpoint.
func (h *Handlers) WithJira(c *jira.Client) *Handlers {
	h.jira = c
	return h
}

// Router builds the chi router for the admin API.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.putSettings)
		r.Get("/conflicts/summary", h.getSummary)
		r.Get("/pullrequests", h.listPRs)
		r.Get("/pullrequests/{id}/tickets", h.listTickets)
		r.Post("/pullrequests/{id}/comments", h.addComment)
		r.Post("/pullrequests/{id}/comments/{commentID}/resolve", h.resolveComment)
		r.Post("/pullrequests/{id}/approve", h.approve)
		r.Post("/tick", h.tick)
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mon.Settings())
}

func (h *Handlers) putSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.AutomationSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	config.ClampAutomation(&settings)
	h.mon.Reconfigure(settings)
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handlers) getSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.mon.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handlers) listPRs(w http.ResponseWriter, r *http.Request) {
	prs, err := h.mon.PullRequests()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, prs)
}

func (h *Handlers) listTickets(w http.ResponseWriter, r *http.Request) {
	if h.jira == nil || !h.jira.Configured() {
		writeError(w, http.StatusServiceUnavailable, "jira is not configured")
		return
	}
	pr, err := h.mon.PullRequest(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "pull request not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.jira.GetTickets(r.Context(), pr.TicketKeys))
}

type addCommentRequest struct {
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
}

func (h *Handlers) addComment(w http.ResponseWriter, r *http.Request) {
	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	author := models.Developer{ID: req.AuthorID, Name: req.AuthorName}
	pr, err := h.mon.AddComment(r.Context(), chi.URLParam(r, "id"), author, req.Content)
	if err != nil {
		var invalid *lifecycle.InvalidTransitionError
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "pull request not found")
			return
		case errors.As(err, &invalid):
			// Comment stored; the status just did not move.
			writeJSON(w, http.StatusOK, pr)
			return
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, pr)
}

func (h *Handlers) resolveComment(w http.ResponseWriter, r *http.Request) {
	pr, err := h.mon.ResolveComment(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "commentID"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "pull request not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

func (h *Handlers) approve(w http.ResponseWriter, r *http.Request) {
	pr, err := h.mon.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		var invalid *lifecycle.InvalidTransitionError
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "pull request not found")
			return
		case errors.As(err, &invalid):
			writeError(w, http.StatusConflict, invalid.Error())
			return
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, pr)
}

func (h *Handlers) tick(w http.ResponseWriter, r *http.Request) {
	if err := h.mon.Tick(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
