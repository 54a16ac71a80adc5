package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/GoCodeAlone/followup/jira"
	"github.com/GoCodeAlone/followup/pipeline"
	"github.com/GoCodeAlone/followup/task"
)

// handleRun executes one pipeline run and returns the full result,
// including any per-stage errors.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}

	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.User == "" {
		if subject, ok := r.Context().Value(ctxKeySubject).(string); ok {
			req.User = subject
		}
	}

	result, err := s.orchestrator.Run(r.Context(), req)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleTasks lists stored tasks, filtered by query parameters.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "task store not configured")
		return
	}

	q := r.URL.Query()
	filter := task.Filter{
		MeetingID: q.Get("meeting_id"),
		Owner:     q.Get("owner"),
	}
	if raw := q.Get("status"); raw != "" {
		status := task.Status(raw)
		if status != task.StatusOpen && status != task.StatusDone {
			writeJSONError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = &status
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	tasks, err := s.tasks.List(filter)
	if err != nil {
		s.logger.Error("list tasks", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, "could not list tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

// handleSummary returns the stored summary record for one meeting.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "record store not configured")
		return
	}

	record, err := s.records.Load(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSONError(w, http.StatusNotFound, "summary not found")
			return
		}
		s.logger.Error("load summary", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, "could not load summary")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleDueIssues queries the tracker for issues due within the given
// window, letting callers reconcile tracker state against the local
// task list.
func (s *Server) handleDueIssues(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "tracker not configured")
		return
	}

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = n
	}

	issues, err := s.tracker.SearchDue(r.Context(), s.project, days)
	if err != nil {
		if errors.Is(err, jira.ErrNotConfigured) {
			writeJSONError(w, http.StatusServiceUnavailable, "tracker not configured")
			return
		}
		s.logger.Error("search due issues", slog.Any("err", err))
		writeJSONError(w, http.StatusBadGateway, "tracker query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues, "count": len(issues)})
}

// handleAgents lists registered pipeline agents.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	if s.agents == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "registry not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.agents.Discover()})
}

// handleStatus reports server health and version.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
	})
}
