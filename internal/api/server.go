// Package api is the HTTP and websocket transport for the monitor.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/flitsinc/taskplex-monitor/internal/interventions"
	"github.com/flitsinc/taskplex-monitor/internal/monitor"
	"github.com/flitsinc/taskplex-monitor/internal/schema"
	"github.com/flitsinc/taskplex-monitor/internal/state"
)

// maxBodyBytes bounds request documents.
const maxBodyBytes = 1 << 20

type Server struct {
	Monitor *monitor.Service
	Logger  *slog.Logger
	// Static, when set, serves every path no API route claims.
	Static http.Handler
	Info   DiagnosticsInfo
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Handler returns the routed API wrapped in request id, tracing, logging and
// CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/diagnostics", s.handleDiagnostics)

	mux.HandleFunc("POST /api/events", s.handlePostEvent)
	mux.HandleFunc("GET /api/events", s.handleGetEvents)

	mux.HandleFunc("POST /api/runs", s.handlePostRun)
	mux.HandleFunc("GET /api/runs", s.handleGetRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("PATCH /api/runs/{id}", s.handlePatchRun)

	mux.HandleFunc("GET /api/analytics/timeline/{run}", s.handleTimeline)
	mux.HandleFunc("GET /api/analytics/errors", s.handleErrors)
	mux.HandleFunc("GET /api/analytics/tools", s.handleTools)
	mux.HandleFunc("GET /api/analytics/summary/{run}", s.handleSummary)
	mux.HandleFunc("GET /api/analytics/agents", s.handleAgents)

	mux.HandleFunc("POST /api/intervention", s.handlePostIntervention)
	mux.HandleFunc("GET /api/interventions", s.handleGetInterventions)
	mux.HandleFunc("POST /api/intervention/consume", s.handleConsumeIntervention)

	mux.HandleFunc("GET /ws", s.handleStreamWS)
	mux.HandleFunc("GET /api/stream", s.handleStreamSSE)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errNotFound("route"))
	})
	if s.Static != nil {
		mux.Handle("/", s.Static)
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, errNotFound("route"))
		})
	}

	var h http.Handler = mux
	h = corsMiddleware(h)
	h = loggingMiddleware(s.logger(), h)
	h = tracingMiddleware(h)
	h = requestIDMiddleware(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.Monitor.Health(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ev, err := s.Monitor.SubmitEvent(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": ev.ID})
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := s.Monitor.Events(r.Context(), state.EventFilter{
		RunID:     q.Get("run_id"),
		StoryID:   q.Get("story_id"),
		EventType: q.Get("event_type"),
		Since:     q.Get("since"),
		Limit:     parseInt(q.Get("limit"), state.DefaultEventLimit),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handlePostRun(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	run, err := s.Monitor.CreateRun(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": run.ID})
}

func (s *Server) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Monitor.Runs(r.Context(), parseInt(r.URL.Query().Get("limit"), state.DefaultRunLimit))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok, err := s.Monitor.Run(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("run"))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handlePatchRun(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, _, err := s.Monitor.UpdateRun(r.Context(), r.PathValue("id"), body); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePostIntervention(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := s.Monitor.Enqueue(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetInterventions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := s.Monitor.Interventions(r.Context(), interventions.ListOptions{
		RunID:       q.Get("run_id"),
		PendingOnly: q.Get("pending") == "true",
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleConsumeIntervention(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, errors.New("'run_id' query parameter is required"))
		return
	}
	item, ok, err := s.Monitor.ConsumeIntervention(r.Context(), runID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"intervention": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"intervention": item})
}

// fail maps a service error onto a status code. Storage failures are logged
// because the caller only sees a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger().Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()), "error", err)
	}
	writeError(w, status, err)
}

func errorStatus(err error) int {
	switch {
	case schema.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, state.ErrDuplicateRun):
		return http.StatusConflict
	case errors.Is(err, state.ErrNotFound):
		return http.StatusNotFound
	case state.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

type notFoundError struct {
	msg string
}

func (e notFoundError) Error() string { return e.msg }

func errNotFound(target string) error {
	return notFoundError{msg: target + " not found"}
}

func runIDParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("run_id"))
}
