package api

import "net/http"

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Monitor.Analytics().StoryTimeline(r.Context(), r.PathValue("run"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	counts, err := s.Monitor.Analytics().ErrorBreakdown(r.Context(), runIDParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	counts, err := s.Monitor.Analytics().ToolUsage(r.Context(), runIDParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, ok, err := s.Monitor.Analytics().RunSummary(r.Context(), r.PathValue("run"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("run"))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	durations, err := s.Monitor.Analytics().AgentDurations(r.Context(), runIDParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, durations)
}
