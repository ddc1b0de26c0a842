package api

import (
	"net/http"
	"runtime"
	"time"
)

type DiagnosticsInfo struct {
	HTTPAddr string `json:"http_addr"`
	DBPath   string `json:"db_path"`
	WebDir   string `json:"web_dir"`
	Version  string `json:"version"`
}

type DiagnosticsResponse struct {
	Time          time.Time       `json:"time"`
	StartedAt     time.Time       `json:"started_at"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	GoVersion     string          `json:"go_version"`
	Info          DiagnosticsInfo `json:"info"`
	Store         StoreStats      `json:"store"`
	Observers     ObserverStats   `json:"observers"`
}

type StoreStats struct {
	Events int64 `json:"events"`
	Runs   int64 `json:"runs"`
}

type ObserverStats struct {
	Connected int `json:"connected"`
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	started := s.Monitor.Started().UTC()
	if started.IsZero() {
		started = now
	}
	health, err := s.Monitor.Health(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DiagnosticsResponse{
		Time:          now,
		StartedAt:     started,
		UptimeSeconds: int64(now.Sub(started).Seconds()),
		GoVersion:     runtime.Version(),
		Info:          s.Info,
		Store:         StoreStats{Events: health.Events, Runs: health.Runs},
		Observers:     ObserverStats{Connected: s.Monitor.Bus().SubscriberCount()},
	})
}
