// Package analytics derives run-level facts from the raw event log. Nothing
// is cached: every call recomputes from the store's current contents, and
// malformed or missing payload fields only exclude the affected record.
package analytics

import (
	"encoding/json"
	"math"
	"time"

	"github.com/flitsinc/taskplex-monitor/internal/state"
)

type Engine struct {
	store *state.Store
	now   func() time.Time
}

func NewEngine(store *state.Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// WithClock returns a copy of the engine that reads the current time from now.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	return &Engine{store: e.store, now: now}
}

func decodePayload(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimestamp accepts ISO-8601 variants producers emit; zoneless values
// are taken as UTC.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
