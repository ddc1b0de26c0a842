// Package ingest validates and normalizes untyped producer input before it
// reaches the store. Every function here is pure; nothing is written.
package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/flitsinc/taskplex-monitor/internal/schema"
	"github.com/flitsinc/taskplex-monitor/internal/state"
)

// TimestampLayout is used for defaulted timestamps; millisecond ISO-8601 in
// UTC keeps them string-comparable with producer timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Normalizer turns raw event documents into store input.
type Normalizer struct {
	Now func() time.Time
}

func (n Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// NormalizeEvent validates a raw JSON event with the default clock.
func NormalizeEvent(data []byte) (state.EventInput, error) {
	return Normalizer{}.Event(data)
}

// Event applies the event contract in order and returns the first violation
// as a *schema.ValidationError.
func (n Normalizer) Event(data []byte) (state.EventInput, error) {
	obj, err := decodeObject(data, "Event")
	if err != nil {
		return state.EventInput{}, err
	}

	eventType := ""
	if raw, ok := obj.present("event_type"); ok {
		eventType, _ = asString(raw)
	}
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return state.EventInput{}, schema.Invalid("event_type", "is required and must be a non-empty string.")
	}

	var source schema.Source
	if raw, ok := obj.present("source"); ok {
		if s, ok := asString(raw); ok {
			source, _ = schema.ParseSource(s)
		}
	}
	if source == "" {
		return state.EventInput{}, schema.Invalid("source", "is required and must be one of: hook, orchestrator, parallel.")
	}

	payload := json.RawMessage(`{}`)
	if raw, ok := obj.present("payload"); ok {
		payload, err = jsonObject("payload", raw)
		if err != nil {
			return state.EventInput{}, err
		}
	}

	in := state.EventInput{
		Source:    string(source),
		EventType: eventType,
		Payload:   payload,
	}
	if in.SessionID, err = obj.optString("session_id"); err != nil {
		return state.EventInput{}, err
	}
	if in.RunID, err = obj.optString("run_id"); err != nil {
		return state.EventInput{}, err
	}
	if in.StoryID, err = obj.optString("story_id"); err != nil {
		return state.EventInput{}, err
	}
	ts, err := obj.optString("timestamp")
	if err != nil {
		return state.EventInput{}, err
	}
	if in.Wave, err = obj.optInt("wave"); err != nil {
		return state.EventInput{}, err
	}
	if in.Batch, err = obj.optInt("batch"); err != nil {
		return state.EventInput{}, err
	}

	if ts != nil && *ts != "" {
		in.Timestamp = *ts
	} else {
		in.Timestamp = n.now().UTC().Format(TimestampLayout)
	}
	return in, nil
}
