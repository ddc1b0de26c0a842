package ingest

import (
	"encoding/json"

	"github.com/flitsinc/taskplex-monitor/internal/schema"
	"github.com/flitsinc/taskplex-monitor/internal/state"
)

// Run validates a run creation document. id, started_at and mode are
// required; config may be an object or a string encoding one.
func Run(data []byte) (state.Run, error) {
	obj, err := decodeObject(data, "Run")
	if err != nil {
		return state.Run{}, err
	}

	var run state.Run
	id, err := obj.optString("id")
	if err != nil {
		return state.Run{}, err
	}
	startedAt, err := obj.optString("started_at")
	if err != nil {
		return state.Run{}, err
	}
	mode, err := obj.optString("mode")
	if err != nil {
		return state.Run{}, err
	}
	if id == nil || *id == "" || startedAt == nil || *startedAt == "" || mode == nil || *mode == "" {
		return state.Run{}, &schema.ValidationError{Msg: "Fields 'id', 'started_at', and 'mode' are required."}
	}
	if _, ok := schema.ParseRunMode(*mode); !ok {
		return state.Run{}, schema.Invalid("mode", "must be one of: sequential, parallel.")
	}
	run.ID, run.StartedAt, run.Mode = *id, *startedAt, *mode

	if run.EndedAt, err = obj.optString("ended_at"); err != nil {
		return state.Run{}, err
	}
	if run.Model, err = obj.optString("model"); err != nil {
		return state.Run{}, err
	}
	if run.Branch, err = obj.optString("branch"); err != nil {
		return state.Run{}, err
	}
	if run.TotalStories, err = obj.optInt("total_stories"); err != nil {
		return state.Run{}, err
	}
	completed, err := obj.optInt("completed")
	if err != nil {
		return state.Run{}, err
	}
	if completed != nil {
		run.Completed = *completed
	}
	skipped, err := obj.optInt("skipped")
	if err != nil {
		return state.Run{}, err
	}
	if skipped != nil {
		run.Skipped = *skipped
	}
	run.Config = json.RawMessage(`{}`)
	if raw, ok := obj.present("config"); ok {
		if run.Config, err = jsonObject("config", raw); err != nil {
			return state.Run{}, err
		}
	}
	return run, nil
}

// RunUpdate validates a partial run document. Keys that are absent stay
// untouched; explicit null clears nullable columns, resets counters to zero
// and config to {}. mode may not be cleared. Unknown keys are ignored.
func RunUpdate(data []byte) (state.RunUpdate, error) {
	obj, err := decodeObject(data, "Run update")
	if err != nil {
		return state.RunUpdate{}, err
	}

	var u state.RunUpdate
	if u.EndedAt, err = obj.nullableString("ended_at"); err != nil {
		return state.RunUpdate{}, err
	}
	if u.Model, err = obj.nullableString("model"); err != nil {
		return state.RunUpdate{}, err
	}
	if u.Branch, err = obj.nullableString("branch"); err != nil {
		return state.RunUpdate{}, err
	}
	if obj.has("mode") {
		mode, err := obj.optString("mode")
		if err != nil {
			return state.RunUpdate{}, err
		}
		if mode == nil {
			return state.RunUpdate{}, schema.Invalid("mode", "cannot be null.")
		}
		if _, ok := schema.ParseRunMode(*mode); !ok {
			return state.RunUpdate{}, schema.Invalid("mode", "must be one of: sequential, parallel.")
		}
		u.Mode = state.Some(*mode)
	}
	if u.TotalStories, err = obj.nullableInt("total_stories"); err != nil {
		return state.RunUpdate{}, err
	}
	if u.Completed, err = obj.counter("completed"); err != nil {
		return state.RunUpdate{}, err
	}
	if u.Skipped, err = obj.counter("skipped"); err != nil {
		return state.RunUpdate{}, err
	}
	if obj.has("config") {
		raw, ok := obj.present("config")
		if !ok {
			u.Config = state.Null[json.RawMessage]()
		} else {
			cfg, err := jsonObject("config", raw)
			if err != nil {
				return state.RunUpdate{}, err
			}
			u.Config = state.Some(cfg)
		}
	}
	return u, nil
}

func (o object) nullableString(key string) (state.Optional[string], error) {
	if !o.has(key) {
		return state.Optional[string]{}, nil
	}
	v, err := o.optString(key)
	if err != nil {
		return state.Optional[string]{}, err
	}
	if v == nil {
		return state.Null[string](), nil
	}
	return state.Some(*v), nil
}

func (o object) nullableInt(key string) (state.Optional[int64], error) {
	if !o.has(key) {
		return state.Optional[int64]{}, nil
	}
	v, err := o.optInt(key)
	if err != nil {
		return state.Optional[int64]{}, err
	}
	if v == nil {
		return state.Null[int64](), nil
	}
	return state.Some(*v), nil
}

func (o object) counter(key string) (state.Optional[int64], error) {
	v, err := o.nullableInt(key)
	if err != nil || !v.Set {
		return v, err
	}
	return state.Some(v.Value), nil
}
