package ingest

import (
	"github.com/flitsinc/taskplex-monitor/internal/interventions"
	"github.com/flitsinc/taskplex-monitor/internal/schema"
)

// Intervention decodes an operator command. The action itself is checked by
// the queue; this only enforces the document's shape.
func Intervention(data []byte) (interventions.Input, error) {
	obj, err := decodeObject(data, "Intervention")
	if err != nil {
		return interventions.Input{}, err
	}
	action, err := obj.optString("action")
	if err != nil {
		return interventions.Input{}, err
	}
	if action == nil || *action == "" {
		return interventions.Input{}, schema.Invalid("action", "is required.")
	}
	in := interventions.Input{Action: *action}
	if in.StoryID, err = obj.optString("story_id"); err != nil {
		return interventions.Input{}, err
	}
	if in.Message, err = obj.optString("message"); err != nil {
		return interventions.Input{}, err
	}
	if in.RunID, err = obj.optString("run_id"); err != nil {
		return interventions.Input{}, err
	}
	return in, nil
}
