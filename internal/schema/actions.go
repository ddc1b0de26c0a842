package schema

import "strings"

// Action is an operator command delivered to a running orchestration.
type Action string

const (
	ActionSkip   Action = "skip"
	ActionHint   Action = "hint"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
)

// Actions lists the accepted intervention actions.
var Actions = []Action{ActionSkip, ActionHint, ActionPause, ActionResume}

// ParseAction validates a raw action. Matching is exact; the orchestrator
// sends lowercase names and anything else is an operator typo.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionSkip, ActionHint, ActionPause, ActionResume:
		return Action(raw), nil
	default:
		names := make([]string, len(Actions))
		for i, a := range Actions {
			names[i] = string(a)
		}
		return "", &ValidationError{Field: "action", Msg: "must be one of: " + strings.Join(names, ", ")}
	}
}
