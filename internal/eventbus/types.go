package eventbus

import (
	"github.com/flitsinc/taskplex-monitor/internal/interventions"
	"github.com/flitsinc/taskplex-monitor/internal/state"
)

type MessageType string

const (
	MessageEvent                MessageType = "event"
	MessageRunCreated           MessageType = "run.created"
	MessageRunUpdated           MessageType = "run.updated"
	MessageInterventionCreated  MessageType = "intervention.created"
	MessageInterventionConsumed MessageType = "intervention.consumed"
)

// Message is the wire envelope sent to observers. Exactly one of the record
// fields is set, matching Type.
type Message struct {
	Type         MessageType                 `json:"type"`
	Event        *state.Event                `json:"event,omitempty"`
	Run          *state.Run                  `json:"run,omitempty"`
	Intervention *interventions.Intervention `json:"intervention,omitempty"`
}

func EventMessage(ev state.Event) Message {
	return Message{Type: MessageEvent, Event: &ev}
}

func RunCreated(run state.Run) Message {
	return Message{Type: MessageRunCreated, Run: &run}
}

func RunUpdated(run state.Run) Message {
	return Message{Type: MessageRunUpdated, Run: &run}
}

func InterventionCreated(item interventions.Intervention) Message {
	return Message{Type: MessageInterventionCreated, Intervention: &item}
}

func InterventionConsumed(item interventions.Intervention) Message {
	return Message{Type: MessageInterventionConsumed, Intervention: &item}
}
