package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/flitsinc/taskplex-monitor/internal/schema"
)

type AgentDuration struct {
	AgentType   string  `json:"agent_type"`
	AvgSeconds  float64 `json:"avg_duration_seconds"`
	MinSeconds  float64 `json:"min_duration_seconds"`
	MaxSeconds  float64 `json:"max_duration_seconds"`
	Invocations int     `json:"invocations"`
}

type spanKey struct {
	runID, storyID, agentType string
}

type spanEnd struct {
	id int64
	at time.Time
}

// AgentDurations pairs every subagent.start with the earliest-timestamped
// subagent.end for the same run, story and agent type that was stored after
// it (higher id). Pairing by id tolerates backdated timestamps. Unpaired
// starts are excluded. Results are ordered by average duration, longest first.
func (e *Engine) AgentDurations(ctx context.Context, runID string) ([]AgentDuration, error) {
	events, err := e.store.EventsOfTypes(ctx, runID, schema.EventSubagentStart, schema.EventSubagentEnd)
	if err != nil {
		return nil, fmt.Errorf("agent durations: %w", err)
	}

	type spanStart struct {
		id  int64
		key spanKey
		at  time.Time
	}
	var starts []spanStart
	ends := map[spanKey][]spanEnd{}
	for _, ev := range events {
		if ev.RunID == nil || ev.StoryID == nil {
			continue
		}
		agent, ok := schema.PayloadString(decodePayload(ev.Payload), schema.PayloadAgentType)
		if !ok {
			continue
		}
		at, ok := parseTimestamp(ev.Timestamp)
		if !ok {
			continue
		}
		k := spanKey{runID: *ev.RunID, storyID: *ev.StoryID, agentType: agent}
		switch ev.EventType {
		case schema.EventSubagentStart:
			starts = append(starts, spanStart{id: ev.ID, key: k, at: at})
		case schema.EventSubagentEnd:
			ends[k] = append(ends[k], spanEnd{id: ev.ID, at: at})
		}
	}

	// Ends arrive in id order; earliest[k][i] is the minimum timestamp among
	// ends[k][i:], so each start resolves with one binary search.
	earliest := make(map[spanKey][]time.Time, len(ends))
	for k, list := range ends {
		mins := make([]time.Time, len(list))
		for i := len(list) - 1; i >= 0; i-- {
			mins[i] = list[i].at
			if i+1 < len(list) && mins[i+1].Before(mins[i]) {
				mins[i] = mins[i+1]
			}
		}
		earliest[k] = mins
	}

	type agg struct {
		sum, min, max float64
		n             int
	}
	byAgent := map[string]*agg{}
	for _, s := range starts {
		list := ends[s.key]
		i := sort.Search(len(list), func(i int) bool { return list[i].id > s.id })
		if i == len(list) {
			continue
		}
		d := earliest[s.key][i].Sub(s.at).Seconds()
		a, ok := byAgent[s.key.agentType]
		if !ok {
			a = &agg{min: math.Inf(1), max: math.Inf(-1)}
			byAgent[s.key.agentType] = a
		}
		a.sum += d
		a.n++
		a.min = math.Min(a.min, d)
		a.max = math.Max(a.max, d)
	}

	out := make([]AgentDuration, 0, len(byAgent))
	for agent, a := range byAgent {
		out = append(out, AgentDuration{
			AgentType:   agent,
			AvgSeconds:  round(a.sum/float64(a.n), 1),
			MinSeconds:  round(a.min, 1),
			MaxSeconds:  round(a.max, 1),
			Invocations: a.n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgSeconds != out[j].AvgSeconds {
			return out[i].AvgSeconds > out[j].AvgSeconds
		}
		return out[i].AgentType < out[j].AgentType
	})
	return out, nil
}
