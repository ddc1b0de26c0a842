package analytics

import (
	"context"
	"fmt"

	"github.com/flitsinc/taskplex-monitor/internal/schema"
)

type TimelineEntry struct {
	StoryID   string             `json:"story_id"`
	StartedAt string             `json:"started_at"`
	EndedAt   *string            `json:"ended_at"`
	Status    schema.StoryStatus `json:"status"`
	Attempts  int                `json:"attempts"`
	Wave      *int64             `json:"wave"`
	Batch     *int64             `json:"batch"`
}

// StoryTimeline returns one entry per story seen in the run, in order of
// each story's first event. started_at is the earliest story.start, ended_at
// the latest terminal event, and status follows the terminal event that
// arrived last.
func (e *Engine) StoryTimeline(ctx context.Context, runID string) ([]TimelineEntry, error) {
	if runID == "" {
		return []TimelineEntry{}, nil
	}
	events, err := e.store.EventsOfTypes(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("story timeline: %w", err)
	}

	index := map[string]int{}
	out := []TimelineEntry{}
	for _, ev := range events {
		if ev.StoryID == nil {
			continue
		}
		i, ok := index[*ev.StoryID]
		if !ok {
			i = len(out)
			index[*ev.StoryID] = i
			out = append(out, TimelineEntry{StoryID: *ev.StoryID, Status: schema.StoryRunning})
		}
		entry := &out[i]
		entry.Wave = maxInt(entry.Wave, ev.Wave)
		entry.Batch = maxInt(entry.Batch, ev.Batch)

		if ev.EventType == schema.EventStoryStart {
			entry.Attempts++
			if entry.StartedAt == "" || ev.Timestamp < entry.StartedAt {
				entry.StartedAt = ev.Timestamp
			}
			continue
		}
		status, terminal := schema.TerminalStatus(ev.EventType)
		if !terminal {
			continue
		}
		entry.Status = status
		if entry.EndedAt == nil || ev.Timestamp > *entry.EndedAt {
			ts := ev.Timestamp
			entry.EndedAt = &ts
		}
	}
	return out, nil
}

func maxInt(cur, next *int64) *int64 {
	if next == nil {
		return cur
	}
	if cur == nil || *next > *cur {
		v := *next
		return &v
	}
	return cur
}
