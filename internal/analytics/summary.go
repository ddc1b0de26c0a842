package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/flitsinc/taskplex-monitor/internal/schema"
	"github.com/flitsinc/taskplex-monitor/internal/state"
)

type Summary struct {
	RunID          string  `json:"run_id"`
	Mode           string  `json:"mode"`
	Model          *string `json:"model"`
	Branch         *string `json:"branch"`
	StartedAt      string  `json:"started_at"`
	EndedAt        *string `json:"ended_at"`
	ElapsedSeconds *int64  `json:"elapsed_seconds"`
	TotalStories   *int64  `json:"total_stories"`
	Completed      int64   `json:"completed"`
	Skipped        int64   `json:"skipped"`
	Blocked        int     `json:"blocked"`
	Failed         int     `json:"failed"`
	ErrorRate      float64 `json:"error_rate"`
}

// RunSummary combines the run's asserted fields with blocked/failed counts
// derived from events. ok is false when the run does not exist. The run row
// and its events are read from one snapshot.
func (e *Engine) RunSummary(ctx context.Context, runID string) (summary Summary, ok bool, err error) {
	err = e.store.View(ctx, func(s *state.Store) error {
		run, found, err := s.GetRunByID(ctx, runID)
		if err != nil || !found {
			return err
		}
		events, err := s.EventsOfTypes(ctx, runID, schema.EventStoryBlocked, schema.EventStoryFail)
		if err != nil {
			return err
		}
		summary, ok = e.summarize(run, events), true
		return nil
	})
	if err != nil {
		return Summary{}, false, fmt.Errorf("run summary: %w", err)
	}
	return summary, ok, nil
}

func (e *Engine) summarize(run state.Run, events []state.Event) Summary {
	blocked := map[string]struct{}{}
	failed := map[string]struct{}{}
	for _, ev := range events {
		if ev.StoryID == nil {
			continue
		}
		switch ev.EventType {
		case schema.EventStoryBlocked:
			blocked[*ev.StoryID] = struct{}{}
		case schema.EventStoryFail:
			failed[*ev.StoryID] = struct{}{}
		}
	}

	out := Summary{
		RunID:        run.ID,
		Mode:         run.Mode,
		Model:        run.Model,
		Branch:       run.Branch,
		StartedAt:    run.StartedAt,
		EndedAt:      run.EndedAt,
		TotalStories: run.TotalStories,
		Completed:    run.Completed,
		Skipped:      run.Skipped,
		Blocked:      len(blocked),
		Failed:       len(failed),
	}
	out.ElapsedSeconds = e.elapsed(run)
	if run.TotalStories != nil && *run.TotalStories > 0 {
		out.ErrorRate = round(float64(out.Failed)/float64(*run.TotalStories), 4)
	}
	return out
}

// elapsed is nil when started_at is empty or either end is unparseable.
func (e *Engine) elapsed(run state.Run) *int64 {
	if run.StartedAt == "" {
		return nil
	}
	start, ok := parseTimestamp(run.StartedAt)
	if !ok {
		return nil
	}
	end := e.now()
	if run.EndedAt != nil && *run.EndedAt != "" {
		if end, ok = parseTimestamp(*run.EndedAt); !ok {
			return nil
		}
	}
	secs := int64(math.Round(end.Sub(start).Seconds()))
	return &secs
}
