package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/flitsinc/taskplex-monitor/internal/schema"
)

type ErrorCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type ToolCount struct {
	ToolName  string `json:"tool_name"`
	AgentType string `json:"agent_type"`
	Count     int    `json:"count"`
}

const unknownAgent = "unknown"

// ErrorBreakdown counts story.fail and error.categorized events by
// payload.category, most frequent first. An empty runID spans all runs.
func (e *Engine) ErrorBreakdown(ctx context.Context, runID string) ([]ErrorCount, error) {
	events, err := e.store.EventsOfTypes(ctx, runID, schema.EventStoryFail, schema.EventErrorCategorized)
	if err != nil {
		return nil, fmt.Errorf("error breakdown: %w", err)
	}

	counts := map[string]int{}
	for _, ev := range events {
		category, ok := schema.PayloadString(decodePayload(ev.Payload), schema.PayloadCategory)
		if !ok {
			continue
		}
		counts[category]++
	}

	out := make([]ErrorCount, 0, len(counts))
	for category, n := range counts {
		out = append(out, ErrorCount{Category: category, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// ToolUsage counts tool.use events by (payload.tool, payload.agent_type),
// most frequent first. Events without a tool are skipped; a missing agent
// type is reported as "unknown".
func (e *Engine) ToolUsage(ctx context.Context, runID string) ([]ToolCount, error) {
	events, err := e.store.EventsOfTypes(ctx, runID, schema.EventToolUse)
	if err != nil {
		return nil, fmt.Errorf("tool usage: %w", err)
	}

	type key struct{ tool, agent string }
	counts := map[key]int{}
	for _, ev := range events {
		payload := decodePayload(ev.Payload)
		tool, ok := schema.PayloadString(payload, schema.PayloadTool)
		if !ok {
			continue
		}
		agent, ok := schema.PayloadString(payload, schema.PayloadAgentType)
		if !ok {
			agent = unknownAgent
		}
		counts[key{tool, agent}]++
	}

	out := make([]ToolCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, ToolCount{ToolName: k.tool, AgentType: k.agent, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].ToolName != out[j].ToolName {
			return out[i].ToolName < out[j].ToolName
		}
		return out[i].AgentType < out[j].AgentType
	})
	return out, nil
}
