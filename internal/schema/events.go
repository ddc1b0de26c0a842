package schema

// Source identifies which orchestrator subsystem emitted an event.
type Source string

const (
	SourceHook         Source = "hook"
	SourceOrchestrator Source = "orchestrator"
	SourceParallel     Source = "parallel"
)

// Sources lists the accepted event sources in display order.
var Sources = []Source{SourceHook, SourceOrchestrator, SourceParallel}

// ParseSource reports whether raw names a known source.
func ParseSource(raw string) (Source, bool) {
	switch Source(raw) {
	case SourceHook, SourceOrchestrator, SourceParallel:
		return Source(raw), true
	default:
		return "", false
	}
}

// Event types the analytics layer recognizes. The vocabulary is open; any
// other type is stored and broadcast but ignored by derivations.
const (
	EventStoryStart       = "story.start"
	EventStoryComplete    = "story.complete"
	EventStorySkip        = "story.skip"
	EventStoryFail        = "story.fail"
	EventStoryBlocked     = "story.blocked"
	EventToolUse          = "tool.use"
	EventSubagentStart    = "subagent.start"
	EventSubagentEnd      = "subagent.end"
	EventErrorCategorized = "error.categorized"
)

// StoryStatus is the derived state of a story on the timeline.
type StoryStatus string

const (
	StoryRunning   StoryStatus = "running"
	StoryCompleted StoryStatus = "completed"
	StorySkipped   StoryStatus = "skipped"
	StoryBlocked   StoryStatus = "blocked"
	StoryFailed    StoryStatus = "failed"
)

// TerminalStatus maps a terminal story event type to its status. ok is false
// for non-terminal types.
func TerminalStatus(eventType string) (status StoryStatus, ok bool) {
	switch eventType {
	case EventStoryComplete:
		return StoryCompleted, true
	case EventStorySkip:
		return StorySkipped, true
	case EventStoryBlocked:
		return StoryBlocked, true
	case EventStoryFail:
		return StoryFailed, true
	default:
		return "", false
	}
}

// RunMode is the execution plan shape of a run.
type RunMode string

const (
	ModeSequential RunMode = "sequential"
	ModeParallel   RunMode = "parallel"
)

func ParseRunMode(raw string) (RunMode, bool) {
	switch RunMode(raw) {
	case ModeSequential, ModeParallel:
		return RunMode(raw), true
	default:
		return "", false
	}
}
