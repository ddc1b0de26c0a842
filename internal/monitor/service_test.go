package monitor_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flitsinc/taskplex-monitor/internal/eventbus"
	"github.com/flitsinc/taskplex-monitor/internal/interventions"
	"github.com/flitsinc/taskplex-monitor/internal/monitor"
	"github.com/flitsinc/taskplex-monitor/internal/schema"
	"github.com/flitsinc/taskplex-monitor/internal/state"
	"github.com/flitsinc/taskplex-monitor/internal/testutil"
)

func newService(t *testing.T) *monitor.Service {
	t.Helper()
	db, closeFn := testutil.OpenTestDB(t)
	t.Cleanup(closeFn)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return monitor.New(db, monitor.Options{
		Logger: logger,
		Bus:    eventbus.NewBus(eventbus.WithLogger(logger)),
		Now:    func() time.Time { return now },
	})
}

func next(t *testing.T, ch <-chan []byte) eventbus.Message {
	t.Helper()
	select {
	case data := <-ch:
		var msg eventbus.Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
		return eventbus.Message{}
	}
}

func assertIdle(t *testing.T, ch <-chan []byte) {
	t.Helper()
	select {
	case data := <-ch:
		t.Fatalf("unexpected message: %s", data)
	default:
	}
}

func TestSubmitEventStoresAndBroadcasts(t *testing.T) {
	svc := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, ch := svc.Subscribe(ctx)

	ev, err := svc.SubmitEvent(ctx, []byte(`{"event_type":"story.start","source":"orchestrator","run_id":"r1","story_id":"s1"}`))
	require.NoError(t, err)
	assert.NotZero(t, ev.ID)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", ev.Timestamp)

	msg := next(t, ch)
	assert.Equal(t, eventbus.MessageEvent, msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, ev.ID, msg.Event.ID)

	events, err := svc.Events(ctx, state.EventFilter{RunID: "r1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestInvalidEventIsNotPersisted(t *testing.T) {
	svc := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, ch := svc.Subscribe(ctx)

	_, err := svc.SubmitEvent(ctx, []byte(`{"event_type":"story.start","source":"mystery"}`))
	require.Error(t, err)
	assert.True(t, schema.IsValidation(err))
	assertIdle(t, ch)

	health, err := svc.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, monitor.Health{Status: "ok", Events: 0, Runs: 0}, health)
}

func TestRunLifecycleBroadcasts(t *testing.T) {
	svc := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, ch := svc.Subscribe(ctx)

	run, err := svc.CreateRun(ctx, []byte(`{"id":"r1","started_at":"2024-01-01T00:00:00Z","mode":"sequential","total_stories":2}`))
	require.NoError(t, err)
	assert.Equal(t, "r1", run.ID)
	msg := next(t, ch)
	assert.Equal(t, eventbus.MessageRunCreated, msg.Type)
	assert.Equal(t, "r1", msg.Run.ID)

	_, err = svc.CreateRun(ctx, []byte(`{"id":"r1","started_at":"2024-01-01T00:00:00Z","mode":"sequential"}`))
	require.True(t, errors.Is(err, state.ErrDuplicateRun))
	assertIdle(t, ch)

	updated, ok, err := svc.UpdateRun(ctx, "r1", []byte(`{"ended_at":"2024-01-01T00:05:00Z","completed":2}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), updated.Completed)
	msg = next(t, ch)
	assert.Equal(t, eventbus.MessageRunUpdated, msg.Type)
	assert.Equal(t, "2024-01-01T00:05:00Z", *msg.Run.EndedAt)

	_, ok, err = svc.UpdateRun(ctx, "ghost", []byte(`{"completed":1}`))
	require.NoError(t, err)
	assert.False(t, ok)
	assertIdle(t, ch)

	summary, ok, err := svc.Analytics().RunSummary(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(300), *summary.ElapsedSeconds)
}

func TestPauseResumeSequence(t *testing.T) {
	svc := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, ch := svc.Subscribe(ctx)

	pause, err := svc.Enqueue(ctx, []byte(`{"action":"pause","run_id":"r1"}`))
	require.NoError(t, err)
	resume, err := svc.Enqueue(ctx, []byte(`{"action":"resume","run_id":"r1"}`))
	require.NoError(t, err)
	assert.Equal(t, eventbus.MessageInterventionCreated, next(t, ch).Type)
	assert.Equal(t, eventbus.MessageInterventionCreated, next(t, ch).Type)

	_, err = svc.Enqueue(ctx, []byte(`{"action":"abort","run_id":"r1"}`))
	require.True(t, schema.IsValidation(err))

	got, ok, err := svc.ConsumeIntervention(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pause.ID, got.ID)
	msg := next(t, ch)
	assert.Equal(t, eventbus.MessageInterventionConsumed, msg.Type)
	assert.True(t, msg.Intervention.Consumed)

	got, ok, err = svc.ConsumeIntervention(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resume.ID, got.ID)
	next(t, ch)

	_, ok, err = svc.ConsumeIntervention(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)
	assertIdle(t, ch)

	pending, err := svc.Interventions(ctx, interventions.ListOptions{RunID: "r1", PendingOnly: true})
	require.NoError(t, err)
	assert.Empty(t, pending)
}
