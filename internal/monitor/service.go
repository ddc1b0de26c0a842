// Package monitor is the single entry point collaborators use. Every write
// goes through Service so that validation happens first and observers are
// told about mutations in the order they were committed.
package monitor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/flitsinc/taskplex-monitor/internal/analytics"
	"github.com/flitsinc/taskplex-monitor/internal/eventbus"
	"github.com/flitsinc/taskplex-monitor/internal/ingest"
	"github.com/flitsinc/taskplex-monitor/internal/interventions"
	"github.com/flitsinc/taskplex-monitor/internal/state"
	"github.com/flitsinc/taskplex-monitor/internal/telemetry"
)

type Options struct {
	Bus    *eventbus.Bus
	Logger *slog.Logger
	Now    func() time.Time
}

type Service struct {
	store     *state.Store
	analytics *analytics.Engine
	queue     *interventions.Queue
	bus       *eventbus.Bus
	ingest    ingest.Normalizer
	logger    *slog.Logger
	started   time.Time

	// writeMu spans each commit and its publish so observers receive
	// mutations in commit order.
	writeMu sync.Mutex

	eventsAppended        metric.Int64Counter
	runsWritten           metric.Int64Counter
	interventionsEnqueued metric.Int64Counter
	interventionsConsumed metric.Int64Counter
}

func New(db *sql.DB, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bus := opts.Bus
	if bus == nil {
		bus = eventbus.NewBus(eventbus.WithLogger(logger))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	store := state.NewStore(db)
	meter := telemetry.Meter("taskplex-monitor/monitor")
	return &Service{
		store:                 store,
		analytics:             analytics.NewEngine(store).WithClock(now),
		queue:                 interventions.NewQueue(db),
		bus:                   bus,
		ingest:                ingest.Normalizer{Now: now},
		logger:                logger,
		started:               now(),
		eventsAppended:        telemetry.Counter(meter, "monitor.events.appended", "Events accepted into the store."),
		runsWritten:           telemetry.Counter(meter, "monitor.runs.written", "Run creations and updates."),
		interventionsEnqueued: telemetry.Counter(meter, "monitor.interventions.enqueued", "Operator commands queued."),
		interventionsConsumed: telemetry.Counter(meter, "monitor.interventions.consumed", "Operator commands claimed by a poller."),
	}
}

func (s *Service) Bus() *eventbus.Bus { return s.bus }

func (s *Service) Analytics() *analytics.Engine { return s.analytics }

func (s *Service) Started() time.Time { return s.started }

// publish never fails the originating write.
func (s *Service) publish(ctx context.Context, msg eventbus.Message) {
	if err := s.bus.Publish(ctx, msg); err != nil {
		s.logger.Warn("publish failed", "message_type", msg.Type, "error", err)
	}
}

// SubmitEvent validates, normalizes and stores one event, then broadcasts it.
func (s *Service) SubmitEvent(ctx context.Context, data []byte) (state.Event, error) {
	in, err := s.ingest.Event(data)
	if err != nil {
		return state.Event{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	ev, err := s.store.AppendEvent(ctx, in)
	if err != nil {
		return state.Event{}, fmt.Errorf("submit event: %w", err)
	}
	s.eventsAppended.Add(ctx, 1)
	s.publish(ctx, eventbus.EventMessage(ev))
	return ev, nil
}

func (s *Service) CreateRun(ctx context.Context, data []byte) (state.Run, error) {
	run, err := ingest.Run(data)
	if err != nil {
		return state.Run{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.store.CreateRun(ctx, run); err != nil {
		return state.Run{}, err
	}
	s.runsWritten.Add(ctx, 1)
	s.logger.Info("run created", "run_id", run.ID, "mode", run.Mode)
	s.publish(ctx, eventbus.RunCreated(run))
	return run, nil
}

// UpdateRun applies a partial update. Updating an unknown run is a no-op;
// ok reports whether the run exists, and only then is run.updated published.
func (s *Service) UpdateRun(ctx context.Context, id string, data []byte) (run state.Run, ok bool, err error) {
	u, err := ingest.RunUpdate(data)
	if err != nil {
		return state.Run{}, false, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.store.UpdateRun(ctx, id, u); err != nil {
		return state.Run{}, false, err
	}
	run, ok, err = s.store.GetRunByID(ctx, id)
	if err != nil || !ok {
		return state.Run{}, false, err
	}
	s.runsWritten.Add(ctx, 1)
	s.publish(ctx, eventbus.RunUpdated(run))
	return run, true, nil
}

func (s *Service) Events(ctx context.Context, filter state.EventFilter) ([]state.Event, error) {
	return s.store.QueryEvents(ctx, filter)
}

func (s *Service) Runs(ctx context.Context, limit int) ([]state.Run, error) {
	return s.store.GetRuns(ctx, limit)
}

func (s *Service) Run(ctx context.Context, id string) (state.Run, bool, error) {
	return s.store.GetRunByID(ctx, id)
}

// Enqueue validates and stores an operator command and announces it.
func (s *Service) Enqueue(ctx context.Context, data []byte) (interventions.Intervention, error) {
	in, err := ingest.Intervention(data)
	if err != nil {
		return interventions.Intervention{}, err
	}
	return s.EnqueueInput(ctx, in)
}

func (s *Service) EnqueueInput(ctx context.Context, in interventions.Input) (interventions.Intervention, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	item, err := s.queue.Enqueue(ctx, in)
	if err != nil {
		return interventions.Intervention{}, err
	}
	s.interventionsEnqueued.Add(ctx, 1)
	s.logger.Info("intervention queued", "intervention_id", item.ID, "action", item.Action)
	s.publish(ctx, eventbus.InterventionCreated(item))
	return item, nil
}

func (s *Service) Interventions(ctx context.Context, opts interventions.ListOptions) ([]interventions.Intervention, error) {
	return s.queue.List(ctx, opts)
}

// ConsumeIntervention claims the oldest pending command for runID. ok is
// false when nothing is pending.
func (s *Service) ConsumeIntervention(ctx context.Context, runID string) (interventions.Intervention, bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	item, ok, err := s.queue.ConsumeOne(ctx, runID)
	if err != nil || !ok {
		return interventions.Intervention{}, false, err
	}
	s.interventionsConsumed.Add(ctx, 1)
	s.logger.Info("intervention consumed", "intervention_id", item.ID, "run_id", runID, "action", item.Action)
	s.publish(ctx, eventbus.InterventionConsumed(item))
	return item, true, nil
}

// Subscribe registers a live observer; see eventbus.Bus.Subscribe.
func (s *Service) Subscribe(ctx context.Context) (string, <-chan []byte) {
	return s.bus.Subscribe(ctx)
}

type Health struct {
	Status string `json:"status"`
	Events int64  `json:"events"`
	Runs   int64  `json:"runs"`
}

func (s *Service) Health(ctx context.Context) (Health, error) {
	events, runs, err := s.store.Counts(ctx)
	if err != nil {
		return Health{}, err
	}
	return Health{Status: "ok", Events: events, Runs: runs}, nil
}
