package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultEventLimit = 1000
	DefaultRunLimit   = 50
)

// querier is satisfied by *sql.DB and *sql.Tx so the same methods serve
// both direct calls and snapshot reads.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the events and runs tables. Events are append-only; runs hold
// only producer-asserted state.
type Store struct {
	db  *sql.DB
	q   querier
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db, now: time.Now}
}

// View runs fn against a store bound to a single read transaction, so every
// query inside fn observes the same committed snapshot.
func (s *Store) View(ctx context.Context, fn func(*Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return WrapStorage("begin view", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	return fn(&Store{db: s.db, q: tx, now: s.now})
}

type Event struct {
	ID        int64           `json:"id"`
	Timestamp string          `json:"timestamp"`
	Source    string          `json:"source"`
	EventType string          `json:"event_type"`
	SessionID *string         `json:"session_id"`
	RunID     *string         `json:"run_id"`
	StoryID   *string         `json:"story_id"`
	Wave      *int64          `json:"wave"`
	Batch     *int64          `json:"batch"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
}

// EventInput is a normalized event ready to append. Payload must already be
// a JSON object; an empty payload is stored as {}.
type EventInput struct {
	Timestamp string
	Source    string
	EventType string
	SessionID *string
	RunID     *string
	StoryID   *string
	Wave      *int64
	Batch     *int64
	Payload   json.RawMessage
}

// EventFilter selects events; empty fields are not applied. Since compares
// timestamps as strings.
type EventFilter struct {
	RunID     string
	StoryID   string
	EventType string
	Since     string
	Limit     int
}

const eventColumns = `id, timestamp, source, event_type, session_id, run_id, story_id, wave, batch, payload, created_at`

// AppendEvent inserts one event and returns it with its assigned id.
func (s *Store) AppendEvent(ctx context.Context, in EventInput) (Event, error) {
	createdAt := s.now().UTC().Format(time.RFC3339Nano)
	payload := jsonText(in.Payload)
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO events (timestamp, source, event_type, session_id, run_id, story_id, wave, batch, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, in.Timestamp, in.Source, in.EventType, nullString(in.SessionID), nullString(in.RunID), nullString(in.StoryID),
		nullInt(in.Wave), nullInt(in.Batch), payload, createdAt)
	if err != nil {
		return Event{}, WrapStorage("insert event", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Event{}, WrapStorage("insert event id", err)
	}
	return Event{
		ID:        id,
		Timestamp: in.Timestamp,
		Source:    in.Source,
		EventType: in.EventType,
		SessionID: in.SessionID,
		RunID:     in.RunID,
		StoryID:   in.StoryID,
		Wave:      in.Wave,
		Batch:     in.Batch,
		Payload:   json.RawMessage(payload),
		CreatedAt: createdAt,
	}, nil
}

// QueryEvents returns events matching every provided filter in ascending id
// order, capped at filter.Limit (DefaultEventLimit when unset).
func (s *Store) QueryEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	var conditions []string
	var args []any
	if filter.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.StoryID != "" {
		conditions = append(conditions, "story_id = ?")
		args = append(args, filter.StoryID)
	}
	if filter.EventType != "" {
		conditions = append(conditions, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.Since != "" {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s FROM events %s ORDER BY id ASC LIMIT ?`, eventColumns, where)
	args = append(args, limit)
	return s.selectEvents(ctx, "query events", query, args...)
}

// EventsOfTypes returns every event of the given types in ascending id order,
// scoped to runID unless it is empty. No types means all types. Unlike
// QueryEvents there is no limit; the analytics layer needs the full log.
func (s *Store) EventsOfTypes(ctx context.Context, runID string, types ...string) ([]Event, error) {
	var conditions []string
	var args []any
	if runID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, runID)
	}
	if len(types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(types)), ",")
		conditions = append(conditions, fmt.Sprintf("event_type IN (%s)", placeholders))
		for _, t := range types {
			args = append(args, t)
		}
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s FROM events %s ORDER BY id ASC`, eventColumns, where)
	return s.selectEvents(ctx, "scan events", query, args...)
}

func (s *Store) selectEvents(ctx context.Context, op, query string, args ...any) ([]Event, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, WrapStorage(op, err)
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		var sessionID, runID, storyID, payload sql.NullString
		var wave, batch sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Source, &e.EventType, &sessionID, &runID, &storyID, &wave, &batch, &payload, &e.CreatedAt); err != nil {
			return nil, WrapStorage("scan event", err)
		}
		e.SessionID = stringPtr(sessionID)
		e.RunID = stringPtr(runID)
		e.StoryID = stringPtr(storyID)
		e.Wave = intPtr(wave)
		e.Batch = intPtr(batch)
		e.Payload = rawJSON(payload)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapStorage("iterate events", err)
	}
	return out, nil
}

// Counts reports the number of stored events and runs.
func (s *Store) Counts(ctx context.Context) (events, runs int64, err error) {
	err = s.q.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM events), (SELECT COUNT(*) FROM runs)`).Scan(&events, &runs)
	if err != nil {
		return 0, 0, WrapStorage("count", err)
	}
	return events, runs, nil
}
