// Package interventions is the durable FIFO of operator commands. The
// orchestrator polls it per run and each command is claimed exactly once.
package interventions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flitsinc/taskplex-monitor/internal/schema"
	"github.com/flitsinc/taskplex-monitor/internal/state"
)

// ListLimit caps List results.
const ListLimit = 50

// createdAtLayout has fixed-width fractions so created_at sorts as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

type Intervention struct {
	ID        int64         `json:"id"`
	Action    schema.Action `json:"action"`
	StoryID   *string       `json:"story_id"`
	Message   *string       `json:"message"`
	RunID     *string       `json:"run_id"`
	CreatedAt string        `json:"created_at"`
	Consumed  bool          `json:"consumed"`
}

// Input is an operator command before validation.
type Input struct {
	Action  string
	StoryID *string
	Message *string
	RunID   *string
}

type ListOptions struct {
	RunID       string
	PendingOnly bool
}

type Queue struct {
	db  *sql.DB
	now func() time.Time
}

func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db, now: time.Now}
}

// Enqueue validates the action and stores a pending intervention.
func (q *Queue) Enqueue(ctx context.Context, in Input) (Intervention, error) {
	action, err := schema.ParseAction(strings.TrimSpace(in.Action))
	if err != nil {
		return Intervention{}, err
	}
	createdAt := q.now().UTC().Format(createdAtLayout)
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO interventions (action, story_id, message, run_id, created_at, consumed)
		VALUES (?, ?, ?, ?, ?, 0)
	`, string(action), nullString(in.StoryID), nullString(in.Message), nullString(in.RunID), createdAt)
	if err != nil {
		return Intervention{}, state.WrapStorage("insert intervention", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Intervention{}, state.WrapStorage("insert intervention id", err)
	}
	return Intervention{
		ID:        id,
		Action:    action,
		StoryID:   in.StoryID,
		Message:   in.Message,
		RunID:     in.RunID,
		CreatedAt: createdAt,
	}, nil
}

// List returns interventions most recent first, capped at ListLimit.
func (q *Queue) List(ctx context.Context, opts ListOptions) ([]Intervention, error) {
	var conditions []string
	var args []any
	if opts.RunID != "" {
		conditions = append(conditions, "run_id = ?")
		args = append(args, opts.RunID)
	}
	if opts.PendingOnly {
		conditions = append(conditions, "consumed = 0")
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s FROM interventions %s ORDER BY created_at DESC, id DESC LIMIT ?`, columns, where)
	args = append(args, ListLimit)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, state.WrapStorage("list interventions", err)
	}
	defer rows.Close()

	out := []Intervention{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, state.WrapStorage("scan intervention", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, state.WrapStorage("iterate interventions", err)
	}
	return out, nil
}

// ConsumeOne claims the oldest pending intervention for runID. The select
// and the consumed flip happen in one statement, so concurrent pollers can
// never claim the same row. ok is false when nothing is pending.
func (q *Queue) ConsumeOne(ctx context.Context, runID string) (item Intervention, ok bool, err error) {
	if runID == "" {
		return Intervention{}, false, schema.Invalid("run_id", "is required.")
	}
	row := q.db.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE interventions SET consumed = 1
		WHERE consumed = 0 AND id = (
			SELECT id FROM interventions
			WHERE run_id = ? AND consumed = 0
			ORDER BY created_at ASC, id ASC
			LIMIT 1
		)
		RETURNING %s
	`, columns), runID)
	item, err = scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Intervention{}, false, nil
	}
	if err != nil {
		return Intervention{}, false, state.WrapStorage("consume intervention", err)
	}
	return item, true, nil
}

const columns = `id, action, story_id, message, run_id, created_at, consumed`

type rowScanner interface {
	Scan(dest ...any) error
}

func scan(row rowScanner) (Intervention, error) {
	var item Intervention
	var action string
	var storyID, message, runID sql.NullString
	var consumed int64
	if err := row.Scan(&item.ID, &action, &storyID, &message, &runID, &item.CreatedAt, &consumed); err != nil {
		return Intervention{}, err
	}
	item.Action = schema.Action(action)
	item.StoryID = stringPtr(storyID)
	item.Message = stringPtr(message)
	item.RunID = stringPtr(runID)
	item.Consumed = consumed != 0
	return item, nil
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
