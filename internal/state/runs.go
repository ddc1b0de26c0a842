package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Run struct {
	ID           string          `json:"id"`
	StartedAt    string          `json:"started_at"`
	EndedAt      *string         `json:"ended_at"`
	Mode         string          `json:"mode"`
	Model        *string         `json:"model"`
	Branch       *string         `json:"branch"`
	TotalStories *int64          `json:"total_stories"`
	Completed    int64           `json:"completed"`
	Skipped      int64           `json:"skipped"`
	Config       json.RawMessage `json:"config"`
}

// RunUpdate is a partial run update. Only fields with Set are written.
type RunUpdate struct {
	EndedAt      Optional[string]
	Mode         Optional[string]
	Model        Optional[string]
	Branch       Optional[string]
	TotalStories Optional[int64]
	Completed    Optional[int64]
	Skipped      Optional[int64]
	Config       Optional[json.RawMessage]
}

// Empty reports whether the update touches no field.
func (u RunUpdate) Empty() bool {
	return !u.EndedAt.Set && !u.Mode.Set && !u.Model.Set && !u.Branch.Set &&
		!u.TotalStories.Set && !u.Completed.Set && !u.Skipped.Set && !u.Config.Set
}

const runColumns = `id, started_at, ended_at, mode, model, branch, total_stories, completed, skipped, config`

// CreateRun inserts a new run. It fails with ErrDuplicateRun when the id is taken.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, nullString(run.EndedAt), run.Mode, nullString(run.Model), nullString(run.Branch),
		nullInt(run.TotalStories), run.Completed, run.Skipped, jsonText(run.Config))
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("create run %q: %w", run.ID, ErrDuplicateRun)
		}
		return WrapStorage("insert run", err)
	}
	return nil
}

// UpdateRun applies the fields present in u. An empty update is a no-op, and
// an unknown id silently matches nothing.
func (s *Store) UpdateRun(ctx context.Context, id string, u RunUpdate) error {
	if u.Empty() {
		return nil
	}
	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if u.EndedAt.Set {
		add("ended_at", u.EndedAt.arg())
	}
	if u.Mode.Set {
		add("mode", u.Mode.arg())
	}
	if u.Model.Set {
		add("model", u.Model.arg())
	}
	if u.Branch.Set {
		add("branch", u.Branch.arg())
	}
	if u.TotalStories.Set {
		add("total_stories", u.TotalStories.arg())
	}
	if u.Completed.Set {
		add("completed", u.Completed.Value)
	}
	if u.Skipped.Set {
		add("skipped", u.Skipped.Value)
	}
	if u.Config.Set {
		if u.Config.Valid {
			add("config", jsonText(u.Config.Value))
		} else {
			add("config", emptyObject)
		}
	}
	args = append(args, id)
	if _, err := s.q.ExecContext(ctx, `UPDATE runs SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return WrapStorage("update run", err)
	}
	return nil
}

// GetRuns lists runs newest first by started_at.
func (s *Store) GetRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	rows, err := s.q.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, WrapStorage("list runs", err)
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapStorage("iterate runs", err)
	}
	return out, nil
}

// GetRunByID returns the run and true, or false when it does not exist.
func (s *Store) GetRunByID(ctx context.Context, id string) (Run, bool, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, ErrNotFound) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return run, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var endedAt, model, branch, config sql.NullString
	var total sql.NullInt64
	err := row.Scan(&run.ID, &run.StartedAt, &endedAt, &run.Mode, &model, &branch, &total, &run.Completed, &run.Skipped, &config)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, WrapStorage("scan run", err)
	}
	run.EndedAt = stringPtr(endedAt)
	run.Model = stringPtr(model)
	run.Branch = stringPtr(branch)
	run.TotalStories = intPtr(total)
	run.Config = rawJSON(config)
	return run, nil
}
