package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flitsinc/taskplex-monitor/internal/schema"
)

func TestRunCreate(t *testing.T) {
	run, err := Run([]byte(`{"id":"r1","started_at":"2024-01-01T00:00:00Z","mode":"sequential","total_stories":2,"config":"{\"max\": 3}"}`))
	require.NoError(t, err)
	assert.Equal(t, "r1", run.ID)
	assert.Equal(t, "sequential", run.Mode)
	assert.Equal(t, int64(2), *run.TotalStories)
	assert.Nil(t, run.EndedAt)
	assert.Equal(t, int64(0), run.Completed)
	assert.JSONEq(t, `{"max":3}`, string(run.Config))

	run, err = Run([]byte(`{"id":"r2","started_at":"2024-01-01T00:00:00Z","mode":"parallel"}`))
	require.NoError(t, err)
	assert.Nil(t, run.TotalStories)
	assert.JSONEq(t, `{}`, string(run.Config))
}

func TestRunCreateRejects(t *testing.T) {
	for _, input := range []string{
		`{"started_at":"2024","mode":"sequential"}`,
		`{"id":"r1","mode":"sequential"}`,
		`{"id":"r1","started_at":"2024"}`,
		`{"id":"r1","started_at":"2024","mode":"batch"}`,
		`{"id":"r1","started_at":"2024","mode":"parallel","total_stories":"two"}`,
		`{"id":"r1","started_at":"2024","mode":"parallel","config":[1]}`,
		`[]`,
	} {
		_, err := Run([]byte(input))
		assert.True(t, schema.IsValidation(err), "input %s: %v", input, err)
	}
}

func TestRunUpdatePartial(t *testing.T) {
	u, err := RunUpdate([]byte(`{}`))
	require.NoError(t, err)
	assert.True(t, u.Empty())

	u, err = RunUpdate([]byte(`{"ended_at":"2024-01-01T01:00:00Z","completed":3,"branch":null,"skipped":null,"id":"ignored"}`))
	require.NoError(t, err)
	assert.False(t, u.Empty())
	assert.True(t, u.EndedAt.Valid)
	assert.Equal(t, "2024-01-01T01:00:00Z", u.EndedAt.Value)
	assert.Equal(t, int64(3), u.Completed.Value)
	assert.True(t, u.Branch.Set)
	assert.False(t, u.Branch.Valid)
	assert.True(t, u.Skipped.Valid)
	assert.Equal(t, int64(0), u.Skipped.Value)
	assert.False(t, u.Model.Set)
	assert.False(t, u.Mode.Set)

	u, err = RunUpdate([]byte(`{"config":null}`))
	require.NoError(t, err)
	assert.True(t, u.Config.Set)
	assert.False(t, u.Config.Valid)
}

func TestRunUpdateRejects(t *testing.T) {
	for _, input := range []string{
		`{"mode":null}`,
		`{"mode":"serial"}`,
		`{"completed":"1"}`,
		`{"ended_at":12}`,
		`"x"`,
	} {
		_, err := RunUpdate([]byte(input))
		assert.True(t, schema.IsValidation(err), "input %s: %v", input, err)
	}
}
