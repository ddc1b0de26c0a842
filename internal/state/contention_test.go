package state_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flitsinc/taskplex-monitor/internal/state"
)

func TestAppendEventLockTimeoutIsRetryable(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "busy.db"), 50*time.Millisecond)
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = tx.Exec(`INSERT INTO runs (id, started_at, mode) VALUES ('hold', '2024-01-01T00:00:00Z', 'sequential')`)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	store := state.NewStore(db)
	_, err = store.AppendEvent(context.Background(), state.EventInput{
		Timestamp: "2024-01-01T00:00:00Z",
		Source:    "hook",
		EventType: "story.start",
	})
	require.Error(t, err)
	assert.True(t, state.IsRetryable(err), "expected retryable lock timeout, got %v", err)
}
