package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/flitsinc/taskplex-monitor/internal/state"
)

// OpenTestDB opens a migrated monitor database in a per-test temp directory.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitor.db")
	db, err := state.Open(path, state.DefaultBusyTimeout)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db, func() {
		_ = db.Close()
	}
}

// OpenTestStore returns an event store over a fresh database that is closed
// when the test ends.
func OpenTestStore(t *testing.T) *state.Store {
	t.Helper()
	db, closeFn := OpenTestDB(t)
	t.Cleanup(closeFn)
	return state.NewStore(db)
}
