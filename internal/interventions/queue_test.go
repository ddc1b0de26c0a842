package interventions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/flitsinc/taskplex-monitor/internal/schema"
	"github.com/flitsinc/taskplex-monitor/internal/testutil"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, closeFn := testutil.OpenTestDB(t)
	t.Cleanup(closeFn)
	q := NewQueue(db)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	q.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return q
}

func strPtr(s string) *string { return &s }

func TestEnqueueValidatesAction(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, Input{Action: "explode"})
	require.Error(t, err)
	assert.True(t, schema.IsValidation(err))

	_, err = q.Enqueue(ctx, Input{})
	require.Error(t, err)
	assert.True(t, schema.IsValidation(err))

	items, err := q.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, items)

	item, err := q.Enqueue(ctx, Input{Action: "hint", StoryID: strPtr("s1"), Message: strPtr("check the tests"), RunID: strPtr("r1")})
	require.NoError(t, err)
	assert.NotZero(t, item.ID)
	assert.Equal(t, schema.ActionHint, item.Action)
	assert.Equal(t, "s1", *item.StoryID)
	assert.Equal(t, "check the tests", *item.Message)
	assert.False(t, item.Consumed)
	assert.Equal(t, "2024-01-01T00:00:01.000000000Z", item.CreatedAt)
}

func TestConsumeOneOldestFirstPerRun(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	pause, err := q.Enqueue(ctx, Input{Action: "pause", RunID: strPtr("r1")})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, Input{Action: "skip", RunID: strPtr("r2")})
	require.NoError(t, err)
	resume, err := q.Enqueue(ctx, Input{Action: "resume", RunID: strPtr("r1")})
	require.NoError(t, err)

	got, ok, err := q.ConsumeOne(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pause.ID, got.ID)
	assert.Equal(t, schema.ActionPause, got.Action)
	assert.True(t, got.Consumed)

	got, ok, err = q.ConsumeOne(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, resume.ID, got.ID)

	_, ok, err = q.ConsumeOne(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, ok)

	pending, err := q.List(ctx, ListOptions{PendingOnly: true})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r2", *pending[0].RunID)
}

func TestConsumeOneRequiresRun(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Enqueue(context.Background(), Input{Action: "pause"})
	require.NoError(t, err)

	_, _, err = q.ConsumeOne(context.Background(), "")
	require.Error(t, err)
	assert.True(t, schema.IsValidation(err))

	// Unscoped interventions are never claimed by a run poller.
	_, ok, err := q.ConsumeOne(context.Background(), "r1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListMostRecentFirstCapped(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < ListLimit+5; i++ {
		_, err := q.Enqueue(ctx, Input{Action: "hint", RunID: strPtr("r1")})
		require.NoError(t, err)
	}
	last, err := q.Enqueue(ctx, Input{Action: "skip", RunID: strPtr("r2")})
	require.NoError(t, err)

	all, err := q.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, ListLimit)
	assert.Equal(t, last.ID, all[0].ID)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i-1].CreatedAt, all[i].CreatedAt)
	}

	scoped, err := q.List(ctx, ListOptions{RunID: "r2"})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, schema.ActionSkip, scoped[0].Action)
}

func TestConsumeOneConcurrentPollers(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	const pending = 5
	const pollers = 12
	for i := 0; i < pending; i++ {
		_, err := q.Enqueue(ctx, Input{Action: "hint", RunID: strPtr("r1")})
		require.NoError(t, err)
	}

	var mu sync.Mutex
	claimed := map[int64]int{}
	misses := 0
	var g errgroup.Group
	for i := 0; i < pollers; i++ {
		g.Go(func() error {
			item, ok, err := q.ConsumeOne(ctx, "r1")
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				claimed[item.ID]++
			} else {
				misses++
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, claimed, pending)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "intervention %d claimed %d times", id, n)
	}
	assert.Equal(t, pollers-pending, misses)
}
