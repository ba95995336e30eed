package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestJournal creates a miniredis instance and returns a connected RedisJournal.
func setupTestJournal(t *testing.T) (*RedisJournal, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	j, err := NewRedisJournal(RedisOptions{
		URL:            fmt.Sprintf("redis://%s", mr.Addr()),
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = j.Close()
	})

	return j, mr
}

func TestNewRedisJournal(t *testing.T) {
	t.Run("connection failure", func(t *testing.T) {
		_, err := NewRedisJournal(RedisOptions{
			URL:            "redis://localhost:1",
			ConnectTimeout: 100 * time.Millisecond,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewRedisJournal(RedisOptions{URL: "invalid://url"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse Redis URL")
	})
}

func TestAcquireRelease(t *testing.T) {
	j, mr := setupTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Acquire(ctx, "run-1", time.Minute))
	assert.Equal(t, "run-1", mustGet(t, mr, "ekg:lock"))

	err := j.Acquire(ctx, "run-2", time.Minute)
	require.ErrorIs(t, err, ErrRunLocked)
	assert.Contains(t, err.Error(), "run-1")

	// a run that does not hold the lock cannot release it
	require.NoError(t, j.Release(ctx, "run-2"))
	assert.True(t, mr.Exists("ekg:lock"))

	require.NoError(t, j.Release(ctx, "run-1"))
	assert.False(t, mr.Exists("ekg:lock"))

	require.NoError(t, j.Acquire(ctx, "run-2", time.Minute))
}

func TestAcquire_Expires(t *testing.T) {
	j, mr := setupTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Acquire(ctx, "crashed", time.Minute))
	mr.FastForward(2 * time.Minute)

	require.NoError(t, j.Acquire(ctx, "next", time.Minute))
}

func TestRecordEvents(t *testing.T) {
	j, _ := setupTestJournal(t)
	ctx := context.Background()

	events := []Event{
		{RunID: "r", Kind: KindRunStarted},
		{RunID: "r", Kind: KindPhaseStarted, Phase: "node_by_record"},
		{RunID: "r", Kind: KindStepFinished, Phase: "node_by_record", Type: "Order", Constructor: "Order#0", Attempts: 1, Rows: 3},
		{RunID: "r", Kind: KindPhaseFinished, Phase: "node_by_record"},
	}
	for _, ev := range events {
		require.NoError(t, j.Record(ctx, ev))
	}
	require.NoError(t, j.Record(ctx, Event{RunID: "other", Kind: KindRunStarted}))

	got, err := j.Events(ctx, "r")
	require.NoError(t, err)
	require.Len(t, got, len(events))
	for i, ev := range got {
		assert.Equal(t, events[i].Kind, ev.Kind)
		assert.False(t, ev.Time.IsZero())
	}
	assert.Equal(t, "Order#0", got[2].Constructor)
	assert.Equal(t, int64(3), got[2].Rows)

	summary, err := j.Summary(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "running", summary["status"])
	assert.Equal(t, "node_by_record", summary["phase"])
}

func TestRecord_Failure(t *testing.T) {
	j, _ := setupTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, Event{RunID: "r", Kind: KindRunFailed, Phase: "df", Error: "fatal batch"}))

	summary, err := j.Summary(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "failed", summary["status"])
	assert.Equal(t, "fatal batch", summary["error"])
}

func TestRecord_Publishes(t *testing.T) {
	j, _ := setupTestJournal(t)
	ctx := context.Background()

	sub := j.client.Subscribe(ctx, "ekg:runs:r")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, j.Record(ctx, Event{RunID: "r", Kind: KindRunFinished}))

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, `"kind":"run_finished"`)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for published event")
	}
}

func TestEvents_Empty(t *testing.T) {
	j, _ := setupTestJournal(t)

	got, err := j.Events(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNopJournal(t *testing.T) {
	var j Journal = NopJournal{}
	ctx := context.Background()

	assert.NoError(t, j.Acquire(ctx, "a", time.Second))
	assert.NoError(t, j.Acquire(ctx, "b", time.Second))
	assert.NoError(t, j.Record(ctx, Event{RunID: "a"}))
	events, err := j.Events(ctx, "a")
	assert.NoError(t, err)
	assert.Nil(t, events)
	assert.NoError(t, j.Release(ctx, "a"))
	assert.NoError(t, j.Close())
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
