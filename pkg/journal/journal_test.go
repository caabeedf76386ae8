package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-hud/pkg/feedback"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func openTest(t *testing.T, opts ...Option) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func event(kind feedback.Kind, ms int) feedback.Event {
	return feedback.Event{
		Kind:      kind,
		SessionID: "s1",
		TargetID:  "obj-1",
		Class:     "drone",
		At:        t0.Add(time.Duration(ms) * time.Millisecond),
	}
}

func TestOpen_Migrates(t *testing.T) {
	j := openTest(t)
	version, dirty, err := j.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, event(feedback.Fire, 0)))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()
	entries, err := j.Entries(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecord_RoundTrip(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	fire := event(feedback.Fire, 1200)
	fire.Distance = 4.5
	fire.HitPoints = feedback.Remaining(50)
	require.NoError(t, j.Record(ctx, fire))
	require.NoError(t, j.Record(ctx, event(feedback.LockBegin, 0)))

	entries, err := j.Entries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first
	assert.Equal(t, "lockBegin", entries[0].Kind)
	assert.Nil(t, entries[0].HitPoints)

	got := entries[1]
	assert.Equal(t, "fire", got.Kind)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "obj-1", got.TargetID)
	assert.Equal(t, "drone", got.Class)
	assert.Equal(t, 4.5, got.Distance)
	require.NotNil(t, got.HitPoints)
	assert.Equal(t, 50, *got.HitPoints)
	assert.True(t, got.At.Equal(fire.At))
}

func TestRecord_SkipsPhaseChanges(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, event(feedback.PhaseChanged, 0)))
	entries, err := j.Entries(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecord_Capped(t *testing.T) {
	j := openTest(t, WithCapacity(5))
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		e := event(feedback.Fire, i)
		e.HitPoints = feedback.Remaining(i)
		require.NoError(t, j.Record(ctx, e))
	}

	entries, err := j.Entries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, 7, *entries[0].HitPoints)
	assert.Equal(t, 3, *entries[4].HitPoints)

	limited, err := j.Entries(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStats(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	kill := func(session, class string, dist float64) {
		e := event(feedback.Destroyed, 0)
		e.SessionID = session
		e.Class = class
		e.Distance = dist
		require.NoError(t, j.Record(ctx, e))
	}
	for _, k := range []feedback.Kind{
		feedback.NewObjectDetected, feedback.LockBegin, feedback.Locked,
		feedback.Fire, feedback.Fire, feedback.TargetLost,
	} {
		require.NoError(t, j.Record(ctx, event(k, 0)))
	}
	kill("s1", "drone", 2)
	kill("s2", "drone", 4)
	kill("s2", "person", 0) // unknown distance

	st, err := j.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, st.Entries)
	assert.Equal(t, 2, st.Sessions)
	assert.Equal(t, 1, st.NewObjects)
	assert.Equal(t, 1, st.Acquisitions)
	assert.Equal(t, 1, st.Locks)
	assert.Equal(t, 2, st.Shots)
	assert.Equal(t, 3, st.Kills)
	assert.Equal(t, 1, st.Lost)
	assert.InDelta(t, 3.0, st.MeanKillDistance, 1e-9)
	assert.Equal(t, map[string]int{"drone": 2, "person": 1}, st.KillsByClass)
}

func TestStats_Empty(t *testing.T) {
	j := openTest(t)
	st, err := j.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Entries)
	assert.Zero(t, st.MeanKillDistance)
	assert.NotNil(t, st.KillsByClass)
}

func TestClear(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	require.NoError(t, j.Record(ctx, event(feedback.Fire, 0)))
	require.NoError(t, j.Clear(ctx))

	entries, err := j.Entries(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClosed(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	ctx := context.Background()
	assert.True(t, errors.Is(j.Record(ctx, event(feedback.Fire, 0)), ErrClosed))
	_, err = j.Entries(ctx, 0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = j.Stats(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, j.Close(), ErrClosed)
}

func TestSink_WritesInBackground(t *testing.T) {
	j := openTest(t)
	sink := j.NewSink(16)

	sink.Handle(event(feedback.LockBegin, 0))
	sink.Handle(event(feedback.PhaseChanged, 0))
	sink.Handle(event(feedback.Fire, 100))
	sink.Close()
	sink.Close()

	entries, err := j.Entries(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Zero(t, sink.Dropped())
	assert.Zero(t, sink.Failed())

	sink.Handle(event(feedback.Fire, 200))
	assert.Equal(t, int64(1), sink.Dropped())
}

func TestSink_ImplementsFeedbackSink(t *testing.T) {
	j := openTest(t)
	sink := j.NewSink(0)
	defer sink.Close()

	var _ feedback.Sink = sink
}
