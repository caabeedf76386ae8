package hud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-hud/internal/timeutil"
	"github.com/teslashibe/go-hud/pkg/detection"
	"github.com/teslashibe/go-hud/pkg/lock"
)

// loopHarness runs a session on a mock clock and hands back every frame
type loopHarness struct {
	t      *testing.T
	clock  *timeutil.MockClock
	s      *Session
	frames chan Frame
	done   chan error
	cancel context.CancelFunc
}

func startLoop(t *testing.T, cfg Config, src detection.Source, frames FrameSource) *loopHarness {
	t.Helper()
	h := &loopHarness{
		t:      t,
		clock:  timeutil.NewMockClock(t0),
		frames: make(chan Frame, 64),
		done:   make(chan error, 1),
	}
	h.s = NewSession(cfg, src, WithClock(h.clock), WithFrameHandler(func(f Frame) { h.frames <- f }))

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.s.Run(ctx, frames) }()

	require.Eventually(t, func() bool { return h.clock.Tickers() == 1 }, time.Second, time.Millisecond)
	t.Cleanup(h.stop)
	return h
}

// tick advances the clock one interval and waits for the resulting frame
func (h *loopHarness) tick() Frame {
	h.t.Helper()
	h.clock.Advance(h.s.Config().TickInterval)
	return h.next()
}

func (h *loopHarness) next() Frame {
	h.t.Helper()
	select {
	case f := <-h.frames:
		return f
	case <-time.After(2 * time.Second):
		h.t.Fatal("no frame")
		return Frame{}
	}
}

func (h *loopHarness) stop() {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		h.t.Error("loop did not stop")
	}
}

func staticSource(dets ...detection.Detection) detection.Source {
	return detection.SourceFunc(func(ctx context.Context, frame []byte) ([]detection.Detection, error) {
		return dets, nil
	})
}

func TestRun_LocksThroughLoop(t *testing.T) {
	h := startLoop(t, DefaultConfig(), staticSource(centered), nil)

	f := h.tick() // t=100, first scan
	assert.Equal(t, lock.Acquiring, f.Phase)

	for i := 0; i < 11; i++ {
		f = h.tick()
	}
	assert.Zero(t, f.Shots, "1100ms of dwell")
	f = h.tick()
	assert.Equal(t, 1, f.Shots, "fired after 1200ms of dwell")

	for i := 0; i < 12; i++ {
		f = h.tick()
	}
	assert.Equal(t, 1, f.Kills)

	st := h.s.Stats()
	assert.Equal(t, 25, st.Ticks)
	assert.Equal(t, 25, st.Scans)
	assert.Zero(t, st.Failures)
	assert.Zero(t, st.Skipped)
	assert.GreaterOrEqual(t, st.LatencyMean, 0.0)
}

func TestRun_DetectorErrorCountsAsEmpty(t *testing.T) {
	var calls atomic.Int32
	src := detection.SourceFunc(func(ctx context.Context, frame []byte) ([]detection.Detection, error) {
		if calls.Add(1) == 2 {
			return nil, errors.New("model crashed")
		}
		return []detection.Detection{centered}, nil
	})
	h := startLoop(t, DefaultConfig(), src, nil)

	f := h.tick()
	assert.Len(t, f.Objects, 1)

	f = h.tick()
	assert.Len(t, f.Objects, 1, "track outlives one failed scan")
	assert.Equal(t, lock.Acquiring, f.Phase)

	h.tick()
	assert.Equal(t, 1, h.s.Stats().Failures)
	assert.Equal(t, 3, h.s.Stats().Scans)
}

func TestRun_SkipsTicksWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	src := detection.SourceFunc(func(ctx context.Context, frame []byte) ([]detection.Detection, error) {
		if calls.Add(1) == 1 {
			<-release
		}
		return []detection.Detection{centered}, nil
	})
	h := startLoop(t, DefaultConfig(), src, nil)

	// First tick starts the slow call; no frame until it returns
	h.clock.Advance(100 * time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	// Ticks while in flight only advance timers
	f := h.tick()
	assert.Empty(t, f.Objects)
	f = h.tick()
	assert.Empty(t, f.Objects)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	f = h.next()
	assert.Len(t, f.Objects, 1)

	st := h.s.Stats()
	assert.Equal(t, 3, st.Ticks)
	assert.Equal(t, 2, st.Skipped)
	assert.Equal(t, 1, st.Scans)
}

func TestRun_AbandonsStuckDetector(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DetectTimeout = 250 * time.Millisecond

	stuck := make(chan struct{})
	defer close(stuck)
	var calls atomic.Int32
	src := detection.SourceFunc(func(ctx context.Context, frame []byte) ([]detection.Detection, error) {
		if calls.Add(1) == 1 {
			<-stuck // ignores ctx
			return []detection.Detection{centered}, nil
		}
		return nil, nil
	})
	h := startLoop(t, cfg, src, nil)

	h.clock.Advance(100 * time.Millisecond) // t=100, call 1 starts
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	h.tick() // t=200, skipped
	h.tick() // t=300, skipped
	h.tick() // t=400, 300ms in flight: abandoned, call 2 runs

	assert.Equal(t, int32(2), calls.Load())
	st := h.s.Stats()
	assert.Equal(t, 1, st.Abandoned)
	assert.Equal(t, 2, st.Skipped)
}

func TestRun_WaitsForFirstFrame(t *testing.T) {
	var have atomic.Bool
	frames := FrameSourceFunc(func() ([]byte, bool) {
		if !have.Load() {
			return nil, false
		}
		return []byte{0xff, 0xd8}, true
	})
	var got atomic.Int32
	src := detection.SourceFunc(func(ctx context.Context, frame []byte) ([]detection.Detection, error) {
		got.Store(int32(len(frame)))
		return nil, nil
	})
	h := startLoop(t, DefaultConfig(), src, frames)

	h.tick()
	assert.Zero(t, h.s.Stats().Scans)

	have.Store(true)
	h.tick()
	assert.Equal(t, int32(2), got.Load())
	assert.Equal(t, 1, h.s.Stats().Scans)
}

func TestRun_MergedSourceKeepsHealthyDetections(t *testing.T) {
	camera := detection.SourceFunc(func(ctx context.Context, frame []byte) ([]detection.Detection, error) {
		return nil, errors.New("camera model failed")
	})
	h := startLoop(t, DefaultConfig(), detection.Merge(camera, staticSource(centered)), nil)

	f := h.tick()
	assert.Len(t, f.Objects, 1, "drone source still reported")
	assert.Equal(t, lock.Acquiring, f.Phase)

	f = h.tick()
	assert.Len(t, f.Objects, 1)
	assert.Equal(t, lock.Acquiring, f.Phase, "lock survives the camera failure")
	assert.Equal(t, 2, h.s.Stats().Failures)
}

func TestRun_CancelDiscardsPendingResult(t *testing.T) {
	for i := 0; i < 25; i++ {
		release := make(chan struct{})
		var calls atomic.Int32
		src := detection.SourceFunc(func(ctx context.Context, frame []byte) ([]detection.Detection, error) {
			if calls.Add(1) == 1 {
				<-release
			}
			return []detection.Detection{centered}, nil
		})

		entered := make(chan struct{})
		unblock := make(chan struct{})
		var frames atomic.Int32
		var cancelled, applied atomic.Bool
		onFrame := func(f Frame) {
			if frames.Add(1) == 1 {
				close(entered)
				<-unblock
			}
			if cancelled.Load() && len(f.Objects) > 0 {
				applied.Store(true)
			}
		}

		clock := timeutil.NewMockClock(t0)
		s := NewSession(DefaultConfig(), src, WithClock(clock), WithFrameHandler(onFrame))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx, nil) }()
		require.Eventually(t, func() bool { return clock.Tickers() == 1 }, time.Second, time.Millisecond)

		clock.Advance(100 * time.Millisecond) // slow call starts
		require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
		clock.Advance(100 * time.Millisecond) // skipped tick, loop parks in the frame handler
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatal("loop never advanced")
		}

		// The result lands in the buffer while the loop is busy, then the
		// session is torn down before the loop looks at it
		close(release)
		time.Sleep(5 * time.Millisecond)
		cancelled.Store(true)
		cancel()
		close(unblock)

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not stop")
		}
		require.False(t, applied.Load(), "result applied after cancel (run %d)", i)
	}
}

func TestRun_StopLogsFinalStats(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	clock := timeutil.NewMockClock(t0)
	frames := make(chan Frame, 8)
	s := NewSession(DefaultConfig(), staticSource(centered),
		WithClock(clock), WithLogger(logger), WithFrameHandler(func(f Frame) { frames <- f }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, nil) }()
	require.Eventually(t, func() bool { return clock.Tickers() == 1 }, time.Second, time.Millisecond)

	for i := 0; i < 2; i++ {
		clock.Advance(100 * time.Millisecond)
		select {
		case <-frames:
		case <-time.After(2 * time.Second):
			t.Fatal("no frame")
		}
	}
	cancel()
	require.NoError(t, <-done)

	var stopped struct {
		Msg   string `json:"msg"`
		Stats Stats  `json:"stats"`
	}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		require.NoError(t, json.Unmarshal(line, &stopped))
		if stopped.Msg == "hud loop stopped" {
			break
		}
	}
	require.Equal(t, "hud loop stopped", stopped.Msg)
	assert.Equal(t, 2, stopped.Stats.Ticks)
	assert.Equal(t, 2, stopped.Stats.Scans)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 0
	s := NewSession(cfg, staticSource())
	assert.Error(t, s.Run(context.Background(), nil))
}

func TestStatsRecorder_Window(t *testing.T) {
	r := newStatsRecorder()
	assert.Zero(t, r.snapshot().LatencyMean)

	r.observe(10*time.Millisecond, nil)
	assert.InDelta(t, 10.0, r.snapshot().LatencyMean, 1e-9)
	assert.Zero(t, r.snapshot().LatencyStdDev)

	for i := 0; i < latencyWindow; i++ {
		r.observe(20*time.Millisecond, nil)
	}
	st := r.snapshot()
	assert.InDelta(t, 20.0, st.LatencyMean, 1e-9, "old samples fall out of the window")
	assert.InDelta(t, 0.0, st.LatencyStdDev, 1e-9)
	assert.Equal(t, latencyWindow+1, st.Scans)

	r.observe(time.Millisecond, errors.New("boom"))
	assert.Equal(t, 1, r.snapshot().Failures)
}
