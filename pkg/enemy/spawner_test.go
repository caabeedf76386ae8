package enemy

import (
	"context"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/teslashibe/go-hud/internal/timeutil"
	"github.com/teslashibe/go-hud/pkg/feedback"
	"github.com/teslashibe/go-hud/pkg/viewport"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestSpawner_FirstSpawnAndInterval(t *testing.T) {
	s := NewSpawner(DefaultConfig(), nil, 1)

	if n := len(s.Detections(t0)); n != 0 {
		t.Fatalf("drones at start = %d, want 0", n)
	}
	if n := len(s.Detections(t0.Add(2999 * time.Millisecond))); n != 0 {
		t.Errorf("drones before first spawn = %d, want 0", n)
	}
	if n := len(s.Detections(t0.Add(3 * time.Second))); n != 1 {
		t.Errorf("drones after first spawn = %d, want 1", n)
	}
	if n := len(s.Detections(t0.Add(9 * time.Second))); n != 2 {
		t.Errorf("drones after second interval = %d, want 2", n)
	}
}

func TestSpawner_MaxEnemies(t *testing.T) {
	s := NewSpawner(DefaultConfig(), nil, 1)
	s.Detections(t0)

	dets := s.Detections(t0.Add(time.Minute))
	if len(dets) != 3 {
		t.Errorf("drones after a minute = %d, want max 3", len(dets))
	}
	if s.Spawn() {
		t.Error("Spawn() succeeded above the limit")
	}
}

func TestSpawner_Placement(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MoveInterval = 0
	s := NewSpawner(cfg, nil, 42)
	s.SetViewport(viewport.Viewport{Width: 1000, Height: 1000})

	for i := 0; i < 3; i++ {
		s.Spawn()
	}

	for _, d := range s.Drones() {
		if d.X < 15 || d.X > 85 || d.Y < 15 || d.Y > 65 {
			t.Errorf("drone %d at %.1f%%,%.1f%% outside spawn band", d.ID, d.X, d.Y)
		}
		if d.Size < 60 || d.Size > 100 {
			t.Errorf("drone %d size %.1f outside 60-100", d.ID, d.Size)
		}
		b := d.Box(viewport.Viewport{Width: 1000, Height: 1000})
		if c := b.Center(); math.Abs(c.X-d.X*10) > 1e-9 || math.Abs(c.Y-d.Y*10) > 1e-9 {
			t.Errorf("box center %v does not match drone position", c)
		}
	}
}

func TestSpawner_Bounce(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSpawner(cfg, nil, 7)
	s.Detections(t0)
	s.Spawn()

	// Ten minutes of movement must stay near the band
	now := t0
	for i := 0; i < 600; i++ {
		now = now.Add(time.Second)
		s.Detections(now)
		for _, d := range s.Drones() {
			if d.X < cfg.MinX-2*cfg.MaxSpeedX || d.X > cfg.MaxX+2*cfg.MaxSpeedX {
				t.Fatalf("drone escaped horizontally: x=%.2f", d.X)
			}
			if d.Y < cfg.MinY-2*cfg.MaxSpeedY || d.Y > cfg.MaxY+2*cfg.MaxSpeedY {
				t.Fatalf("drone escaped vertically: y=%.2f", d.Y)
			}
		}
	}
}

func TestSpawner_StableTrackHint(t *testing.T) {
	s := NewSpawner(DefaultConfig(), nil, 3)
	s.Detections(t0)
	s.Spawn()

	a := s.Detections(t0.Add(100 * time.Millisecond))
	b := s.Detections(t0.Add(500 * time.Millisecond))
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("got %d and %d detections, want 1", len(a), len(b))
	}
	if a[0].TrackHint == "" || a[0].TrackHint != b[0].TrackHint {
		t.Errorf("track hint changed: %q -> %q", a[0].TrackHint, b[0].TrackHint)
	}
	if a[0].ClassLabel != "drone" || a[0].Confidence != 1 {
		t.Errorf("unexpected detection %+v", a[0])
	}
}

func TestSpawner_HandleDestroyed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MoveInterval = 0
	s := NewSpawner(cfg, nil, 5)
	s.Spawn()
	s.Spawn()

	v := viewport.Viewport{Width: 1280, Height: 720}
	target := s.Drones()[1]
	box := target.Box(v)

	// Other kinds and classes are ignored
	s.Handle(feedback.Event{Kind: feedback.Fire, Class: "drone", Box: &box})
	s.Handle(feedback.Event{Kind: feedback.Destroyed, Class: "person", Box: &box})
	if n := len(s.Drones()); n != 2 {
		t.Fatalf("drones = %d, want 2", n)
	}

	s.Handle(feedback.Event{Kind: feedback.Destroyed, Class: "drone", Box: &box})
	left := s.Drones()
	if len(left) != 1 || left[0].ID == target.ID {
		t.Errorf("wrong drone removed: %+v", left)
	}
	if s.Destroyed() != 1 {
		t.Errorf("Destroyed() = %d, want 1", s.Destroyed())
	}
}

func TestSpawner_HandleDestroyedByKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MoveInterval = 0
	s := NewSpawner(cfg, nil, 5)
	s.Spawn()
	s.Spawn()

	v := viewport.Viewport{Width: 1280, Height: 720}
	drones := s.Drones()
	lagging := drones[0].Box(v) // smoothed box still sits on the other drone
	key := "drone#" + strconv.Itoa(drones[1].ID)

	s.Handle(feedback.Event{Kind: feedback.Destroyed, Class: "drone", Key: key, Box: &lagging})
	left := s.Drones()
	if len(left) != 1 || left[0].ID != drones[0].ID {
		t.Fatalf("wrong drone removed: %+v", left)
	}

	// A drone that is already gone is not replaced by its neighbour
	s.Handle(feedback.Event{Kind: feedback.Destroyed, Class: "drone", Key: key, Box: &lagging})
	if n := len(s.Drones()); n != 1 {
		t.Errorf("drones = %d, want 1", n)
	}
	if s.Destroyed() != 1 {
		t.Errorf("Destroyed() = %d, want 1", s.Destroyed())
	}
}

func TestSpawner_DetectUsesClock(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	s := NewSpawner(DefaultConfig(), clock, 1)

	if dets, _ := s.Detect(context.Background(), nil); len(dets) != 0 {
		t.Fatalf("drones at start = %d", len(dets))
	}
	clock.Advance(3 * time.Second)
	dets, err := s.Detect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(dets) != 1 {
		t.Errorf("drones after 3s = %d, want 1", len(dets))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Detect(ctx, nil); err == nil {
		t.Error("Detect with cancelled context should fail")
	}
}
