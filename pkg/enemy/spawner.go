// Package enemy simulates hostile drones flying over the HUD so the target
// lock game can be played with nothing real in view. Drones are reported as
// detections, so they pass through the same tracker and lock machine as
// camera objects.
package enemy

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-hud/internal/timeutil"
	"github.com/teslashibe/go-hud/pkg/debug"
	"github.com/teslashibe/go-hud/pkg/detection"
	"github.com/teslashibe/go-hud/pkg/feedback"
	"github.com/teslashibe/go-hud/pkg/viewport"
)

// Config holds the spawner parameters. Positions are percentages of the viewport.
type Config struct {
	Class         string
	SpawnInterval time.Duration
	FirstSpawn    time.Duration // Delay before the first drone (0 = first interval)
	MaxEnemies    int
	MinX, MaxX    float64 // Horizontal spawn and bounce band (%)
	MinY, MaxY    float64 // Vertical spawn and bounce band (%)
	MinSize       float64 // Pixels
	MaxSize       float64
	MoveInterval  time.Duration // One movement step per interval
	MaxSpeedX     float64       // Max % per step
	MaxSpeedY     float64
}

// DefaultConfig returns the overlay drone parameters
func DefaultConfig() Config {
	return Config{
		Class:         "drone",
		SpawnInterval: 6 * time.Second,
		FirstSpawn:    3 * time.Second,
		MaxEnemies:    3,
		MinX:          15,
		MaxX:          85,
		MinY:          15,
		MaxY:          65,
		MinSize:       60,
		MaxSize:       100,
		MoveInterval:  50 * time.Millisecond,
		MaxSpeedX:     1.0,
		MaxSpeedY:     0.5,
	}
}

// Drone is one simulated enemy
type Drone struct {
	ID   int     `json:"id"`
	X    float64 `json:"x"` // Center, % of viewport width
	Y    float64 `json:"y"` // Center, % of viewport height
	Size float64 `json:"size"`
	DX   float64 `json:"dx"`
	DY   float64 `json:"dy"`
}

// Box returns the drone's screen box for the viewport
func (d Drone) Box(v viewport.Viewport) viewport.Box {
	cx := d.X / 100 * v.Width
	cy := d.Y / 100 * v.Height
	return viewport.Box{X: cx - d.Size/2, Y: cy - d.Size/2, Width: d.Size, Height: d.Size}
}

// Spawner spawns and moves drones. It is a detection.Source and a
// feedback.Sink: destroyed drones are removed when the HUD reports them.
type Spawner struct {
	cfg   Config
	clock timeutil.Clock

	mu        sync.Mutex
	rng       *rand.Rand
	view      viewport.Viewport
	drones    []*Drone
	nextID    int
	started   bool
	nextSpawn time.Time
	lastMove  time.Time
	destroyed int
}

// NewSpawner creates a spawner. seed makes drone placement reproducible.
func NewSpawner(cfg Config, clock timeutil.Clock, seed int64) *Spawner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Spawner{
		cfg:   cfg,
		clock: clock,
		rng:   rand.New(rand.NewSource(seed)),
		view:  viewport.Viewport{Width: 1280, Height: 720},
	}
}

// SetViewport sets the screen size drones are placed in
func (s *Spawner) SetViewport(v viewport.Viewport) {
	if !v.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// Detect reports the live drones as detections. The frame is ignored.
func (s *Spawner) Detect(ctx context.Context, frame []byte) ([]detection.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Detections(s.clock.Now()), nil
}

// Detections advances the simulation to now and returns the drones
func (s *Spawner) Detections(now time.Time) []detection.Detection {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advanceLocked(now)

	out := make([]detection.Detection, 0, len(s.drones))
	for _, d := range s.drones {
		out = append(out, detection.Detection{
			ClassLabel: s.cfg.Class,
			Confidence: 1.0,
			Box:        d.Box(s.view),
			TrackHint:  strconv.Itoa(d.ID),
		})
	}
	return out
}

func (s *Spawner) advanceLocked(now time.Time) {
	if !s.started {
		s.started = true
		first := s.cfg.FirstSpawn
		if first <= 0 {
			first = s.cfg.SpawnInterval
		}
		s.nextSpawn = now.Add(first)
		s.lastMove = now
	}

	if s.cfg.MoveInterval > 0 {
		steps := int(now.Sub(s.lastMove) / s.cfg.MoveInterval)
		for i := 0; i < steps; i++ {
			for _, d := range s.drones {
				s.step(d)
			}
		}
		s.lastMove = s.lastMove.Add(time.Duration(steps) * s.cfg.MoveInterval)
	}

	for s.cfg.SpawnInterval > 0 && !now.Before(s.nextSpawn) {
		if len(s.drones) < s.cfg.MaxEnemies {
			s.spawnLocked()
		}
		s.nextSpawn = s.nextSpawn.Add(s.cfg.SpawnInterval)
	}
}

// step moves the drone and bounces it off the band edges
func (s *Spawner) step(d *Drone) {
	d.X += d.DX
	d.Y += d.DY
	if d.X < s.cfg.MinX || d.X > s.cfg.MaxX {
		d.DX = -d.DX
	}
	if d.Y < s.cfg.MinY || d.Y > s.cfg.MaxY {
		d.DY = -d.DY
	}
}

// Spawn adds a drone immediately if below the limit
func (s *Spawner) Spawn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.drones) >= s.cfg.MaxEnemies {
		return false
	}
	s.spawnLocked()
	return true
}

func (s *Spawner) spawnLocked() {
	s.nextID++
	d := &Drone{
		ID:   s.nextID,
		X:    s.cfg.MinX + s.rng.Float64()*(s.cfg.MaxX-s.cfg.MinX),
		Y:    s.cfg.MinY + s.rng.Float64()*(s.cfg.MaxY-s.cfg.MinY),
		Size: s.cfg.MinSize + s.rng.Float64()*(s.cfg.MaxSize-s.cfg.MinSize),
		DX:   (s.rng.Float64()*2 - 1) * s.cfg.MaxSpeedX,
		DY:   (s.rng.Float64()*2 - 1) * s.cfg.MaxSpeedY,
	}
	s.drones = append(s.drones, d)
	debug.Log("drone spawned", "id", d.ID, "x", d.X, "y", d.Y, "size", d.Size)
}

// Handle removes a destroyed drone. Targets keyed by a drone's track hint
// are matched by id; anything else falls back to the drone nearest the box.
func (s *Spawner) Handle(e feedback.Event) {
	if e.Kind != feedback.Destroyed || e.Class != s.cfg.Class {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	best := -1
	if hint, ok := strings.CutPrefix(e.Key, s.cfg.Class+"#"); ok {
		id, err := strconv.Atoi(hint)
		if err != nil {
			return
		}
		for i, d := range s.drones {
			if d.ID == id {
				best = i
				break
			}
		}
	} else if e.Box != nil {
		best = s.nearestLocked(e.Box.Center())
	}
	if best < 0 {
		return
	}
	debug.Log("drone destroyed", "id", s.drones[best].ID)
	s.drones = append(s.drones[:best], s.drones[best+1:]...)
	s.destroyed++
}

func (s *Spawner) nearestLocked(c viewport.Point) int {
	best := -1
	bestDist := math.Inf(1)
	for i, d := range s.drones {
		dc := d.Box(s.view).Center()
		if dist := math.Hypot(dc.X-c.X, dc.Y-c.Y); dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

// Drones returns a copy of the live drones
func (s *Spawner) Drones() []Drone {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Drone, len(s.drones))
	for i, d := range s.drones {
		out[i] = *d
	}
	return out
}

// Destroyed returns how many drones have been shot down
func (s *Spawner) Destroyed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}
