// Package hud ties the tracker, reticle resolver, lock machine and distance
// estimator into a HUD session driven by a ticking loop.
package hud

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-hud/internal/log"
	"github.com/teslashibe/go-hud/internal/timeutil"
	"github.com/teslashibe/go-hud/pkg/detection"
	"github.com/teslashibe/go-hud/pkg/distance"
	"github.com/teslashibe/go-hud/pkg/feedback"
	"github.com/teslashibe/go-hud/pkg/lock"
	"github.com/teslashibe/go-hud/pkg/reticle"
	"github.com/teslashibe/go-hud/pkg/tracker"
	"github.com/teslashibe/go-hud/pkg/viewport"
)

// Frame is the HUD state after one tick
type Frame struct {
	Seq          uint64                  `json:"seq"`
	At           time.Time               `json:"at"`
	Phase        lock.Phase              `json:"phase"`
	TargetID     string                  `json:"targetId,omitempty"`
	Target       *tracker.TrackedObject  `json:"target,omitempty"`
	Distance     float64                 `json:"distance"` // Meters, 0 = unknown
	DistanceText string                  `json:"distanceText"`
	Progress     float64                 `json:"progress"` // Dwell progress 0-1
	Objects      []tracker.TrackedObject `json:"objects"`
	Kills        int                     `json:"kills"`
	Shots        int                     `json:"shots"`
	Events       []feedback.Event        `json:"events,omitempty"`
}

// Option configures a Session
type Option func(*Session)

// WithClock replaces the real clock, for deterministic tests
func WithClock(c timeutil.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithSink adds a feedback sink. Sinks are called from the loop goroutine.
func WithSink(sink feedback.Sink) Option {
	return func(s *Session) { s.sinks = append(s.sinks, sink) }
}

// WithEstimator replaces the default distance estimator
func WithEstimator(e *distance.Estimator) Option {
	return func(s *Session) { s.estimator = e }
}

// WithID sets the session id instead of a random one
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithFrameHandler registers a callback invoked with every frame
func WithFrameHandler(fn func(Frame)) Option {
	return func(s *Session) { s.onFrame = fn }
}

// WithLogger replaces the "hud" component logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is one HUD instance: the tracker, lock machine and estimator for a
// single screen. Step and Advance must be called from one goroutine at a
// time; Run does this for you. Snapshot and Stats are safe from any goroutine.
type Session struct {
	id        string
	cfg       Config
	detector  detection.Source
	clock     timeutil.Clock
	tracker   *tracker.Tracker
	machine   *lock.Machine
	resolver  reticle.Resolver
	estimator *distance.Estimator
	sinks     feedback.Multi
	onFrame   func(Frame)
	logger    *slog.Logger

	mu    sync.RWMutex
	view  viewport.Viewport
	last  Frame
	seq   uint64
	stats *statsRecorder

	resetRequested atomic.Bool
}

// NewSession creates a session reading detections from detector
func NewSession(cfg Config, detector detection.Source, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		detector:  detector,
		clock:     timeutil.RealClock{},
		resolver:  reticle.Resolver{Margin: cfg.ReticleMargin},
		estimator: distance.NewEstimator(),
		view:      cfg.Viewport,
		stats:     newStatsRecorder(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tracker = tracker.New(cfg.Tracker)
	s.machine = lock.New(cfg.Lock, s.tracker)
	if s.logger == nil {
		s.logger = log.Component("hud")
	}
	s.logger = s.logger.With("session", s.id)
	s.last = Frame{Phase: lock.NoTarget, DistanceText: distance.Format(distance.Unknown)}
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Config returns the session configuration
func (s *Session) Config() Config {
	return s.cfg
}

// Tracker exposes the session's tracker
func (s *Session) Tracker() *tracker.Tracker {
	return s.tracker
}

// SetViewport updates the screen size; the reticle is its center
func (s *Session) SetViewport(v viewport.Viewport) {
	if !v.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// Viewport returns the current screen size
func (s *Session) Viewport() viewport.Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// SetRoom installs a room calibration on the distance estimator
func (s *Session) SetRoom(rc *distance.RoomCalibration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.estimator.Room = rc
}

// Step processes a fresh detection result
func (s *Session) Step(dets []detection.Detection, now time.Time) Frame {
	s.applyReset()
	res := s.tracker.Update(dets, now)
	return s.tick(now, res.Objects, res.Expired, res.Events)
}

// Advance ticks without a new detection result: tracks may expire and the
// lock timer runs on the last known boxes
func (s *Session) Advance(now time.Time) Frame {
	s.applyReset()
	expired := s.tracker.Expire(now)
	return s.tick(now, s.tracker.Objects(), expired, nil)
}

func (s *Session) tick(now time.Time, objs, expired []tracker.TrackedObject, events []feedback.Event) Frame {
	view := s.Viewport()

	// Keep target data for decorating events after the machine removes it
	known := make(map[string]tracker.TrackedObject, len(objs)+len(expired))
	for _, o := range expired {
		known[o.ID] = o
	}
	for _, o := range objs {
		known[o.ID] = o
	}

	for _, o := range expired {
		events = append(events, s.machine.TargetLost(o.ID, now)...)
	}

	target, _ := s.resolver.Resolve(objs, view.Center())
	events = append(events, s.machine.Tick(target, now)...)

	for i := range events {
		events[i] = s.decorate(events[i], known, view)
		s.sinks.Handle(events[i])
	}

	state := s.machine.State()
	f := Frame{
		At:       now,
		Phase:    state.Phase,
		TargetID: state.TargetID,
		Progress: s.machine.Progress(now),
		Objects:  s.tracker.Objects(),
		Kills:    state.Kills,
		Shots:    state.Shots,
		Events:   events,
	}
	if obj, ok := s.tracker.Get(state.TargetID); ok {
		f.Target = &obj
		f.Distance = s.distanceFor(obj, view)
	}
	f.DistanceText = distance.Format(f.Distance)

	s.mu.Lock()
	s.seq++
	f.Seq = s.seq
	s.last = f
	s.mu.Unlock()

	if s.onFrame != nil {
		s.onFrame(f)
	}
	return f
}

func (s *Session) decorate(e feedback.Event, known map[string]tracker.TrackedObject, view viewport.Viewport) feedback.Event {
	e.SessionID = s.id
	if obj, ok := known[e.TargetID]; ok {
		e.Key = obj.Key
		if e.Class == "" {
			e.Class = obj.ClassLabel
		}
		if e.Box == nil {
			box := obj.Box
			e.Box = &box
		}
		e.Distance = s.distanceFor(obj, view)
	}
	return feedback.Decorate(e)
}

func (s *Session) distanceFor(obj tracker.TrackedObject, view viewport.Viewport) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.estimator.ForClass(obj.ClassLabel, obj.Box.Height, view.Height)
}

// Snapshot returns the most recent frame
func (s *Session) Snapshot() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// LockState returns the lock machine state. Call from the loop goroutine.
func (s *Session) LockState() lock.State {
	return s.machine.State()
}

func (s *Session) applyReset() {
	if s.resetRequested.Swap(false) {
		s.tracker.Reset()
		s.machine.Reset()
	}
}

// RequestReset asks the loop to clear every track and the lock state before
// its next tick. Safe from any goroutine.
func (s *Session) RequestReset() {
	s.resetRequested.Store(true)
}

// Reset clears every track and the lock state. Call from the loop goroutine.
func (s *Session) Reset() {
	s.tracker.Reset()
	s.machine.Reset()
	s.mu.Lock()
	s.last = Frame{Phase: lock.NoTarget, DistanceText: distance.Format(distance.Unknown)}
	s.mu.Unlock()
}
