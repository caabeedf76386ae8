// Package feedback defines the events the HUD core emits for the display,
// audio and haptic layers, and the sinks that consume them.
package feedback

import (
	"sync"
	"time"

	"github.com/teslashibe/go-hud/pkg/viewport"
)

// Kind identifies a feedback event
type Kind string

const (
	PhaseChanged      Kind = "phase"
	LockBegin         Kind = "lockBegin"
	Locked            Kind = "locked"
	Fire              Kind = "fire"
	Destroyed         Kind = "destroyed"
	TargetLost        Kind = "targetLost"
	NewObjectDetected Kind = "newObjectDetected"
)

// Kinds lists every event kind in emission order of a full engagement
var Kinds = []Kind{NewObjectDetected, LockBegin, Locked, Fire, Destroyed, TargetLost, PhaseChanged}

// Event is a single feedback notification. Fields that do not apply to a kind are zero.
type Event struct {
	Kind      Kind          `json:"kind"`
	SessionID string        `json:"sessionId,omitempty"`
	TargetID  string        `json:"targetId,omitempty"`
	Key       string        `json:"key,omitempty"` // Tracker identity key of the target
	Class     string        `json:"class,omitempty"`
	Box       *viewport.Box `json:"box,omitempty"`
	From      string        `json:"from,omitempty"`
	To        string        `json:"to,omitempty"`
	Distance  float64       `json:"distance,omitempty"`  // Meters, 0 = unknown
	HitPoints *int          `json:"hitPoints,omitempty"` // Remaining, set on fire
	Haptic    []int         `json:"haptic,omitempty"`    // Vibration pattern in ms
	Cue       string        `json:"cue,omitempty"`       // Audio cue name
	At        time.Time     `json:"at"`
}

// Haptic patterns per event kind, in milliseconds (vibrate, pause, vibrate, ...)
var hapticPatterns = map[Kind][]int{
	LockBegin:         {50},
	Fire:              {50, 30, 100},
	Destroyed:         {100, 50, 100, 50, 200},
	NewObjectDetected: {30},
}

// HapticPattern returns a copy of the vibration pattern for kind, or nil
func HapticPattern(k Kind) []int {
	p, ok := hapticPatterns[k]
	if !ok {
		return nil
	}
	return append([]int(nil), p...)
}

// CueFor returns the audio cue name played for kind ("" when silent)
func CueFor(k Kind) string {
	switch k {
	case LockBegin, Locked, Fire, Destroyed, NewObjectDetected:
		return string(k)
	}
	return ""
}

// Decorate fills the haptic pattern and cue for the event's kind
func Decorate(e Event) Event {
	if e.Haptic == nil {
		e.Haptic = HapticPattern(e.Kind)
	}
	if e.Cue == "" {
		e.Cue = CueFor(e.Kind)
	}
	return e
}

// Remaining returns a pointer to n for Event.HitPoints
func Remaining(n int) *int {
	return &n
}

// Sink consumes feedback events. Handle must not block the HUD loop for long.
type Sink interface {
	Handle(e Event)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(e Event)

// Handle calls f
func (f SinkFunc) Handle(e Event) { f(e) }

// Multi fans every event out to each sink in order
type Multi []Sink

// Handle forwards e to every non-nil sink
func (m Multi) Handle(e Event) {
	for _, s := range m {
		if s != nil {
			s.Handle(e)
		}
	}
}

// Discard drops every event
var Discard Sink = SinkFunc(func(Event) {})

// Recorder stores every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle records e
func (r *Recorder) Handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events, in order
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// Reset clears the recorded events
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
