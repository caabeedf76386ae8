// Package lock implements the target-lock state machine: a target held under
// the reticle for the dwell time locks, fires, and re-arms until destroyed.
package lock

import (
	"time"

	"github.com/teslashibe/go-hud/pkg/debug"
	"github.com/teslashibe/go-hud/pkg/feedback"
)

// Phase is the lock phase
type Phase int

const (
	NoTarget Phase = iota
	Acquiring
	Locked
	Fired
)

var phaseNames = [...]string{"NO_TARGET", "ACQUIRING", "LOCKED", "FIRED"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "UNKNOWN"
	}
	return phaseNames[p]
}

// MarshalText renders the phase name in JSON
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Targets is the target store the machine acts on when it locks and fires.
// *tracker.Tracker satisfies it.
type Targets interface {
	MarkScanned(id string) bool
	ApplyDamage(id string, dmg int) (int, bool)
	Remove(id string) bool
}

// State is a snapshot of the machine
type State struct {
	Phase            Phase     `json:"phase"`
	TargetID         string    `json:"targetId,omitempty"`
	AcquireStartedAt time.Time `json:"acquireStartedAt"` // Zero outside ACQUIRING and LOCKED
	LockedAt         time.Time `json:"lockedAt"`
	FiredAt          time.Time `json:"firedAt"`
	Kills            int       `json:"kills"`
	Shots            int       `json:"shots"`
}

// Machine is the lock state machine. It is not safe for concurrent use;
// a hud.Session owns one and drives it from its loop.
type Machine struct {
	config  Config
	targets Targets
	state   State
}

// New creates a machine in NO_TARGET acting on targets
func New(cfg Config, targets Targets) *Machine {
	return &Machine{config: cfg, targets: targets}
}

// Config returns the machine configuration
func (m *Machine) Config() Config {
	return m.config
}

// State returns a copy of the current state
func (m *Machine) State() State {
	return m.state
}

// Phase returns the current phase
func (m *Machine) Phase() Phase {
	return m.state.Phase
}

// Progress returns how far the current acquisition is toward lock (0-1)
func (m *Machine) Progress(now time.Time) float64 {
	switch m.state.Phase {
	case Acquiring:
		p := float64(now.Sub(m.state.AcquireStartedAt)) / float64(m.config.DwellTime)
		if p > 1 {
			p = 1
		}
		if p < 0 {
			p = 0
		}
		return p
	case Locked, Fired:
		return 1
	}
	return 0
}

// Tick advances the machine with the target currently under the reticle
// ("" for none) and returns the resulting events in order.
func (m *Machine) Tick(target string, now time.Time) []feedback.Event {
	var events []feedback.Event
	s := &m.state

	switch s.Phase {
	case NoTarget:
		if target != "" {
			events = m.begin(events, target, now)
		}
		return events

	case Acquiring:
		if target != s.TargetID {
			return m.retarget(events, target, now)
		}
		if now.Sub(s.AcquireStartedAt) < m.config.DwellTime {
			return events
		}
		events = m.lock(events, now)

	case Locked:
		if target != s.TargetID {
			return m.retarget(events, target, now)
		}

	case Fired:
		if target != s.TargetID {
			return m.retarget(events, target, now)
		}
		return m.rearm(events, now)
	}

	// LOCKED: fire once the delay has passed
	if now.Sub(s.LockedAt) < m.config.FireDelay {
		return events
	}
	events = m.fire(events, now)
	if s.Phase == Fired {
		events = m.rearm(events, now)
	}
	return events
}

// TargetLost clears the lock when the tracker removes id. It is a no-op
// for any other id.
func (m *Machine) TargetLost(id string, now time.Time) []feedback.Event {
	if id == "" || id != m.state.TargetID {
		return nil
	}
	events := []feedback.Event{{Kind: feedback.TargetLost, TargetID: id, At: now}}
	return m.reset(events, now)
}

// Reset returns the machine to NO_TARGET and clears the counters
func (m *Machine) Reset() {
	m.state = State{}
}

func (m *Machine) begin(events []feedback.Event, target string, now time.Time) []feedback.Event {
	m.state.TargetID = target
	m.state.AcquireStartedAt = now
	events = m.transition(events, Acquiring, now)
	debug.Log("lock acquiring", "target", target)
	return append(events, feedback.Event{Kind: feedback.LockBegin, TargetID: target, At: now})
}

// retarget drops the current attempt and starts a new one when a different
// target is under the reticle.
func (m *Machine) retarget(events []feedback.Event, target string, now time.Time) []feedback.Event {
	events = m.reset(events, now)
	if target != "" {
		events = m.begin(events, target, now)
	}
	return events
}

func (m *Machine) lock(events []feedback.Event, now time.Time) []feedback.Event {
	events = m.transition(events, Locked, now)
	m.state.LockedAt = now
	m.targets.MarkScanned(m.state.TargetID)
	debug.Log("lock confirmed", "target", m.state.TargetID)
	return append(events, feedback.Event{Kind: feedback.Locked, TargetID: m.state.TargetID, At: now})
}

func (m *Machine) fire(events []feedback.Event, now time.Time) []feedback.Event {
	s := &m.state
	id := s.TargetID

	damage, ok := m.targets.ApplyDamage(id, m.config.DamagePerHit)
	if !ok {
		events = append(events, feedback.Event{Kind: feedback.TargetLost, TargetID: id, At: now})
		return m.reset(events, now)
	}

	s.Shots++
	remaining := m.config.HitPoints - damage
	if remaining < 0 {
		remaining = 0
	}

	events = m.transition(events, Fired, now)
	s.AcquireStartedAt = time.Time{}
	s.FiredAt = now
	events = append(events, feedback.Event{
		Kind:      feedback.Fire,
		TargetID:  id,
		HitPoints: feedback.Remaining(remaining),
		At:        now,
	})
	debug.Log("fire", "target", id, "remaining", remaining)

	if remaining > 0 {
		return events
	}

	s.Kills++
	m.targets.Remove(id)
	events = append(events, feedback.Event{Kind: feedback.Destroyed, TargetID: id, At: now})
	debug.Log("target destroyed", "target", id, "kills", s.Kills)
	return m.reset(events, now)
}

// rearm returns to ACQUIRING for another full dwell once the cooldown passes
func (m *Machine) rearm(events []feedback.Event, now time.Time) []feedback.Event {
	if now.Sub(m.state.FiredAt) < m.config.FireCooldown {
		return events
	}
	events = m.transition(events, Acquiring, now)
	m.state.AcquireStartedAt = now
	return events
}

func (m *Machine) reset(events []feedback.Event, now time.Time) []feedback.Event {
	events = m.transition(events, NoTarget, now)
	m.state.TargetID = ""
	m.state.AcquireStartedAt = time.Time{}
	m.state.LockedAt = time.Time{}
	return events
}

func (m *Machine) transition(events []feedback.Event, to Phase, now time.Time) []feedback.Event {
	from := m.state.Phase
	if from == to {
		return events
	}
	m.state.Phase = to
	return append(events, feedback.Event{
		Kind:     feedback.PhaseChanged,
		TargetID: m.state.TargetID,
		From:     from.String(),
		To:       to.String(),
		At:       now,
	})
}
