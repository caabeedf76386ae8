// Package tracker assigns stable identities to per-frame detections, smooths
// their boxes over time and expires tracks that stop being observed.
package tracker

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-hud/pkg/debug"
	"github.com/teslashibe/go-hud/pkg/detection"
	"github.com/teslashibe/go-hud/pkg/feedback"
	"github.com/teslashibe/go-hud/pkg/viewport"
)

// TrackedObject is a detection that persists across frames
type TrackedObject struct {
	ID          string       `json:"id"`  // Stable for the life of the track
	Key         string       `json:"key"` // label@cellX,cellY or label#hint
	ClassLabel  string       `json:"class"`
	Confidence  float64      `json:"confidence"`
	Box         viewport.Box `json:"box"` // Smoothed
	FirstSeenAt time.Time    `json:"firstSeenAt"`
	LastSeenAt  time.Time    `json:"lastSeenAt"`
	Scanned     bool         `json:"scanned"`
	Damage      int          `json:"damage"` // Hit points taken
	Hits        int          `json:"hits"`   // Observations merged into this track

	seq uint64 // Creation order
}

// Result reports what a single Update did
type Result struct {
	Objects  []TrackedObject  // Live tracks in resolver order
	Events   []feedback.Event // NewObjectDetected, one per new track
	Expired  []TrackedObject  // Tracks removed by this call
	Rejected int              // Invalid or low-confidence detections dropped
}

// Tracker maintains the set of live tracks
type Tracker struct {
	config Config

	mu      sync.RWMutex
	objects map[string]*TrackedObject // by key
	byID    map[string]string         // id -> key
	order   []string                  // keys in resolver order
	nextSeq uint64

	newID func() string
}

// New creates a tracker with the given configuration
func New(cfg Config) *Tracker {
	return &Tracker{
		config:  cfg,
		objects: make(map[string]*TrackedObject),
		byID:    make(map[string]string),
		newID:   func() string { return uuid.NewString() },
	}
}

// Config returns the tracker configuration
func (t *Tracker) Config() Config {
	return t.config
}

// Key returns the coarse identity key for a detection: its label combined with
// the grid cell holding its box center. Detections carrying a source-assigned
// track hint are keyed by the hint instead, so they keep their identity while
// moving across cells.
func Key(d detection.Detection, cellSize float64) string {
	if d.TrackHint != "" {
		return d.ClassLabel + "#" + d.TrackHint
	}
	c := d.Box.Center()
	return fmt.Sprintf("%s@%d,%d", d.ClassLabel, int(math.Round(c.X/cellSize)), int(math.Round(c.Y/cellSize)))
}

// Update merges one frame of detections into the track set and expires stale tracks
func (t *Tracker) Update(dets []detection.Detection, now time.Time) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	var res Result

	// Last writer wins for duplicate keys; position follows first appearance
	winners := make(map[string]detection.Detection, len(dets))
	var seen []string
	for _, d := range dets {
		if err := d.Validate(); err != nil {
			res.Rejected++
			debug.TrackLog("detection rejected", "err", err)
			continue
		}
		if d.Confidence < t.config.ConfidenceFloor {
			res.Rejected++
			continue
		}
		key := Key(d, t.config.CellSize)
		if _, dup := winners[key]; !dup {
			seen = append(seen, key)
		}
		winners[key] = d
	}

	for _, key := range seen {
		d := winners[key]
		if obj, ok := t.objects[key]; ok {
			obj.Box = smooth(obj.Box, d.Box, t.config.Smoothing)
			obj.Confidence = d.Confidence
			obj.ClassLabel = d.ClassLabel
			obj.LastSeenAt = now
			obj.Hits++
			continue
		}

		obj := &TrackedObject{
			ID:          t.newID(),
			Key:         key,
			ClassLabel:  d.ClassLabel,
			Confidence:  d.Confidence,
			Box:         d.Box,
			FirstSeenAt: now,
			LastSeenAt:  now,
			Hits:        1,
			seq:         t.nextSeq,
		}
		t.nextSeq++
		t.objects[key] = obj
		t.byID[obj.ID] = key

		box := obj.Box
		res.Events = append(res.Events, feedback.Event{
			Kind:     feedback.NewObjectDetected,
			TargetID: obj.ID,
			Class:    obj.ClassLabel,
			Box:      &box,
			At:       now,
		})
		debug.TrackLog("new track", "id", obj.ID, "key", key, "confidence", d.Confidence)
	}

	t.reorder(seen)
	res.Expired = t.expireLocked(now)
	res.Objects = t.snapshotLocked()
	return res
}

// Expire removes tracks not seen within the expiry window and returns them.
// Used on ticks that carry no new detection result.
func (t *Tracker) Expire(now time.Time) []TrackedObject {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expireLocked(now)
}

func (t *Tracker) expireLocked(now time.Time) []TrackedObject {
	var expired []TrackedObject
	kept := t.order[:0]
	for _, key := range t.order {
		obj := t.objects[key]
		if now.Sub(obj.LastSeenAt) > t.config.Expiry {
			expired = append(expired, *obj)
			delete(t.objects, key)
			delete(t.byID, obj.ID)
			debug.TrackLog("track expired", "id", obj.ID, "key", key)
			continue
		}
		kept = append(kept, key)
	}
	t.order = kept
	return expired
}

// reorder puts this frame's keys first, followed by every other live track
// in creation order.
func (t *Tracker) reorder(frame []string) {
	inFrame := make(map[string]bool, len(frame))
	order := make([]string, 0, len(t.objects))
	for _, key := range frame {
		inFrame[key] = true
		order = append(order, key)
	}

	var rest []*TrackedObject
	for key, obj := range t.objects {
		if !inFrame[key] {
			rest = append(rest, obj)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].seq < rest[j].seq })
	for _, obj := range rest {
		order = append(order, obj.Key)
	}
	t.order = order
}

func (t *Tracker) snapshotLocked() []TrackedObject {
	out := make([]TrackedObject, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, *t.objects[key])
	}
	return out
}

// smooth moves box toward obs by factor alpha
func smooth(box, obs viewport.Box, alpha float64) viewport.Box {
	return viewport.Box{
		X:      box.X + alpha*(obs.X-box.X),
		Y:      box.Y + alpha*(obs.Y-box.Y),
		Width:  box.Width + alpha*(obs.Width-box.Width),
		Height: box.Height + alpha*(obs.Height-box.Height),
	}
}

// Objects returns the live tracks in resolver order
func (t *Tracker) Objects() []TrackedObject {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

// Get returns a copy of the track with the given id
func (t *Tracker) Get(id string) (TrackedObject, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	key, ok := t.byID[id]
	if !ok {
		return TrackedObject{}, false
	}
	return *t.objects[key], true
}

// Len returns the number of live tracks
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.objects)
}

// MarkScanned flags the track as scanned. Returns false if it no longer exists.
func (t *Tracker) MarkScanned(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj := t.lookupLocked(id)
	if obj == nil {
		return false
	}
	obj.Scanned = true
	return true
}

// ApplyDamage adds dmg to the track's damage and returns the new total
func (t *Tracker) ApplyDamage(id string, dmg int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj := t.lookupLocked(id)
	if obj == nil {
		return 0, false
	}
	obj.Damage += dmg
	return obj.Damage, true
}

// Remove deletes the track with the given id
func (t *Tracker) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key, ok := t.byID[id]
	if !ok {
		return false
	}
	delete(t.byID, id)
	delete(t.objects, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Reset drops every track
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.objects = make(map[string]*TrackedObject)
	t.byID = make(map[string]string)
	t.order = nil
}

func (t *Tracker) lookupLocked(id string) *TrackedObject {
	key, ok := t.byID[id]
	if !ok {
		return nil
	}
	return t.objects[key]
}
