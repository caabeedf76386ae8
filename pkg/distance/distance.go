// Package distance estimates how far a detected object is from the camera
// using its apparent height on screen.
package distance

import (
	"fmt"
	"math"
)

// Unknown is returned when no estimate can be made
const Unknown = 0.0

// DefaultObjectHeight is the assumed real height in meters for unknown classes
const DefaultObjectHeight = 1.5

// Estimate calculates approximate distance from the box height.
// A box filling the whole viewport height is assumedHeight meters away:
//
//	distance = assumedHeight / (boxHeight / viewportHeight)
//
// Returns Unknown if any input is zero, negative or not finite. The result
// is a best-effort pinhole approximation and is not clamped.
func Estimate(boxHeight, viewportHeight, assumedHeight float64) float64 {
	if !positive(boxHeight) || !positive(viewportHeight) || !positive(assumedHeight) {
		return Unknown
	}
	return assumedHeight / (boxHeight / viewportHeight)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// KnownHeights are real-world object heights in meters by detection class
var KnownHeights = map[string]float64{
	"person":     1.7,
	"chair":      0.9,
	"tv":         0.6,
	"laptop":     0.3,
	"bottle":     0.25,
	"cell phone": 0.15,
	"door":       2.0,
}

// Estimator estimates distance per class, optionally bounded by a room calibration
type Estimator struct {
	KnownHeights  map[string]float64 // nil uses KnownHeights
	DefaultHeight float64            // 0 uses DefaultObjectHeight
	Room          *RoomCalibration   // nil disables the room clamp
}

// NewEstimator creates an estimator with the built-in class heights
func NewEstimator() *Estimator {
	return &Estimator{}
}

// HeightFor returns the assumed height for a class
func (e *Estimator) HeightFor(label string) float64 {
	heights := e.KnownHeights
	if heights == nil {
		heights = KnownHeights
	}
	if h, ok := heights[label]; ok {
		return h
	}
	if e.DefaultHeight > 0 {
		return e.DefaultHeight
	}
	return DefaultObjectHeight
}

// ForClass estimates the distance to an object of the given class.
// With a room calibration the result never exceeds the room's far bound.
func (e *Estimator) ForClass(label string, boxHeight, viewportHeight float64) float64 {
	d := Estimate(boxHeight, viewportHeight, e.HeightFor(label))
	if d == Unknown || e.Room == nil {
		return d
	}
	if max := e.Room.MaxDistance(); max > 0 && d > max {
		return max
	}
	return d
}

// Category returns a human-readable distance category
func Category(distance float64) string {
	if distance <= 0 {
		return "unknown"
	}
	if distance < 0.5 {
		return "very close"
	}
	if distance < 1.0 {
		return "close"
	}
	if distance < 2.0 {
		return "nearby"
	}
	if distance < 3.0 {
		return "moderate"
	}
	return "far"
}

// Format renders a distance for the range display
func Format(distance float64) string {
	if distance <= 0 || math.IsInf(distance, 0) || math.IsNaN(distance) {
		return "--.-"
	}
	return fmt.Sprintf("%.1f", distance)
}
