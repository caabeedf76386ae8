// Package viewport provides screen-space geometry for the HUD: points, boxes,
// the reticle point and the mapping from camera frame to screen pixels.
package viewport

import "math"

// Point is a screen-space position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned rectangle in pixels with a top-left origin.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the box
func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Area returns the area of the box
func (b Box) Area() float64 {
	return b.Width * b.Height
}

// Contains reports whether p lies inside the box. All four edges are inclusive.
func (b Box) Contains(p Point) bool {
	return p.X >= b.X && p.X <= b.X+b.Width &&
		p.Y >= b.Y && p.Y <= b.Y+b.Height
}

// Expand grows the box by margin on every side.
func (b Box) Expand(margin float64) Box {
	if margin == 0 {
		return b
	}
	return Box{
		X:      b.X - margin,
		Y:      b.Y - margin,
		Width:  b.Width + 2*margin,
		Height: b.Height + 2*margin,
	}
}

// Finite reports whether every field is a finite number.
func (b Box) Finite() bool {
	for _, v := range [...]float64{b.X, b.Y, b.Width, b.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Viewport is the visible screen area in pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the reticle point, fixed at the middle of the screen.
func (v Viewport) Center() Point {
	return Point{X: v.Width / 2, Y: v.Height / 2}
}

// Valid reports whether the viewport has a positive area.
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0
}

// Mapping converts camera frame coordinates into screen coordinates.
type Mapping struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// Identity leaves coordinates untouched.
var Identity = Mapping{Scale: 1}

// Cover returns the mapping used when a frame of frameW x frameH fills the
// screen while keeping its aspect ratio (CSS object-fit: cover). The frame is
// scaled by the larger of the two axis ratios and centered, so one axis may
// overflow the screen.
func Cover(frameW, frameH float64, screen Viewport) Mapping {
	if frameW <= 0 || frameH <= 0 || !screen.Valid() {
		return Identity
	}
	scale := math.Max(screen.Width/frameW, screen.Height/frameH)
	return Mapping{
		Scale:   scale,
		OffsetX: (screen.Width - frameW*scale) / 2,
		OffsetY: (screen.Height - frameH*scale) / 2,
	}
}

// Box maps a frame-space box into screen space.
func (m Mapping) Box(b Box) Box {
	return Box{
		X:      b.X*m.Scale + m.OffsetX,
		Y:      b.Y*m.Scale + m.OffsetY,
		Width:  b.Width * m.Scale,
		Height: b.Height * m.Scale,
	}
}
