// Package detection provides object detection sources for the HUD
package detection

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-hud/pkg/viewport"
)

// ErrInvalidDetection is wrapped by every Validate failure
var ErrInvalidDetection = errors.New("invalid detection")

// Detection is one raw per-frame observation from a vision model
type Detection struct {
	ClassLabel string       `json:"class"`
	Confidence float64      `json:"confidence"`        // 0-1
	Box        viewport.Box `json:"box"`               // Screen pixels
	TrackHint  string       `json:"trackId,omitempty"` // Identity assigned by the source, if it has one
}

// Center returns the center point of the detection
func (d Detection) Center() viewport.Point {
	return d.Box.Center()
}

// Validate rejects detections with missing or out-of-range fields
func (d Detection) Validate() error {
	switch {
	case d.ClassLabel == "":
		return fmt.Errorf("%w: empty class label", ErrInvalidDetection)
	case math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1:
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidDetection, d.Confidence)
	case !d.Box.Finite():
		return fmt.Errorf("%w: non-finite box %+v", ErrInvalidDetection, d.Box)
	case d.Box.Width < 0 || d.Box.Height < 0:
		return fmt.Errorf("%w: negative box size %vx%v", ErrInvalidDetection, d.Box.Width, d.Box.Height)
	}
	return nil
}

// Source is the interface for detection backends.
// Implementations must honor ctx cancellation; the HUD loop bounds every call with a timeout.
type Source interface {
	// Detect finds objects in the encoded frame (JPEG) and returns them in screen pixels
	Detect(ctx context.Context, frame []byte) ([]Detection, error)
}

// SourceFunc adapts a plain function to Source
type SourceFunc func(ctx context.Context, frame []byte) ([]Detection, error)

// Detect calls f
func (f SourceFunc) Detect(ctx context.Context, frame []byte) ([]Detection, error) {
	return f(ctx, frame)
}

// Config holds the detection filter configuration
type Config struct {
	ConfidenceFloor float64 // Minimum confidence kept (default 0.35)
}

// DefaultConfig returns the combat HUD defaults
func DefaultConfig() Config {
	return Config{
		ConfidenceFloor: 0.35,
	}
}

// FilterConfidence returns the detections at or above floor, preserving order
func FilterConfidence(dets []Detection, floor float64) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= floor {
			out = append(out, d)
		}
	}
	return out
}

// MapToScreen converts frame-space boxes to screen space with m
func MapToScreen(dets []Detection, m viewport.Mapping) []Detection {
	out := make([]Detection, len(dets))
	for i, d := range dets {
		d.Box = m.Box(d.Box)
		out[i] = d
	}
	return out
}

// Mapped wraps src so its frame-space boxes are converted to screen space
// with the mapping current at call time
func Mapped(src Source, mapping func() viewport.Mapping) Source {
	return SourceFunc(func(ctx context.Context, frame []byte) ([]Detection, error) {
		dets, err := src.Detect(ctx, frame)
		if err != nil {
			return nil, err
		}
		return MapToScreen(dets, mapping()), nil
	})
}

// Merge combines several sources into one. Results keep source order, so
// earlier sources win reticle ties. A failing source does not hide the
// others; its error is returned alongside the remaining detections.
func Merge(sources ...Source) Source {
	return SourceFunc(func(ctx context.Context, frame []byte) ([]Detection, error) {
		var all []Detection
		var errs []error
		for _, s := range sources {
			if s == nil {
				continue
			}
			dets, err := s.Detect(ctx, frame)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			all = append(all, dets...)
		}
		return all, errors.Join(errs...)
	})
}
