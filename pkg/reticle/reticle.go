// Package reticle resolves which tracked object sits under the aiming point.
package reticle

import (
	"github.com/teslashibe/go-hud/pkg/tracker"
	"github.com/teslashibe/go-hud/pkg/viewport"
)

// Resolve returns the id of the first object whose box contains p.
// Earlier objects win when boxes overlap.
func Resolve(objs []tracker.TrackedObject, p viewport.Point) (string, bool) {
	return Resolver{}.Resolve(objs, p)
}

// Resolver resolves the reticle target, optionally with a forgiving margin
// around each box.
type Resolver struct {
	Margin float64 // Pixels added on every side of a box
}

// Resolve returns the id of the first object whose expanded box contains p
func (r Resolver) Resolve(objs []tracker.TrackedObject, p viewport.Point) (string, bool) {
	for _, o := range objs {
		if o.Box.Expand(r.Margin).Contains(p) {
			return o.ID, true
		}
	}
	return "", false
}
