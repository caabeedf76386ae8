// Package debug provides global debug logging flags
package debug

import "github.com/teslashibe/go-hud/internal/log"

// Enabled controls whether debug logging is active
var Enabled bool

// Tracking controls whether per-frame tracking logs are shown (new tracks, expiries, resolver hits).
// Use --debug-tracking to enable these very verbose logs
var Tracking bool

// Log emits a structured message only if debug mode is enabled
func Log(msg string, args ...any) {
	if Enabled {
		log.Info(msg, args...)
	}
}

// TrackLog emits a structured message only if tracking debug mode is enabled
func TrackLog(msg string, args ...any) {
	if Tracking {
		log.Info(msg, args...)
	}
}
