// Package config provides configuration helpers for go-hud commands: env
// lookups and the JSON tuning file applied onto hud.Config.
package config

import (
	"os"
	"strconv"
)

// Defaults used when the environment does not override them.
const (
	DefaultPort     = 8080
	DefaultDBPath   = "hud.db"
	DefaultLogLevel = "info"
)

// Port returns the server port from HUD_PORT (or PORT, as set by most
// hosting platforms). Falls back to def if unset or not a number.
func Port(def int) int {
	for _, key := range []string{"HUD_PORT", "PORT"} {
		if v := os.Getenv(key); v != "" {
			if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
				return p
			}
		}
	}
	return def
}

// ModelPath returns the YOLO ONNX model path from HUD_MODEL.
// Empty means no camera detector.
func ModelPath(def string) string {
	return getenv("HUD_MODEL", def)
}

// DBPath returns the journal database path from HUD_DB.
func DBPath(def string) string {
	return getenv("HUD_DB", def)
}

// LogLevel returns the log level from LOG_LEVEL.
func LogLevel(def string) string {
	return getenv("LOG_LEVEL", def)
}

// Production reports whether GO_ENV is "production".
func Production() bool {
	return os.Getenv("GO_ENV") == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
