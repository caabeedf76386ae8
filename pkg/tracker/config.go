package tracker

import (
	"errors"
	"time"
)

// Config holds the tunable parameters for object tracking
type Config struct {
	ConfidenceFloor float64       // Drop detections below this confidence
	CellSize        float64       // Identity grid cell size in pixels
	Smoothing       float64       // Exponential smoothing factor (0-1, higher = more new data)
	Expiry          time.Duration // Remove tracks not seen for longer than this
}

// DefaultConfig returns the combat HUD tracking parameters
func DefaultConfig() Config {
	return Config{
		ConfidenceFloor: 0.35,
		CellSize:        50,                     // 50px identity cells
		Smoothing:       0.3,                    // 30% new, 70% old
		Expiry:          500 * time.Millisecond, // Half a second without a match
	}
}

// ScanConfig returns the stricter scanner variant: fewer false positives
func ScanConfig() Config {
	cfg := DefaultConfig()
	cfg.ConfidenceFloor = 0.4
	return cfg
}

// Validate checks the configuration for values the tracker cannot work with
func (c Config) Validate() error {
	switch {
	case c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1:
		return errors.New("tracker: confidence floor must be within [0,1]")
	case c.CellSize <= 0:
		return errors.New("tracker: cell size must be positive")
	case c.Smoothing <= 0 || c.Smoothing > 1:
		return errors.New("tracker: smoothing must be within (0,1]")
	case c.Expiry <= 0:
		return errors.New("tracker: expiry must be positive")
	}
	return nil
}
