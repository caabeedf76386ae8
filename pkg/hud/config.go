package hud

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-hud/pkg/lock"
	"github.com/teslashibe/go-hud/pkg/tracker"
	"github.com/teslashibe/go-hud/pkg/viewport"
)

// Config holds all tunable parameters for a HUD session
type Config struct {
	Tracker tracker.Config
	Lock    lock.Config

	// Reticle
	ReticleMargin float64 // Pixels of slack around each box when aiming

	// Scheduling
	TickInterval  time.Duration // How often the loop ticks
	DetectTimeout time.Duration // Upper bound on a single detector call

	// Screen used until the client reports its own
	Viewport viewport.Viewport
}

// DefaultConfig returns the combat HUD configuration
func DefaultConfig() Config {
	return Config{
		Tracker:       tracker.DefaultConfig(),
		Lock:          lock.DefaultConfig(),
		ReticleMargin: 0,
		TickInterval:  100 * time.Millisecond, // 10 ticks per second
		DetectTimeout: 2 * time.Second,
		Viewport:      viewport.Viewport{Width: 1280, Height: 720},
	}
}

// ScanConfig returns the scanner variant: stricter confidence, longer dwell,
// visible lock confirmation before firing
func ScanConfig() Config {
	cfg := DefaultConfig()
	cfg.Tracker = tracker.ScanConfig()
	cfg.Lock = lock.ScanConfig()
	return cfg
}

// ArcadeConfig returns the overlay drone variant: a forgiving 100px aim margin
func ArcadeConfig() Config {
	cfg := DefaultConfig()
	cfg.ReticleMargin = 100
	return cfg
}

// Preset returns the named configuration preset
func Preset(name string) (Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "scan":
		return ScanConfig(), nil
	case "arcade":
		return ArcadeConfig(), nil
	}
	return Config{}, fmt.Errorf("unknown preset %q", name)
}

// Validate checks every section of the configuration
func (c Config) Validate() error {
	if err := c.Tracker.Validate(); err != nil {
		return err
	}
	if err := c.Lock.Validate(); err != nil {
		return err
	}
	switch {
	case c.ReticleMargin < 0:
		return fmt.Errorf("hud: reticle margin must not be negative")
	case c.TickInterval <= 0:
		return fmt.Errorf("hud: tick interval must be positive")
	case c.DetectTimeout <= 0:
		return fmt.Errorf("hud: detect timeout must be positive")
	case !c.Viewport.Valid():
		return fmt.Errorf("hud: viewport must have a positive size")
	}
	return nil
}
