package lock

import (
	"errors"
	"time"
)

// Config holds the lock timing and damage parameters
type Config struct {
	DwellTime    time.Duration // Continuous time under the reticle before lock
	FireDelay    time.Duration // LOCKED -> FIRED delay (0 = fire on lock)
	FireCooldown time.Duration // FIRED -> ACQUIRING delay (0 = re-arm immediately)
	HitPoints    int           // Hit points of every target
	DamagePerHit int           // Damage applied per shot
}

// DefaultConfig returns the combat HUD parameters: 1.2s dwell, two hits to destroy
func DefaultConfig() Config {
	return Config{
		DwellTime:    1200 * time.Millisecond,
		FireDelay:    0,
		FireCooldown: 0,
		HitPoints:    100,
		DamagePerHit: 50,
	}
}

// ScanConfig returns the scanner variant: longer dwell, and lock confirmation
// shown for half a second before firing
func ScanConfig() Config {
	cfg := DefaultConfig()
	cfg.DwellTime = 1500 * time.Millisecond
	cfg.FireDelay = 500 * time.Millisecond
	return cfg
}

// Validate checks the configuration
func (c Config) Validate() error {
	switch {
	case c.DwellTime <= 0:
		return errors.New("lock: dwell time must be positive")
	case c.FireDelay < 0:
		return errors.New("lock: fire delay must not be negative")
	case c.FireCooldown < 0:
		return errors.New("lock: fire cooldown must not be negative")
	case c.HitPoints <= 0:
		return errors.New("lock: hit points must be positive")
	case c.DamagePerHit <= 0:
		return errors.New("lock: damage per hit must be positive")
	}
	return nil
}

// HitsToDestroy returns how many shots destroy a fresh target
func (c Config) HitsToDestroy() int {
	if c.DamagePerHit <= 0 {
		return 0
	}
	return (c.HitPoints + c.DamagePerHit - 1) / c.DamagePerHit
}
