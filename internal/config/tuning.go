package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teslashibe/go-hud/pkg/hud"
)

// maxTuningSize bounds the tuning file
const maxTuningSize = 64 * 1024

// ErrTuningFile is returned for tuning files that cannot be used
var ErrTuningFile = errors.New("invalid tuning file")

// Tuning overrides parts of a HUD preset. Nil fields keep the preset value;
// durations are milliseconds.
type Tuning struct {
	Preset *string `json:"preset,omitempty"`

	ConfidenceFloor *float64 `json:"confidenceFloor,omitempty"`
	CellSize        *float64 `json:"cellSize,omitempty"`
	Smoothing       *float64 `json:"smoothing,omitempty"`
	ExpiryMs        *int64   `json:"expiryMs,omitempty"`

	DwellMs        *int64 `json:"dwellMs,omitempty"`
	FireDelayMs    *int64 `json:"fireDelayMs,omitempty"`
	FireCooldownMs *int64 `json:"fireCooldownMs,omitempty"`
	HitPoints      *int   `json:"hitPoints,omitempty"`
	DamagePerHit   *int   `json:"damagePerHit,omitempty"`

	ReticleMargin   *float64 `json:"reticleMargin,omitempty"`
	TickMs          *int64   `json:"tickMs,omitempty"`
	DetectTimeoutMs *int64   `json:"detectTimeoutMs,omitempty"`
	ViewportWidth   *float64 `json:"viewportWidth,omitempty"`
	ViewportHeight  *float64 `json:"viewportHeight,omitempty"`
}

// LoadTuning reads a tuning file. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func LoadTuning(path string) (*Tuning, error) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return nil, fmt.Errorf("%w: %s: expected a .json file", ErrTuningFile, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("tuning file: %w", err)
	}
	if info.Size() > maxTuningSize {
		return nil, fmt.Errorf("%w: %s: %d bytes exceeds %d", ErrTuningFile, path, info.Size(), maxTuningSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tuning file: %w", err)
	}

	var t Tuning
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTuningFile, path, err)
	}
	return &t, nil
}

func ms(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Apply overlays the tuning onto base, or onto the named preset when the
// file sets one, and validates the result
func (t *Tuning) Apply(base hud.Config) (hud.Config, error) {
	cfg := base
	if t.Preset != nil {
		p, err := hud.Preset(*t.Preset)
		if err != nil {
			return hud.Config{}, err
		}
		cfg = p
	}

	if t.ConfidenceFloor != nil {
		cfg.Tracker.ConfidenceFloor = *t.ConfidenceFloor
	}
	if t.CellSize != nil {
		cfg.Tracker.CellSize = *t.CellSize
	}
	if t.Smoothing != nil {
		cfg.Tracker.Smoothing = *t.Smoothing
	}
	if t.ExpiryMs != nil {
		cfg.Tracker.Expiry = ms(*t.ExpiryMs)
	}

	if t.DwellMs != nil {
		cfg.Lock.DwellTime = ms(*t.DwellMs)
	}
	if t.FireDelayMs != nil {
		cfg.Lock.FireDelay = ms(*t.FireDelayMs)
	}
	if t.FireCooldownMs != nil {
		cfg.Lock.FireCooldown = ms(*t.FireCooldownMs)
	}
	if t.HitPoints != nil {
		cfg.Lock.HitPoints = *t.HitPoints
	}
	if t.DamagePerHit != nil {
		cfg.Lock.DamagePerHit = *t.DamagePerHit
	}

	if t.ReticleMargin != nil {
		cfg.ReticleMargin = *t.ReticleMargin
	}
	if t.TickMs != nil {
		cfg.TickInterval = ms(*t.TickMs)
	}
	if t.DetectTimeoutMs != nil {
		cfg.DetectTimeout = ms(*t.DetectTimeoutMs)
	}
	if t.ViewportWidth != nil {
		cfg.Viewport.Width = *t.ViewportWidth
	}
	if t.ViewportHeight != nil {
		cfg.Viewport.Height = *t.ViewportHeight
	}

	if err := cfg.Validate(); err != nil {
		return hud.Config{}, fmt.Errorf("tuning: %w", err)
	}
	return cfg, nil
}

// HUDConfig resolves the session configuration from a preset name and an
// optional tuning file path
func HUDConfig(preset, tuningPath string) (hud.Config, error) {
	cfg, err := hud.Preset(preset)
	if err != nil {
		return hud.Config{}, err
	}
	if tuningPath == "" {
		return cfg, cfg.Validate()
	}
	t, err := LoadTuning(tuningPath)
	if err != nil {
		return hud.Config{}, err
	}
	return t.Apply(cfg)
}
