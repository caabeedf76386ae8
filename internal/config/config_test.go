package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-hud/pkg/hud"
)

func TestPort(t *testing.T) {
	tests := []struct {
		name    string
		hudPort string
		port    string
		want    int
	}{
		{"default", "", "", 8080},
		{"hud port", "9000", "", 9000},
		{"platform port", "", "3000", 3000},
		{"hud wins", "9000", "3000", 9000},
		{"garbage falls through", "abc", "3000", 3000},
		{"out of range", "70000", "", 8080},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HUD_PORT", tt.hudPort)
			t.Setenv("PORT", tt.port)
			assert.Equal(t, tt.want, Port(DefaultPort))
		})
	}
}

func TestEnvStrings(t *testing.T) {
	t.Setenv("HUD_MODEL", "")
	t.Setenv("HUD_DB", "/data/hud.db")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GO_ENV", "production")

	assert.Equal(t, "", ModelPath(""))
	assert.Equal(t, "/data/hud.db", DBPath(DefaultDBPath))
	assert.Equal(t, "debug", LogLevel(DefaultLogLevel))
	assert.True(t, Production())

	t.Setenv("GO_ENV", "dev")
	assert.False(t, Production())
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadTuning_Apply(t *testing.T) {
	path := writeFile(t, "tuning.json", `{
		"dwellMs": 800,
		"hitPoints": 150,
		"reticleMargin": 24,
		"tickMs": 50,
		"viewportWidth": 1920,
		"viewportHeight": 1080
	}`)

	tun, err := LoadTuning(path)
	require.NoError(t, err)

	cfg, err := tun.Apply(hud.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 800*time.Millisecond, cfg.Lock.DwellTime)
	assert.Equal(t, 150, cfg.Lock.HitPoints)
	assert.Equal(t, 24.0, cfg.ReticleMargin)
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 1920.0, cfg.Viewport.Width)

	// Untouched fields keep the base values
	def := hud.DefaultConfig()
	assert.Equal(t, def.Tracker, cfg.Tracker)
	assert.Equal(t, def.Lock.DamagePerHit, cfg.Lock.DamagePerHit)
	assert.Equal(t, def.DetectTimeout, cfg.DetectTimeout)
}

func TestLoadTuning_Preset(t *testing.T) {
	path := writeFile(t, "arcade.json", `{"preset": "arcade", "dwellMs": 500}`)
	cfg, err := HUDConfig("default", path)
	require.NoError(t, err)
	assert.Equal(t, 100.0, cfg.ReticleMargin)
	assert.Equal(t, 500*time.Millisecond, cfg.Lock.DwellTime)
}

func TestLoadTuning_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "tuning.yaml", `{}`},
		{"unknown key", "tuning.json", `{"dwell": 5}`},
		{"malformed", "tuning.json", `{"dwellMs":`},
		{"too large", "tuning.json", `{"preset":"` + strings.Repeat("x", maxTuningSize) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuning(writeFile(t, tt.file, tt.body))
			assert.ErrorIs(t, err, ErrTuningFile)
		})
	}

	_, err := LoadTuning(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestApply_Invalid(t *testing.T) {
	dwell := int64(0)
	_, err := (&Tuning{DwellMs: &dwell}).Apply(hud.DefaultConfig())
	assert.Error(t, err)

	preset := "turbo"
	_, err = (&Tuning{Preset: &preset}).Apply(hud.DefaultConfig())
	assert.Error(t, err)
}

func TestHUDConfig(t *testing.T) {
	cfg, err := HUDConfig("scan", "")
	require.NoError(t, err)
	assert.Equal(t, hud.ScanConfig(), cfg)

	_, err = HUDConfig("turbo", "")
	assert.Error(t, err)
}
