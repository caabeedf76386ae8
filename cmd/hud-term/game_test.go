package main

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-hud/internal/timeutil"
	"github.com/teslashibe/go-hud/pkg/enemy"
	"github.com/teslashibe/go-hud/pkg/feedback"
	"github.com/teslashibe/go-hud/pkg/hud"
	"github.com/teslashibe/go-hud/pkg/lock"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

// newTestGame builds an 80x26 game with one still drone in the middle
func newTestGame(t *testing.T, sinks ...feedback.Sink) *game {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	screen.SetSize(80, 26)
	t.Cleanup(screen.Fini)

	ecfg := enemy.DefaultConfig()
	ecfg.MoveInterval = 0
	ecfg.SpawnInterval = time.Hour
	ecfg.FirstSpawn = time.Hour
	ecfg.MinX, ecfg.MaxX = 50, 50
	ecfg.MinY, ecfg.MaxY = 50, 50

	g := newGame(screen, hud.DefaultConfig(), ecfg, timeutil.NewMockClock(t0), 1, sinks...)
	require.True(t, g.spawner.Spawn())
	return g
}

func TestGame_ViewportFollowsTerminal(t *testing.T) {
	g := newTestGame(t)
	assert.Equal(t, 800.0, g.view.Width)
	assert.Equal(t, 480.0, g.view.Height)
	assert.Equal(t, g.view, g.session.Viewport())
}

func TestGame_ShootsDownDrone(t *testing.T) {
	rec := &feedback.Recorder{}
	g := newTestGame(t, rec)

	// A small pan keeps the drone under the reticle
	g.pan(panStep, 0)
	for ms := 0; ms <= 2400; ms += 100 {
		g.step(at(ms))
	}

	assert.Equal(t, 1, g.spawner.Destroyed())
	assert.Empty(t, g.spawner.Drones())
	assert.Contains(t, rec.Kinds(), feedback.Destroyed)
	assert.Equal(t, 1, g.last.Kills)
	assert.Equal(t, 2, g.last.Shots)
	assert.NotEmpty(t, g.events)
	assert.LessOrEqual(t, len(g.events), logLines)
}

func TestGame_PanAwayMisses(t *testing.T) {
	g := newTestGame(t)
	g.pan(200, 0)

	for ms := 0; ms <= 2400; ms += 100 {
		g.step(at(ms))
	}
	assert.Equal(t, lock.NoTarget, g.last.Phase)
	assert.Zero(t, g.last.Shots)
	require.Len(t, g.last.Objects, 1)
}

func TestGame_PanIsClamped(t *testing.T) {
	g := newTestGame(t)
	for i := 0; i < 100; i++ {
		g.pan(-panStep, panStep)
	}
	assert.Equal(t, -400.0, g.panX)
	assert.Equal(t, 240.0, g.panY)
}

func TestGame_Keys(t *testing.T) {
	g := newTestGame(t)

	assert.False(t, g.handleKey(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone)))
	assert.Equal(t, panStep, g.panX)
	assert.False(t, g.handleKey(tcell.NewEventKey(tcell.KeyRune, 'k', tcell.ModNone)))
	assert.Equal(t, -panStep, g.panY)

	g.step(at(0))
	require.NotEmpty(t, g.last.Objects)
	assert.False(t, g.handleKey(tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone)))
	assert.Empty(t, g.session.Snapshot().Objects)

	assert.True(t, g.handleKey(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)))
	assert.True(t, g.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
}

func TestGame_Draw(t *testing.T) {
	g := newTestGame(t)
	g.step(at(0))
	g.draw()

	r, _, _, _ := g.screen.GetContent(40, 12)
	assert.Equal(t, '+', r, "reticle at the middle of the play area")

	// The drone outline is drawn around the reticle
	x0, y0, _, _ := cellBox(g.last.Objects[0].Box)
	r, _, _, _ = g.screen.GetContent(x0, y0)
	assert.Equal(t, '#', r)

	r, _, _, _ = g.screen.GetContent(0, 24)
	assert.Equal(t, 'A', r, "status line starts with the phase")
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[          ]", progressBar(0, 10))
	assert.Equal(t, "[=====     ]", progressBar(0.5, 10))
	assert.Equal(t, "[==========]", progressBar(1.5, 10))
}
