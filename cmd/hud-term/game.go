package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/teslashibe/go-hud/internal/timeutil"
	"github.com/teslashibe/go-hud/pkg/detection"
	"github.com/teslashibe/go-hud/pkg/enemy"
	"github.com/teslashibe/go-hud/pkg/feedback"
	"github.com/teslashibe/go-hud/pkg/hud"
	"github.com/teslashibe/go-hud/pkg/lock"
	"github.com/teslashibe/go-hud/pkg/viewport"
)

// One terminal cell covers cellW x cellH screen pixels
const (
	cellW = 10.0
	cellH = 20.0

	statusRows = 2
	panStep    = 20.0
	logLines   = 3
)

// game is the terminal HUD: simulated drones in a pannable world, one HUD
// session aiming at the middle of the terminal
type game struct {
	screen  tcell.Screen
	session *hud.Session
	spawner *enemy.Spawner

	view       viewport.Viewport
	panX, panY float64 // Camera offset into the drone world, pixels

	events []string
	last   hud.Frame
}

func newGame(screen tcell.Screen, cfg hud.Config, ecfg enemy.Config, clock timeutil.Clock, seed int64, sinks ...feedback.Sink) *game {
	g := &game{screen: screen}
	g.spawner = enemy.NewSpawner(ecfg, clock, seed)

	opts := []hud.Option{
		hud.WithClock(clock),
		hud.WithSink(feedback.SinkFunc(g.toWorld)),
		hud.WithSink(feedback.SinkFunc(g.record)),
	}
	for _, s := range sinks {
		opts = append(opts, hud.WithSink(s))
	}
	g.session = hud.NewSession(cfg, g.spawner, opts...)
	g.resize()
	return g
}

// resize fits the HUD viewport to the terminal
func (g *game) resize() {
	w, h := g.screen.Size()
	rows := h - statusRows
	if w < 1 || rows < 1 {
		return
	}
	g.view = viewport.Viewport{Width: float64(w) * cellW, Height: float64(rows) * cellH}
	g.session.SetViewport(g.view)
	g.spawner.SetViewport(g.view)
}

// detections returns the drones as seen through the panned camera
func (g *game) detections(now time.Time) []detection.Detection {
	dets := g.spawner.Detections(now)
	for i := range dets {
		dets[i].Box.X -= g.panX
		dets[i].Box.Y -= g.panY
	}
	return dets
}

// toWorld hands events back to the spawner in its own coordinates
func (g *game) toWorld(e feedback.Event) {
	if e.Box != nil {
		b := *e.Box
		b.X += g.panX
		b.Y += g.panY
		e.Box = &b
	}
	g.spawner.Handle(e)
}

func (g *game) record(e feedback.Event) {
	if e.Kind == feedback.PhaseChanged {
		return
	}
	line := string(e.Kind)
	if e.Class != "" {
		line += " " + e.Class
	}
	if e.HitPoints != nil {
		line += fmt.Sprintf(" hp=%d", *e.HitPoints)
	}
	g.events = append(g.events, line)
	if len(g.events) > logLines {
		g.events = g.events[len(g.events)-logLines:]
	}
}

func (g *game) step(now time.Time) hud.Frame {
	g.last = g.session.Step(g.detections(now), now)
	return g.last
}

// pan moves the aim; the world scrolls the other way
func (g *game) pan(dx, dy float64) {
	g.panX = clamp(g.panX+dx, -g.view.Width/2, g.view.Width/2)
	g.panY = clamp(g.panY+dy, -g.view.Height/2, g.view.Height/2)
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// handleKey applies a key press and reports whether to quit
func (g *game) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyLeft:
		g.pan(-panStep, 0)
	case tcell.KeyRight:
		g.pan(panStep, 0)
	case tcell.KeyUp:
		g.pan(0, -panStep)
	case tcell.KeyDown:
		g.pan(0, panStep)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'r':
			g.session.Reset()
			g.last = g.session.Snapshot()
			g.events = nil
		case ' ':
			g.spawner.Spawn()
		case 'h':
			g.pan(-panStep, 0)
		case 'l':
			g.pan(panStep, 0)
		case 'k':
			g.pan(0, -panStep)
		case 'j':
			g.pan(0, panStep)
		}
	}
	return false
}

func phaseStyle(p lock.Phase) tcell.Style {
	switch p {
	case lock.Acquiring:
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case lock.Locked:
		return tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	case lock.Fired:
		return tcell.StyleDefault.Foreground(tcell.ColorPurple).Bold(true)
	}
	return tcell.StyleDefault.Foreground(tcell.ColorGreen)
}

func (g *game) text(x, y int, s string, style tcell.Style) {
	for i, r := range s {
		g.screen.SetContent(x+i, y, r, nil, style)
	}
}

// cellBox converts a screen box to terminal cells
func cellBox(b viewport.Box) (x0, y0, x1, y1 int) {
	x0 = int(b.X / cellW)
	y0 = int(b.Y / cellH)
	x1 = int((b.X + b.Width) / cellW)
	y1 = int((b.Y + b.Height) / cellH)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return
}

func (g *game) draw() {
	g.screen.Clear()
	w, h := g.screen.Size()
	rows := h - statusRows
	f := g.last

	plain := tcell.StyleDefault.Foreground(tcell.ColorGreen)
	for _, obj := range f.Objects {
		style := plain
		if obj.ID == f.TargetID {
			style = phaseStyle(f.Phase)
		}
		x0, y0, x1, y1 := cellBox(obj.Box)
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				if x < 0 || y < 0 || x >= w || y >= rows {
					continue
				}
				edge := x == x0 || x == x1 || y == y0 || y == y1
				if edge {
					g.screen.SetContent(x, y, '#', nil, style)
				}
			}
		}
		if y0-1 >= 0 && y0-1 < rows {
			g.text(x0, y0-1, obj.ClassLabel, style)
		}
	}

	cx, cy := w/2, rows/2
	rs := phaseStyle(f.Phase)
	g.screen.SetContent(cx, cy, '+', nil, rs)
	g.screen.SetContent(cx-2, cy, '[', nil, rs)
	g.screen.SetContent(cx+2, cy, ']', nil, rs)

	g.text(0, rows, g.statusLine(), phaseStyle(f.Phase))
	g.text(0, rows+1, strings.Join(g.events, " | "), tcell.StyleDefault)
	g.screen.Show()
}

func (g *game) statusLine() string {
	f := g.last
	bar := progressBar(f.Progress, 10)
	target := "-"
	if f.Target != nil {
		target = f.Target.ClassLabel
	}
	return fmt.Sprintf("%-9s %s %-6s %5s  kills %d  shots %d  drones %d  [arrows/hjkl aim, space spawn, r reset, q quit]",
		f.Phase, bar, target, f.DistanceText, f.Kills, f.Shots, len(g.spawner.Drones()))
}

func progressBar(p float64, width int) string {
	n := int(clamp(p, 0, 1) * float64(width))
	return "[" + strings.Repeat("=", n) + strings.Repeat(" ", width-n) + "]"
}
