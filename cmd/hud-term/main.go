// hud-term: plays the target-lock game in a terminal against simulated drones
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/teslashibe/go-hud/internal/config"
	"github.com/teslashibe/go-hud/internal/log"
	"github.com/teslashibe/go-hud/internal/timeutil"
	"github.com/teslashibe/go-hud/pkg/cue"
	"github.com/teslashibe/go-hud/pkg/enemy"
	"github.com/teslashibe/go-hud/pkg/feedback"
)

func main() {
	preset := flag.String("preset", "arcade", "Session preset: default, scan, arcade")
	tuning := flag.String("tuning", "", "JSON tuning file applied over the preset")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Drone placement seed")
	mute := flag.Bool("mute", false, "Disable speaker cues")
	flag.Parse()

	// The terminal owns stdout, so only errors are logged
	log.Init("error")

	if err := run(*preset, *tuning, *seed, *mute); err != nil {
		fmt.Fprintln(os.Stderr, "hud-term:", err)
		os.Exit(1)
	}
}

func run(preset, tuning string, seed int64, mute bool) error {
	cfg, err := config.HUDConfig(preset, tuning)
	if err != nil {
		return err
	}

	var sinks []feedback.Sink
	if !mute {
		player := cue.NewPlayer(cue.DefaultConfig())
		if err := player.Init(); err == nil {
			defer player.Close()
			sinks = append(sinks, player)
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	g := newGame(screen, cfg, enemy.DefaultConfig(), timeutil.RealClock{}, seed, sinks...)

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if g.handleKey(ev) {
					return nil
				}
			case *tcell.EventResize:
				screen.Sync()
				g.resize()
			}
			g.draw()
		case now := <-ticker.C:
			g.step(now)
			g.draw()
		}
	}
}
