// hud: AR HUD target-lock server
// Accepts camera frames over WebSocket, tracks objects and drives the lock game
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-hud/internal/config"
	"github.com/teslashibe/go-hud/internal/log"
	"github.com/teslashibe/go-hud/pkg/cue"
	"github.com/teslashibe/go-hud/pkg/debug"
	"github.com/teslashibe/go-hud/pkg/detection"
	"github.com/teslashibe/go-hud/pkg/enemy"
	"github.com/teslashibe/go-hud/pkg/journal"
	"github.com/teslashibe/go-hud/pkg/web"
)

var version = "0.1.0"

func main() {
	port := flag.Int("port", config.Port(config.DefaultPort), "HTTP server port (env HUD_PORT)")
	preset := flag.String("preset", "default", "Session preset: default, scan, arcade")
	tuning := flag.String("tuning", "", "JSON tuning file applied over the preset")
	model := flag.String("model", config.ModelPath(""), "YOLO ONNX model (env HUD_MODEL, empty = no camera detection)")
	remote := flag.String("remote-detector", "", "URL of an HTTP detection service used instead of the local model")
	classes := flag.String("classes", "", "Comma-separated labels the detector keeps (empty = all)")
	dbPath := flag.String("db", config.DBPath(config.DefaultDBPath), "Journal database (env HUD_DB, empty = no journal)")
	enemies := flag.Bool("enemies", true, "Spawn simulated drones in every session")
	seed := flag.Int64("seed", 0, "Drone placement seed (0 = random per session)")
	level := flag.String("log-level", config.LogLevel(config.DefaultLogLevel), "Log level: debug, info, warn, error")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	debugTracking := flag.Bool("debug-tracking", false, "Log every track and resolver hit")
	flag.Parse()

	debug.Enabled = *debugFlag
	debug.Tracking = *debugTracking
	if *debugFlag {
		*level = "debug"
	}
	log.Init(*level)

	fmt.Println()
	fmt.Println("🎯 go-hud v" + version)
	fmt.Println("   AR target-lock server")
	fmt.Println()

	if err := run(*port, *preset, *tuning, *model, *remote, *classes, *dbPath, *enemies, *seed, *debugFlag); err != nil {
		log.Error("hud server failed", "error", err)
		os.Exit(1)
	}
}

func run(port int, preset, tuning, model, remote, classes, dbPath string, enemies bool, seed int64, verbose bool) error {
	cfg, err := config.HUDConfig(preset, tuning)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	opts := web.Options{
		Config:  cfg,
		Cue:     cue.DefaultConfig(),
		Debug:   verbose,
		Seed:    seed,
		Version: version,
	}

	switch {
	case remote != "":
		opts.Detector = detection.NewRemote(remote)
		log.Info("using remote detector", "url", remote)
	case model != "":
		ycfg := detection.DefaultYOLOConfig()
		ycfg.ModelPath = model
		ycfg.Classes = splitList(classes)
		yolo, err := detection.NewYOLO(ycfg)
		if err != nil {
			return fmt.Errorf("detector: %w", err)
		}
		defer yolo.Close()
		opts.Detector = yolo
		log.Info("yolo detector loaded", "model", model)
	default:
		log.Warn("no detector configured, sessions only see simulated drones")
	}

	if enemies {
		ecfg := enemy.DefaultConfig()
		opts.Enemies = &ecfg
	}

	if dbPath != "" {
		j, err := journal.Open(dbPath)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer j.Close()
		opts.Journal = j
		log.Info("journal opened", "path", dbPath)
	}

	srv := web.NewServer(opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", port)
		log.Info("endpoints",
			"hud", fmt.Sprintf("ws://localhost:%d/ws/hud", port),
			"events", fmt.Sprintf("ws://localhost:%d/ws/events", port),
			"status", fmt.Sprintf("http://localhost:%d/api/status", port))
		errCh <- srv.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
