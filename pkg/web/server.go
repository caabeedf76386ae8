// Package web serves the HUD over HTTP and WebSocket: one HUD session per
// client connection, a live event feed for dashboards, cue audio and the
// engagement journal.
package web

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fws "github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-hud/internal/log"
	"github.com/teslashibe/go-hud/pkg/cue"
	"github.com/teslashibe/go-hud/pkg/detection"
	"github.com/teslashibe/go-hud/pkg/enemy"
	"github.com/teslashibe/go-hud/pkg/hub"
	"github.com/teslashibe/go-hud/pkg/hud"
	"github.com/teslashibe/go-hud/pkg/journal"
)

// Options configures the server
type Options struct {
	Config hud.Config

	// Detector finds objects in client frames, in frame pixels. nil runs
	// sessions on simulated drones only.
	Detector detection.Source

	// Enemies enables simulated drones in every session when non-nil
	Enemies *enemy.Config

	// Journal records engagements when non-nil
	Journal *journal.Journal

	Cue     cue.Config
	Debug   bool  // Log every request
	Seed    int64 // Drone placement seed (0 = per session)
	Version string
}

// Server is the HUD web server
type Server struct {
	app    *fiber.App
	opts   Options
	logger *slog.Logger

	events   *hub.Hub
	journalW *journal.Sink

	mu       sync.RWMutex
	sessions map[string]*conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates the server and registers its routes
func NewServer(opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:     opts,
		logger:   log.Component("web"),
		events:   hub.New("events"),
		sessions: make(map[string]*conn),
		ctx:      ctx,
		cancel:   cancel,
	}
	if opts.Journal != nil {
		s.journalW = opts.Journal.NewSink(256)
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-hud",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if opts.Debug {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleConfig)
	api.Get("/cues", s.handleListCues)
	api.Get("/cues/:kind", s.handleCue)
	api.Get("/journal", s.handleJournal)
	api.Get("/journal/stats", s.handleJournalStats)
	api.Post("/sessions/:id/reset", s.handleReset)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/hud", websocket.New(s.handleHUD))
	app.Get("/ws/events", fws.New(s.handleEventsWS))

	s.app = app

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.events.Run(ctx)
	}()
	return s
}

// App exposes the fiber app, for tests and embedding
func (s *Server) App() *fiber.App {
	return s.app
}

// Events returns the dashboard event hub
func (s *Server) Events() *hub.Hub {
	return s.events
}

// Listen serves on addr until Shutdown
func (s *Server) Listen(addr string) error {
	s.logger.Info("hud server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("hud server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops every session, the event hub and the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	err := s.app.ShutdownWithContext(ctx)
	s.wg.Wait()
	if s.journalW != nil {
		s.journalW.Close()
	}
	return err
}

func (s *Server) addSession(c *conn) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[c.session.ID()] = c
	return len(s.sessions)
}

func (s *Server) removeSession(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return len(s.sessions)
}

func (s *Server) session(id string) (*conn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.sessions[id]
	return c, ok
}

// SessionCount returns the number of connected HUD clients
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
