package web

import (
	"bytes"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-hud/pkg/cue"
	"github.com/teslashibe/go-hud/pkg/feedback"
	"github.com/teslashibe/go-hud/pkg/hub"
	"github.com/teslashibe/go-hud/pkg/hud"
)

// SessionInfo describes a connected HUD client
type SessionInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	Phase     string    `json:"phase"`
	TargetID  string    `json:"targetId,omitempty"`
	Objects   int       `json:"objects"`
	Frames    uint64    `json:"frames"`
	Sent      uint64    `json:"sent"`
	Rejected  uint64    `json:"rejected"`
	Drones    int       `json:"drones"`
	Stats     hud.Stats `json:"stats"`
}

// StatusResponse is the /api/status body
type StatusResponse struct {
	Version    string        `json:"version"`
	Sessions   []SessionInfo `json:"sessions"`
	Dashboards int           `json:"dashboards"`
	Journal    bool          `json:"journal"`
	Detector   bool          `json:"detector"`
	Enemies    bool          `json:"enemies"`
}

func (c *conn) info() SessionInfo {
	snap := c.session.Snapshot()
	info := SessionInfo{
		ID:        c.session.ID(),
		Connected: c.connected,
		Phase:     snap.Phase.String(),
		TargetID:  snap.TargetID,
		Objects:   len(snap.Objects),
		Frames:    c.framesIn.Load(),
		Sent:      c.sent.Load(),
		Rejected:  c.rejected.Load(),
		Stats:     c.session.Stats(),
	}
	if c.spawner != nil {
		info.Drones = len(c.spawner.Drones())
	}
	return info
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatus lists connected HUD sessions
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.RLock()
	sessions := make([]SessionInfo, 0, len(s.sessions))
	for _, conn := range s.sessions {
		sessions = append(sessions, conn.info())
	}
	s.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Connected.Before(sessions[j].Connected)
	})

	return c.JSON(StatusResponse{
		Version:    s.opts.Version,
		Sessions:   sessions,
		Dashboards: s.events.ClientCount(),
		Journal:    s.opts.Journal != nil,
		Detector:   s.opts.Detector != nil,
		Enemies:    s.opts.Enemies != nil,
	})
}

// ConfigResponse is the /api/config body. Durations are milliseconds.
type ConfigResponse struct {
	ConfidenceFloor float64 `json:"confidenceFloor"`
	CellSize        float64 `json:"cellSize"`
	Smoothing       float64 `json:"smoothing"`
	ExpiryMs        int64   `json:"expiryMs"`
	DwellMs         int64   `json:"dwellMs"`
	FireDelayMs     int64   `json:"fireDelayMs"`
	FireCooldownMs  int64   `json:"fireCooldownMs"`
	HitPoints       int     `json:"hitPoints"`
	DamagePerHit    int     `json:"damagePerHit"`
	ReticleMargin   float64 `json:"reticleMargin"`
	TickMs          int64   `json:"tickMs"`
	Viewport        struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	} `json:"viewport"`
}

// handleConfig returns the session tuning clients need to draw the HUD
func (s *Server) handleConfig(c *fiber.Ctx) error {
	cfg := s.opts.Config
	resp := ConfigResponse{
		ConfidenceFloor: cfg.Tracker.ConfidenceFloor,
		CellSize:        cfg.Tracker.CellSize,
		Smoothing:       cfg.Tracker.Smoothing,
		ExpiryMs:        cfg.Tracker.Expiry.Milliseconds(),
		DwellMs:         cfg.Lock.DwellTime.Milliseconds(),
		FireDelayMs:     cfg.Lock.FireDelay.Milliseconds(),
		FireCooldownMs:  cfg.Lock.FireCooldown.Milliseconds(),
		HitPoints:       cfg.Lock.HitPoints,
		DamagePerHit:    cfg.Lock.DamagePerHit,
		ReticleMargin:   cfg.ReticleMargin,
		TickMs:          cfg.TickInterval.Milliseconds(),
	}
	resp.Viewport.Width = cfg.Viewport.Width
	resp.Viewport.Height = cfg.Viewport.Height
	return c.JSON(resp)
}

// handleListCues lists the event kinds that have a sound
func (s *Server) handleListCues(c *fiber.Ctx) error {
	names := cue.Names()
	out := make([]string, len(names))
	for i, k := range names {
		out[i] = string(k)
	}
	return c.JSON(out)
}

// handleCue renders the cue for an event kind as WAV
func (s *Server) handleCue(c *fiber.Ctx) error {
	var buf bytes.Buffer
	err := cue.RenderWAV(&buf, feedback.Kind(c.Params("kind")), s.opts.Cue)
	if errors.Is(err, cue.ErrUnknownCue) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set(fiber.HeaderContentType, "audio/wav")
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.Send(buf.Bytes())
}

func (s *Server) journalUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "journal disabled"})
}

// handleJournal returns the newest journal entries
func (s *Server) handleJournal(c *fiber.Ctx) error {
	if s.opts.Journal == nil {
		return s.journalUnavailable(c)
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be a positive integer"})
		}
		limit = n
	}
	entries, err := s.opts.Journal.Entries(c.UserContext(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(entries)
}

// handleJournalStats returns engagement totals
func (s *Server) handleJournalStats(c *fiber.Ctx) error {
	if s.opts.Journal == nil {
		return s.journalUnavailable(c)
	}
	stats, err := s.opts.Journal.Stats(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(stats)
}

// handleReset clears a session's tracks and lock
func (s *Server) handleReset(c *fiber.Ctx) error {
	conn, ok := s.session(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	conn.session.RequestReset()
	return c.JSON(fiber.Map{"status": "reset requested"})
}

// handleEventsWS streams every session's feedback events to a dashboard
func (s *Server) handleEventsWS(c *websocket.Conn) {
	hub.NewClient(s.events, c).Run()
}
