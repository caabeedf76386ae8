package web

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-hud/pkg/detection"
	"github.com/teslashibe/go-hud/pkg/distance"
	"github.com/teslashibe/go-hud/pkg/enemy"
	"github.com/teslashibe/go-hud/pkg/feedback"
	"github.com/teslashibe/go-hud/pkg/hud"
	"github.com/teslashibe/go-hud/pkg/protocol"
	"github.com/teslashibe/go-hud/pkg/viewport"
)

// conn is one HUD client: its websocket, its session and the newest frame
// it sent
type conn struct {
	ws        *websocket.Conn
	session   *hud.Session
	spawner   *enemy.Spawner
	logger    *slog.Logger
	connected time.Time

	writeMu sync.Mutex

	frameMu sync.Mutex
	frame   []byte
	fresh   bool

	mapMu   sync.RWMutex
	mapping viewport.Mapping

	framesIn atomic.Uint64
	sent     atomic.Uint64
	rejected atomic.Uint64
}

// send writes a message to the client. Safe from any goroutine.
func (c *conn) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.sent.Add(1)
	return nil
}

// Handle forwards feedback events to the client
func (c *conn) Handle(e feedback.Event) {
	msg, err := protocol.NewEventMessage(e)
	if err != nil {
		return
	}
	if err := c.send(msg); err != nil {
		c.logger.Debug("event send failed", "error", err)
	}
}

func (c *conn) sendFrame(f hud.Frame) {
	msg, err := protocol.NewStateMessage(f)
	if err != nil {
		return
	}
	if err := c.send(msg); err != nil {
		c.logger.Debug("state send failed", "error", err)
	}
}

func (c *conn) sendError(text string) {
	c.rejected.Add(1)
	if msg, err := protocol.NewErrorMessage(text); err == nil {
		_ = c.send(msg)
	}
}

func (c *conn) setFrame(jpeg []byte) {
	if len(jpeg) == 0 {
		return
	}
	c.framesIn.Add(1)
	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	c.frame = jpeg
	c.fresh = true
}

// Latest hands out each received frame once, so a client that stops
// sending does not keep stale objects alive
func (c *conn) Latest() ([]byte, bool) {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	if !c.fresh {
		return nil, false
	}
	c.fresh = false
	return c.frame, true
}

func (c *conn) currentMapping() viewport.Mapping {
	c.mapMu.RLock()
	defer c.mapMu.RUnlock()
	return c.mapping
}

func (c *conn) setMapping(m viewport.Mapping) {
	c.mapMu.Lock()
	defer c.mapMu.Unlock()
	c.mapping = m
}

// camera runs det on client frames. When the loop hands it no frame (drones
// drive the tick) it takes the newest unread one, or reports nothing.
func (c *conn) camera(det detection.Source) detection.Source {
	mapped := detection.Mapped(det, c.currentMapping)
	return detection.SourceFunc(func(ctx context.Context, frame []byte) ([]detection.Detection, error) {
		if len(frame) == 0 {
			f, ok := c.Latest()
			if !ok {
				return nil, nil
			}
			frame = f
		}
		return mapped.Detect(ctx, frame)
	})
}

// handleMessage applies one text message from the client
func (c *conn) handleMessage(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		c.sendError(err.Error())
		return
	}

	switch msg.Type {
	case protocol.TypeFrame:
		fd, err := msg.GetFrameData()
		if err != nil {
			c.sendError("bad frame: " + err.Error())
			return
		}
		jpeg, err := fd.DecodeFrameData()
		if err != nil {
			c.sendError("bad frame encoding: " + err.Error())
			return
		}
		c.setFrame(jpeg)

	case protocol.TypeViewport:
		vd, err := msg.GetViewportData()
		if err != nil {
			c.sendError("bad viewport: " + err.Error())
			return
		}
		v := vd.Viewport()
		if !v.Valid() {
			c.sendError("viewport must have a positive size")
			return
		}
		c.session.SetViewport(v)
		if c.spawner != nil {
			c.spawner.SetViewport(v)
		}
		c.setMapping(vd.Mapping())
		c.logger.Debug("viewport set", "width", v.Width, "height", v.Height,
			"video_width", vd.VideoWidth, "video_height", vd.VideoHeight)

	case protocol.TypeRoom:
		rd, err := msg.GetRoomData()
		if err != nil {
			c.sendError("bad room: " + err.Error())
			return
		}
		room := distance.NewRoomCalibration(rd.Walls)
		c.session.SetRoom(room)
		c.logger.Info("room calibrated", "size", room.Size, "avg", room.AvgDistance)

	case protocol.TypeReset:
		c.session.RequestReset()

	case protocol.TypePing:
		pd, err := msg.GetPingData()
		if err != nil {
			c.sendError("bad ping: " + err.Error())
			return
		}
		pingTS := pd.Timestamp
		if pingTS == 0 {
			pingTS = msg.Timestamp
		}
		if pong, err := protocol.NewPongMessage(pd.ID, pingTS, time.Now().UnixMilli()); err == nil {
			_ = c.send(pong)
		}

	default:
		c.sendError("unsupported message type: " + string(msg.Type))
	}
}

// handleHUD runs one HUD session for the lifetime of the connection
func (s *Server) handleHUD(ws *websocket.Conn) {
	c := &conn{
		ws:        ws,
		connected: time.Now(),
		mapping:   viewport.Identity,
	}

	var sources []detection.Source
	if s.opts.Detector != nil {
		sources = append(sources, c.camera(s.opts.Detector))
	}
	opts := []hud.Option{
		hud.WithSink(c),
		hud.WithSink(s.events),
		hud.WithFrameHandler(c.sendFrame),
	}
	if s.opts.Enemies != nil {
		seed := s.opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		c.spawner = enemy.NewSpawner(*s.opts.Enemies, nil, seed)
		c.spawner.SetViewport(s.opts.Config.Viewport)
		sources = append(sources, c.spawner)
		opts = append(opts, hud.WithSink(c.spawner))
	}
	if s.journalW != nil {
		opts = append(opts, hud.WithSink(s.journalW))
	}

	c.session = hud.NewSession(s.opts.Config, detection.Merge(sources...), opts...)
	c.logger = s.logger.With("session", c.session.ID())

	// Drones tick without a camera, so only a camera-only session waits
	// for frames
	var frames hud.FrameSource
	if c.spawner == nil {
		frames = c
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	total := s.addSession(c)
	c.logger.Info("hud client connected", "total", total)
	defer func() {
		remaining := s.removeSession(c.session.ID())
		c.logger.Info("hud client disconnected", "remaining", remaining,
			"frames", c.framesIn.Load(), "sent", c.sent.Load())
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := c.session.Run(ctx, frames); err != nil {
			c.logger.Error("hud loop failed", "error", err)
			c.sendError(err.Error())
			ws.Close()
		}
	}()

	// Unblock the read loop when the server shuts down. The conn must not
	// be touched after this handler returns.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		<-ctx.Done()
		ws.Close()
	}()

	ws.SetReadLimit(maxFrameSize)
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		switch mt {
		case websocket.BinaryMessage:
			c.setFrame(data)
		case websocket.TextMessage:
			c.handleMessage(data)
		}
	}

	cancel()
	<-loopDone
	<-closed
}

// maxFrameSize bounds a single client message (raw or base64 JPEG)
const maxFrameSize = 4 << 20
