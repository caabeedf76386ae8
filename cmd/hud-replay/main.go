// hud-replay: streams recorded JPEG frames to a HUD server and prints the
// feedback events it sends back
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-hud/internal/log"
	"github.com/teslashibe/go-hud/pkg/protocol"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws/hud", "HUD server websocket URL")
	interval := flag.Duration("interval", 100*time.Millisecond, "Delay between frames")
	loop := flag.Bool("loop", false, "Replay the frames until interrupted")
	width := flag.Float64("width", 1280, "Screen width reported to the server")
	height := flag.Float64("height", 720, "Screen height reported to the server")
	videoW := flag.Float64("video-width", 0, "Frame width for cover mapping (0 = frames are screen sized)")
	videoH := flag.Float64("video-height", 0, "Frame height for cover mapping")
	states := flag.Bool("states", false, "Print every state update, not just events")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log.Init(*level)

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: hud-replay [flags] <frame.jpg|dir>...")
		os.Exit(2)
	}
	frames, err := collectFrames(flag.Args())
	if err != nil {
		log.Error("load frames failed", "error", err)
		os.Exit(1)
	}
	if len(frames) == 0 {
		log.Error("no jpeg frames found")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vp := protocol.ViewportData{Width: *width, Height: *height, VideoWidth: *videoW, VideoHeight: *videoH}
	if err := replay(ctx, *url, vp, frames, *interval, *loop, *states); err != nil {
		log.Error("replay failed", "error", err)
		os.Exit(1)
	}
}

func replay(ctx context.Context, url string, vp protocol.ViewportData, frames []string, interval time.Duration, loop, states bool) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer ws.Close()
	log.Info("connected", "url", url, "frames", len(frames))

	msg, err := protocol.NewViewportMessage(vp)
	if err != nil {
		return err
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}

	readDone := make(chan error, 1)
	go func() { readDone <- readLoop(ws, states) }()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		if i == len(frames) {
			if !loop {
				break
			}
			i = 0
		}
		jpeg, err := os.ReadFile(frames[i])
		if err != nil {
			return err
		}
		if err := ws.WriteMessage(websocket.BinaryMessage, jpeg); err != nil {
			return fmt.Errorf("send frame: %w", err)
		}

		select {
		case <-ctx.Done():
			return closeAndWait(ws, readDone)
		case err := <-readDone:
			return err
		case <-ticker.C:
		}
	}

	// Let the last detections and timers play out
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
	}
	return closeAndWait(ws, readDone)
}

func closeAndWait(ws *websocket.Conn, readDone <-chan error) error {
	_ = ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case <-readDone:
	case <-time.After(time.Second):
	}
	return nil
}

func readLoop(ws *websocket.Conn, states bool) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Warn("bad message from server", "error", err)
			continue
		}
		if line, ok := describe(msg, states); ok {
			fmt.Println(line)
		}
	}
}
