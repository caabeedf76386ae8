package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-hud/internal/log"
	"github.com/teslashibe/go-hud/pkg/feedback"
	"github.com/teslashibe/go-hud/pkg/protocol"
)

// subscriber is anything the hub can deliver messages to
type subscriber interface {
	queue() chan Message
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	logger *slog.Logger

	// Registered clients
	clients map[subscriber]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan subscriber

	// Unregister requests from clients
	unregister chan subscriber

	// Mutex for client count (read-only access from outside)
	mu sync.RWMutex

	done    chan struct{}
	running atomic.Bool
	dropped atomic.Int64
}

// New creates a new Hub
func New(name string) *Hub {
	return &Hub{
		logger:     log.Component("hub").With("hub", name),
		clients:    make(map[subscriber]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan subscriber),
		unregister: make(chan subscriber),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and blocks until ctx is done, then
// disconnects every client. A hub runs once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.queue())
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.queue())
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "remaining", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.queue() <- message:
				default:
					// Client's buffer is full: too slow, drop it
					close(client.queue())
					delete(h.clients, client)
					h.logger.Warn("dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) add(s subscriber) bool {
	select {
	case h.register <- s:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(s subscriber) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Subscription receives broadcasts in-process
type Subscription struct {
	hub *Hub
	ch  chan Message
}

func (s *Subscription) queue() chan Message {
	return s.ch
}

// C delivers messages until the subscription is closed or dropped
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Close unregisters the subscription
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Subscribe registers an in-process listener with room for buffer messages.
// It blocks until the hub is running; after the hub stops it returns a
// subscription whose channel is already closed.
func (h *Hub) Subscribe(buffer int) *Subscription {
	s := &Subscription{hub: h, ch: make(chan Message, buffer)}
	if !h.add(s) {
		close(s.ch)
	}
	return s
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.logger.Debug("broadcast channel full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastBinary broadcasts binary data
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// Handle broadcasts a feedback event, making the hub a feedback.Sink for
// dashboards watching every session
func (h *Hub) Handle(e feedback.Event) {
	msg, err := protocol.NewEventMessage(e)
	if err != nil {
		h.logger.Warn("encode event failed", "error", err)
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		h.logger.Warn("encode event failed", "error", err)
		return
	}
	h.Broadcast(NewJSONMessage(data))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many broadcasts were discarded because the hub was busy
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
