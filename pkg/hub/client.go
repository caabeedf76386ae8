package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// Dashboard connection timing. Dashboards are listen-only: anything they send
// is read and discarded so control frames keep flowing.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 512
	sendBuffer     = 256
)

// Client is one dashboard websocket subscribed to the hub
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan Message
	ignored int
}

// NewClient subscribes a dashboard connection to hub. If the hub has already
// stopped the client's queue starts closed and Run ends after the close frame.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	if !hub.add(c) {
		close(c.send)
	}
	return c
}

func (c *Client) queue() chan Message {
	return c.send
}

// Run pumps hub messages to the dashboard until either side goes away.
// Call it from the websocket handler; it blocks.
func (c *Client) Run() {
	go c.writePump()
	c.discardInbound()
}

// discardInbound drains the dashboard's side of the socket. The read loop is
// what notices a disconnect and answers pings.
func (c *Client) discardInbound() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
		if c.ignored > 0 {
			c.hub.logger.Debug("dashboard input ignored", "messages", c.ignored)
		}
	}()

	c.conn.SetReadLimit(maxInboundSize)
	extend := func() { _ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		mt, _, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			c.ignored++
		}
		extend()
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// writePump is the only writer on the connection
func (c *Client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			if err := c.write(wireType(m), m.Data); err != nil {
				return
			}

		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func wireType(m Message) int {
	if m.Type == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
