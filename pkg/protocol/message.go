// Package protocol defines the WebSocket message types exchanged between a
// HUD client (browser or replay tool) and the HUD server.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-hud/pkg/feedback"
	"github.com/teslashibe/go-hud/pkg/tracker"
	"github.com/teslashibe/go-hud/pkg/viewport"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → Server messages
	TypeFrame    MessageType = "frame"    // Camera frame (binary messages are raw JPEG frames too)
	TypeViewport MessageType = "viewport" // Screen and video size
	TypeRoom     MessageType = "room"     // Room calibration wall distances
	TypeReset    MessageType = "reset"    // Drop all tracks and the lock

	// Server → Client messages
	TypeEvent MessageType = "event" // Feedback event
	TypeState MessageType = "state" // HUD state after a tick
	TypeError MessageType = "error" // Rejected client message

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Client → Server Message Types
// =============================================================================

// FrameData contains a camera frame
type FrameData struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"` // "jpeg"
	Data    string `json:"data"`   // base64 encoded
	FrameID uint64 `json:"frame_id,omitempty"`
}

// ViewportData reports the client's screen size and, when known, the size of
// the video frames it sends so boxes can be mapped with cover fit
type ViewportData struct {
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	VideoWidth  float64 `json:"video_width,omitempty"`
	VideoHeight float64 `json:"video_height,omitempty"`
}

// Viewport returns the screen size
func (v ViewportData) Viewport() viewport.Viewport {
	return viewport.Viewport{Width: v.Width, Height: v.Height}
}

// Mapping returns the frame-to-screen mapping (identity without a video size)
func (v ViewportData) Mapping() viewport.Mapping {
	return viewport.Cover(v.VideoWidth, v.VideoHeight, v.Viewport())
}

// RoomData contains measured wall distances in meters
type RoomData struct {
	Walls map[string]float64 `json:"walls"`
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// StateData is the HUD display state
type StateData struct {
	Seq          uint64                  `json:"seq"`
	Phase        string                  `json:"phase"`
	TargetID     string                  `json:"target_id,omitempty"`
	TargetClass  string                  `json:"target_class,omitempty"`
	TargetBox    *viewport.Box           `json:"target_box,omitempty"`
	Distance     float64                 `json:"distance"`
	DistanceText string                  `json:"distance_text"`
	Category     string                  `json:"category"`
	Progress     float64                 `json:"progress"`
	Objects      []tracker.TrackedObject `json:"objects"`
	Kills        int                     `json:"kills"`
	Shots        int                     `json:"shots"`
}

// EventData is a feedback event
type EventData = feedback.Event

// ErrorData explains why a client message was rejected
type ErrorData struct {
	Message string `json:"message"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
