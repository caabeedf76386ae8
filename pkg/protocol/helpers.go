package protocol

import (
	"encoding/base64"
	"time"

	"github.com/teslashibe/go-hud/pkg/distance"
	"github.com/teslashibe/go-hud/pkg/feedback"
	"github.com/teslashibe/go-hud/pkg/hud"
	"github.com/teslashibe/go-hud/pkg/tracker"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewFrameMessage creates a frame message from raw JPEG data
func NewFrameMessage(width, height int, jpegData []byte, frameID uint64) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Width:   width,
		Height:  height,
		Format:  "jpeg",
		Data:    base64.StdEncoding.EncodeToString(jpegData),
		FrameID: frameID,
	})
}

// NewViewportMessage creates a viewport message
func NewViewportMessage(v ViewportData) (*Message, error) {
	return NewMessage(TypeViewport, v)
}

// NewRoomMessage creates a room calibration message
func NewRoomMessage(walls map[string]float64) (*Message, error) {
	return NewMessage(TypeRoom, RoomData{Walls: walls})
}

// NewStateMessage creates a state message from a HUD frame
func NewStateMessage(f hud.Frame) (*Message, error) {
	return NewMessage(TypeState, StateFromFrame(f))
}

// StateFromFrame converts a HUD frame into display state
func StateFromFrame(f hud.Frame) StateData {
	s := StateData{
		Seq:          f.Seq,
		Phase:        f.Phase.String(),
		TargetID:     f.TargetID,
		Distance:     f.Distance,
		DistanceText: f.DistanceText,
		Category:     distance.Category(f.Distance),
		Progress:     f.Progress,
		Objects:      f.Objects,
		Kills:        f.Kills,
		Shots:        f.Shots,
	}
	if f.Target != nil {
		box := f.Target.Box
		s.TargetClass = f.Target.ClassLabel
		s.TargetBox = &box
	}
	if s.Objects == nil {
		s.Objects = []tracker.TrackedObject{}
	}
	return s
}

// NewEventMessage creates an event message
func NewEventMessage(e feedback.Event) (*Message, error) {
	return NewMessage(TypeEvent, e)
}

// NewErrorMessage creates an error message
func NewErrorMessage(msg string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: msg})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeFrameData decodes the base64 image data
func (f *FrameData) DecodeFrameData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

// GetViewportData extracts viewport data from a message
func (m *Message) GetViewportData() (*ViewportData, error) {
	var data ViewportData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetRoomData extracts room calibration data from a message
func (m *Message) GetRoomData() (*RoomData, error) {
	var data RoomData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStateData extracts state data from a message
func (m *Message) GetStateData() (*StateData, error) {
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetEventData extracts a feedback event from a message
func (m *Message) GetEventData() (*EventData, error) {
	var data EventData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
