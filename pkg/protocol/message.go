// Package protocol defines the WebSocket message types exchanged between
// keypoint producers, the smartspar server and dashboards.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-smartspar/pkg/pose"
	"github.com/teslashibe/go-smartspar/pkg/stats"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Producer → Server messages
	TypePose MessageType = "pose" // Keypoints for one frame
	TypeNone MessageType = "none" // Frame with no body detected

	// Server → Producer messages
	TypeFeedback MessageType = "feedback" // Classification result for one frame
	TypeError    MessageType = "error"    // Message rejected

	// Server → Dashboard messages
	TypeStats MessageType = "stats" // Periodic session stats

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
// Producer → Server Message Types
// =============================================================================

// PoseData carries one frame of keypoints. Producers send either Named
// (landmark name → point) or Landmarks (the pose model's indexed list).
type PoseData struct {
	FrameID   uint64                       `json:"frame_id,omitempty"`
	Named     map[pose.Landmark]pose.Point `json:"named,omitempty"`
	Landmarks []pose.Point                 `json:"landmarks,omitempty"`
}

// NoneData marks a frame in which the pose model found nobody.
type NoneData struct {
	FrameID uint64 `json:"frame_id,omitempty"`
}

// =============================================================================
// Server → Producer Message Types
// =============================================================================

// FeedbackData is the classification result for one frame.
type FeedbackData struct {
	FrameID      uint64   `json:"frame_id,omitempty"`
	Detected     bool     `json:"detected"`
	GuardUp      bool     `json:"guard_up"`
	GuardDropped bool     `json:"guard_dropped,omitempty"`
	Punch        string   `json:"punch,omitempty"` // "Jab", "Cross", "Hook", "Uppercut"
	Side         string   `json:"side,omitempty"`  // "left", "right"
	Counted      bool     `json:"counted,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	Error        string   `json:"error,omitempty"` // Frame was malformed
}

// ErrorData reports a rejected message.
type ErrorData struct {
	Message string `json:"message"`
}

// =============================================================================
// Server → Dashboard Message Types
// =============================================================================

// StatsData is one session's stats at broadcast time.
type StatsData struct {
	SessionID string      `json:"session_id"`
	Active    bool        `json:"active"`
	Stats     stats.Stats `json:"stats"`
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
