package protocol

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-smartspar/pkg/classifier"
	"github.com/teslashibe/go-smartspar/pkg/pose"
	"github.com/teslashibe/go-smartspar/pkg/stats"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewPoseMessage creates a pose message from a frame. A nil frame becomes a
// none message.
func NewPoseMessage(frame *pose.Frame, frameID uint64) (*Message, error) {
	if frame == nil {
		return NewNoneMessage(frameID)
	}
	return NewMessage(TypePose, PoseData{
		FrameID: frameID,
		Named:   frame.Landmarks,
	})
}

// NewNoneMessage creates a no-detection message
func NewNoneMessage(frameID uint64) (*Message, error) {
	return NewMessage(TypeNone, NoneData{FrameID: frameID})
}

// NewFeedbackMessage creates a feedback message from a classifier result
func NewFeedbackMessage(frameID uint64, res classifier.Result) (*Message, error) {
	data := FeedbackData{
		FrameID:      frameID,
		Detected:     res.Detected,
		GuardUp:      res.GuardUp,
		GuardDropped: res.GuardDropped,
		Counted:      res.Counted,
	}
	if res.Punch != nil {
		data.Punch = string(res.Punch.Type)
		data.Side = string(res.Punch.Side)
	}
	for _, fb := range res.Feedback {
		data.Labels = append(data.Labels, fb.Label)
	}
	if res.Err != nil {
		data.Error = res.Err.Error()
	}
	return NewMessage(TypeFeedback, data)
}

// NewErrorMessage creates an error message
func NewErrorMessage(format string, args ...any) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: fmt.Sprintf(format, args...)})
}

// NewStatsMessage creates a stats broadcast message
func NewStatsMessage(sessionID string, active bool, s stats.Stats) (*Message, error) {
	return NewMessage(TypeStats, StatsData{
		SessionID: sessionID,
		Active:    active,
		Stats:     s,
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: time.Now().UnixMilli()})
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

// GetPoseData extracts pose data from a message
func (m *Message) GetPoseData() (*PoseData, error) {
	var data PoseData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Frame converts the keypoints to a frame. Named takes precedence over the
// indexed list. Returns nil when neither is present.
func (p *PoseData) Frame() *pose.Frame {
	if len(p.Named) > 0 {
		f := pose.NewFrame()
		for l, pt := range p.Named {
			f.Set(l, pt)
		}
		return f
	}
	return pose.FrameFromIndexed(p.Landmarks)
}

// GetNoneData extracts no-detection data from a message
func (m *Message) GetNoneData() (*NoneData, error) {
	var data NoneData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFeedbackData extracts feedback data from a message
func (m *Message) GetFeedbackData() (*FeedbackData, error) {
	var data FeedbackData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatsData extracts stats data from a message
func (m *Message) GetStatsData() (*StatsData, error) {
	var data StatsData
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
