// Package hub fans stats and camera frames out to dashboard websockets.
// Clients may follow one session; messages tagged with another session are
// not delivered to them.
package hub

// MessageType selects the websocket frame type a message is written as.
type MessageType int

const (
	// JSONMessage is written as a text frame
	JSONMessage MessageType = iota
	// BinaryMessage is written as a binary frame (annotated JPEG)
	BinaryMessage
)

// Message is one broadcast payload.
type Message struct {
	Type    MessageType
	Data    []byte
	Session string // Empty means every client
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps binary data.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// For tags m with the session it belongs to.
func (m Message) For(session string) Message {
	m.Session = session
	return m
}

// subscription is what a dashboard sends to change the session it follows.
// An empty session_id follows every session.
type subscription struct {
	SessionID string `json:"session_id"`
}
