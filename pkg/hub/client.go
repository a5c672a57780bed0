package hub

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-smartspar/internal/log"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps subscription messages from dashboards
	maxMessageSize = 1024

	// sendBuffer is how many frames a client may lag before it is dropped
	sendBuffer = 64
)

// Client is one dashboard connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan Message
	session atomic.Pointer[string]
}

// NewClient registers a dashboard following session ("" for all sessions)
// with the hub. It returns nil if the hub has stopped.
func NewClient(hub *Hub, conn *websocket.Conn, session string) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	client.Follow(session)
	select {
	case hub.register <- client:
		return client
	case <-hub.done:
		return nil
	}
}

// Follow switches the session the client receives messages for.
func (c *Client) Follow(session string) {
	c.session.Store(&session)
}

// Session returns the followed session, "" when following all.
func (c *Client) Session() string {
	return *c.session.Load()
}

// wants reports whether msg should be delivered to c.
func (c *Client) wants(msg Message) bool {
	s := c.Session()
	return msg.Session == "" || s == "" || msg.Session == s
}

// Run pumps messages until the connection closes. Call it from the
// websocket handler.
func (c *Client) Run() {
	go c.writePump()
	c.readPump() // Blocks until connection closes
}

// readPump handles subscriptions and detects disconnection.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var sub subscription
		if err := json.Unmarshal(data, &sub); err != nil {
			log.Debug("ignoring dashboard message", "hub", c.hub.name, "error", err)
			continue
		}
		c.Follow(sub.SessionID)
		log.Debug("dashboard subscription", "hub", c.hub.name, "session", sub.SessionID)
	}
}

// writePump is the only goroutine writing to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			wsType := websocket.TextMessage
			if message.Type == BinaryMessage {
				wsType = websocket.BinaryMessage
			}

			if err := c.conn.WriteMessage(wsType, message.Data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
