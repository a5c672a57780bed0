// Package ingest accepts keypoint streams over WebSocket and runs each
// connection as its session's frame loop.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-smartspar/internal/log"
	"github.com/teslashibe/go-smartspar/pkg/classifier"
	"github.com/teslashibe/go-smartspar/pkg/pose"
	"github.com/teslashibe/go-smartspar/pkg/protocol"
	"github.com/teslashibe/go-smartspar/pkg/session"
)

// Producer is a connected keypoint stream.
type Producer struct {
	SessionID string
	Conn      *websocket.Conn
	Connected time.Time

	lastSeen atomic.Int64 // Unix nanoseconds
	frames   atomic.Uint64

	mu sync.Mutex
}

// Send writes a message to the producer
func (p *Producer) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Conn.WriteMessage(websocket.TextMessage, data)
}

// ProducerInfo describes a producer for the API.
type ProducerInfo struct {
	SessionID string    `json:"session_id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Frames    uint64    `json:"frames"`
}

// Stats are ingest counters since startup.
type Stats struct {
	Producers        int    `json:"producers"`
	MessagesReceived uint64 `json:"messages_received"`
	FramesReceived   uint64 `json:"frames_received"`
	FeedbackSent     uint64 `json:"feedback_sent"`
}

// FrameCallback observes every processed frame.
type FrameCallback func(sessionID string, frame *pose.Frame, res classifier.Result)

// Hub manages keypoint producer connections.
type Hub struct {
	registry *session.Registry

	mu        sync.RWMutex
	producers map[string]*Producer
	onFrame   FrameCallback

	messagesReceived atomic.Uint64
	framesReceived   atomic.Uint64
	feedbackSent     atomic.Uint64
}

// NewHub creates an ingest hub feeding sessions in registry.
func NewHub(registry *session.Registry) *Hub {
	return &Hub{
		registry:  registry,
		producers: make(map[string]*Producer),
	}
}

// OnFrame sets the callback invoked after every processed frame
func (h *Hub) OnFrame(callback FrameCallback) {
	h.mu.Lock()
	h.onFrame = callback
	h.mu.Unlock()
}

// RegisterRoutes registers the ingest WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/keypoints", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/keypoints", websocket.New(h.handleProducer))
	app.Get("/ws/keypoints/:id", websocket.New(h.handleProducer))
}

// RegisterAPIRoutes registers ingest status routes
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	g := api.Group("/ingest")

	g.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(h.Producers())
	})

	g.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.Stats())
	})
}

// handleProducer runs one connection as its session's frame loop
func (h *Hub) handleProducer(c *websocket.Conn) {
	s := h.registry.GetOrCreate(c.Params("id"))

	p := &Producer{
		SessionID: s.ID,
		Conn:      c,
		Connected: time.Now(),
	}
	p.lastSeen.Store(p.Connected.UnixNano())

	h.mu.Lock()
	if _, taken := h.producers[s.ID]; taken {
		h.mu.Unlock()
		h.reject(p, session.ErrSessionBusy)
		return
	}
	h.producers[s.ID] = p
	count := len(h.producers)
	h.mu.Unlock()

	log.Info("producer connected", "session", s.ID, "producers", count)

	defer func() {
		h.mu.Lock()
		delete(h.producers, s.ID)
		count := len(h.producers)
		h.mu.Unlock()
		log.Info("producer disconnected", "session", s.ID, "producers", count)
	}()

	src := &connSource{hub: h, producer: p}
	err := s.Run(context.Background(), src, func(frame *pose.Frame, res classifier.Result) {
		h.afterFrame(p, src.frameID, frame, res)
	})
	if err != nil {
		if errors.Is(err, session.ErrSessionBusy) || errors.Is(err, session.ErrSessionEnded) {
			h.reject(p, err)
			return
		}
		log.Warn("producer stream failed", "session", s.ID, "error", err)
	}
}

func (h *Hub) reject(p *Producer, err error) {
	log.Warn("producer rejected", "session", p.SessionID, "error", err)
	if msg, merr := protocol.NewErrorMessage("%v", err); merr == nil {
		p.Send(msg)
	}
}

func (h *Hub) afterFrame(p *Producer, frameID uint64, frame *pose.Frame, res classifier.Result) {
	p.frames.Add(1)

	h.mu.RLock()
	cb := h.onFrame
	h.mu.RUnlock()
	if cb != nil {
		cb(p.SessionID, frame, res)
	}

	msg, err := protocol.NewFeedbackMessage(frameID, res)
	if err != nil {
		log.Warn("feedback encode failed", "session", p.SessionID, "error", err)
		return
	}
	if err := p.Send(msg); err != nil {
		log.Debug("feedback send failed", "session", p.SessionID, "error", err)
		return
	}
	h.feedbackSent.Add(1)
}

// Producer returns the producer feeding a session, or nil
func (h *Hub) Producer(sessionID string) *Producer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.producers[sessionID]
}

// Producers returns info for every connected producer
func (h *Hub) Producers() []ProducerInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]ProducerInfo, 0, len(h.producers))
	for _, p := range h.producers {
		infos = append(infos, ProducerInfo{
			SessionID: p.SessionID,
			Connected: p.Connected,
			LastSeen:  time.Unix(0, p.lastSeen.Load()),
			Frames:    p.frames.Load(),
		})
	}
	return infos
}

// Stats returns ingest counters
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	count := len(h.producers)
	h.mu.RUnlock()

	return Stats{
		Producers:        count,
		MessagesReceived: h.messagesReceived.Load(),
		FramesReceived:   h.framesReceived.Load(),
		FeedbackSent:     h.feedbackSent.Load(),
	}
}

// connSource turns producer messages into frames for session.Run.
type connSource struct {
	hub      *Hub
	producer *Producer
	frameID  uint64 // Of the frame most recently returned
}

func (s *connSource) Next(ctx context.Context) (*pose.Frame, error) {
	p := s.producer
	for {
		_, data, err := p.Conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read from producer: %w", err)
		}

		p.lastSeen.Store(time.Now().UnixNano())
		s.hub.messagesReceived.Add(1)

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			s.sendError("%v", err)
			continue
		}

		switch msg.Type {
		case protocol.TypePose:
			d, err := msg.GetPoseData()
			if err != nil {
				s.sendError("invalid pose data: %v", err)
				continue
			}
			s.hub.framesReceived.Add(1)
			s.frameID = d.FrameID
			return d.Frame(), nil

		case protocol.TypeNone:
			d, err := msg.GetNoneData()
			if err != nil {
				s.sendError("invalid none data: %v", err)
				continue
			}
			s.hub.framesReceived.Add(1)
			s.frameID = d.FrameID
			return nil, nil

		case protocol.TypePing:
			ping, _ := msg.GetPingData()
			id := ""
			if ping != nil {
				id = ping.ID
			}
			if pong, err := protocol.NewPongMessage(id, msg.Timestamp, time.Now().UnixMilli()); err == nil {
				p.Send(pong)
			}

		default:
			s.sendError("unsupported message type %q", msg.Type)
		}
	}
}

func (s *connSource) sendError(format string, args ...any) {
	log.Debug("producer message rejected", "session", s.producer.SessionID, "error", fmt.Sprintf(format, args...))
	if msg, err := protocol.NewErrorMessage(format, args...); err == nil {
		s.producer.Send(msg)
	}
}

func (s *connSource) Close() error {
	return s.producer.Conn.Close()
}
