// Package web serves the SmartSpar REST API and dashboard websockets.
package web

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-smartspar/internal/log"
	"github.com/teslashibe/go-smartspar/pkg/camera"
	"github.com/teslashibe/go-smartspar/pkg/classifier"
	"github.com/teslashibe/go-smartspar/pkg/history"
	"github.com/teslashibe/go-smartspar/pkg/hub"
	"github.com/teslashibe/go-smartspar/pkg/ingest"
	"github.com/teslashibe/go-smartspar/pkg/pose"
	"github.com/teslashibe/go-smartspar/pkg/protocol"
	"github.com/teslashibe/go-smartspar/pkg/recording"
	"github.com/teslashibe/go-smartspar/pkg/session"
)

// Options configures the server.
type Options struct {
	Port              string
	StaticDir         string        // Served at / when set
	BroadcastInterval time.Duration // Stats push period on /ws/stats
}

// DefaultOptions returns the server defaults.
func DefaultOptions() Options {
	return Options{
		Port:              "8080",
		BroadcastInterval: time.Second,
	}
}

// CameraInfo describes the camera feeding a session.
type CameraInfo struct {
	SessionID string        `json:"session_id"`
	Device    int           `json:"device"`
	Config    camera.Config `json:"config"`
}

// Server is the HTTP and websocket front end
type Server struct {
	app  *fiber.App
	opts Options

	registry *session.Registry
	history  *history.Store
	ingest   *ingest.Hub

	mu       sync.RWMutex
	recorder *recording.Recorder
	camera   *camera.Manager
	camInfo  *CameraInfo

	// Hubs for websocket broadcast
	statsHub  *hub.Hub
	cameraHub *hub.Hub
}

// NewServer creates a server over registry. store may be nil, which
// disables the history endpoints.
func NewServer(opts Options, registry *session.Registry, store *history.Store) *Server {
	if opts.BroadcastInterval <= 0 {
		opts.BroadcastInterval = time.Second
	}

	s := &Server{
		opts:      opts,
		registry:  registry,
		history:   store,
		ingest:    ingest.NewHub(registry),
		statsHub:  hub.New("stats"),
		cameraHub: hub.New("camera"),
	}
	s.ingest.OnFrame(func(id string, frame *pose.Frame, _ classifier.Result) {
		s.RecordFrame(id, frame)
	})

	app := fiber.New(fiber.Config{
		AppName:               "SmartSpar",
		DisableStartupMessage: true,
	})

	// CORS for browser pose clients on other origins
	app.Use(cors.New())

	if opts.StaticDir != "" {
		app.Static("/", opts.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)

	api.Post("/sessions", s.handleCreateSession)
	api.Get("/sessions", s.handleListSessions)
	api.Get("/sessions/:id", s.handleGetSession)
	api.Get("/sessions/:id/stats", s.handleGetStats)
	api.Post("/sessions/:id/reset", s.handleResetStats)
	api.Delete("/sessions/:id", s.handleEndSession)

	api.Get("/history", s.handleListHistory)
	api.Get("/history/totals", s.handleHistoryTotals)
	api.Get("/history/:id", s.handleGetHistory)
	api.Delete("/history/:id", s.handleDeleteHistory)

	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleUpdateCamera)
	api.Get("/camera/presets", s.handleCameraPresets)

	s.ingest.RegisterAPIRoutes(api)

	// Keypoint ingest registers its own upgrade check
	s.ingest.RegisterRoutes(app)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/stats", websocket.New(s.handleHubWS(s.statsHub)))
	app.Get("/ws/camera", websocket.New(s.handleHubWS(s.cameraHub)))

	s.app = app
	return s
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Ingest returns the keypoint ingest hub.
func (s *Server) Ingest() *ingest.Hub {
	return s.ingest
}

// SetRecorder records every processed frame of every session. nil disables
// recording.
func (s *Server) SetRecorder(r *recording.Recorder) {
	s.mu.Lock()
	s.recorder = r
	s.mu.Unlock()
}

// SetCamera exposes a camera and the session it feeds through the API.
func (s *Server) SetCamera(m *camera.Manager, sessionID string, device int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera = m
	s.camInfo = &CameraInfo{SessionID: sessionID, Device: device}
}

// RecordFrame appends a frame to the session's recording when recording is
// enabled.
func (s *Server) RecordFrame(sessionID string, frame *pose.Frame) {
	s.mu.RLock()
	r := s.recorder
	s.mu.RUnlock()
	if r == nil {
		return
	}
	if err := r.Record(sessionID, frame, time.Now()); err != nil {
		log.Warn("recording failed", "session", sessionID, "error", err)
	}
}

// SendCameraFrame sends a camera frame to all connected clients
func (s *Server) SendCameraFrame(jpeg []byte) {
	s.cameraHub.BroadcastBinary(jpeg)
}

// BroadcastStats pushes a stats message for every followed session to
// /ws/stats clients.
func (s *Server) BroadcastStats() {
	if s.statsHub.ClientCount() == 0 {
		return
	}
	for _, info := range s.registry.List() {
		if s.statsHub.Followers(info.ID) == 0 {
			continue
		}
		st, err := s.registry.Stats(info.ID)
		if err != nil {
			continue // Ended since List
		}
		msg, err := protocol.NewStatsMessage(info.ID, info.Active, st)
		if err != nil {
			log.Warn("stats encode failed", "session", info.ID, "error", err)
			continue
		}
		data, err := msg.Bytes()
		if err != nil {
			continue
		}
		s.statsHub.Broadcast(hub.NewJSONMessage(data).For(info.ID))
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.BroadcastStats()
		}
	}
}

// Start runs the hubs and serves until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	go s.statsHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	go s.broadcastLoop(ctx)

	errc := make(chan error, 1)
	go func() {
		errc <- s.app.Listen(":" + s.opts.Port)
	}()
	log.Info("web server listening", "url", "http://localhost:"+s.opts.Port)

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errc:
		return err
	}
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
