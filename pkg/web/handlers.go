package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-smartspar/internal/log"
	"github.com/teslashibe/go-smartspar/pkg/camera"
	"github.com/teslashibe/go-smartspar/pkg/history"
	"github.com/teslashibe/go-smartspar/pkg/hub"
	"github.com/teslashibe/go-smartspar/pkg/session"
)

// Status is the server overview returned by /api/status
type Status struct {
	Sessions       int          `json:"sessions"`
	ActiveSessions int          `json:"active_sessions"`
	Ingest         ingestStats  `json:"ingest"`
	Camera         *CameraInfo  `json:"camera,omitempty"`
	History        bool         `json:"history"`
	Recording      bool         `json:"recording"`
	Viewers        viewerCounts `json:"viewers"`
}

type ingestStats struct {
	Producers      int    `json:"producers"`
	FramesReceived uint64 `json:"frames_received"`
}

type viewerCounts struct {
	Stats  int `json:"stats"`
	Camera int `json:"camera"`
}

// handleStatus returns the server overview
func (s *Server) handleStatus(c *fiber.Ctx) error {
	infos := s.registry.List()
	active := 0
	for _, info := range infos {
		if info.Active {
			active++
		}
	}
	in := s.ingest.Stats()

	s.mu.RLock()
	st := Status{
		Sessions:       len(infos),
		ActiveSessions: active,
		Ingest:         ingestStats{Producers: in.Producers, FramesReceived: in.FramesReceived},
		Camera:         s.cameraInfoLocked(),
		History:        s.history != nil,
		Recording:      s.recorder != nil,
		Viewers:        viewerCounts{Stats: s.statsHub.ClientCount(), Camera: s.cameraHub.ClientCount()},
	}
	s.mu.RUnlock()

	return c.JSON(st)
}

// sessionError maps registry errors to HTTP responses
func sessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, session.ErrSessionBusy), errors.Is(err, session.ErrSessionEnded):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

// handleCreateSession starts a new session
func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	sess := s.registry.Create()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": sess.ID,
	})
}

// handleListSessions returns every live session
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	return c.JSON(s.registry.List())
}

// handleGetSession returns one session's listing entry
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	sess, err := s.registry.Get(c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(sess.Info())
}

// handleGetStats returns the session's stats snapshot
func (s *Server) handleGetStats(c *fiber.Ctx) error {
	st, err := s.registry.Stats(c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(st)
}

// handleResetStats zeroes the session's stats
func (s *Server) handleResetStats(c *fiber.Ctx) error {
	res, err := s.registry.Reset(c.Params("id"))
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(res)
}

// handleEndSession ends a session and persists its final report
func (s *Server) handleEndSession(c *fiber.Ctx) error {
	id := c.Params("id")
	rep, err := s.registry.End(id)
	if err != nil {
		return sessionError(c, err)
	}

	s.mu.RLock()
	rec := s.recorder
	s.mu.RUnlock()
	if rec != nil {
		if _, err := rec.Finish(id); err != nil {
			log.Warn("failed to finish recording", "session", id, "error", err)
		}
	}

	if s.history != nil {
		if err := s.history.Save(c.UserContext(), rep); err != nil {
			log.Error("failed to save report", "session", id, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":  "session ended but report was not saved: " + err.Error(),
				"report": rep,
			})
		}
	}

	return c.JSON(rep)
}

func (s *Server) historyDisabled(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": "history is disabled",
	})
}

func historyError(c *fiber.Ctx, err error) error {
	if errors.Is(err, history.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

// handleListHistory returns recent reports, newest first
func (s *Server) handleListHistory(c *fiber.Ctx) error {
	if s.history == nil {
		return s.historyDisabled(c)
	}
	limit := c.QueryInt("limit", 20)
	reports, err := s.history.List(c.UserContext(), limit)
	if err != nil {
		return historyError(c, err)
	}
	if reports == nil {
		reports = []session.Report{}
	}
	return c.JSON(reports)
}

// handleHistoryTotals returns totals across all stored reports
func (s *Server) handleHistoryTotals(c *fiber.Ctx) error {
	if s.history == nil {
		return s.historyDisabled(c)
	}
	t, err := s.history.Totals(c.UserContext())
	if err != nil {
		return historyError(c, err)
	}
	return c.JSON(t)
}

// handleGetHistory returns one stored report
func (s *Server) handleGetHistory(c *fiber.Ctx) error {
	if s.history == nil {
		return s.historyDisabled(c)
	}
	rep, err := s.history.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return historyError(c, err)
	}
	return c.JSON(rep)
}

// handleDeleteHistory removes a stored report
func (s *Server) handleDeleteHistory(c *fiber.Ctx) error {
	if s.history == nil {
		return s.historyDisabled(c)
	}
	if err := s.history.Delete(c.UserContext(), c.Params("id")); err != nil {
		return historyError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) cameraInfoLocked() *CameraInfo {
	if s.camera == nil || s.camInfo == nil {
		return nil
	}
	info := *s.camInfo
	info.Config = s.camera.GetConfig()
	return &info
}

// handleGetCamera returns the camera's session and settings
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	s.mu.RLock()
	info := s.cameraInfoLocked()
	s.mu.RUnlock()

	if info == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": camera.ErrNoCamera.Error()})
	}
	return c.JSON(info)
}

// handleUpdateCamera applies a partial settings update or preset
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	s.mu.RLock()
	m := s.camera
	s.mu.RUnlock()

	if m == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": camera.ErrNoCamera.Error()})
	}

	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := m.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(m.GetConfigJSON())
}

// handleCameraPresets lists camera presets
func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(camera.Presets())
}

// handleHubWS attaches a dashboard viewer to h. ?session=<id> follows a
// single session.
func (s *Server) handleHubWS(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		client := hub.NewClient(h, c, c.Query("session"))
		if client == nil {
			return
		}
		client.Run()
	}
}
