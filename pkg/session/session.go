// Package session ties a classifier and a stats aggregator to a frame source
// and keeps track of every live session.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-smartspar/internal/log"
	"github.com/teslashibe/go-smartspar/pkg/classifier"
	"github.com/teslashibe/go-smartspar/pkg/pose"
	"github.com/teslashibe/go-smartspar/pkg/stats"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionBusy     = errors.New("session already has a frame source")
	ErrSessionEnded    = errors.New("session ended")
)

// Source yields keypoint frames. Next returns a nil frame when nothing was
// detected and io.EOF when the stream is over. Next must return promptly
// once ctx is done or Close has been called.
type Source interface {
	Next(ctx context.Context) (*pose.Frame, error)
	Close() error
}

// FrameHook is called after every processed frame, from the frame loop.
type FrameHook func(frame *pose.Frame, res classifier.Result)

// Info describes a session for listings.
type Info struct {
	ID              string    `json:"session_id"`
	CreatedAt       time.Time `json:"created_at"`
	Active          bool      `json:"active"`
	FramesProcessed int64     `json:"frames_processed"`
	FramesDropped   int64     `json:"frames_dropped"`
}

// Report is the final summary of an ended session.
type Report struct {
	SessionID       string      `json:"session_id"`
	StartedAt       time.Time   `json:"started_at"`
	EndedAt         time.Time   `json:"ended_at"`
	FramesProcessed int64       `json:"frames_processed"`
	FramesDropped   int64       `json:"frames_dropped"`
	Stats           stats.Stats `json:"stats"`
}

// Session is one fighter's classification state.
type Session struct {
	ID        string
	CreatedAt time.Time

	clock      func() time.Time
	classifier *classifier.Classifier
	stats      *stats.Aggregator

	processed atomic.Int64
	dropped   atomic.Int64
	feeding   atomic.Bool

	mu     sync.Mutex
	ended  bool
	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(id string, cfg classifier.Config, clock func() time.Time) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  clock(),
		clock:      clock,
		classifier: classifier.New(cfg),
		stats:      stats.New(clock),
	}
}

// ProcessFrame classifies one frame and commits its effects to the
// aggregator in one step. It must only be called from the session's frame
// loop.
func (s *Session) ProcessFrame(frame *pose.Frame) classifier.Result {
	res := s.classifier.Process(frame, s.clock())
	s.processed.Add(1)

	if res.Err != nil {
		s.dropped.Add(1)
		log.Warn("dropped malformed frame", "session", s.ID, "error", res.Err)
	}

	u := stats.Update{
		GuardWarning: res.GuardDropped,
		GuardUp:      res.Detected && res.GuardUp,
	}
	if res.Counted {
		p := res.Punch.Type
		u.Punch = &p
		log.Debug("punch", "session", s.ID, "type", p, "side", res.Punch.Side)
	}
	s.stats.Apply(u)

	return res
}

// Run feeds frames from src through the session until ctx is done, the
// source is exhausted, or the session ends. src is closed on return.
func (s *Session) Run(ctx context.Context, src Source, hook FrameHook) error {
	if !s.feeding.CompareAndSwap(false, true) {
		return ErrSessionBusy
	}
	defer s.feeding.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		cancel()
		src.Close()
		return ErrSessionEnded
	}
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	closeSrc := sync.OnceValue(src.Close)
	stop := context.AfterFunc(ctx, func() { closeSrc() })

	defer func() {
		stop()
		cancel()
		if err := closeSrc(); err != nil {
			log.Debug("source close", "session", s.ID, "error", err)
		}
		close(done)
	}()

	log.Info("frame loop started", "session", s.ID)
	defer log.Info("frame loop stopped", "session", s.ID)

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}

		res := s.ProcessFrame(frame)
		if hook != nil {
			hook(frame, res)
		}
	}
}

// Active reports whether a frame loop is running.
func (s *Session) Active() bool {
	return s.feeding.Load()
}

// Stats returns a snapshot of the session's stats.
func (s *Session) Stats() stats.Stats {
	return s.stats.Snapshot()
}

// Reset zeroes the session's stats. Classifier state (motion buffers,
// cooldowns, count deduplication) is kept.
func (s *Session) Reset() stats.ResetResult {
	log.Info("stats reset", "session", s.ID)
	return s.stats.Reset()
}

// Info returns the session's listing entry.
func (s *Session) Info() Info {
	return Info{
		ID:              s.ID,
		CreatedAt:       s.CreatedAt,
		Active:          s.Active(),
		FramesProcessed: s.processed.Load(),
		FramesDropped:   s.dropped.Load(),
	}
}

// end stops the frame loop, waits for it and returns the final report.
func (s *Session) end() Report {
	s.mu.Lock()
	s.ended = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	return Report{
		SessionID:       s.ID,
		StartedAt:       s.CreatedAt,
		EndedAt:         s.clock(),
		FramesProcessed: s.processed.Load(),
		FramesDropped:   s.dropped.Load(),
		Stats:           s.stats.Snapshot(),
	}
}
