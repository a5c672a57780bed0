package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-smartspar/internal/log"
	"github.com/teslashibe/go-smartspar/pkg/classifier"
	"github.com/teslashibe/go-smartspar/pkg/stats"
)

// Registry maps session IDs to live sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	config   classifier.Config
	clock    func() time.Time
}

// NewRegistry creates an empty registry. New sessions use cfg. A nil clock
// uses time.Now.
func NewRegistry(cfg classifier.Config, clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		sessions: make(map[string]*Session),
		config:   cfg,
		clock:    clock,
	}
}

// Create starts a new session with a random ID.
func (r *Registry) Create() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(uuid.NewString())
}

func (r *Registry) createLocked(id string) *Session {
	s := newSession(id, r.config, r.clock)
	r.sessions[id] = s
	log.Info("session created", "session", id, "sessions", len(r.sessions))
	return s
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// GetOrCreate returns the session with the given ID, creating it if needed.
// An empty ID always creates a new session.
func (r *Registry) GetOrCreate(id string) *Session {
	if id == "" {
		return r.Create()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s
	}
	return r.createLocked(id)
}

// List returns every session, oldest first.
func (r *Registry) List() []Info {
	r.mu.RLock()
	infos := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		infos = append(infos, s.Info())
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Stats returns a snapshot of one session's stats.
func (r *Registry) Stats(id string) (stats.Stats, error) {
	s, err := r.Get(id)
	if err != nil {
		return stats.Stats{}, err
	}
	return s.Stats(), nil
}

// Reset zeroes one session's stats.
func (r *Registry) Reset(id string) (stats.ResetResult, error) {
	s, err := r.Get(id)
	if err != nil {
		return stats.ResetResult{}, err
	}
	return s.Reset(), nil
}

// End removes a session, stops its frame loop and returns its final report.
func (r *Registry) End(id string) (Report, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return Report{}, ErrSessionNotFound
	}

	rep := s.end()
	log.Info("session ended", "session", id,
		"punches", rep.Stats.TotalPunches,
		"frames", rep.FramesProcessed,
		"dropped", rep.FramesDropped)
	return rep, nil
}

// SetConfig changes the thresholds used for sessions created afterwards.
func (r *Registry) SetConfig(cfg classifier.Config) {
	r.mu.Lock()
	r.config = cfg
	r.mu.Unlock()
	log.Info("classifier config updated")
}

// Config returns the thresholds used for new sessions.
func (r *Registry) Config() classifier.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// Close ends every session and returns their reports.
func (r *Registry) Close() []Report {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	reports := make([]Report, 0, len(sessions))
	for _, s := range sessions {
		reports = append(reports, s.end())
	}
	return reports
}
