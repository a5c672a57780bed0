// Package stats aggregates per-session boxing statistics. An Aggregator is
// written by one frame loop and read or reset by any number of reporting
// goroutines.
package stats

import (
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-smartspar/pkg/classifier"
)

// Stats is a point-in-time view of a session.
type Stats struct {
	TotalPunches     int                          `json:"total_punches"`
	ValidPunches     int                          `json:"valid_punches"`
	Accuracy         float64                      `json:"accuracy"`
	GuardWarnings    int                          `json:"guard_warnings"`
	GuardPerfection  float64                      `json:"guard_perfection"`
	PunchCounts      map[classifier.PunchType]int `json:"punch_counts"`
	SessionDuration  float64                      `json:"session_duration"`
	PunchesPerMinute float64                      `json:"punches_per_minute"`
}

// ResetResult is returned by Reset.
type ResetResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Update is the aggregate effect of one frame.
type Update struct {
	GuardWarning bool
	Punch        *classifier.PunchType // Counted punch, nil if none
	GuardUp      bool
}

// Aggregator accumulates counters and durations for one session.
type Aggregator struct {
	mu    sync.Mutex
	clock func() time.Time

	totalPunches  int
	validPunches  int
	guardWarnings int
	punchCounts   map[classifier.PunchType]int

	guardUpTime  time.Duration
	trackingTime time.Duration
	sessionStart time.Time
	lastTracking time.Time
}

// New creates an aggregator. A nil clock uses time.Now.
func New(clock func() time.Time) *Aggregator {
	if clock == nil {
		clock = time.Now
	}
	a := &Aggregator{clock: clock}
	a.resetLocked()
	return a
}

func (a *Aggregator) resetLocked() {
	now := a.clock()
	a.totalPunches = 0
	a.validPunches = 0
	a.guardWarnings = 0
	a.punchCounts = make(map[classifier.PunchType]int, len(classifier.PunchTypes))
	for _, p := range classifier.PunchTypes {
		a.punchCounts[p] = 0
	}
	a.guardUpTime = 0
	a.trackingTime = 0
	a.sessionStart = now
	a.lastTracking = now
}

// RecordGuardWarning counts one guard drop.
func (a *Aggregator) RecordGuardWarning() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.guardWarnings++
}

// RecordPunch counts one punch of type p.
func (a *Aggregator) RecordPunch(p classifier.PunchType) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recordPunchLocked(p)
}

func (a *Aggregator) recordPunchLocked(p classifier.PunchType) {
	a.totalPunches++
	a.validPunches++
	a.punchCounts[p]++
}

// UpdateTrackingTime adds the time since the previous update to the tracked
// duration, and to the guard-up duration when guardOK.
func (a *Aggregator) UpdateTrackingTime(guardOK bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trackLocked(guardOK)
}

func (a *Aggregator) trackLocked(guardOK bool) {
	now := a.clock()
	elapsed := now.Sub(a.lastTracking)
	if elapsed < 0 {
		elapsed = 0
	}
	a.trackingTime += elapsed
	if guardOK {
		a.guardUpTime += elapsed
	}
	a.lastTracking = now
}

// Apply commits one frame's effects atomically, so a concurrent Snapshot
// never observes half a frame.
func (a *Aggregator) Apply(u Update) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if u.GuardWarning {
		a.guardWarnings++
	}
	if u.Punch != nil {
		a.recordPunchLocked(*u.Punch)
	}
	a.trackLocked(u.GuardUp)
}

// Snapshot returns the current stats with derived metrics recomputed.
func (a *Aggregator) Snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	duration := a.clock().Sub(a.sessionStart).Seconds()
	if duration < 0 {
		duration = 0
	}

	s := Stats{
		TotalPunches:    a.totalPunches,
		ValidPunches:    a.validPunches,
		GuardWarnings:   a.guardWarnings,
		PunchCounts:     make(map[classifier.PunchType]int, len(a.punchCounts)),
		SessionDuration: round1(duration),
	}
	for k, v := range a.punchCounts {
		s.PunchCounts[k] = v
	}

	if a.totalPunches > 0 {
		s.Accuracy = round1(float64(a.validPunches) / float64(a.totalPunches) * 100)
	}
	if a.trackingTime > 0 {
		s.GuardPerfection = round1(a.guardUpTime.Seconds() / a.trackingTime.Seconds() * 100)
	}
	if duration > 0 {
		s.PunchesPerMinute = round1(float64(a.totalPunches) / (duration / 60))
	}

	return s
}

// Reset zeroes all counters and durations and restarts the session clock.
func (a *Aggregator) Reset() ResetResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
	return ResetResult{Status: "success", Message: "Stats reset successfully"}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
