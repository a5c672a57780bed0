// Package classifier implements the per-session boxing rule engine: guard
// assessment, punch classification with per-type cooldowns, count
// deduplication and label smoothing.
//
// A Classifier is owned by exactly one frame loop and is not safe for
// concurrent use.
package classifier

import (
	"image/color"
	"time"

	"github.com/teslashibe/go-smartspar/pkg/geometry"
	"github.com/teslashibe/go-smartspar/pkg/pose"
)

// PunchType is the category of a classified strike.
type PunchType string

const (
	Jab      PunchType = "Jab"
	Cross    PunchType = "Cross"
	Hook     PunchType = "Hook"
	Uppercut PunchType = "Uppercut"
)

// PunchTypes lists every category in rule priority order.
var PunchTypes = []PunchType{Jab, Cross, Hook, Uppercut}

// Side is the arm that threw a punch.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// Event is a single classified punch.
type Event struct {
	Type PunchType `json:"type"`
	Side Side      `json:"side"`
	Time time.Time `json:"time"`
}

// Label returns the feedback text for the event.
func (e Event) Label() string {
	return "[OK] " + string(e.Type)
}

// Feedback colors.
var (
	ColorOK    = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	ColorAlert = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// Feedback is one line of on-screen coaching text.
type Feedback struct {
	Label string     `json:"label"`
	Color color.RGBA `json:"-"`
}

// Guard labels.
const (
	GuardUpLabel   = "[OK] Guard"
	GuardDownLabel = "[!] Guard Down"
)

// Result is the outcome of one frame.
type Result struct {
	Detected     bool  // A valid body was classified this frame
	Err          error // Set when the frame was malformed and dropped
	GuardUp      bool
	GuardDropped bool   // Guard went from up to down on this frame
	Punch        *Event // Classified this frame, nil if none
	Counted      bool   // Punch survived count deduplication
	Feedback     []Feedback

	// Average wrist motion, for overlays
	LeftMotion  geometry.Vec2
	RightMotion geometry.Vec2
}

// Classifier holds the temporal state of one fighter.
type Classifier struct {
	config Config

	leftWrist  *geometry.MotionBuffer
	rightWrist *geometry.MotionBuffer

	cooldowns map[PunchType]time.Time

	guardWasUp bool

	lastCounted     PunchType
	lastCountedTime time.Time

	lastPunch     *Event
	lastPunchTime time.Time
}

// New creates a classifier. The guard starts up, so a fighter who begins
// with hands down triggers one warning.
func New(config Config) *Classifier {
	return &Classifier{
		config:     config,
		leftWrist:  geometry.NewMotionBuffer(config.BufferSize),
		rightWrist: geometry.NewMotionBuffer(config.BufferSize),
		cooldowns:  make(map[PunchType]time.Time, len(PunchTypes)),
		guardWasUp: true,
	}
}

// Config returns the classifier's thresholds.
func (c *Classifier) Config() Config {
	return c.config
}

// LastFired returns when a punch rule last fired, zero if never.
func (c *Classifier) LastFired(p PunchType) time.Time {
	return c.cooldowns[p]
}

// Process classifies one frame observed at now. A nil frame means nothing was
// detected; it and malformed frames leave all state untouched.
func (c *Classifier) Process(frame *pose.Frame, now time.Time) Result {
	if frame == nil {
		return Result{}
	}
	if err := frame.Validate(c.config.MinVisibility); err != nil {
		return Result{Err: err}
	}

	lw, _ := frame.Get(pose.LeftWrist)
	rw, _ := frame.Get(pose.RightWrist)
	c.leftWrist.Push(vec(lw))
	c.rightWrist.Push(vec(rw))

	res := Result{
		Detected:    true,
		LeftMotion:  c.leftWrist.AvgMotion(),
		RightMotion: c.rightWrist.AvgMotion(),
	}

	res.GuardUp = c.guardUp(frame)
	res.GuardDropped = c.guardWasUp && !res.GuardUp
	c.guardWasUp = res.GuardUp

	if !res.GuardUp {
		res.Feedback = []Feedback{{Label: GuardDownLabel, Color: ColorAlert}}
		return res
	}
	res.Feedback = []Feedback{{Label: GuardUpLabel, Color: ColorOK}}

	if ev := c.classify(frame, now); ev != nil {
		res.Punch = ev
		c.lastPunch = ev
		c.lastPunchTime = now

		if now.Sub(c.lastCountedTime) > c.config.CountCooldown || ev.Type != c.lastCounted {
			res.Counted = true
			c.lastCounted = ev.Type
			c.lastCountedTime = now
		}
	}

	if c.lastPunch != nil && now.Sub(c.lastPunchTime) < c.config.DisplayDuration {
		res.Feedback = append(res.Feedback, Feedback{Label: c.lastPunch.Label(), Color: ColorOK})
	}

	return res
}

// guardUp reports whether both wrists sit above the chin line.
func (c *Classifier) guardUp(f *pose.Frame) bool {
	ml, _ := f.Get(pose.MouthLeft)
	mr, _ := f.Get(pose.MouthRight)
	lw, _ := f.Get(pose.LeftWrist)
	rw, _ := f.Get(pose.RightWrist)

	threshold := (ml.Y+mr.Y)/2 + c.config.GuardMargin
	return lw.Y < threshold && rw.Y < threshold
}

// classify runs the rule table and fires at most one rule.
func (c *Classifier) classify(f *pose.Frame, now time.Time) *Event {
	nose, _ := f.Get(pose.Nose)
	feat := features{
		left:  extractArm(f, pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, c.leftWrist),
		right: extractArm(f, pose.RightShoulder, pose.RightElbow, pose.RightWrist, c.rightWrist),
		noseY: nose.Y,
	}

	for _, r := range rules {
		side, ok := r.match(&c.config, &feat)
		if !ok || !c.cooledDown(r.punch, now) {
			continue
		}
		c.cooldowns[r.punch] = now
		return &Event{Type: r.punch, Side: side, Time: now}
	}
	return nil
}

func (c *Classifier) cooledDown(p PunchType, now time.Time) bool {
	last, ok := c.cooldowns[p]
	return !ok || now.Sub(last) > c.config.PunchCooldown
}
