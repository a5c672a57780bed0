package classifier

import (
	"math"

	"github.com/teslashibe/go-smartspar/pkg/geometry"
	"github.com/teslashibe/go-smartspar/pkg/pose"
)

// armFeatures is what the rules look at for one arm in one frame.
type armFeatures struct {
	elbowAngle float64
	depth      float64 // wrist.z - elbow.z, negative when the fist leads
	wristY     float64
	motion     geometry.Vec2
}

type features struct {
	left, right armFeatures
	noseY       float64
}

func extractArm(f *pose.Frame, shoulder, elbow, wrist pose.Landmark, buf *geometry.MotionBuffer) armFeatures {
	s, _ := f.Get(shoulder)
	e, _ := f.Get(elbow)
	w, _ := f.Get(wrist)
	return armFeatures{
		elbowAngle: geometry.Angle(vec(s), vec(e), vec(w)),
		depth:      w.Z - e.Z,
		wristY:     w.Y,
		motion:     buf.AvgMotion(),
	}
}

func vec(p pose.Point) geometry.Vec2 {
	return geometry.Vec2{X: p.X, Y: p.Y}
}

// rule is one row of the priority table. match reports which arm satisfied
// the geometric predicates; cooldown is checked by the caller.
type rule struct {
	punch PunchType
	match func(cfg *Config, f *features) (Side, bool)
}

// rules is evaluated top to bottom; the first rule that matches and is off
// cooldown wins the frame.
var rules = []rule{
	{Jab, func(cfg *Config, f *features) (Side, bool) {
		return Left, straight(cfg, &f.left)
	}},
	{Cross, func(cfg *Config, f *features) (Side, bool) {
		return Right, straight(cfg, &f.right)
	}},
	{Hook, func(cfg *Config, f *features) (Side, bool) {
		return eitherArm(f, func(a *armFeatures) bool { return hook(cfg, a) })
	}},
	{Uppercut, func(cfg *Config, f *features) (Side, bool) {
		return eitherArm(f, func(a *armFeatures) bool { return uppercut(cfg, a, f.noseY) })
	}},
}

func eitherArm(f *features, pred func(*armFeatures) bool) (Side, bool) {
	if pred(&f.left) {
		return Left, true
	}
	if pred(&f.right) {
		return Right, true
	}
	return "", false
}

func straight(cfg *Config, a *armFeatures) bool {
	return a.depth < -cfg.StraightDepthMargin &&
		a.elbowAngle > cfg.StraightMinAngle
}

func hook(cfg *Config, a *armFeatures) bool {
	dx, dy := math.Abs(a.motion.X), math.Abs(a.motion.Y)
	return a.elbowAngle > cfg.HookMinAngle && a.elbowAngle < cfg.HookMaxAngle &&
		dx > dy*cfg.HookRatio &&
		dx > cfg.HookMinMotion
}

// uppercut requires the fist to start below the nose and rise (y shrinks).
func uppercut(cfg *Config, a *armFeatures, noseY float64) bool {
	up := -a.motion.Y
	return a.elbowAngle < cfg.UppercutMaxAngle &&
		a.wristY > noseY &&
		up > math.Abs(a.motion.X)*cfg.UppercutRatio &&
		up > cfg.UppercutMinMotion
}
