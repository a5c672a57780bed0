// Package posetest builds synthetic keypoint frames for tests.
//
// The fighter faces the camera: the left arm is on the image's right side.
// Mouth corners sit at y=0.30, so the guard line is y=0.45 with the default
// margin. The nose is at y=0.20.
package posetest

import "github.com/teslashibe/go-smartspar/pkg/pose"

// Head landmarks shared by every stance.
const (
	NoseY  = 0.20
	MouthY = 0.30
)

func base() *pose.Frame {
	f := pose.NewFrame()
	f.Set(pose.Nose, pose.Point{X: 0.50, Y: NoseY, Visibility: 1})
	f.Set(pose.MouthLeft, pose.Point{X: 0.53, Y: MouthY, Visibility: 1})
	f.Set(pose.MouthRight, pose.Point{X: 0.47, Y: MouthY, Visibility: 1})
	return f
}

// arm places shoulder, elbow and wrist for one side.
func arm(f *pose.Frame, left bool, shoulder, elbow, wrist pose.Point) *pose.Frame {
	s, e, w := pose.RightShoulder, pose.RightElbow, pose.RightWrist
	if left {
		s, e, w = pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist
	}
	shoulder.Visibility, elbow.Visibility, wrist.Visibility = 1, 1, 1
	f.Set(s, shoulder)
	f.Set(e, elbow)
	f.Set(w, wrist)
	return f
}

// guardArm is a tightly folded arm with the fist by the cheek.
func guardArm(f *pose.Frame, left bool) *pose.Frame {
	if left {
		return arm(f, true,
			pose.Point{X: 0.60, Y: 0.45},
			pose.Point{X: 0.65, Y: 0.55},
			pose.Point{X: 0.60, Y: 0.40})
	}
	return arm(f, false,
		pose.Point{X: 0.40, Y: 0.45},
		pose.Point{X: 0.35, Y: 0.55},
		pose.Point{X: 0.40, Y: 0.40})
}

// straightArm is a fully extended arm reaching toward the camera.
func straightArm(f *pose.Frame, left bool) *pose.Frame {
	x := 0.40
	if left {
		x = 0.60
	}
	return arm(f, left,
		pose.Point{X: x, Y: 0.45, Z: 0},
		pose.Point{X: x, Y: 0.40, Z: -0.10},
		pose.Point{X: x, Y: 0.35, Z: -0.30})
}

// Guard returns a stance with both hands up and no strike.
func Guard() *pose.Frame {
	f := base()
	guardArm(f, true)
	guardArm(f, false)
	return f
}

// GuardDown returns a stance with both hands dropped below the chin line.
func GuardDown() *pose.Frame {
	f := base()
	arm(f, true,
		pose.Point{X: 0.60, Y: 0.45},
		pose.Point{X: 0.65, Y: 0.60},
		pose.Point{X: 0.62, Y: 0.70})
	arm(f, false,
		pose.Point{X: 0.40, Y: 0.45},
		pose.Point{X: 0.35, Y: 0.60},
		pose.Point{X: 0.38, Y: 0.70})
	return f
}

// Jab returns the left arm fully extended toward the camera.
func Jab() *pose.Frame {
	f := base()
	straightArm(f, true)
	guardArm(f, false)
	return f
}

// Cross returns the right arm fully extended toward the camera.
func Cross() *pose.Frame {
	f := base()
	guardArm(f, true)
	straightArm(f, false)
	return f
}

// Hook returns the left arm bent at 90° with the wrist at x. Sweeping x
// across consecutive frames produces horizontal wrist motion.
func Hook(x float64) *pose.Frame {
	f := base()
	arm(f, true,
		pose.Point{X: x - 0.10, Y: 0.45},
		pose.Point{X: x, Y: 0.45},
		pose.Point{X: x, Y: 0.35})
	guardArm(f, false)
	return f
}

// Uppercut returns the right arm bent at 90° with the wrist at height y.
// Raising y across consecutive frames produces upward wrist motion.
func Uppercut(y float64) *pose.Frame {
	f := base()
	guardArm(f, true)
	arm(f, false,
		pose.Point{X: 0.30, Y: y + 0.10},
		pose.Point{X: 0.40, Y: y + 0.10},
		pose.Point{X: 0.40, Y: y})
	return f
}

// Without returns a copy of f missing the given landmark.
func Without(f *pose.Frame, l pose.Landmark) *pose.Frame {
	out := pose.NewFrame()
	for k, v := range f.Landmarks {
		if k != l {
			out.Set(k, v)
		}
	}
	return out
}
