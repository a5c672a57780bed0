// Package geometry extracts joint angles and short-horizon motion from
// normalized keypoint positions. Everything here is a pure function of its
// inputs.
package geometry

import "math"

// Vec2 is a 2D vector in normalized image coordinates.
type Vec2 struct {
	X, Y float64
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Angle returns the interior angle at joint b between segments b→a and b→c,
// in degrees within [0, 180].
func Angle(a, b, c Vec2) float64 {
	ang := Degrees(math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X))
	ang = math.Abs(ang)
	if ang > 180 {
		ang = 360 - ang
	}
	return ang
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// AvgMotion returns the mean per-step displacement across chronologically
// ordered points. Fewer than two points yield zero motion.
func AvgMotion(points []Vec2) Vec2 {
	if len(points) < 2 {
		return Vec2{}
	}
	var sum Vec2
	for i := 1; i < len(points); i++ {
		d := points[i].Sub(points[i-1])
		sum.X += d.X
		sum.Y += d.Y
	}
	n := float64(len(points) - 1)
	return Vec2{X: sum.X / n, Y: sum.Y / n}
}
