// Package pose defines the keypoint frames produced by an upstream pose
// estimator and consumed by the classifier.
//
// Coordinates follow the MediaPipe convention: x and y are normalized to the
// image (0-1, y grows downward) and z is depth relative to the hips, more
// negative meaning closer to the camera.
package pose

import (
	"errors"
	"fmt"
	"math"
)

// Landmark names a body keypoint.
type Landmark string

// Landmarks read by the classifier.
const (
	Nose          Landmark = "NOSE"
	MouthLeft     Landmark = "MOUTH_LEFT"
	MouthRight    Landmark = "MOUTH_RIGHT"
	LeftShoulder  Landmark = "LEFT_SHOULDER"
	RightShoulder Landmark = "RIGHT_SHOULDER"
	LeftElbow     Landmark = "LEFT_ELBOW"
	RightElbow    Landmark = "RIGHT_ELBOW"
	LeftWrist     Landmark = "LEFT_WRIST"
	RightWrist    Landmark = "RIGHT_WRIST"
)

// Required lists every landmark a frame must carry to be classified.
var Required = []Landmark{
	Nose,
	MouthLeft,
	MouthRight,
	LeftShoulder,
	RightShoulder,
	LeftElbow,
	RightElbow,
	LeftWrist,
	RightWrist,
}

// mediapipeIndex maps BlazePose landmark indices to names.
var mediapipeIndex = map[int]Landmark{
	0:  Nose,
	9:  MouthLeft,
	10: MouthRight,
	11: LeftShoulder,
	12: RightShoulder,
	13: LeftElbow,
	14: RightElbow,
	15: LeftWrist,
	16: RightWrist,
}

// FromMediaPipeIndex returns the landmark for a BlazePose index, if it is one
// the classifier uses.
func FromMediaPipeIndex(i int) (Landmark, bool) {
	l, ok := mediapipeIndex[i]
	return l, ok
}

// ErrMalformedFrame is returned when a frame cannot be classified.
var ErrMalformedFrame = errors.New("malformed keypoint frame")

// Point is a normalized 3D landmark position.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility,omitempty"`
}

func (p Point) finite() bool {
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Frame is one detected body. A nil *Frame means nothing was detected.
type Frame struct {
	Landmarks map[Landmark]Point `json:"landmarks"`
}

// NewFrame returns an empty frame ready to be filled.
func NewFrame() *Frame {
	return &Frame{Landmarks: make(map[Landmark]Point, len(Required))}
}

// Set stores a landmark position and returns the frame for chaining.
func (f *Frame) Set(l Landmark, p Point) *Frame {
	if f.Landmarks == nil {
		f.Landmarks = make(map[Landmark]Point, len(Required))
	}
	f.Landmarks[l] = p
	return f
}

// Get returns a landmark position.
func (f *Frame) Get(l Landmark) (Point, bool) {
	if f == nil || f.Landmarks == nil {
		return Point{}, false
	}
	p, ok := f.Landmarks[l]
	return p, ok
}

// Validate checks that every required landmark is present with finite
// coordinates. When minVisibility > 0, landmarks reported less visible than
// that are rejected too.
func (f *Frame) Validate(minVisibility float64) error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrMalformedFrame)
	}
	for _, l := range Required {
		p, ok := f.Landmarks[l]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrMalformedFrame, l)
		}
		if !p.finite() {
			return fmt.Errorf("%w: non-finite %s", ErrMalformedFrame, l)
		}
		if minVisibility > 0 && p.Visibility < minVisibility {
			return fmt.Errorf("%w: %s visibility %.2f below %.2f",
				ErrMalformedFrame, l, p.Visibility, minVisibility)
		}
	}
	return nil
}
