package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-smartspar/internal/log"
	"github.com/teslashibe/go-smartspar/pkg/classifier"
	"github.com/teslashibe/go-smartspar/pkg/geometry"
	"github.com/teslashibe/go-smartspar/pkg/pose"
)

// ErrNoCamera is returned when none of the configured devices opens.
var ErrNoCamera = errors.New("no camera found")

// Sink receives encoded JPEG frames.
type Sink func(jpeg []byte)

// Arrow colors for the wrist motion overlay.
var (
	LeftArrowColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	RightArrowColor = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	textColor       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Source captures frames from a webcam. It implements session.Source; pass
// Annotate as the session's frame hook to publish annotated frames.
type Source struct {
	estimator pose.Estimator
	sink      Sink

	mu      sync.Mutex
	cfg     Config
	device  int
	capture *gocv.VideoCapture
	img     gocv.Mat
	jpeg    []byte // Encoding of img before annotation
	closed  bool

	frames atomic.Uint64
}

// Open opens the first working device in cfg.Devices. est may be nil, in
// which case every frame counts as no detection. sink may be nil.
func Open(cfg Config, est pose.Estimator, sink Sink) (*Source, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %v", errs)
	}

	for _, d := range cfg.Devices {
		vc, err := gocv.OpenVideoCapture(d)
		if err != nil {
			log.Debug("camera unavailable", "device", d, "error", err)
			continue
		}
		if !vc.IsOpened() {
			vc.Close()
			log.Debug("camera unavailable", "device", d)
			continue
		}

		s := &Source{
			estimator: est,
			sink:      sink,
			cfg:       cfg.Clone(),
			device:    d,
			capture:   vc,
			img:       gocv.NewMat(),
		}
		s.applyLocked()
		log.Info("camera opened", "device", d, "width", cfg.Width, "height", cfg.Height, "fps", cfg.Framerate)
		return s, nil
	}

	return nil, fmt.Errorf("%w: tried devices %v", ErrNoCamera, cfg.Devices)
}

func (s *Source) applyLocked() {
	s.capture.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
	s.capture.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))
	s.capture.Set(gocv.VideoCaptureFPS, float64(s.cfg.Framerate))
}

// Apply updates resolution, frame rate and overlay settings on the open
// device. Device changes take effect on the next Open.
func (s *Source) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	s.cfg = cfg.Clone()
	s.applyLocked()
	return nil
}

// Device returns the index of the open device.
func (s *Source) Device() int {
	return s.device
}

// Frames returns the number of frames captured.
func (s *Source) Frames() uint64 {
	return s.frames.Load()
}

// Next captures a frame and runs pose estimation on it. Estimation failures
// are logged and reported as no detection.
func (s *Source) Next(ctx context.Context) (*pose.Frame, error) {
	jpeg, err := s.grab()
	if err != nil {
		if ctx.Err() != nil {
			return nil, io.EOF
		}
		return nil, err
	}

	if s.estimator == nil {
		return nil, nil
	}
	frame, err := s.estimator.Estimate(ctx, jpeg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("pose estimation failed", "device", s.device, "error", err)
		return nil, nil
	}
	return frame, nil
}

func (s *Source) grab() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, io.EOF
	}
	if ok := s.capture.Read(&s.img); !ok || s.img.Empty() {
		return nil, fmt.Errorf("failed to read from camera %d", s.device)
	}
	if s.cfg.Mirror {
		gocv.Flip(s.img, &s.img, 1)
	}
	s.frames.Add(1)

	jpeg, err := encode(s.img, s.cfg.Quality)
	if err != nil {
		return nil, err
	}
	s.jpeg = jpeg
	return jpeg, nil
}

// Annotate draws the classification result on the last captured frame and
// publishes it to the sink. It has the signature of a session frame hook.
func (s *Source) Annotate(frame *pose.Frame, res classifier.Result) {
	if s.sink == nil {
		return
	}

	s.mu.Lock()
	if s.closed || s.img.Empty() {
		s.mu.Unlock()
		return
	}
	out := s.jpeg
	if s.cfg.Overlay {
		drawOverlay(&s.img, frame, res)
		var err error
		if out, err = encode(s.img, s.cfg.Quality); err != nil {
			s.mu.Unlock()
			log.Warn("frame encode failed", "device", s.device, "error", err)
			return
		}
	}
	s.mu.Unlock()

	s.sink(out)
}

// Close releases the device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.img.Close()
	log.Info("camera closed", "device", s.device, "frames", s.frames.Load())
	return s.capture.Close()
}

func encode(img gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close
	return append([]byte(nil), buf.GetBytes()...), nil
}

// drawOverlay renders feedback lines and wrist motion arrows onto img.
func drawOverlay(img *gocv.Mat, frame *pose.Frame, res classifier.Result) {
	y := 30
	for _, fb := range res.Feedback {
		gocv.PutTextWithParams(img, fb.Label, image.Pt(10, y), gocv.FontHersheyDuplex,
			0.7, fb.Color, 2, gocv.LineAA, false)
		y += 30
	}

	if !res.Detected {
		return
	}
	w, h := img.Cols(), img.Rows()
	if p, ok := frame.Get(pose.LeftWrist); ok {
		if from, to, ok := arrowPoints(w, h, p, res.LeftMotion); ok {
			gocv.ArrowedLine(img, from, to, LeftArrowColor, 2)
		}
	}
	if p, ok := frame.Get(pose.RightWrist); ok {
		if from, to, ok := arrowPoints(w, h, p, res.RightMotion); ok {
			gocv.ArrowedLine(img, from, to, RightArrowColor, 2)
		}
	}
}

// arrowPoints maps a wrist position and its average motion to pixel
// endpoints. It reports false when the wrist did not move.
func arrowPoints(w, h int, wrist pose.Point, motion geometry.Vec2) (from, to image.Point, ok bool) {
	to = image.Pt(int(wrist.X*float64(w)), int(wrist.Y*float64(h)))
	from = image.Pt(int((wrist.X-motion.X)*float64(w)), int((wrist.Y-motion.Y)*float64(h)))
	return from, to, from != to
}

// Placeholder renders the frame shown when no camera is available.
func Placeholder(cfg Config) ([]byte, error) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), cfg.Height, cfg.Width, gocv.MatTypeCV8UC3)
	defer img.Close()

	gocv.PutText(&img, "No camera detected", image.Pt(cfg.Width/2-220, cfg.Height/2-40),
		gocv.FontHersheySimplex, 1, textColor, 2)
	gocv.PutText(&img, "Keypoint streams are still accepted", image.Pt(cfg.Width/2-270, cfg.Height/2+10),
		gocv.FontHersheySimplex, 0.7, textColor, 2)

	return encode(img, cfg.Quality)
}

// RunPlaceholder publishes the placeholder frame every 100ms until ctx is
// done.
func RunPlaceholder(ctx context.Context, cfg Config, sink Sink) error {
	jpeg, err := Placeholder(cfg)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sink(jpeg)
		}
	}
}
