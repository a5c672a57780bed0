package pose

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/teslashibe/go-smartspar/internal/httpc"
)

// Estimator turns an encoded image into a keypoint frame.
// A nil frame with a nil error means no body was found.
type Estimator interface {
	Estimate(ctx context.Context, jpeg []byte) (*Frame, error)
}

// RemoteConfig configures a RemoteEstimator.
type RemoteConfig struct {
	URL     string        // Endpoint accepting image/jpeg POSTs
	Timeout time.Duration // Per-request timeout
}

// DefaultRemoteConfig points at a pose sidecar on localhost.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		URL:     "http://127.0.0.1:8500/pose",
		Timeout: 2 * time.Second,
	}
}

// RemoteEstimator posts JPEG frames to an HTTP pose-estimation sidecar.
//
// The sidecar answers with MediaPipe-style output:
//
//	{"landmarks": [{"x":..,"y":..,"z":..,"visibility":..}, ...]}
//
// indexed by BlazePose landmark number, or an empty list when nobody is in
// view.
type RemoteEstimator struct {
	config RemoteConfig
	client *http.Client
}

// NewRemoteEstimator creates an estimator using a shared HTTP client.
func NewRemoteEstimator(cfg RemoteConfig) *RemoteEstimator {
	client := httpc.Client
	if cfg.Timeout > 0 {
		client = httpc.NewClient(cfg.Timeout)
	}
	return &RemoteEstimator{config: cfg, client: client}
}

type remoteResponse struct {
	Landmarks []Point `json:"landmarks"`
}

// Estimate implements Estimator.
func (e *RemoteEstimator) Estimate(ctx context.Context, jpeg []byte) (*Frame, error) {
	var out remoteResponse
	err := httpc.Request(ctx, e.client, http.MethodPost, e.config.URL, "image/jpeg", jpeg, &out)
	if err != nil {
		return nil, fmt.Errorf("pose estimator: %w", err)
	}
	return FrameFromIndexed(out.Landmarks), nil
}

// FrameFromIndexed builds a frame from a BlazePose-indexed landmark list.
// An empty list yields nil (no detection).
func FrameFromIndexed(points []Point) *Frame {
	if len(points) == 0 {
		return nil
	}
	f := NewFrame()
	for i, p := range points {
		if l, ok := FromMediaPipeIndex(i); ok {
			f.Set(l, p)
		}
	}
	return f
}
