// Package camera captures webcam frames, runs pose estimation on them and
// publishes annotated JPEG frames.
package camera

import (
	"fmt"
	"slices"
)

// Config holds all camera configuration parameters.
// These can be modified via the camera API at runtime.
type Config struct {
	// === Device ===
	// Devices are tried in order; the first one that opens is used.
	Devices []int `json:"devices"`

	// === Resolution ===
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100

	// === Overlay ===
	// Overlay draws feedback text and wrist motion arrows on published frames.
	Overlay bool `json:"overlay"`

	// Mirror flips frames horizontally before estimation, so the fighter
	// sees themselves as in a mirror.
	Mirror bool `json:"mirror"`
}

// Capture limits
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
	MaxDevice    = 63
)

// DefaultConfig returns the webcam defaults: first of devices 0-2 at 640x480.
func DefaultConfig() Config {
	return Config{
		Devices:   []int{0, 1, 2},
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   80,
		Overlay:   true,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if len(c.Devices) == 0 {
		errors = append(errors, "devices must list at least one camera index")
	}
	for _, d := range c.Devices {
		if d < 0 || d > MaxDevice {
			errors = append(errors, fmt.Sprintf("device %d must be between 0 and %d", d, MaxDevice))
		}
	}

	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}

// Clone returns a copy that shares no slices with c.
func (c Config) Clone() Config {
	c.Devices = slices.Clone(c.Devices)
	return c
}
