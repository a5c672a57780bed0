package classifier

import (
	"fmt"
	"time"
)

// Config holds all tunable thresholds for guard and punch detection.
// Distances are in normalized image units, angles in degrees.
type Config struct {
	// Motion
	BufferSize int // Wrist positions kept per arm (3-5)

	// Guard
	GuardMargin float64 // Wrists must sit above mouth line + this

	// Timing
	PunchCooldown   time.Duration // Min gap between firings of one punch rule
	CountCooldown   time.Duration // Same-type punches inside this window count once
	DisplayDuration time.Duration // How long a punch label stays in feedback

	// Jab / Cross
	StraightDepthMargin float64 // Wrist must be this much closer than elbow
	StraightMinAngle    float64 // Elbow must open wider than this

	// Hook
	HookMinAngle  float64 // Elbow angle lower bound (exclusive)
	HookMaxAngle  float64 // Elbow angle upper bound (exclusive)
	HookRatio     float64 // |dx| must exceed |dy| * HookRatio
	HookMinMotion float64 // |dx| must exceed this

	// Uppercut
	UppercutMaxAngle  float64 // Elbow must be tighter than this
	UppercutRatio     float64 // -dy must exceed |dx| * UppercutRatio
	UppercutMinMotion float64 // -dy must exceed this

	// Input quality
	MinVisibility float64 // Reject frames with required landmarks below this (0 = off)
}

// DefaultConfig returns the thresholds the rule engine was tuned with.
func DefaultConfig() Config {
	return Config{
		BufferSize: 5,

		GuardMargin: 0.15,

		PunchCooldown:   400 * time.Millisecond,
		CountCooldown:   500 * time.Millisecond,
		DisplayDuration: 1 * time.Second,

		StraightDepthMargin: 0.02,
		StraightMinAngle:    145,

		HookMinAngle:  60,
		HookMaxAngle:  120,
		HookRatio:     1.5,
		HookMinMotion: 0.02,

		// Stricter than hook: the two look alike from the front
		UppercutMaxAngle:  110,
		UppercutRatio:     2.0,
		UppercutMinMotion: 0.05,
	}
}

// StrictConfig returns thresholds for noisy cameras or loose form.
// Fewer false positives, more missed punches.
func StrictConfig() Config {
	cfg := DefaultConfig()
	cfg.PunchCooldown = 500 * time.Millisecond
	cfg.CountCooldown = 600 * time.Millisecond
	cfg.StraightDepthMargin = 0.04
	cfg.StraightMinAngle = 155
	cfg.HookMinMotion = 0.03
	cfg.UppercutMinMotion = 0.07
	cfg.MinVisibility = 0.5
	return cfg
}

// SensitiveConfig returns thresholds for fast combinations at short range.
func SensitiveConfig() Config {
	cfg := DefaultConfig()
	cfg.BufferSize = 3 // Reacts to motion one frame sooner
	cfg.PunchCooldown = 300 * time.Millisecond
	cfg.CountCooldown = 400 * time.Millisecond
	cfg.StraightDepthMargin = 0.015
	cfg.StraightMinAngle = 140
	cfg.HookMinMotion = 0.015
	cfg.UppercutMinMotion = 0.04
	return cfg
}

// Preset returns a named configuration ("default", "strict", "sensitive").
func Preset(name string) (Config, bool) {
	switch name {
	case "", "default":
		return DefaultConfig(), true
	case "strict":
		return StrictConfig(), true
	case "sensitive":
		return SensitiveConfig(), true
	}
	return Config{}, false
}

// Validate returns every violated bound.
func (c Config) Validate() []string {
	var errs []string

	if c.BufferSize < 3 || c.BufferSize > 5 {
		errs = append(errs, fmt.Sprintf("buffer_size must be 3-5, got %d", c.BufferSize))
	}
	if c.GuardMargin < 0 || c.GuardMargin > 1 {
		errs = append(errs, fmt.Sprintf("guard_margin must be 0-1, got %v", c.GuardMargin))
	}
	if c.PunchCooldown < 0 {
		errs = append(errs, "punch_cooldown must not be negative")
	}
	if c.CountCooldown < 0 {
		errs = append(errs, "count_cooldown must not be negative")
	}
	if c.DisplayDuration < 0 {
		errs = append(errs, "display_duration must not be negative")
	}
	if c.StraightMinAngle < 0 || c.StraightMinAngle > 180 {
		errs = append(errs, fmt.Sprintf("straight_min_angle must be 0-180, got %v", c.StraightMinAngle))
	}
	if c.HookMinAngle < 0 || c.HookMaxAngle > 180 || c.HookMinAngle >= c.HookMaxAngle {
		errs = append(errs, fmt.Sprintf("hook angle range (%v, %v) is invalid", c.HookMinAngle, c.HookMaxAngle))
	}
	if c.UppercutMaxAngle <= 0 || c.UppercutMaxAngle > 180 {
		errs = append(errs, fmt.Sprintf("uppercut_max_angle must be 0-180, got %v", c.UppercutMaxAngle))
	}
	if c.HookRatio <= 0 || c.UppercutRatio <= 0 {
		errs = append(errs, "motion ratios must be positive")
	}
	if c.HookMinMotion < 0 || c.UppercutMinMotion < 0 || c.StraightDepthMargin < 0 {
		errs = append(errs, "motion and depth minimums must not be negative")
	}
	if c.MinVisibility < 0 || c.MinVisibility > 1 {
		errs = append(errs, fmt.Sprintf("min_visibility must be 0-1, got %v", c.MinVisibility))
	}

	return errs
}
