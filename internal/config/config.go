// Package config loads smartspar settings from a TOML file, environment
// overrides and XDG default paths.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/teslashibe/go-smartspar/pkg/classifier"
	"github.com/teslashibe/go-smartspar/pkg/pose"
)

// Config holds all smartspar configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Classifier ClassifierConfig `toml:"classifier"`
	Camera     CameraConfig     `toml:"camera"`
	Pose       PoseConfig       `toml:"pose"`
	History    HistoryConfig    `toml:"history"`
	Recording  RecordingConfig  `toml:"recording"`
	Log        LogConfig        `toml:"log"`
}

type ServerConfig struct {
	Port              int     `toml:"port"`
	StaticDir         string  `toml:"static_dir"`
	BroadcastInterval float64 `toml:"broadcast_interval"` // seconds
}

// ClassifierConfig mirrors classifier.Config with durations in seconds.
// Preset picks the base thresholds; keys set alongside it override them.
type ClassifierConfig struct {
	Preset string `toml:"preset"`

	BufferSize      int     `toml:"buffer_size"`
	GuardMargin     float64 `toml:"guard_margin"`
	PunchCooldown   float64 `toml:"punch_cooldown"`
	CountCooldown   float64 `toml:"count_cooldown"`
	DisplayDuration float64 `toml:"display_duration"`

	StraightDepthMargin float64 `toml:"straight_depth_margin"`
	StraightMinAngle    float64 `toml:"straight_min_angle"`

	HookMinAngle  float64 `toml:"hook_min_angle"`
	HookMaxAngle  float64 `toml:"hook_max_angle"`
	HookRatio     float64 `toml:"hook_ratio"`
	HookMinMotion float64 `toml:"hook_min_motion"`

	UppercutMaxAngle  float64 `toml:"uppercut_max_angle"`
	UppercutRatio     float64 `toml:"uppercut_ratio"`
	UppercutMinMotion float64 `toml:"uppercut_min_motion"`

	MinVisibility float64 `toml:"min_visibility"`
}

type CameraConfig struct {
	Enabled bool    `toml:"enabled"`
	Devices []int   `toml:"devices"`
	Width   int     `toml:"width"`
	Height  int     `toml:"height"`
	FPS     float64 `toml:"fps"`
	Quality int     `toml:"quality"` // JPEG 1-100
	Overlay bool    `toml:"overlay"` // Draw feedback and motion arrows
	Mirror  bool    `toml:"mirror"`
}

type PoseConfig struct {
	URL     string  `toml:"url"`
	Timeout float64 `toml:"timeout"` // seconds
}

type HistoryConfig struct {
	Path string `toml:"path"`
}

type RecordingConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:              8080,
			BroadcastInterval: 1.0,
		},
		Classifier: FromClassifier(classifier.DefaultConfig()),
		Camera: CameraConfig{
			Enabled: true,
			Devices: []int{0, 1, 2},
			Width:   640,
			Height:  480,
			FPS:     30,
			Quality: 80,
			Overlay: true,
		},
		Pose: PoseConfig{
			URL:     "http://127.0.0.1:8500/pose",
			Timeout: 2.0,
		},
		History: HistoryConfig{
			Path: DefaultDBPath(),
		},
		Recording: RecordingConfig{
			Dir: DefaultRecordingDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides. An empty path uses DefaultPath. A missing file is
// not an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to stat config: %w", err)
		}
	} else if err := decodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// decodeFile decodes twice: once to learn the classifier preset, then over
// that preset so explicit keys win.
func decodeFile(path string, cfg *Config) error {
	var head struct {
		Classifier struct {
			Preset string `toml:"preset"`
		} `toml:"classifier"`
	}
	if _, err := toml.DecodeFile(path, &head); err != nil {
		return fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	if name := head.Classifier.Preset; name != "" {
		preset, ok := classifier.Preset(name)
		if !ok {
			return fmt.Errorf("unknown classifier preset %q", name)
		}
		cfg.Classifier = FromClassifier(preset)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(names, ", "))
	}
	return nil
}

// Validate checks the settings that would fail later at startup.
func (c Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.BroadcastInterval <= 0 {
		errs = append(errs, "server.broadcast_interval must be positive")
	}
	if c.Camera.Quality < 1 || c.Camera.Quality > 100 {
		errs = append(errs, fmt.Sprintf("camera.quality must be 1-100, got %d", c.Camera.Quality))
	}
	if c.Camera.Enabled && len(c.Camera.Devices) == 0 {
		errs = append(errs, "camera.devices must list at least one index")
	}
	for _, e := range c.Classifier.Classifier().Validate() {
		errs = append(errs, "classifier."+e)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Classifier converts the section to classifier thresholds.
func (c ClassifierConfig) Classifier() classifier.Config {
	return classifier.Config{
		BufferSize:          c.BufferSize,
		GuardMargin:         c.GuardMargin,
		PunchCooldown:       seconds(c.PunchCooldown),
		CountCooldown:       seconds(c.CountCooldown),
		DisplayDuration:     seconds(c.DisplayDuration),
		StraightDepthMargin: c.StraightDepthMargin,
		StraightMinAngle:    c.StraightMinAngle,
		HookMinAngle:        c.HookMinAngle,
		HookMaxAngle:        c.HookMaxAngle,
		HookRatio:           c.HookRatio,
		HookMinMotion:       c.HookMinMotion,
		UppercutMaxAngle:    c.UppercutMaxAngle,
		UppercutRatio:       c.UppercutRatio,
		UppercutMinMotion:   c.UppercutMinMotion,
		MinVisibility:       c.MinVisibility,
	}
}

// FromClassifier converts classifier thresholds to a config section.
func FromClassifier(c classifier.Config) ClassifierConfig {
	return ClassifierConfig{
		BufferSize:          c.BufferSize,
		GuardMargin:         c.GuardMargin,
		PunchCooldown:       c.PunchCooldown.Seconds(),
		CountCooldown:       c.CountCooldown.Seconds(),
		DisplayDuration:     c.DisplayDuration.Seconds(),
		StraightDepthMargin: c.StraightDepthMargin,
		StraightMinAngle:    c.StraightMinAngle,
		HookMinAngle:        c.HookMinAngle,
		HookMaxAngle:        c.HookMaxAngle,
		HookRatio:           c.HookRatio,
		HookMinMotion:       c.HookMinMotion,
		UppercutMaxAngle:    c.UppercutMaxAngle,
		UppercutRatio:       c.UppercutRatio,
		UppercutMinMotion:   c.UppercutMinMotion,
		MinVisibility:       c.MinVisibility,
	}
}

// Interval returns the stats broadcast period.
func (s ServerConfig) Interval() time.Duration {
	return seconds(s.BroadcastInterval)
}

// TimeoutDuration returns the estimator request timeout.
func (p PoseConfig) TimeoutDuration() time.Duration {
	return seconds(p.Timeout)
}

// Remote returns the settings for a pose.RemoteEstimator.
func (p PoseConfig) Remote() pose.RemoteConfig {
	return pose.RemoteConfig{URL: p.URL, Timeout: p.TimeoutDuration()}
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
