package camera

import (
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/teslashibe/go-smartspar/pkg/geometry"
	"github.com/teslashibe/go-smartspar/pkg/pose"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if errs := cfg.Validate(); len(errs) > 0 {
		t.Fatalf("default config invalid: %v", errs)
	}
	if len(cfg.Devices) != 3 || cfg.Devices[0] != 0 || cfg.Devices[2] != 2 {
		t.Errorf("Devices = %v, want [0 1 2]", cfg.Devices)
	}
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("resolution = %dx%d, want 640x480", cfg.Width, cfg.Height)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"no devices", func(c *Config) { c.Devices = nil }, "devices"},
		{"negative device", func(c *Config) { c.Devices = []int{-1} }, "device -1"},
		{"too narrow", func(c *Config) { c.Width = 100 }, "width"},
		{"too tall", func(c *Config) { c.Height = 5000 }, "height"},
		{"zero fps", func(c *Config) { c.Framerate = 0 }, "framerate"},
		{"quality", func(c *Config) { c.Quality = 101 }, "quality"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			errs := cfg.Validate()
			if len(errs) != 1 || !strings.Contains(errs[0], tt.want) {
				t.Errorf("Validate() = %v, want one error about %q", errs, tt.want)
			}
		})
	}
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			p := GetPreset(name)
			if p == nil {
				t.Fatal("preset missing")
			}
			if errs := p.Validate(); len(errs) > 0 {
				t.Errorf("preset invalid: %v", errs)
			}
		})
	}
	if GetPreset("4k-night") != nil {
		t.Error("unknown preset should be nil")
	}
}

func TestManager_UpdateConfig(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]interface{}
		wantErr bool
		check   func(Config) bool
	}{
		{
			name:   "resolution",
			params: map[string]interface{}{"width": float64(1280), "height": float64(720)},
			check:  func(c Config) bool { return c.Width == 1280 && c.Height == 720 },
		},
		{
			name:   "overlay off",
			params: map[string]interface{}{"overlay": false},
			check:  func(c Config) bool { return !c.Overlay },
		},
		{
			name:   "preset keeps devices",
			params: map[string]interface{}{"preset": PresetLow, "quality": float64(90)},
			check: func(c Config) bool {
				return c.Width == 320 && c.Quality == 90 && len(c.Devices) == 1 && c.Devices[0] == 4
			},
		},
		{
			name:    "unknown preset",
			params:  map[string]interface{}{"preset": "night"},
			wantErr: true,
		},
		{
			name:    "unknown key",
			params:  map[string]interface{}{"zoom_level": 2.0},
			wantErr: true,
		},
		{
			name:    "invalid value",
			params:  map[string]interface{}{"framerate": float64(500)},
			wantErr: true,
		},
		{
			name:    "wrong type",
			params:  map[string]interface{}{"width": "1280"},
			wantErr: true,
		},
		{
			name:    "fractional number",
			params:  map[string]interface{}{"framerate": 29.97},
			wantErr: true,
		},
		{
			name:    "preset not a string",
			params:  map[string]interface{}{"preset": 3.0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := DefaultConfig()
			start.Devices = []int{4}
			m := NewManager(start)

			err := m.UpdateConfig(tt.params)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UpdateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if m.GetConfig().Width != start.Width {
					t.Error("failed update should leave config unchanged")
				}
				return
			}
			if !tt.check(m.GetConfig()) {
				t.Errorf("unexpected config %+v", m.GetConfig())
			}
		})
	}
}

func TestManager_OnConfigChange(t *testing.T) {
	m := NewManager(DefaultConfig())

	var applied Config
	m.OnConfigChange = func(cfg Config) error {
		applied = cfg
		return nil
	}
	if err := m.UpdateConfig(map[string]interface{}{"mirror": true}); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if !applied.Mirror {
		t.Error("callback did not receive the new config")
	}

	m.OnConfigChange = func(Config) error { return errors.New("device busy") }
	if err := m.SetConfig(DefaultConfig()); err == nil || !strings.Contains(err.Error(), "device busy") {
		t.Errorf("expected callback error, got %v", err)
	}
}

func TestManager_GetConfigIsCopy(t *testing.T) {
	m := NewManager(DefaultConfig())

	cfg := m.GetConfig()
	cfg.Devices[0] = 9
	if m.GetConfig().Devices[0] != 0 {
		t.Error("GetConfig should not share the devices slice")
	}
	if m.GetConfigJSON()["width"] != float64(640) {
		t.Errorf("GetConfigJSON = %v", m.GetConfigJSON())
	}
}

func TestArrowPoints(t *testing.T) {
	tests := []struct {
		name     string
		wrist    pose.Point
		motion   geometry.Vec2
		from, to image.Point
		ok       bool
	}{
		{"still", pose.Point{X: 0.5, Y: 0.5}, geometry.Vec2{}, image.Pt(320, 240), image.Pt(320, 240), false},
		{"moving right", pose.Point{X: 0.5, Y: 0.5}, geometry.Vec2{X: 0.1}, image.Pt(256, 240), image.Pt(320, 240), true},
		{"moving up", pose.Point{X: 0.25, Y: 0.5}, geometry.Vec2{Y: -0.25}, image.Pt(160, 360), image.Pt(160, 240), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, ok := arrowPoints(640, 480, tt.wrist, tt.motion)
			if from != tt.from || to != tt.to || ok != tt.ok {
				t.Errorf("arrowPoints() = %v, %v, %v; want %v, %v, %v", from, to, ok, tt.from, tt.to, tt.ok)
			}
		})
	}
}

func TestOpen_NoCamera(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Devices = []int{MaxDevice}

	_, err := Open(cfg, nil, nil)
	if !errors.Is(err, ErrNoCamera) {
		t.Errorf("expected ErrNoCamera, got %v", err)
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quality = 0

	if _, err := Open(cfg, nil, nil); err == nil || errors.Is(err, ErrNoCamera) {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestPlaceholder(t *testing.T) {
	jpeg, err := Placeholder(DefaultConfig())
	if err != nil {
		t.Fatalf("Placeholder: %v", err)
	}
	if len(jpeg) < 2 || jpeg[0] != 0xff || jpeg[1] != 0xd8 {
		t.Error("placeholder is not a JPEG")
	}
}
