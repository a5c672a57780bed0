package camera

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Manager holds the live capture settings and applies runtime updates.
type Manager struct {
	config Config
	mu     sync.RWMutex

	// OnConfigChange applies accepted settings to the running capture.
	OnConfigChange func(cfg Config) error
}

// NewManager creates a camera manager starting from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		config: cfg.Clone(),
	}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Clone()
}

// SetConfig replaces the settings after validating them.
func (m *Manager) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid camera config: %s", strings.Join(errs, "; "))
	}

	m.mu.Lock()
	m.config = cfg.Clone()
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg.Clone()); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// setters apply one JSON-decoded camera setting. They return false when the
// value has the wrong type.
var setters = map[string]func(cfg *Config, v any) bool{
	"width":     intSetter(func(c *Config, n int) { c.Width = n }),
	"height":    intSetter(func(c *Config, n int) { c.Height = n }),
	"framerate": intSetter(func(c *Config, n int) { c.Framerate = n }),
	"quality":   intSetter(func(c *Config, n int) { c.Quality = n }),
	"overlay":   boolSetter(func(c *Config, b bool) { c.Overlay = b }),
	"mirror":    boolSetter(func(c *Config, b bool) { c.Mirror = b }),
}

func intSetter(set func(*Config, int)) func(*Config, any) bool {
	return func(c *Config, v any) bool {
		n, ok := toInt(v)
		if ok {
			set(c, n)
		}
		return ok
	}
}

func boolSetter(set func(*Config, bool)) func(*Config, any) bool {
	return func(c *Config, v any) bool {
		b, ok := v.(bool)
		if ok {
			set(c, b)
		}
		return ok
	}
}

// UpdateConfig applies a partial update decoded from JSON. A "preset" key
// is applied first; remaining keys override it. Nothing changes if any key
// is unknown, mistyped or the result fails validation.
func (m *Manager) UpdateConfig(params map[string]any) error {
	cfg := m.GetConfig()

	if v, ok := params["preset"]; ok {
		name, _ := v.(string)
		preset := GetPreset(name)
		if preset == nil {
			return fmt.Errorf("unknown preset: %v", v)
		}
		// Presets never move the capture to another device
		devices := cfg.Devices
		cfg = *preset
		cfg.Devices = devices
	}

	for key, value := range params {
		if key == "preset" {
			continue
		}
		set, ok := setters[key]
		if !ok {
			return fmt.Errorf("unknown camera setting: %s", key)
		}
		if !set(&cfg, value) {
			return fmt.Errorf("invalid value for camera setting %s: %v", key, value)
		}
	}

	return m.SetConfig(cfg)
}

// GetConfigJSON returns the current config as a map for JSON responses.
func (m *Manager) GetConfigJSON() map[string]any {
	data, _ := json.Marshal(m.GetConfig())
	var result map[string]any
	json.Unmarshal(data, &result)
	return result
}

// toInt accepts whole numbers only; 29.97 is not a framerate setting.
func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if val != float64(int(val)) {
			return 0, false
		}
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
