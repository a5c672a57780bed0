package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetLow     = "low"
	Preset720p    = "720p"
	PresetFast    = "fast"
	PresetClean   = "clean"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetLow:     LowConfig(),
		Preset720p:    HD720Config(),
		PresetFast:    FastConfig(),
		PresetClean:   CleanConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLow,
		Preset720p,
		PresetFast,
		PresetClean,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// LowConfig trades resolution for pose latency on slow machines.
func LowConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.Quality = 70
	return cfg
}

// HD720Config returns 720p HD configuration.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	cfg.Quality = 85
	return cfg
}

// FastConfig captures at 60 FPS for quicker punch detection.
func FastConfig() Config {
	cfg := DefaultConfig()
	cfg.Framerate = 60
	cfg.Quality = 70
	return cfg
}

// CleanConfig publishes frames without the overlay.
func CleanConfig() Config {
	cfg := DefaultConfig()
	cfg.Overlay = false
	return cfg
}
