package camera

// Preset names for common capture sizes.
const (
	PresetVGA  = "vga"
	PresetQVGA = "qvga"
	PresetHD   = "720p"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetVGA:  DefaultConfig(),
		PresetQVGA: QVGAConfig(),
		PresetHD:   HD720Config(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetVGA, PresetQVGA, PresetHD}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// QVGAConfig returns 320x240. Useful on slow links.
func QVGAConfig() Config {
	cfg := DefaultConfig()
	cfg.Constraints.Width.Ideal = 320
	cfg.Constraints.Height.Ideal = 240
	return cfg
}

// HD720Config returns 1280x720. Larger frames, higher latency.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Constraints.Width.Ideal = 1280
	cfg.Constraints.Height.Ideal = 720
	return cfg
}
