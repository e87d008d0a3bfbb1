package camera

// Preset names for common resolutions
const (
	PresetFull    = "full"
	PresetDefault = "default"
	Preset1080p   = "1080p"
	Preset720p    = "720p"
	PresetVGA     = "vga"
)

// Resolution is a width/height pair.
type Resolution struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Presets returns all available resolution presets.
func Presets() map[string]Resolution {
	return map[string]Resolution{
		PresetFull:    {Width: SensorMaxWidth, Height: SensorMaxHeight},
		PresetDefault: {Width: 1440, Height: 1080},
		Preset1080p:   {Width: 1920, Height: 1080},
		Preset720p:    {Width: 1280, Height: 720},
		PresetVGA:     {Width: 640, Height: 480},
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetFull,
		PresetDefault,
		Preset1080p,
		Preset720p,
		PresetVGA,
	}
}

// GetPreset returns a preset by name, or nil if not found.
func GetPreset(name string) *Resolution {
	presets := Presets()
	if r, ok := presets[name]; ok {
		return &r
	}
	return nil
}
