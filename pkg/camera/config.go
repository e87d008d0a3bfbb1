package camera

import (
	"fmt"
	"time"
)

// Config holds the acquisition settings applied after Initialize.
type Config struct {
	// Model selects the camera driver.
	Model Model `yaml:"model" json:"model"`

	// Preset names a resolution preset. When set it overrides Width/Height.
	Preset string `yaml:"preset" json:"preset"`

	// === Resolution ===
	Width  int `yaml:"width" json:"width"`   // Frame width in pixels, 0 = device default
	Height int `yaml:"height" json:"height"` // Frame height in pixels, 0 = device default

	// ExposureTime is manual exposure in microseconds.
	// Set to 0 to leave the device setting untouched.
	ExposureTime float64 `yaml:"exposure_time" json:"exposure_time"`

	// FrameTimeout bounds each blocking frame pull.
	FrameTimeout time.Duration `yaml:"frame_timeout" json:"frame_timeout"`
}

// Sensor capabilities for the SY011 (12 MP)
const (
	SensorMaxWidth  = 4024
	SensorMaxHeight = 3036
)

// DefaultConfig returns 1440x1080 with the device's own exposure and a
// one second frame timeout.
func DefaultConfig() Config {
	return Config{
		Model:        ModelSY011,
		Width:        1440,
		Height:       1080,
		ExposureTime: 0, // Device default
		FrameTimeout: DefaultFrameTimeout,
	}
}

// Resolution resolves the effective width and height, applying Preset.
func (c *Config) Resolution() (width, height int) {
	if c.Preset != "" {
		if p := GetPreset(c.Preset); p != nil {
			return p.Width, p.Height
		}
	}
	return c.Width, c.Height
}

// Validate checks the config for structural mistakes.
// Device ranges are not checked here; the driver is the authority on those.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if _, err := c.Model.Backend(); err != nil {
		errors = append(errors, fmt.Sprintf("model must be one of %v", Models()))
	}

	if c.Preset != "" && GetPreset(c.Preset) == nil {
		errors = append(errors, fmt.Sprintf("preset must be one of %v", PresetNames()))
	}

	// Resolution is all or nothing
	if (c.Width == 0) != (c.Height == 0) {
		errors = append(errors, "width and height must both be set or both be 0")
	}
	if c.Width < 0 || c.Height < 0 {
		errors = append(errors, "width and height must not be negative")
	}

	if c.ExposureTime < 0 {
		errors = append(errors, "exposure_time must be 0 (device default) or positive")
	}

	if c.FrameTimeout <= 0 {
		errors = append(errors, "frame_timeout must be positive")
	}

	return errors
}

// Apply configures an initialized camera: resolution first, then exposure.
func (c *Config) Apply(cam Camera) error {
	if w, h := c.Resolution(); w > 0 && h > 0 {
		if err := cam.SetResolution(w, h); err != nil {
			return fmt.Errorf("set resolution %dx%d: %w", w, h, err)
		}
	}

	if c.ExposureTime > 0 {
		if err := cam.SetExposureTime(c.ExposureTime); err != nil {
			return fmt.Errorf("set exposure %.0fus: %w", c.ExposureTime, err)
		}
	}

	return nil
}
