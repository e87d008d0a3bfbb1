// Package config loads go-mvcam command configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-mvcam/internal/log"
	"github.com/teslashibe/go-mvcam/pkg/camera"
)

// Environment variables. Each overrides the matching file setting.
const (
	EnvConfig    = "MVCAM_CONFIG"
	EnvModel     = "MVCAM_MODEL"
	EnvLogLevel  = "MVCAM_LOG_LEVEL"
	EnvOutputDir = "MVCAM_OUTPUT_DIR"
)

// Defaults
const (
	DefaultLogLevel    = "info"
	DefaultOutputDir   = "pic"
	DefaultCalibration = "calibration_parameters.yml"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the complete command configuration.
type Config struct {
	LogLevel    string        `yaml:"log_level"`
	OutputDir   string        `yaml:"output_dir"`  // where saved images go
	Calibration string        `yaml:"calibration"` // OpenCV FileStorage YAML
	Camera      camera.Config `yaml:"camera"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:    DefaultLogLevel,
		OutputDir:   DefaultOutputDir,
		Calibration: DefaultCalibration,
		Camera:      camera.DefaultConfig(),
	}
}

// Path returns flagValue if set, otherwise MVCAM_CONFIG. Empty means no file.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvConfig)
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = envOr(EnvLogLevel, c.LogLevel)
	c.OutputDir = envOr(EnvOutputDir, c.OutputDir)
	if m := os.Getenv(EnvModel); m != "" {
		c.Camera.Model = camera.Model(m)
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("log_level must be one of %v", log.Levels))
	}
	if c.OutputDir == "" {
		problems = append(problems, "output_dir must not be empty")
	}
	for _, p := range c.Camera.Validate() {
		problems = append(problems, "camera."+p)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
