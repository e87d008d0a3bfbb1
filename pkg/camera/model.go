package camera

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-mvcam/pkg/mvsdk"
)

// Model identifies a supported camera. The set is closed.
type Model string

const (
	// ModelSY011 is the SY011 USB3 industrial camera on the vendor SDK.
	ModelSY011 Model = "sy011"
	// ModelSimulator is an in-process fake for CI/Testing.
	ModelSimulator Model = "simulator"
)

// Models returns every supported model.
func Models() []Model {
	return []Model{ModelSY011, ModelSimulator}
}

// ParseModel converts a name into a Model.
func ParseModel(name string) (Model, error) {
	for _, m := range Models() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModel, name)
}

// Backend returns the driver backend the model runs on.
func (m Model) Backend() (mvsdk.Backend, error) {
	switch m {
	case ModelSY011:
		return mvsdk.BackendMVS, nil
	case ModelSimulator:
		return mvsdk.BackendSimulator, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, string(m))
	}
}

// New creates a session for the given model on a fresh driver subsystem.
// Only one subsystem per driver should exist in a process; use NewSession
// to share one between sessions.
func New(model Model, opts ...Option) (*Session, error) {
	backend, err := model.Backend()
	if err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	driver, err := mvsdk.NewDriver(backend, o.logger)
	if err != nil {
		return nil, fmt.Errorf("create %s driver: %w", model, err)
	}

	sub := mvsdk.NewSubsystem(driver, o.logger)
	return NewSession(sub, append(opts, WithModel(model))...), nil
}

// Option configures a Session.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	timeout time.Duration
	model   Model
}

// WithLogger sets the logger used by the session and its driver.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithFrameTimeout overrides how long PullFrame waits for a frame.
func WithFrameTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithModel records which model the session drives.
func WithModel(m Model) Option {
	return func(o *options) {
		o.model = m
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:  slog.Default(),
		timeout: DefaultFrameTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
