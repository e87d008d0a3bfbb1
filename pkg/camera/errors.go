package camera

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-mvcam/pkg/mvsdk"
)

// Kind classifies a session failure.
type Kind string

const (
	KindDriverInitFailed    Kind = "driver_init_failed"
	KindNoDeviceFound       Kind = "no_device_found"
	KindHandleCreateFailed  Kind = "handle_create_failed"
	KindDeviceOpenFailed    Kind = "device_open_failed"
	KindConfigureRejected   Kind = "configure_rejected"
	KindStreamStartFailed   Kind = "stream_start_failed"
	KindFrameTimeoutOrError Kind = "frame_timeout_or_error"
	KindInvalidState        Kind = "invalid_state"
)

// Sentinel errors, one per Kind. errors.Is(err, ErrNoDeviceFound) matches
// any *Error of that kind.
var (
	ErrDriverInitFailed    = errors.New("camera: driver initialization failed")
	ErrNoDeviceFound       = errors.New("camera: no device found")
	ErrHandleCreateFailed  = errors.New("camera: handle creation failed")
	ErrDeviceOpenFailed    = errors.New("camera: device open failed")
	ErrConfigureRejected   = errors.New("camera: configuration rejected")
	ErrStreamStartFailed   = errors.New("camera: stream start failed")
	ErrFrameTimeoutOrError = errors.New("camera: frame timeout or error")
	ErrInvalidState        = errors.New("camera: invalid state")
)

// Precondition details carried in Error.Err for KindInvalidState.
var (
	ErrNoHandle         = errors.New("camera: no device handle")
	ErrBufferTooSmall   = errors.New("camera: buffer smaller than frame size")
	ErrUnknownGeometry  = errors.New("camera: frame geometry unknown")
	ErrAlreadyStreaming = errors.New("camera: already streaming")
	ErrUnknownModel     = errors.New("camera: unknown model")
)

// ErrFrameSizeMismatch is carried by a KindFrameTimeoutOrError when the
// driver reports a frame larger than the configured resolution.
var ErrFrameSizeMismatch = errors.New("camera: frame larger than configured size")

var kindErrors = map[Kind]error{
	KindDriverInitFailed:    ErrDriverInitFailed,
	KindNoDeviceFound:       ErrNoDeviceFound,
	KindHandleCreateFailed:  ErrHandleCreateFailed,
	KindDeviceOpenFailed:    ErrDeviceOpenFailed,
	KindConfigureRejected:   ErrConfigureRejected,
	KindStreamStartFailed:   ErrStreamStartFailed,
	KindFrameTimeoutOrError: ErrFrameTimeoutOrError,
	KindInvalidState:        ErrInvalidState,
}

// Error is returned by every failing Session operation.
type Error struct {
	// Kind is the failure class.
	Kind Kind

	// Op names the driver step that failed (e.g. "open device").
	Op string

	// Code is the raw driver result, or OK when the failure was not a driver call.
	Code mvsdk.Code

	// Err holds extra detail, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("camera: %s: %s", e.Op, e.Kind)
	if e.Code.Failed() {
		msg += fmt.Sprintf(" (code %s)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the detail error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's Kind.
func (e *Error) Is(target error) bool {
	return kindErrors[e.Kind] == target
}

// KindOf returns the Kind of a session error, or "" if err is not one.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
