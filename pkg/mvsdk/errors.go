package mvsdk

import "errors"

var (
	// ErrUnknownBackend is returned by NewDriver for an unrecognised backend.
	ErrUnknownBackend = errors.New("mvsdk: unknown backend")

	// ErrBackendUnavailable is returned when the backend was not compiled in.
	ErrBackendUnavailable = errors.New("mvsdk: backend not available in this build")

	// ErrSubsystemReleased is returned when releasing a subsystem that is not held.
	ErrSubsystemReleased = errors.New("mvsdk: subsystem not acquired")
)
