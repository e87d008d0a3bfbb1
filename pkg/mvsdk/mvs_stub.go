//go:build !mvs || !cgo

package mvsdk

import "log/slog"

// newMVSDriver returns an error when built without the vendor SDK.
// Build with -tags mvs (and CGO_ENABLED=1) to link MvCameraControl.
func newMVSDriver(logger *slog.Logger) (Driver, error) {
	return nil, ErrBackendUnavailable
}
