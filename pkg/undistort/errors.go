package undistort

import "errors"

var (
	// ErrCalibrationUnavailable is returned by Undistort when the camera
	// matrix or distortion coefficients were not loaded.
	ErrCalibrationUnavailable = errors.New("undistort: calibration unavailable")

	// ErrMalformedCalibration wraps every calibration parse and validation failure.
	ErrMalformedCalibration = errors.New("undistort: malformed calibration")

	// ErrEmptyImage is returned when the source image has no pixels.
	ErrEmptyImage = errors.New("undistort: empty image")

	// ErrInvalidFrame is returned when a frame cannot be viewed as a BGR image.
	ErrInvalidFrame = errors.New("undistort: invalid frame")
)
