package undistort

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLoadCalibration(t *testing.T) {
	calib, err := LoadCalibration(filepath.Join("testdata", "calibration_parameters.yml"))
	require.NoError(t, err)

	want := mat.NewDense(3, 3, []float64{
		2355.107421875, 0, 719.68157958984375,
		0, 2354.8232421875, 538.22662353515625,
		0, 0, 1,
	})
	assert.True(t, mat.EqualApprox(want, calib.CameraMatrix, 1e-9), "camera matrix\n%v", mat.Formatted(calib.CameraMatrix))

	require.Equal(t, 5, calib.Distortion.Len())
	assert.InDelta(t, -0.087653636932373047, calib.Distortion.AtVec(0), 1e-12)
	assert.InDelta(t, -1.1408421993255615, calib.Distortion.AtVec(4), 1e-12)

	fx, fy, cx, cy := calib.Intrinsics()
	assert.InDelta(t, 2355.107, fx, 1e-3)
	assert.InDelta(t, 2354.823, fy, 1e-3)
	assert.InDelta(t, 719.682, cx, 1e-3)
	assert.InDelta(t, 538.227, cy, 1e-3)
}

func TestLoadCalibration_MissingFile(t *testing.T) {
	_, err := LoadCalibration(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestParseCalibration_ColumnDistortion(t *testing.T) {
	calib, err := ParseCalibration([]byte(`
camera_matrix:
  rows: 3
  cols: 3
  dt: d
  data: [100, 0, 50, 0, 100, 25, 0, 0, 1]
distortion_coefficients:
  rows: 4
  cols: 1
  dt: d
  data: [0.1, 0.01, 0, 0]
`))
	require.NoError(t, err)
	assert.Equal(t, 4, calib.Distortion.Len())
	assert.False(t, calib.Empty())
}

func TestParseCalibration_Malformed(t *testing.T) {
	const k = "camera_matrix: !!opencv-matrix\n  rows: 3\n  cols: 3\n  dt: d\n  data: [100, 0, 50, 0, 100, 25, 0, 0, 1]\n"
	const d = "distortion_coefficients: !!opencv-matrix\n  rows: 1\n  cols: 5\n  dt: d\n  data: [0, 0, 0, 0, 0]\n"

	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "camera_matrix: [unterminated"},
		{"missing camera matrix", d},
		{"missing distortion", k},
		{"short data", "camera_matrix:\n  rows: 3\n  cols: 3\n  data: [1, 2, 3]\n" + d},
		{"zero rows", "camera_matrix:\n  rows: 0\n  cols: 3\n  data: []\n" + d},
		{"not 3x3", "camera_matrix:\n  rows: 2\n  cols: 2\n  data: [1, 0, 0, 1]\n" + d},
		{"zero focal length", "camera_matrix:\n  rows: 3\n  cols: 3\n  data: [0, 0, 50, 0, 100, 25, 0, 0, 1]\n" + d},
		{"singular", "camera_matrix:\n  rows: 3\n  cols: 3\n  data: [100, 0, 50, 0, 100, 25, 0, 0, 0]\n" + d},
		{"three coefficients", k + "distortion_coefficients:\n  rows: 1\n  cols: 3\n  data: [0, 0, 0]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCalibration([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrMalformedCalibration)
		})
	}
}

func TestNormalizeOpenCVYAML(t *testing.T) {
	in := "%YAML:1.0\n---\nm: !!opencv-matrix\n  rows: 1\n"
	assert.Equal(t, "---\nm: \n  rows: 1\n\n", string(normalizeOpenCVYAML([]byte(in))))
}

func TestCalibration_Empty(t *testing.T) {
	var nilCalib *Calibration
	assert.True(t, nilCalib.Empty())
	assert.True(t, (&Calibration{}).Empty())
	assert.ErrorIs(t, (&Calibration{}).Validate(), ErrCalibrationUnavailable)
}
